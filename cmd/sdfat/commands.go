package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dargueta/sdfat"
	"github.com/dargueta/sdfat/blockdev"
	"github.com/dargueta/sdfat/disks"
	"github.com/dargueta/sdfat/driver"
	"github.com/dargueta/sdfat/file_systems/fat"
	"github.com/dargueta/sdfat/fsck"
	"github.com/dargueta/sdfat/mkfs"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func loggerFrom(ctx *cli.Context) logrus.FieldLogger {
	log, ok := ctx.App.Metadata["logger"].(logrus.FieldLogger)
	if !ok {
		return logrus.StandardLogger()
	}
	return log
}

// withVolume mounts the image, runs `action`, and unmounts it again. Changes are
// only written back if `writable` is set.
func withVolume(ctx *cli.Context, writable bool, action func(drv *driver.Driver) error) error {
	device, err := blockdev.OpenDevice(ctx.String("image"), writable)
	if err != nil {
		return err
	}
	defer device.Close()

	vol, err := fat.Mount(device, fat.MountOptions{
		Partition: uint8(ctx.Uint("partition")),
		DateTime:  fat.ClockDateTime(time.Now),
		Logger:    loggerFrom(ctx),
	})
	if err != nil {
		return err
	}

	err = action(driver.New(vol))
	unmountErr := vol.Unmount()
	if err != nil {
		return err
	}
	if unmountErr != nil {
		return unmountErr
	}
	if writable {
		return device.Sync()
	}
	return nil
}

func requireArgs(ctx *cli.Context, count int) error {
	if ctx.NArg() != count {
		return cli.Exit(
			fmt.Sprintf("%s needs %d argument(s): %s", ctx.Command.Name, count, ctx.Command.ArgsUsage),
			2)
	}
	return nil
}

func formatOptions(ctx *cli.Context) (mkfs.Options, uint32, error) {
	var options mkfs.Options
	blocks := uint32(ctx.Uint("blocks"))

	if slug := ctx.String("floppy"); slug != "" {
		geometry, err := disks.GetPredefinedDiskGeometry(slug)
		if err != nil {
			return options, 0, err
		}
		options = mkfs.OptionsForGeometry(geometry)
		blocks = geometry.TotalBlocks
	}

	if fatType := ctx.Uint("fat"); fatType != 0 {
		options.FATType = fat.FATType(fatType)
	}
	if spc := ctx.Uint("sectors-per-cluster"); spc != 0 {
		options.SectorsPerCluster = uint8(spc)
	}
	options.VolumeLabel = ctx.String("label")
	options.PartitionStart = uint32(ctx.Uint("partition-start"))
	options.Logger = loggerFrom(ctx)
	return options, blocks, nil
}

func formatImage(ctx *cli.Context) error {
	options, blocks, err := formatOptions(ctx)
	if err != nil {
		return err
	}

	path := ctx.String("image")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if blocks == 0 {
			return cli.Exit("the image doesn't exist; give its size with --blocks or --floppy", 2)
		}
		image, err := os.Create(path)
		if err != nil {
			return err
		}
		err = image.Truncate(int64(blocks) * sdfat.BlockSize)
		closeErr := image.Close()
		if err != nil {
			return err
		}
		if closeErr != nil {
			return closeErr
		}
	}

	device, err := blockdev.OpenDevice(path, true)
	if err != nil {
		return err
	}
	defer device.Close()

	if blocks == 0 || blocks > device.TotalBlocks() {
		blocks = device.TotalBlocks()
	}
	err = mkfs.Format(device, blocks, options)
	if err != nil {
		return err
	}
	return device.Sync()
}

func showInfo(ctx *cli.Context) error {
	return withVolume(ctx, false, func(drv *driver.Driver) error {
		vol := drv.Volume()
		free, err := vol.FreeClusterCount()
		if err != nil {
			return err
		}

		out := ctx.App.Writer
		fmt.Fprintf(out, "FAT type:           FAT%d\n", vol.FATType())
		fmt.Fprintf(out, "Volume start:       %d\n", vol.VolumeStartBlock())
		fmt.Fprintf(out, "Bytes per cluster:  %d\n", vol.BytesPerCluster())
		fmt.Fprintf(out, "Clusters:           %d\n", vol.ClusterCount())
		fmt.Fprintf(out, "Free clusters:      %d\n", free)
		fmt.Fprintf(out, "Free bytes:         %d\n", uint64(free)*uint64(vol.BytesPerCluster()))
		fmt.Fprintf(out, "FAT copies:         %d\n", vol.FATCount())
		fmt.Fprintf(out, "Blocks per FAT:     %d\n", vol.BlocksPerFAT())
		fmt.Fprintf(out, "FAT start block:    %d\n", vol.FATStartBlock())
		fmt.Fprintf(out, "Data start block:   %d\n", vol.DataStartBlock())
		if vol.FATType() == fat.FAT32 {
			fmt.Fprintf(out, "Root cluster:       %d\n", vol.RootDirStart())
		} else {
			fmt.Fprintf(out, "Root start block:   %d\n", vol.RootDirStart())
			fmt.Fprintf(out, "Root entries:       %d\n", vol.RootDirEntryCount())
		}
		return nil
	})
}

func attributeString(attributes uint8) string {
	flags := []byte("-----")
	for i, bit := range []uint8{
		fat.AttrDirectory, fat.AttrReadOnly, fat.AttrHidden, fat.AttrSystem, fat.AttrArchived,
	} {
		if attributes&bit != 0 {
			flags[i] = "drhsa"[i]
		}
	}
	return string(flags)
}

func listDirectory(ctx *cli.Context) error {
	path := "/"
	if ctx.NArg() > 0 {
		path = ctx.Args().First()
	}

	return withVolume(ctx, false, func(drv *driver.Driver) error {
		dir, err := drv.Open(path)
		if err != nil {
			return err
		}
		defer dir.Close()

		lister, err := dir.List(ctx.Bool("recursive"))
		if err != nil {
			return err
		}
		defer lister.Close()

		for {
			entry, err := lister.Next()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(
				ctx.App.Writer,
				"%s %10d %s %s\n",
				attributeString(entry.Attributes),
				entry.Size,
				entry.ModificationTime().Format("2006-01-02 15:04:05"),
				entry.Path)
		}
	})
}

func catFile(ctx *cli.Context) error {
	if err := requireArgs(ctx, 1); err != nil {
		return err
	}
	return withVolume(ctx, false, func(drv *driver.Driver) error {
		f, err := drv.Open(ctx.Args().First())
		if err != nil {
			return err
		}
		defer f.Close()
		if !f.IsFile() {
			return sdfat.ErrIsADirectory.WithMessage(ctx.Args().First())
		}

		_, err = io.Copy(ctx.App.Writer, f)
		return err
	})
}

func putFile(ctx *cli.Context) error {
	if err := requireArgs(ctx, 2); err != nil {
		return err
	}
	source, err := os.Open(ctx.Args().Get(0))
	if err != nil {
		return err
	}
	defer source.Close()

	return withVolume(ctx, true, func(drv *driver.Driver) error {
		f, err := drv.OpenFile(ctx.Args().Get(1), sdfat.O_WRONLY|sdfat.O_CREATE|sdfat.O_TRUNC)
		if err != nil {
			return err
		}

		_, err = io.Copy(f, source)
		closeErr := f.Close()
		if err != nil {
			return err
		}
		return closeErr
	})
}

func getFile(ctx *cli.Context) error {
	if err := requireArgs(ctx, 2); err != nil {
		return err
	}
	return withVolume(ctx, false, func(drv *driver.Driver) error {
		f, err := drv.Open(ctx.Args().Get(0))
		if err != nil {
			return err
		}
		defer f.Close()
		if !f.IsFile() {
			return sdfat.ErrIsADirectory.WithMessage(ctx.Args().Get(0))
		}

		output, err := os.Create(ctx.Args().Get(1))
		if err != nil {
			return err
		}
		_, err = io.Copy(output, f)
		closeErr := output.Close()
		if err != nil {
			return err
		}
		return closeErr
	})
}

func makeDirectory(ctx *cli.Context) error {
	if err := requireArgs(ctx, 1); err != nil {
		return err
	}
	return withVolume(ctx, true, func(drv *driver.Driver) error {
		return drv.Mkdir(ctx.Args().First(), ctx.Bool("parents"))
	})
}

func removePath(ctx *cli.Context) error {
	if err := requireArgs(ctx, 1); err != nil {
		return err
	}
	return withVolume(ctx, true, func(drv *driver.Driver) error {
		if ctx.Bool("recursive") {
			return drv.RemoveAll(ctx.Args().First())
		}
		return drv.Remove(ctx.Args().First())
	})
}

func removeDirectory(ctx *cli.Context) error {
	if err := requireArgs(ctx, 1); err != nil {
		return err
	}
	return withVolume(ctx, true, func(drv *driver.Driver) error {
		return drv.Rmdir(ctx.Args().First())
	})
}

func movePath(ctx *cli.Context) error {
	if err := requireArgs(ctx, 2); err != nil {
		return err
	}
	return withVolume(ctx, true, func(drv *driver.Driver) error {
		return drv.Rename(ctx.Args().Get(0), ctx.Args().Get(1))
	})
}

func truncateFile(ctx *cli.Context) error {
	if err := requireArgs(ctx, 2); err != nil {
		return err
	}
	size, err := strconv.ParseUint(ctx.Args().Get(1), 10, 32)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid size %q: %s", ctx.Args().Get(1), err), 2)
	}
	return withVolume(ctx, true, func(drv *driver.Driver) error {
		return drv.Truncate(ctx.Args().First(), uint32(size))
	})
}

func checkVolume(ctx *cli.Context) error {
	var report *fsck.Report
	err := withVolume(ctx, false, func(drv *driver.Driver) error {
		var err error
		report, err = fsck.Check(drv.Volume())
		return err
	})
	if err != nil {
		return err
	}

	out := ctx.App.Writer
	for _, problem := range report.Problems {
		fmt.Fprintln(out, problem.String())
	}
	fmt.Fprintf(
		out,
		"%d files, %d directories, %d clusters used, %d free, %d bad, %d lost\n",
		report.Files,
		report.Directories,
		report.UsedClusters,
		report.FreeClusters,
		report.BadClusters,
		report.LostClusters)

	if !report.OK() {
		return cli.Exit("the volume has errors", 1)
	}
	return nil
}
