package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "sdfat",
		Usage: "Manage files on FAT12/16/32 disk images and devices",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "image",
				Aliases:  []string{"i"},
				Usage:    "path to the image file or block device",
				EnvVars:  []string{"SDFAT_IMAGE"},
				Required: true,
			},
			&cli.UintFlag{
				Name:    "partition",
				Aliases: []string{"p"},
				Usage:   "MBR partition to use (1-4), or 0 for an unpartitioned device",
				EnvVars: []string{"SDFAT_PARTITION"},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log what the file system is doing",
			},
		},
		Before: func(ctx *cli.Context) error {
			log := logrus.New()
			log.SetOutput(ctx.App.ErrWriter)
			log.SetLevel(logrus.WarnLevel)
			if ctx.Bool("verbose") {
				log.SetLevel(logrus.DebugLevel)
			}
			ctx.App.Metadata = map[string]interface{}{"logger": log}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "format",
				Usage:  "Create or wipe an image",
				Action: formatImage,
				Flags: []cli.Flag{
					&cli.UintFlag{
						Name:  "blocks",
						Usage: "size of the image in 512-byte blocks, if it doesn't exist yet",
					},
					&cli.StringFlag{
						Name:  "floppy",
						Usage: "format as a floppy disk, e.g. 1440K",
					},
					&cli.UintFlag{
						Name:  "fat",
						Usage: "FAT type: 12, 16 or 32 (default: by volume size)",
					},
					&cli.UintFlag{
						Name:  "sectors-per-cluster",
						Usage: "cluster size in blocks (default: by volume size)",
					},
					&cli.StringFlag{
						Name:  "label",
						Usage: "volume label",
					},
					&cli.UintFlag{
						Name:  "partition-start",
						Usage: "write an MBR and put the volume in a partition starting at this block",
					},
				},
			},
			{
				Name:   "info",
				Usage:  "Show the layout of the volume",
				Action: showInfo,
			},
			{
				Name:      "ls",
				Usage:     "List a directory",
				ArgsUsage: "[PATH]",
				Action:    listDirectory,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "recursive", Aliases: []string{"r"}},
				},
			},
			{
				Name:      "cat",
				Usage:     "Write a file to standard output",
				ArgsUsage: "PATH",
				Action:    catFile,
			},
			{
				Name:      "put",
				Usage:     "Copy a local file into the image",
				ArgsUsage: "LOCAL_FILE PATH",
				Action:    putFile,
			},
			{
				Name:      "get",
				Usage:     "Copy a file out of the image",
				ArgsUsage: "PATH LOCAL_FILE",
				Action:    getFile,
			},
			{
				Name:      "mkdir",
				Usage:     "Create a directory",
				ArgsUsage: "PATH",
				Action:    makeDirectory,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "parents", Aliases: []string{"p"}},
				},
			},
			{
				Name:      "rm",
				Usage:     "Remove a file",
				ArgsUsage: "PATH",
				Action:    removePath,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "recursive", Aliases: []string{"r"}},
				},
			},
			{
				Name:      "rmdir",
				Usage:     "Remove an empty directory",
				ArgsUsage: "PATH",
				Action:    removeDirectory,
			},
			{
				Name:      "mv",
				Usage:     "Move or rename a file or directory",
				ArgsUsage: "OLD_PATH NEW_PATH",
				Action:    movePath,
			},
			{
				Name:      "truncate",
				Usage:     "Shrink a file",
				ArgsUsage: "PATH SIZE",
				Action:    truncateFile,
			},
			{
				Name:   "fsck",
				Usage:  "Check the volume for errors without changing it",
				Action: checkVolume,
			},
		},
	}
}

func main() {
	err := newApp().Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sdfat: %s\n", err.Error())
		os.Exit(1)
	}
}
