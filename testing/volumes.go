package testing

import (
	"testing"

	"github.com/dargueta/sdfat"
	"github.com/dargueta/sdfat/blockdev"
	"github.com/dargueta/sdfat/file_systems/fat"
	"github.com/dargueta/sdfat/mkfs"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

// FixedVolumeID is the volume ID of every image made by [FormatImage], so that
// images are reproducible.
const FixedVolumeID = 0x5DFA7000

// FormatImage creates an in-memory device of `totalBlocks` blocks and formats
// it. It fails the test if formatting fails.
func FormatImage(totalBlocks uint32, options mkfs.Options, t *testing.T) *blockdev.Memory {
	device := blockdev.NewMemory(totalBlocks)
	if options.VolumeID == 0 {
		options.VolumeID = FixedVolumeID
	}
	if options.Logger == nil {
		options.Logger = NewLogger(t)
	}

	err := mkfs.Format(device, totalBlocks, options)
	require.NoErrorf(t, err, "failed to format %d-block image", totalBlocks)
	return device
}

// MountImage mounts the volume on `device`, failing the test if it can't.
func MountImage(device sdfat.BlockDevice, options fat.MountOptions, t *testing.T) *fat.Volume {
	if options.Logger == nil {
		options.Logger = NewLogger(t)
	}
	vol, err := fat.Mount(device, options)
	require.NoError(t, err, "failed to mount volume")
	return vol
}

// CreateVolume formats an in-memory image and mounts it.
func CreateVolume(
	totalBlocks uint32,
	fatType fat.FATType,
	sectorsPerCluster uint8,
	t *testing.T,
) (*fat.Volume, *blockdev.Memory) {
	device := FormatImage(
		totalBlocks,
		mkfs.Options{FATType: fatType, SectorsPerCluster: sectorsPerCluster},
		t)
	return MountImage(device, fat.MountOptions{}, t), device
}

// Small volumes of each FAT type with single-block clusters, as small as the
// type allows. Tests needing other layouts call CreateVolume directly.
const (
	SmallFAT12Blocks = 2880
	SmallFAT16Blocks = 4400
	SmallFAT32Blocks = 67000
)

func CreateFAT12Volume(t *testing.T) (*fat.Volume, *blockdev.Memory) {
	return CreateVolume(SmallFAT12Blocks, fat.FAT12, 1, t)
}

func CreateFAT16Volume(t *testing.T) (*fat.Volume, *blockdev.Memory) {
	return CreateVolume(SmallFAT16Blocks, fat.FAT16, 1, t)
}

func CreateFAT32Volume(t *testing.T) (*fat.Volume, *blockdev.Memory) {
	return CreateVolume(SmallFAT32Blocks, fat.FAT32, 1, t)
}

// NewLogger returns a logger that discards output but records entries, so
// tests stay quiet. Use [test.NewNullLogger] directly to inspect them.
func NewLogger(t *testing.T) logrus.FieldLogger {
	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger
}

// WriteFile creates `path` on `vol` with the given contents.
func WriteFile(vol *fat.Volume, path string, contents []byte, t *testing.T) {
	f, err := vol.Open(path, sdfat.O_RDWR|sdfat.O_CREATE|sdfat.O_TRUNC)
	require.NoErrorf(t, err, "failed to create %q", path)

	n, err := f.Write(contents)
	require.NoErrorf(t, err, "failed to write to %q", path)
	require.Equal(t, len(contents), n, "short write to %q", path)
	require.NoError(t, f.Close(), "failed to close %q", path)
}

// ReadFile returns the entire contents of `path` on `vol`.
func ReadFile(vol *fat.Volume, path string, t *testing.T) []byte {
	f, err := vol.Open(path, sdfat.O_RDONLY)
	require.NoErrorf(t, err, "failed to open %q", path)
	defer f.Close()

	contents := make([]byte, f.Size())
	n, err := f.Read(contents)
	if len(contents) != 0 {
		require.NoErrorf(t, err, "failed to read %q", path)
	}
	require.Equal(t, len(contents), n, "short read from %q", path)
	return contents
}
