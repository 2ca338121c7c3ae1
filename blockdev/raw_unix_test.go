//go:build unix

package blockdev_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/dargueta/sdfat"
	"github.com/dargueta/sdfat/blockdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenDevice__ImageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "card.img")
	require.NoError(t, os.WriteFile(path, make([]byte, 10*sdfat.BlockSize+17), 0o644))

	dev, err := blockdev.OpenDevice(path, true)
	require.NoError(t, err)
	defer dev.Close()

	assert.EqualValues(t, 10, dev.TotalBlocks(), "trailing partial block must be ignored")

	pattern := bytes.Repeat([]byte{0xA5, 0x5A}, sdfat.BlockSize)
	require.NoError(t, dev.WriteBlocks(8, pattern))
	require.NoError(t, dev.Sync())

	readBack := make([]byte, sdfat.BlockSize)
	require.NoError(t, dev.ReadBlock(9, readBack))
	assert.Equal(t, pattern[:sdfat.BlockSize], readBack)

	assert.ErrorIs(t, dev.ReadBlock(10, readBack), sdfat.ErrArgumentOutOfRange)
}

func TestOpenDevice__MissingFile(t *testing.T) {
	_, err := blockdev.OpenDevice(filepath.Join(t.TempDir(), "nope.img"), false)
	assert.ErrorIs(t, err, sdfat.ErrIOFailed)
}
