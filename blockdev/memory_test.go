package blockdev_test

import (
	"crypto/rand"
	"testing"

	"github.com/dargueta/sdfat"
	"github.com/dargueta/sdfat/blockdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ sdfat.MultiBlockDevice = (*blockdev.Memory)(nil)
var _ blockdev.Device = (*blockdev.Stream)(nil)

func TestMemory__WriteThenRead(t *testing.T) {
	dev := blockdev.NewMemory(16)
	assert.EqualValues(t, 16, dev.TotalBlocks())

	written := make([]byte, sdfat.BlockSize)
	_, err := rand.Read(written)
	require.NoError(t, err)

	require.NoError(t, dev.WriteBlock(7, written))

	readBack := make([]byte, sdfat.BlockSize)
	require.NoError(t, dev.ReadBlock(7, readBack))
	assert.Equal(t, written, readBack)

	image, err := dev.Bytes()
	require.NoError(t, err)
	assert.Equal(t, written, image[7*sdfat.BlockSize:8*sdfat.BlockSize])
}

func TestMemory__MultiBlock(t *testing.T) {
	dev := blockdev.NewMemory(8)
	written := make([]byte, 3*sdfat.BlockSize)
	_, err := rand.Read(written)
	require.NoError(t, err)

	require.NoError(t, dev.WriteBlocks(5, written))

	readBack := make([]byte, 3*sdfat.BlockSize)
	require.NoError(t, dev.ReadBlocks(5, readBack))
	assert.Equal(t, written, readBack)
}

func TestMemory__OutOfBoundsFails(t *testing.T) {
	dev := blockdev.NewMemory(4)
	buffer := make([]byte, sdfat.BlockSize)

	assert.NoError(t, dev.ReadBlock(3, buffer), "last block should be readable")
	assert.ErrorIs(t, dev.ReadBlock(4, buffer), sdfat.ErrArgumentOutOfRange)
	assert.ErrorIs(t, dev.WriteBlocks(3, make([]byte, 2*sdfat.BlockSize)), sdfat.ErrArgumentOutOfRange)
	assert.ErrorIs(t, dev.WriteBlocks(0, make([]byte, 100)), sdfat.ErrInvalidArgument)
}

func TestNewMemoryFromBytes__RejectsPartialBlocks(t *testing.T) {
	_, err := blockdev.NewMemoryFromBytes(make([]byte, 1000))
	assert.ErrorIs(t, err, sdfat.ErrInvalidArgument)

	dev, err := blockdev.NewMemoryFromBytes(make([]byte, 2048))
	require.NoError(t, err)
	assert.EqualValues(t, 4, dev.TotalBlocks())
}
