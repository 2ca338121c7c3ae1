package blockcache_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/dargueta/sdfat"
	"github.com/dargueta/sdfat/file_systems/common/blockcache"
	sdfattest "github.com/dargueta/sdfat/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fetch every block with no trickery and compare against the backing data.
func TestBlockCache__Fetch__Basic(t *testing.T) {
	cache, store := sdfattest.CreateDefaultCache(64, false, nil, t)
	assert.Equal(t, blockcache.InvalidBlock, cache.BlockNumber(), "new cache must be empty")

	for i := uint32(0); i < 64; i++ {
		data, err := cache.Fetch(i, blockcache.ForRead)
		require.NoErrorf(t, err, "failed to fetch block %d of [0, 64)", i)
		assert.Equal(t, i, cache.BlockNumber())

		start := int(i) * sdfat.BlockSize
		if !bytes.Equal(data, store.Data[start:start+sdfat.BlockSize]) {
			t.Errorf("block %d read from the cache doesn't match", i)
		}
	}
	assert.Equal(t, 64, store.Fetches)
	assert.Zero(t, store.Flushes, "clean blocks must never be written back")
}

// Fetching the resident block again doesn't touch storage.
func TestBlockCache__Fetch__ResidentBlockIsFree(t *testing.T) {
	cache, store := sdfattest.CreateDefaultCache(4, true, nil, t)

	_, err := cache.Fetch(2, blockcache.ForRead)
	require.NoError(t, err)
	_, err = cache.Fetch(2, blockcache.ForWrite)
	require.NoError(t, err)

	assert.Equal(t, 1, store.Fetches)
	assert.True(t, cache.IsDirty())
}

// A dirty block is written back when a different block is fetched.
func TestBlockCache__Write__FlushedOnEviction(t *testing.T) {
	cache, store := sdfattest.CreateDefaultCache(16, true, nil, t)

	data, err := cache.Fetch(3, blockcache.ForWrite)
	require.NoError(t, err)
	for i := range data {
		data[i] = 0x42
	}
	assert.Zero(t, store.Flushes, "write-back must be deferred")

	_, err = cache.Fetch(4, blockcache.ForRead)
	require.NoError(t, err)

	assert.Equal(t, 1, store.Flushes)
	assert.Equal(t, bytes.Repeat([]byte{0x42}, sdfat.BlockSize), store.Data[3*512:4*512])
	assert.False(t, cache.IsDirty())
}

// Reserving a block for writing must not read it.
func TestBlockCache__ReserveForWrite__SkipsRead(t *testing.T) {
	cache, store := sdfattest.CreateDefaultCache(16, true, nil, t)

	_, err := cache.Fetch(9, blockcache.ReserveForWrite)
	require.NoError(t, err)
	assert.Zero(t, store.Fetches)
	assert.True(t, cache.IsDirty())
}

// Sync is idempotent, and only the first call after a modification writes.
func TestBlockCache__Sync__Idempotent(t *testing.T) {
	cache, store := sdfattest.CreateDefaultCache(16, true, nil, t)

	_, err := cache.Fetch(1, blockcache.ForWrite)
	require.NoError(t, err)

	require.NoError(t, cache.Sync())
	require.NoError(t, cache.Sync())
	assert.Equal(t, 1, store.Flushes)
	assert.EqualValues(t, 1, cache.BlockNumber(), "sync must keep the block resident")
}

// Invalidate drops pending modifications.
func TestBlockCache__Invalidate__DiscardsChanges(t *testing.T) {
	backing := make([]byte, 4*sdfat.BlockSize)
	cache, store := sdfattest.CreateDefaultCache(4, true, backing, t)

	data, err := cache.Fetch(0, blockcache.ForWrite)
	require.NoError(t, err)
	data[0] = 0xFF

	cache.Invalidate()
	require.NoError(t, cache.Sync())
	assert.Zero(t, store.Flushes)
	assert.Zero(t, store.Data[0])
	assert.Equal(t, blockcache.InvalidBlock, cache.BlockNumber())
}

// Blocks fetched as FAT blocks are flagged for mirroring when flushed.
func TestBlockCache__MirrorFAT(t *testing.T) {
	cache, store := sdfattest.CreateDefaultCache(8, true, nil, t)

	_, err := cache.Fetch(1, blockcache.ForWrite|blockcache.MirrorFAT)
	require.NoError(t, err)
	_, err = cache.Fetch(5, blockcache.ForWrite)
	require.NoError(t, err)
	require.NoError(t, cache.Sync())

	assert.Equal(t, 2, store.Flushes)
	assert.Equal(t, 1, store.MirroredFlushes)
}

// A failing fetch leaves the cache empty rather than holding garbage.
func TestBlockCache__Fetch__ErrorEmptiesCache(t *testing.T) {
	failure := errors.New("card removed")
	cache := blockcache.New(
		func(uint32, []byte) error { return failure },
		func(uint32, []byte, bool) error { return nil },
	)

	_, err := cache.Fetch(0, blockcache.ForRead)
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, blockcache.InvalidBlock, cache.BlockNumber())
}
