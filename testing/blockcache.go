// Package testing contains helpers shared by the tests of other packages:
// random images, caches over plain byte slices, and freshly formatted volumes.
package testing

import (
	"crypto/rand"
	"fmt"
	"testing"

	"github.com/dargueta/sdfat"
	"github.com/dargueta/sdfat/file_systems/common/blockcache"
	"github.com/stretchr/testify/require"
)

// BackingStore is the storage under a cache created by [CreateDefaultCache]. It
// counts the callbacks so tests can check when the cache touched storage.
type BackingStore struct {
	Data            []byte
	Fetches         int
	Flushes         int
	MirroredFlushes int
}

// CreateRandomImage creates an image with the given number of 512-byte blocks
// filled with random bytes. It is guaranteed to either return a valid slice or
// fail the test and abort.
func CreateRandomImage(totalBlocks uint, t *testing.T) []byte {
	backingData := make([]byte, sdfat.BlockSize*totalBlocks)

	_, err := rand.Read(backingData)
	require.NoErrorf(t, err, "failed to initialize %d blocks with random bytes", totalBlocks)
	return backingData
}

// CreateDefaultCache creates a block cache with fetch/flush handlers over a
// byte slice.
//
// Arguments:
//
//   - totalBlocks: The number of blocks in the backing storage.
//   - writable: `true` if the storage is writable, `false` otherwise. The
//     handler will fail the test if an attempt is made to write to the storage
//     if this is false.
//   - backingData: Optional. A byte slice of `512 * totalBlocks` bytes. You can
//     pass `nil` for this to get completely random data.
//   - `t`: The testing fixture.
func CreateDefaultCache(
	totalBlocks uint,
	writable bool,
	backingData []byte,
	t *testing.T,
) (*blockcache.BlockCache, *BackingStore) {
	if backingData == nil {
		backingData = CreateRandomImage(totalBlocks, t)
	}
	store := &BackingStore{Data: backingData}

	fetchCallback := func(blockIndex uint32, buffer []byte) error {
		if uint(blockIndex) >= totalBlocks {
			message := fmt.Sprintf(
				"attempted to read outside bounds: block %d not in [0, %d)",
				blockIndex,
				totalBlocks,
			)
			t.Error(message)
			return sdfat.ErrIOFailed.WithMessage(message)
		}

		store.Fetches++
		start := int(blockIndex) * sdfat.BlockSize
		copy(buffer, store.Data[start:start+sdfat.BlockSize])
		return nil
	}

	flushCallback := func(blockIndex uint32, buffer []byte, mirror bool) error {
		if !writable {
			message := fmt.Sprintf(
				"attempted to write %d bytes to block %d of read-only image",
				len(buffer),
				blockIndex,
			)
			t.Error(message)
			return sdfat.ErrNotPermitted.WithMessage(message)
		}
		if uint(blockIndex) >= totalBlocks {
			message := fmt.Sprintf(
				"attempted to write outside bounds: %d not in [0, %d)",
				blockIndex,
				totalBlocks,
			)
			t.Error(message)
			return sdfat.ErrIOFailed.WithMessage(message)
		}

		store.Flushes++
		if mirror {
			store.MirroredFlushes++
		}
		start := int(blockIndex) * sdfat.BlockSize
		copy(store.Data[start:start+sdfat.BlockSize], buffer)
		return nil
	}

	return blockcache.New(fetchCallback, flushCallback), store
}
