// Package blockcache provides a single-block write-back cache. It holds at
// most one block of the backing storage at a time; fetching a different block
// writes the resident one back first if it was modified.
//
// All block indices begin at 0.
package blockcache

import (
	"fmt"
	"math"

	"github.com/dargueta/sdfat"
)

// InvalidBlock is the block number of an empty cache.
const InvalidBlock = uint32(math.MaxUint32)

// FetchBlockCallback is a pointer to a function that writes the contents of a
// single block from the backing storage into `buffer`. `buffer` is always
// [sdfat.BlockSize] bytes.
type FetchBlockCallback func(blockIndex uint32, buffer []byte) error

// FlushBlockCallback is a pointer to a function that writes the contents of the
// given buffer to a block in the backing storage. All guarantees in
// [FetchBlockCallback] apply here too. `mirror` is true if the block was
// fetched with [MirrorFAT], meaning the owner keeps other copies of it.
type FlushBlockCallback func(blockIndex uint32, buffer []byte, mirror bool) error

// Option controls how [BlockCache.Fetch] treats the requested block.
type Option uint8

const (
	// ForRead loads the block if it isn't resident.
	ForRead Option = 0
	// ForWrite loads the block if it isn't resident and marks it dirty.
	ForWrite Option = 1
	// NoRead skips loading. Only meaningful combined with [ForWrite], for
	// callers about to overwrite the whole block.
	NoRead Option = 2
	// ReserveForWrite claims the block for writing without reading it.
	ReserveForWrite = ForWrite | NoRead
	// MirrorFAT marks the block as a FAT block, so that its flush is mirrored.
	MirrorFAT Option = 4
)

type BlockCache struct {
	fetch       FetchBlockCallback
	flush       FlushBlockCallback
	blockNumber uint32
	dirty       bool
	mirror      bool
	data        [sdfat.BlockSize]byte
}

// New creates an empty BlockCache.
func New(fetchCb FetchBlockCallback, flushCb FlushBlockCallback) *BlockCache {
	return &BlockCache{
		fetch:       fetchCb,
		flush:       flushCb,
		blockNumber: InvalidBlock,
	}
}

// BlockNumber gives the index of the resident block, or [InvalidBlock].
func (cache *BlockCache) BlockNumber() uint32 {
	return cache.blockNumber
}

// IsDirty is true if the resident block has been modified since it was last
// written back.
func (cache *BlockCache) IsDirty() bool {
	return cache.dirty
}

// Fetch makes `block` resident and returns its buffer. The slice stays valid
// only until the next Fetch or Invalidate.
func (cache *BlockCache) Fetch(block uint32, option Option) ([]byte, error) {
	if block == InvalidBlock {
		return nil, sdfat.ErrArgumentOutOfRange.WithMessage(
			fmt.Sprintf("block %d can't be cached", block))
	}

	if cache.blockNumber != block {
		err := cache.Sync()
		if err != nil {
			return nil, err
		}

		if option&NoRead == 0 {
			err = cache.fetch(block, cache.data[:])
			if err != nil {
				cache.Invalidate()
				return nil, err
			}
		}
		cache.blockNumber = block
		cache.mirror = false
	}

	if option&ForWrite != 0 {
		cache.dirty = true
	}
	if option&MirrorFAT != 0 {
		cache.mirror = true
	}
	return cache.data[:], nil
}

// Sync writes the resident block back if it's dirty. The block stays resident.
func (cache *BlockCache) Sync() error {
	if !cache.dirty {
		return nil
	}

	err := cache.flush(cache.blockNumber, cache.data[:], cache.mirror)
	if err != nil {
		return err
	}
	cache.dirty = false
	return nil
}

// Invalidate forgets the resident block without writing it back.
func (cache *BlockCache) Invalidate() {
	cache.blockNumber = InvalidBlock
	cache.dirty = false
	cache.mirror = false
}
