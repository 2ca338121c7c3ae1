package sdfat

// BlockSize is the only block size the engine works with.
const BlockSize = 512

// BlockDevice is the storage a FAT volume lives on: a linear array of 512-byte
// blocks addressed by 32-bit index.
//
// Indices passed in are absolute device blocks; callers add any partition
// offset themselves. `dst` and `src` are always exactly [BlockSize] bytes.
// Implementations must not retain the slices after returning.
type BlockDevice interface {
	ReadBlock(index uint32, dst []byte) error
	WriteBlock(index uint32, src []byte) error
}

// MultiBlockDevice is implemented by devices that can stream several
// consecutive blocks in one transfer. `dst` and `src` are a nonzero multiple of
// [BlockSize] bytes.
type MultiBlockDevice interface {
	BlockDevice
	ReadBlocks(index uint32, dst []byte) error
	WriteBlocks(index uint32, src []byte) error
}

// BusyDevice is implemented by devices that complete writes asynchronously and
// can report whether one is still in progress.
type BusyDevice interface {
	IsBusy() bool
}
