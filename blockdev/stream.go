// Package blockdev provides [sdfat.BlockDevice] implementations backed by
// streams, memory, and raw operating system devices.
package blockdev

import (
	"fmt"
	"io"

	"github.com/dargueta/sdfat"
)

// Device is a block device that knows its own size and holds resources that
// must be released.
type Device interface {
	sdfat.MultiBlockDevice
	TotalBlocks() uint32
	Sync() error
	Close() error
}

// Stream is an abstraction layer around a stream to make it look like a block
// device, e.g. a file that can only be read from or written to in multiples of
// 512 bytes.
type Stream struct {
	// StartOffset is an offset from the beginning of the stream, in bytes, that
	// will be considered the beginning of block 0 for the device. This is useful
	// for skipping over headers of container formats.
	StartOffset int64
	totalBlocks uint32
	stream      io.ReadWriteSeeker
}

// NewStream creates a [Stream] over `stream` with `totalBlocks` blocks starting
// `startOffset` bytes into it.
func NewStream(stream io.ReadWriteSeeker, totalBlocks uint32, startOffset int64) *Stream {
	return &Stream{
		StartOffset: startOffset,
		totalBlocks: totalBlocks,
		stream:      stream,
	}
}

// DetermineBlockCount gives the total number of blocks in a stream, rounded down
// to the nearest block.
func DetermineBlockCount(stream io.Seeker) (uint32, error) {
	offset, err := stream.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, sdfat.ErrIOFailed.Wrap(err)
	}
	blocks := offset / sdfat.BlockSize
	if blocks > 0xFFFFFFFF {
		return 0, sdfat.ErrFileTooLarge.WithMessage(
			fmt.Sprintf("%d blocks can't be addressed with 32 bits", blocks))
	}
	return uint32(blocks), nil
}

func (device *Stream) TotalBlocks() uint32 {
	return device.totalBlocks
}

// CheckIOBounds checks to see if `dataLength` bytes can be read from or written
// to the device, starting at `index`. If the bounds check fails, it returns an
// error indicating exactly what went wrong.
func (device *Stream) CheckIOBounds(index uint32, dataLength int) error {
	if dataLength == 0 || dataLength%sdfat.BlockSize != 0 {
		return sdfat.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"data must be a nonzero multiple of the block size (%d B), got %d",
				sdfat.BlockSize,
				dataLength))
	}

	dataSizeInBlocks := uint64(dataLength / sdfat.BlockSize)
	if uint64(index)+dataSizeInBlocks > uint64(device.totalBlocks) {
		return sdfat.ErrArgumentOutOfRange.WithMessage(
			fmt.Sprintf(
				"block %d plus %d blocks of data extends past end of device (%d blocks)",
				index,
				dataSizeInBlocks,
				device.totalBlocks))
	}
	return nil
}

// seekToBlock positions the stream pointer at the byte offset where the given
// block starts.
func (device *Stream) seekToBlock(index uint32) error {
	offset := device.StartOffset + int64(index)*sdfat.BlockSize
	_, err := device.stream.Seek(offset, io.SeekStart)
	if err != nil {
		return sdfat.ErrIOFailed.Wrap(err)
	}
	return nil
}

func (device *Stream) ReadBlock(index uint32, dst []byte) error {
	return device.ReadBlocks(index, dst[:sdfat.BlockSize])
}

func (device *Stream) WriteBlock(index uint32, src []byte) error {
	return device.WriteBlocks(index, src[:sdfat.BlockSize])
}

// ReadBlocks fills `dst` with consecutive blocks beginning at `index`.
func (device *Stream) ReadBlocks(index uint32, dst []byte) error {
	err := device.CheckIOBounds(index, len(dst))
	if err != nil {
		return err
	}

	err = device.seekToBlock(index)
	if err != nil {
		return err
	}

	_, err = io.ReadFull(device.stream, dst)
	if err != nil {
		return sdfat.ErrIOFailed.Wrap(err)
	}
	return nil
}

// WriteBlocks writes `src` to consecutive blocks beginning at `index`.
func (device *Stream) WriteBlocks(index uint32, src []byte) error {
	err := device.CheckIOBounds(index, len(src))
	if err != nil {
		return err
	}

	err = device.seekToBlock(index)
	if err != nil {
		return err
	}

	n, err := device.stream.Write(src)
	if err != nil {
		return sdfat.ErrIOFailed.Wrap(err)
	}
	if n != len(src) {
		return sdfat.ErrIOFailed.WithMessage(
			fmt.Sprintf("short write: %d of %d bytes", n, len(src)))
	}
	return nil
}

// Sync flushes the underlying stream if it supports it.
func (device *Stream) Sync() error {
	if syncer, ok := device.stream.(interface{ Sync() error }); ok {
		if err := syncer.Sync(); err != nil {
			return sdfat.ErrIOFailed.Wrap(err)
		}
	}
	return nil
}

// Close closes the underlying stream if it supports it.
func (device *Stream) Close() error {
	if closer, ok := device.stream.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
