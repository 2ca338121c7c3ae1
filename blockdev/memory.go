package blockdev

import (
	"fmt"
	"io"

	"github.com/dargueta/sdfat"
	"github.com/xaionaro-go/bytesextra"
)

// Memory is a fixed-size block device held entirely in RAM.
type Memory struct {
	*Stream
}

// NewMemory creates a zero-filled in-memory device of `totalBlocks` blocks.
func NewMemory(totalBlocks uint32) *Memory {
	return &Memory{
		Stream: NewStream(
			bytesextra.NewReadWriteSeeker(make([]byte, int(totalBlocks)*sdfat.BlockSize)),
			totalBlocks,
			0,
		),
	}
}

// NewMemoryFromBytes creates a device over an existing image. Writes to the
// device modify `image`.
func NewMemoryFromBytes(image []byte) (*Memory, error) {
	if len(image) == 0 || len(image)%sdfat.BlockSize != 0 {
		return nil, sdfat.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"image size must be a nonzero multiple of %d, got %d",
				sdfat.BlockSize,
				len(image)))
	}
	return &Memory{
		Stream: NewStream(
			bytesextra.NewReadWriteSeeker(image),
			uint32(len(image)/sdfat.BlockSize),
			0,
		),
	}, nil
}

// Bytes returns a copy of the entire device.
func (m *Memory) Bytes() ([]byte, error) {
	buffer := make([]byte, int(m.totalBlocks)*sdfat.BlockSize)
	if _, err := m.stream.Seek(0, io.SeekStart); err != nil {
		return nil, sdfat.ErrIOFailed.Wrap(err)
	}
	if _, err := io.ReadFull(m.stream, buffer); err != nil {
		return nil, sdfat.ErrIOFailed.Wrap(err)
	}
	return buffer, nil
}
