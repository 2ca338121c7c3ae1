//go:build unix

package blockdev

import (
	"fmt"

	"github.com/dargueta/sdfat"
	"golang.org/x/sys/unix"
)

// rawDevice talks to a device node or image file with positioned reads and
// writes, so no seek state is shared between calls.
type rawDevice struct {
	fd          int
	path        string
	totalBlocks uint32
}

// OpenDevice opens a block device node or image file. Its size is taken from
// the end offset of the file.
func OpenDevice(path string, writable bool) (Device, error) {
	mode := unix.O_RDONLY
	if writable {
		mode = unix.O_RDWR
	}

	fd, err := unix.Open(path, mode|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, sdfat.ErrIOFailed.Wrap(fmt.Errorf("open %q: %w", path, err))
	}

	end, err := unix.Seek(fd, 0, 2)
	if err != nil {
		unix.Close(fd)
		return nil, sdfat.ErrIOFailed.Wrap(fmt.Errorf("size of %q: %w", path, err))
	}

	blocks := end / sdfat.BlockSize
	if blocks > 0xFFFFFFFF {
		blocks = 0xFFFFFFFF
	}
	return &rawDevice{fd: fd, path: path, totalBlocks: uint32(blocks)}, nil
}

func (dev *rawDevice) TotalBlocks() uint32 {
	return dev.totalBlocks
}

func (dev *rawDevice) checkBounds(index uint32, length int) error {
	if length == 0 || length%sdfat.BlockSize != 0 {
		return sdfat.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("transfer of %d bytes is not a whole number of blocks", length))
	}
	if uint64(index)+uint64(length/sdfat.BlockSize) > uint64(dev.totalBlocks) {
		return sdfat.ErrArgumentOutOfRange.WithMessage(
			fmt.Sprintf(
				"blocks [%d, %d) not in [0, %d) on %s",
				index,
				uint64(index)+uint64(length/sdfat.BlockSize),
				dev.totalBlocks,
				dev.path))
	}
	return nil
}

func (dev *rawDevice) ReadBlock(index uint32, dst []byte) error {
	return dev.ReadBlocks(index, dst[:sdfat.BlockSize])
}

func (dev *rawDevice) WriteBlock(index uint32, src []byte) error {
	return dev.WriteBlocks(index, src[:sdfat.BlockSize])
}

func (dev *rawDevice) ReadBlocks(index uint32, dst []byte) error {
	if err := dev.checkBounds(index, len(dst)); err != nil {
		return err
	}

	offset := int64(index) * sdfat.BlockSize
	for done := 0; done < len(dst); {
		n, err := unix.Pread(dev.fd, dst[done:], offset+int64(done))
		if err != nil {
			return sdfat.ErrIOFailed.Wrap(err)
		}
		if n == 0 {
			return sdfat.ErrIOFailed.WithMessage(
				fmt.Sprintf("unexpected end of %s at byte %d", dev.path, offset+int64(done)))
		}
		done += n
	}
	return nil
}

func (dev *rawDevice) WriteBlocks(index uint32, src []byte) error {
	if err := dev.checkBounds(index, len(src)); err != nil {
		return err
	}

	offset := int64(index) * sdfat.BlockSize
	for done := 0; done < len(src); {
		n, err := unix.Pwrite(dev.fd, src[done:], offset+int64(done))
		if err != nil {
			return sdfat.ErrIOFailed.Wrap(err)
		}
		done += n
	}
	return nil
}

func (dev *rawDevice) Sync() error {
	if err := unix.Fsync(dev.fd); err != nil {
		return sdfat.ErrIOFailed.Wrap(err)
	}
	return nil
}

func (dev *rawDevice) Close() error {
	return unix.Close(dev.fd)
}
