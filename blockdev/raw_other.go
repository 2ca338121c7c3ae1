//go:build !unix

package blockdev

import (
	"os"

	"github.com/dargueta/sdfat"
)

// OpenDevice opens an image file as a block device. Its size is taken from the
// end offset of the file.
func OpenDevice(path string, writable bool) (Device, error) {
	mode := os.O_RDONLY
	if writable {
		mode = os.O_RDWR
	}

	file, err := os.OpenFile(path, mode, 0)
	if err != nil {
		return nil, sdfat.ErrIOFailed.Wrap(err)
	}

	totalBlocks, err := DetermineBlockCount(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	return NewStream(file, totalBlocks, 0), nil
}
