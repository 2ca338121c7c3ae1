package driver

import (
	"io"
	"os"

	"github.com/dargueta/sdfat"
	"github.com/dargueta/sdfat/file_systems/fat"
	"github.com/spf13/afero"
)

// File is a drop-in replacement for [os.File] backed by a handle on a FAT
// volume. It implements [afero.File].
type File struct {
	handle       *fat.File
	absolutePath string
	ioFlags      sdfat.IOFlags
}

var _ afero.File = (*File)(nil)

// Handle gives access to the underlying handle.
func (file *File) Handle() *fat.File {
	return file.handle
}

func (file *File) Close() error {
	return file.handle.Close()
}

// Name returns the path the file was opened with, like [os.File.Name].
func (file *File) Name() string {
	return file.absolutePath
}

func (file *File) Read(buffer []byte) (int, error) {
	if file.handle.IsDir() {
		return 0, sdfat.ErrIsADirectory.WithMessage(file.absolutePath)
	}
	return file.handle.Read(buffer)
}

// ReadAt reads from `offset` without changing the file position.
func (file *File) ReadAt(buffer []byte, offset int64) (int, error) {
	if file.handle.IsDir() {
		return 0, sdfat.ErrIsADirectory.WithMessage(file.absolutePath)
	}
	if offset < 0 {
		return 0, sdfat.ErrInvalidArgument.WithMessage("negative offset")
	}
	if offset >= int64(file.handle.Size()) {
		if len(buffer) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}

	saved := file.handle.Position()
	defer file.handle.SetPosition(saved)

	err := file.handle.SeekSet(uint32(offset))
	if err != nil {
		return 0, err
	}

	total := 0
	for total < len(buffer) {
		n, err := file.handle.Read(buffer[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
	}
	if total < len(buffer) {
		return total, io.EOF
	}
	return total, nil
}

func (file *File) Seek(offset int64, whence int) (int64, error) {
	return file.handle.Seek(offset, whence)
}

func (file *File) Write(data []byte) (int, error) {
	return file.handle.Write(data)
}

// WriteAt writes at `offset` without changing the file position. Writing past
// the end of the file fills the gap with zeros.
func (file *File) WriteAt(data []byte, offset int64) (int, error) {
	if file.ioFlags.Append() {
		return 0, sdfat.ErrInvalidArgument.WithMessage(
			"WriteAt isn't allowed on a file opened for appending")
	}
	if offset < 0 {
		return 0, sdfat.ErrInvalidArgument.WithMessage("negative offset")
	}
	if offset+int64(len(data)) > int64(fat.MaxFileSize) {
		return 0, sdfat.ErrFileTooLarge.WithMessage(file.absolutePath)
	}

	saved := file.handle.Position()
	err := file.extendTo(offset)
	if err != nil {
		return 0, err
	}
	err = file.handle.SeekSet(uint32(offset))
	if err != nil {
		return 0, err
	}

	n, err := file.handle.Write(data)
	if restoreErr := file.handle.SetPosition(saved); err == nil {
		err = restoreErr
	}
	return n, err
}

func (file *File) WriteString(s string) (int, error) {
	return file.Write([]byte(s))
}

// extendTo zero-fills the file up to `size` bytes. The position is left at the
// end of the file.
func (file *File) extendTo(size int64) error {
	current := int64(file.handle.Size())
	if size <= current {
		return nil
	}

	err := file.handle.SeekSet(uint32(current))
	if err != nil {
		return err
	}

	zeros := make([]byte, sdfat.BlockSize)
	for current < size {
		chunk := size - current
		if chunk > int64(len(zeros)) {
			chunk = int64(len(zeros))
		}
		n, err := file.handle.Write(zeros[:chunk])
		current += int64(n)
		if err != nil {
			return err
		}
	}
	return nil
}

// Truncate changes the size of the file. Growing it fills the new space with
// zeros.
func (file *File) Truncate(size int64) error {
	if size < 0 {
		return sdfat.ErrInvalidArgument.WithMessage("negative size")
	}
	if size > int64(fat.MaxFileSize) {
		return sdfat.ErrFileTooLarge.WithMessage(file.absolutePath)
	}
	if !file.handle.IsFile() || !file.ioFlags.Write() {
		return sdfat.ErrInvalidFileDescriptor.WithMessage("file is not open for writing")
	}

	if size <= int64(file.handle.Size()) {
		return file.handle.Truncate(uint32(size))
	}

	saved := file.handle.Position()
	err := file.extendTo(size)
	if err != nil {
		return err
	}
	return file.handle.SetPosition(saved)
}

func (file *File) Sync() error {
	return file.handle.Sync()
}

// Stat describes the file. The name is the one stored on disk, which may
// differ in case from the path it was opened with.
func (file *File) Stat() (os.FileInfo, error) {
	info, err := statHandle(file.handle)
	if err != nil {
		return nil, err
	}
	return info, nil
}

// Readdir returns up to `count` entries of the directory, continuing where the
// previous call left off. If `count` is 0 or less, all remaining entries are
// returned and reaching the end isn't an error.
func (file *File) Readdir(count int) ([]os.FileInfo, error) {
	if !file.handle.IsDir() {
		return nil, sdfat.ErrNotADirectory.WithMessage(file.absolutePath)
	}

	infos := make([]os.FileInfo, 0)
	for count <= 0 || len(infos) < count {
		entry, _, err := file.handle.ReadDirEntry()
		if err == io.EOF {
			break
		}
		if err != nil {
			return infos, err
		}
		infos = append(infos, newFileInfoFromDirent(entry))
	}

	if count > 0 && len(infos) == 0 {
		return infos, io.EOF
	}
	return infos, nil
}

// Readdirnames is like [File.Readdir] but only returns the names.
func (file *File) Readdirnames(count int) ([]string, error) {
	infos, err := file.Readdir(count)
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name()
	}
	return names, err
}
