package driver

import (
	"errors"
	"os"
	"time"

	"github.com/dargueta/sdfat"
	"github.com/dargueta/sdfat/file_systems/fat"
	"github.com/spf13/afero"
)

// Fs exposes a volume through the [afero.Fs] interface. FAT has no owners or
// permission bits; the write bits of a mode only control the read-only
// attribute.
type Fs struct {
	driver *Driver
}

var _ afero.Fs = (*Fs)(nil)

// NewFs creates an [afero.Fs] for the volume the driver works on. It shares the
// driver's working directory.
func NewFs(driver *Driver) *Fs {
	return &Fs{driver: driver}
}

func (fsys *Fs) Name() string {
	return "sdfat"
}

// convertFlags turns [os.OpenFile] flags into [sdfat.IOFlags].
func convertFlags(flag int) sdfat.IOFlags {
	var flags sdfat.IOFlags
	switch flag & (os.O_RDONLY | os.O_WRONLY | os.O_RDWR) {
	case os.O_WRONLY:
		flags = sdfat.O_WRONLY
	case os.O_RDWR:
		flags = sdfat.O_RDWR
	default:
		flags = sdfat.O_RDONLY
	}

	if flag&os.O_APPEND != 0 {
		flags |= sdfat.O_APPEND
	}
	if flag&os.O_CREATE != 0 {
		flags |= sdfat.O_CREATE
	}
	if flag&os.O_EXCL != 0 {
		flags |= sdfat.O_EXCL
	}
	if flag&os.O_SYNC != 0 {
		flags |= sdfat.O_SYNC
	}
	if flag&os.O_TRUNC != 0 {
		flags |= sdfat.O_TRUNC
	}
	return flags
}

func pathError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &os.PathError{Op: op, Path: path, Err: err}
}

func (fsys *Fs) Create(name string) (afero.File, error) {
	return fsys.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o666)
}

func (fsys *Fs) Open(name string) (afero.File, error) {
	return fsys.OpenFile(name, os.O_RDONLY, 0)
}

// OpenFile opens a file or directory. The write bits of `perm` decide whether a
// newly created file is read-only.
func (fsys *Fs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	absPath := fsys.driver.NormalizePath(name)
	flags := convertFlags(flag)

	existed := true
	if flags.Create() {
		existed = fsys.driver.Exists(absPath)
	}

	handle, err := fsys.driver.OpenFile(absPath, flags)
	if err != nil {
		return nil, pathError("open", name, err)
	}

	if !existed && perm&0o222 == 0 {
		err = handle.SetAttributes(fat.AttrReadOnly | fat.AttrArchived)
		if err != nil {
			handle.Close()
			return nil, pathError("open", name, err)
		}
	}

	return &File{
		handle:       handle,
		absolutePath: absPath,
		ioFlags:      flags & sdfat.O_ACCMODE,
	}, nil
}

func (fsys *Fs) Mkdir(name string, perm os.FileMode) error {
	return pathError("mkdir", name, fsys.driver.Mkdir(name, false))
}

func (fsys *Fs) MkdirAll(path string, perm os.FileMode) error {
	return pathError("mkdir", path, fsys.driver.Mkdir(path, true))
}

// Remove deletes a file or an empty directory.
func (fsys *Fs) Remove(name string) error {
	info, err := fsys.driver.Stat(name)
	if err != nil {
		return pathError("remove", name, err)
	}
	if info.IsDir() {
		return pathError("remove", name, fsys.driver.Rmdir(name))
	}
	return pathError("remove", name, fsys.driver.Remove(name))
}

// RemoveAll deletes `path` and everything in it. It's not an error if `path`
// doesn't exist.
func (fsys *Fs) RemoveAll(path string) error {
	err := fsys.driver.RemoveAll(path)
	if errors.Is(err, sdfat.ErrNotFound) {
		return nil
	}
	return pathError("removeall", path, err)
}

func (fsys *Fs) Rename(oldname, newname string) error {
	err := fsys.driver.Rename(oldname, newname)
	if err != nil {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: err}
	}
	return nil
}

func (fsys *Fs) Stat(name string) (os.FileInfo, error) {
	info, err := fsys.driver.Stat(name)
	if err != nil {
		return nil, pathError("stat", name, err)
	}
	return info, nil
}

// Chmod sets the read-only attribute if `mode` has no write bits, and clears it
// otherwise. It can't be changed on the root directory.
func (fsys *Fs) Chmod(name string, mode os.FileMode) error {
	f, err := fsys.driver.Open(name)
	if err != nil {
		return pathError("chmod", name, err)
	}
	defer f.Close()

	entry, err := f.DirEntry()
	if err != nil {
		return pathError("chmod", name, err)
	}

	attributes := entry.AttributeFlags &^ fat.AttrReadOnly
	if mode&0o222 == 0 {
		attributes |= fat.AttrReadOnly
	}
	return pathError("chmod", name, f.SetAttributes(attributes))
}

// Chown always fails; FAT doesn't record owners.
func (fsys *Fs) Chown(name string, uid, gid int) error {
	return pathError("chown", name, sdfat.ErrNotSupported.WithMessage("FAT has no file owners"))
}

// Chtimes sets the access and modification times. FAT only stores the date of
// the last access, and the modification time to two seconds.
func (fsys *Fs) Chtimes(name string, atime time.Time, mtime time.Time) error {
	f, err := fsys.driver.Open(name)
	if err != nil {
		return pathError("chtimes", name, err)
	}
	defer f.Close()

	err = f.SetTimestamp(fat.TimestampAccess, atime)
	if err == nil {
		err = f.SetTimestamp(fat.TimestampWrite, mtime)
	}
	return pathError("chtimes", name, err)
}
