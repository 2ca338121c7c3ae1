// Package driver works with a mounted FAT volume by path, the way an
// application would, and adapts it to the [afero.Fs] interface.
package driver

import (
	"errors"
	"fmt"
	posixpath "path"
	"path/filepath"

	"github.com/dargueta/sdfat"
	"github.com/dargueta/sdfat/file_systems/fat"
)

// Driver resolves paths against a working directory on a single volume.
//
// It isn't safe for concurrent use.
type Driver struct {
	vol            *fat.Volume
	workingDirPath string
}

// New creates a [Driver] whose working directory is the root of `vol`.
func New(vol *fat.Volume) *Driver {
	return &Driver{
		vol:            vol,
		workingDirPath: "/",
	}
}

func (driver *Driver) Volume() *fat.Volume {
	return driver.vol
}

// NormalizePath converts `path` to a clean absolute path, resolving relative
// paths against the working directory.
func (driver *Driver) NormalizePath(path string) string {
	path = posixpath.Clean(filepath.ToSlash(path))
	if path == "." {
		return driver.workingDirPath
	}
	if posixpath.IsAbs(path) {
		return path
	}
	return posixpath.Join(driver.workingDirPath, path)
}

// OpenFile opens a file or directory. See [fat.File.Open] for the meaning of
// `flags`.
func (driver *Driver) OpenFile(path string, flags sdfat.IOFlags) (*fat.File, error) {
	absPath := driver.NormalizePath(path)
	f, err := driver.vol.Open(absPath, flags)
	if err != nil {
		return nil, fmt.Errorf("can't open %q: %w", absPath, err)
	}
	return f, nil
}

// Open opens a file or directory for reading.
func (driver *Driver) Open(path string) (*fat.File, error) {
	return driver.OpenFile(path, sdfat.O_RDONLY)
}

// Create creates a file and opens it for reading and writing. It fails if the
// file already exists.
func (driver *Driver) Create(path string) (*fat.File, error) {
	return driver.OpenFile(path, sdfat.O_RDWR|sdfat.O_CREATE|sdfat.O_EXCL)
}

// Exists is true if `path` names a file or directory.
func (driver *Driver) Exists(path string) bool {
	root, err := driver.vol.OpenRoot()
	if err != nil {
		return false
	}
	defer root.Close()
	return root.Exists(driver.NormalizePath(path))
}

// Chdir changes the working directory.
func (driver *Driver) Chdir(path string) error {
	absPath := driver.NormalizePath(path)
	dir, err := driver.Open(absPath)
	if err != nil {
		return err
	}
	defer dir.Close()

	if !dir.IsDir() {
		return sdfat.ErrNotADirectory.WithMessage(absPath)
	}
	driver.workingDirPath = absPath
	return nil
}

// Cwd returns the working directory as an absolute path.
func (driver *Driver) Cwd() string {
	return driver.workingDirPath
}

// Getwd returns the working directory as an absolute path. The error will always
// be nil; it's only there for compatibility with [os.Getwd].
func (driver *Driver) Getwd() (string, error) {
	return driver.workingDirPath, nil
}

// Stat returns information about a file or directory.
func (driver *Driver) Stat(path string) (*FileInfo, error) {
	f, err := driver.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return statHandle(f)
}

// ReadDir lists the entries of a directory, in the order they're stored.
func (driver *Driver) ReadDir(path string) ([]*FileInfo, error) {
	dir, err := driver.Open(path)
	if err != nil {
		return nil, err
	}
	defer dir.Close()

	entries, err := dir.ReadDir()
	if err != nil {
		return nil, err
	}

	infos := make([]*FileInfo, len(entries))
	for i := range entries {
		infos[i] = newFileInfoFromListing(&entries[i])
	}
	return infos, nil
}

// Mkdir creates a directory. With `parents` set any missing directories along
// the way are created too, and it's not an error if the directory already
// exists.
func (driver *Driver) Mkdir(path string, parents bool) error {
	absPath := driver.NormalizePath(path)
	if absPath == "/" {
		if parents {
			return nil
		}
		return sdfat.ErrExists.WithMessage("/")
	}

	if parents {
		existing, err := driver.Open(absPath)
		if err == nil {
			defer existing.Close()
			if existing.IsDir() {
				return nil
			}
			return sdfat.ErrExists.WithMessage(
				fmt.Sprintf("%q exists and is not a directory", absPath))
		}
		if !errors.Is(err, sdfat.ErrNotFound) {
			return err
		}
	}

	root, err := driver.vol.OpenRoot()
	if err != nil {
		return err
	}
	defer root.Close()

	dir, err := root.Mkdir(absPath, parents)
	if err != nil {
		return fmt.Errorf("can't create directory %q: %w", absPath, err)
	}
	return dir.Close()
}

// Remove deletes a file. Directories must be removed with [Driver.Rmdir].
func (driver *Driver) Remove(path string) error {
	f, err := driver.OpenFile(path, sdfat.O_WRONLY)
	if err != nil {
		return err
	}
	err = f.Remove()
	if err != nil {
		f.Close()
		return err
	}
	return nil
}

// Rmdir deletes an empty directory.
func (driver *Driver) Rmdir(path string) error {
	dir, err := driver.Open(path)
	if err != nil {
		return err
	}
	if dir.IsRoot() {
		dir.Close()
		return sdfat.ErrPermissionDenied.WithMessage("the root directory can't be removed")
	}
	err = dir.Rmdir()
	if err != nil {
		dir.Close()
		return err
	}
	return nil
}

// RemoveAll deletes a file, or a directory and everything in it. Removing the
// root directory only deletes its contents.
func (driver *Driver) RemoveAll(path string) error {
	absPath := driver.NormalizePath(path)
	f, err := driver.Open(absPath)
	if err != nil {
		return err
	}

	if f.IsFile() {
		f.Close()
		return driver.Remove(absPath)
	}

	err = f.RemoveAll()
	if f.IsRoot() || err != nil {
		f.Close()
	}
	return err
}

// Rename moves a file or directory to a new path. The destination must not
// exist.
func (driver *Driver) Rename(oldPath, newPath string) error {
	oldAbsPath := driver.NormalizePath(oldPath)
	newAbsPath := driver.NormalizePath(newPath)

	f, err := driver.Open(oldAbsPath)
	if err != nil {
		return err
	}
	defer f.Close()

	root, err := driver.vol.OpenRoot()
	if err != nil {
		return err
	}
	defer root.Close()

	err = f.Rename(root, newAbsPath)
	if err != nil {
		return fmt.Errorf("can't rename %q to %q: %w", oldAbsPath, newAbsPath, err)
	}
	return nil
}

// Truncate shrinks a file to `size` bytes.
func (driver *Driver) Truncate(path string, size uint32) error {
	f, err := driver.OpenFile(path, sdfat.O_WRONLY)
	if err != nil {
		return err
	}
	err = f.Truncate(size)
	closeErr := f.Close()
	if err != nil {
		return err
	}
	return closeErr
}

// ReadFile returns the entire contents of a file.
func (driver *Driver) ReadFile(path string) ([]byte, error) {
	f, err := driver.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !f.IsFile() {
		return nil, sdfat.ErrIsADirectory.WithMessage(driver.NormalizePath(path))
	}

	buffer := make([]byte, f.Size())
	if len(buffer) == 0 {
		return buffer, nil
	}
	n, err := f.Read(buffer)
	if err != nil {
		return nil, err
	}
	return buffer[:n], nil
}

// WriteFile sets the contents of a file to the given data, creating it if
// necessary.
func (driver *Driver) WriteFile(path string, data []byte) error {
	f, err := driver.OpenFile(path, sdfat.O_WRONLY|sdfat.O_CREATE|sdfat.O_TRUNC)
	if err != nil {
		return err
	}

	_, err = f.Write(data)
	closeErr := f.Close()
	if err != nil {
		return err
	}
	return closeErr
}
