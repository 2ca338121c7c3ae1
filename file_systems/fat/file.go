package fat

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/dargueta/sdfat"
	"github.com/dargueta/sdfat/file_systems/common/blockcache"
)

// FileType is the kind of object a [File] refers to.
type FileType uint8

const (
	TypeClosed FileType = iota
	TypeNormal
	// TypeRootFixed is the root directory of a FAT12/16 volume, which lives in a
	// fixed region between the FATs and the data area.
	TypeRootFixed
	// TypeRoot32 is the root directory of a FAT32 volume, an ordinary cluster
	// chain.
	TypeRoot32
	TypeSubdir
)

// MaxDirDepth limits how deeply recursive operations descend into nested
// directories.
const MaxDirDepth = 32

// maxDirBlocks is the largest directory we'll open: 65536 entries.
const maxDirBlocks = 4096

// maxDirEntries is the most entries a directory may be grown to hold.
const maxDirEntries = 0xFFFF

// MaxFileSize is the largest size a file can have, 4 GiB minus one byte.
const MaxFileSize = math.MaxUint32

// File is a handle to a file or directory on a [Volume]. The zero value is a
// closed handle.
//
// Several handles may refer to the same entry, but changes made through one
// aren't seen by the others until they're reopened.
type File struct {
	vol      *Volume
	fileType FileType
	flags    sdfat.IOFlags
	// dirty is set when the directory entry needs to be rewritten by Sync.
	dirty      bool
	writeError bool

	curPosition  uint32
	curCluster   uint32
	firstCluster uint32
	fileSize     uint32

	// Location of this file's entry in its parent directory.
	dirBlock uint32
	dirIndex uint8
}

func (f *File) IsOpen() bool    { return f.fileType != TypeClosed }
func (f *File) IsFile() bool    { return f.fileType == TypeNormal }
func (f *File) IsSubdir() bool  { return f.fileType == TypeSubdir }
func (f *File) IsDir() bool     { return f.fileType >= TypeRootFixed }
func (f *File) IsRoot() bool    { return f.fileType == TypeRootFixed || f.fileType == TypeRoot32 }
func (f *File) Type() FileType  { return f.fileType }
func (f *File) Volume() *Volume { return f.vol }

// Size is the length of the file in bytes. For directories it's the space
// their entries occupy.
func (f *File) Size() uint32 { return f.fileSize }

// FirstCluster is the start of the file's cluster chain, or 0 if it has none.
func (f *File) FirstCluster() uint32 { return f.firstCluster }

// Offset is the current read/write position.
func (f *File) Offset() uint32 { return f.curPosition }

func (f *File) Flags() sdfat.IOFlags { return f.flags }

// WriteError is set when a write or sync on this handle fails, and stays set
// until cleared.
func (f *File) WriteError() bool { return f.writeError }
func (f *File) ClearWriteError() { f.writeError = false }

func errClosed() error {
	return sdfat.ErrInvalidFileDescriptor.WithMessage("file is not open")
}

// clone makes an independent read-only handle to the same directory.
func (f *File) clone() *File {
	c := *f
	c.flags = sdfat.O_RDONLY
	c.dirty = false
	c.writeError = false
	return &c
}

// OpenRoot opens the volume's root directory for reading.
func (vol *Volume) OpenRoot() (*File, error) {
	f := &File{}
	err := f.openRoot(vol)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) openRoot(vol *Volume) error {
	*f = File{vol: vol, flags: sdfat.O_RDONLY}

	if vol.fatType == FAT32 {
		f.fileType = TypeRoot32
		f.firstCluster = vol.rootDirStart
		err := f.setDirSize()
		if err != nil {
			f.fileType = TypeClosed
			return err
		}
	} else {
		f.fileType = TypeRootFixed
		f.fileSize = DirentSize * uint32(vol.rootDirEntryCount)
	}
	return nil
}

// Open opens a file by path, relative to the root directory.
func (vol *Volume) Open(path string, flags sdfat.IOFlags) (*File, error) {
	root, err := vol.OpenRoot()
	if err != nil {
		return nil, err
	}
	return root.Open(path, flags)
}

// Open opens a file by path relative to the directory `dir`. A leading slash
// resolves the path from the root directory instead. Every directory along the
// way must already exist.
//
// With [sdfat.O_CREATE] and [sdfat.O_WRONLY] the last component is created if
// it doesn't exist; [sdfat.O_EXCL] makes it an error if it does.
func (dir *File) Open(path string, flags sdfat.IOFlags) (*File, error) {
	if !dir.IsOpen() {
		return nil, errClosed()
	}

	if strings.Trim(path, "/") == "" {
		if path == "" {
			return nil, sdfat.ErrInvalidArgument.WithMessage("empty path")
		}
		if flags&(sdfat.O_WRONLY|sdfat.O_TRUNC|sdfat.O_CREATE) != 0 {
			return nil, sdfat.ErrIsADirectory.WithMessage("the root directory can't be opened for writing")
		}
		return dir.vol.OpenRoot()
	}

	parent, component, err := dir.walk(path, false)
	if err != nil {
		return nil, err
	}

	f := &File{}
	name, err := ParseShortName(component)
	if err == nil {
		err = f.openInDir(parent, name, flags)
	}

	closeErr := parent.Close()
	if err != nil {
		return nil, err
	}
	if closeErr != nil {
		f.Close()
		return nil, closeErr
	}
	return f, nil
}

// Exists is true if `path` names a file or directory, relative to `dir`.
func (dir *File) Exists(path string) bool {
	f, err := dir.Open(path, sdfat.O_RDONLY)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// walk resolves every component of `path` but the last, returning a handle to
// the directory that should contain it and the last component. Missing
// intermediate directories are created if `createParents` is set.
//
// The returned handle is never `dir` itself; the caller must close it.
func (dir *File) walk(path string, createParents bool) (*File, string, error) {
	if !dir.IsDir() {
		return nil, "", sdfat.ErrNotADirectory.WithMessage(
			fmt.Sprintf("can't resolve %q from a file", path))
	}

	current := dir.clone()
	if strings.HasPrefix(path, "/") {
		err := current.openRoot(dir.vol)
		if err != nil {
			return nil, "", err
		}
		path = strings.TrimLeft(path, "/")
	}

	for {
		component, rest := nextComponent(path)
		if rest == "" {
			return current, component, nil
		}

		name, err := ParseShortName(component)
		if err != nil {
			current.Close()
			return nil, "", err
		}

		next := &File{}
		err = next.openInDir(current, name, sdfat.O_RDONLY)
		if errors.Is(err, sdfat.ErrNotFound) && createParents {
			err = next.mkdirIn(current, name)
		}

		closeErr := current.Close()
		if err == nil {
			err = closeErr
		}
		if err == nil && !next.IsDir() {
			err = sdfat.ErrNotADirectory.WithMessage(component)
		}
		if err != nil {
			next.Close()
			return nil, "", err
		}

		current = next
		path = rest
	}
}

// openInDir opens the entry called `name` in `dir`, creating it if allowed by
// `flags`.
func (f *File) openInDir(dir *File, name ShortName, flags sdfat.IOFlags) error {
	if f.IsOpen() {
		return sdfat.ErrInvalidFileDescriptor.WithMessage("handle is already open")
	}
	if !dir.IsDir() {
		return sdfat.ErrNotADirectory.WithMessage(
			fmt.Sprintf("can't open %q inside a file", name.String()))
	}

	vol := dir.vol
	err := dir.refreshDirSize()
	if err != nil {
		return err
	}
	dir.Rewind()

	var emptyFound, found bool
	var emptyBlock, block uint32
	var emptyIndex, index uint8

	for dir.curPosition < dir.fileSize {
		index = uint8((dir.curPosition >> 5) & 0xF)
		entry, entryBlock, err := dir.readDirCache()
		if err != nil {
			return err
		}

		if entry.IsFree() || entry.IsDeleted() {
			// Remember the first empty slot in case we need to create the entry.
			if !emptyFound {
				emptyFound = true
				emptyBlock = entryBlock
				emptyIndex = index
			}
			if entry.IsFree() {
				break
			}
		} else if entry.IsFileOrSubdir() && entry.ShortName() == name {
			found = true
			block = entryBlock
			break
		}
	}

	if found {
		if flags.Create() && flags.Exclusive() {
			return sdfat.ErrExists.WithMessage(name.String())
		}
		return f.openCachedEntry(vol, block, index, flags)
	}

	if !flags.Create() || !flags.Write() {
		return sdfat.ErrNotFound.WithMessage(name.String())
	}

	if emptyFound {
		block = emptyBlock
		index = emptyIndex
	} else {
		if dir.fileType == TypeRootFixed {
			return sdfat.ErrNoSpaceOnDevice.WithMessage(
				fmt.Sprintf("root directory is full (%d entries)", vol.rootDirEntryCount))
		}
		block, err = dir.addDirCluster()
		if err != nil {
			return err
		}
		index = 0
	}

	buffer, err := vol.CacheFetch(block, blockcache.ForWrite)
	if err != nil {
		return err
	}

	date, time := DefaultDate, DefaultTime
	if vol.dateTime != nil {
		date, time = vol.dateTime()
	}
	entry := RawDirent{
		CreatedDate:      date,
		CreatedTime:      time,
		LastAccessedDate: date,
		LastModifiedDate: date,
		LastModifiedTime: time,
	}
	entry.SetShortName(name)
	entry.Encode(direntSlice(buffer, index))

	err = vol.CacheSync()
	if err != nil {
		return err
	}
	return f.openCachedEntry(vol, block, index, flags)
}

// openCachedEntry opens the entry at slot `index` of directory block `block`.
func (f *File) openCachedEntry(vol *Volume, block uint32, index uint8, flags sdfat.IOFlags) error {
	buffer, err := vol.CacheFetch(block, blockcache.ForRead)
	if err != nil {
		return err
	}
	entry := NewRawDirentFromBytes(direntSlice(buffer, index))
	name := entry.ShortName().String()

	if flags&(sdfat.O_WRONLY|sdfat.O_TRUNC) != 0 {
		if entry.AttributeFlags&AttrDirectory != 0 {
			return sdfat.ErrIsADirectory.WithMessage(name)
		}
		if entry.AttributeFlags&AttrReadOnly != 0 {
			return sdfat.ErrPermissionDenied.WithMessage(name + " is read-only")
		}
	}

	*f = File{
		vol:          vol,
		dirBlock:     block,
		dirIndex:     index,
		firstCluster: entry.FirstCluster(),
		flags:        flags & sdfat.O_ACCMODE,
	}

	switch {
	case entry.IsFile():
		f.fileType = TypeNormal
		f.fileSize = entry.FileSize
	case entry.IsSubdir():
		f.fileType = TypeSubdir
		err = f.setDirSize()
		if err != nil {
			f.fileType = TypeClosed
			return err
		}
	default:
		return sdfat.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("%q is not a file or directory (attributes 0x%02X)", name, entry.AttributeFlags))
	}

	if flags.Truncate() {
		err = f.Truncate(0)
		if err != nil {
			f.fileType = TypeClosed
			return err
		}
	}
	if flags.AtEnd() {
		return f.SeekSet(f.fileSize)
	}
	return nil
}

// setDirSize computes the size of a cluster-chained directory from the length
// of its chain.
func (f *File) setDirSize() error {
	vol := f.vol
	blocks := uint32(0)
	cluster := f.firstCluster

	for {
		blocks += uint32(vol.blocksPerCluster)
		if blocks > maxDirBlocks {
			return vol.corrupted(
				"directory at cluster %d is longer than %d blocks", f.firstCluster, maxDirBlocks)
		}

		next, err := vol.FATGet(cluster)
		if err != nil {
			return err
		}
		if vol.IsEOC(next) {
			break
		}
		if !vol.IsValidCluster(next) {
			return vol.corrupted(
				"directory chain from cluster %d breaks after %d: entry is 0x%X",
				f.firstCluster,
				cluster,
				next)
		}
		cluster = next
	}

	f.fileSize = blocks * sdfat.BlockSize
	return nil
}

// refreshDirSize picks up growth of the directory made through other handles.
func (f *File) refreshDirSize() error {
	if f.fileType == TypeSubdir || f.fileType == TypeRoot32 {
		return f.setDirSize()
	}
	return nil
}

// OpenIndex opens the entry in slot `index` of the directory.
func (dir *File) OpenIndex(index uint16, flags sdfat.IOFlags) (*File, error) {
	if !dir.IsDir() {
		return nil, sdfat.ErrNotADirectory.WithMessage("can't open entries of a file")
	}

	err := dir.SeekSet(DirentSize * uint32(index))
	if err != nil {
		return nil, sdfat.ErrNotFound.Wrap(err)
	}
	if dir.curPosition >= dir.fileSize {
		return nil, sdfat.ErrNotFound.WithMessage(fmt.Sprintf("no entry at index %d", index))
	}

	entry, block, err := dir.readDirCache()
	if err != nil {
		return nil, err
	}
	if !entry.IsLive() {
		return nil, sdfat.ErrNotFound.WithMessage(fmt.Sprintf("no entry at index %d", index))
	}

	f := &File{}
	err = f.openCachedEntry(dir.vol, block, uint8(index&0xF), flags)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// OpenNext opens the next file or directory after the current position of
// `dir`. It returns [io.EOF] when there are no more entries.
func (dir *File) OpenNext(flags sdfat.IOFlags) (*File, error) {
	if !dir.IsDir() {
		return nil, sdfat.ErrNotADirectory.WithMessage("can't open entries of a file")
	}
	if dir.curPosition&0x1F != 0 {
		return nil, sdfat.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("directory position %d is not on an entry boundary", dir.curPosition))
	}

	for dir.curPosition < dir.fileSize {
		index := uint8((dir.curPosition >> 5) & 0xF)
		entry, block, err := dir.readDirCache()
		if err != nil {
			return nil, err
		}
		if entry.IsFree() {
			return nil, io.EOF
		}
		if entry.IsLive() {
			f := &File{}
			err = f.openCachedEntry(dir.vol, block, index, flags)
			if err != nil {
				return nil, err
			}
			return f, nil
		}
	}
	return nil, io.EOF
}

// openDirCluster makes a read-only handle to the subdirectory starting at
// `cluster` without knowing where its entry is. It can't be synced.
func (vol *Volume) openDirCluster(cluster uint32) (*File, error) {
	if vol.isRootCluster(cluster) {
		return vol.OpenRoot()
	}
	f := &File{
		vol:          vol,
		fileType:     TypeSubdir,
		flags:        sdfat.O_RDONLY,
		firstCluster: cluster,
	}
	err := f.setDirSize()
	if err != nil {
		return nil, err
	}
	return f, nil
}

// isRootCluster is true if a `..` entry pointing at `cluster` refers to the
// root directory. That's normally 0, but some formatters use the FAT32 root
// cluster instead.
func (vol *Volume) isRootCluster(cluster uint32) bool {
	return cluster == 0 || (vol.fatType == FAT32 && cluster == vol.rootDirStart)
}

// dotDotCluster reads the parent cluster from the `..` entry of a
// subdirectory. 0 means the root.
func (dir *File) dotDotCluster() (uint32, error) {
	buffer, err := dir.vol.CacheFetch(dir.vol.ClusterStartBlock(dir.firstCluster), blockcache.ForRead)
	if err != nil {
		return 0, err
	}
	entry := NewRawDirentFromBytes(direntSlice(buffer, 1))
	if entry.ShortName() != dotDotName {
		return 0, dir.vol.corrupted(
			"directory at cluster %d has no '..' entry", dir.firstCluster)
	}
	return entry.FirstCluster(), nil
}

// OpenParent opens the directory containing `dir`. The parent of the root is
// an error.
func (dir *File) OpenParent() (*File, error) {
	if !dir.IsDir() {
		return nil, sdfat.ErrNotADirectory.WithMessage("only directories can open their parent")
	}
	if dir.IsRoot() {
		return nil, sdfat.ErrInvalidArgument.WithMessage("the root directory has no parent")
	}

	vol := dir.vol
	parentCluster, err := dir.dotDotCluster()
	if err != nil {
		return nil, err
	}
	if vol.isRootCluster(parentCluster) {
		return vol.OpenRoot()
	}

	// Find the parent's own entry by searching the grandparent for it.
	parent, err := vol.openDirCluster(parentCluster)
	if err != nil {
		return nil, err
	}
	grandparentCluster, err := parent.dotDotCluster()
	if err != nil {
		return nil, err
	}
	grandparent, err := vol.openDirCluster(grandparentCluster)
	if err != nil {
		return nil, err
	}

	for grandparent.curPosition < grandparent.fileSize {
		index := uint16(grandparent.curPosition >> 5)
		entry, _, err := grandparent.readDirCache()
		if err != nil {
			return nil, err
		}
		if entry.IsFree() {
			break
		}
		if entry.IsLive() && entry.IsSubdir() && entry.FirstCluster() == parentCluster {
			return grandparent.OpenIndex(index, sdfat.O_RDONLY)
		}
	}
	return nil, vol.corrupted("no entry for directory at cluster %d in its parent", parentCluster)
}

// cacheDirEntry loads the block holding this file's directory entry and
// returns the entry's bytes.
func (f *File) cacheDirEntry(option blockcache.Option) ([]byte, error) {
	if f.IsRoot() {
		return nil, sdfat.ErrNotSupported.WithMessage("the root directory has no directory entry")
	}
	buffer, err := f.vol.CacheFetch(f.dirBlock, option)
	if err != nil {
		return nil, err
	}
	return direntSlice(buffer, f.dirIndex), nil
}

// DirEntry returns a copy of the file's directory entry, after writing back any
// pending changes to it.
func (f *File) DirEntry() (RawDirent, error) {
	err := f.Sync()
	if err != nil {
		return RawDirent{}, err
	}
	data, err := f.cacheDirEntry(blockcache.ForRead)
	if err != nil {
		return RawDirent{}, err
	}
	return NewRawDirentFromBytes(data), nil
}

// Name gives the 8.3 name of the file, e.g. "README.TXT". The root directory
// is called "/".
func (f *File) Name() (string, error) {
	if !f.IsOpen() {
		return "", errClosed()
	}
	if f.IsRoot() {
		return "/", nil
	}
	data, err := f.cacheDirEntry(blockcache.ForRead)
	if err != nil {
		return "", err
	}
	entry := NewRawDirentFromBytes(data)
	return entry.ShortName().String(), nil
}

// Close writes back pending changes and closes the handle. The handle is closed
// even if writing fails.
func (f *File) Close() error {
	if !f.IsOpen() {
		return nil
	}
	err := f.Sync()
	f.fileType = TypeClosed
	return err
}
