package fat

import (
	"fmt"
	"strings"
	"time"

	"github.com/dargueta/sdfat"
	"github.com/dargueta/sdfat/file_systems/common/blockcache"
)

// Remove deletes the file. Its clusters are freed and the handle is closed.
// The file must be open for writing.
func (f *File) Remove() error {
	if f.IsDir() {
		return sdfat.ErrIsADirectory.WithMessage("use Rmdir to remove a directory")
	}
	err := f.Truncate(0)
	if err != nil {
		return err
	}
	return f.markDeleted()
}

func (f *File) markDeleted() error {
	data, err := f.cacheDirEntry(blockcache.ForWrite)
	if err != nil {
		return err
	}
	data[0] = direntDeleted
	f.fileType = TypeClosed
	return f.vol.CacheSync()
}

// abandon deletes a freshly created entry after a later step of creating it
// failed.
func (f *File) abandon() {
	if f.firstCluster != 0 {
		err := f.vol.FreeChain(f.firstCluster)
		if err != nil {
			f.vol.log.WithError(err).Warn("failed to free clusters of abandoned entry")
		}
	}
	err := f.markDeleted()
	if err != nil {
		f.vol.log.WithError(err).Warn("failed to delete abandoned entry")
	}
	f.fileType = TypeClosed
}

// Mkdir creates a directory at `path`, relative to `dir`, and returns an open
// handle to it. If `createParents` is set, missing directories along the path
// are created as well.
func (dir *File) Mkdir(path string, createParents bool) (*File, error) {
	if !dir.IsOpen() {
		return nil, errClosed()
	}
	if strings.Trim(path, "/") == "" {
		if path == "" {
			return nil, sdfat.ErrInvalidArgument.WithMessage("empty path")
		}
		return nil, sdfat.ErrExists.WithMessage("the root directory always exists")
	}

	parent, component, err := dir.walk(path, createParents)
	if err != nil {
		return nil, err
	}

	f := &File{}
	name, err := ParseShortName(component)
	if err == nil {
		err = f.mkdirIn(parent, name)
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

// mkdirIn creates the subdirectory `name` in `parent`, with its `.` and `..`
// entries.
func (f *File) mkdirIn(parent *File, name ShortName) error {
	err := f.openInDir(parent, name, sdfat.O_CREATE|sdfat.O_EXCL|sdfat.O_RDWR)
	if err != nil {
		return err
	}

	// Turn the new empty file into a directory.
	f.flags = sdfat.O_RDONLY
	f.fileType = TypeSubdir
	block, err := f.addDirCluster()
	if err == nil {
		err = f.Sync()
	}
	if err != nil {
		f.abandon()
		return err
	}

	err = f.initDirectory(parent, block)
	if err != nil {
		f.abandon()
		return err
	}
	f.Rewind()
	return nil
}

// initDirectory sets the directory attribute on a newly created entry and
// writes the `.` and `..` entries into the first block of its cluster.
func (f *File) initDirectory(parent *File, block uint32) error {
	vol := f.vol
	data, err := f.cacheDirEntry(blockcache.ForWrite)
	if err != nil {
		return err
	}
	entry := NewRawDirentFromBytes(data)
	entry.AttributeFlags = AttrDirectory
	entry.Encode(data)

	buffer, err := vol.CacheFetch(block, blockcache.ForWrite)
	if err != nil {
		return err
	}

	dot := entry
	dot.SetShortName(dotName)
	dot.Encode(direntSlice(buffer, 0))

	dot.SetShortName(dotDotName)
	if parent.IsRoot() {
		dot.SetFirstCluster(0)
	} else {
		dot.SetFirstCluster(parent.firstCluster)
	}
	dot.Encode(direntSlice(buffer, 1))
	return vol.CacheSync()
}

// Rmdir removes an empty subdirectory and closes the handle.
func (f *File) Rmdir() error {
	if !f.IsSubdir() {
		return sdfat.ErrNotADirectory.WithMessage("only subdirectories can be removed with Rmdir")
	}
	err := f.refreshDirSize()
	if err != nil {
		return err
	}

	f.Rewind()
	for f.curPosition < f.fileSize {
		entry, _, err := f.readDirCache()
		if err != nil {
			return err
		}
		if entry.IsFree() {
			break
		}
		if entry.IsLive() {
			return sdfat.ErrDirectoryNotEmpty.WithMessage(
				fmt.Sprintf("directory contains %q", entry.ShortName().String()))
		}
	}

	// Treat it as a plain file so Truncate frees the whole chain.
	f.fileType = TypeNormal
	f.flags |= sdfat.O_WRONLY
	err = f.Truncate(0)
	if err != nil {
		return err
	}
	return f.markDeleted()
}

// RemoveAll deletes everything inside the directory, recursively. Unless it's
// the root, the directory itself is removed too and the handle closed.
//
// Read-only files are deleted as well. Nesting deeper than [MaxDirDepth] fails
// with [sdfat.ErrTooManyLevels].
func (f *File) RemoveAll() error {
	return f.removeAll(0)
}

func (f *File) removeAll(depth int) error {
	if depth > MaxDirDepth {
		return sdfat.ErrTooManyLevels.WithMessage(
			fmt.Sprintf("directories nested more than %d deep", MaxDirDepth))
	}
	if !f.IsDir() {
		return sdfat.ErrNotADirectory.WithMessage("RemoveAll needs a directory")
	}
	err := f.refreshDirSize()
	if err != nil {
		return err
	}

	f.Rewind()
	for f.curPosition < f.fileSize {
		index := uint16(f.curPosition / DirentSize)
		entry, _, err := f.readDirCache()
		if err != nil {
			return err
		}
		if entry.IsFree() {
			break
		}
		if !entry.IsLive() {
			continue
		}

		child, err := f.OpenIndex(index, sdfat.O_RDONLY)
		if err != nil {
			return err
		}
		if child.IsSubdir() {
			err = child.removeAll(depth + 1)
		} else {
			child.flags |= sdfat.O_WRONLY
			err = child.Remove()
		}
		if err != nil {
			child.Close()
			return err
		}

		err = f.SeekSet(DirentSize * (uint32(index) + 1))
		if err != nil {
			return err
		}
	}

	if f.IsRoot() {
		return nil
	}
	return f.Rmdir()
}

// Rename moves the file or subdirectory to `newPath`, relative to `dir`. The
// target must not exist. Everything but the name stays the same, including the
// file's clusters.
func (f *File) Rename(dir *File, newPath string) error {
	if !f.IsFile() && !f.IsSubdir() {
		return sdfat.ErrInvalidArgument.WithMessage("only files and subdirectories can be renamed")
	}
	if !dir.IsOpen() {
		return errClosed()
	}
	if dir.vol != f.vol {
		return sdfat.ErrInvalidArgument.WithMessage("can't move files between volumes")
	}

	vol := f.vol
	err := f.Sync()
	if err != nil {
		return err
	}

	parent, component, err := dir.walk(newPath, false)
	if err != nil {
		return err
	}
	defer parent.Close()

	name, err := ParseShortName(component)
	if err != nil {
		return err
	}

	if f.IsSubdir() {
		inside, err := vol.dirIsWithin(parent, f.firstCluster)
		if err != nil {
			return err
		}
		if inside {
			return sdfat.ErrInvalidArgument.WithMessage("can't move a directory inside itself")
		}
	}

	data, err := f.cacheDirEntry(blockcache.ForWrite)
	if err != nil {
		return err
	}
	var saved [DirentSize]byte
	copy(saved[:], data)

	// Mark the old entry deleted so the new one can reuse its slot.
	data[0] = direntDeleted

	newFile := &File{}
	if f.IsFile() {
		err = newFile.openInDir(parent, name, sdfat.O_CREATE|sdfat.O_EXCL|sdfat.O_WRONLY)
	} else {
		err = newFile.mkdirIn(parent, name)
	}
	if err != nil {
		buffer, restoreErr := vol.CacheFetch(f.dirBlock, blockcache.ForWrite)
		if restoreErr == nil {
			// The new entry may have reused the old slot, so put back all of it.
			copy(direntSlice(buffer, f.dirIndex), saved[:])
			restoreErr = vol.CacheSync()
		}
		if restoreErr != nil {
			vol.log.WithError(restoreErr).Warn("failed to restore entry after failed rename")
		}
		return err
	}

	var newDirCluster uint32
	if f.IsSubdir() {
		newDirCluster = newFile.firstCluster
	}
	f.dirBlock = newFile.dirBlock
	f.dirIndex = newFile.dirIndex
	newFile.fileType = TypeClosed

	data, err = f.cacheDirEntry(blockcache.ForWrite)
	if err != nil {
		return err
	}
	copy(data[11:], saved[11:])

	if newDirCluster != 0 {
		// Keep the `..` entry the new directory got, which points at the new
		// parent, and throw away the rest of it.
		buffer, err := vol.CacheFetch(vol.ClusterStartBlock(newDirCluster), blockcache.ForRead)
		if err != nil {
			return err
		}
		var dotDot [DirentSize]byte
		copy(dotDot[:], direntSlice(buffer, 1))

		err = vol.FreeChain(newDirCluster)
		if err != nil {
			return err
		}

		buffer, err = vol.CacheFetch(vol.ClusterStartBlock(f.firstCluster), blockcache.ForWrite)
		if err != nil {
			return err
		}
		copy(direntSlice(buffer, 1), dotDot[:])
	}
	return vol.CacheSync()
}

// dirIsWithin is true if `dir` is the directory starting at `ancestor` or is
// somewhere beneath it.
func (vol *Volume) dirIsWithin(dir *File, ancestor uint32) (bool, error) {
	if dir.IsRoot() {
		return false, nil
	}

	cluster := dir.firstCluster
	for steps := uint32(0); !vol.isRootCluster(cluster); steps++ {
		if cluster == ancestor {
			return true, nil
		}
		if steps > vol.clusterCount {
			return false, vol.corrupted("directory parents starting at cluster %d loop", dir.firstCluster)
		}

		current := File{vol: vol, fileType: TypeSubdir, firstCluster: cluster}
		next, err := current.dotDotCluster()
		if err != nil {
			return false, err
		}
		cluster = next
	}
	return false, nil
}

// CreateContiguous creates a file of `size` bytes at `path` whose clusters are
// all consecutive. The contents are whatever was on the device.
func (dir *File) CreateContiguous(path string, size uint32) (*File, error) {
	if size == 0 {
		return nil, sdfat.ErrInvalidArgument.WithMessage("contiguous file must not be empty")
	}

	f, err := dir.Open(path, sdfat.O_CREATE|sdfat.O_EXCL|sdfat.O_RDWR)
	if err != nil {
		return nil, err
	}

	vol := f.vol
	count := ((size - 1) >> (vol.clusterSizeShift + 9)) + 1
	cluster, err := vol.AllocContiguous(count, 0)
	if err != nil {
		f.abandon()
		return nil, err
	}

	f.firstCluster = cluster
	f.fileSize = size
	f.dirty = true
	err = f.Sync()
	if err != nil {
		f.abandon()
		return nil, err
	}
	return f, nil
}

// ContiguousRange gives the first and last blocks of the file if its clusters
// are consecutive. It fails if they aren't or the file is empty.
func (f *File) ContiguousRange() (firstBlock uint32, lastBlock uint32, err error) {
	if !f.IsOpen() {
		return 0, 0, errClosed()
	}
	if f.firstCluster == 0 {
		return 0, 0, sdfat.ErrInvalidArgument.WithMessage("file has no clusters")
	}

	vol := f.vol
	for cluster := f.firstCluster; ; cluster++ {
		if cluster-f.firstCluster > vol.clusterCount {
			return 0, 0, vol.corrupted("chain from cluster %d never ends", f.firstCluster)
		}

		next, err := vol.FATGet(cluster)
		if err != nil {
			return 0, 0, err
		}
		if vol.IsEOC(next) {
			firstBlock = vol.ClusterStartBlock(f.firstCluster)
			lastBlock = vol.ClusterStartBlock(cluster) + uint32(vol.blocksPerCluster) - 1
			return firstBlock, lastBlock, nil
		}
		if next != cluster+1 {
			return 0, 0, sdfat.ErrInvalidArgument.WithMessage(
				fmt.Sprintf("file isn't contiguous: cluster %d links to %d", cluster, next))
		}
	}
}

// updateDirEntry applies `update` to the file's directory entry and writes it
// back.
func (f *File) updateDirEntry(update func(entry *RawDirent)) error {
	if !f.IsOpen() {
		return errClosed()
	}
	err := f.Sync()
	if err != nil {
		return err
	}

	data, err := f.cacheDirEntry(blockcache.ForWrite)
	if err != nil {
		return err
	}
	entry := NewRawDirentFromBytes(data)
	update(&entry)
	entry.Encode(data)
	return f.vol.CacheSync()
}

// SetTimestamp sets the timestamps selected by `which`, a combination of
// [TimestampAccess], [TimestampCreate] and [TimestampWrite]. Only years 1980
// through 2107 can be stored.
func (f *File) SetTimestamp(which int, t time.Time) error {
	date, timePart, tenths, err := TimeToParts(t)
	if err != nil {
		return err
	}

	return f.updateDirEntry(func(entry *RawDirent) {
		if which&TimestampAccess != 0 {
			entry.LastAccessedDate = date
		}
		if which&TimestampCreate != 0 {
			entry.CreatedDate = date
			entry.CreatedTime = timePart
			entry.CreatedTimeTenths = tenths
		}
		if which&TimestampWrite != 0 {
			entry.LastModifiedDate = date
			entry.LastModifiedTime = timePart
		}
	})
}

// CopyTimestamps gives this file the same timestamps as `source`.
func (f *File) CopyTimestamps(source *File) error {
	sourceEntry, err := source.DirEntry()
	if err != nil {
		return err
	}

	return f.updateDirEntry(func(entry *RawDirent) {
		entry.CreatedTimeTenths = sourceEntry.CreatedTimeTenths
		entry.CreatedTime = sourceEntry.CreatedTime
		entry.CreatedDate = sourceEntry.CreatedDate
		entry.LastAccessedDate = sourceEntry.LastAccessedDate
		entry.LastModifiedTime = sourceEntry.LastModifiedTime
		entry.LastModifiedDate = sourceEntry.LastModifiedDate
	})
}

// SetAttributes replaces the read-only, hidden, system and archive flags of the
// file. Other bits in `attributes` are ignored.
func (f *File) SetAttributes(attributes uint8) error {
	return f.updateDirEntry(func(entry *RawDirent) {
		entry.AttributeFlags = (entry.AttributeFlags &^ attrUserMask) | (attributes & attrUserMask)
	})
}
