package fat

import (
	"fmt"
	"io"

	"github.com/dargueta/sdfat"
	"github.com/dargueta/sdfat/file_systems/common/blockcache"
)

// Position is a saved file position, from [File.Position]. Restoring it with
// [File.SetPosition] doesn't need to walk the cluster chain.
type Position struct {
	offset  uint32
	cluster uint32
}

func (p Position) Offset() uint32 { return p.offset }

// locate gives the block holding the byte at the current position, and the
// cluster the file will be in once that byte is transferred. The handle isn't
// changed.
func (f *File) locate() (block uint32, cluster uint32, err error) {
	vol := f.vol
	if f.fileType == TypeRootFixed {
		return vol.rootDirStart + (f.curPosition >> 9), 0, nil
	}

	cluster = f.curCluster
	blockOfCluster := vol.blockOfCluster(f.curPosition)
	if f.curPosition&0x1FF == 0 && blockOfCluster == 0 {
		// Start of a new cluster.
		if f.curPosition == 0 {
			cluster = f.firstCluster
		} else {
			cluster, err = vol.nextCluster(cluster)
			if err != nil {
				return 0, 0, err
			}
		}
	}

	if !vol.IsValidCluster(cluster) {
		return 0, 0, vol.corrupted(
			"no cluster for offset %d of file starting at cluster %d",
			f.curPosition,
			f.firstCluster)
	}
	return vol.ClusterStartBlock(cluster) + uint32(blockOfCluster), cluster, nil
}

// readDirCache returns the directory entry at the current position and the
// block it's in, and advances past it.
func (f *File) readDirCache() (RawDirent, uint32, error) {
	if !f.IsDir() {
		return RawDirent{}, 0, sdfat.ErrNotADirectory.WithMessage("not a directory")
	}

	index := uint8((f.curPosition >> 5) & (direntsPerBlock - 1))
	block, cluster, err := f.locate()
	if err != nil {
		return RawDirent{}, 0, err
	}
	buffer, err := f.vol.CacheFetch(block, blockcache.ForRead)
	if err != nil {
		return RawDirent{}, 0, err
	}

	f.curCluster = cluster
	f.curPosition += DirentSize
	return NewRawDirentFromBytes(direntSlice(buffer, index)), block, nil
}

// Read implements [io.Reader]. Directories can be read too, giving their raw
// entries.
func (f *File) Read(buffer []byte) (int, error) {
	if !f.IsOpen() || !f.flags.Read() {
		return 0, sdfat.ErrInvalidFileDescriptor.WithMessage("file is not open for reading")
	}
	if len(buffer) == 0 {
		return 0, nil
	}

	remaining := f.fileSize - f.curPosition
	if remaining == 0 {
		return 0, io.EOF
	}
	if uint64(len(buffer)) > uint64(remaining) {
		buffer = buffer[:remaining]
	}

	vol := f.vol
	done := 0
	for done < len(buffer) {
		toRead := len(buffer) - done
		offset := int(f.curPosition & 0x1FF)

		block, cluster, err := f.locate()
		if err != nil {
			return done, err
		}

		var n int
		if offset != 0 || toRead < sdfat.BlockSize || block == vol.cache.BlockNumber() {
			// Partial block, or the block is already cached.
			data, err := vol.CacheFetch(block, blockcache.ForRead)
			if err != nil {
				return done, err
			}
			n = copy(buffer[done:], data[offset:])
		} else {
			// Whole blocks go straight from the device, as many as are left in
			// this cluster.
			count := uint32(toRead / sdfat.BlockSize)
			if f.fileType != TypeRootFixed {
				left := uint32(vol.blocksPerCluster - vol.blockOfCluster(f.curPosition))
				if left < count {
					count = left
				}
			}
			if vol.cacheOverlaps(block, count) {
				err = vol.CacheSync()
				if err != nil {
					return done, err
				}
			}

			n = int(count) * sdfat.BlockSize
			err = vol.readBlocks(block, buffer[done:done+n])
			if err != nil {
				return done, err
			}
		}

		f.curCluster = cluster
		f.curPosition += uint32(n)
		done += n
	}
	return done, nil
}

// Peek returns the next byte without moving the position.
func (f *File) Peek() (byte, error) {
	saved := f.Position()
	var b [1]byte
	_, err := f.Read(b[:])
	f.SetPosition(saved)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// addCluster extends the file's chain by one cluster and makes it current.
func (f *File) addCluster() error {
	cluster, err := f.vol.AllocContiguous(1, f.curCluster)
	if err != nil {
		return err
	}
	f.curCluster = cluster

	if f.firstCluster == 0 {
		f.firstCluster = cluster
		f.dirty = true
	}
	return nil
}

// addDirCluster grows a directory by one zeroed cluster and returns the
// cluster's first block, which is left in the cache.
func (f *File) addDirCluster() (uint32, error) {
	vol := f.vol
	if f.fileSize/DirentSize >= maxDirEntries {
		return 0, sdfat.ErrNoSpaceOnDevice.WithMessage(
			fmt.Sprintf("directory already holds %d entries", f.fileSize/DirentSize))
	}

	err := f.addCluster()
	if err != nil {
		return 0, err
	}

	block := vol.ClusterStartBlock(f.curCluster)
	buffer, err := vol.CacheFetch(block, blockcache.ReserveForWrite)
	if err != nil {
		return 0, err
	}
	for i := range buffer {
		buffer[i] = 0
	}

	if vol.blocksPerCluster > 1 {
		zeros := make([]byte, (int(vol.blocksPerCluster)-1)*sdfat.BlockSize)
		err = vol.writeBlocks(block+1, zeros)
		if err != nil {
			return 0, err
		}
	}

	f.fileSize += vol.BytesPerCluster()
	f.curPosition = f.fileSize
	return block, nil
}

// Write implements [io.Writer]. Only regular files can be written to.
//
// If the write fails the handle's write error flag is set. Bytes written up to
// the failure still count towards the file's size.
func (f *File) Write(data []byte) (n int, err error) {
	if !f.IsFile() || !f.flags.Write() {
		f.writeError = true
		return 0, sdfat.ErrInvalidFileDescriptor.WithMessage("file is not open for writing")
	}

	defer func() {
		if f.curPosition > f.fileSize {
			f.fileSize = f.curPosition
			f.dirty = true
		} else if n > 0 && f.vol.dateTime != nil {
			// Modification time needs updating.
			f.dirty = true
		}
		if err == nil && f.flags.Sync() {
			err = f.Sync()
		}
		if err != nil {
			f.writeError = true
		}
	}()

	if f.flags.Append() && f.curPosition != f.fileSize {
		err = f.SeekSet(f.fileSize)
		if err != nil {
			return 0, err
		}
	}
	if uint64(f.curPosition)+uint64(len(data)) > MaxFileSize {
		return 0, sdfat.ErrFileTooLarge.WithMessage(
			fmt.Sprintf("writing %d bytes at offset %d", len(data), f.curPosition))
	}

	vol := f.vol
	for n < len(data) {
		blockOfCluster := vol.blockOfCluster(f.curPosition)
		blockOffset := int(f.curPosition & 0x1FF)

		if blockOfCluster == 0 && blockOffset == 0 {
			// Start of a new cluster.
			if f.curCluster == 0 {
				if f.firstCluster == 0 {
					err = f.addCluster()
				} else {
					f.curCluster = f.firstCluster
				}
			} else {
				var next uint32
				next, err = vol.FATGet(f.curCluster)
				if err == nil {
					if vol.IsEOC(next) {
						err = f.addCluster()
					} else if vol.IsValidCluster(next) {
						f.curCluster = next
					} else {
						err = vol.corrupted("chain breaks after cluster %d: entry is 0x%X", f.curCluster, next)
					}
				}
			}
			if err != nil {
				return n, err
			}
		}

		block := vol.ClusterStartBlock(f.curCluster) + uint32(blockOfCluster)
		toWrite := len(data) - n
		var written int

		if blockOffset != 0 || toWrite < sdfat.BlockSize {
			option := blockcache.ForWrite
			if blockOffset == 0 && f.curPosition >= f.fileSize {
				// Nothing past EOF worth reading.
				option = blockcache.ReserveForWrite
			}
			var buffer []byte
			buffer, err = vol.CacheFetch(block, option)
			if err != nil {
				return n, err
			}
			written = copy(buffer[blockOffset:], data[n:])

			if blockOffset+written == sdfat.BlockSize {
				// Block is full, no point keeping it dirty.
				err = vol.cache.Sync()
				if err != nil {
					return n, err
				}
			}
		} else {
			count := uint32(toWrite / sdfat.BlockSize)
			left := uint32(vol.blocksPerCluster - blockOfCluster)
			if left < count {
				count = left
			}
			written = int(count) * sdfat.BlockSize
			err = vol.writeBlocks(block, data[n:n+written])
			if err != nil {
				return n, err
			}
		}

		f.curPosition += uint32(written)
		n += written
	}
	return n, nil
}

// WriteString is [File.Write] for a string.
func (f *File) WriteString(s string) (int, error) {
	return f.Write([]byte(s))
}

// SeekSet moves to absolute offset `offset`, which may be at most the size of
// the file.
func (f *File) SeekSet(offset uint32) error {
	if !f.IsOpen() {
		return errClosed()
	}
	if offset > f.fileSize {
		return sdfat.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("can't seek to %d, file size is %d", offset, f.fileSize))
	}

	if f.fileType == TypeRootFixed {
		f.curPosition = offset
		return nil
	}
	if offset == 0 {
		f.curCluster = 0
		f.curPosition = 0
		return nil
	}

	// Index of the cluster holding the byte before each position.
	shift := f.vol.clusterSizeShift + 9
	nCur := (f.curPosition - 1) >> shift
	nNew := (offset - 1) >> shift

	cluster := f.curCluster
	if nNew < nCur || f.curPosition == 0 {
		cluster = f.firstCluster
	} else {
		nNew -= nCur
	}

	var err error
	for ; nNew > 0; nNew-- {
		cluster, err = f.vol.nextCluster(cluster)
		if err != nil {
			return err
		}
	}

	f.curCluster = cluster
	f.curPosition = offset
	return nil
}

// SeekCur moves `delta` bytes relative to the current position.
func (f *File) SeekCur(delta int64) error {
	_, err := f.Seek(delta, io.SeekCurrent)
	return err
}

// SeekEnd moves `delta` bytes relative to the end of the file. `delta` is
// usually 0 or negative.
func (f *File) SeekEnd(delta int64) error {
	_, err := f.Seek(delta, io.SeekEnd)
	return err
}

// Seek implements [io.Seeker]. The target must be within the file.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = int64(f.curPosition)
	case io.SeekEnd:
		base = int64(f.fileSize)
	default:
		return int64(f.curPosition), sdfat.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("invalid whence: %d", whence))
	}

	target := base + offset
	if target < 0 || target > MaxFileSize {
		return int64(f.curPosition), sdfat.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("can't seek to %d", target))
	}
	err := f.SeekSet(uint32(target))
	return int64(f.curPosition), err
}

// Rewind moves back to the start of the file.
func (f *File) Rewind() {
	f.curPosition = 0
	f.curCluster = 0
}

// Position saves the current position.
func (f *File) Position() Position {
	return Position{offset: f.curPosition, cluster: f.curCluster}
}

// SetPosition returns to a position saved with [File.Position] on this handle.
func (f *File) SetPosition(p Position) error {
	if p.offset > f.fileSize {
		return sdfat.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("position %d is past the end of the file (%d)", p.offset, f.fileSize))
	}
	f.curPosition = p.offset
	f.curCluster = p.cluster
	return nil
}

// Truncate shortens the file to `length` bytes and frees the clusters it no
// longer needs. The position is kept unless it's past the new end.
func (f *File) Truncate(length uint32) error {
	if !f.IsFile() || !f.flags.Write() {
		return sdfat.ErrInvalidFileDescriptor.WithMessage("file is not open for writing")
	}
	if length > f.fileSize {
		return sdfat.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("can't truncate to %d, file is only %d bytes", length, f.fileSize))
	}
	if f.fileSize == 0 {
		return nil
	}

	newPosition := f.curPosition
	if newPosition > length {
		newPosition = length
	}

	vol := f.vol
	err := f.SeekSet(length)
	if err != nil {
		return err
	}

	if length == 0 {
		if f.firstCluster != 0 {
			err = vol.FreeChain(f.firstCluster)
			if err != nil {
				return err
			}
		}
		f.firstCluster = 0
	} else {
		next, err := vol.FATGet(f.curCluster)
		if err != nil {
			return err
		}
		if !vol.IsEOC(next) {
			err = vol.FreeChain(next)
			if err != nil {
				return err
			}
			err = vol.FATPutEOC(f.curCluster)
			if err != nil {
				return err
			}
		}
	}

	f.fileSize = length
	f.dirty = true
	err = f.Sync()
	if err != nil {
		return err
	}
	return f.SeekSet(newPosition)
}

// Sync writes the file's size, first cluster and modification time to its
// directory entry if they changed, then flushes the volume's cache.
func (f *File) Sync() error {
	if !f.IsOpen() {
		return errClosed()
	}

	if f.dirty {
		data, err := f.cacheDirEntry(blockcache.ForWrite)
		if err != nil {
			f.writeError = true
			return err
		}

		entry := NewRawDirentFromBytes(data)
		if entry.IsDeleted() {
			f.writeError = true
			return sdfat.ErrNotFound.WithMessage("directory entry was deleted through another handle")
		}

		if !f.IsDir() {
			entry.FileSize = f.fileSize
		}
		entry.SetFirstCluster(f.firstCluster)

		if f.vol.dateTime != nil {
			date, time := f.vol.dateTime()
			entry.LastModifiedDate = date
			entry.LastModifiedTime = time
			entry.LastAccessedDate = date
		}
		entry.Encode(data)
		f.dirty = false
	}

	err := f.vol.CacheSync()
	if err != nil {
		f.writeError = true
	}
	return err
}
