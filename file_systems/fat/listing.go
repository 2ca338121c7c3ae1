package fat

import (
	"fmt"
	"io"
	"path"
	"time"

	"github.com/dargueta/sdfat"
)

// ReadDirEntry returns the next file or subdirectory entry of the directory
// and its index, skipping deleted entries, `.`, `..` and volume labels. It
// returns [io.EOF] at the end of the directory.
func (dir *File) ReadDirEntry() (RawDirent, uint16, error) {
	if !dir.IsDir() {
		return RawDirent{}, 0, sdfat.ErrNotADirectory.WithMessage("can't list a file")
	}
	if dir.curPosition&0x1F != 0 {
		return RawDirent{}, 0, sdfat.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("directory position %d is not on an entry boundary", dir.curPosition))
	}

	for dir.curPosition < dir.fileSize {
		index := uint16(dir.curPosition / DirentSize)
		entry, _, err := dir.readDirCache()
		if err != nil {
			return RawDirent{}, 0, err
		}
		if entry.IsFree() {
			return RawDirent{}, 0, io.EOF
		}
		if entry.IsLive() {
			return entry, index, nil
		}
	}
	return RawDirent{}, 0, io.EOF
}

// DirEntry is an entry found by a [Lister].
type DirEntry struct {
	// Path is relative to the directory being listed, e.g. "SUB/FILE.TXT".
	Path string
	Name string
	// Depth is 0 for entries directly in the listed directory.
	Depth int
	// Index is the slot of the entry within its directory.
	Index        uint16
	Attributes   uint8
	Size         uint32
	FirstCluster uint32
	ModDate      uint16
	ModTime      uint16
}

func (e *DirEntry) IsDir() bool { return e.Attributes&AttrDirectory != 0 }

func (e *DirEntry) ModificationTime() time.Time {
	return TimestampFromParts(e.ModDate, e.ModTime, 0)
}

type listFrame struct {
	dir   *File
	path  string
	depth int
}

// Lister walks the entries of a directory one at a time, optionally descending
// into subdirectories. A directory's entry comes before its contents.
//
// Changing the directory tree while listing it gives unspecified, but safe,
// results.
type Lister struct {
	root      *File
	recursive bool
	stack     []listFrame
}

// List starts listing the directory. The directory handle itself isn't used
// by the listing and may be closed.
func (dir *File) List(recursive bool) (*Lister, error) {
	if !dir.IsDir() {
		return nil, sdfat.ErrNotADirectory.WithMessage("can't list a file")
	}
	lister := &Lister{
		root:      dir.clone(),
		recursive: recursive,
	}
	err := lister.Reset()
	if err != nil {
		return nil, err
	}
	return lister, nil
}

// Reset restarts the listing from the beginning.
func (l *Lister) Reset() error {
	l.Close()
	err := l.root.refreshDirSize()
	if err != nil {
		return err
	}
	l.root.Rewind()
	l.stack = []listFrame{{dir: l.root}}
	return nil
}

// Next returns the next entry, or [io.EOF] when the listing is done.
func (l *Lister) Next() (DirEntry, error) {
	for len(l.stack) > 0 {
		top := &l.stack[len(l.stack)-1]
		raw, index, err := top.dir.ReadDirEntry()
		if err == io.EOF {
			l.pop()
			continue
		}
		if err != nil {
			return DirEntry{}, err
		}

		name := raw.ShortName().String()
		entry := DirEntry{
			Path:         path.Join(top.path, name),
			Name:         name,
			Depth:        top.depth,
			Index:        index,
			Attributes:   raw.AttributeFlags,
			Size:         raw.FileSize,
			FirstCluster: raw.FirstCluster(),
			ModDate:      raw.LastModifiedDate,
			ModTime:      raw.LastModifiedTime,
		}

		if l.recursive && raw.IsSubdir() {
			if top.depth >= MaxDirDepth {
				return entry, sdfat.ErrTooManyLevels.WithMessage(
					fmt.Sprintf("%s is nested more than %d deep", entry.Path, MaxDirDepth))
			}
			sub, err := top.dir.OpenIndex(index, sdfat.O_RDONLY)
			if err != nil {
				return entry, err
			}
			l.stack = append(l.stack, listFrame{dir: sub, path: entry.Path, depth: top.depth + 1})
		}
		return entry, nil
	}
	return DirEntry{}, io.EOF
}

func (l *Lister) pop() {
	top := l.stack[len(l.stack)-1]
	if top.dir != l.root {
		top.dir.Close()
	}
	l.stack = l.stack[:len(l.stack)-1]
}

// Close releases the handles held by the listing.
func (l *Lister) Close() {
	for len(l.stack) > 0 {
		l.pop()
	}
}

// ReadDir returns every entry directly in the directory.
func (dir *File) ReadDir() ([]DirEntry, error) {
	lister, err := dir.List(false)
	if err != nil {
		return nil, err
	}
	defer lister.Close()

	var entries []DirEntry
	for {
		entry, err := lister.Next()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return entries, err
		}
		entries = append(entries, entry)
	}
}
