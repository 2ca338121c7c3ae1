package driver

import (
	"io/fs"
	"os"
	"time"

	"github.com/dargueta/sdfat/file_systems/fat"
)

// FileInfo describes a file or directory. It implements both the [os.FileInfo]
// and [fs.DirEntry] interfaces.
type FileInfo struct {
	name       string
	size       int64
	attributes uint8
	modTime    time.Time
	isRoot     bool
	entry      fat.RawDirent
}

var rootInfo = FileInfo{
	name:       "/",
	attributes: fat.AttrDirectory,
	modTime:    fat.TimestampFromParts(fat.DefaultDate, fat.DefaultTime, 0),
	isRoot:     true,
}

func newFileInfoFromDirent(entry fat.RawDirent) *FileInfo {
	return &FileInfo{
		name:       entry.ShortName().String(),
		size:       int64(entry.FileSize),
		attributes: entry.AttributeFlags,
		modTime:    entry.ModTime(),
		entry:      entry,
	}
}

func newFileInfoFromListing(entry *fat.DirEntry) *FileInfo {
	info := &FileInfo{
		name:       entry.Name,
		size:       int64(entry.Size),
		attributes: entry.Attributes,
		modTime:    entry.ModificationTime(),
	}
	info.entry.AttributeFlags = entry.Attributes
	info.entry.FileSize = entry.Size
	info.entry.LastModifiedDate = entry.ModDate
	info.entry.LastModifiedTime = entry.ModTime
	info.entry.SetFirstCluster(entry.FirstCluster)
	return info
}

// statHandle builds a [FileInfo] for an open file or directory.
func statHandle(f *fat.File) (*FileInfo, error) {
	if f.IsRoot() {
		info := rootInfo
		info.size = int64(f.Size())
		return &info, nil
	}
	entry, err := f.DirEntry()
	if err != nil {
		return nil, err
	}
	info := newFileInfoFromDirent(entry)
	// The entry may not be synced yet, and directory entries always record a
	// size of 0.
	info.size = int64(f.Size())
	return info, nil
}

// os.FileInfo implementation --------------------------------------------------

func (info *FileInfo) Name() string { return info.name }

func (info *FileInfo) Size() int64 { return info.size }

// Mode approximates permissions from the FAT attributes: read-only entries
// have no write bits.
func (info *FileInfo) Mode() os.FileMode {
	mode := os.FileMode(0o666)
	if info.IsDir() {
		mode = os.ModeDir | 0o777
	}
	if info.attributes&fat.AttrReadOnly != 0 {
		mode &^= 0o222
	}
	return mode
}

func (info *FileInfo) ModTime() time.Time { return info.modTime }

func (info *FileInfo) IsDir() bool { return info.attributes&fat.AttrDirectory != 0 }

// Sys returns the [fat.RawDirent] the information came from. It's the zero
// value for the root directory.
func (info *FileInfo) Sys() any { return info.entry }

// fs.DirEntry implementation --------------------------------------------------

func (info *FileInfo) Type() fs.FileMode { return info.Mode().Type() }

func (info *FileInfo) Info() (fs.FileInfo, error) { return info, nil }

// Attributes returns the FAT attribute flags of the entry.
func (info *FileInfo) Attributes() uint8 { return info.attributes }

// IsRoot is true for the root directory, which has no directory entry.
func (info *FileInfo) IsRoot() bool { return info.isRoot }
