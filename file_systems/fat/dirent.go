package fat

import (
	"encoding/binary"
	"time"
)

// DirentSize is the size of a single raw directory entry, in bytes.
const DirentSize = 32

const direntsPerBlock = 512 / DirentSize

const (
	// direntFree in the first byte of a name marks the entry as free, and every
	// entry after it in the directory as free too.
	direntFree = 0x00
	// direntDeleted in the first byte of a name marks the entry as deleted. The
	// slot may be reused.
	direntDeleted = 0xE5
	// direntE5 stands in for a real 0xE5 as the first byte of a name.
	direntE5 = 0x05
)

const (
	// AttrReadOnly is an attribute flag marking a directory entry as read-only.
	AttrReadOnly = 0x01

	// AttrHidden is an attribute flag marking a directory entry as "hidden",
	// meaning it wouldn't show up in normal directory listings.
	AttrHidden = 0x02

	// AttrSystem is an attribute flag marking a directory entry as essential to
	// the operating system.
	AttrSystem = 0x04

	// AttrVolumeLabel is an attribute flag that marks an entry as holding the
	// volume label rather than a file. Long file name entries also carry it.
	AttrVolumeLabel = 0x08

	// AttrDirectory is an attribute flag marking a directory entry as being a
	// directory.
	AttrDirectory = 0x10

	// AttrArchived is an attribute flag set whenever the directory entry is
	// created or modified. Archiving tools use it to find files to back up.
	AttrArchived = 0x20

	// AttrLongName is the combination of flags that marks a long file name
	// entry.
	AttrLongName = AttrReadOnly | AttrHidden | AttrSystem | AttrVolumeLabel

	// attrFileTypeMask selects the bits distinguishing files, directories,
	// and labels.
	attrFileTypeMask = AttrVolumeLabel | AttrDirectory

	// attrUserMask selects the bits a user may change on an existing entry.
	attrUserMask = AttrReadOnly | AttrHidden | AttrSystem | AttrArchived
)

// RawDirent is the on-disk representation of a directory entry, broken down
// into its constituent fields.
type RawDirent struct {
	Name              [8]byte
	Extension         [3]byte
	AttributeFlags    uint8
	NTReserved        uint8
	CreatedTimeTenths uint8
	CreatedTime       uint16
	CreatedDate       uint16
	LastAccessedDate  uint16
	FirstClusterHigh  uint16
	LastModifiedTime  uint16
	LastModifiedDate  uint16
	FirstClusterLow   uint16
	FileSize          uint32
}

// NewRawDirentFromBytes deserializes 32 bytes into a RawDirent struct for
// further processing.
func NewRawDirentFromBytes(data []byte) RawDirent {
	dirent := RawDirent{
		AttributeFlags:    data[11],
		NTReserved:        data[12],
		CreatedTimeTenths: data[13],
		CreatedTime:       binary.LittleEndian.Uint16(data[14:16]),
		CreatedDate:       binary.LittleEndian.Uint16(data[16:18]),
		LastAccessedDate:  binary.LittleEndian.Uint16(data[18:20]),
		FirstClusterHigh:  binary.LittleEndian.Uint16(data[20:22]),
		LastModifiedTime:  binary.LittleEndian.Uint16(data[22:24]),
		LastModifiedDate:  binary.LittleEndian.Uint16(data[24:26]),
		FirstClusterLow:   binary.LittleEndian.Uint16(data[26:28]),
		FileSize:          binary.LittleEndian.Uint32(data[28:32]),
	}

	copy(dirent.Name[:], data[:8])
	copy(dirent.Extension[:], data[8:11])
	return dirent
}

// Encode serializes the entry into the first 32 bytes of `data`.
func (d *RawDirent) Encode(data []byte) {
	copy(data[:8], d.Name[:])
	copy(data[8:11], d.Extension[:])
	data[11] = d.AttributeFlags
	data[12] = d.NTReserved
	data[13] = d.CreatedTimeTenths
	binary.LittleEndian.PutUint16(data[14:16], d.CreatedTime)
	binary.LittleEndian.PutUint16(data[16:18], d.CreatedDate)
	binary.LittleEndian.PutUint16(data[18:20], d.LastAccessedDate)
	binary.LittleEndian.PutUint16(data[20:22], d.FirstClusterHigh)
	binary.LittleEndian.PutUint16(data[22:24], d.LastModifiedTime)
	binary.LittleEndian.PutUint16(data[24:26], d.LastModifiedDate)
	binary.LittleEndian.PutUint16(data[26:28], d.FirstClusterLow)
	binary.LittleEndian.PutUint32(data[28:32], d.FileSize)
}

func (d *RawDirent) ShortName() ShortName {
	var name ShortName
	copy(name[:8], d.Name[:])
	copy(name[8:], d.Extension[:])
	return name
}

func (d *RawDirent) SetShortName(name ShortName) {
	copy(d.Name[:], name[:8])
	copy(d.Extension[:], name[8:])
}

func (d *RawDirent) FirstCluster() uint32 {
	return uint32(d.FirstClusterHigh)<<16 | uint32(d.FirstClusterLow)
}

func (d *RawDirent) SetFirstCluster(cluster uint32) {
	d.FirstClusterHigh = uint16(cluster >> 16)
	d.FirstClusterLow = uint16(cluster)
}

// IsFree is true for a never-used entry, which also ends the directory.
func (d *RawDirent) IsFree() bool { return d.Name[0] == direntFree }

func (d *RawDirent) IsDeleted() bool { return d.Name[0] == direntDeleted }

// IsDot is true for the `.` and `..` entries of a subdirectory.
func (d *RawDirent) IsDot() bool { return d.Name[0] == '.' }

// IsFileOrSubdir is false for volume labels and long name entries.
func (d *RawDirent) IsFileOrSubdir() bool { return d.AttributeFlags&AttrVolumeLabel == 0 }

func (d *RawDirent) IsFile() bool { return d.AttributeFlags&attrFileTypeMask == 0 }

func (d *RawDirent) IsSubdir() bool {
	return d.AttributeFlags&attrFileTypeMask == AttrDirectory
}

// IsLive is true for an entry naming a file or directory other than `.` and
// `..`.
func (d *RawDirent) IsLive() bool {
	return !d.IsFree() && !d.IsDeleted() && !d.IsDot() && d.IsFileOrSubdir()
}

func (d *RawDirent) ModTime() time.Time {
	return TimestampFromParts(d.LastModifiedDate, d.LastModifiedTime, 0)
}

func (d *RawDirent) CreatedAt() time.Time {
	return TimestampFromParts(d.CreatedDate, d.CreatedTime, d.CreatedTimeTenths)
}

func (d *RawDirent) LastAccessedAt() time.Time {
	return DateFromInt(d.LastAccessedDate)
}

// direntSlice returns the bytes of entry `index` within a directory block.
func direntSlice(block []byte, index uint8) []byte {
	offset := int(index) * DirentSize
	return block[offset : offset+DirentSize]
}
