// Package fat implements a FAT12/16/32 engine over a 512-byte block device:
// volume geometry, the file allocation table, and file and directory handles.
package fat

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/dargueta/sdfat"
)

// FATType is the width of a FAT entry, in bits.
type FATType uint8

const (
	FAT12 FATType = 12
	FAT16 FATType = 16
	FAT32 FATType = 32
)

// RawBPB is the on-disk representation of the BIOS parameter block at the
// start of the boot sector. It's common to all FAT versions; the fields after
// it are in [RawFAT16Extension] or [RawFAT32Extension].
type RawBPB struct {
	JmpBoot           [3]byte
	OEMName           [8]byte
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	RootEntryCount    uint16
	TotalSectors16    uint16
	Media             uint8
	SectorsPerFAT16   uint16
	SectorsPerTrack   uint16
	NumHeads          uint16
	HiddenSectors     uint32
	TotalSectors32    uint32
}

// RawFAT16Extension follows [RawBPB] on FAT12 and FAT16 volumes.
type RawFAT16Extension struct {
	DriveNumber   uint8
	Reserved1     uint8
	BootSignature uint8
	VolumeID      uint32
	VolumeLabel   [11]byte
	FSType        [8]byte
}

// RawFAT32Extension follows [RawBPB] on FAT32 volumes.
type RawFAT32Extension struct {
	SectorsPerFAT32  uint32
	ExtFlags         uint16
	FSVersion        uint16
	RootCluster      uint32
	FSInfoSector     uint16
	BackupBootSector uint16
	Reserved         [12]byte
	DriveNumber      uint8
	Reserved1        uint8
	BootSignature    uint8
	VolumeID         uint32
	VolumeLabel      [11]byte
	FSType           [8]byte
}

// BootSector extends RawBPB with fields resolved from the 16- and 32-bit
// variants of the BPB. FAT32 is only meaningful on FAT32 volumes.
type BootSector struct {
	RawBPB
	FAT32 RawFAT32Extension

	SectorsPerFAT uint32
	TotalSectors  uint32
	// ClusterSizeShift is log2(SectorsPerCluster).
	ClusterSizeShift uint8
}

// PartitionEntry is one of the four primary partition slots of an MBR.
type PartitionEntry struct {
	Boot         uint8
	BeginCHS     [3]byte
	Type         uint8
	EndCHS       [3]byte
	FirstSector  uint32
	TotalSectors uint32
}

const mbrPartitionTableOffset = 446
const partitionEntrySize = 16

// DetermineFATVersion determines the version of the FAT file system based on
// the number of clusters on the system. (This is the only proper way to do so.)
func DetermineFATVersion(totalClusters uint32) FATType {
	// These cluster counts, while odd-looking, are correct. They're taken
	// directly from Microsoft's FAT documentation, v1.03, page 14.
	if totalClusters < 4085 {
		return FAT12
	}
	if totalClusters < 65525 {
		return FAT16
	}
	return FAT32
}

// ParseBootSector decodes and validates the boot sector in `block`.
func ParseBootSector(block []byte) (*BootSector, error) {
	bootSector := BootSector{}
	reader := bytes.NewReader(block)

	err := binary.Read(reader, binary.LittleEndian, &bootSector.RawBPB)
	if err != nil {
		return nil, sdfat.ErrIOFailed.Wrap(err)
	}
	err = binary.Read(reader, binary.LittleEndian, &bootSector.FAT32)
	if err != nil {
		return nil, sdfat.ErrIOFailed.Wrap(err)
	}

	if bootSector.BytesPerSector != sdfat.BlockSize {
		return nil, sdfat.ErrInvalidFileSystem.WithMessage(
			fmt.Sprintf("BytesPerSector must be 512, got %d", bootSector.BytesPerSector))
	}
	if bootSector.NumFATs == 0 {
		return nil, sdfat.ErrInvalidFileSystem.WithMessage("FAT count is 0")
	}
	if bootSector.ReservedSectors == 0 {
		return nil, sdfat.ErrInvalidFileSystem.WithMessage("reserved sector count is 0")
	}

	// SectorsPerCluster must be 2^x with x in [0, 8)
	shift := uint8(0)
	for tmp := uint8(1); tmp != bootSector.SectorsPerCluster; shift++ {
		tmp <<= 1
		if tmp == 0 {
			return nil, sdfat.ErrInvalidFileSystem.WithMessage(
				fmt.Sprintf(
					"SectorsPerCluster must be a power of 2 in 1-128, got %d",
					bootSector.SectorsPerCluster))
		}
	}
	bootSector.ClusterSizeShift = shift

	if bootSector.SectorsPerFAT16 != 0 {
		bootSector.SectorsPerFAT = uint32(bootSector.SectorsPerFAT16)
	} else {
		bootSector.SectorsPerFAT = bootSector.FAT32.SectorsPerFAT32
	}
	if bootSector.SectorsPerFAT == 0 {
		return nil, sdfat.ErrInvalidFileSystem.WithMessage("sectors per FAT is 0")
	}

	if bootSector.TotalSectors16 != 0 {
		bootSector.TotalSectors = uint32(bootSector.TotalSectors16)
	} else {
		bootSector.TotalSectors = bootSector.TotalSectors32
	}
	return &bootSector, nil
}

// ReadPartitionEntry decodes primary partition `index` (1-4) from an MBR.
func ReadPartitionEntry(mbr []byte, index uint8) (PartitionEntry, error) {
	entry := PartitionEntry{}
	if index < 1 || index > 4 {
		return entry, sdfat.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("partition number must be in [1, 4], got %d", index))
	}

	offset := mbrPartitionTableOffset + int(index-1)*partitionEntrySize
	err := binary.Read(
		bytes.NewReader(mbr[offset:offset+partitionEntrySize]),
		binary.LittleEndian,
		&entry)
	if err != nil {
		return entry, sdfat.ErrIOFailed.Wrap(err)
	}
	return entry, nil
}
