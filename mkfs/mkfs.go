// Package mkfs creates empty FAT12, FAT16 and FAT32 file systems.
package mkfs

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/dargueta/sdfat"
	"github.com/dargueta/sdfat/disks"
	"github.com/dargueta/sdfat/file_systems/fat"
	"github.com/noxer/bytewriter"
	"github.com/sirupsen/logrus"
)

// Options controls the layout of a new volume. Zero fields get defaults, taken
// from [disks.PresetForBlocks] where the volume size matters.
type Options struct {
	FATType           fat.FATType
	SectorsPerCluster uint8
	// NumFATs defaults to 2.
	NumFATs uint8
	// RootEntries is the size of the fixed root directory of FAT12/16 volumes.
	// It's rounded up to fill a whole block.
	RootEntries     uint16
	ReservedSectors uint16
	// Media defaults to 0xF8, a fixed disk.
	Media           uint8
	SectorsPerTrack uint16
	Heads           uint16
	// VolumeLabel defaults to "NO NAME". Any other label also gets a volume
	// label entry in the root directory.
	VolumeLabel string
	OEMName     string
	// VolumeID defaults to the current time.
	VolumeID uint32
	// PartitionStart, if nonzero, puts the volume in the first partition of an
	// MBR, starting at this block and taking up the rest of the device.
	PartitionStart uint32
	Logger         logrus.FieldLogger
}

// OptionsForGeometry gives the options for formatting a floppy disk.
func OptionsForGeometry(geometry disks.DiskGeometry) Options {
	return Options{
		FATType:           fat.FAT12,
		SectorsPerCluster: geometry.SectorsPerCluster,
		RootEntries:       geometry.RootEntries,
		ReservedSectors:   1,
		Media:             geometry.Media,
		SectorsPerTrack:   geometry.SectorsPerTrack,
		Heads:             geometry.Heads,
	}
}

// Layout is where everything goes on a new volume. Block numbers are relative
// to the start of the volume.
type Layout struct {
	FATType           fat.FATType
	VolumeStart       uint32
	VolumeBlocks      uint32
	ReservedSectors   uint16
	NumFATs           uint8
	SectorsPerFAT     uint32
	RootEntries       uint16
	RootDirBlocks     uint32
	SectorsPerCluster uint8
	DataStart         uint32
	ClusterCount      uint32
}

const (
	defaultLabel   = "NO NAME"
	defaultOEMName = "SDFAT"

	fat32FSInfoSector     = 1
	fat32BackupBootSector = 6
	fat32RootCluster      = 2
)

func isPowerOfTwo(value uint8) bool {
	return value != 0 && value&(value-1) == 0
}

// fatBlocksNeeded gives the size of one FAT covering `clusters` clusters.
func fatBlocksNeeded(fatType fat.FATType, clusters uint32) uint32 {
	bytesNeeded := ((uint64(clusters)+2)*uint64(fatType) + 7) / 8
	return uint32((bytesNeeded + sdfat.BlockSize - 1) / sdfat.BlockSize)
}

// Plan works out the layout of a volume without writing anything.
func Plan(totalBlocks uint32, options Options) (Layout, error) {
	if options.PartitionStart >= totalBlocks {
		return Layout{}, sdfat.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"partition can't start at block %d of a %d-block device",
				options.PartitionStart,
				totalBlocks))
	}

	layout := Layout{
		FATType:           options.FATType,
		VolumeStart:       options.PartitionStart,
		VolumeBlocks:      totalBlocks - options.PartitionStart,
		ReservedSectors:   options.ReservedSectors,
		NumFATs:           options.NumFATs,
		RootEntries:       options.RootEntries,
		SectorsPerCluster: options.SectorsPerCluster,
	}

	preset, presetErr := disks.PresetForBlocks(layout.VolumeBlocks)
	if layout.FATType == 0 {
		if presetErr != nil {
			return Layout{}, presetErr
		}
		layout.FATType = fat.FATType(preset.FATType)
	}
	if layout.SectorsPerCluster == 0 {
		if presetErr != nil || fat.FATType(preset.FATType) != layout.FATType {
			return Layout{}, sdfat.ErrInvalidArgument.WithMessage(
				fmt.Sprintf(
					"no default cluster size for FAT%d on %d blocks",
					layout.FATType,
					layout.VolumeBlocks))
		}
		layout.SectorsPerCluster = preset.SectorsPerCluster
	}

	switch layout.FATType {
	case fat.FAT12, fat.FAT16:
		if layout.RootEntries == 0 {
			layout.RootEntries = 512
			if presetErr == nil && preset.RootEntries != 0 {
				layout.RootEntries = preset.RootEntries
			}
		}
		if layout.ReservedSectors == 0 {
			layout.ReservedSectors = 1
		}
	case fat.FAT32:
		layout.RootEntries = 0
		if layout.ReservedSectors == 0 {
			layout.ReservedSectors = 32
		}
		if layout.ReservedSectors <= fat32BackupBootSector+1 {
			return Layout{}, sdfat.ErrInvalidArgument.WithMessage(
				fmt.Sprintf("FAT32 needs at least 8 reserved sectors, got %d", layout.ReservedSectors))
		}
	default:
		return Layout{}, sdfat.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("FAT type must be 12, 16 or 32, got %d", layout.FATType))
	}

	if layout.NumFATs == 0 {
		layout.NumFATs = 2
	}
	if !isPowerOfTwo(layout.SectorsPerCluster) {
		return Layout{}, sdfat.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"sectors per cluster must be a power of 2 in 1-128, got %d",
				layout.SectorsPerCluster))
	}

	// Round the root directory up to whole blocks.
	layout.RootDirBlocks = (uint32(layout.RootEntries)*fat.DirentSize + sdfat.BlockSize - 1) / sdfat.BlockSize
	if layout.RootDirBlocks*(sdfat.BlockSize/fat.DirentSize) > 0xFFFF {
		return Layout{}, sdfat.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("too many root directory entries: %d", layout.RootEntries))
	}
	layout.RootEntries = uint16(layout.RootDirBlocks * (sdfat.BlockSize / fat.DirentSize))

	// The FAT size depends on the cluster count, which depends on the FAT size.
	// Growing the FAT only ever shrinks the cluster count, so this converges.
	layout.SectorsPerFAT = 1
	for {
		overhead := uint64(layout.ReservedSectors) +
			uint64(layout.NumFATs)*uint64(layout.SectorsPerFAT) +
			uint64(layout.RootDirBlocks)
		if overhead >= uint64(layout.VolumeBlocks) {
			return Layout{}, sdfat.ErrInvalidArgument.WithMessage(
				fmt.Sprintf("volume of %d blocks is too small", layout.VolumeBlocks))
		}

		layout.DataStart = uint32(overhead)
		layout.ClusterCount = (layout.VolumeBlocks - layout.DataStart) / uint32(layout.SectorsPerCluster)

		needed := fatBlocksNeeded(layout.FATType, layout.ClusterCount)
		if needed <= layout.SectorsPerFAT {
			break
		}
		layout.SectorsPerFAT = needed
	}

	actualType := fat.DetermineFATVersion(layout.ClusterCount)
	if actualType != layout.FATType {
		return Layout{}, sdfat.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"%d clusters of %d blocks make a FAT%d volume, not FAT%d",
				layout.ClusterCount,
				layout.SectorsPerCluster,
				actualType,
				layout.FATType))
	}
	return layout, nil
}

func paddedField(value string, length int) []byte {
	field := []byte(strings.ToUpper(value))
	if len(field) > length {
		field = field[:length]
	}
	for len(field) < length {
		field = append(field, ' ')
	}
	return field
}

// Format writes an empty file system to `device`, which has `totalBlocks`
// blocks.
func Format(device sdfat.BlockDevice, totalBlocks uint32, options Options) error {
	layout, err := Plan(totalBlocks, options)
	if err != nil {
		return err
	}

	log := options.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithFields(logrus.Fields{
		"fat_type":           layout.FATType,
		"volume_start":       layout.VolumeStart,
		"volume_blocks":      layout.VolumeBlocks,
		"sectors_per_fat":    layout.SectorsPerFAT,
		"sectors_per_clus":   layout.SectorsPerCluster,
		"cluster_count":      layout.ClusterCount,
		"root_entries":       layout.RootEntries,
		"reserved_sectors":   layout.ReservedSectors,
		"data_start_block":   layout.VolumeStart + layout.DataStart,
		"number_of_fat_copy": layout.NumFATs,
	}).Debug("formatting volume")

	w := &blockWriter{device: device}

	if layout.VolumeStart != 0 {
		w.write(0, encodeMBR(layout))
	}

	// Reserved area, FATs and the root directory all start out zeroed.
	w.zero(layout.VolumeStart, layout.DataStart)
	if layout.FATType == fat.FAT32 {
		w.zero(
			layout.VolumeStart+layout.DataStart,
			uint32(layout.SectorsPerCluster))
	}

	bootSector := encodeBootSector(layout, options)
	w.write(layout.VolumeStart, bootSector)

	if layout.FATType == fat.FAT32 {
		fsInfo := encodeFSInfo(layout)
		w.write(layout.VolumeStart+fat32FSInfoSector, fsInfo)
		w.write(layout.VolumeStart+fat32BackupBootSector, bootSector)
		w.write(layout.VolumeStart+fat32BackupBootSector+1, fsInfo)
	}

	firstFATBlock := encodeFirstFATBlock(layout, mediaByte(options))
	for i := uint32(0); i < uint32(layout.NumFATs); i++ {
		w.write(
			layout.VolumeStart+uint32(layout.ReservedSectors)+i*layout.SectorsPerFAT,
			firstFATBlock)
	}

	label := options.VolumeLabel
	if label != "" && !strings.EqualFold(label, defaultLabel) {
		rootBlock := layout.VolumeStart + layout.DataStart - layout.RootDirBlocks
		if layout.FATType == fat.FAT32 {
			rootBlock = layout.VolumeStart + layout.DataStart
		}
		w.write(rootBlock, encodeLabelEntry(label))
	}

	if w.err != nil {
		return sdfat.ErrIOFailed.Wrap(w.err)
	}
	return nil
}

// blockWriter remembers the first error so a run of writes can be checked
// once.
type blockWriter struct {
	device sdfat.BlockDevice
	err    error
}

func (w *blockWriter) write(block uint32, data []byte) {
	if w.err == nil {
		w.err = w.device.WriteBlock(block, data)
	}
}

func (w *blockWriter) zero(start, count uint32) {
	var empty [sdfat.BlockSize]byte
	for i := uint32(0); i < count && w.err == nil; i++ {
		w.write(start+i, empty[:])
	}
}

func mediaByte(options Options) uint8 {
	if options.Media == 0 {
		return 0xF8
	}
	return options.Media
}

func encodeBootSector(layout Layout, options Options) []byte {
	block := make([]byte, sdfat.BlockSize)
	writer := bytewriter.New(block)

	oemName := options.OEMName
	if oemName == "" {
		oemName = defaultOEMName
	}
	label := options.VolumeLabel
	if label == "" {
		label = defaultLabel
	}
	volumeID := options.VolumeID
	if volumeID == 0 {
		volumeID = uint32(time.Now().Unix())
	}
	sectorsPerTrack := options.SectorsPerTrack
	if sectorsPerTrack == 0 {
		sectorsPerTrack = 63
	}
	heads := options.Heads
	if heads == 0 {
		heads = 255
	}

	bpb := fat.RawBPB{
		BytesPerSector:    sdfat.BlockSize,
		SectorsPerCluster: layout.SectorsPerCluster,
		ReservedSectors:   layout.ReservedSectors,
		NumFATs:           layout.NumFATs,
		RootEntryCount:    layout.RootEntries,
		Media:             mediaByte(options),
		SectorsPerTrack:   sectorsPerTrack,
		NumHeads:          heads,
		HiddenSectors:     layout.VolumeStart,
	}
	copy(bpb.OEMName[:], paddedField(oemName, len(bpb.OEMName)))

	if layout.FATType != fat.FAT32 && layout.VolumeBlocks < 0x10000 {
		bpb.TotalSectors16 = uint16(layout.VolumeBlocks)
	} else {
		bpb.TotalSectors32 = layout.VolumeBlocks
	}

	if layout.FATType == fat.FAT32 {
		bpb.JmpBoot = [3]byte{0xEB, 0x58, 0x90}
		extension := fat.RawFAT32Extension{
			SectorsPerFAT32:  layout.SectorsPerFAT,
			RootCluster:      fat32RootCluster,
			FSInfoSector:     fat32FSInfoSector,
			BackupBootSector: fat32BackupBootSector,
			DriveNumber:      0x80,
			BootSignature:    0x29,
			VolumeID:         volumeID,
		}
		copy(extension.VolumeLabel[:], paddedField(label, len(extension.VolumeLabel)))
		copy(extension.FSType[:], paddedField("FAT32", len(extension.FSType)))

		binary.Write(writer, binary.LittleEndian, &bpb)
		binary.Write(writer, binary.LittleEndian, &extension)
	} else {
		bpb.JmpBoot = [3]byte{0xEB, 0x3C, 0x90}
		bpb.SectorsPerFAT16 = uint16(layout.SectorsPerFAT)
		extension := fat.RawFAT16Extension{
			DriveNumber:   0x80,
			BootSignature: 0x29,
			VolumeID:      volumeID,
		}
		copy(extension.VolumeLabel[:], paddedField(label, len(extension.VolumeLabel)))
		copy(
			extension.FSType[:],
			paddedField(fmt.Sprintf("FAT%d", layout.FATType), len(extension.FSType)))

		binary.Write(writer, binary.LittleEndian, &bpb)
		binary.Write(writer, binary.LittleEndian, &extension)
	}

	block[510] = 0x55
	block[511] = 0xAA
	return block
}

func encodeFSInfo(layout Layout) []byte {
	block := make([]byte, sdfat.BlockSize)
	binary.LittleEndian.PutUint32(block[0:], 0x41615252)
	binary.LittleEndian.PutUint32(block[484:], 0x61417272)
	// The root directory takes the first cluster.
	binary.LittleEndian.PutUint32(block[488:], layout.ClusterCount-1)
	binary.LittleEndian.PutUint32(block[492:], fat32RootCluster+1)
	binary.LittleEndian.PutUint32(block[508:], 0xAA550000)
	return block
}

// encodeFirstFATBlock gives the first block of the FAT: the media descriptor
// and end of chain marker in the two reserved entries, and for FAT32 the end
// of the root directory's chain.
func encodeFirstFATBlock(layout Layout, media uint8) []byte {
	block := make([]byte, sdfat.BlockSize)
	switch layout.FATType {
	case fat.FAT12:
		copy(block, []byte{media, 0xFF, 0xFF})
	case fat.FAT16:
		copy(block, []byte{media, 0xFF, 0xFF, 0xFF})
	default:
		binary.LittleEndian.PutUint32(block[0:], 0x0FFFFF00|uint32(media))
		binary.LittleEndian.PutUint32(block[4:], 0x0FFFFFFF)
		binary.LittleEndian.PutUint32(block[4*fat32RootCluster:], 0x0FFFFFFF)
	}
	return block
}

func encodeLabelEntry(label string) []byte {
	block := make([]byte, sdfat.BlockSize)
	entry := fat.RawDirent{
		AttributeFlags:   fat.AttrVolumeLabel,
		LastModifiedDate: fat.DefaultDate,
		LastModifiedTime: fat.DefaultTime,
	}
	name := paddedField(label, len(entry.Name)+len(entry.Extension))
	copy(entry.Name[:], name[:8])
	copy(entry.Extension[:], name[8:])
	entry.Encode(block)
	return block
}

// partitionType gives the MBR partition type byte for the volume.
func partitionType(layout Layout) uint8 {
	switch {
	case layout.FATType == fat.FAT12:
		return 0x01
	case layout.FATType == fat.FAT16 && layout.VolumeBlocks < 0x10000:
		return 0x04
	case layout.FATType == fat.FAT16:
		return 0x06
	default:
		// FAT32 with LBA addressing.
		return 0x0C
	}
}

func encodeMBR(layout Layout) []byte {
	block := make([]byte, sdfat.BlockSize)
	// CHS addresses beyond what CHS can express; readers use the LBA fields.
	entry := fat.PartitionEntry{
		BeginCHS:     [3]byte{0xFE, 0xFF, 0xFF},
		Type:         partitionType(layout),
		EndCHS:       [3]byte{0xFE, 0xFF, 0xFF},
		FirstSector:  layout.VolumeStart,
		TotalSectors: layout.VolumeBlocks,
	}

	writer := bytewriter.New(block[446:510])
	binary.Write(writer, binary.LittleEndian, &entry)

	block[510] = 0x55
	block[511] = 0xAA
	return block
}
