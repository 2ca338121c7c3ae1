package fat

import (
	"errors"
	"fmt"

	"github.com/dargueta/sdfat"
	"github.com/dargueta/sdfat/file_systems/common/blockcache"
	"github.com/sirupsen/logrus"
)

// MountOptions configures [Mount].
type MountOptions struct {
	// Partition selects the volume: 0 for a device without a partition table
	// (the boot sector is in block 0), or 1-4 for an MBR primary partition.
	Partition uint8
	// DisableFAT12 rejects volumes small enough to be FAT12.
	DisableFAT12 bool
	// SeparateFATCache gives FAT blocks their own cache buffer, so that walking
	// a cluster chain doesn't evict the data block being read or written.
	SeparateFATCache bool
	// DateTime stamps new and modified directory entries. If nil, new entries
	// get [DefaultDate] and [DefaultTime] and modification times are left as
	// they are.
	DateTime DateTimeFunc
	// Logger defaults to the logrus standard logger.
	Logger logrus.FieldLogger
}

// Volume is a mounted FAT volume. It owns the block cache shared by every
// [File] opened on it.
//
// A Volume and its files aren't safe for concurrent use.
type Volume struct {
	device   sdfat.BlockDevice
	multi    sdfat.MultiBlockDevice
	log      logrus.FieldLogger
	dateTime DateTimeFunc

	cache    *blockcache.BlockCache
	fatCache *blockcache.BlockCache

	// allocSearchStart is where the next allocation starts looking for free
	// clusters. Every cluster before it is probably in use.
	allocSearchStart  uint32
	blocksPerCluster  uint8
	clusterBlockMask  uint8
	clusterSizeShift  uint8
	fatCount          uint8
	fatType           FATType
	blocksPerFAT      uint32
	clusterCount      uint32
	dataStartBlock    uint32
	fatStartBlock     uint32
	rootDirEntryCount uint16
	rootDirStart      uint32
	volumeStartBlock  uint32
}

// Mount reads the boot sector of a FAT volume on `device` and returns a handle
// to the volume.
func Mount(device sdfat.BlockDevice, options MountOptions) (*Volume, error) {
	vol := &Volume{
		device:           device,
		log:              options.Logger,
		dateTime:         options.DateTime,
		allocSearchStart: 2,
	}
	if vol.log == nil {
		vol.log = logrus.StandardLogger()
	}
	if multi, ok := device.(sdfat.MultiBlockDevice); ok {
		vol.multi = multi
	}

	vol.cache = blockcache.New(vol.fetchBlock, vol.flushBlock)
	if options.SeparateFATCache {
		vol.fatCache = blockcache.New(vol.fetchBlock, vol.flushBlock)
	} else {
		vol.fatCache = vol.cache
	}

	if options.Partition > 4 {
		return nil, sdfat.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("partition number must be in [0, 4], got %d", options.Partition))
	}

	if options.Partition != 0 {
		mbr, err := vol.cache.Fetch(0, blockcache.ForRead)
		if err != nil {
			return nil, err
		}
		partition, err := ReadPartitionEntry(mbr, options.Partition)
		if err != nil {
			return nil, err
		}
		if (partition.Boot&0x7F) != 0 || partition.FirstSector == 0 {
			return nil, sdfat.ErrInvalidFileSystem.WithMessage(
				fmt.Sprintf("partition %d is not a valid partition", options.Partition))
		}
		vol.volumeStartBlock = partition.FirstSector
	}

	block, err := vol.cache.Fetch(vol.volumeStartBlock, blockcache.ForRead)
	if err != nil {
		return nil, err
	}
	bootSector, err := ParseBootSector(block)
	if err != nil {
		return nil, err
	}

	err = vol.setGeometry(bootSector)
	if err != nil {
		return nil, err
	}
	if vol.fatType == FAT12 && options.DisableFAT12 {
		return nil, sdfat.ErrNotSupported.WithMessage("FAT12 support is disabled")
	}

	vol.log.WithFields(logrus.Fields{
		"fat_type":           vol.fatType,
		"volume_start":       vol.volumeStartBlock,
		"fat_start":          vol.fatStartBlock,
		"fat_count":          vol.fatCount,
		"blocks_per_fat":     vol.blocksPerFAT,
		"root_dir_start":     vol.rootDirStart,
		"data_start":         vol.dataStartBlock,
		"cluster_count":      vol.clusterCount,
		"blocks_per_cluster": vol.blocksPerCluster,
	}).Debug("mounted FAT volume")
	return vol, nil
}

func (vol *Volume) setGeometry(bootSector *BootSector) error {
	vol.fatCount = bootSector.NumFATs
	vol.blocksPerCluster = bootSector.SectorsPerCluster
	vol.clusterBlockMask = bootSector.SectorsPerCluster - 1
	vol.clusterSizeShift = bootSector.ClusterSizeShift
	vol.blocksPerFAT = bootSector.SectorsPerFAT
	vol.fatStartBlock = vol.volumeStartBlock + uint32(bootSector.ReservedSectors)
	vol.rootDirEntryCount = bootSector.RootEntryCount

	// Directory start for FAT16, data start for FAT32
	vol.rootDirStart = vol.fatStartBlock + uint32(bootSector.NumFATs)*vol.blocksPerFAT
	vol.dataStartBlock = vol.rootDirStart +
		((32*uint32(bootSector.RootEntryCount) + sdfat.BlockSize - 1) / sdfat.BlockSize)

	overhead := vol.dataStartBlock - vol.volumeStartBlock
	if bootSector.TotalSectors <= overhead {
		return sdfat.ErrInvalidFileSystem.WithMessage(
			fmt.Sprintf(
				"volume has %d blocks but metadata alone takes %d",
				bootSector.TotalSectors,
				overhead))
	}
	vol.clusterCount = (bootSector.TotalSectors - overhead) >> vol.clusterSizeShift
	if vol.clusterCount == 0 {
		return sdfat.ErrInvalidFileSystem.WithMessage("volume has no data clusters")
	}

	vol.fatType = DetermineFATVersion(vol.clusterCount)
	if vol.fatType == FAT32 {
		vol.rootDirStart = bootSector.FAT32.RootCluster
		if !vol.IsValidCluster(vol.rootDirStart) {
			return sdfat.ErrFileSystemCorrupted.WithMessage(
				fmt.Sprintf("root directory cluster %d is invalid", vol.rootDirStart))
		}
	}

	// Every cluster must have an entry in the FAT.
	entryBits := uint64(vol.fatType)
	fatBytesNeeded := ((uint64(vol.clusterCount)+2)*entryBits + 7) / 8
	if uint64(vol.blocksPerFAT)*sdfat.BlockSize < fatBytesNeeded {
		return sdfat.ErrFileSystemCorrupted.WithMessage(
			fmt.Sprintf(
				"FAT of %d blocks is too small for %d clusters",
				vol.blocksPerFAT,
				vol.clusterCount))
	}
	return nil
}

// Unmount writes back any pending changes. Files open on the volume must not be
// used afterwards.
func (vol *Volume) Unmount() error {
	err := vol.CacheSync()
	if err != nil {
		return err
	}
	vol.CacheInvalidate()
	return nil
}

// Geometry ---------------------------------------------------------------------

func (vol *Volume) FATType() FATType          { return vol.fatType }
func (vol *Volume) BlocksPerCluster() uint8   { return vol.blocksPerCluster }
func (vol *Volume) ClusterCount() uint32      { return vol.clusterCount }
func (vol *Volume) FATStartBlock() uint32     { return vol.fatStartBlock }
func (vol *Volume) BlocksPerFAT() uint32      { return vol.blocksPerFAT }
func (vol *Volume) FATCount() uint8           { return vol.fatCount }
func (vol *Volume) DataStartBlock() uint32    { return vol.dataStartBlock }
func (vol *Volume) RootDirEntryCount() uint16 { return vol.rootDirEntryCount }
func (vol *Volume) VolumeStartBlock() uint32  { return vol.volumeStartBlock }

// RootDirStart is the first block of the root directory on FAT12/16 volumes,
// or the first cluster of the root directory on FAT32 volumes.
func (vol *Volume) RootDirStart() uint32 { return vol.rootDirStart }

// BytesPerCluster gives the size of a cluster, in bytes.
func (vol *Volume) BytesPerCluster() uint32 {
	return uint32(vol.blocksPerCluster) * sdfat.BlockSize
}

// ClusterStartBlock gives the absolute block number of the first block of a
// data cluster.
func (vol *Volume) ClusterStartBlock(cluster uint32) uint32 {
	return vol.dataStartBlock + ((cluster - 2) << vol.clusterSizeShift)
}

// blockOfCluster gives the index of the block within its cluster that holds
// byte `position` of a file.
func (vol *Volume) blockOfCluster(position uint32) uint8 {
	return uint8(position>>9) & vol.clusterBlockMask
}

// IsBusy reports whether the device is still completing a write. Devices that
// don't report this are never busy.
func (vol *Volume) IsBusy() bool {
	if busy, ok := vol.device.(sdfat.BusyDevice); ok {
		return busy.IsBusy()
	}
	return false
}

// Logger is the logger the volume was mounted with.
func (vol *Volume) Logger() logrus.FieldLogger {
	return vol.log
}

func (vol *Volume) corrupted(format string, args ...interface{}) error {
	message := fmt.Sprintf(format, args...)
	vol.log.WithField("volume_start", vol.volumeStartBlock).Warn(message)
	return sdfat.ErrFileSystemCorrupted.WithMessage(message)
}

// Cache discipline -------------------------------------------------------------

func ioError(err error) error {
	if errors.Is(err, sdfat.ErrIOFailed) {
		return err
	}
	return sdfat.ErrIOFailed.Wrap(err)
}

func (vol *Volume) fetchBlock(block uint32, buffer []byte) error {
	err := vol.device.ReadBlock(block, buffer)
	if err != nil {
		return ioError(err)
	}
	return nil
}

// flushBlock writes a cached block back to the device, copying FAT blocks into
// every secondary FAT.
func (vol *Volume) flushBlock(block uint32, buffer []byte, mirror bool) error {
	err := vol.device.WriteBlock(block, buffer)
	if err != nil {
		return ioError(err)
	}

	if mirror {
		for i := uint32(1); i < uint32(vol.fatCount); i++ {
			err = vol.device.WriteBlock(block+i*vol.blocksPerFAT, buffer)
			if err != nil {
				return ioError(err)
			}
		}
	}
	return nil
}

// CacheFetch makes `block` resident in the data cache and returns its buffer.
// The slice is only valid until the next cache operation on this volume.
func (vol *Volume) CacheFetch(block uint32, option blockcache.Option) ([]byte, error) {
	return vol.cache.Fetch(block, option)
}

func (vol *Volume) fatCacheFetch(block uint32, option blockcache.Option) ([]byte, error) {
	return vol.fatCache.Fetch(block, option|blockcache.MirrorFAT)
}

// CacheSync writes back every dirty cached block.
func (vol *Volume) CacheSync() error {
	err := vol.cache.Sync()
	if err != nil {
		return err
	}
	if vol.fatCache != vol.cache {
		return vol.fatCache.Sync()
	}
	return nil
}

// CacheInvalidate forgets the cached blocks without writing them back.
func (vol *Volume) CacheInvalidate() {
	vol.cache.Invalidate()
	vol.fatCache.Invalidate()
}

// invalidateRange drops cached copies of blocks that are about to be
// overwritten directly on the device.
func (vol *Volume) invalidateRange(block, count uint32) {
	for _, cache := range []*blockcache.BlockCache{vol.cache, vol.fatCache} {
		resident := cache.BlockNumber()
		if resident >= block && resident-block < count {
			cache.Invalidate()
		}
	}
}

// cacheOverlaps is true if a dirty block in [block, block+count) is cached.
func (vol *Volume) cacheOverlaps(block, count uint32) bool {
	resident := vol.cache.BlockNumber()
	return vol.cache.IsDirty() && resident >= block && resident-block < count
}

func (vol *Volume) readBlocks(block uint32, buffer []byte) error {
	var err error
	if vol.multi != nil {
		err = vol.multi.ReadBlocks(block, buffer)
	} else {
		for i := 0; i < len(buffer) && err == nil; i += sdfat.BlockSize {
			err = vol.device.ReadBlock(block+uint32(i/sdfat.BlockSize), buffer[i:i+sdfat.BlockSize])
		}
	}
	if err != nil {
		return ioError(err)
	}
	return nil
}

func (vol *Volume) writeBlocks(block uint32, buffer []byte) error {
	vol.invalidateRange(block, uint32(len(buffer)/sdfat.BlockSize))

	var err error
	if vol.multi != nil {
		err = vol.multi.WriteBlocks(block, buffer)
	} else {
		for i := 0; i < len(buffer) && err == nil; i += sdfat.BlockSize {
			err = vol.device.WriteBlock(block+uint32(i/sdfat.BlockSize), buffer[i:i+sdfat.BlockSize])
		}
	}
	if err != nil {
		return ioError(err)
	}
	return nil
}
