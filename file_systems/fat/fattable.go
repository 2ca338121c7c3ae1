package fat

import (
	"encoding/binary"

	"github.com/dargueta/sdfat/file_systems/common/blockcache"
)

const fat32EntryMask = 0x0FFFFFFF

// IsValidCluster is true if `cluster` is a data cluster on this volume, i.e. in
// the range [2, ClusterCount() + 1].
func (vol *Volume) IsValidCluster(cluster uint32) bool {
	return cluster >= 2 && cluster <= vol.clusterCount+1
}

// IsEOC is true if `cluster` is an end-of-chain marker for this volume's FAT
// type.
func (vol *Volume) IsEOC(cluster uint32) bool {
	switch vol.fatType {
	case FAT12:
		return cluster >= 0xFF8
	case FAT16:
		return cluster >= 0xFFF8
	default:
		return cluster >= 0x0FFFFFF8
	}
}

func (vol *Volume) checkFATIndex(cluster uint32) error {
	if !vol.IsValidCluster(cluster) {
		return vol.corrupted(
			"cluster %d has no FAT entry; not in [2, %d]", cluster, vol.clusterCount+1)
	}
	return nil
}

// FATGet returns the FAT entry for `cluster`: the next cluster in its chain, 0
// if the cluster is free, or an end-of-chain marker.
func (vol *Volume) FATGet(cluster uint32) (uint32, error) {
	err := vol.checkFATIndex(cluster)
	if err != nil {
		return 0, err
	}

	switch vol.fatType {
	case FAT12:
		// Entries are 1.5 bytes and can straddle two blocks.
		index := cluster + (cluster >> 1)
		block := vol.fatStartBlock + (index >> 9)
		index &= 0x1FF

		buffer, err := vol.fatCacheFetch(block, blockcache.ForRead)
		if err != nil {
			return 0, err
		}
		value := uint32(buffer[index])

		index++
		if index == 512 {
			buffer, err = vol.fatCacheFetch(block+1, blockcache.ForRead)
			if err != nil {
				return 0, err
			}
			index = 0
		}
		value |= uint32(buffer[index]) << 8

		if cluster&1 != 0 {
			return value >> 4, nil
		}
		return value & 0xFFF, nil

	case FAT16:
		block := vol.fatStartBlock + (cluster >> 8)
		buffer, err := vol.fatCacheFetch(block, blockcache.ForRead)
		if err != nil {
			return 0, err
		}
		offset := (cluster & 0xFF) * 2
		return uint32(binary.LittleEndian.Uint16(buffer[offset:])), nil

	default:
		block := vol.fatStartBlock + (cluster >> 7)
		buffer, err := vol.fatCacheFetch(block, blockcache.ForRead)
		if err != nil {
			return 0, err
		}
		offset := (cluster & 0x7F) * 4
		return binary.LittleEndian.Uint32(buffer[offset:]) & fat32EntryMask, nil
	}
}

// FATPut sets the FAT entry for `cluster`. The change stays in the cache until
// the next [Volume.CacheSync] or eviction.
func (vol *Volume) FATPut(cluster, value uint32) error {
	err := vol.checkFATIndex(cluster)
	if err != nil {
		return err
	}

	switch vol.fatType {
	case FAT12:
		value &= 0xFFF
		index := cluster + (cluster >> 1)
		block := vol.fatStartBlock + (index >> 9)
		index &= 0x1FF

		buffer, err := vol.fatCacheFetch(block, blockcache.ForWrite)
		if err != nil {
			return err
		}
		if cluster&1 != 0 {
			buffer[index] = (buffer[index] & 0x0F) | byte(value<<4)
		} else {
			buffer[index] = byte(value)
		}

		index++
		if index == 512 {
			buffer, err = vol.fatCacheFetch(block+1, blockcache.ForWrite)
			if err != nil {
				return err
			}
			index = 0
		}
		if cluster&1 != 0 {
			buffer[index] = byte(value >> 4)
		} else {
			buffer[index] = (buffer[index] & 0xF0) | byte(value>>8)
		}
		return nil

	case FAT16:
		block := vol.fatStartBlock + (cluster >> 8)
		buffer, err := vol.fatCacheFetch(block, blockcache.ForWrite)
		if err != nil {
			return err
		}
		offset := (cluster & 0xFF) * 2
		binary.LittleEndian.PutUint16(buffer[offset:], uint16(value))
		return nil

	default:
		block := vol.fatStartBlock + (cluster >> 7)
		buffer, err := vol.fatCacheFetch(block, blockcache.ForWrite)
		if err != nil {
			return err
		}
		// The top four bits are reserved and must be preserved.
		offset := (cluster & 0x7F) * 4
		old := binary.LittleEndian.Uint32(buffer[offset:])
		binary.LittleEndian.PutUint32(buffer[offset:], (old&^fat32EntryMask)|(value&fat32EntryMask))
		return nil
	}
}

// FATPutEOC marks `cluster` as the last cluster of its chain.
func (vol *Volume) FATPutEOC(cluster uint32) error {
	return vol.FATPut(cluster, fat32EntryMask)
}

// nextCluster follows the chain from `cluster`, failing if the link doesn't
// lead to another data cluster.
func (vol *Volume) nextCluster(cluster uint32) (uint32, error) {
	next, err := vol.FATGet(cluster)
	if err != nil {
		return 0, err
	}
	if !vol.IsValidCluster(next) {
		return 0, vol.corrupted("chain breaks after cluster %d: entry is 0x%X", cluster, next)
	}
	return next, nil
}
