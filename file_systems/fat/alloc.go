package fat

import (
	"encoding/binary"
	"fmt"

	"github.com/dargueta/sdfat"
	"github.com/dargueta/sdfat/file_systems/common/blockcache"
	"github.com/sirupsen/logrus"
)

// AllocContiguous finds `count` consecutive free clusters, chains them
// together, and returns the first one.
//
// If `current` is nonzero it's the last cluster of an existing chain: the
// search starts right after it so the file stays contiguous, and the new run is
// linked onto it. Otherwise the search starts at the volume's free-space hint.
// The search wraps around to cluster 2 and gives up after looking at every
// cluster once.
func (vol *Volume) AllocContiguous(count uint32, current uint32) (uint32, error) {
	if count == 0 {
		return 0, sdfat.ErrInvalidArgument.WithMessage("can't allocate 0 clusters")
	}

	fatEnd := vol.clusterCount + 1

	var bgnCluster uint32
	// Only save the place to start the next search if we didn't skip over any
	// free clusters to get there.
	var setStart bool
	if current != 0 {
		bgnCluster = current + 1
		setStart = false
	} else {
		bgnCluster = vol.allocSearchStart
		setStart = true
	}
	endCluster := bgnCluster

	for n := uint32(0); ; n, endCluster = n+1, endCluster+1 {
		if n >= vol.clusterCount {
			vol.log.WithFields(logrus.Fields{
				"count":         count,
				"after_cluster": current,
			}).Debug("no contiguous run of free clusters")
			return 0, sdfat.ErrNoSpaceOnDevice.WithMessage(
				fmt.Sprintf("no run of %d free clusters", count))
		}
		if endCluster > fatEnd {
			bgnCluster = 2
			endCluster = 2
		}

		entry, err := vol.FATGet(endCluster)
		if err != nil {
			return 0, err
		}

		if entry != 0 {
			if bgnCluster != endCluster {
				setStart = false
			}
			bgnCluster = endCluster + 1
		} else if endCluster-bgnCluster+1 == count {
			break
		}
	}

	if setStart {
		vol.allocSearchStart = endCluster + 1
	}

	err := vol.FATPutEOC(endCluster)
	if err != nil {
		return 0, err
	}
	for ; endCluster > bgnCluster; endCluster-- {
		err = vol.FATPut(endCluster-1, endCluster)
		if err != nil {
			return 0, err
		}
	}

	if current != 0 {
		err = vol.FATPut(current, bgnCluster)
		if err != nil {
			return 0, err
		}
	}
	return bgnCluster, nil
}

// FreeChain marks every cluster in the chain starting at `cluster` as free.
func (vol *Volume) FreeChain(cluster uint32) error {
	for steps := uint32(0); ; steps++ {
		if steps > vol.clusterCount {
			return vol.corrupted("chain from cluster %d loops", cluster)
		}

		next, err := vol.FATGet(cluster)
		if err != nil {
			return err
		}
		err = vol.FATPut(cluster, 0)
		if err != nil {
			return err
		}
		if cluster < vol.allocSearchStart {
			vol.allocSearchStart = cluster
		}

		if vol.IsEOC(next) {
			return nil
		}
		cluster = next
	}
}

// FreeClusterCount scans the entire FAT and counts the free clusters. This is
// slow on large volumes.
func (vol *Volume) FreeClusterCount() (uint32, error) {
	free := uint32(0)
	todo := vol.clusterCount + 2

	if vol.fatType == FAT12 {
		for cluster := uint32(2); cluster < todo; cluster++ {
			entry, err := vol.FATGet(cluster)
			if err != nil {
				return 0, err
			}
			if entry == 0 {
				free++
			}
		}
		return free, nil
	}

	entriesPerBlock := uint32(sdfat.BlockSize / 2)
	if vol.fatType == FAT32 {
		entriesPerBlock = sdfat.BlockSize / 4
	}

	block := vol.fatStartBlock
	for first := uint32(0); first < todo; first += entriesPerBlock {
		buffer, err := vol.fatCacheFetch(block, blockcache.ForRead)
		if err != nil {
			return 0, err
		}
		block++

		for i := uint32(0); i < entriesPerBlock && first+i < todo; i++ {
			if first+i < 2 {
				continue
			}

			var entry uint32
			if vol.fatType == FAT16 {
				entry = uint32(binary.LittleEndian.Uint16(buffer[i*2:]))
			} else {
				entry = binary.LittleEndian.Uint32(buffer[i*4:]) & fat32EntryMask
			}
			if entry == 0 {
				free++
			}
		}
	}
	return free, nil
}
