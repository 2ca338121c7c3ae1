// Package fsck checks the consistency of a FAT volume without modifying it.
package fsck

import (
	"errors"
	"fmt"
	"io"

	"github.com/boljen/go-bitmap"
	"github.com/dargueta/sdfat"
	"github.com/dargueta/sdfat/file_systems/fat"
	"github.com/sirupsen/logrus"
)

// ProblemKind classifies an inconsistency found by [Check].
type ProblemKind int

const (
	// CrossLinked means a cluster belongs to more than one chain, or a chain
	// loops back on itself.
	CrossLinked ProblemKind = iota
	// InvalidLink means a chain points at something other than a data cluster
	// or an end of chain marker, including free clusters.
	InvalidLink
	// ChainTooShort means a file's chain ends before its size is covered.
	ChainTooShort
	// ChainTooLong means a file's chain has clusters past the end of the file.
	ChainTooLong
	// TooDeep means directories are nested more than [fat.MaxDirDepth] deep.
	// Their contents weren't checked.
	TooDeep
	// Unreadable means a directory couldn't be opened, so its contents weren't
	// checked.
	Unreadable
)

var problemKindNames = map[ProblemKind]string{
	CrossLinked:   "cross-linked",
	InvalidLink:   "invalid link",
	ChainTooShort: "chain too short",
	ChainTooLong:  "chain too long",
	TooDeep:       "too deep",
	Unreadable:    "unreadable directory",
}

func (k ProblemKind) String() string {
	name, ok := problemKindNames[k]
	if !ok {
		return fmt.Sprintf("ProblemKind(%d)", int(k))
	}
	return name
}

// Problem is a single inconsistency.
type Problem struct {
	Kind ProblemKind
	// Path of the file or directory the problem was found in. "/" is the root
	// directory.
	Path string
	// Cluster is where the problem was found, if it concerns a single cluster.
	Cluster uint32
	Message string
}

func (p Problem) String() string {
	if p.Cluster != 0 {
		return fmt.Sprintf("%s: %s at cluster %d: %s", p.Path, p.Kind, p.Cluster, p.Message)
	}
	return fmt.Sprintf("%s: %s: %s", p.Path, p.Kind, p.Message)
}

// Report is the result of [Check].
type Report struct {
	Files       int
	Directories int
	// UsedClusters counts clusters reachable from some file or directory.
	UsedClusters uint32
	FreeClusters uint32
	BadClusters  uint32
	// LostClusters counts clusters marked as allocated in the FAT that no file
	// or directory can reach.
	LostClusters uint32
	Problems     []Problem
}

// OK is true if no problems were found and no clusters were lost.
func (r *Report) OK() bool {
	return len(r.Problems) == 0 && r.LostClusters == 0
}

type checker struct {
	vol     *fat.Volume
	log     logrus.FieldLogger
	claimed bitmap.Bitmap
	report  Report
}

// badClusterMarkers is the FAT value marking a cluster unusable, per FAT type.
var badClusterMarkers = map[fat.FATType]uint32{
	fat.FAT12: 0xFF7,
	fat.FAT16: 0xFFF7,
	fat.FAT32: 0x0FFFFFF7,
}

// Check walks every directory of `vol` and cross-checks the cluster chains it
// finds against the FAT. Problems with the volume's structures are collected
// in the report; an error is only returned if checking couldn't continue, e.g.
// because the device failed.
func Check(vol *fat.Volume) (*Report, error) {
	c := checker{
		vol:     vol,
		log:     vol.Logger(),
		claimed: bitmap.New(int(vol.ClusterCount()) + 2),
	}

	root, err := vol.OpenRoot()
	if err != nil {
		if errors.Is(err, sdfat.ErrFileSystemCorrupted) {
			c.problem(Problem{Kind: Unreadable, Path: "/", Message: err.Error()})
			err = c.scanFAT()
			return &c.report, err
		}
		return nil, err
	}
	c.report.Directories++
	if vol.FATType() == fat.FAT32 {
		err = c.followChain("/", vol.RootDirStart(), 0, true)
		if err != nil {
			return nil, err
		}
	}

	err = c.walk(root)
	if err != nil {
		return nil, err
	}
	err = c.scanFAT()
	if err != nil {
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"files":         c.report.Files,
		"directories":   c.report.Directories,
		"used_clusters": c.report.UsedClusters,
		"lost_clusters": c.report.LostClusters,
		"problems":      len(c.report.Problems),
	}).Debug("consistency check finished")
	return &c.report, nil
}

func (c *checker) problem(p Problem) {
	c.log.WithFields(logrus.Fields{
		"path":    p.Path,
		"cluster": p.Cluster,
		"kind":    p.Kind.String(),
	}).Warn(p.Message)
	c.report.Problems = append(c.report.Problems, p)
}

func (c *checker) walk(root *fat.File) error {
	lister, err := root.List(true)
	if err != nil {
		return err
	}
	defer lister.Close()

	for {
		entry, err := lister.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil && entry.Name == "" {
			return err
		}

		path := "/" + entry.Path
		isDir := entry.IsDir()
		if isDir {
			c.report.Directories++
		} else {
			c.report.Files++
		}

		switch {
		case err == nil:
		case errors.Is(err, sdfat.ErrTooManyLevels):
			c.problem(Problem{Kind: TooDeep, Path: path, Message: err.Error()})
		case errors.Is(err, sdfat.ErrFileSystemCorrupted):
			c.problem(Problem{Kind: Unreadable, Path: path, Message: err.Error()})
		default:
			return err
		}

		if entry.FirstCluster == 0 {
			if isDir {
				c.problem(Problem{
					Kind:    InvalidLink,
					Path:    path,
					Message: "directory has no clusters",
				})
			} else if entry.Size != 0 {
				c.problem(Problem{
					Kind:    ChainTooShort,
					Path:    path,
					Message: fmt.Sprintf("file of %d bytes has no clusters", entry.Size),
				})
			}
			continue
		}

		err = c.followChain(path, entry.FirstCluster, entry.Size, isDir)
		if err != nil {
			return err
		}
	}
}

// followChain claims the clusters of the chain starting at `first` and checks
// it against the size of the file. Directories have no size to check.
func (c *checker) followChain(path string, first uint32, size uint32, isDir bool) error {
	vol := c.vol
	clusters := uint32(0)
	cluster := first

	for {
		if !vol.IsValidCluster(cluster) {
			c.problem(Problem{
				Kind:    InvalidLink,
				Path:    path,
				Cluster: cluster,
				Message: fmt.Sprintf("chain reaches invalid cluster 0x%X", cluster),
			})
			return nil
		}
		if c.claimed.Get(int(cluster)) {
			c.problem(Problem{
				Kind:    CrossLinked,
				Path:    path,
				Cluster: cluster,
				Message: "cluster is already part of a chain",
			})
			return nil
		}
		c.claimed.Set(int(cluster), true)
		c.report.UsedClusters++
		clusters++

		next, err := vol.FATGet(cluster)
		if err != nil {
			return err
		}
		if vol.IsEOC(next) {
			break
		}
		if next == 0 {
			c.problem(Problem{
				Kind:    InvalidLink,
				Path:    path,
				Cluster: cluster,
				Message: "chain links to a free cluster",
			})
			return nil
		}
		cluster = next
	}

	if isDir {
		return nil
	}

	bytesPerCluster := uint64(vol.BytesPerCluster())
	expected := uint32((uint64(size) + bytesPerCluster - 1) / bytesPerCluster)
	if clusters < expected {
		c.problem(Problem{
			Kind: ChainTooShort,
			Path: path,
			Message: fmt.Sprintf(
				"file of %d bytes needs %d clusters, chain has %d", size, expected, clusters),
		})
	} else if clusters > expected {
		c.problem(Problem{
			Kind: ChainTooLong,
			Path: path,
			Message: fmt.Sprintf(
				"file of %d bytes needs %d clusters, chain has %d", size, expected, clusters),
		})
	}
	return nil
}

// scanFAT counts the free, bad and lost clusters.
func (c *checker) scanFAT() error {
	vol := c.vol
	badMarker := badClusterMarkers[vol.FATType()]

	for cluster := uint32(2); cluster <= vol.ClusterCount()+1; cluster++ {
		value, err := vol.FATGet(cluster)
		if err != nil {
			return err
		}
		switch {
		case value == 0:
			c.report.FreeClusters++
		case value == badMarker:
			c.report.BadClusters++
		case !c.claimed.Get(int(cluster)):
			c.report.LostClusters++
		}
	}

	if c.report.LostClusters != 0 {
		c.log.WithField("lost_clusters", c.report.LostClusters).
			Warn("allocated clusters aren't reachable from any file")
	}
	return nil
}
