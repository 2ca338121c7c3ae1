// Package disks holds tables of predefined volume layouts: FAT parameters by
// volume size, following the SD card association's recommendations, and
// classic floppy disk geometries.
package disks

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/dargueta/sdfat"
	"github.com/gocarina/gocsv"
)

// Preset gives the FAT parameters recommended for volumes with between
// MinBlocks and MaxBlocks blocks, inclusive.
type Preset struct {
	Slug              string `csv:"slug"`
	MinBlocks         uint32 `csv:"min_blocks"`
	MaxBlocks         uint32 `csv:"max_blocks"`
	FATType           uint8  `csv:"fat_type"`
	SectorsPerCluster uint8  `csv:"sectors_per_cluster"`
	// RootEntries is the size of the fixed root directory. Always 0 for FAT32.
	RootEntries     uint16 `csv:"root_entries"`
	ReservedSectors uint16 `csv:"reserved_sectors"`
	Notes           string `csv:"notes"`
}

// DiskGeometry describes a floppy disk format.
type DiskGeometry struct {
	Slug            string `csv:"slug"`
	Name            string `csv:"name"`
	TotalBlocks     uint32 `csv:"total_blocks"`
	SectorsPerTrack uint16 `csv:"sectors_per_track"`
	Heads           uint16 `csv:"heads"`
	// Media is the media descriptor byte stored in the boot sector and the
	// first FAT entry.
	Media             uint8  `csv:"media"`
	SectorsPerCluster uint8  `csv:"sectors_per_cluster"`
	RootEntries       uint16 `csv:"root_entries"`
}

// TotalSizeBytes gives the size of the disk, in bytes.
func (g *DiskGeometry) TotalSizeBytes() int64 {
	return int64(g.TotalBlocks) * sdfat.BlockSize
}

//go:embed fat-presets.csv
var presetsRawCSV string
var presets []Preset

// https://en.wikipedia.org/wiki/List_of_floppy_disk_formats
//
//go:embed disk-geometries.csv
var diskGeometriesRawCSV string
var diskGeometries map[string]DiskGeometry

// PresetForBlocks returns the preset for a volume of `totalBlocks` blocks.
func PresetForBlocks(totalBlocks uint32) (Preset, error) {
	for _, preset := range presets {
		if totalBlocks >= preset.MinBlocks && totalBlocks <= preset.MaxBlocks {
			return preset, nil
		}
	}
	return Preset{}, sdfat.ErrInvalidArgument.WithMessage(
		fmt.Sprintf(
			"no FAT layout for a volume of %d blocks; the minimum is %d",
			totalBlocks,
			presets[0].MinBlocks))
}

// GetPreset returns the preset with the given slug, e.g. "fat16-32m".
func GetPreset(slug string) (Preset, error) {
	for _, preset := range presets {
		if preset.Slug == slug {
			return preset, nil
		}
	}
	return Preset{}, sdfat.ErrNotFound.WithMessage(
		fmt.Sprintf("no preset exists with slug %q", slug))
}

// Presets returns every preset, ordered by volume size.
func Presets() []Preset {
	result := make([]Preset, len(presets))
	copy(result, presets)
	return result
}

func GetPredefinedDiskGeometry(slug string) (DiskGeometry, error) {
	geometry, ok := diskGeometries[slug]
	if ok {
		return geometry, nil
	}

	return DiskGeometry{}, sdfat.ErrNotFound.WithMessage(
		fmt.Sprintf("no predefined disk geometry exists with slug %q", slug))
}

func newPipeReader(raw string) *csv.Reader {
	reader := csv.NewReader(strings.NewReader(raw))
	reader.Comma = '|'
	// Disk names contain inch marks.
	reader.LazyQuotes = true
	return reader
}

func init() {
	err := gocsv.UnmarshalCSV(newPipeReader(presetsRawCSV), &presets)
	if err != nil {
		panic(fmt.Errorf("failed to decode FAT presets: %w", err))
	}
	for i := 1; i < len(presets); i++ {
		if presets[i].MinBlocks != presets[i-1].MaxBlocks+1 {
			panic(fmt.Errorf(
				"preset %q doesn't start right after %q", presets[i].Slug, presets[i-1].Slug))
		}
	}

	var geometries []DiskGeometry
	err = gocsv.UnmarshalCSV(newPipeReader(diskGeometriesRawCSV), &geometries)
	if err != nil {
		panic(fmt.Errorf("failed to decode disk geometries: %w", err))
	}

	diskGeometries = make(map[string]DiskGeometry)
	for i, row := range geometries {
		_, exists := diskGeometries[row.Slug]
		if exists {
			panic(fmt.Errorf(
				"duplicate definition for disk %q found on row %d", row.Slug, i+1))
		}
		diskGeometries[row.Slug] = row
	}
}
