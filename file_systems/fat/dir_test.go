package fat_test

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/dargueta/sdfat"
	"github.com/dargueta/sdfat/file_systems/fat"
	"github.com/dargueta/sdfat/mkfs"
	sdfattest "github.com/dargueta/sdfat/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openRoot(vol *fat.Volume, t *testing.T) *fat.File {
	root, err := vol.OpenRoot()
	require.NoError(t, err)
	return root
}

func mkdir(vol *fat.Volume, path string, t *testing.T) *fat.File {
	dir, err := openRoot(vol, t).Mkdir(path, false)
	require.NoErrorf(t, err, "mkdir %q", path)
	return dir
}

func listNames(dir *fat.File, t *testing.T) []string {
	entries, err := dir.ReadDir()
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name)
	}
	return names
}

func TestRename__WithinSubdirectory(t *testing.T) {
	vol, _ := sdfattest.CreateFAT16Volume(t)
	root := openRoot(vol, t)

	sub, err := root.Mkdir("SUB", false)
	require.NoError(t, err)
	assert.True(t, sub.IsSubdir())
	require.NoError(t, sub.Close())

	sdfattest.WriteFile(vol, "SUB/B.TXT", []byte("renamed"), t)
	f, err := vol.Open("SUB/B.TXT", sdfat.O_RDWR)
	require.NoError(t, err)
	firstCluster := f.FirstCluster()

	require.NoError(t, f.Rename(root, "SUB/C.TXT"))
	require.NoError(t, f.Close())

	_, err = vol.Open("SUB/B.TXT", sdfat.O_RDONLY)
	assert.ErrorIs(t, err, sdfat.ErrNotFound)

	renamed, err := vol.Open("SUB/C.TXT", sdfat.O_RDONLY)
	require.NoError(t, err)
	defer renamed.Close()
	assert.Equal(t, firstCluster, renamed.FirstCluster())
	assert.Equal(t, []byte("renamed"), sdfattest.ReadFile(vol, "SUB/C.TXT", t))

	subDir, err := vol.Open("SUB", sdfat.O_RDONLY)
	require.NoError(t, err)
	assert.Equal(t, []string{"C.TXT"}, listNames(subDir, t))
}

func TestRename__HandleStaysUsable(t *testing.T) {
	vol, _ := sdfattest.CreateFAT16Volume(t)
	root := openRoot(vol, t)

	f, err := vol.Open("OLD.TXT", sdfat.O_RDWR|sdfat.O_CREATE)
	require.NoError(t, err)
	_, err = f.WriteString("abc")
	require.NoError(t, err)
	require.NoError(t, f.Rename(root, "NEW.TXT"))

	_, err = f.WriteString("def")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	name, err := f.Name()
	assert.ErrorIs(t, err, sdfat.ErrInvalidFileDescriptor)
	assert.Empty(t, name)

	assert.Equal(t, "abcdef", string(sdfattest.ReadFile(vol, "NEW.TXT", t)))
	assert.False(t, root.Exists("OLD.TXT"))
}

func TestRename__TargetExists(t *testing.T) {
	vol, _ := sdfattest.CreateFAT16Volume(t)
	root := openRoot(vol, t)
	sdfattest.WriteFile(vol, "A.TXT", []byte("a"), t)
	sdfattest.WriteFile(vol, "B.TXT", []byte("b"), t)

	f, err := vol.Open("A.TXT", sdfat.O_RDONLY)
	require.NoError(t, err)
	err = f.Rename(root, "B.TXT")
	assert.ErrorIs(t, err, sdfat.ErrExists)

	assert.Equal(t, []byte("a"), sdfattest.ReadFile(vol, "A.TXT", t))
	assert.Equal(t, []byte("b"), sdfattest.ReadFile(vol, "B.TXT", t))
	assert.Equal(t, []string{"A.TXT", "B.TXT"}, listNames(root, t))
}

func TestRename__MoveDirectory(t *testing.T) {
	vol, _ := sdfattest.CreateFAT16Volume(t)
	root := openRoot(vol, t)

	mkdir(vol, "A", t).Close()
	mkdir(vol, "B", t).Close()
	sdfattest.WriteFile(vol, "A/F.TXT", []byte("moved"), t)
	freeBefore := freeClusters(vol, t)

	dirA, err := vol.Open("A", sdfat.O_RDONLY)
	require.NoError(t, err)
	clusterA := dirA.FirstCluster()
	require.NoError(t, dirA.Rename(root, "B/A2"))
	require.NoError(t, dirA.Close())

	assert.Equal(t, freeBefore, freeClusters(vol, t), "rename must not use clusters")
	assert.False(t, root.Exists("A"))
	assert.Equal(t, []byte("moved"), sdfattest.ReadFile(vol, "B/A2/F.TXT", t))

	moved, err := vol.Open("B/A2", sdfat.O_RDONLY)
	require.NoError(t, err)
	assert.Equal(t, clusterA, moved.FirstCluster())

	parent, err := moved.OpenParent()
	require.NoError(t, err)
	name, err := parent.Name()
	require.NoError(t, err)
	assert.Equal(t, "B", name)

	grandparent, err := parent.OpenParent()
	require.NoError(t, err)
	assert.True(t, grandparent.IsRoot())

	_, err = grandparent.OpenParent()
	assert.ErrorIs(t, err, sdfat.ErrInvalidArgument)
}

func TestRename__DirectoryOnFullVolume(t *testing.T) {
	vol, _ := sdfattest.CreateFAT16Volume(t)
	root := openRoot(vol, t)

	sub := mkdir(vol, "SUB", t)
	subCluster := sub.FirstCluster()
	sdfattest.WriteFile(vol, "SUB/KEEP.TXT", []byte("keep"), t)

	fill, err := root.CreateContiguous("FILL.BIN", freeClusters(vol, t)*vol.BytesPerCluster())
	require.NoError(t, err)
	require.NoError(t, fill.Close())
	require.Zero(t, freeClusters(vol, t))

	// The new entry takes the slot SUB was in, then fails to get a cluster.
	err = sub.Rename(root, "NEW")
	assert.ErrorIs(t, err, sdfat.ErrNoSpaceOnDevice)

	assert.Equal(t, []string{"SUB", "FILL.BIN"}, listNames(root, t))
	assert.False(t, root.Exists("NEW"))
	assert.Equal(t, []byte("keep"), sdfattest.ReadFile(vol, "SUB/KEEP.TXT", t))
	assert.Zero(t, freeClusters(vol, t))

	reopened, err := vol.Open("SUB", sdfat.O_RDONLY)
	require.NoError(t, err)
	assert.True(t, reopened.IsSubdir())
	assert.Equal(t, subCluster, reopened.FirstCluster())
	assert.Equal(t, subCluster, sub.FirstCluster())
	name, err := sub.Name()
	require.NoError(t, err)
	assert.Equal(t, "SUB", name)
}

func TestRename__DirectoryIntoItself(t *testing.T) {
	vol, _ := sdfattest.CreateFAT16Volume(t)
	root := openRoot(vol, t)

	_, err := root.Mkdir("TOP/MID/LOW", true)
	require.NoError(t, err)

	top, err := vol.Open("TOP", sdfat.O_RDONLY)
	require.NoError(t, err)
	err = top.Rename(root, "TOP/MID/LOW/TOP")
	assert.ErrorIs(t, err, sdfat.ErrInvalidArgument)
	err = top.Rename(root, "TOP/X")
	assert.ErrorIs(t, err, sdfat.ErrInvalidArgument)

	assert.True(t, root.Exists("TOP/MID/LOW"))
}

func TestMkdir(t *testing.T) {
	vol, _ := sdfattest.CreateFAT16Volume(t)
	root := openRoot(vol, t)
	freeBefore := freeClusters(vol, t)

	dir, err := root.Mkdir("NEW", false)
	require.NoError(t, err)
	defer dir.Close()
	assert.Equal(t, freeBefore-1, freeClusters(vol, t))
	assert.EqualValues(t, vol.BytesPerCluster(), dir.Size())
	assert.Zero(t, dir.Offset())

	entry, err := dir.DirEntry()
	require.NoError(t, err)
	assert.True(t, entry.IsSubdir())
	assert.Zero(t, entry.FileSize)

	// Only "." and ".." are present.
	raw := make([]byte, 2*fat.DirentSize)
	_, err = io.ReadFull(dir, raw)
	require.NoError(t, err)
	dot := fat.NewRawDirentFromBytes(raw[:fat.DirentSize])
	dotDot := fat.NewRawDirentFromBytes(raw[fat.DirentSize:])
	assert.Equal(t, ".", dot.ShortName().String())
	assert.Equal(t, dir.FirstCluster(), dot.FirstCluster())
	assert.Equal(t, "..", dotDot.ShortName().String())
	assert.Zero(t, dotDot.FirstCluster(), "parent of a root-level directory is cluster 0")
	assert.Empty(t, listNames(dir, t))

	inner, err := dir.Mkdir("INNER", false)
	require.NoError(t, err)
	_, err = io.ReadFull(inner, raw)
	require.NoError(t, err)
	dotDot = fat.NewRawDirentFromBytes(raw[fat.DirentSize:])
	assert.Equal(t, dir.FirstCluster(), dotDot.FirstCluster())
}

func TestMkdir__Errors(t *testing.T) {
	vol, _ := sdfattest.CreateFAT16Volume(t)
	root := openRoot(vol, t)
	mkdir(vol, "EXISTS", t).Close()
	sdfattest.WriteFile(vol, "FILE.TXT", nil, t)

	_, err := root.Mkdir("EXISTS", false)
	assert.ErrorIs(t, err, sdfat.ErrExists)
	_, err = root.Mkdir("FILE.TXT", false)
	assert.ErrorIs(t, err, sdfat.ErrExists)
	_, err = root.Mkdir("NO/SUCH/DIR", false)
	assert.ErrorIs(t, err, sdfat.ErrNotFound)
	_, err = root.Mkdir("FILE.TXT/SUB", true)
	assert.ErrorIs(t, err, sdfat.ErrNotADirectory)
	_, err = root.Mkdir("/", false)
	assert.ErrorIs(t, err, sdfat.ErrExists)
	_, err = root.Mkdir("", false)
	assert.ErrorIs(t, err, sdfat.ErrInvalidArgument)

	dir, err := vol.Open("EXISTS", sdfat.O_RDONLY)
	require.NoError(t, err)
	assert.ErrorIs(t, dir.Remove(), sdfat.ErrIsADirectory)
	_, err = vol.Open("EXISTS", sdfat.O_RDWR)
	assert.ErrorIs(t, err, sdfat.ErrIsADirectory)
}

func TestMkdir__CreateParents(t *testing.T) {
	vol, _ := sdfattest.CreateFAT32Volume(t)
	root := openRoot(vol, t)

	leaf, err := root.Mkdir("/ONE/TWO/THREE", true)
	require.NoError(t, err)
	require.NoError(t, leaf.Close())

	for _, path := range []string{"ONE", "ONE/TWO", "ONE/TWO/THREE"} {
		dir, err := vol.Open(path, sdfat.O_RDONLY)
		require.NoErrorf(t, err, "open %q", path)
		assert.Truef(t, dir.IsSubdir(), "%q should be a directory", path)
	}

	// The parent of a root-level directory is the root even on FAT32, where
	// the root has a real cluster.
	one, err := vol.Open("ONE", sdfat.O_RDONLY)
	require.NoError(t, err)
	parent, err := one.OpenParent()
	require.NoError(t, err)
	assert.Equal(t, fat.TypeRoot32, parent.Type())

	two, err := one.Open("TWO", sdfat.O_RDONLY)
	require.NoError(t, err)
	parent, err = two.OpenParent()
	require.NoError(t, err)
	assert.Equal(t, one.FirstCluster(), parent.FirstCluster())
}

func TestRmdir(t *testing.T) {
	vol, _ := sdfattest.CreateFAT16Volume(t)
	root := openRoot(vol, t)
	freeBefore := freeClusters(vol, t)

	dir := mkdir(vol, "D", t)
	sdfattest.WriteFile(vol, "D/X.TXT", []byte("x"), t)

	err := dir.Rmdir()
	assert.ErrorIs(t, err, sdfat.ErrDirectoryNotEmpty)
	assert.True(t, dir.IsOpen())

	x, err := vol.Open("D/X.TXT", sdfat.O_WRONLY)
	require.NoError(t, err)
	require.NoError(t, x.Remove())
	assert.False(t, root.Exists("D/X.TXT"))

	require.NoError(t, dir.Rmdir())
	assert.False(t, dir.IsOpen())
	assert.False(t, root.Exists("D"))
	assert.Equal(t, freeBefore, freeClusters(vol, t))

	assert.ErrorIs(t, root.Rmdir(), sdfat.ErrNotADirectory)
}

func TestRemoveAll(t *testing.T) {
	vol, _ := sdfattest.CreateFAT16Volume(t)
	root := openRoot(vol, t)
	freeBefore := freeClusters(vol, t)

	mkdir(vol, "DEL", t).Close()
	var clusters []uint32
	for i := 0; i < 3; i++ {
		path := fmt.Sprintf("DEL/FILE%d.BIN", i)
		sdfattest.WriteFile(vol, path, randomBytes(700*(i+1), t), t)
		f, err := vol.Open(path, sdfat.O_RDONLY)
		require.NoError(t, err)
		clusters = append(clusters, chainOf(vol, f.FirstCluster(), t)...)
	}

	dir, err := vol.Open("DEL", sdfat.O_RDONLY)
	require.NoError(t, err)
	clusters = append(clusters, dir.FirstCluster())
	require.NoError(t, dir.RemoveAll())
	assert.False(t, dir.IsOpen())

	assert.False(t, root.Exists("DEL"))
	for _, cluster := range clusters {
		value, err := vol.FATGet(cluster)
		require.NoError(t, err)
		assert.Zerof(t, value, "cluster %d is still allocated", cluster)
	}
	assert.Equal(t, freeBefore, freeClusters(vol, t))
}

func TestRemoveAll__NestedAndReadOnly(t *testing.T) {
	vol, _ := sdfattest.CreateFAT32Volume(t)
	root := openRoot(vol, t)
	freeBefore := freeClusters(vol, t)

	_, err := root.Mkdir("A/B/C", true)
	require.NoError(t, err)
	sdfattest.WriteFile(vol, "A/ONE.TXT", []byte("1"), t)
	sdfattest.WriteFile(vol, "A/B/TWO.TXT", []byte("2"), t)
	sdfattest.WriteFile(vol, "A/B/C/THREE.TXT", []byte("3"), t)
	sdfattest.WriteFile(vol, "KEEP.TXT", []byte("keep"), t)

	locked, err := vol.Open("A/B/TWO.TXT", sdfat.O_RDONLY)
	require.NoError(t, err)
	require.NoError(t, locked.SetAttributes(fat.AttrReadOnly))
	require.NoError(t, locked.Close())

	dir, err := vol.Open("A", sdfat.O_RDONLY)
	require.NoError(t, err)
	require.NoError(t, dir.RemoveAll())

	assert.Equal(t, []string{"KEEP.TXT"}, listNames(root, t))
	assert.Equal(t, freeBefore-1, freeClusters(vol, t))
}

func TestRemoveAll__Root(t *testing.T) {
	vol, _ := sdfattest.CreateFAT12Volume(t)
	root := openRoot(vol, t)

	sdfattest.WriteFile(vol, "A.TXT", []byte("a"), t)
	_, err := root.Mkdir("D/E", true)
	require.NoError(t, err)

	require.NoError(t, root.RemoveAll())
	assert.True(t, root.IsOpen(), "the root directory can't be removed")
	assert.Empty(t, listNames(root, t))
	assert.Equal(t, vol.ClusterCount(), freeClusters(vol, t))
}

func TestDirectory__GrowsBeyondOneCluster(t *testing.T) {
	vol, _ := sdfattest.CreateFAT16Volume(t)
	mkdir(vol, "BIG", t).Close()

	// 16 entries fit in a cluster, two of which are "." and "..".
	const fileCount = 40
	for i := 0; i < fileCount; i++ {
		sdfattest.WriteFile(vol, fmt.Sprintf("BIG/F%02d.TXT", i), []byte{byte(i)}, t)
	}

	dir, err := vol.Open("BIG", sdfat.O_RDONLY)
	require.NoError(t, err)
	assert.EqualValues(t, 3*512, dir.Size())
	assert.Len(t, chainOf(vol, dir.FirstCluster(), t), 3)

	names := listNames(dir, t)
	require.Len(t, names, fileCount)
	for i, name := range names {
		assert.Equal(t, fmt.Sprintf("F%02d.TXT", i), name)
		assert.Equal(t, []byte{byte(i)}, sdfattest.ReadFile(vol, "BIG/"+name, t))
	}

	// Entries in the new clusters start out free.
	for index := uint16(fileCount + 2); index < 48; index++ {
		_, err = dir.OpenIndex(index, sdfat.O_RDONLY)
		assert.ErrorIsf(t, err, sdfat.ErrNotFound, "index %d", index)
	}
	_, err = dir.OpenIndex(48, sdfat.O_RDONLY)
	assert.ErrorIs(t, err, sdfat.ErrNotFound)
}

func TestDirectory__FAT32RootGrows(t *testing.T) {
	vol, device := sdfattest.CreateFAT32Volume(t)

	for i := 0; i < 20; i++ {
		sdfattest.WriteFile(vol, fmt.Sprintf("R%02d.TXT", i), nil, t)
	}
	require.NoError(t, vol.Unmount())

	vol = sdfattest.MountImage(device, fat.MountOptions{}, t)
	root := openRoot(vol, t)
	assert.EqualValues(t, 2*512, root.Size())
	assert.Len(t, listNames(root, t), 20)
}

func TestDirectory__FixedRootExhaustion(t *testing.T) {
	vol, _ := sdfattest.CreateFAT12Volume(t)
	root := openRoot(vol, t)
	require.EqualValues(t, 224, vol.RootDirEntryCount())

	created := 0
	var err error
	for {
		var f *fat.File
		f, err = vol.Open(fmt.Sprintf("F%d", created), sdfat.O_RDWR|sdfat.O_CREATE)
		if err != nil {
			break
		}
		require.NoError(t, f.Close())
		created++
		require.LessOrEqual(t, created, 224, "created more entries than the root holds")
	}
	assert.ErrorIs(t, err, sdfat.ErrNoSpaceOnDevice)
	assert.Equal(t, 224, created)

	_, err = root.Mkdir("DIR", false)
	assert.ErrorIs(t, err, sdfat.ErrNoSpaceOnDevice)
	assert.Equal(t, vol.ClusterCount(), freeClusters(vol, t))

	// Freeing a slot makes room for exactly one more.
	f, err := vol.Open("F100", sdfat.O_WRONLY)
	require.NoError(t, err)
	require.NoError(t, f.Remove())
	f, err = vol.Open("LAST", sdfat.O_RDWR|sdfat.O_CREATE)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	_, err = vol.Open("OVER", sdfat.O_RDWR|sdfat.O_CREATE)
	assert.ErrorIs(t, err, sdfat.ErrNoSpaceOnDevice)
}

func TestListing__EmptyDirectory(t *testing.T) {
	vol, _ := sdfattest.CreateFAT16Volume(t)
	root := openRoot(vol, t)

	entries, err := root.ReadDir()
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, _, err = root.ReadDirEntry()
	assert.ErrorIs(t, err, io.EOF)
}

func TestListing__SkipsDeletedEntries(t *testing.T) {
	vol, _ := sdfattest.CreateFAT16Volume(t)
	root := openRoot(vol, t)

	for _, name := range []string{"A.TXT", "B.TXT", "C.TXT"} {
		sdfattest.WriteFile(vol, name, []byte(name), t)
	}
	b, err := vol.Open("B.TXT", sdfat.O_WRONLY)
	require.NoError(t, err)
	require.NoError(t, b.Remove())

	entries, err := root.ReadDir()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "A.TXT", entries[0].Name)
	assert.EqualValues(t, 0, entries[0].Index)
	assert.EqualValues(t, 5, entries[0].Size)
	assert.False(t, entries[0].IsDir())
	assert.Equal(t, "C.TXT", entries[1].Name)
	assert.EqualValues(t, 2, entries[1].Index)

	// The deleted slot is reused before the directory's free tail.
	sdfattest.WriteFile(vol, "D.TXT", nil, t)
	entries, err = root.ReadDir()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "D.TXT", entries[1].Name)
	assert.EqualValues(t, 1, entries[1].Index)
}

func TestListing__Recursive(t *testing.T) {
	vol, _ := sdfattest.CreateFAT16Volume(t)
	root := openRoot(vol, t)

	mkdir(vol, "DOCS", t).Close()
	sdfattest.WriteFile(vol, "TOP.TXT", []byte("top"), t)
	sdfattest.WriteFile(vol, "DOCS/README.TXT", []byte("read me"), t)
	mkdir(vol, "DOCS/SUB", t).Close()
	sdfattest.WriteFile(vol, "DOCS/SUB/DEEP.TXT", []byte("deep"), t)

	lister, err := root.List(true)
	require.NoError(t, err)
	defer lister.Close()

	collect := func() ([]string, []int) {
		var paths []string
		var depths []int
		for {
			entry, err := lister.Next()
			if err == io.EOF {
				return paths, depths
			}
			require.NoError(t, err)
			paths = append(paths, entry.Path)
			depths = append(depths, entry.Depth)
		}
	}

	expectedPaths := []string{"DOCS", "DOCS/README.TXT", "DOCS/SUB", "DOCS/SUB/DEEP.TXT", "TOP.TXT"}
	expectedDepths := []int{0, 1, 1, 2, 0}

	paths, depths := collect()
	assert.Equal(t, expectedPaths, paths)
	assert.Equal(t, expectedDepths, depths)

	_, err = lister.Next()
	assert.ErrorIs(t, err, io.EOF, "a finished listing stays finished")

	require.NoError(t, lister.Reset())
	paths, depths = collect()
	assert.Equal(t, expectedPaths, paths)
	assert.Equal(t, expectedDepths, depths)

	flat, err := root.List(false)
	require.NoError(t, err)
	defer flat.Close()
	var flatPaths []string
	for {
		entry, err := flat.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		flatPaths = append(flatPaths, entry.Path)
	}
	assert.Equal(t, []string{"DOCS", "TOP.TXT"}, flatPaths)
}

func TestListing__DepthLimit(t *testing.T) {
	vol, _ := sdfattest.CreateFAT16Volume(t)
	root := openRoot(vol, t)
	freeBefore := freeClusters(vol, t)

	// MaxDirDepth+1 nested directories, the deepest at depth MaxDirDepth.
	path := strings.Repeat("D/", fat.MaxDirDepth) + "D"
	_, err := root.Mkdir(path, true)
	require.NoError(t, err)

	lister, err := root.List(true)
	require.NoError(t, err)
	defer lister.Close()

	count := 0
	for {
		_, err = lister.Next()
		if err != nil {
			break
		}
		count++
	}
	assert.ErrorIs(t, err, sdfat.ErrTooManyLevels)
	assert.Equal(t, fat.MaxDirDepth, count)

	// Recursive deletion goes exactly that deep.
	top, err := vol.Open("D", sdfat.O_RDONLY)
	require.NoError(t, err)
	require.NoError(t, top.RemoveAll())
	assert.Equal(t, freeBefore, freeClusters(vol, t))
}

func TestOpenNext(t *testing.T) {
	vol, _ := sdfattest.CreateFAT16Volume(t)
	root := openRoot(vol, t)

	sdfattest.WriteFile(vol, "A.TXT", []byte("a"), t)
	mkdir(vol, "B", t).Close()
	sdfattest.WriteFile(vol, "C.TXT", []byte("c"), t)
	c, err := vol.Open("C.TXT", sdfat.O_WRONLY)
	require.NoError(t, err)
	require.NoError(t, c.Remove())

	var names []string
	for {
		f, err := root.OpenNext(sdfat.O_RDONLY)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		name, err := f.Name()
		require.NoError(t, err)
		names = append(names, name)
		require.NoError(t, f.Close())
	}
	assert.Equal(t, []string{"A.TXT", "B"}, names)

	require.NoError(t, root.SeekSet(1))
	_, err = root.OpenNext(sdfat.O_RDONLY)
	assert.ErrorIs(t, err, sdfat.ErrInvalidArgument)

	f, err := vol.Open("A.TXT", sdfat.O_RDONLY)
	require.NoError(t, err)
	_, err = f.OpenNext(sdfat.O_RDONLY)
	assert.ErrorIs(t, err, sdfat.ErrNotADirectory)
}

func TestOpenIndex(t *testing.T) {
	vol, _ := sdfattest.CreateFAT16Volume(t)
	root := openRoot(vol, t)
	sdfattest.WriteFile(vol, "A.TXT", []byte("a"), t)

	f, err := root.OpenIndex(0, sdfat.O_RDONLY)
	require.NoError(t, err)
	name, err := f.Name()
	require.NoError(t, err)
	assert.Equal(t, "A.TXT", name)

	_, err = root.OpenIndex(1, sdfat.O_RDONLY)
	assert.ErrorIs(t, err, sdfat.ErrNotFound)
	_, err = root.OpenIndex(512, sdfat.O_RDONLY)
	assert.ErrorIs(t, err, sdfat.ErrNotFound)
}

func TestVolumeLabelIsNotAFile(t *testing.T) {
	device := sdfattest.FormatImage(
		sdfattest.SmallFAT16Blocks,
		mkfs.Options{FATType: fat.FAT16, SectorsPerCluster: 1, VolumeLabel: "MYDISK"},
		t)
	vol := sdfattest.MountImage(device, fat.MountOptions{}, t)
	root := openRoot(vol, t)

	assert.Empty(t, listNames(root, t))
	_, err := root.OpenIndex(0, sdfat.O_RDONLY)
	assert.ErrorIs(t, err, sdfat.ErrNotFound)
	assert.False(t, root.Exists("MYDISK"))

	// A file with the label's name is a different entry.
	sdfattest.WriteFile(vol, "MYDISK", []byte("file"), t)
	assert.Equal(t, []string{"MYDISK"}, listNames(root, t))
	assert.Equal(t, []byte("file"), sdfattest.ReadFile(vol, "MYDISK", t))
}
