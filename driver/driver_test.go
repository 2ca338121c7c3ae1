package driver_test

import (
	"testing"

	"github.com/dargueta/sdfat"
	"github.com/dargueta/sdfat/driver"
	sdfattest "github.com/dargueta/sdfat/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDriver(t *testing.T) *driver.Driver {
	vol, _ := sdfattest.CreateFAT16Volume(t)
	return driver.New(vol)
}

func TestNormalizePath(t *testing.T) {
	drv := newDriver(t)
	require.NoError(t, drv.Mkdir("/A/B", true))
	require.NoError(t, drv.Chdir("/A"))

	testCases := []struct {
		input    string
		expected string
	}{
		{".", "/A"},
		{"", "/A"},
		{"B", "/A/B"},
		{"B/../C", "/A/C"},
		{"..", "/"},
		{"/X/./Y/", "/X/Y"},
		{"//X", "/X"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, drv.NormalizePath(tc.input), "input: %q", tc.input)
	}
}

func TestChdir(t *testing.T) {
	drv := newDriver(t)
	assert.Equal(t, "/", drv.Cwd())

	require.NoError(t, drv.Mkdir("DOCS/SUB", true))
	require.NoError(t, drv.WriteFile("DOCS/NOTE.TXT", []byte("hi")))

	require.NoError(t, drv.Chdir("DOCS"))
	assert.Equal(t, "/DOCS", drv.Cwd())
	assert.True(t, drv.Exists("NOTE.TXT"))
	assert.True(t, drv.Exists("/DOCS/NOTE.TXT"))
	assert.False(t, drv.Exists("/NOTE.TXT"))

	require.NoError(t, drv.Chdir("SUB"))
	wd, err := drv.Getwd()
	require.NoError(t, err)
	assert.Equal(t, "/DOCS/SUB", wd)

	assert.ErrorIs(t, drv.Chdir("/DOCS/NOTE.TXT"), sdfat.ErrNotADirectory)
	assert.ErrorIs(t, drv.Chdir("/MISSING"), sdfat.ErrNotFound)
	assert.Equal(t, "/DOCS/SUB", drv.Cwd(), "failed Chdir changed the directory")

	require.NoError(t, drv.Chdir("/"))
	assert.Equal(t, "/", drv.Cwd())
}

func TestMkdir(t *testing.T) {
	drv := newDriver(t)

	require.NoError(t, drv.Mkdir("ONE", false))
	assert.ErrorIs(t, drv.Mkdir("ONE", false), sdfat.ErrExists)
	assert.NoError(t, drv.Mkdir("ONE", true), "existing directory with parents")
	assert.ErrorIs(t, drv.Mkdir("TWO/THREE", false), sdfat.ErrNotFound)

	require.NoError(t, drv.Mkdir("TWO/THREE", true))
	info, err := drv.Stat("/TWO/THREE")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	require.NoError(t, drv.WriteFile("FILE.TXT", nil))
	assert.ErrorIs(t, drv.Mkdir("FILE.TXT", true), sdfat.ErrExists)
	assert.ErrorIs(t, drv.Mkdir("/", false), sdfat.ErrExists)
	assert.NoError(t, drv.Mkdir("/", true))
}

func TestRemove(t *testing.T) {
	drv := newDriver(t)
	require.NoError(t, drv.WriteFile("A.TXT", make([]byte, 3000)))
	free, err := drv.Volume().FreeClusterCount()
	require.NoError(t, err)

	require.NoError(t, drv.Remove("A.TXT"))
	assert.False(t, drv.Exists("A.TXT"))
	after, err := drv.Volume().FreeClusterCount()
	require.NoError(t, err)
	assert.Equal(t, free+6, after)

	assert.ErrorIs(t, drv.Remove("A.TXT"), sdfat.ErrNotFound)

	require.NoError(t, drv.Mkdir("DIR", false))
	assert.ErrorIs(t, drv.Remove("DIR"), sdfat.ErrIsADirectory)
}

func TestRmdir(t *testing.T) {
	drv := newDriver(t)
	require.NoError(t, drv.Mkdir("DIR", false))
	require.NoError(t, drv.WriteFile("DIR/X", []byte("x")))

	assert.ErrorIs(t, drv.Rmdir("DIR"), sdfat.ErrDirectoryNotEmpty)
	require.NoError(t, drv.Remove("DIR/X"))
	require.NoError(t, drv.Rmdir("DIR"))
	assert.False(t, drv.Exists("DIR"))

	assert.ErrorIs(t, drv.Rmdir("/"), sdfat.ErrPermissionDenied)
}

func TestRemoveAll(t *testing.T) {
	drv := newDriver(t)
	require.NoError(t, drv.Mkdir("TREE/A/B", true))
	require.NoError(t, drv.WriteFile("TREE/ONE", []byte("1")))
	require.NoError(t, drv.WriteFile("TREE/A/B/TWO", make([]byte, 2000)))
	require.NoError(t, drv.WriteFile("KEEP", []byte("keep")))

	require.NoError(t, drv.RemoveAll("TREE"))
	assert.False(t, drv.Exists("TREE"))
	assert.True(t, drv.Exists("KEEP"))

	require.NoError(t, drv.RemoveAll("KEEP"))
	assert.False(t, drv.Exists("KEEP"))

	require.NoError(t, drv.WriteFile("LAST", []byte("x")))
	require.NoError(t, drv.RemoveAll("/"))
	entries, err := drv.ReadDir("/")
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, drv.Volume().ClusterCount(), mustFreeCount(t, drv))
}

func mustFreeCount(t *testing.T, drv *driver.Driver) uint32 {
	free, err := drv.Volume().FreeClusterCount()
	require.NoError(t, err)
	return free
}

func TestRename(t *testing.T) {
	drv := newDriver(t)
	require.NoError(t, drv.Mkdir("SRC", false))
	require.NoError(t, drv.Mkdir("DST", false))
	require.NoError(t, drv.WriteFile("SRC/DATA.BIN", []byte("payload")))
	require.NoError(t, drv.Chdir("SRC"))

	require.NoError(t, drv.Rename("DATA.BIN", "../DST/MOVED.BIN"))
	assert.False(t, drv.Exists("/SRC/DATA.BIN"))

	contents, err := drv.ReadFile("/DST/MOVED.BIN")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), contents)

	require.NoError(t, drv.WriteFile("/DST/OTHER.BIN", nil))
	assert.ErrorIs(t, drv.Rename("/DST/OTHER.BIN", "/DST/MOVED.BIN"), sdfat.ErrExists)
	assert.ErrorIs(t, drv.Rename("/DST", "/DST/INNER"), sdfat.ErrInvalidArgument)
}

func TestTruncate(t *testing.T) {
	drv := newDriver(t)
	require.NoError(t, drv.WriteFile("T.TXT", []byte("0123456789")))

	require.NoError(t, drv.Truncate("T.TXT", 4))
	contents, err := drv.ReadFile("T.TXT")
	require.NoError(t, err)
	assert.Equal(t, []byte("0123"), contents)

	assert.ErrorIs(t, drv.Truncate("T.TXT", 100), sdfat.ErrInvalidArgument)

	require.NoError(t, drv.Mkdir("DIR", false))
	assert.ErrorIs(t, drv.Truncate("DIR", 0), sdfat.ErrIsADirectory)
}

func TestReadDir(t *testing.T) {
	drv := newDriver(t)
	require.NoError(t, drv.WriteFile("B.TXT", []byte("bb")))
	require.NoError(t, drv.Mkdir("SUB", false))
	require.NoError(t, drv.WriteFile("A.TXT", []byte("a")))

	entries, err := drv.ReadDir("/")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "B.TXT", entries[0].Name())
	assert.EqualValues(t, 2, entries[0].Size())
	assert.False(t, entries[0].IsDir())
	assert.Equal(t, "SUB", entries[1].Name())
	assert.True(t, entries[1].IsDir())
	assert.Equal(t, "A.TXT", entries[2].Name())

	_, err = drv.ReadDir("/MISSING")
	assert.ErrorIs(t, err, sdfat.ErrNotFound)
	_, err = drv.ReadDir("/A.TXT")
	assert.ErrorIs(t, err, sdfat.ErrNotADirectory)
}

func TestStat(t *testing.T) {
	drv := newDriver(t)
	require.NoError(t, drv.WriteFile("F.TXT", make([]byte, 1234)))
	require.NoError(t, drv.Mkdir("D", false))

	info, err := drv.Stat("f.txt")
	require.NoError(t, err)
	assert.Equal(t, "F.TXT", info.Name())
	assert.EqualValues(t, 1234, info.Size())
	assert.EqualValues(t, 0o666, info.Mode())

	info, err = drv.Stat("D")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.EqualValues(t, 512, info.Size(), "directory size is the size of its chain")

	info, err = drv.Stat("/")
	require.NoError(t, err)
	assert.True(t, info.IsRoot())
	assert.True(t, info.IsDir())
	assert.EqualValues(t, 512*32, info.Size())
}
