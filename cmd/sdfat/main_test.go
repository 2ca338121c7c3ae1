package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dargueta/sdfat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// run executes the CLI against `image` and returns what it printed.
func run(t *testing.T, image string, args ...string) (string, error) {
	app := newApp()
	var stdout, stderr bytes.Buffer
	app.Writer = &stdout
	app.ErrWriter = &stderr
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run(append([]string{"sdfat", "--image", image}, args...))
	return stdout.String(), err
}

func mustRun(t *testing.T, image string, args ...string) string {
	output, err := run(t, image, args...)
	require.NoErrorf(t, err, "sdfat %s", strings.Join(args, " "))
	return output
}

func TestCLI__RoundTrip(t *testing.T) {
	dir := t.TempDir()
	image := filepath.Join(dir, "disk.img")

	mustRun(t, image, "format", "--blocks", "16384", "--label", "TEST")
	stat, err := os.Stat(image)
	require.NoError(t, err)
	assert.EqualValues(t, 16384*sdfat.BlockSize, stat.Size())

	info := mustRun(t, image, "info")
	assert.Contains(t, info, "FAT type:           FAT16")
	assert.Contains(t, info, "Root entries:       512")

	local := filepath.Join(dir, "hello.txt")
	require.NoError(t, os.WriteFile(local, []byte("hello from the host\n"), 0o644))

	mustRun(t, image, "mkdir", "-p", "/DOCS/OLD")
	mustRun(t, image, "put", local, "/DOCS/HELLO.TXT")
	assert.Equal(t, "hello from the host\n", mustRun(t, image, "cat", "/docs/hello.txt"))

	listing := mustRun(t, image, "ls", "-r")
	lines := strings.Split(strings.TrimSpace(listing), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "d"), lines[0])
	assert.True(t, strings.HasSuffix(lines[0], " DOCS"), lines[0])
	assert.True(t, strings.HasSuffix(lines[1], " DOCS/OLD"), lines[1])
	assert.True(t, strings.HasSuffix(lines[2], " DOCS/HELLO.TXT"), lines[2])
	assert.Contains(t, lines[2], "         20 ")

	mustRun(t, image, "mv", "/DOCS/HELLO.TXT", "/DOCS/OLD/HI.TXT")
	mustRun(t, image, "truncate", "/DOCS/OLD/HI.TXT", "5")

	copied := filepath.Join(dir, "copy.txt")
	mustRun(t, image, "get", "/DOCS/OLD/HI.TXT", copied)
	contents, err := os.ReadFile(copied)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(contents))

	report := mustRun(t, image, "fsck")
	assert.Contains(t, report, "1 files, 3 directories, 3 clusters used")

	_, err = run(t, image, "rmdir", "/DOCS")
	assert.ErrorIs(t, err, sdfat.ErrDirectoryNotEmpty)
	mustRun(t, image, "rm", "-r", "/DOCS")
	assert.Empty(t, mustRun(t, image, "ls"))
}

func TestCLI__Floppy(t *testing.T) {
	image := filepath.Join(t.TempDir(), "floppy.img")
	mustRun(t, image, "format", "--floppy", "1440K")

	info := mustRun(t, image, "info")
	assert.Contains(t, info, "FAT type:           FAT12")
	assert.Contains(t, info, "Clusters:           2847")
	assert.Contains(t, info, "Root entries:       224")
}

func TestCLI__Partitioned(t *testing.T) {
	image := filepath.Join(t.TempDir(), "card.img")
	mustRun(t, image, "format", "--blocks", "8255", "--partition-start", "63")

	_, err := run(t, image, "info")
	assert.Error(t, err, "mounted the MBR as a volume")

	info := mustRun(t, image, "--partition", "1", "info")
	assert.Contains(t, info, "Volume start:       63")
}

func TestCLI__Errors(t *testing.T) {
	dir := t.TempDir()
	image := filepath.Join(dir, "disk.img")

	_, err := run(t, image, "format")
	assert.Error(t, err, "formatted a missing image without a size")

	mustRun(t, image, "format", "--blocks", "2880")

	_, err = run(t, image, "cat", "/MISSING.TXT")
	assert.ErrorIs(t, err, sdfat.ErrNotFound)
	_, err = run(t, image, "cat")
	assert.Error(t, err)
	_, err = run(t, image, "truncate", "/X", "not-a-number")
	assert.Error(t, err)
	_, err = run(t, image, "mkdir", "/A/B")
	assert.ErrorIs(t, err, sdfat.ErrNotFound)
}
