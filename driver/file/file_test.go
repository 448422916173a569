package file_test

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuln/nvbox"
	"github.com/nuln/nvbox/driver/file"
	"github.com/nuln/nvbox/nvtest"
)

var geom = nvbox.Geometry{Capacity: 4096, ReadSize: 1, WriteSize: 4, EraseSize: 1024}

func TestFileFlash(t *testing.T) {
	flash, err := file.NewWithFs(afero.NewMemMapFs(), "/images/flash.img", geom)
	require.NoError(t, err)
	t.Cleanup(func() { _ = flash.Close() })

	nvtest.NorFlashTestSuite(t, flash)
}

func TestFileReopen(t *testing.T) {
	fs := afero.NewMemMapFs()

	flash, err := file.NewWithFs(fs, "/flash.img", geom)
	require.NoError(t, err)
	require.NoError(t, flash.Write(1028, []byte{0xDE, 0xAD, 0xBE, 0xEF}))
	require.NoError(t, flash.Sync())
	require.NoError(t, flash.Close())
	require.NoError(t, flash.Close(), "second close is a no-op")

	info, err := fs.Stat("/flash.img")
	require.NoError(t, err)
	assert.Equal(t, int64(4096), info.Size())

	flash, err = file.NewWithFs(fs, "/flash.img", geom)
	require.NoError(t, err)
	defer func() { _ = flash.Close() }()

	got := make([]byte, 8)
	require.NoError(t, flash.Read(1024, got))
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xDE, 0xAD, 0xBE, 0xEF}, got)
}

func TestFileAndProgramming(t *testing.T) {
	flash, err := file.NewWithFs(afero.NewMemMapFs(), "/flash.img", geom)
	require.NoError(t, err)
	defer func() { _ = flash.Close() }()

	require.NoError(t, flash.Write(0, []byte{0xF0, 0xF0, 0xF0, 0xF0}))
	require.NoError(t, flash.Write(0, []byte{0x3C, 0x3C, 0x3C, 0x3C}))
	got := make([]byte, 4)
	require.NoError(t, flash.Read(0, got))
	assert.Equal(t, []byte{0x30, 0x30, 0x30, 0x30}, got)
}

func TestFileWrongSize(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/flash.img", make([]byte, 100), 0o644))

	_, err := file.NewWithFs(fs, "/flash.img", geom)
	assert.ErrorContains(t, err, "capacity is 4096")
}

func TestFileClosed(t *testing.T) {
	flash, err := file.NewWithFs(afero.NewMemMapFs(), "/flash.img", geom)
	require.NoError(t, err)
	require.NoError(t, flash.Close())

	assert.ErrorIs(t, flash.Read(0, make([]byte, 4)), nvbox.ErrClosed)
	assert.ErrorIs(t, flash.Write(0, make([]byte, 4)), nvbox.ErrClosed)
	assert.ErrorIs(t, flash.Erase(0, 1024), nvbox.ErrClosed)
	assert.ErrorIs(t, flash.Sync(), nvbox.ErrClosed)
}

func TestFileRegisteredDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "flash.img")
	dev, err := nvbox.Open(&nvbox.Config{Type: "file", Path: path, Geometry: geom})
	require.NoError(t, err)
	defer func() { _ = nvbox.Close(dev) }()

	flash, ok := dev.(*file.Flash)
	require.True(t, ok)
	assert.Equal(t, path, flash.Path())
	assert.Equal(t, "file", nvbox.Describe(dev).Driver)
	assert.FileExists(t, path)
}
