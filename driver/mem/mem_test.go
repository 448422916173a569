package mem_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuln/nvbox"
	"github.com/nuln/nvbox/driver/mem"
	"github.com/nuln/nvbox/nvtest"
)

var geom = nvbox.Geometry{Capacity: 2048, ReadSize: 2, WriteSize: 4, EraseSize: 512}

func TestMemFlash(t *testing.T) {
	flash, err := mem.New(geom)
	require.NoError(t, err)
	nvtest.NorFlashTestSuite(t, flash)
}

func TestMemStrictFlash(t *testing.T) {
	flash, err := mem.New(geom, mem.WithStrictProgramming())
	require.NoError(t, err)
	nvtest.NorFlashTestSuite(t, flash)
}

func TestWriteNotAligned(t *testing.T) {
	flash, err := mem.New(nvbox.Geometry{Capacity: 1024, ReadSize: 1, WriteSize: 4, EraseSize: 256})
	require.NoError(t, err)

	err = flash.Write(3, []byte{1, 2, 3})
	assert.ErrorIs(t, err, nvbox.NotAligned(4))
	assert.Equal(t, nvbox.NotAligned(4), nvbox.KindOf(err))
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, 1024), flash.Bytes())
}

func TestAndProgramming(t *testing.T) {
	flash, err := mem.New(geom)
	require.NoError(t, err)
	assert.True(t, flash.Multiwrite())

	require.NoError(t, flash.Write(8, []byte{0xF0, 0xFF, 0x0F, 0xAA}))
	require.NoError(t, flash.Write(8, []byte{0x3C, 0x00, 0xFF, 0x55}))

	got := make([]byte, 4)
	require.NoError(t, flash.Read(8, got))
	assert.Equal(t, []byte{0x30, 0x00, 0x0F, 0x00}, got)
	assert.True(t, flash.Programmed(8))
	assert.False(t, flash.Programmed(12))
}

func TestStrictProgramming(t *testing.T) {
	flash, err := mem.New(geom, mem.WithStrictProgramming())
	require.NoError(t, err)
	assert.False(t, flash.Multiwrite())

	require.NoError(t, flash.Write(0, []byte{1, 2, 3, 4}))
	err = flash.Write(0, []byte{0, 0, 0, 0})
	require.Error(t, err)
	assert.Equal(t, nvbox.Other, nvbox.KindOf(err))
	assert.ErrorContains(t, err, "already programmed")

	require.NoError(t, flash.Erase(0, 512))
	assert.False(t, flash.Programmed(0))
	require.NoError(t, flash.Write(0, []byte{0, 0, 0, 0}))
}

func TestEraseCount(t *testing.T) {
	flash, err := mem.New(geom)
	require.NoError(t, err)

	require.NoError(t, flash.Erase(0, 1024))
	require.NoError(t, flash.Erase(512, 1024))
	assert.Equal(t, uint32(1), flash.EraseCount(0))
	assert.Equal(t, uint32(2), flash.EraseCount(1))
	assert.Equal(t, uint32(0), flash.EraseCount(3))
	assert.Equal(t, uint32(0), flash.EraseCount(-1))
	assert.Equal(t, uint32(0), flash.EraseCount(4))
}

func TestFailAfter(t *testing.T) {
	flash, err := mem.New(geom)
	require.NoError(t, err)

	flash.FailAfter(1)
	require.NoError(t, flash.Read(0, make([]byte, 2)))
	err = flash.Erase(0, 512)

	var de *nvbox.DeviceError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "erase", de.Op)
	assert.Equal(t, uint32(0), flash.EraseCount(0))

	require.NoError(t, flash.Erase(0, 512), "injection fires once")
}

func TestNewFromImage(t *testing.T) {
	image := bytes.Repeat([]byte{0xFF}, 2048)
	image[5] = 0x00

	flash, err := mem.NewFromImage(geom, image, mem.WithDriverName("image"))
	require.NoError(t, err)
	assert.True(t, flash.Programmed(4))
	assert.False(t, flash.Programmed(8))

	require.NoError(t, flash.Write(8, []byte{1, 2, 3, 4}))
	assert.Equal(t, []byte{1, 2, 3, 4}, image[8:12], "image is shared, not copied")

	info := flash.Info()
	assert.Equal(t, "image", info.Driver)
	assert.Equal(t, 4, info.Blocks)
	assert.Equal(t, geom, info.Geometry)

	_, err = mem.NewFromImage(geom, make([]byte, 10))
	assert.Error(t, err)
}

func TestRegisteredDriver(t *testing.T) {
	flash, err := nvbox.OpenFlash(&nvbox.Config{
		Type:     "mem",
		Geometry: geom,
		Options:  map[string]any{"strict": true},
	})
	require.NoError(t, err)
	assert.False(t, nvbox.Describe(flash).Multiwrite)

	_, err = nvbox.Open(&nvbox.Config{Type: "mem", Geometry: nvbox.Geometry{Capacity: 100}})
	assert.ErrorIs(t, err, nvbox.ErrInvalidGeometry)
}

func TestNotByteAddressable(t *testing.T) {
	flash, err := mem.New(geom)
	require.NoError(t, err)

	var dev nvbox.ReadStorage = flash
	_, ok := dev.(nvbox.Storage)
	assert.False(t, ok, "aligned flash writes must not pass for byte-addressable storage")
}
