package nvbox_test

import (
	"bytes"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuln/nvbox"
)

func TestBlockIdx(t *testing.T) {
	i := nvbox.BlockIdx(10)
	assert.Equal(t, nvbox.BlockIdx(13), i.Add(3))
	assert.Equal(t, nvbox.BlockIdx(7), i.Sub(3))
	assert.Equal(t, []nvbox.BlockIdx{10, 11, 12}, slices.Collect(i.Range(3)))
	assert.Empty(t, slices.Collect(i.Range(0)))
}

func TestFlashBlocks(t *testing.T) {
	flash := newFlash(t)
	dev := nvbox.FlashBlocks{Flash: flash}

	assert.Equal(t, 256, dev.BlockSize())
	count, err := dev.BlockCount()
	require.NoError(t, err)
	assert.Equal(t, nvbox.BlockCount(4), count)

	// Writing twice to the same block works because each write erases it.
	require.NoError(t, dev.WriteBlocks(bytes.Repeat([]byte{0x0F}, 256), 1))
	data := bytes.Repeat([]byte{0xA0}, 512)
	require.NoError(t, dev.WriteBlocks(data, 1))

	got := make([]byte, 512)
	require.NoError(t, dev.ReadBlocks(got, 1))
	assert.Equal(t, data, got)
	assert.Equal(t, uint32(2), flash.EraseCount(1))

	assert.ErrorIs(t, dev.ReadBlocks(make([]byte, 100), 0), nvbox.NotAligned(256))
	assert.ErrorIs(t, dev.WriteBlocks(make([]byte, 512), 3), nvbox.OutOfBounds)
}
