package nvbox_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuln/nvbox"
)

func TestChecksum(t *testing.T) {
	a := newFlash(t)
	b := newFlash(t)

	for _, algo := range []string{"md5", "sha256", "xxhash"} {
		t.Run(algo, func(t *testing.T) {
			sumA, err := nvbox.Checksum(a, algo)
			require.NoError(t, err)
			sumB, err := nvbox.Checksum(b, algo)
			require.NoError(t, err)
			assert.Equal(t, sumA, sumB, "identical images hash the same")
			assert.NotEmpty(t, sumA)
		})
	}

	before, err := nvbox.Checksum(a, "xxhash")
	require.NoError(t, err)
	require.NoError(t, a.Write(0, []byte{0x12, 0x34, 0x56, 0x78}))
	after, err := nvbox.Checksum(a, "xxhash")
	require.NoError(t, err)
	assert.NotEqual(t, before, after)

	sum, err := nvbox.Checksum(a, "sha256")
	require.NoError(t, err)
	assert.Len(t, sum, 64)

	_, err = nvbox.Checksum(a, "crc7")
	assert.ErrorIs(t, err, nvbox.ErrNotSupported)
}
