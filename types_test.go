package nvbox

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeometryValidate(t *testing.T) {
	cases := []struct {
		name string
		geom Geometry
		ok   bool
	}{
		{"valid", Geometry{Capacity: 4096, ReadSize: 1, WriteSize: 4, EraseSize: 1024}, true},
		{"single byte", Geometry{Capacity: 1, ReadSize: 1, WriteSize: 1, EraseSize: 1}, true},
		{"zero read", Geometry{Capacity: 4096, ReadSize: 0, WriteSize: 4, EraseSize: 1024}, false},
		{"write not multiple of read", Geometry{Capacity: 4096, ReadSize: 4, WriteSize: 6, EraseSize: 1200}, false},
		{"erase not multiple of write", Geometry{Capacity: 4096, ReadSize: 1, WriteSize: 8, EraseSize: 1020}, false},
		{"capacity not multiple of erase", Geometry{Capacity: 4000, ReadSize: 1, WriteSize: 4, EraseSize: 1024}, false},
		{"capacity beyond 32 bits", Geometry{Capacity: math.MaxUint32 + 1, ReadSize: 1, WriteSize: 1, EraseSize: 1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.geom.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidGeometry)
			}
		})
	}
}

func TestGeometryBlocks(t *testing.T) {
	assert.Equal(t, 4, Geometry{Capacity: 4096, EraseSize: 1024}.Blocks())
	assert.Equal(t, 0, Geometry{Capacity: 4096}.Blocks())
}

type byteStore struct{ data []byte }

func (b *byteStore) Capacity() int { return len(b.data) }

func (b *byteStore) Read(offset uint32, buf []byte) error {
	if err := CheckBounds(len(b.data), offset, len(buf)); err != nil {
		return err
	}
	copy(buf, b.data[offset:])
	return nil
}

func (b *byteStore) Write(offset uint32, data []byte) error {
	if err := CheckBounds(len(b.data), offset, len(data)); err != nil {
		return err
	}
	copy(b.data[offset:], data)
	return nil
}

func (b *byteStore) ByteAddressable() {}

func TestDescribe(t *testing.T) {
	info := Describe(testGeometry)
	assert.Equal(t, testGeometry.geom, info.Geometry)
	assert.Equal(t, 8, info.Blocks)
	assert.Equal(t, ErasedValue, info.ErasedValue)
	assert.False(t, info.Multiwrite)

	info = Describe(&byteStore{data: make([]byte, 64)})
	assert.Equal(t, 64, info.Geometry.Capacity)
	assert.Equal(t, 1, info.Geometry.WriteSize)
	assert.True(t, info.Multiwrite)
	assert.Contains(t, info.Driver, "byteStore")
}
