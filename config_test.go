package nvbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	Register("test-flash", func(cfg *Config) (ReadStorage, error) {
		return geometryOnly{cfg.Geometry}, nil
	})
	Register("test-bytes", func(cfg *Config) (ReadStorage, error) {
		return &byteStore{data: make([]byte, cfg.Geometry.Capacity)}, nil
	})
}

func TestRegistry(t *testing.T) {
	drivers := Drivers()
	assert.Contains(t, drivers, "test-flash")
	assert.Contains(t, drivers, "test-bytes")
	assert.IsNonDecreasing(t, drivers)

	assert.Panics(t, func() {
		Register("test-flash", func(*Config) (ReadStorage, error) { return nil, nil })
	})
}

func TestOpen(t *testing.T) {
	geom := Geometry{Capacity: 1024, ReadSize: 1, WriteSize: 4, EraseSize: 256}

	dev, err := Open(&Config{Type: "test-flash", Geometry: geom})
	require.NoError(t, err)
	assert.Equal(t, 1024, dev.Capacity())

	flash, err := OpenFlash(&Config{Type: "test-flash", Geometry: geom})
	require.NoError(t, err)
	assert.Equal(t, 256, flash.EraseSize())

	_, err = OpenFlash(&Config{Type: "test-bytes", Geometry: geom})
	assert.ErrorIs(t, err, ErrNotSupported)

	_, err = Open(&Config{Type: "no-such-driver"})
	assert.ErrorContains(t, err, "unknown driver")

	_, err = Open(nil)
	assert.Error(t, err)

	assert.Panics(t, func() { MustOpen(&Config{Type: "no-such-driver"}) })
}

func TestConfigOptions(t *testing.T) {
	cfg := &Config{Options: map[string]any{
		"chips":  float64(4),
		"count":  int64(7),
		"remote": "s3:bucket",
		"empty":  "",
		"strict": true,
		"wrong":  "yes",
	}}

	assert.Equal(t, 4, cfg.IntOption("chips", 2))
	assert.Equal(t, 7, cfg.IntOption("count", 0))
	assert.Equal(t, 9, cfg.IntOption("missing", 9))
	assert.Equal(t, 3, cfg.IntOption("remote", 3))

	assert.Equal(t, "s3:bucket", cfg.StringOption("remote", ""))
	assert.Equal(t, "def", cfg.StringOption("empty", "def"))

	assert.True(t, cfg.BoolOption("strict", false))
	assert.True(t, cfg.BoolOption("wrong", true))
	assert.False(t, (&Config{}).BoolOption("strict", false))
}
