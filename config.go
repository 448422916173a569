package nvbox

import (
	"fmt"
	"sort"
	"sync"
)

// Config holds the device configuration.
type Config struct {
	// Type is the driver name: "mem", "file", "mmap", "rclone", etc.
	Type string `json:"type" yaml:"type"`

	// Path locates the backing image for image-based drivers. For rclone it
	// is the remote directory (e.g. "s3:bucket/images").
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Geometry describes the simulated device.
	Geometry Geometry `json:"geometry" yaml:"geometry"`

	// Options holds driver-specific configuration.
	Options map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
}

// IntOption returns the integer option key, or def if it is unset or not a number.
func (c *Config) IntOption(key string, def int) int {
	if v, ok := c.Options[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case uint32:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return def
}

// StringOption returns the string option key, or def if it is unset.
func (c *Config) StringOption(key, def string) string {
	if v, ok := c.Options[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}

// BoolOption returns the boolean option key, or def if it is unset.
func (c *Config) BoolOption(key string, def bool) bool {
	if v, ok := c.Options[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Factory creates a device from a [Config]. The returned device implements
// at least [ReadStorage]; use type assertions to reach [NorFlash] or
// [Storage].
type Factory func(cfg *Config) (ReadStorage, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a device driver available by the provided name.
// This is typically called from the driver package's init() function.
// It panics if called twice with the same name.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("nvbox: driver %q already registered", name))
	}
	factories[name] = factory
}

// Drivers returns a sorted list of all registered driver names.
func Drivers() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open creates a new device using the registered driver specified in cfg.Type.
func Open(cfg *Config) (ReadStorage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nvbox: config must not be nil")
	}

	mu.RLock()
	factory, ok := factories[cfg.Type]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("nvbox: unknown driver %q (forgotten import?)", cfg.Type)
	}

	return factory(cfg)
}

// OpenFlash is like [Open] but requires the device to be a [NorFlash].
func OpenFlash(cfg *Config) (NorFlash, error) {
	dev, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	flash, ok := dev.(NorFlash)
	if !ok {
		_ = Close(dev)
		return nil, fmt.Errorf("nvbox: driver %q is not a NOR flash: %w", cfg.Type, ErrNotSupported)
	}
	return flash, nil
}

// MustOpen is like [Open] but panics on error.
func MustOpen(cfg *Config) ReadStorage {
	dev, err := Open(cfg)
	if err != nil {
		panic(err)
	}
	return dev
}
