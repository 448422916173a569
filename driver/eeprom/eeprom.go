// Package eeprom provides a byte-addressable EEPROM simulator. EEPROM cells
// are rewritten individually, so the device implements nvbox.Storage
// directly and needs no read-modify-write layer.
package eeprom

import (
	"fmt"
	"sync"

	"github.com/nuln/nvbox"
)

// DefaultPageSize is the write page size used for cycle accounting.
const DefaultPageSize = 32

// Auto-register eeprom driver.
func init() {
	nvbox.Register("eeprom", func(cfg *nvbox.Config) (nvbox.ReadStorage, error) {
		return New(cfg.Geometry.Capacity, cfg.IntOption("pageSize", DefaultPageSize))
	})
}

// EEPROM is an in-memory byte-addressable EEPROM.
type EEPROM struct {
	mu       sync.RWMutex
	data     []byte
	pageSize int
	cycles   []uint32
}

// New creates an EEPROM of the given capacity, initialised to 0xFF.
// pageSize must divide capacity.
func New(capacity, pageSize int) (*EEPROM, error) {
	if capacity <= 0 || pageSize <= 0 || capacity%pageSize != 0 {
		return nil, fmt.Errorf("%w: capacity %d, page size %d", nvbox.ErrInvalidGeometry, capacity, pageSize)
	}
	data := make([]byte, capacity)
	for i := range data {
		data[i] = 0xFF
	}
	return &EEPROM{
		data:     data,
		pageSize: pageSize,
		cycles:   make([]uint32, capacity/pageSize),
	}, nil
}

func (e *EEPROM) Capacity() int { return len(e.data) }

// PageSize returns the write page size.
func (e *EEPROM) PageSize() int { return e.pageSize }

func (e *EEPROM) Read(offset uint32, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	if err := nvbox.CheckBounds(len(e.data), offset, len(buf)); err != nil {
		return err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	copy(buf, e.data[offset:])
	return nil
}

func (e *EEPROM) Write(offset uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := nvbox.CheckBounds(len(e.data), offset, len(data)); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	copy(e.data[offset:], data)
	first := int(offset) / e.pageSize
	last := (int(offset) + len(data) - 1) / e.pageSize
	for p := first; p <= last; p++ {
		e.cycles[p]++
	}
	return nil
}

func (e *EEPROM) ByteAddressable() {}

// WriteCycles returns how many write operations touched the page.
func (e *EEPROM) WriteCycles(page int) uint32 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if page < 0 || page >= len(e.cycles) {
		return 0
	}
	return e.cycles[page]
}

// === Extension: Describer ===

func (e *EEPROM) Info() nvbox.Info {
	return nvbox.Info{
		Driver: "eeprom",
		Geometry: nvbox.Geometry{
			Capacity:  len(e.data),
			ReadSize:  1,
			WriteSize: 1,
			EraseSize: e.pageSize,
		},
		ErasedValue: 0xFF,
		Multiwrite:  true,
		Blocks:      len(e.cycles),
	}
}

// Compile-time interface checks.
var (
	_ nvbox.Storage   = (*EEPROM)(nil)
	_ nvbox.Describer = (*EEPROM)(nil)
)
