// Package chain joins several NOR flash chips of identical geometry into
// one linear address space, the way a board wires a chip array behind one
// bus.
package chain

import (
	"fmt"

	"github.com/nuln/nvbox"
	"github.com/nuln/nvbox/driver/mem"
)

// Auto-register chain driver. The configured geometry describes the whole
// chain; Options["chips"] splits it into that many mem chips.
func init() {
	nvbox.Register("chain", func(cfg *nvbox.Config) (nvbox.ReadStorage, error) {
		n := cfg.IntOption("chips", 2)
		if n <= 0 {
			return nil, fmt.Errorf("nvbox/chain: chips must be positive, got %d", n)
		}
		geom := cfg.Geometry
		geom.Capacity /= n
		if geom.Capacity*n != cfg.Geometry.Capacity {
			return nil, fmt.Errorf("nvbox/chain: capacity %d does not split into %d chips: %w",
				cfg.Geometry.Capacity, n, nvbox.ErrInvalidGeometry)
		}
		chips := make([]nvbox.NorFlash, n)
		for i := range chips {
			chip, err := mem.New(geom)
			if err != nil {
				return nil, err
			}
			chips[i] = chip
		}
		return New(chips...)
	})
}

// Chain is a NorFlash spanning several chips.
type Chain struct {
	chips   []nvbox.NorFlash
	chipCap uint64
	geom    nvbox.Geometry
}

// New chains chips in order. All chips must share the same geometry.
func New(chips ...nvbox.NorFlash) (*Chain, error) {
	if len(chips) == 0 {
		return nil, fmt.Errorf("nvbox/chain: at least one chip is required")
	}
	g := nvbox.GeometryOf(chips[0])
	for i, chip := range chips[1:] {
		if nvbox.GeometryOf(chip) != g {
			return nil, fmt.Errorf("nvbox/chain: chip %d geometry differs from chip 0: %w", i+1, nvbox.ErrInvalidGeometry)
		}
	}
	total := g
	total.Capacity = g.Capacity * len(chips)
	if err := total.Validate(); err != nil {
		return nil, err
	}
	return &Chain{chips: chips, chipCap: uint64(g.Capacity), geom: total}, nil
}

func (c *Chain) Capacity() int  { return c.geom.Capacity }
func (c *Chain) ReadSize() int  { return c.geom.ReadSize }
func (c *Chain) WriteSize() int { return c.geom.WriteSize }
func (c *Chain) EraseSize() int { return c.geom.EraseSize }

// Chips returns the chained devices.
func (c *Chain) Chips() []nvbox.NorFlash { return c.chips }

// Multiwrite reports true only if every chip allows multiwrite.
func (c *Chain) Multiwrite() bool {
	for _, chip := range c.chips {
		mw, ok := chip.(nvbox.MultiwriteNorFlash)
		if !ok || !mw.Multiwrite() {
			return false
		}
	}
	return true
}

// split calls fn for each chip-local piece of [offset, offset+length).
func (c *Chain) split(offset uint32, length int, fn func(chip nvbox.NorFlash, local uint32, lo, hi int) error) error {
	pos := uint64(offset)
	end := pos + uint64(length)
	for pos < end {
		idx := pos / c.chipCap
		local := pos % c.chipCap
		n := min(end-pos, c.chipCap-local)
		lo := int(pos - uint64(offset))
		if err := fn(c.chips[idx], uint32(local), lo, lo+int(n)); err != nil {
			return err
		}
		pos += n
	}
	return nil
}

func (c *Chain) Read(offset uint32, buf []byte) error {
	if err := nvbox.CheckRead(c, offset, len(buf)); err != nil {
		return err
	}
	return c.split(offset, len(buf), func(chip nvbox.NorFlash, local uint32, lo, hi int) error {
		return chip.Read(local, buf[lo:hi])
	})
}

func (c *Chain) Write(offset uint32, data []byte) error {
	if err := nvbox.CheckWrite(c, offset, len(data)); err != nil {
		return err
	}
	return c.split(offset, len(data), func(chip nvbox.NorFlash, local uint32, lo, hi int) error {
		return chip.Write(local, data[lo:hi])
	})
}

func (c *Chain) Erase(from, to uint32) error {
	if err := nvbox.CheckErase(c, from, to); err != nil {
		return err
	}
	return c.split(from, int(to-from), func(chip nvbox.NorFlash, local uint32, lo, hi int) error {
		return chip.Erase(local, local+uint32(hi-lo))
	})
}

// === Extension: Syncer ===

func (c *Chain) Sync() error {
	for _, chip := range c.chips {
		if err := nvbox.Sync(chip); err != nil {
			return err
		}
	}
	return nil
}

// === Extension: EraseCounter ===

func (c *Chain) EraseCount(block int) uint32 {
	perChip := int(c.chipCap) / c.geom.EraseSize
	if block < 0 || block >= perChip*len(c.chips) {
		return 0
	}
	if ec, ok := c.chips[block/perChip].(nvbox.EraseCounter); ok {
		return ec.EraseCount(block % perChip)
	}
	return 0
}

// === Extension: Describer ===

func (c *Chain) Info() nvbox.Info {
	return nvbox.Info{
		Driver:      "chain",
		Geometry:    c.geom,
		ErasedValue: nvbox.ErasedValue,
		Multiwrite:  c.Multiwrite(),
		Blocks:      c.geom.Blocks(),
	}
}

// Compile-time interface checks.
var (
	_ nvbox.MultiwriteNorFlash = (*Chain)(nil)
	_ nvbox.Syncer             = (*Chain)(nil)
	_ nvbox.EraseCounter       = (*Chain)(nil)
	_ nvbox.Describer          = (*Chain)(nil)
)
