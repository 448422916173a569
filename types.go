package nvbox

import (
	"fmt"
	"math"
)

// Geometry holds the size constants of a device, in bytes.
type Geometry struct {
	Capacity  int `json:"capacity" yaml:"capacity" mapstructure:"capacity"`
	ReadSize  int `json:"readSize" yaml:"read_size" mapstructure:"read_size"`
	WriteSize int `json:"writeSize" yaml:"write_size" mapstructure:"write_size"`
	EraseSize int `json:"eraseSize" yaml:"erase_size" mapstructure:"erase_size"`
}

// Validate checks the granularity invariants: EraseSize is a positive
// multiple of WriteSize, WriteSize a positive multiple of ReadSize and
// Capacity a multiple of EraseSize that fits the 32-bit address space.
func (g Geometry) Validate() error {
	switch {
	case g.ReadSize <= 0 || g.WriteSize <= 0 || g.EraseSize <= 0:
		return fmt.Errorf("%w: sizes must be positive (read=%d write=%d erase=%d)",
			ErrInvalidGeometry, g.ReadSize, g.WriteSize, g.EraseSize)
	case g.WriteSize%g.ReadSize != 0:
		return fmt.Errorf("%w: write size %d is not a multiple of read size %d",
			ErrInvalidGeometry, g.WriteSize, g.ReadSize)
	case g.EraseSize%g.WriteSize != 0:
		return fmt.Errorf("%w: erase size %d is not a multiple of write size %d",
			ErrInvalidGeometry, g.EraseSize, g.WriteSize)
	case g.Capacity <= 0 || g.Capacity%g.EraseSize != 0:
		return fmt.Errorf("%w: capacity %d is not a positive multiple of erase size %d",
			ErrInvalidGeometry, g.Capacity, g.EraseSize)
	case uint64(g.Capacity) > math.MaxUint32:
		return fmt.Errorf("%w: capacity %d exceeds the 32-bit address space",
			ErrInvalidGeometry, g.Capacity)
	}
	return nil
}

// Blocks returns the number of erase blocks.
func (g Geometry) Blocks() int {
	if g.EraseSize <= 0 {
		return 0
	}
	return g.Capacity / g.EraseSize
}

// GeometryOf reads the geometry of a flash device.
func GeometryOf(flash NorFlash) Geometry {
	return Geometry{
		Capacity:  flash.Capacity(),
		ReadSize:  flash.ReadSize(),
		WriteSize: flash.WriteSize(),
		EraseSize: flash.EraseSize(),
	}
}

// Info describes a device.
type Info struct {
	Driver      string   `json:"driver"`
	Geometry    Geometry `json:"geometry"`
	ErasedValue byte     `json:"erasedValue"`
	Multiwrite  bool     `json:"multiwrite"`
	Blocks      int      `json:"blocks"`
}

// Describe returns the Info of a device. Devices implementing [Describer]
// describe themselves; otherwise the information is derived from the
// capability interfaces the device implements.
func Describe(dev ReadStorage) Info {
	if d, ok := dev.(Describer); ok {
		return d.Info()
	}

	info := Info{
		Driver:      fmt.Sprintf("%T", dev),
		ErasedValue: ErasedValue,
	}
	if flash, ok := dev.(NorFlash); ok {
		info.Geometry = GeometryOf(flash)
		info.Blocks = info.Geometry.Blocks()
		if mw, ok := flash.(MultiwriteNorFlash); ok {
			info.Multiwrite = mw.Multiwrite()
		}
		return info
	}
	info.Geometry = Geometry{Capacity: dev.Capacity(), ReadSize: 1, WriteSize: 1, EraseSize: 1}
	if _, ok := dev.(Storage); ok {
		info.Multiwrite = true
	}
	return info
}
