// Package mem provides a RAM NOR flash simulator.
//
// Erased cells read 0xFF. Programming a cell stores the bitwise AND of its
// current and new value, like real NOR flash, so the device reports
// multiwrite support unless strict programming is enabled.
package mem

import (
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/zeebo/errs"

	"github.com/nuln/nvbox"
)

// Error is the class of device faults raised by this package.
var Error = errs.Class("nvbox/mem")

// Auto-register mem driver.
func init() {
	nvbox.Register("mem", func(cfg *nvbox.Config) (nvbox.ReadStorage, error) {
		var opts []Option
		if cfg.BoolOption("strict", false) {
			opts = append(opts, WithStrictProgramming())
		}
		return New(cfg.Geometry, opts...)
	})
}

// Option configures a Flash.
type Option func(*Flash)

// WithStrictProgramming makes programming a word that was already
// programmed since its last erase fail with a device error. Multiwrite is
// reported as unsupported.
func WithStrictProgramming() Option {
	return func(f *Flash) { f.strict = true }
}

// WithDriverName sets the driver name reported by Info. Drivers built on
// top of this simulator use it to describe themselves.
func WithDriverName(name string) Option {
	return func(f *Flash) { f.name = name }
}

// Flash is an in-memory NOR flash.
type Flash struct {
	mu         sync.RWMutex
	name       string
	geom       nvbox.Geometry
	data       []byte
	programmed *bitset.BitSet // one bit per write word
	erases     []uint32
	strict     bool
	failAfter  int
}

// New creates an erased Flash with the given geometry.
func New(geom nvbox.Geometry, opts ...Option) (*Flash, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	data := make([]byte, geom.Capacity)
	for i := range data {
		data[i] = nvbox.ErasedValue
	}
	return newFlash(geom, data, opts), nil
}

// NewFromImage creates a Flash operating directly on image, which must be
// exactly geom.Capacity bytes long. The slice is not copied: the caller may
// hand in memory it keeps in sync elsewhere (a mapping, a download buffer).
// Words holding any non-erased byte are treated as programmed.
func NewFromImage(geom nvbox.Geometry, image []byte, opts ...Option) (*Flash, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	if len(image) != geom.Capacity {
		return nil, Error.New("image is %d bytes, capacity is %d", len(image), geom.Capacity)
	}
	f := newFlash(geom, image, opts)
	ws := geom.WriteSize
	for w := 0; w < len(image)/ws; w++ {
		for _, b := range image[w*ws : (w+1)*ws] {
			if b != nvbox.ErasedValue {
				f.programmed.Set(uint(w))
				break
			}
		}
	}
	return f, nil
}

func newFlash(geom nvbox.Geometry, data []byte, opts []Option) *Flash {
	f := &Flash{
		name:       "mem",
		geom:       geom,
		data:       data,
		programmed: bitset.New(uint(geom.Capacity / geom.WriteSize)),
		erases:     make([]uint32, geom.Blocks()),
		failAfter:  -1,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Flash) Capacity() int  { return f.geom.Capacity }
func (f *Flash) ReadSize() int  { return f.geom.ReadSize }
func (f *Flash) WriteSize() int { return f.geom.WriteSize }
func (f *Flash) EraseSize() int { return f.geom.EraseSize }

// Multiwrite reports whether words may be reprogrammed.
func (f *Flash) Multiwrite() bool { return !f.strict }

func (f *Flash) Read(offset uint32, buf []byte) error {
	if err := nvbox.CheckRead(f, offset, len(buf)); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.fault("read", offset); err != nil {
		return err
	}
	copy(buf, f.data[offset:])
	return nil
}

func (f *Flash) Write(offset uint32, data []byte) error {
	if err := nvbox.CheckWrite(f, offset, len(data)); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.fault("write", offset); err != nil {
		return err
	}

	ws := uint(f.geom.WriteSize)
	first := uint(offset) / ws
	words := uint(len(data)) / ws
	if f.strict {
		for w := first; w < first+words; w++ {
			if f.programmed.Test(w) {
				return nvbox.NewDeviceError("write", uint32(w*ws), Error.New("word already programmed"))
			}
		}
	}

	dst := f.data[offset : int(offset)+len(data)]
	for i, b := range data {
		dst[i] &= b
	}
	for w := first; w < first+words; w++ {
		f.programmed.Set(w)
	}
	return nil
}

func (f *Flash) Erase(from, to uint32) error {
	if err := nvbox.CheckErase(f, from, to); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.fault("erase", from); err != nil {
		return err
	}

	region := f.data[from:to]
	for i := range region {
		region[i] = nvbox.ErasedValue
	}
	ws := uint(f.geom.WriteSize)
	for w := uint(from) / ws; w < uint(to)/ws; w++ {
		f.programmed.Clear(w)
	}
	es := uint32(f.geom.EraseSize)
	for b := from / es; b < to/es; b++ {
		f.erases[b]++
	}
	return nil
}

// === Fault injection ===

// FailAfter makes the operation following the next n successful
// operations fail with a device error. A negative n disables injection.
func (f *Flash) FailAfter(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAfter = n
}

// fault must be called with mu held.
func (f *Flash) fault(op string, offset uint32) error {
	switch {
	case f.failAfter < 0:
		return nil
	case f.failAfter == 0:
		f.failAfter = -1
		return nvbox.NewDeviceError(op, offset, Error.New("injected fault"))
	default:
		f.failAfter--
		return nil
	}
}

// === Inspection ===

// Bytes returns a copy of the device content.
func (f *Flash) Bytes() []byte {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]byte(nil), f.data...)
}

// Programmed reports whether the write word containing offset has been
// programmed since its last erase.
func (f *Flash) Programmed(offset uint32) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.programmed.Test(uint(offset) / uint(f.geom.WriteSize))
}

// === Extension: EraseCounter ===

func (f *Flash) EraseCount(block int) uint32 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if block < 0 || block >= len(f.erases) {
		return 0
	}
	return f.erases[block]
}

// === Extension: Describer ===

func (f *Flash) Info() nvbox.Info {
	return nvbox.Info{
		Driver:      f.name,
		Geometry:    f.geom,
		ErasedValue: nvbox.ErasedValue,
		Multiwrite:  f.Multiwrite(),
		Blocks:      f.geom.Blocks(),
	}
}

// Compile-time interface checks.
var (
	_ nvbox.MultiwriteNorFlash = (*Flash)(nil)
	_ nvbox.EraseCounter       = (*Flash)(nil)
	_ nvbox.Describer          = (*Flash)(nil)
)
