// Package rmw turns a block-erase NOR flash into byte-addressable storage
// using read-modify-write over erase blocks.
//
// A write touching part of an erase block reads the block into a scratch
// buffer, overlays the new bytes, erases the block and programs it back.
// Blocks are processed strictly in ascending address order.
//
// The adapter is not atomic: if power is lost or an error occurs between
// the erase and the write-back of a block, that block's prior content is
// lost and the new content may be incomplete. Errors from the device are
// returned unchanged and never retried.
//
// An adapter owns its scratch buffer for the duration of each call and is
// not safe for concurrent use.
package rmw

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/nuln/nvbox"
)

// Option configures an adapter.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger receiving per-block debug entries.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Stats counts the device operations issued by an adapter.
type Stats struct {
	BlocksRead    uint64 `json:"blocksRead"`
	BlocksErased  uint64 `json:"blocksErased"`
	BlocksWritten uint64 `json:"blocksWritten"`
	ReadsSkipped  uint64 `json:"readsSkipped"`
	DirectWrites  uint64 `json:"directWrites"`
}

type counters struct {
	read, erased, written, skipped, direct atomic.Uint64
}

// base holds what both adapters share: the device, the scratch buffer and
// the read path.
type base struct {
	flash  nvbox.NorFlash
	buf    []byte
	logger *zap.Logger
	stats  counters
}

func (b *base) init(flash nvbox.NorFlash, buf []byte, opts []Option) error {
	if len(buf) < flash.EraseSize() {
		return fmt.Errorf("%w: need %d bytes, got %d",
			nvbox.ErrBufferTooSmall, flash.EraseSize(), len(buf))
	}
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	b.flash, b.buf, b.logger = flash, buf, o.logger
	return nil
}

// Capacity returns the capacity of the underlying device.
func (b *base) Capacity() int {
	return b.flash.Capacity()
}

// ByteAddressable implements [nvbox.Storage].
func (b *base) ByteAddressable() {}

// Flash returns the underlying device.
func (b *base) Flash() nvbox.NorFlash {
	return b.flash
}

// Stats returns a snapshot of the operation counters.
func (b *base) Stats() Stats {
	return Stats{
		BlocksRead:    b.stats.read.Load(),
		BlocksErased:  b.stats.erased.Load(),
		BlocksWritten: b.stats.written.Load(),
		ReadsSkipped:  b.stats.skipped.Load(),
		DirectWrites:  b.stats.direct.Load(),
	}
}

// Read copies len(buf) bytes at offset into buf. Ranges that are not
// aligned to the device read size are staged through the scratch buffer,
// so no alignment restriction reaches the caller.
func (b *base) Read(offset uint32, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	if err := nvbox.CheckBounds(b.flash.Capacity(), offset, len(buf)); err != nil {
		return err
	}

	rs := uint64(b.flash.ReadSize())
	if uint64(offset)%rs == 0 && uint64(len(buf))%rs == 0 {
		return b.flash.Read(offset, buf)
	}

	pos := uint64(offset)
	end := pos + uint64(len(buf))
	for pos < end {
		start := pos - pos%rs
		n := min(uint64(b.flash.EraseSize()), (end-start+rs-1)/rs*rs)
		window := b.buf[:n]
		if err := b.flash.Read(uint32(start), window); err != nil {
			return err
		}
		pos += uint64(copy(buf[pos-uint64(offset):], window[pos-start:]))
	}
	return nil
}

// program erases the block and writes the scratch content back.
func (b *base) program(page nvbox.Page, block []byte) error {
	if err := b.flash.Erase(page.Start, page.End()); err != nil {
		return err
	}
	b.stats.erased.Add(1)
	if err := b.flash.Write(page.Start, block); err != nil {
		return err
	}
	b.stats.written.Add(1)
	return nil
}

// Storage is a byte-addressable [nvbox.Storage] on top of a [nvbox.NorFlash].
type Storage struct {
	base
}

// New creates a Storage using buf as scratch memory. buf must hold at least
// EraseSize bytes and must not be used by anything else while the Storage
// is in use.
func New(flash nvbox.NorFlash, buf []byte, opts ...Option) (*Storage, error) {
	s := &Storage{}
	if err := s.init(flash, buf, opts); err != nil {
		return nil, err
	}
	return s, nil
}

// NewOwned creates a Storage that allocates its own scratch buffer.
func NewOwned(flash nvbox.NorFlash, opts ...Option) *Storage {
	s, _ := New(flash, make([]byte, flash.EraseSize()), opts...)
	return s
}

// MustNew is like [New] but panics if buf is too small.
func MustNew(flash nvbox.NorFlash, buf []byte, opts ...Option) *Storage {
	s, err := New(flash, buf, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Write stores data at offset. Bounds are checked before any device
// operation; zero-length writes do nothing.
func (s *Storage) Write(offset uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := nvbox.CheckBounds(s.flash.Capacity(), offset, len(data)); err != nil {
		return err
	}

	size := s.flash.EraseSize()
	block := s.buf[:size]
	for o := range nvbox.Overlaps(offset, len(data), size) {
		if o.Full() {
			s.stats.skipped.Add(1)
		} else {
			if err := s.flash.Read(o.Page.Start, block); err != nil {
				return err
			}
			s.stats.read.Add(1)
		}
		copy(block[o.Within():], data[o.Lo:o.Hi])

		if err := s.program(o.Page, block); err != nil {
			return err
		}
		s.logger.Debug("rmw block written",
			zap.Uint32("start", o.Page.Start),
			zap.Int("within", o.Within()),
			zap.Int("length", o.Hi-o.Lo),
			zap.Bool("partial", !o.Full()),
		)
	}
	return nil
}

// Compile-time interface checks.
var (
	_ nvbox.Storage = (*Storage)(nil)
)
