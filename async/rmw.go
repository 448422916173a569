package async

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nuln/nvbox"
)

// RMW is the suspending read-modify-write adapter: a byte-addressable
// [Storage] on top of a suspending [NorFlash]. It awaits each device
// primitive in turn and never suspends anywhere else. Like its blocking
// counterpart it is not atomic and not safe for concurrent use.
type RMW struct {
	flash  NorFlash
	buf    []byte
	logger *zap.Logger
}

// RMWOption configures an RMW adapter.
type RMWOption func(*RMW)

// WithLogger sets the logger receiving per-block debug entries.
func WithLogger(logger *zap.Logger) RMWOption {
	return func(r *RMW) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRMW creates an adapter using buf as scratch memory. buf must hold at
// least EraseSize bytes.
func NewRMW(flash NorFlash, buf []byte, opts ...RMWOption) (*RMW, error) {
	if len(buf) < flash.EraseSize() {
		return nil, fmt.Errorf("%w: need %d bytes, got %d",
			nvbox.ErrBufferTooSmall, flash.EraseSize(), len(buf))
	}
	r := &RMW{flash: flash, buf: buf, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// NewOwnedRMW creates an adapter that allocates its own scratch buffer.
func NewOwnedRMW(flash NorFlash, opts ...RMWOption) *RMW {
	r, _ := NewRMW(flash, make([]byte, flash.EraseSize()), opts...)
	return r
}

func (r *RMW) Capacity() int    { return r.flash.Capacity() }
func (r *RMW) ByteAddressable() {}

// Read copies len(buf) bytes at offset into buf, staging unaligned ranges
// through the scratch buffer.
func (r *RMW) Read(ctx context.Context, offset uint32, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	if err := nvbox.CheckBounds(r.flash.Capacity(), offset, len(buf)); err != nil {
		return err
	}

	rs := uint64(r.flash.ReadSize())
	if uint64(offset)%rs == 0 && uint64(len(buf))%rs == 0 {
		return r.flash.Read(ctx, offset, buf)
	}

	pos := uint64(offset)
	end := pos + uint64(len(buf))
	for pos < end {
		start := pos - pos%rs
		n := min(uint64(r.flash.EraseSize()), (end-start+rs-1)/rs*rs)
		window := r.buf[:n]
		if err := r.flash.Read(ctx, uint32(start), window); err != nil {
			return err
		}
		pos += uint64(copy(buf[pos-uint64(offset):], window[pos-start:]))
	}
	return nil
}

// Write stores data at offset. Bounds are checked before any device
// primitive is issued; zero-length writes do nothing.
func (r *RMW) Write(ctx context.Context, offset uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := nvbox.CheckBounds(r.flash.Capacity(), offset, len(data)); err != nil {
		return err
	}

	size := r.flash.EraseSize()
	block := r.buf[:size]
	for o := range nvbox.Overlaps(offset, len(data), size) {
		if !o.Full() {
			if err := r.flash.Read(ctx, o.Page.Start, block); err != nil {
				return err
			}
		}
		copy(block[o.Within():], data[o.Lo:o.Hi])

		if err := r.flash.Erase(ctx, o.Page.Start, o.Page.End()); err != nil {
			return err
		}
		if err := r.flash.Write(ctx, o.Page.Start, block); err != nil {
			return err
		}
		r.logger.Debug("rmw block written",
			zap.Uint32("start", o.Page.Start),
			zap.Int("within", o.Within()),
			zap.Int("length", o.Hi-o.Lo),
			zap.Bool("partial", !o.Full()),
		)
	}
	return nil
}

var _ Storage = (*RMW)(nil)
