package rmw

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/nuln/nvbox"
)

// MultiwriteStorage is a byte-addressable [nvbox.Storage] on top of a flash
// that allows reprogramming words with AND semantics. When the new bytes
// only clear bits of the current content, they are programmed in place
// without erasing the block.
type MultiwriteStorage struct {
	base
}

// NewMultiwrite creates a MultiwriteStorage using buf as scratch memory. It
// fails with [nvbox.ErrNotSupported] if the device does not currently
// allow multiwrite.
func NewMultiwrite(flash nvbox.MultiwriteNorFlash, buf []byte, opts ...Option) (*MultiwriteStorage, error) {
	if !flash.Multiwrite() {
		return nil, fmt.Errorf("rmw: device does not allow multiwrite: %w", nvbox.ErrNotSupported)
	}
	s := &MultiwriteStorage{}
	if err := s.init(flash, buf, opts); err != nil {
		return nil, err
	}
	return s, nil
}

// NewOwnedMultiwrite is like [NewMultiwrite] with an adapter-owned buffer.
func NewOwnedMultiwrite(flash nvbox.MultiwriteNorFlash, opts ...Option) (*MultiwriteStorage, error) {
	return NewMultiwrite(flash, make([]byte, flash.EraseSize()), opts...)
}

// Write stores data at offset.
func (s *MultiwriteStorage) Write(offset uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := nvbox.CheckBounds(s.flash.Capacity(), offset, len(data)); err != nil {
		return err
	}

	size := s.flash.EraseSize()
	ws := s.flash.WriteSize()
	block := s.buf[:size]
	for o := range nvbox.Overlaps(offset, len(data), size) {
		if err := s.flash.Read(o.Page.Start, block); err != nil {
			return err
		}
		s.stats.read.Add(1)

		chunk := data[o.Lo:o.Hi]
		within := o.Within()
		if isSubset(chunk, block[within:within+len(chunk)]) {
			// Pad to the write granularity with 0xFF, which leaves cells
			// untouched under AND semantics.
			lo := within - within%ws
			hi := (within + len(chunk) + ws - 1) / ws * ws
			window := block[lo:hi]
			for i := range window {
				window[i] = 0xFF
			}
			copy(window[within-lo:], chunk)
			if err := s.flash.Write(o.Page.Start+uint32(lo), window); err != nil {
				return err
			}
			s.stats.direct.Add(1)
			s.logger.Debug("rmw block programmed in place",
				zap.Uint32("start", o.Page.Start),
				zap.Int("within", within),
				zap.Int("length", len(chunk)),
			)
			continue
		}

		copy(block[within:], chunk)
		if err := s.program(o.Page, block); err != nil {
			return err
		}
		s.logger.Debug("rmw block written",
			zap.Uint32("start", o.Page.Start),
			zap.Int("within", within),
			zap.Int("length", len(chunk)),
			zap.Bool("partial", !o.Full()),
		)
	}
	return nil
}

// isSubset reports whether programming next over cur only clears bits.
func isSubset(next, cur []byte) bool {
	for i, b := range next {
		if b&cur[i] != b {
			return false
		}
	}
	return true
}

var _ nvbox.Storage = (*MultiwriteStorage)(nil)
