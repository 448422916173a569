package nvbox

import (
	"fmt"
	"iter"
)

// BlockIdx is the linear address of a block (or sector).
type BlockIdx uint64

// BlockCount is a number of blocks.
type BlockCount uint64

// Add returns the index n blocks after i.
func (i BlockIdx) Add(n BlockCount) BlockIdx { return i + BlockIdx(n) }

// Sub returns the index n blocks before i.
func (i BlockIdx) Sub(n BlockCount) BlockIdx { return i - BlockIdx(n) }

// Range yields the n indexes starting at i.
func (i BlockIdx) Range(n BlockCount) iter.Seq[BlockIdx] {
	return func(yield func(BlockIdx) bool) {
		for idx := i; idx < i.Add(n); idx++ {
			if !yield(idx) {
				return
			}
		}
	}
}

// BlockDevice reads and writes whole blocks.
type BlockDevice interface {
	// BlockSize returns the size of one block in bytes.
	BlockSize() int

	// BlockCount returns the size of the device in blocks.
	BlockCount() (BlockCount, error)

	// ReadBlocks fills buf, whose length must be a multiple of BlockSize,
	// starting at block first.
	ReadBlocks(buf []byte, first BlockIdx) error

	// WriteBlocks stores buf, whose length must be a multiple of BlockSize,
	// starting at block first.
	WriteBlocks(buf []byte, first BlockIdx) error
}

// FlashBlocks exposes a NorFlash as a BlockDevice whose block is one erase
// unit. Writing a block erases it first.
type FlashBlocks struct {
	Flash NorFlash
}

// BlockSize returns the erase size of the flash.
func (b FlashBlocks) BlockSize() int { return b.Flash.EraseSize() }

// BlockCount returns the number of erase blocks.
func (b FlashBlocks) BlockCount() (BlockCount, error) {
	return BlockCount(b.Flash.Capacity() / b.Flash.EraseSize()), nil
}

func (b FlashBlocks) span(buf []byte, first BlockIdx) (uint32, uint32, error) {
	size := uint64(b.BlockSize())
	if uint64(len(buf))%size != 0 {
		return 0, 0, NotAligned(b.BlockSize())
	}
	from := uint64(first) * size
	to := from + uint64(len(buf))
	if to > uint64(b.Flash.Capacity()) {
		return 0, 0, fmt.Errorf("nvbox: blocks [%d, %d) beyond device: %w", first, to/size, OutOfBounds)
	}
	return uint32(from), uint32(to), nil
}

// ReadBlocks implements BlockDevice.
func (b FlashBlocks) ReadBlocks(buf []byte, first BlockIdx) error {
	from, _, err := b.span(buf, first)
	if err != nil {
		return err
	}
	return b.Flash.Read(from, buf)
}

// WriteBlocks implements BlockDevice.
func (b FlashBlocks) WriteBlocks(buf []byte, first BlockIdx) error {
	from, to, err := b.span(buf, first)
	if err != nil {
		return err
	}
	if err := b.Flash.Erase(from, to); err != nil {
		return err
	}
	return b.Flash.Write(from, buf)
}

var _ BlockDevice = FlashBlocks{}
