package nvbox

import (
	"bytes"
	"io/fs"
)

// BlockFunc is the callback for WalkBlocks. It receives the index and start
// address of each erase block together with its content. data is only valid
// for the duration of the call. Returning fs.SkipAll stops the walk
// without error.
type BlockFunc func(index int, start uint32, data []byte) error

// WalkBlocks reads every erase block of flash in ascending order and calls
// fn for each one. buf is used as the read buffer if it holds at least
// EraseSize bytes; otherwise a buffer is allocated.
func WalkBlocks(flash NorFlash, buf []byte, fn BlockFunc) error {
	size := flash.EraseSize()
	if len(buf) < size {
		buf = make([]byte, size)
	}
	block := buf[:size]

	for i := 0; i < flash.Capacity()/size; i++ {
		start := uint32(i * size)
		if err := flash.Read(start, block); err != nil {
			return err
		}
		if err := fn(i, start, block); err != nil {
			if err == fs.SkipAll {
				return nil
			}
			return err
		}
	}
	return nil
}

// IsErased reports whether every byte in [from, to) equals erased. The
// bounds must be erase aligned.
func IsErased(flash NorFlash, from, to uint32, erased byte) (bool, error) {
	if err := CheckErase(flash, from, to); err != nil {
		return false, err
	}
	size := flash.EraseSize()
	block := make([]byte, size)
	pattern := bytes.Repeat([]byte{erased}, size)

	for addr := from; addr < to; addr += uint32(size) {
		if err := flash.Read(addr, block); err != nil {
			return false, err
		}
		if !bytes.Equal(block, pattern) {
			return false, nil
		}
	}
	return true, nil
}

// BlankBlocks returns the indexes of erase blocks whose bytes all equal erased.
func BlankBlocks(flash NorFlash, erased byte) ([]int, error) {
	var blank []int
	err := WalkBlocks(flash, nil, func(index int, _ uint32, data []byte) error {
		for _, b := range data {
			if b != erased {
				return nil
			}
		}
		blank = append(blank, index)
		return nil
	})
	return blank, err
}
