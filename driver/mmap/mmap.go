// Package mmap provides a NOR flash simulator over a memory-mapped image
// file. Changes reach the file when the mapping is flushed by Sync or
// Close.
package mmap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/edsrzf/mmap-go"

	"github.com/nuln/nvbox"
	"github.com/nuln/nvbox/driver/mem"
)

// Auto-register mmap driver.
func init() {
	nvbox.Register("mmap", func(cfg *nvbox.Config) (nvbox.ReadStorage, error) {
		if cfg.Path == "" {
			return nil, fmt.Errorf("nvbox/mmap: image path is required")
		}
		return New(cfg.Path, cfg.Geometry)
	})
}

// Flash is a NOR flash whose cells live in a mapped file.
type Flash struct {
	mu     sync.RWMutex
	file   *os.File
	mmap   mmap.MMap
	flash  *mem.Flash
	closed bool
}

// New maps the image at path, creating it erased if it is missing or empty.
// An existing image must be exactly geom.Capacity bytes long.
func New(path string, geom nvbox.Geometry) (*Flash, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("error reading file info: %w", err)
	}

	fresh := info.Size() == 0
	if fresh {
		if err := f.Truncate(int64(geom.Capacity)); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("error allocating file: %w", err)
		}
	} else if info.Size() != int64(geom.Capacity) {
		_ = f.Close()
		return nil, fmt.Errorf("nvbox/mmap: image %s is %d bytes, capacity is %d", path, info.Size(), geom.Capacity)
	}

	mm, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("error mapping file: %w", err)
	}
	if fresh {
		for i := range mm {
			mm[i] = nvbox.ErasedValue
		}
	}

	flash, err := mem.NewFromImage(geom, mm, mem.WithDriverName("mmap"))
	if err != nil {
		_ = mm.Unmap()
		_ = f.Close()
		return nil, err
	}
	return &Flash{file: f, mmap: mm, flash: flash}, nil
}

func (f *Flash) Capacity() int    { return f.flash.Capacity() }
func (f *Flash) ReadSize() int    { return f.flash.ReadSize() }
func (f *Flash) WriteSize() int   { return f.flash.WriteSize() }
func (f *Flash) EraseSize() int   { return f.flash.EraseSize() }
func (f *Flash) Multiwrite() bool { return f.flash.Multiwrite() }

func (f *Flash) Read(offset uint32, buf []byte) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nvbox.ErrClosed
	}
	return f.flash.Read(offset, buf)
}

func (f *Flash) Write(offset uint32, data []byte) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nvbox.ErrClosed
	}
	return f.flash.Write(offset, data)
}

func (f *Flash) Erase(from, to uint32) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nvbox.ErrClosed
	}
	return f.flash.Erase(from, to)
}

// === Extension: Syncer ===

func (f *Flash) Sync() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nvbox.ErrClosed
	}
	return f.mmap.Flush()
}

// === Extension: Closer ===

func (f *Flash) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true

	flushErr := f.mmap.Flush()
	mmapErr := f.mmap.Unmap()
	closeErr := f.file.Close()

	return errors.Join(flushErr, mmapErr, closeErr)
}

// === Extension: EraseCounter ===

func (f *Flash) EraseCount(block int) uint32 { return f.flash.EraseCount(block) }

// === Extension: Describer ===

func (f *Flash) Info() nvbox.Info { return f.flash.Info() }

// Compile-time interface checks.
var (
	_ nvbox.MultiwriteNorFlash = (*Flash)(nil)
	_ nvbox.Syncer             = (*Flash)(nil)
	_ nvbox.Closer             = (*Flash)(nil)
	_ nvbox.EraseCounter       = (*Flash)(nil)
	_ nvbox.Describer          = (*Flash)(nil)
)
