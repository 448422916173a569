// Package file provides a NOR flash simulator whose content lives in an
// image file on any afero filesystem.
package file

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
	"github.com/zeebo/errs"

	"github.com/nuln/nvbox"
)

// Error is the class of device faults raised by this package.
var Error = errs.Class("nvbox/file")

// Auto-register file driver.
func init() {
	nvbox.Register("file", func(cfg *nvbox.Config) (nvbox.ReadStorage, error) {
		path := cfg.Path
		if path == "" {
			path = "./flash.img"
		}
		return New(path, cfg.Geometry)
	})
}

// Flash is a NOR flash backed by an image file. Programming stores the
// bitwise AND of the current and new bytes.
type Flash struct {
	mu     sync.Mutex
	fs     afero.Fs
	file   afero.File
	path   string
	geom   nvbox.Geometry
	closed bool
}

// New opens or creates the image at path on the local filesystem.
func New(path string, geom nvbox.Geometry) (*Flash, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return NewWithFs(afero.NewOsFs(), absPath, geom)
}

// NewWithFs opens or creates the image at path on fs. A missing or empty
// image is created erased; an existing image must be exactly
// geom.Capacity bytes long.
// This is useful for testing with afero.MemMapFs.
func NewWithFs(fs afero.Fs, path string, geom nvbox.Geometry) (*Flash, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, err
	}
	f, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	flash := &Flash{fs: fs, file: f, path: path, geom: geom}
	switch info.Size() {
	case 0:
		if err := flash.fill(0, uint32(geom.Capacity)); err != nil {
			_ = f.Close()
			return nil, err
		}
	case int64(geom.Capacity):
	default:
		_ = f.Close()
		return nil, Error.New("image %s is %d bytes, capacity is %d", path, info.Size(), geom.Capacity)
	}
	return flash, nil
}

func (f *Flash) Capacity() int  { return f.geom.Capacity }
func (f *Flash) ReadSize() int  { return f.geom.ReadSize }
func (f *Flash) WriteSize() int { return f.geom.WriteSize }
func (f *Flash) EraseSize() int { return f.geom.EraseSize }

// Multiwrite reports true: reprogramming ANDs into the image.
func (f *Flash) Multiwrite() bool { return true }

// Path returns the image location.
func (f *Flash) Path() string { return f.path }

func (f *Flash) Read(offset uint32, buf []byte) error {
	if err := nvbox.CheckRead(f, offset, len(buf)); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nvbox.ErrClosed
	}
	return f.readAt(buf, offset)
}

func (f *Flash) Write(offset uint32, data []byte) error {
	if err := nvbox.CheckWrite(f, offset, len(data)); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nvbox.ErrClosed
	}
	cur := make([]byte, len(data))
	if err := f.readAt(cur, offset); err != nil {
		return err
	}
	for i, b := range data {
		cur[i] &= b
	}
	if _, err := f.file.WriteAt(cur, int64(offset)); err != nil {
		return nvbox.NewDeviceError("write", offset, Error.Wrap(err))
	}
	return nil
}

func (f *Flash) Erase(from, to uint32) error {
	if err := nvbox.CheckErase(f, from, to); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nvbox.ErrClosed
	}
	return f.fill(from, to)
}

// fill writes erased blocks over [from, to). Must be called with mu held
// or before the Flash is shared.
func (f *Flash) fill(from, to uint32) error {
	block := bytes.Repeat([]byte{nvbox.ErasedValue}, f.geom.EraseSize)
	for addr := from; addr < to; addr += uint32(len(block)) {
		if _, err := f.file.WriteAt(block, int64(addr)); err != nil {
			return nvbox.NewDeviceError("erase", addr, Error.Wrap(err))
		}
	}
	return nil
}

func (f *Flash) readAt(buf []byte, offset uint32) error {
	n, err := f.file.ReadAt(buf, int64(offset))
	if err != nil && !(errors.Is(err, io.EOF) && n == len(buf)) {
		return nvbox.NewDeviceError("read", offset, Error.Wrap(err))
	}
	return nil
}

// === Extension: Syncer ===

func (f *Flash) Sync() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nvbox.ErrClosed
	}
	return f.file.Sync()
}

// === Extension: Closer ===

func (f *Flash) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	syncErr := f.file.Sync()
	return errors.Join(syncErr, f.file.Close())
}

// === Extension: Describer ===

func (f *Flash) Info() nvbox.Info {
	return nvbox.Info{
		Driver:      "file",
		Geometry:    f.geom,
		ErasedValue: nvbox.ErasedValue,
		Multiwrite:  true,
		Blocks:      f.geom.Blocks(),
	}
}

// Compile-time interface checks.
var (
	_ nvbox.MultiwriteNorFlash = (*Flash)(nil)
	_ nvbox.Syncer             = (*Flash)(nil)
	_ nvbox.Closer             = (*Flash)(nil)
	_ nvbox.Describer          = (*Flash)(nil)
)
