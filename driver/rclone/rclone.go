// Package rclone provides a NOR flash simulator whose image is persisted to
// any rclone remote. The image is loaded into memory on open; Sync and
// Close upload it back.
package rclone

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	_ "github.com/rclone/rclone/backend/local"
	"github.com/rclone/rclone/fs"
	"github.com/rclone/rclone/fs/hash"
	"github.com/rclone/rclone/fs/operations"
	"github.com/zeebo/errs"

	"github.com/nuln/nvbox"
	"github.com/nuln/nvbox/driver/mem"
)

// DefaultObject is the image name used when none is configured.
const DefaultObject = "flash.img"

// Error is the class of remote faults raised by this package.
var Error = errs.Class("nvbox/rclone")

// Auto-register rclone driver.
func init() {
	nvbox.Register("rclone", func(cfg *nvbox.Config) (nvbox.ReadStorage, error) {
		remote := cfg.StringOption("remote", cfg.Path)
		if remote == "" {
			return nil, fmt.Errorf("nvbox/rclone: remote path is required (set Options[\"remote\"] or Path)")
		}
		object := cfg.StringOption("object", DefaultObject)
		return New(context.Background(), remote, object, cfg.Geometry)
	})
}

// Flash is an in-memory NOR flash mirrored to a remote object.
type Flash struct {
	*mem.Flash

	mu     sync.Mutex
	remote fs.Fs
	object string
	closed bool
}

// New opens the image object in remotePath (e.g. "s3:bucket/images" or a
// local directory). A missing object starts out erased and is created on
// the first Sync.
func New(ctx context.Context, remotePath, object string, geom nvbox.Geometry) (*Flash, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	remote, err := fs.NewFs(ctx, remotePath)
	if err != nil {
		return nil, err
	}

	image, err := download(ctx, remote, object)
	if err != nil {
		return nil, err
	}

	var flash *mem.Flash
	if image == nil {
		flash, err = mem.New(geom, mem.WithDriverName("rclone"))
	} else {
		flash, err = mem.NewFromImage(geom, image, mem.WithDriverName("rclone"))
	}
	if err != nil {
		return nil, err
	}
	return &Flash{Flash: flash, remote: remote, object: object}, nil
}

// download returns nil without error when the object does not exist.
func download(ctx context.Context, remote fs.Fs, object string) ([]byte, error) {
	obj, err := remote.NewObject(ctx, object)
	if err != nil {
		if errors.Is(err, fs.ErrorObjectNotFound) {
			return nil, nil
		}
		return nil, Error.Wrap(err)
	}
	rc, err := obj.Open(ctx)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { _ = rc.Close() }()

	image, err := io.ReadAll(rc)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return image, nil
}

// Read copies image bytes into buf.
func (f *Flash) Read(offset uint32, buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nvbox.ErrClosed
	}
	return f.Flash.Read(offset, buf)
}

// Write programs data into the in-memory image.
func (f *Flash) Write(offset uint32, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nvbox.ErrClosed
	}
	return f.Flash.Write(offset, data)
}

// Erase erases blocks of the in-memory image.
func (f *Flash) Erase(from, to uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nvbox.ErrClosed
	}
	return f.Flash.Erase(from, to)
}

// === Extension: Syncer ===

// Sync uploads the current image.
func (f *Flash) Sync() error {
	return f.SyncContext(context.Background())
}

// SyncContext uploads the current image using ctx.
func (f *Flash) SyncContext(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nvbox.ErrClosed
	}
	return f.upload(ctx)
}

func (f *Flash) upload(ctx context.Context) error {
	rc := io.NopCloser(bytes.NewReader(f.Bytes()))
	if _, err := operations.Rcat(ctx, f.remote, f.object, rc, time.Now(), nil); err != nil {
		return Error.Wrap(err)
	}
	return nil
}

// RemoteHash returns the checksum the remote reports for the last uploaded
// image. Supported algorithms are "md5", "sha1" and "sha256"; remotes that
// cannot hash return nvbox.ErrNotSupported.
func (f *Flash) RemoteHash(ctx context.Context, algorithm string) (string, error) {
	var ht hash.Type
	switch algorithm {
	case "md5":
		ht = hash.MD5
	case "sha1":
		ht = hash.SHA1
	case "sha256":
		ht = hash.SHA256
	default:
		return "", fmt.Errorf("nvbox/rclone: unsupported hash algorithm %q: %w", algorithm, nvbox.ErrNotSupported)
	}

	obj, err := f.remote.NewObject(ctx, f.object)
	if err != nil {
		return "", Error.Wrap(err)
	}
	h, err := obj.Hash(ctx, ht)
	if err != nil {
		if errors.Is(err, hash.ErrUnsupported) {
			return "", nvbox.ErrNotSupported
		}
		return "", Error.Wrap(err)
	}
	if h == "" {
		return "", nvbox.ErrNotSupported
	}
	return h, nil
}

// === Extension: Closer ===

// Close uploads the image one last time.
func (f *Flash) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	return f.upload(context.Background())
}

// Compile-time interface checks.
var (
	_ nvbox.MultiwriteNorFlash = (*Flash)(nil)
	_ nvbox.Syncer             = (*Flash)(nil)
	_ nvbox.Closer             = (*Flash)(nil)
	_ nvbox.Describer          = (*Flash)(nil)
)
