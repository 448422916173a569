package async

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ExclusiveFlash is a flash handle that serialises the primitives issued
// through it. Waiting for the device honours ctx; once acquired, the
// primitive runs to completion.
//
// Only single primitives are serialised. A read-modify-write is several
// primitives, so two adapters built directly on the handle may interleave
// on the same erase block and lose a write. Use [ExclusiveFlash.Storage]
// to share byte-addressable access between tasks.
type ExclusiveFlash struct {
	flash NorFlash
	sem   *semaphore.Weighted
}

// Exclusive wraps flash in an [ExclusiveFlash].
func Exclusive(flash NorFlash) *ExclusiveFlash {
	return &ExclusiveFlash{flash: flash, sem: semaphore.NewWeighted(1)}
}

func (e *ExclusiveFlash) Capacity() int  { return e.flash.Capacity() }
func (e *ExclusiveFlash) ReadSize() int  { return e.flash.ReadSize() }
func (e *ExclusiveFlash) WriteSize() int { return e.flash.WriteSize() }
func (e *ExclusiveFlash) EraseSize() int { return e.flash.EraseSize() }

func (e *ExclusiveFlash) Multiwrite() bool {
	mw, ok := e.flash.(MultiwriteNorFlash)
	return ok && mw.Multiwrite()
}

func (e *ExclusiveFlash) Read(ctx context.Context, offset uint32, buf []byte) error {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer e.sem.Release(1)
	return e.flash.Read(ctx, offset, buf)
}

func (e *ExclusiveFlash) Write(ctx context.Context, offset uint32, data []byte) error {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer e.sem.Release(1)
	return e.flash.Write(ctx, offset, data)
}

func (e *ExclusiveFlash) Erase(ctx context.Context, from, to uint32) error {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer e.sem.Release(1)
	return e.flash.Erase(ctx, from, to)
}

// Storage returns a read-modify-write adapter with its own scratch buffer
// that holds the device for the whole of each Read and Write. Adapters
// from the same handle, and primitives issued through the handle itself,
// never interleave with such a call.
func (e *ExclusiveFlash) Storage(opts ...RMWOption) Storage {
	return &exclusiveStorage{sem: e.sem, rmw: NewOwnedRMW(e.flash, opts...)}
}

type exclusiveStorage struct {
	sem *semaphore.Weighted
	rmw *RMW
}

func (s *exclusiveStorage) Capacity() int    { return s.rmw.Capacity() }
func (s *exclusiveStorage) ByteAddressable() {}

func (s *exclusiveStorage) Read(ctx context.Context, offset uint32, buf []byte) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.sem.Release(1)
	return s.rmw.Read(ctx, offset, buf)
}

func (s *exclusiveStorage) Write(ctx context.Context, offset uint32, data []byte) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.sem.Release(1)
	return s.rmw.Write(ctx, offset, data)
}

// ReadMany reads the same range from several independent devices
// concurrently, e.g. mirrored chips. Each device is read exactly once; the
// first error cancels the remaining reads that have not been issued yet.
func ReadMany(ctx context.Context, devs []ReadStorage, offset uint32, length int) ([][]byte, error) {
	out := make([][]byte, len(devs))
	g, ctx := errgroup.WithContext(ctx)
	for i, dev := range devs {
		g.Go(func() error {
			buf := make([]byte, length)
			if err := dev.Read(ctx, offset, buf); err != nil {
				return err
			}
			out[i] = buf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Compile-time interface checks.
var (
	_ MultiwriteNorFlash = (*ExclusiveFlash)(nil)
	_ Storage            = (*exclusiveStorage)(nil)
)
