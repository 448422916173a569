// Package async carries the nvbox capability contracts for callers that
// suspend during device I/O. Every device primitive takes a context and is
// the only place an operation may block; geometry accessors never do.
//
// Contracts are identical to their blocking counterparts in package nvbox:
// same alignment rules, same error taxonomy, same ordering guarantees.
// A primitive that has been issued to the device is never aborted; the
// context is observed before issuing the next one.
package async

import (
	"context"

	"github.com/nuln/nvbox"
)

// ReadStorage is the suspending form of [nvbox.ReadStorage].
type ReadStorage interface {
	Read(ctx context.Context, offset uint32, buf []byte) error
	Capacity() int
}

// Storage is the suspending form of [nvbox.Storage].
type Storage interface {
	ReadStorage
	Write(ctx context.Context, offset uint32, data []byte) error
	ByteAddressable()
}

// ReadNorFlash is the suspending form of [nvbox.ReadNorFlash].
type ReadNorFlash interface {
	ReadStorage
	ReadSize() int
}

// NorFlash is the suspending form of [nvbox.NorFlash].
type NorFlash interface {
	ReadNorFlash
	WriteSize() int
	EraseSize() int
	Erase(ctx context.Context, from, to uint32) error
	Write(ctx context.Context, offset uint32, data []byte) error
}

// MultiwriteNorFlash is the suspending form of [nvbox.MultiwriteNorFlash].
type MultiwriteNorFlash interface {
	NorFlash
	Multiwrite() bool
}

// FromBlocking exposes a blocking flash through the suspending contract.
// Each primitive checks ctx before it is issued and then runs to
// completion.
func FromBlocking(flash nvbox.NorFlash) MultiwriteNorFlash {
	return &fromBlocking{flash: flash}
}

type fromBlocking struct {
	flash nvbox.NorFlash
}

func (f *fromBlocking) Capacity() int  { return f.flash.Capacity() }
func (f *fromBlocking) ReadSize() int  { return f.flash.ReadSize() }
func (f *fromBlocking) WriteSize() int { return f.flash.WriteSize() }
func (f *fromBlocking) EraseSize() int { return f.flash.EraseSize() }

func (f *fromBlocking) Multiwrite() bool {
	mw, ok := f.flash.(nvbox.MultiwriteNorFlash)
	return ok && mw.Multiwrite()
}

func (f *fromBlocking) Read(ctx context.Context, offset uint32, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.flash.Read(offset, buf)
}

func (f *fromBlocking) Write(ctx context.Context, offset uint32, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.flash.Write(offset, data)
}

func (f *fromBlocking) Erase(ctx context.Context, from, to uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.flash.Erase(from, to)
}

// ToBlocking exposes a suspending flash through the blocking contract,
// running every primitive with ctx.
func ToBlocking(ctx context.Context, flash NorFlash) nvbox.MultiwriteNorFlash {
	return &toBlocking{ctx: ctx, flash: flash}
}

type toBlocking struct {
	ctx   context.Context
	flash NorFlash
}

func (t *toBlocking) Capacity() int  { return t.flash.Capacity() }
func (t *toBlocking) ReadSize() int  { return t.flash.ReadSize() }
func (t *toBlocking) WriteSize() int { return t.flash.WriteSize() }
func (t *toBlocking) EraseSize() int { return t.flash.EraseSize() }

func (t *toBlocking) Multiwrite() bool {
	mw, ok := t.flash.(MultiwriteNorFlash)
	return ok && mw.Multiwrite()
}

func (t *toBlocking) Read(offset uint32, buf []byte) error {
	return t.flash.Read(t.ctx, offset, buf)
}

func (t *toBlocking) Write(offset uint32, data []byte) error {
	return t.flash.Write(t.ctx, offset, data)
}

func (t *toBlocking) Erase(from, to uint32) error {
	return t.flash.Erase(t.ctx, from, to)
}

// Compile-time interface checks.
var (
	_ MultiwriteNorFlash       = (*fromBlocking)(nil)
	_ nvbox.MultiwriteNorFlash = (*toBlocking)(nil)
)
