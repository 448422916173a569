// Package nvtest provides reusable conformance suites for nvbox devices.
package nvtest

import (
	"bytes"
	"errors"
	"testing"

	"github.com/nuln/nvbox"
)

// NorFlashTestSuite runs the NOR flash contract against a device. Call this
// in your driver tests to verify correctness:
//
//	func TestMyFlash(t *testing.T) {
//	    flash := setupFlash(t)
//	    nvtest.NorFlashTestSuite(t, flash)
//	}
//
// The suite erases and programs the device; use a small, dedicated one.
func NorFlashTestSuite(t *testing.T, flash nvbox.NorFlash) { //nolint:gocyclo
	t.Helper()

	rs, ws, es := flash.ReadSize(), flash.WriteSize(), flash.EraseSize()
	capacity := flash.Capacity()

	t.Run("Geometry", func(t *testing.T) {
		if err := nvbox.GeometryOf(flash).Validate(); err != nil {
			t.Fatalf("Validate: %v", err)
		}
	})

	t.Run("Erase_Idempotent", func(t *testing.T) {
		if err := flash.Erase(0, uint32(es)); err != nil {
			t.Fatalf("Erase: %v", err)
		}
		first := make([]byte, es)
		if err := flash.Read(0, first); err != nil {
			t.Fatalf("Read: %v", err)
		}
		erased := first[0]
		for i, b := range first {
			if b != erased {
				t.Fatalf("byte %d = %#x after erase, want %#x", i, b, erased)
			}
		}

		if err := flash.Erase(0, uint32(es)); err != nil {
			t.Fatalf("second Erase: %v", err)
		}
		second := make([]byte, es)
		if err := flash.Read(0, second); err != nil {
			t.Fatalf("Read: %v", err)
		}
		if !bytes.Equal(first, second) {
			t.Error("erasing an erased block changed its content")
		}
	})

	t.Run("Write_Read_RoundTrip", func(t *testing.T) {
		if err := flash.Erase(0, uint32(es)); err != nil {
			t.Fatalf("Erase: %v", err)
		}
		offset := uint32(0)
		if 2*ws <= es {
			offset = uint32(ws)
		}
		data := pattern(ws, 0x11)
		if err := flash.Write(offset, data); err != nil {
			t.Fatalf("Write: %v", err)
		}
		got := make([]byte, ws)
		if err := flash.Read(offset, got); err != nil {
			t.Fatalf("Read: %v", err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("read back %x, want %x", got, data)
		}
	})

	t.Run("Alignment", func(t *testing.T) {
		before := Snapshot(t, flash)

		if ws > 1 {
			err := flash.Write(1, make([]byte, ws))
			expectKind(t, "Write unaligned offset", err, nvbox.NotAligned(ws))
			err = flash.Write(0, make([]byte, ws-1))
			expectKind(t, "Write unaligned length", err, nvbox.NotAligned(ws))
		}
		if es > 1 {
			err := flash.Erase(0, 1)
			expectKind(t, "Erase unaligned", err, nvbox.NotAligned(es))
		}
		if rs > 1 {
			err := flash.Read(1, make([]byte, rs))
			expectKind(t, "Read unaligned", err, nvbox.NotAligned(rs))
		}

		if after := Snapshot(t, flash); !bytes.Equal(before, after) {
			t.Error("rejected operations changed device content")
		}
	})

	t.Run("Bounds", func(t *testing.T) {
		before := Snapshot(t, flash)

		err := flash.Read(uint32(capacity-rs), make([]byte, 2*rs))
		expectKind(t, "Read past end", err, nvbox.OutOfBounds)
		err = flash.Write(uint32(capacity-ws), make([]byte, 2*ws))
		expectKind(t, "Write past end", err, nvbox.OutOfBounds)
		err = flash.Erase(uint32(es), 0)
		expectKind(t, "Erase reversed", err, nvbox.OutOfBounds)
		if uint64(capacity)+uint64(es) <= 1<<32-1 {
			err = flash.Erase(0, uint32(capacity+es))
			expectKind(t, "Erase past end", err, nvbox.OutOfBounds)
		}

		if after := Snapshot(t, flash); !bytes.Equal(before, after) {
			t.Error("rejected operations changed device content")
		}
	})

	t.Run("ZeroLength", func(t *testing.T) {
		before := Snapshot(t, flash)
		if err := flash.Read(0, nil); err != nil {
			t.Errorf("zero-length Read: %v", err)
		}
		if err := flash.Write(0, nil); err != nil {
			t.Errorf("zero-length Write: %v", err)
		}
		if after := Snapshot(t, flash); !bytes.Equal(before, after) {
			t.Error("zero-length operations changed device content")
		}
	})

	t.Run("Erase_Device", func(t *testing.T) {
		if err := flash.Erase(0, uint32(capacity)); err != nil {
			t.Fatalf("Erase: %v", err)
		}
		head := make([]byte, rs)
		if err := flash.Read(0, head); err != nil {
			t.Fatalf("Read: %v", err)
		}
		ok, err := nvbox.IsErased(flash, 0, uint32(capacity), head[0])
		if err != nil {
			t.Fatalf("IsErased: %v", err)
		}
		if !ok {
			t.Error("device not blank after full erase")
		}
	})
}

// StorageTestSuite runs the byte-addressable storage contract against s.
// The suite overwrites the whole device.
func StorageTestSuite(t *testing.T, s nvbox.Storage) {
	t.Helper()

	capacity := s.Capacity()

	t.Run("RoundTrip_Unaligned", func(t *testing.T) {
		cases := []struct {
			offset, length int
		}{
			{0, 1},
			{1, 3},
			{3, 17},
			{capacity/2 - 5, 11},
			{capacity - 7, 7},
		}
		for i, c := range cases {
			if c.offset < 0 || c.offset+c.length > capacity {
				continue
			}
			data := pattern(c.length, byte(i*31+7))
			if err := s.Write(uint32(c.offset), data); err != nil {
				t.Fatalf("Write(%d, %d bytes): %v", c.offset, c.length, err)
			}
			got := make([]byte, c.length)
			if err := s.Read(uint32(c.offset), got); err != nil {
				t.Fatalf("Read(%d, %d bytes): %v", c.offset, c.length, err)
			}
			if !bytes.Equal(got, data) {
				t.Errorf("Read(%d) = %x, want %x", c.offset, got, data)
			}
		}
	})

	t.Run("NonInterference", func(t *testing.T) {
		base := pattern(capacity, 0x5A)
		if err := s.Write(0, base); err != nil {
			t.Fatalf("Write base: %v", err)
		}

		offset, length := capacity/3+1, capacity/3
		if length == 0 {
			length = 1
		}
		data := bytes.Repeat([]byte{0x00}, length)
		if err := s.Write(uint32(offset), data); err != nil {
			t.Fatalf("Write: %v", err)
		}

		want := append([]byte(nil), base...)
		copy(want[offset:], data)
		got := make([]byte, capacity)
		if err := s.Read(0, got); err != nil {
			t.Fatalf("Read: %v", err)
		}
		for i := range got {
			if got[i] != want[i] {
				t.Fatalf("byte %d = %#x, want %#x", i, got[i], want[i])
			}
		}
	})

	t.Run("Bounds", func(t *testing.T) {
		before := make([]byte, capacity)
		if err := s.Read(0, before); err != nil {
			t.Fatalf("Read: %v", err)
		}

		err := s.Write(uint32(capacity-3), []byte{1, 2, 3, 4})
		expectKind(t, "Write past end", err, nvbox.OutOfBounds)
		err = s.Read(uint32(capacity-3), make([]byte, 4))
		expectKind(t, "Read past end", err, nvbox.OutOfBounds)

		after := make([]byte, capacity)
		if err := s.Read(0, after); err != nil {
			t.Fatalf("Read: %v", err)
		}
		if !bytes.Equal(before, after) {
			t.Error("rejected write changed device content")
		}
	})

	t.Run("ZeroLength", func(t *testing.T) {
		if err := s.Write(0, nil); err != nil {
			t.Errorf("zero-length Write: %v", err)
		}
		if err := s.Read(uint32(capacity), nil); err != nil {
			t.Errorf("zero-length Read at end: %v", err)
		}
	})

	t.Run("LastByte", func(t *testing.T) {
		if err := s.Write(uint32(capacity-1), []byte{0x42}); err != nil {
			t.Fatalf("Write: %v", err)
		}
		got := make([]byte, 1)
		if err := s.Read(uint32(capacity-1), got); err != nil {
			t.Fatalf("Read: %v", err)
		}
		if got[0] != 0x42 {
			t.Errorf("last byte = %#x, want 0x42", got[0])
		}
	})
}

// Snapshot reads the whole content of dev.
func Snapshot(t testing.TB, dev nvbox.ReadStorage) []byte {
	t.Helper()
	buf := make([]byte, dev.Capacity())
	if err := dev.Read(0, buf); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	return buf
}

func expectKind(t *testing.T, what string, err error, want nvbox.ErrorKind) {
	t.Helper()
	if err == nil {
		t.Errorf("%s: expected %v, got nil", what, want)
		return
	}
	if !errors.Is(err, want) {
		t.Errorf("%s: got %v, want %v", what, err, want)
	}
	if got := nvbox.KindOf(err); got != want {
		t.Errorf("%s: KindOf = %+v, want %+v", what, got, want)
	}
}

// pattern returns n bytes that differ from their neighbours and from 0xFF.
func pattern(n int, seed byte) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = seed + byte(i*7)
		if p[i] == 0xFF {
			p[i] = 0x7F
		}
	}
	return p
}
