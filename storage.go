package nvbox

// ReadStorage is a byte-addressable, read-only storage device.
type ReadStorage interface {
	// Read copies len(buf) bytes starting at offset into buf. There is no
	// alignment constraint. It fails with [OutOfBounds] if
	// offset+len(buf) exceeds Capacity.
	Read(offset uint32, buf []byte) error

	// Capacity returns the size of the device in bytes.
	Capacity() int
}

// Storage is a byte-addressable read/write storage device.
type Storage interface {
	ReadStorage

	// Write stores data at offset. There is no alignment constraint and
	// every byte outside [offset, offset+len(data)) is left unchanged.
	// It fails with [OutOfBounds] under the same condition as Read.
	Write(offset uint32, data []byte) error

	// ByteAddressable marks the write contract above. A NorFlash has the
	// same Read and Write signatures but aligned, erase-first writes, so
	// only devices that accept arbitrary byte ranges implement it.
	ByteAddressable()
}

// ReadNorFlash is a read-only NOR flash device.
//
// Read fails with [NotAligned] (ReadSize) if offset or len(buf) is not a
// multiple of ReadSize; it never rounds silently.
type ReadNorFlash interface {
	ReadStorage

	// ReadSize is the read granularity in bytes.
	ReadSize() int
}

// NorFlash is a block-erase device.
//
// Geometry invariants: EraseSize is a positive multiple of WriteSize,
// WriteSize is a positive multiple of ReadSize and Capacity is a multiple
// of EraseSize. A driver violating them is broken; see [Geometry.Validate].
//
// A NorFlash is not a [Storage]: writes must be aligned and land on erased
// cells. Wrap it with the rmw package to obtain byte-addressable storage.
type NorFlash interface {
	ReadNorFlash

	// WriteSize is the programming granularity in bytes.
	WriteSize() int

	// EraseSize is the erase granularity in bytes.
	EraseSize() int

	// Erase sets every byte in [from, to) to the device's erased value.
	// Both bounds must be multiples of EraseSize; from > to is out of
	// bounds. If power is lost during erase the block content is undefined.
	Erase(from, to uint32) error

	// Write programs data at offset. Offset and len(data) must be
	// multiples of WriteSize. Writing is only well-defined over erased
	// cells; the effect of programming non-erased cells is device-defined.
	Write(offset uint32, data []byte) error
}

// MultiwriteNorFlash is a NorFlash that may report relaxed write rules.
//
// When Multiwrite returns true, writing the same word twice is allowed and
// the result is the bitwise AND of the previous and the new data: bits can
// only go from 1 to 0. If power is lost during such a write, bits written
// as 1 stay 1, bits that were 0 stay 0 and the rest of the page is
// unchanged.
type MultiwriteNorFlash interface {
	NorFlash
	Multiwrite() bool
}

// ErasedValue is the byte value of erased cells on the bundled NOR drivers.
// Other devices may define a different value.
const ErasedValue byte = 0xFF
