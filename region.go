package nvbox

import "iter"

// Region is a contiguous piece of memory between two addresses.
type Region interface {
	// Contains reports whether address lies inside the region.
	Contains(address uint32) bool
}

// Page is one erase unit of a device.
type Page struct {
	Start uint32
	Size  int
}

// PageAt returns the page with the given index.
func PageAt(index uint32, size int) Page {
	return Page{Start: index * uint32(size), Size: size}
}

// End returns the first address after the page.
func (p Page) End() uint32 {
	return p.Start + uint32(p.Size)
}

// Contains reports whether address lies inside the page.
func (p Page) Contains(address uint32) bool {
	return p.Start <= address && uint64(address) < uint64(p.Start)+uint64(p.Size)
}

// Overlap is the part of a byte range that falls inside one page.
// Data[Lo:Hi] of the range lands at Addr.
type Overlap struct {
	Page Page
	Addr uint32
	Lo   int
	Hi   int
}

// Within returns the offset of Addr inside the page.
func (o Overlap) Within() int {
	return int(o.Addr - o.Page.Start)
}

// Full reports whether the range covers the whole page.
func (o Overlap) Full() bool {
	return o.Hi-o.Lo == o.Page.Size
}

// Overlaps yields, in ascending address order, every page of the given size
// touched by [offset, offset+length). Empty ranges yield nothing.
func Overlaps(offset uint32, length, size int) iter.Seq[Overlap] {
	return func(yield func(Overlap) bool) {
		if length <= 0 || size <= 0 {
			return
		}
		s := uint64(size)
		start := uint64(offset)
		end := start + uint64(length)

		for b := start / s; b < (end+s-1)/s; b++ {
			page := Page{Start: uint32(b * s), Size: size}
			lo := max(start, b*s)
			hi := min(end, (b+1)*s)
			o := Overlap{
				Page: page,
				Addr: uint32(lo),
				Lo:   int(lo - start),
				Hi:   int(hi - start),
			}
			if !yield(o) {
				return
			}
		}
	}
}
