package mem

import "github.com/lodestone-re/lodestone/internal/arch"

// Segment is an immutable, named, permissioned address range. Segments never
// resize once mapped; a Segment value carries no back-reference to its
// owning memory (per spec.md §9's cyclic-reference note) — callers look
// segments up through the Memory that owns them.
type Segment struct {
	Name  string
	Start uint64
	Size  uint64
	Perms arch.AccessType
}

// End is the first address past this segment.
func (s Segment) End() uint64 { return s.Start + s.Size }

// Contains reports whether addr falls within this segment.
func (s Segment) Contains(addr uint64) bool {
	return addr >= s.Start && addr < s.End()
}

// ContainsRange reports whether [addr, addr+size) lies entirely within this
// segment.
func (s Segment) ContainsRange(addr, size uint64) bool {
	if size == 0 {
		return s.Contains(addr) || addr == s.End()
	}
	return addr >= s.Start && addr+size <= s.End()
}

// Overlaps reports whether s and other share any address.
func (s Segment) Overlaps(other Segment) bool {
	return s.Start < other.End() && other.Start < s.End()
}

// Adjacent reports whether other begins exactly where s ends (or vice
// versa), i.e. the two ranges are contiguous with no gap and no overlap.
func (s Segment) Adjacent(other Segment) bool {
	return s.End() == other.Start || other.End() == s.Start
}
