package mem

import (
	"sort"

	"github.com/lodestone-re/lodestone/internal/arch"
)

// Segments is the segment index owned by a SegmentMemory: a name-indexed,
// non-overlapping collection of Segment values. sorted is kept by start
// address for log-time ByAddress lookup (rather than the O(n) megastone's
// base implementation settles for); order is the separate, append-only
// registration order megastone's dict-backed _get_all_segments() preserves,
// which All/WithPerms (and so SearchAll) must iterate instead — a qualifying
// segment registered first must be searched first even if it sits at a
// higher address than one registered later.
type Segments struct {
	byName map[string]Segment
	sorted []Segment // sorted by Start; kept in sync with byName
	order  []Segment // registration order; kept in sync with byName
}

func newSegments() *Segments {
	return &Segments{byName: make(map[string]Segment)}
}

// add inserts seg, which the caller has already validated does not overlap
// or collide in name with any existing segment.
func (s *Segments) add(seg Segment) {
	s.byName[seg.Name] = seg
	i := sort.Search(len(s.sorted), func(i int) bool { return s.sorted[i].Start >= seg.Start })
	s.sorted = append(s.sorted, Segment{})
	copy(s.sorted[i+1:], s.sorted[i:])
	s.sorted[i] = seg
	s.order = append(s.order, seg)
}

// ByName returns the segment named name, or a *NotFoundError.
func (s *Segments) ByName(name string) (Segment, error) {
	seg, ok := s.byName[name]
	if !ok {
		return Segment{}, &NotFoundError{Kind: "segment", Name: name}
	}
	return seg, nil
}

// ByAddress returns the segment containing addr, or a *NotFoundError.
func (s *Segments) ByAddress(addr uint64) (Segment, error) {
	i := sort.Search(len(s.sorted), func(i int) bool { return s.sorted[i].End() > addr })
	if i < len(s.sorted) && s.sorted[i].Contains(addr) {
		return s.sorted[i], nil
	}
	return Segment{}, &NotFoundError{Kind: "segment containing address", Name: hex(addr)}
}

// Contains reports whether any segment contains addr.
func (s *Segments) Contains(addr uint64) bool {
	_, err := s.ByAddress(addr)
	return err == nil
}

// WithPerms returns every segment whose permissions contain required, in
// registration order.
func (s *Segments) WithPerms(required arch.AccessType) []Segment {
	var out []Segment
	for _, seg := range s.order {
		if seg.Perms.Contains(required) {
			out = append(out, seg)
		}
	}
	return out
}

// All returns every segment in registration order.
func (s *Segments) All() []Segment {
	out := make([]Segment, len(s.order))
	copy(out, s.order)
	return out
}

// Len is the number of segments.
func (s *Segments) Len() int { return len(s.order) }

// overlapsAny reports whether seg overlaps any already-indexed segment.
func (s *Segments) overlapsAny(seg Segment) bool {
	for _, existing := range s.sorted {
		if existing.Overlaps(seg) {
			return true
		}
	}
	return false
}

// hasName reports whether a segment named name is already indexed.
func (s *Segments) hasName(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// remove deletes the segment named name, if present.
func (s *Segments) remove(name string) {
	seg, ok := s.byName[name]
	if !ok {
		return
	}
	delete(s.byName, name)
	for i, existing := range s.sorted {
		if existing.Start == seg.Start && existing.Name == name {
			s.sorted = append(s.sorted[:i], s.sorted[i+1:]...)
			break
		}
	}
	for i, existing := range s.order {
		if existing.Name == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func hex(v uint64) string {
	const digits = "0123456789abcdef"
	if v == 0 {
		return "0x0"
	}
	var buf [18]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v&0xF]
		v >>= 4
	}
	i -= 2
	buf[i], buf[i+1] = '0', 'x'
	return string(buf[i:])
}
