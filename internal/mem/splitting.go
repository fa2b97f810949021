package mem

import (
	"github.com/lodestone-re/lodestone/internal/arch"
)

// SegmentBacking stores the actual bytes behind a Segment. SplittingMemory
// delegates to one rather than owning storage itself, so that a plain
// SplittingMemory (used as a pure address-space-composition mixin) and a
// MappableMemory (which owns zero-initialized buffers per segment) can
// share the same walking logic.
type SegmentBacking interface {
	ReadSegment(seg Segment, offset, length uint64) ([]byte, error)
	WriteSegment(seg Segment, offset uint64, data []byte) error
	// Reserve is called by MappableMemory.Map once the final (start, size)
	// of a new segment is known, before it is indexed, to allocate the
	// storage the segment will read/write through.
	Reserve(seg Segment) error
}

// noBacking is the backing of a bare SplittingMemory: every segment access
// fails, since a SplittingMemory with no mappable storage has nowhere to
// keep bytes. MappableMemory supplies a real SegmentBacking instead.
type noBacking struct{}

func (noBacking) ReadSegment(seg Segment, offset, length uint64) ([]byte, error) {
	return nil, &AccessError{
		Access: arch.Access{Type: arch.Read, Address: seg.Start + offset, Size: length},
		Cause:  Unmapped,
	}
}

func (noBacking) WriteSegment(seg Segment, offset uint64, data []byte) error {
	return &AccessError{
		Access: arch.Access{Type: arch.Write, Address: seg.Start + offset, Size: uint64(len(data)), Value: data},
		Cause:  Unmapped,
	}
}

func (noBacking) Reserve(seg Segment) error {
	return &AccessError{
		Access: arch.Access{Type: arch.None, Address: seg.Start, Size: seg.Size},
		Cause:  Unmapped,
	}
}

// SplittingMemory implements RawIO by walking the segments adjacent to the
// requested range: starting from the segment containing the first address,
// it advances in segment-bounded chunks until the request is satisfied. Any
// gap encountered along the way — an address no segment covers — fails the
// whole operation with an *AccessError{Cause: Unmapped}.
type SplittingMemory struct {
	*SegmentMemory
	backing SegmentBacking
}

// NewSplittingMemory builds a SplittingMemory, whose segments start empty
// and whose backing always reports unmapped (no storage of its own).
func NewSplittingMemory(a *arch.Architecture, isa arch.InstructionSet) *SplittingMemory {
	return newSplittingMemory(a, isa, noBacking{})
}

func newSplittingMemory(a *arch.Architecture, isa arch.InstructionSet, backing SegmentBacking) *SplittingMemory {
	s := &SplittingMemory{backing: backing}
	s.SegmentMemory = newSegmentMemory(a, isa, s)
	return s
}

// NewSplittingMemoryWithBacking builds a SplittingMemory whose segment
// bytes are stored by backing rather than by SplittingMemory itself.
// internal/emulator does not call it: its engine-backed memory goes through
// NewMappableMemoryWithBacking, which builds on the same constructor.
func NewSplittingMemoryWithBacking(a *arch.Architecture, isa arch.InstructionSet, backing SegmentBacking) *SplittingMemory {
	return newSplittingMemory(a, isa, backing)
}

type rangePiece struct {
	seg    Segment
	offset uint64 // offset into data/result for this piece
	length uint64
}

// planWalk breaks [addr, addr+size) into the ordered sequence of
// (segment, sub-range) pieces that together cover it, or returns an
// *AccessError the moment it finds a gap. It never touches memory — callers
// use the plan to read or write only after the whole walk succeeds, which
// is what gives WriteRaw its atomicity (spec.md §9, §4.4).
func (s *SplittingMemory) planWalk(addr, size uint64, accessType arch.AccessType) ([]rangePiece, error) {
	if size == 0 {
		return nil, nil
	}
	var pieces []rangePiece
	cursor := addr
	end := addr + size
	var consumed uint64
	for cursor < end {
		seg, err := s.Segments.ByAddress(cursor)
		if err != nil {
			return nil, &AccessError{
				Access: arch.Access{Type: accessType, Address: cursor, Size: end - cursor},
				Cause:  Unmapped,
			}
		}
		if !seg.Perms.Contains(accessType) {
			return nil, &AccessError{
				Access: arch.Access{Type: accessType, Address: cursor, Size: end - cursor},
				Cause:  Protected,
			}
		}
		pieceEnd := seg.End()
		if pieceEnd > end {
			pieceEnd = end
		}
		length := pieceEnd - cursor
		pieces = append(pieces, rangePiece{seg: seg, offset: consumed, length: length})
		consumed += length
		cursor = pieceEnd
	}
	return pieces, nil
}

// ReadRaw satisfies RawIO by planning the walk, then reading each piece
// from its segment's backing store.
func (s *SplittingMemory) ReadRaw(addr uint64, size uint64) ([]byte, error) {
	pieces, err := s.planWalk(addr, size, arch.Read)
	if err != nil {
		return nil, err
	}
	out := make([]byte, size)
	for _, p := range pieces {
		segOffset := (addr + p.offset) - p.seg.Start
		data, err := s.backing.ReadSegment(p.seg, segOffset, p.length)
		if err != nil {
			return nil, err
		}
		copy(out[p.offset:p.offset+p.length], data)
	}
	return out, nil
}

// WriteRaw satisfies RawIO. It plans the entire walk before writing a
// single byte: a gap anywhere in the range fails before any segment is
// mutated (spec.md §9's resolved Open Question).
func (s *SplittingMemory) WriteRaw(addr uint64, data []byte) error {
	pieces, err := s.planWalk(addr, uint64(len(data)), arch.Write)
	if err != nil {
		return err
	}
	for _, p := range pieces {
		segOffset := (addr + p.offset) - p.seg.Start
		if err := s.backing.WriteSegment(p.seg, segOffset, data[p.offset:p.offset+p.length]); err != nil {
			return err
		}
	}
	return nil
}

