package mem

import (
	"fmt"
	"io"
	"os"

	"github.com/lodestone-re/lodestone/internal/arch"
)

// bufferBacking is the in-process SegmentBacking a plain MappableMemory
// owns: one zero-initialized byte slice per segment, keyed by segment name
// (names are unique by construction).
type bufferBacking struct {
	buffers map[string][]byte
}

func newBufferBacking() *bufferBacking {
	return &bufferBacking{buffers: make(map[string][]byte)}
}

// Reserve satisfies SegmentBacking: it allocates the zero-initialized
// buffer a new segment will read/write through.
func (b *bufferBacking) Reserve(seg Segment) error {
	b.buffers[seg.Name] = make([]byte, seg.Size)
	return nil
}

func (b *bufferBacking) ReadSegment(seg Segment, offset, length uint64) ([]byte, error) {
	buf := b.buffers[seg.Name]
	if offset+length > uint64(len(buf)) {
		return nil, &AccessError{
			Access: arch.Access{Type: arch.Read, Address: seg.Start + offset, Size: length},
			Cause:  OutOfRange,
		}
	}
	out := make([]byte, length)
	copy(out, buf[offset:offset+length])
	return out, nil
}

func (b *bufferBacking) WriteSegment(seg Segment, offset uint64, data []byte) error {
	buf := b.buffers[seg.Name]
	if offset+uint64(len(data)) > uint64(len(buf)) {
		return &AccessError{
			Access: arch.Access{Type: arch.Write, Address: seg.Start + offset, Size: uint64(len(data)), Value: data},
			Cause:  OutOfRange,
		}
	}
	copy(buf[offset:], data)
	return nil
}

// PageAligner is implemented by a SegmentBacking whose storage has
// alignment requirements Map must honor before a segment is created — the
// emulator-backed memory of spec.md §4.4 ("Emulator-backed mappable memory
// additionally requires page alignment of start... and rounds size up to
// a page multiple, logging a warning"). A plain in-process MappableMemory
// has no such requirement, so bufferBacking does not implement this.
type PageAligner interface {
	AlignMapping(start, size uint64) (alignedStart, alignedSize uint64, err error)
}

// MappableMemory is a SplittingMemory that owns its own segment storage and
// can create new segments: zero-initialized (Map), pre-populated (Load),
// loaded from a file or cloned from another segmented memory, or
// auto-placed (Allocate). The storage itself is pluggable: a plain
// MappableMemory keeps in-process buffers, while internal/emulator's
// engine-backed memory reuses this same Map/Load/Allocate logic over
// Unicorn's mapped pages by supplying its own SegmentBacking (optionally
// also a PageAligner).
type MappableMemory struct {
	*SplittingMemory
	backing SegmentBacking
}

// NewMappableMemory builds an empty MappableMemory with in-process,
// zero-initialized segment storage.
func NewMappableMemory(a *arch.Architecture, isa arch.InstructionSet) *MappableMemory {
	return NewMappableMemoryWithBacking(a, isa, newBufferBacking())
}

// NewMappableMemoryWithBacking builds a MappableMemory whose segment bytes
// are stored by backing rather than by an in-process buffer — how
// internal/emulator's Unicorn-backed memory reuses this package's
// segment-walking, overlap-checking and disassembly-boundary logic while
// delegating actual storage to the CPU engine's mapped pages.
func NewMappableMemoryWithBacking(a *arch.Architecture, isa arch.InstructionSet, backing SegmentBacking) *MappableMemory {
	return &MappableMemory{
		SplittingMemory: newSplittingMemory(a, isa, backing),
		backing:         backing,
	}
}

// Map creates a new zero-initialized segment [start, start+size) with the
// given name and permissions. Fails with a *DuplicateError on a name or
// address-range collision. If the backing is a PageAligner, start/size are
// validated/rounded first.
func (m *MappableMemory) Map(name string, start, size uint64, perms arch.AccessType) (Segment, error) {
	if aligner, ok := m.backing.(PageAligner); ok {
		var err error
		start, size, err = aligner.AlignMapping(start, size)
		if err != nil {
			return Segment{}, err
		}
	}
	if m.Segments.hasName(name) {
		return Segment{}, &DuplicateError{Kind: "segment", Name: name}
	}
	seg := Segment{Name: name, Start: start, Size: size, Perms: perms}
	if m.Segments.overlapsAny(seg) {
		return Segment{}, &DuplicateError{Kind: "segment range", Name: fmt.Sprintf("0x%x-0x%x", start, seg.End())}
	}
	if err := m.backing.Reserve(seg); err != nil {
		return Segment{}, err
	}
	m.Segments.add(seg)
	return seg, nil
}

// Load maps a new segment of len(data) bytes and writes data into it. The
// data goes straight to the segment's backing store, so the segment's own
// permissions (e.g. a read-only code segment) do not block the load. On a
// write failure the segment is removed from the segment index again so no
// half-loaded segment is left visible; storage the backing already
// reserved for it is not released.
func (m *MappableMemory) Load(name string, addr uint64, data []byte, perms arch.AccessType) (Segment, error) {
	seg, err := m.Map(name, addr, uint64(len(data)), perms)
	if err != nil {
		return Segment{}, err
	}
	if err := m.backing.WriteSegment(seg, 0, data); err != nil {
		m.Segments.remove(name)
		return Segment{}, err
	}
	return seg, nil
}

// LoadFile reads path fully and Loads it as a new segment at addr. The
// original reads the whole file up front rather than streaming it, since
// the segment size must be known before map(); this keeps the same
// trade-off.
func (m *MappableMemory) LoadFile(name string, addr uint64, path string, perms arch.AccessType) (Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Segment{}, fmt.Errorf("mem: load file %s: %w", path, err)
	}
	return m.Load(name, addr, data, perms)
}

// LoadMemory copies every segment of src into m, preserving name, start,
// size, permissions and content.
func (m *MappableMemory) LoadMemory(src *SegmentMemory) error {
	for _, seg := range src.Segments.All() {
		data, err := src.Read(seg.Start, seg.Size)
		if err != nil {
			return err
		}
		if _, err := m.Load(seg.Name, seg.Start, data, seg.Perms); err != nil {
			return err
		}
	}
	return nil
}

// Allocate maps a new zero-initialized segment of size bytes at an
// automatically chosen address: max(MinAllocAddress, end of the
// highest-addressed existing segment), rounded up to AllocRoundSize. It
// never attempts to reuse a hole between existing segments.
func (m *MappableMemory) Allocate(name string, size uint64, perms arch.AccessType) (Segment, error) {
	addr := uint64(MinAllocAddress)
	for _, seg := range m.Segments.All() {
		if seg.End() > addr {
			addr = seg.End()
		}
	}
	addr = roundUp(addr, AllocRoundSize)
	return m.Map(name, addr, size, perms)
}

// WriteFile copies size bytes starting at addr to an *os.File opened at
// path, truncating any existing content.
func (m *MappableMemory) WriteFile(addr uint64, size uint64, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("mem: create %s: %w", path, err)
	}
	defer f.Close()
	return m.DumpToFileobj(addr, size, f)
}

// DumpToFileobj streams size bytes starting at addr into w via the
// StreamMemoryIO view, using io.Copy's own buffering.
func (m *MappableMemory) DumpToFileobj(addr uint64, size uint64, w io.Writer) error {
	fobj := m.CreateFileobj(addr, int64(size))
	_, err := io.Copy(w, fobj)
	return err
}
