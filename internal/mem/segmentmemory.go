package mem

import (
	"github.com/lodestone-re/lodestone/internal/arch"
)

// SegmentMemory is a Memory plus a segment index. Segment lookup is
// delegated to Segments (ByName/ByAddress/WithPerms/All/Len); richer
// operations (SearchAll, SearchCode, the segment-aware disassembly regime)
// live here.
type SegmentMemory struct {
	*Memory
	Segments *Segments
}

// newSegmentMemory builds the SegmentMemory layer on top of io, which the
// caller (SplittingMemory, or any other future RawIO implementation) must
// supply.
func newSegmentMemory(a *arch.Architecture, isa arch.InstructionSet, io RawIO) *SegmentMemory {
	return &SegmentMemory{
		Memory:   NewMemory(a, isa, io),
		Segments: newSegments(),
	}
}

// SearchAll searches every segment whose permissions contain perms, in
// registration order, for the first occurrence of needle aligned to
// alignment. Returns ok=false if needle appears nowhere.
func (sm *SegmentMemory) SearchAll(needle []byte, alignment uint64, perms arch.AccessType) (uint64, bool, error) {
	for _, seg := range sm.Segments.WithPerms(perms) {
		addr, ok, err := sm.Memory.Search(seg.Start, seg.Size, needle, alignment)
		if err != nil {
			return 0, false, err
		}
		if ok {
			return addr, true, nil
		}
	}
	return 0, false, nil
}

// SearchCode assembles assembly once with isa (or the memory's default ISA)
// and searches every executable segment for the resulting bytes, aligned to
// the ISA's instruction alignment.
func (sm *SegmentMemory) SearchCode(assembly string, isa arch.InstructionSet) (uint64, bool, error) {
	if isa == nil {
		isa = sm.ISA
	}
	code, err := isa.Assemble(assembly, 0)
	if err != nil {
		return 0, false, err
	}
	return sm.SearchAll(code, uint64(isa.InsnAlignment()), arch.Execute)
}

// Disassemble overrides Memory.Disassemble with spec.md §4.3's "known
// maximum read size" regime when address falls inside a segment: chunked
// reads clipped to the segment end and to maxNum instructions, stopping
// early if a chunk decodes fewer bytes than it supplied (an invalid
// instruction) while at least MaxInsnSize bytes of the segment remained.
// Addresses outside any segment fall back to the unbounded regime.
func (sm *SegmentMemory) Disassemble(address uint64, maxNum int, isa arch.InstructionSet) *arch.InstructionIter {
	if isa == nil {
		isa = sm.ISA
	}
	seg, err := sm.Segments.ByAddress(address)
	if err != nil {
		return sm.Memory.Disassemble(address, maxNum, isa)
	}

	segEnd := seg.End()
	maxInsnSize := uint64(isa.MaxInsnSize())
	addr := address
	count := 0
	var pending []arch.Instruction
	exhausted := false

	fillChunk := func() {
		if exhausted || addr >= segEnd {
			exhausted = true
			return
		}
		remaining := segEnd - addr
		chunkLen := uint64(DisassemblyChunkSize)
		if chunkLen > remaining {
			chunkLen = remaining
		}
		if maxNum > 0 {
			budget := uint64(maxNum-count) * maxInsnSize
			if chunkLen > budget {
				chunkLen = budget
			}
		}
		if chunkLen == 0 {
			exhausted = true
			return
		}
		data, err := sm.Memory.Read(addr, chunkLen)
		if err != nil {
			exhausted = true
			return
		}
		decoded := isa.Disassemble(data, addr, 0).All()
		var consumed uint64
		for _, insn := range decoded {
			pending = append(pending, insn)
			consumed += insn.Size
		}
		addr += consumed
		// If the chunk decoded less than it was given, and there was
		// at least a full instruction's worth of unread data in the
		// segment, the remainder starts with an invalid encoding.
		if consumed < chunkLen && segEnd-addr >= maxInsnSize {
			exhausted = true
		}
		if consumed == 0 {
			exhausted = true
		}
	}

	return arch.NewInstructionIter(func() (arch.Instruction, bool) {
		if maxNum > 0 && count >= maxNum {
			return arch.Instruction{}, false
		}
		for len(pending) == 0 && !exhausted {
			fillChunk()
		}
		if len(pending) == 0 {
			return arch.Instruction{}, false
		}
		insn := pending[0]
		pending = pending[1:]
		count++
		return insn, true
	})
}

// DisassembleN overrides Memory.DisassembleN to dispatch through
// SegmentMemory's segment-aware Disassemble rather than the unbounded
// regime Memory.DisassembleN would otherwise call.
func (sm *SegmentMemory) DisassembleN(address uint64, n int, isa arch.InstructionSet) ([]arch.Instruction, error) {
	out := sm.Disassemble(address, n, isa).All()
	if len(out) < n {
		failAddr := address
		if len(out) > 0 {
			last := out[len(out)-1]
			failAddr = last.Address + last.Size
		}
		return nil, &arch.DisassemblyError{Address: failAddr}
	}
	return out, nil
}
