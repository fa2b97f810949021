// Package mem implements the segmented memory model: an address space of
// named, permissioned, non-overlapping segments supporting byte/integer/
// word/c-string/file/search/disassemble operations, plus the mappable and
// splitting variants used to assemble a guest address space from pieces.
//
// The reference implementation's deep inheritance chain (Memory ->
// SegmentMemory -> DictSegmentMemory -> MappableMemory -> BufferMemory, plus
// SplittingSegmentMemory as a mixin) collapses here into embedding: each
// layer wraps the one below and overrides the RawIO it hands upward, rather
// than subclassing it.
package mem

import (
	"bytes"
	"fmt"

	"github.com/lodestone-re/lodestone/internal/arch"
)

// Accessor is the interface Debugger/Emulator code depends on rather than
// the concrete *Memory type, so that a *SegmentMemory's (or
// *MappableMemory's) segment-aware Disassemble/DisassembleN override is
// actually reached through polymorphism instead of being shadowed by
// Memory's own methods when only *Memory is visible to the caller.
type Accessor interface {
	Read(addr uint64, size uint64) ([]byte, error)
	Write(addr uint64, data []byte) error
	ReadInt(addr uint64, size int, signed bool) (int64, error)
	WriteInt(addr uint64, value int64, size int) error
	ReadWord(addr uint64, signed bool) (int64, error)
	WriteWord(addr uint64, value int64) error
	ReadByte(addr uint64) (byte, error)
	WriteByte(addr uint64, value byte) error
	ReadCStringBytes(addr uint64, max int) ([]byte, error)
	WriteCString(addr uint64, s string) error
	Search(start, size uint64, needle []byte, alignment uint64) (uint64, bool, error)
	CreateFileobj(addr uint64, size int64) *StreamMemoryIO
	Disassemble(address uint64, maxNum int, isa arch.InstructionSet) *arch.InstructionIter
	DisassembleN(address uint64, n int, isa arch.InstructionSet) ([]arch.Instruction, error)
}

// RawIO is the primitive read/write pair every richer Memory operation is
// built from. Concrete memories (SplittingMemory, a future flat
// BufferMemory) implement it; Memory itself only consumes it.
type RawIO interface {
	ReadRaw(addr uint64, size uint64) ([]byte, error)
	WriteRaw(addr uint64, data []byte) error
}

// Memory is the abstract address space: an architecture reference, a
// default ISA, and the RawIO primitive everything else derives from.
type Memory struct {
	Arch    *arch.Architecture
	ISA     arch.InstructionSet
	Verbose bool

	io RawIO
}

// NewMemory builds a Memory that delegates its primitive reads/writes to
// io. isa defaults to a.DefaultISA() if nil.
func NewMemory(a *arch.Architecture, isa arch.InstructionSet, io RawIO) *Memory {
	if isa == nil {
		isa = a.DefaultISA()
	}
	return &Memory{Arch: a, ISA: isa, io: io}
}

// Read reads size bytes starting at addr.
func (m *Memory) Read(addr uint64, size uint64) ([]byte, error) {
	return m.io.ReadRaw(addr, size)
}

// Write writes data starting at addr.
func (m *Memory) Write(addr uint64, data []byte) error {
	return m.io.WriteRaw(addr, data)
}

// ReadInt reads size bytes at addr and decodes them as an integer using the
// architecture's endianness. size must be 1, 2, 4 or 8.
func (m *Memory) ReadInt(addr uint64, size int, signed bool) (int64, error) {
	data, err := m.Read(addr, uint64(size))
	if err != nil {
		return 0, err
	}
	return m.Arch.Endian().DecodeInt(data, size, signed), nil
}

// WriteInt encodes value into size bytes and writes them at addr.
func (m *Memory) WriteInt(addr uint64, value int64, size int) error {
	return m.Write(addr, m.Arch.Endian().EncodeInt(uint64(value), size))
}

// ReadWord/WriteWord operate at the architecture's native word size.
func (m *Memory) ReadWord(addr uint64, signed bool) (int64, error) {
	return m.ReadInt(addr, m.Arch.WordSize(), signed)
}

func (m *Memory) WriteWord(addr uint64, value int64) error {
	return m.WriteInt(addr, value, m.Arch.WordSize())
}

func (m *Memory) ReadByte(addr uint64) (byte, error) {
	data, err := m.Read(addr, 1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

func (m *Memory) WriteByte(addr uint64, value byte) error {
	return m.Write(addr, []byte{value})
}

func (m *Memory) ReadU16(addr uint64) (uint16, error) {
	v, err := m.ReadInt(addr, 2, false)
	return uint16(v), err
}
func (m *Memory) WriteU16(addr uint64, v uint16) error { return m.WriteInt(addr, int64(v), 2) }

func (m *Memory) ReadU32(addr uint64) (uint32, error) {
	v, err := m.ReadInt(addr, 4, false)
	return uint32(v), err
}
func (m *Memory) WriteU32(addr uint64, v uint32) error { return m.WriteInt(addr, int64(v), 4) }

func (m *Memory) ReadU64(addr uint64) (uint64, error) {
	v, err := m.ReadInt(addr, 8, false)
	return uint64(v), err
}
func (m *Memory) WriteU64(addr uint64, v uint64) error { return m.WriteInt(addr, int64(v), 8) }

// ReadCStringBytes reads bytes starting at addr until a NUL byte or until
// max bytes have been read (NUL is excluded from the result either way).
// max defaults to MaxCString when 0.
func (m *Memory) ReadCStringBytes(addr uint64, max int) ([]byte, error) {
	if max <= 0 {
		max = MaxCString
	}
	var out []byte
	for len(out) < max {
		chunkSize := 64
		if remaining := max - len(out); remaining < chunkSize {
			chunkSize = remaining
		}
		chunk, err := m.Read(addr+uint64(len(out)), uint64(chunkSize))
		if err != nil {
			return nil, err
		}
		if i := bytes.IndexByte(chunk, 0); i >= 0 {
			return append(out, chunk[:i]...), nil
		}
		out = append(out, chunk...)
	}
	return out, nil
}

// WriteCString writes s followed by a NUL terminator at addr.
func (m *Memory) WriteCString(addr uint64, s string) error {
	return m.Write(addr, append([]byte(s), 0))
}

// At reads the single byte at addr. Slice-style `mem[addr]`.
func (m *Memory) At(addr uint64) (byte, error) { return m.ReadByte(addr) }

// Slice reads the exact-length byte range [start, stop). Slice-style
// `mem[start:stop]`; stop must be >= start.
func (m *Memory) Slice(start, stop uint64) ([]byte, error) {
	if stop < start {
		return nil, fmt.Errorf("mem: invalid slice [%d:%d]", start, stop)
	}
	return m.Read(start, stop-start)
}

// Search returns the address of the first occurrence of needle in
// [start, start+size) that is a multiple of alignment, or ok=false if not
// found. alignment defaults to 1 when 0.
func (m *Memory) Search(start, size uint64, needle []byte, alignment uint64) (uint64, bool, error) {
	if alignment == 0 {
		alignment = 1
	}
	if len(needle) == 0 || size < uint64(len(needle)) {
		return 0, false, nil
	}
	data, err := m.Read(start, size)
	if err != nil {
		return 0, false, err
	}
	for off := 0; off+len(needle) <= len(data); off++ {
		addr := start + uint64(off)
		if addr%alignment != 0 {
			continue
		}
		if bytes.Equal(data[off:off+len(needle)], needle) {
			return addr, true, nil
		}
	}
	return 0, false, nil
}

// CreateFileobj returns a streaming, io.ReadWriteSeeker-like view over
// [addr, addr+size). See StreamMemoryIO for the exact EOF/overflow
// contract; size < 0 means unbounded.
func (m *Memory) CreateFileobj(addr uint64, size int64) *StreamMemoryIO {
	return newStreamMemoryIO(m, addr, size)
}

// Disassemble decodes instructions starting at address using isa (or
// m.ISA if nil), up to maxNum instructions (0 = unbounded). This is the
// "unknown maximum read size" regime from spec.md §4.3: segmented memories
// override this with a regime that never reads past the segment end.
func (m *Memory) Disassemble(address uint64, maxNum int, isa arch.InstructionSet) *arch.InstructionIter {
	if isa == nil {
		isa = m.ISA
	}
	return m.disassembleUnbounded(address, maxNum, isa)
}

// disassembleUnbounded implements spec.md §4.3's "unknown maximum read
// size" regime: for each candidate instruction size, largest first, try a
// read of exactly that many bytes and decode one instruction from it. A
// read failure falls through to the next smaller size; a read failure at
// the smallest size, or a decode failure at any size, stops the sequence.
func (m *Memory) disassembleUnbounded(address uint64, maxNum int, isa arch.InstructionSet) *arch.InstructionIter {
	sizes := isa.InsnSizes()
	addr := address
	count := 0
	return arch.NewInstructionIter(func() (arch.Instruction, bool) {
		if maxNum > 0 && count >= maxNum {
			return arch.Instruction{}, false
		}
		for i := len(sizes) - 1; i >= 0; i-- {
			data, err := m.Read(addr, uint64(sizes[i]))
			if err != nil {
				continue
			}
			insn, derr := isa.DisassembleOne(data, addr)
			if derr != nil {
				return arch.Instruction{}, false
			}
			addr += insn.Size
			count++
			return insn, true
		}
		return arch.Instruction{}, false
	})
}

// DisassembleN is the strict variant: it requires exactly n instructions to
// decode, returning a *arch.DisassemblyError identifying the first address
// that failed to decode otherwise.
func (m *Memory) DisassembleN(address uint64, n int, isa arch.InstructionSet) ([]arch.Instruction, error) {
	iter := m.Disassemble(address, n, isa)
	out := iter.All()
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
