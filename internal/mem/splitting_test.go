package mem

import (
	"bytes"
	"testing"

	"github.com/lodestone-re/lodestone/internal/arch"
)

func TestSplittingMemoryCrossSegmentReadWrite(t *testing.T) {
	a := testArch(t)
	m := NewMappableMemory(a, nil)
	if _, err := m.Map("a", 0x1000, 0x10, arch.RW); err != nil {
		t.Fatalf("Map a: %v", err)
	}
	if _, err := m.Map("b", 0x1010, 0x10, arch.RW); err != nil {
		t.Fatalf("Map b: %v", err)
	}

	data := bytes.Repeat([]byte{0xAB}, 0x14) // spans both segments
	if err := m.Write(0x1008, data); err != nil {
		t.Fatalf("Write across segments: %v", err)
	}
	got, err := m.Read(0x1008, uint64(len(data)))
	if err != nil {
		t.Fatalf("Read across segments: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("cross-segment round trip mismatch: got %x, want %x", got, data)
	}
}

func TestSplittingMemoryWriteAtomicOnGap(t *testing.T) {
	a := testArch(t)
	m := NewMappableMemory(a, nil)
	if _, err := m.Map("a", 0x1000, 0x10, arch.RW); err != nil {
		t.Fatalf("Map a: %v", err)
	}
	// Deliberately leave a gap before "b" so a write spanning both fails.
	if _, err := m.Map("b", 0x1020, 0x10, arch.RW); err != nil {
		t.Fatalf("Map b: %v", err)
	}

	before, err := m.Read(0x1000, 0x10)
	if err != nil {
		t.Fatalf("Read a before: %v", err)
	}

	data := bytes.Repeat([]byte{0xFF}, 0x30) // spans a, the gap, and b
	if err := m.Write(0x1000, data); err == nil {
		t.Fatalf("expected a gap write to fail")
	}

	after, err := m.Read(0x1000, 0x10)
	if err != nil {
		t.Fatalf("Read a after: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Errorf("segment a was mutated by a write that ultimately failed: before %x, after %x", before, after)
	}
}

func TestSplittingMemoryGapRead(t *testing.T) {
	a := testArch(t)
	m := NewMappableMemory(a, nil)
	if _, err := m.Map("a", 0x1000, 0x10, arch.RW); err != nil {
		t.Fatalf("Map: %v", err)
	}
	if _, err := m.Read(0x1000, 0x20); err == nil {
		t.Fatalf("expected a read crossing into unmapped space to fail")
	}
}
