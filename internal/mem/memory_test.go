package mem

import (
	"bytes"
	"testing"

	"github.com/lodestone-re/lodestone/internal/arch"
)

func TestMemoryIntAndStringHelpers(t *testing.T) {
	a := testArch(t)
	m := NewMappableMemory(a, nil)
	if _, err := m.Map("seg", 0x1000, 0x100, arch.RW); err != nil {
		t.Fatalf("Map: %v", err)
	}

	if err := m.WriteU32(0x1000, 0xdeadbeef); err != nil {
		t.Fatalf("WriteU32: %v", err)
	}
	got, err := m.ReadU32(0x1000)
	if err != nil {
		t.Fatalf("ReadU32: %v", err)
	}
	if got != 0xdeadbeef {
		t.Errorf("ReadU32 = 0x%x, want 0xdeadbeef", got)
	}

	if err := m.WriteCString(0x1010, "hello"); err != nil {
		t.Fatalf("WriteCString: %v", err)
	}
	s, err := m.ReadCStringBytes(0x1010, 0)
	if err != nil {
		t.Fatalf("ReadCStringBytes: %v", err)
	}
	if string(s) != "hello" {
		t.Errorf("ReadCStringBytes = %q, want %q", s, "hello")
	}
}

func TestMemorySearch(t *testing.T) {
	a := testArch(t)
	m := NewMappableMemory(a, nil)
	if _, err := m.Load("seg", 0x1000, []byte{0, 0, 0, 0xCA, 0xFE, 0, 0}, arch.RW); err != nil {
		t.Fatalf("Load: %v", err)
	}
	addr, ok, err := m.Search(0x1000, 7, []byte{0xCA, 0xFE}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !ok || addr != 0x1003 {
		t.Errorf("Search = (0x%x, %v), want (0x1003, true)", addr, ok)
	}

	_, ok, err = m.Search(0x1000, 7, []byte{0xDE, 0xAD}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if ok {
		t.Errorf("Search found a needle that isn't present")
	}
}

// TestSearchAllUsesRegistrationOrder maps a segment at a higher address
// before one at a lower address; both contain a matching needle. SearchAll
// must return the hit in the first-registered segment ("b"), not the
// lowest-address one ("a"), matching the registration-order contract
// SegmentMemory.SearchAll documents.
func TestSearchAllUsesRegistrationOrder(t *testing.T) {
	a := testArch(t)
	m := NewMappableMemory(a, nil)

	needle := []byte{0xCA, 0xFE}
	if _, err := m.Load("b", 0x2000, append([]byte{0, 0}, needle...), arch.RW); err != nil {
		t.Fatalf("Load b: %v", err)
	}
	if _, err := m.Load("a", 0x1000, append([]byte{0, 0}, needle...), arch.RW); err != nil {
		t.Fatalf("Load a: %v", err)
	}

	addr, ok, err := m.SearchAll(needle, 1, arch.RW)
	if err != nil {
		t.Fatalf("SearchAll: %v", err)
	}
	if !ok {
		t.Fatalf("SearchAll found nothing, want a hit in segment %q", "b")
	}
	if addr != 0x2002 {
		t.Errorf("SearchAll = 0x%x, want 0x2002 (hit in %q, registered first)", addr, "b")
	}
}

// TestSegmentsAllAndWithPermsPreserveRegistrationOrder exercises
// Segments.All and Segments.WithPerms directly: both must iterate in
// registration order, independent of address order, even though
// Segments.ByAddress still needs its sorted index for lookup.
func TestSegmentsAllAndWithPermsPreserveRegistrationOrder(t *testing.T) {
	a := testArch(t)
	m := NewMappableMemory(a, nil)

	if _, err := m.Map("b", 0x2000, 0x10, arch.RW); err != nil {
		t.Fatalf("Map b: %v", err)
	}
	if _, err := m.Map("a", 0x1000, 0x10, arch.RW); err != nil {
		t.Fatalf("Map a: %v", err)
	}

	all := m.Segments.All()
	if len(all) != 2 || all[0].Name != "b" || all[1].Name != "a" {
		t.Fatalf("All() = %v, want [b, a] in registration order", all)
	}

	withPerms := m.Segments.WithPerms(arch.RW)
	if len(withPerms) != 2 || withPerms[0].Name != "b" || withPerms[1].Name != "a" {
		t.Fatalf("WithPerms() = %v, want [b, a] in registration order", withPerms)
	}

	// ByAddress must still resolve correctly despite the registration
	// order being address-inverted.
	seg, err := m.Segments.ByAddress(0x1005)
	if err != nil {
		t.Fatalf("ByAddress: %v", err)
	}
	if seg.Name != "a" {
		t.Errorf("ByAddress(0x1005) = %q, want %q", seg.Name, "a")
	}
}

func TestStreamMemoryIOBounded(t *testing.T) {
	a := testArch(t)
	m := NewMappableMemory(a, nil)
	if _, err := m.Map("seg", 0x1000, 0x10, arch.RW); err != nil {
		t.Fatalf("Map: %v", err)
	}
	if err := m.Write(0x1000, bytes.Repeat([]byte{0x7}, 0x10)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	fobj := m.CreateFileobj(0x1000, 0x10)
	buf := make([]byte, 0x10)
	n, err := fobj.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 0x10 {
		t.Fatalf("Read returned %d bytes, want 16", n)
	}
	if _, err := fobj.Read(buf); err == nil {
		t.Fatalf("expected io.EOF reading past a bounded file-object's end")
	}
}

func TestSegmentMemoryDisassembleStopsAtSegmentEnd(t *testing.T) {
	a := testArch(t)
	m := NewMappableMemory(a, nil)
	isa := a.DefaultISA()

	nop, err := isa.Assemble("nop", 0)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	code := append(append([]byte{}, nop...), nop...) // exactly 2 instructions
	if _, err := m.Load("code", 0x1000, code, arch.RX); err != nil {
		t.Fatalf("Load: %v", err)
	}

	insns, err := m.DisassembleN(0x1000, 2, nil)
	if err != nil {
		t.Fatalf("DisassembleN: %v", err)
	}
	if len(insns) != 2 {
		t.Fatalf("got %d instructions, want 2", len(insns))
	}

	if _, err := m.DisassembleN(0x1000, 3, nil); err == nil {
		t.Fatalf("expected a *DisassemblyError asking for one more instruction than the segment holds")
	}
}
