package arches

import (
	"testing"

	"github.com/lodestone-re/lodestone/internal/arch"
)

func TestThumbInterworkingBit(t *testing.T) {
	if got := THUMB.AddressToPointer(0x2000); got != 0x2001 {
		t.Errorf("AddressToPointer(0x2000) = 0x%x, want 0x2001", got)
	}
	if got := THUMB.PointerToAddress(0x2001); got != 0x2000 {
		t.Errorf("PointerToAddress(0x2001) = 0x%x, want 0x2000", got)
	}
	// Round trip must be the identity on the address side.
	addr := uint64(0x4242)
	if got := THUMB.PointerToAddress(THUMB.AddressToPointer(addr)); got != addr {
		t.Errorf("round trip through pointer encoding changed address: got 0x%x, want 0x%x", got, addr)
	}
}

func TestARMNoInterworkingBit(t *testing.T) {
	if got := ARM.AddressToPointer(0x2000); got != 0x2000 {
		t.Errorf("ARM.AddressToPointer(0x2000) = 0x%x, want 0x2000 (ARM state never sets bit 0)", got)
	}
	// A stray bit 0 on an incoming pointer (e.g. a Thumb return address
	// misread as ARM) is stripped, never interpreted as part of the address.
	if got := ARM.PointerToAddress(0x2001); got != 0x2000 {
		t.Errorf("ARM.PointerToAddress(0x2001) = 0x%x, want 0x2000", got)
	}
}

func TestArchitectureIsaFromRegs(t *testing.T) {
	a, err := arch.Architectures.ByName("arm")
	if err != nil {
		t.Fatalf("ByName(arm): %v", err)
	}
	if isa := a.IsaFromRegs(0x1000); isa.EntryName() != "arm" {
		t.Errorf("pc=0x1000 resolved to %s, want arm", isa.EntryName())
	}
	if isa := a.IsaFromRegs(0x1001); isa.EntryName() != "thumb" {
		t.Errorf("pc=0x1001 (bit 0 set) resolved to %s, want thumb", isa.EntryName())
	}
}

func TestARMAssembleBxAndDisassemble(t *testing.T) {
	data, err := ARM.Assemble("bx r3", 0)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	insn, err := ARM.DisassembleOne(data, 0x8000)
	if err != nil {
		t.Fatalf("DisassembleOne: %v", err)
	}
	if insn.Mnemonic != "bx" || insn.OpStr != "r3" {
		t.Errorf("insn = %+v, want bx r3", insn)
	}
}

func TestThumbAssembleNop(t *testing.T) {
	data, err := THUMB.Assemble("nop", 0)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(data) != 2 {
		t.Fatalf("thumb nop encoded to %d bytes, want 2", len(data))
	}
	insn, err := THUMB.DisassembleOne(data, 0x100)
	if err != nil {
		t.Fatalf("DisassembleOne: %v", err)
	}
	if insn.Mnemonic != "nop" || insn.Size != 2 {
		t.Errorf("insn = %+v, want a 2-byte nop", insn)
	}
}
