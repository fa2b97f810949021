package arches

import (
	"testing"

	"github.com/lodestone-re/lodestone/internal/arch"
)

func TestARM64AssembleKnownForms(t *testing.T) {
	cases := []struct {
		text string
		want uint32
	}{
		{"nop", 0xD503201F},
		{"ret", 0xD65F03C0},
		{"mov x0, #5", 0xD2800000 | (5 << 5)},
		{"add x2, x0, x1", 0x8B000000 | (1 << 16) | (0 << 5) | 2},
		{"br x9", 0xD61F0000 | (9 << 5)},
	}
	for _, c := range cases {
		got, err := ARM64.Assemble(c.text, 0)
		if err != nil {
			t.Fatalf("Assemble(%q): %v", c.text, err)
		}
		enc := uint32(got[0]) | uint32(got[1])<<8 | uint32(got[2])<<16 | uint32(got[3])<<24
		if enc != c.want {
			t.Errorf("Assemble(%q) = 0x%x, want 0x%x", c.text, enc, c.want)
		}
	}
}

func TestARM64AssembleUnsupported(t *testing.T) {
	if _, err := ARM64.Assemble("vmul v0, v1, v2", 0); err == nil {
		t.Fatalf("expected an *arch.AssemblyError for an unsupported mnemonic")
	}
}

func TestARM64RoundTripAssembleDisassemble(t *testing.T) {
	data, err := ARM64.Assemble("mov x3, #42", 0)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	insn, err := ARM64.DisassembleOne(data, 0x1000)
	if err != nil {
		t.Fatalf("DisassembleOne: %v", err)
	}
	if insn.Address != 0x1000 || insn.Size != 4 {
		t.Errorf("insn = %+v", insn)
	}
	if insn.Mnemonic == "" {
		t.Errorf("empty mnemonic decoding our own encoding")
	}
}

func TestARM64DisassembleStopsAtInvalidEncoding(t *testing.T) {
	nop, _ := ARM64.Assemble("nop", 0)
	data := append(append([]byte{}, nop...), 0xff, 0xff, 0xff, 0xff)
	iter := ARM64.Disassemble(data, 0, 0)
	insns := iter.All()
	if len(insns) != 1 {
		t.Fatalf("got %d instructions, want 1 (decoding should stop, not error, at the bad encoding)", len(insns))
	}
}

func TestARM64IdentityInterworking(t *testing.T) {
	if ARM64.AddressToPointer(0x1234) != 0x1234 {
		t.Errorf("arm64 has no interworking bit, AddressToPointer must be identity")
	}
	if ARM64.PointerToAddress(0x1234) != 0x1234 {
		t.Errorf("arm64 has no interworking bit, PointerToAddress must be identity")
	}
}

func TestARM64Registered(t *testing.T) {
	a, err := arch.Architectures.ByName("aarch64")
	if err != nil {
		t.Fatalf("ByName(aarch64): %v", err)
	}
	if a.EntryName() != "arm64" {
		t.Errorf("alt name aarch64 resolved to %s, want arm64", a.EntryName())
	}
	if a.RetValReg().Name != "x0" {
		t.Errorf("RetValReg = %s, want x0", a.RetValReg().Name)
	}
}
