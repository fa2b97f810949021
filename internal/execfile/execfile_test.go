package execfile

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

const (
	emAArch64 = 183
	ptLoad    = 1
	pfX       = 1
	pfW       = 2
	pfR       = 4
)

// buildMinimalELF64 writes a single-PT_LOAD ELF64 executable for machine,
// with code as its file contents and vaddr as both the segment's virtual
// address and the ELF entry point. It has no section headers — exactly
// what Load needs and nothing debug/elf requires beyond that.
func buildMinimalELF64(t *testing.T, machine uint16, vaddr uint64, code []byte) string {
	t.Helper()

	const ehdrSize = 64
	const phdrSize = 56

	var buf bytes.Buffer
	buf.Write([]byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0})
	buf.Write(make([]byte, 8)) // e_ident padding

	le := binary.LittleEndian
	write16 := func(v uint16) { var b [2]byte; le.PutUint16(b[:], v); buf.Write(b[:]) }
	write32 := func(v uint32) { var b [4]byte; le.PutUint32(b[:], v); buf.Write(b[:]) }
	write64 := func(v uint64) { var b [8]byte; le.PutUint64(b[:], v); buf.Write(b[:]) }

	write16(2)                 // e_type = ET_EXEC
	write16(machine)           // e_machine
	write32(1)                 // e_version
	write64(vaddr)             // e_entry
	write64(ehdrSize)          // e_phoff
	write64(0)                 // e_shoff
	write32(0)                 // e_flags
	write16(ehdrSize)          // e_ehsize
	write16(phdrSize)          // e_phentsize
	write16(1)                 // e_phnum
	write16(0)                 // e_shentsize
	write16(0)                 // e_shnum
	write16(0)                 // e_shstrndx

	const dataOff = ehdrSize + phdrSize
	write32(ptLoad)            // p_type
	write32(pfR | pfX)         // p_flags
	write64(dataOff)           // p_offset
	write64(vaddr)             // p_vaddr
	write64(vaddr)             // p_paddr
	write64(uint64(len(code))) // p_filesz
	write64(uint64(len(code))) // p_memsz
	write64(0x1000)            // p_align

	buf.Write(code)

	path := filepath.Join(t.TempDir(), "test.elf")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write test ELF: %v", err)
	}
	return path
}

func TestLoadARM64(t *testing.T) {
	code := []byte{
		0xa0, 0x00, 0x80, 0xd2, // MOV X0, #5
		0xc0, 0x03, 0x5f, 0xd6, // RET
	}
	const base = 0x10000
	path := buildMinimalELF64(t, emAArch64, base, code)

	ef, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ef.Arch.EntryName() != "arm64" {
		t.Errorf("Arch = %s, want arm64", ef.Arch.EntryName())
	}
	if ef.Entry != base {
		t.Errorf("Entry = 0x%x, want 0x%x", ef.Entry, base)
	}

	got, err := ef.Memory.Read(base, uint64(len(code)))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, code) {
		t.Errorf("segment content mismatch: got %x, want %x", got, code)
	}
}

func TestLoadUnsupportedMachine(t *testing.T) {
	path := buildMinimalELF64(t, 0xffff, 0x1000, []byte{0})
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for an unsupported e_machine")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.elf")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}
