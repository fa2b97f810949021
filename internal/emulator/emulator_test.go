package emulator

import (
	"testing"

	"github.com/lodestone-re/lodestone/internal/arch"
)

// addTestCode: MOV X0, #5; MOV X1, #3; ADD X2, X0, X1; RET
var addTestCode = []byte{
	0xa0, 0x00, 0x80, 0xd2,
	0x61, 0x00, 0x80, 0xd2,
	0x02, 0x00, 0x01, 0x8b,
	0xc0, 0x03, 0x5f, 0xd6,
}

func TestEmulatorBasicRun(t *testing.T) {
	e, err := New("arm64")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	const codeBase = 0x1000
	if _, err := e.Memory.Load("code", codeBase, addTestCode, arch.RX); err != nil {
		t.Fatalf("Load: %v", err)
	}

	// LR points somewhere unmapped so RET faults and stops execution.
	if err := e.Debug.Regs.SetRetAddr(0xdead0000); err != nil {
		t.Fatalf("SetRetAddr: %v", err)
	}

	start := uint64(codeBase)
	if _, err := e.Debug.Run(0, &start, nil); err == nil {
		t.Fatalf("expected a fault when RET jumps to an unmapped address")
	}

	x2, err := e.Debug.Regs.ByName("x2")
	if err != nil {
		t.Fatalf("read x2: %v", err)
	}
	if x2 != 8 {
		t.Errorf("x2 = %d, want 8", x2)
	}
}

func TestEmulatorRegisters(t *testing.T) {
	e, err := New("arm64")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	if err := e.Debug.Regs.Set("x5", 0x4242); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := e.Debug.Regs.ByName("x5")
	if err != nil {
		t.Fatalf("ByName: %v", err)
	}
	if got != 0x4242 {
		t.Errorf("x5 = 0x%x, want 0x4242", got)
	}
}

func TestEmulatorMemoryRoundTrip(t *testing.T) {
	e, err := New("arm64")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	const base = 0x2000
	if _, err := e.Memory.Map("scratch", base, 0x1000, arch.RW); err != nil {
		t.Fatalf("Map: %v", err)
	}
	if err := e.Memory.WriteWord(base, 0x11223344); err != nil {
		t.Fatalf("WriteWord: %v", err)
	}
	got, err := e.Memory.ReadWord(base, false)
	if err != nil {
		t.Fatalf("ReadWord: %v", err)
	}
	if got != 0x11223344 {
		t.Errorf("word = 0x%x, want 0x11223344", got)
	}
}

func TestEmulatorBreakpoint(t *testing.T) {
	e, err := New("arm64")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	const codeBase = 0x1000
	if _, err := e.Memory.Load("code", codeBase, addTestCode, arch.RX); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, err := e.Debug.AddBreakpoint(codeBase + 8); err != nil { // the ADD instruction
		t.Fatalf("AddBreakpoint: %v", err)
	}

	start := uint64(codeBase)
	if _, err := e.Debug.Run(0, &start, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	pc, err := e.Debug.PC()
	if err != nil {
		t.Fatalf("PC: %v", err)
	}
	if pc != codeBase+8 {
		t.Errorf("pc = 0x%x, want 0x%x (breakpoint should have stopped execution there)", pc, codeBase+8)
	}
}

func TestEmulatorUnmappedAllocate(t *testing.T) {
	e, err := New("arm")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	seg, err := e.Memory.Allocate("heap", 0x100, arch.RW)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if seg.Start < 0x1000 {
		t.Errorf("allocated address 0x%x below MinAllocAddress", seg.Start)
	}
}
