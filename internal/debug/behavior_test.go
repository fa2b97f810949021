package debug

import (
	"testing"

	"github.com/lodestone-re/lodestone/internal/arch"
)

func TestDebuggerRegsAliases(t *testing.T) {
	d, _ := testDebugger(t)
	if err := d.Regs.SetPC(0x1000); err != nil {
		t.Fatalf("SetPC: %v", err)
	}
	pc, err := d.PC()
	if err != nil {
		t.Fatalf("PC: %v", err)
	}
	if pc != 0x1000 {
		t.Errorf("PC = 0x%x, want 0x1000", pc)
	}

	if err := d.Regs.SetRetVal(42); err != nil {
		t.Fatalf("SetRetVal: %v", err)
	}
	rv, err := d.Regs.RetVal()
	if err != nil {
		t.Fatalf("RetVal: %v", err)
	}
	if rv != 42 {
		t.Errorf("RetVal = %d, want 42", rv)
	}
}

func TestDebuggerStepAdvancesByOneInstruction(t *testing.T) {
	d, _ := testDebugger(t)
	if err := d.Jump(0x1000, nil); err != nil {
		t.Fatalf("Jump: %v", err)
	}
	if _, err := d.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	pc, err := d.PC()
	if err != nil {
		t.Fatalf("PC: %v", err)
	}
	if pc != 0x1004 {
		t.Errorf("pc after one step = 0x%x, want 0x1004", pc)
	}
}

func TestDebuggerBreakpointStopsAtAddress(t *testing.T) {
	d, _ := testDebugger(t)
	if _, err := d.AddBreakpoint(0x1010); err != nil {
		t.Fatalf("AddBreakpoint: %v", err)
	}
	start := uint64(0x1000)
	reason, err := d.Run(0, &start, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reason.Kind != StopHook || reason.Hook == nil {
		t.Fatalf("StopReason = %+v, want a StopHook with a hook", reason)
	}
	pc, err := d.PC()
	if err != nil {
		t.Fatalf("PC: %v", err)
	}
	if pc != 0x1010 {
		t.Errorf("pc = 0x%x, want 0x1010", pc)
	}
}

func TestDebuggerTraceSeesEveryInstruction(t *testing.T) {
	d, _ := testDebugger(t)
	var seen []uint64
	if _, err := d.Trace(func(dbg *Debugger, access arch.Access) {
		seen = append(seen, access.Address)
		if len(seen) == 3 {
			dbg.Stop()
		}
	}); err != nil {
		t.Fatalf("Trace: %v", err)
	}
	start := uint64(0x2000)
	if _, err := d.Run(0, &start, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []uint64{0x2000, 0x2004, 0x2008}
	if len(seen) != len(want) {
		t.Fatalf("saw %d instructions, want %d", len(seen), len(want))
	}
	for i, addr := range want {
		if seen[i] != addr {
			t.Errorf("seen[%d] = 0x%x, want 0x%x", i, seen[i], addr)
		}
	}
}

func TestDebuggerRemoveHookStopsFiring(t *testing.T) {
	d, _ := testDebugger(t)
	fired := 0
	h, err := d.AddBreakpoint(0x1004)
	if err != nil {
		t.Fatalf("AddBreakpoint: %v", err)
	}
	if _, err := d.Trace(func(dbg *Debugger, access arch.Access) { fired++ }); err != nil {
		t.Fatalf("Trace: %v", err)
	}
	if err := d.RemoveHook(h); err != nil {
		t.Fatalf("RemoveHook: %v", err)
	}
	start := uint64(0x1000)
	if _, err := d.Run(4, &start, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if fired != 4 {
		t.Errorf("trace fired %d times, want 4 (the breakpoint was removed, so Run shouldn't stop early)", fired)
	}
}

func TestDebuggerStackPushPop(t *testing.T) {
	d, b := testDebugger(t)
	if _, err := b.memory.Map("stack", 0x7000, 0x1000, arch.RW); err != nil {
		t.Fatalf("Map stack: %v", err)
	}
	if err := d.Regs.SetSP(0x8000); err != nil {
		t.Fatalf("SetSP: %v", err)
	}
	if err := d.Stack.Push(0xdeadbeef); err != nil {
		t.Fatalf("Push: %v", err)
	}
	sp, err := d.SP()
	if err != nil {
		t.Fatalf("SP: %v", err)
	}
	if sp != 0x8000-8 {
		t.Errorf("sp after push = 0x%x, want 0x%x", sp, 0x8000-8)
	}
	v, err := d.Stack.Pop()
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if v != 0xdeadbeef {
		t.Errorf("popped value = 0x%x, want 0xdeadbeef", v)
	}
	sp, err = d.SP()
	if err != nil {
		t.Fatalf("SP: %v", err)
	}
	if sp != 0x8000 {
		t.Errorf("sp after pop = 0x%x, want 0x8000", sp)
	}
}

func TestDebuggerReturnFromFunctionViaRetAddrReg(t *testing.T) {
	d, _ := testDebugger(t)
	if err := d.Regs.SetRetAddr(0x9000); err != nil {
		t.Fatalf("SetRetAddr: %v", err)
	}
	retval := uint64(7)
	if err := d.ReturnFromFunction(&retval); err != nil {
		t.Fatalf("ReturnFromFunction: %v", err)
	}
	pc, err := d.PC()
	if err != nil {
		t.Fatalf("PC: %v", err)
	}
	if pc != 0x9000 {
		t.Errorf("pc = 0x%x, want 0x9000", pc)
	}
	rv, err := d.Regs.RetVal()
	if err != nil {
		t.Fatalf("RetVal: %v", err)
	}
	if rv != 7 {
		t.Errorf("retval = %d, want 7", rv)
	}
}

func TestDebuggerJumpThroughThumbISA(t *testing.T) {
	a, err := arch.Architectures.ByName("arm")
	if err != nil {
		t.Fatalf("ByName(arm): %v", err)
	}
	b := newFakeBackend(a)
	d := New(a, b)
	b.d = d

	thumb, err := a.ISAByName("thumb")
	if err != nil {
		t.Fatalf("ISAByName(thumb): %v", err)
	}
	if err := d.Jump(0x3000, thumb); err != nil {
		t.Fatalf("Jump: %v", err)
	}
	pc, err := d.Regs.PC()
	if err != nil {
		t.Fatalf("Regs.PC: %v", err)
	}
	if pc != 0x3001 {
		t.Errorf("pc register = 0x%x, want 0x3001 (thumb interworking bit set)", pc)
	}
	isa, err := d.CurrentISA()
	if err != nil {
		t.Fatalf("CurrentISA: %v", err)
	}
	if isa.EntryName() != "thumb" {
		t.Errorf("CurrentISA = %s, want thumb", isa.EntryName())
	}
}
