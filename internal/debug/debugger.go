// Package debug implements the abstract execution controller: registers
// view, stack view, hooks, run/step/stop, and function return/replacement,
// all driven on top of a Backend a concrete CPU engine supplies.
package debug

import (
	"github.com/google/uuid"

	"github.com/lodestone-re/lodestone/internal/arch"
	"github.com/lodestone-re/lodestone/internal/mem"
)

// Debugger is the single-threaded, synchronous execution controller
// spec.md §5 describes: one thread drives Run, hook callbacks run inline
// on that thread, and Stop is the sole, cooperative cancellation
// mechanism. A Debugger owns its hooks and (through Backend) its memory
// exclusively; it is never shared between goroutines.
type Debugger struct {
	arch    *arch.Architecture
	backend Backend

	Regs  *Registers
	Stack *StackView

	hooks map[uuid.UUID]*Hook

	currentHook   *Hook
	currentAccess *arch.Access
	startPC       uint64
	stopReason    StopReason
	traceHook     *Hook
}

// New builds a Debugger over backend for architecture a. Concrete engines
// (internal/emulator.Emulator) construct their Backend first, then call New,
// then hand the resulting *Debugger back to the backend so its hook
// trampolines can dispatch through it — see internal/emulator for the
// two-phase wiring this requires.
func New(a *arch.Architecture, backend Backend) *Debugger {
	d := &Debugger{
		arch:    a,
		backend: backend,
		hooks:   make(map[uuid.UUID]*Hook),
	}
	d.Regs = newRegisters(a, backend)
	d.Stack = newStackView(d)
	return d
}

// Memory is the backend's memory, used for disassembly and the stack view.
func (d *Debugger) Memory() mem.Accessor { return d.backend.Memory() }

// Arch is this debugger's architecture.
func (d *Debugger) Arch() *arch.Architecture { return d.arch }

// PC/SP are shorthand aliases for Regs.PC()/Regs.SP().
func (d *Debugger) PC() (uint64, error) { return d.Regs.PC() }
func (d *Debugger) SP() (uint64, error) { return d.Regs.SP() }

// CurrentHook and CurrentAccess are non-nil only while a hook callback
// installed by this Debugger is running.
func (d *Debugger) CurrentHook() *Hook           { return d.currentHook }
func (d *Debugger) CurrentAccess() *arch.Access  { return d.currentAccess }

// CurrentISA derives the active instruction set from the current register
// state via Architecture.IsaFromRegs.
func (d *Debugger) CurrentISA() (arch.InstructionSet, error) {
	pc, err := d.Regs.PC()
	if err != nil {
		return nil, err
	}
	return d.arch.IsaFromRegs(pc), nil
}

// Jump sets pc to addr. If isa is non-nil, addr is round-tripped through
// pointer_to_address/address_to_pointer first so the ISA is explicitly
// encoded in the pointer's interworking bit (spec.md §4.5).
func (d *Debugger) Jump(addr uint64, isa arch.InstructionSet) error {
	if isa != nil {
		addr = isa.AddressToPointer(isa.PointerToAddress(addr))
	}
	return d.Regs.SetPC(addr)
}

// Run optionally jumps to address first, records start_pc, then runs the
// backend until count instructions have executed or a hook stops execution.
// count=0 runs unbounded (until a hook calls Stop).
func (d *Debugger) Run(count int, address *uint64, isa arch.InstructionSet) (StopReason, error) {
	if address != nil {
		if err := d.Jump(*address, isa); err != nil {
			return StopReason{}, err
		}
	}
	pc, err := d.Regs.PC()
	if err != nil {
		return StopReason{}, err
	}
	d.startPC = pc
	d.stopReason = StopReason{Kind: StopCount}

	activeISA, err := d.CurrentISA()
	if err != nil {
		return StopReason{}, err
	}
	beginPointer := activeISA.AddressToPointer(pc)

	if err := d.backend.Start(beginPointer, count); err != nil {
		return d.stopReason, err
	}
	return d.stopReason, nil
}

// Step runs exactly one instruction.
func (d *Debugger) Step() (StopReason, error) {
	return d.Run(1, nil, nil)
}

// Stop must be called from within a hook callback. It requests the engine
// halt after the callback returns and records the stop reason as the
// currently running hook.
func (d *Debugger) Stop() {
	d.stopReason = StopReason{Kind: StopHook, Hook: d.currentHook}
	d.backend.RequestStop()
}

// dispatch is called by the backend's trampoline whenever the engine
// delivers a hook event. It sets current_hook/current_access for the
// duration of the callback and clears them on every exit path, matching
// spec.md §4.5's hook dispatch protocol.
func (d *Debugger) dispatch(h *Hook, access arch.Access) {
	d.currentHook = h
	d.currentAccess = &access
	defer func() {
		d.currentHook = nil
		d.currentAccess = nil
	}()
	h.Func(d, access)
}

// HookByToken looks a hook up by its backend token, for use by a backend's
// trampoline (which only knows the token the engine handed it).
func (d *Debugger) HookByToken(findToken func(*Hook) bool) *Hook {
	for _, h := range d.hooks {
		if findToken(h) {
			return h
		}
	}
	return nil
}

// Dispatch exposes dispatch to the owning Backend implementation; it is
// exported (capital-letter) only across the package boundary into
// internal/emulator, which is the sole intended caller.
func (d *Debugger) Dispatch(h *Hook, access arch.Access) { d.dispatch(h, access) }

// AddHook installs a hook of the given kind at address (or AllAddresses)
// covering size bytes (ignored when address is AllAddresses).
func (d *Debugger) AddHook(kind HookKind, address HookAddress, size uint64, fn HookFunc) (*Hook, error) {
	h := &Hook{ID: uuid.New(), Kind: kind, Address: address, Size: size, Func: fn}

	var token interface{}
	var err error
	switch kind {
	case CodeHook:
		token, err = d.backend.InstallCodeHook(h)
	default:
		token, err = d.backend.InstallMemHook(h)
	}
	if err != nil {
		return nil, err
	}
	h.token = token
	d.hooks[h.ID] = h
	return h, nil
}

// AddCodeHook, AddReadHook and AddWriteHook are typed convenience wrappers
// around AddHook.
func (d *Debugger) AddCodeHook(address HookAddress, size uint64, fn HookFunc) (*Hook, error) {
	return d.AddHook(CodeHook, address, size, fn)
}
func (d *Debugger) AddReadHook(address HookAddress, size uint64, fn HookFunc) (*Hook, error) {
	return d.AddHook(ReadHook, address, size, fn)
}
func (d *Debugger) AddWriteHook(address HookAddress, size uint64, fn HookFunc) (*Hook, error) {
	return d.AddHook(WriteHook, address, size, fn)
}

// Trace installs a code hook over AllAddresses.
func (d *Debugger) Trace(fn HookFunc) (*Hook, error) {
	h, err := d.AddCodeHook(AllAddresses, 0, fn)
	if err != nil {
		return nil, err
	}
	d.traceHook = h
	return h, nil
}

// AddBreakpoint installs a code hook at addr whose callback calls Stop.
func (d *Debugger) AddBreakpoint(addr uint64) (*Hook, error) {
	return d.AddCodeHook(At(addr), 1, func(dbg *Debugger, access arch.Access) {
		dbg.Stop()
	})
}

// RemoveHook detaches h. Removing an already-removed hook is a no-op.
func (d *Debugger) RemoveHook(h *Hook) error {
	if _, ok := d.hooks[h.ID]; !ok {
		return nil
	}
	if err := d.backend.RemoveHook(h.Kind, h.token); err != nil {
		return err
	}
	delete(d.hooks, h.ID)
	if d.traceHook == h {
		d.traceHook = nil
	}
	return nil
}

// Disassemble decodes count instructions starting at the current pc using
// the current ISA.
func (d *Debugger) Disassemble(count int) ([]arch.Instruction, error) {
	pc, err := d.Regs.PC()
	if err != nil {
		return nil, err
	}
	isa, err := d.CurrentISA()
	if err != nil {
		return nil, err
	}
	addr := isa.PointerToAddress(pc)
	return d.Memory().DisassembleN(addr, count, isa)
}

// CurrInsn decodes the single instruction at the current pc.
func (d *Debugger) CurrInsn() (arch.Instruction, error) {
	insns, err := d.Disassemble(1)
	if err != nil {
		return arch.Instruction{}, err
	}
	return insns[0], nil
}

// ReturnFromFunction returns from the current function: if the
// architecture has a return-address register, pc is set from it;
// otherwise the return address is popped from the stack. If retval is
// non-nil, it is written to the return-value register first.
func (d *Debugger) ReturnFromFunction(retval *uint64) error {
	if retval != nil {
		if err := d.Regs.SetRetVal(*retval); err != nil {
			return err
		}
	}
	if d.arch.RetAddrReg() != nil {
		addr, err := d.Regs.RetAddr()
		if err != nil {
			return err
		}
		return d.Regs.SetPC(addr)
	}
	addr, err := d.Stack.Pop()
	if err != nil {
		return err
	}
	return d.Regs.SetPC(addr)
}

// ReplaceFunction installs a code hook at addr that runs fn, uses fn's
// return value as the function's return value when non-nil, then performs
// ReturnFromFunction.
func (d *Debugger) ReplaceFunction(addr uint64, fn func(d *Debugger) *uint64) (*Hook, error) {
	return d.AddCodeHook(At(addr), 1, func(dbg *Debugger, access arch.Access) {
		retval := fn(dbg)
		_ = dbg.ReturnFromFunction(retval)
	})
}
