package debug

import (
	"github.com/lodestone-re/lodestone/internal/arch"
	"github.com/lodestone-re/lodestone/internal/mem"
)

// Backend is what a concrete CPU engine (internal/emulator's Unicorn
// wrapper) supplies to a Debugger. The Debugger owns register/hook/run
// bookkeeping common to any engine; Backend owns the engine-specific
// mechanics. This is the split spec.md §9 calls for: "Debugger" stays
// generic, "Emulator" concretizes it.
type Backend interface {
	// GetReg/SetReg read or write a register by its backend-id.
	GetReg(r arch.Register) (uint64, error)
	SetReg(r arch.Register, value uint64) error

	// Memory is the engine's own memory, used for disassembly, the
	// stack view and curr_insn.
	Memory() mem.Accessor

	// InstallCodeHook/InstallMemHook register h with the engine and
	// return an opaque backend token RemoveHook later passes back.
	// The backend is responsible for invoking h.Func (through the
	// owning Debugger's dispatch, so current_hook/current_access are
	// set) whenever the engine delivers the corresponding event.
	InstallCodeHook(h *Hook) (interface{}, error)
	InstallMemHook(h *Hook) (interface{}, error)
	RemoveHook(kind HookKind, token interface{}) error

	// Start runs the engine from beginPointer (already translated
	// through the active ISA's AddressToPointer) for up to count
	// instructions (0 = unlimited) and returns when the engine stops,
	// classifying any failure as *MemFaultError, *InvalidInsnError or
	// *CPUError.
	Start(beginPointer uint64, count int) error

	// RequestStop asks the engine to halt after the current
	// instruction. Called from Debugger.Stop.
	RequestStop()
}
