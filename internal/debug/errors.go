package debug

import (
	"fmt"

	"github.com/lodestone-re/lodestone/internal/arch"
	"github.com/lodestone-re/lodestone/internal/mem"
)

// MemFaultError is raised when the guest CPU hits a memory fault during
// run: an access the engine's MMU rejected, captured by the permanent
// invalid-memory hook (spec.md §4.6).
type MemFaultError struct {
	PC     uint64
	Cause  mem.FaultCause
	Access arch.Access
}

func (e *MemFaultError) Error() string {
	return fmt.Sprintf("memory fault at pc=0x%x: %s %s 0x%x (size %d)", e.PC, e.Cause, e.Access.Type, e.Access.Address, e.Access.Size)
}

// InvalidInsnError is raised when the guest CPU fetches an address that
// does not decode to a valid instruction for the current ISA.
type InvalidInsnError struct {
	PC uint64
}

func (e *InvalidInsnError) Error() string {
	return fmt.Sprintf("invalid instruction at pc=0x%x", e.PC)
}

// CPUError wraps any other engine failure that isn't a classified memory
// fault or invalid instruction.
type CPUError struct {
	Message string
	PC      uint64
	Err     error
}

func (e *CPUError) Error() string {
	return fmt.Sprintf("cpu error at pc=0x%x: %s", e.PC, e.Message)
}

func (e *CPUError) Unwrap() error { return e.Err }

// UnsupportedHookError is raised when a backend refuses to install a hook
// of the requested kind (e.g. an engine with no data-watchpoint support).
type UnsupportedHookError struct {
	Kind HookKind
}

func (e *UnsupportedHookError) Error() string {
	return fmt.Sprintf("backend does not support %s hooks", e.Kind)
}
