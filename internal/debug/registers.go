package debug

import (
	"fmt"

	"github.com/lodestone-re/lodestone/internal/arch"
)

// Registers is the live, indexed register-read/write view a Debugger
// exposes: regs.ByName("x0"), regs.Set("x0", 5), and the well-known
// aliases gen_pc/gen_sp/retaddr/retval. Dynamic attribute access
// (`regs.rax = 5`) from the reference implementation becomes these
// explicit indexed accessors (spec.md §9).
type Registers struct {
	arch    *arch.Architecture
	backend Backend
}

func newRegisters(a *arch.Architecture, backend Backend) *Registers {
	return &Registers{arch: a, backend: backend}
}

// ByName reads a register by name, accepting the aliases gen_pc, gen_sp,
// retaddr and retval in addition to the architecture's own register names.
func (r *Registers) ByName(name string) (uint64, error) {
	reg, err := r.resolve(name)
	if err != nil {
		return 0, err
	}
	return r.backend.GetReg(reg)
}

// Set writes value to the register named name.
func (r *Registers) Set(name string, value uint64) error {
	reg, err := r.resolve(name)
	if err != nil {
		return err
	}
	return r.backend.SetReg(reg, value)
}

func (r *Registers) resolve(name string) (arch.Register, error) {
	switch name {
	case "gen_pc":
		if r.arch.PCReg() == nil {
			return arch.Register{}, fmt.Errorf("debug: architecture %s has no program counter alias", r.arch.EntryName())
		}
		return *r.arch.PCReg(), nil
	case "gen_sp":
		if r.arch.SPReg() == nil {
			return arch.Register{}, fmt.Errorf("debug: architecture %s has no stack pointer alias", r.arch.EntryName())
		}
		return *r.arch.SPReg(), nil
	case "retaddr":
		if r.arch.RetAddrReg() == nil {
			return arch.Register{}, fmt.Errorf("debug: architecture %s has no return-address alias", r.arch.EntryName())
		}
		return *r.arch.RetAddrReg(), nil
	case "retval":
		if r.arch.RetValReg() == nil {
			return arch.Register{}, fmt.Errorf("debug: architecture %s has no return-value alias", r.arch.EntryName())
		}
		return *r.arch.RetValReg(), nil
	default:
		return r.arch.Regs().ByName(name)
	}
}

// PC/SetPC and SP/SetSP are the dedicated accessors for the program counter
// and stack pointer aliases (spec.md §4.5).
func (r *Registers) PC() (uint64, error)          { return r.ByName("gen_pc") }
func (r *Registers) SetPC(value uint64) error     { return r.Set("gen_pc", value) }
func (r *Registers) SP() (uint64, error)          { return r.ByName("gen_sp") }
func (r *Registers) SetSP(value uint64) error     { return r.Set("gen_sp", value) }
func (r *Registers) RetAddr() (uint64, error)     { return r.ByName("retaddr") }
func (r *Registers) SetRetAddr(value uint64) error { return r.Set("retaddr", value) }
func (r *Registers) RetVal() (uint64, error)      { return r.ByName("retval") }
func (r *Registers) SetRetVal(value uint64) error { return r.Set("retval", value) }
