package emulator

import (
	"fmt"

	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"
)

// archRegs maps this module's register names (internal/arch/arches'
// lowercase "x0", "sp", "pc", ...) to the Unicorn constant each
// architecture's backend uses to read/write it. Built once per
// architecture rather than carried on arch.Register.BackendID directly,
// since BackendID is an architecture-local opaque handle (spec.md §9) and
// only this package knows which CPU engine it ultimately addresses.
var archRegs = map[string]map[string]int{
	"arm64": arm64RegMap(),
	"arm":   armRegMap(),
}

// arm64RegMap assumes Unicorn's UC_ARM64_REG_X0..X28 are contiguous, as
// they are in every released unicorn-engine header.
func arm64RegMap() map[string]int {
	m := map[string]int{
		"sp":   uc.ARM64_REG_SP,
		"pc":   uc.ARM64_REG_PC,
		"lr":   uc.ARM64_REG_LR,
		"nzcv": uc.ARM64_REG_NZCV,
	}
	for n := 0; n <= 28; n++ {
		m[fmt.Sprintf("x%d", n)] = uc.ARM64_REG_X0 + n
	}
	m["x29"] = uc.ARM64_REG_FP
	m["x30"] = uc.ARM64_REG_LR
	return m
}

func armRegMap() map[string]int {
	m := map[string]int{
		"sp":   uc.ARM_REG_SP,
		"lr":   uc.ARM_REG_LR,
		"pc":   uc.ARM_REG_PC,
		"cpsr": uc.ARM_REG_CPSR,
	}
	for n := 0; n <= 12; n++ {
		m[fmt.Sprintf("r%d", n)] = uc.ARM_REG_R0 + n
	}
	return m
}

func ucReg(archName, regName string) (int, bool) {
	regs, ok := archRegs[archName]
	if !ok {
		return 0, false
	}
	id, ok := regs[regName]
	return id, ok
}

// ucArchMode returns the Unicorn arch/mode pair for archName. Both
// architectures create their engine in UC_MODE_ARM; no Thumb mode is
// selected here.
func ucArchMode(archName string) (int, int, error) {
	switch archName {
	case "arm64":
		return uc.ARCH_ARM64, uc.MODE_ARM, nil
	case "arm":
		return uc.ARCH_ARM, uc.MODE_ARM, nil
	default:
		return 0, 0, fmt.Errorf("emulator: unsupported architecture %q", archName)
	}
}
