// Package arches holds the built-in Architecture definitions. Each file
// registers one architecture with arch.Architectures from its init().
//
// This mirrors megastone's arch/arches package, where each arches/*.py
// module builds a module-level SimpleArchitecture and calls
// ARCH_*.add_to_db() at import time.
package arches

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/arch/arm64/arm64asm"

	"github.com/lodestone-re/lodestone/internal/arch"
)

// arm64ISA implements arch.InstructionSet for AArch64. Disassembly is real,
// backed by golang.org/x/arch/arm64/arm64asm (the only ARM64 decoder
// library anywhere in the retrieved pack). Assembly is a small hand-written
// encoder: no Go binding for an ARM64 assembler (e.g. keystone) appears
// anywhere in the pack, so this is the one place InstructionSet.Assemble
// is implemented directly rather than delegating to a third-party backend
// — see DESIGN.md.
type arm64ISA struct {
	arch.BaseInstructionSet
}

// ARM64 is the single instruction set of the arm64 architecture.
var ARM64 = &arm64ISA{
	BaseInstructionSet: arch.BaseInstructionSet{
		Name:           "arm64",
		AltNames:       []string{"aarch64", "armv8"},
		MinSize:        4,
		MaxSize:        4,
		Alignment:      4,
		CandidateSizes: []int{4},
	},
}

func (i *arm64ISA) AddressToPointer(address uint64) uint64 { return arch.IdentityAddressToPointer(address) }
func (i *arm64ISA) PointerToAddress(pointer uint64) uint64 { return arch.IdentityPointerToAddress(pointer) }

func (i *arm64ISA) Disassemble(data []byte, address uint64, maxCount int) *arch.InstructionIter {
	offset := 0
	count := 0
	return newArm64Iter(func() (arch.Instruction, bool) {
		if maxCount > 0 && count >= maxCount {
			return arch.Instruction{}, false
		}
		if offset+4 > len(data) {
			return arch.Instruction{}, false
		}
		chunk := data[offset : offset+4]
		insn, ok := decodeOne(chunk, address+uint64(offset))
		if !ok {
			return arch.Instruction{}, false
		}
		offset += 4
		count++
		return insn, true
	})
}

func (i *arm64ISA) DisassembleOne(data []byte, address uint64) (arch.Instruction, error) {
	if len(data) < 4 {
		return arch.Instruction{}, &arch.DisassemblyError{Address: address}
	}
	insn, ok := decodeOne(data[:4], address)
	if !ok {
		return arch.Instruction{}, &arch.DisassemblyError{Address: address}
	}
	return insn, nil
}

func decodeOne(data []byte, address uint64) (arch.Instruction, bool) {
	inst, err := arm64asm.Decode(data)
	if err != nil {
		return arch.Instruction{}, false
	}
	text := inst.String()
	mnemonic, opStr, _ := strings.Cut(text, " ")
	return arch.Instruction{
		Address:  address,
		Size:     4,
		Mnemonic: strings.ToLower(mnemonic),
		OpStr:    strings.ToLower(strings.TrimSpace(opStr)),
		Bytes:    append([]byte(nil), data...),
	}, true
}

// newArm64Iter adapts a closure to *arch.InstructionIter. arch.InstructionIter's
// constructor is unexported, so each ISA backend builds its iterator via a
// tiny exported helper in the arch package instead of re-implementing the
// state machine.
func newArm64Iter(next func() (arch.Instruction, bool)) *arch.InstructionIter {
	return arch.NewInstructionIter(next)
}

// Assemble supports the literal instruction forms exercised by this
// toolkit's tests and CLI: nop, ret, mov Xd, #imm, add Xd, Xn, Xm, br Xn,
// and b #imm (imm is the absolute target address; the PC-relative offset
// is computed from address). Anything else is an
// *arch.AssemblyError.
func (i *arm64ISA) Assemble(text string, address uint64) ([]byte, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	if len(fields) == 0 {
		return nil, &arch.AssemblyError{Text: text}
	}

	var enc uint32
	var err error
	switch fields[0] {
	case "nop":
		enc = 0xD503201F
	case "ret":
		enc = 0xD65F03C0
	case "mov":
		enc, err = assembleMovz(fields[1:])
	case "add":
		enc, err = assembleAddReg(fields[1:])
	case "br":
		enc, err = assembleBr(fields[1:])
	case "b":
		enc, err = assembleB(fields[1:], address)
	default:
		err = fmt.Errorf("unsupported mnemonic %q", fields[0])
	}
	if err != nil {
		return nil, &arch.AssemblyError{Text: text, Err: err}
	}

	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, enc)
	return buf, nil
}

func parseXReg(s string) (uint32, error) {
	s = strings.TrimSuffix(strings.TrimPrefix(s, "x"), ",")
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 31 {
		return 0, fmt.Errorf("invalid register %q", s)
	}
	return uint32(n), nil
}

func parseImm(s string) (int64, error) {
	s = strings.TrimSuffix(strings.TrimPrefix(s, "#"), ",")
	return strconv.ParseInt(s, 0, 64)
}

// assembleMovz encodes "Xd, #imm" as MOVZ Xd, #imm (64-bit, no shift).
func assembleMovz(args []string) (uint32, error) {
	if len(args) != 2 {
		return 0, fmt.Errorf("mov wants 2 operands, got %d", len(args))
	}
	rd, err := parseXReg(args[0])
	if err != nil {
		return 0, err
	}
	imm, err := parseImm(args[1])
	if err != nil || imm < 0 || imm > 0xFFFF {
		return 0, fmt.Errorf("invalid 16-bit immediate %q", args[1])
	}
	return 0xD2800000 | (uint32(imm) << 5) | rd, nil
}

// assembleAddReg encodes "Xd, Xn, Xm" as ADD Xd, Xn, Xm (64-bit, shifted
// register, no shift).
func assembleAddReg(args []string) (uint32, error) {
	if len(args) != 3 {
		return 0, fmt.Errorf("add wants 3 operands, got %d", len(args))
	}
	rd, err := parseXReg(args[0])
	if err != nil {
		return 0, err
	}
	rn, err := parseXReg(args[1])
	if err != nil {
		return 0, err
	}
	rm, err := parseXReg(args[2])
	if err != nil {
		return 0, err
	}
	return 0x8B000000 | (rm << 16) | (rn << 5) | rd, nil
}

// assembleBr encodes "Xn" as BR Xn.
func assembleBr(args []string) (uint32, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("br wants 1 operand, got %d", len(args))
	}
	rn, err := parseXReg(args[0])
	if err != nil {
		return 0, err
	}
	return 0xD61F0000 | (rn << 5), nil
}

// assembleB encodes "#imm" (absolute target address) as B <target>.
func assembleB(args []string, address uint64) (uint32, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("b wants 1 operand, got %d", len(args))
	}
	target, err := parseImm(args[0])
	if err != nil {
		return 0, err
	}
	delta := target - int64(address)
	if delta%4 != 0 {
		return 0, fmt.Errorf("branch target not instruction-aligned")
	}
	imm26 := delta / 4
	if imm26 < -(1<<25) || imm26 >= (1<<25) {
		return 0, fmt.Errorf("branch target out of range")
	}
	return 0x14000000 | (uint32(imm26) & 0x3FFFFFF), nil
}

func init() {
	regs := arch.NewRegisterSet(arm64Regs()...)

	a := arch.NewArchitecture(arch.ArchitectureConfig{
		Name:         "arm64",
		AltNames:     []string{"aarch64", "armv8"},
		WordSizeBits: 64,
		Endian:       arch.LittleEndian,
		Regs:         regs,
		PCName:       "pc",
		SPName:       "sp",
		RetAddrName:  "lr",
		RetValName:   "x0",
		ISAs:         []arch.InstructionSet{ARM64},
	})

	if err := arch.Architectures.Register(a); err != nil {
		panic(err)
	}
}

// arm64Regs builds the general-purpose + special register set. BackendID is
// an opaque, architecture-local handle (not a raw Unicorn constant):
// internal/emulator maps a Register back to the real uc.ARM64_REG_* id by
// name, the same way the teacher's emulator.go re-exports RegX0..RegPC by
// name rather than by number (see RegX0 etc. at the bottom of the
// teacher's emulator.go).
func arm64Regs() []arch.Register {
	regs := make([]arch.Register, 0, 35)
	for n := 0; n <= 30; n++ {
		regs = append(regs, arch.Register{Name: fmt.Sprintf("x%d", n), Bits: 64, BackendID: n})
	}
	regs = append(regs,
		arch.Register{Name: "lr", Bits: 64, BackendID: 30},
		arch.Register{Name: "sp", Bits: 64, BackendID: 31},
		arch.Register{Name: "pc", Bits: 64, BackendID: 32},
		arch.Register{Name: "nzcv", Bits: 64, BackendID: 33},
	)
	return regs
}
