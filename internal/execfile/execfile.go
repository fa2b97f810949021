// Package execfile implements the "Executable-file capability" spec.md §6
// treats as an external collaborator: something that provides an
// Architecture, an entry point, and a segmented memory, consumed
// read-only by Emulator.FromExecFile. ELF parsing itself (and PE/Mach-O,
// which this package does not implement) is explicitly out of the core's
// scope — only the capability surface is specified, so this loader stays
// deliberately small: it reads PT_LOAD program headers into segments and
// nothing else. It does not resolve relocations, PLT stubs, or C++ vtables
// the way the teacher's original elf.go did for its Android/Cocos2d target;
// see DESIGN.md for what was dropped and why.
package execfile

import (
	"debug/elf"
	"fmt"

	"github.com/lodestone-re/lodestone/internal/arch"
	_ "github.com/lodestone-re/lodestone/internal/arch/arches"
	"github.com/lodestone-re/lodestone/internal/mem"
)

// ExecFile is the read-only result of loading an executable: its
// architecture, its entry point address, and a segmented memory populated
// from its loadable segments.
type ExecFile struct {
	Arch   *arch.Architecture
	Entry  uint64
	Memory *mem.MappableMemory
}

// machineArch maps an ELF e_machine value to the canonical name of one of
// this module's registered architectures.
func machineArch(machine elf.Machine) (string, error) {
	switch machine {
	case elf.EM_AARCH64:
		return "arm64", nil
	case elf.EM_ARM:
		return "arm", nil
	default:
		return "", fmt.Errorf("execfile: unsupported ELF machine %s", machine)
	}
}

// permsOf translates an ELF program header's r/w/x flags into an
// arch.AccessType.
func permsOf(flags elf.ProgFlag) arch.AccessType {
	var p arch.AccessType
	if flags&elf.PF_R != 0 {
		p |= arch.Read
	}
	if flags&elf.PF_W != 0 {
		p |= arch.Write
	}
	if flags&elf.PF_X != 0 {
		p |= arch.Execute
	}
	return p
}

// Load parses the ELF file at path and builds an ExecFile from its PT_LOAD
// segments. Segments are named "seg0", "seg1", ... in program-header order.
// A segment whose file size is smaller than its memory size (typical of
// .bss) is zero-padded to its full memory size.
func Load(path string) (*ExecFile, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("execfile: open %s: %w", path, err)
	}
	defer f.Close()

	archName, err := machineArch(f.Machine)
	if err != nil {
		return nil, err
	}
	a, err := arch.Architectures.ByName(archName)
	if err != nil {
		return nil, fmt.Errorf("execfile: %s not registered: %w", archName, err)
	}

	m := mem.NewMappableMemory(a, nil)

	n := 0
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD || prog.Memsz == 0 {
			continue
		}
		data := make([]byte, prog.Memsz)
		if prog.Filesz > 0 {
			buf := make([]byte, prog.Filesz)
			if _, err := prog.ReadAt(buf, 0); err != nil {
				return nil, fmt.Errorf("execfile: read segment %d: %w", n, err)
			}
			copy(data, buf)
		}
		name := fmt.Sprintf("seg%d", n)
		if _, err := m.Load(name, prog.Vaddr, data, permsOf(prog.Flags)); err != nil {
			return nil, fmt.Errorf("execfile: load segment %d: %w", n, err)
		}
		n++
	}

	return &ExecFile{Arch: a, Entry: f.Entry, Memory: m}, nil
}
