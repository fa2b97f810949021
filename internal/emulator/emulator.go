// Package emulator is the concrete CPU engine spec.md §9 calls for:
// a github.com/unicorn-engine/unicorn-backed implementation of
// debug.Backend, wired behind a debug.Debugger. Everything
// architecture-generic (registers, hooks, run/step/stop, disassembly)
// lives in internal/debug; this package only knows how to drive Unicorn
// and how to store segment bytes in its mapped pages.
package emulator

import (
	"fmt"

	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

	"github.com/lodestone-re/lodestone/internal/arch"
	_ "github.com/lodestone-re/lodestone/internal/arch/arches"
	"github.com/lodestone-re/lodestone/internal/debug"
	"github.com/lodestone-re/lodestone/internal/execfile"
	"github.com/lodestone-re/lodestone/internal/mem"
)

// Emulator bundles a Unicorn engine, the segmented memory backed by its
// mapped pages, and the debug.Debugger driving it. It is the "Emulator"
// half of spec.md §9's Debugger/Emulator split.
type Emulator struct {
	Arch   *arch.Architecture
	Memory *mem.MappableMemory
	Debug  *debug.Debugger

	mu *backend
	uc uc.Unicorn
}

// New builds an empty Emulator for the named architecture ("arm64" or
// "arm"), with no segments mapped and every register zeroed.
func New(archName string) (*Emulator, error) {
	a, err := arch.Architectures.ByName(archName)
	if err != nil {
		return nil, fmt.Errorf("emulator: %w", err)
	}
	ucArch, ucMode, err := ucArchMode(archName)
	if err != nil {
		return nil, err
	}
	mu, err := uc.NewUnicorn(ucArch, ucMode)
	if err != nil {
		return nil, fmt.Errorf("emulator: new unicorn engine: %w", err)
	}

	um := newUnicornMemory(mu)
	memory := mem.NewMappableMemoryWithBacking(a, a.DefaultISA(), um)

	b, err := newBackend(mu, archName, memory)
	if err != nil {
		mu.Close()
		return nil, err
	}

	d := debug.New(a, b)
	b.setDebugger(d)

	return &Emulator{Arch: a, Memory: memory, Debug: d, mu: b, uc: mu}, nil
}

// FromMemory builds an Emulator for src's architecture and clones every
// segment of src into it, preserving name, address, size, permissions and
// content (megastone's Emulator.from_memory).
func FromMemory(src *mem.SegmentMemory) (*Emulator, error) {
	e, err := New(src.Arch.EntryName())
	if err != nil {
		return nil, err
	}
	if err := e.Memory.LoadMemory(src); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

// FromExecFile loads the ELF at path and builds an Emulator whose segments
// match the file's PT_LOAD program headers, with the program counter set
// to the file's entry point (megastone's Emulator.from_execfile).
func FromExecFile(path string) (*Emulator, error) {
	ef, err := execfile.Load(path)
	if err != nil {
		return nil, err
	}
	e, err := FromMemory(ef.Memory.SegmentMemory)
	if err != nil {
		return nil, err
	}
	if err := e.Debug.Jump(ef.Entry, e.Arch.DefaultISA()); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

// Close releases the underlying Unicorn engine's resources.
func (e *Emulator) Close() error {
	return e.uc.Close()
}
