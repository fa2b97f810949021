package emulator

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

	"github.com/lodestone-re/lodestone/internal/arch"
	"github.com/lodestone-re/lodestone/internal/debug"
	"github.com/lodestone-re/lodestone/internal/mem"
)

// backend is the debug.Backend Unicorn implementation. Rather than asking
// Unicorn to install one native hook per user debug.Hook, it installs at
// most one native HOOK_CODE, one HOOK_MEM_READ and one HOOK_MEM_WRITE
// trampoline (lazily, on first use) and dispatches through a token-keyed
// table of the debug.Hooks currently installed — the trampoline design
// spec.md §9 calls for, so the number of native Unicorn hooks stays
// constant regardless of how many breakpoints or watchpoints the caller
// installs.
type backend struct {
	mu       uc.Unicorn
	archName string
	memory   *mem.MappableMemory

	d *debug.Debugger // wired in by New after the Debugger is constructed

	hooksMu   sync.Mutex
	codeHooks map[uuid.UUID]*debug.Hook
	readHooks map[uuid.UUID]*debug.Hook
	writeHook map[uuid.UUID]*debug.Hook

	codeInstalled  bool
	readInstalled  bool
	writeInstalled bool

	stopRequested bool
	fault         error // set by the permanent invalid-access hook, surfaced by Start
}

func newBackend(mu uc.Unicorn, archName string, memory *mem.MappableMemory) (*backend, error) {
	b := &backend{
		mu:        mu,
		archName:  archName,
		memory:    memory,
		codeHooks: make(map[uuid.UUID]*debug.Hook),
		readHooks: make(map[uuid.UUID]*debug.Hook),
		writeHook: make(map[uuid.UUID]*debug.Hook),
	}
	if err := b.installFaultHook(); err != nil {
		return nil, err
	}
	return b, nil
}

// setDebugger completes the two-phase wiring debugger.go documents: the
// backend must exist before debug.New builds the Debugger around it, but
// the trampolines above need the Debugger to dispatch through.
func (b *backend) setDebugger(d *debug.Debugger) { b.d = d }

// installFaultHook registers the permanent invalid-access hook spec.md
// §4.6 requires: any unmapped or protection-violating access is captured
// and classified, never silently retried.
func (b *backend) installFaultHook() error {
	const invalidTypes = uc.HOOK_MEM_READ_UNMAPPED | uc.HOOK_MEM_WRITE_UNMAPPED | uc.HOOK_MEM_FETCH_UNMAPPED |
		uc.HOOK_MEM_READ_PROT | uc.HOOK_MEM_WRITE_PROT | uc.HOOK_MEM_FETCH_PROT
	_, err := b.mu.HookAdd(invalidTypes, func(mu uc.Unicorn, access int, addr uint64, size int, value int64) bool {
		pc, _ := b.mu.RegRead(pcConst(b.archName))
		b.fault = &debug.MemFaultError{
			PC:    pc,
			Cause: faultCause(access),
			Access: arch.Access{
				Type:    accessType(access),
				Address: addr,
				Size:    uint64(size),
			},
		}
		// Never instruct the engine to retry a classified fault.
		return false
	}, 1, 0)
	if err != nil {
		return fmt.Errorf("emulator: install fault hook: %w", err)
	}
	return nil
}

func pcConst(archName string) int {
	id, ok := ucReg(archName, "pc")
	if !ok {
		return 0
	}
	return id
}

func faultCause(access int) mem.FaultCause {
	switch access {
	case uc.MEM_READ_PROT, uc.MEM_WRITE_PROT, uc.MEM_FETCH_PROT:
		return mem.Protected
	default:
		return mem.Unmapped
	}
}

func accessType(access int) arch.AccessType {
	switch access {
	case uc.MEM_WRITE_UNMAPPED, uc.MEM_WRITE_PROT, uc.MEM_WRITE:
		return arch.Write
	case uc.MEM_FETCH_UNMAPPED, uc.MEM_FETCH_PROT, uc.MEM_FETCH:
		return arch.Execute
	default:
		return arch.Read
	}
}

// GetReg/SetReg satisfy debug.Backend.
func (b *backend) GetReg(r arch.Register) (uint64, error) {
	id, ok := ucReg(b.archName, r.Name)
	if !ok {
		return 0, fmt.Errorf("emulator: register %q has no %s mapping", r.Name, b.archName)
	}
	return b.mu.RegRead(id)
}

func (b *backend) SetReg(r arch.Register, value uint64) error {
	id, ok := ucReg(b.archName, r.Name)
	if !ok {
		return fmt.Errorf("emulator: register %q has no %s mapping", r.Name, b.archName)
	}
	return b.mu.RegWrite(id, value)
}

// Memory satisfies debug.Backend.
func (b *backend) Memory() mem.Accessor { return b.memory }

// InstallCodeHook satisfies debug.Backend, lazily installing the single
// native HOOK_CODE trampoline on first use.
func (b *backend) InstallCodeHook(h *debug.Hook) (interface{}, error) {
	b.hooksMu.Lock()
	defer b.hooksMu.Unlock()
	if !b.codeInstalled {
		if _, err := b.mu.HookAdd(uc.HOOK_CODE, b.dispatchCode, 1, 0); err != nil {
			return nil, fmt.Errorf("emulator: install code hook: %w", err)
		}
		b.codeInstalled = true
	}
	b.codeHooks[h.ID] = h
	return h.ID, nil
}

// InstallMemHook satisfies debug.Backend, lazily installing the
// HOOK_MEM_READ or HOOK_MEM_WRITE trampoline matching h.Kind.
func (b *backend) InstallMemHook(h *debug.Hook) (interface{}, error) {
	b.hooksMu.Lock()
	defer b.hooksMu.Unlock()
	switch h.Kind {
	case debug.ReadHook:
		if !b.readInstalled {
			if _, err := b.mu.HookAdd(uc.HOOK_MEM_READ, b.dispatchRead, 1, 0); err != nil {
				return nil, fmt.Errorf("emulator: install read hook: %w", err)
			}
			b.readInstalled = true
		}
		b.readHooks[h.ID] = h
	case debug.WriteHook:
		if !b.writeInstalled {
			if _, err := b.mu.HookAdd(uc.HOOK_MEM_WRITE, b.dispatchWrite, 1, 0); err != nil {
				return nil, fmt.Errorf("emulator: install write hook: %w", err)
			}
			b.writeInstalled = true
		}
		b.writeHook[h.ID] = h
	default:
		return nil, &debug.UnsupportedHookError{Kind: h.Kind}
	}
	return h.ID, nil
}

// RemoveHook satisfies debug.Backend. The native trampolines stay
// registered for the engine's lifetime; removing the last entry from a
// table simply leaves it with nothing to dispatch.
func (b *backend) RemoveHook(kind debug.HookKind, token interface{}) error {
	id, ok := token.(uuid.UUID)
	if !ok {
		return fmt.Errorf("emulator: invalid hook token %v", token)
	}
	b.hooksMu.Lock()
	defer b.hooksMu.Unlock()
	switch kind {
	case debug.CodeHook:
		delete(b.codeHooks, id)
	case debug.ReadHook:
		delete(b.readHooks, id)
	case debug.WriteHook:
		delete(b.writeHook, id)
	}
	return nil
}

func (b *backend) dispatchCode(mu uc.Unicorn, addr uint64, size uint32) {
	if b.stopRequested {
		b.mu.Stop()
		return
	}
	b.hooksMu.Lock()
	matches := matchingHooks(b.codeHooks, addr)
	b.hooksMu.Unlock()
	access := arch.Access{Type: arch.Execute, Address: addr, Size: uint64(size)}
	for _, h := range matches {
		b.d.Dispatch(h, access)
		if b.stopRequested {
			b.mu.Stop()
			return
		}
	}
}

func (b *backend) dispatchRead(mu uc.Unicorn, accessKind int, addr uint64, size int, value int64) {
	b.hooksMu.Lock()
	matches := matchingHooks(b.readHooks, addr)
	b.hooksMu.Unlock()
	access := arch.Access{Type: arch.Read, Address: addr, Size: uint64(size)}
	for _, h := range matches {
		b.d.Dispatch(h, access)
	}
}

func (b *backend) dispatchWrite(mu uc.Unicorn, accessKind int, addr uint64, size int, value int64) {
	b.hooksMu.Lock()
	matches := matchingHooks(b.writeHook, addr)
	b.hooksMu.Unlock()
	access := arch.Access{
		Type:    arch.Write,
		Address: addr,
		Size:    uint64(size),
		Value:   encodeValue(value, size),
	}
	for _, h := range matches {
		b.d.Dispatch(h, access)
	}
}

func encodeValue(value int64, size int) []byte {
	out := make([]byte, size)
	for i := 0; i < size && i < 8; i++ {
		out[i] = byte(value >> (8 * i))
	}
	return out
}

// matchingHooks returns, in no particular order, every hook in table whose
// address matches addr: either it watches AllAddresses, or addr falls
// within [h.Address.Addr(), h.Address.Addr()+max(h.Size,1)).
func matchingHooks(table map[uuid.UUID]*debug.Hook, addr uint64) []*debug.Hook {
	var out []*debug.Hook
	for _, h := range table {
		if h.Address.IsAll() {
			out = append(out, h)
			continue
		}
		size := h.Size
		if size == 0 {
			size = 1
		}
		start := h.Address.Addr()
		if addr >= start && addr < start+size {
			out = append(out, h)
		}
	}
	return out
}

// Start satisfies debug.Backend: it runs the engine from beginPointer and
// classifies any failure as *debug.MemFaultError (from the permanent fault
// hook), *debug.InvalidInsnError, or *debug.CPUError.
func (b *backend) Start(beginPointer uint64, count int) error {
	b.stopRequested = false
	b.fault = nil

	const until = uint64(0)
	var err error
	if count > 0 {
		err = b.mu.StartWithOptions(beginPointer, until, &uc.UcOptions{Count: uint64(count)})
	} else {
		err = b.mu.Start(beginPointer, until)
	}
	if err == nil {
		return nil
	}
	if b.fault != nil {
		return b.fault
	}
	if ucErr, ok := err.(uc.UcError); ok && ucErr == uc.ERR_INSN_INVALID {
		pc, _ := b.mu.RegRead(pcConst(b.archName))
		return &debug.InvalidInsnError{PC: pc}
	}
	pc, _ := b.mu.RegRead(pcConst(b.archName))
	return &debug.CPUError{Message: err.Error(), PC: pc, Err: err}
}

// RequestStop satisfies debug.Backend.
func (b *backend) RequestStop() {
	b.stopRequested = true
}
