package debug

import (
	"testing"

	"github.com/google/uuid"

	"github.com/lodestone-re/lodestone/internal/arch"
	_ "github.com/lodestone-re/lodestone/internal/arch/arches"
	"github.com/lodestone-re/lodestone/internal/mem"
)

// fakeBackend is a minimal in-process Backend: it doesn't decode real
// instructions, it just advances pc by 4 bytes per "instruction" and
// dispatches any code hook whose address matches the current pc, so
// Debugger's run/step/stop/hook bookkeeping can be tested without a real
// CPU engine. arch.RetValReg/RetAddrReg are backed by the same register
// map as everything else.
type fakeBackend struct {
	a         *arch.Architecture
	regs      map[string]uint64
	memory    *mem.MappableMemory
	d         *Debugger
	codeHooks map[uuid.UUID]*Hook
	stopped   bool
}

func newFakeBackend(a *arch.Architecture) *fakeBackend {
	return &fakeBackend{
		a:         a,
		regs:      make(map[string]uint64),
		memory:    mem.NewMappableMemory(a, nil),
		codeHooks: make(map[uuid.UUID]*Hook),
	}
}

func (b *fakeBackend) GetReg(r arch.Register) (uint64, error) { return b.regs[r.Name], nil }
func (b *fakeBackend) SetReg(r arch.Register, value uint64) error {
	b.regs[r.Name] = value
	return nil
}
func (b *fakeBackend) Memory() mem.Accessor { return b.memory }

func (b *fakeBackend) InstallCodeHook(h *Hook) (interface{}, error) {
	b.codeHooks[h.ID] = h
	return h.ID, nil
}
func (b *fakeBackend) InstallMemHook(h *Hook) (interface{}, error) {
	return nil, &UnsupportedHookError{Kind: h.Kind}
}
func (b *fakeBackend) RemoveHook(kind HookKind, token interface{}) error {
	if id, ok := token.(uuid.UUID); ok {
		delete(b.codeHooks, id)
	}
	return nil
}

func (b *fakeBackend) Start(beginPointer uint64, count int) error {
	pc := beginPointer
	b.regs["pc"] = pc
	stepped := 0
	for count == 0 || stepped < count {
		matched := false
		for _, h := range b.codeHooks {
			if h.Address.IsAll() || h.Address.Addr() == pc {
				matched = true
				b.d.Dispatch(h, arch.Access{Type: arch.Execute, Address: pc, Size: 4})
			}
		}
		_ = matched
		if b.stopped {
			b.stopped = false
			return nil
		}
		pc += 4
		b.regs["pc"] = pc
		stepped++
		if count == 0 && stepped > 1000 {
			break // safety net for a test that forgets to stop
		}
	}
	return nil
}

func (b *fakeBackend) RequestStop() { b.stopped = true }

func testDebugger(t *testing.T) (*Debugger, *fakeBackend) {
	a, err := arch.Architectures.ByName("arm64")
	if err != nil {
		t.Fatalf("ByName(arm64): %v", err)
	}
	b := newFakeBackend(a)
	d := New(a, b)
	b.d = d
	return d, b
}
