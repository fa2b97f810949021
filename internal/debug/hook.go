package debug

import (
	"github.com/google/uuid"

	"github.com/lodestone-re/lodestone/internal/arch"
)

// HookKind is the category of event a Hook reacts to.
type HookKind int

const (
	CodeHook HookKind = iota
	ReadHook
	WriteHook
)

func (k HookKind) String() string {
	switch k {
	case ReadHook:
		return "read"
	case WriteHook:
		return "write"
	default:
		return "code"
	}
}

// HookAddress is either a concrete address or the AllAddresses sentinel
// meaning "every address" (spec.md §9: the spec normalizes on a single ALL
// sentinel; only internal/emulator's Unicorn backend translates it to the
// engine's own [1, 0] convention).
type HookAddress struct {
	all  bool
	addr uint64
}

// AllAddresses is the sentinel HookAddress matching every address.
var AllAddresses = HookAddress{all: true}

// At builds a HookAddress for a concrete address.
func At(addr uint64) HookAddress { return HookAddress{addr: addr} }

func (h HookAddress) IsAll() bool  { return h.all }
func (h HookAddress) Addr() uint64 { return h.addr }

// HookFunc is the user callback invoked when a hook fires. access.Type is
// Execute for a code hook (access.Size is the instruction's size,
// access.Value is nil), Read or Write for a memory hook.
type HookFunc func(d *Debugger, access arch.Access)

// Hook is a user-installed callback owned by a Debugger. Token is an
// opaque, backend-assigned handle RemoveHook needs to detach it; it is
// never interpreted by this package, only carried.
type Hook struct {
	ID      uuid.UUID
	Kind    HookKind
	Address HookAddress
	Size    uint64
	Func    HookFunc

	token interface{}
}
