package arch

// Register is an immutable description of one CPU register: its name, its
// width, and the backend-specific identifier a debugger/emulator uses to
// read or write it (e.g. a Unicorn ARM64_REG_* constant).
type Register struct {
	Name      string
	Bits      int
	BackendID int
}

// RegisterSet is a name-indexed collection of Registers for one
// architecture. Lookup is case-insensitive on the lowercase name; iteration
// follows registration order.
type RegisterSet struct {
	byName map[string]Register
	order  []Register
}

// NewRegisterSet builds a RegisterSet from regs, preserving their order.
// It panics on a duplicate register name, since register sets are built
// once at program startup from a fixed, hand-written list.
func NewRegisterSet(regs ...Register) *RegisterSet {
	rs := &RegisterSet{
		byName: make(map[string]Register, len(regs)),
	}
	for _, r := range regs {
		key := normalizeName(r.Name)
		if _, ok := rs.byName[key]; ok {
			panic("arch: duplicate register name " + r.Name)
		}
		rs.byName[key] = r
		rs.order = append(rs.order, r)
	}
	return rs
}

// ByName looks up a register by name (case-insensitive).
func (rs *RegisterSet) ByName(name string) (Register, error) {
	r, ok := rs.byName[normalizeName(name)]
	if !ok {
		return Register{}, &NotFoundError{Kind: "register", Name: name}
	}
	return r, nil
}

// All returns every register in registration order.
func (rs *RegisterSet) All() []Register {
	out := make([]Register, len(rs.order))
	copy(out, rs.order)
	return out
}

// Len returns the number of registers in the set.
func (rs *RegisterSet) Len() int {
	return len(rs.order)
}
