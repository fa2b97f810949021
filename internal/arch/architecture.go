package arch

// Architecture is an immutable description of a CPU family: its word size,
// endianness, register set, well-known register aliases, and the
// instruction set(s) it supports (e.g. ARM owns both the ARM and Thumb
// InstructionSets).
//
// Invariant: every owned InstructionSet's MinInsnSize/MaxInsnSize are
// multiples of its InsnAlignment, and MinInsnSize <= MaxInsnSize.
type Architecture struct {
	name     string
	altNames []string

	wordSizeBits int
	endian       Endian

	regs *RegisterSet

	pcReg      *Register
	spReg      *Register
	retAddrReg *Register
	retValReg  *Register

	isaByName  map[string]InstructionSet
	isaOrder   []InstructionSet
	defaultISA InstructionSet
}

// ArchitectureConfig carries the fields needed to construct an Architecture.
// RetAddrName/RetValName may be empty if the architecture has no such
// alias (e.g. a calling convention that always uses the stack).
type ArchitectureConfig struct {
	Name         string
	AltNames     []string
	WordSizeBits int
	Endian       Endian
	Regs         *RegisterSet
	PCName       string
	SPName       string
	RetAddrName  string
	RetValName   string
	ISAs         []InstructionSet // first is the default
}

// NewArchitecture validates cfg and builds an Architecture. It panics on a
// malformed config (missing ISAs, unknown register alias) since
// architectures are built once at process startup from hand-written
// per-backend config, the same way megastone's ARCH_ARM64 is a module-level
// literal.
func NewArchitecture(cfg ArchitectureConfig) *Architecture {
	if len(cfg.ISAs) == 0 {
		panic("arch: architecture " + cfg.Name + " has no instruction sets")
	}

	a := &Architecture{
		name:         cfg.Name,
		altNames:     cfg.AltNames,
		wordSizeBits: cfg.WordSizeBits,
		endian:       cfg.Endian,
		regs:         cfg.Regs,
		isaByName:    make(map[string]InstructionSet, len(cfg.ISAs)),
	}

	for _, isa := range cfg.ISAs {
		a.isaByName[normalizeName(isa.EntryName())] = isa
		for _, alt := range isa.EntryAltNames() {
			a.isaByName[normalizeName(alt)] = isa
		}
		a.isaOrder = append(a.isaOrder, isa)
	}
	a.defaultISA = cfg.ISAs[0]

	a.pcReg = mustOptionalReg(cfg.Regs, cfg.PCName)
	a.spReg = mustOptionalReg(cfg.Regs, cfg.SPName)
	a.retAddrReg = mustOptionalReg(cfg.Regs, cfg.RetAddrName)
	a.retValReg = mustOptionalReg(cfg.Regs, cfg.RetValName)

	return a
}

func mustOptionalReg(regs *RegisterSet, name string) *Register {
	if name == "" {
		return nil
	}
	r, err := regs.ByName(name)
	if err != nil {
		panic("arch: " + err.Error())
	}
	return &r
}

func (a *Architecture) EntryName() string      { return a.name }
func (a *Architecture) EntryAltNames() []string { return a.altNames }

// WordSizeBits is the native pointer/integer width of this architecture.
func (a *Architecture) WordSizeBits() int { return a.wordSizeBits }

// WordSize is WordSizeBits in bytes.
func (a *Architecture) WordSize() int { return a.wordSizeBits / 8 }

// Endian is this architecture's byte order.
func (a *Architecture) Endian() Endian { return a.endian }

// Regs is this architecture's register set.
func (a *Architecture) Regs() *RegisterSet { return a.regs }

// PCReg, SPReg, RetAddrReg and RetValReg return the well-known register
// aliases, or nil if this architecture has none (e.g. no dedicated return
// address register).
func (a *Architecture) PCReg() *Register      { return a.pcReg }
func (a *Architecture) SPReg() *Register      { return a.spReg }
func (a *Architecture) RetAddrReg() *Register { return a.retAddrReg }
func (a *Architecture) RetValReg() *Register  { return a.retValReg }

// DefaultISA is the instruction set used when none is specified explicitly.
func (a *Architecture) DefaultISA() InstructionSet { return a.defaultISA }

// ISAByName looks up one of this architecture's instruction sets by name
// (case-insensitive, canonical or alternate).
func (a *Architecture) ISAByName(name string) (InstructionSet, error) {
	isa, ok := a.isaByName[normalizeName(name)]
	if !ok {
		return nil, &NotFoundError{Kind: "InstructionSet", Name: name}
	}
	return isa, nil
}

// AllISAs returns every instruction set owned by this architecture, in
// registration order (default first).
func (a *Architecture) AllISAs() []InstructionSet {
	out := make([]InstructionSet, len(a.isaOrder))
	copy(out, a.isaOrder)
	return out
}

// IsaFromRegs infers the currently active instruction set from the raw
// program counter value. The default rule (spec.md §4.2): for each
// non-default ISA, if that ISA's PointerToAddress strips information from
// pc (i.e. differs from pc itself), that ISA is active — this is exactly
// how ARM/Thumb interworking's PC LSB is detected. Architectures with a
// single ISA always return it.
func (a *Architecture) IsaFromRegs(pc uint64) InstructionSet {
	if len(a.isaOrder) <= 1 {
		return a.defaultISA
	}
	for _, isa := range a.isaOrder {
		if isa == a.defaultISA {
			continue
		}
		if isa.PointerToAddress(pc) != pc {
			return isa
		}
	}
	return a.defaultISA
}

// Architectures is the process-wide catalog of architectures. It is
// populated once at startup (one Register call per backend's init()) and
// is read-only thereafter.
var Architectures = NewRegistry[*Architecture]("Architecture")
