package arch

// Instruction is an immutable decoded instruction.
type Instruction struct {
	Address  uint64
	Size     uint64
	Mnemonic string
	OpStr    string
	Bytes    []byte
}

// String renders the instruction the way a disassembly listing would.
func (i Instruction) String() string {
	if i.OpStr == "" {
		return i.Mnemonic
	}
	return i.Mnemonic + " " + i.OpStr
}

// InstructionIter is a restartable-by-construction, one-shot iterator over
// decoded instructions. It replaces the reference implementation's
// generator: disassembly state (current address, remaining budget, chunk
// buffer) is explicit instead of being captured in a suspended generator
// frame.
type InstructionIter struct {
	next func() (Instruction, bool)
}

// Next returns the next instruction, or ok=false once the iterator is
// exhausted (end of input, max count reached, or an invalid encoding was
// hit — the three are indistinguishable from the caller's side, matching
// spec.md §4.2: "the exhaustion case is not an error").
func (it *InstructionIter) Next() (Instruction, bool) {
	if it == nil || it.next == nil {
		return Instruction{}, false
	}
	return it.next()
}

// All drains the iterator into a slice. Convenience for callers that don't
// need to stream.
func (it *InstructionIter) All() []Instruction {
	var out []Instruction
	for {
		insn, ok := it.Next()
		if !ok {
			return out
		}
		out = append(out, insn)
	}
}

func newInstructionIter(next func() (Instruction, bool)) *InstructionIter {
	return &InstructionIter{next: next}
}

// NewInstructionIter builds an InstructionIter from a generator closure.
// InstructionSet backends use this to construct the lazy sequence
// Disassemble returns.
func NewInstructionIter(next func() (Instruction, bool)) *InstructionIter {
	return newInstructionIter(next)
}

// InstructionSet is one instruction set of an Architecture (e.g. ARM or
// Thumb within the ARM architecture). It owns the capability handles for
// assembling, disassembling, and translating between addresses and the
// pointer encoding a CPU register actually holds (the ARM/Thumb
// interworking bit).
type InstructionSet interface {
	EntryName() string
	EntryAltNames() []string

	// MinInsnSize and MaxInsnSize bound the size in bytes of any single
	// instruction this ISA can decode. Both are multiples of
	// InsnAlignment.
	MinInsnSize() int
	MaxInsnSize() int
	InsnAlignment() int
	// InsnSizes returns every candidate instruction size this ISA uses,
	// in ascending order (e.g. Thumb: [2, 4]; ARM64: [4]).
	InsnSizes() []int

	// Assemble assembles text at address and returns the encoded bytes,
	// or an *AssemblyError.
	Assemble(text string, address uint64) ([]byte, error)

	// Disassemble decodes data starting at address and returns a lazy
	// sequence of instructions. If maxCount > 0, at most maxCount
	// instructions are produced. Decoding stops (without error) at the
	// first invalid encoding or when data is exhausted.
	Disassemble(data []byte, address uint64, maxCount int) *InstructionIter

	// DisassembleOne decodes a single instruction at address, returning
	// a *DisassemblyError if data does not start with a valid encoding.
	DisassembleOne(data []byte, address uint64) (Instruction, error)

	// AddressToPointer and PointerToAddress translate between a
	// canonical instruction address and the value a code pointer
	// register (e.g. PC) holds for this ISA. They are identities for
	// architectures without interworking, and must be mutual inverses
	// on every addressable value.
	AddressToPointer(address uint64) uint64
	PointerToAddress(pointer uint64) uint64
}

// BaseInstructionSet implements the EntryName/EntryAltNames/MinInsnSize/...
// bookkeeping shared by every InstructionSet backend, so concrete ISAs only
// need to supply Assemble/Disassemble/DisassembleOne and (if they support
// interworking) override AddressToPointer/PointerToAddress.
type BaseInstructionSet struct {
	Name          string
	AltNames      []string
	MinSize       int
	MaxSize       int
	Alignment     int
	CandidateSizes []int
}

func (b *BaseInstructionSet) EntryName() string        { return b.Name }
func (b *BaseInstructionSet) EntryAltNames() []string   { return b.AltNames }
func (b *BaseInstructionSet) MinInsnSize() int          { return b.MinSize }
func (b *BaseInstructionSet) MaxInsnSize() int          { return b.MaxSize }
func (b *BaseInstructionSet) InsnAlignment() int        { return b.Alignment }
func (b *BaseInstructionSet) InsnSizes() []int          { return b.CandidateSizes }

// IdentityAddressToPointer and IdentityPointerToAddress are the
// non-interworking defaults: the pointer a register holds is exactly the
// instruction address.
func IdentityAddressToPointer(address uint64) uint64 { return address }
func IdentityPointerToAddress(pointer uint64) uint64 { return pointer }
