package debug

// StackView is a word-indexed view of the guest stack relative to the
// current sp: stack[i] is the i-th word at sp + i*word_size. push/pop move
// sp by one word.
type StackView struct {
	d *Debugger
}

func newStackView(d *Debugger) *StackView { return &StackView{d: d} }

func (s *StackView) wordSize() uint64 { return uint64(s.d.arch.WordSize()) }

// At reads the i-th word as an unsigned value (callers needing a
// sign-extended value use ReadWord directly via Memory()).
func (s *StackView) At(i int) (uint64, error) {
	sp, err := s.d.Regs.SP()
	if err != nil {
		return 0, err
	}
	addr := sp + uint64(i)*s.wordSize()
	v, err := s.d.Memory().ReadWord(addr, false)
	return uint64(v), err
}

// Set writes the i-th word.
func (s *StackView) Set(i int, value uint64) error {
	sp, err := s.d.Regs.SP()
	if err != nil {
		return err
	}
	addr := sp + uint64(i)*s.wordSize()
	return s.d.Memory().WriteWord(addr, int64(value))
}

// Slice reads count consecutive words starting at index start.
func (s *StackView) Slice(start, count int) ([]uint64, error) {
	out := make([]uint64, count)
	for i := 0; i < count; i++ {
		v, err := s.At(start + i)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Push writes value at the new top of stack and decrements sp by one word.
func (s *StackView) Push(value uint64) error {
	sp, err := s.d.Regs.SP()
	if err != nil {
		return err
	}
	newSP := sp - s.wordSize()
	if err := s.d.Memory().WriteWord(newSP, int64(value)); err != nil {
		return err
	}
	return s.d.Regs.SetSP(newSP)
}

// Pop reads the word at the current top of stack and increments sp by one
// word.
func (s *StackView) Pop() (uint64, error) {
	sp, err := s.d.Regs.SP()
	if err != nil {
		return 0, err
	}
	v, err := s.d.Memory().ReadWord(sp, false)
	if err != nil {
		return 0, err
	}
	if err := s.d.Regs.SetSP(sp + s.wordSize()); err != nil {
		return 0, err
	}
	return uint64(v), nil
}
