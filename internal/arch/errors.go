package arch

import "fmt"

// NotFoundError is returned when a registry or set lookup finds no match.
type NotFoundError struct {
	Kind string // e.g. "Architecture", "register"
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Kind, e.Name)
}

// DuplicateError is returned when registering an entry whose canonical or
// alternate name collides with one already present.
type DuplicateError struct {
	Kind string
	Name string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s %q is already registered", e.Kind, e.Name)
}

// AssemblyError is returned by InstructionSet.Assemble when the backend
// fails to assemble the given text.
type AssemblyError struct {
	Text string
	Err  error
}

func (e *AssemblyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("assembly failed for %q: %v", e.Text, e.Err)
	}
	return fmt.Sprintf("assembly failed for %q", e.Text)
}

func (e *AssemblyError) Unwrap() error { return e.Err }

// DisassemblyError is returned when no valid instruction could be decoded
// at a given address.
type DisassemblyError struct {
	Address uint64
	Err     error
}

func (e *DisassemblyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid instruction at 0x%x: %v", e.Address, e.Err)
	}
	return fmt.Sprintf("invalid instruction at 0x%x", e.Address)
}

func (e *DisassemblyError) Unwrap() error { return e.Err }
