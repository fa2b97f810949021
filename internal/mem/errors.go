package mem

import (
	"fmt"

	"github.com/lodestone-re/lodestone/internal/arch"
)

// FaultCause classifies why a memory access could not be satisfied.
type FaultCause int

const (
	// Unmapped means no segment covers the address at all.
	Unmapped FaultCause = iota
	// Protected means a segment covers the address but lacks the
	// permission the access required.
	Protected
	// OutOfRange means the address is covered but the requested size
	// runs past the end of the covering segment/buffer.
	OutOfRange
)

func (c FaultCause) String() string {
	switch c {
	case Protected:
		return "protected"
	case OutOfRange:
		return "out_of_range"
	default:
		return "unmapped"
	}
}

// AccessError is raised whenever a Memory operation touches an address not
// covered by a segment, or covered with insufficient permissions. It always
// carries the offending Access record.
type AccessError struct {
	Access arch.Access
	Cause  FaultCause
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("%s access to 0x%x (size %d): %s", e.Access.Type, e.Access.Address, e.Access.Size, e.Cause)
}

// NotFound and Duplicate are re-exported so callers of this package never
// need to import internal/arch just to type-switch on a registry error.
type NotFoundError = arch.NotFoundError
type DuplicateError = arch.DuplicateError
