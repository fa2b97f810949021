// Package arch describes CPU families (Architecture) and their instruction
// sets (InstructionSet), and holds the process-wide registry of both.
//
// This mirrors megastone's db.DatabaseEntry: a generic, name-indexed,
// write-once-at-startup catalog. Go has no runtime subclass registration,
// so instead of one base class with per-subclass `_instances` tables we use
// one generic Registry[T] instantiated per catalog kind.
package arch

import "sync"

// Named is implemented by anything that can be registered in a Registry:
// it must expose a canonical name and a set of alternate names.
type Named interface {
	EntryName() string
	EntryAltNames() []string
}

// Registry is a name-indexed, case-insensitive catalog. Lookups match
// either the canonical name or any alternate name. Registration order is
// preserved by All/AllNames. A Registry is safe for concurrent lookups
// once populated; Register should only be called during startup.
type Registry[T Named] struct {
	mu      sync.RWMutex
	byName  map[string]T
	entries []T
	kind    string
}

// NewRegistry creates an empty registry. kind is used only to format
// NotFoundError/DuplicateError messages (e.g. "Architecture").
func NewRegistry[T Named](kind string) *Registry[T] {
	return &Registry[T]{
		byName: make(map[string]T),
		kind:   kind,
	}
}

// Register adds entry to the catalog under its canonical name and all of
// its alternate names. It fails if any of those names is already taken.
func (r *Registry[T]) Register(entry T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := append([]string{entry.EntryName()}, entry.EntryAltNames()...)
	for _, n := range names {
		key := normalizeName(n)
		if _, ok := r.byName[key]; ok {
			return &DuplicateError{Kind: r.kind, Name: n}
		}
	}
	for _, n := range names {
		r.byName[normalizeName(n)] = entry
	}
	r.entries = append(r.entries, entry)
	return nil
}

// ByName returns the entry registered under name (canonical or alternate),
// matched case-insensitively.
func (r *Registry[T]) ByName(name string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.byName[normalizeName(name)]
	if !ok {
		var zero T
		return zero, &NotFoundError{Kind: r.kind, Name: name}
	}
	return entry, nil
}

// All returns every registered entry in registration order.
func (r *Registry[T]) All() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, len(r.entries))
	copy(out, r.entries)
	return out
}

// AllNames returns the canonical name of every registered entry, in
// registration order.
func (r *Registry[T]) AllNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.EntryName()
	}
	return out
}

func normalizeName(name string) string {
	// Architectures and registers only ever use ASCII names, so a manual
	// lowercase avoids pulling in unicode case folding for a hot path.
	b := []byte(name)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
