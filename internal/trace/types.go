// Package trace provides types for recording and annotating the stream of
// hook events a debug.Debugger emits during a run: instruction execution,
// memory access and faults, generalized from the teacher's key-extraction
// flavored event tags (spec.md §4.5) into the generic hook categories
// CODE/READ/WRITE/FAULT/BREAKPOINT.
package trace

import "time"

// Tag represents a trace event category. Tags are stored without a "#"
// prefix; the prefix is added on rendering.
type Tag string

// Standard tags for trace events, one per debug.HookKind, plus Breakpoint
// (added by DefaultEnricher to named code events) and Fault for events
// synthesized from a debug.StopReason rather than a user hook.
const (
	Code       Tag = "code"
	Read       Tag = "read"
	Write      Tag = "write"
	Breakpoint Tag = "breakpoint"
	Fault      Tag = "fault"
)

// Tags is a collection of tags with helper methods.
type Tags []Tag

// Has returns true if the tag collection contains the given tag.
func (t Tags) Has(tag Tag) bool {
	for _, x := range t {
		if x == tag {
			return true
		}
	}
	return false
}

// Add adds a tag if not already present.
func (t *Tags) Add(tag Tag) {
	if !t.Has(tag) {
		*t = append(*t, tag)
	}
}

// Strings returns tags as strings with a "#" prefix for display.
func (t Tags) Strings() []string {
	out := make([]string, len(t))
	for i, tag := range t {
		out[i] = "#" + string(tag)
	}
	return out
}

// Raw returns tags as strings without the "#" prefix.
func (t Tags) Raw() []string {
	out := make([]string, len(t))
	for i, tag := range t {
		out[i] = string(tag)
	}
	return out
}

// Primary returns the first tag, or empty string if none.
func (t Tags) Primary() Tag {
	if len(t) > 0 {
		return t[0]
	}
	return ""
}

// Annotations holds key-value metadata for trace events.
type Annotations map[string]string

// Set adds or updates an annotation.
func (a Annotations) Set(k, v string) {
	a[k] = v
}

// Get retrieves an annotation value.
func (a Annotations) Get(k string) string {
	return a[k]
}

// Has returns true if the annotation exists.
func (a Annotations) Has(k string) bool {
	_, ok := a[k]
	return ok
}

// Event represents one recorded hook firing: the address it fired at, the
// category of hook, and whatever detail the caller wants attached (e.g. the
// disassembled instruction text for a code hook, or "size=4" for an access).
type Event struct {
	PC          uint64      // address the hook fired at
	Tags        Tags        // category tags, first is primary
	Name        string      // short label, e.g. a breakpoint's name or a fault's kind
	Detail      string      // free-form detail, e.g. disassembly text or "size=4"
	Annotations Annotations // key-value metadata
	Timestamp   time.Time   // when the event was recorded
}

// NewEvent creates a new trace event with the given parameters.
func NewEvent(pc uint64, category, name, detail string) *Event {
	return &Event{
		PC:          pc,
		Tags:        Tags{Tag(category)},
		Name:        name,
		Detail:      detail,
		Annotations: make(Annotations),
		Timestamp:   time.Now(),
	}
}

// AddTag adds a tag to the event.
func (e *Event) AddTag(tag Tag) {
	e.Tags.Add(tag)
}

// Annotate sets an annotation on the event.
func (e *Event) Annotate(k, v string) {
	if e.Annotations == nil {
		e.Annotations = make(Annotations)
	}
	e.Annotations.Set(k, v)
}

// PrimaryTag returns the primary (first) tag with a "#" prefix.
func (e *Event) PrimaryTag() string {
	if len(e.Tags) > 0 {
		return "#" + string(e.Tags[0])
	}
	return ""
}

// Enricher enriches trace events based on category and name.
type Enricher func(e *Event)

// DefaultEnricher adds the breakpoint tag to any named code event — the one
// case the bare hook category doesn't already distinguish on its own (a
// user-named breakpoint versus an anonymous code hook installed for, say,
// single-stepping).
func DefaultEnricher(e *Event) {
	if e.Tags.Primary() == Code && e.Name != "" {
		e.AddTag(Breakpoint)
	}
}
