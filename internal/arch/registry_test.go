package arch

import "testing"

type fakeEntry struct {
	name string
	alts []string
}

func (f fakeEntry) EntryName() string      { return f.name }
func (f fakeEntry) EntryAltNames() []string { return f.alts }

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry[fakeEntry]("Thing")

	a := fakeEntry{name: "Foo", alts: []string{"Bar"}}
	if err := r.Register(a); err != nil {
		t.Fatalf("Register: %v", err)
	}

	for _, name := range []string{"foo", "FOO", "bar", "BaR"} {
		got, err := r.ByName(name)
		if err != nil {
			t.Fatalf("ByName(%q): %v", name, err)
		}
		if got.name != "Foo" {
			t.Errorf("ByName(%q) = %v, want Foo", name, got)
		}
	}
}

func TestRegistryDuplicateName(t *testing.T) {
	r := NewRegistry[fakeEntry]("Thing")
	if err := r.Register(fakeEntry{name: "foo"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(fakeEntry{name: "Foo"}); err == nil {
		t.Fatalf("expected a DuplicateError registering a case-variant of an existing name")
	}
	if err := r.Register(fakeEntry{name: "other", alts: []string{"foo"}}); err == nil {
		t.Fatalf("expected a DuplicateError when an alt name collides with an existing canonical name")
	}
}

func TestRegistryNotFound(t *testing.T) {
	r := NewRegistry[fakeEntry]("Thing")
	if _, err := r.ByName("missing"); err == nil {
		t.Fatalf("expected a NotFoundError")
	}
}

func TestRegistryAllPreservesOrder(t *testing.T) {
	r := NewRegistry[fakeEntry]("Thing")
	for _, name := range []string{"a", "b", "c"} {
		if err := r.Register(fakeEntry{name: name}); err != nil {
			t.Fatalf("Register(%q): %v", name, err)
		}
	}
	names := r.AllNames()
	want := []string{"a", "b", "c"}
	for i, n := range want {
		if names[i] != n {
			t.Errorf("AllNames()[%d] = %s, want %s", i, names[i], n)
		}
	}
}
