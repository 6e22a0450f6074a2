package diagnostic

import "testing"

func TestExpandSubstitutesPositionalPlaceholders(t *testing.T) {
	got := Expand("method {{m0}} is native but has no {{c1}} annotation on it", "Foo.bar", "Import")
	want := "method Foo.bar is native but has no Import annotation on it"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestExpandLeavesOutOfRangePlaceholderUntouched(t *testing.T) {
	got := Expand("{{m5}} unused")
	if got != "{{m5}} unused" {
		t.Fatalf("expected an out-of-range placeholder to be left as-is, got %q", got)
	}
}

func TestSinkAccumulatesAndFormats(t *testing.T) {
	s := New()
	s.Error(Location{ClassName: "X", MethodName: "foo"}, "native method {{m0}} has no Import annotation", "X.foo")
	if !s.HasErrors() {
		t.Fatalf("expected HasErrors to be true after recording an error")
	}
	if s.Count() != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", s.Count())
	}
	formatted := s.Format()
	if formatted == "" {
		t.Fatalf("expected non-empty formatted output")
	}
}

func TestFatalErrorMessage(t *testing.T) {
	err := NewFatal("mangling collision between %s and %s", "a", "b")
	if err.Error() == "" {
		t.Fatalf("expected a non-empty error message")
	}
}
