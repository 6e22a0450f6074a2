package compiler

import (
	"testing"

	"github.com/lhaig/wasmaot/internal/model"
)

type recordingReachability struct {
	used []model.MethodRef
}

func (r *recordingReachability) Use(ref model.MethodRef) { r.used = append(r.used, ref) }

// ContributeDependencies must announce the fixed WasmRuntime/Allocator
// set spec §4.7 names regardless of what the linked universe actually
// calls, so the reachability engine never tree-shakes them away.
func TestContributeDependenciesAnnouncesFixedRuntimeSet(t *testing.T) {
	r := &recordingReachability{}
	ContributeDependencies(r)

	want := map[string]bool{
		model.MethodRef{ClassName: wasmRuntimeClass, Name: "compare", ParamTypes: []string{"I", "I"}, ReturnType: "I"}.Key():                 true,
		model.MethodRef{ClassName: wasmRuntimeClass, Name: "compare", ParamTypes: []string{"J", "J"}, ReturnType: "I"}.Key():                 true,
		model.MethodRef{ClassName: wasmRuntimeClass, Name: "compare", ParamTypes: []string{"F", "F"}, ReturnType: "I"}.Key():                 true,
		model.MethodRef{ClassName: wasmRuntimeClass, Name: "compare", ParamTypes: []string{"D", "D"}, ReturnType: "I"}.Key():                 true,
		model.MethodRef{ClassName: wasmRuntimeClass, Name: "remainder", ParamTypes: []string{"F", "F"}, ReturnType: "F"}.Key():               true,
		model.MethodRef{ClassName: wasmRuntimeClass, Name: "remainder", ParamTypes: []string{"D", "D"}, ReturnType: "D"}.Key():               true,
		model.MethodRef{ClassName: allocatorClass, Name: "allocate", ParamTypes: []string{runtimeClassType}, ReturnType: addressType}.Key(): true,
		model.MethodRef{ClassName: allocatorClass, Name: "<clinit>", ReturnType: "V"}.Key():                                                 true,
	}

	if len(r.used) != len(want) {
		t.Fatalf("expected %d announced refs, got %d: %+v", len(want), len(r.used), r.used)
	}
	for _, ref := range r.used {
		if !want[ref.Key()] {
			t.Fatalf("unexpected announced ref %+v", ref)
		}
	}
}

// Idempotent: a second call re-announces the same fixed set rather
// than accumulating or skipping.
func TestContributeDependenciesIsIdempotent(t *testing.T) {
	r1, r2 := &recordingReachability{}, &recordingReachability{}
	ContributeDependencies(r1)
	ContributeDependencies(r1)
	ContributeDependencies(r2)

	if len(r1.used) != 2*len(r2.used) {
		t.Fatalf("expected calling twice to double the announcements: got %d vs %d", len(r1.used), len(r2.used))
	}
}

func TestSimpleControllerCancelIsObservedByWasCancelled(t *testing.T) {
	c := NewSimpleController(nil)
	if c.WasCancelled() {
		t.Fatalf("expected a fresh controller to not be cancelled")
	}
	c.Cancel()
	if !c.WasCancelled() {
		t.Fatalf("expected WasCancelled to observe Cancel()")
	}
}

func TestNewSimpleControllerNilEntryPointsBecomesEmptyMap(t *testing.T) {
	c := NewSimpleController(nil)
	if c.EntryPoints() == nil {
		t.Fatalf("expected a non-nil empty entry point map, got nil")
	}
	if len(c.EntryPoints()) != 0 {
		t.Fatalf("expected no entry points, got %v", c.EntryPoints())
	}
}
