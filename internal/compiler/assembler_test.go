package compiler

import (
	"strings"
	"testing"

	"github.com/lhaig/wasmaot/internal/diagnostic"
	"github.com/lhaig/wasmaot/internal/ir"
	"github.com/lhaig/wasmaot/internal/layout"
	"github.com/lhaig/wasmaot/internal/mangler"
	"github.com/lhaig/wasmaot/internal/model"
	"github.com/lhaig/wasmaot/internal/wasmmodel"
)

func returningBody(value int64) *model.MethodBody {
	return &model.MethodBody{Stmts: []ir.Stmt{&ir.ReturnStmt{Value: &ir.IntLit{Value: value, Type: "I"}}}}
}

func clinit(className string, ret *model.MethodBody) *model.MethodDescriptor {
	return &model.MethodDescriptor{
		Ref:  model.MethodRef{ClassName: className, Name: "<clinit>", ReturnType: "V"},
		Body: ret,
	}
}

// Scenario 1 (spec §8): single class, no methods, no static init.
func TestEmitSingleClassNoMethods(t *testing.T) {
	a := &model.ClassDescriptor{Name: "A"}
	universe := model.NewUniverse([]*model.ClassDescriptor{a})
	controller := NewSimpleController(nil)

	module := Emit(universe, controller)
	if module == nil {
		t.Fatalf("expected a module, got nil")
	}

	start := module.Find("__start__")
	if start == nil {
		t.Fatalf("expected a __start__ function")
	}
	if module.StartFunction != "__start__" {
		t.Fatalf("expected __start__ designated as start function, got %q", module.StartFunction)
	}
	for _, e := range start.Body {
		if _, ok := e.(*wasmmodel.Call); ok {
			t.Fatalf("expected no clinit calls in __start__, found a Call")
		}
	}
	if len(start.Body) != 4 {
		t.Fatalf("expected exactly the 4-store memory-initializer contribution for one class, got %d exprs", len(start.Body))
	}

	for _, fn := range module.Functions {
		if fn.ExportName != "" {
			t.Fatalf("expected no exports, found export %q on %s", fn.ExportName, fn.Name)
		}
	}

	allocInit := module.Find(mangler.Method(allocatorClass, "initialize", nil, addressType))
	if allocInit == nil {
		t.Fatalf("expected the synthesized Allocator.initialize function")
	}
	ret, ok := allocInit.Body[0].(*wasmmodel.Return)
	if !ok {
		t.Fatalf("expected Allocator.initialize to return a constant")
	}
	constVal, ok := ret.Value.(*wasmmodel.Int32Constant)
	if !ok || constVal.Value != layout.HeapAlignment {
		t.Fatalf("expected heap origin %d, got %#v", layout.HeapAlignment, ret.Value)
	}
}

// Scenario 2 (spec §8): static initializer ordering across two classes.
func TestEmitOrdersStaticInitializersByClassUniverseOrder(t *testing.T) {
	a := &model.ClassDescriptor{
		Name:        "A",
		Annotations: map[string]model.Annotation{model.StaticInitAnnotation: {}},
		Methods:     []*model.MethodDescriptor{clinit("A", returningBody(0))},
	}
	b := &model.ClassDescriptor{
		Name:        "B",
		Annotations: map[string]model.Annotation{model.StaticInitAnnotation: {}},
		Methods:     []*model.MethodDescriptor{clinit("B", returningBody(0))},
	}
	universe := model.NewUniverse([]*model.ClassDescriptor{a, b})
	controller := NewSimpleController(nil)

	module := Emit(universe, controller)
	if module == nil {
		t.Fatalf("expected a module, got nil")
	}

	start := module.Find("__start__")
	var calls []string
	for _, e := range start.Body {
		if c, ok := e.(*wasmmodel.Call); ok {
			calls = append(calls, c.Symbol)
		}
	}
	wantA, wantB := mangler.Initializer("A"), mangler.Initializer("B")
	if len(calls) != 2 || calls[0] != wantA || calls[1] != wantB {
		t.Fatalf("expected __start__ to call [%s %s] in order, got %v", wantA, wantB, calls)
	}

	// Each wrapper's body is the guard-then-store-then-call block (spec
	// §9: guard first, store second, call third, all as siblings).
	wrapper := module.Find(wantA)
	if wrapper == nil {
		t.Fatalf("expected initializer wrapper for A")
	}
	block, ok := wrapper.Body[0].(*wasmmodel.Block)
	if !ok || len(block.Body) != 3 {
		t.Fatalf("expected a single 3-statement guard block, got %#v", wrapper.Body)
	}
	if _, ok := block.Body[0].(*wasmmodel.Branch); !ok {
		t.Fatalf("expected the guard branch first, got %#v", block.Body[0])
	}
	if _, ok := block.Body[1].(*wasmmodel.StoreInt32); !ok {
		t.Fatalf("expected the flag store second, got %#v", block.Body[1])
	}
	if _, ok := block.Body[2].(*wasmmodel.Call); !ok {
		t.Fatalf("expected the original clinit call third, got %#v", block.Body[2])
	}
}

// A class with a <clinit> but no StaticInit annotation still gets a
// wrapper synthesized (step 4 applies to every class with a <clinit>),
// but __start__ never calls it (step 5 only calls StaticInit classes).
func TestClinitWrapperWithoutStaticInitIsNeverCalledFromStart(t *testing.T) {
	a := &model.ClassDescriptor{
		Name:    "A",
		Methods: []*model.MethodDescriptor{clinit("A", returningBody(0))},
	}
	universe := model.NewUniverse([]*model.ClassDescriptor{a})
	controller := NewSimpleController(nil)

	module := Emit(universe, controller)
	if module.Find(mangler.Initializer("A")) == nil {
		t.Fatalf("expected A's initializer wrapper to still be synthesized")
	}
	start := module.Find("__start__")
	for _, e := range start.Body {
		if _, ok := e.(*wasmmodel.Call); ok {
			t.Fatalf("expected no calls in __start__ for a class without StaticInit")
		}
	}
}

// Scenario 4 (spec §8): native method without Import on a non-sentinel
// class is diagnosed and skipped; other methods still compile.
func TestEmitDiagnosesNativeWithoutImport(t *testing.T) {
	x := &model.ClassDescriptor{
		Name: "X",
		Methods: []*model.MethodDescriptor{
			{Ref: model.MethodRef{ClassName: "X", Name: "foo", ReturnType: "V"}, Modifiers: model.ModNative},
			{Ref: model.MethodRef{ClassName: "X", Name: "bar", ReturnType: "I"}, Body: returningBody(7)},
		},
	}
	universe := model.NewUniverse([]*model.ClassDescriptor{x})
	controller := NewSimpleController(nil)

	module := Emit(universe, controller)
	if module == nil {
		t.Fatalf("expected a module, got nil")
	}

	if controller.Diagnostics().Count() != 1 {
		t.Fatalf("expected exactly one diagnostic, got %d", controller.Diagnostics().Count())
	}
	diag := controller.Diagnostics().All()[0]
	if diag.Severity != diagnostic.Error {
		t.Fatalf("expected an error-severity diagnostic, got %v", diag.Severity)
	}
	if !strings.Contains(diag.Message, "X.foo") {
		t.Fatalf("expected diagnostic to reference X.foo, got %q", diag.Message)
	}

	if module.Find(mangler.Method("X", "foo", nil, "V")) != nil {
		t.Fatalf("expected no function emitted for the undiagnosable native foo")
	}
	if module.Find(mangler.Method("X", "bar", nil, "I")) == nil {
		t.Fatalf("expected bar to still compile")
	}
}

// Scenario 5 (spec §8): native methods on Address/Structure are
// silently skipped, no diagnostic, no function.
func TestEmitSkipsSentinelNativesSilently(t *testing.T) {
	addr := &model.ClassDescriptor{
		Name: model.AddressClass,
		Methods: []*model.MethodDescriptor{
			{Ref: model.MethodRef{ClassName: model.AddressClass, Name: "toLong", ReturnType: "J"}, Modifiers: model.ModNative},
		},
	}
	universe := model.NewUniverse([]*model.ClassDescriptor{addr})
	controller := NewSimpleController(nil)

	module := Emit(universe, controller)
	if module == nil {
		t.Fatalf("expected a module, got nil")
	}
	if controller.Diagnostics().Count() != 0 {
		t.Fatalf("expected no diagnostics for a sentinel native, got %d", controller.Diagnostics().Count())
	}
	if module.Find(mangler.Method(model.AddressClass, "toLong", nil, "J")) != nil {
		t.Fatalf("expected no function emitted for Address.toLong")
	}
}

// Scenario 6 (spec §8): entry-point export wiring, and the "missing
// function is silently tolerated" case.
func TestEmitWiresReachableEntryPointsAndIgnoresUnreachableOnes(t *testing.T) {
	app := &model.ClassDescriptor{
		Name: "App",
		Methods: []*model.MethodDescriptor{
			{Ref: model.MethodRef{ClassName: "App", Name: "main", ReturnType: "V"}, Body: &model.MethodBody{Stmts: []ir.Stmt{&ir.ReturnStmt{}}}},
		},
	}
	universe := model.NewUniverse([]*model.ClassDescriptor{app})
	controller := NewSimpleController(map[string]model.MethodRef{
		"main":    {ClassName: "App", Name: "main", ReturnType: "V"},
		"missing": {ClassName: "App", Name: "doesNotExist", ReturnType: "V"},
	})

	module := Emit(universe, controller)
	if module == nil {
		t.Fatalf("expected a module, got nil")
	}

	mainFn := module.Find(mangler.Method("App", "main", nil, "V"))
	if mainFn == nil || mainFn.ExportName != "main" {
		t.Fatalf("expected App.main exported as %q, got %#v", "main", mainFn)
	}

	for _, fn := range module.Functions {
		if fn.ExportName == "missing" {
			t.Fatalf("expected no export for an unreachable entry point")
		}
	}
	if controller.Diagnostics().HasErrors() {
		t.Fatalf("a missing entry-point target must not raise an error")
	}
}

// Cancellation at any checkpoint produces no module (spec §5, §8).
func TestEmitCancellationProducesNoModule(t *testing.T) {
	a := &model.ClassDescriptor{Name: "A"}
	universe := model.NewUniverse([]*model.ClassDescriptor{a})
	controller := NewSimpleController(nil)
	controller.Cancel()

	module := Emit(universe, controller)
	if module != nil {
		t.Fatalf("expected cancellation before any work to produce no module")
	}
}

// Determinism (spec §8): two Emit calls over the same universe produce
// structurally identical modules.
func TestEmitIsDeterministic(t *testing.T) {
	build := func() *wasmmodel.Module {
		a := &model.ClassDescriptor{
			Name:        "A",
			Annotations: map[string]model.Annotation{model.StaticInitAnnotation: {}},
			Methods:     []*model.MethodDescriptor{clinit("A", returningBody(1))},
		}
		universe := model.NewUniverse([]*model.ClassDescriptor{a})
		return Emit(universe, NewSimpleController(nil))
	}

	m1, m2 := build(), build()
	if len(m1.Functions) != len(m2.Functions) {
		t.Fatalf("expected identical function counts, got %d vs %d", len(m1.Functions), len(m2.Functions))
	}
	for i := range m1.Functions {
		if m1.Functions[i].Name != m2.Functions[i].Name {
			t.Fatalf("function %d diverged: %q vs %q", i, m1.Functions[i].Name, m2.Functions[i].Name)
		}
	}
	if m1.StartFunction != m2.StartFunction {
		t.Fatalf("start function diverged")
	}
}
