// Package intrinsics implements the Runtime Intrinsics registry (spec
// §4.5): an exact-match table from method reference to an emitter that
// turns an invocation site's already-lowered arguments directly into a
// WebAssembly expression, bypassing a real function call.
//
// Grounded on WasmTarget.java's WasmRuntimeIntrinsic wiring in
// original_source (contributeDependencies lists exactly the method
// references this package's default registry seeds: WasmRuntime.compare
// for each of i32/i64/f32/f64, WasmRuntime.remainder for f32/f64) and
// on the teacher repo's habit (internal/checker) of keying a lookup
// table by a value-typed reference struct rather than a string.
package intrinsics

import (
	"github.com/lhaig/wasmaot/internal/mangler"
	"github.com/lhaig/wasmaot/internal/model"
	"github.com/lhaig/wasmaot/internal/wasmmodel"
)

// Emitter produces a WebAssembly expression for an invocation of the
// intrinsic method, given the already-lowered receiver (nil for a
// static intrinsic) and argument expressions.
type Emitter func(receiver wasmmodel.Expr, args []wasmmodel.Expr) wasmmodel.Expr

// Registry is an exact-match, additive table of intrinsics.
type Registry struct {
	entries map[string]Emitter
}

// NewRegistry returns an empty registry. Use Default for one seeded
// with the runtime-compare/remainder group.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Emitter)}
}

// Register adds or replaces the emitter for ref. Registration is
// additive: later registrations for the same reference simply
// overwrite the earlier one, matching the registry's "lookups are
// exact-match" contract rather than erroring on redefinition.
func (r *Registry) Register(ref model.MethodRef, emit Emitter) {
	r.entries[ref.Key()] = emit
}

// Lookup returns the emitter for ref, or nil if ref is not an
// intrinsic.
func (r *Registry) Lookup(ref model.MethodRef) Emitter {
	return r.entries[ref.Key()]
}

// Has reports whether ref is registered as an intrinsic, matching
// MethodDescriptor's "is intrinsic" classification from spec §3.
func (r *Registry) Has(ref model.MethodRef) bool {
	_, ok := r.entries[ref.Key()]
	return ok
}

const wasmRuntimeClass = "org.teavm.runtime.WasmRuntime"

// Default returns a registry seeded with the "wasm runtime" intrinsic
// group named in spec §4.5: primitive compare for each numeric width,
// and floating remainder for the two float widths. Each compare
// intrinsic lowers to a three-way comparison, synthesized here from a
// pair of ordered-comparison subexpressions, since the WebAssembly
// output model has no single ternary-compare instruction of its own.
func Default() *Registry {
	r := NewRegistry()

	r.Register(compareRef("I"), compareEmitter(wasmmodel.I32, false))
	r.Register(compareRef("J"), compareEmitter(wasmmodel.I64, false))
	r.Register(compareRef("F"), compareEmitter(wasmmodel.F32, true))
	r.Register(compareRef("D"), compareEmitter(wasmmodel.F64, true))

	r.Register(remainderRef("F"), remainderEmitter("F"))
	r.Register(remainderRef("D"), remainderEmitter("D"))

	return r
}

func compareRef(paramType string) model.MethodRef {
	return model.MethodRef{
		ClassName:  wasmRuntimeClass,
		Name:       "compare",
		ParamTypes: []string{paramType, paramType},
		ReturnType: "I",
	}
}

func remainderRef(paramType string) model.MethodRef {
	return model.MethodRef{
		ClassName:  wasmRuntimeClass,
		Name:       "remainder",
		ParamTypes: []string{paramType, paramType},
		ReturnType: paramType,
	}
}

// compareEmitter builds `(a > b) - (a < b)`: 1 if a>b, -1 if a<b, 0 if
// equal — the conventional three-way comparison result, expressed with
// whichever binary-op family (int or float) the width requires.
func compareEmitter(width wasmmodel.Type, float bool) Emitter {
	return func(_ wasmmodel.Expr, args []wasmmodel.Expr) wasmmodel.Expr {
		a, b := args[0], args[1]
		var gt, lt wasmmodel.Expr
		if float {
			gt = &wasmmodel.FloatBinary{Op: wasmmodel.FloatGt, Width: width, Left: a, Right: b}
			lt = &wasmmodel.FloatBinary{Op: wasmmodel.FloatLt, Width: width, Left: a, Right: b}
		} else {
			gt = &wasmmodel.IntBinary{Op: wasmmodel.IntGtS, Width: width, Left: a, Right: b}
			lt = &wasmmodel.IntBinary{Op: wasmmodel.IntLtS, Width: width, Left: a, Right: b}
		}
		return &wasmmodel.IntBinary{Op: wasmmodel.IntSub, Width: wasmmodel.I32, Left: gt, Right: lt}
	}
}

// remainderEmitter builds the floating remainder `a - trunc(a / b) * b`
// is the textbook expansion, but this pipeline's expression model has
// no truncation node of its own (truncation is a target-level float-to-
// int-to-float round trip the decompiler never hands us directly), so
// the remainder intrinsic instead lowers to a direct call to the
// runtime helper of the same name: the "intrinsic" here is recognizing
// the reference and routing it to the symbol the Module Assembler
// already reserves reachable via the Dependency Contributor, rather
// than inlining arithmetic.
func remainderEmitter(paramType string) Emitter {
	ref := remainderRef(paramType)
	width := wasmmodel.F64
	if paramType == "F" {
		width = wasmmodel.F32
	}
	symbol := mangler.Method(ref.ClassName, ref.Name, ref.ParamTypes, ref.ReturnType)
	return func(_ wasmmodel.Expr, args []wasmmodel.Expr) wasmmodel.Expr {
		return &wasmmodel.Call{
			Symbol: symbol,
			Args:   args,
			Type:   width,
		}
	}
}
