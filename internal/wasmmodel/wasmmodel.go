// Package wasmmodel is the output data model (spec §3, §6): the
// WebAssembly module the lowering pipeline builds, handed off to an
// external textual renderer that this repository does not implement
// (spec §1 keeps "the textual WebAssembly renderer" as an out-of-scope
// collaborator — we specify only the module it serializes).
//
// Names follow org.teavm.wasm.model.* from the original TeaVM source
// (WasmModule, WasmFunction, WasmType, WasmBlock, WasmBranch, WasmCall,
// WasmIndirectCall, WasmLoadInt32, WasmStoreInt32, WasmIntBinary,
// WasmReturn, WasmInt32Constant), ported into a single Go tagged
// variant in the style of internal/ir rather than a Java class
// hierarchy, per spec §9's preference for exhaustive case analysis
// over visitor double-dispatch.
package wasmmodel

// Type is a WebAssembly value type.
type Type int

const (
	I32 Type = iota
	I64
	F32
	F64
	Void // not a real value type; used for "no result"
)

// PageSize is the fixed WebAssembly page size (64 KiB), used to report
// the total byte budget a module's declared page count represents.
const PageSize = 64 * 1024

// Import describes a function imported from a host module. The
// function pass creates one for every native method carrying the
// Import annotation, whether or not any call site references it.
type Import struct {
	Module string
	Name   string
}

// Function is one function in the module: either a local definition
// with a Body, or an import (Import != nil and Body == nil).
type Function struct {
	Name       string // mangled symbol
	Params     []Type
	Result     Type // Void for no result
	Body       []Expr
	ExportName string // "" if not exported
	Import     *Import
}

// FuncType is an entry in the module's function-type table, used to
// resolve WasmIndirectCall targets. Built by the Module Assembler
// itself (see Module.Signatures) rather than left to the renderer,
// since the renderer is out of scope and the module must be
// self-contained (SPEC_FULL §12).
type FuncType struct {
	Symbol string // mangled signature symbol, see internal/mangler.Signature
	Params []Type
	Result Type
}

// Module is the complete output (spec §3's WasmModule).
type Module struct {
	Functions  []*Function
	Signatures []FuncType
	// FunctionTable is the flat table call_indirect resolves against
	// (spec §6: "contains exactly the virtual-dispatch targets;
	// entries addressed by per-class slot indices"). Symbol "" marks a
	// slot with no resolved target (an unresolved virtual dispatch,
	// spec §4.2's trap-stub case).
	FunctionTable []string
	MemoryPages   int    // initial page count; no maximum is set (spec §9 open question)
	StartFunction string // mangled symbol of the designated start function, "" if none
}

// AddFunction appends fn and returns it.
func (m *Module) AddFunction(fn *Function) *Function {
	m.Functions = append(m.Functions, fn)
	return fn
}

// Find returns the function with the given mangled symbol, or nil.
func (m *Module) Find(symbol string) *Function {
	for _, f := range m.Functions {
		if f.Name == symbol {
			return f
		}
	}
	return nil
}

// SignatureIndex returns the function-type table index for (params,
// result), adding a new entry if this exact shape has not been seen
// before. Entries are matched by shape only; symbol is recorded as the
// new entry's name and is not consulted by the lookup, so equal
// shapes reuse the same index regardless of symbol spelling, since two
// different MethodRefs with the same parameter/result shape share one
// indirect-call type.
func (m *Module) SignatureIndex(symbol string, params []Type, result Type) int {
	for i, sig := range m.Signatures {
		if sameShape(sig.Params, params) && sig.Result == result {
			return i
		}
	}
	idx := len(m.Signatures)
	m.Signatures = append(m.Signatures, FuncType{Symbol: symbol, Params: params, Result: result})
	return idx
}

func sameShape(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// --- Expressions ---

// Expr is the interface implemented by every WASM expression/statement
// node this pipeline emits. Function bodies and block bodies are both
// just []Expr; WebAssembly's stack-machine model makes statements and
// expressions the same kind of node (a dropped-result expression is a
// statement).
type Expr interface {
	wasmExprNode()
}

// BranchTarget is implemented by Block and Loop: the two node kinds a
// Branch may identify, by pointer identity, as where control transfers
// to. Branching to a Block exits it; branching to a Loop jumps back to
// its start, matching WasmBranch(condition, block) in the original
// source, where WasmBlock itself doubles as WasmLoop's base type.
type BranchTarget interface {
	wasmBranchTarget()
}

// Block groups a sequence of expressions under one branch target.
// Branching out of a Block is how the clinit guard (spec §9) and
// general control flow are expressed.
type Block struct {
	Body []Expr
}

func (*Block) wasmExprNode()     {}
func (*Block) wasmBranchTarget() {}

// Branch exits the named Block when Condition evaluates non-zero (an
// i32 "br_if" in WebAssembly terms), or jumps back to the top of the
// named Loop. Target identifies the destination by pointer identity.
type Branch struct {
	Condition Expr
	Target    BranchTarget
}

func (*Branch) wasmExprNode() {}

// Loop is a block whose branch target jumps back to its own start
// rather than out of it.
type Loop struct {
	Body []Expr
}

func (*Loop) wasmExprNode()     {}
func (*Loop) wasmBranchTarget() {}

// If is a structured conditional.
type If struct {
	Condition Expr
	Then      []Expr
	Else      []Expr // nil if there is no else branch
}

func (*If) wasmExprNode() {}

// Call invokes a direct (non-virtual) function by mangled symbol.
type Call struct {
	Symbol string
	Args   []Expr
	Type   Type
}

func (*Call) wasmExprNode() {}

// IndirectCall invokes a function looked up in the dispatch table at
// runtime: TableIndex evaluates to the slot, TypeIndex names the
// function-type table entry (Module.Signatures[TypeIndex]) the callee
// must match, populated via Module.SignatureIndex when this node is
// built (SPEC_FULL §12).
type IndirectCall struct {
	TableIndex Expr
	Args       []Expr
	TypeIndex  int
}

func (*IndirectCall) wasmExprNode() {}

// Return exits the current function, optionally with a value.
type Return struct {
	Value Expr // nil for a bare return
}

func (*Return) wasmExprNode() {}

// LocalGet / LocalSet reference a function-local variable by index.
type LocalGet struct {
	Index int
	Type  Type
}

func (*LocalGet) wasmExprNode() {}

type LocalSet struct {
	Index int
	Value Expr
}

func (*LocalSet) wasmExprNode() {}

// LocalTee evaluates Value, stores it into the local at Index, and
// yields the same value in place — the one correct way to spill an
// expression with side effects into a local and still consume it
// where it's used, matching the original encoder's own opLocalTee
// (0x22), which this repository's expression tree never previously
// reached for.
type LocalTee struct {
	Index int
	Value Expr
}

func (*LocalTee) wasmExprNode() {}

// LoadInt32 / StoreInt32 access linear memory at Offset bytes past
// Address, matching WasmLoadInt32/WasmStoreInt32 from the original
// source (used for class-record and field access).
type LoadInt32 struct {
	Offset  int
	Address Expr
}

func (*LoadInt32) wasmExprNode() {}

type StoreInt32 struct {
	Offset  int
	Address Expr
	Value   Expr
}

func (*StoreInt32) wasmExprNode() {}

// IntBinaryOp / IntBinary mirror WasmIntBinaryOperation/WasmIntBinary:
// integer arithmetic and bitwise operations at a given width.
type IntBinaryOp int

const (
	IntAdd IntBinaryOp = iota
	IntSub
	IntMul
	IntDivS
	IntRemS
	IntAnd
	IntOr
	IntXor
	IntEq
	IntNe
	IntLtS
	IntGtS
	IntLeS
	IntGeS
)

type IntBinary struct {
	Op    IntBinaryOp
	Width Type // I32 or I64
	Left  Expr
	Right Expr
}

func (*IntBinary) wasmExprNode() {}

// FloatBinaryOp / FloatBinary mirror float arithmetic/comparison.
type FloatBinaryOp int

const (
	FloatAdd FloatBinaryOp = iota
	FloatSub
	FloatMul
	FloatDiv
	FloatEq
	FloatNe
	FloatLt
	FloatGt
	FloatLe
	FloatGe
)

type FloatBinary struct {
	Op    FloatBinaryOp
	Width Type // F32 or F64
	Left  Expr
	Right Expr
}

func (*FloatBinary) wasmExprNode() {}

// Eqz tests an i32/i64 operand against zero (used for boolean negation
// and loop-exit conditions).
type Eqz struct {
	Operand Expr
	Width   Type
}

func (*Eqz) wasmExprNode() {}

// Int32Constant / Int64Constant / Float32Constant / Float64Constant
// are literal push expressions.
type Int32Constant struct{ Value int32 }

func (*Int32Constant) wasmExprNode() {}

type Int64Constant struct{ Value int64 }

func (*Int64Constant) wasmExprNode() {}

type Float32Constant struct{ Value float32 }

func (*Float32Constant) wasmExprNode() {}

type Float64Constant struct{ Value float64 }

func (*Float64Constant) wasmExprNode() {}

// Drop discards a value left on the stack by an expression used as a
// statement.
type Drop struct {
	Value Expr
}

func (*Drop) wasmExprNode() {}

// Unreachable is a trap stub, emitted by the expression generator in
// place of an expression it cannot lower: a virtual call whose
// signature has no slot in the receiver's table, an unknown local, or
// a class or field with no layout. Unresolved function-table slots are
// marked by an empty symbol in Module.FunctionTable instead.
type Unreachable struct{}

func (*Unreachable) wasmExprNode() {}
