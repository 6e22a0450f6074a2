// Package vtable implements the Virtual Table Provider (spec §4.2):
// it scans every method body in the universe for virtual call sites,
// then builds, for each class, an ordered dispatch table keyed by
// method signature.
//
// Grounded directly on WasmTarget.createVirtualTableProvider in
// original_source: collect every InvocationType.VIRTUAL target into a
// set, then hand that set plus the ClassUniverse to the table builder.
package vtable

import (
	"sort"

	"github.com/lhaig/wasmaot/internal/ir"
	"github.com/lhaig/wasmaot/internal/model"
)

// Signature identifies a dispatch slot: name, parameter types, return
// type — deliberately excludes the owning class, since overrides in a
// subclass must land in the same slot as the method they override.
type Signature struct {
	Name       string
	ParamTypes string // joined, see sigOf
	ReturnType string
}

func sigOf(ref model.MethodRef) Signature {
	key := ""
	for _, p := range ref.ParamTypes {
		key += p + ","
	}
	return Signature{Name: ref.Name, ParamTypes: key, ReturnType: ref.ReturnType}
}

// Slot is one entry in a class's dispatch table. A zero-value Target
// means the slot was inherited but never implemented by any ancestor
// that introduced it — a linker-level contract violation this package
// does not itself diagnose (see buildTable).
type Slot struct {
	Signature Signature
	Target    model.MethodRef
}

// Table is one class's ordered dispatch table.
type Table struct {
	Slots []Slot
}

// IndexOf returns the slot index for sig, or -1 if the class's table
// has no such slot (the method is never invoked virtually anywhere).
func (t *Table) IndexOf(sig Signature) int {
	for i, s := range t.Slots {
		if s.Signature == sig {
			return i
		}
	}
	return -1
}

// Provider holds the built per-class tables, produced once and
// thereafter read-only (spec §5's sharing rule).
type Provider struct {
	tables  map[string]*Table
	virtual map[Signature]bool
}

// Build scans classes for virtual call sites and constructs per-class
// dispatch tables by walking the hierarchy in a deterministic preorder
// (ClassUniverse order, since the universe's own iteration order is
// already a stable topological-ish listing the front end guarantees;
// we still walk superclass chains explicitly below rather than assume
// superclasses precede subclasses in that order).
func Build(classes *model.ClassUniverse) *Provider {
	p := &Provider{
		tables:  make(map[string]*Table),
		virtual: collectVirtualMethods(classes),
	}
	for _, name := range classes.ClassNames() {
		p.buildTable(classes, name)
	}
	return p
}

func collectVirtualMethods(classes *model.ClassUniverse) map[Signature]bool {
	virtual := make(map[Signature]bool)
	for _, name := range classes.ClassNames() {
		cls := classes.Get(name)
		for _, m := range cls.Methods {
			if m.Body == nil {
				continue
			}
			walkStmts(m.Body.Stmts, virtual)
		}
	}
	return virtual
}

func walkStmts(stmts []ir.Stmt, out map[Signature]bool) {
	for _, s := range stmts {
		switch st := s.(type) {
		case *ir.LetStmt:
			walkExpr(st.Value, out)
		case *ir.AssignStmt:
			walkExpr(st.Target, out)
			walkExpr(st.Value, out)
		case *ir.ReturnStmt:
			walkExpr(st.Value, out)
		case *ir.IfStmt:
			walkExpr(st.Condition, out)
			walkStmts(st.Then, out)
			walkStmts(st.Else, out)
		case *ir.WhileStmt:
			walkExpr(st.Condition, out)
			walkStmts(st.Body, out)
		case *ir.ExprStmt:
			walkExpr(st.Expr, out)
		}
	}
}

func walkExpr(e ir.Expr, out map[Signature]bool) {
	switch ex := e.(type) {
	case nil:
		return
	case *ir.InvokeExpr:
		walkExpr(ex.Receiver, out)
		for _, a := range ex.Args {
			walkExpr(a, out)
		}
		if ex.Kind == ir.InvokeVirtual {
			out[Signature{Name: ex.Method.Name, ParamTypes: joinParams(ex.Method.ParamTypes), ReturnType: ex.Method.ReturnType}] = true
		}
	case *ir.BinaryExpr:
		walkExpr(ex.Left, out)
		walkExpr(ex.Right, out)
	case *ir.UnaryExpr:
		walkExpr(ex.Operand, out)
	case *ir.FieldAccessExpr:
		walkExpr(ex.Object, out)
	case *ir.CastExpr:
		walkExpr(ex.Operand, out)
	}
}

func joinParams(params []string) string {
	key := ""
	for _, p := range params {
		key += p + ","
	}
	return key
}

// buildTable constructs name's table by first copying its superclass's
// table (inherited slots), then appending any newly-introduced virtual
// method whose signature is in the virtual set and not already a slot.
func (p *Provider) buildTable(classes *model.ClassUniverse, name string) *Table {
	if t, ok := p.tables[name]; ok {
		return t
	}
	cls := classes.Get(name)
	if cls == nil {
		t := &Table{}
		p.tables[name] = t
		return t
	}

	var t Table
	if cls.Super != "" {
		parent := p.buildTable(classes, cls.Super)
		t.Slots = append(t.Slots, parent.Slots...)
		// Overrides reuse the parent slot: retarget in place below.
	}

	// Deterministic order within a class: by method declaration order,
	// not by map iteration.
	for _, m := range cls.Methods {
		sig := sigOf(m.Ref)
		if !p.virtual[sig] {
			continue
		}
		if idx := t.IndexOf(sig); idx >= 0 {
			t.Slots[idx].Target = m.Ref // override: retarget the inherited slot
			continue
		}
		t.Slots = append(t.Slots, Slot{Signature: sig, Target: m.Ref})
	}

	// Any virtual signature inherited but never implemented by an
	// ancestor that introduced it is a contract violation by the
	// decompiler/linker, not something this class can fix; leave the
	// slot as inherited.
	p.tables[name] = &t
	return &t
}

// Table returns the dispatch table for a class name, or an empty table
// if the class has none (no virtual methods reachable on it).
func (p *Provider) Table(className string) *Table {
	if t, ok := p.tables[className]; ok {
		return t
	}
	return &Table{}
}

// IsVirtual reports whether ref is ever invoked virtually anywhere in
// the program (tables are tree-shaken to only such signatures, per
// spec §3).
func (p *Provider) IsVirtual(ref model.MethodRef) bool {
	return p.virtual[sigOf(ref)]
}

// AllClassNames returns the class names with a built table, sorted,
// for deterministic iteration by callers that don't already have a
// ClassUniverse in hand (primarily tests).
func (p *Provider) AllClassNames() []string {
	out := make([]string, 0, len(p.tables))
	for name := range p.tables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
