// Package model holds the read-only input contract consumed by the
// lowering pipeline: a linked, already-typed universe of classes. A
// real build hands this to us after parsing and linking class files;
// here we only consume it (see ClassUniverse).
package model

import "github.com/lhaig/wasmaot/internal/ir"

// Sentinel class names: methods owned by these classes represent raw
// memory operations with no executable body at the target level.
const (
	AddressClass   = "org.teavm.interop.Address"
	StructureClass = "org.teavm.interop.Structure"
)

// Annotation names recognized by the pipeline.
const (
	ImportAnnotation     = "org.teavm.interop.Import"
	StaticInitAnnotation = "org.teavm.interop.StaticInit"
)

// Modifiers bit set on a MethodDescriptor.
type Modifier int

const (
	ModNone Modifier = 0
	ModNative Modifier = 1 << iota
	ModStatic
	ModAbstract
)

func (m Modifier) Has(flag Modifier) bool { return m&flag != 0 }

// Annotation is a single annotation instance keyed by its class name,
// carrying whatever name=value pairs the front end attached to it
// (e.g. Import's "module" and "name").
type Annotation struct {
	Values map[string]string
}

// FieldDescriptor describes one field of a class.
type FieldDescriptor struct {
	Name   string
	Type   string // target-level type descriptor, e.g. "I", "J", "Lcom/foo/Bar;"
	Static bool
}

// MethodRef uniquely identifies a method reference: owning class,
// simple name, parameter type descriptors, and return type descriptor.
// Its ParamTypes slice makes it non-comparable, so it cannot be a map
// key itself; use Key() for map keys and set membership.
type MethodRef struct {
	ClassName  string
	Name       string
	ParamTypes []string // joined by the mangler; kept as a slice here for equality semantics via Key()
	ReturnType string
}

// Key returns a stable string encoding of the reference suitable for
// map keys and set membership (mangling itself lives in internal/mangler).
func (r MethodRef) Key() string {
	s := r.ClassName + "#" + r.Name + "("
	for i, p := range r.ParamTypes {
		if i > 0 {
			s += ","
		}
		s += p
	}
	return s + ")" + r.ReturnType
}

// MethodDescriptor describes one method of a class.
type MethodDescriptor struct {
	Ref         MethodRef
	Modifiers   Modifier
	Annotations map[string]Annotation // keyed by annotation class name
	Body        *MethodBody           // nil for methods with no executable body (abstract, layout-only sentinels)
}

func (m *MethodDescriptor) HasAnnotation(name string) bool {
	_, ok := m.Annotations[name]
	return ok
}

// MethodBody is the contract with the (external) decompiler: a
// structured expression tree, see package ir.
type MethodBody struct {
	Params []string // declared parameter names, positional
	Stmts  []ir.Stmt
}

// ClassDescriptor describes one class in the universe.
type ClassDescriptor struct {
	Name        string
	Super       string   // "" for java.lang.Object / no superclass
	Interfaces  []string
	Fields      []*FieldDescriptor
	Methods     []*MethodDescriptor
	Annotations map[string]Annotation
	IsInterface bool
	// IsStructureMarker is set for classes that are themselves layout-only
	// aggregates (subclasses of the Structure sentinel), as distinct from
	// Address/Structure themselves which are recognized by name.
	IsStructureMarker bool
}

func (c *ClassDescriptor) HasAnnotation(name string) bool {
	_, ok := c.Annotations[name]
	return ok
}

func (c *ClassDescriptor) Method(name string, paramTypes []string, returnType string) *MethodDescriptor {
	for _, m := range c.Methods {
		if m.Ref.Name != name || m.Ref.ReturnType != returnType || len(m.Ref.ParamTypes) != len(paramTypes) {
			continue
		}
		match := true
		for i := range paramTypes {
			if m.Ref.ParamTypes[i] != paramTypes[i] {
				match = false
				break
			}
		}
		if match {
			return m
		}
	}
	return nil
}

// Clinit returns the class's static initializer, if it declares one.
func (c *ClassDescriptor) Clinit() *MethodDescriptor {
	return c.Method("<clinit>", nil, "V")
}

// ClassUniverse is the ordered, read-only mapping from fully-qualified
// class name to ClassDescriptor that this pipeline consumes. Iteration
// order (ClassNames) is stable and reproducible across runs: it is a
// precondition for the determinism of emitted addresses (spec §3).
type ClassUniverse struct {
	order   []string
	classes map[string]*ClassDescriptor
}

// NewUniverse builds a universe from classes in the given order. The
// caller controls ordering; the universe never reorders it.
func NewUniverse(classes []*ClassDescriptor) *ClassUniverse {
	u := &ClassUniverse{classes: make(map[string]*ClassDescriptor, len(classes))}
	for _, c := range classes {
		if _, exists := u.classes[c.Name]; exists {
			continue
		}
		u.order = append(u.order, c.Name)
		u.classes[c.Name] = c
	}
	return u
}

// ClassNames yields the deterministic ordered sequence of class names.
func (u *ClassUniverse) ClassNames() []string {
	out := make([]string, len(u.order))
	copy(out, u.order)
	return out
}

// Get returns the descriptor for name, or nil if absent.
func (u *ClassUniverse) Get(name string) *ClassDescriptor {
	return u.classes[name]
}

// IsSentinel reports whether name is one of the two raw-memory sentinel
// classes (Address, Structure), whose native methods have no executable
// body at the target level and are skipped rather than diagnosed.
func IsSentinel(name string) bool {
	return name == AddressClass || name == StructureClass
}
