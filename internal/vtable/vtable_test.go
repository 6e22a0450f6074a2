package vtable

import (
	"testing"

	"github.com/lhaig/wasmaot/internal/ir"
	"github.com/lhaig/wasmaot/internal/model"
)

func methodNoBody(name string, params []string, ret string) *model.MethodDescriptor {
	return &model.MethodDescriptor{Ref: model.MethodRef{Name: name, ParamTypes: params, ReturnType: ret}}
}

func virtualCallBody(className, methodName string, ret string) *model.MethodBody {
	return &model.MethodBody{
		Stmts: []ir.Stmt{
			&ir.ExprStmt{Expr: &ir.InvokeExpr{
				Method: ir.MethodRef{ClassName: className, Name: methodName, ReturnType: ret},
				Kind:   ir.InvokeVirtual,
			}},
		},
	}
}

func TestBuildInheritsAndOverridesSlots(t *testing.T) {
	base := &model.ClassDescriptor{
		Name: "Base",
		Methods: []*model.MethodDescriptor{
			{Ref: model.MethodRef{ClassName: "Base", Name: "greet", ReturnType: "V"}, Body: &model.MethodBody{}},
			{Ref: model.MethodRef{ClassName: "Base", Name: "caller", ReturnType: "V"}, Body: virtualCallBody("Base", "greet", "V")},
		},
	}
	derived := &model.ClassDescriptor{
		Name:  "Derived",
		Super: "Base",
		Methods: []*model.MethodDescriptor{
			{Ref: model.MethodRef{ClassName: "Derived", Name: "greet", ReturnType: "V"}, Body: &model.MethodBody{}},
		},
	}
	universe := model.NewUniverse([]*model.ClassDescriptor{base, derived})

	p := Build(universe)

	baseTable := p.Table("Base")
	if len(baseTable.Slots) != 1 {
		t.Fatalf("expected 1 virtual slot on Base, got %d", len(baseTable.Slots))
	}
	if baseTable.Slots[0].Target.ClassName != "Base" {
		t.Fatalf("expected Base's own greet in slot 0, got %+v", baseTable.Slots[0].Target)
	}

	derivedTable := p.Table("Derived")
	if len(derivedTable.Slots) != 1 {
		t.Fatalf("expected Derived to inherit the single slot, got %d", len(derivedTable.Slots))
	}
	if derivedTable.Slots[0].Target.ClassName != "Derived" {
		t.Fatalf("expected Derived's override to retarget the inherited slot, got %+v", derivedTable.Slots[0].Target)
	}
	if derivedTable.IndexOf(baseTable.Slots[0].Signature) != 0 {
		t.Fatalf("override must reuse the base slot index")
	}
}

func TestNonVirtualMethodsAreNotSlotted(t *testing.T) {
	cls := &model.ClassDescriptor{
		Name: "Solo",
		Methods: []*model.MethodDescriptor{
			methodNoBody("helper", nil, "V"),
		},
	}
	universe := model.NewUniverse([]*model.ClassDescriptor{cls})
	p := Build(universe)
	if len(p.Table("Solo").Slots) != 0 {
		t.Fatalf("method never invoked virtually must not get a slot")
	}
}

func TestUnknownClassReturnsEmptyTable(t *testing.T) {
	universe := model.NewUniverse(nil)
	p := Build(universe)
	if len(p.Table("Missing").Slots) != 0 {
		t.Fatalf("expected empty table for unknown class")
	}
}
