package layout

import "github.com/lhaig/wasmaot/internal/model"

import "testing"

func TestSingleClassNoFieldsLaysOutAtBase(t *testing.T) {
	a := &model.ClassDescriptor{Name: "A"}
	universe := model.NewUniverse([]*model.ClassDescriptor{a})

	g := Build(universe, nil)

	addr, ok := g.ClassPointer("A")
	if !ok || addr != BaseAddress {
		t.Fatalf("expected A at base address %d, got %d (ok=%v)", BaseAddress, addr, ok)
	}
	if g.HeapOrigin() != HeapAlignment {
		t.Fatalf("expected heap origin %d for a single trivial class, got %d", HeapAlignment, g.HeapOrigin())
	}
}

func TestConsecutiveAddressesNeverOverlap(t *testing.T) {
	a := &model.ClassDescriptor{
		Name: "A",
		Fields: []*model.FieldDescriptor{
			{Name: "x", Type: "I"},
			{Name: "y", Type: "I", Static: true},
		},
	}
	b := &model.ClassDescriptor{Name: "B"}
	universe := model.NewUniverse([]*model.ClassDescriptor{a, b})

	g := Build(universe, nil)

	addrA, _ := g.ClassPointer("A")
	addrB, _ := g.ClassPointer("B")
	sizeA := g.Layout("A").Size

	if addrA%4 != 0 || addrB%4 != 0 {
		t.Fatalf("addresses must be 4-byte aligned: A=%d B=%d", addrA, addrB)
	}
	if addrB < addrA+sizeA {
		t.Fatalf("B (%d) overlaps A's record (base %d, size %d)", addrB, addrA, sizeA)
	}
}

func TestInstanceFieldsInheritParentFirst(t *testing.T) {
	base := &model.ClassDescriptor{
		Name:   "Base",
		Fields: []*model.FieldDescriptor{{Name: "baseField", Type: "I"}},
	}
	derived := &model.ClassDescriptor{
		Name:   "Derived",
		Super:  "Base",
		Fields: []*model.FieldDescriptor{{Name: "derivedField", Type: "I"}},
	}
	universe := model.NewUniverse([]*model.ClassDescriptor{base, derived})

	g := Build(universe, nil)

	derivedLayout := g.Layout("Derived")
	if len(derivedLayout.InstanceFields) != 2 {
		t.Fatalf("expected 2 instance fields (inherited + own), got %d", len(derivedLayout.InstanceFields))
	}
	if derivedLayout.InstanceFields[0].Name != "baseField" {
		t.Fatalf("expected parent field first, got %q", derivedLayout.InstanceFields[0].Name)
	}
	if derivedLayout.InstanceFields[1].Name != "derivedField" {
		t.Fatalf("expected own field second, got %q", derivedLayout.InstanceFields[1].Name)
	}
	if derivedLayout.InstanceFields[0].Offset >= derivedLayout.InstanceFields[1].Offset {
		t.Fatalf("parent field must come at a lower offset than the subclass's own field")
	}
}

func TestStructureClassHasNoRecordAddress(t *testing.T) {
	addr := &model.ClassDescriptor{Name: model.AddressClass}
	universe := model.NewUniverse([]*model.ClassDescriptor{addr})

	g := Build(universe, nil)

	if !g.IsStructure(model.AddressClass) {
		t.Fatalf("expected %s to be recognized as a structure", model.AddressClass)
	}
	if _, ok := g.ClassPointer(model.AddressClass); ok {
		t.Fatalf("structures must not have a class-record address")
	}
}

func TestCancellationMidLayoutYieldsNoGenerator(t *testing.T) {
	a := &model.ClassDescriptor{Name: "A"}
	universe := model.NewUniverse([]*model.ClassDescriptor{a})

	g := Build(universe, alwaysCancelled{})
	if g != nil {
		t.Fatalf("expected a nil generator when cancellation is observed immediately")
	}
}

type alwaysCancelled struct{}

func (alwaysCancelled) WasCancelled() bool { return true }
