// Package compiler implements the Module Assembler (spec §4.6): it
// drives the Class Layout Generator, Virtual Table Provider, Runtime
// Intrinsics and Expression Generator in sequence, then synthesizes
// the allocator bootstrap, per-class initializer wrappers, and the
// start function, producing the completed WasmModule this repository
// hands off to the (out-of-scope) textual renderer.
//
// Sequencing is ported near-verbatim from WasmTarget.emit in
// original_source: the phase order, the cancellation checkpoints, and
// the exact guard/store/call shape of the synthesized clinit wrapper
// all follow it line for line, translated from TeaVM's Java class
// model into this repository's tagged-variant IR.
package compiler

import (
	"github.com/lhaig/wasmaot/internal/codegen"
	"github.com/lhaig/wasmaot/internal/diagnostic"
	"github.com/lhaig/wasmaot/internal/intrinsics"
	"github.com/lhaig/wasmaot/internal/layout"
	"github.com/lhaig/wasmaot/internal/mangler"
	"github.com/lhaig/wasmaot/internal/model"
	"github.com/lhaig/wasmaot/internal/vtable"
	"github.com/lhaig/wasmaot/internal/wasmmodel"
	"go.uber.org/zap"
)

const memoryPages = 64 // 64 KiB pages, spec §6

// Emit runs the whole pipeline (spec §4.6) and returns the completed
// module, or nil if the controller reports cancellation at any
// checkpoint (spec §5: "no module is serialized"). classes must be
// treated as read-only by every caller of Emit's result, matching the
// sharing rule in spec §5.
func Emit(classes *model.ClassUniverse, controller Controller) *wasmmodel.Module {
	log := Logger()
	log.Info("layout pass starting", zap.Int("classes", len(classes.ClassNames())))

	vtables := vtable.Build(classes)
	layouts := layout.Build(classes, controllerAsPoller{controller})
	if layouts == nil {
		log.Info("cancelled during layout pass")
		return nil
	}

	reg := intrinsics.Default()
	module := &wasmmodel.Module{MemoryPages: memoryPages}
	gen := codegen.New(classes, vtables, layouts, reg, module)

	assignFunctionTable(module, classes, vtables, layouts, controller)

	log.Info("function pass starting")
	if !runFunctionPass(module, classes, gen, reg, controller) {
		log.Info("cancelled during function pass")
		return nil
	}

	log.Info("allocator bootstrap", zap.Int("heapOrigin", layouts.HeapOrigin()))
	module.AddFunction(allocatorInitializeFunction(layouts.HeapOrigin()))

	log.Info("synthesizing class initializer wrappers")
	synthesizeClinitWrappers(module, classes, layouts)
	if controller.WasCancelled() {
		log.Info("cancelled after initializer synthesis")
		return nil
	}

	log.Info("assembling start function")
	assembleStartFunction(module, classes, layouts, vtables)

	wireEntryPoints(module, controller)
	if controller.WasCancelled() {
		log.Info("cancelled after entry-point wiring")
		return nil
	}

	log.Info("module assembled", zap.Int("functions", len(module.Functions)))
	return module
}

type controllerAsPoller struct{ c Controller }

func (p controllerAsPoller) WasCancelled() bool { return p.c.WasCancelled() }

// runFunctionPass is spec §4.6 step 2: emit every eligible method's
// function, skipping intrinsics, the synthesized allocator
// initializer, sentinel natives, and bodyless methods; diagnosing a
// native method elsewhere that lacks Import.
func runFunctionPass(module *wasmmodel.Module, classes *model.ClassUniverse, gen *codegen.Generator, reg *intrinsics.Registry, controller Controller) bool {
	for _, className := range classes.ClassNames() {
		cls := classes.Get(className)
		for _, method := range cls.Methods {
			if isAllocatorInitialize(method.Ref) {
				continue
			}
			if reg.Has(method.Ref) {
				continue
			}

			if method.Modifiers.Has(model.ModNative) {
				if model.IsSentinel(method.Ref.ClassName) {
					continue
				}
				imp, ok := method.Annotations[model.ImportAnnotation]
				if !ok {
					controller.Diagnostics().Error(
						diagnostic.Location{ClassName: method.Ref.ClassName, MethodName: method.Ref.Name},
						"method {{m0}} is native but has no {{c1}} annotation on it",
						method.Ref.ClassName+"."+method.Ref.Name, model.ImportAnnotation,
					)
					continue
				}
				module.AddFunction(gen.GenerateNative(method.Ref, imp.Values["module"], imp.Values["name"]))
				continue
			}

			if method.Body == nil || len(method.Body.Stmts) == 0 {
				continue
			}
			module.AddFunction(gen.Generate(method.Ref, method.Body))

			if controller.WasCancelled() {
				return false
			}
		}
	}
	return true
}

func isAllocatorInitialize(ref model.MethodRef) bool {
	return ref.ClassName == allocatorClass && ref.Name == "initialize"
}

// allocatorInitializeFunction is spec §4.6 step 3: the bump allocator's
// bootstrap constant, aligned up to the page-friendly 4096 boundary by
// layout.Generator.HeapOrigin.
func allocatorInitializeFunction(heapOrigin int) *wasmmodel.Function {
	return &wasmmodel.Function{
		Name:   mangler.Method(allocatorClass, "initialize", nil, addressType),
		Result: wasmmodel.I32,
		Body:   []wasmmodel.Expr{&wasmmodel.Return{Value: &wasmmodel.Int32Constant{Value: int32(heapOrigin)}}},
	}
}

// synthesizeClinitWrappers is spec §4.6 step 4. Every non-structure
// class with a <clinit> gets a guarded wrapper: load the flag, branch
// out if already initialized, otherwise set the flag and call the
// original body — all as siblings inside one block, matching
// WasmTarget.renderClinit's shape exactly (a single WasmBlock holding
// the branch, then the store, then the call).
func synthesizeClinitWrappers(module *wasmmodel.Module, classes *model.ClassUniverse, layouts *layout.Generator) {
	for _, className := range layouts.Order() {
		cls := classes.Get(className)
		clinit := cls.Clinit()
		if clinit == nil {
			continue
		}

		addr, _ := layouts.ClassPointer(className)
		addrConst := &wasmmodel.Int32Constant{Value: int32(addr)}

		flag := &wasmmodel.IntBinary{
			Op:    wasmmodel.IntAnd,
			Width: wasmmodel.I32,
			Left:  &wasmmodel.LoadInt32{Offset: layout.RecordOffsetFlag, Address: addrConst},
			Right: &wasmmodel.Int32Constant{Value: layout.Initialized},
		}
		block := &wasmmodel.Block{}
		block.Body = append(block.Body, &wasmmodel.Branch{Condition: flag, Target: block})

		setFlag := &wasmmodel.IntBinary{
			Op:    wasmmodel.IntOr,
			Width: wasmmodel.I32,
			Left:  &wasmmodel.LoadInt32{Offset: layout.RecordOffsetFlag, Address: addrConst},
			Right: &wasmmodel.Int32Constant{Value: layout.Initialized},
		}
		block.Body = append(block.Body, &wasmmodel.StoreInt32{Offset: layout.RecordOffsetFlag, Address: addrConst, Value: setFlag})
		block.Body = append(block.Body, &wasmmodel.Call{Symbol: mangler.Method(clinit.Ref.ClassName, clinit.Ref.Name, clinit.Ref.ParamTypes, clinit.Ref.ReturnType)})

		module.AddFunction(&wasmmodel.Function{
			Name:   mangler.Initializer(className),
			Result: wasmmodel.Void,
			Body:   []wasmmodel.Expr{block},
		})
	}
}

// assembleStartFunction is spec §4.6 step 5.
func assembleStartFunction(module *wasmmodel.Module, classes *model.ClassUniverse, layouts *layout.Generator, vtables *vtable.Provider) {
	body := layouts.MemoryInitializerContribution(classes, vtablePointerLookup(classes, layouts, vtables))

	for _, className := range classes.ClassNames() {
		cls := classes.Get(className)
		if !cls.HasAnnotation(model.StaticInitAnnotation) {
			continue
		}
		clinit := cls.Clinit()
		if clinit == nil {
			continue
		}
		body = append(body, &wasmmodel.Call{Symbol: mangler.Initializer(className)})
	}

	module.AddFunction(&wasmmodel.Function{Name: "__start__", Result: wasmmodel.Void, Body: body})
	module.StartFunction = "__start__"
}

// wireEntryPoints is spec §4.6 step 6.
func wireEntryPoints(module *wasmmodel.Module, controller Controller) {
	for publicName, ref := range controller.EntryPoints() {
		symbol := mangler.Method(ref.ClassName, ref.Name, ref.ParamTypes, ref.ReturnType)
		if fn := module.Find(symbol); fn != nil {
			fn.ExportName = publicName
		}
	}
}

// assignFunctionTable lays out the module's flat call_indirect table:
// each non-structure class's slots, in the same order
// vtable.Provider.Table returns them, contiguous per class in
// layout.Generator.Order order. A slot whose Target is unresolved
// (inherited from a virtual signature no ancestor in this class's
// chain ever implemented) gets an empty symbol — the module-level
// counterpart to the codegen-level Unreachable trap stub — and is
// reported as a diagnostic, matching §4.2's "reports a diagnostic via
// the controller and emits a trap stub in that slot. It does not
// throw."
func assignFunctionTable(module *wasmmodel.Module, classes *model.ClassUniverse, vtables *vtable.Provider, layouts *layout.Generator, controller Controller) {
	for _, className := range layouts.Order() {
		table := vtables.Table(className)
		for _, slot := range table.Slots {
			if slot.Target.ClassName == "" {
				module.FunctionTable = append(module.FunctionTable, "")
				controller.Diagnostics().Error(
					diagnostic.Location{ClassName: className},
					"class {{c0}} has no implementation for virtually invoked method {{m1}}; emitting a trap stub",
					className, slot.Signature.Name,
				)
				continue
			}
			module.FunctionTable = append(module.FunctionTable, mangler.Method(slot.Target.ClassName, slot.Target.Name, slot.Target.ParamTypes, slot.Target.ReturnType))
		}
	}
}

// vtablePointerLookup returns the base index within the module's flat
// function table where className's dispatch slots begin, for
// layout.Generator.MemoryInitializerContribution to bake into each
// class record. Classes with no virtual slots get 0 (never
// dereferenced, since a class with no vtable entries can never be the
// receiver of a virtual call the Virtual Table Provider tree-shook in).
func vtablePointerLookup(classes *model.ClassUniverse, layouts *layout.Generator, vtables *vtable.Provider) func(string) int {
	base := make(map[string]int)
	offset := 0
	for _, className := range layouts.Order() {
		slots := len(vtables.Table(className).Slots)
		if slots > 0 {
			base[className] = offset
		}
		offset += slots
	}
	return func(className string) int {
		return base[className]
	}
}
