// Dependency Contributor (spec §4.7): the sole contract this core has
// with the external reachability engine, announcing which runtime
// helpers must be kept live. Grounded directly on
// WasmTarget.contributeDependencies in original_source.
package compiler

import "github.com/lhaig/wasmaot/internal/model"

const (
	wasmRuntimeClass = "org.teavm.runtime.WasmRuntime"
	allocatorClass   = "org.teavm.runtime.Allocator"
	addressType      = "Lorg/teavm/interop/Address;"
	runtimeClassType = "Lorg/teavm/runtime/RuntimeClass;"
)

// Reachability abstracts the external dependency/reachability engine
// down to the one operation this core needs of it: "keep ref reachable
// even though nothing in the linked universe calls it directly."
type Reachability interface {
	Use(ref model.MethodRef)
}

// ContributeDependencies announces every runtime method the emitted
// module may call without it ever appearing as an explicit invocation
// in the linked program (spec §4.7). Idempotent: calling it more than
// once with the same Reachability re-announces the same fixed set.
func ContributeDependencies(r Reachability) {
	for _, numericType := range []string{"I", "J", "F", "D"} {
		r.Use(model.MethodRef{
			ClassName:  wasmRuntimeClass,
			Name:       "compare",
			ParamTypes: []string{numericType, numericType},
			ReturnType: "I",
		})
	}
	for _, floatType := range []string{"F", "D"} {
		r.Use(model.MethodRef{
			ClassName:  wasmRuntimeClass,
			Name:       "remainder",
			ParamTypes: []string{floatType, floatType},
			ReturnType: floatType,
		})
	}

	r.Use(model.MethodRef{
		ClassName:  allocatorClass,
		Name:       "allocate",
		ParamTypes: []string{runtimeClassType},
		ReturnType: addressType,
	})
	r.Use(model.MethodRef{
		ClassName:  allocatorClass,
		Name:       "<clinit>",
		ReturnType: "V",
	})
}
