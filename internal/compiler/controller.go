package compiler

import (
	"github.com/lhaig/wasmaot/internal/diagnostic"
	"github.com/lhaig/wasmaot/internal/model"
)

// Controller is the Target Controller Interface (spec §4.8, §6): the
// one contract this core has with everything outside it —
// cancellation polling, diagnostics reporting, and entry-point
// enumeration. The class-loader access named in spec §6 has no
// counterpart here since this package never needs to load a class by
// name itself; the ClassUniverse handed to Emit already carries
// everything reachable.
type Controller interface {
	// Diagnostics returns the sink input-model errors accumulate in.
	Diagnostics() *diagnostic.Sink
	// WasCancelled is polled at every checkpoint spec §5 names.
	WasCancelled() bool
	// EntryPoints maps a configured public name to the method it
	// exports.
	EntryPoints() map[string]model.MethodRef
}

// SimpleController is a minimal Controller: a fixed entry-point map, a
// diagnostics sink, and a cancellation flag a caller can set directly.
// The flag is a plain bool with no synchronization, so Cancel must be
// called from the goroutine that runs Emit.
type SimpleController struct {
	diagnostics *diagnostic.Sink
	entryPoints map[string]model.MethodRef
	cancelled   bool
}

// NewSimpleController returns a Controller over entryPoints, with a
// fresh diagnostics sink and no cancellation requested.
func NewSimpleController(entryPoints map[string]model.MethodRef) *SimpleController {
	if entryPoints == nil {
		entryPoints = make(map[string]model.MethodRef)
	}
	return &SimpleController{diagnostics: diagnostic.New(), entryPoints: entryPoints}
}

func (c *SimpleController) Diagnostics() *diagnostic.Sink { return c.diagnostics }

func (c *SimpleController) WasCancelled() bool { return c.cancelled }

func (c *SimpleController) EntryPoints() map[string]model.MethodRef { return c.entryPoints }

// Cancel requests cancellation; the next checkpoint the assembler
// polls observes it and the build returns with no output.
func (c *SimpleController) Cancel() { c.cancelled = true }
