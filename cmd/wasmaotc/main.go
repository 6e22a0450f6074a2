// Command wasmaotc drives the WebAssembly lowering core over a JSON
// ClassUniverse fixture (the real class-file front end is an external
// collaborator this repository does not implement, spec.md §1).
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/charmbracelet/lipgloss"

	"github.com/lhaig/wasmaot/internal/compiler"
	"github.com/lhaig/wasmaot/internal/layout"
	"github.com/lhaig/wasmaot/internal/model"
	"github.com/lhaig/wasmaot/internal/vtable"
	"github.com/lhaig/wasmaot/internal/wasmmodel"
)

const usage = `wasmaotc - WebAssembly AOT lowering core

Usage:
  wasmaotc build <universe.json> [entrypoints.json]   Run the full pipeline, report the assembled module
  wasmaotc check <universe.json>                       Layout + vtable + dependency contribution only

The universe file is a JSON-encoded ClassUniverse fixture (see
internal/model.DecodeUniverse); the optional entrypoints file is a JSON
array of {name, className, method, paramTypes, returnType} entries.

This core does not produce a binary or textual .wasm file itself (the
renderer is an out-of-scope external collaborator) — both commands
report the shape of the module the renderer would be handed.
`

var (
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#90EE90"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB"))
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "build":
		handleBuild(os.Args[2:])
	case "check":
		handleCheck(os.Args[2:])
	case "help", "--help", "-h":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func handleBuild(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: no universe file specified"))
		os.Exit(1)
	}

	universe, err := model.LoadUniverse(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}

	entryPoints := map[string]model.MethodRef{}
	if len(args) > 1 {
		entryPoints, err = model.LoadEntryPoints(args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
			os.Exit(1)
		}
	}

	controller := compiler.NewSimpleController(entryPoints)
	module := compiler.Emit(universe, controller)

	if diag := controller.Diagnostics(); diag.Count() > 0 {
		fmt.Println(warningStyle.Render(diag.Format()))
	}

	if module == nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: build was cancelled before a module was produced"))
		os.Exit(1)
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("Assembled module: %d functions, %d classes, %d page(s) of memory (%d bytes)",
		len(module.Functions), len(universe.ClassNames()), module.MemoryPages, module.MemoryPages*wasmmodel.PageSize)))
	fmt.Println(infoStyle.Render("Start function: " + module.StartFunction))

	var exports []string
	for _, fn := range module.Functions {
		if fn.ExportName != "" {
			exports = append(exports, fn.ExportName+" -> "+fn.Name)
		}
	}
	sort.Strings(exports)
	if len(exports) == 0 {
		fmt.Println(infoStyle.Render("Exports: none"))
	} else {
		fmt.Println(infoStyle.Render("Exports:"))
		for _, e := range exports {
			fmt.Println("  " + e)
		}
	}

	if controller.Diagnostics().HasErrors() {
		os.Exit(1)
	}
}

func handleCheck(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: no universe file specified"))
		os.Exit(1)
	}

	universe, err := model.LoadUniverse(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}

	controller := compiler.NewSimpleController(nil)

	vtables := vtable.Build(universe)
	layouts := layout.Build(universe, nil)
	if layouts == nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: cancelled during layout pass"))
		os.Exit(1)
	}
	compiler.ContributeDependencies(noopReachability{})

	for _, name := range layouts.Order() {
		addr, _ := layouts.ClassPointer(name)
		fmt.Println(infoStyle.Render(fmt.Sprintf("%s @ 0x%x (%d vtable slot(s))", name, addr, len(vtables.Table(name).Slots))))
	}
	fmt.Println(infoStyle.Render(fmt.Sprintf("heap origin: 0x%x", layouts.HeapOrigin())))

	if diag := controller.Diagnostics(); diag.Count() > 0 {
		fmt.Println(warningStyle.Render(diag.Format()))
		if diag.HasErrors() {
			os.Exit(1)
		}
	}
	fmt.Println(successStyle.Render("No errors found."))
}

// noopReachability discards Dependency Contributor announcements; the
// reachability engine itself is an external collaborator (spec.md §1)
// this command has nothing to wire to.
type noopReachability struct{}

func (noopReachability) Use(model.MethodRef) {}
