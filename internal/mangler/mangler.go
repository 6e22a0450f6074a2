// Package mangler implements the Name Mangler (spec §4.1): pure,
// injective functions from method/class references to stable
// WebAssembly symbol names. The scheme never consults iteration order
// or any other nondeterministic input, so identical universes always
// yield identical symbols.
//
// Injectivity comes from length-prefixing every variable-length
// segment (class name, method name, each parameter descriptor, return
// descriptor) before concatenating it, the same trick the Itanium C++
// ABI uses for its mangled names: a reader (and, by the same argument,
// two distinct inputs) can never misplace a segment boundary, because
// the prefix says exactly how many raw bytes of that segment follow.
package mangler

import (
	"strconv"
	"strings"
)

// Method returns the WebAssembly symbol for a method reference.
func Method(className, methodName string, paramTypes []string, returnType string) string {
	var b strings.Builder
	b.WriteString("m_")
	writeSegment(&b, className)
	writeSegment(&b, methodName)
	writeSegment(&b, strconv.Itoa(len(paramTypes)))
	for _, p := range paramTypes {
		writeSegment(&b, p)
	}
	writeSegment(&b, returnType)
	return b.String()
}

// Initializer returns the WebAssembly symbol for a class's <clinit>
// wrapper. The "i_" prefix is disjoint from Method's "m_" prefix, so
// initializer symbols occupy a distinct namespace from method symbols
// even when the underlying class name coincides with some method's
// first segment.
func Initializer(className string) string {
	var b strings.Builder
	b.WriteString("i_")
	writeSegment(&b, className)
	return b.String()
}

// Signature returns the WebAssembly symbol used to key a function-type
// table entry for indirect calls, keyed by the (params, result) shape.
func Signature(paramTypes []string, returnType string) string {
	var b strings.Builder
	b.WriteString("s_")
	writeSegment(&b, strconv.Itoa(len(paramTypes)))
	for _, p := range paramTypes {
		writeSegment(&b, p)
	}
	writeSegment(&b, returnType)
	return b.String()
}

// writeSegment appends seg's byte length, an underscore, and seg's
// escaped bytes. Escaping replaces each punctuation character that may
// appear in a class name or descriptor with '_' followed by a letter
// naming it, and a literal '_' with "__", so every escape is
// self-delimiting and two different raw segments never produce the
// same output.
func writeSegment(b *strings.Builder, seg string) {
	b.WriteString(strconv.Itoa(len(seg)))
	b.WriteByte('_')
	for _, r := range seg {
		switch r {
		case '_':
			b.WriteString("__")
		case '/':
			b.WriteString("_s")
		case '.':
			b.WriteString("_d")
		case ';':
			b.WriteString("_e")
		case '[':
			b.WriteString("_a")
		case '<':
			b.WriteString("_l")
		case '>':
			b.WriteString("_g")
		default:
			b.WriteRune(r)
		}
	}
}
