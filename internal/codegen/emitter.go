// Package codegen holds the target-neutral code generation layer: the
// emitter, identifier mangling, name rewriting contexts and the output tree
// writer shared by every backend.
package codegen

import (
	"fmt"
	"strings"
)

// Emitter accumulates output text with indentation tracking, the same
// builder pattern every backend shares.
type Emitter struct {
	sb     strings.Builder
	indent int
	unit   string
}

// NewEmitter creates an emitter. A negative indent size selects tabs.
func NewEmitter(indentSize int) *Emitter {
	unit := "\t"
	if indentSize >= 0 {
		unit = strings.Repeat(" ", indentSize)
	}
	return &Emitter{unit: unit}
}

// Line writes one indented line.
func (e *Emitter) Line(s string) {
	if s == "" {
		e.sb.WriteString("\n")
		return
	}
	e.sb.WriteString(strings.Repeat(e.unit, e.indent))
	e.sb.WriteString(s)
	e.sb.WriteString("\n")
}

// Linef writes one indented formatted line.
func (e *Emitter) Linef(format string, args ...any) {
	e.Line(fmt.Sprintf(format, args...))
}

// Blank writes an empty line.
func (e *Emitter) Blank() {
	e.sb.WriteString("\n")
}

// Raw writes text without indentation or newline handling.
func (e *Emitter) Raw(s string) {
	e.sb.WriteString(s)
}

// Indent increases the indentation level.
func (e *Emitter) Indent() { e.indent++ }

// Dedent decreases the indentation level.
func (e *Emitter) Dedent() {
	if e.indent > 0 {
		e.indent--
	}
}

// String returns the accumulated text.
func (e *Emitter) String() string {
	return e.sb.String()
}
