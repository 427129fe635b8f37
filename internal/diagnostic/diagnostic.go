package diagnostic

import (
	"fmt"
	"strings"
)

// Severity represents the severity level of a diagnostic message
type Severity int

const (
	Error Severity = iota
	Warning
	Info
)

// String returns the string representation of the severity level
func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Info:
		return "info"
	default:
		return "unknown"
	}
}

// Kind classifies a diagnostic by the failure it reports.
type Kind int

const (
	Parse Kind = iota
	UnbalancedBraces
	UnknownField
	UnresolvedName
	UnresolvedMapping
	TypeMismatch
	TypeConflict
	ReturnTypeConflict
	ArityMismatch
	DivisionByZero
	IncludeCycle
	DelayUnsupported
	IOError
)

// String returns the canonical name of the kind.
func (k Kind) String() string {
	switch k {
	case Parse:
		return "Parse"
	case UnbalancedBraces:
		return "UnbalancedBraces"
	case UnknownField:
		return "UnknownField"
	case UnresolvedName:
		return "UnresolvedName"
	case UnresolvedMapping:
		return "UnresolvedMapping"
	case TypeMismatch:
		return "TypeMismatch"
	case TypeConflict:
		return "TypeConflict"
	case ReturnTypeConflict:
		return "ReturnTypeConflict"
	case ArityMismatch:
		return "ArityMismatch"
	case DivisionByZero:
		return "DivisionByZero"
	case IncludeCycle:
		return "IncludeCycle"
	case DelayUnsupported:
		return "DelayUnsupported"
	case IOError:
		return "IOError"
	default:
		return "unknown"
	}
}

// Err is an error carrying a diagnostic kind. Phases that abort on the first
// failure return an *Err; phases that accumulate use Diagnostics.
type Err struct {
	Kind Kind
	Msg  string
}

func (e *Err) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Errorf builds an *Err of the given kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Err {
	return &Err{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf reports the kind of err if it is (or wraps) an *Err. The second
// result is false for plain errors.
func KindOf(err error) (Kind, bool) {
	for err != nil {
		if e, ok := err.(*Err); ok {
			return e.Kind, true
		}
		switch w := err.(type) {
		case interface{ Unwrap() error }:
			err = w.Unwrap()
		case interface{ Cause() error }: // pkg/errors wrappers
			err = w.Cause()
		default:
			return 0, false
		}
	}
	return 0, false
}

// Diagnostic represents a single compiler error, warning, or info message
type Diagnostic struct {
	Severity Severity
	Kind     Kind
	Message  string
	Context  string // definition or instance the message belongs to
}

// String renders the diagnostic as a single line.
func (d Diagnostic) String() string {
	if d.Context != "" {
		return fmt.Sprintf("%s: %s: %s: %s", d.Severity, d.Context, d.Kind, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", d.Severity, d.Kind, d.Message)
}

// Diagnostics manages a collection of diagnostic messages
type Diagnostics struct {
	items []Diagnostic
}

// New creates a new empty Diagnostics collection
func New() *Diagnostics {
	return &Diagnostics{}
}

// Errorf adds an error diagnostic with a formatted message
func (d *Diagnostics) Errorf(kind Kind, context, format string, args ...any) {
	d.items = append(d.items, Diagnostic{
		Severity: Error,
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Context:  context,
	})
}

// Warningf adds a warning diagnostic with a formatted message
func (d *Diagnostics) Warningf(kind Kind, context, format string, args ...any) {
	d.items = append(d.items, Diagnostic{
		Severity: Warning,
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Context:  context,
	})
}

// Add appends an already-built diagnostic.
func (d *Diagnostics) Add(diag Diagnostic) {
	d.items = append(d.items, diag)
}

// Merge appends every diagnostic from other.
func (d *Diagnostics) Merge(other *Diagnostics) {
	if other != nil {
		d.items = append(d.items, other.items...)
	}
}

// HasErrors returns true if there are any error-level diagnostics
func (d *Diagnostics) HasErrors() bool {
	for _, item := range d.items {
		if item.Severity == Error {
			return true
		}
	}
	return false
}

// Errors returns only the error-level diagnostics
func (d *Diagnostics) Errors() []Diagnostic {
	errors := make([]Diagnostic, 0)
	for _, item := range d.items {
		if item.Severity == Error {
			errors = append(errors, item)
		}
	}
	return errors
}

// All returns all diagnostics regardless of severity
func (d *Diagnostics) All() []Diagnostic {
	return d.items
}

// Count returns the total number of diagnostics
func (d *Diagnostics) Count() int {
	return len(d.items)
}

// ErrorCount returns the number of error-level diagnostics
func (d *Diagnostics) ErrorCount() int {
	count := 0
	for _, item := range d.items {
		if item.Severity == Error {
			count++
		}
	}
	return count
}

// Format renders the diagnostics one per line, insertion order preserved.
func (d *Diagnostics) Format() string {
	var sb strings.Builder
	for i, item := range d.items {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(item.String())
	}
	return sb.String()
}
