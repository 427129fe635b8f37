// Package ha is the hybrid automaton intermediate representation: variables,
// locations, transitions, automata, instances and recursively nested
// networks. The importer builds the tree, the transform phase is the only
// mutator, and code generation treats it as read-only.
package ha

import (
	"sort"
	"strings"

	"github.com/haml-lang/hamlc/internal/formula"
	"github.com/haml-lang/hamlc/internal/program"
)

// Locality classifies how a variable is visible to the enclosing network.
type Locality int

const (
	Internal Locality = iota
	ExternalInput
	ExternalOutput
	Parameter
)

// String returns the schema spelling of the locality.
func (l Locality) String() string {
	switch l {
	case Internal:
		return "INTERNAL"
	case ExternalInput:
		return "EXTERNAL_INPUT"
	case ExternalOutput:
		return "EXTERNAL_OUTPUT"
	case Parameter:
		return "PARAMETER"
	default:
		return "unknown"
	}
}

// Variable declares a typed name within a definition.
type Variable struct {
	Name        string
	Type        formula.Type
	Locality    Locality
	Default     formula.Formula // nil when absent
	DelayableBy formula.Formula // nil when absent
}

// Update pairs a target variable with the formula assigned to it. Slices of
// Update preserve declaration order, which map-valued schemas lose.
type Update struct {
	Target string
	Expr   formula.Formula
}

// Flow gives a variable's derivative inside a location.
type Flow struct {
	Variable string
	Expr     formula.Formula
}

// Transition is a guarded discrete step to another location.
type Transition struct {
	Target string
	Guard  formula.Formula // nil means true
	Update []Update
}

// Location is a discrete mode with continuous dynamics.
type Location struct {
	Name        string
	Invariant   formula.Formula // nil means true
	Flow        []Flow
	Update      []Update
	Transitions []*Transition
}

// FunctionParam is a typed input of a function.
type FunctionParam struct {
	Name string
	Type formula.Type
}

// Function is a named program with typed inputs. Vars and Returns are
// attached by inference during validation; the program itself stays
// immutable.
type Function struct {
	Name       string
	Params     []FunctionParam
	Body       *program.Program
	Vars       map[string]formula.Type
	Returns    formula.Type
	HasReturns bool
}

// Init names the initial location and the ordered initial valuations.
type Init struct {
	Location   string
	Valuations []Update
}

// Definition is either an *Automaton or a nested *Network. Instances refer
// to definitions by table key, never by pointer, so cycles cannot be formed.
type Definition interface {
	DefName() string
	defNode()
}

// Automaton is a hybrid automaton definition.
type Automaton struct {
	Name      string
	Variables []*Variable
	Locations []*Location
	Functions []*Function
	Init      Init

	// Source names the definition this automaton was specialised from, or
	// is empty for definitions straight out of the importer.
	Source string

	// Delays lists the ring buffers added by delay expansion.
	Delays []DelayBuffer
}

// DelayBuffer records the expansion of a delayable variable.
type DelayBuffer struct {
	Variable string
	Length   int
}

func (a *Automaton) DefName() string { return a.Name }
func (a *Automaton) defNode()        {}

// ByLocality returns the automaton's variables with the given locality, in
// declaration order.
func (a *Automaton) ByLocality(l Locality) []*Variable {
	var out []*Variable
	for _, v := range a.Variables {
		if v.Locality == l {
			out = append(out, v)
		}
	}
	return out
}

// VariableNamed looks up a variable by name.
func (a *Automaton) VariableNamed(name string) *Variable {
	for _, v := range a.Variables {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// LocationNamed looks up a location by name.
func (a *Automaton) LocationNamed(name string) *Location {
	for _, l := range a.Locations {
		if l.Name == name {
			return l
		}
	}
	return nil
}

// FunctionNamed looks up a function by name.
func (a *Automaton) FunctionNamed(name string) *Function {
	for _, f := range a.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Instance instantiates a definition under a local name with parameter
// bindings evaluated against the enclosing scope.
type Instance struct {
	Name       string
	Definition string
	Parameters []Update
}

// PortRef addresses a port either on an instance or, with an empty Instance,
// on the enclosing network itself.
type PortRef struct {
	Instance string
	Port     string
}

// String renders the dotted form used in mapping keys.
func (p PortRef) String() string {
	if p.Instance == "" {
		return p.Port
	}
	return p.Instance + "." + p.Port
}

// ParsePortRef splits a dotted mapping key into a PortRef. Only the last dot
// separates instance from port, so flattened instance names keep their dots.
func ParsePortRef(s string) PortRef {
	if i := strings.LastIndex(s, "."); i >= 0 {
		return PortRef{Instance: s[:i], Port: s[i+1:]}
	}
	return PortRef{Port: s}
}

// Mapping connects a destination port to a source formula. Sources are
// formulas so constants, arithmetic and cross-references are all
// expressible.
type Mapping struct {
	To   PortRef
	From formula.Formula
}

// Network composes instances of definitions behind external inputs and
// outputs. Definitions may themselves be networks.
type Network struct {
	Name        string
	Inputs      []*Variable
	Outputs     []*Variable
	Definitions map[string]Definition
	Instances   []*Instance
	Mappings    []*Mapping
	Config      *CodegenConfig
}

func (n *Network) DefName() string { return n.Name }
func (n *Network) defNode()        {}

// InstanceNamed looks up an instance by name.
func (n *Network) InstanceNamed(name string) *Instance {
	for _, inst := range n.Instances {
		if inst.Name == name {
			return inst
		}
	}
	return nil
}

// DefinitionNames returns the definition table's keys in sorted order for
// deterministic traversal.
func (n *Network) DefinitionNames() []string {
	names := make([]string, 0, len(n.Definitions))
	for name := range n.Definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GuardOf returns the transition's guard, defaulting to true.
func GuardOf(t *Transition) formula.Formula {
	if t.Guard == nil {
		return formula.True()
	}
	return t.Guard
}

// InvariantOf returns the location's invariant, defaulting to true.
func InvariantOf(l *Location) formula.Formula {
	if l.Invariant == nil {
		return formula.True()
	}
	return l.Invariant
}
