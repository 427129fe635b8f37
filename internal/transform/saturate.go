package transform

import (
	"github.com/haml-lang/hamlc/internal/formula"
	"github.com/haml-lang/hamlc/internal/ha"
)

// Candidate marks a flowed variable whose location invariant bounds it, so
// a post-flow clamp could be inserted.
type Candidate struct {
	Definition string
	Location   string
	Variable   string
}

// SaturationCandidates scans the network for flowed variables bounded by
// their location's invariant.
//
// TODO: Saturation. Apply the clamp to the invariant range and surface a
// `saturated` side output once the policy is settled; for now the hook only
// reports candidates.
func SaturationCandidates(net *ha.Network) []Candidate {
	var out []Candidate
	for _, name := range net.DefinitionNames() {
		switch def := net.Definitions[name].(type) {
		case *ha.Network:
			out = append(out, SaturationCandidates(def)...)
		case *ha.Automaton:
			out = append(out, automatonCandidates(def)...)
		}
	}
	return out
}

func automatonCandidates(a *ha.Automaton) []Candidate {
	var out []Candidate
	for _, loc := range a.Locations {
		if loc.Invariant == nil {
			continue
		}
		bounded := boundedVariables(loc.Invariant)
		for _, f := range loc.Flow {
			if bounded[f.Variable] {
				out = append(out, Candidate{Definition: a.Name, Location: loc.Name, Variable: f.Variable})
			}
		}
	}
	return out
}

// boundedVariables collects variables compared against something in an
// invariant's comparison atoms.
func boundedVariables(f formula.Formula) map[string]bool {
	out := make(map[string]bool)
	var walk func(formula.Formula)
	walk = func(f formula.Formula) {
		switch n := f.(type) {
		case *formula.Binary:
			switch n.Op {
			case formula.Lt, formula.Le, formula.Gt, formula.Ge:
				if v, ok := n.X.(*formula.Var); ok {
					out[v.Name] = true
				}
				if v, ok := n.Y.(*formula.Var); ok {
					out[v.Name] = true
				}
			default:
				walk(n.X)
				walk(n.Y)
			}
		case *formula.Nary:
			for _, x := range n.Xs {
				walk(x)
			}
		case *formula.Unary:
			walk(n.X)
		}
	}
	walk(f)
	return out
}
