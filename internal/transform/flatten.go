package transform

import (
	"github.com/haml-lang/hamlc/internal/codegen"
	"github.com/haml-lang/hamlc/internal/diagnostic"
	"github.com/haml-lang/hamlc/internal/formula"
	"github.com/haml-lang/hamlc/internal/ha"
)

// Flatten collapses a recursive network into a single network. Inner
// instances are lifted with dotted names and mappings are composed
// transitively, so the flattened network has the same external variables
// and observable I/O as the original.
func Flatten(root *ha.Network) (*ha.Network, error) {
	out := &ha.Network{
		Name:        root.Name,
		Inputs:      root.Inputs,
		Outputs:     root.Outputs,
		Definitions: make(map[string]ha.Definition),
		Config:      root.Config,
	}

	var wires []wire
	liftInstances(root, "", out, &wires)

	// Every mapping becomes a wire definition keyed by its fully qualified
	// destination. Pseudo-ports of nested networks are resolved away by
	// substitution below.
	wireDefs := make(map[string]formula.Formula, len(wires))
	for _, w := range wires {
		wireDefs[w.dest] = w.expr
	}

	r := &resolver{out: out, root: root, wireDefs: wireDefs}
	for _, w := range wires {
		ref := ha.ParsePortRef(w.dest)
		keep := false
		if ref.Instance == "" {
			keep = findVar(root.Outputs, ref.Port) != nil
		} else {
			keep = r.isInstanceInput(ref)
		}
		if !keep {
			continue
		}
		expr, err := r.resolve(w.expr, 0)
		if err != nil {
			return nil, err
		}
		out.Mappings = append(out.Mappings, &ha.Mapping{To: ref, From: expr})
	}

	return out, nil
}

// wire is a mapping with both sides fully qualified by instance path.
type wire struct {
	dest string
	expr formula.Formula
}

// liftInstances walks the network tree depth-first, registering automaton
// instances under dotted names and qualifying every mapping.
func liftInstances(net *ha.Network, prefix string, out *ha.Network, wires *[]wire) {
	for _, inst := range net.Instances {
		def, ok := net.Definitions[inst.Definition]
		if !ok {
			continue
		}
		switch d := def.(type) {
		case *ha.Automaton:
			key := inst.Definition
			if existing, exists := out.Definitions[key]; exists && existing != def {
				key = prefix + inst.Name + "." + inst.Definition
			}
			out.Definitions[key] = d
			out.Instances = append(out.Instances, &ha.Instance{
				Name:       prefix + inst.Name,
				Definition: key,
				Parameters: inst.Parameters,
			})
		case *ha.Network:
			liftInstances(d, prefix+inst.Name+".", out, wires)
		}
	}

	for _, m := range net.Mappings {
		*wires = append(*wires, wire{
			dest: prefix + m.To.String(),
			expr: qualifyFormula(m.From, prefix),
		})
	}
}

// qualifyFormula prefixes every variable reference with the instance path.
func qualifyFormula(f formula.Formula, prefix string) formula.Formula {
	if prefix == "" {
		return f
	}
	return codegen.RewriteNames(f, codegen.PrefixData{Prefix: prefix})
}

type resolver struct {
	out      *ha.Network
	root     *ha.Network
	wireDefs map[string]formula.Formula
}

// isInstanceInput reports whether ref names an input port of a lifted
// automaton instance.
func (r *resolver) isInstanceInput(ref ha.PortRef) bool {
	inst := r.out.InstanceNamed(ref.Instance)
	if inst == nil {
		return false
	}
	auto, ok := r.out.Definitions[inst.Definition].(*ha.Automaton)
	if !ok {
		return false
	}
	v := auto.VariableNamed(ref.Port)
	return v != nil && v.Locality == ha.ExternalInput
}

// isInstanceOutput reports whether ref names an output port of a lifted
// automaton instance.
func (r *resolver) isInstanceOutput(ref ha.PortRef) bool {
	inst := r.out.InstanceNamed(ref.Instance)
	if inst == nil {
		return false
	}
	auto, ok := r.out.Definitions[inst.Definition].(*ha.Automaton)
	if !ok {
		return false
	}
	v := auto.VariableNamed(ref.Port)
	return v != nil && v.Locality == ha.ExternalOutput
}

// resolve substitutes pseudo-port references until only automaton outputs
// and root inputs remain.
func (r *resolver) resolve(f formula.Formula, depth int) (formula.Formula, error) {
	if depth > 100 {
		return nil, diagnostic.Errorf(diagnostic.UnresolvedMapping, "mapping resolution does not terminate")
	}
	for _, name := range formula.Variables(f) {
		ref := ha.ParsePortRef(name)
		if ref.Instance == "" {
			// Root input: terminal
			continue
		}
		if r.isInstanceOutput(ref) {
			continue
		}
		def, ok := r.wireDefs[name]
		if !ok {
			return nil, diagnostic.Errorf(diagnostic.UnresolvedMapping,
				"no source for %q while flattening", name)
		}
		resolved, err := r.resolve(def, depth+1)
		if err != nil {
			return nil, err
		}
		f = formula.SetParameter(f, name, resolved)
	}
	return f, nil
}

func findVar(vars []*ha.Variable, name string) *ha.Variable {
	for _, v := range vars {
		if v.Name == name {
			return v
		}
	}
	return nil
}
