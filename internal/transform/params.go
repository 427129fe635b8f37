package transform

import (
	"github.com/haml-lang/hamlc/internal/diagnostic"
	"github.com/haml-lang/hamlc/internal/formula"
	"github.com/haml-lang/hamlc/internal/ha"
)

// PropagateParameters pushes instance parameter bindings into definitions.
// Under COMPILE_TIME each instance gets its own specialised clone of the
// referenced automaton with parameter reads substituted by their values.
// Under RUN_TIME definitions stay shared and each instance's bindings are
// normalised to literal values for init-time assignment.
func PropagateParameters(net *ha.Network, method ha.ParametrisationMethod) error {
	for _, name := range net.DefinitionNames() {
		if sub, ok := net.Definitions[name].(*ha.Network); ok {
			if err := PropagateParameters(sub, method); err != nil {
				return err
			}
		}
	}

	for _, inst := range net.Instances {
		auto, ok := net.Definitions[inst.Definition].(*ha.Automaton)
		if !ok {
			continue
		}
		if method == ha.CompileTime {
			if err := specialise(net, inst, auto); err != nil {
				return err
			}
		} else {
			if err := normaliseBindings(inst, auto); err != nil {
				return err
			}
		}
	}
	return nil
}

// bindingValue evaluates a parameter expression in the enclosing scope.
// Instances are parametrised from above, so the scope holds only constants.
func bindingValue(inst *ha.Instance, v *ha.Variable) (formula.Value, error) {
	expr := v.Default
	for _, p := range inst.Parameters {
		if p.Target == v.Name {
			expr = p.Expr
			break
		}
	}
	if expr == nil {
		return formula.Value{}, diagnostic.Errorf(diagnostic.UnresolvedName,
			"instance %q leaves parameter %q unbound and it has no default",
			inst.Name, v.Name)
	}
	val, err := formula.Evaluate(expr, formula.Env{})
	if err != nil {
		return formula.Value{}, err
	}
	return val, nil
}

// specialise clones the automaton for one instance and substitutes every
// parameter read with its bound value. The clone is registered under the
// instance's name and remembers the definition it came from.
func specialise(net *ha.Network, inst *ha.Instance, auto *ha.Automaton) error {
	clone := cloneAutomaton(auto)
	clone.Source = auto.Name
	clone.Name = inst.Name

	for _, v := range clone.ByLocality(ha.Parameter) {
		val, err := bindingValue(inst, v)
		if err != nil {
			return err
		}
		lit := formula.LitOf(val)
		substituteAutomaton(clone, v.Name, lit)
		v.Default = lit
	}

	net.Definitions[inst.Name] = clone
	inst.Definition = inst.Name
	inst.Parameters = nil
	return nil
}

// normaliseBindings reduces every parameter binding to a literal so init
// code can assign it into the runtime struct, filling in defaults for
// unbound parameters.
func normaliseBindings(inst *ha.Instance, auto *ha.Automaton) error {
	var out []ha.Update
	for _, v := range auto.ByLocality(ha.Parameter) {
		val, err := bindingValue(inst, v)
		if err != nil {
			return err
		}
		out = append(out, ha.Update{Target: v.Name, Expr: formula.LitOf(val)})
	}
	inst.Parameters = out
	return nil
}
