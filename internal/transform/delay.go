package transform

import (
	"math"

	"github.com/haml-lang/hamlc/internal/diagnostic"
	"github.com/haml-lang/hamlc/internal/formula"
	"github.com/haml-lang/hamlc/internal/ha"
)

// ExpandDelays rewrites every delayable variable into a ring buffer of
// length ceil(d/s)+1. Read sites move to a `<name>_delayed` shadow that the
// backend serves from the buffer, so a read at tick k observes the value
// written at tick max(k-(len-1), 0).
func ExpandDelays(net *ha.Network, cfg *ha.CodegenConfig) error {
	step := cfg.Execution.StepSize
	for _, name := range net.DefinitionNames() {
		switch def := net.Definitions[name].(type) {
		case *ha.Network:
			if err := ExpandDelays(def, cfg); err != nil {
				return err
			}
		case *ha.Automaton:
			if err := expandAutomaton(def, step); err != nil {
				return err
			}
		}
	}
	return nil
}

func expandAutomaton(a *ha.Automaton, step float64) error {
	// Variables collected up front: expansion appends shadows
	delayable := make([]*ha.Variable, 0)
	for _, v := range a.Variables {
		if v.DelayableBy != nil {
			delayable = append(delayable, v)
		}
	}

	for _, v := range delayable {
		val, err := formula.Evaluate(v.DelayableBy, formula.Env{})
		if err != nil {
			return err
		}
		if val.Type != formula.Real {
			return diagnostic.Errorf(diagnostic.TypeMismatch,
				"delayableBy of %q is %s, want REAL", v.Name, val.Type)
		}
		if val.Real <= 0 {
			continue
		}
		if step <= 0 {
			return diagnostic.Errorf(diagnostic.DelayUnsupported,
				"cannot expand delay of %q with step size %g", v.Name, step)
		}

		length := int(math.Ceil(val.Real/step)) + 1
		shadow := v.Name + "_delayed"

		substituteAutomaton(a, v.Name, &formula.Var{Name: shadow})
		a.Variables = append(a.Variables, &ha.Variable{
			Name:     shadow,
			Type:     v.Type,
			Locality: ha.Internal,
			Default:  v.Default,
		})
		a.Delays = append(a.Delays, ha.DelayBuffer{Variable: v.Name, Length: length})
	}
	return nil
}
