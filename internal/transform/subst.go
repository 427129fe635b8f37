// Package transform holds the semantic passes that run between import and
// code generation, in a fixed order: parameter propagation, delay expansion,
// optional flattening, then the saturation hook.
package transform

import (
	"github.com/haml-lang/hamlc/internal/formula"
	"github.com/haml-lang/hamlc/internal/ha"
	"github.com/haml-lang/hamlc/internal/program"
)

// substituteAutomaton replaces every read of name across all of the
// automaton's formulas. Formula trees are rewritten, never mutated.
func substituteAutomaton(a *ha.Automaton, name string, repl formula.Formula) {
	for _, v := range a.Variables {
		if v.Default != nil {
			v.Default = formula.SetParameter(v.Default, name, repl)
		}
		if v.DelayableBy != nil {
			v.DelayableBy = formula.SetParameter(v.DelayableBy, name, repl)
		}
	}
	for _, loc := range a.Locations {
		if loc.Invariant != nil {
			loc.Invariant = formula.SetParameter(loc.Invariant, name, repl)
		}
		for i := range loc.Flow {
			loc.Flow[i].Expr = formula.SetParameter(loc.Flow[i].Expr, name, repl)
		}
		substituteUpdates(loc.Update, name, repl)
		for _, t := range loc.Transitions {
			if t.Guard != nil {
				t.Guard = formula.SetParameter(t.Guard, name, repl)
			}
			substituteUpdates(t.Update, name, repl)
		}
	}
	for _, fn := range a.Functions {
		fn.Body = substituteProgram(fn.Body, name, repl)
	}
	substituteUpdates(a.Init.Valuations, name, repl)
}

func substituteUpdates(updates []ha.Update, name string, repl formula.Formula) {
	for i := range updates {
		updates[i].Expr = formula.SetParameter(updates[i].Expr, name, repl)
	}
}

func substituteProgram(p *program.Program, name string, repl formula.Formula) *program.Program {
	out := &program.Program{Lines: make([]program.Line, len(p.Lines))}
	for i, line := range p.Lines {
		switch l := line.(type) {
		case *program.Statement:
			out.Lines[i] = &program.Statement{Expr: formula.SetParameter(l.Expr, name, repl)}
		case *program.Assignment:
			out.Lines[i] = &program.Assignment{Target: l.Target, Expr: formula.SetParameter(l.Expr, name, repl)}
		case *program.Return:
			out.Lines[i] = &program.Return{Expr: formula.SetParameter(l.Expr, name, repl)}
		case *program.If:
			out.Lines[i] = &program.If{Cond: formula.SetParameter(l.Cond, name, repl), Body: substituteProgram(l.Body, name, repl)}
		case *program.ElseIf:
			out.Lines[i] = &program.ElseIf{Cond: formula.SetParameter(l.Cond, name, repl), Body: substituteProgram(l.Body, name, repl)}
		case *program.Else:
			out.Lines[i] = &program.Else{Body: substituteProgram(l.Body, name, repl)}
		}
	}
	return out
}

// cloneAutomaton deep-copies the mutable skeleton of an automaton. Formula
// trees are shared; every rewrite goes through substitution, which copies.
func cloneAutomaton(a *ha.Automaton) *ha.Automaton {
	out := &ha.Automaton{
		Name:   a.Name,
		Source: a.Source,
		Init: ha.Init{
			Location:   a.Init.Location,
			Valuations: append([]ha.Update(nil), a.Init.Valuations...),
		},
		Delays: append([]ha.DelayBuffer(nil), a.Delays...),
	}
	for _, v := range a.Variables {
		c := *v
		out.Variables = append(out.Variables, &c)
	}
	for _, loc := range a.Locations {
		cl := &ha.Location{
			Name:      loc.Name,
			Invariant: loc.Invariant,
			Flow:      append([]ha.Flow(nil), loc.Flow...),
			Update:    append([]ha.Update(nil), loc.Update...),
		}
		for _, t := range loc.Transitions {
			cl.Transitions = append(cl.Transitions, &ha.Transition{
				Target: t.Target,
				Guard:  t.Guard,
				Update: append([]ha.Update(nil), t.Update...),
			})
		}
		out.Locations = append(out.Locations, cl)
	}
	for _, fn := range a.Functions {
		out.Functions = append(out.Functions, &ha.Function{
			Name:   fn.Name,
			Params: append([]ha.FunctionParam(nil), fn.Params...),
			Body:   fn.Body,
		})
	}
	return out
}
