package program

import (
	"github.com/haml-lang/hamlc/internal/diagnostic"
	"github.com/haml-lang/hamlc/internal/formula"
)

// CollectVariables discovers every variable the program references and
// returns a name-to-type table. Externals seed the table. Assignment targets
// are registered with the type of their right-hand side; a later assignment
// of a different type is a TypeConflict. Names referenced at a level are
// registered before conditional bodies are descended into, so a variable
// first assigned inside a nested branch is still recorded in the table
// shared by the whole program.
func CollectVariables(p *Program, externals map[string]formula.Type, funcs map[string]formula.Type) (map[string]formula.Type, error) {
	vars := make(map[string]formula.Type, len(externals))
	for name, t := range externals {
		vars[name] = t
	}
	if err := collectLevel(p, vars, funcs); err != nil {
		return nil, err
	}
	return vars, nil
}

func collectLevel(p *Program, vars map[string]formula.Type, funcs map[string]formula.Type) error {
	var bodies []*Program

	for _, line := range p.Lines {
		switch l := line.(type) {
		case *Statement:
			if _, err := formula.ResultType(l.Expr, vars, funcs); err != nil {
				return err
			}
		case *Return:
			if _, err := formula.ResultType(l.Expr, vars, funcs); err != nil {
				return err
			}
		case *Assignment:
			t, err := formula.ResultType(l.Expr, vars, funcs)
			if err != nil {
				return err
			}
			if prev, ok := vars[l.Target]; ok {
				if prev != t {
					return diagnostic.Errorf(diagnostic.TypeConflict,
						"variable %q assigned %s value but already has type %s", l.Target, t, prev)
				}
			} else {
				vars[l.Target] = t
			}
		case *If:
			if err := checkCondition(l.Cond, vars, funcs); err != nil {
				return err
			}
			bodies = append(bodies, l.Body)
		case *ElseIf:
			if err := checkCondition(l.Cond, vars, funcs); err != nil {
				return err
			}
			bodies = append(bodies, l.Body)
		case *Else:
			bodies = append(bodies, l.Body)
		}
	}

	// Descend only after the whole level is registered
	for _, b := range bodies {
		if err := collectLevel(b, vars, funcs); err != nil {
			return err
		}
	}
	return nil
}

func checkCondition(cond formula.Formula, vars map[string]formula.Type, funcs map[string]formula.Type) error {
	t, err := formula.ResultType(cond, vars, funcs)
	if err != nil {
		return err
	}
	if t != formula.Boolean {
		return diagnostic.Errorf(diagnostic.TypeMismatch, "condition is %s, want BOOLEAN", t)
	}
	return nil
}

// ReturnType unifies the types of every return site in the program. The
// second result is false when the program never returns. All return sites
// must agree, and a program with any return must return on every path;
// either violation is a ReturnTypeConflict.
func ReturnType(p *Program, vars map[string]formula.Type, funcs map[string]formula.Type) (formula.Type, bool, error) {
	t, found, err := returnTypeIn(p, vars, funcs, formula.Invalid, false)
	if err != nil {
		return formula.Invalid, false, err
	}
	if found && !AllPathsReturn(p) {
		return formula.Invalid, false, diagnostic.Errorf(diagnostic.ReturnTypeConflict,
			"program returns on some paths but not all")
	}
	return t, found, nil
}

// returnTypeIn folds combine over every return site, recursing into
// conditional bodies.
func returnTypeIn(p *Program, vars, funcs map[string]formula.Type, acc formula.Type, found bool) (formula.Type, bool, error) {
	var err error
	for _, line := range p.Lines {
		switch l := line.(type) {
		case *Return:
			t, terr := formula.ResultType(l.Expr, vars, funcs)
			if terr != nil {
				return formula.Invalid, false, terr
			}
			acc, err = combine(acc, t)
			if err != nil {
				return formula.Invalid, false, err
			}
			found = true
		case *If:
			acc, found, err = returnTypeIn(l.Body, vars, funcs, acc, found)
		case *ElseIf:
			acc, found, err = returnTypeIn(l.Body, vars, funcs, acc, found)
		case *Else:
			acc, found, err = returnTypeIn(l.Body, vars, funcs, acc, found)
		}
		if err != nil {
			return formula.Invalid, false, err
		}
	}
	return acc, found, nil
}

// combine unifies two return types: absent is replaced, equal types agree,
// unequal types conflict.
func combine(a, b formula.Type) (formula.Type, error) {
	if a == formula.Invalid {
		return b, nil
	}
	if b == formula.Invalid || a == b {
		return a, nil
	}
	return formula.Invalid, diagnostic.Errorf(diagnostic.ReturnTypeConflict,
		"return sites disagree: %s vs %s", a, b)
}

// AllPathsReturn reports whether every execution path through the program
// ends in a return.
func AllPathsReturn(p *Program) bool {
	for i := 0; i < len(p.Lines); i++ {
		switch l := p.Lines[i].(type) {
		case *Return:
			return true
		case *If:
			branches := []*Program{l.Body}
			hasElse := false
			j := i + 1
		chain:
			for ; j < len(p.Lines); j++ {
				switch c := p.Lines[j].(type) {
				case *ElseIf:
					branches = append(branches, c.Body)
				case *Else:
					branches = append(branches, c.Body)
					hasElse = true
					j++
					break chain
				default:
					break chain
				}
			}
			if hasElse {
				all := true
				for _, b := range branches {
					if !AllPathsReturn(b) {
						all = false
						break
					}
				}
				if all {
					return true
				}
			}
			i = j - 1
		}
	}
	return false
}
