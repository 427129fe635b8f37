package formula

import "github.com/haml-lang/hamlc/internal/diagnostic"

// ResultType computes the type a formula evaluates to given the types of its
// free variables and of callable functions. Unknown names fail with
// UnresolvedName, ill-typed operands with TypeMismatch.
func ResultType(f Formula, vars map[string]Type, funcs map[string]Type) (Type, error) {
	switch n := f.(type) {
	case *Lit:
		return n.Type, nil

	case *Var:
		t, ok := vars[n.Name]
		if !ok {
			return Invalid, diagnostic.Errorf(diagnostic.UnresolvedName, "unknown variable %q", n.Name)
		}
		return t, nil

	case *Unary:
		t, err := ResultType(n.X, vars, funcs)
		if err != nil {
			return Invalid, err
		}
		if n.Op == Neg {
			if t != Real {
				return Invalid, diagnostic.Errorf(diagnostic.TypeMismatch, "operand of - is %s, want REAL", t)
			}
			return Real, nil
		}
		if t != Boolean {
			return Invalid, diagnostic.Errorf(diagnostic.TypeMismatch, "operand of ! is %s, want BOOLEAN", t)
		}
		return Boolean, nil

	case *Binary:
		x, err := ResultType(n.X, vars, funcs)
		if err != nil {
			return Invalid, err
		}
		y, err := ResultType(n.Y, vars, funcs)
		if err != nil {
			return Invalid, err
		}
		switch n.Op {
		case Add, Sub, Mul, Div, Pow:
			if x != Real || y != Real {
				return Invalid, diagnostic.Errorf(diagnostic.TypeMismatch, "operands of %s are %s and %s, want REAL", n.Op, x, y)
			}
			return Real, nil
		case Eq, Ne:
			if x != y {
				return Invalid, diagnostic.Errorf(diagnostic.TypeMismatch, "cannot compare %s with %s", x, y)
			}
			return Boolean, nil
		case Lt, Le, Gt, Ge:
			if x != Real || y != Real {
				return Invalid, diagnostic.Errorf(diagnostic.TypeMismatch, "operands of %s are %s and %s, want REAL", n.Op, x, y)
			}
			return Boolean, nil
		case LAnd, LOr:
			if x != Boolean || y != Boolean {
				return Invalid, diagnostic.Errorf(diagnostic.TypeMismatch, "operands of %s are %s and %s, want BOOLEAN", n.Op, x, y)
			}
			return Boolean, nil
		}
		return Invalid, diagnostic.Errorf(diagnostic.TypeMismatch, "unknown binary operator")

	case *Nary:
		for _, x := range n.Xs {
			t, err := ResultType(x, vars, funcs)
			if err != nil {
				return Invalid, err
			}
			if t != Boolean {
				return Invalid, diagnostic.Errorf(diagnostic.TypeMismatch, "operand of %s is %s, want BOOLEAN", n.Op, t)
			}
		}
		return Boolean, nil

	case *Call:
		t, ok := funcs[n.Name]
		if !ok {
			return Invalid, diagnostic.Errorf(diagnostic.UnresolvedName, "unknown function %q", n.Name)
		}
		for _, a := range n.Args {
			if _, err := ResultType(a, vars, funcs); err != nil {
				return Invalid, err
			}
		}
		return t, nil

	case *BuiltinCall:
		want := builtinArity[n.Name]
		if len(n.Args) != want {
			return Invalid, diagnostic.Errorf(diagnostic.ArityMismatch, "%s takes %d argument(s), got %d", n.Name, want, len(n.Args))
		}
		for i, a := range n.Args {
			t, err := ResultType(a, vars, funcs)
			if err != nil {
				return Invalid, err
			}
			if t != Real {
				return Invalid, diagnostic.Errorf(diagnostic.TypeMismatch, "argument %d of %s is %s, want REAL", i+1, n.Name, t)
			}
		}
		return Real, nil

	default:
		return Invalid, diagnostic.Errorf(diagnostic.TypeMismatch, "unknown formula node")
	}
}
