package formula

import (
	"math"

	"github.com/haml-lang/hamlc/internal/diagnostic"
)

// Value is the result of evaluating a formula.
type Value struct {
	Type Type
	Real float64
	Bool bool
}

// RealValue wraps a float as a Value.
func RealValue(v float64) Value { return Value{Type: Real, Real: v} }

// BoolValue wraps a bool as a Value.
func BoolValue(v bool) Value { return Value{Type: Boolean, Bool: v} }

// LitOf converts a Value back into a literal node.
func LitOf(v Value) *Lit {
	if v.Type == Boolean {
		return BoolLit(v.Bool)
	}
	return RealLit(v.Real)
}

// Env maps variable names to values for evaluation.
type Env map[string]Value

// Evaluate computes the value of f under env. Evaluation is side-effect free
// and deterministic; it fails with UnresolvedName, TypeMismatch,
// DivisionByZero or ArityMismatch.
func Evaluate(f Formula, env Env) (Value, error) {
	switch n := f.(type) {
	case *Lit:
		if n.Type == Boolean {
			return BoolValue(n.Bool), nil
		}
		return RealValue(n.Real), nil

	case *Var:
		v, ok := env[n.Name]
		if !ok {
			return Value{}, diagnostic.Errorf(diagnostic.UnresolvedName, "no value for %q", n.Name)
		}
		return v, nil

	case *Unary:
		x, err := Evaluate(n.X, env)
		if err != nil {
			return Value{}, err
		}
		switch n.Op {
		case Neg:
			if x.Type != Real {
				return Value{}, diagnostic.Errorf(diagnostic.TypeMismatch, "operand of - is %s, want REAL", x.Type)
			}
			return RealValue(-x.Real), nil
		case Not:
			if x.Type != Boolean {
				return Value{}, diagnostic.Errorf(diagnostic.TypeMismatch, "operand of ! is %s, want BOOLEAN", x.Type)
			}
			return BoolValue(!x.Bool), nil
		}
		return Value{}, diagnostic.Errorf(diagnostic.TypeMismatch, "unknown unary operator")

	case *Binary:
		return evalBinary(n.Op, n.X, n.Y, env)

	case *Nary:
		// Chained && / || with short-circuit left to right
		for _, x := range n.Xs {
			v, err := Evaluate(x, env)
			if err != nil {
				return Value{}, err
			}
			if v.Type != Boolean {
				return Value{}, diagnostic.Errorf(diagnostic.TypeMismatch, "operand of %s is %s, want BOOLEAN", n.Op, v.Type)
			}
			if n.Op == LAnd && !v.Bool {
				return BoolValue(false), nil
			}
			if n.Op == LOr && v.Bool {
				return BoolValue(true), nil
			}
		}
		return BoolValue(n.Op == LAnd), nil

	case *Call:
		return Value{}, diagnostic.Errorf(diagnostic.UnresolvedName, "cannot evaluate call to %q without a function body", n.Name)

	case *BuiltinCall:
		return evalBuiltin(n, env)

	default:
		return Value{}, diagnostic.Errorf(diagnostic.TypeMismatch, "unknown formula node")
	}
}

func evalBinary(op BinOp, xf, yf Formula, env Env) (Value, error) {
	// Short-circuit boolean operators before evaluating the right side
	if op == LAnd || op == LOr {
		x, err := Evaluate(xf, env)
		if err != nil {
			return Value{}, err
		}
		if x.Type != Boolean {
			return Value{}, diagnostic.Errorf(diagnostic.TypeMismatch, "left operand of %s is %s, want BOOLEAN", op, x.Type)
		}
		if op == LAnd && !x.Bool {
			return BoolValue(false), nil
		}
		if op == LOr && x.Bool {
			return BoolValue(true), nil
		}
		y, err := Evaluate(yf, env)
		if err != nil {
			return Value{}, err
		}
		if y.Type != Boolean {
			return Value{}, diagnostic.Errorf(diagnostic.TypeMismatch, "right operand of %s is %s, want BOOLEAN", op, y.Type)
		}
		return BoolValue(y.Bool), nil
	}

	x, err := Evaluate(xf, env)
	if err != nil {
		return Value{}, err
	}
	y, err := Evaluate(yf, env)
	if err != nil {
		return Value{}, err
	}

	switch op {
	case Add, Sub, Mul, Div, Pow:
		if x.Type != Real || y.Type != Real {
			return Value{}, diagnostic.Errorf(diagnostic.TypeMismatch, "operands of %s are %s and %s, want REAL", op, x.Type, y.Type)
		}
		switch op {
		case Add:
			return RealValue(x.Real + y.Real), nil
		case Sub:
			return RealValue(x.Real - y.Real), nil
		case Mul:
			return RealValue(x.Real * y.Real), nil
		case Div:
			if y.Real == 0 {
				return Value{}, diagnostic.Errorf(diagnostic.DivisionByZero, "division by zero")
			}
			return RealValue(x.Real / y.Real), nil
		case Pow:
			return RealValue(math.Pow(x.Real, y.Real)), nil
		}

	case Eq, Ne:
		if x.Type != y.Type {
			return Value{}, diagnostic.Errorf(diagnostic.TypeMismatch, "cannot compare %s with %s", x.Type, y.Type)
		}
		var eq bool
		if x.Type == Boolean {
			eq = x.Bool == y.Bool
		} else {
			eq = x.Real == y.Real
		}
		if op == Ne {
			eq = !eq
		}
		return BoolValue(eq), nil

	case Lt, Le, Gt, Ge:
		if x.Type != Real || y.Type != Real {
			return Value{}, diagnostic.Errorf(diagnostic.TypeMismatch, "operands of %s are %s and %s, want REAL", op, x.Type, y.Type)
		}
		switch op {
		case Lt:
			return BoolValue(x.Real < y.Real), nil
		case Le:
			return BoolValue(x.Real <= y.Real), nil
		case Gt:
			return BoolValue(x.Real > y.Real), nil
		case Ge:
			return BoolValue(x.Real >= y.Real), nil
		}
	}

	return Value{}, diagnostic.Errorf(diagnostic.TypeMismatch, "unknown binary operator")
}

func evalBuiltin(n *BuiltinCall, env Env) (Value, error) {
	want := builtinArity[n.Name]
	if len(n.Args) != want {
		return Value{}, diagnostic.Errorf(diagnostic.ArityMismatch, "%s takes %d argument(s), got %d", n.Name, want, len(n.Args))
	}

	args := make([]float64, len(n.Args))
	for i, a := range n.Args {
		v, err := Evaluate(a, env)
		if err != nil {
			return Value{}, err
		}
		if v.Type != Real {
			return Value{}, diagnostic.Errorf(diagnostic.TypeMismatch, "argument %d of %s is %s, want REAL", i+1, n.Name, v.Type)
		}
		args[i] = v.Real
	}

	switch n.Name {
	case "sqrt":
		return RealValue(math.Sqrt(args[0])), nil
	case "exp":
		return RealValue(math.Exp(args[0])), nil
	case "ln":
		return RealValue(math.Log(args[0])), nil
	case "sin":
		return RealValue(math.Sin(args[0])), nil
	case "cos":
		return RealValue(math.Cos(args[0])), nil
	case "tan":
		return RealValue(math.Tan(args[0])), nil
	case "floor":
		return RealValue(math.Floor(args[0])), nil
	case "ceil":
		return RealValue(math.Ceil(args[0])), nil
	case "abs":
		return RealValue(math.Abs(args[0])), nil
	case "pow":
		return RealValue(math.Pow(args[0], args[1])), nil
	}
	return Value{}, diagnostic.Errorf(diagnostic.UnresolvedName, "unknown builtin %q", n.Name)
}
