package formula

import (
	"strings"
	"testing"

	"github.com/haml-lang/hamlc/internal/diagnostic"
)

func mustParse(t *testing.T, src string) Formula {
	t.Helper()
	f, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): unexpected error: %v", src, err)
	}
	return f
}

func TestParseLiterals(t *testing.T) {
	f := mustParse(t, "1.5e-3")
	lit, ok := f.(*Lit)
	if !ok {
		t.Fatalf("expected literal, got %T", f)
	}
	if lit.Type != Real || lit.Real != 0.0015 {
		t.Errorf("expected real 0.0015, got %v", lit)
	}

	f = mustParse(t, "true")
	lit, ok = f.(*Lit)
	if !ok || lit.Type != Boolean || !lit.Bool {
		t.Errorf("expected boolean true, got %v", f)
	}
}

func TestParsePrecedence(t *testing.T) {
	f := mustParse(t, "1 + 2 * 3")
	bin, ok := f.(*Binary)
	if !ok || bin.Op != Add {
		t.Fatalf("expected top-level +, got %v", f)
	}
	right, ok := bin.Y.(*Binary)
	if !ok || right.Op != Mul {
		t.Fatalf("expected * under +, got %v", bin.Y)
	}
}

func TestParseDottedIdentifier(t *testing.T) {
	f := mustParse(t, "gate.position + 1")
	bin := f.(*Binary)
	v, ok := bin.X.(*Var)
	if !ok || v.Name != "gate.position" {
		t.Errorf("expected variable gate.position, got %v", bin.X)
	}
}

func TestParsePowerRightAssociative(t *testing.T) {
	f := mustParse(t, "2 ^ 3 ^ 2")
	bin := f.(*Binary)
	if bin.Op != Pow {
		t.Fatalf("expected ^, got %v", bin.Op)
	}
	if _, ok := bin.Y.(*Binary); !ok {
		t.Errorf("expected right-nested power, got %v", bin.Y)
	}
}

func TestParseChainedAndCollapses(t *testing.T) {
	f := mustParse(t, "a && b && c")
	nary, ok := f.(*Nary)
	if !ok {
		t.Fatalf("expected n-ary chain, got %T", f)
	}
	if nary.Op != LAnd || len(nary.Xs) != 3 {
		t.Errorf("expected 3-way &&, got op %v with %d operands", nary.Op, len(nary.Xs))
	}

	// Two operands stay binary
	f = mustParse(t, "a && b")
	if _, ok := f.(*Binary); !ok {
		t.Errorf("expected binary &&, got %T", f)
	}
}

func TestParseBuiltinAndCall(t *testing.T) {
	f := mustParse(t, "sqrt(x) + f(x, 2)")
	bin := f.(*Binary)
	if _, ok := bin.X.(*BuiltinCall); !ok {
		t.Errorf("expected builtin sqrt, got %T", bin.X)
	}
	call, ok := bin.Y.(*Call)
	if !ok || call.Name != "f" || len(call.Args) != 2 {
		t.Errorf("expected call f with 2 args, got %v", bin.Y)
	}
}

func TestParseErrorsReportColumn(t *testing.T) {
	_, err := Parse("1 + + 2")
	if err != nil {
		kind, ok := diagnostic.KindOf(err)
		if !ok || kind != diagnostic.Parse {
			t.Errorf("expected Parse kind, got %v", err)
		}
		// the second '+' starts at column 5
		if !strings.Contains(err.Error(), "column 5") {
			t.Errorf("expected the error to cite column 5, got %v", err)
		}
		return
	}
	t.Fatal("expected parse error")
}

func TestParseUnbalancedParens(t *testing.T) {
	if _, err := Parse("(1 + 2"); err == nil {
		t.Error("expected error for missing close paren")
	}
	if _, err := Parse("1 + 2)"); err == nil {
		t.Error("expected error for stray close paren")
	}
}

func TestRoundTrip(t *testing.T) {
	cases := []string{
		"1 + 2 * 3",
		"(1 + 2) * 3",
		"a - b - c",
		"a - (b - c)",
		"2 ^ 3 ^ 2",
		"(2 ^ 3) ^ 2",
		"-x ^ 2",
		"-(x ^ 2)",
		"!done && x < 5",
		"a && b && c",
		"a || b && c || d",
		"sqrt(x + 1) / pow(y, 2)",
		"train.pos >= 20 && train.pos <= 25",
		"f(a, b + 1, true)",
		"!(a || b)",
		"1.5e-3 * x - 0.25",
	}
	for _, src := range cases {
		f := mustParse(t, src)
		again, err := Parse(f.String())
		if err != nil {
			t.Errorf("reparse of %q (serialised %q) failed: %v", src, f.String(), err)
			continue
		}
		if !Equal(f, again) {
			t.Errorf("round-trip of %q changed structure: %q", src, again.String())
		}
	}
}

func TestEvaluate(t *testing.T) {
	env := Env{
		"x": RealValue(4),
		"b": BoolValue(true),
	}
	cases := []struct {
		src  string
		want Value
	}{
		{"1 + 2 * 3", RealValue(7)},
		{"x / 2", RealValue(2)},
		{"2 ^ 3", RealValue(8)},
		{"sqrt(x)", RealValue(2)},
		{"pow(x, 2)", RealValue(16)},
		{"abs(-3)", RealValue(3)},
		{"floor(2.7)", RealValue(2)},
		{"x > 3 && b", BoolValue(true)},
		{"x == 4", BoolValue(true)},
		{"!b || x < 0", BoolValue(false)},
		{"x != 4", BoolValue(false)},
	}
	for _, c := range cases {
		got, err := Evaluate(mustParse(t, c.src), env)
		if err != nil {
			t.Errorf("Evaluate(%q): unexpected error: %v", c.src, err)
			continue
		}
		if got != c.want {
			t.Errorf("Evaluate(%q) = %v, want %v", c.src, got, c.want)
		}
	}
}

func TestEvaluateErrors(t *testing.T) {
	cases := []struct {
		src  string
		kind diagnostic.Kind
	}{
		{"missing + 1", diagnostic.UnresolvedName},
		{"1 + true", diagnostic.TypeMismatch},
		{"1 / 0", diagnostic.DivisionByZero},
		{"sqrt(1, 2)", diagnostic.ArityMismatch},
		{"!5", diagnostic.TypeMismatch},
	}
	for _, c := range cases {
		_, err := Evaluate(mustParse(t, c.src), Env{})
		if err == nil {
			t.Errorf("Evaluate(%q): expected error", c.src)
			continue
		}
		kind, ok := diagnostic.KindOf(err)
		if !ok || kind != c.kind {
			t.Errorf("Evaluate(%q): expected %v, got %v", c.src, c.kind, err)
		}
	}
}

func TestEvaluateShortCircuit(t *testing.T) {
	// The right side would fail with UnresolvedName if evaluated
	got, err := Evaluate(mustParse(t, "false && missing"), Env{})
	if err != nil {
		t.Fatalf("short-circuit && still evaluated right side: %v", err)
	}
	if got != BoolValue(false) {
		t.Errorf("expected false, got %v", got)
	}
}

func TestResultType(t *testing.T) {
	vars := map[string]Type{"x": Real, "b": Boolean}
	funcs := map[string]Type{"f": Boolean}
	cases := []struct {
		src  string
		want Type
	}{
		{"x + 1", Real},
		{"-x", Real},
		{"x < 2", Boolean},
		{"b && x > 0", Boolean},
		{"sqrt(x)", Real},
		{"f(x)", Boolean},
		{"b == false", Boolean},
	}
	for _, c := range cases {
		got, err := ResultType(mustParse(t, c.src), vars, funcs)
		if err != nil {
			t.Errorf("ResultType(%q): unexpected error: %v", c.src, err)
			continue
		}
		if got != c.want {
			t.Errorf("ResultType(%q) = %v, want %v", c.src, got, c.want)
		}
	}

	if _, err := ResultType(mustParse(t, "g(x)"), vars, funcs); err == nil {
		t.Error("expected error for unknown function")
	}
	if _, err := ResultType(mustParse(t, "x && b"), vars, funcs); err == nil {
		t.Error("expected error for REAL operand of &&")
	}
}

// Type inference soundness: when ResultType succeeds, evaluation yields a
// value of that type.
func TestResultTypeSoundness(t *testing.T) {
	vars := map[string]Type{"x": Real, "b": Boolean}
	env := Env{"x": RealValue(2), "b": BoolValue(false)}
	for _, src := range []string{"x * x - 1", "b || x >= 2", "ceil(x / 3)", "!b"} {
		f := mustParse(t, src)
		want, err := ResultType(f, vars, nil)
		if err != nil {
			t.Fatalf("ResultType(%q): %v", src, err)
		}
		got, err := Evaluate(f, env)
		if err != nil {
			t.Fatalf("Evaluate(%q): %v", src, err)
		}
		if got.Type != want {
			t.Errorf("%q: inferred %v but evaluated to %v", src, want, got.Type)
		}
	}
}

// Substituting x := e and evaluating equals evaluating with x bound to
// eval(e).
func TestSetParameterSemantics(t *testing.T) {
	f := mustParse(t, "x * x + y")
	e := mustParse(t, "2 + 1")

	substituted := SetParameter(f, "x", e)
	env := Env{"y": RealValue(5)}
	got, err := Evaluate(substituted, env)
	if err != nil {
		t.Fatalf("evaluating substituted formula: %v", err)
	}

	val, _ := Evaluate(e, env)
	env["x"] = val
	want, err := Evaluate(f, env)
	if err != nil {
		t.Fatalf("evaluating original formula: %v", err)
	}
	if got != want {
		t.Errorf("substitution changed meaning: got %v, want %v", got, want)
	}
}

func TestSetParameterLeavesOriginal(t *testing.T) {
	f := mustParse(t, "x + x")
	_ = SetParameter(f, "x", RealLit(1))
	if f.String() != "x + x" {
		t.Errorf("original tree mutated: %q", f.String())
	}
}

func TestVariablesOrder(t *testing.T) {
	f := mustParse(t, "b + a * b + c")
	got := Variables(f)
	want := []string{"b", "a", "c"}
	if len(got) != len(want) {
		t.Fatalf("Variables = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Variables[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
