package program

import (
	"strings"
	"testing"

	"github.com/haml-lang/hamlc/internal/diagnostic"
	"github.com/haml-lang/hamlc/internal/formula"
)

func mustParse(t *testing.T, src string) *Program {
	t.Helper()
	p, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: unexpected error: %v", err)
	}
	return p
}

func TestParseLineShapes(t *testing.T) {
	src := `
x = 1
return x + 1
f(x)
`
	p := mustParse(t, src)
	if len(p.Lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(p.Lines))
	}
	if a, ok := p.Lines[0].(*Assignment); !ok || a.Target != "x" {
		t.Errorf("expected assignment to x, got %v", p.Lines[0])
	}
	if _, ok := p.Lines[1].(*Return); !ok {
		t.Errorf("expected return, got %v", p.Lines[1])
	}
	if _, ok := p.Lines[2].(*Statement); !ok {
		t.Errorf("expected statement, got %v", p.Lines[2])
	}
}

func TestParseComparisonIsNotAssignment(t *testing.T) {
	p := mustParse(t, "x == 1")
	if _, ok := p.Lines[0].(*Statement); !ok {
		t.Errorf("x == 1 parsed as %T, want statement", p.Lines[0])
	}
}

func TestParseConditionalChain(t *testing.T) {
	src := `if (x > 0) {
    y = 1
} else if (x < 0) {
    y = 2
} else {
    y = 3
}`
	p := mustParse(t, src)
	if len(p.Lines) != 3 {
		t.Fatalf("expected if/elseif/else chain of 3, got %d lines", len(p.Lines))
	}
	ifLine, ok := p.Lines[0].(*If)
	if !ok {
		t.Fatalf("expected if, got %T", p.Lines[0])
	}
	if len(ifLine.Body.Lines) != 1 {
		t.Errorf("if body has %d lines, want 1", len(ifLine.Body.Lines))
	}
	if _, ok := p.Lines[1].(*ElseIf); !ok {
		t.Errorf("expected else if, got %T", p.Lines[1])
	}
	if _, ok := p.Lines[2].(*Else); !ok {
		t.Errorf("expected else, got %T", p.Lines[2])
	}
}

func TestParseNestedConditionals(t *testing.T) {
	src := `if (a) {
    if (b) {
        x = 1
    }
    y = 2
}`
	p := mustParse(t, src)
	outer := p.Lines[0].(*If)
	if len(outer.Body.Lines) != 2 {
		t.Fatalf("outer body has %d lines, want 2", len(outer.Body.Lines))
	}
	inner, ok := outer.Body.Lines[0].(*If)
	if !ok {
		t.Fatalf("expected nested if, got %T", outer.Body.Lines[0])
	}
	if len(inner.Body.Lines) != 1 {
		t.Errorf("inner body has %d lines, want 1", len(inner.Body.Lines))
	}
}

func TestParseUnbalancedBraces(t *testing.T) {
	src := `if (x > 0) {
    y = 1
`
	_, err := Parse(src)
	if err == nil {
		t.Fatal("expected error")
	}
	kind, ok := diagnostic.KindOf(err)
	if !ok || kind != diagnostic.UnbalancedBraces {
		t.Errorf("expected UnbalancedBraces, got %v", err)
	}
}

func TestBraceBalanceLaw(t *testing.T) {
	balanced := []string{
		"x = 1",
		"if (a) {\n}\n",
		"if (a) {\n    if (b) {\n        x = 1\n    }\n}",
	}
	for _, src := range balanced {
		if _, err := Parse(src); err != nil {
			t.Errorf("Parse(%q) failed: %v", src, err)
		}
	}
	unbalanced := []string{
		"if (a) {",
		"if (a) {\n    if (b) {\n    }\n",
	}
	for _, src := range unbalanced {
		if _, err := Parse(src); err == nil {
			t.Errorf("Parse(%q) succeeded, want UnbalancedBraces", src)
		}
	}
}

func TestCollectVariables(t *testing.T) {
	src := `y = x + 1
done = y > 2
if (done) {
    z = y * 2
}`
	p := mustParse(t, src)
	vars, err := CollectVariables(p, map[string]formula.Type{"x": formula.Real}, nil)
	if err != nil {
		t.Fatalf("CollectVariables: %v", err)
	}
	want := map[string]formula.Type{
		"x":    formula.Real,
		"y":    formula.Real,
		"done": formula.Boolean,
		"z":    formula.Real,
	}
	for name, wt := range want {
		if vars[name] != wt {
			t.Errorf("vars[%q] = %v, want %v", name, vars[name], wt)
		}
	}
	if len(vars) != len(want) {
		t.Errorf("collected %d variables, want %d", len(vars), len(want))
	}
}

func TestCollectVariablesTypeConflict(t *testing.T) {
	p := mustParse(t, "x = 1\nx = true")
	_, err := CollectVariables(p, nil, nil)
	if err == nil {
		t.Fatal("expected TypeConflict")
	}
	kind, ok := diagnostic.KindOf(err)
	if !ok || kind != diagnostic.TypeConflict {
		t.Errorf("expected TypeConflict, got %v", err)
	}
	if !strings.Contains(err.Error(), `"x"`) {
		t.Errorf("diagnostic does not cite the variable: %v", err)
	}
}

func TestCollectVariablesHoistsFromBranches(t *testing.T) {
	src := `if (x > 0) {
    hidden = 1
}`
	p := mustParse(t, src)
	vars, err := CollectVariables(p, map[string]formula.Type{"x": formula.Real}, nil)
	if err != nil {
		t.Fatalf("CollectVariables: %v", err)
	}
	if vars["hidden"] != formula.Real {
		t.Errorf("variable from nested branch not recorded: %v", vars)
	}
}

func TestReturnTypeUnification(t *testing.T) {
	src := `if (x > 0) {
    return 1
} else {
    return x + 2
}`
	p := mustParse(t, src)
	vars := map[string]formula.Type{"x": formula.Real}
	got, has, err := ReturnType(p, vars, nil)
	if err != nil {
		t.Fatalf("ReturnType: %v", err)
	}
	if !has || got != formula.Real {
		t.Errorf("ReturnType = (%v, %v), want (REAL, true)", got, has)
	}
}

func TestReturnTypeConflict(t *testing.T) {
	src := `if (x > 0) {
    return 1
} else {
    return true
}`
	p := mustParse(t, src)
	_, _, err := ReturnType(p, map[string]formula.Type{"x": formula.Real}, nil)
	if err == nil {
		t.Fatal("expected ReturnTypeConflict")
	}
	kind, ok := diagnostic.KindOf(err)
	if !ok || kind != diagnostic.ReturnTypeConflict {
		t.Errorf("expected ReturnTypeConflict, got %v", err)
	}
}

func TestReturnOnSomePathsOnly(t *testing.T) {
	src := `if (x > 0) {
    return 1
}`
	p := mustParse(t, src)
	_, _, err := ReturnType(p, map[string]formula.Type{"x": formula.Real}, nil)
	if err == nil {
		t.Fatal("expected ReturnTypeConflict for partial return")
	}
	kind, ok := diagnostic.KindOf(err)
	if !ok || kind != diagnostic.ReturnTypeConflict {
		t.Errorf("expected ReturnTypeConflict, got %v", err)
	}
}

func TestNoReturnIsAllowed(t *testing.T) {
	p := mustParse(t, "x = 1")
	_, has, err := ReturnType(p, nil, nil)
	if err != nil {
		t.Fatalf("ReturnType: %v", err)
	}
	if has {
		t.Error("expected no return")
	}
}

// Round-trip law: re-parsing the serialised program preserves the collected
// variables and return type.
func TestRoundTripNormalised(t *testing.T) {
	src := `y = x * 2
if (y > 4) {
    return y
} else if (y > 2) {
    return y + 1
} else {
    return 0
}`
	p := mustParse(t, src)
	externals := map[string]formula.Type{"x": formula.Real}

	vars1, err := CollectVariables(p, externals, nil)
	if err != nil {
		t.Fatalf("CollectVariables: %v", err)
	}
	ret1, has1, err := ReturnType(p, vars1, nil)
	if err != nil {
		t.Fatalf("ReturnType: %v", err)
	}

	again := mustParse(t, p.String())
	vars2, err := CollectVariables(again, externals, nil)
	if err != nil {
		t.Fatalf("CollectVariables after round-trip: %v\nserialised:\n%s", err, p.String())
	}
	ret2, has2, err := ReturnType(again, vars2, nil)
	if err != nil {
		t.Fatalf("ReturnType after round-trip: %v", err)
	}

	if has1 != has2 || ret1 != ret2 {
		t.Errorf("return type changed: (%v, %v) -> (%v, %v)", ret1, has1, ret2, has2)
	}
	if len(vars1) != len(vars2) {
		t.Fatalf("variable tables differ: %v vs %v", vars1, vars2)
	}
	for name, typ := range vars1 {
		if vars2[name] != typ {
			t.Errorf("variable %q changed type: %v -> %v", name, typ, vars2[name])
		}
	}
}
