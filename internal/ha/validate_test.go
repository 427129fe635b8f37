package ha

import (
	"strings"
	"testing"

	"github.com/haml-lang/hamlc/internal/diagnostic"
	"github.com/haml-lang/hamlc/internal/formula"
	"github.com/haml-lang/hamlc/internal/program"
)

func testAutomaton() *Automaton {
	return &Automaton{
		Name: "Train",
		Variables: []*Variable{
			{Name: "pos", Type: formula.Real, Locality: ExternalOutput},
			{Name: "speed", Type: formula.Real, Locality: Parameter, Default: formula.RealLit(1)},
		},
		Locations: []*Location{
			{
				Name:      "Far",
				Invariant: formula.MustParse("pos < 20"),
				Flow:      []Flow{{Variable: "pos", Expr: formula.MustParse("speed")}},
				Transitions: []*Transition{
					{Target: "Far", Guard: formula.MustParse("pos >= 20"), Update: []Update{{Target: "pos", Expr: formula.RealLit(0)}}},
				},
			},
		},
		Init: Init{Location: "Far", Valuations: []Update{{Target: "pos", Expr: formula.RealLit(0)}}},
	}
}

func testNetwork(auto *Automaton) *Network {
	return &Network{
		Name:        "Main",
		Definitions: map[string]Definition{"Train": auto},
		Instances:   []*Instance{{Name: "train", Definition: "Train"}},
		Config:      DefaultConfig(),
	}
}

func TestValidateCleanModel(t *testing.T) {
	diags := Validate(testNetwork(testAutomaton()))
	if diags.HasErrors() {
		t.Fatalf("unexpected errors:\n%s", diags.Format())
	}
}

func TestValidateMissingInitialLocation(t *testing.T) {
	auto := testAutomaton()
	auto.Init.Location = "Nowhere"
	diags := Validate(testNetwork(auto))
	if !diags.HasErrors() {
		t.Fatal("expected error for missing initial location")
	}
	if !strings.Contains(diags.Format(), "Nowhere") {
		t.Errorf("diagnostic does not name the location:\n%s", diags.Format())
	}
}

func TestValidateUnknownTransitionTarget(t *testing.T) {
	auto := testAutomaton()
	auto.Locations[0].Transitions[0].Target = "Missing"
	diags := Validate(testNetwork(auto))
	if !diags.HasErrors() {
		t.Fatal("expected error for unknown transition target")
	}
}

func TestValidateFlowedParameter(t *testing.T) {
	auto := testAutomaton()
	auto.Locations[0].Flow = append(auto.Locations[0].Flow, Flow{Variable: "speed", Expr: formula.RealLit(1)})
	diags := Validate(testNetwork(auto))
	if !diags.HasErrors() {
		t.Fatal("expected error for flowed parameter")
	}
}

func TestValidateUnresolvedFormulaName(t *testing.T) {
	auto := testAutomaton()
	auto.Locations[0].Transitions[0].Guard = formula.MustParse("altitude > 3")
	diags := Validate(testNetwork(auto))
	if !diags.HasErrors() {
		t.Fatal("expected error for unresolved name in guard")
	}
	found := false
	for _, d := range diags.Errors() {
		if d.Kind == diagnostic.UnresolvedName {
			found = true
		}
	}
	if !found {
		t.Errorf("expected UnresolvedName diagnostic:\n%s", diags.Format())
	}
}

func TestValidateAccumulatesMultipleErrors(t *testing.T) {
	auto := testAutomaton()
	auto.Init.Location = "Nowhere"
	auto.Locations[0].Transitions[0].Target = "Missing"
	diags := Validate(testNetwork(auto))
	if diags.ErrorCount() < 2 {
		t.Errorf("expected both problems reported, got:\n%s", diags.Format())
	}
}

func TestValidateUnresolvedMapping(t *testing.T) {
	net := testNetwork(testAutomaton())
	net.Mappings = []*Mapping{
		{To: PortRef{Instance: "train", Port: "nonexistent"}, From: formula.RealLit(1)},
	}
	diags := Validate(net)
	if !diags.HasErrors() {
		t.Fatal("expected UnresolvedMapping")
	}
	if diags.Errors()[0].Kind != diagnostic.UnresolvedMapping {
		t.Errorf("expected UnresolvedMapping, got %v", diags.Errors()[0])
	}
}

func TestValidateMappingDestinationMustBeInput(t *testing.T) {
	auto := testAutomaton()
	auto.Variables = append(auto.Variables, &Variable{Name: "signal", Type: formula.Real, Locality: ExternalInput})
	net := testNetwork(auto)
	// pos is an output, so using it as a destination must fail
	net.Mappings = []*Mapping{
		{To: PortRef{Instance: "train", Port: "pos"}, From: formula.RealLit(1)},
	}
	diags := Validate(net)
	if !diags.HasErrors() {
		t.Fatal("expected error for mapping onto an output port")
	}
}

func TestValidateWarnsUnusedInternal(t *testing.T) {
	auto := testAutomaton()
	auto.Variables = append(auto.Variables, &Variable{Name: "scratch", Type: formula.Real, Locality: Internal})
	diags := Validate(testNetwork(auto))
	if diags.HasErrors() {
		t.Fatalf("unexpected errors:\n%s", diags.Format())
	}
	if diags.Count() == 0 {
		t.Error("expected a warning for the untouched internal variable")
	}
}

func TestFunctionInference(t *testing.T) {
	auto := testAutomaton()
	body := "if (x > threshold) {\n    return x\n} else {\n    return threshold\n}"
	prog, err := program.Parse(body)
	if err != nil {
		t.Fatalf("parse function body: %v", err)
	}
	auto.Functions = []*Function{{
		Name:   "clamp",
		Params: []FunctionParam{{Name: "x", Type: formula.Real}, {Name: "threshold", Type: formula.Real}},
		Body:   prog,
	}}
	diags := Validate(testNetwork(auto))
	if diags.HasErrors() {
		t.Fatalf("unexpected errors:\n%s", diags.Format())
	}
	fn := auto.Functions[0]
	if !fn.HasReturns || fn.Returns != formula.Real {
		t.Errorf("function return type = (%v, %v), want (REAL, true)", fn.Returns, fn.HasReturns)
	}
}

func TestParsePortRef(t *testing.T) {
	ref := ParsePortRef("heart.sa.v")
	if ref.Instance != "heart.sa" || ref.Port != "v" {
		t.Errorf("ParsePortRef split on the wrong dot: %+v", ref)
	}
	ref = ParsePortRef("pos")
	if ref.Instance != "" || ref.Port != "pos" {
		t.Errorf("bare port mis-parsed: %+v", ref)
	}
}
