package haml

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/haml-lang/hamlc/internal/diagnostic"
	"github.com/haml-lang/hamlc/internal/formula"
	"github.com/haml-lang/hamlc/internal/ha"
)

const trainGateDoc = `
name: TrainGate

definitions:
  Train:
    outputs:
      pos: REAL
    parameters:
      trainSpeed:
        type: REAL
        default: 1
    locations:
      Far:
        invariant: pos < 20
        flow:
          pos: trainSpeed
        transitions:
          - to: Near
            guard: pos >= 20
      Near:
        invariant: pos < 25
        flow:
          pos: trainSpeed
        transitions:
          - to: Far
            guard: pos >= 25
            update:
              pos: 0
    initialisation:
      location: Far
      valuations:
        pos: 0

  Gate:
    inputs:
      trainPos: REAL
    outputs:
      position: REAL
    locations:
      Open:
        transitions:
          - to: Closed
            guard: trainPos >= 20
            update:
              position: 0
      Closed:
        transitions:
          - to: Open
            guard: trainPos < 20
            update:
              position: 90
    initialisation:
      location: Open
      valuations:
        position: 90

instances:
  train:
    type: Train
    parameters:
      trainSpeed: 1
  gate: Gate

mappings:
  gate.trainPos: train.pos

codegenConfig:
  execution:
    stepSize: 0.001
    simulationTime: 100
  maximumInterTransitions: 2
`

func importTrainGate(t *testing.T) *ha.Network {
	t.Helper()
	net, err := ImportSource(trainGateDoc)
	if err != nil {
		t.Fatalf("ImportSource: %v", err)
	}
	return net
}

func TestImportTrainGate(t *testing.T) {
	net := importTrainGate(t)

	if net.Name != "TrainGate" {
		t.Errorf("name = %q, want TrainGate", net.Name)
	}
	if len(net.Definitions) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(net.Definitions))
	}

	train, ok := net.Definitions["Train"].(*ha.Automaton)
	if !ok {
		t.Fatalf("Train is %T, want automaton", net.Definitions["Train"])
	}
	if len(train.Locations) != 2 {
		t.Errorf("Train has %d locations, want 2", len(train.Locations))
	}
	if train.Init.Location != "Far" {
		t.Errorf("initial location = %q, want Far", train.Init.Location)
	}

	speed := train.VariableNamed("trainSpeed")
	if speed == nil || speed.Locality != ha.Parameter {
		t.Fatalf("trainSpeed not imported as parameter: %+v", speed)
	}
	if speed.Default == nil {
		t.Error("trainSpeed default missing")
	}

	far := train.LocationNamed("Far")
	if far == nil || len(far.Flow) != 1 || far.Flow[0].Variable != "pos" {
		t.Fatalf("Far flow map wrong: %+v", far)
	}
	if len(far.Transitions) != 1 || far.Transitions[0].Target != "Near" {
		t.Errorf("Far transitions wrong: %+v", far.Transitions)
	}

	if len(net.Instances) != 2 {
		t.Fatalf("expected 2 instances, got %d", len(net.Instances))
	}
	if net.Instances[0].Name != "train" || net.Instances[1].Name != "gate" {
		t.Errorf("instance order not preserved: %v, %v", net.Instances[0].Name, net.Instances[1].Name)
	}

	if len(net.Mappings) != 1 {
		t.Fatalf("expected 1 mapping, got %d", len(net.Mappings))
	}
	m := net.Mappings[0]
	if m.To.Instance != "gate" || m.To.Port != "trainPos" {
		t.Errorf("mapping destination = %v", m.To)
	}

	if net.Config.Execution.SimulationTime != 100 {
		t.Errorf("simulationTime = %v, want 100", net.Config.Execution.SimulationTime)
	}
	if net.Config.MaximumInterTransitions != 2 {
		t.Errorf("maximumInterTransitions = %v, want 2", net.Config.MaximumInterTransitions)
	}
	// untouched fields keep their defaults
	if net.Config.Logging.File != "out.csv" || !net.Config.Logging.Enable {
		t.Errorf("logging defaults lost: %+v", net.Config.Logging)
	}
}

func TestImportVariableShorthand(t *testing.T) {
	net := importTrainGate(t)
	gate := net.Definitions["Gate"].(*ha.Automaton)
	pos := gate.VariableNamed("trainPos")
	if pos == nil || pos.Type != formula.Real || pos.Locality != ha.ExternalInput {
		t.Errorf("shorthand input lowered wrong: %+v", pos)
	}
	if pos != nil && pos.Default != nil {
		t.Error("shorthand variable should have no default")
	}
}

func TestImportUnknownField(t *testing.T) {
	doc := `
name: Broken
definitions:
  A:
    locations:
      only:
        colour: red
    initialisation:
      location: only
`
	_, err := ImportSource(doc)
	if err == nil {
		t.Fatal("expected UnknownField")
	}
	kind, ok := diagnostic.KindOf(err)
	if !ok || kind != diagnostic.UnknownField {
		t.Errorf("expected UnknownField, got %v", err)
	}
}

func TestImportNestedNetwork(t *testing.T) {
	doc := `
name: Outer
definitions:
  Cell:
    outputs:
      v: REAL
    locations:
      rest:
        flow:
          v: 0 - v
    initialisation:
      location: rest
  Inner:
    outputs:
      v: REAL
    definitions:
      Cell:
        outputs:
          v: REAL
        locations:
          rest:
            flow:
              v: 0 - v
        initialisation:
          location: rest
    instances:
      sa: Cell
    mappings:
      v: sa.v
instances:
  heart: Inner
mappings:
  out: heart.v
outputs:
  out: REAL
`
	net, err := ImportSource(doc)
	if err != nil {
		t.Fatalf("ImportSource: %v", err)
	}
	inner, ok := net.Definitions["Inner"].(*ha.Network)
	if !ok {
		t.Fatalf("Inner is %T, want nested network", net.Definitions["Inner"])
	}
	if len(inner.Instances) != 1 || inner.Instances[0].Name != "sa" {
		t.Errorf("inner instances wrong: %+v", inner.Instances)
	}
	if len(inner.Outputs) != 1 || inner.Outputs[0].Name != "v" {
		t.Errorf("inner outputs wrong: %+v", inner.Outputs)
	}
}

func TestImportDelayableVariable(t *testing.T) {
	doc := `
name: Delayed
definitions:
  A:
    outputs:
      v:
        type: REAL
        default: 1
        delayableBy: 0.005
    locations:
      run:
        flow:
          v: 1
    initialisation:
      location: run
instances:
  a: A
`
	net, err := ImportSource(doc)
	if err != nil {
		t.Fatalf("ImportSource: %v", err)
	}
	v := net.Definitions["A"].(*ha.Automaton).VariableNamed("v")
	if v.DelayableBy == nil {
		t.Fatal("delayableBy not imported")
	}
	val, err := formula.Evaluate(v.DelayableBy, formula.Env{})
	if err != nil || val.Real != 0.005 {
		t.Errorf("delayableBy = %v (%v), want 0.005", val, err)
	}
}

func TestResolveIncludes(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	write := func(path, content string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write(filepath.Join(dir, "main.yaml"), "name: X\nextra: !include sub/a.yaml\n")
	// relative paths resolve against the including file
	write(filepath.Join(sub, "a.yaml"), "!include b.yaml")
	write(filepath.Join(sub, "b.yaml"), "spliced")

	text, err := ResolveIncludes(filepath.Join(dir, "main.yaml"))
	if err != nil {
		t.Fatalf("ResolveIncludes: %v", err)
	}
	if !strings.Contains(text, "spliced") {
		t.Errorf("include not spliced: %q", text)
	}
	if strings.Contains(text, "!include") {
		t.Errorf("include tag left behind: %q", text)
	}
}

func TestIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("a.yaml", "!include b.yaml")
	write("b.yaml", "!include a.yaml")

	_, err := ResolveIncludes(filepath.Join(dir, "a.yaml"))
	if err == nil {
		t.Fatal("expected IncludeCycle")
	}
	kind, ok := diagnostic.KindOf(err)
	if !ok || kind != diagnostic.IncludeCycle {
		t.Fatalf("expected IncludeCycle, got %v", err)
	}
	if !strings.Contains(err.Error(), "a.yaml") || !strings.Contains(err.Error(), "b.yaml") {
		t.Errorf("cycle participants not named: %v", err)
	}
}

func TestResolveIncludesBlockValue(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("main.yaml", "name: X\ndefinitions:\n  A: !include a.yaml\n")
	write("a.yaml", "outputs:\n  v: REAL\nlocations:\n  run:\n    flow:\n      v: 1\ninitialisation:\n  location: run\n")

	net, err := Import(filepath.Join(dir, "main.yaml"))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	auto, ok := net.Definitions["A"].(*ha.Automaton)
	if !ok {
		t.Fatalf("included definition is %T, want automaton", net.Definitions["A"])
	}
	if auto.LocationNamed("run") == nil {
		t.Errorf("included location lost: %+v", auto.Locations)
	}
}

func TestImportExampleTrainGate(t *testing.T) {
	net, err := Import(filepath.Join("..", "..", "examples", "train_gate", "main.yaml"))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(net.Definitions) != 2 || len(net.Instances) != 2 {
		t.Fatalf("expected 2 definitions and 2 instances, got %d/%d", len(net.Definitions), len(net.Instances))
	}
	if diags := ha.Validate(net); diags.HasErrors() {
		t.Fatalf("example does not validate:\n%s", diags.Format())
	}
	if got := net.Config.Logging.Fields; len(got) != 2 || got[0] != "train.pos" {
		t.Errorf("logging fields = %v", got)
	}
}

func TestImportMissingName(t *testing.T) {
	_, err := ImportSource("definitions: {}\n")
	if err == nil {
		t.Fatal("expected error for missing name")
	}
}
