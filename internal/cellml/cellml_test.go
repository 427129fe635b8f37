package cellml

import (
	"testing"

	"github.com/haml-lang/hamlc/internal/formula"
	"github.com/haml-lang/hamlc/internal/ha"
)

const pacemakerDoc = `
<model name="pacemaker">
  <component name="sa_node">
    <variable name="v" initial_value="-80" public_interface="out"/>
    <variable name="stim" public_interface="in"/>
    <variable name="w"/>
    <ode variable="v" rate="0 - v / 10 + stim"/>
    <equation variable="w" expression="v * 2"/>
  </component>
  <component name="av_node">
    <variable name="v" initial_value="-80" public_interface="out"/>
    <variable name="stim" public_interface="in"/>
    <ode variable="v" rate="0 - v / 12 + stim"/>
  </component>
  <connection component_1="sa_node" component_2="av_node">
    <map_variables variable_1="v" variable_2="stim"/>
  </connection>
</model>
`

func TestImportPacemaker(t *testing.T) {
	net, err := ImportSource([]byte(pacemakerDoc))
	if err != nil {
		t.Fatalf("ImportSource: %v", err)
	}

	if net.Name != "pacemaker" {
		t.Errorf("name = %q, want pacemaker", net.Name)
	}
	if len(net.Definitions) != 2 || len(net.Instances) != 2 {
		t.Fatalf("expected 2 definitions and 2 instances, got %d/%d", len(net.Definitions), len(net.Instances))
	}

	sa, ok := net.Definitions["sa_node"].(*ha.Automaton)
	if !ok {
		t.Fatalf("sa_node is %T, want automaton", net.Definitions["sa_node"])
	}
	if len(sa.Locations) != 1 || sa.Init.Location != "main" {
		t.Fatalf("expected single initial location, got %+v", sa.Locations)
	}

	v := sa.VariableNamed("v")
	if v == nil || v.Locality != ha.ExternalOutput {
		t.Errorf("v not lowered as output: %+v", v)
	}
	if v.Default == nil {
		t.Fatal("initial value lost")
	}
	val, err := formula.Evaluate(v.Default, formula.Env{})
	if err != nil || val.Real != -80 {
		t.Errorf("initial value = %v (%v), want -80", val, err)
	}

	loc := sa.Locations[0]
	if len(loc.Flow) != 1 || loc.Flow[0].Variable != "v" {
		t.Errorf("ODE not lowered to flow: %+v", loc.Flow)
	}
	if len(loc.Update) != 1 || loc.Update[0].Target != "w" {
		t.Errorf("equation not lowered to update: %+v", loc.Update)
	}
}

func TestConnectionOrientation(t *testing.T) {
	net, err := ImportSource([]byte(pacemakerDoc))
	if err != nil {
		t.Fatalf("ImportSource: %v", err)
	}
	if len(net.Mappings) != 1 {
		t.Fatalf("expected 1 mapping, got %d", len(net.Mappings))
	}
	m := net.Mappings[0]
	if m.To.Instance != "av_node" || m.To.Port != "stim" {
		t.Errorf("mapping destination = %v, want av_node.stim", m.To)
	}
	src, ok := m.From.(*formula.Var)
	if !ok || src.Name != "sa_node.v" {
		t.Errorf("mapping source = %v, want sa_node.v", m.From)
	}
}

func TestConnectionWithoutDirectionFails(t *testing.T) {
	doc := `
<model name="broken">
  <component name="a">
    <variable name="x" public_interface="out"/>
  </component>
  <component name="b">
    <variable name="y" public_interface="out"/>
  </component>
  <connection component_1="a" component_2="b">
    <map_variables variable_1="x" variable_2="y"/>
  </connection>
</model>
`
	if _, err := ImportSource([]byte(doc)); err == nil {
		t.Fatal("expected error for output-to-output connection")
	}
}

func TestValidatedPipeline(t *testing.T) {
	net, err := ImportSource([]byte(pacemakerDoc))
	if err != nil {
		t.Fatalf("ImportSource: %v", err)
	}
	diags := ha.Validate(net)
	if diags.HasErrors() {
		t.Fatalf("imported model does not validate:\n%s", diags.Format())
	}
}
