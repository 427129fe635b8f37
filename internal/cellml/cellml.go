// Package cellml imports CellML-style biomedical models into the same IR
// the HAML importer produces: one single-location automaton per component,
// flows from the ODE set and network mappings from the connections.
//
// The reader accepts the pragmatic subset used by the bundled models: rate
// and equation expressions are infix formula text rather than MathML.
package cellml

import (
	"encoding/xml"
	"os"

	"github.com/pkg/errors"

	"github.com/haml-lang/hamlc/internal/diagnostic"
	"github.com/haml-lang/hamlc/internal/formula"
	"github.com/haml-lang/hamlc/internal/ha"
)

type xmlModel struct {
	XMLName     xml.Name        `xml:"model"`
	Name        string          `xml:"name,attr"`
	Components  []xmlComponent  `xml:"component"`
	Connections []xmlConnection `xml:"connection"`
}

type xmlComponent struct {
	Name      string        `xml:"name,attr"`
	Variables []xmlVariable `xml:"variable"`
	ODEs      []xmlODE      `xml:"ode"`
	Equations []xmlEquation `xml:"equation"`
}

type xmlVariable struct {
	Name            string `xml:"name,attr"`
	InitialValue    string `xml:"initial_value,attr"`
	PublicInterface string `xml:"public_interface,attr"`
}

type xmlODE struct {
	Variable string `xml:"variable,attr"`
	Rate     string `xml:"rate,attr"`
}

type xmlEquation struct {
	Variable   string `xml:"variable,attr"`
	Expression string `xml:"expression,attr"`
}

type xmlConnection struct {
	Component1 string        `xml:"component_1,attr"`
	Component2 string        `xml:"component_2,attr"`
	Maps       []xmlMapVars  `xml:"map_variables"`
}

type xmlMapVars struct {
	Variable1 string `xml:"variable_1,attr"`
	Variable2 string `xml:"variable_2,attr"`
}

// Import loads a CellML-style document and builds a Network.
func Import(path string) (*ha.Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return ImportSource(data)
}

// ImportSource builds a Network from document bytes.
func ImportSource(data []byte) (*ha.Network, error) {
	var model xmlModel
	if err := xml.Unmarshal(data, &model); err != nil {
		return nil, diagnostic.Errorf(diagnostic.Parse, "invalid model document: %v", err)
	}
	if model.Name == "" {
		return nil, diagnostic.Errorf(diagnostic.Parse, "model has no name")
	}

	net := &ha.Network{
		Name:        model.Name,
		Definitions: make(map[string]ha.Definition),
		Config:      ha.DefaultConfig(),
	}

	for _, comp := range model.Components {
		auto, err := lowerComponent(comp)
		if err != nil {
			return nil, err
		}
		net.Definitions[auto.Name] = auto
		net.Instances = append(net.Instances, &ha.Instance{
			Name:       comp.Name,
			Definition: auto.Name,
		})
	}

	for _, conn := range model.Connections {
		maps, err := lowerConnection(net, conn)
		if err != nil {
			return nil, err
		}
		net.Mappings = append(net.Mappings, maps...)
	}

	return net, nil
}

// lowerComponent builds a one-location automaton: the ODE set becomes the
// location's flow map and the algebraic equations its update map.
func lowerComponent(comp xmlComponent) (*ha.Automaton, error) {
	a := &ha.Automaton{Name: comp.Name}

	for _, v := range comp.Variables {
		variable := &ha.Variable{
			Name: v.Name,
			Type: formula.Real,
		}
		switch v.PublicInterface {
		case "in":
			variable.Locality = ha.ExternalInput
		case "out":
			variable.Locality = ha.ExternalOutput
		case "":
			variable.Locality = ha.Internal
		default:
			return nil, diagnostic.Errorf(diagnostic.Parse,
				"component %q: variable %q has unknown public_interface %q", comp.Name, v.Name, v.PublicInterface)
		}
		if v.InitialValue != "" {
			def, err := formula.Parse(v.InitialValue)
			if err != nil {
				return nil, err
			}
			variable.Default = def
		}
		a.Variables = append(a.Variables, variable)
	}

	loc := &ha.Location{Name: "main"}
	for _, ode := range comp.ODEs {
		rate, err := formula.Parse(ode.Rate)
		if err != nil {
			return nil, err
		}
		loc.Flow = append(loc.Flow, ha.Flow{Variable: ode.Variable, Expr: rate})
	}
	for _, eq := range comp.Equations {
		expr, err := formula.Parse(eq.Expression)
		if err != nil {
			return nil, err
		}
		loc.Update = append(loc.Update, ha.Update{Target: eq.Variable, Expr: expr})
	}
	a.Locations = []*ha.Location{loc}
	a.Init.Location = "main"

	return a, nil
}

// lowerConnection turns each variable pair into a mapping, inferring the
// direction from the port localities.
func lowerConnection(net *ha.Network, conn xmlConnection) ([]*ha.Mapping, error) {
	var out []*ha.Mapping
	for _, m := range conn.Maps {
		from, to, err := orient(net, conn, m)
		if err != nil {
			return nil, err
		}
		out = append(out, &ha.Mapping{
			To:   to,
			From: &formula.Var{Name: from.String()},
		})
	}
	return out, nil
}

func orient(net *ha.Network, conn xmlConnection, m xmlMapVars) (ha.PortRef, ha.PortRef, error) {
	loc1 := portLocality(net, conn.Component1, m.Variable1)
	loc2 := portLocality(net, conn.Component2, m.Variable2)

	ref1 := ha.PortRef{Instance: conn.Component1, Port: m.Variable1}
	ref2 := ha.PortRef{Instance: conn.Component2, Port: m.Variable2}

	switch {
	case loc1 == ha.ExternalOutput && loc2 == ha.ExternalInput:
		return ref1, ref2, nil
	case loc1 == ha.ExternalInput && loc2 == ha.ExternalOutput:
		return ref2, ref1, nil
	default:
		return ha.PortRef{}, ha.PortRef{}, diagnostic.Errorf(diagnostic.UnresolvedMapping,
			"connection %s.%s <-> %s.%s does not pair an output with an input",
			conn.Component1, m.Variable1, conn.Component2, m.Variable2)
	}
}

func portLocality(net *ha.Network, component, variable string) ha.Locality {
	auto, ok := net.Definitions[component].(*ha.Automaton)
	if !ok {
		return ha.Internal
	}
	v := auto.VariableNamed(variable)
	if v == nil {
		return ha.Internal
	}
	return v.Locality
}
