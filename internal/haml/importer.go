// Package haml builds the hybrid IR from HAML documents. The schema walk is
// explicit over yaml.Node so that declaration order survives (YAML mappings
// decode into unordered Go maps otherwise) and unknown fields are rejected.
package haml

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/haml-lang/hamlc/internal/diagnostic"
	"github.com/haml-lang/hamlc/internal/formula"
	"github.com/haml-lang/hamlc/internal/ha"
	"github.com/haml-lang/hamlc/internal/program"
)

// Import loads the document at path, resolves includes and maps the result
// onto a Network.
func Import(path string) (*ha.Network, error) {
	text, err := ResolveIncludes(path)
	if err != nil {
		return nil, err
	}
	return ImportSource(text)
}

// ImportSource maps already-spliced document text onto a Network.
func ImportSource(text string) (*ha.Network, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, diagnostic.Errorf(diagnostic.Parse, "invalid YAML: %v", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, diagnostic.Errorf(diagnostic.Parse, "empty document")
	}
	return parseRoot(doc.Content[0])
}

type pair struct {
	key string
	val *yaml.Node
	pos *yaml.Node
}

func mapPairs(node *yaml.Node) ([]pair, error) {
	if node.Kind != yaml.MappingNode {
		return nil, nodeErrf(diagnostic.Parse, node, "expected a mapping")
	}
	pairs := make([]pair, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		pairs = append(pairs, pair{
			key: node.Content[i].Value,
			val: node.Content[i+1],
			pos: node.Content[i],
		})
	}
	return pairs, nil
}

func nodeErrf(kind diagnostic.Kind, node *yaml.Node, format string, args ...any) error {
	prefix := fmt.Sprintf("line %d: ", node.Line)
	return diagnostic.Errorf(kind, prefix+format, args...)
}

func parseRoot(node *yaml.Node) (*ha.Network, error) {
	pairs, err := mapPairs(node)
	if err != nil {
		return nil, err
	}

	net := &ha.Network{
		Definitions: make(map[string]ha.Definition),
		Config:      ha.DefaultConfig(),
	}

	var system *yaml.Node
	for _, p := range pairs {
		switch p.key {
		case "name":
			net.Name = p.val.Value
		case "system":
			system = p.val
		case "codegenConfig":
			if err := parseConfig(net.Config, p.val); err != nil {
				return nil, err
			}
		case "inputs", "outputs", "definitions", "instances", "mappings":
			if err := parseNetworkField(net, p); err != nil {
				return nil, err
			}
		default:
			return nil, nodeErrf(diagnostic.UnknownField, p.pos, "unknown field %q", p.key)
		}
	}

	if net.Name == "" {
		return nil, nodeErrf(diagnostic.Parse, node, "document has no name")
	}

	if system != nil {
		sysPairs, err := mapPairs(system)
		if err != nil {
			return nil, err
		}
		for _, p := range sysPairs {
			switch p.key {
			case "inputs", "outputs", "definitions", "instances", "mappings":
				if err := parseNetworkField(net, p); err != nil {
					return nil, err
				}
			default:
				return nil, nodeErrf(diagnostic.UnknownField, p.pos, "unknown field %q in system", p.key)
			}
		}
	}

	return net, nil
}

func parseNetworkField(net *ha.Network, p pair) error {
	switch p.key {
	case "inputs":
		vars, err := parseVariables(p.val, ha.ExternalInput)
		if err != nil {
			return err
		}
		net.Inputs = append(net.Inputs, vars...)
	case "outputs":
		vars, err := parseVariables(p.val, ha.ExternalOutput)
		if err != nil {
			return err
		}
		net.Outputs = append(net.Outputs, vars...)
	case "definitions":
		defs, err := mapPairs(p.val)
		if err != nil {
			return err
		}
		for _, d := range defs {
			def, err := parseDefinition(d.key, d.val)
			if err != nil {
				return err
			}
			net.Definitions[d.key] = def
		}
	case "instances":
		insts, err := mapPairs(p.val)
		if err != nil {
			return err
		}
		for _, i := range insts {
			inst, err := parseInstance(i.key, i.val)
			if err != nil {
				return err
			}
			net.Instances = append(net.Instances, inst)
		}
	case "mappings":
		maps, err := mapPairs(p.val)
		if err != nil {
			return err
		}
		for _, m := range maps {
			src, err := parseFormulaNode(m.val)
			if err != nil {
				return err
			}
			net.Mappings = append(net.Mappings, &ha.Mapping{
				To:   ha.ParsePortRef(m.key),
				From: src,
			})
		}
	}
	return nil
}

// parseVariables lowers a variable map. A bare type name is shorthand for a
// definition with that type and no default.
func parseVariables(node *yaml.Node, loc ha.Locality) ([]*ha.Variable, error) {
	pairs, err := mapPairs(node)
	if err != nil {
		return nil, err
	}
	var out []*ha.Variable
	for _, p := range pairs {
		v, err := parseVariable(p.key, p.val, loc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseVariable(name string, node *yaml.Node, loc ha.Locality) (*ha.Variable, error) {
	v := &ha.Variable{Name: name, Locality: loc}

	if node.Kind == yaml.ScalarNode {
		t, ok := formula.TypeFromName(node.Value)
		if !ok {
			return nil, nodeErrf(diagnostic.Parse, node, "variable %q: unknown type %q", name, node.Value)
		}
		v.Type = t
		return v, nil
	}

	pairs, err := mapPairs(node)
	if err != nil {
		return nil, err
	}
	for _, p := range pairs {
		switch p.key {
		case "type":
			t, ok := formula.TypeFromName(p.val.Value)
			if !ok {
				return nil, nodeErrf(diagnostic.Parse, p.val, "variable %q: unknown type %q", name, p.val.Value)
			}
			v.Type = t
		case "default":
			f, err := parseFormulaNode(p.val)
			if err != nil {
				return nil, err
			}
			v.Default = f
		case "delayableBy":
			f, err := parseFormulaNode(p.val)
			if err != nil {
				return nil, err
			}
			v.DelayableBy = f
		default:
			return nil, nodeErrf(diagnostic.UnknownField, p.pos, "unknown field %q in variable %q", p.key, name)
		}
	}
	if v.Type == formula.Invalid {
		return nil, nodeErrf(diagnostic.Parse, node, "variable %q has no type", name)
	}
	return v, nil
}

func parseFormulaNode(node *yaml.Node) (formula.Formula, error) {
	if node.Kind != yaml.ScalarNode {
		return nil, nodeErrf(diagnostic.Parse, node, "expected a formula")
	}
	f, err := formula.Parse(node.Value)
	if err != nil {
		return nil, nodeErrf(diagnostic.Parse, node, "%v", err)
	}
	return f, nil
}

// parseDefinition dispatches on shape: a mapping with locations is an
// automaton, one with instances or nested definitions is a network.
func parseDefinition(name string, node *yaml.Node) (ha.Definition, error) {
	pairs, err := mapPairs(node)
	if err != nil {
		return nil, err
	}

	isNetwork := false
	for _, p := range pairs {
		if p.key == "instances" || p.key == "definitions" {
			isNetwork = true
		}
	}

	if isNetwork {
		return parseNestedNetwork(name, pairs)
	}
	return parseAutomaton(name, pairs)
}

func parseNestedNetwork(name string, pairs []pair) (*ha.Network, error) {
	net := &ha.Network{
		Name:        name,
		Definitions: make(map[string]ha.Definition),
	}
	for _, p := range pairs {
		switch p.key {
		case "inputs", "outputs", "definitions", "instances", "mappings":
			if err := parseNetworkField(net, p); err != nil {
				return nil, err
			}
		default:
			return nil, nodeErrf(diagnostic.UnknownField, p.pos, "unknown field %q in network %q", p.key, name)
		}
	}
	return net, nil
}

func parseAutomaton(name string, pairs []pair) (*ha.Automaton, error) {
	a := &ha.Automaton{Name: name}

	for _, p := range pairs {
		switch p.key {
		case "inputs":
			vars, err := parseVariables(p.val, ha.ExternalInput)
			if err != nil {
				return nil, err
			}
			a.Variables = append(a.Variables, vars...)
		case "outputs":
			vars, err := parseVariables(p.val, ha.ExternalOutput)
			if err != nil {
				return nil, err
			}
			a.Variables = append(a.Variables, vars...)
		case "parameters":
			vars, err := parseVariables(p.val, ha.Parameter)
			if err != nil {
				return nil, err
			}
			a.Variables = append(a.Variables, vars...)
		case "internals":
			vars, err := parseVariables(p.val, ha.Internal)
			if err != nil {
				return nil, err
			}
			a.Variables = append(a.Variables, vars...)
		case "locations":
			locs, err := mapPairs(p.val)
			if err != nil {
				return nil, err
			}
			for _, l := range locs {
				loc, err := parseLocation(l.key, l.val)
				if err != nil {
					return nil, err
				}
				a.Locations = append(a.Locations, loc)
			}
		case "functions":
			fns, err := mapPairs(p.val)
			if err != nil {
				return nil, err
			}
			for _, f := range fns {
				fn, err := parseFunction(f.key, f.val)
				if err != nil {
					return nil, err
				}
				a.Functions = append(a.Functions, fn)
			}
		case "initialisation":
			if err := parseInit(a, p.val); err != nil {
				return nil, err
			}
		default:
			return nil, nodeErrf(diagnostic.UnknownField, p.pos, "unknown field %q in definition %q", p.key, name)
		}
	}

	registerImplicitInternals(a)
	return a, nil
}

// registerImplicitInternals declares variables that flows, updates or
// initial valuations target without an explicit declaration. Flowed
// variables are real; anything else defaults to real as well, with
// validation re-checking the use sites.
func registerImplicitInternals(a *ha.Automaton) {
	add := func(name string) {
		if a.VariableNamed(name) == nil {
			a.Variables = append(a.Variables, &ha.Variable{
				Name:     name,
				Type:     formula.Real,
				Locality: ha.Internal,
			})
		}
	}
	for _, loc := range a.Locations {
		for _, f := range loc.Flow {
			add(f.Variable)
		}
		for _, u := range loc.Update {
			add(u.Target)
		}
		for _, t := range loc.Transitions {
			for _, u := range t.Update {
				add(u.Target)
			}
		}
	}
	for _, val := range a.Init.Valuations {
		add(val.Target)
	}
}

func parseLocation(name string, node *yaml.Node) (*ha.Location, error) {
	loc := &ha.Location{Name: name}

	pairs, err := mapPairs(node)
	if err != nil {
		return nil, err
	}
	for _, p := range pairs {
		switch p.key {
		case "invariant":
			f, err := parseFormulaNode(p.val)
			if err != nil {
				return nil, err
			}
			loc.Invariant = f
		case "flow":
			flows, err := mapPairs(p.val)
			if err != nil {
				return nil, err
			}
			for _, fl := range flows {
				f, err := parseFormulaNode(fl.val)
				if err != nil {
					return nil, err
				}
				loc.Flow = append(loc.Flow, ha.Flow{Variable: fl.key, Expr: f})
			}
		case "update":
			updates, err := parseUpdates(p.val)
			if err != nil {
				return nil, err
			}
			loc.Update = updates
		case "transitions":
			if p.val.Kind != yaml.SequenceNode {
				return nil, nodeErrf(diagnostic.Parse, p.val, "transitions must be a sequence")
			}
			for _, t := range p.val.Content {
				tr, err := parseTransition(t)
				if err != nil {
					return nil, err
				}
				loc.Transitions = append(loc.Transitions, tr)
			}
		default:
			return nil, nodeErrf(diagnostic.UnknownField, p.pos, "unknown field %q in location %q", p.key, name)
		}
	}
	return loc, nil
}

func parseUpdates(node *yaml.Node) ([]ha.Update, error) {
	pairs, err := mapPairs(node)
	if err != nil {
		return nil, err
	}
	var out []ha.Update
	for _, p := range pairs {
		f, err := parseFormulaNode(p.val)
		if err != nil {
			return nil, err
		}
		out = append(out, ha.Update{Target: p.key, Expr: f})
	}
	return out, nil
}

func parseTransition(node *yaml.Node) (*ha.Transition, error) {
	tr := &ha.Transition{}

	pairs, err := mapPairs(node)
	if err != nil {
		return nil, err
	}
	for _, p := range pairs {
		switch p.key {
		case "to":
			tr.Target = p.val.Value
		case "guard":
			f, err := parseFormulaNode(p.val)
			if err != nil {
				return nil, err
			}
			tr.Guard = f
		case "update":
			updates, err := parseUpdates(p.val)
			if err != nil {
				return nil, err
			}
			tr.Update = updates
		default:
			return nil, nodeErrf(diagnostic.UnknownField, p.pos, "unknown field %q in transition", p.key)
		}
	}
	if tr.Target == "" {
		return nil, nodeErrf(diagnostic.Parse, node, "transition has no target")
	}
	return tr, nil
}

// parseFunction accepts either a bare program string or a mapping with
// typed inputs and a code block.
func parseFunction(name string, node *yaml.Node) (*ha.Function, error) {
	fn := &ha.Function{Name: name}

	if node.Kind == yaml.ScalarNode {
		body, err := program.Parse(node.Value)
		if err != nil {
			return nil, err
		}
		fn.Body = body
		return fn, nil
	}

	pairs, err := mapPairs(node)
	if err != nil {
		return nil, err
	}
	for _, p := range pairs {
		switch p.key {
		case "inputs":
			params, err := mapPairs(p.val)
			if err != nil {
				return nil, err
			}
			for _, param := range params {
				t, ok := formula.TypeFromName(param.val.Value)
				if !ok {
					return nil, nodeErrf(diagnostic.Parse, param.val, "function %q: unknown type %q", name, param.val.Value)
				}
				fn.Params = append(fn.Params, ha.FunctionParam{Name: param.key, Type: t})
			}
		case "code":
			body, err := program.Parse(p.val.Value)
			if err != nil {
				return nil, err
			}
			fn.Body = body
		default:
			return nil, nodeErrf(diagnostic.UnknownField, p.pos, "unknown field %q in function %q", p.key, name)
		}
	}
	if fn.Body == nil {
		return nil, nodeErrf(diagnostic.Parse, node, "function %q has no code", name)
	}
	return fn, nil
}

func parseInit(a *ha.Automaton, node *yaml.Node) error {
	pairs, err := mapPairs(node)
	if err != nil {
		return err
	}
	for _, p := range pairs {
		switch p.key {
		case "location":
			a.Init.Location = p.val.Value
		case "valuations":
			updates, err := parseUpdates(p.val)
			if err != nil {
				return err
			}
			a.Init.Valuations = updates
		default:
			return nodeErrf(diagnostic.UnknownField, p.pos, "unknown field %q in initialisation", p.key)
		}
	}
	return nil
}

// parseInstance accepts either a bare definition name or a mapping with a
// type and parameter bindings.
func parseInstance(name string, node *yaml.Node) (*ha.Instance, error) {
	inst := &ha.Instance{Name: name}

	if node.Kind == yaml.ScalarNode {
		inst.Definition = node.Value
		return inst, nil
	}

	pairs, err := mapPairs(node)
	if err != nil {
		return nil, err
	}
	for _, p := range pairs {
		switch p.key {
		case "type":
			inst.Definition = p.val.Value
		case "parameters":
			params, err := parseUpdates(p.val)
			if err != nil {
				return nil, err
			}
			inst.Parameters = params
		default:
			return nil, nodeErrf(diagnostic.UnknownField, p.pos, "unknown field %q in instance %q", p.key, name)
		}
	}
	if inst.Definition == "" {
		return nil, nodeErrf(diagnostic.Parse, node, "instance %q has no type", name)
	}
	return inst, nil
}

func parseConfig(cfg *ha.CodegenConfig, node *yaml.Node) error {
	pairs, err := mapPairs(node)
	if err != nil {
		return err
	}
	for _, p := range pairs {
		switch p.key {
		case "indentSize":
			if err := p.val.Decode(&cfg.IndentSize); err != nil {
				return nodeErrf(diagnostic.Parse, p.val, "indentSize: %v", err)
			}
		case "execution":
			if err := parseExecution(&cfg.Execution, p.val); err != nil {
				return err
			}
		case "logging":
			if err := parseLogging(&cfg.Logging, p.val); err != nil {
				return err
			}
		case "parametrisationMethod":
			switch p.val.Value {
			case "COMPILE_TIME":
				cfg.ParametrisationMethod = ha.CompileTime
			case "RUN_TIME":
				cfg.ParametrisationMethod = ha.RunTime
			default:
				return nodeErrf(diagnostic.Parse, p.val, "unknown parametrisation method %q", p.val.Value)
			}
		case "maximumInterTransitions":
			if err := p.val.Decode(&cfg.MaximumInterTransitions); err != nil {
				return nodeErrf(diagnostic.Parse, p.val, "maximumInterTransitions: %v", err)
			}
			if cfg.MaximumInterTransitions < 0 {
				return nodeErrf(diagnostic.Parse, p.val, "maximumInterTransitions must be >= 0")
			}
		case "requireOneIntraTransitionPerTick":
			if err := p.val.Decode(&cfg.RequireOneIntraTransitionPerTick); err != nil {
				return nodeErrf(diagnostic.Parse, p.val, "requireOneIntraTransitionPerTick: %v", err)
			}
		default:
			return nodeErrf(diagnostic.UnknownField, p.pos, "unknown field %q in codegenConfig", p.key)
		}
	}
	return nil
}

func parseExecution(exec *ha.ExecutionConfig, node *yaml.Node) error {
	pairs, err := mapPairs(node)
	if err != nil {
		return err
	}
	for _, p := range pairs {
		switch p.key {
		case "stepSize":
			if err := p.val.Decode(&exec.StepSize); err != nil {
				return nodeErrf(diagnostic.Parse, p.val, "stepSize: %v", err)
			}
		case "simulationTime":
			if err := p.val.Decode(&exec.SimulationTime); err != nil {
				return nodeErrf(diagnostic.Parse, p.val, "simulationTime: %v", err)
			}
		default:
			return nodeErrf(diagnostic.UnknownField, p.pos, "unknown field %q in execution", p.key)
		}
	}
	return nil
}

func parseLogging(log *ha.LoggingConfig, node *yaml.Node) error {
	pairs, err := mapPairs(node)
	if err != nil {
		return err
	}
	for _, p := range pairs {
		switch p.key {
		case "enable":
			if err := p.val.Decode(&log.Enable); err != nil {
				return nodeErrf(diagnostic.Parse, p.val, "enable: %v", err)
			}
		case "interval":
			if err := p.val.Decode(&log.Interval); err != nil {
				return nodeErrf(diagnostic.Parse, p.val, "interval: %v", err)
			}
		case "file":
			log.File = p.val.Value
		case "fields":
			if err := p.val.Decode(&log.Fields); err != nil {
				return nodeErrf(diagnostic.Parse, p.val, "fields: %v", err)
			}
		default:
			return nodeErrf(diagnostic.UnknownField, p.pos, "unknown field %q in logging", p.key)
		}
	}
	return nil
}
