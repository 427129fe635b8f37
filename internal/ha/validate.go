package ha

import (
	"github.com/haml-lang/hamlc/internal/diagnostic"
	"github.com/haml-lang/hamlc/internal/formula"
	"github.com/haml-lang/hamlc/internal/program"
)

// Validate checks the whole network tree and accumulates diagnostics so one
// invocation reports every problem. Function variable tables and return
// types are attached as a side effect of inference.
func Validate(net *Network) *diagnostic.Diagnostics {
	diags := diagnostic.New()
	validateNetwork(net, diags)
	return diags
}

func validateNetwork(net *Network, diags *diagnostic.Diagnostics) {
	for _, name := range net.DefinitionNames() {
		switch def := net.Definitions[name].(type) {
		case *Automaton:
			validateAutomaton(def, diags)
		case *Network:
			validateNetwork(def, diags)
		}
	}

	for _, inst := range net.Instances {
		def, ok := net.Definitions[inst.Definition]
		if !ok {
			diags.Errorf(diagnostic.UnresolvedName, net.Name,
				"instance %q refers to unknown definition %q", inst.Name, inst.Definition)
			continue
		}
		validateParameters(net, inst, def, diags)
	}

	validateMappings(net, diags)
}

func validateParameters(net *Network, inst *Instance, def Definition, diags *diagnostic.Diagnostics) {
	auto, ok := def.(*Automaton)
	if !ok {
		// Nested networks take no parameters
		if len(inst.Parameters) > 0 {
			diags.Errorf(diagnostic.UnresolvedName, net.Name,
				"instance %q passes parameters to network %q", inst.Name, def.DefName())
		}
		return
	}
	for _, p := range inst.Parameters {
		v := auto.VariableNamed(p.Target)
		if v == nil || v.Locality != Parameter {
			diags.Errorf(diagnostic.UnresolvedName, net.Name,
				"instance %q binds unknown parameter %q of %q", inst.Name, p.Target, auto.Name)
		}
	}
}

func validateAutomaton(a *Automaton, diags *diagnostic.Diagnostics) {
	seen := make(map[string]bool)
	varTypes := make(map[string]formula.Type)
	for _, v := range a.Variables {
		if seen[v.Name] {
			diags.Errorf(diagnostic.TypeConflict, a.Name, "variable %q declared twice", v.Name)
		}
		seen[v.Name] = true
		varTypes[v.Name] = v.Type
	}

	funcTypes := inferFunctions(a, varTypes, diags)

	if a.LocationNamed(a.Init.Location) == nil {
		diags.Errorf(diagnostic.UnresolvedName, a.Name, "initial location %q does not exist", a.Init.Location)
	}
	for _, val := range a.Init.Valuations {
		if a.VariableNamed(val.Target) == nil {
			diags.Errorf(diagnostic.UnresolvedName, a.Name, "initial valuation targets unknown variable %q", val.Target)
		}
		checkFormula(a, val.Expr, varTypes, funcTypes, diags)
	}

	reachable := reachableLocations(a)

	for _, loc := range a.Locations {
		if loc.Invariant != nil {
			checkFormula(a, loc.Invariant, varTypes, funcTypes, diags)
		}
		for _, f := range loc.Flow {
			v := a.VariableNamed(f.Variable)
			if v == nil {
				diags.Errorf(diagnostic.UnresolvedName, a.Name,
					"location %q flows unknown variable %q", loc.Name, f.Variable)
			} else if v.Locality == Parameter {
				diags.Errorf(diagnostic.TypeConflict, a.Name,
					"location %q flows parameter %q", loc.Name, f.Variable)
			}
			checkFormula(a, f.Expr, varTypes, funcTypes, diags)
		}
		for _, u := range loc.Update {
			if a.VariableNamed(u.Target) == nil {
				diags.Errorf(diagnostic.UnresolvedName, a.Name,
					"location %q updates unknown variable %q", loc.Name, u.Target)
			}
			checkFormula(a, u.Expr, varTypes, funcTypes, diags)
		}
		for _, t := range loc.Transitions {
			if a.LocationNamed(t.Target) == nil {
				diags.Errorf(diagnostic.UnresolvedName, a.Name,
					"transition from %q targets unknown location %q", loc.Name, t.Target)
			}
			if t.Guard != nil {
				checkFormula(a, t.Guard, varTypes, funcTypes, diags)
			}
			for _, u := range t.Update {
				if a.VariableNamed(u.Target) == nil {
					diags.Errorf(diagnostic.UnresolvedName, a.Name,
						"transition from %q updates unknown variable %q", loc.Name, u.Target)
				}
				checkFormula(a, u.Expr, varTypes, funcTypes, diags)
			}
		}
	}

	warnUnusedInternals(a, reachable, diags)
}

// inferFunctions collects each function's variable table and return type in
// declaration order, so later functions can call earlier ones.
func inferFunctions(a *Automaton, varTypes map[string]formula.Type, diags *diagnostic.Diagnostics) map[string]formula.Type {
	funcTypes := make(map[string]formula.Type)
	for _, fn := range a.Functions {
		externals := make(map[string]formula.Type, len(fn.Params)+len(varTypes))
		for name, t := range varTypes {
			externals[name] = t
		}
		for _, p := range fn.Params {
			externals[p.Name] = p.Type
		}

		vars, err := program.CollectVariables(fn.Body, externals, funcTypes)
		if err != nil {
			addErr(diags, a.Name, err)
			continue
		}
		fn.Vars = vars

		ret, has, err := program.ReturnType(fn.Body, vars, funcTypes)
		if err != nil {
			addErr(diags, a.Name, err)
			continue
		}
		fn.Returns = ret
		fn.HasReturns = has
		if has {
			funcTypes[fn.Name] = ret
		}
	}
	return funcTypes
}

func checkFormula(a *Automaton, f formula.Formula, varTypes, funcTypes map[string]formula.Type, diags *diagnostic.Diagnostics) {
	if _, err := formula.ResultType(f, varTypes, funcTypes); err != nil {
		addErr(diags, a.Name, err)
	}
}

// addErr converts a kinded error into an accumulated diagnostic.
func addErr(diags *diagnostic.Diagnostics, context string, err error) {
	kind, ok := diagnostic.KindOf(err)
	if !ok {
		kind = diagnostic.TypeMismatch
	}
	msg := err.Error()
	if e, isErr := err.(*diagnostic.Err); isErr {
		msg = e.Msg
	}
	diags.Add(diagnostic.Diagnostic{
		Severity: diagnostic.Error,
		Kind:     kind,
		Message:  msg,
		Context:  context,
	})
}

// reachableLocations walks the transition graph from the initial location.
func reachableLocations(a *Automaton) map[string]bool {
	reachable := make(map[string]bool)
	queue := []string{a.Init.Location}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if reachable[name] {
			continue
		}
		reachable[name] = true
		loc := a.LocationNamed(name)
		if loc == nil {
			continue
		}
		for _, t := range loc.Transitions {
			queue = append(queue, t.Target)
		}
	}
	return reachable
}

// warnUnusedInternals flags internal variables that some reachable location
// neither flows nor updates.
func warnUnusedInternals(a *Automaton, reachable map[string]bool, diags *diagnostic.Diagnostics) {
	for _, v := range a.ByLocality(Internal) {
		for _, loc := range a.Locations {
			if !reachable[loc.Name] {
				continue
			}
			if !locationTouches(loc, v.Name) {
				diags.Warningf(diagnostic.UnresolvedName, a.Name,
					"internal variable %q is neither flowed nor updated in location %q", v.Name, loc.Name)
			}
		}
	}
}

func locationTouches(loc *Location, name string) bool {
	for _, f := range loc.Flow {
		if f.Variable == name {
			return true
		}
	}
	for _, u := range loc.Update {
		if u.Target == name {
			return true
		}
	}
	for _, t := range loc.Transitions {
		for _, u := range t.Update {
			if u.Target == name {
				return true
			}
		}
	}
	return false
}

// validateMappings resolves both sides of every mapping against the
// network's instances and its own external variables.
func validateMappings(net *Network, diags *diagnostic.Diagnostics) {
	for _, m := range net.Mappings {
		if m.To.Instance == "" {
			if findVariable(net.Outputs, m.To.Port) == nil {
				diags.Errorf(diagnostic.UnresolvedMapping, net.Name,
					"mapping destination %q is not a network output", m.To.Port)
			}
		} else if !portExists(net, m.To, ExternalInput) {
			diags.Errorf(diagnostic.UnresolvedMapping, net.Name,
				"mapping destination %q does not resolve to an input port", m.To)
		}

		for _, name := range formula.Variables(m.From) {
			ref := ParsePortRef(name)
			if ref.Instance == "" {
				if findVariable(net.Inputs, ref.Port) == nil {
					diags.Errorf(diagnostic.UnresolvedMapping, net.Name,
						"mapping source %q is not a network input", ref.Port)
				}
			} else if !portExists(net, ref, ExternalOutput) {
				diags.Errorf(diagnostic.UnresolvedMapping, net.Name,
					"mapping source %q does not resolve to an output port", ref)
			}
		}
	}
}

func findVariable(vars []*Variable, name string) *Variable {
	for _, v := range vars {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// portExists checks that ref names an instance and one of its definition's
// ports with the given locality.
func portExists(net *Network, ref PortRef, want Locality) bool {
	inst := net.InstanceNamed(ref.Instance)
	if inst == nil {
		return false
	}
	def, ok := net.Definitions[inst.Definition]
	if !ok {
		return false
	}
	switch d := def.(type) {
	case *Automaton:
		v := d.VariableNamed(ref.Port)
		return v != nil && v.Locality == want
	case *Network:
		if want == ExternalInput {
			return findVariable(d.Inputs, ref.Port) != nil
		}
		return findVariable(d.Outputs, ref.Port) != nil
	}
	return false
}
