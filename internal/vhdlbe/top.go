package vhdlbe

import (
	"bytes"
	"fmt"

	"github.com/haml-lang/hamlc/internal/codegen"
	"github.com/haml-lang/hamlc/internal/formula"
	"github.com/haml-lang/hamlc/internal/ha"
)

type bindingCtx struct {
	Port   string
	Signal string
}

type instanceCtx struct {
	Label    string
	Entity   string
	Bindings []bindingCtx
}

// renderTop wires the network's automaton instances structurally: one
// signal per instance port, mappings lowered to concurrent assignments.
func renderTop(net *ha.Network, cfg *ha.CodegenConfig) (string, string, error) {
	name := entityName(net.Name)

	ctx := exprContext{
		pd:    codegen.PrefixData{Renames: make(map[string]string)},
		types: make(map[string]formula.Type),
	}
	var ports []portCtx
	var signals []signalCtx
	var instances []instanceCtx
	var wires []string

	for _, v := range net.Inputs {
		ports = append(ports, portCtx{Name: v.Name, Dir: "in", Type: vhdlType(v.Type)})
		ctx.pd.Renames[v.Name] = v.Name
		ctx.types[v.Name] = v.Type
	}
	for _, v := range net.Outputs {
		ports = append(ports, portCtx{Name: v.Name, Dir: "out", Type: vhdlType(v.Type)})
		ctx.pd.Renames[v.Name] = v.Name
		ctx.types[v.Name] = v.Type
	}

	for _, inst := range net.Instances {
		auto, ok := net.Definitions[inst.Definition].(*ha.Automaton)
		if !ok {
			continue
		}
		ic := instanceCtx{
			Label:  entityName(inst.Name),
			Entity: entityName(auto.Name),
		}
		for _, v := range auto.ByLocality(ha.ExternalInput) {
			sig := entityName(inst.Name) + "_" + v.Name
			init := "'0'"
			if v.Type == formula.Real {
				init = "to_signed(0, 32)"
			}
			signals = append(signals, signalCtx{Name: sig, Type: vhdlType(v.Type), Init: init})
			ic.Bindings = append(ic.Bindings, bindingCtx{Port: v.Name, Signal: sig})
			ctx.pd.Renames[inst.Name+"."+v.Name] = sig
			ctx.types[inst.Name+"."+v.Name] = v.Type
		}
		for _, v := range auto.ByLocality(ha.ExternalOutput) {
			sig := entityName(inst.Name) + "_" + v.Name
			init := "'0'"
			if v.Type == formula.Real {
				init = "to_signed(0, 32)"
			}
			signals = append(signals, signalCtx{Name: sig, Type: vhdlType(v.Type), Init: init})
			ic.Bindings = append(ic.Bindings, bindingCtx{Port: v.Name, Signal: sig})
			ctx.pd.Renames[inst.Name+"."+v.Name] = sig
			ctx.types[inst.Name+"."+v.Name] = v.Type
		}
		instances = append(instances, ic)
	}

	for _, m := range net.Mappings {
		dest := ctx.signal(m.To.String())
		rhs, err := renderValue(m.From, ctx)
		if err != nil {
			return "", "", err
		}
		wires = append(wires, fmt.Sprintf("%s <= %s;", dest, rhs))
	}

	data := map[string]any{
		"Name":      name,
		"Ports":     ports,
		"Signals":   signals,
		"Instances": instances,
		"Wires":     wires,
	}

	var buf bytes.Buffer
	if err := topTmpl.Execute(&buf, data); err != nil {
		return "", "", err
	}
	return buf.String(), name, nil
}

// renderBench renders the simulation runnable: clock and reset generators
// around the top entity with dangling ports tied to local signals.
func renderBench(net *ha.Network, topName string) string {
	var signals []signalCtx
	var bindings []bindingCtx
	for _, v := range net.Inputs {
		signals = append(signals, signalCtx{Name: "top_" + v.Name, Type: vhdlType(v.Type)})
		bindings = append(bindings, bindingCtx{Port: v.Name, Signal: "top_" + v.Name})
	}
	for _, v := range net.Outputs {
		signals = append(signals, signalCtx{Name: "top_" + v.Name, Type: vhdlType(v.Type)})
		bindings = append(bindings, bindingCtx{Port: v.Name, Signal: "top_" + v.Name})
	}

	var buf bytes.Buffer
	_ = benchTmpl.Execute(&buf, map[string]any{
		"Top":      topName,
		"Signals":  signals,
		"Bindings": bindings,
	})
	return buf.String()
}
