package cbe

import (
	"strings"

	"github.com/haml-lang/hamlc/internal/codegen"
	"github.com/haml-lang/hamlc/internal/ha"
)

// typeName builds the C base name of a definition: train.sa -> Train_sa.
func typeName(name string) string {
	id := codegen.Identifier(name)
	if id == "" {
		return id
	}
	return strings.ToUpper(id[:1]) + id[1:]
}

// instField names an instance's member inside its network struct.
func instField(inst *ha.Instance) string {
	return codegen.FileName(inst.Name) + "_data"
}

// netGen emits the glue pair wiring a network's instances together.
type netGen struct {
	net  *ha.Network
	cfg  *ha.CodegenConfig
	name string
	file string
	up   string
}

func newNetGen(net *ha.Network, cfg *ha.CodegenConfig, up string) *netGen {
	return &netGen{
		net:  net,
		cfg:  cfg,
		name: typeName(net.Name),
		file: codegen.FileName(net.Name),
		up:   up,
	}
}

func (g *netGen) structName() string { return g.name + "Data" }
func (g *netGen) initName() string   { return g.name + "Init" }
func (g *netGen) runName() string    { return g.name + "Run" }

// memberType resolves the C base name of an instance's definition, keyed by
// the definitions-table entry so flattened name collisions stay distinct.
func (g *netGen) memberType(inst *ha.Instance) string {
	if _, ok := g.net.Definitions[inst.Definition].(*ha.Network); ok {
		return typeName(g.net.Definitions[inst.Definition].DefName())
	}
	return typeName(inst.Definition)
}

// includePath returns the header an instance's definition lives in,
// relative to this network's folder.
func (g *netGen) includePath(inst *ha.Instance) string {
	switch def := g.net.Definitions[inst.Definition].(type) {
	case *ha.Automaton:
		return codegen.FileName(sourceName(def)) + "/" + codegen.FileName(inst.Definition) + ".h"
	case *ha.Network:
		return codegen.FileName(def.Name) + "/" + codegen.FileName(def.Name) + ".h"
	}
	return ""
}

// context maps qualified port references onto struct member accesses; bare
// names are the network's own ports and pick up the prefix.
func (g *netGen) context() exprContext {
	renames := make(map[string]string)
	for _, inst := range g.net.Instances {
		field := "d->" + instField(inst)
		for _, port := range defPorts(g.net.Definitions[inst.Definition]) {
			renames[inst.Name+"."+port.Name] = field + "." + port.Name
		}
	}
	return exprContext{pd: codegen.PrefixData{Prefix: "d->", Renames: renames}}
}

// defPorts lists a definition's external variables.
func defPorts(def ha.Definition) []*ha.Variable {
	switch d := def.(type) {
	case *ha.Automaton:
		return append(d.ByLocality(ha.ExternalInput), d.ByLocality(ha.ExternalOutput)...)
	case *ha.Network:
		return append(append([]*ha.Variable(nil), d.Inputs...), d.Outputs...)
	}
	return nil
}

func (g *netGen) header() string {
	e := codegen.NewEmitter(g.cfg.IndentSize)
	guard := codegen.MacroName(g.file) + "_H"

	e.Linef("#ifndef %s", guard)
	e.Linef("#define %s", guard)
	e.Blank()
	e.Line("#include <stdbool.h>")
	e.Blank()

	seen := make(map[string]bool)
	for _, inst := range g.net.Instances {
		inc := g.includePath(inst)
		if inc == "" || seen[inc] {
			continue
		}
		seen[inc] = true
		e.Linef("#include \"%s\"", inc)
	}
	e.Blank()

	e.Line("typedef struct {")
	e.Indent()
	for _, v := range g.net.Inputs {
		e.Linef("%s %s;", cType(v.Type), v.Name)
	}
	for _, v := range g.net.Outputs {
		e.Linef("%s %s;", cType(v.Type), v.Name)
	}
	for _, inst := range g.net.Instances {
		e.Linef("%sData %s;", g.memberType(inst), instField(inst))
	}
	e.Dedent()
	e.Linef("} %s;", g.structName())
	e.Blank()

	e.Linef("void %s(%s* d);", g.initName(), g.structName())
	e.Linef("void %s(%s* d);", g.runName(), g.structName())
	e.Blank()
	e.Linef("#endif // %s", guard)
	return e.String()
}

func (g *netGen) body() string {
	e := codegen.NewEmitter(g.cfg.IndentSize)
	ctx := g.context()

	e.Line("#include <string.h>")
	e.Blank()
	e.Linef("#include \"%sconfig.h\"", g.up)
	e.Linef("#include \"%s.h\"", g.file)
	e.Blank()

	e.Linef("void %s(%s* d) {", g.initName(), g.structName())
	e.Indent()
	e.Linef("memset(d, 0, sizeof(%s));", g.structName())
	for _, inst := range g.net.Instances {
		e.Linef("%sInit(&d->%s);", g.memberType(inst), instField(inst))
	}
	g.emitRuntimeParameters(e)
	e.Dedent()
	e.Line("}")
	e.Blank()

	e.Linef("void %s(%s* d) {", g.runName(), g.structName())
	e.Indent()

	// Feed every instance input before any instance ticks, so one tick
	// observes one consistent set of port values.
	wired := false
	for _, m := range g.net.Mappings {
		if m.To.Instance == "" {
			continue
		}
		e.Linef("%s = %s;", ctx.lvalue(m.To.String()), renderExpr(m.From, ctx))
		wired = true
	}
	if wired {
		e.Blank()
	}

	for _, inst := range g.net.Instances {
		e.Linef("%sRun(&d->%s);", g.memberType(inst), instField(inst))
	}

	emitted := false
	for _, m := range g.net.Mappings {
		if m.To.Instance != "" {
			continue
		}
		if !emitted {
			e.Blank()
			emitted = true
		}
		e.Linef("d->%s = %s;", m.To.Port, renderExpr(m.From, ctx))
	}

	e.Dedent()
	e.Line("}")
	return e.String()
}

// emitRuntimeParameters writes instance parameter values into the runtime
// structs after init. Compile-time parametrisation inlines them as macros
// instead, leaving the bindings empty here.
func (g *netGen) emitRuntimeParameters(e *codegen.Emitter) {
	if g.cfg.ParametrisationMethod != ha.RunTime {
		return
	}
	for _, inst := range g.net.Instances {
		if _, ok := g.net.Definitions[inst.Definition].(*ha.Automaton); !ok {
			continue
		}
		for _, p := range inst.Parameters {
			e.Linef("d->%s.%s = %s;", instField(inst), p.Target, renderExpr(p.Expr, exprContext{}))
		}
	}
}

func sourceName(a *ha.Automaton) string {
	if a.Source != "" {
		return a.Source
	}
	return a.Name
}
