package cbe

import (
	"fmt"
	"strings"

	"github.com/haml-lang/hamlc/internal/codegen"
	"github.com/haml-lang/hamlc/internal/ha"
	"github.com/haml-lang/hamlc/internal/program"
)

// autoGen emits the header/body pair for one automaton.
type autoGen struct {
	a    *ha.Automaton
	cfg  *ha.CodegenConfig
	name string // C base name, e.g. Train1
	file string // file base name, e.g. train1
	up   string // relative path from the pair's folder to the output root
	ct   bool   // compile-time parametrisation
}

func newAutoGen(a *ha.Automaton, cfg *ha.CodegenConfig, cname, file, up string) *autoGen {
	return &autoGen{
		a:    a,
		cfg:  cfg,
		name: cname,
		file: file,
		up:   up,
		ct:   cfg.ParametrisationMethod == ha.CompileTime,
	}
}

func (g *autoGen) structName() string { return g.name + "Data" }
func (g *autoGen) statesName() string { return g.name + "States" }
func (g *autoGen) initName() string   { return g.name + "Init" }
func (g *autoGen) runName() string    { return g.name + "Run" }

func (g *autoGen) stateMacro(loc string) string {
	return codegen.MacroName(g.name) + "_" + codegen.MacroName(loc)
}

func (g *autoGen) paramMacro(param string) string {
	return codegen.MacroName(g.name) + "_" + codegen.MacroName(param)
}

func (g *autoGen) fnName(fn string) string {
	return g.name + "_" + codegen.Identifier(fn)
}

// structFields returns the struct's variables in the contract order:
// external inputs, external outputs, internals, then runtime parameters.
func (g *autoGen) structFields() []*ha.Variable {
	fields := append([]*ha.Variable(nil), g.a.ByLocality(ha.ExternalInput)...)
	fields = append(fields, g.a.ByLocality(ha.ExternalOutput)...)
	fields = append(fields, g.a.ByLocality(ha.Internal)...)
	if !g.ct {
		fields = append(fields, g.a.ByLocality(ha.Parameter)...)
	}
	return fields
}

// context builds the rename context for formulas read against the given
// struct access prefix. Compile-time parameters substitute to their macros;
// everything else picks up the prefix.
func (g *autoGen) context(access string) exprContext {
	renames := make(map[string]string)
	if g.ct {
		for _, v := range g.a.ByLocality(ha.Parameter) {
			renames[v.Name] = g.paramMacro(v.Name)
		}
	}
	funcs := make(map[string]string)
	for _, fn := range g.a.Functions {
		funcs[fn.Name] = g.fnName(fn.Name)
	}
	return exprContext{
		pd:    codegen.PrefixData{Prefix: access, Renames: renames},
		funcs: funcs,
		data:  "d",
	}
}

// --- header ---

func (g *autoGen) header() string {
	e := codegen.NewEmitter(g.cfg.IndentSize)
	guard := codegen.MacroName(g.file) + "_H"

	e.Linef("#ifndef %s", guard)
	e.Linef("#define %s", guard)
	e.Blank()
	e.Line("#include <stdbool.h>")
	e.Blank()

	if g.ct {
		params := g.a.ByLocality(ha.Parameter)
		for _, p := range params {
			val := "0.0"
			if p.Default != nil {
				val = renderExpr(p.Default, exprContext{})
			}
			e.Linef("#define %s (%s)", g.paramMacro(p.Name), val)
		}
		if len(params) > 0 {
			e.Blank()
		}
	}

	e.Line("typedef enum {")
	e.Indent()
	for i, loc := range g.a.Locations {
		sep := ","
		if i == len(g.a.Locations)-1 {
			sep = ""
		}
		e.Linef("%s%s", g.stateMacro(loc.Name), sep)
	}
	e.Dedent()
	e.Linef("} %s;", g.statesName())
	e.Blank()

	e.Line("typedef struct {")
	e.Indent()
	e.Linef("%s state;", g.statesName())
	for _, v := range g.structFields() {
		e.Linef("%s %s;", cType(v.Type), v.Name)
	}
	for _, d := range g.a.Delays {
		e.Linef("double %s_buffer[%d];", d.Variable, d.Length)
		e.Linef("int %s_count;", d.Variable)
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

// --- body ---

func (g *autoGen) body() string {
	e := codegen.NewEmitter(g.cfg.IndentSize)

	e.Line("#include <math.h>")
	e.Line("#include <string.h>")
	e.Blank()
	e.Linef("#include \"%sconfig.h\"", g.up)
	e.Linef("#include \"%s.h\"", g.file)
	e.Blank()

	g.emitFunctions(e)
	g.emitInit(e)
	e.Blank()
	g.emitRun(e)

	return e.String()
}

func (g *autoGen) emitInit(e *codegen.Emitter) {
	ctx := g.context("d->")

	e.Linef("void %s(%s* d) {", g.initName(), g.structName())
	e.Indent()
	e.Linef("memset(d, 0, sizeof(%s));", g.structName())
	for _, v := range g.structFields() {
		if v.Default != nil {
			e.Linef("d->%s = %s;", v.Name, renderExpr(v.Default, ctx))
		}
	}
	e.Linef("d->state = %s;", g.stateMacro(g.a.Init.Location))
	for _, val := range g.a.Init.Valuations {
		e.Linef("d->%s = %s;", val.Target, renderExpr(val.Expr, ctx))
	}
	for _, d := range g.a.Delays {
		e.Linef("for (int i = 0; i < %d; i++) {", d.Length)
		e.Indent()
		e.Linef("d->%s_buffer[i] = d->%s;", d.Variable, d.Variable)
		e.Dedent()
		e.Line("}")
		e.Linef("d->%s_delayed = d->%s;", d.Variable, d.Variable)
	}
	e.Dedent()
	e.Line("}")
}

func (g *autoGen) emitRun(e *codegen.Emitter) {
	readCtx := g.context("d->")

	e.Linef("void %s(%s* d) {", g.runName(), g.structName())
	e.Indent()
	e.Linef("%s u = *d;", g.structName())
	e.Line("bool fired = false;")
	e.Blank()

	// Inter-location transitions, first holding guard wins, budget spent
	// retrying from the new location after each commit.
	e.Linef("for (int t = 0; t < %s; t++) {", macroMaxInterTransitions)
	e.Indent()
	e.Line("bool stepFired = false;")
	e.Line("switch (d->state) {")
	for _, loc := range g.a.Locations {
		e.Linef("case %s:", g.stateMacro(loc.Name))
		e.Indent()
		g.emitTransitions(e, loc, readCtx)
		e.Line("break;")
		e.Dedent()
	}
	e.Line("}")
	e.Line("if (!stepFired) {")
	e.Indent()
	e.Line("break;")
	e.Dedent()
	e.Line("}")
	e.Line("fired = true;")
	e.Line("*d = u;")
	e.Dedent()
	e.Line("}")
	e.Blank()

	// Intra-location step: explicit Euler flow then discrete update, all
	// reading the tick's entry valuation and committing at the end.
	e.Linef("if (!fired || %s) {", macroRequireOneIntra)
	e.Indent()
	e.Line("switch (d->state) {")
	for _, loc := range g.a.Locations {
		e.Linef("case %s:", g.stateMacro(loc.Name))
		e.Indent()
		for _, f := range loc.Flow {
			e.Linef("u.%s = d->%s + (%s) * %s;", f.Variable, f.Variable, renderExpr(f.Expr, readCtx), macroStepSize)
		}
		for _, upd := range loc.Update {
			e.Linef("u.%s = %s;", upd.Target, renderExpr(upd.Expr, readCtx))
		}
		e.Line("break;")
		e.Dedent()
	}
	e.Line("}")
	e.Line("*d = u;")
	e.Dedent()
	e.Line("}")

	if len(g.a.Delays) > 0 {
		e.Blank()
		// The slot after the one being written is the oldest live entry:
		// it holds the value from length-1 ticks ago, or the init-time
		// fill while the buffer is still warming up.
		for _, d := range g.a.Delays {
			e.Line("{")
			e.Indent()
			e.Linef("int idx = d->%s_count %% %d;", d.Variable, d.Length)
			e.Linef("d->%s_delayed = d->%s_buffer[(idx + 1) %% %d];", d.Variable, d.Variable, d.Length)
			e.Linef("d->%s_buffer[idx] = d->%s;", d.Variable, d.Variable)
			e.Linef("d->%s_count++;", d.Variable)
			e.Dedent()
			e.Line("}")
		}
	}

	e.Dedent()
	e.Line("}")
}

func (g *autoGen) emitTransitions(e *codegen.Emitter, loc *ha.Location, readCtx exprContext) {
	for i, t := range loc.Transitions {
		guard := renderExpr(ha.GuardOf(t), readCtx)
		keyword := "if"
		if i > 0 {
			keyword = "} else if"
		}
		e.Linef("%s (%s) {", keyword, guard)
		e.Indent()
		for _, upd := range t.Update {
			e.Linef("u.%s = %s;", upd.Target, renderExpr(upd.Expr, readCtx))
		}
		e.Linef("u.state = %s;", g.stateMacro(t.Target))
		e.Line("stepFired = true;")
		e.Dedent()
	}
	if len(loc.Transitions) > 0 {
		e.Line("}")
	}
}

// --- functions ---

func (g *autoGen) emitFunctions(e *codegen.Emitter) {
	for _, fn := range g.a.Functions {
		g.emitFunction(e, fn)
		e.Blank()
	}
}

// emitFunction lowers a program-bodied function to a static C function.
// Locals that shadow neither a parameter nor an automaton variable are
// declared up front from the inferred variable table.
func (g *autoGen) emitFunction(e *codegen.Emitter, fn *ha.Function) {
	ret := "void"
	if fn.HasReturns {
		ret = cType(fn.Returns)
	}

	args := []string{fmt.Sprintf("%s* d", g.structName())}
	ctx := g.context("d->")
	for _, p := range fn.Params {
		args = append(args, fmt.Sprintf("%s %s", cType(p.Type), p.Name))
		ctx.pd.Renames[p.Name] = p.Name
	}

	e.Linef("static %s %s(%s) {", ret, g.fnName(fn.Name), strings.Join(args, ", "))
	e.Indent()

	locals := localNames(fn, g.a)
	for _, name := range locals {
		e.Linef("%s %s;", cType(fn.Vars[name]), name)
		ctx.pd.Renames[name] = name
	}
	if len(locals) > 0 {
		e.Blank()
	}

	g.emitProgram(e, fn.Body, ctx)
	e.Dedent()
	e.Line("}")
}

// localNames lists function-body variables that need a declaration, in a
// stable order derived from assignment appearance.
func localNames(fn *ha.Function, a *ha.Automaton) []string {
	isParam := make(map[string]bool, len(fn.Params))
	for _, p := range fn.Params {
		isParam[p.Name] = true
	}
	var names []string
	seen := make(map[string]bool)
	var walk func(p *program.Program)
	walk = func(p *program.Program) {
		for _, line := range p.Lines {
			switch l := line.(type) {
			case *program.Assignment:
				if !isParam[l.Target] && a.VariableNamed(l.Target) == nil && !seen[l.Target] {
					seen[l.Target] = true
					names = append(names, l.Target)
				}
			case *program.If:
				walk(l.Body)
			case *program.ElseIf:
				walk(l.Body)
			case *program.Else:
				walk(l.Body)
			}
		}
	}
	walk(fn.Body)
	return names
}

func (g *autoGen) emitProgram(e *codegen.Emitter, p *program.Program, ctx exprContext) {
	for i, line := range p.Lines {
		switch l := line.(type) {
		case *program.Statement:
			e.Linef("%s;", renderExpr(l.Expr, ctx))
		case *program.Assignment:
			e.Linef("%s = %s;", ctx.lvalue(l.Target), renderExpr(l.Expr, ctx))
		case *program.Return:
			e.Linef("return %s;", renderExpr(l.Expr, ctx))
		case *program.If:
			e.Linef("if (%s) {", renderExpr(l.Cond, ctx))
			e.Indent()
			g.emitProgram(e, l.Body, ctx)
			g.closeBranch(e, p, i, ctx)
		case *program.ElseIf:
			g.emitProgram(e, l.Body, ctx)
			g.closeBranch(e, p, i, ctx)
		case *program.Else:
			g.emitProgram(e, l.Body, ctx)
			e.Dedent()
			e.Line("}")
		}
	}
}

func (g *autoGen) closeBranch(e *codegen.Emitter, p *program.Program, i int, ctx exprContext) {
	e.Dedent()
	if i+1 < len(p.Lines) {
		switch next := p.Lines[i+1].(type) {
		case *program.ElseIf:
			e.Linef("} else if (%s) {", renderExpr(next.Cond, ctx))
			e.Indent()
			return
		case *program.Else:
			e.Line("} else {")
			e.Indent()
			return
		}
	}
	e.Line("}")
}
