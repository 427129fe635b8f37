package vhdlbe

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/haml-lang/hamlc/internal/codegen"
	"github.com/haml-lang/hamlc/internal/diagnostic"
	"github.com/haml-lang/hamlc/internal/formula"
	"github.com/haml-lang/hamlc/internal/ha"
)

type portCtx struct {
	Name string
	Dir  string
	Type string
}

type signalCtx struct {
	Name string
	Type string
	Init string
}

type variableCtx struct {
	Name string
	Type string
}

func entityName(name string) string {
	return codegen.Identifier(codegen.FileName(name))
}

func stateName(auto, loc string) string {
	return codegen.MacroName(auto) + "_" + codegen.MacroName(loc)
}

// renderAutomaton lowers one automaton into a clocked entity. Every output
// and internal variable computes into a `<name>_update` shadow inside the process and
// commits at the end of the tick, so guard and flow evaluation observe the
// tick's entry valuation.
func renderAutomaton(a *ha.Automaton, cfg *ha.CodegenConfig) (string, error) {
	for _, v := range a.Variables {
		if v.DelayableBy != nil {
			return "", diagnostic.Errorf(diagnostic.DelayUnsupported,
				"variable %q of %q is delayable, which the vhdl backend does not support", v.Name, a.Name)
		}
	}
	if len(a.Functions) > 0 {
		return "", diagnostic.Errorf(diagnostic.DelayUnsupported,
			"automaton %q declares functions, which the vhdl backend does not support", a.Name)
	}

	name := entityName(a.Name)

	ctx := exprContext{
		pd:    codegen.PrefixData{Renames: make(map[string]string)},
		types: make(map[string]formula.Type),
	}
	var ports []portCtx
	var signals []signalCtx
	var wires []string
	var variables []variableCtx
	var resets []string

	// writable lists the variables that carry an update shadow
	var writable []*ha.Variable

	for _, v := range a.Variables {
		ctx.types[v.Name] = v.Type
		switch v.Locality {
		case ha.ExternalInput:
			ports = append(ports, portCtx{Name: v.Name, Dir: "in", Type: vhdlType(v.Type)})
			ctx.pd.Renames[v.Name] = v.Name
		case ha.ExternalOutput:
			init, err := initValue(v)
			if err != nil {
				return "", err
			}
			ports = append(ports, portCtx{Name: v.Name, Dir: "out", Type: vhdlType(v.Type)})
			signals = append(signals, signalCtx{Name: v.Name + "_sig", Type: vhdlType(v.Type), Init: init})
			wires = append(wires, fmt.Sprintf("%s <= %s_sig;", v.Name, v.Name))
			ctx.pd.Renames[v.Name] = v.Name + "_sig"
			resets = append(resets, fmt.Sprintf("%s_sig <= %s;", v.Name, init))
			writable = append(writable, v)
		case ha.Internal:
			init, err := initValue(v)
			if err != nil {
				return "", err
			}
			signals = append(signals, signalCtx{Name: v.Name, Type: vhdlType(v.Type), Init: init})
			ctx.pd.Renames[v.Name] = v.Name
			resets = append(resets, fmt.Sprintf("%s <= %s;", v.Name, init))
			writable = append(writable, v)
		case ha.Parameter:
			// Parameters are constants in hardware, fixed at elaboration
			val, err := initValue(v)
			if err != nil {
				return "", err
			}
			signals = append(signals, signalCtx{Name: v.Name, Type: vhdlType(v.Type), Init: val})
			ctx.pd.Renames[v.Name] = v.Name
		}
	}

	// shadow variables and the rename map used on write sites
	updateOf := make(map[string]string)
	for _, v := range writable {
		shadow := v.Name + "_update"
		variables = append(variables, variableCtx{Name: shadow, Type: vhdlType(v.Type)})
		updateOf[v.Name] = shadow
	}

	body, err := processBody(a, ctx, updateOf)
	if err != nil {
		return "", err
	}

	data := map[string]any{
		"Name":         name,
		"Ports":        ports,
		"Signals":      signals,
		"Wires":        wires,
		"Variables":    variables,
		"Resets":       resets,
		"States":       stateList(a),
		"InitialState": stateName(a.Name, a.Init.Location),
		"Process":      body,
	}

	var buf bytes.Buffer
	if err := entityTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func stateList(a *ha.Automaton) []string {
	out := make([]string, len(a.Locations))
	for i, loc := range a.Locations {
		out[i] = stateName(a.Name, loc.Name)
	}
	return out
}

// processBody renders the transition/flow logic: shadows load, the state
// case picks a transition or applies the Euler step, shadows commit.
func processBody(a *ha.Automaton, ctx exprContext, updateOf map[string]string) ([]string, error) {
	var lines []string

	for _, v := range a.Variables {
		if shadow, ok := updateOf[v.Name]; ok {
			lines = append(lines, fmt.Sprintf("%s := %s;", shadow, ctx.signal(v.Name)))
		}
	}
	lines = append(lines, "")
	lines = append(lines, "case state is")

	for _, loc := range a.Locations {
		lines = append(lines, fmt.Sprintf("    when %s =>", stateName(a.Name, loc.Name)))
		branch, err := locationBranch(a, loc, ctx, updateOf)
		if err != nil {
			return nil, err
		}
		for _, l := range branch {
			lines = append(lines, "        "+l)
		}
	}
	lines = append(lines, "end case;")
	lines = append(lines, "")

	for _, v := range a.Variables {
		if shadow, ok := updateOf[v.Name]; ok {
			lines = append(lines, fmt.Sprintf("%s <= %s;", ctx.signal(v.Name), shadow))
		}
	}
	return lines, nil
}

// locationBranch renders one state's arm: guarded transitions first in
// declaration order, the flow and update as the fallthrough.
func locationBranch(a *ha.Automaton, loc *ha.Location, ctx exprContext, updateOf map[string]string) ([]string, error) {
	var lines []string

	intra, err := intraStep(loc, ctx, updateOf)
	if err != nil {
		return nil, err
	}

	if len(loc.Transitions) == 0 {
		return intra, nil
	}

	for i, t := range loc.Transitions {
		guard, err := renderCond(ha.GuardOf(t), ctx)
		if err != nil {
			return nil, err
		}
		keyword := "if"
		if i > 0 {
			keyword = "elsif"
		}
		lines = append(lines, fmt.Sprintf("%s %s then", keyword, guard))
		for _, u := range t.Update {
			rhs, err := renderValue(u.Expr, ctx)
			if err != nil {
				return nil, err
			}
			lines = append(lines, fmt.Sprintf("    %s := %s;", updateOf[u.Target], rhs))
		}
		lines = append(lines, fmt.Sprintf("    state <= %s;", stateName(a.Name, t.Target)))
	}
	lines = append(lines, "else")
	for _, l := range intra {
		lines = append(lines, "    "+l)
	}
	lines = append(lines, "end if;")
	return lines, nil
}

// intraStep renders the Euler flow step and the location's discrete update.
func intraStep(loc *ha.Location, ctx exprContext, updateOf map[string]string) ([]string, error) {
	var lines []string
	for _, f := range loc.Flow {
		deriv, err := renderValue(f.Expr, ctx)
		if err != nil {
			return nil, err
		}
		lines = append(lines, fmt.Sprintf("%s := resize(%s + resize(shift_right(%s * STEP_SIZE, %d), 32), 32);",
			updateOf[f.Variable], ctx.signal(f.Variable), deriv, fixedFractionBits))
	}
	for _, u := range loc.Update {
		rhs, err := renderValue(u.Expr, ctx)
		if err != nil {
			return nil, err
		}
		lines = append(lines, fmt.Sprintf("%s := %s;", updateOf[u.Target], rhs))
	}
	if len(lines) == 0 {
		lines = append(lines, "null;")
	}
	return lines, nil
}

// renderConfig renders the constants package.
func renderConfig(cfg *ha.CodegenConfig) string {
	var buf bytes.Buffer
	_ = configTmpl.Execute(&buf, map[string]any{
		"StepSize":            ConvertToFixedPoint(cfg.Execution.StepSize),
		"SimulationTime":      ConvertToFixedPoint(cfg.Execution.SimulationTime),
		"MaxInterTransitions": cfg.MaximumInterTransitions,
	})
	return buf.String()
}

// renderMakefile emits an analysis/elaboration driver over the generated
// sources in dependency order.
func renderMakefile(sources []string) string {
	var sb strings.Builder
	sb.WriteString("GHDL = ghdl\n")
	sb.WriteString("GHDLFLAGS = --std=08\n\n")
	sb.WriteString("SOURCES = " + strings.Join(sources, " ") + "\n\n")
	sb.WriteString("all: runnable\n\n")
	sb.WriteString("runnable: $(SOURCES)\n")
	sb.WriteString("\t$(GHDL) -a $(GHDLFLAGS) $(SOURCES)\n")
	sb.WriteString("\t$(GHDL) -e $(GHDLFLAGS) runnable\n\n")
	sb.WriteString("clean:\n")
	sb.WriteString("\trm -f *.cf runnable\n\n")
	sb.WriteString(".PHONY: all clean\n")
	return sb.String()
}
