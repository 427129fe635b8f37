package cbe

import (
	"strings"

	"github.com/haml-lang/hamlc/internal/codegen"
	"github.com/haml-lang/hamlc/internal/diagnostic"
	"github.com/haml-lang/hamlc/internal/formula"
	"github.com/haml-lang/hamlc/internal/ha"
)

const (
	macroStepSize             = "STEP_SIZE"
	macroSimulationTime       = "SIMULATION_TIME"
	macroMaxInterTransitions  = "MAX_INTER_TRANSITIONS"
	macroRequireOneIntra      = "REQUIRE_ONE_INTRA_TRANSITION"
	macroLogging              = "LOGGING"
	macroLoggingFile          = "LOGGING_FILE"
	macroLoggingInterval      = "LOGGING_INTERVAL"
)

// configHeader renders config.h with the execution and logging macros every
// generated source includes.
func configHeader(cfg *ha.CodegenConfig) string {
	e := codegen.NewEmitter(cfg.IndentSize)
	e.Line("#ifndef CONFIG_H")
	e.Line("#define CONFIG_H")
	e.Blank()
	e.Linef("#define %s %s", macroStepSize, cFloat(cfg.Execution.StepSize))
	e.Linef("#define %s %s", macroSimulationTime, cFloat(cfg.Execution.SimulationTime))
	e.Linef("#define %s %d", macroMaxInterTransitions, cfg.MaximumInterTransitions)
	requireOne := "false"
	if cfg.RequireOneIntraTransitionPerTick {
		requireOne = "true"
	}
	e.Linef("#define %s %s", macroRequireOneIntra, requireOne)
	if cfg.Logging.Enable {
		e.Blank()
		e.Linef("#define %s", macroLogging)
		e.Linef("#define %s \"%s\"", macroLoggingFile, cfg.Logging.File)
		e.Linef("#define %s %s", macroLoggingInterval, cFloat(cfg.LoggingInterval()))
	}
	e.Blank()
	e.Line("#endif // CONFIG_H")
	return e.String()
}

// logField is a resolved logging column: the CSV header label, the C
// lvalue reaching into the root struct, and the printf verb for its type.
type logField struct {
	label  string
	lvalue string
	verb   string
}

// logFields resolves the configured logging fields, defaulting to every
// output of every instance in declaration order.
func logFields(net *ha.Network, cfg *ha.CodegenConfig) ([]logField, error) {
	names := cfg.Logging.Fields
	if len(names) == 0 {
		for _, inst := range net.Instances {
			for _, port := range defPorts(net.Definitions[inst.Definition]) {
				if port.Locality == ha.ExternalOutput {
					names = append(names, inst.Name+"."+port.Name)
				}
			}
		}
	}

	var out []logField
	for _, name := range names {
		lv, t, err := resolveField(net, "d.", name)
		if err != nil {
			return nil, err
		}
		verb := "%f"
		if t == formula.Boolean {
			verb = "%d"
		}
		out = append(out, logField{label: name, lvalue: lv, verb: verb})
	}
	return out, nil
}

// resolveField walks a dotted field name through the network hierarchy to a
// C member access. Flattened instance names keep their dots, so matching
// tries the longest instance prefix first.
func resolveField(net *ha.Network, access, name string) (string, formula.Type, error) {
	segs := strings.Split(name, ".")
	for l := len(segs) - 1; l >= 1; l-- {
		instName := strings.Join(segs[:l], ".")
		inst := net.InstanceNamed(instName)
		if inst == nil {
			continue
		}
		rest := strings.Join(segs[l:], ".")
		switch def := net.Definitions[inst.Definition].(type) {
		case *ha.Automaton:
			v := def.VariableNamed(rest)
			if v == nil {
				return "", formula.Invalid, diagnostic.Errorf(diagnostic.UnresolvedName,
					"logging field %q: %q has no variable %q", name, def.Name, rest)
			}
			return access + instField(inst) + "." + rest, v.Type, nil
		case *ha.Network:
			return resolveField(def, access+instField(inst)+".", rest)
		}
	}
	return "", formula.Invalid, diagnostic.Errorf(diagnostic.UnresolvedName,
		"logging field %q does not name an instance variable", name)
}

// runnableSource renders the root runnable with the time loop and the CSV
// logger behind the LOGGING macro.
func runnableSource(net *ha.Network, cfg *ha.CodegenConfig) (string, error) {
	fields, err := logFields(net, cfg)
	if err != nil {
		return "", err
	}

	name := typeName(net.Name)
	file := codegen.FileName(net.Name)

	e := codegen.NewEmitter(cfg.IndentSize)
	e.Line("#include <stdio.h>")
	e.Blank()
	e.Line("#include \"config.h\"")
	e.Linef("#include \"%s.h\"", file)
	e.Blank()
	e.Line("int main(void) {")
	e.Indent()
	e.Linef("%sData d;", name)
	e.Linef("%sInit(&d);", name)
	e.Blank()

	e.Linef("#ifdef %s", macroLogging)
	e.Linef("FILE* csv = fopen(%s, \"w\");", macroLoggingFile)
	e.Line("if (csv == NULL) {")
	e.Indent()
	e.Line("return 1;")
	e.Dedent()
	e.Line("}")
	labels := make([]string, 0, len(fields)+1)
	labels = append(labels, "time")
	for _, f := range fields {
		labels = append(labels, f.label)
	}
	e.Linef("fprintf(csv, \"%s\\n\");", strings.Join(labels, ","))
	e.Linef("int logEvery = (int) (%s / %s + 0.5);", macroLoggingInterval, macroStepSize)
	e.Line("if (logEvery < 1) {")
	e.Indent()
	e.Line("logEvery = 1;")
	e.Dedent()
	e.Line("}")
	e.Line("#endif")
	e.Blank()

	e.Linef("int ticks = (int) (%s / %s + 0.5);", macroSimulationTime, macroStepSize)
	e.Line("for (int i = 0; i <= ticks; i++) {")
	e.Indent()
	e.Linef("#ifdef %s", macroLogging)
	e.Line("if (i % logEvery == 0) {")
	e.Indent()
	verbs := make([]string, 0, len(fields)+1)
	verbs = append(verbs, "%f")
	args := make([]string, 0, len(fields)+1)
	args = append(args, "i * "+macroStepSize)
	for _, f := range fields {
		verbs = append(verbs, f.verb)
		args = append(args, f.lvalue)
	}
	e.Linef("fprintf(csv, \"%s\\n\", %s);", strings.Join(verbs, ","), strings.Join(args, ", "))
	e.Dedent()
	e.Line("}")
	e.Line("#endif")
	e.Linef("%sRun(&d);", name)
	e.Dedent()
	e.Line("}")
	e.Blank()

	e.Linef("#ifdef %s", macroLogging)
	e.Line("fclose(csv);")
	e.Line("#endif")
	e.Line("return 0;")
	e.Dedent()
	e.Line("}")

	return e.String(), nil
}
