// Package vhdlbe generates the synthesizable RTL description: one entity
// per automaton with a clocked process, Q16.16 fixed point for reals, a
// structural top entity per the network's mappings and a simulation
// runnable.
package vhdlbe

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/haml-lang/hamlc/internal/codegen"
	"github.com/haml-lang/hamlc/internal/formula"
	"github.com/haml-lang/hamlc/internal/ha"
)

const fixedFractionBits = 16

// ConvertToFixedPoint maps a real onto the 32-bit signed Q16.16 grid.
func ConvertToFixedPoint(x float64) int64 {
	return int64(math.Round(x * (1 << fixedFractionBits)))
}

// Generate emits the RTL tree for the network under outDir.
func Generate(net *ha.Network, cfg *ha.CodegenConfig, outDir string) error {
	files, err := Files(net, cfg)
	if err != nil {
		return err
	}
	return files.Write(outDir)
}

// Files builds the output tree in memory.
func Files(net *ha.Network, cfg *ha.CodegenConfig) (codegen.FileSet, error) {
	files := codegen.FileSet{}

	var sources []string
	addSource := func(path string) { sources = append(sources, path) }

	files["config.vhdl"] = renderConfig(cfg)
	addSource("config.vhdl")

	for _, inst := range net.Instances {
		switch def := net.Definitions[inst.Definition].(type) {
		case *ha.Network:
			return nil, errors.Errorf("vhdl backend requires a flattened network, but %q instantiates network %q (re-run with --flatten)", net.Name, def.Name)
		case *ha.Automaton:
			folder := codegen.FileName(sourceNameOf(def))
			file := codegen.FileName(inst.Definition)
			path := folder + "/" + file + ".vhdl"
			if _, done := files[path]; done {
				continue
			}
			src, err := renderAutomaton(def, cfg)
			if err != nil {
				return nil, err
			}
			files[path] = src
			addSource(path)
		}
	}

	top, topName, err := renderTop(net, cfg)
	if err != nil {
		return nil, err
	}
	topPath := codegen.FileName(net.Name) + ".vhdl"
	files[topPath] = top
	addSource(topPath)

	files["runnable.vhdl"] = renderBench(net, topName)
	addSource("runnable.vhdl")

	files["Makefile"] = renderMakefile(sources)
	return files, nil
}

func sourceNameOf(a *ha.Automaton) string {
	if a.Source != "" {
		return a.Source
	}
	return a.Name
}

func vhdlType(t formula.Type) string {
	if t == formula.Boolean {
		return "std_logic"
	}
	return "signed(31 downto 0)"
}

func fixedLit(v float64) string {
	return fmt.Sprintf("to_signed(%d, 32)", ConvertToFixedPoint(v))
}

func initValue(v *ha.Variable) (string, error) {
	if v.Default == nil {
		if v.Type == formula.Boolean {
			return "'0'", nil
		}
		return "to_signed(0, 32)", nil
	}
	val, err := formula.Evaluate(v.Default, formula.Env{})
	if err != nil {
		return "", err
	}
	if val.Type == formula.Boolean {
		if val.Bool {
			return "'1'", nil
		}
		return "'0'", nil
	}
	return fixedLit(val.Real), nil
}

// --- expression lowering ---

type exprContext struct {
	pd    codegen.PrefixData      // variable -> signal or process variable
	types map[string]formula.Type // variable -> type
}

func (ctx exprContext) signal(name string) string {
	if s, ok := ctx.pd.Renames[name]; ok {
		return s
	}
	return ctx.pd.Prefix + name
}

func typeOf(f formula.Formula, ctx exprContext) formula.Type {
	t, err := formula.ResultType(f, ctx.types, nil)
	if err != nil {
		return formula.Invalid
	}
	return t
}

// renderCond lowers a boolean-valued formula to a VHDL condition.
func renderCond(f formula.Formula, ctx exprContext) (string, error) {
	switch n := f.(type) {
	case *formula.Lit:
		if n.Type != formula.Boolean {
			return "", errors.Errorf("numeric literal in condition position")
		}
		if n.Bool {
			return "true", nil
		}
		return "false", nil

	case *formula.Var:
		return "(" + ctx.signal(n.Name) + " = '1')", nil

	case *formula.Unary:
		inner, err := renderCond(n.X, ctx)
		if err != nil {
			return "", err
		}
		return "(not " + inner + ")", nil

	case *formula.Binary:
		switch n.Op {
		case formula.LAnd, formula.LOr:
			x, err := renderCond(n.X, ctx)
			if err != nil {
				return "", err
			}
			y, err := renderCond(n.Y, ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("(%s %s %s)", x, vhdlBoolOp(n.Op), y), nil
		case formula.Eq, formula.Ne, formula.Lt, formula.Le, formula.Gt, formula.Ge:
			if typeOf(n.X, ctx) == formula.Boolean {
				x, err := renderCond(n.X, ctx)
				if err != nil {
					return "", err
				}
				y, err := renderCond(n.Y, ctx)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("(%s %s %s)", x, vhdlCmpOp(n.Op), y), nil
			}
			x, err := renderValue(n.X, ctx)
			if err != nil {
				return "", err
			}
			y, err := renderValue(n.Y, ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("(%s %s %s)", x, vhdlCmpOp(n.Op), y), nil
		default:
			return "", errors.Errorf("operator %s in condition position", n.Op)
		}

	case *formula.Nary:
		parts := make([]string, len(n.Xs))
		for i, x := range n.Xs {
			p, err := renderCond(x, ctx)
			if err != nil {
				return "", err
			}
			parts[i] = p
		}
		return "(" + strings.Join(parts, " "+vhdlBoolOp(n.Op)+" ") + ")", nil

	default:
		return "", errors.Errorf("expression is not synthesisable as a condition")
	}
}

// renderValue lowers a numeric formula onto fixed-point arithmetic, or a
// boolean one onto std_logic.
func renderValue(f formula.Formula, ctx exprContext) (string, error) {
	switch n := f.(type) {
	case *formula.Lit:
		if n.Type == formula.Boolean {
			if n.Bool {
				return "'1'", nil
			}
			return "'0'", nil
		}
		return fixedLit(n.Real), nil

	case *formula.Var:
		return ctx.signal(n.Name), nil

	case *formula.Unary:
		if n.Op == formula.Neg {
			x, err := renderValue(n.X, ctx)
			if err != nil {
				return "", err
			}
			return "(-" + x + ")", nil
		}
		cond, err := renderCond(f, ctx)
		if err != nil {
			return "", err
		}
		return "'1' when " + cond + " else '0'", nil

	case *formula.Binary:
		switch n.Op {
		case formula.Add, formula.Sub:
			x, err := renderValue(n.X, ctx)
			if err != nil {
				return "", err
			}
			y, err := renderValue(n.Y, ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("resize(%s %s %s, 32)", x, vhdlCmpOp(n.Op), y), nil
		case formula.Mul:
			x, err := renderValue(n.X, ctx)
			if err != nil {
				return "", err
			}
			y, err := renderValue(n.Y, ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("resize(shift_right(%s * %s, %d), 32)", x, y, fixedFractionBits), nil
		case formula.Div:
			x, err := renderValue(n.X, ctx)
			if err != nil {
				return "", err
			}
			y, err := renderValue(n.Y, ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("resize(shift_left(resize(%s, 64), %d) / %s, 32)", x, fixedFractionBits, y), nil
		case formula.Pow:
			return "", errors.Errorf("power is not synthesisable")
		default:
			cond, err := renderCond(f, ctx)
			if err != nil {
				return "", err
			}
			return "'1' when " + cond + " else '0'", nil
		}

	case *formula.Nary:
		cond, err := renderCond(f, ctx)
		if err != nil {
			return "", err
		}
		return "'1' when " + cond + " else '0'", nil

	case *formula.BuiltinCall:
		return "", errors.Errorf("builtin %s is not synthesisable", n.Name)

	case *formula.Call:
		return "", errors.Errorf("function calls are not synthesisable")

	default:
		return "", errors.Errorf("expression is not synthesisable")
	}
}

func vhdlBoolOp(op formula.BinOp) string {
	if op == formula.LAnd {
		return "and"
	}
	return "or"
}

func vhdlCmpOp(op formula.BinOp) string {
	switch op {
	case formula.Add:
		return "+"
	case formula.Sub:
		return "-"
	case formula.Eq:
		return "="
	case formula.Ne:
		return "/="
	case formula.Lt:
		return "<"
	case formula.Le:
		return "<="
	case formula.Gt:
		return ">"
	case formula.Ge:
		return ">="
	default:
		return "?"
	}
}
