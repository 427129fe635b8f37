package main

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"

	"github.com/haml-lang/hamlc/internal/compiler"
)

const usage = `hamlc - compiler for hybrid automata network descriptions

Usage:
  hamlc [options] SOURCE

Arguments:
  SOURCE    Path to the root document (HAML by default; .cellml/.xml
            selects the biomedical importer)

Options:
  -l, --language <c|vhdl>   Target language (default "c")
  -o, --output <dir>        Output directory (default "output")
  -f, --flatten             Flatten the network hierarchy before generation
  -v, --validate-only       Import, transform and check, but emit no files
  -h, --help                Show this help
`

var (
	errorStyle   = pterm.NewStyle(pterm.FgRed)
	successStyle = pterm.NewStyle(pterm.FgLightGreen)
)

func main() {
	opts := compiler.Options{
		Language: "c",
		OutDir:   "output",
	}
	var source string

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "-h", "--help":
			fmt.Print(usage)
			return
		case "-l", "--language":
			i++
			if i >= len(args) {
				fail("missing value for %s", arg)
			}
			opts.Language = args[i]
		case "-o", "--output":
			i++
			if i >= len(args) {
				fail("missing value for %s", arg)
			}
			opts.OutDir = args[i]
		case "-f", "--flatten":
			opts.Flatten = true
		case "-v", "--validate-only":
			opts.ValidateOnly = true
		default:
			if len(arg) > 1 && arg[0] == '-' {
				fail("unknown option %s", arg)
			}
			if source != "" {
				fail("unexpected argument %q", arg)
			}
			source = arg
		}
	}

	if source == "" {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	res, err := compiler.Compile(source, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}

	// Accumulated diagnostics: warnings always shown, errors are fatal
	for _, d := range res.Diagnostics.All() {
		fmt.Fprintln(os.Stderr, d.String())
	}
	if res.Diagnostics.HasErrors() {
		os.Exit(1)
	}

	if opts.ValidateOnly {
		successStyle.Printf("%s is valid (%d definitions)\n", source, len(res.Network.Definitions))
		return
	}
	successStyle.Printf("Generated %s simulator for %s in %s\n", opts.Language, res.Network.Name, opts.OutDir)
}

func fail(format string, args ...any) {
	errorStyle.Println(fmt.Sprintf(format, args...))
	fmt.Fprint(os.Stderr, usage)
	os.Exit(1)
}
