package codegen

import "github.com/haml-lang/hamlc/internal/formula"

// PrefixData is the renaming context threaded through formula lowering. A
// reference is first looked up in Renames; anything else gets Prefix
// prepended, so `v` can become `inst_data->v` in C or a signal name in RTL.
type PrefixData struct {
	Prefix  string
	Renames map[string]string
}

// RewriteNames returns a copy of f with every variable reference renamed
// through the context.
func RewriteNames(f formula.Formula, pd PrefixData) formula.Formula {
	for _, name := range formula.Variables(f) {
		if repl, ok := pd.Renames[name]; ok {
			f = formula.SetParameter(f, name, &formula.Var{Name: repl})
		} else if pd.Prefix != "" {
			f = formula.SetParameter(f, name, &formula.Var{Name: pd.Prefix + name})
		}
	}
	return f
}
