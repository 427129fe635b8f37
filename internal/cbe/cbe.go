package cbe

import (
	"strings"

	"github.com/haml-lang/hamlc/internal/codegen"
	"github.com/haml-lang/hamlc/internal/ha"
)

// Generate emits the C simulator for the network under outDir.
func Generate(net *ha.Network, cfg *ha.CodegenConfig, outDir string) error {
	files, err := Files(net, cfg)
	if err != nil {
		return err
	}
	return files.Write(outDir)
}

// Files builds the whole output tree in memory. Generation is a pure
// function of the network and config: two calls yield identical sets.
func Files(net *ha.Network, cfg *ha.CodegenConfig) (codegen.FileSet, error) {
	files := codegen.FileSet{}
	if err := emitNetwork(files, net, cfg, "", true); err != nil {
		return nil, err
	}

	files["config.h"] = configHeader(cfg)
	runnable, err := runnableSource(net, cfg)
	if err != nil {
		return nil, err
	}
	files["runnable.c"] = runnable
	return files, nil
}

// emitNetwork emits a network's member pairs, glue and Makefile, recursing
// into nested networks first so leaves land before their parents.
func emitNetwork(files codegen.FileSet, net *ha.Network, cfg *ha.CodegenConfig, relDir string, root bool) error {
	depth := strings.Count(relDir, "/")
	up := strings.Repeat("../", depth)

	for _, inst := range net.Instances {
		switch def := net.Definitions[inst.Definition].(type) {
		case *ha.Automaton:
			// Naming follows the definitions-table key: identical to the
			// definition name normally, qualified by the flattener when
			// same-named definitions from different sub-networks meet
			folder := codegen.FileName(sourceName(def))
			file := codegen.FileName(inst.Definition)
			base := relDir + folder + "/" + file
			if _, done := files[base+".h"]; done {
				// Shared definitions emit one pair under run-time
				// parametrisation no matter how many instances use them
				continue
			}
			g := newAutoGen(def, cfg, typeName(inst.Definition), file, strings.Repeat("../", depth+1))
			files[base+".h"] = g.header()
			files[base+".c"] = g.body()

		case *ha.Network:
			subDir := relDir + codegen.FileName(def.Name) + "/"
			if _, done := files[subDir+"Makefile"]; done {
				continue
			}
			if err := emitNetwork(files, def, cfg, subDir, false); err != nil {
				return err
			}
		}
	}

	g := newNetGen(net, cfg, up)
	files[relDir+g.file+".h"] = g.header()
	files[relDir+g.file+".c"] = g.body()

	if root {
		files[relDir+"Makefile"] = rootMakefile(net, cfg)
	} else {
		files[relDir+"Makefile"] = subMakefile(net, cfg)
	}
	return nil
}
