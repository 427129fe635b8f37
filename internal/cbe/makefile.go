package cbe

import (
	"fmt"
	"strings"

	"github.com/haml-lang/hamlc/internal/codegen"
	"github.com/haml-lang/hamlc/internal/ha"
)

// objectList returns the object files a network's Makefile compiles: its
// glue plus one object per direct automaton pair, relative to its folder.
func objectList(net *ha.Network) []string {
	objs := []string{codegen.FileName(net.Name) + ".o"}
	seen := make(map[string]bool)
	for _, inst := range net.Instances {
		auto, ok := net.Definitions[inst.Definition].(*ha.Automaton)
		if !ok {
			continue
		}
		obj := codegen.FileName(sourceName(auto)) + "/" + codegen.FileName(inst.Definition) + ".o"
		if seen[obj] {
			continue
		}
		seen[obj] = true
		objs = append(objs, obj)
	}
	return objs
}

// subnetDirs returns the folders of directly nested networks.
func subnetDirs(net *ha.Network) []string {
	var dirs []string
	seen := make(map[string]bool)
	for _, inst := range net.Instances {
		sub, ok := net.Definitions[inst.Definition].(*ha.Network)
		if !ok {
			continue
		}
		dir := codegen.FileName(sub.Name)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}
	return dirs
}

// archiveList collects every nested network archive in the subtree,
// relative to the given network's folder. The root links all of them.
func archiveList(net *ha.Network) []string {
	var archives []string
	seen := make(map[string]bool)
	for _, inst := range net.Instances {
		sub, ok := net.Definitions[inst.Definition].(*ha.Network)
		if !ok || seen[sub.Name] {
			continue
		}
		seen[sub.Name] = true
		dir := codegen.FileName(sub.Name)
		archives = append(archives, dir+"/"+codegen.FileName(sub.Name)+".a")
		for _, nested := range archiveList(sub) {
			archives = append(archives, dir+"/"+nested)
		}
	}
	return archives
}

func emitCompileRules(e *codegen.Emitter, objs []string) {
	for _, obj := range objs {
		src := strings.TrimSuffix(obj, ".o") + ".c"
		e.Linef("%s: %s", obj, src)
		e.Linef("\t$(CC) $(CFLAGS) -c %s -o %s", src, obj)
		e.Blank()
	}
}

func emitCleanRule(e *codegen.Emitter, net *ha.Network, extra string) {
	dirs := subnetDirs(net)
	e.Line("clean:")
	patterns := []string{extra, "*.o"}
	seen := make(map[string]bool)
	for _, inst := range net.Instances {
		if auto, ok := net.Definitions[inst.Definition].(*ha.Automaton); ok {
			dir := codegen.FileName(sourceName(auto))
			if !seen[dir] {
				seen[dir] = true
				patterns = append(patterns, dir+"/*.o")
			}
		}
	}
	e.Linef("\trm -f %s", strings.Join(patterns, " "))
	for _, dir := range dirs {
		e.Linef("\t$(MAKE) -C %s clean", dir)
	}
}

// rootMakefile drives the whole build: every nested network archives into
// its own .a and the runnable links the lot.
func rootMakefile(net *ha.Network, cfg *ha.CodegenConfig) string {
	e := codegen.NewEmitter(cfg.IndentSize)
	objs := append([]string{"runnable.o"}, objectList(net)...)
	archives := archiveList(net)
	linkInputs := strings.Join(append(append([]string(nil), objs...), archives...), " ")

	e.Line("CC = gcc")
	e.Line("CFLAGS = -Wall -O2")
	e.Blank()
	e.Line("all: runnable")
	e.Blank()
	e.Linef("runnable: %s", linkInputs)
	e.Linef("\t$(CC) -o runnable %s -lm", linkInputs)
	e.Blank()
	emitCompileRules(e, objs)
	for _, dir := range subnetDirs(net) {
		archive := dir + "/" + dir + ".a"
		e.Linef("%s:", archive)
		e.Linef("\t$(MAKE) -C %s", dir)
		e.Blank()
	}
	emitCleanRule(e, net, "runnable")
	e.Blank()
	e.Line(phonyRule(net))
	return e.String()
}

// subMakefile builds one nested network into an archive, recursing into its
// own nested networks first.
func subMakefile(net *ha.Network, cfg *ha.CodegenConfig) string {
	e := codegen.NewEmitter(cfg.IndentSize)
	objs := objectList(net)
	archive := codegen.FileName(net.Name) + ".a"
	dirs := subnetDirs(net)

	e.Line("CC = gcc")
	e.Line("CFLAGS = -Wall -O2")
	e.Blank()
	deps := strings.Join(objs, " ")
	if len(dirs) > 0 {
		subArchives := make([]string, len(dirs))
		for i, dir := range dirs {
			subArchives[i] = dir + "/" + dir + ".a"
		}
		e.Linef("all: %s %s", strings.Join(subArchives, " "), archive)
	} else {
		e.Linef("all: %s", archive)
	}
	e.Blank()
	e.Linef("%s: %s", archive, deps)
	e.Linef("\tar rcs %s %s", archive, deps)
	e.Blank()
	emitCompileRules(e, objs)
	for _, dir := range dirs {
		e.Linef("%s/%s.a:", dir, dir)
		e.Linef("\t$(MAKE) -C %s", dir)
		e.Blank()
	}
	emitCleanRule(e, net, archive)
	e.Blank()
	e.Line(phonyRule(net))
	return e.String()
}

func phonyRule(net *ha.Network) string {
	targets := []string{"all", "clean"}
	for _, dir := range subnetDirs(net) {
		targets = append(targets, fmt.Sprintf("%s/%s.a", dir, dir))
	}
	return ".PHONY: " + strings.Join(targets, " ")
}
