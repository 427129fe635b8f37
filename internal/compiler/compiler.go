// Package compiler orchestrates the pipeline: import, semantic checks, the
// fixed transformation order, and code generation.
package compiler

import (
	"path/filepath"
	"strings"

	"github.com/haml-lang/hamlc/internal/backend"
	"github.com/haml-lang/hamlc/internal/cellml"
	"github.com/haml-lang/hamlc/internal/diagnostic"
	"github.com/haml-lang/hamlc/internal/ha"
	"github.com/haml-lang/hamlc/internal/haml"
	"github.com/haml-lang/hamlc/internal/transform"
)

// Options control one compiler invocation.
type Options struct {
	Language     string
	OutDir       string
	Flatten      bool
	ValidateOnly bool
}

// Result carries the outcome of an invocation. Diagnostics may hold
// warnings even on success.
type Result struct {
	Network     *ha.Network
	Diagnostics *diagnostic.Diagnostics
}

// Compile runs the whole pipeline for the document at path. Validation
// problems are accumulated in the result; any other failure aborts with an
// error.
func Compile(path string, opts Options) (*Result, error) {
	net, err := importDocument(path)
	if err != nil {
		return nil, err
	}

	res := &Result{Network: net, Diagnostics: ha.Validate(net)}
	if res.Diagnostics.HasErrors() {
		return res, nil
	}

	cfg := net.Config
	if cfg == nil {
		cfg = ha.DefaultConfig()
		net.Config = cfg
	}

	// Transformations run in a fixed order
	if err := transform.PropagateParameters(net, cfg.ParametrisationMethod); err != nil {
		return res, err
	}
	if err := transform.ExpandDelays(net, cfg); err != nil {
		return res, err
	}
	if opts.Flatten {
		flat, err := transform.Flatten(net)
		if err != nil {
			return res, err
		}
		net = flat
		res.Network = net
	}
	transform.SaturationCandidates(net)

	if opts.ValidateOnly {
		return res, nil
	}

	be, err := backend.ForLanguage(opts.Language)
	if err != nil {
		return res, err
	}
	if err := be.Generate(net, cfg, opts.OutDir); err != nil {
		return res, err
	}
	return res, nil
}

// importDocument picks the importer by file extension: CellML-style models
// by .cellml or .xml, HAML otherwise.
func importDocument(path string) (*ha.Network, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cellml", ".xml":
		return cellml.Import(path)
	default:
		return haml.Import(path)
	}
}
