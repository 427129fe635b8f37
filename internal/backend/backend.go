// Package backend exposes the code generation backends behind a common
// interface keyed by target language.
package backend

import (
	"github.com/haml-lang/hamlc/internal/diagnostic"
	"github.com/haml-lang/hamlc/internal/ha"
)

// Backend is the interface every code generation backend implements.
type Backend interface {
	// Name returns the backend name (e.g., "c", "vhdl")
	Name() string
	// Generate emits the simulator sources for the network under outDir.
	Generate(net *ha.Network, cfg *ha.CodegenConfig, outDir string) error
}

// ForLanguage returns the backend for the given target language.
func ForLanguage(lang string) (Backend, error) {
	switch lang {
	case "c":
		return &CBackend{}, nil
	case "vhdl":
		return &VHDLBackend{}, nil
	default:
		return nil, diagnostic.Errorf(diagnostic.Parse, "unknown target language %q", lang)
	}
}
