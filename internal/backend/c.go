package backend

import (
	"github.com/haml-lang/hamlc/internal/cbe"
	"github.com/haml-lang/hamlc/internal/ha"
)

// CBackend wraps cbe as a Backend implementation.
type CBackend struct{}

// Name returns the backend name.
func (b *CBackend) Name() string {
	return "c"
}

// Generate emits the portable C simulator.
func (b *CBackend) Generate(net *ha.Network, cfg *ha.CodegenConfig, outDir string) error {
	return cbe.Generate(net, cfg, outDir)
}
