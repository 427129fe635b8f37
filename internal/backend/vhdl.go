package backend

import (
	"github.com/haml-lang/hamlc/internal/ha"
	"github.com/haml-lang/hamlc/internal/vhdlbe"
)

// VHDLBackend wraps vhdlbe as a Backend implementation.
type VHDLBackend struct{}

// Name returns the backend name.
func (b *VHDLBackend) Name() string {
	return "vhdl"
}

// Generate emits the synthesizable RTL description.
func (b *VHDLBackend) Generate(net *ha.Network, cfg *ha.CodegenConfig, outDir string) error {
	return vhdlbe.Generate(net, cfg, outDir)
}
