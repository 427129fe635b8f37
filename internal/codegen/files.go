package codegen

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// FileSet maps relative output paths to file contents. Backends build the
// whole tree in memory so that generation stays a pure function of its
// inputs; writing happens once at the end.
type FileSet map[string]string

// Paths returns the file paths in sorted order.
func (fs FileSet) Paths() []string {
	paths := make([]string, 0, len(fs))
	for p := range fs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Write materialises the set under outDir, creating folders as needed and
// overwriting existing files.
func (fs FileSet) Write(outDir string) error {
	for _, rel := range fs.Paths() {
		path := filepath.Join(outDir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return errors.Wrapf(err, "creating directory for %s", rel)
		}
		if err := os.WriteFile(path, []byte(fs[rel]), 0o644); err != nil {
			return errors.Wrapf(err, "writing %s", rel)
		}
	}
	return nil
}
