package compiler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/haml-lang/hamlc/internal/diagnostic"
)

const validDoc = `
name: Counter
definitions:
  Tick:
    outputs:
      n: REAL
    locations:
      run:
        flow:
          n: 1
    initialisation:
      location: run
      valuations:
        n: 0
instances:
  tick: Tick
`

const brokenMappingDoc = `
name: Broken
definitions:
  Gate:
    inputs:
      signal: REAL
    outputs:
      position: REAL
    locations:
      open:
        flow:
          position: 0 - signal
    initialisation:
      location: open
instances:
  gate: Gate
mappings:
  gate.nonexistent: 1
`

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCompileGeneratesTree(t *testing.T) {
	src := writeDoc(t, "counter.yaml", validDoc)
	outDir := filepath.Join(t.TempDir(), "out")

	res, err := Compile(src, Options{Language: "c", OutDir: outDir})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if res.Diagnostics.HasErrors() {
		t.Fatalf("unexpected diagnostics:\n%s", res.Diagnostics.Format())
	}

	for _, want := range []string{"runnable.c", "config.h", "Makefile", "counter.c", filepath.Join("tick", "tick.h")} {
		if _, err := os.Stat(filepath.Join(outDir, want)); err != nil {
			t.Errorf("expected output %s: %v", want, err)
		}
	}
}

func TestValidateOnlyReportsAndWritesNothing(t *testing.T) {
	src := writeDoc(t, "broken.yaml", brokenMappingDoc)
	outDir := filepath.Join(t.TempDir(), "out")

	res, err := Compile(src, Options{Language: "c", OutDir: outDir, ValidateOnly: true})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !res.Diagnostics.HasErrors() {
		t.Fatal("expected UnresolvedMapping diagnostic")
	}
	found := false
	for _, d := range res.Diagnostics.Errors() {
		if d.Kind == diagnostic.UnresolvedMapping && strings.Contains(d.Message, "nonexistent") {
			found = true
		}
	}
	if !found {
		t.Errorf("diagnostics do not cite the mapping:\n%s", res.Diagnostics.Format())
	}
	if _, err := os.Stat(outDir); !os.IsNotExist(err) {
		t.Error("validate-only run wrote files")
	}
}

func TestValidationErrorsStopGeneration(t *testing.T) {
	src := writeDoc(t, "broken.yaml", brokenMappingDoc)
	outDir := filepath.Join(t.TempDir(), "out")

	res, err := Compile(src, Options{Language: "c", OutDir: outDir})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !res.Diagnostics.HasErrors() {
		t.Fatal("expected diagnostics")
	}
	if _, err := os.Stat(outDir); !os.IsNotExist(err) {
		t.Error("generation ran despite validation errors")
	}
}

func TestCompileFlattenedVHDL(t *testing.T) {
	src := writeDoc(t, "counter.yaml", validDoc)
	outDir := filepath.Join(t.TempDir(), "out")

	res, err := Compile(src, Options{Language: "vhdl", OutDir: outDir, Flatten: true})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if res.Diagnostics.HasErrors() {
		t.Fatalf("unexpected diagnostics:\n%s", res.Diagnostics.Format())
	}
	if _, err := os.Stat(filepath.Join(outDir, "runnable.vhdl")); err != nil {
		t.Errorf("expected runnable.vhdl: %v", err)
	}
}

func TestUnknownLanguage(t *testing.T) {
	src := writeDoc(t, "counter.yaml", validDoc)
	if _, err := Compile(src, Options{Language: "fortran", OutDir: t.TempDir()}); err == nil {
		t.Fatal("expected error for unknown language")
	}
}

func TestMissingSource(t *testing.T) {
	_, err := Compile(filepath.Join(t.TempDir(), "absent.yaml"), Options{Language: "c", OutDir: t.TempDir()})
	if err == nil {
		t.Fatal("expected IOError for missing source")
	}
	kind, ok := diagnostic.KindOf(err)
	if !ok || kind != diagnostic.IOError {
		t.Errorf("expected IOError, got %v", err)
	}
}
