package codegen

import (
	"testing"

	"github.com/haml-lang/hamlc/internal/formula"
)

func TestMangling(t *testing.T) {
	cases := []struct {
		in, file, macro string
	}{
		{"TrainGate", "train_gate", "TRAIN_GATE"},
		{"Gate", "gate", "GATE"},
		{"sa_node", "sa_node", "SA_NODE"},
		{"heart.sa", "heart_sa", "HEART_SA"},
	}
	for _, c := range cases {
		if got := FileName(c.in); got != c.file {
			t.Errorf("FileName(%q) = %q, want %q", c.in, got, c.file)
		}
		if got := MacroName(c.in); got != c.macro {
			t.Errorf("MacroName(%q) = %q, want %q", c.in, got, c.macro)
		}
	}
	if got := Identifier("heart.sa"); got != "heart_sa" {
		t.Errorf("Identifier = %q", got)
	}
}

func TestEmitterIndent(t *testing.T) {
	e := NewEmitter(2)
	e.Line("a")
	e.Indent()
	e.Line("b")
	e.Dedent()
	e.Line("c")
	want := "a\n  b\nc\n"
	if e.String() != want {
		t.Errorf("emitted %q, want %q", e.String(), want)
	}
}

func TestEmitterTabs(t *testing.T) {
	e := NewEmitter(-1)
	e.Indent()
	e.Line("x")
	if e.String() != "\tx\n" {
		t.Errorf("negative indent size should emit tabs, got %q", e.String())
	}
}

func TestRewriteNames(t *testing.T) {
	f := formula.MustParse("a + inst.b * c")
	pd := PrefixData{
		Prefix:  "d->",
		Renames: map[string]string{"inst.b": "d->inst_data.b"},
	}
	got := RewriteNames(f, pd).String()
	want := "d->a + d->inst_data.b * d->c"
	if got != want {
		t.Errorf("RewriteNames = %q, want %q", got, want)
	}
}
