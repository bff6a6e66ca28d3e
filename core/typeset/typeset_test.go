package typeset

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/FocuswithJustin/CedarPress/core/errors"
)

func TestArgs(t *testing.T) {
	p := New(Config{Command: "pandoc", Engine: "xelatex"})
	got := p.args("/out/doc.html", "/out/doc.pdf", "Resources: gen", "2026-08-25")
	want := []string{
		"/out/doc.html",
		"--from", "html",
		"--pdf-engine", "xelatex",
		"--metadata", "title=Resources: gen",
		"--metadata", "date=2026-08-25",
		"--output", "/out/doc.pdf",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("args = %v, want %v", got, want)
	}

	p = New(Config{Command: "pandoc", Engine: "xelatex", Template: "/etc/folio/doc.tex"})
	got = p.args("a.html", "a.pdf", "t", "d")
	if got[len(got)-2] != "--template" || got[len(got)-1] != "/etc/folio/doc.tex" {
		t.Errorf("template flag missing: %v", got)
	}
}

func TestNewFillsDefaults(t *testing.T) {
	p := New(Config{})
	if p.Command() != "pandoc" {
		t.Errorf("default command = %q", p.Command())
	}
	if p.cfg.Engine != "xelatex" {
		t.Errorf("default engine = %q", p.cfg.Engine)
	}
}

// fakeTypesetter writes a shell script standing in for the binary.
func fakeTypesetter(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake not available on windows")
	}
	path := filepath.Join(t.TempDir(), "fake-pandoc")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTypesetSuccess(t *testing.T) {
	cmd := fakeTypesetter(t, "exit 0\n")
	p := New(Config{Command: cmd, Engine: "xelatex"})

	err := p.Typeset(context.Background(), "in.html", "out.pdf", "title", "2026-08-25")
	if err != nil {
		t.Fatalf("Typeset: %v", err)
	}
}

func TestTypesetFailureCapturesStderr(t *testing.T) {
	cmd := fakeTypesetter(t, "echo 'xelatex: missing font' >&2\nexit 43\n")
	p := New(Config{Command: cmd, Engine: "xelatex"})

	err := p.Typeset(context.Background(), "in.html", "out.pdf", "title", "2026-08-25")
	if !errors.Is(err, errors.ErrTypeset) {
		t.Fatalf("Typeset = %v, want ErrTypeset", err)
	}
	if !strings.Contains(err.Error(), "missing font") {
		t.Errorf("stderr not captured: %v", err)
	}
}

func TestTypesetTimeout(t *testing.T) {
	cmd := fakeTypesetter(t, "sleep 5\n")
	p := New(Config{Command: cmd, Engine: "xelatex", Timeout: 50 * time.Millisecond})

	start := time.Now()
	err := p.Typeset(context.Background(), "in.html", "out.pdf", "title", "2026-08-25")
	if !errors.Is(err, errors.ErrTypeset) {
		t.Fatalf("Typeset = %v, want ErrTypeset", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Error("timeout did not cut the run short")
	}
}
