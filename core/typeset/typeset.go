// Package typeset drives the external typesetter that turns the
// assembled HTML document into a PDF. The typesetter is a pandoc-style
// command; which binary, which PDF engine, and which LaTeX template are
// all configuration.
package typeset

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/FocuswithJustin/CedarPress/core/errors"
	"github.com/FocuswithJustin/CedarPress/internal/logging"
)

// Config selects the typesetter command and its tuning.
type Config struct {
	Command  string        // typesetter binary, on PATH or absolute
	Engine   string        // PDF engine handed to the typesetter
	Template string        // LaTeX template path, empty for the built-in
	Timeout  time.Duration // whole-run limit, 0 for none
}

// DefaultConfig returns the stock pandoc/xelatex setup.
func DefaultConfig() Config {
	return Config{
		Command: "pandoc",
		Engine:  "xelatex",
		Timeout: 5 * time.Minute,
	}
}

// Pandoc invokes a pandoc-compatible typesetter.
type Pandoc struct {
	cfg Config
}

// New returns a typesetter for the configuration.
func New(cfg Config) *Pandoc {
	if cfg.Command == "" {
		cfg.Command = DefaultConfig().Command
	}
	if cfg.Engine == "" {
		cfg.Engine = DefaultConfig().Engine
	}
	return &Pandoc{cfg: cfg}
}

// Command returns the configured typesetter binary.
func (p *Pandoc) Command() string { return p.cfg.Command }

// Typeset converts htmlPath into pdfPath. A non-zero exit fails the
// conversion with the typesetter's captured stderr.
func (p *Pandoc) Typeset(ctx context.Context, htmlPath, pdfPath, title, date string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, p.cfg.Command, p.args(htmlPath, pdfPath, title, date)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	logging.TypesetEvent(p.cfg.Command, time.Since(start),
		"pdf", pdfPath, "ok", runErr == nil)

	if runErr != nil {
		return errors.NewTypeset(p.cfg.Command, stderr.String(), runErr)
	}
	return nil
}

// args assembles the typesetter invocation.
func (p *Pandoc) args(htmlPath, pdfPath, title, date string) []string {
	args := []string{
		htmlPath,
		"--from", "html",
		"--pdf-engine", p.cfg.Engine,
		"--metadata", "title=" + title,
		"--metadata", "date=" + date,
		"--output", pdfPath,
	}
	if p.cfg.Template != "" {
		args = append(args, "--template", p.cfg.Template)
	}
	return args
}
