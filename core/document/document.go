// Package document turns a document request into finished output: it
// drives each requested resource through the pipeline, assembles the
// rendered pieces into one HTML document, and hands the result to the
// typesetter. A Generator holds everything a run needs; the run itself
// is strictly sequential and owns one link registry from start to
// finish.
package document

import (
	"context"
	"time"

	"github.com/FocuswithJustin/CedarPress/core/cache"
	"github.com/FocuswithJustin/CedarPress/core/errors"
	"github.com/FocuswithJustin/CedarPress/core/fetch"
	"github.com/FocuswithJustin/CedarPress/core/model"
)

// Resolver answers catalog lookups. A nil descriptor with a nil error
// is the not-found outcome.
type Resolver interface {
	Resolve(ctx context.Context, req model.ResourceRequest) (*model.LocationDescriptor, error)
}

// Provisioner retrieves a located resource into a local directory.
type Provisioner interface {
	Provision(ctx context.Context, desc *model.LocationDescriptor, targetDir string) (*fetch.Result, error)
}

// Typesetter converts the assembled HTML file into a PDF.
type Typesetter interface {
	Typeset(ctx context.Context, htmlPath, pdfPath, title, date string) error
}

// RunRecord is the ledger's view of one finished run.
type RunRecord struct {
	Key       string
	Status    string
	HTMLPath  string
	PDFPath   string
	Digest    string
	Unfound   []model.ResourceRequest
	BadLinks  []string
	StartedAt time.Time
	Duration  time.Duration
}

// Run statuses recorded in the ledger.
const (
	StatusComplete      = "complete"
	StatusTypesetFailed = "typeset_failed"
)

// Recorder persists run records. Recording failures are logged, never
// fatal to the run that produced the document.
type Recorder interface {
	Record(ctx context.Context, rec RunRecord) error
}

// Progress receives stage notifications as a run advances. resource is
// the "lang/type/code" spec for per-resource stages, empty for whole-run
// stages.
type Progress func(stage, resource string, percent int)

// Config locates the generator's working and output directories.
type Config struct {
	WorkingDir string
	OutputDir  string
}

// Deps are the generator's collaborators. Resolver and Provisioner are
// required; the rest degrade gracefully when absent.
type Deps struct {
	Resolver    Resolver
	Provisioner Provisioner
	Typesetter  Typesetter
	Recorder    Recorder
	Cache       *cache.DocumentCache
	Progress    Progress
}

// Generator runs document requests.
type Generator struct {
	cfg  Config
	deps Deps
}

// New validates the wiring and returns a ready Generator.
func New(cfg Config, deps Deps) (*Generator, error) {
	if cfg.WorkingDir == "" {
		return nil, errors.NewMalformedRequest("working_dir", "")
	}
	if cfg.OutputDir == "" {
		return nil, errors.NewMalformedRequest("output_dir", "")
	}
	if deps.Resolver == nil || deps.Provisioner == nil {
		return nil, errors.Wrap(errors.ErrInternal, "generator needs a resolver and a provisioner")
	}
	return &Generator{cfg: cfg, deps: deps}, nil
}

func (g *Generator) progress(stage, resource string, percent int) {
	if g.deps.Progress != nil {
		g.deps.Progress(stage, resource, percent)
	}
}
