package document

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/CedarPress/core/errors"
	"github.com/FocuswithJustin/CedarPress/core/fetch"
	"github.com/FocuswithJustin/CedarPress/core/model"
	"github.com/FocuswithJustin/CedarPress/core/rclink"
	"github.com/FocuswithJustin/CedarPress/core/resource"
	"github.com/FocuswithJustin/CedarPress/internal/logging"
)

// Run generates one document. Resource-level failures (a resource the
// catalog does not carry, a download that breaks) drop the resource
// onto the unfound list and the run continues; a malformed request or a
// typesetter failure fails the whole run.
func (g *Generator) Run(ctx context.Context, req model.DocumentRequest) (*model.FinishedDocument, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	strategy, err := model.ParseStrategy(string(req.Strategy))
	if err != nil {
		return nil, err
	}

	key := req.Key()
	htmlPath := filepath.Join(g.cfg.OutputDir, key+".html")
	pdfPath := filepath.Join(g.cfg.OutputDir, key+".pdf")

	// A finished PDF means the whole request already ran to completion;
	// hand back the existing artifacts.
	if _, statErr := os.Stat(pdfPath); statErr == nil {
		logging.PipelineStage(key, "memoized", "pdf", pdfPath)
		g.progress("memoized", "", 100)
		return &model.FinishedDocument{Key: key, HTMLPath: htmlPath, PDFPath: pdfPath}, nil
	}

	started := time.Now()
	logging.PipelineStage(key, "started", "resources", len(req.Resources))

	resources := make([]*resource.Resource, 0, len(req.Resources))
	for _, rr := range req.Resources {
		r, err := resource.New(rr)
		if err != nil {
			return nil, err
		}
		resources = append(resources, r)
	}

	// Per-resource fetch steps dominate the runtime; the remaining
	// stages share the tail of the progress scale.
	steps := len(resources) + 3
	done := 0

	reg := rclink.NewRegistry()
	var found []*resource.Resource
	var unfound []model.ResourceRequest
	for _, r := range resources {
		done++
		g.progress("provision", r.Spec(), done*100/steps)
		if err := g.provisionOne(ctx, r, reg); err != nil {
			if errors.Is(err, errors.ErrNotFound) || errors.Is(err, errors.ErrFetch) {
				r.MarkUnfound(err)
				unfound = append(unfound, r.Request())
				continue
			}
			return nil, err
		}
		found = append(found, r)
	}

	reg.Seal()
	logging.PipelineStage(key, "registry_sealed", "targets", reg.Len())

	done++
	g.progress("resolve", "", done*100/steps)
	for _, r := range found {
		if err := r.Resolve(reg); err != nil {
			return nil, err
		}
	}
	for _, r := range found {
		if _, err := r.Render(reg); err != nil {
			return nil, err
		}
	}

	done++
	g.progress("assemble", "", done*100/steps)
	body := assemble(strategy, found)
	html, err := enclose(documentTitle(resources), body, attribution(found))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(g.cfg.OutputDir, 0o755); err != nil {
		return nil, errors.NewIO("mkdir", g.cfg.OutputDir, err)
	}
	if err := os.WriteFile(htmlPath, []byte(html), 0o644); err != nil {
		return nil, errors.NewIO("write", htmlPath, err)
	}
	if g.deps.Cache != nil {
		g.deps.Cache.Put(key, []byte(html))
	}

	h := blake3.New()
	h.Write([]byte(html))
	digest := hex.EncodeToString(h.Sum(nil))

	badLinks := reportBadLinks(reg)

	fin := &model.FinishedDocument{
		Key:      key,
		HTMLPath: htmlPath,
		Unfound:  unfound,
		BadLinks: badLinks,
	}

	if req.PDF {
		done++
		g.progress("typeset", "", done*100/steps)
		if g.deps.Typesetter == nil {
			return nil, errors.Wrap(errors.ErrTypeset, "no typesetter configured")
		}
		date := started.Format("2006-01-02")
		if err := g.deps.Typesetter.Typeset(ctx, htmlPath, pdfPath, documentTitle(resources), date); err != nil {
			g.record(ctx, RunRecord{
				Key: key, Status: StatusTypesetFailed, HTMLPath: htmlPath,
				Digest: digest, Unfound: unfound, BadLinks: badLinks,
				StartedAt: started, Duration: time.Since(started),
			})
			return nil, err
		}
		fin.PDFPath = pdfPath
	}

	g.record(ctx, RunRecord{
		Key: key, Status: StatusComplete, HTMLPath: htmlPath, PDFPath: fin.PDFPath,
		Digest: digest, Unfound: unfound, BadLinks: badLinks,
		StartedAt: started, Duration: time.Since(started),
	})
	g.progress("complete", "", 100)
	logging.PipelineStage(key, "complete",
		"unfound", len(unfound), "bad_links", len(badLinks),
		"duration", time.Since(started).Round(time.Millisecond))
	return fin, nil
}

// provisionOne walks one resource from catalog lookup through parsing.
func (g *Generator) provisionOne(ctx context.Context, r *resource.Resource, reg *rclink.Registry) error {
	desc, err := g.deps.Resolver.Resolve(ctx, r.Request())
	if err != nil {
		return err
	}
	if desc == nil {
		return errors.NewNotFound(r.Spec())
	}
	r.SetLocation(desc)

	res, err := g.deps.Provisioner.Provision(ctx, desc, fetch.DirFor(g.cfg.WorkingDir, r.Request()))
	if err != nil {
		return err
	}
	r.SetLocal(res.LocalRoot, res.Digest)

	return r.Load(reg)
}

// record hands the run to the ledger. The document is already on disk
// at this point, so a ledger fault costs the history row, not the run.
func (g *Generator) record(ctx context.Context, rec RunRecord) {
	if g.deps.Recorder == nil {
		return
	}
	if err := g.deps.Recorder.Record(ctx, rec); err != nil {
		logging.Error("run not recorded", "key", rec.Key, "error", err)
	}
}

// reportBadLinks flattens the registry's occurrence records into the
// distinct locators, first-seen order. Each occurrence was already
// logged when it was recorded.
func reportBadLinks(reg *rclink.Registry) []string {
	var out []string
	seen := make(map[string]bool)
	for _, bl := range reg.BadLinks() {
		if seen[bl.Locator] {
			continue
		}
		seen[bl.Locator] = true
		out = append(out, bl.Locator)
	}
	return out
}

// documentTitle names the document after the distinct books requested.
func documentTitle(resources []*resource.Resource) string {
	seen := make(map[string]bool)
	var codes []string
	for _, r := range resources {
		code := r.Request().Code
		if seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return "Resources: " + strings.Join(codes, ",")
}
