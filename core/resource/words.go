package resource

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/FocuswithJustin/CedarPress/core/discovery"
	"github.com/FocuswithJustin/CedarPress/core/errors"
	"github.com/FocuswithJustin/CedarPress/core/rclink"
	"github.com/FocuswithJustin/CedarPress/internal/logging"
)

// words builds a translation-words resource: dictionary articles keyed
// by category and word, aggregated into one alphabetized section holding
// the articles the rest of the document refers to.
type words struct {
	res *Resource
}

func newWords(r *Resource) variant { return &words{res: r} }

func (w *words) load(reg *rclink.Registry) error {
	req := w.res.req
	lang := req.Lang

	files, err := discovery.WordFiles(w.res.root)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.NewNotFound(req.Spec())
	}
	w.res.markDiscovered(len(files))

	for _, path := range files {
		raw, err := os.ReadFile(path)
		if err != nil {
			logging.Warn("unreadable word article", "path", path, "error", err)
			continue
		}
		word := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		category := filepath.Base(filepath.Dir(path))

		md := strings.TrimSpace(string(raw))
		// The source's trailing link lists duplicate what the uses
		// index provides, and the story references point outside the
		// document.
		md = removeSection(md, "Links:")
		md = removeSection(md, "Bible References")
		md = removeSection(md, "Examples from the Bible stories")

		anchor := anchorID(lang, "tw", category, word)
		md = injectAnchor(md, anchor)
		md = demoteHeadings(md, 1)

		title := firstHeadingText(md)
		if title == "" {
			title = word
		}
		err = reg.Register(&rclink.Entry{
			Locator: rclink.Dict(lang, "tw", category, word),
			Anchor:  anchor,
			Title:   title,
			Text:    md,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *words) resolve(reg *rclink.Registry) error {
	return resolveAggregate(reg, w.res.req.Lang, "tw")
}

func (w *words) render(reg *rclink.Registry) (string, error) {
	req := w.res.req
	return renderAggregate(reg, req.Lang, "tw", req.Code, "# Translation Words\n")
}
