package resource

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/FocuswithJustin/CedarPress/core/discovery"
	"github.com/FocuswithJustin/CedarPress/core/errors"
	"github.com/FocuswithJustin/CedarPress/core/rclink"
	"github.com/FocuswithJustin/CedarPress/internal/logging"
)

// academy builds a translation-academy resource: manual topics laid out
// as <manual>/<topic>/ directories carrying title.md, sub-title.md, and
// an 01.md body, aggregated like translation words.
type academy struct {
	res *Resource
}

func newAcademy(r *Resource) variant { return &academy{res: r} }

func (a *academy) load(reg *rclink.Registry) error {
	req := a.res.req
	lang := req.Lang

	dirs, err := discovery.AcademyArticles(a.res.root)
	if err != nil {
		return err
	}
	if len(dirs) == 0 {
		return errors.NewNotFound(req.Spec())
	}
	a.res.markDiscovered(len(dirs))

	for _, dir := range dirs {
		topic := filepath.Base(dir)
		manual := filepath.Base(filepath.Dir(dir))

		body, err := os.ReadFile(filepath.Join(dir, "01.md"))
		if err != nil {
			logging.Warn("unreadable academy article", "path", dir, "error", err)
			continue
		}
		title := metaLine(filepath.Join(dir, "title.md"))
		if title == "" {
			title = topic
		}
		question := metaLine(filepath.Join(dir, "sub-title.md"))

		var sb strings.Builder
		fmt.Fprintf(&sb, "# %s\n\n", title)
		if question != "" {
			fmt.Fprintf(&sb, "This page answers the question: *%s*\n\n", question)
		}
		sb.WriteString(strings.TrimSpace(string(body)))

		anchor := anchorID(lang, "ta", manual, topic)
		md := injectAnchor(sb.String(), anchor)
		md = demoteHeadings(md, 1)

		err = reg.Register(&rclink.Entry{
			Locator: rclink.Man(lang, "ta", manual, topic),
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

// metaLine returns the trimmed content of a topic metadata file, or ""
// when the file is absent.
func metaLine(path string) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

func (a *academy) resolve(reg *rclink.Registry) error {
	return resolveAggregate(reg, a.res.req.Lang, "ta")
}

func (a *academy) render(reg *rclink.Registry) (string, error) {
	req := a.res.req
	return renderAggregate(reg, req.Lang, "ta", req.Code, "# Translation Topics\n")
}
