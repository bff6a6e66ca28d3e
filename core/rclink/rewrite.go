package rclink

import (
	"regexp"
	"strings"

	"github.com/FocuswithJustin/CedarPress/core/errors"
)

// linkPattern matches the three occurrence forms a locator can take in
// markdown: wiki style [[rc://...]], markdown link style [label](rc://...),
// and a bare locator. Alternatives are ordered so the bracketed forms win
// over the bare form.
var linkPattern = regexp.MustCompile(
	`\[\[(?:rc|resource)://[^\]\n]+\]\]` +
		`|\[[^\]\n]*\]\((?:rc|resource)://[^)\s]+\)` +
		`|(?:rc|resource)://[A-Za-z0-9*][A-Za-z0-9/*_-]*`,
)

// mdLinkParts splits a markdown link occurrence into label and target.
var mdLinkParts = regexp.MustCompile(`^\[([^\]]*)\]\(([^)\s]+)\)$`)

// ResolveText rewrites every locator occurrence in text against the
// registry. Registered targets become markdown hyperlinks to their anchors
// and have a use recorded under from; unresolved occurrences are left
// untouched so the raw locator text stays visible, and are recorded as bad
// links. lang replaces the wildcard language in occurrences like
// rc://*/ta/man/translate/figs-metaphor.
//
// ResolveText is part of the resolution pass and fails if the registry has
// not been sealed.
func (g *Registry) ResolveText(text, from, lang string) (string, error) {
	if !g.sealed {
		return "", errors.Wrap(errors.ErrInternal, "resolve before seal")
	}
	out := g.rewriteAll(text, lang, func(canonical string, ok bool) {
		if ok {
			g.RecordUse(canonical, from)
		} else {
			g.RecordBadLink(canonical, from)
		}
	})
	return out, nil
}

// RewriteText rewrites registered locator occurrences without recording
// uses or bad links. It serves layouts that render content a second time,
// where the first resolution pass already accounted for every occurrence.
func (g *Registry) RewriteText(text, lang string) (string, error) {
	if !g.sealed {
		return "", errors.Wrap(errors.ErrInternal, "rewrite before seal")
	}
	return g.rewriteAll(text, lang, func(string, bool) {}), nil
}

// rewriteAll performs a single scan over text, dispatching each occurrence
// by form. record is called once per occurrence with the canonical locator
// (or the raw text when unparseable) and whether it resolved.
func (g *Registry) rewriteAll(text, lang string, record func(canonical string, ok bool)) string {
	return linkPattern.ReplaceAllStringFunc(text, func(m string) string {
		switch {
		case strings.HasPrefix(m, "[["):
			inner := strings.TrimSuffix(strings.TrimPrefix(m, "[["), "]]")
			e, canonical, ok := g.resolveOne(inner, lang)
			record(canonical, ok)
			if !ok {
				return m
			}
			return "[" + e.Title + "](#" + e.Anchor + ")"

		case strings.HasPrefix(m, "["):
			parts := mdLinkParts.FindStringSubmatch(m)
			if parts == nil {
				return m
			}
			label, target := parts[1], parts[2]
			e, canonical, ok := g.resolveOne(target, lang)
			record(canonical, ok)
			if !ok {
				return m
			}
			if label == "" {
				label = e.Title
			}
			return "[" + label + "](#" + e.Anchor + ")"

		default:
			e, canonical, ok := g.resolveOne(m, lang)
			record(canonical, ok)
			if !ok {
				return m
			}
			return "[" + e.Title + "](#" + e.Anchor + ")"
		}
	})
}

// resolveOne parses one locator occurrence, substitutes the wildcard
// language, and looks it up. The returned canonical string falls back to
// the raw text when the occurrence does not parse.
func (g *Registry) resolveOne(raw, lang string) (*Entry, string, bool) {
	loc, err := Parse(raw)
	if err != nil {
		return nil, raw, false
	}
	if loc.Lang == WildcardLang && lang != "" {
		loc = loc.WithLang(lang)
	}
	canonical := loc.String()
	e, ok := g.entries[canonical]
	return e, canonical, ok
}
