package resource

import (
	"sort"
	"strings"

	"github.com/FocuswithJustin/CedarPress/core/rclink"
)

// Words and academy content is aggregated rather than positional: their
// articles live in the registry, and the rendered section carries only
// the articles the rest of the document actually referred to, sorted by
// title the way the printed helps lay them out.

// ownEntries filters the registry to the aggregated entries one resource
// registered, identified by language and locator type.
func ownEntries(reg *rclink.Registry, lang, typ string) []*rclink.Entry {
	var out []*rclink.Entry
	for _, e := range reg.Entries() {
		if e.Locator.Lang == lang && e.Locator.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// resolveAggregate rewrites aggregated article bodies in place. The
// registry owns the text of aggregated entries, so the rewritten
// markdown is stored back on them.
func resolveAggregate(reg *rclink.Registry, lang, typ string) error {
	for _, e := range ownEntries(reg, lang, typ) {
		text, err := reg.ResolveText(e.Text, e.Locator.String(), lang)
		if err != nil {
			return err
		}
		e.Text = text
	}
	return nil
}

// renderAggregate renders the alphabetized article section for an
// aggregated kind. Articles nothing referred to are left out; the rest
// carry their uses list.
func renderAggregate(reg *rclink.Registry, lang, typ, code, heading string) (string, error) {
	entries := ownEntries(reg, lang, typ)
	sort.SliceStable(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Title) < strings.ToLower(entries[j].Title)
	})

	var b strings.Builder
	b.WriteString(renderMarkdown(injectAnchor(heading, anchorID(lang, typ, code))))
	for _, e := range entries {
		key := e.Locator.String()
		if !reg.Used(key) {
			continue
		}
		uses, err := usesSection(reg, key, lang)
		if err != nil {
			return "", err
		}
		b.WriteString(renderMarkdown(e.Text + "\n\n" + uses))
		b.WriteString("\n")
	}
	return b.String(), nil
}

// usesSection renders the back-reference list for an aggregated article:
// every unit that linked to it, in first-use order. The list is built
// from registered locators, so rewriting resolves every line.
func usesSection(reg *rclink.Registry, target, lang string) (string, error) {
	uses := reg.Uses(target)
	if len(uses) == 0 {
		return "", nil
	}
	var b strings.Builder
	b.WriteString("### Uses:\n\n")
	for _, u := range uses {
		b.WriteString("* [[" + u + "]]\n")
	}
	return reg.RewriteText(b.String(), lang)
}
