package rclink

import (
	"github.com/FocuswithJustin/CedarPress/core/errors"
	"github.com/FocuswithJustin/CedarPress/internal/logging"
)

// Entry is a registered link target: a unit of content that locators can
// point at once the document is assembled.
type Entry struct {
	Locator *Locator // canonical locator for this unit
	Anchor  string   // HTML anchor id, without the leading "#"
	Title   string   // human-readable title for rewritten links
	Text    string   // markdown body, kept for aggregated resources
}

// BadLink is one unresolved locator occurrence.
type BadLink struct {
	Locator string // canonical (or raw, if unparseable) locator text
	From    string // locator of the content unit containing the occurrence
}

// Registry collects link targets during the registration pass and answers
// lookups during the resolution pass. Registration and resolution are
// strictly ordered: Seal marks the end of registration, and resolution
// refuses to run before it. A Registry belongs to a single document
// generation and is not safe for concurrent use.
type Registry struct {
	entries map[string]*Entry
	order   []string

	uses     map[string][]string
	usesSeen map[string]map[string]bool

	badLinks []BadLink
	badSeen  map[BadLink]bool

	sealed bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries:  make(map[string]*Entry),
		uses:     make(map[string][]string),
		usesSeen: make(map[string]map[string]bool),
		badSeen:  make(map[BadLink]bool),
	}
}

// Register adds a link target. Registering the same locator twice replaces
// the earlier entry and logs a warning; the last registration wins.
// Register fails once the registry is sealed.
func (g *Registry) Register(e *Entry) error {
	if g.sealed {
		return errors.Wrapf(errors.ErrInternal, "register %s after seal", e.Locator)
	}

	key := e.Locator.String()
	if _, exists := g.entries[key]; exists {
		logging.Warn("duplicate link registration", "locator", key, "anchor", e.Anchor)
	} else {
		g.order = append(g.order, key)
	}
	g.entries[key] = e
	return nil
}

// Seal ends the registration pass. After Seal, lookups and resolution are
// allowed and further registration is rejected.
func (g *Registry) Seal() {
	g.sealed = true
}

// Sealed reports whether the registration pass has ended.
func (g *Registry) Sealed() bool {
	return g.sealed
}

// Lookup finds a registered entry by canonical locator string.
func (g *Registry) Lookup(locator string) (*Entry, bool) {
	e, ok := g.entries[locator]
	return e, ok
}

// Len returns the number of registered entries.
func (g *Registry) Len() int {
	return len(g.entries)
}

// Entries returns all registered entries in registration order.
func (g *Registry) Entries() []*Entry {
	out := make([]*Entry, 0, len(g.order))
	for _, key := range g.order {
		out = append(out, g.entries[key])
	}
	return out
}

// RecordUse notes that content at "from" references the registered target.
// Duplicate (target, from) pairs are recorded once; first-use order is
// preserved for rendering.
func (g *Registry) RecordUse(target, from string) {
	seen := g.usesSeen[target]
	if seen == nil {
		seen = make(map[string]bool)
		g.usesSeen[target] = seen
	}
	if seen[from] {
		return
	}
	seen[from] = true
	g.uses[target] = append(g.uses[target], from)
}

// Uses returns the locators referencing target, in first-use order.
func (g *Registry) Uses(target string) []string {
	return g.uses[target]
}

// Used reports whether target has at least one recorded use.
func (g *Registry) Used(target string) bool {
	return len(g.uses[target]) > 0
}

// RecordBadLink notes an unresolved locator occurrence. Each distinct
// (locator, from) pair is recorded once.
func (g *Registry) RecordBadLink(locator, from string) {
	bl := BadLink{Locator: locator, From: from}
	if g.badSeen[bl] {
		return
	}
	g.badSeen[bl] = true
	g.badLinks = append(g.badLinks, bl)
	logging.BadLink(locator, from)
}

// BadLinks returns all unresolved locator occurrences in the order they
// were first seen.
func (g *Registry) BadLinks() []BadLink {
	return g.badLinks
}
