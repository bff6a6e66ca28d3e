// Package resource builds the per-kind content of a document: scripture
// books, translation notes, questions, words, and academy topics. Every
// kind moves through the same lifecycle (located, provisioned, loaded,
// resolved, rendered) and differs only in how it discovers, registers,
// and renders its content. A kind that fails a stage is marked unfound:
// it drops out of assembly but stays on the request for reporting.
package resource

import (
	"sort"
	"strings"

	"github.com/FocuswithJustin/CedarPress/core/books"
	"github.com/FocuswithJustin/CedarPress/core/errors"
	"github.com/FocuswithJustin/CedarPress/core/manifest"
	"github.com/FocuswithJustin/CedarPress/core/model"
	"github.com/FocuswithJustin/CedarPress/core/rclink"
	"github.com/FocuswithJustin/CedarPress/core/usfm"
	"github.com/FocuswithJustin/CedarPress/internal/logging"
)

// Status is a resource's position in the pipeline lifecycle.
type Status string

const (
	StatusNew         Status = "new"
	StatusLocated     Status = "located"
	StatusProvisioned Status = "provisioned"
	StatusDiscovered  Status = "discovered"
	StatusParsed      Status = "parsed"
	StatusResolved    Status = "resolved"
	StatusRendered    Status = "rendered"
	StatusUnfound     Status = "unfound"
)

// variant is the per-kind behavior behind a Resource: how content is
// discovered, parsed, and registered; how its text resolves against the
// registry; and how it renders to HTML.
type variant interface {
	load(reg *rclink.Registry) error
	resolve(reg *rclink.Registry) error
	render(reg *rclink.Registry) (string, error)
}

// helps is implemented by variants whose rendered content is addressable
// by chapter and verse, which interleaved assembly depends on.
type helps interface {
	bookIntroHTML() string
	chapterIntroHTML(chapter int) string
	verseHTML(chapter, verse int) string
}

// builders maps resource types to variant constructors. The -wa forms
// are publisher aliases carrying the same content shapes.
var builders = map[string]func(*Resource) variant{
	"usfm":   newScripture,
	"ulb":    newScripture,
	"ulb-wa": newScripture,
	"udb":    newScripture,
	"udb-wa": newScripture,
	"nav":    newScripture,
	"reg":    newScripture,
	"tn":     newNotes,
	"tn-wa":  newNotes,
	"tq":     newQuestions,
	"tq-wa":  newQuestions,
	"tw":     newWords,
	"tw-wa":  newWords,
	"ta":     newAcademy,
	"ta-wa":  newAcademy,
}

// Types returns the resource types the factory accepts, sorted.
func Types() []string {
	out := make([]string, 0, len(builders))
	for t := range builders {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Resource is the runtime aggregate for one requested resource: its
// request, remote location, provisioned directory, and parsed content.
type Resource struct {
	req    model.ResourceRequest
	desc   *model.LocationDescriptor
	root   string
	digest string
	man    *manifest.Manifest

	status Status
	err    error

	kind variant
	html string
}

// New constructs a Resource for the request. Unknown resource types are
// malformed requests, rejected before any network activity.
func New(req model.ResourceRequest) (*Resource, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	build, ok := builders[req.Type]
	if !ok {
		return nil, errors.NewMalformedRequest("resource_type", req.Type)
	}
	r := &Resource{req: req, status: StatusNew}
	r.kind = build(r)
	return r, nil
}

// Request returns the resource's originating request.
func (r *Resource) Request() model.ResourceRequest { return r.req }

// Spec returns the request in "lang/type/code" form.
func (r *Resource) Spec() string { return r.req.Spec() }

// Status returns the resource's lifecycle position.
func (r *Resource) Status() Status { return r.status }

// Err returns the failure that marked the resource unfound, if any.
func (r *Resource) Err() error { return r.err }

// Descriptor returns the catalog location, nil before location.
func (r *Resource) Descriptor() *model.LocationDescriptor { return r.desc }

// LocalRoot returns the provisioned content directory.
func (r *Resource) LocalRoot() string { return r.root }

// Digest returns the provisioned artifact digest, empty for git clones.
func (r *Resource) Digest() string { return r.digest }

// Manifest returns the resource's attribution manifest, nil when the
// content ships without one.
func (r *Resource) Manifest() *manifest.Manifest { return r.man }

// HTML returns the rendered content, empty before Render.
func (r *Resource) HTML() string { return r.html }

// Found reports whether the resource is still contributing to the
// document.
func (r *Resource) Found() bool { return r.status != StatusUnfound }

// MarkUnfound takes the resource out of the pipeline, keeping the cause
// for the document's unfound report.
func (r *Resource) MarkUnfound(err error) {
	r.status = StatusUnfound
	r.err = err
	logging.ResourceEvent("unfound", r.req.Spec(), "error", err)
}

// SetLocation records the catalog lookup result.
func (r *Resource) SetLocation(desc *model.LocationDescriptor) {
	r.desc = desc
	r.status = StatusLocated
}

// SetLocal records where provisioning placed the content and the
// artifact digest when one was computed.
func (r *Resource) SetLocal(root, digest string) {
	r.root = root
	r.digest = digest
	r.status = StatusProvisioned
}

// markDiscovered is called by variants once their content files are
// located, before any parsing starts.
func (r *Resource) markDiscovered(files int) {
	r.status = StatusDiscovered
	logging.ResourceEvent("discovered", r.req.Spec(), "files", files)
}

// Load discovers and parses the provisioned content, registering every
// link target the resource contributes.
func (r *Resource) Load(reg *rclink.Registry) error {
	if r.status != StatusProvisioned {
		return errors.Wrapf(errors.ErrInternal, "load %s in state %s", r.req.Spec(), r.status)
	}
	man, err := manifest.ForResource(r.root)
	if err != nil {
		logging.Warn("manifest unreadable", "resource", r.req.Spec(), "error", err)
	}
	r.man = man
	if err := r.kind.load(reg); err != nil {
		return err
	}
	r.status = StatusParsed
	logging.ResourceEvent("parsed", r.req.Spec(), "targets", reg.Len())
	return nil
}

// Resolve rewrites the resource's content against the sealed registry,
// recording uses and bad links.
func (r *Resource) Resolve(reg *rclink.Registry) error {
	if r.status != StatusParsed {
		return errors.Wrapf(errors.ErrInternal, "resolve %s in state %s", r.req.Spec(), r.status)
	}
	if err := r.kind.resolve(reg); err != nil {
		return err
	}
	r.status = StatusResolved
	return nil
}

// Render produces the resource's final HTML, retained on the resource
// for assembly.
func (r *Resource) Render(reg *rclink.Registry) (string, error) {
	if r.status != StatusResolved {
		return "", errors.Wrapf(errors.ErrInternal, "render %s in state %s", r.req.Spec(), r.status)
	}
	html, err := r.kind.render(reg)
	if err != nil {
		return "", err
	}
	r.html = html
	r.status = StatusRendered
	logging.ResourceEvent("rendered", r.req.Spec(), "bytes", len(html))
	return html, nil
}

// Title returns the display title: the parsed book title for scripture,
// the book table name otherwise.
func (r *Resource) Title() string {
	if s, ok := r.kind.(*scripture); ok && s.book != nil {
		return s.book.Title
	}
	return bookTitle(r.req.Code)
}

// Payload returns the sliced chapter/verse payload of a scripture
// resource, nil for every other kind.
func (r *Resource) Payload() *usfm.BookPayload {
	if s, ok := r.kind.(*scripture); ok {
		return s.payload
	}
	return nil
}

// Interleaves reports whether the resource's content is addressable by
// chapter and verse for interleaved assembly.
func (r *Resource) Interleaves() bool {
	_, ok := r.kind.(helps)
	return ok
}

// BookIntroHTML returns the rendered book introduction for kinds that
// carry one.
func (r *Resource) BookIntroHTML() string {
	if h, ok := r.kind.(helps); ok {
		return h.bookIntroHTML()
	}
	return ""
}

// ChapterIntroHTML returns the rendered chapter introduction for kinds
// that carry one.
func (r *Resource) ChapterIntroHTML(chapter int) string {
	if h, ok := r.kind.(helps); ok {
		return h.chapterIntroHTML(chapter)
	}
	return ""
}

// VerseHTML returns the rendered helps content for one verse.
func (r *Resource) VerseHTML(chapter, verse int) string {
	if h, ok := r.kind.(helps); ok {
		return h.verseHTML(chapter, verse)
	}
	return ""
}

// unit is one addressable chunk of helps content: a block of markdown
// with the anchor and locator that let other content link to it.
type unit struct {
	loc    *rclink.Locator
	anchor string
	title  string
	md     string
	html   string
}

// register adds the unit to the registry. Text stays empty: only
// aggregated kinds keep their article bodies in the registry.
func (u *unit) register(reg *rclink.Registry) error {
	return reg.Register(&rclink.Entry{Locator: u.loc, Anchor: u.anchor, Title: u.title})
}

// anchorID joins anchor parts with dashes. Anchors carry the language so
// documents mixing languages never collide.
func anchorID(parts ...string) string {
	return strings.Join(parts, "-")
}

// bookTitle returns the display name for a book code.
func bookTitle(code string) string {
	if name, ok := books.Name(code); ok {
		return name
	}
	return strings.ToUpper(code)
}
