package resource

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/CedarPress/core/books"
	"github.com/FocuswithJustin/CedarPress/core/discovery"
	"github.com/FocuswithJustin/CedarPress/core/errors"
	"github.com/FocuswithJustin/CedarPress/core/rclink"
	"github.com/FocuswithJustin/CedarPress/internal/logging"
)

// notes builds a translation-notes resource from a chapter/verse
// directory tree: an optional book introduction, per-chapter
// introductions, and one note unit per verse file.
type notes struct {
	res      *Resource
	intro    *unit
	chapters []*noteChapter
}

type noteChapter struct {
	num    int
	intro  *unit
	verses []*noteVerse
}

type noteVerse struct {
	num  int
	unit *unit
}

func newNotes(r *Resource) variant { return &notes{res: r} }

// chapterFiles is the discovered shape of one chapter directory, kept
// so discovery completes before any file is parsed.
type chapterFiles struct {
	num    int
	intro  string
	verses []discovery.NumberedPath
}

func (n *notes) load(reg *rclink.Registry) error {
	req := n.res.req
	lang, code := req.Lang, req.Code

	bookDir, ok := discovery.BookDir(n.res.root, code)
	if !ok {
		return errors.NewNotFound(req.Spec())
	}
	introPath, hasIntro := discovery.BookIntro(bookDir)
	chapters, err := discovery.Chapters(bookDir)
	if err != nil {
		return err
	}

	total := 0
	if hasIntro {
		total++
	}
	layout := make([]chapterFiles, 0, len(chapters))
	for _, ch := range chapters {
		cf := chapterFiles{num: ch.Number}
		if p, ok := discovery.ChapterIntro(ch.Path); ok {
			cf.intro = p
			total++
		}
		verses, err := discovery.VerseFiles(ch.Path)
		if err != nil {
			return err
		}
		cf.verses = verses
		total += len(verses)
		layout = append(layout, cf)
	}
	if total == 0 {
		return errors.NewNotFound(req.Spec())
	}
	n.res.markDiscovered(total)

	if hasIntro {
		u, err := n.introUnit(introPath, lang, code)
		if err != nil {
			return err
		}
		if err := u.register(reg); err != nil {
			return err
		}
		n.intro = u
	}

	for _, cf := range layout {
		nc := &noteChapter{num: cf.num}
		if cf.intro != "" {
			u, err := n.chapterIntroUnit(cf.intro, lang, code, cf.num)
			if err != nil {
				return err
			}
			if err := u.register(reg); err != nil {
				return err
			}
			nc.intro = u
		}
		for _, v := range cf.verses {
			u, err := n.verseUnit(v.Path, lang, code, cf.num, v.Number, n.intro != nil, nc.intro != nil)
			if err != nil {
				logging.Warn("unreadable note file", "path", v.Path, "error", err)
				continue
			}
			if err := u.register(reg); err != nil {
				return err
			}
			nc.verses = append(nc.verses, &noteVerse{num: v.Number, unit: u})
		}
		if nc.intro != nil || len(nc.verses) > 0 {
			n.chapters = append(n.chapters, nc)
		}
	}
	return nil
}

// introUnit builds the book introduction from front/intro markdown.
func (n *notes) introUnit(path, lang, code string) (*unit, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	anchor := anchorID(lang, "tn", code, "front", "intro")
	md := injectAnchor(strings.TrimSpace(string(raw)), anchor)
	md = demoteHeadings(md, 1)
	md = promoteDeepHeadings(md, 5, 1)

	title := firstHeadingText(md)
	if title == "" {
		title = bookTitle(code)
	}
	return &unit{
		loc:    rclink.Help(lang, "tn", code, "front", "intro"),
		anchor: anchor,
		title:  title,
		md:     md,
	}, nil
}

// chapterIntroUnit builds one chapter introduction. Chapter intros sit a
// level deeper than the book intro, so deep source headings come up two.
func (n *notes) chapterIntroUnit(path, lang, code string, chapter int) (*unit, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	padc := books.Pad(code, strconv.Itoa(chapter))
	anchor := anchorID(lang, "tn", code, padc, "intro")
	md := injectAnchor(strings.TrimSpace(string(raw)), anchor)
	md = demoteHeadings(md, 1)
	md = promoteDeepHeadings(md, 5, 2)

	title := firstHeadingText(md)
	if title == "" {
		title = fmt.Sprintf("%s %d", bookTitle(code), chapter)
	}
	return &unit{
		loc:    rclink.Help(lang, "tn", code, padc, "intro"),
		anchor: anchor,
		title:  title,
		md:     md,
	}, nil
}

// verseUnit builds one verse's notes under a fixed section heading,
// followed by the navigation links the printed layout carries.
func (n *notes) verseUnit(path, lang, code string, chapter, verse int, bookIntro, chapterIntro bool) (*unit, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	padc := books.Pad(code, strconv.Itoa(chapter))
	padv := books.Pad(code, strconv.Itoa(verse))
	anchor := anchorID(lang, "tn", code, padc, padv)

	var b strings.Builder
	b.WriteString("### Translation Notes\n\n")
	b.WriteString(demoteHeadings(strings.TrimSpace(string(raw)), 3))
	md := injectAnchor(b.String(), anchor)
	md += linksSection(lang, code, padc, bookIntro, chapterIntro)

	return &unit{
		loc:    rclink.Help(lang, "tn", code, padc, padv),
		anchor: anchor,
		title:  fmt.Sprintf("%s %d:%d", bookTitle(code), chapter, verse),
		md:     md,
	}, nil
}

// linksSection is the per-verse navigation block: the book intro, the
// chapter intro, and the chapter's translation questions. The questions
// link is emitted whether or not questions were requested; unrequested
// targets stay raw and surface in the bad-link report.
func linksSection(lang, code, padc string, bookIntro, chapterIntro bool) string {
	var b strings.Builder
	b.WriteString("\n\n### Links:\n\n")
	if bookIntro {
		fmt.Fprintf(&b, "* [[rc://%s/tn/help/%s/front/intro]]\n", lang, code)
	}
	if chapterIntro {
		fmt.Fprintf(&b, "* [[rc://%s/tn/help/%s/%s/intro]]\n", lang, code, padc)
	}
	fmt.Fprintf(&b, "* [[rc://%s/tq/help/%s/%s]]\n", lang, code, padc)
	return b.String()
}

func (n *notes) resolve(reg *rclink.Registry) error {
	lang := n.res.req.Lang
	for _, u := range n.units() {
		text, err := reg.ResolveText(u.md, u.loc.String(), lang)
		if err != nil {
			return err
		}
		u.md = text
	}
	return nil
}

func (n *notes) render(*rclink.Registry) (string, error) {
	var b strings.Builder
	for _, u := range n.units() {
		u.html = renderMarkdown(u.md)
		b.WriteString(u.html)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// units returns every unit in document order.
func (n *notes) units() []*unit {
	var out []*unit
	if n.intro != nil {
		out = append(out, n.intro)
	}
	for _, ch := range n.chapters {
		if ch.intro != nil {
			out = append(out, ch.intro)
		}
		for _, v := range ch.verses {
			out = append(out, v.unit)
		}
	}
	return out
}

func (n *notes) bookIntroHTML() string {
	if n.intro == nil {
		return ""
	}
	return n.intro.html
}

func (n *notes) chapterIntroHTML(chapter int) string {
	for _, ch := range n.chapters {
		if ch.num == chapter && ch.intro != nil {
			return ch.intro.html
		}
	}
	return ""
}

func (n *notes) verseHTML(chapter, verse int) string {
	for _, ch := range n.chapters {
		if ch.num != chapter {
			continue
		}
		for _, v := range ch.verses {
			if v.num == verse {
				return v.unit.html
			}
		}
	}
	return ""
}
