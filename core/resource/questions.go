package resource

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/CedarPress/core/books"
	"github.com/FocuswithJustin/CedarPress/core/discovery"
	"github.com/FocuswithJustin/CedarPress/core/errors"
	"github.com/FocuswithJustin/CedarPress/core/rclink"
	"github.com/FocuswithJustin/CedarPress/internal/logging"
)

// questions builds a translation-questions resource. Every content line
// gains a bracketed reference back to the matching translation-notes
// verse, the navigation aid the assembled document uses to move between
// a question and the notes it tests.
type questions struct {
	res      *Resource
	book     *unit
	chapters []*questionChapter
}

type questionChapter struct {
	num     int
	heading *unit
	verses  []*questionVerse
}

type questionVerse struct {
	num  int
	unit *unit
}

func newQuestions(r *Resource) variant { return &questions{res: r} }

// questionLine matches lines carrying question or answer text; headings
// and blank lines are left alone.
var questionLine = regexp.MustCompile(`(?m)^([^#\n].+)$`)

func (q *questions) load(reg *rclink.Registry) error {
	req := q.res.req
	lang, code := req.Lang, req.Code

	bookDir, ok := discovery.BookDir(q.res.root, code)
	if !ok {
		return errors.NewNotFound(req.Spec())
	}
	chapters, err := discovery.Chapters(bookDir)
	if err != nil {
		return err
	}

	total := 0
	layout := make([]chapterFiles, 0, len(chapters))
	for _, ch := range chapters {
		verses, err := discovery.VerseFiles(ch.Path)
		if err != nil {
			return err
		}
		total += len(verses)
		layout = append(layout, chapterFiles{num: ch.Number, verses: verses})
	}
	if total == 0 {
		return errors.NewNotFound(req.Spec())
	}
	q.res.markDiscovered(total)

	title := bookTitle(code)
	bookAnchor := anchorID(lang, "tq", code)
	q.book = &unit{
		loc:    rclink.Help(lang, "tq", code),
		anchor: bookAnchor,
		title:  title + " Translation Questions",
		md:     injectAnchor("# Translation Questions\n", bookAnchor),
	}
	if err := q.book.register(reg); err != nil {
		return err
	}

	for _, cf := range layout {
		padc := books.Pad(code, strconv.Itoa(cf.num))
		chAnchor := anchorID(lang, "tq", code, padc)
		qc := &questionChapter{
			num: cf.num,
			heading: &unit{
				loc:    rclink.Help(lang, "tq", code, padc),
				anchor: chAnchor,
				title:  fmt.Sprintf("%s %d Translation Questions", title, cf.num),
				md:     injectAnchor(fmt.Sprintf("## %s %d\n", title, cf.num), chAnchor),
			},
		}
		if err := qc.heading.register(reg); err != nil {
			return err
		}
		for _, v := range cf.verses {
			u, err := q.verseUnit(v.Path, lang, code, cf.num, v.Number)
			if err != nil {
				logging.Warn("unreadable question file", "path", v.Path, "error", err)
				continue
			}
			if err := u.register(reg); err != nil {
				return err
			}
			qc.verses = append(qc.verses, &questionVerse{num: v.Number, unit: u})
		}
		q.chapters = append(q.chapters, qc)
	}
	return nil
}

// verseUnit builds one verse's questions, demoted under the chapter
// heading and annotated with the notes back reference.
func (q *questions) verseUnit(path, lang, code string, chapter, verse int) (*unit, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	padc := books.Pad(code, strconv.Itoa(chapter))
	padv := books.Pad(code, strconv.Itoa(verse))
	anchor := anchorID(lang, "tq", code, padc, padv)

	md := demoteHeadings(strings.TrimSpace(string(raw)), 2)
	ref := fmt.Sprintf(` [<a href="#%s">%d:%d</a>]`, anchorID(lang, "tn", code, padc, padv), chapter, verse)
	md = questionLine.ReplaceAllString(md, "$1"+ref)
	md = injectAnchor(md, anchor)

	return &unit{
		loc:    rclink.Help(lang, "tq", code, padc, padv),
		anchor: anchor,
		title:  fmt.Sprintf("%s %d:%d Translation Questions", bookTitle(code), chapter, verse),
		md:     md,
	}, nil
}

func (q *questions) resolve(reg *rclink.Registry) error {
	lang := q.res.req.Lang
	for _, u := range q.units() {
		text, err := reg.ResolveText(u.md, u.loc.String(), lang)
		if err != nil {
			return err
		}
		u.md = text
	}
	return nil
}

func (q *questions) render(*rclink.Registry) (string, error) {
	var b strings.Builder
	for _, u := range q.units() {
		u.html = renderMarkdown(u.md)
		b.WriteString(u.html)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// units returns every unit in document order.
func (q *questions) units() []*unit {
	var out []*unit
	if q.book != nil {
		out = append(out, q.book)
	}
	for _, ch := range q.chapters {
		out = append(out, ch.heading)
		for _, v := range ch.verses {
			out = append(out, v.unit)
		}
	}
	return out
}

// Questions carry no introductions; only verse content interleaves.
func (q *questions) bookIntroHTML() string { return "" }

func (q *questions) chapterIntroHTML(int) string { return "" }

func (q *questions) verseHTML(chapter, v int) string {
	for _, ch := range q.chapters {
		if ch.num != chapter {
			continue
		}
		for _, qv := range ch.verses {
			if qv.num == v {
				return qv.unit.html
			}
		}
	}
	return ""
}
