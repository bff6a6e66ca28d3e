package document

import (
	"html"
	"strings"

	"github.com/FocuswithJustin/CedarPress/core/model"
	"github.com/FocuswithJustin/CedarPress/core/resource"
	"github.com/FocuswithJustin/CedarPress/core/usfm"
)

// assemble combines the rendered resources into one HTML body per the
// requested strategy.
func assemble(strategy model.AssemblyStrategy, found []*resource.Resource) string {
	if strategy == model.StrategyVerseInterleave {
		return assembleVerseInterleave(found)
	}
	return assembleBookOrder(found)
}

// assembleBookOrder concatenates whole rendered resources in request
// order: the scripture for a book, then its notes, then its questions,
// and so on, each as a complete section.
func assembleBookOrder(found []*resource.Resource) string {
	var b strings.Builder
	for _, r := range found {
		writeBlock(&b, r.HTML())
	}
	return b.String()
}

// bookGroup collects the resources that share one book code: the
// scripture translations and the verse-addressable helps. Aggregated
// resources (words, academy) never group; they close the document.
type bookGroup struct {
	code      string
	scripture []*resource.Resource
	helps     []*resource.Resource
}

// assembleVerseInterleave walks the first scripture translation of each
// book chapter by chapter and verse by verse, placing further
// translations and then the helps for the same verse directly after it.
// Books without scripture fall back to whole-resource order; aggregated
// sections follow all books.
func assembleVerseInterleave(found []*resource.Resource) string {
	var groups []*bookGroup
	byCode := make(map[string]*bookGroup)
	var tail []*resource.Resource

	for _, r := range found {
		scripture := r.Payload() != nil
		if !scripture && !r.Interleaves() {
			tail = append(tail, r)
			continue
		}
		code := r.Request().Code
		g := byCode[code]
		if g == nil {
			g = &bookGroup{code: code}
			byCode[code] = g
			groups = append(groups, g)
		}
		if scripture {
			g.scripture = append(g.scripture, r)
		} else {
			g.helps = append(g.helps, r)
		}
	}

	var b strings.Builder
	for _, g := range groups {
		if len(g.scripture) == 0 {
			for _, r := range g.helps {
				writeBlock(&b, r.HTML())
			}
			continue
		}
		writeInterleaved(&b, g)
	}
	for _, r := range tail {
		writeBlock(&b, r.HTML())
	}
	return b.String()
}

func writeInterleaved(b *strings.Builder, g *bookGroup) {
	primary := g.scripture[0]
	payload := primary.Payload()

	b.WriteString(`<h1 class="book-title">` + html.EscapeString(primary.Title()) + "</h1>\n")
	for _, h := range g.helps {
		writeBlock(b, h.BookIntroHTML())
	}

	for _, ch := range payload.Chapters {
		writeBlock(b, ch.Heading)
		for _, h := range g.helps {
			writeBlock(b, h.ChapterIntroHTML(ch.Number))
		}
		for _, v := range ch.Verses {
			writeBlock(b, v.HTML)
			for _, s := range g.scripture[1:] {
				writeBlock(b, payloadVerse(s.Payload(), ch.Number, v.Number))
			}
			for _, h := range g.helps {
				writeBlock(b, h.VerseHTML(ch.Number, v.Number))
			}
		}
	}
}

// payloadVerse finds one verse fragment in a secondary translation.
// Translations can disagree on versification; a missing verse simply
// contributes nothing.
func payloadVerse(p *usfm.BookPayload, chapter, verse int) string {
	if p == nil {
		return ""
	}
	for _, ch := range p.Chapters {
		if ch.Number != chapter {
			continue
		}
		for _, v := range ch.Verses {
			if v.Number == verse {
				return v.HTML
			}
		}
	}
	return ""
}

// writeBlock appends one non-empty fragment, keeping fragments separated
// by a newline.
func writeBlock(b *strings.Builder, s string) {
	if s == "" {
		return
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(s)
	if !strings.HasSuffix(s, "\n") {
		b.WriteString("\n")
	}
}
