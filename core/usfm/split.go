package usfm

import (
	"strconv"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"

	"github.com/FocuswithJustin/CedarPress/core/errors"
)

// Verse is one verse fragment sliced out of a chapter.
type Verse struct {
	Number int
	HTML   string
}

// Chapter is one chapter fragment of a book.
type Chapter struct {
	Number  int
	Heading string // the chapter heading element on its own
	HTML    string // heading plus everything up to the next chapter
	Verses  []Verse
}

// BookPayload is the sliced form of a rendered book, used when documents
// are assembled verse by verse.
type BookPayload struct {
	Code     string
	Title    string
	Chapters []Chapter
}

var (
	chapterHeadingExpr = xpath.MustCompile(`//h2[@class="c-num"]`)
	verseMarkerExpr    = xpath.MustCompile(`//span[@class="v-num"]`)
)

const verseMarkerPrefix = `<span class="v-num"`

// Payload slices the book's HTML into chapters and verses.
func (b *Book) Payload() (*BookPayload, error) {
	return Split(b.HTML, b.Code, b.Title)
}

// Split extracts per-chapter, per-verse fragments from rendered book HTML.
// Chapters are located by their heading elements, verses by their number
// markers within each chapter.
func Split(bookHTML, code, title string) (*BookPayload, error) {
	doc, err := htmlquery.Parse(strings.NewReader(bookHTML))
	if err != nil {
		return nil, errors.NewParse("html", code, err)
	}

	payload := &BookPayload{Code: code, Title: title}

	heads := htmlquery.QuerySelectorAll(doc, chapterHeadingExpr)
	for _, head := range heads {
		num, ok := chapterNumber(head)
		if !ok {
			continue
		}

		heading := htmlquery.OutputHTML(head, true)
		var sb strings.Builder
		sb.WriteString(heading)
		for n := head.NextSibling; n != nil && !isChapterHeading(n); n = n.NextSibling {
			sb.WriteString(htmlquery.OutputHTML(n, true))
		}

		ch := Chapter{Number: num, Heading: heading, HTML: sb.String()}
		ch.Verses = splitVerses(ch.HTML)
		payload.Chapters = append(payload.Chapters, ch)
	}

	return payload, nil
}

// chapterNumber reads the chapter number from the heading text, falling
// back to the trailing id attribute field.
func chapterNumber(head *html.Node) (int, bool) {
	fields := strings.Fields(htmlquery.InnerText(head))
	if len(fields) > 0 {
		if n, err := strconv.Atoi(fields[len(fields)-1]); err == nil {
			return n, true
		}
	}
	id := htmlquery.SelectAttr(head, "id")
	if i := strings.LastIndex(id, "-"); i >= 0 {
		if n, err := strconv.Atoi(id[i+1:]); err == nil {
			return n, true
		}
	}
	return 0, false
}

func isChapterHeading(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "h2" &&
		htmlquery.SelectAttr(n, "class") == "c-num"
}

// splitVerses slices a chapter fragment on its verse markers. Markers can
// sit inside paragraph elements, so the slicing works on the serialized
// chapter text rather than on element boundaries.
func splitVerses(chapterHTML string) []Verse {
	doc, err := htmlquery.Parse(strings.NewReader(chapterHTML))
	if err != nil {
		return nil
	}

	type marker struct {
		num int
		pos int
	}
	var markers []marker

	searchFrom := 0
	for _, span := range htmlquery.QuerySelectorAll(doc, verseMarkerExpr) {
		id := htmlquery.SelectAttr(span, "id")
		parts := strings.Split(id, "-v-")
		if len(parts) < 2 {
			continue
		}
		num, err := strconv.Atoi(parts[len(parts)-1])
		if err != nil {
			continue
		}
		literal := `<span class="v-num" id="` + id + `">`
		idx := strings.Index(chapterHTML[searchFrom:], literal)
		if idx < 0 {
			continue
		}
		pos := searchFrom + idx
		markers = append(markers, marker{num: num, pos: pos})
		searchFrom = pos + len(literal)
	}

	verses := make([]Verse, 0, len(markers))
	for i, m := range markers {
		end := len(chapterHTML)
		if i+1 < len(markers) {
			end = markers[i+1].pos
		}
		fragment := truncateToMarker(chapterHTML[m.pos:end])
		verses = append(verses, Verse{Number: m.num, HTML: fragment})
	}
	return verses
}

// truncateToMarker cuts a verse fragment down to its own marker and the
// content that follows it. Rendered fragments can echo a later verse's
// marker when markup nests, and anything before or after the echoed
// marker does not belong to this verse.
func truncateToMarker(fragment string) string {
	parts := strings.SplitN(fragment, verseMarkerPrefix, 3)
	if len(parts) < 3 {
		return fragment
	}
	return verseMarkerPrefix + parts[1]
}
