// Package usfm converts USFM scripture source into HTML with stable
// chapter and verse anchors, and slices the rendered HTML back into
// per-chapter, per-verse payloads.
package usfm

import (
	"bufio"
	"fmt"
	"html"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/CedarPress/core/books"
	"github.com/FocuswithJustin/CedarPress/core/errors"
)

// Book is one parsed USFM book rendered to HTML.
type Book struct {
	Code   string // lowercase USFM code, e.g. "gen"
	Number int    // traditional book number
	Title  string // from \h, \toc2, or \mt, falling back to the English name
	HTML   string
}

var (
	verseNumRegex   = regexp.MustCompile(`^(\d+)(?:-(\d+))?`)
	chapterNumRegex = regexp.MustCompile(`^(\d+)`)

	// Inline content cleanup: footnotes and cross references are dropped
	// whole, remaining character markers are stripped keeping their text.
	footnoteRegex = regexp.MustCompile(`(?s)\\f\s.*?\\f\*`)
	crossRefRegex = regexp.MustCompile(`(?s)\\x\s.*?\\x\*`)
	charRegex     = regexp.MustCompile(`\\\+?[a-z0-9]+\*?`)
)

// Parse reads and converts a USFM file.
func Parse(path string) (*Book, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer f.Close()
	return ParseReader(f, path)
}

// verseSeg is one piece of an open verse: either a text chunk or a
// paragraph break.
type verseSeg struct {
	text string
	brk  bool
}

// converter holds the line scanning state.
type converter struct {
	path string

	code   string
	number int
	title  string

	chapter      int
	chapterLabel string

	inVerse  bool
	verseID  string
	verseNum string
	segs     []verseSeg

	body strings.Builder
}

// ParseReader converts USFM content from r. path is used in error
// messages only.
func ParseReader(r io.Reader, path string) (*Book, error) {
	c := &converter{path: path, chapterLabel: "Chapter"}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if err := c.consume(strings.TrimSpace(scanner.Text()), line); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewIO("read", path, err)
	}

	if c.code == "" {
		return nil, &errors.ParseError{Format: "usfm", Path: path, Err: errors.Wrap(errors.ErrParse, "missing \\id marker")}
	}
	c.closeVerse()

	if c.title == "" {
		if name, ok := books.Name(c.code); ok {
			c.title = name
		} else {
			c.title = strings.ToUpper(c.code)
		}
	}

	var sb strings.Builder
	sb.WriteString(`<h1 class="book-title">` + html.EscapeString(c.title) + "</h1>\n")
	sb.WriteString(c.body.String())

	return &Book{
		Code:   c.code,
		Number: c.number,
		Title:  c.title,
		HTML:   sb.String(),
	}, nil
}

func (c *converter) consume(trimmed string, line int) error {
	if trimmed == "" {
		return nil
	}

	if !strings.HasPrefix(trimmed, "\\") {
		// Continuation of the current verse text
		if c.inVerse {
			c.segs = append(c.segs, verseSeg{text: trimmed})
		}
		return nil
	}

	parts := strings.SplitN(trimmed, " ", 2)
	marker := strings.TrimPrefix(parts[0], "\\")
	text := ""
	if len(parts) > 1 {
		text = strings.TrimSpace(parts[1])
	}

	switch marker {
	case "id":
		fields := strings.Fields(text)
		if len(fields) == 0 {
			return &errors.ParseError{Format: "usfm", Path: c.path, Line: line, Err: errors.Wrap(errors.ErrParse, "empty \\id marker")}
		}
		code := strings.ToLower(fields[0])
		num, ok := books.Number(code)
		if !ok {
			return &errors.ParseError{Format: "usfm", Path: c.path, Line: line, Err: errors.Wrapf(errors.ErrParse, "unknown book code %q", fields[0])}
		}
		c.code = code
		c.number = num

	case "h":
		c.title = text

	case "toc2":
		if c.title == "" {
			c.title = text
		}

	case "mt", "mt1", "mt2", "mt3":
		if c.title == "" {
			c.title = text
		}

	case "cl":
		if text != "" {
			c.chapterLabel = text
		}

	case "c":
		m := chapterNumRegex.FindStringSubmatch(text)
		if m == nil {
			return &errors.ParseError{Format: "usfm", Path: c.path, Line: line, Err: errors.Wrapf(errors.ErrParse, "bad chapter marker %q", trimmed)}
		}
		num, _ := strconv.Atoi(m[1])
		c.closeVerse()
		c.chapter = num
		c.body.WriteString(fmt.Sprintf("<h2 class=\"c-num\" id=\"%03d-ch-%03d\">%s %d</h2>\n",
			c.number, num, html.EscapeString(c.chapterLabel), num))

	case "v":
		m := verseNumRegex.FindStringSubmatch(text)
		if m == nil {
			return &errors.ParseError{Format: "usfm", Path: c.path, Line: line, Err: errors.Wrapf(errors.ErrParse, "bad verse marker %q", trimmed)}
		}
		c.closeVerse()
		num, _ := strconv.Atoi(m[1])
		display := m[1]
		if m[2] != "" {
			// Verse ranges keep their display text and anchor to the
			// lower bound
			display = m[1] + "-" + m[2]
		}
		c.inVerse = true
		c.verseID = fmt.Sprintf("%03d-ch-%03d-v-%03d", c.number, c.chapter, num)
		c.verseNum = display
		c.segs = nil
		rest := strings.TrimSpace(text[len(m[0]):])
		if rest != "" {
			c.segs = append(c.segs, verseSeg{text: rest})
		}

	case "s", "s1", "s2", "s3":
		c.closeVerse()
		if text != "" {
			c.body.WriteString(`<h3 class="section-heading">` + html.EscapeString(text) + "</h3>\n")
		}

	case "p", "m", "pi", "mi", "nb", "b", "d", "sp",
		"q", "q1", "q2", "q3", "qr", "qc", "qm":
		// Paragraph-level markers inside a verse become soft breaks;
		// between verses they carry no content of their own
		if c.inVerse {
			c.segs = append(c.segs, verseSeg{brk: true})
			if text != "" {
				c.segs = append(c.segs, verseSeg{text: text})
			}
		}

	default:
		// Unhandled markers (\ide, \usfm, \sts, \rem, \toc1, \toc3, ...)
		// are skipped
	}

	return nil
}

// closeVerse flushes the open verse, if any, as one paragraph.
func (c *converter) closeVerse() {
	if !c.inVerse {
		return
	}
	c.inVerse = false

	c.body.WriteString(`<p class="verse"><span class="v-num" id="` + c.verseID + `">` + html.EscapeString(c.verseNum) + `</span> <span class="v-text">`)

	first := true
	for _, seg := range c.segs {
		if seg.brk {
			c.body.WriteString("<br/>")
			first = true
			continue
		}
		if !first {
			c.body.WriteString(" ")
		}
		c.body.WriteString(html.EscapeString(cleanInline(seg.text)))
		first = false
	}

	c.body.WriteString("</span></p>\n")
}

// cleanInline removes footnotes and cross references and strips remaining
// inline character markers, keeping their text.
func cleanInline(s string) string {
	s = footnoteRegex.ReplaceAllString(s, "")
	s = crossRefRegex.ReplaceAllString(s, "")
	s = charRegex.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}
