package resource

import (
	"regexp"
	"strings"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// firstHeadingLine matches the first ATX heading in a unit of markdown.
var firstHeadingLine = regexp.MustCompile(`(?m)^#+[ \t].*$`)

// headingLine captures a heading's marker run and its trailing text.
var headingLine = regexp.MustCompile(`(?m)^(#+)([ \t].*)$`)

// headingLevel returns the ATX heading level of line, 0 when line is not
// a heading.
func headingLevel(line string) int {
	n := 0
	for n < len(line) && line[n] == '#' {
		n++
	}
	if n > 0 && n < len(line) && (line[n] == ' ' || line[n] == '\t') {
		return n
	}
	return 0
}

// demoteHeadings pushes every heading in md down by depth levels so a
// unit's internal structure nests under the heading that precedes it.
func demoteHeadings(md string, depth int) string {
	if md == "" || depth <= 0 {
		return md
	}
	return headingLine.ReplaceAllString(md, strings.Repeat("#", depth)+"$1$2")
}

// promoteDeepHeadings lifts headings of floor or more levels back up by
// depth, keeping demoted structure inside the six levels HTML offers.
func promoteDeepHeadings(md string, floor, depth int) string {
	if md == "" || depth <= 0 {
		return md
	}
	lines := strings.Split(md, "\n")
	for i, line := range lines {
		if headingLevel(line) >= floor {
			lines[i] = line[depth:]
		}
	}
	return strings.Join(lines, "\n")
}

// injectAnchor places a hidden anchor element directly under the unit's
// first heading, or at the very top when the unit has none. Exactly one
// anchor is injected.
func injectAnchor(md, anchor string) string {
	tag := `<a id="` + anchor + `"></a>`
	pos := firstHeadingLine.FindStringIndex(md)
	if pos == nil {
		return tag + "\n" + md
	}
	return md[:pos[1]] + "\n" + tag + md[pos[1]:]
}

// firstHeadingText returns the text of the first heading in md, stripped
// of its markers, or "" when md has no heading.
func firstHeadingText(md string) string {
	m := firstHeadingLine.FindString(md)
	if m == "" {
		return ""
	}
	return strings.TrimSpace(strings.TrimLeft(m, "#"))
}

// removeSection drops the section whose heading text starts with name:
// the heading line and everything up to the next heading of any level.
func removeSection(md, name string) string {
	if md == "" {
		return md
	}
	var out []string
	skipping := false
	for _, line := range strings.Split(md, "\n") {
		if headingLevel(line) > 0 {
			text := strings.TrimSpace(strings.TrimLeft(line, "#"))
			if strings.HasPrefix(text, name) {
				skipping = true
				continue
			}
			skipping = false
		}
		if !skipping {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// renderMarkdown converts one unit of markdown to HTML. gomarkdown
// parsers are single use, so a fresh one is built per conversion.
func renderMarkdown(md string) string {
	if strings.TrimSpace(md) == "" {
		return ""
	}
	p := parser.NewWithExtensions(parser.CommonExtensions)
	r := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags})
	return string(markdown.ToHTML([]byte(md), p, r))
}
