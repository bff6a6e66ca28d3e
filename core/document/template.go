package document

import (
	"html/template"
	"strings"

	"github.com/Masterminds/sprig/v3"

	"github.com/FocuswithJustin/CedarPress/core/errors"
	"github.com/FocuswithJustin/CedarPress/core/resource"
)

// enclosureHTML wraps the assembled body with the fixed document chrome.
// The class names match what the renderers emit; the print styles keep
// the typeset output close to the on-screen one.
const enclosureHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{ .Title }}</title>
<style>
body { font-family: "Noto Serif", Georgia, serif; max-width: 46em; margin: 2em auto; padding: 0 1em; line-height: 1.5; }
h1.book-title { text-align: center; page-break-before: always; }
h2.c-num { page-break-after: avoid; }
span.v-num { font-size: 0.7em; vertical-align: super; color: #555; padding-right: 0.2em; }
a { color: #1f5c8b; text-decoration: none; }
section.attribution { font-size: 0.85em; color: #555; }
</style>
</head>
<body>
{{ .Body }}
{{- if .Attribution }}
<hr>
<section class="attribution">
<p>Generated on {{ now | date "2006-01-02" }} from:</p>
<ul>
{{- range .Attribution }}
<li>{{ . }}</li>
{{- end }}
</ul>
</section>
{{- end }}
</body>
</html>
`

type enclosureData struct {
	Title       string
	Body        template.HTML
	Attribution []string
}

var enclosureTmpl = template.Must(
	template.New("document").Funcs(sprig.HtmlFuncMap()).Parse(enclosureHTML))

// enclose wraps the assembled body in the document template.
func enclose(title, body string, attribution []string) (string, error) {
	var b strings.Builder
	err := enclosureTmpl.Execute(&b, enclosureData{
		Title:       title,
		Body:        template.HTML(body),
		Attribution: attribution,
	})
	if err != nil {
		return "", errors.Wrapf(errors.ErrInternal, "document template: %v", err)
	}
	return b.String(), nil
}

// attribution lists the provenance of every contributing resource,
// drawn from the manifests that shipped with the content.
func attribution(found []*resource.Resource) []string {
	var out []string
	for _, r := range found {
		line := r.Title() + " (" + r.Spec() + ")"
		if m := r.Manifest(); m != nil {
			if m.Version != "" {
				line += ", version " + m.Version
			}
			if m.Issued != "" {
				line += ", issued " + m.Issued
			}
		}
		out = append(out, line)
	}
	return out
}
