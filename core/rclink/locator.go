// Package rclink parses, registers, and resolves resource container links,
// the cross-reference locators that tie translation helps to each other
// and to scripture.
package rclink

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/CedarPress/core/errors"
)

// SchemeRC is the canonical locator scheme. SchemeResource is accepted as
// an alias and normalized to SchemeRC during parsing.
const (
	SchemeRC       = "rc"
	SchemeResource = "resource"
)

// WildcardLang is the language segment used by locators that defer to the
// enclosing document's language.
const WildcardLang = "*"

// Locator is a parsed resource container link such as
// rc://en/tw/dict/bible/kt/grace or rc://en/tn/help/gen/01/02.
type Locator struct {
	Scheme   string
	Lang     string
	Type     string
	Segments []string
}

// locatorSyntax is the participle grammar for locators.
//
//nolint:govet
type locatorSyntax struct {
	Scheme   string   `parser:"@Ident \"://\""`
	Lang     string   `parser:"@Ident"`
	Type     string   `parser:"\"/\" @Ident"`
	Segments []string `parser:"( \"/\" @Ident )+"`
}

var locatorLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Sep", Pattern: `://`},
	{Name: "Slash", Pattern: `/`},
	{Name: "Ident", Pattern: `[A-Za-z0-9*][A-Za-z0-9_.*-]*`},
})

var locatorParser = participle.MustBuild[locatorSyntax](
	participle.Lexer(locatorLexer),
)

// Parse parses a locator string. The resource:// scheme alias is
// normalized to rc://, and segments are lowercased so lookups are
// case-insensitive.
func Parse(s string) (*Locator, error) {
	syn, err := locatorParser.ParseString("", s)
	if err != nil {
		return nil, errors.NewParse("locator", s, err)
	}

	scheme := strings.ToLower(syn.Scheme)
	switch scheme {
	case SchemeRC:
	case SchemeResource:
		scheme = SchemeRC
	default:
		return nil, errors.NewParse("locator", s, errors.Wrapf(errors.ErrParse, "unknown scheme %q", syn.Scheme))
	}

	loc := &Locator{
		Scheme:   scheme,
		Lang:     strings.ToLower(syn.Lang),
		Type:     strings.ToLower(syn.Type),
		Segments: make([]string, len(syn.Segments)),
	}
	for i, seg := range syn.Segments {
		loc.Segments[i] = strings.ToLower(seg)
	}
	return loc, nil
}

// String returns the canonical form of the locator.
func (l *Locator) String() string {
	return l.Scheme + "://" + l.Lang + "/" + l.Type + "/" + strings.Join(l.Segments, "/")
}

// WithLang returns a copy of the locator with the language replaced.
// Used to substitute a document's language for the wildcard.
func (l *Locator) WithLang(lang string) *Locator {
	out := &Locator{
		Scheme:   l.Scheme,
		Lang:     lang,
		Type:     l.Type,
		Segments: make([]string, len(l.Segments)),
	}
	copy(out.Segments, l.Segments)
	return out
}

// Help builds a helps locator: rc://lang/type/help/book[/chapter[/verse]].
func Help(lang, typ, book string, extra ...string) *Locator {
	segs := append([]string{"help", book}, extra...)
	return &Locator{Scheme: SchemeRC, Lang: lang, Type: typ, Segments: segs}
}

// Dict builds a dictionary article locator: rc://lang/type/dict/bible/category/word.
func Dict(lang, typ, category, word string) *Locator {
	return &Locator{
		Scheme:   SchemeRC,
		Lang:     lang,
		Type:     typ,
		Segments: []string{"dict", "bible", category, word},
	}
}

// Man builds a manual topic locator: rc://lang/type/man/manual/topic.
func Man(lang, typ, manual, topic string) *Locator {
	return &Locator{
		Scheme:   SchemeRC,
		Lang:     lang,
		Type:     typ,
		Segments: []string{"man", manual, topic},
	}
}
