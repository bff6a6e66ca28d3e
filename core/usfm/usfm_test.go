package usfm

import (
	"strings"
	"testing"

	"github.com/FocuswithJustin/CedarPress/core/errors"
)

const sampleGenesis = `\id GEN Genesis
\h Genesis
\toc2 Genesis
\mt Genesis
\c 1
\p
\v 1 In the beginning God created the heavens and the earth.
\v 2 The earth was formless and empty.
\c 2
\p
\v 1 The heavens and the earth were finished.
`

func TestParseReader_Basic(t *testing.T) {
	book, err := ParseReader(strings.NewReader(sampleGenesis), "gen.usfm")
	if err != nil {
		t.Fatalf("ParseReader() error = %v", err)
	}

	if book.Code != "gen" {
		t.Errorf("Code = %q, want %q", book.Code, "gen")
	}
	if book.Number != 1 {
		t.Errorf("Number = %d, want 1", book.Number)
	}
	if book.Title != "Genesis" {
		t.Errorf("Title = %q, want %q", book.Title, "Genesis")
	}

	wantFragments := []string{
		`<h1 class="book-title">Genesis</h1>`,
		`<h2 class="c-num" id="001-ch-001">Chapter 1</h2>`,
		`<h2 class="c-num" id="001-ch-002">Chapter 2</h2>`,
		`<span class="v-num" id="001-ch-001-v-001">1</span>`,
		`<span class="v-num" id="001-ch-001-v-002">2</span>`,
		`<span class="v-num" id="001-ch-002-v-001">1</span>`,
		`<span class="v-text">In the beginning God created the heavens and the earth.</span>`,
	}
	for _, want := range wantFragments {
		if !strings.Contains(book.HTML, want) {
			t.Errorf("HTML missing fragment %q\nhtml:\n%s", want, book.HTML)
		}
	}
}

func TestParseReader_TitlePrecedence(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "heading marker wins",
			input: "\\id EXO\n\\h Exodus Heading\n\\toc2 Exodus TOC\n\\mt Exodus MT\n",
			want:  "Exodus Heading",
		},
		{
			name:  "toc2 when no heading",
			input: "\\id EXO\n\\toc2 Exodus TOC\n\\mt Exodus MT\n",
			want:  "Exodus TOC",
		},
		{
			name:  "main title when no heading or toc2",
			input: "\\id EXO\n\\mt Exodus MT\n",
			want:  "Exodus MT",
		},
		{
			name:  "english name fallback",
			input: "\\id EXO\n",
			want:  "Exodus",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			book, err := ParseReader(strings.NewReader(tt.input), "exo.usfm")
			if err != nil {
				t.Fatalf("ParseReader() error = %v", err)
			}
			if book.Title != tt.want {
				t.Errorf("Title = %q, want %q", book.Title, tt.want)
			}
		})
	}
}

func TestParseReader_ChapterLabel(t *testing.T) {
	input := "\\id PSA\n\\cl Psalm\n\\c 3\n\\v 1 A verse.\n"
	book, err := ParseReader(strings.NewReader(input), "psa.usfm")
	if err != nil {
		t.Fatalf("ParseReader() error = %v", err)
	}
	if !strings.Contains(book.HTML, `<h2 class="c-num" id="019-ch-003">Psalm 3</h2>`) {
		t.Errorf("HTML missing labeled chapter heading:\n%s", book.HTML)
	}
}

func TestParseReader_VerseRange(t *testing.T) {
	input := "\\id GEN\n\\c 1\n\\v 1-2 Bridged verse text.\n"
	book, err := ParseReader(strings.NewReader(input), "gen.usfm")
	if err != nil {
		t.Fatalf("ParseReader() error = %v", err)
	}
	if !strings.Contains(book.HTML, `<span class="v-num" id="001-ch-001-v-001">1-2</span>`) {
		t.Errorf("range verse should anchor to its lower bound:\n%s", book.HTML)
	}
}

func TestParseReader_ContinuationAndBreaks(t *testing.T) {
	input := "\\id GEN\n\\c 1\n\\v 1 First line\ncontinued line\n\\q1 a poetry line\n\\v 2 Next.\n"
	book, err := ParseReader(strings.NewReader(input), "gen.usfm")
	if err != nil {
		t.Fatalf("ParseReader() error = %v", err)
	}

	if !strings.Contains(book.HTML, "First line continued line<br/>a poetry line") {
		t.Errorf("verse text should join continuations and break on poetry markers:\n%s", book.HTML)
	}
}

func TestParseReader_InlineMarkers(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		exclude string
	}{
		{
			name:    "footnote removed",
			input:   "\\id GEN\n\\c 1\n\\v 1 Before \\f + \\ft a note \\f* after.\n",
			want:    "Before after.",
			exclude: "a note",
		},
		{
			name:    "cross reference removed",
			input:   "\\id GEN\n\\c 1\n\\v 1 Before \\x - \\xt Gen 1:1 \\x* after.\n",
			want:    "Before after.",
			exclude: "Gen 1:1",
		},
		{
			name:    "character markers keep text",
			input:   "\\id GEN\n\\c 1\n\\v 1 The \\nd Lord\\nd* spoke \\add clearly\\add*.\n",
			want:    "The Lord spoke clearly.",
			exclude: "\\nd",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			book, err := ParseReader(strings.NewReader(tt.input), "gen.usfm")
			if err != nil {
				t.Fatalf("ParseReader() error = %v", err)
			}
			if !strings.Contains(book.HTML, tt.want) {
				t.Errorf("HTML missing %q:\n%s", tt.want, book.HTML)
			}
			if tt.exclude != "" && strings.Contains(book.HTML, tt.exclude) {
				t.Errorf("HTML should not contain %q:\n%s", tt.exclude, book.HTML)
			}
		})
	}
}

func TestParseReader_EscapesText(t *testing.T) {
	input := "\\id GEN\n\\c 1\n\\v 1 Waters < land & sky > earth.\n"
	book, err := ParseReader(strings.NewReader(input), "gen.usfm")
	if err != nil {
		t.Fatalf("ParseReader() error = %v", err)
	}
	if !strings.Contains(book.HTML, "Waters &lt; land &amp; sky &gt; earth.") {
		t.Errorf("verse text should be HTML escaped:\n%s", book.HTML)
	}
}

func TestParseReader_SectionHeadingClosesVerse(t *testing.T) {
	input := "\\id GEN\n\\c 1\n\\v 1 Verse one.\n\\s A section\n\\v 2 Verse two.\n"
	book, err := ParseReader(strings.NewReader(input), "gen.usfm")
	if err != nil {
		t.Fatalf("ParseReader() error = %v", err)
	}
	if !strings.Contains(book.HTML, `Verse one.</span></p>`) {
		t.Errorf("section heading should close the open verse:\n%s", book.HTML)
	}
	if !strings.Contains(book.HTML, `<h3 class="section-heading">A section</h3>`) {
		t.Errorf("HTML missing section heading:\n%s", book.HTML)
	}
}

func TestParseReader_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "missing id marker", input: "\\c 1\n\\v 1 No book.\n"},
		{name: "empty input", input: ""},
		{name: "unknown book code", input: "\\id ZZZ Unknown\n"},
		{name: "bad chapter marker", input: "\\id GEN\n\\c one\n"},
		{name: "bad verse marker", input: "\\id GEN\n\\c 1\n\\v one text\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReader(strings.NewReader(tt.input), "bad.usfm")
			if err == nil {
				t.Fatal("ParseReader() expected error, got nil")
			}
			if !errors.Is(err, errors.ErrParse) {
				t.Errorf("error should wrap ErrParse, got %v", err)
			}
		})
	}
}

func TestParseReader_LowercasesBookCode(t *testing.T) {
	input := "\\id JHN John\n"
	book, err := ParseReader(strings.NewReader(input), "jhn.usfm")
	if err != nil {
		t.Fatalf("ParseReader() error = %v", err)
	}
	if book.Code != "jhn" {
		t.Errorf("Code = %q, want %q", book.Code, "jhn")
	}
	if book.Number != 44 {
		t.Errorf("Number = %d, want 44", book.Number)
	}
}
