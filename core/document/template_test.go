package document

import (
	"strings"
	"testing"
	"time"
)

func TestEncloseWrapsBody(t *testing.T) {
	html, err := enclose("Resources: gen", `<p>body & soul</p>`, []string{"Genesis (en/ulb/gen), version 12"})
	if err != nil {
		t.Fatalf("enclose: %v", err)
	}

	if !strings.HasPrefix(html, "<!DOCTYPE html>") {
		t.Errorf("missing doctype: %q", html[:40])
	}
	if !strings.Contains(html, "<title>Resources: gen</title>") {
		t.Error("title not substituted")
	}
	// The body is trusted HTML and must pass through unescaped.
	if !strings.Contains(html, `<p>body & soul</p>`) {
		t.Error("body was escaped or dropped")
	}
	if !strings.Contains(html, "<li>Genesis (en/ulb/gen), version 12</li>") {
		t.Error("attribution entry missing")
	}
	year := time.Now().Format("2006")
	if !strings.Contains(html, "Generated on "+year) {
		t.Error("generation date not stamped")
	}
}

func TestEncloseWithoutAttribution(t *testing.T) {
	html, err := enclose("Resources: gen", "<p>x</p>", nil)
	if err != nil {
		t.Fatalf("enclose: %v", err)
	}
	if strings.Contains(html, `<section class="attribution">`) {
		t.Errorf("empty attribution still rendered: %q", html)
	}
}

func TestEncloseEscapesTitle(t *testing.T) {
	html, err := enclose(`alert<script>`, "<p>x</p>", nil)
	if err != nil {
		t.Fatalf("enclose: %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Error("title not escaped")
	}
	if !strings.Contains(html, "alert&lt;script&gt;") {
		t.Errorf("escaped title missing: %q", html)
	}
}
