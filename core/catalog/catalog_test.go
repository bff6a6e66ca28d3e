package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FocuswithJustin/CedarPress/core/errors"
	"github.com/FocuswithJustin/CedarPress/core/model"
)

const fixture = `[
  {"code": "en", "name": "English", "contents": [
    {"code": "ulb", "name": "Unlocked Literal Bible", "subject": "Bible",
     "links": [
       {"url": "https://cdn.example.org/en/ulb.zip", "format": "zip"},
       {"url": "https://git.example.org/en_ulb.git", "format": "git"}
     ],
     "subcontents": [
       {"code": "exo", "name": "Exodus", "sort": 2, "links": [
         {"url": "https://cdn.example.org/en/ulb/02-EXO.pdf", "format": "pdf"}
       ]},
       {"code": "gen", "name": "Genesis", "sort": 1, "links": [
         {"url": "https://cdn.example.org/en/ulb/01-GEN.usfm", "format": "usfm"}
       ]}
     ]},
    {"code": "tn", "name": "Translation Notes",
     "links": [{"url": "https://git.example.org/en_tn", "format": "git"}],
     "subcontents": []}
  ]},
  {"code": "fr", "name": "Français", "contents": []}
]`

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.URL = srv.URL
	cfg.Timeout = 5 * time.Second
	cfg.RetryCount = 0
	return New(cfg), srv
}

func fixtureClient(t *testing.T) *Client {
	t.Helper()
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(fixture))
	}))
	return c
}

func TestResolve(t *testing.T) {
	c := fixtureClient(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  model.ResourceRequest
		want *model.LocationDescriptor
	}{
		{
			name: "book level link preferred over repo level",
			req:  model.ResourceRequest{Lang: "en", Type: "ulb", Code: "gen"},
			want: &model.LocationDescriptor{Kind: model.KindFlat, URL: "https://cdn.example.org/en/ulb/01-GEN.usfm"},
		},
		{
			name: "unusable book link falls back to repo level git",
			req:  model.ResourceRequest{Lang: "en", Type: "ulb", Code: "exo"},
			want: &model.LocationDescriptor{Kind: model.KindGit, URL: "https://git.example.org/en_ulb.git"},
		},
		{
			name: "no subcontents uses content links",
			req:  model.ResourceRequest{Lang: "en", Type: "tn", Code: "gen"},
			want: &model.LocationDescriptor{Kind: model.KindGit, URL: "https://git.example.org/en_tn"},
		},
		{
			name: "language present type absent",
			req:  model.ResourceRequest{Lang: "fr", Type: "ulb", Code: "gen"},
			want: nil,
		},
		{
			name: "language absent",
			req:  model.ResourceRequest{Lang: "de", Type: "ulb", Code: "gen"},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Resolve(ctx, tt.req)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if tt.want == nil {
				if got != nil {
					t.Fatalf("Resolve() = %+v, want nil (not found)", got)
				}
				return
			}
			if got == nil {
				t.Fatal("Resolve() = nil, want descriptor")
			}
			if got.Kind != tt.want.Kind || got.URL != tt.want.URL {
				t.Errorf("Resolve() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestListings(t *testing.T) {
	c := fixtureClient(t)
	ctx := context.Background()

	langs, err := c.Languages(ctx)
	if err != nil {
		t.Fatalf("Languages() error = %v", err)
	}
	if len(langs) != 2 || langs[0] != "en" || langs[1] != "fr" {
		t.Errorf("Languages() = %v", langs)
	}

	names, err := c.LanguageNames(ctx)
	if err != nil {
		t.Fatalf("LanguageNames() error = %v", err)
	}
	if len(names) != 2 || names[0].Name != "English" || names[1].Name != "Français" {
		t.Errorf("LanguageNames() = %v", names)
	}

	types, err := c.Types(ctx, "en")
	if err != nil {
		t.Fatalf("Types() error = %v", err)
	}
	if len(types) != 2 || types[0] != "ulb" || types[1] != "tn" {
		t.Errorf("Types(en) = %v", types)
	}

	empty, err := c.Types(ctx, "fr")
	if err != nil {
		t.Fatalf("Types(fr) error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Types(fr) = %v, want empty", empty)
	}
}

func TestCodes_SortedByCatalogOrder(t *testing.T) {
	c := fixtureClient(t)

	// The fixture lists exo before gen; the sort field restores
	// canonical order
	codes, err := c.Codes(context.Background(), "en", "ulb")
	if err != nil {
		t.Fatalf("Codes() error = %v", err)
	}
	if len(codes) != 2 || codes[0] != "gen" || codes[1] != "exo" {
		t.Errorf("Codes() = %v, want [gen exo]", codes)
	}
}

func TestSnapshotCaching(t *testing.T) {
	var hits atomic.Int32
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(fixture))
	}))
	ctx := context.Background()

	if _, err := c.Languages(ctx); err != nil {
		t.Fatalf("Languages() error = %v", err)
	}
	if _, err := c.Resolve(ctx, model.ResourceRequest{Lang: "en", Type: "tn", Code: "gen"}); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hits = %d, want 1 (snapshot cached)", got)
	}

	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("server hits after Refresh = %d, want 2", got)
	}
}

func TestFetchErrors(t *testing.T) {
	t.Run("http error status", func(t *testing.T) {
		c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		_, err := c.Languages(context.Background())
		if err == nil {
			t.Fatal("Languages() expected error")
		}
		if !errors.Is(err, errors.ErrFetch) {
			t.Errorf("error should wrap ErrFetch, got %v", err)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>not json</html>"))
		}))
		_, err := c.Languages(context.Background())
		if err == nil {
			t.Fatal("Languages() expected error")
		}
		if !errors.Is(err, errors.ErrParse) {
			t.Errorf("error should wrap ErrParse, got %v", err)
		}
	})
}

func TestKindFor(t *testing.T) {
	tests := []struct {
		format string
		url    string
		want   model.StorageKind
		ok     bool
	}{
		{"git", "https://example.org/repo", model.KindGit, true},
		{"zip", "https://example.org/r.zip", model.KindZip, true},
		{"usfm", "https://example.org/01-GEN.usfm", model.KindFlat, true},
		{"", "https://example.org/repo.git", model.KindGit, true},
		{"", "https://example.org/r.zip", model.KindZip, true},
		{"", "https://example.org/notes.md", model.KindFlat, true},
		{"pdf", "https://example.org/r.pdf", "", false},
		{"", "https://example.org/page.html", "", false},
	}
	for _, tt := range tests {
		kind, ok := kindFor(tt.format, tt.url)
		if kind != tt.want || ok != tt.ok {
			t.Errorf("kindFor(%q, %q) = %v, %v; want %v, %v", tt.format, tt.url, kind, ok, tt.want, tt.ok)
		}
	}
}
