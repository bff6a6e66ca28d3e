package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/FocuswithJustin/CedarPress/core/document"
	"github.com/FocuswithJustin/CedarPress/core/errors"
	"github.com/FocuswithJustin/CedarPress/core/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 8, 25, 9, 30, 0, 0, time.UTC)
	rec := document.RunRecord{
		Key:      "en-ulb-gen_en-tn-gen",
		Status:   document.StatusComplete,
		HTMLPath: "/out/en-ulb-gen_en-tn-gen.html",
		PDFPath:  "/out/en-ulb-gen_en-tn-gen.pdf",
		Digest:   "deadbeef",
		Unfound: []model.ResourceRequest{
			{Lang: "en", Type: "tq", Code: "gen"},
		},
		BadLinks:  []string{"rc://en/ta/man/translate/figs-metaphor"},
		StartedAt: started,
		Duration:  1500 * time.Millisecond,
	}
	if err := store.Record(ctx, rec); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := store.Get(ctx, rec.Key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Key != rec.Key {
		t.Errorf("Key = %q, want %q", got.Key, rec.Key)
	}
	if got.Status != document.StatusComplete {
		t.Errorf("Status = %q, want %q", got.Status, document.StatusComplete)
	}
	if got.HTMLPath != rec.HTMLPath {
		t.Errorf("HTMLPath = %q, want %q", got.HTMLPath, rec.HTMLPath)
	}
	if got.PDFPath != rec.PDFPath {
		t.Errorf("PDFPath = %q, want %q", got.PDFPath, rec.PDFPath)
	}
	if got.Digest != "deadbeef" {
		t.Errorf("Digest = %q, want deadbeef", got.Digest)
	}
	if len(got.Unfound) != 1 || got.Unfound[0].Spec() != "en/tq/gen" {
		t.Errorf("Unfound = %v, want one en/tq/gen entry", got.Unfound)
	}
	if len(got.BadLinks) != 1 || got.BadLinks[0] != "rc://en/ta/man/translate/figs-metaphor" {
		t.Errorf("BadLinks = %v", got.BadLinks)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
	}
	if got.DurationMS != 1500 {
		t.Errorf("DurationMS = %d, want 1500", got.DurationMS)
	}
}

func TestRecordReplacesExistingKey(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := document.RunRecord{
		Key:       "en-ulb-gen",
		Status:    document.StatusTypesetFailed,
		HTMLPath:  "/out/en-ulb-gen.html",
		StartedAt: time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC),
	}
	if err := store.Record(ctx, first); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	second := first
	second.Status = document.StatusComplete
	second.PDFPath = "/out/en-ulb-gen.pdf"
	second.StartedAt = second.StartedAt.Add(5 * time.Minute)
	if err := store.Record(ctx, second); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := store.Get(ctx, "en-ulb-gen")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != document.StatusComplete {
		t.Errorf("Status = %q, want %q after rerun", got.Status, document.StatusComplete)
	}
	if got.PDFPath != "/out/en-ulb-gen.pdf" {
		t.Errorf("PDFPath = %q, want rerun value", got.PDFPath)
	}

	runs, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("List returned %d runs, want 1 after upsert", len(runs))
	}
}

func TestGetMissingKey(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get(context.Background(), "en-ulb-rev")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Get error = %v, want ErrNotFound", err)
	}
}

func TestListOrdersByRecency(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 25, 8, 0, 0, 0, time.UTC)
	for i, key := range []string{"en-ulb-gen", "en-ulb-exo", "en-ulb-lev"} {
		rec := document.RunRecord{
			Key:       key,
			Status:    document.StatusComplete,
			HTMLPath:  "/out/" + key + ".html",
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Record(ctx, rec); err != nil {
			t.Fatalf("Record %s failed: %v", key, err)
		}
	}

	runs, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("List returned %d runs, want 2", len(runs))
	}
	if runs[0].Key != "en-ulb-lev" || runs[1].Key != "en-ulb-exo" {
		t.Errorf("List order = [%s %s], want newest first", runs[0].Key, runs[1].Key)
	}
}

func TestListEmptyStore(t *testing.T) {
	store := openTestStore(t)

	runs, err := store.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("List returned %d runs, want none", len(runs))
	}
}

func TestEmptyDiagnosticsStayEmpty(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec := document.RunRecord{
		Key:       "fr-ulb-gen",
		Status:    document.StatusComplete,
		HTMLPath:  "/out/fr-ulb-gen.html",
		StartedAt: time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC),
	}
	if err := store.Record(ctx, rec); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := store.Get(ctx, "fr-ulb-gen")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Unfound != nil {
		t.Errorf("Unfound = %v, want nil", got.Unfound)
	}
	if got.BadLinks != nil {
		t.Errorf("BadLinks = %v, want nil", got.BadLinks)
	}
	if got.PDFPath != "" {
		t.Errorf("PDFPath = %q, want empty", got.PDFPath)
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("")
	if !errors.Is(err, errors.ErrLedger) {
		t.Errorf("Open(\"\") error = %v, want ErrLedger", err)
	}
}
