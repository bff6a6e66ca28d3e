// Package ledger persists the outcome of document runs in a SQLite
// database so the CLI and API can answer "what was generated, when,
// and with which diagnostics" after the fact.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/FocuswithJustin/CedarPress/core/document"
	"github.com/FocuswithJustin/CedarPress/core/errors"
	"github.com/FocuswithJustin/CedarPress/core/model"
	"github.com/FocuswithJustin/CedarPress/core/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS runs (
	key         TEXT PRIMARY KEY,
	status      TEXT NOT NULL,
	html_path   TEXT NOT NULL,
	pdf_path    TEXT NOT NULL DEFAULT '',
	digest      TEXT NOT NULL DEFAULT '',
	unfound     TEXT NOT NULL DEFAULT '',
	bad_links   TEXT NOT NULL DEFAULT '',
	started_at  TEXT NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0
)`

const defaultListLimit = 50

// timeLayout keeps a fixed-width fraction so that lexicographic order
// on the stored column is chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one ledger row, shaped for JSON output.
type Run struct {
	Key        string                  `json:"key"`
	Status     string                  `json:"status"`
	HTMLPath   string                  `json:"html_path"`
	PDFPath    string                  `json:"pdf_path,omitempty"`
	Digest     string                  `json:"digest,omitempty"`
	Unfound    []model.ResourceRequest `json:"unfound,omitempty"`
	BadLinks   []string                `json:"bad_links,omitempty"`
	StartedAt  time.Time               `json:"started_at"`
	DurationMS int64                   `json:"duration_ms"`
}

// Store is a run ledger backed by a SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

var _ document.Recorder = (*Store)(nil)

// Open opens (creating if necessary) the ledger database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.Wrap(errors.ErrLedger, "empty ledger path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(errors.ErrLedger, "create ledger directory: %v", err)
	}
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrLedger, "open %s: %v", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrapf(errors.ErrLedger, "create runs table: %v", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// Path returns the database file path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// Record upserts one run record. A rerun of the same document key
// replaces the previous row.
func (s *Store) Record(ctx context.Context, rec document.RunRecord) error {
	unfound, err := encodeDiagnostic(rec.Unfound)
	if err != nil {
		return errors.Wrapf(errors.ErrLedger, "encode unfound for %s: %v", rec.Key, err)
	}
	badLinks, err := encodeDiagnostic(rec.BadLinks)
	if err != nil {
		return errors.Wrapf(errors.ErrLedger, "encode bad links for %s: %v", rec.Key, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs
		 (key, status, html_path, pdf_path, digest, unfound, bad_links, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Key, rec.Status, rec.HTMLPath, rec.PDFPath, rec.Digest,
		unfound, badLinks,
		rec.StartedAt.UTC().Format(timeLayout),
		rec.Duration.Milliseconds(),
	)
	if err != nil {
		return errors.Wrapf(errors.ErrLedger, "record run %s: %v", rec.Key, err)
	}
	return nil
}

// Get returns the run recorded under key. A key with no row yields
// ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, status, html_path, pdf_path, digest, unfound, bad_links, started_at, duration_ms
		 FROM runs WHERE key = ?`, key)

	run, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(key)
	}
	if err != nil {
		return nil, errors.Wrapf(errors.ErrLedger, "get run %s: %v", key, err)
	}
	return run, nil
}

// List returns up to limit runs, most recent first. A non-positive
// limit applies a default.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, status, html_path, pdf_path, digest, unfound, bad_links, started_at, duration_ms
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrLedger, "list runs: %v", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrLedger, "scan run: %v", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrLedger, "list runs: %v", err)
	}
	return runs, nil
}

func scanRun(scan func(dest ...any) error) (*Run, error) {
	var (
		run       Run
		unfound   string
		badLinks  string
		startedAt string
	)
	err := scan(&run.Key, &run.Status, &run.HTMLPath, &run.PDFPath, &run.Digest,
		&unfound, &badLinks, &startedAt, &run.DurationMS)
	if err != nil {
		return nil, err
	}

	if unfound != "" {
		if err := json.Unmarshal([]byte(unfound), &run.Unfound); err != nil {
			return nil, err
		}
	}
	if badLinks != "" {
		if err := json.Unmarshal([]byte(badLinks), &run.BadLinks); err != nil {
			return nil, err
		}
	}
	run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// encodeDiagnostic renders a diagnostic slice as JSON, with the empty
// slice stored as the empty string.
func encodeDiagnostic[T any](values []T) (string, error) {
	if len(values) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
