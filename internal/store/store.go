// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists analysis reports and caches reference resolutions
// across runs in a single SQLite database.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/citeguard/pkg/types"
)

// resolutionTTL bounds how long a cached resolution is trusted; retraction
// status can change, so stale entries are re-fetched.
const resolutionTTL = 30 * 24 * time.Hour

// Store manages the citeguard SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at cfg.Path and ensures the schema.
func Open(cfg types.StoreConfig) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = "citeguard.db"
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS reports (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			input_path TEXT,
			references_count INTEGER,
			citations_count INTEGER,
			issues_count INTEGER,
			body TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at)`,
		`CREATE TABLE IF NOT EXISTS resolution_cache (
			cache_key TEXT PRIMARY KEY,
			source TEXT,
			confidence REAL,
			fetched_at TEXT NOT NULL,
			body TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// SaveReport archives one report. The full report is stored as JSON; the
// headline counts are lifted into columns for listing.
func (s *Store) SaveReport(rep *types.Report, inputPath string) error {
	body, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO reports
			(id, created_at, input_path, references_count, citations_count, issues_count, body)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rep.ID, rep.CreatedAt.UTC().Format(time.RFC3339), inputPath,
		rep.Summary.References, rep.Summary.Citations, rep.Summary.Issues, string(body))
	if err != nil {
		return fmt.Errorf("saving report: %w", err)
	}
	return nil
}

// ReportHead is one row of the report listing.
type ReportHead struct {
	ID         string
	CreatedAt  time.Time
	InputPath  string
	References int
	Citations  int
	Issues     int
}

// ListReports returns archived report heads, newest first.
func (s *Store) ListReports(limit int) ([]ReportHead, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, created_at, input_path, references_count, citations_count, issues_count
		 FROM reports ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	var out []ReportHead
	for rows.Next() {
		var head ReportHead
		var created string
		if err := rows.Scan(&head.ID, &created, &head.InputPath,
			&head.References, &head.Citations, &head.Issues); err != nil {
			return nil, fmt.Errorf("scanning report row: %w", err)
		}
		head.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, head)
	}
	return out, rows.Err()
}

// GetReport loads one archived report by id, or by unambiguous id prefix.
// A missing report returns (nil, nil).
func (s *Store) GetReport(id string) (*types.Report, error) {
	row := s.db.QueryRow(`SELECT body FROM reports WHERE id = ?`, id)
	var body string
	err := row.Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		rows, qerr := s.db.Query(`SELECT body FROM reports WHERE id LIKE ? LIMIT 2`, id+"%")
		if qerr != nil {
			return nil, fmt.Errorf("loading report: %w", qerr)
		}
		defer rows.Close()
		var bodies []string
		for rows.Next() {
			var b string
			if serr := rows.Scan(&b); serr != nil {
				return nil, fmt.Errorf("scanning report: %w", serr)
			}
			bodies = append(bodies, b)
		}
		if len(bodies) != 1 {
			return nil, nil
		}
		body = bodies[0]
	} else if err != nil {
		return nil, fmt.Errorf("loading report: %w", err)
	}

	var rep types.Report
	if err := json.Unmarshal([]byte(body), &rep); err != nil {
		return nil, fmt.Errorf("decoding report %s: %w", id, err)
	}
	return &rep, nil
}

// CachedResolution returns a previously resolved work for the cache key
// (typically "doi:<normalized doi>"), or nil when absent or expired.
func (s *Store) CachedResolution(key string) (*types.ResolvedWork, error) {
	row := s.db.QueryRow(
		`SELECT fetched_at, body FROM resolution_cache WHERE cache_key = ?`, key)
	var fetched, body string
	err := row.Scan(&fetched, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading cached resolution: %w", err)
	}
	at, err := time.Parse(time.RFC3339, fetched)
	if err != nil || time.Since(at) > resolutionTTL {
		return nil, nil
	}
	var work types.ResolvedWork
	if err := json.Unmarshal([]byte(body), &work); err != nil {
		return nil, fmt.Errorf("decoding cached resolution %s: %w", key, err)
	}
	return &work, nil
}

// PutResolution caches one resolved work under key, replacing any earlier
// entry.
func (s *Store) PutResolution(key string, work *types.ResolvedWork) error {
	if key == "" || work == nil {
		return nil
	}
	body, err := json.Marshal(work)
	if err != nil {
		return fmt.Errorf("encoding resolution: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO resolution_cache
			(cache_key, source, confidence, fetched_at, body)
		 VALUES (?, ?, ?, ?, ?)`,
		key, work.Source, work.Confidence, time.Now().UTC().Format(time.RFC3339), string(body))
	if err != nil {
		return fmt.Errorf("caching resolution: %w", err)
	}
	return nil
}
