// Package store persists completed analyses and failure records to SQLite.
// A failed analysis must never block the caller's own record keeping, so
// failures land here with their reason and can be retried later.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/joelkehle/leadscout/internal/leadintel"
)

var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS analyses (
	id          TEXT PRIMARY KEY,
	address     TEXT NOT NULL,
	envelope    TEXT NOT NULL,
	analyzed_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS failures (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	address     TEXT NOT NULL,
	kind        TEXT NOT NULL,
	detail      TEXT NOT NULL DEFAULT '',
	occurred_at TEXT NOT NULL,
	retried     INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_analyses_address ON analyses (address);
CREATE INDEX IF NOT EXISTS idx_failures_retried ON failures (retried);
`

type Store struct {
	db *sqlx.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type AnalysisSummary struct {
	ID         string    `json:"id"`
	Address    string    `json:"address"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

type FailureRecord struct {
	ID         int64     `json:"id"`
	Address    string    `json:"address"`
	Kind       string    `json:"kind"`
	Detail     string    `json:"detail"`
	OccurredAt time.Time `json:"occurred_at"`
	Retried    bool      `json:"retried"`
}

func (s *Store) SaveAnalysis(res *leadintel.AnalysisResult) error {
	envelope, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal analysis envelope: %w", err)
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO analyses (id, address, envelope, analyzed_at) VALUES (?, ?, ?, ?)`,
		res.ID,
		res.Address.FullAddress,
		string(envelope),
		timeToString(res.AnalyzedAt),
	)
	return err
}

func (s *Store) GetAnalysis(id string) (*leadintel.AnalysisResult, error) {
	var envelope string
	err := s.db.QueryRow(`SELECT envelope FROM analyses WHERE id = ?`, id).Scan(&envelope)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return leadintel.DecodeResult([]byte(envelope))
}

func (s *Store) ListAnalyses(limit int) ([]AnalysisSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT id, address, analyzed_at FROM analyses ORDER BY analyzed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []AnalysisSummary{}
	for rows.Next() {
		var sum AnalysisSummary
		var analyzedAt string
		if err := rows.Scan(&sum.ID, &sum.Address, &analyzedAt); err != nil {
			return nil, err
		}
		sum.AnalyzedAt, _ = time.Parse(time.RFC3339Nano, analyzedAt)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *Store) RecordFailure(address, kind, detail string) error {
	_, err := s.db.Exec(`INSERT INTO failures (address, kind, detail, occurred_at) VALUES (?, ?, ?, ?)`,
		address, kind, detail, timeToString(time.Now()))
	return err
}

// ListPendingFailures returns failures not yet retried, oldest first.
func (s *Store) ListPendingFailures(limit int) ([]FailureRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT id, address, kind, detail, occurred_at, retried FROM failures WHERE retried = 0 ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []FailureRecord{}
	for rows.Next() {
		var rec FailureRecord
		var occurredAt string
		var retried int
		if err := rows.Scan(&rec.ID, &rec.Address, &rec.Kind, &rec.Detail, &occurredAt, &retried); err != nil {
			return nil, err
		}
		rec.OccurredAt, _ = time.Parse(time.RFC3339Nano, occurredAt)
		rec.Retried = retried != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) MarkRetried(id int64) error {
	res, err := s.db.Exec(`UPDATE failures SET retried = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func timeToString(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
