// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store archives completed crawl runs and their rows in SQLite.
// The archive is write-once history: crawls never resume from it.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/research-gap/internal/table"
	"github.com/pdiddy/research-gap/pkg/types"
)

// Store manages the run archive database.
type Store struct {
	db *sql.DB
}

// Run is one archived crawl.
type Run struct {
	ID         string    `json:"id"`
	Mode       string    `json:"mode"`
	Search     string    `json:"search"`
	Filter     string    `json:"filter"`
	Status     string    `json:"status"`
	Rows       int       `json:"rows"`
	Output     string    `json:"output"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Open opens or creates the archive at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
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
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			search TEXT,
			filter TEXT,
			status TEXT NOT NULL,
			row_count INTEGER NOT NULL DEFAULT 0,
			output TEXT,
			error TEXT,
			started_at TEXT,
			finished_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS grouped_rows (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			year INTEGER NOT NULL,
			concept_id TEXT,
			concept_name TEXT,
			work_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS item_rows (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			concept_id TEXT,
			concept_name TEXT,
			work_title TEXT,
			primary_author TEXT,
			affiliation_institution TEXT,
			citation_count INTEGER NOT NULL DEFAULT 0,
			publication_date TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_grouped_rows_run ON grouped_rows(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_item_rows_run ON item_rows(run_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func insertRun(ctx context.Context, tx *sql.Tx, m *table.Manifest) error {
	filter := m.Query.Filter
	if filter == "" && len(m.Query.Partitions) > 0 {
		filter = strings.Join(m.Query.Partitions, ",")
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, mode, search, filter, status, row_count, output, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.RunID, m.Mode, m.Query.Search, filter, m.Status, m.Summary.Rows, m.Output, m.Error,
		m.StartedAt.UTC().Format(timeLayout), m.FinishedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", m.RunID, err)
	}
	return nil
}

// SaveGroupedRun archives a grouped run and its rows in one transaction.
func (s *Store) SaveGroupedRun(ctx context.Context, m *table.Manifest, rows []types.GroupedRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertRun(ctx, tx, m); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO grouped_rows (run_id, year, concept_id, concept_name, work_count) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, m.RunID, r.Year, r.ConceptID, r.ConceptName, r.WorkCount); err != nil {
			return fmt.Errorf("inserting grouped row: %w", err)
		}
	}
	return tx.Commit()
}

// SaveItemizedRun archives a cursor run and its rows in one transaction.
func (s *Store) SaveItemizedRun(ctx context.Context, m *table.Manifest, rows []types.ItemRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertRun(ctx, tx, m); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO item_rows (run_id, concept_id, concept_name, work_title, primary_author,
			affiliation_institution, citation_count, publication_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err := stmt.ExecContext(ctx, m.RunID, r.ConceptID, r.ConceptName, r.WorkTitle,
			r.PrimaryAuthor, r.AffiliationInstitution, r.CitationCount, r.PublicationDate)
		if err != nil {
			return fmt.Errorf("inserting item row: %w", err)
		}
	}
	return tx.Commit()
}

// ListRuns returns archived runs, newest first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	q := `SELECT id, mode, search, filter, status, row_count, output, error, started_at, finished_at
		FROM runs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			search, filter    sql.NullString
			output, errMsg    sql.NullString
			started, finished sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Mode, &search, &filter, &r.Status, &r.Rows,
			&output, &errMsg, &started, &finished); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Search, r.Filter, r.Output, r.Error = search.String, filter.String, output.String, errMsg.String
		r.StartedAt, _ = time.Parse(timeLayout, started.String)
		r.FinishedAt, _ = time.Parse(timeLayout, finished.String)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GroupedRows returns the rows archived for a grouped run, sorted by year
// then work count descending.
func (s *Store) GroupedRows(ctx context.Context, runID string) ([]types.GroupedRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT year, concept_id, concept_name, work_count FROM grouped_rows
		 WHERE run_id = ? ORDER BY year ASC, work_count DESC`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying grouped rows: %w", err)
	}
	defer rows.Close()

	var out []types.GroupedRow
	for rows.Next() {
		var r types.GroupedRow
		if err := rows.Scan(&r.Year, &r.ConceptID, &r.ConceptName, &r.WorkCount); err != nil {
			return nil, fmt.Errorf("scanning grouped row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ItemRows returns the rows archived for a cursor run in insertion order.
func (s *Store) ItemRows(ctx context.Context, runID string) ([]types.ItemRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT concept_id, concept_name, work_title, primary_author, affiliation_institution,
			citation_count, publication_date
		 FROM item_rows WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying item rows: %w", err)
	}
	defer rows.Close()

	var out []types.ItemRow
	for rows.Next() {
		var r types.ItemRow
		if err := rows.Scan(&r.ConceptID, &r.ConceptName, &r.WorkTitle, &r.PrimaryAuthor,
			&r.AffiliationInstitution, &r.CitationCount, &r.PublicationDate); err != nil {
			return nil, fmt.Errorf("scanning item row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
