// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package project persists completed research records across sessions
// and groups them under named projects.
package project

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/research-assistant/pkg/types"
)

const dbFile = "assistant.db"

// Store manages the research history SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the history database at dataDir/assistant.db.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
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
		`CREATE TABLE IF NOT EXISTS projects (
			name TEXT PRIMARY KEY,
			created_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			project TEXT,
			query_text TEXT NOT NULL,
			query_time TEXT,
			summary TEXT,
			cost REAL,
			skipped TEXT,
			supersedes_id TEXT,
			created_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_project ON records(project)`,
		`CREATE TABLE IF NOT EXISTS results (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			record_id TEXT NOT NULL REFERENCES records(id),
			position INTEGER NOT NULL,
			kind TEXT,
			title TEXT,
			locator TEXT,
			excerpt TEXT,
			relevance REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_record ON results(record_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Save persists one completed record. Saving a record twice overwrites
// the earlier copy; the project row is created on first use.
func (s *Store) Save(ctx context.Context, rec types.MemoryRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("record has no ID")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if rec.Query.Project != "" {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO projects (name, created_at) VALUES (?, ?)`,
			rec.Query.Project, time.Now().UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("upserting project: %w", err)
		}
	}

	skippedJSON, _ := json.Marshal(rec.Skipped)
	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO records
			(id, project, query_text, query_time, summary, cost, skipped, supersedes_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Query.Project, rec.Query.Text,
		rec.Query.Timestamp.UTC().Format(time.RFC3339Nano),
		rec.Summary, rec.Cost, string(skippedJSON), rec.SupersedesID,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting record: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE record_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("clearing old results: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO results (record_id, position, kind, title, locator, excerpt, relevance)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range rec.Results {
		_, err := stmt.ExecContext(ctx, rec.ID, i, string(r.Kind), r.Title, r.Locator, r.Excerpt, r.Relevance)
		if err != nil {
			return fmt.Errorf("inserting result %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// History returns saved records oldest first. A non-empty project name
// filters to that project; limit zero means no limit.
func (s *Store) History(ctx context.Context, project string, limit int) ([]types.MemoryRecord, error) {
	query := `SELECT id, project, query_text, query_time, summary, cost, skipped, supersedes_id, created_at
		FROM records`
	var args []any
	if project != "" {
		query += ` WHERE project = ?`
		args = append(args, project)
	}
	query += ` ORDER BY created_at`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []types.MemoryRecord
	for rows.Next() {
		var (
			rec         types.MemoryRecord
			queryTime   string
			skippedJSON sql.NullString
			createdAt   string
		)
		if err := rows.Scan(
			&rec.ID, &rec.Query.Project, &rec.Query.Text, &queryTime,
			&rec.Summary, &rec.Cost, &skippedJSON, &rec.SupersedesID, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		rec.Query.Timestamp, _ = time.Parse(time.RFC3339Nano, queryTime)
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		if skippedJSON.Valid && skippedJSON.String != "null" {
			json.Unmarshal([]byte(skippedJSON.String), &rec.Skipped)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range records {
		results, err := s.recordResults(ctx, records[i].ID)
		if err != nil {
			return nil, err
		}
		records[i].Results = results
	}
	return records, nil
}

func (s *Store) recordResults(ctx context.Context, recordID string) ([]types.SourceResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, title, locator, excerpt, relevance
		 FROM results WHERE record_id = ? ORDER BY position`, recordID)
	if err != nil {
		return nil, fmt.Errorf("querying results: %w", err)
	}
	defer rows.Close()

	var results []types.SourceResult
	for rows.Next() {
		var (
			r    types.SourceResult
			kind string
		)
		if err := rows.Scan(&kind, &r.Title, &r.Locator, &r.Excerpt, &r.Relevance); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		r.Kind = types.SourceKind(kind)
		results = append(results, r)
	}
	return results, rows.Err()
}

// Projects returns all known projects oldest first.
func (s *Store) Projects(ctx context.Context) ([]types.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, created_at FROM projects ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	var projects []types.Project
	for rows.Next() {
		var (
			p         types.Project
			createdAt string
		)
		if err := rows.Scan(&p.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		projects = append(projects, p)
	}
	return projects, rows.Err()
}
