// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package docstore persists user documents and builds a full-text
// retrieval index over their chunks.
package docstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/research-assistant/pkg/types"
)

const dbFile = "documents.db"

// Store manages the document SQLite database.
type Store struct {
	db         *sql.DB
	chunkSize  int
	maxResults int
}

// NewStore opens or creates the document database at dataDir/documents.db.
// It creates the schema if it does not exist.
func NewStore(cfg types.DocumentsConfig, dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 1500
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}

	s := &Store{
		db:         db,
		chunkSize:  chunkSize,
		maxResults: maxResults,
	}

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
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			origin TEXT,
			added_at TEXT,
			chunk_count INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id TEXT NOT NULL REFERENCES documents(id),
			seq INTEGER NOT NULL,
			content TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='chunks_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE chunks_fts USING fts5(content, content=chunks, content_rowid=rowid)`,
			`CREATE TRIGGER chunks_ai AFTER INSERT ON chunks BEGIN
				INSERT INTO chunks_fts(rowid, content) VALUES (new.rowid, new.content);
			END`,
			`CREATE TRIGGER chunks_ad AFTER DELETE ON chunks BEGIN
				INSERT INTO chunks_fts(chunks_fts, rowid, content) VALUES('delete', old.rowid, old.content);
			END`,
			`CREATE TRIGGER chunks_au AFTER UPDATE ON chunks BEGIN
				INSERT INTO chunks_fts(chunks_fts, rowid, content) VALUES('delete', old.rowid, old.content);
				INSERT INTO chunks_fts(rowid, content) VALUES (new.rowid, new.content);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// DocumentInfo describes one indexed document.
type DocumentInfo struct {
	ID      string    `json:"id" yaml:"id"`
	Name    string    `json:"name" yaml:"name"`
	Origin  string    `json:"origin" yaml:"origin"`
	AddedAt time.Time `json:"added_at" yaml:"added_at"`
	Chunks  int       `json:"chunks" yaml:"chunks"`
}

// Add chunks the text and indexes it under the given name. Adding a
// document with an existing name replaces the previous version.
func (s *Store) Add(ctx context.Context, name, origin, text string) (DocumentInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return DocumentInfo{}, fmt.Errorf("empty document name")
	}

	pieces := chunkText(text, s.chunkSize)
	if len(pieces) == 0 {
		return DocumentInfo{}, fmt.Errorf("document %s has no indexable text", name)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return DocumentInfo{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Replace any earlier version of the same document.
	var oldID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM documents WHERE name = ?`, name).Scan(&oldID)
	if err == nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, oldID); err != nil {
			return DocumentInfo{}, fmt.Errorf("deleting old chunks: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, oldID); err != nil {
			return DocumentInfo{}, fmt.Errorf("deleting old document: %w", err)
		}
	} else if err != sql.ErrNoRows {
		return DocumentInfo{}, fmt.Errorf("checking existing document: %w", err)
	}

	info := DocumentInfo{
		ID:      uuid.NewString(),
		Name:    name,
		Origin:  origin,
		AddedAt: time.Now().UTC(),
		Chunks:  len(pieces),
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, name, origin, added_at, chunk_count) VALUES (?, ?, ?, ?, ?)`,
		info.ID, info.Name, info.Origin, info.AddedAt.Format(time.RFC3339), info.Chunks,
	)
	if err != nil {
		return DocumentInfo{}, fmt.Errorf("inserting document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (document_id, seq, content) VALUES (?, ?, ?)`)
	if err != nil {
		return DocumentInfo{}, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, piece := range pieces {
		if _, err := stmt.ExecContext(ctx, info.ID, i, piece); err != nil {
			return DocumentInfo{}, fmt.Errorf("inserting chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return DocumentInfo{}, fmt.Errorf("committing: %w", err)
	}
	return info, nil
}

// Search runs a full-text query over indexed chunks. Results carry
// doc://name#seq locators and descend in relevance.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]types.SourceResult, error) {
	if limit <= 0 {
		limit = s.maxResults
	}

	match := ftsQuery(query)
	if match == "" {
		return nil, fmt.Errorf("empty document query")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT d.name, c.seq, c.content
		 FROM chunks_fts
		 JOIN chunks c ON c.rowid = chunks_fts.rowid
		 JOIN documents d ON c.document_id = d.id
		 WHERE chunks_fts MATCH ?
		 ORDER BY chunks_fts.rank
		 LIMIT ?`,
		match, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying document index: %w", err)
	}
	defer rows.Close()

	var results []types.SourceResult
	for rows.Next() {
		var (
			name    string
			seq     int
			content string
		)
		if err := rows.Scan(&name, &seq, &content); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		results = append(results, types.SourceResult{
			Kind:    types.SourceLocal,
			Title:   name,
			Locator: fmt.Sprintf("doc://%s#%d", name, seq),
			Excerpt: excerpt(content, 300),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range results {
		results[i].Relevance = rankScore(i, len(results))
	}
	return results, nil
}

// List returns all indexed documents in insertion order.
func (s *Store) List(ctx context.Context) ([]DocumentInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, origin, added_at, chunk_count FROM documents ORDER BY added_at, name`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []DocumentInfo
	for rows.Next() {
		var (
			d       DocumentInfo
			addedAt string
		)
		if err := rows.Scan(&d.ID, &d.Name, &d.Origin, &addedAt, &d.Chunks); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		d.AddedAt, _ = time.Parse(time.RFC3339, addedAt)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Stats holds aggregate counts for the document index.
type Stats struct {
	Documents int `json:"documents" yaml:"documents"`
	Chunks    int `json:"chunks" yaml:"chunks"`
}

// IndexStats returns document and chunk counts.
func (s *Store) IndexStats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM documents`).Scan(&st.Documents); err != nil {
		return Stats{}, fmt.Errorf("counting documents: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM chunks`).Scan(&st.Chunks); err != nil {
		return Stats{}, fmt.Errorf("counting chunks: %w", err)
	}
	return st, nil
}

// ftsQuery turns free text into an FTS5 match expression. Each term is
// quoted so punctuation cannot break the query syntax; terms are OR-ed
// so partial matches still surface.
func ftsQuery(query string) string {
	var terms []string
	for _, t := range strings.Fields(query) {
		t = strings.ReplaceAll(t, `"`, `""`)
		terms = append(terms, `"`+t+`"`)
	}
	return strings.Join(terms, " OR ")
}

// chunkText splits text into pieces of roughly size bytes, preferring
// paragraph boundaries. Paragraphs longer than size are split hard.
func chunkText(text string, size int) []string {
	var (
		pieces []string
		buf    strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(buf.String()); s != "" {
			pieces = append(pieces, s)
		}
		buf.Reset()
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		for len(para) > size {
			flush()
			cut := size
			if i := strings.LastIndexByte(para[:size], ' '); i > size/2 {
				cut = i
			}
			pieces = append(pieces, strings.TrimSpace(para[:cut]))
			para = strings.TrimSpace(para[cut:])
		}

		if buf.Len() > 0 && buf.Len()+len(para) > size {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(para)
	}
	flush()
	return pieces
}

// excerpt truncates content to at most n bytes on a word boundary.
func excerpt(content string, n int) string {
	content = strings.TrimSpace(content)
	if len(content) <= n {
		return content
	}
	cut := n
	if i := strings.LastIndexByte(content[:n], ' '); i > n/2 {
		cut = i
	}
	return content[:cut] + "..."
}

// rankScore maps a result's position to a relevance score in [0.1, 1.0].
func rankScore(i, total int) float64 {
	if total <= 1 {
		return 1.0
	}
	return 1.0 - float64(i)/float64(total-1)*0.9
}
