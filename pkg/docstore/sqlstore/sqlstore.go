// Package sqlstore implements the document CRUD shared by the SQLite-dialect
// document store drivers (sqlite and libsql). Dialect-specific drivers open
// the connection and embed a Store.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/papercomputeco/folio/pkg/docstore"
)

// Store implements docstore.Driver on top of an open SQLite-dialect
// database handle.
type Store struct {
	DB *sql.DB
}

// Migrate creates the documents table if it does not exist.
func (s *Store) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		document_id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		file_path TEXT NOT NULL,
		file_type TEXT NOT NULL,
		status TEXT NOT NULL,
		chunk_count INTEGER NOT NULL DEFAULT 0,
		uploaded_at TIMESTAMP NOT NULL,
		processed_at TIMESTAMP,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
	`

	_, err := s.DB.Exec(schema)
	return err
}

// Create registers a new document.
func (s *Store) Create(ctx context.Context, doc *docstore.Document) error {
	if doc == nil {
		return errors.New("cannot store nil document")
	}

	query := `INSERT INTO documents
		(document_id, filename, file_path, file_type, status, chunk_count, uploaded_at, processed_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.DB.ExecContext(ctx, query,
		doc.DocumentID,
		doc.Filename,
		doc.FilePath,
		doc.FileType,
		string(doc.Status),
		doc.ChunkCount,
		doc.UploadedAt.UTC(),
		nullableTime(doc.ProcessedAt),
		nullableString(doc.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	return nil
}

// Get retrieves a document by id.
func (s *Store) Get(ctx context.Context, id string) (*docstore.Document, error) {
	query := `SELECT document_id, filename, file_path, file_type, status, chunk_count, uploaded_at, processed_at, error
		FROM documents WHERE document_id = ?`

	return scanDocument(s.DB.QueryRowContext(ctx, query, id), id)
}

// List returns all documents ordered by upload time.
func (s *Store) List(ctx context.Context) ([]*docstore.Document, error) {
	query := `SELECT document_id, filename, file_path, file_type, status, chunk_count, uploaded_at, processed_at, error
		FROM documents ORDER BY uploaded_at, document_id`

	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*docstore.Document
	for rows.Next() {
		doc, err := scanDocument(rows, "")
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// SetProcessing marks a document as being ingested.
func (s *Store) SetProcessing(ctx context.Context, id string) error {
	return s.update(ctx, id,
		`UPDATE documents SET status = ? WHERE document_id = ?`,
		string(docstore.StatusProcessing), id)
}

// SetCompleted marks a document as fully indexed.
func (s *Store) SetCompleted(ctx context.Context, id string, chunkCount int) error {
	return s.update(ctx, id,
		`UPDATE documents SET status = ?, chunk_count = ?, processed_at = ? WHERE document_id = ?`,
		string(docstore.StatusCompleted), chunkCount, time.Now().UTC(), id)
}

// SetFailed marks a document as failed with the given reason.
func (s *Store) SetFailed(ctx context.Context, id string, reason string) error {
	return s.update(ctx, id,
		`UPDATE documents SET status = ?, error = ? WHERE document_id = ?`,
		string(docstore.StatusFailed), reason, id)
}

func (s *Store) update(ctx context.Context, id, query string, args ...any) error {
	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", docstore.ErrNotFound, id)
	}

	return nil
}

// Delete removes a document record. Returns false if the id was unknown.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM documents WHERE document_id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete document: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read delete result: %w", err)
	}

	return n > 0, nil
}

// Count returns the number of tracked documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}

	return count, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.DB.Close()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner, id string) (*docstore.Document, error) {
	var (
		doc         docstore.Document
		status      string
		processedAt sql.NullTime
		errMsg      sql.NullString
	)

	err := row.Scan(
		&doc.DocumentID,
		&doc.Filename,
		&doc.FilePath,
		&doc.FileType,
		&status,
		&doc.ChunkCount,
		&doc.UploadedAt,
		&processedAt,
		&errMsg,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", docstore.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}

	doc.Status = docstore.Status(status)
	if processedAt.Valid {
		t := processedAt.Time
		doc.ProcessedAt = &t
	}
	if errMsg.Valid {
		doc.Error = errMsg.String
	}

	return &doc, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ docstore.Driver = (*Store)(nil)
