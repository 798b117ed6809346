// Package sqlitevec provides a SQLite-backed vector driver using sqlite-vec.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/folio/pkg/vector"
)

// SQLiteVecDriver implements vector.Driver using SQLite with sqlite-vec.
// Chunk metadata lives in a plain table keyed by rowid; embeddings live in a
// vec0 virtual table sharing the same rowid.
type SQLiteVecDriver struct {
	db        *sql.DB
	dimension int
	logger    *slog.Logger
}

// Config holds configuration for the SQLite vec driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimension is the embedding dimension the index accepts.
	Dimension int
}

// NewSQLiteVecDriver creates a new SQLite vector driver backed by sqlite-vec.
func NewSQLiteVecDriver(c Config, logger *slog.Logger) (*SQLiteVecDriver, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if c.Dimension <= 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimension cannot be 0, must be configured")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	// Chunk metadata table. vec0 virtual tables use integer rowids, so the
	// shared rowid is the join key between metadata and embedding.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS vec_chunks (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id TEXT NOT NULL,
			filename TEXT NOT NULL DEFAULT '',
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			start_char INTEGER NOT NULL DEFAULT 0,
			end_char INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating chunks table: %w", err)
	}

	if _, err := db.Exec(
		`CREATE INDEX IF NOT EXISTS vec_chunks_document_id ON vec_chunks(document_id)`,
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating document index: %w", err)
	}

	// vec0 virtual table for vector storage and KNN queries.
	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vec_embeddings USING vec0(embedding float[%d])`,
		c.Dimension,
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	logger.Info("sqlite-vec vector driver initialized",
		"db_path", c.DBPath,
		"dimension", c.Dimension,
		"vec_version", vecVersion,
	)

	return &SQLiteVecDriver{
		db:        db,
		dimension: c.Dimension,
		logger:    logger,
	}, nil
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Add stores embeddings with their parallel chunk records. Vectors are
// unit-normalized before storage so L2 distance maps onto cosine
// similarity. The whole batch is one transaction.
func (d *SQLiteVecDriver) Add(ctx context.Context, embeddings [][]float32, records []vector.ChunkRecord) error {
	if len(embeddings) != len(records) {
		return fmt.Errorf("%w: %d embeddings, %d records", vector.ErrLengthMismatch, len(embeddings), len(records))
	}
	if len(embeddings) == 0 {
		return nil
	}
	for _, emb := range embeddings {
		if len(emb) != d.dimension {
			return fmt.Errorf("%w: got %d, index dimension is %d", vector.ErrDimensionMismatch, len(emb), d.dimension)
		}
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for i, record := range records {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO vec_chunks(document_id, filename, chunk_index, content, start_char, end_char)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			record.DocumentID, record.Filename, record.ChunkIndex,
			record.Content, record.StartChar, record.EndChar,
		)
		if err != nil {
			return fmt.Errorf("inserting chunk %d of document %s: %w", record.ChunkIndex, record.DocumentID, err)
		}

		rowID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("getting rowid for chunk %d of document %s: %w", record.ChunkIndex, record.DocumentID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO vec_embeddings(rowid, embedding) VALUES (?, ?)`,
			rowID, serializeFloat32(vector.Normalize(embeddings[i])),
		); err != nil {
			return fmt.Errorf("inserting embedding for chunk %d of document %s: %w", record.ChunkIndex, record.DocumentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("added chunks to sqlite-vec", "count", len(records))

	return nil
}

// Search runs a KNN query via vec0 MATCH and joins back to chunk metadata.
// Document filtering happens after the KNN pass, over a pool widened to
// TopK*3, matching the flat driver's candidate semantics.
func (d *SQLiteVecDriver) Search(ctx context.Context, embedding []float32, opts vector.SearchOptions) ([]vector.SearchResult, error) {
	if len(embedding) != d.dimension {
		return nil, fmt.Errorf("%w: got %d, index dimension is %d", vector.ErrDimensionMismatch, len(embedding), d.dimension)
	}

	total, err := d.ChunkCount(ctx)
	if err != nil {
		return nil, err
	}
	if total == 0 || opts.TopK <= 0 {
		return nil, nil
	}

	var filter map[string]struct{}
	if len(opts.DocumentIDs) > 0 {
		filter = make(map[string]struct{}, len(opts.DocumentIDs))
		for _, id := range opts.DocumentIDs {
			filter[id] = struct{}{}
		}
	}

	searchK := opts.TopK
	if filter != nil {
		searchK = opts.TopK * 3
	}
	if searchK > total {
		searchK = total
	}

	queryBlob := serializeFloat32(vector.Normalize(embedding))

	rows, err := d.db.QueryContext(ctx, `
		SELECT
			c.document_id,
			c.filename,
			c.chunk_index,
			c.content,
			c.start_char,
			c.end_char,
			ve.distance
		FROM vec_embeddings ve
		INNER JOIN vec_chunks c ON c.rowid = ve.rowid
		WHERE ve.embedding MATCH ?
			AND ve.k = ?
		ORDER BY ve.distance
	`, queryBlob, searchK)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	results := make([]vector.SearchResult, 0, opts.TopK)
	for rows.Next() {
		var record vector.ChunkRecord
		var distance float64
		if err := rows.Scan(
			&record.DocumentID, &record.Filename, &record.ChunkIndex,
			&record.Content, &record.StartChar, &record.EndChar,
			&distance,
		); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}

		if filter != nil {
			if _, ok := filter[record.DocumentID]; !ok {
				continue
			}
		}

		// Unit vectors make d^2 = 2 - 2*cos, so cosine similarity recovers
		// as 1 - d^2/2.
		score := float32(1.0 - distance*distance/2.0)
		if score < opts.Threshold {
			continue
		}

		results = append(results, vector.SearchResult{
			ChunkRecord: record,
			Score:       score,
		})
		if len(results) >= opts.TopK {
			break
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}

	d.logger.Debug("searched sqlite-vec", "results", len(results))

	return results, nil
}

// DeleteDocument removes every chunk of the document from both tables.
// Returns false without error when the document has no chunks.
func (d *SQLiteVecDriver) DeleteDocument(ctx context.Context, documentID string) (bool, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT rowid FROM vec_chunks WHERE document_id = ?`, documentID,
	)
	if err != nil {
		return false, fmt.Errorf("querying rowids for deletion: %w", err)
	}

	var rowIDs []int64
	for rows.Next() {
		var rowID int64
		if err := rows.Scan(&rowID); err != nil {
			rows.Close()
			return false, fmt.Errorf("scanning rowid: %w", err)
		}
		rowIDs = append(rowIDs, rowID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("iterating rowids: %w", err)
	}

	if len(rowIDs) == 0 {
		return false, nil
	}

	// vec0 has no multi-row DELETE, remove embeddings one by one.
	for _, rowID := range rowIDs {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM vec_embeddings WHERE rowid = ?`, rowID,
		); err != nil {
			return false, fmt.Errorf("deleting embedding rowid %d: %w", rowID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM vec_chunks WHERE document_id = ?`, documentID,
	); err != nil {
		return false, fmt.Errorf("deleting chunks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("deleted document from sqlite-vec",
		"document_id", documentID,
		"chunks", len(rowIDs),
	)

	return true, nil
}

// Chunks returns the document's chunk records in insertion order.
func (d *SQLiteVecDriver) Chunks(ctx context.Context, documentID string) ([]vector.ChunkRecord, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT document_id, filename, chunk_index, content, start_char, end_char
		FROM vec_chunks
		WHERE document_id = ?
		ORDER BY rowid
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var records []vector.ChunkRecord
	for rows.Next() {
		var record vector.ChunkRecord
		if err := rows.Scan(
			&record.DocumentID, &record.Filename, &record.ChunkIndex,
			&record.Content, &record.StartChar, &record.EndChar,
		); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return records, nil
}

// ChunkCount returns the total number of indexed chunks.
func (d *SQLiteVecDriver) ChunkCount(ctx context.Context) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vec_chunks`,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

// DocumentCount returns the number of distinct documents with indexed chunks.
func (d *SQLiteVecDriver) DocumentCount(ctx context.Context) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT document_id) FROM vec_chunks`,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count, nil
}

// DocumentChunkCount returns the number of chunks owned by the document.
func (d *SQLiteVecDriver) DocumentChunkCount(ctx context.Context, documentID string) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vec_chunks WHERE document_id = ?`, documentID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting document chunks: %w", err)
	}
	return count, nil
}

// Ready reports whether the database connection is usable.
func (d *SQLiteVecDriver) Ready(ctx context.Context) bool {
	return d.db.PingContext(ctx) == nil
}

// Save is a no-op: SQLite persists on every committed transaction.
func (d *SQLiteVecDriver) Save(_ context.Context) error {
	return nil
}

// Load is a no-op: the index is read from the database file on open.
func (d *SQLiteVecDriver) Load(_ context.Context) error {
	return nil
}

// Close releases resources held by the driver.
func (d *SQLiteVecDriver) Close() error {
	return d.db.Close()
}

var _ vector.Driver = (*SQLiteVecDriver)(nil)
