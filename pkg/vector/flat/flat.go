// Package flat provides an in-process vector driver backed by parallel
// slices of unit-normalized embeddings and chunk records, searched by
// brute-force inner product. It persists to a binary vector blob plus a
// JSON metadata document.
package flat

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/papercomputeco/folio/pkg/vector"
)

// Config holds configuration for the flat driver.
type Config struct {
	// Dimension is the embedding dimension the index accepts.
	Dimension int

	// Path is the directory holding the persisted artifacts. Empty disables
	// persistence: Save and Load become no-ops.
	Path string
}

// Driver is a lock-guarded flat vector index. vectors and records are
// parallel sequences with positional correspondence; docChunks maps each
// document id to the positions it owns. Mutators hold the write lock for
// their full duration so readers never observe the sequences diverged.
type Driver struct {
	mu        sync.RWMutex
	dimension int
	path      string
	logger    *slog.Logger

	vectors   [][]float32
	records   []vector.ChunkRecord
	docChunks map[string][]int
}

// NewDriver creates an empty flat index. Call Load to restore persisted
// state.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	if c.Dimension <= 0 {
		return nil, fmt.Errorf("flat: dimension must be positive, got %d", c.Dimension)
	}

	return &Driver{
		dimension: c.Dimension,
		path:      c.Path,
		logger:    logger,
		vectors:   make([][]float32, 0),
		records:   make([]vector.ChunkRecord, 0),
		docChunks: make(map[string][]int),
	}, nil
}

// Add stores embeddings with their parallel records, appending positions in
// input order. The call is rejected whole on any length or dimension
// mismatch, leaving the index unchanged.
func (d *Driver) Add(_ context.Context, embeddings [][]float32, records []vector.ChunkRecord) error {
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

	d.mu.Lock()
	defer d.mu.Unlock()

	start := len(d.records)
	for i, emb := range embeddings {
		d.vectors = append(d.vectors, vector.Normalize(emb))
		d.records = append(d.records, records[i])

		docID := records[i].DocumentID
		d.docChunks[docID] = append(d.docChunks[docID], start+i)
	}

	return nil
}

// Search returns up to TopK results in descending similarity order. Under a
// document filter the candidate pool widens to TopK*3 to absorb post-filter
// attrition; a high exclusion rate at that cap can still starve legitimate
// results, which is an accepted precision/recall trade-off.
func (d *Driver) Search(_ context.Context, embedding []float32, opts vector.SearchOptions) ([]vector.SearchResult, error) {
	if len(embedding) != d.dimension {
		return nil, fmt.Errorf("%w: got %d, index dimension is %d", vector.ErrDimensionMismatch, len(embedding), d.dimension)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	total := len(d.vectors)
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

	query := vector.Normalize(embedding)
	candidates := d.nearest(query, searchK)

	results := make([]vector.SearchResult, 0, opts.TopK)
	for _, cand := range candidates {
		record := d.records[cand.position]
		if filter != nil {
			if _, ok := filter[record.DocumentID]; !ok {
				continue
			}
		}
		if cand.score < opts.Threshold {
			continue
		}

		results = append(results, vector.SearchResult{
			ChunkRecord: record,
			Score:       cand.score,
		})
		if len(results) >= opts.TopK {
			break
		}
	}

	return results, nil
}

type candidate struct {
	position int
	score    float32
}

// nearest scores every stored vector against the normalized query and
// returns the k best in descending order. Ties keep insertion order.
func (d *Driver) nearest(query []float32, k int) []candidate {
	scored := make([]candidate, len(d.vectors))
	for i, vec := range d.vectors {
		scored[i] = candidate{position: i, score: vector.Dot(query, vec)}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if k < len(scored) {
		scored = scored[:k]
	}
	return scored
}

// DeleteDocument removes every chunk owned by the document by rebuilding the
// index from the survivors. The flat store has no in-place removal, so every
// position is reassigned and the document mapping is rebuilt from scratch;
// O(N) in total records.
func (d *Driver) DeleteDocument(_ context.Context, documentID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed, ok := d.docChunks[documentID]
	if !ok {
		return false, nil
	}

	removeSet := make(map[int]struct{}, len(removed))
	for _, pos := range removed {
		removeSet[pos] = struct{}{}
	}

	// Stored vectors are already normalized, so survivors carry over as-is
	// in their original relative order.
	keptVectors := make([][]float32, 0, len(d.vectors)-len(removed))
	keptRecords := make([]vector.ChunkRecord, 0, len(d.records)-len(removed))
	for pos, record := range d.records {
		if _, gone := removeSet[pos]; gone {
			continue
		}
		keptVectors = append(keptVectors, d.vectors[pos])
		keptRecords = append(keptRecords, record)
	}

	d.vectors = keptVectors
	d.records = keptRecords
	d.docChunks = make(map[string][]int, len(d.docChunks))
	for pos, record := range d.records {
		d.docChunks[record.DocumentID] = append(d.docChunks[record.DocumentID], pos)
	}

	return true, nil
}

// Chunks returns the stored records for a document in chunk order.
func (d *Driver) Chunks(_ context.Context, documentID string) ([]vector.ChunkRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	positions := d.docChunks[documentID]
	out := make([]vector.ChunkRecord, 0, len(positions))
	for _, pos := range positions {
		out = append(out, d.records[pos])
	}
	return out, nil
}

// ChunkCount returns the total number of stored chunks.
func (d *Driver) ChunkCount(_ context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.records), nil
}

// DocumentCount returns the number of distinct documents.
func (d *Driver) DocumentCount(_ context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.docChunks), nil
}

// DocumentChunkCount returns the number of chunks owned by a document.
func (d *Driver) DocumentChunkCount(_ context.Context, documentID string) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.docChunks[documentID]), nil
}

// Ready reports true once the driver exists: ready means "can accept
// queries and mutations", not "has data".
func (d *Driver) Ready(_ context.Context) bool {
	return true
}

// Close releases resources. Persistence is explicit via Save, so Close
// writes nothing.
func (d *Driver) Close() error {
	return nil
}

var _ vector.Driver = (*Driver)(nil)
