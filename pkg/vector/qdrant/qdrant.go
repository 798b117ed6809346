// Package qdrant provides a vector driver backed by a remote Qdrant
// collection over gRPC.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/folio/pkg/vector"
)

const (
	// DefaultCollection is the collection name used when none is configured.
	DefaultCollection = "folio_chunks"

	// DefaultPort is the Qdrant gRPC port.
	DefaultPort = 6334

	scrollBatch = 256

	connectTimeout = 10 * time.Second
)

// QdrantDriver implements vector.Driver against a Qdrant collection using
// cosine distance. Each chunk is one point; chunk metadata rides in the
// point payload.
type QdrantDriver struct {
	client     *qdrant.Client
	collection string
	dimension  int
	logger     *slog.Logger
}

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Host is the Qdrant server host.
	Host string

	// Port is the gRPC port. Defaults to DefaultPort if zero.
	Port int

	// APIKey authenticates against Qdrant Cloud. May be empty.
	APIKey string

	// UseTLS enables transport security; required for Qdrant Cloud.
	UseTLS bool

	// Collection is the collection name. Defaults to DefaultCollection.
	Collection string

	// Dimension is the embedding dimension the collection accepts.
	Dimension int
}

// NewQdrantDriver connects to Qdrant and ensures the collection exists with
// a cosine-distance vector schema.
func NewQdrantDriver(c Config, logger *slog.Logger) (*QdrantDriver, error) {
	if c.Host == "" {
		return nil, fmt.Errorf("qdrant host is required")
	}
	if c.Dimension <= 0 {
		return nil, fmt.Errorf("qdrant embedding dimension cannot be 0, must be configured")
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   c.Host,
		Port:   c.Port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("creating qdrant client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if _, err := client.HealthCheck(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %s", vector.ErrConnection, err)
	}

	exists, err := client.CollectionExists(ctx, c.Collection)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("checking collection: %w", err)
	}
	if !exists {
		err := client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: c.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(c.Dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("creating collection: %w", err)
		}
	}

	logger.Info("qdrant vector driver initialized",
		"host", c.Host,
		"port", c.Port,
		"collection", c.Collection,
		"dimension", c.Dimension,
	)

	return &QdrantDriver{
		client:     client,
		collection: c.Collection,
		dimension:  c.Dimension,
		logger:     logger,
	}, nil
}

// Add upserts one point per chunk with a fresh UUID id. Vectors are
// unit-normalized before upload so stored magnitudes never skew scores.
func (d *QdrantDriver) Add(ctx context.Context, embeddings [][]float32, records []vector.ChunkRecord) error {
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

	points := make([]*qdrant.PointStruct, len(records))
	for i, record := range records {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuid.NewString()),
			Vectors: qdrant.NewVectors(vector.Normalize(embeddings[i])...),
			Payload: qdrant.NewValueMap(map[string]any{
				"document_id": record.DocumentID,
				"filename":    record.Filename,
				"chunk_index": int64(record.ChunkIndex),
				"content":     record.Content,
				"start_char":  int64(record.StartChar),
				"end_char":    int64(record.EndChar),
			}),
		}
	}

	_, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: d.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	d.logger.Debug("added chunks to qdrant", "count", len(records))

	return nil
}

// Search queries the collection with cosine scoring. Document filtering and
// the score threshold run server-side; the candidate pool still widens to
// TopK*3 under a filter to match the other drivers.
func (d *QdrantDriver) Search(ctx context.Context, embedding []float32, opts vector.SearchOptions) ([]vector.SearchResult, error) {
	if len(embedding) != d.dimension {
		return nil, fmt.Errorf("%w: got %d, index dimension is %d", vector.ErrDimensionMismatch, len(embedding), d.dimension)
	}
	if opts.TopK <= 0 {
		return nil, nil
	}

	searchK := opts.TopK
	var filter *qdrant.Filter
	if len(opts.DocumentIDs) > 0 {
		searchK = opts.TopK * 3

		conditions := make([]*qdrant.Condition, len(opts.DocumentIDs))
		for i, id := range opts.DocumentIDs {
			conditions[i] = qdrant.NewMatch("document_id", id)
		}
		filter = &qdrant.Filter{Should: conditions}
	}

	query := &qdrant.QueryPoints{
		CollectionName: d.collection,
		Query:          qdrant.NewQuery(vector.Normalize(embedding)...),
		Limit:          qdrant.PtrOf(uint64(searchK)),
		Filter:         filter,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if opts.Threshold > 0 {
		query.ScoreThreshold = qdrant.PtrOf(opts.Threshold)
	}

	points, err := d.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}

	results := make([]vector.SearchResult, 0, opts.TopK)
	for _, point := range points {
		results = append(results, vector.SearchResult{
			ChunkRecord: recordFromPayload(point.GetPayload()),
			Score:       point.GetScore(),
		})
		if len(results) >= opts.TopK {
			break
		}
	}

	d.logger.Debug("searched qdrant", "results", len(results))

	return results, nil
}

// DeleteDocument removes every point carrying the document id. Returns
// false without error when the document has no points.
func (d *QdrantDriver) DeleteDocument(ctx context.Context, documentID string) (bool, error) {
	count, err := d.DocumentChunkCount(ctx, documentID)
	if err != nil {
		return false, err
	}
	if count == 0 {
		return false, nil
	}

	_, err = d.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: d.collection,
		Wait:           qdrant.PtrOf(true),
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("document_id", documentID)},
		}),
	})
	if err != nil {
		return false, fmt.Errorf("deleting points: %w", err)
	}

	d.logger.Debug("deleted document from qdrant",
		"document_id", documentID,
		"chunks", count,
	)

	return true, nil
}

// Chunks returns the document's chunk records ordered by chunk index.
// Qdrant scroll order follows point ids, so ordering is restored here.
func (d *QdrantDriver) Chunks(ctx context.Context, documentID string) ([]vector.ChunkRecord, error) {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch("document_id", documentID)},
	}

	var records []vector.ChunkRecord
	err := d.scroll(ctx, filter, func(point *qdrant.RetrievedPoint) {
		records = append(records, recordFromPayload(point.GetPayload()))
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].ChunkIndex < records[j].ChunkIndex
	})

	return records, nil
}

// ChunkCount returns the total number of points in the collection.
func (d *QdrantDriver) ChunkCount(ctx context.Context) (int, error) {
	count, err := d.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: d.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}
	return int(count), nil
}

// DocumentCount returns the number of distinct document ids across the
// collection, collected by scrolling payloads.
func (d *QdrantDriver) DocumentCount(ctx context.Context) (int, error) {
	seen := make(map[string]struct{})
	err := d.scroll(ctx, nil, func(point *qdrant.RetrievedPoint) {
		if value, ok := point.GetPayload()["document_id"]; ok {
			seen[value.GetStringValue()] = struct{}{}
		}
	})
	if err != nil {
		return 0, err
	}
	return len(seen), nil
}

// DocumentChunkCount returns the number of points owned by the document.
func (d *QdrantDriver) DocumentChunkCount(ctx context.Context, documentID string) (int, error) {
	count, err := d.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: d.collection,
		Exact:          qdrant.PtrOf(true),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("document_id", documentID)},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("counting document points: %w", err)
	}
	return int(count), nil
}

// Ready reports whether the Qdrant server answers health checks.
func (d *QdrantDriver) Ready(ctx context.Context) bool {
	_, err := d.client.HealthCheck(ctx)
	return err == nil
}

// Save is a no-op: Qdrant persists server-side on every write.
func (d *QdrantDriver) Save(_ context.Context) error {
	return nil
}

// Load is a no-op: the collection is remote state.
func (d *QdrantDriver) Load(_ context.Context) error {
	return nil
}

// Close releases the gRPC connection.
func (d *QdrantDriver) Close() error {
	return d.client.Close()
}

// scroll pages through the collection with the raw points client, which
// exposes the next-page offset the high-level wrapper drops.
func (d *QdrantDriver) scroll(ctx context.Context, filter *qdrant.Filter, fn func(*qdrant.RetrievedPoint)) error {
	var offset *qdrant.PointId
	for {
		resp, err := d.client.GetPointsClient().Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: d.collection,
			Filter:         filter,
			Limit:          qdrant.PtrOf(uint32(scrollBatch)),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return fmt.Errorf("scrolling points: %w", err)
		}

		for _, point := range resp.GetResult() {
			fn(point)
		}

		offset = resp.GetNextPageOffset()
		if offset == nil {
			return nil
		}
	}
}

func recordFromPayload(payload map[string]*qdrant.Value) vector.ChunkRecord {
	record := vector.ChunkRecord{}
	if v, ok := payload["document_id"]; ok {
		record.DocumentID = v.GetStringValue()
	}
	if v, ok := payload["filename"]; ok {
		record.Filename = v.GetStringValue()
	}
	if v, ok := payload["chunk_index"]; ok {
		record.ChunkIndex = int(v.GetIntegerValue())
	}
	if v, ok := payload["content"]; ok {
		record.Content = v.GetStringValue()
	}
	if v, ok := payload["start_char"]; ok {
		record.StartChar = int(v.GetIntegerValue())
	}
	if v, ok := payload["end_char"]; ok {
		record.EndChar = int(v.GetIntegerValue())
	}
	return record
}

var _ vector.Driver = (*QdrantDriver)(nil)
