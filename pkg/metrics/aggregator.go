package metrics

import "sync"

// recentSize is how many recent queries a snapshot retains.
const recentSize = 20

// Snapshot is a point-in-time view of aggregated query activity.
type Snapshot struct {
	TotalQueries           int64          `json:"total_queries"`
	NoResultQueries        int64          `json:"no_result_queries"`
	AvgTotalLatencyMs      float64        `json:"avg_total_latency_ms"`
	AvgEmbeddingLatencyMs  float64        `json:"avg_embedding_latency_ms"`
	AvgRetrievalLatencyMs  float64        `json:"avg_retrieval_latency_ms"`
	AvgGenerationLatencyMs float64        `json:"avg_generation_latency_ms"`
	AvgChunksRetrieved     float64        `json:"avg_chunks_retrieved"`
	Recent                 []QueryMetrics `json:"recent"`
}

// Aggregator accumulates query metrics for the life of the process. All
// methods are safe for concurrent use.
type Aggregator struct {
	mu sync.Mutex

	totalQueries    int64
	noResultQueries int64
	sumTotalMs      float64
	sumEmbeddingMs  float64
	sumRetrievalMs  float64
	sumGenerationMs float64
	sumChunks       int64

	recent [recentSize]QueryMetrics
	next   int
	count  int
}

// NewAggregator creates an empty metrics aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// RecordQuery folds one query's metrics into the aggregate.
func (a *Aggregator) RecordQuery(m QueryMetrics) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalQueries++
	if m.ChunksRetrieved == 0 {
		a.noResultQueries++
	}
	a.sumTotalMs += m.TotalLatencyMs
	a.sumEmbeddingMs += m.EmbeddingLatencyMs
	a.sumRetrievalMs += m.RetrievalLatencyMs
	a.sumGenerationMs += m.GenerationLatencyMs
	a.sumChunks += int64(m.ChunksRetrieved)

	a.recent[a.next] = m
	a.next = (a.next + 1) % recentSize
	if a.count < recentSize {
		a.count++
	}
}

// Snapshot returns the aggregate totals and the most recent queries,
// newest first.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Snapshot{
		TotalQueries:    a.totalQueries,
		NoResultQueries: a.noResultQueries,
		Recent:          make([]QueryMetrics, 0, a.count),
	}

	if a.totalQueries > 0 {
		n := float64(a.totalQueries)
		s.AvgTotalLatencyMs = round2(a.sumTotalMs / n)
		s.AvgEmbeddingLatencyMs = round2(a.sumEmbeddingMs / n)
		s.AvgRetrievalLatencyMs = round2(a.sumRetrievalMs / n)
		s.AvgGenerationLatencyMs = round2(a.sumGenerationMs / n)
		s.AvgChunksRetrieved = round2(float64(a.sumChunks) / n)
	}

	for i := 0; i < a.count; i++ {
		s.Recent = append(s.Recent, a.recent[(a.next-1-i+recentSize)%recentSize])
	}

	return s
}
