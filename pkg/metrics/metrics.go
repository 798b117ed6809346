// Package metrics aggregates per-query performance measurements in process.
// The aggregator backs the metrics endpoint and the status command; it is
// not an export pipeline for external monitoring systems.
package metrics

import (
	"math"
	"time"
)

// QueryMetrics captures the timing and score statistics of one query.
type QueryMetrics struct {
	TotalLatencyMs      float64 `json:"total_latency_ms"`
	EmbeddingLatencyMs  float64 `json:"embedding_latency_ms"`
	RetrievalLatencyMs  float64 `json:"retrieval_latency_ms"`
	GenerationLatencyMs float64 `json:"generation_latency_ms"`
	ChunksRetrieved     int     `json:"chunks_retrieved"`
	AvgSimilarityScore  float64 `json:"avg_similarity_score"`
	MaxSimilarityScore  float64 `json:"max_similarity_score"`
	MinSimilarityScore  float64 `json:"min_similarity_score"`
	Timestamp           string  `json:"timestamp"`
}

// LatencyMs converts a duration to milliseconds rounded to 2 decimal places.
func LatencyMs(d time.Duration) float64 {
	return round2(float64(d.Nanoseconds()) / 1e6)
}

// ScoreStats returns the average, maximum, and minimum of the given
// similarity scores rounded to 4 decimal places. All three are 0 when
// scores is empty.
func ScoreStats(scores []float32) (avg, max, min float64) {
	if len(scores) == 0 {
		return 0, 0, 0
	}

	sum := float64(0)
	max = float64(scores[0])
	min = float64(scores[0])
	for _, s := range scores {
		v := float64(s)
		sum += v
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}

	return round4(sum / float64(len(scores))), round4(max), round4(min)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
