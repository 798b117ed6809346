package ingest

import "fmt"

// Result contains statistics from a batch ingestion run.
type Result struct {
	Processed   int
	Failed      int
	Skipped     int
	TotalChunks int
}

// Summary returns a human-readable summary of the batch result.
func (r *Result) Summary() string {
	return fmt.Sprintf(
		"Ingest complete: %d processed, %d failed, %d skipped (unsupported format)\n"+
			"Total chunks indexed: %d",
		r.Processed, r.Failed, r.Skipped,
		r.TotalChunks,
	)
}
