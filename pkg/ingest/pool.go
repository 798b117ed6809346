package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/papercomputeco/folio/pkg/docstore"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is one document waiting to be processed.
type Job struct {
	Document *docstore.Document
}

// Pool processes ingestion jobs asynchronously via a fixed set of workers,
// decoupling document processing from the upload hot path.
type Pool struct {
	ingestor *Ingestor
	queue    chan Job
	wg       sync.WaitGroup
	logger   *slog.Logger
}

// PoolConfig is the configuration options for the worker pool.
type PoolConfig struct {
	// Ingestor runs the pipeline for each job.
	Ingestor *Ingestor

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	Logger *slog.Logger
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *PoolConfig) (*Pool, error) {
	if c.Ingestor == nil {
		return nil, errors.New("ingestor is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}
	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	p := &Pool{
		ingestor: c.Ingestor,
		queue:    make(chan Job, c.QueueSize),
		logger:   c.Logger,
	}

	p.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go p.worker(i)
	}

	return p, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job
// being dropped.
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("ingestion job queued",
			"document_id", job.Document.DocumentID,
			"filename", job.Document.Filename,
		)
		return true
	default:
		p.logger.Error("ingestion queue full, job dropped",
			"document_id", job.Document.DocumentID,
			"filename", job.Document.Filename,
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the HTTP server has stopped.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// worker continuously pulls jobs off the queue.
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("ingest worker started", "worker_id", id)

	for job := range p.queue {
		// Failures are recorded on the document and logged by Process.
		_ = p.ingestor.Process(context.Background(), job.Document)
	}

	p.logger.Debug("ingest worker stopped", "worker_id", id)
}
