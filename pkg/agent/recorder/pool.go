// Package recorder provides an asynchronous worker pool for persisting
// finished exchanges through the memory manager.
//
// The pool decouples memory writes from the agent's HTTP hot path; the
// manager's per-thread locking keeps the window invariant regardless of
// which worker picks a job up.
package recorder

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/papercomputeco/warren/pkg/memory"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is one finished exchange to persist.
type Job struct {
	Thread   memory.Thread
	Message  string
	Response string
	Opts     memory.Options
}

// Config is the configuration options for the recorder pool.
type Config struct {
	// Manager persists the exchanges.
	Manager *memory.Manager

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Pool processes exchange-recording jobs asynchronously.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
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
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	p.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go p.worker(i)
	}

	return p, nil
}

// Enqueue submits a job for processing by the pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("exchange queued",
			zap.String("thread", job.Thread.Key()),
		)
		return true
	default:
		p.logger.Error("exchange not queued, queue full, job dropped",
			zap.String("thread", job.Thread.Key()),
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the agent HTTP server has stopped.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("recorder worker started", zap.Uint("worker_id", id))

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("recorder worker stopped", zap.Uint("worker_id", id))
}

// processJob persists one exchange. Failures are logged; a lost memory write
// degrades retrieval but never fails a served response.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	if err := p.config.Manager.RecordExchange(ctx, job.Thread, job.Message, job.Response, job.Opts); err != nil {
		p.logger.Error("async exchange recording failed",
			zap.String("thread", job.Thread.Key()),
			zap.Error(err),
		)
		return
	}

	p.logger.Debug("exchange recorded",
		zap.String("thread", job.Thread.Key()),
	)
}
