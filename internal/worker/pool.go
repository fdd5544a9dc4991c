package worker

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/Priya8975/fitcenter-webhooks/internal/metrics"
	"golang.org/x/sync/semaphore"
)

// DefaultWorkers caps how many delivery pipelines run at once.
const DefaultWorkers = 50

// Pool runs delivery pipelines, each in its own goroutine. At most numWorkers
// run concurrently; the rest wait on the semaphore without blocking callers.
type Pool struct {
	numWorkers int
	sem        *semaphore.Weighted
	ctx        context.Context
	logger     *slog.Logger
	wg         sync.WaitGroup
	inFlight   atomic.Int64
}

// NewPool creates a pool bound to ctx. Cancelling ctx stops pipelines that are
// still waiting for a slot or sleeping between attempts.
func NewPool(ctx context.Context, numWorkers int, logger *slog.Logger) *Pool {
	if numWorkers <= 0 {
		numWorkers = DefaultWorkers
	}
	return &Pool{
		numWorkers: numWorkers,
		sem:        semaphore.NewWeighted(int64(numWorkers)),
		ctx:        ctx,
		logger:     logger,
	}
}

// Go starts fn in a new goroutine and returns immediately.
func (p *Pool) Go(name string, fn func(ctx context.Context)) {
	p.wg.Add(1)
	go p.run(name, fn)
}

func (p *Pool) run(name string, fn func(ctx context.Context)) {
	defer p.wg.Done()

	if err := p.sem.Acquire(p.ctx, 1); err != nil {
		p.logger.Warn("pipeline dropped before start", "pipeline", name, "error", err)
		return
	}
	defer p.sem.Release(1)

	p.inFlight.Add(1)
	metrics.PipelinesInFlight.Inc()
	defer func() {
		p.inFlight.Add(-1)
		metrics.PipelinesInFlight.Dec()
	}()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pipeline panicked",
				"pipeline", name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	fn(p.ctx)
}

// InFlight reports how many pipelines are currently executing.
func (p *Pool) InFlight() int {
	return int(p.inFlight.Load())
}

// Size returns the concurrency limit.
func (p *Pool) Size() int {
	return p.numWorkers
}

// Wait blocks until every started pipeline has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
	p.logger.Info("worker pool drained")
}
