// Package worker drains the post queue and hands each post to a Processor.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/whisper/internal/domain/model"
	"github.com/okian/whisper/pkg/logger"
	"github.com/okian/whisper/pkg/metrics"
)

const (
	defaultWorkerMultiplier = 2
	defaultMetricsInterval  = 5 * time.Second
)

// Processor runs the social pipeline for one post.
type Processor interface {
	ProcessPost(ctx context.Context, p model.Post) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, p model.Post) error

// ProcessPost calls f.
func (f ProcessorFunc) ProcessPost(ctx context.Context, p model.Post) error { //nolint:gocritic // posts travel by value
	return f(ctx, p)
}

// Queue defines how workers receive posts.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Post
}

// Worker processes posts from a queue.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue drains.
	Run(ctx context.Context)

	// Shutdown stops the worker after the post in hand.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	processor Processor
	name      string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, processor Processor, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		processor: processor,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named("worker")
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	posts := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case p, ok := <-posts:
			if !ok {
				return
			}
			if err := w.process(ctx, p); err != nil {
				w.logger.Error(ctx, "post processing failed",
					logger.String("post_id", p.PostID),
					logger.Int64("author_id", p.AuthorID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown signals the worker and waits for it to exit.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stop()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed once Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) stop() {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
}

func (w *InMemoryWorker) process(ctx context.Context, p model.Post) error { //nolint:gocritic // posts travel by value
	start := time.Now()
	defer func() {
		metrics.RecordWorkerLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := w.processor.ProcessPost(ctx, p); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", errorType(err))
		return fmt.Errorf("process post %s: %w", p.PostID, err)
	}
	return nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "context"
	default:
		return "processing"
	}
}

// feed hands every worker of a pool the one channel the pool dequeued.
type feed struct {
	posts <-chan model.Post
}

func (f *feed) Dequeue(context.Context) <-chan model.Post { return f.posts }

// Pool manages multiple workers over one queue. The queue is dequeued once
// and its channel is shared by all workers.
type Pool struct {
	workers         []*InMemoryWorker
	queue           Queue
	feed            *feed
	metricsInterval time.Duration
	logger          logger.Logger
}

// NewPool creates a worker pool. A non-positive count falls back to 2x NumCPU.
func NewPool(workerCount int, q Queue, processor Processor, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workers:         make([]*InMemoryWorker, workerCount),
		queue:           q,
		feed:            &feed{},
		metricsInterval: defaultMetricsInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named("worker-pool")
	}

	for i := range workerCount {
		p.workers[i] = NewInMemoryWorker(p.feed, processor,
			WithName("worker-"+strconv.Itoa(i)),
			WithLogger(p.logger),
		)
	}

	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	p.feed.posts = p.queue.Dequeue(ctx)
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	if p.metricsInterval > 0 {
		go p.refreshSystemMetrics(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

func (p *Pool) refreshSystemMetrics(ctx context.Context) {
	ticker := time.NewTicker(p.metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			metrics.UpdateSystemMemoryUsage(ms.Alloc)
			metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
		}
	}
}

// Shutdown closes the queue, lets workers drain it, and stops whatever is
// still running when ctx expires.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	var timedOut int
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			w.stop()
			timedOut++
		}
	}
	metrics.UpdateWorkerCount(0)

	if timedOut > 0 {
		p.logger.Warn(ctx, "worker pool shutdown timed out", logger.Int("workers", timedOut))
		return fmt.Errorf("%d workers still running: %w", timedOut, ctx.Err())
	}
	return nil
}
