// Package queue buffers submitted posts between the HTTP layer and the
// worker pool.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/whisper/internal/domain/model"
	"github.com/okian/whisper/pkg/metrics"
)

const defaultQueueCapacity = 10_000

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a post without blocking. It fails with ErrFull or
	// ErrClosed, or the context error.
	Enqueue(ctx context.Context, p model.Post) error

	// Dequeue returns a channel of posts, closed once the queue is closed
	// and drained or ctx is done. Call it once and share the channel.
	Dequeue(ctx context.Context) <-chan model.Post

	// Len returns the current number of queued posts.
	Len() int

	// Close stops accepting posts. Queued posts are still delivered.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	posts    chan model.Post
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.posts = make(chan model.Post, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds a post to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, p model.Post) error { //nolint:gocritic // posts travel by value through the channel
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueRejected("closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueRejected("context_cancelled")
		return fmt.Errorf("enqueue post %s: %w", p.PostID, err)
	}

	select {
	case q.posts <- p:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.posts))
		return nil
	default:
		metrics.RecordQueueRejected("full")
		return ErrFull
	}
}

// Dequeue forwards queued posts until the queue is drained or ctx ends.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan model.Post {
	out := make(chan model.Post)
	go func() {
		defer close(out)
		for p := range q.posts {
			select {
			case out <- p:
				metrics.RecordQueueDequeue()
				metrics.UpdateQueueSize(len(q.posts))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued posts.
func (q *InMemoryQueue) Len() int {
	return len(q.posts)
}

// Capacity returns the configured capacity.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

// Close stops accepting posts.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.posts)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
