// Package persist moves persistence off the market's hot path. A Queue
// accepts sink calls without blocking and replays them against the real
// sink on a single worker, retrying transient failures.
package persist

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/cenkalti/backoff/v4"

	"github.com/efreitasn/marketsim/internal/domain"
	"github.com/efreitasn/marketsim/internal/metrics"
)

var (
	ErrQueueFull   = errors.New("persistence queue full")
	ErrQueueClosed = errors.New("persistence queue closed")
)

// Sink is the durable store the queue writes through to.
type Sink interface {
	RecordOrder(ctx context.Context, o domain.Order) error
	RecordTransaction(ctx context.Context, tx domain.Transaction) error
	UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) error
	SnapshotInstrument(ctx context.Context, inst domain.Instrument) error
}

type job struct {
	op string
	fn func(ctx context.Context) error
}

// Option configures a Queue.
type Option func(*Queue)

// WithBackOff replaces the exponential backoff used between retries.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(q *Queue) { q.newBackOff = newBackOff }
}

// Queue is a bounded FIFO of pending sink calls. It implements the same
// method set as Sink, so the market can use it directly.
type Queue struct {
	sink       Sink
	jobs       chan job
	maxRetries uint64
	newBackOff func() backoff.BackOff
	metrics    *metrics.Metrics
	logger     *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewQueue creates a queue holding up to size pending calls. A failed call
// is retried up to maxRetries times before it is logged and dropped.
func NewQueue(sink Sink, size int, maxRetries uint64, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Queue {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		sink:       sink,
		jobs:       make(chan job, size),
		maxRetries: maxRetries,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		metrics:    m,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Queue) RecordOrder(_ context.Context, o domain.Order) error {
	return q.enqueue("record_order", func(ctx context.Context) error {
		return q.sink.RecordOrder(ctx, o)
	})
}

func (q *Queue) RecordTransaction(_ context.Context, tx domain.Transaction) error {
	return q.enqueue("record_transaction", func(ctx context.Context) error {
		return q.sink.RecordTransaction(ctx, tx)
	})
}

func (q *Queue) UpdateOrderStatus(_ context.Context, id string, status domain.OrderStatus) error {
	return q.enqueue("update_order_status", func(ctx context.Context) error {
		return q.sink.UpdateOrderStatus(ctx, id, status)
	})
}

func (q *Queue) SnapshotInstrument(_ context.Context, inst domain.Instrument) error {
	return q.enqueue("snapshot_instrument", func(ctx context.Context) error {
		return q.sink.SnapshotInstrument(ctx, inst)
	})
}

// Len returns the number of pending calls.
func (q *Queue) Len() int {
	return len(q.jobs)
}

func (q *Queue) enqueue(op string, fn func(ctx context.Context) error) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- job{op: op, fn: fn}:
		q.metrics.PersistQueueDepth(len(q.jobs))
		return nil
	default:
		q.metrics.PersistDropped(op)
		return ErrQueueFull
	}
}

// Run processes calls in arrival order until ctx is cancelled. It then
// stops accepting new calls and flushes what is left with one attempt
// each.
func (q *Queue) Run(ctx context.Context) error {
	q.logger.Info("persistence queue started")
	for {
		select {
		case <-ctx.Done():
			q.Close()
			n := q.drain()
			q.logger.Info("persistence queue stopped", slog.Int("flushed", n))
			return nil
		case j := <-q.jobs:
			q.do(ctx, j)
		}
	}
}

// Close rejects further calls. Pending calls stay queued for Run to flush.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

func (q *Queue) drain() int {
	n := 0
	for {
		select {
		case j := <-q.jobs:
			if err := j.fn(context.Background()); err != nil {
				q.fail(j.op, 1, err)
			}
			n++
		default:
			q.metrics.PersistQueueDepth(0)
			return n
		}
	}
}

func (q *Queue) do(ctx context.Context, j job) {
	defer func() { q.metrics.PersistQueueDepth(len(q.jobs)) }()

	// Shutdown stops the waits between retries, not a write in flight.
	writeCtx := context.WithoutCancel(ctx)
	attempts := 0
	op := func() error {
		attempts++
		err := j.fn(writeCtx)
		// The row was never written; retrying will not create it.
		if errors.Is(err, domain.ErrOrderNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(q.newBackOff(), q.maxRetries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		q.fail(j.op, attempts, err)
	}
}

func (q *Queue) fail(op string, attempts int, err error) {
	q.metrics.PersistFailure(op)
	q.logger.Error("persistence dropped",
		slog.String("op", op),
		slog.Int("attempts", attempts),
		slog.String("error", err.Error()),
	)
}
