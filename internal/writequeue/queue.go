// Package writequeue serializes every mutating database operation of the
// process through a single FIFO chain. One operation runs at a time, in
// enqueue order; lock-contention failures are retried with backoff and a
// failed operation never blocks the ones enqueued after it.
package writequeue

import (
	"context"
	"errors"
	"sync"
	"time"

	"kopilka/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrClosed is returned for operations still pending when the queue shuts
// down.
var ErrClosed = errors.New("write queue closed")

const (
	depthWarnThreshold = 5
	waitWarnThreshold  = 1000 * time.Millisecond
)

// Options configures a Queue. IsRetryable decides which errors count as
// lock contention; when nil nothing is retried.
type Options struct {
	Logger      *zerolog.Logger
	Retry       RetryPolicy
	IsRetryable func(error) bool
}

// Queue is an owned FIFO serialization point. Construct one per process at
// startup and pass it by reference; tests may construct isolated instances.
type Queue struct {
	logger      zerolog.Logger
	retry       RetryPolicy
	isRetryable func(error) bool

	mu       sync.Mutex
	jobs     []*job
	depth    int
	maxDepth int
	closed   bool

	signal chan struct{}
	done   chan struct{}
}

type job struct {
	id         uuid.UUID
	name       string
	enqueuedAt time.Time
	op         func(ctx context.Context) error
	finish     func(err error)
}

// New constructs a queue. Call Start to begin processing.
func New(opts Options) *Queue {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "writequeue").Logger()
	}
	retry := opts.Retry
	if retry.MaxRetries == 0 && retry.InitialDelay == 0 {
		retry = DefaultRetryPolicy()
	}
	isRetryable := opts.IsRetryable
	if isRetryable == nil {
		isRetryable = func(error) bool { return false }
	}

	return &Queue{
		logger:      logger,
		retry:       retry,
		isRetryable: isRetryable,
		signal:      make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

// Start processes operations until ctx is done, then fails the remaining
// chain with ErrClosed. It blocks; run it in a goroutine.
func (q *Queue) Start(ctx context.Context) {
	defer close(q.done)

	for {
		select {
		case <-ctx.Done():
			q.drain()
			return
		default:
		}

		j := q.pop()
		if j == nil {
			select {
			case <-ctx.Done():
				q.drain()
				return
			case <-q.signal:
			}
			continue
		}
		q.execute(ctx, j)
	}
}

// Wait blocks until the processing loop has stopped.
func (q *Queue) Wait() {
	<-q.done
}

// Future is the pending result of an enqueued operation.
type Future[T any] struct {
	ready chan struct{}
	value T
	err   error
}

// Wait blocks until the operation finished or ctx is done. Abandoning the
// wait does not cancel the operation itself.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.ready:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Enqueue appends op to the end of the chain and returns its future result.
// It never fails synchronously; every outcome surfaces through the future.
func Enqueue[T any](q *Queue, name string, op func(ctx context.Context) (T, error)) *Future[T] {
	f := &Future[T]{ready: make(chan struct{})}
	j := &job{
		id:         uuid.New(),
		name:       name,
		enqueuedAt: time.Now(),
		op: func(ctx context.Context) error {
			v, err := op(ctx)
			if err != nil {
				return err
			}
			f.value = v
			return nil
		},
		finish: func(err error) {
			f.err = err
			close(f.ready)
		},
	}
	q.push(j)
	return f
}

// Do enqueues an error-only operation and blocks until it finished.
func (q *Queue) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	f := Enqueue(q, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	_, err := f.Wait(ctx)
	return err
}

// Depth returns the number of operations waiting or running.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depth
}

// MaxDepth returns the historical peak depth.
func (q *Queue) MaxDepth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.maxDepth
}

func (q *Queue) push(j *job) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		j.finish(ErrClosed)
		return
	}
	q.jobs = append(q.jobs, j)
	q.depth++
	if q.depth > q.maxDepth {
		q.maxDepth = q.depth
	}
	depth := q.depth
	q.mu.Unlock()

	metrics.SetQueueDepth(depth)
	if depth > depthWarnThreshold {
		q.logger.Warn().Int("depth", depth).Str("op", j.name).Msg("write queue depth high, possible contention")
	}

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *Queue) pop() *job {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil
	}
	j := q.jobs[0]
	q.jobs = q.jobs[1:]
	return j
}

func (q *Queue) execute(ctx context.Context, j *job) {
	wait := time.Since(j.enqueuedAt)
	metrics.ObserveQueueWait(wait.Seconds())
	if wait > waitWarnThreshold {
		q.logger.Warn().
			Str("op", j.name).
			Str("op_id", j.id.String()).
			Dur("wait", wait).
			Msg("operation waited too long before execution")
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = j.op(ctx)
		if err == nil || !q.isRetryable(err) || attempt >= q.retry.MaxRetries {
			break
		}

		delay := q.retry.NextDelay(attempt + 1)
		q.logger.Warn().
			Err(err).
			Str("op", j.name).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Msg("lock contention, retrying operation")
		metrics.IncQueueRetry()

		select {
		case <-ctx.Done():
			// Shutdown mid-backoff: surface the last error as-is.
			q.complete(j, err)
			return
		case <-time.After(delay):
		}
	}

	q.complete(j, err)
}

// complete delivers the outcome to the caller and advances the chain. The
// error is caught here, never propagated into the loop, so a failed
// operation cannot break the chain for later ones.
func (q *Queue) complete(j *job, err error) {
	if err != nil {
		q.logger.Error().Err(err).Str("op", j.name).Msg("operation failed")
		metrics.IncQueueOp("failed")
	} else {
		metrics.IncQueueOp("succeeded")
	}
	j.finish(err)

	q.mu.Lock()
	q.depth--
	depth := q.depth
	q.mu.Unlock()
	metrics.SetQueueDepth(depth)
}

func (q *Queue) drain() {
	q.mu.Lock()
	q.closed = true
	pending := q.jobs
	q.jobs = nil
	q.depth = 0
	q.mu.Unlock()

	metrics.SetQueueDepth(0)
	for _, j := range pending {
		j.finish(ErrClosed)
	}
}
