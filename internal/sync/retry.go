package sync

import (
	"context"
	"time"

	"github.com/jeebendu/ch-clinic-admin-sub000/internal/tenantctx"
	"github.com/jeebendu/ch-clinic-admin-sub000/pkg/logger"
	appmetrics "github.com/jeebendu/ch-clinic-admin-sub000/prometheus"
	"go.uber.org/zap"
)

// RetryQueue re-runs failed syncs on a background worker. Each enqueued job
// carries the tenant captured from the submitting context, so the worker
// never inherits a tenant from whatever job it ran before.
type RetryQueue struct {
	tasks       chan retryTask
	log         *zap.Logger
	maxAttempts int
	backoff     time.Duration
	done        chan struct{}
}

type retryTask struct {
	entity  string
	attempt int
	run     func()
	fail    *error
}

// NewRetryQueue creates a retry queue; Start must be called before Enqueue
// is useful.
func NewRetryQueue(log *zap.Logger, capacity, maxAttempts int, backoff time.Duration) *RetryQueue {
	if capacity < 1 {
		capacity = 64
	}
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	return &RetryQueue{
		tasks:       make(chan retryTask, capacity),
		log:         log,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		done:        make(chan struct{}),
	}
}

// Start launches the worker goroutine
func (q *RetryQueue) Start() {
	go q.loop()
}

// Stop shuts the worker down; queued jobs are dropped
func (q *RetryQueue) Stop() {
	close(q.done)
}

// Enqueue schedules fn for a deferred retry. The current tenant is captured
// now; at execution time it is installed into a fresh context around fn and
// discarded afterward. Enqueue never blocks: if the queue is full the job is
// dropped with a log, since a dropped retry only delays convergence.
func (q *RetryQueue) Enqueue(ctx context.Context, entity string, fn func(ctx context.Context) error) {
	q.enqueue(ctx, entity, 1, fn)
}

func (q *RetryQueue) enqueue(ctx context.Context, entity string, attempt int, fn func(ctx context.Context) error) {
	var failed error
	// The submitting request's logger follows the job, so retry log lines
	// keep the request id and tenant they originated from.
	jobLog := logger.FromContext(ctx)
	wrapped := tenantctx.Propagate(ctx, q.log, func(workCtx context.Context) {
		failed = fn(logger.WithContext(workCtx, jobLog))
	})

	task := retryTask{entity: entity, attempt: attempt, run: wrapped, fail: &failed}
	select {
	case q.tasks <- task:
		appmetrics.SyncRetryCounter.WithLabelValues(entity).Inc()
	default:
		q.log.Warn("retry queue full, dropping sync retry", zap.String("entity", entity))
	}
}

func (q *RetryQueue) loop() {
	for {
		select {
		case <-q.done:
			return
		case task := <-q.tasks:
			if q.backoff > 0 {
				select {
				case <-q.done:
					return
				case <-time.After(q.backoff):
				}
			}

			task.run()
			if err := *task.fail; err != nil {
				if task.attempt >= q.maxAttempts {
					q.log.Error("sync retry exhausted",
						zap.String("entity", task.entity),
						zap.Int("attempts", task.attempt),
						zap.Error(err))
					continue
				}
				q.log.Warn("sync retry failed, requeueing",
					zap.String("entity", task.entity),
					zap.Int("attempt", task.attempt),
					zap.Error(err))
				q.requeue(task)
			}
		}
	}
}

func (q *RetryQueue) requeue(task retryTask) {
	next := retryTask{entity: task.entity, attempt: task.attempt + 1, run: task.run, fail: task.fail}
	select {
	case q.tasks <- next:
	default:
		q.log.Warn("retry queue full, dropping sync retry", zap.String("entity", task.entity))
	}
}
