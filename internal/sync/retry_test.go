package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jeebendu/ch-clinic-admin-sub000/internal/tenantctx"
	"github.com/jeebendu/ch-clinic-admin-sub000/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRetryQueueRunsJobWithCapturedTenant(t *testing.T) {
	q := NewRetryQueue(zap.NewNop(), 8, 3, 0)
	q.Start()
	defer q.Stop()

	ctx := tenantctx.WithTenant(context.Background(), "acme")

	seen := make(chan string, 1)
	q.Enqueue(ctx, "doctor", func(workCtx context.Context) error {
		clientID, _ := tenantctx.FromContext(workCtx)
		seen <- clientID
		return nil
	})

	select {
	case clientID := <-seen:
		assert.Equal(t, "acme", clientID)
	case <-time.After(2 * time.Second):
		t.Fatal("retry job never ran")
	}
}

// The retry job must run with the logger of the request that enqueued it.
func TestRetryQueueCarriesSubmitterLogger(t *testing.T) {
	q := NewRetryQueue(zap.NewNop(), 8, 3, 0)
	q.Start()
	defer q.Stop()

	jobLog := zap.NewNop().With(zap.String("request_id", "r1"))
	ctx := logger.WithContext(tenantctx.WithTenant(context.Background(), "acme"), jobLog)

	got := make(chan *zap.Logger, 1)
	q.Enqueue(ctx, "doctor", func(workCtx context.Context) error {
		got <- logger.FromContext(workCtx)
		return nil
	})

	select {
	case l := <-got:
		assert.Same(t, jobLog, l)
	case <-time.After(2 * time.Second):
		t.Fatal("retry job never ran")
	}
}

func TestRetryQueueRetriesUntilSuccess(t *testing.T) {
	q := NewRetryQueue(zap.NewNop(), 8, 5, 0)
	q.Start()
	defer q.Stop()

	attempts := 0
	done := make(chan struct{})
	q.Enqueue(context.Background(), "appointment", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("still failing")
		}
		close(done)
		return nil
	})

	select {
	case <-done:
		assert.Equal(t, 3, attempts)
	case <-time.After(2 * time.Second):
		t.Fatal("retry never succeeded")
	}
}

func TestRetryQueueGivesUpAfterMaxAttempts(t *testing.T) {
	q := NewRetryQueue(zap.NewNop(), 8, 2, 0)
	q.Start()
	defer q.Stop()

	attempts := make(chan struct{}, 16)
	q.Enqueue(context.Background(), "patient", func(context.Context) error {
		attempts <- struct{}{}
		return errors.New("permanent failure")
	})

	count := 0
	deadline := time.After(1 * time.Second)
	for {
		select {
		case <-attempts:
			count++
			require.LessOrEqual(t, count, 2)
		case <-deadline:
			assert.Equal(t, 2, count)
			return
		}
	}
}
