package tenantctx

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWithTenantAndFromContext(t *testing.T) {
	ctx := context.Background()

	_, ok := FromContext(ctx)
	assert.False(t, ok)

	ctx = WithTenant(ctx, "acme")
	clientID, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "acme", clientID)
}

func TestMustFromContextFailsWithoutTenant(t *testing.T) {
	_, err := MustFromContext(context.Background())
	assert.ErrorIs(t, err, ErrNoTenant)
}

func TestEmptyTenantTreatedAsAbsent(t *testing.T) {
	ctx := WithTenant(context.Background(), "")
	_, ok := FromContext(ctx)
	assert.False(t, ok)
}

// Two concurrent units of work scoped to different tenants must never
// observe each other's value.
func TestConcurrentContextsAreIsolated(t *testing.T) {
	const rounds = 200

	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()
			ctx := WithTenant(context.Background(), "t1")
			clientID, err := MustFromContext(ctx)
			assert.NoError(t, err)
			assert.Equal(t, "t1", clientID)
		}()

		go func() {
			defer wg.Done()
			ctx := WithTenant(context.Background(), "t2")
			clientID, err := MustFromContext(ctx)
			assert.NoError(t, err)
			assert.Equal(t, "t2", clientID)
		}()
	}
	wg.Wait()
}

func TestDerivedScopeDoesNotMutateParent(t *testing.T) {
	parent := WithTenant(context.Background(), "source")
	child := WithTenant(parent, "target")

	childID, _ := FromContext(child)
	assert.Equal(t, "target", childID)

	parentID, _ := FromContext(parent)
	assert.Equal(t, "source", parentID)
}

func TestPropagateCapturesTenantAtSubmission(t *testing.T) {
	log := zap.NewNop()
	ctx := WithTenant(context.Background(), "acme")

	var seen string
	done := make(chan struct{})
	job := Propagate(ctx, log, func(workCtx context.Context) {
		seen, _ = FromContext(workCtx)
		close(done)
	})

	go job()
	<-done
	assert.Equal(t, "acme", seen)
}

func TestPropagateWithoutTenantInstallsNothing(t *testing.T) {
	log := zap.NewNop()

	var ok bool
	job := Propagate(context.Background(), log, func(workCtx context.Context) {
		_, ok = FromContext(workCtx)
	})
	job()
	assert.False(t, ok)
}

func TestPropagateRecoversPanics(t *testing.T) {
	log := zap.NewNop()
	job := Propagate(context.Background(), log, func(context.Context) {
		panic("boom")
	})

	assert.NotPanics(t, func() { job() })
}
