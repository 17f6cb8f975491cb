// Package tenantctx carries the current tenant through context.Context.
//
// The tenant id is request-scoped state: it is installed when a unit of work
// begins, read by every data access along the way, and dies with the
// context. It must never live in a package-level variable, or two concurrent
// requests would observe each other's tenant.
package tenantctx

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

type contextKey string

const tenantKey contextKey = "tenant_id"

// ErrNoTenant indicates a tenant-scoped operation ran without a resolved tenant.
var ErrNoTenant = errors.New("no tenant resolved for current context")

// WithTenant returns a child context scoped to the given tenant
func WithTenant(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, tenantKey, clientID)
}

// FromContext retrieves the current tenant, if any
func FromContext(ctx context.Context) (string, bool) {
	clientID, ok := ctx.Value(tenantKey).(string)
	if !ok || clientID == "" {
		return "", false
	}
	return clientID, true
}

// MustFromContext retrieves the current tenant or fails with ErrNoTenant
func MustFromContext(ctx context.Context) (string, error) {
	clientID, ok := FromContext(ctx)
	if !ok {
		return "", ErrNoTenant
	}
	return clientID, nil
}

// Propagate captures the tenant from ctx and returns a closure that installs
// it into a fresh background context before running fn. Work handed to
// another goroutine must go through this so a reused worker never inherits a
// stale tenant from its previous job.
func Propagate(ctx context.Context, log *zap.Logger, fn func(ctx context.Context)) func() {
	clientID, hasTenant := FromContext(ctx)

	return func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("recovered panic in propagated work", zap.Any("panic", r))
			}
		}()

		workCtx := context.Background()
		if hasTenant {
			workCtx = WithTenant(workCtx, clientID)
		}
		fn(workCtx)
	}
}
