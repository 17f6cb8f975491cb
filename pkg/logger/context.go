package logger

import (
	"context"

	"github.com/jeebendu/ch-clinic-admin-sub000/internal/tenantctx"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type contextKey string

const loggerKey contextKey = "logger"

// WithContext stores a logger in the context. The tenant middleware installs
// the tenant-stamped request logger this way, so work that leaves the echo
// handler (deferred sync retries included) keeps its request attribution.
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger carried by ctx. A context without one falls
// back to the global logger, stamped with the context's tenant when one is
// resolved, so log lines stay attributable even on bare contexts.
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	logger := GetLogger()
	if clientID, ok := tenantctx.FromContext(ctx); ok {
		logger = logger.With(zap.String("client_id", clientID))
	}
	return logger
}

// FromEcho retrieves the logger from the Echo context
func FromEcho(c echo.Context) *zap.Logger {
	logger, ok := c.Get("logger").(*zap.Logger)
	if !ok {
		return GetLogger()
	}
	return logger
}
