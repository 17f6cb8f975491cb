package tenant

import (
	"errors"
	"net/http"

	"github.com/jeebendu/ch-clinic-admin-sub000/internal/tenantctx"
	"github.com/jeebendu/ch-clinic-admin-sub000/pkg/logger"
	appmetrics "github.com/jeebendu/ch-clinic-admin-sub000/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Middleware resolves the tenant once per request and installs it into the
// request context. Tenant-required paths with no resolvable tenant are
// rejected before any handler or database work runs.
func Middleware(resolver *Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			resolution, err := resolver.Resolve(c)
			if err != nil {
				if errors.Is(err, tenantctx.ErrNoTenant) {
					appmetrics.TenantResolutionFailureCounter.Inc()
					log.Warn("no tenant resolved",
						zap.String("path", c.Request().URL.Path))
					return c.JSON(http.StatusBadRequest, echo.Map{"error": "no tenant resolved"})
				}
				return err
			}

			appmetrics.RecordResolution(resolution.Source)

			// Scope the request context and its logger to the tenant
			stamped := log.With(
				zap.String("client_id", resolution.ClientID),
				zap.String("tenant_source", resolution.Source))

			req := c.Request()
			ctx := tenantctx.WithTenant(req.Context(), resolution.ClientID)
			ctx = logger.WithContext(ctx, stamped)
			c.SetRequest(req.WithContext(ctx))
			c.Set("logger", stamped)
			c.Set("client_id", resolution.ClientID)

			return next(c)
		}
	}
}
