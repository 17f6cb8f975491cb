package handler

import (
	"net/http"

	appmetrics "github.com/jeebendu/ch-clinic-admin-sub000/prometheus"
	"github.com/labstack/echo/v4"
)

// HealthCheck returns the service health status
func HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// MetricsHandler exposes Prometheus metrics
func MetricsHandler(c echo.Context) error {
	appmetrics.GetPrometheusHandler().ServeHTTP(c.Response(), c.Request())
	return nil
}
