package handler

import (
	"net/http"
	"strconv"

	"github.com/jeebendu/ch-clinic-admin-sub000/internal/model"
	"github.com/jeebendu/ch-clinic-admin-sub000/internal/provision"
	"github.com/jeebendu/ch-clinic-admin-sub000/internal/schema"
	"github.com/jeebendu/ch-clinic-admin-sub000/internal/tenantctx"
	"github.com/jeebendu/ch-clinic-admin-sub000/pkg/logger"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProvisionHandler serves tenant signup and provisioning
type ProvisionHandler struct {
	saga         *provision.Saga
	router       *schema.Router
	masterClient string
}

// NewProvisionHandler creates the provisioning handler
func NewProvisionHandler(saga *provision.Saga, router *schema.Router, masterClient string) *ProvisionHandler {
	return &ProvisionHandler{saga: saga, router: router, masterClient: masterClient}
}

// Signup handles a public tenant signup, creating a Pending provision request
func (h *ProvisionHandler) Signup(c echo.Context) error {
	log := logger.FromEcho(c)

	var req struct {
		ClientID       string `json:"client_id"`
		ClinicTitle    string `json:"clinic_title"`
		Subdomain      string `json:"subdomain"`
		RequesterName  string `json:"requester_name"`
		RequesterEmail string `json:"requester_email"`
		RequesterPhone string `json:"requester_phone"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse signup request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.ClientID == "" || req.ClinicTitle == "" || req.RequesterEmail == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "client_id, clinic_title and requester_email are required"})
	}

	// The schema the clientID would map to must pass the allow-list now,
	// not at provisioning time.
	if err := schema.ValidateSchemaName(h.router.SchemaFor(req.ClientID)); err != nil {
		log.Warn("signup with invalid client id", zap.String("client_id", req.ClientID))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid client_id"})
	}

	request := model.ProvisionRequest{
		ClientID:       req.ClientID,
		ClinicTitle:    req.ClinicTitle,
		Subdomain:      req.Subdomain,
		RequesterName:  req.RequesterName,
		RequesterEmail: req.RequesterEmail,
		RequesterPhone: req.RequesterPhone,
		Status:         model.RequestPending,
	}

	masterCtx := tenantctx.WithTenant(c.Request().Context(), h.masterClient)
	err := h.router.WithTenant(masterCtx, func(db *gorm.DB) error {
		return db.Create(&request).Error
	})
	if err != nil {
		log.Error("Failed to create provision request", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "signup failed"})
	}

	log.Info("Provision request created",
		zap.Uint("id", request.ID),
		zap.String("client_id", request.ClientID))

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Signup received, pending approval",
		"request": request,
	})
}

// Approve runs the provisioning saga for a pending request
func (h *ProvisionHandler) Approve(c echo.Context) error {
	log := logger.FromEcho(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request ID"})
	}

	result := h.saga.Run(c.Request().Context(), uint(id))
	if !result.Success {
		log.Warn("Provisioning failed",
			zap.Uint64("request_id", id),
			zap.String("failed_step", result.FailedStep))
		return c.JSON(http.StatusUnprocessableEntity, result)
	}

	return c.JSON(http.StatusOK, result)
}

// GetPartition returns the registry entry for a clientID
func (h *ProvisionHandler) GetPartition(c echo.Context) error {
	log := logger.FromEcho(c)
	clientID := c.Param("client_id")

	var partition model.ClinicPartition
	masterCtx := tenantctx.WithTenant(c.Request().Context(), h.masterClient)
	err := h.router.WithTenant(masterCtx, func(db *gorm.DB) error {
		return db.Where("client_id = ?", clientID).First(&partition).Error
	})
	if err != nil {
		log.Warn("Partition not found", zap.String("client_id", clientID), zap.Error(err))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "partition not found"})
	}

	return c.JSON(http.StatusOK, echo.Map{"partition": partition})
}
