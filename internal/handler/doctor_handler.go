package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jeebendu/ch-clinic-admin-sub000/internal/model"
	entitysync "github.com/jeebendu/ch-clinic-admin-sub000/internal/sync"
	"github.com/jeebendu/ch-clinic-admin-sub000/pkg/logger"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// DoctorHandler serves doctor saves and cross-partition publishing
type DoctorHandler struct {
	doctors      entitysync.DoctorStore
	synchronizer *entitysync.DoctorSynchronizer
	retries      *entitysync.RetryQueue
	masterClient string
}

// NewDoctorHandler creates the doctor handler
func NewDoctorHandler(doctors entitysync.DoctorStore, synchronizer *entitysync.DoctorSynchronizer, retries *entitysync.RetryQueue, masterClient string) *DoctorHandler {
	return &DoctorHandler{doctors: doctors, synchronizer: synchronizer, retries: retries, masterClient: masterClient}
}

// CreateDoctor creates a doctor in the current partition, assigning its
// GlobalID once
func (h *DoctorHandler) CreateDoctor(c echo.Context) error {
	log := logger.FromEcho(c)

	var req struct {
		Name           string `json:"name"`
		Specialization string `json:"specialization"`
		Qualification  string `json:"qualification"`
		Email          string `json:"email"`
		Phone          string `json:"phone"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse doctor creation request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	doctor := &model.Doctor{
		GlobalID:       uuid.New().String(),
		Name:           req.Name,
		Specialization: req.Specialization,
		Qualification:  req.Qualification,
		Email:          req.Email,
		Phone:          req.Phone,
	}

	if err := h.doctors.Save(c.Request().Context(), doctor); err != nil {
		log.Error("Failed to create doctor", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "doctor creation failed"})
	}

	log.Info("Doctor created",
		zap.String("global_id", doctor.GlobalID),
		zap.String("name", doctor.Name))

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Doctor created successfully",
		"doctor":  doctor,
	})
}

// PublishDoctor marks a doctor published in the current partition and
// projects the profile into the master partition for platform-wide search.
// A failed projection is deferred and retried; it never fails the publish.
func (h *DoctorHandler) PublishDoctor(c echo.Context) error {
	log := logger.FromEcho(c)
	ctx := c.Request().Context()

	globalID := c.Param("global_id")
	sourceClient, _ := c.Get("client_id").(string)

	doctor, err := h.doctors.FindByGlobalID(ctx, globalID)
	if err != nil {
		log.Error("Doctor lookup failed", zap.String("global_id", globalID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "doctor lookup failed"})
	}
	if doctor == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "doctor not found"})
	}

	doctor.Published = true
	if err := h.doctors.Save(ctx, doctor); err != nil {
		log.Error("Failed to publish doctor", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "publish failed"})
	}

	payload := doctorPayloadFrom(doctor)
	synced := true
	if err := h.synchronizer.SyncToCounterpart(ctx, payload, sourceClient, h.masterClient); err != nil {
		var syncErr *entitysync.SyncError
		if !errors.As(err, &syncErr) {
			// Missing GlobalID or similar programming error
			log.Error("Doctor sync rejected", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "publish failed"})
		}

		// The publish already committed locally; the projection catches up later.
		synced = false
		log.Warn("Doctor sync to master failed, deferring retry",
			zap.String("global_id", globalID), zap.Error(err))
		h.retries.Enqueue(ctx, "doctor", func(retryCtx context.Context) error {
			return h.synchronizer.SyncToCounterpart(retryCtx, payload, sourceClient, h.masterClient)
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Doctor published",
		"doctor":  doctor,
		"synced":  synced,
	})
}

func doctorPayloadFrom(doctor *model.Doctor) entitysync.DoctorPayload {
	return entitysync.DoctorPayload{
		GlobalID:       doctor.GlobalID,
		Name:           doctor.Name,
		Specialization: doctor.Specialization,
		Qualification:  doctor.Qualification,
		Email:          doctor.Email,
		Phone:          doctor.Phone,
		Published:      doctor.Published,
	}
}
