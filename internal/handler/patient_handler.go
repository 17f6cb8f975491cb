package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jeebendu/ch-clinic-admin-sub000/internal/model"
	entitysync "github.com/jeebendu/ch-clinic-admin-sub000/internal/sync"
	"github.com/jeebendu/ch-clinic-admin-sub000/pkg/logger"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// PatientHandler serves patient saves and cross-partition sharing
type PatientHandler struct {
	patients     entitysync.PatientStore
	synchronizer *entitysync.PatientSynchronizer
	retries      *entitysync.RetryQueue
	masterClient string
}

// NewPatientHandler creates the patient handler
func NewPatientHandler(patients entitysync.PatientStore, synchronizer *entitysync.PatientSynchronizer, retries *entitysync.RetryQueue, masterClient string) *PatientHandler {
	return &PatientHandler{patients: patients, synchronizer: synchronizer, retries: retries, masterClient: masterClient}
}

// CreatePatient creates a patient in the current partition
func (h *PatientHandler) CreatePatient(c echo.Context) error {
	log := logger.FromEcho(c)

	var req struct {
		FirstName string     `json:"first_name"`
		LastName  string     `json:"last_name"`
		Email     string     `json:"email"`
		Phone     string     `json:"phone"`
		Gender    string     `json:"gender"`
		BirthDate *time.Time `json:"birth_date"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse patient creation request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.FirstName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "first_name is required"})
	}

	patient := &model.Patient{
		GlobalID:  uuid.New().String(),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Gender:    req.Gender,
		BirthDate: req.BirthDate,
	}

	if err := h.patients.Save(c.Request().Context(), patient); err != nil {
		log.Error("Failed to create patient", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "patient creation failed"})
	}

	log.Info("Patient created", zap.String("global_id", patient.GlobalID))

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Patient created successfully",
		"patient": patient,
	})
}

// SharePatient projects a patient into the master partition so other
// clinics confirmed by the patient can look the record up by GlobalID.
func (h *PatientHandler) SharePatient(c echo.Context) error {
	log := logger.FromEcho(c)
	ctx := c.Request().Context()

	globalID := c.Param("global_id")
	sourceClient, _ := c.Get("client_id").(string)

	patient, err := h.patients.FindByGlobalID(ctx, globalID)
	if err != nil {
		log.Error("Patient lookup failed", zap.String("global_id", globalID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "patient lookup failed"})
	}
	if patient == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "patient not found"})
	}

	payload := patientPayloadFrom(patient)
	synced := true
	if err := h.synchronizer.SyncToCounterpart(ctx, payload, sourceClient, h.masterClient); err != nil {
		var syncErr *entitysync.SyncError
		if !errors.As(err, &syncErr) {
			log.Error("Patient sync rejected", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "share failed"})
		}

		synced = false
		log.Warn("Patient sync to master failed, deferring retry",
			zap.String("global_id", globalID), zap.Error(err))
		h.retries.Enqueue(ctx, "patient", func(retryCtx context.Context) error {
			return h.synchronizer.SyncToCounterpart(retryCtx, payload, sourceClient, h.masterClient)
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Patient shared",
		"synced":  synced,
	})
}

func patientPayloadFrom(patient *model.Patient) entitysync.PatientPayload {
	return entitysync.PatientPayload{
		GlobalID:  patient.GlobalID,
		FirstName: patient.FirstName,
		LastName:  patient.LastName,
		Email:     patient.Email,
		Phone:     patient.Phone,
		Gender:    patient.Gender,
		BirthDate: patient.BirthDate,
	}
}
