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

// AppointmentHandler serves bookings and cancellations, projecting confirmed
// appointments into the master partition.
type AppointmentHandler struct {
	appointments entitysync.AppointmentStore
	doctors      entitysync.DoctorStore
	patients     entitysync.PatientStore
	slots        entitysync.SlotStore
	synchronizer *entitysync.AppointmentSynchronizer
	retries      *entitysync.RetryQueue
	masterClient string
}

// NewAppointmentHandler creates the appointment handler
func NewAppointmentHandler(stores *entitysync.GormStores, synchronizer *entitysync.AppointmentSynchronizer, retries *entitysync.RetryQueue, masterClient string) *AppointmentHandler {
	return &AppointmentHandler{
		appointments: stores.Appointments,
		doctors:      stores.Doctors,
		patients:     stores.Patients,
		slots:        stores.Slots,
		synchronizer: synchronizer,
		retries:      retries,
		masterClient: masterClient,
	}
}

// BookAppointment books a slot in the current partition and projects the
// booking into the master partition. The local booking stands even when the
// projection fails; that sync is retried in the background.
func (h *AppointmentHandler) BookAppointment(c echo.Context) error {
	log := logger.FromEcho(c)
	ctx := c.Request().Context()
	sourceClient, _ := c.Get("client_id").(string)

	var req struct {
		DoctorGlobalID  string `json:"doctor_global_id"`
		PatientGlobalID string `json:"patient_global_id"`
		SlotGlobalID    string `json:"slot_global_id"`
		Notes           string `json:"notes"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse booking request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.DoctorGlobalID == "" || req.PatientGlobalID == "" || req.SlotGlobalID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "doctor_global_id, patient_global_id and slot_global_id are required"})
	}

	doctor, err := h.doctors.FindByGlobalID(ctx, req.DoctorGlobalID)
	if err != nil || doctor == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "doctor not found"})
	}
	patient, err := h.patients.FindByGlobalID(ctx, req.PatientGlobalID)
	if err != nil || patient == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "patient not found"})
	}
	slot, err := h.slots.FindByGlobalID(ctx, req.SlotGlobalID)
	if err != nil || slot == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "slot not found"})
	}
	if slot.Remaining < 1 {
		return c.JSON(http.StatusConflict, echo.Map{"error": "slot is full"})
	}

	// Take the seat locally before creating the booking row. The store
	// enforces the floor, so a concurrent booking that won the race surfaces
	// here even though the read above saw a free seat.
	if err := h.slots.AdjustRemaining(ctx, slot.GlobalID, -1); err != nil {
		if errors.Is(err, entitysync.ErrSlotCapacityExhausted) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "slot is full"})
		}
		log.Error("Failed to reserve slot capacity", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "booking failed"})
	}

	appointment := &model.Appointment{
		GlobalID:  uuid.New().String(),
		DoctorID:  doctor.ID,
		PatientID: patient.ID,
		SlotID:    slot.ID,
		Status:    model.AppointmentBooked,
		Notes:     req.Notes,
		BookedAt:  time.Now(),
	}

	if err := h.appointments.Save(ctx, appointment); err != nil {
		// Give the seat back; the booking row never materialized
		if compErr := h.slots.AdjustRemaining(ctx, slot.GlobalID, +1); compErr != nil {
			log.Error("Slot capacity compensation failed", zap.Error(compErr))
		}
		log.Error("Failed to create appointment", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "booking failed"})
	}

	synced := h.syncAppointment(c, appointment, doctor, patient, slot, sourceClient)

	return c.JSON(http.StatusCreated, echo.Map{
		"message":     "Appointment booked",
		"appointment": appointment,
		"synced":      synced,
	})
}

// CancelAppointment cancels a booking, frees the slot seat, and projects the
// cancellation into the master partition.
func (h *AppointmentHandler) CancelAppointment(c echo.Context) error {
	log := logger.FromEcho(c)
	ctx := c.Request().Context()
	sourceClient, _ := c.Get("client_id").(string)

	globalID := c.Param("global_id")

	appointment, err := h.appointments.FindByGlobalID(ctx, globalID)
	if err != nil {
		log.Error("Appointment lookup failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	if appointment == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "appointment not found"})
	}
	if appointment.Status == model.AppointmentCancelled {
		return c.JSON(http.StatusConflict, echo.Map{"error": "appointment already cancelled"})
	}

	slot, err := h.slots.FindByID(ctx, appointment.SlotID)
	if err != nil || slot == nil {
		log.Error("Slot lookup failed for cancellation", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancellation failed"})
	}

	appointment.Status = model.AppointmentCancelled
	if err := h.appointments.Save(ctx, appointment); err != nil {
		log.Error("Failed to cancel appointment", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancellation failed"})
	}

	// One increment per booked-to-cancelled transition
	if err := h.slots.AdjustRemaining(ctx, slot.GlobalID, +1); err != nil {
		log.Error("Failed to release slot capacity", zap.Error(err))
	}

	doctor, _ := h.doctors.FindByID(ctx, appointment.DoctorID)
	patient, _ := h.patients.FindByID(ctx, appointment.PatientID)

	synced := true
	if doctor != nil && patient != nil {
		payload := h.appointmentPayload(appointment, doctor, patient, slot)
		synced = h.dispatchSync(c, payload, sourceClient)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message":     "Appointment cancelled",
		"appointment": appointment,
		"synced":      synced,
	})
}

func (h *AppointmentHandler) syncAppointment(c echo.Context, appointment *model.Appointment, doctor *model.Doctor, patient *model.Patient, slot *model.TimeSlot, sourceClient string) bool {
	payload := h.appointmentPayload(appointment, doctor, patient, slot)
	return h.dispatchSync(c, payload, sourceClient)
}

func (h *AppointmentHandler) dispatchSync(c echo.Context, payload entitysync.AppointmentPayload, sourceClient string) bool {
	log := logger.FromEcho(c)
	ctx := c.Request().Context()

	err := h.synchronizer.SyncToCounterpart(ctx, payload, sourceClient, h.masterClient)
	if err == nil {
		return true
	}

	var syncErr *entitysync.SyncError
	if !errors.As(err, &syncErr) {
		log.Error("Appointment sync rejected", zap.Error(err))
		return false
	}

	log.Warn("Appointment sync to master failed, deferring retry",
		zap.String("global_id", payload.GlobalID), zap.Error(err))
	h.retries.Enqueue(ctx, "appointment", func(retryCtx context.Context) error {
		return h.synchronizer.SyncToCounterpart(retryCtx, payload, sourceClient, h.masterClient)
	})
	return false
}

func (h *AppointmentHandler) appointmentPayload(appointment *model.Appointment, doctor *model.Doctor, patient *model.Patient, slot *model.TimeSlot) entitysync.AppointmentPayload {
	return entitysync.AppointmentPayload{
		GlobalID: appointment.GlobalID,
		Status:   appointment.Status,
		Notes:    appointment.Notes,
		BookedAt: appointment.BookedAt,
		Doctor:   doctorPayloadFrom(doctor),
		Patient:  patientPayloadFrom(patient),
		Slot: entitysync.SlotPayload{
			GlobalID:  slot.GlobalID,
			StartTime: slot.StartTime,
			EndTime:   slot.EndTime,
			Capacity:  slot.Capacity,
		},
	}
}
