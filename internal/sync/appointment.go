package sync

import (
	"context"

	"github.com/jeebendu/ch-clinic-admin-sub000/internal/model"
	"github.com/jeebendu/ch-clinic-admin-sub000/internal/tenantctx"
	appmetrics "github.com/jeebendu/ch-clinic-admin-sub000/prometheus"
	"go.uber.org/zap"
)

// AppointmentSynchronizer projects appointments between partitions. An
// appointment references a doctor, a patient and a time slot; each reference
// is re-resolved by its own GlobalID inside the target partition, finding or
// creating the referenced row there. Source-partition local ids never cross.
type AppointmentSynchronizer struct {
	appointments AppointmentStore
	doctors      DoctorStore
	patients     PatientStore
	slots        SlotStore
	log          *zap.Logger
}

// slotAdjustment records one applied capacity move so it can be undone if a
// later part of the same sync fails.
type slotAdjustment struct {
	slotGlobalID string
	delta        int
}

// NewAppointmentSynchronizer creates an appointment synchronizer
func NewAppointmentSynchronizer(appointments AppointmentStore, doctors DoctorStore, patients PatientStore, slots SlotStore, log *zap.Logger) *AppointmentSynchronizer {
	return &AppointmentSynchronizer{
		appointments: appointments,
		doctors:      doctors,
		patients:     patients,
		slots:        slots,
		log:          log,
	}
}

// SyncToCounterpart upserts the appointment into the target partition and
// moves the target slot's remaining-capacity counter exactly once per state
// transition. A decrement applied before a failing save is compensated
// before the error is reported.
func (s *AppointmentSynchronizer) SyncToCounterpart(ctx context.Context, payload AppointmentPayload, source, target string) error {
	if payload.GlobalID == "" {
		return ErrMissingGlobalID
	}

	targetCtx := tenantctx.WithTenant(ctx, target)

	failure := func(err error) error {
		appmetrics.RecordSync("appointment", "failure")
		return &SyncError{Entity: "appointment", GlobalID: payload.GlobalID, Source: source, Target: target, Err: err}
	}

	// Lookup first: the existing target row decides which state transition,
	// if any, the capacity counter sees.
	existing, err := s.appointments.FindByGlobalID(targetCtx, payload.GlobalID)
	if err != nil {
		return failure(err)
	}

	doctor, err := s.resolveDoctor(targetCtx, payload.Doctor)
	if err != nil {
		return failure(err)
	}

	patient, err := s.resolvePatient(targetCtx, payload.Patient)
	if err != nil {
		return failure(err)
	}

	slot, err := s.resolveSlot(targetCtx, payload.Slot, doctor.ID)
	if err != nil {
		return failure(err)
	}

	row := existing
	if row == nil {
		row = &model.Appointment{GlobalID: payload.GlobalID, BookedAt: payload.BookedAt}
	}

	adjustments, err := s.applyCapacityTransition(targetCtx, existing, slot, payload.Status)
	if err != nil {
		return failure(err)
	}

	row.DoctorID = doctor.ID
	row.PatientID = patient.ID
	row.SlotID = slot.ID
	row.Status = payload.Status
	row.Notes = payload.Notes

	if err := s.appointments.Save(targetCtx, row); err != nil {
		s.compensate(targetCtx, adjustments)
		return failure(err)
	}

	appmetrics.RecordSync("appointment", "success")
	s.log.Debug("appointment synced",
		zap.String("global_id", payload.GlobalID),
		zap.String("status", payload.Status),
		zap.String("source", source),
		zap.String("target", target))
	return nil
}

// applyCapacityTransition moves the remaining counter for the transition the
// target partition is about to see, and returns the applied moves so a
// failing save can undo them.
func (s *AppointmentSynchronizer) applyCapacityTransition(ctx context.Context, existing *model.Appointment, slot *model.TimeSlot, newStatus string) ([]slotAdjustment, error) {
	var adjustments []slotAdjustment

	apply := func(globalID string, delta int) error {
		if err := s.slots.AdjustRemaining(ctx, globalID, delta); err != nil {
			s.compensate(ctx, adjustments)
			return err
		}
		adjustments = append(adjustments, slotAdjustment{slotGlobalID: globalID, delta: delta})
		return nil
	}

	switch {
	case existing == nil && newStatus != model.AppointmentCancelled:
		// First projection of an active booking into this partition
		if err := apply(slot.GlobalID, -1); err != nil {
			return nil, err
		}

	case existing != nil && existing.Status != model.AppointmentCancelled && newStatus == model.AppointmentCancelled:
		// Cancellation frees the seat
		if err := apply(slot.GlobalID, +1); err != nil {
			return nil, err
		}

	case existing != nil && existing.Status == model.AppointmentCancelled && newStatus != model.AppointmentCancelled:
		// Rebooking takes the seat again
		if err := apply(slot.GlobalID, -1); err != nil {
			return nil, err
		}

	case existing != nil && existing.SlotID != slot.ID && existing.Status != model.AppointmentCancelled && newStatus != model.AppointmentCancelled:
		// Reschedule away: free the old slot, take the new one
		old, err := s.slots.FindByID(ctx, existing.SlotID)
		if err != nil {
			return nil, err
		}
		if old != nil {
			if err := apply(old.GlobalID, +1); err != nil {
				return nil, err
			}
		}
		if err := apply(slot.GlobalID, -1); err != nil {
			return nil, err
		}
	}

	return adjustments, nil
}

func (s *AppointmentSynchronizer) compensate(ctx context.Context, adjustments []slotAdjustment) {
	for i := len(adjustments) - 1; i >= 0; i-- {
		adj := adjustments[i]
		if err := s.slots.AdjustRemaining(ctx, adj.slotGlobalID, -adj.delta); err != nil {
			s.log.Error("slot capacity compensation failed",
				zap.String("slot_global_id", adj.slotGlobalID),
				zap.Int("delta", -adj.delta),
				zap.Error(err))
		}
	}
}

func (s *AppointmentSynchronizer) resolveDoctor(ctx context.Context, payload DoctorPayload) (*model.Doctor, error) {
	if payload.GlobalID == "" {
		return nil, ErrMissingGlobalID
	}
	doctor, err := s.doctors.FindByGlobalID(ctx, payload.GlobalID)
	if err != nil {
		return nil, err
	}
	if doctor != nil {
		return doctor, nil
	}
	doctor = &model.Doctor{
		GlobalID:       payload.GlobalID,
		Name:           payload.Name,
		Specialization: payload.Specialization,
		Qualification:  payload.Qualification,
		Email:          payload.Email,
		Phone:          payload.Phone,
		Published:      payload.Published,
	}
	if err := s.doctors.Save(ctx, doctor); err != nil {
		return nil, err
	}
	return doctor, nil
}

func (s *AppointmentSynchronizer) resolvePatient(ctx context.Context, payload PatientPayload) (*model.Patient, error) {
	if payload.GlobalID == "" {
		return nil, ErrMissingGlobalID
	}
	patient, err := s.patients.FindByGlobalID(ctx, payload.GlobalID)
	if err != nil {
		return nil, err
	}
	if patient != nil {
		return patient, nil
	}
	patient = &model.Patient{
		GlobalID:  payload.GlobalID,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
		Phone:     payload.Phone,
		Gender:    payload.Gender,
		BirthDate: payload.BirthDate,
	}
	if err := s.patients.Save(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

func (s *AppointmentSynchronizer) resolveSlot(ctx context.Context, payload SlotPayload, doctorID uint) (*model.TimeSlot, error) {
	if payload.GlobalID == "" {
		return nil, ErrMissingGlobalID
	}
	slot, err := s.slots.FindByGlobalID(ctx, payload.GlobalID)
	if err != nil {
		return nil, err
	}
	if slot != nil {
		return slot, nil
	}
	capacity := payload.Capacity
	if capacity < 1 {
		capacity = 1
	}
	slot = &model.TimeSlot{
		GlobalID:  payload.GlobalID,
		DoctorID:  doctorID,
		StartTime: payload.StartTime,
		EndTime:   payload.EndTime,
		Capacity:  capacity,
		Remaining: capacity,
	}
	if err := s.slots.Save(ctx, slot); err != nil {
		return nil, err
	}
	return slot, nil
}

