// Package sync projects committed entities from one partition into another.
//
// Each synchronizer takes a flat payload describing a row that already
// committed in the source partition and upserts the matching projection in
// the target partition, keyed by GlobalID. Partition-local ids never cross
// partitions; every reference in a payload is a GlobalID re-resolved inside
// the target. A failed sync is reported to the caller as a *SyncError so it
// can be retried later; it never rolls back the source write.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jeebendu/ch-clinic-admin-sub000/internal/model"
)

// ErrMissingGlobalID indicates a payload without its correlation key. That
// is a programming error in the caller, not a retryable condition.
var ErrMissingGlobalID = errors.New("sync payload has no global id")

// ErrSlotCapacityExhausted indicates a decrement would drive a slot's
// remaining counter below zero. The counter never goes negative; concurrent
// bookings race on this guard, not on a read-then-write check.
var ErrSlotCapacityExhausted = errors.New("slot capacity exhausted")

// SyncError wraps a target-partition failure. Callers log it, schedule a
// retry and carry on; the source write already committed.
type SyncError struct {
	Entity   string
	GlobalID string
	Source   string
	Target   string
	Err      error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s %s from %s to %s: %v", e.Entity, e.GlobalID, e.Source, e.Target, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// DoctorPayload carries a doctor's mutable fields across partitions
type DoctorPayload struct {
	GlobalID       string `json:"global_id"`
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
	Qualification  string `json:"qualification"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Published      bool   `json:"published"`
}

// PatientPayload carries a patient's mutable fields across partitions
type PatientPayload struct {
	GlobalID  string     `json:"global_id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	Gender    string     `json:"gender"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
}

// SlotPayload identifies a doctor's time slot by GlobalID plus enough data
// to materialize it in a partition that has not seen it yet.
type SlotPayload struct {
	GlobalID  string    `json:"global_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Capacity  int       `json:"capacity"`
}

// AppointmentPayload carries an appointment and, nested, the entities it
// references. References travel as GlobalIDs only; the local DoctorID,
// PatientID and SlotID of the source partition are deliberately absent. The
// payload carries no prior state either: the state transition the target
// sees is derived from the target's own existing row.
type AppointmentPayload struct {
	GlobalID string         `json:"global_id"`
	Status   string         `json:"status"`
	Notes    string         `json:"notes"`
	BookedAt time.Time      `json:"booked_at"`
	Doctor   DoctorPayload  `json:"doctor"`
	Patient  PatientPayload `json:"patient"`
	Slot     SlotPayload    `json:"slot"`
}

// DoctorStore reads and writes doctor rows in the partition the context is
// scoped to. A nil row with nil error means not found.
type DoctorStore interface {
	FindByGlobalID(ctx context.Context, globalID string) (*model.Doctor, error)
	FindByID(ctx context.Context, id uint) (*model.Doctor, error)
	Save(ctx context.Context, doctor *model.Doctor) error
}

// PatientStore reads and writes patient rows in the context's partition
type PatientStore interface {
	FindByGlobalID(ctx context.Context, globalID string) (*model.Patient, error)
	FindByID(ctx context.Context, id uint) (*model.Patient, error)
	Save(ctx context.Context, patient *model.Patient) error
}

// SlotStore reads and writes time slots in the context's partition
type SlotStore interface {
	FindByGlobalID(ctx context.Context, globalID string) (*model.TimeSlot, error)
	FindByID(ctx context.Context, id uint) (*model.TimeSlot, error)
	Save(ctx context.Context, slot *model.TimeSlot) error
	// AdjustRemaining atomically moves the remaining-capacity counter
	AdjustRemaining(ctx context.Context, globalID string, delta int) error
}

// AppointmentStore reads and writes appointments in the context's partition
type AppointmentStore interface {
	FindByGlobalID(ctx context.Context, globalID string) (*model.Appointment, error)
	Save(ctx context.Context, appointment *model.Appointment) error
}
