package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeebendu/ch-clinic-admin-sub000/internal/model"
	"github.com/jeebendu/ch-clinic-admin-sub000/internal/schema"
	"gorm.io/gorm"
)

// GormStores bundles the GORM-backed store implementations. Every call
// routes through the schema router, so the partition each query hits is
// whatever tenant the passed context carries.
type GormStores struct {
	Doctors      DoctorStore
	Patients     PatientStore
	Slots        SlotStore
	Appointments AppointmentStore
}

// NewGormStores creates the store set over a schema router
func NewGormStores(router *schema.Router) *GormStores {
	return &GormStores{
		Doctors:      &gormDoctorStore{router: router},
		Patients:     &gormPatientStore{router: router},
		Slots:        &gormSlotStore{router: router},
		Appointments: &gormAppointmentStore{router: router},
	}
}

type gormDoctorStore struct {
	router *schema.Router
}

func (s *gormDoctorStore) FindByGlobalID(ctx context.Context, globalID string) (*model.Doctor, error) {
	var doctor model.Doctor
	found := false
	err := s.router.WithTenant(ctx, func(db *gorm.DB) error {
		result := db.Where("global_id = ?", globalID).First(&doctor)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil
		}
		if result.Error != nil {
			return result.Error
		}
		found = true
		return nil
	})
	if err != nil || !found {
		return nil, err
	}
	return &doctor, nil
}

func (s *gormDoctorStore) FindByID(ctx context.Context, id uint) (*model.Doctor, error) {
	var doctor model.Doctor
	found := false
	err := s.router.WithTenant(ctx, func(db *gorm.DB) error {
		result := db.First(&doctor, id)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil
		}
		if result.Error != nil {
			return result.Error
		}
		found = true
		return nil
	})
	if err != nil || !found {
		return nil, err
	}
	return &doctor, nil
}

func (s *gormDoctorStore) Save(ctx context.Context, doctor *model.Doctor) error {
	return s.router.WithTenant(ctx, func(db *gorm.DB) error {
		return db.Save(doctor).Error
	})
}

type gormPatientStore struct {
	router *schema.Router
}

func (s *gormPatientStore) FindByGlobalID(ctx context.Context, globalID string) (*model.Patient, error) {
	var patient model.Patient
	found := false
	err := s.router.WithTenant(ctx, func(db *gorm.DB) error {
		result := db.Where("global_id = ?", globalID).First(&patient)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil
		}
		if result.Error != nil {
			return result.Error
		}
		found = true
		return nil
	})
	if err != nil || !found {
		return nil, err
	}
	return &patient, nil
}

func (s *gormPatientStore) FindByID(ctx context.Context, id uint) (*model.Patient, error) {
	var patient model.Patient
	found := false
	err := s.router.WithTenant(ctx, func(db *gorm.DB) error {
		result := db.First(&patient, id)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil
		}
		if result.Error != nil {
			return result.Error
		}
		found = true
		return nil
	})
	if err != nil || !found {
		return nil, err
	}
	return &patient, nil
}

func (s *gormPatientStore) Save(ctx context.Context, patient *model.Patient) error {
	return s.router.WithTenant(ctx, func(db *gorm.DB) error {
		return db.Save(patient).Error
	})
}

type gormSlotStore struct {
	router *schema.Router
}

func (s *gormSlotStore) FindByGlobalID(ctx context.Context, globalID string) (*model.TimeSlot, error) {
	var slot model.TimeSlot
	found := false
	err := s.router.WithTenant(ctx, func(db *gorm.DB) error {
		result := db.Where("global_id = ?", globalID).First(&slot)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil
		}
		if result.Error != nil {
			return result.Error
		}
		found = true
		return nil
	})
	if err != nil || !found {
		return nil, err
	}
	return &slot, nil
}

func (s *gormSlotStore) FindByID(ctx context.Context, id uint) (*model.TimeSlot, error) {
	var slot model.TimeSlot
	found := false
	err := s.router.WithTenant(ctx, func(db *gorm.DB) error {
		result := db.First(&slot, id)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil
		}
		if result.Error != nil {
			return result.Error
		}
		found = true
		return nil
	})
	if err != nil || !found {
		return nil, err
	}
	return &slot, nil
}

func (s *gormSlotStore) Save(ctx context.Context, slot *model.TimeSlot) error {
	return s.router.WithTenant(ctx, func(db *gorm.DB) error {
		return db.Save(slot).Error
	})
}

func (s *gormSlotStore) AdjustRemaining(ctx context.Context, globalID string, delta int) error {
	return s.router.WithTenant(ctx, func(db *gorm.DB) error {
		query := db.Model(&model.TimeSlot{}).Where("global_id = ?", globalID)
		if delta < 0 {
			// The floor lives in the UPDATE itself, so two concurrent
			// decrements cannot both pass a stale read of remaining.
			query = query.Where("remaining + ? >= 0", delta)
		}
		result := query.UpdateColumn("remaining", gorm.Expr("remaining + ?", delta))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			if delta < 0 {
				return fmt.Errorf("slot %s: %w", globalID, ErrSlotCapacityExhausted)
			}
			return fmt.Errorf("slot %s not found", globalID)
		}
		return nil
	})
}

type gormAppointmentStore struct {
	router *schema.Router
}

func (s *gormAppointmentStore) FindByGlobalID(ctx context.Context, globalID string) (*model.Appointment, error) {
	var appointment model.Appointment
	found := false
	err := s.router.WithTenant(ctx, func(db *gorm.DB) error {
		result := db.Where("global_id = ?", globalID).First(&appointment)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil
		}
		if result.Error != nil {
			return result.Error
		}
		found = true
		return nil
	})
	if err != nil || !found {
		return nil, err
	}
	return &appointment, nil
}

func (s *gormAppointmentStore) Save(ctx context.Context, appointment *model.Appointment) error {
	return s.router.WithTenant(ctx, func(db *gorm.DB) error {
		return db.Save(appointment).Error
	})
}
