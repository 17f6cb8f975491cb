package sync

import (
	"context"
	"fmt"

	"github.com/jeebendu/ch-clinic-admin-sub000/internal/model"
	"github.com/jeebendu/ch-clinic-admin-sub000/internal/tenantctx"
)

// memDB is an in-memory stand-in for the schema-routed stores. Each tenant
// gets its own partition map; the tenant is read from the context exactly
// like the GORM stores read it.
type memDB struct {
	nextID     uint
	partitions map[string]*memPartition
	failSave   map[string]error // "entity:tenant" -> injected error
}

type memPartition struct {
	doctors      map[string]*model.Doctor
	patients     map[string]*model.Patient
	slots        map[string]*model.TimeSlot
	appointments map[string]*model.Appointment
}

func newMemDB() *memDB {
	return &memDB{
		partitions: make(map[string]*memPartition),
		failSave:   make(map[string]error),
	}
}

func (m *memDB) failOn(entity, tenant string, err error) {
	m.failSave[entity+":"+tenant] = err
}

func (m *memDB) injected(entity, tenant string) error {
	return m.failSave[entity+":"+tenant]
}

func (m *memDB) partition(ctx context.Context) (*memPartition, string, error) {
	tenant, err := tenantctx.MustFromContext(ctx)
	if err != nil {
		return nil, "", err
	}
	p, ok := m.partitions[tenant]
	if !ok {
		p = &memPartition{
			doctors:      make(map[string]*model.Doctor),
			patients:     make(map[string]*model.Patient),
			slots:        make(map[string]*model.TimeSlot),
			appointments: make(map[string]*model.Appointment),
		}
		m.partitions[tenant] = p
	}
	return p, tenant, nil
}

func (m *memDB) assignID(id uint) uint {
	if id != 0 {
		return id
	}
	m.nextID++
	return m.nextID
}

// stores returns implementations of every store interface over this memDB
func (m *memDB) stores() (DoctorStore, PatientStore, SlotStore, AppointmentStore) {
	return &memDoctorStore{m}, &memPatientStore{m}, &memSlotStore{m}, &memAppointmentStore{m}
}

type memDoctorStore struct{ db *memDB }

func (s *memDoctorStore) FindByGlobalID(ctx context.Context, globalID string) (*model.Doctor, error) {
	p, _, err := s.db.partition(ctx)
	if err != nil {
		return nil, err
	}
	if d, ok := p.doctors[globalID]; ok {
		copied := *d
		return &copied, nil
	}
	return nil, nil
}

func (s *memDoctorStore) FindByID(ctx context.Context, id uint) (*model.Doctor, error) {
	p, _, err := s.db.partition(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range p.doctors {
		if d.ID == id {
			copied := *d
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memDoctorStore) Save(ctx context.Context, doctor *model.Doctor) error {
	p, tenant, err := s.db.partition(ctx)
	if err != nil {
		return err
	}
	if err := s.db.injected("doctor", tenant); err != nil {
		return err
	}
	doctor.ID = s.db.assignID(doctor.ID)
	copied := *doctor
	p.doctors[doctor.GlobalID] = &copied
	return nil
}

type memPatientStore struct{ db *memDB }

func (s *memPatientStore) FindByGlobalID(ctx context.Context, globalID string) (*model.Patient, error) {
	p, _, err := s.db.partition(ctx)
	if err != nil {
		return nil, err
	}
	if row, ok := p.patients[globalID]; ok {
		copied := *row
		return &copied, nil
	}
	return nil, nil
}

func (s *memPatientStore) FindByID(ctx context.Context, id uint) (*model.Patient, error) {
	p, _, err := s.db.partition(ctx)
	if err != nil {
		return nil, err
	}
	for _, row := range p.patients {
		if row.ID == id {
			copied := *row
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memPatientStore) Save(ctx context.Context, patient *model.Patient) error {
	p, tenant, err := s.db.partition(ctx)
	if err != nil {
		return err
	}
	if err := s.db.injected("patient", tenant); err != nil {
		return err
	}
	patient.ID = s.db.assignID(patient.ID)
	copied := *patient
	p.patients[patient.GlobalID] = &copied
	return nil
}

type memSlotStore struct{ db *memDB }

func (s *memSlotStore) FindByGlobalID(ctx context.Context, globalID string) (*model.TimeSlot, error) {
	p, _, err := s.db.partition(ctx)
	if err != nil {
		return nil, err
	}
	if row, ok := p.slots[globalID]; ok {
		copied := *row
		return &copied, nil
	}
	return nil, nil
}

func (s *memSlotStore) FindByID(ctx context.Context, id uint) (*model.TimeSlot, error) {
	p, _, err := s.db.partition(ctx)
	if err != nil {
		return nil, err
	}
	for _, row := range p.slots {
		if row.ID == id {
			copied := *row
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memSlotStore) Save(ctx context.Context, slot *model.TimeSlot) error {
	p, tenant, err := s.db.partition(ctx)
	if err != nil {
		return err
	}
	if err := s.db.injected("slot", tenant); err != nil {
		return err
	}
	slot.ID = s.db.assignID(slot.ID)
	copied := *slot
	p.slots[slot.GlobalID] = &copied
	return nil
}

func (s *memSlotStore) AdjustRemaining(ctx context.Context, globalID string, delta int) error {
	p, tenant, err := s.db.partition(ctx)
	if err != nil {
		return err
	}
	if err := s.db.injected("slot_adjust", tenant); err != nil {
		return err
	}
	slot, ok := p.slots[globalID]
	if !ok {
		return fmt.Errorf("slot %s not found", globalID)
	}
	if delta < 0 && slot.Remaining+delta < 0 {
		return fmt.Errorf("slot %s: %w", globalID, ErrSlotCapacityExhausted)
	}
	slot.Remaining += delta
	return nil
}

type memAppointmentStore struct{ db *memDB }

func (s *memAppointmentStore) FindByGlobalID(ctx context.Context, globalID string) (*model.Appointment, error) {
	p, _, err := s.db.partition(ctx)
	if err != nil {
		return nil, err
	}
	if row, ok := p.appointments[globalID]; ok {
		copied := *row
		return &copied, nil
	}
	return nil, nil
}

func (s *memAppointmentStore) Save(ctx context.Context, appointment *model.Appointment) error {
	p, tenant, err := s.db.partition(ctx)
	if err != nil {
		return err
	}
	if err := s.db.injected("appointment", tenant); err != nil {
		return err
	}
	appointment.ID = s.db.assignID(appointment.ID)
	copied := *appointment
	p.appointments[appointment.GlobalID] = &copied
	return nil
}
