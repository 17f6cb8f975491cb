package model

import (
	"time"

	"gorm.io/gorm"
)

// Appointment status values
const (
	AppointmentBooked    = "booked"
	AppointmentConfirmed = "confirmed"
	AppointmentCancelled = "cancelled"
)

// Doctor is a practitioner row inside one partition. GlobalID is assigned
// once at first creation and is the only key valid across partitions; ID is
// meaningless outside the partition that issued it.
type Doctor struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	GlobalID       string         `json:"global_id" gorm:"type:varchar(36);uniqueIndex;not null"`
	Name           string         `json:"name" gorm:"type:varchar(200);not null"`
	Specialization string         `json:"specialization" gorm:"type:varchar(100)"`
	Qualification  string         `json:"qualification" gorm:"type:varchar(200)"`
	Email          string         `json:"email" gorm:"type:varchar(100)"`
	Phone          string         `json:"phone" gorm:"type:varchar(20)"`
	Published      bool           `json:"published" gorm:"default:false"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`
}

// Patient is a patient row inside one partition.
type Patient struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	GlobalID  string         `json:"global_id" gorm:"type:varchar(36);uniqueIndex;not null"`
	FirstName string         `json:"first_name" gorm:"type:varchar(100);not null"`
	LastName  string         `json:"last_name" gorm:"type:varchar(100)"`
	Email     string         `json:"email" gorm:"type:varchar(100)"`
	Phone     string         `json:"phone" gorm:"type:varchar(20)"`
	Gender    string         `json:"gender" gorm:"type:varchar(10)"`
	BirthDate *time.Time     `json:"birth_date"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TimeSlot is a bookable window with a remaining-capacity counter. The
// counter moves exactly once per booking state transition.
type TimeSlot struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	GlobalID  string    `json:"global_id" gorm:"type:varchar(36);uniqueIndex;not null"`
	DoctorID  uint      `json:"doctor_id" gorm:"index;not null"`
	StartTime time.Time `json:"start_time" gorm:"index;not null"`
	EndTime   time.Time `json:"end_time"`
	Capacity  int       `json:"capacity" gorm:"not null;default:1"`
	Remaining int       `json:"remaining" gorm:"not null;default:1"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Appointment links a patient to a doctor's slot inside one partition.
// DoctorID, PatientID and SlotID are partition-local and are re-resolved by
// GlobalID when the row is projected into another partition.
type Appointment struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	GlobalID  string         `json:"global_id" gorm:"type:varchar(36);uniqueIndex;not null"`
	DoctorID  uint           `json:"doctor_id" gorm:"index;not null"`
	PatientID uint           `json:"patient_id" gorm:"index;not null"`
	SlotID    uint           `json:"slot_id" gorm:"index;not null"`
	Status    string         `json:"status" gorm:"type:varchar(20);not null;default:'booked'"`
	Notes     string         `json:"notes" gorm:"type:text"`
	BookedAt  time.Time      `json:"booked_at"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// NumberSequence drives human-readable auto numbering (invoices, patient
// files) inside one tenant partition.
type NumberSequence struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Kind      string    `json:"kind" gorm:"type:varchar(50);uniqueIndex;not null"`
	Prefix    string    `json:"prefix" gorm:"type:varchar(10)"`
	NextValue int64     `json:"next_value" gorm:"not null;default:1"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StaffUser is a tenant-partition staff account. The first one is seeded
// with the admin role during provisioning.
type StaffUser struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Email     string         `json:"email" gorm:"type:varchar(100);uniqueIndex;not null"`
	Name      string         `json:"name" gorm:"type:varchar(100)"`
	Role      string         `json:"role" gorm:"type:varchar(50);not null;default:'member'"`
	Active    bool           `json:"active" gorm:"default:true"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TenantModels lists every model migrated into a tenant partition schema
func TenantModels() []interface{} {
	return []interface{}{
		&BusinessProfile{},
		&ClinicLocation{},
		&Doctor{},
		&Patient{},
		&TimeSlot{},
		&Appointment{},
		&NumberSequence{},
		&StaffUser{},
	}
}

// MasterModels lists every model migrated into the master schema
func MasterModels() []interface{} {
	return []interface{}{
		&ClinicPartition{},
		&ProvisionRequest{},
		&BusinessProfile{},
		&ClinicLocation{},
		&Doctor{},
		&Patient{},
		&TimeSlot{},
		&Appointment{},
	}
}
