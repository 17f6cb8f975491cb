package model

import (
	"time"

	"gorm.io/gorm"
)

// Partition status values
const (
	PartitionProvisioning = "provisioning"
	PartitionActive       = "active"
	PartitionSuspended    = "suspended"
)

// Provision request status values
const (
	RequestPending  = "Pending"
	RequestApproved = "Approved"
	RequestRejected = "Rejected"
)

// ClinicPartition is the master-partition registry row for one tenant.
// ClientID resolves to SchemaName whenever a request needs routing.
type ClinicPartition struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	ClientID     string         `json:"client_id" gorm:"type:varchar(63);uniqueIndex;not null"`
	DisplayTitle string         `json:"display_title" gorm:"type:varchar(200)"`
	Status       string         `json:"status" gorm:"type:varchar(20);not null;default:'provisioning'"`
	SchemaName   string         `json:"schema_name" gorm:"type:varchar(63);not null"`
	Subdomain    string         `json:"subdomain" gorm:"type:varchar(100);uniqueIndex"`
	LogoURL      string         `json:"logo_url" gorm:"type:text"`
	FaviconURL   string         `json:"favicon_url" gorm:"type:text"`
	WebsiteURL   string         `json:"website_url" gorm:"type:text"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}

// ProvisionRequest is a signup awaiting approval. It stays Pending when a
// provisioning run fails, so the run can be retried.
type ProvisionRequest struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	ClientID       string         `json:"client_id" gorm:"type:varchar(63);index;not null"`
	RequesterName  string         `json:"requester_name" gorm:"type:varchar(100)"`
	RequesterEmail string         `json:"requester_email" gorm:"type:varchar(100);not null"`
	RequesterPhone string         `json:"requester_phone" gorm:"type:varchar(20)"`
	ClinicTitle    string         `json:"clinic_title" gorm:"type:varchar(200);not null"`
	Subdomain      string         `json:"subdomain" gorm:"type:varchar(100)"`
	Status         string         `json:"status" gorm:"type:varchar(20);not null;default:'Pending'"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`
}

// BusinessProfile holds a clinic's public-facing profile. The master
// partition keeps one row per tenant; each tenant partition keeps a cached
// copy of its own.
type BusinessProfile struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	ClientID    string    `json:"client_id" gorm:"type:varchar(63);index;not null"`
	Name        string    `json:"name" gorm:"type:varchar(200);not null"`
	Email       string    `json:"email" gorm:"type:varchar(100)"`
	Phone       string    `json:"phone" gorm:"type:varchar(20)"`
	Address     string    `json:"address" gorm:"type:text"`
	Description string    `json:"description" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ClinicLocation is a branch of a clinic. Every tenant starts with one
// default location created during provisioning.
type ClinicLocation struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ClientID  string    `json:"client_id" gorm:"type:varchar(63);index;not null"`
	Name      string    `json:"name" gorm:"type:varchar(200);not null"`
	Address   string    `json:"address" gorm:"type:text"`
	City      string    `json:"city" gorm:"type:varchar(100)"`
	IsDefault bool      `json:"is_default" gorm:"default:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
