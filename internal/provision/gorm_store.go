package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeebendu/ch-clinic-admin-sub000/internal/model"
	"github.com/jeebendu/ch-clinic-admin-sub000/internal/schema"
	"github.com/jeebendu/ch-clinic-admin-sub000/internal/tenantctx"
	"gorm.io/gorm"
)

// GormMasterStore persists registry rows in the master partition. Every
// call pins the master schema regardless of what tenant the caller's
// context carries.
type GormMasterStore struct {
	router       *schema.Router
	masterClient string
}

// NewGormMasterStore creates the master-partition store
func NewGormMasterStore(router *schema.Router, masterClient string) *GormMasterStore {
	return &GormMasterStore{router: router, masterClient: masterClient}
}

func (s *GormMasterStore) withMaster(ctx context.Context, fn func(db *gorm.DB) error) error {
	return s.router.WithTenant(tenantctx.WithTenant(ctx, s.masterClient), fn)
}

func (s *GormMasterStore) FindRequest(ctx context.Context, requestID uint) (*model.ProvisionRequest, error) {
	var request model.ProvisionRequest
	found := false
	err := s.withMaster(ctx, func(db *gorm.DB) error {
		result := db.First(&request, requestID)
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
	return &request, nil
}

func (s *GormMasterStore) PartitionExists(ctx context.Context, clientID string) (bool, error) {
	var count int64
	err := s.withMaster(ctx, func(db *gorm.DB) error {
		return db.Model(&model.ClinicPartition{}).Where("client_id = ?", clientID).Count(&count).Error
	})
	return count > 0, err
}

func (s *GormMasterStore) CreatePartition(ctx context.Context, partition *model.ClinicPartition) error {
	return s.withMaster(ctx, func(db *gorm.DB) error {
		return db.Create(partition).Error
	})
}

func (s *GormMasterStore) DeletePartition(ctx context.Context, id uint) error {
	return s.withMaster(ctx, func(db *gorm.DB) error {
		return db.Unscoped().Delete(&model.ClinicPartition{}, id).Error
	})
}

func (s *GormMasterStore) CreateProfile(ctx context.Context, profile *model.BusinessProfile) error {
	return s.withMaster(ctx, func(db *gorm.DB) error {
		return db.Create(profile).Error
	})
}

func (s *GormMasterStore) DeleteProfile(ctx context.Context, id uint) error {
	return s.withMaster(ctx, func(db *gorm.DB) error {
		return db.Delete(&model.BusinessProfile{}, id).Error
	})
}

func (s *GormMasterStore) CreateLocation(ctx context.Context, location *model.ClinicLocation) error {
	return s.withMaster(ctx, func(db *gorm.DB) error {
		return db.Create(location).Error
	})
}

func (s *GormMasterStore) DeleteLocation(ctx context.Context, id uint) error {
	return s.withMaster(ctx, func(db *gorm.DB) error {
		return db.Delete(&model.ClinicLocation{}, id).Error
	})
}

func (s *GormMasterStore) ApproveRequest(ctx context.Context, requestID uint, clientID string) error {
	return s.withMaster(ctx, func(db *gorm.DB) error {
		if err := db.Model(&model.ProvisionRequest{}).
			Where("id = ?", requestID).
			Update("status", model.RequestApproved).Error; err != nil {
			return err
		}
		return db.Model(&model.ClinicPartition{}).
			Where("client_id = ?", clientID).
			Update("status", model.PartitionActive).Error
	})
}

// GormTenantProvisioner materializes and seeds tenant schemas
type GormTenantProvisioner struct {
	db     *gorm.DB
	router *schema.Router
}

// NewGormTenantProvisioner creates the tenant provisioner
func NewGormTenantProvisioner(db *gorm.DB, router *schema.Router) *GormTenantProvisioner {
	return &GormTenantProvisioner{db: db, router: router}
}

// CreateSchema creates the tenant's schema if needed and applies the
// baseline migrations inside it. Reruns for the same clientID reuse the
// schema.
func (p *GormTenantProvisioner) CreateSchema(ctx context.Context, clientID string) error {
	schemaName := p.router.SchemaFor(clientID)
	if err := schema.ValidateSchemaName(schemaName); err != nil {
		return err
	}

	if err := p.db.WithContext(ctx).Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %q", schemaName)).Error; err != nil {
		return fmt.Errorf("create schema %q: %w", schemaName, err)
	}

	// Migrations run on a connection already switched to the new schema,
	// so the tables land there.
	tenantCtx := tenantctx.WithTenant(ctx, clientID)
	return p.router.WithTenant(tenantCtx, func(db *gorm.DB) error {
		if err := db.AutoMigrate(model.TenantModels()...); err != nil {
			return fmt.Errorf("migrate schema %q: %w", schemaName, err)
		}
		return nil
	})
}

// SeedTenant writes the initial rows of a fresh partition: the clinic's own
// profile copy, a default location, number sequences, and the first admin
// staff account.
func (p *GormTenantProvisioner) SeedTenant(ctx context.Context, request *model.ProvisionRequest) error {
	tenantCtx := tenantctx.WithTenant(ctx, request.ClientID)
	return p.router.WithTenant(tenantCtx, func(db *gorm.DB) error {
		profile := &model.BusinessProfile{
			ClientID: request.ClientID,
			Name:     request.ClinicTitle,
			Email:    request.RequesterEmail,
			Phone:    request.RequesterPhone,
		}
		if err := db.Create(profile).Error; err != nil {
			return fmt.Errorf("seed business profile: %w", err)
		}

		location := &model.ClinicLocation{
			ClientID:  request.ClientID,
			Name:      "Main Branch",
			IsDefault: true,
		}
		if err := db.Create(location).Error; err != nil {
			return fmt.Errorf("seed default location: %w", err)
		}

		sequences := []model.NumberSequence{
			{Kind: "appointment", Prefix: "APT", NextValue: 1},
			{Kind: "invoice", Prefix: "INV", NextValue: 1},
			{Kind: "patient_file", Prefix: "PAT", NextValue: 1},
		}
		for i := range sequences {
			if err := db.Create(&sequences[i]).Error; err != nil {
				return fmt.Errorf("seed number sequence %s: %w", sequences[i].Kind, err)
			}
		}

		admin := &model.StaffUser{
			Email:  request.RequesterEmail,
			Name:   request.RequesterName,
			Role:   "admin",
			Active: true,
		}
		if err := db.Create(admin).Error; err != nil {
			return fmt.Errorf("seed admin user: %w", err)
		}
		return nil
	})
}
