// Package provision onboards a new tenant: registry rows in the master
// partition, a dedicated schema, seed data inside it, and the request
// status flip. The steps run strictly in order; when one fails, the
// compensations collected from the steps that already succeeded run in
// reverse, and the provision request stays Pending so the run can be
// retried.
package provision

import (
	"context"
	"fmt"

	"github.com/jeebendu/ch-clinic-admin-sub000/internal/model"
	appmetrics "github.com/jeebendu/ch-clinic-admin-sub000/prometheus"
	"go.uber.org/zap"
)

// Saga step names, in execution order
const (
	StepValidation     = "VALIDATION"
	StepDNSCreation    = "DNS_CREATION"
	StepMasterSetup    = "MASTER_SCHEMA_SETUP"
	StepSchemaCreation = "TENANT_SCHEMA_CREATION"
	StepDataInit       = "TENANT_DATA_INITIALIZATION"
	StepStatusUpdate   = "STATUS_UPDATE"
)

// MasterStore persists registry rows in the master partition
type MasterStore interface {
	FindRequest(ctx context.Context, requestID uint) (*model.ProvisionRequest, error)
	PartitionExists(ctx context.Context, clientID string) (bool, error)
	CreatePartition(ctx context.Context, partition *model.ClinicPartition) error
	DeletePartition(ctx context.Context, id uint) error
	CreateProfile(ctx context.Context, profile *model.BusinessProfile) error
	DeleteProfile(ctx context.Context, id uint) error
	CreateLocation(ctx context.Context, location *model.ClinicLocation) error
	DeleteLocation(ctx context.Context, id uint) error
	ApproveRequest(ctx context.Context, requestID uint, clientID string) error
}

// TenantProvisioner creates and seeds the physical tenant partition
type TenantProvisioner interface {
	// CreateSchema creates the schema and applies baseline migrations
	CreateSchema(ctx context.Context, clientID string) error
	// SeedTenant writes the initial rows inside the new partition
	SeedTenant(ctx context.Context, request *model.ProvisionRequest) error
}

// Registrar manages external subdomain records. A nil Registrar skips the
// DNS step entirely.
type Registrar interface {
	Create(ctx context.Context, clientID, subdomain string) (recordID string, err error)
	Delete(ctx context.Context, recordID string) error
}

// Progress tracks one run. It is owned exclusively by that run; nothing
// about it is shared between concurrent provisionings.
type Progress struct {
	ClientID       string
	CurrentStep    string
	CompletedSteps []string
	PartitionID    uint
	ProfileID      uint
	LocationID     uint
	DNSRecordID    string
	SchemaName     string
}

// Result reports the outcome of a provisioning run
type Result struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	FailedStep string `json:"failed_step,omitempty"`
	ClientID   string `json:"client_id,omitempty"`
}

// Saga orchestrates tenant provisioning
type Saga struct {
	master      MasterStore
	provisioner TenantProvisioner
	registrar   Registrar
	cache       *ExistsCache
	schemaFor   func(clientID string) string
	baseDomain  string
	log         *zap.Logger
}

type step struct {
	name       string
	run        func(ctx context.Context) error
	compensate func(ctx context.Context)
}

// NewSaga creates a provisioning saga. registrar may be nil; baseDomain is
// the platform domain tenant subdomains hang off.
func NewSaga(master MasterStore, provisioner TenantProvisioner, registrar Registrar, cache *ExistsCache, schemaFor func(string) string, baseDomain string, log *zap.Logger) *Saga {
	return &Saga{
		master:      master,
		provisioner: provisioner,
		registrar:   registrar,
		cache:       cache,
		schemaFor:   schemaFor,
		baseDomain:  baseDomain,
		log:         log,
	}
}

// Run provisions the tenant for one provision request. On step failure the
// compensations of completed steps run in reverse and the result names the
// failing step; the request stays Pending.
func (s *Saga) Run(ctx context.Context, requestID uint) Result {
	progress := &Progress{}
	var request *model.ProvisionRequest
	var compensations []step

	steps := []step{
		{
			name: StepValidation,
			run: func(ctx context.Context) error {
				req, err := s.master.FindRequest(ctx, requestID)
				if err != nil {
					return err
				}
				if req == nil {
					return fmt.Errorf("provision request %d not found", requestID)
				}
				if req.Status != model.RequestPending {
					return fmt.Errorf("provision request %d is %s, not %s", requestID, req.Status, model.RequestPending)
				}
				exists, err := s.clientExists(ctx, req.ClientID)
				if err != nil {
					return err
				}
				if exists {
					return fmt.Errorf("client id %q already has a partition", req.ClientID)
				}
				request = req
				progress.ClientID = req.ClientID
				progress.SchemaName = s.schemaFor(req.ClientID)
				return nil
			},
		},
		{
			name: StepDNSCreation,
			run: func(ctx context.Context) error {
				if s.registrar == nil {
					return nil
				}
				recordID, err := s.registrar.Create(ctx, request.ClientID, request.Subdomain)
				if err != nil {
					return err
				}
				progress.DNSRecordID = recordID
				return nil
			},
			compensate: func(ctx context.Context) {
				if s.registrar == nil || progress.DNSRecordID == "" {
					return
				}
				if err := s.registrar.Delete(ctx, progress.DNSRecordID); err != nil {
					s.log.Error("rollback: dns record delete failed",
						zap.String("record_id", progress.DNSRecordID), zap.Error(err))
				}
			},
		},
		{
			name: StepMasterSetup,
			run:  func(ctx context.Context) error { return s.masterSetup(ctx, request, progress) },
			compensate: func(ctx context.Context) {
				s.masterTeardown(ctx, progress)
			},
		},
		{
			name: StepSchemaCreation,
			run: func(ctx context.Context) error {
				return s.provisioner.CreateSchema(ctx, request.ClientID)
			},
			// The schema is deliberately not dropped on rollback; a rerun
			// reuses it, and the failure message names it for manual
			// cleanup if the tenant is abandoned.
		},
		{
			name: StepDataInit,
			run: func(ctx context.Context) error {
				return s.provisioner.SeedTenant(ctx, request)
			},
		},
		{
			name: StepStatusUpdate,
			run: func(ctx context.Context) error {
				if err := s.master.ApproveRequest(ctx, requestID, request.ClientID); err != nil {
					return err
				}
				s.cache.Invalidate(request.ClientID)
				return nil
			},
		},
	}

	for _, st := range steps {
		progress.CurrentStep = st.name
		if err := st.run(ctx); err != nil {
			appmetrics.ProvisionStepFailureCounter.WithLabelValues(st.name).Inc()
			appmetrics.ProvisionRunCounter.WithLabelValues("failure").Inc()
			s.log.Error("provisioning step failed",
				zap.String("step", st.name),
				zap.String("client_id", progress.ClientID),
				zap.Strings("completed", progress.CompletedSteps),
				zap.Error(err))

			s.rollback(ctx, compensations, progress)
			return Result{
				Success:    false,
				Message:    s.failureMessage(st.name, progress, err),
				FailedStep: st.name,
				ClientID:   progress.ClientID,
			}
		}

		progress.CompletedSteps = append(progress.CompletedSteps, st.name)
		if st.compensate != nil {
			compensations = append(compensations, st)
		}
	}

	appmetrics.ProvisionRunCounter.WithLabelValues("success").Inc()
	s.log.Info("tenant provisioned",
		zap.String("client_id", progress.ClientID),
		zap.String("schema", progress.SchemaName))
	return Result{
		Success:  true,
		Message:  fmt.Sprintf("tenant %q provisioned", progress.ClientID),
		ClientID: progress.ClientID,
	}
}

func (s *Saga) clientExists(ctx context.Context, clientID string) (bool, error) {
	if exists, cached := s.cache.Get(clientID); cached {
		return exists, nil
	}
	exists, err := s.master.PartitionExists(ctx, clientID)
	if err != nil {
		return false, err
	}
	s.cache.Set(clientID, exists)
	return exists, nil
}

func (s *Saga) masterSetup(ctx context.Context, request *model.ProvisionRequest, progress *Progress) error {
	partition := &model.ClinicPartition{
		ClientID:     request.ClientID,
		DisplayTitle: request.ClinicTitle,
		Status:       model.PartitionProvisioning,
		SchemaName:   progress.SchemaName,
		Subdomain:    request.Subdomain,
	}
	if s.baseDomain != "" && request.Subdomain != "" {
		partition.WebsiteURL = fmt.Sprintf("https://%s.%s", request.Subdomain, s.baseDomain)
	}
	if err := s.master.CreatePartition(ctx, partition); err != nil {
		return err
	}
	progress.PartitionID = partition.ID

	profile := &model.BusinessProfile{
		ClientID: request.ClientID,
		Name:     request.ClinicTitle,
		Email:    request.RequesterEmail,
		Phone:    request.RequesterPhone,
	}
	if err := s.master.CreateProfile(ctx, profile); err != nil {
		return err
	}
	progress.ProfileID = profile.ID

	location := &model.ClinicLocation{
		ClientID:  request.ClientID,
		Name:      "Main Branch",
		IsDefault: true,
	}
	if err := s.master.CreateLocation(ctx, location); err != nil {
		return err
	}
	progress.LocationID = location.ID
	return nil
}

// masterTeardown undoes MASTER_SCHEMA_SETUP in reverse creation order. A
// partially completed setup leaves zero-valued ids, which are skipped.
func (s *Saga) masterTeardown(ctx context.Context, progress *Progress) {
	if progress.LocationID != 0 {
		if err := s.master.DeleteLocation(ctx, progress.LocationID); err != nil {
			s.log.Error("rollback: location delete failed", zap.Uint("id", progress.LocationID), zap.Error(err))
		}
	}
	if progress.ProfileID != 0 {
		if err := s.master.DeleteProfile(ctx, progress.ProfileID); err != nil {
			s.log.Error("rollback: profile delete failed", zap.Uint("id", progress.ProfileID), zap.Error(err))
		}
	}
	if progress.PartitionID != 0 {
		if err := s.master.DeletePartition(ctx, progress.PartitionID); err != nil {
			s.log.Error("rollback: partition delete failed", zap.Uint("id", progress.PartitionID), zap.Error(err))
		}
	}
}

func (s *Saga) rollback(ctx context.Context, compensations []step, progress *Progress) {
	for i := len(compensations) - 1; i >= 0; i-- {
		s.log.Info("rolling back provisioning step",
			zap.String("step", compensations[i].name),
			zap.String("client_id", progress.ClientID))
		compensations[i].compensate(ctx)
	}
}

func (s *Saga) failureMessage(failedStep string, progress *Progress, err error) string {
	msg := fmt.Sprintf("provisioning failed at %s: %v", failedStep, err)
	if schemaSurvivesFailure(failedStep, progress.CompletedSteps) {
		msg += fmt.Sprintf("; schema %q was created and is not dropped automatically", progress.SchemaName)
	}
	return msg
}

// schemaSurvivesFailure reports whether a tenant schema was created before
// the failing step, since rollback leaves it in place.
func schemaSurvivesFailure(failedStep string, completed []string) bool {
	if failedStep == StepSchemaCreation {
		return false
	}
	for _, name := range completed {
		if name == StepSchemaCreation {
			return true
		}
	}
	return false
}
