package sync

import (
	"context"

	"github.com/jeebendu/ch-clinic-admin-sub000/internal/model"
	"github.com/jeebendu/ch-clinic-admin-sub000/internal/tenantctx"
	appmetrics "github.com/jeebendu/ch-clinic-admin-sub000/prometheus"
	"go.uber.org/zap"
)

// PatientSynchronizer projects patient rows between partitions
type PatientSynchronizer struct {
	patients PatientStore
	log      *zap.Logger
}

// NewPatientSynchronizer creates a patient synchronizer
func NewPatientSynchronizer(patients PatientStore, log *zap.Logger) *PatientSynchronizer {
	return &PatientSynchronizer{patients: patients, log: log}
}

// SyncToCounterpart upserts the patient described by payload into the
// target partition, keyed by GlobalID.
func (s *PatientSynchronizer) SyncToCounterpart(ctx context.Context, payload PatientPayload, source, target string) error {
	if payload.GlobalID == "" {
		return ErrMissingGlobalID
	}

	targetCtx := tenantctx.WithTenant(ctx, target)

	existing, err := s.patients.FindByGlobalID(targetCtx, payload.GlobalID)
	if err != nil {
		appmetrics.RecordSync("patient", "failure")
		return &SyncError{Entity: "patient", GlobalID: payload.GlobalID, Source: source, Target: target, Err: err}
	}

	row := existing
	if row == nil {
		row = &model.Patient{GlobalID: payload.GlobalID}
	}

	row.FirstName = payload.FirstName
	row.LastName = payload.LastName
	row.Email = payload.Email
	row.Phone = payload.Phone
	row.Gender = payload.Gender
	row.BirthDate = payload.BirthDate

	if err := s.patients.Save(targetCtx, row); err != nil {
		appmetrics.RecordSync("patient", "failure")
		return &SyncError{Entity: "patient", GlobalID: payload.GlobalID, Source: source, Target: target, Err: err}
	}

	appmetrics.RecordSync("patient", "success")
	s.log.Debug("patient synced",
		zap.String("global_id", payload.GlobalID),
		zap.String("source", source),
		zap.String("target", target))
	return nil
}
