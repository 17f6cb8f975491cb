package sync

import (
	"context"

	"github.com/jeebendu/ch-clinic-admin-sub000/internal/model"
	"github.com/jeebendu/ch-clinic-admin-sub000/internal/tenantctx"
	appmetrics "github.com/jeebendu/ch-clinic-admin-sub000/prometheus"
	"go.uber.org/zap"
)

// DoctorSynchronizer projects doctor rows between partitions
type DoctorSynchronizer struct {
	doctors DoctorStore
	log     *zap.Logger
}

// NewDoctorSynchronizer creates a doctor synchronizer
func NewDoctorSynchronizer(doctors DoctorStore, log *zap.Logger) *DoctorSynchronizer {
	return &DoctorSynchronizer{doctors: doctors, log: log}
}

// SyncToCounterpart upserts the doctor described by payload into the target
// partition. Repeated calls with the same GlobalID converge to one row.
func (s *DoctorSynchronizer) SyncToCounterpart(ctx context.Context, payload DoctorPayload, source, target string) error {
	if payload.GlobalID == "" {
		return ErrMissingGlobalID
	}

	// The target scope lives only on this derived context; the caller's
	// context, and with it the caller's partition, is untouched.
	targetCtx := tenantctx.WithTenant(ctx, target)

	existing, err := s.doctors.FindByGlobalID(targetCtx, payload.GlobalID)
	if err != nil {
		appmetrics.RecordSync("doctor", "failure")
		return &SyncError{Entity: "doctor", GlobalID: payload.GlobalID, Source: source, Target: target, Err: err}
	}

	row := existing
	if row == nil {
		row = &model.Doctor{GlobalID: payload.GlobalID}
	}

	// Mutable fields only; GlobalID and the target's own ID stay put.
	row.Name = payload.Name
	row.Specialization = payload.Specialization
	row.Qualification = payload.Qualification
	row.Email = payload.Email
	row.Phone = payload.Phone
	row.Published = payload.Published

	if err := s.doctors.Save(targetCtx, row); err != nil {
		appmetrics.RecordSync("doctor", "failure")
		return &SyncError{Entity: "doctor", GlobalID: payload.GlobalID, Source: source, Target: target, Err: err}
	}

	appmetrics.RecordSync("doctor", "success")
	s.log.Debug("doctor synced",
		zap.String("global_id", payload.GlobalID),
		zap.String("source", source),
		zap.String("target", target))
	return nil
}
