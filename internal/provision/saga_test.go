package provision

import (
	"context"
	"errors"
	"testing"

	"github.com/jeebendu/ch-clinic-admin-sub000/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func schemaFor(clientID string) string {
	return "clinic_" + clientID
}

func pendingRequest(master *fakeMaster, clientID string) *model.ProvisionRequest {
	return master.addRequest(&model.ProvisionRequest{
		ClientID:       clientID,
		ClinicTitle:    "Acme Clinic",
		Subdomain:      clientID,
		RequesterName:  "Dr. Admin",
		RequesterEmail: "admin@acme.test",
		Status:         model.RequestPending,
	})
}

func newTestSaga(master *fakeMaster, provisioner *fakeProvisioner, registrar Registrar) *Saga {
	return NewSaga(master, provisioner, registrar, NewExistsCache(), schemaFor, "clinichub.example.com", zap.NewNop())
}

func TestSagaProvisionsTenant(t *testing.T) {
	master := newFakeMaster()
	provisioner := &fakeProvisioner{}
	registrar := &fakeRegistrar{}
	req := pendingRequest(master, "acme")

	result := newTestSaga(master, provisioner, registrar).Run(context.Background(), req.ID)

	require.True(t, result.Success)
	assert.Equal(t, "acme", result.ClientID)
	assert.Empty(t, result.FailedStep)

	// Master registry rows exist and the partition is active
	require.Len(t, master.partitions, 1)
	for _, p := range master.partitions {
		assert.Equal(t, "acme", p.ClientID)
		assert.Equal(t, "clinic_acme", p.SchemaName)
		assert.Equal(t, model.PartitionActive, p.Status)
		assert.Equal(t, "https://acme.clinichub.example.com", p.WebsiteURL)
	}
	assert.Len(t, master.profiles, 1)
	assert.Len(t, master.locations, 1)

	// Tenant side created and seeded, request approved, DNS record kept
	assert.Equal(t, []string{"acme"}, provisioner.schemasCreated)
	assert.Equal(t, []string{"acme"}, provisioner.seeded)
	assert.Equal(t, model.RequestApproved, master.requests[req.ID].Status)
	assert.Equal(t, []string{"rec-acme"}, registrar.created)
	assert.Empty(t, registrar.deleted)
}

func TestSagaSkipsDNSWithoutRegistrar(t *testing.T) {
	master := newFakeMaster()
	provisioner := &fakeProvisioner{}
	req := pendingRequest(master, "acme")

	result := newTestSaga(master, provisioner, nil).Run(context.Background(), req.ID)
	assert.True(t, result.Success)
}

func TestSagaValidationRejectsMissingRequest(t *testing.T) {
	master := newFakeMaster()

	result := newTestSaga(master, &fakeProvisioner{}, nil).Run(context.Background(), 99)

	require.False(t, result.Success)
	assert.Equal(t, StepValidation, result.FailedStep)
}

func TestSagaValidationRejectsClaimedClientID(t *testing.T) {
	master := newFakeMaster()
	req := pendingRequest(master, "acme")
	require.NoError(t, master.CreatePartition(context.Background(), &model.ClinicPartition{ClientID: "acme"}))

	result := newTestSaga(master, &fakeProvisioner{}, nil).Run(context.Background(), req.ID)

	require.False(t, result.Success)
	assert.Equal(t, StepValidation, result.FailedStep)
	assert.Equal(t, model.RequestPending, master.requests[req.ID].Status)
}

func TestSagaValidationRejectsNonPendingRequest(t *testing.T) {
	master := newFakeMaster()
	req := pendingRequest(master, "acme")
	req.Status = model.RequestApproved

	result := newTestSaga(master, &fakeProvisioner{}, nil).Run(context.Background(), req.ID)

	require.False(t, result.Success)
	assert.Equal(t, StepValidation, result.FailedStep)
}

// Provisioning for "acme" succeeds through MASTER_SCHEMA_SETUP, then
// TENANT_SCHEMA_CREATION throws: the partition row, profile and location
// are deleted, the request stays Pending, and the result names the step.
func TestSagaRollsBackMasterRowsOnSchemaFailure(t *testing.T) {
	master := newFakeMaster()
	provisioner := &fakeProvisioner{failSchema: errors.New("create schema denied")}
	registrar := &fakeRegistrar{}
	req := pendingRequest(master, "acme")

	result := newTestSaga(master, provisioner, registrar).Run(context.Background(), req.ID)

	require.False(t, result.Success)
	assert.Equal(t, StepSchemaCreation, result.FailedStep)
	assert.Contains(t, result.Message, StepSchemaCreation)

	assert.Empty(t, master.partitions)
	assert.Empty(t, master.profiles)
	assert.Empty(t, master.locations)
	assert.Equal(t, model.RequestPending, master.requests[req.ID].Status)

	// DNS record rolled back too
	assert.Equal(t, []string{"rec-acme"}, registrar.deleted)
}

// A failure after TENANT_SCHEMA_CREATION rolls back the master rows but
// leaves the schema; the message names the orphan.
func TestSagaLeavesSchemaButNamesItOnSeedFailure(t *testing.T) {
	master := newFakeMaster()
	provisioner := &fakeProvisioner{failSeed: errors.New("seed failed")}
	req := pendingRequest(master, "acme")

	result := newTestSaga(master, provisioner, nil).Run(context.Background(), req.ID)

	require.False(t, result.Success)
	assert.Equal(t, StepDataInit, result.FailedStep)
	assert.Contains(t, result.Message, "clinic_acme")

	assert.Empty(t, master.partitions)
	assert.Equal(t, model.RequestPending, master.requests[req.ID].Status)
	assert.Equal(t, []string{"acme"}, provisioner.schemasCreated)
}

func TestSagaPartialMasterSetupRollsBackOnlyCreatedRows(t *testing.T) {
	master := newFakeMaster()
	master.failOn["CreateLocation"] = errors.New("location insert failed")
	req := pendingRequest(master, "acme")

	result := newTestSaga(master, &fakeProvisioner{}, nil).Run(context.Background(), req.ID)

	require.False(t, result.Success)
	assert.Equal(t, StepMasterSetup, result.FailedStep)
	assert.Empty(t, master.partitions)
	assert.Empty(t, master.profiles)
	assert.Empty(t, master.locations)
}

// A failed run leaves the request retryable; a retry with the failure
// cleared succeeds for the same clientID.
func TestSagaFailedRunIsRetryable(t *testing.T) {
	master := newFakeMaster()
	provisioner := &fakeProvisioner{failSchema: errors.New("transient")}
	req := pendingRequest(master, "acme")
	saga := newTestSaga(master, provisioner, nil)

	first := saga.Run(context.Background(), req.ID)
	require.False(t, first.Success)

	provisioner.failSchema = nil
	second := saga.Run(context.Background(), req.ID)
	require.True(t, second.Success)
	assert.Equal(t, model.RequestApproved, master.requests[req.ID].Status)
}

// STATUS_UPDATE must invalidate the exists cache so the next validation for
// the same clientID sees the fresh partition instead of a stale negative.
func TestSagaInvalidatesExistsCache(t *testing.T) {
	master := newFakeMaster()
	cache := NewExistsCache()
	saga := NewSaga(master, &fakeProvisioner{}, nil, cache, schemaFor, "clinichub.example.com", zap.NewNop())

	req := pendingRequest(master, "acme")
	result := saga.Run(context.Background(), req.ID)
	require.True(t, result.Success)

	_, cached := cache.Get("acme")
	assert.False(t, cached)

	// A second request for the same clientID now fails validation
	second := pendingRequest(master, "acme")
	rerun := saga.Run(context.Background(), second.ID)
	require.False(t, rerun.Success)
	assert.Equal(t, StepValidation, rerun.FailedStep)
}

func TestSagaConcurrentRunsForDifferentClientsShareNothing(t *testing.T) {
	master := newFakeMaster()
	saga := newTestSaga(master, &fakeProvisioner{}, nil)

	reqA := pendingRequest(master, "acme")
	reqB := pendingRequest(master, "zenith")

	resultA := saga.Run(context.Background(), reqA.ID)
	resultB := saga.Run(context.Background(), reqB.ID)

	assert.True(t, resultA.Success)
	assert.True(t, resultB.Success)
	assert.Len(t, master.partitions, 2)
}
