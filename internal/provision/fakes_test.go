package provision

import (
	"context"
	"fmt"

	"github.com/jeebendu/ch-clinic-admin-sub000/internal/model"
)

// fakeMaster is an in-memory MasterStore with per-call failure injection
type fakeMaster struct {
	requests   map[uint]*model.ProvisionRequest
	partitions map[uint]*model.ClinicPartition
	profiles   map[uint]*model.BusinessProfile
	locations  map[uint]*model.ClinicLocation
	nextID     uint
	failOn     map[string]error // method name -> injected error
}

func newFakeMaster() *fakeMaster {
	return &fakeMaster{
		requests:   make(map[uint]*model.ProvisionRequest),
		partitions: make(map[uint]*model.ClinicPartition),
		profiles:   make(map[uint]*model.BusinessProfile),
		locations:  make(map[uint]*model.ClinicLocation),
		failOn:     make(map[string]error),
	}
}

func (m *fakeMaster) addRequest(req *model.ProvisionRequest) *model.ProvisionRequest {
	m.nextID++
	req.ID = m.nextID
	m.requests[req.ID] = req
	return req
}

func (m *fakeMaster) fail(method string) error {
	return m.failOn[method]
}

func (m *fakeMaster) FindRequest(ctx context.Context, requestID uint) (*model.ProvisionRequest, error) {
	if err := m.fail("FindRequest"); err != nil {
		return nil, err
	}
	req, ok := m.requests[requestID]
	if !ok {
		return nil, nil
	}
	copied := *req
	return &copied, nil
}

func (m *fakeMaster) PartitionExists(ctx context.Context, clientID string) (bool, error) {
	if err := m.fail("PartitionExists"); err != nil {
		return false, err
	}
	for _, p := range m.partitions {
		if p.ClientID == clientID {
			return true, nil
		}
	}
	return false, nil
}

func (m *fakeMaster) CreatePartition(ctx context.Context, partition *model.ClinicPartition) error {
	if err := m.fail("CreatePartition"); err != nil {
		return err
	}
	for _, p := range m.partitions {
		if p.ClientID == partition.ClientID {
			return fmt.Errorf("duplicate client id %q", partition.ClientID)
		}
	}
	m.nextID++
	partition.ID = m.nextID
	copied := *partition
	m.partitions[partition.ID] = &copied
	return nil
}

func (m *fakeMaster) DeletePartition(ctx context.Context, id uint) error {
	if err := m.fail("DeletePartition"); err != nil {
		return err
	}
	delete(m.partitions, id)
	return nil
}

func (m *fakeMaster) CreateProfile(ctx context.Context, profile *model.BusinessProfile) error {
	if err := m.fail("CreateProfile"); err != nil {
		return err
	}
	m.nextID++
	profile.ID = m.nextID
	copied := *profile
	m.profiles[profile.ID] = &copied
	return nil
}

func (m *fakeMaster) DeleteProfile(ctx context.Context, id uint) error {
	if err := m.fail("DeleteProfile"); err != nil {
		return err
	}
	delete(m.profiles, id)
	return nil
}

func (m *fakeMaster) CreateLocation(ctx context.Context, location *model.ClinicLocation) error {
	if err := m.fail("CreateLocation"); err != nil {
		return err
	}
	m.nextID++
	location.ID = m.nextID
	copied := *location
	m.locations[location.ID] = &copied
	return nil
}

func (m *fakeMaster) DeleteLocation(ctx context.Context, id uint) error {
	if err := m.fail("DeleteLocation"); err != nil {
		return err
	}
	delete(m.locations, id)
	return nil
}

func (m *fakeMaster) ApproveRequest(ctx context.Context, requestID uint, clientID string) error {
	if err := m.fail("ApproveRequest"); err != nil {
		return err
	}
	req, ok := m.requests[requestID]
	if !ok {
		return fmt.Errorf("request %d not found", requestID)
	}
	req.Status = model.RequestApproved
	for _, p := range m.partitions {
		if p.ClientID == clientID {
			p.Status = model.PartitionActive
		}
	}
	return nil
}

// fakeProvisioner records schema and seed calls
type fakeProvisioner struct {
	schemasCreated []string
	seeded         []string
	failSchema     error
	failSeed       error
}

func (p *fakeProvisioner) CreateSchema(ctx context.Context, clientID string) error {
	if p.failSchema != nil {
		return p.failSchema
	}
	p.schemasCreated = append(p.schemasCreated, clientID)
	return nil
}

func (p *fakeProvisioner) SeedTenant(ctx context.Context, request *model.ProvisionRequest) error {
	if p.failSeed != nil {
		return p.failSeed
	}
	p.seeded = append(p.seeded, request.ClientID)
	return nil
}

// fakeRegistrar records DNS record lifecycle
type fakeRegistrar struct {
	created    []string
	deleted    []string
	failCreate error
}

func (r *fakeRegistrar) Create(ctx context.Context, clientID, subdomain string) (string, error) {
	if r.failCreate != nil {
		return "", r.failCreate
	}
	recordID := "rec-" + clientID
	r.created = append(r.created, recordID)
	return recordID, nil
}

func (r *fakeRegistrar) Delete(ctx context.Context, recordID string) error {
	r.deleted = append(r.deleted, recordID)
	return nil
}
