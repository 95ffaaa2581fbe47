package request

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bloodconnect/bloodconnect/internal/platform/apperr"
)

type memoryRepo struct {
	mu       sync.RWMutex
	requests map[uuid.UUID]*BloodRequest
	history  map[uuid.UUID][]StatusChange
	nextID   int64
}

func NewRequestRepoMemory() RequestRepository {
	return &memoryRepo{
		requests: make(map[uuid.UUID]*BloodRequest),
		history:  make(map[uuid.UUID][]StatusChange),
	}
}

func clone(r *BloodRequest) *BloodRequest {
	c := *r
	c.TargetOrgIDs = append([]uuid.UUID(nil), r.TargetOrgIDs...)
	if r.FulfillingOrgID != nil {
		id := *r.FulfillingOrgID
		c.FulfillingOrgID = &id
	}
	if r.Escalation != nil {
		e := *r.Escalation
		c.Escalation = &e
	}
	return &c
}

func (m *memoryRepo) Create(_ context.Context, r *BloodRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.VersionID = 1
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	m.requests[r.ID] = clone(r)
	return nil
}

func (m *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*BloodRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, apperr.NotFound("request", id.String())
	}
	return clone(r), nil
}

func (m *memoryRepo) Update(_ context.Context, r *BloodRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.requests[r.ID]
	if !ok {
		return apperr.NotFound("request", r.ID.String())
	}
	if cur.VersionID != r.VersionID {
		return fmt.Errorf("update request %s at version %d: %w", r.ID, r.VersionID, apperr.ErrConflict)
	}
	r.VersionID++
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now()
	}
	m.requests[r.ID] = clone(r)
	return nil
}

func (m *memoryRepo) List(_ context.Context, f Filter) ([]*BloodRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*BloodRequest
	for _, r := range m.requests {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.RequesterOrgID != uuid.Nil && r.RequesterOrgID != f.RequesterOrgID {
			continue
		}
		if f.TargetOrgID != uuid.Nil && !r.Targets(f.TargetOrgID) {
			continue
		}
		if f.BloodGroup != "" && r.BloodGroup != f.BloodGroup {
			continue
		}
		out = append(out, clone(r))
	}
	return out, nil
}

func (m *memoryRepo) AppendHistory(_ context.Context, changes ...StatusChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range changes {
		m.nextID++
		c.ID = m.nextID
		m.history[c.RequestID] = append(m.history[c.RequestID], c)
	}
	return nil
}

func (m *memoryRepo) History(_ context.Context, requestID uuid.UUID) ([]StatusChange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]StatusChange(nil), m.history[requestID]...), nil
}
