package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bloodconnect/bloodconnect/internal/platform/apperr"
	"github.com/bloodconnect/bloodconnect/pkg/pagination"
)

// memoryRepo keeps units in process. It hands out copies so callers never
// alias stored state.
type memoryRepo struct {
	mu    sync.RWMutex
	units map[uuid.UUID]*Unit
}

func NewUnitRepoMemory() UnitRepository {
	return &memoryRepo{units: make(map[uuid.UUID]*Unit)}
}

func clone(u *Unit) *Unit {
	c := *u
	if u.ReservedFor != nil {
		id := *u.ReservedFor
		c.ReservedFor = &id
	}
	return &c
}

func (m *memoryRepo) Create(_ context.Context, u *Unit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.units[u.ID] = clone(u)
	return nil
}

func (m *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.units[id]
	if !ok {
		return nil, apperr.NotFound("inventory unit", id.String())
	}
	return clone(u), nil
}

func (m *memoryRepo) matching(orgID uuid.UUID, f Filter) []*Unit {
	var out []*Unit
	for _, u := range m.units {
		if u.OrgID != orgID {
			continue
		}
		if (f.Status != "" && u.Status != f.Status) ||
			(f.Group != "" && u.BloodGroup != f.Group) ||
			(f.Component != "" && u.ComponentType != f.Component) {
			continue
		}
		out = append(out, clone(u))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpiryDate.Equal(out[j].ExpiryDate) {
			return out[i].ExpiryDate.Before(out[j].ExpiryDate)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (m *memoryRepo) List(_ context.Context, orgID uuid.UUID, f Filter, limit, offset int) ([]*Unit, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.matching(orgID, f)
	return pagination.Slice(all, pagination.Params{Limit: limit, Offset: offset}), len(all), nil
}

func (m *memoryRepo) ListByOrg(_ context.Context, orgID uuid.UUID, f Filter) ([]*Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.matching(orgID, f), nil
}

func (m *memoryRepo) ListByReservation(_ context.Context, requestID uuid.UUID) ([]*Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Unit
	for _, u := range m.units {
		if u.Status == StatusReserved && u.ReservedFor != nil && *u.ReservedFor == requestID {
			out = append(out, clone(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (m *memoryRepo) SetStatus(_ context.Context, ids []uuid.UUID, from, to UnitStatus, reservedFor *uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := 0
	for _, id := range ids {
		u, ok := m.units[id]
		if !ok {
			return apperr.NotFound("inventory unit", id.String())
		}
		if u.Status == from {
			matched++
		}
	}
	if matched != len(ids) {
		return fmt.Errorf("set status on %d units, %d in %s: %w", len(ids), matched, from, apperr.ErrConflict)
	}
	now := time.Now()
	for _, id := range ids {
		u := m.units[id]
		u.Status = to
		u.ReservedFor = nil
		if reservedFor != nil {
			ref := *reservedFor
			u.ReservedFor = &ref
		}
		u.UpdatedAt = now
	}
	return nil
}

func (m *memoryRepo) ExpireAvailable(_ context.Context, orgID uuid.UUID, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, u := range m.units {
		if orgID != uuid.Nil && u.OrgID != orgID {
			continue
		}
		if u.Status == StatusAvailable && u.IsExpired(now) {
			u.Status = StatusExpired
			u.UpdatedAt = now
			n++
		}
	}
	return n, nil
}
