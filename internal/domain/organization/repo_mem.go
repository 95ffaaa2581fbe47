package organization

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bloodconnect/bloodconnect/internal/platform/apperr"
	"github.com/bloodconnect/bloodconnect/pkg/pagination"
)

type memoryRepo struct {
	mu   sync.RWMutex
	orgs map[uuid.UUID]Organization
}

func NewOrganizationRepoMemory() OrganizationRepository {
	return &memoryRepo{orgs: make(map[uuid.UUID]Organization)}
}

func (m *memoryRepo) Create(_ context.Context, o *Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	m.orgs[o.ID] = *o
	return nil
}

func (m *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orgs[id]
	if !ok {
		return nil, apperr.NotFound("organization", id.String())
	}
	return &o, nil
}

func (m *memoryRepo) List(_ context.Context, t Type, limit, offset int) ([]*Organization, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Organization
	for _, o := range m.orgs {
		if t == "" || o.Type == t {
			o := o
			out = append(out, &o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return pagination.Slice(out, pagination.Params{Limit: limit, Offset: offset}), len(out), nil
}
