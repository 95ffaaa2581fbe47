package staff

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
	mu      sync.RWMutex
	members map[uuid.UUID]Member
}

func NewMemberRepoMemory() MemberRepository {
	return &memoryRepo{members: make(map[uuid.UUID]Member)}
}

func (r *memoryRepo) Create(_ context.Context, m *Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	r.members[m.ID] = *m
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[id]
	if !ok {
		return nil, apperr.NotFound("staff", id.String())
	}
	return &m, nil
}

func (r *memoryRepo) Update(_ context.Context, m *Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[m.ID]; !ok {
		return apperr.NotFound("staff", m.ID.String())
	}
	m.UpdatedAt = time.Now()
	r.members[m.ID] = *m
	return nil
}

func (r *memoryRepo) List(_ context.Context, orgID uuid.UUID, role string, limit, offset int) ([]*Member, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Member
	for _, m := range r.members {
		if m.OrgID == orgID && (role == "" || string(m.Role) == role) {
			m := m
			out = append(out, &m)
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
