package donor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bloodconnect/bloodconnect/internal/platform/apperr"
	"github.com/bloodconnect/bloodconnect/pkg/pagination"
)

type memoryRepo struct {
	mu     sync.RWMutex
	donors map[uuid.UUID]*Donor
}

func NewDonorRepoMemory() DonorRepository {
	return &memoryRepo{donors: make(map[uuid.UUID]*Donor)}
}

func clone(d *Donor) *Donor {
	c := *d
	if d.LastDonationDate != nil {
		t := *d.LastDonationDate
		c.LastDonationDate = &t
	}
	return &c
}

func (m *memoryRepo) Create(_ context.Context, d *Donor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.VersionID = 1
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	m.donors[d.ID] = clone(d)
	return nil
}

func (m *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Donor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.donors[id]
	if !ok {
		return nil, apperr.NotFound("donor", id.String())
	}
	return clone(d), nil
}

func (m *memoryRepo) Update(_ context.Context, d *Donor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.donors[d.ID]
	if !ok {
		return apperr.NotFound("donor", d.ID.String())
	}
	if cur.VersionID != d.VersionID {
		return fmt.Errorf("update donor %s at version %d: %w", d.ID, d.VersionID, apperr.ErrConflict)
	}
	d.VersionID++
	d.UpdatedAt = time.Now()
	m.donors[d.ID] = clone(d)
	return nil
}

func matches(d *Donor, f Filter) bool {
	if f.Status != "" && d.Status != f.Status {
		return false
	}
	if f.BloodGroup != "" && d.BloodGroup != f.BloodGroup {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		return strings.Contains(strings.ToLower(d.FullName), q) ||
			strings.Contains(strings.ToLower(d.Email), q) ||
			strings.Contains(d.ContactNumber, q)
	}
	return true
}

func (m *memoryRepo) List(_ context.Context, orgID uuid.UUID, f Filter, limit, offset int) ([]*Donor, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Donor
	for _, d := range m.donors {
		if d.OrgID == orgID && matches(d, f) {
			out = append(out, clone(d))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FullName != out[j].FullName {
			return out[i].FullName < out[j].FullName
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return pagination.Slice(out, pagination.Params{Limit: limit, Offset: offset}), len(out), nil
}

func (m *memoryRepo) LiftDeferrals(_ context.Context, orgID uuid.UUID, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, d := range m.donors {
		if orgID != uuid.Nil && d.OrgID != orgID {
			continue
		}
		if d.Status != StatusTemporaryDeferral {
			continue
		}
		if d.LastDonationDate == nil || !d.LastDonationDate.After(cutoff) {
			d.Status = StatusAvailable
			d.VersionID++
			d.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}
