package staff

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bloodconnect/bloodconnect/internal/platform/apperr"
	"github.com/bloodconnect/bloodconnect/internal/platform/auth"
	"github.com/bloodconnect/bloodconnect/pkg/pagination"
)

type Service struct {
	repo MemberRepository
	now  func() time.Time
}

func NewService(repo MemberRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) Create(ctx context.Context, m *Member) error {
	if m.Status == "" {
		m.Status = StatusOffline
	}
	m.Email = strings.ToLower(strings.TrimSpace(m.Email))
	if err := apperr.NewValidationError(Validate(m)); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return fmt.Errorf("create staff: %w", err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Member, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, orgID uuid.UUID, role auth.Role, p pagination.Params) ([]*Member, int, error) {
	return s.repo.List(ctx, orgID, string(role), p.Limit, p.Offset)
}

// Update replaces the editable profile fields. Organization and status are
// left as stored.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in *Member) (*Member, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Name = in.Name
	m.Email = strings.ToLower(strings.TrimSpace(in.Email))
	m.Phone = in.Phone
	if in.Role != "" {
		m.Role = in.Role
	}
	if err := apperr.NewValidationError(Validate(m)); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, m); err != nil {
		return nil, fmt.Errorf("update staff: %w", err)
	}
	return m, nil
}

// SetStatus records presence. Going Active stamps last_active.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status Status) (*Member, error) {
	if !status.Valid() {
		return nil, apperr.Invalid("status", "must be Active or Offline")
	}
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Status = status
	if status == StatusActive {
		now := s.now()
		m.LastActive = &now
	}
	if err := s.repo.Update(ctx, m); err != nil {
		return nil, fmt.Errorf("update staff status: %w", err)
	}
	return m, nil
}

// ResolveActor implements auth.ActorResolver.
func (s *Service) ResolveActor(ctx context.Context, id uuid.UUID) (auth.Actor, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return auth.Actor{}, err
	}
	return m.Actor(), nil
}
