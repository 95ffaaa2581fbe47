package organization

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/bloodconnect/bloodconnect/internal/platform/apperr"
	"github.com/bloodconnect/bloodconnect/pkg/pagination"
)

type Service struct {
	repo OrganizationRepository
}

func NewService(repo OrganizationRepository) *Service {
	return &Service{repo: repo}
}

// Create registers an organization. New organizations are active.
func (s *Service) Create(ctx context.Context, o *Organization) error {
	o.Name = strings.TrimSpace(o.Name)
	o.Active = true
	if err := apperr.NewValidationError(Validate(o)); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, o); err != nil {
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Organization, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, t Type, p pagination.Params) ([]*Organization, int, error) {
	if t != "" && !t.Valid() {
		return nil, 0, apperr.Invalid("type", "must be Hospital or Blood Bank")
	}
	return s.repo.List(ctx, t, p.Limit, p.Offset)
}
