package donor

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type DonorRepository interface {
	Create(ctx context.Context, d *Donor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Donor, error)
	// Update writes d if it is still at d.VersionID and bumps the version.
	// A lost race yields apperr.ErrConflict.
	Update(ctx context.Context, d *Donor) error
	List(ctx context.Context, orgID uuid.UUID, f Filter, limit, offset int) ([]*Donor, int, error)
	// LiftDeferrals returns deferred donors whose last donation is at or
	// before cutoff to Available. uuid.Nil covers every organization.
	LiftDeferrals(ctx context.Context, orgID uuid.UUID, cutoff time.Time) (int, error)
}
