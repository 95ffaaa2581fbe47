package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bloodconnect/bloodconnect/internal/domain/blood"
)

// Filter narrows a unit listing. Zero values match everything.
type Filter struct {
	Status    UnitStatus
	Group     blood.Group
	Component blood.Component
}

type UnitRepository interface {
	Create(ctx context.Context, u *Unit) error
	GetByID(ctx context.Context, id uuid.UUID) (*Unit, error)
	List(ctx context.Context, orgID uuid.UUID, f Filter, limit, offset int) ([]*Unit, int, error)
	// ListByOrg returns every unit of the organization matching f. Inside a
	// transaction the rows are locked for update.
	ListByOrg(ctx context.Context, orgID uuid.UUID, f Filter) ([]*Unit, error)
	ListByReservation(ctx context.Context, requestID uuid.UUID) ([]*Unit, error)
	// SetStatus moves every unit in ids from one status to another. It
	// changes nothing and returns apperr.ErrConflict when any unit is no
	// longer in status from.
	SetStatus(ctx context.Context, ids []uuid.UUID, from, to UnitStatus, reservedFor *uuid.UUID) error
	// ExpireAvailable marks Available units past expiry as Expired. A nil
	// orgID sweeps every organization.
	ExpireAvailable(ctx context.Context, orgID uuid.UUID, now time.Time) (int, error)
}
