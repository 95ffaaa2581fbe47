package request

import (
	"context"

	"github.com/google/uuid"
)

type RequestRepository interface {
	Create(ctx context.Context, r *BloodRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*BloodRequest, error)
	// Update persists r only if the stored version still equals r.VersionID
	// and bumps the version. A lost race yields apperr.ErrConflict.
	Update(ctx context.Context, r *BloodRequest) error
	// List applies every Filter field except Urgency, which depends on the
	// evaluation time and is applied by the service.
	List(ctx context.Context, f Filter) ([]*BloodRequest, error)
	AppendHistory(ctx context.Context, changes ...StatusChange) error
	History(ctx context.Context, requestID uuid.UUID) ([]StatusChange, error)
}
