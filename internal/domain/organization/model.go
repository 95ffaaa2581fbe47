package organization

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bloodconnect/bloodconnect/internal/platform/apperr"
)

type Type string

const (
	TypeHospital  Type = "Hospital"
	TypeBloodBank Type = "Blood Bank"
)

func (t Type) Valid() bool { return t == TypeHospital || t == TypeBloodBank }

// Organization is a hospital that files requests or a blood bank that
// fulfils them.
type Organization struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Type      Type      `db:"type" json:"type"`
	Email     string    `db:"email" json:"email,omitempty"`
	Phone     string    `db:"phone" json:"phone,omitempty"`
	Address   string    `db:"address" json:"address,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func Validate(o *Organization) []apperr.Violation {
	var vs []apperr.Violation
	if len(strings.TrimSpace(o.Name)) < 2 {
		vs = append(vs, apperr.Violation{Field: "name", Message: "must be at least 2 characters"})
	}
	if !o.Type.Valid() {
		vs = append(vs, apperr.Violation{Field: "type", Message: "must be Hospital or Blood Bank"})
	}
	if o.Email != "" {
		if _, err := mail.ParseAddress(o.Email); err != nil {
			vs = append(vs, apperr.Violation{Field: "email", Message: "must be a valid address"})
		}
	}
	return vs
}

type OrganizationRepository interface {
	Create(ctx context.Context, o *Organization) error
	GetByID(ctx context.Context, id uuid.UUID) (*Organization, error)
	List(ctx context.Context, t Type, limit, offset int) ([]*Organization, int, error)
}
