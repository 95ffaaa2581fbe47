package staff

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bloodconnect/bloodconnect/internal/platform/apperr"
	"github.com/bloodconnect/bloodconnect/internal/platform/auth"
)

type Status string

const (
	StatusActive  Status = "Active"
	StatusOffline Status = "Offline"
)

func (s Status) Valid() bool { return s == StatusActive || s == StatusOffline }

// Member is a staff account of an organization. Its role decides what it may
// do when it acts on requests and stock.
type Member struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	OrgID      uuid.UUID  `db:"org_id" json:"org_id"`
	Name       string     `db:"name" json:"name"`
	Email      string     `db:"email" json:"email"`
	Phone      string     `db:"phone" json:"phone,omitempty"`
	Role       auth.Role  `db:"role" json:"role"`
	Status     Status     `db:"status" json:"status"`
	LastActive *time.Time `db:"last_active" json:"last_active,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

func (m *Member) Actor() auth.Actor {
	return auth.Actor{ID: m.ID, OrgID: m.OrgID, Role: m.Role}
}

func Validate(m *Member) []apperr.Violation {
	var vs []apperr.Violation
	if m.OrgID == uuid.Nil {
		vs = append(vs, apperr.Violation{Field: "org_id", Message: "is required"})
	}
	if len(strings.TrimSpace(m.Name)) < 2 {
		vs = append(vs, apperr.Violation{Field: "name", Message: "must be at least 2 characters"})
	}
	if _, err := mail.ParseAddress(m.Email); err != nil {
		vs = append(vs, apperr.Violation{Field: "email", Message: "must be a valid address"})
	}
	if !m.Role.Valid() {
		vs = append(vs, apperr.Violation{Field: "role", Message: "unknown role " + string(m.Role)})
	}
	if !m.Status.Valid() {
		vs = append(vs, apperr.Violation{Field: "status", Message: "must be Active or Offline"})
	}
	return vs
}
