package donor

import (
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/bloodconnect/bloodconnect/internal/domain/blood"
	"github.com/bloodconnect/bloodconnect/internal/platform/apperr"
)

type Status string

const (
	StatusAvailable         Status = "Available"
	StatusIneligible        Status = "Ineligible"
	StatusTemporaryDeferral Status = "Temporary Deferral"
)

func (s Status) Valid() bool {
	return s == StatusAvailable || s == StatusIneligible || s == StatusTemporaryDeferral
}

const (
	MinAge           = 18
	MaxAge           = 65
	MinContactLength = 10

	// DefaultDonationInterval is the whole-blood deferral after a donation.
	DefaultDonationInterval = 56 * 24 * time.Hour
)

type Donor struct {
	ID               uuid.UUID   `db:"id" json:"id"`
	OrgID            uuid.UUID   `db:"org_id" json:"org_id"`
	FullName         string      `db:"full_name" json:"full_name"`
	BloodGroup       blood.Group `db:"blood_group" json:"blood_group"`
	Age              int         `db:"age" json:"age"`
	ContactNumber    string      `db:"contact_number" json:"contact_number"`
	Email            string      `db:"email" json:"email"`
	LastDonationDate *time.Time  `db:"last_donation_date" json:"last_donation_date,omitempty"`
	TotalDonations   int         `db:"total_donations" json:"total_donations"`
	Status           Status      `db:"status" json:"status"`
	VersionID        int         `db:"version_id" json:"version_id"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updated_at"`
}

// EligibleFrom is the first day d may donate again. A donor who never
// donated is eligible immediately.
func (d *Donor) EligibleFrom(interval time.Duration) time.Time {
	if d.LastDonationDate == nil {
		return time.Time{}
	}
	return d.LastDonationDate.Add(interval)
}

// endOfDay bounds "today" so that a date-only value for today passes.
func endOfDay(t time.Time) time.Time {
	y, m, day := t.Date()
	return time.Date(y, m, day+1, 0, 0, 0, 0, t.Location())
}

func Validate(d *Donor, now time.Time) []apperr.Violation {
	var vs []apperr.Violation
	if d.OrgID == uuid.Nil {
		vs = append(vs, apperr.Violation{Field: "org_id", Message: "is required"})
	}
	if utf8.RuneCountInString(strings.TrimSpace(d.FullName)) < 2 {
		vs = append(vs, apperr.Violation{Field: "full_name", Message: "must be at least 2 characters"})
	}
	if !d.BloodGroup.Valid() {
		vs = append(vs, apperr.Violation{Field: "blood_group", Message: "unknown blood group " + string(d.BloodGroup)})
	}
	if d.Age < MinAge || d.Age > MaxAge {
		vs = append(vs, apperr.Violation{Field: "age", Message: "must be between 18 and 65"})
	}
	if len(strings.TrimSpace(d.ContactNumber)) < MinContactLength {
		vs = append(vs, apperr.Violation{Field: "contact_number", Message: "must be at least 10 characters"})
	}
	if _, err := mail.ParseAddress(d.Email); err != nil {
		vs = append(vs, apperr.Violation{Field: "email", Message: "must be a valid address"})
	}
	if d.LastDonationDate != nil && !d.LastDonationDate.Before(endOfDay(now)) {
		vs = append(vs, apperr.Violation{Field: "last_donation_date", Message: "must not be in the future"})
	}
	if d.TotalDonations < 0 {
		vs = append(vs, apperr.Violation{Field: "total_donations", Message: "must not be negative"})
	}
	if !d.Status.Valid() {
		vs = append(vs, apperr.Violation{Field: "status", Message: "unknown status " + string(d.Status)})
	}
	return vs
}

// IsValidDonor returns the first broken invariant of d, if any.
func IsValidDonor(d *Donor, now time.Time) (bool, string) {
	if vs := Validate(d, now); len(vs) > 0 {
		return false, vs[0].String()
	}
	return true, ""
}

type Filter struct {
	Status     Status
	BloodGroup blood.Group
	// Search matches name, email or contact number, case-insensitively.
	Search string
}
