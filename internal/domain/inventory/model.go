package inventory

import (
	"time"

	"github.com/google/uuid"

	"github.com/bloodconnect/bloodconnect/internal/domain/blood"
	"github.com/bloodconnect/bloodconnect/internal/platform/apperr"
)

type UnitStatus string

const (
	StatusAvailable  UnitStatus = "Available"
	StatusReserved   UnitStatus = "Reserved"
	StatusExpired    UnitStatus = "Expired"
	StatusQuarantine UnitStatus = "Quarantine"
	StatusDiscarded  UnitStatus = "Discarded"
	// StatusIssued is terminal: the unit was handed over to a completed request.
	StatusIssued UnitStatus = "Issued"
)

var Statuses = []UnitStatus{StatusAvailable, StatusReserved, StatusExpired, StatusQuarantine, StatusDiscarded, StatusIssued}

func (s UnitStatus) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// manualTransitions are the status changes an inventory manager may make
// directly. Reserved and Issued are only reached through request decisions.
var manualTransitions = map[UnitStatus][]UnitStatus{
	StatusAvailable:  {StatusQuarantine, StatusDiscarded, StatusExpired},
	StatusQuarantine: {StatusAvailable, StatusDiscarded},
	StatusExpired:    {StatusDiscarded},
}

func canSetManually(from, to UnitStatus) bool {
	for _, s := range manualTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Unit is one bag of a blood product held by a blood bank.
type Unit struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	OrgID          uuid.UUID       `db:"org_id" json:"org_id"`
	BloodGroup     blood.Group     `db:"blood_group" json:"blood_group"`
	ComponentType  blood.Component `db:"component_type" json:"component_type"`
	QuantityML     int             `db:"quantity_ml" json:"quantity_ml"`
	CollectionDate time.Time       `db:"collection_date" json:"collection_date"`
	ExpiryDate     time.Time       `db:"expiry_date" json:"expiry_date"`
	Status         UnitStatus      `db:"status" json:"status"`
	ReservedFor    *uuid.UUID      `db:"reserved_for" json:"reserved_for,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// IsExpired reports whether the unit is past its expiry date at now,
// regardless of the recorded status.
func (u *Unit) IsExpired(now time.Time) bool {
	return !u.ExpiryDate.After(now)
}

// Validate lists every broken invariant of u.
func Validate(u *Unit) []apperr.Violation {
	var vs []apperr.Violation
	if !u.BloodGroup.Valid() {
		vs = append(vs, apperr.Violation{Field: "blood_group", Message: "unknown blood group " + string(u.BloodGroup)})
	}
	if !u.ComponentType.Valid() {
		vs = append(vs, apperr.Violation{Field: "component_type", Message: "unknown component " + string(u.ComponentType)})
	}
	if u.QuantityML < 1 {
		vs = append(vs, apperr.Violation{Field: "quantity_ml", Message: "must be at least 1"})
	}
	if u.CollectionDate.IsZero() {
		vs = append(vs, apperr.Violation{Field: "collection_date", Message: "is required"})
	}
	if !u.ExpiryDate.After(u.CollectionDate) {
		vs = append(vs, apperr.Violation{Field: "expiry_date", Message: "must be after collection_date"})
	}
	if u.Status != "" && !u.Status.Valid() {
		vs = append(vs, apperr.Violation{Field: "status", Message: "unknown status " + string(u.Status)})
	}
	if (u.Status == StatusReserved || u.Status == StatusIssued) && u.ReservedFor == nil {
		vs = append(vs, apperr.Violation{Field: "reserved_for", Message: "required while " + string(u.Status)})
	}
	return vs
}

// IsValidUnit returns the first broken invariant of u, if any.
func IsValidUnit(u *Unit) (bool, string) {
	if vs := Validate(u); len(vs) > 0 {
		return false, vs[0].String()
	}
	return true, ""
}
