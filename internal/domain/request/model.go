package request

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/bloodconnect/bloodconnect/internal/domain/blood"
	"github.com/bloodconnect/bloodconnect/internal/platform/apperr"
)

type Status string

const (
	StatusPending   Status = "Pending"
	StatusAccepted  Status = "Accepted"
	StatusPartial   Status = "Partial"
	StatusCompleted Status = "Completed"
	StatusRejected  Status = "Rejected"
	StatusCancelled Status = "Cancelled"
)

var Statuses = []Status{StatusPending, StatusAccepted, StatusPartial, StatusCompleted, StatusRejected, StatusCancelled}

func (s Status) Valid() bool {
	_, ok := successors[s]
	return ok
}

type RequestType string

const (
	TypeDirect    RequestType = "direct"
	TypeBroadcast RequestType = "broadcast"
)

func (t RequestType) Valid() bool {
	return t == TypeDirect || t == TypeBroadcast
}

const MaxNotesLength = 500

// Escalation records a manual override of the derived urgency.
type Escalation struct {
	By              uuid.UUID `json:"by"`
	Reason          string    `json:"reason"`
	At              time.Time `json:"at"`
	PreviousUrgency Urgency   `json:"previous_urgency"`
}

// BloodRequest is a hospital's request for blood product units.
type BloodRequest struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	RequesterOrgID  uuid.UUID       `db:"requester_org_id" json:"requester_org_id"`
	BloodGroup      blood.Group     `db:"blood_group" json:"blood_group"`
	ComponentType   blood.Component `db:"component_type" json:"component_type"`
	Quantity        int             `db:"quantity" json:"quantity"`
	Urgency         Urgency         `db:"urgency" json:"urgency"`
	Overdue         bool            `db:"-" json:"overdue"`
	ClinicalFlag    bool            `db:"clinical_flag" json:"clinical_flag"`
	Status          Status          `db:"status" json:"status"`
	RequestType     RequestType     `db:"request_type" json:"request_type"`
	TargetOrgIDs    []uuid.UUID     `db:"target_org_ids" json:"target_org_ids"`
	FulfillingOrgID *uuid.UUID      `db:"fulfilling_org_id" json:"fulfilling_org_id,omitempty"`
	ReservedUnits   int             `db:"reserved_units" json:"reserved_units"`
	Shortfall       int             `db:"shortfall" json:"shortfall"`
	Escalation      *Escalation     `db:"escalation" json:"escalation,omitempty"`
	Notes           string          `db:"notes" json:"notes,omitempty"`
	RequestDate     time.Time       `db:"request_date" json:"request_date"`
	RequiredDate    time.Time       `db:"required_date" json:"required_date"`
	VersionID       int             `db:"version_id" json:"version_id"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// Targets reports whether orgID may act on the request as a blood bank.
func (r *BloodRequest) Targets(orgID uuid.UUID) bool {
	if r.RequestType != TypeDirect {
		return true
	}
	for _, id := range r.TargetOrgIDs {
		if id == orgID {
			return true
		}
	}
	return false
}

// StatusChange is one entry of a request's audit trail. From is empty for the
// creation entry.
type StatusChange struct {
	ID        int64      `db:"id" json:"id"`
	RequestID uuid.UUID  `db:"request_id" json:"request_id"`
	From      Status     `db:"from_status" json:"from,omitempty"`
	To        Status     `db:"to_status" json:"to"`
	ActorID   *uuid.UUID `db:"actor_id" json:"actor_id,omitempty"`
	Reason    string     `db:"reason" json:"reason,omitempty"`
	At        time.Time  `db:"changed_at" json:"at"`
}

// Filter selects requests for listing. Zero values match everything.
// TargetOrgID keeps broadcast requests plus direct requests naming that org.
type Filter struct {
	Status         Status
	Urgency        Urgency
	RequesterOrgID uuid.UUID
	TargetOrgID    uuid.UUID
	BloodGroup     blood.Group
}

// Validate lists every broken invariant of a stored request.
func Validate(r *BloodRequest) []apperr.Violation {
	var vs []apperr.Violation
	if r.RequesterOrgID == uuid.Nil {
		vs = append(vs, apperr.Violation{Field: "requester_org_id", Message: "is required"})
	}
	if !r.BloodGroup.Valid() {
		vs = append(vs, apperr.Violation{Field: "blood_group", Message: "unknown blood group " + string(r.BloodGroup)})
	}
	if !r.ComponentType.Valid() {
		vs = append(vs, apperr.Violation{Field: "component_type", Message: "unknown component " + string(r.ComponentType)})
	}
	if r.Quantity < 1 {
		vs = append(vs, apperr.Violation{Field: "quantity", Message: "must be at least 1"})
	}
	if !r.RequiredDate.After(r.RequestDate) {
		vs = append(vs, apperr.Violation{Field: "required_date", Message: "must be after request_date"})
	}
	if !r.Status.Valid() {
		vs = append(vs, apperr.Violation{Field: "status", Message: "unknown status " + string(r.Status)})
	}
	if !r.Urgency.Valid() {
		vs = append(vs, apperr.Violation{Field: "urgency", Message: "unknown urgency " + string(r.Urgency)})
	}
	switch {
	case !r.RequestType.Valid():
		vs = append(vs, apperr.Violation{Field: "request_type", Message: "must be direct or broadcast"})
	case r.RequestType == TypeDirect && len(r.TargetOrgIDs) == 0:
		vs = append(vs, apperr.Violation{Field: "target_org_ids", Message: "direct requests need at least one target"})
	case r.RequestType == TypeBroadcast && len(r.TargetOrgIDs) > 0:
		vs = append(vs, apperr.Violation{Field: "target_org_ids", Message: "broadcast requests cannot name targets"})
	}
	if utf8.RuneCountInString(r.Notes) > MaxNotesLength {
		vs = append(vs, apperr.Violation{Field: "notes", Message: "must be at most 500 characters"})
	}
	return vs
}

// IsValidRequest returns the first broken invariant of r, if any.
func IsValidRequest(r *BloodRequest) (bool, string) {
	if vs := Validate(r); len(vs) > 0 {
		return false, vs[0].String()
	}
	return true, ""
}
