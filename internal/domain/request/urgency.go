package request

import (
	"time"

	"github.com/bloodconnect/bloodconnect/internal/domain/blood"
)

type Urgency string

const (
	UrgencyCritical Urgency = "Critical"
	UrgencyUrgent   Urgency = "Urgent"
	UrgencyNormal   Urgency = "Normal"
)

const (
	CriticalWindow = 4 * time.Hour
	UrgentWindow   = 24 * time.Hour
)

// Rank orders urgencies for triage; lower is more urgent. Unknown values
// sort last.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyCritical:
		return 0
	case UrgencyUrgent:
		return 1
	case UrgencyNormal:
		return 2
	}
	return 3
}

func (u Urgency) Valid() bool { return u.Rank() < 3 }

// MoreUrgent returns the more urgent of a and b.
func MoreUrgent(a, b Urgency) Urgency {
	if b.Rank() < a.Rank() {
		return b
	}
	return a
}

type ClassifyInput struct {
	Component    blood.Component
	Quantity     int
	RequiredDate time.Time
	ClinicalFlag bool
}

type Classification struct {
	Urgency Urgency `json:"urgency"`
	// Overdue is set when the deadline has already passed.
	Overdue bool `json:"overdue"`
}

// Classify derives the urgency tier from the time left until the required
// date. A passed deadline is always Critical. Component and quantity do not
// currently influence the tier.
func Classify(in ClassifyInput, now time.Time) Classification {
	left := in.RequiredDate.Sub(now)
	switch {
	case left <= 0:
		return Classification{Urgency: UrgencyCritical, Overdue: true}
	case in.ClinicalFlag || left <= CriticalWindow:
		return Classification{Urgency: UrgencyCritical}
	case left <= UrgentWindow:
		return Classification{Urgency: UrgencyUrgent}
	default:
		return Classification{Urgency: UrgencyNormal}
	}
}

func classifyRequest(r *BloodRequest, now time.Time) Classification {
	return Classify(ClassifyInput{
		Component:    r.ComponentType,
		Quantity:     r.Quantity,
		RequiredDate: r.RequiredDate,
		ClinicalFlag: r.ClinicalFlag,
	}, now)
}

// EffectiveUrgency is the more urgent of the stored tier and a fresh
// classification at now, so a waiting request only ever moves up.
func (r *BloodRequest) EffectiveUrgency(now time.Time) Urgency {
	return MoreUrgent(r.Urgency, classifyRequest(r, now).Urgency)
}

// refresh updates the derived fields for presentation. Terminal requests keep
// the tier they closed with.
func (r *BloodRequest) refresh(now time.Time) {
	if IsTerminal(r.Status) {
		r.Overdue = false
		return
	}
	c := classifyRequest(r, now)
	r.Urgency = MoreUrgent(r.Urgency, c.Urgency)
	r.Overdue = c.Overdue
}
