package request

import (
	"time"

	"github.com/google/uuid"
)

// successors is the request lifecycle. Terminal states map to nothing.
var successors = map[Status][]Status{
	StatusPending:   {StatusAccepted, StatusRejected, StatusCancelled},
	StatusAccepted:  {StatusPartial, StatusCompleted, StatusRejected, StatusCancelled},
	StatusPartial:   {StatusCompleted, StatusRejected},
	StatusCompleted: nil,
	StatusRejected:  nil,
	StatusCancelled: nil,
}

// Successors returns the states reachable from s in one step.
func Successors(s Status) []Status {
	return append([]Status(nil), successors[s]...)
}

func CanTransition(from, to Status) bool {
	for _, s := range successors[from] {
		if s == to {
			return true
		}
	}
	return false
}

func IsTerminal(s Status) bool {
	next, known := successors[s]
	return known && len(next) == 0
}

// holdsReservation reports whether units may be reserved for a request in s.
func holdsReservation(s Status) bool {
	return s == StatusAccepted || s == StatusPartial
}

// Transition moves r to the target status and returns the audit entry for the
// move. r is unchanged when the move is not allowed.
func Transition(r *BloodRequest, to Status, actor *uuid.UUID, at time.Time, reason string) (StatusChange, error) {
	if !CanTransition(r.Status, to) {
		return StatusChange{}, &InvalidTransitionError{RequestID: r.ID, From: r.Status, To: to}
	}
	change := StatusChange{
		RequestID: r.ID,
		From:      r.Status,
		To:        to,
		ActorID:   actor,
		Reason:    reason,
		At:        at,
	}
	r.Status = to
	r.UpdatedAt = at
	return change, nil
}
