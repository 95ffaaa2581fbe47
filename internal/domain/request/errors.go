package request

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/bloodconnect/bloodconnect/internal/domain/blood"
)

// InvalidTransitionError reports a move the lifecycle does not allow.
type InvalidTransitionError struct {
	RequestID uuid.UUID
	From      Status
	To        Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("request %s cannot move from %s to %s", e.RequestID, e.From, e.To)
}

func (e *InvalidTransitionError) HTTPStatus() int { return http.StatusConflict }

func (e *InvalidTransitionError) Details() map[string]interface{} {
	return map[string]interface{}{
		"request_id": e.RequestID,
		"from":       e.From,
		"to":         e.To,
		"allowed":    Successors(e.From),
	}
}

// InsufficientInventoryError is returned when an acceptance finds no usable
// stock. Shortfall tells the operator how much is missing.
type InsufficientInventoryError struct {
	RequestID uuid.UUID
	Group     blood.Group
	Component blood.Component
	Requested int
	Available int
	Shortfall int
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient %s %s: requested %d, available %d, shortfall %d",
		e.Group, e.Component, e.Requested, e.Available, e.Shortfall)
}

func (e *InsufficientInventoryError) HTTPStatus() int { return http.StatusUnprocessableEntity }

func (e *InsufficientInventoryError) Details() map[string]interface{} {
	return map[string]interface{}{
		"request_id": e.RequestID,
		"requested":  e.Requested,
		"available":  e.Available,
		"shortfall":  e.Shortfall,
	}
}

// EscalationError is returned when a request cannot be escalated in its
// current state.
type EscalationError struct {
	RequestID uuid.UUID
	Status    Status
	Urgency   Urgency
}

func (e *EscalationError) Error() string {
	if IsTerminal(e.Status) {
		return fmt.Sprintf("request %s is %s and cannot be escalated", e.RequestID, e.Status)
	}
	return fmt.Sprintf("request %s is already %s", e.RequestID, e.Urgency)
}

func (e *EscalationError) HTTPStatus() int { return http.StatusConflict }

func (e *EscalationError) Details() map[string]interface{} {
	return map[string]interface{}{"request_id": e.RequestID, "status": e.Status, "urgency": e.Urgency}
}
