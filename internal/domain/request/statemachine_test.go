package request

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusAccepted, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusPending, StatusPartial, false},
		{StatusAccepted, StatusPartial, true},
		{StatusAccepted, StatusCompleted, true},
		{StatusAccepted, StatusCancelled, true},
		{StatusPartial, StatusCompleted, true},
		{StatusPartial, StatusRejected, true},
		{StatusPartial, StatusCancelled, false},
		{StatusPartial, StatusAccepted, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTerminalStatesAreFinal(t *testing.T) {
	for _, from := range []Status{StatusCompleted, StatusRejected, StatusCancelled} {
		if !IsTerminal(from) {
			t.Errorf("%s should be terminal", from)
		}
		for _, to := range Statuses {
			r := &BloodRequest{ID: uuid.New(), Status: from}
			_, err := Transition(r, to, nil, testNow, "")
			var ite *InvalidTransitionError
			if !errors.As(err, &ite) {
				t.Errorf("%s -> %s: expected InvalidTransitionError, got %v", from, to, err)
			}
			if r.Status != from {
				t.Errorf("%s -> %s: status changed to %s", from, to, r.Status)
			}
		}
	}
}

func TestTransition_RecordsChange(t *testing.T) {
	actor := uuid.New()
	r := &BloodRequest{ID: uuid.New(), Status: StatusPending}
	c, err := Transition(r, StatusAccepted, &actor, testNow, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.From != StatusPending || c.To != StatusAccepted || *c.ActorID != actor || !c.At.Equal(testNow) {
		t.Errorf("unexpected change %+v", c)
	}
	if r.Status != StatusAccepted || !r.UpdatedAt.Equal(testNow) {
		t.Errorf("unexpected request %+v", r)
	}
}

func TestSuccessors_ReturnsCopy(t *testing.T) {
	s := Successors(StatusPending)
	s[0] = StatusCompleted
	if !CanTransition(StatusPending, StatusAccepted) {
		t.Error("mutating Successors result changed the lifecycle")
	}
}
