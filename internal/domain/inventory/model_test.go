package inventory

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bloodconnect/bloodconnect/internal/domain/blood"
)

func validUnit() *Unit {
	collected := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	return &Unit{
		OrgID:          uuid.New(),
		BloodGroup:     blood.ONeg,
		ComponentType:  blood.PackedRBC,
		QuantityML:     450,
		CollectionDate: collected,
		ExpiryDate:     collected.AddDate(0, 0, 42),
		Status:         StatusAvailable,
	}
}

func TestIsValidUnit(t *testing.T) {
	if ok, msg := IsValidUnit(validUnit()); !ok {
		t.Fatalf("expected valid unit, got %q", msg)
	}

	tests := []struct {
		name   string
		mutate func(u *Unit)
		field  string
	}{
		{"expiry before collection", func(u *Unit) { u.ExpiryDate = u.CollectionDate.Add(-time.Hour) }, "expiry_date"},
		{"expiry equals collection", func(u *Unit) { u.ExpiryDate = u.CollectionDate }, "expiry_date"},
		{"zero volume", func(u *Unit) { u.QuantityML = 0 }, "quantity_ml"},
		{"unknown group", func(u *Unit) { u.BloodGroup = "C+" }, "blood_group"},
		{"unknown component", func(u *Unit) { u.ComponentType = "Serum" }, "component_type"},
		{"reserved without request", func(u *Unit) { u.Status = StatusReserved }, "reserved_for"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := validUnit()
			tt.mutate(u)
			ok, msg := IsValidUnit(u)
			if ok {
				t.Fatal("expected invalid unit")
			}
			if !strings.HasPrefix(msg, tt.field) {
				t.Errorf("expected first violation on %s, got %q", tt.field, msg)
			}
		})
	}
}

func TestValidate_ListsAllViolations(t *testing.T) {
	u := validUnit()
	u.QuantityML = 0
	u.BloodGroup = "X"
	if vs := Validate(u); len(vs) != 2 {
		t.Errorf("expected 2 violations, got %v", vs)
	}
}

func TestCanSetManually(t *testing.T) {
	tests := []struct {
		from, to UnitStatus
		want     bool
	}{
		{StatusAvailable, StatusQuarantine, true},
		{StatusQuarantine, StatusAvailable, true},
		{StatusExpired, StatusDiscarded, true},
		{StatusAvailable, StatusReserved, false},
		{StatusReserved, StatusAvailable, false},
		{StatusIssued, StatusAvailable, false},
		{StatusDiscarded, StatusAvailable, false},
	}
	for _, tt := range tests {
		if got := canSetManually(tt.from, tt.to); got != tt.want {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.want, got)
		}
	}
}
