package request

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bloodconnect/bloodconnect/internal/domain/blood"
)

func validRequest() *BloodRequest {
	return &BloodRequest{
		ID:             uuid.New(),
		RequesterOrgID: uuid.New(),
		BloodGroup:     blood.ONeg,
		ComponentType:  blood.PackedRBC,
		Quantity:       2,
		Urgency:        UrgencyCritical,
		Status:         StatusPending,
		RequestType:    TypeBroadcast,
		RequestDate:    testNow,
		RequiredDate:   testNow.Add(2 * time.Hour),
	}
}

func TestIsValidRequest(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *BloodRequest)
		field  string
	}{
		{"valid", func(*BloodRequest) {}, ""},
		{"zero quantity", func(r *BloodRequest) { r.Quantity = 0 }, "quantity"},
		{"required before request", func(r *BloodRequest) { r.RequiredDate = testNow.Add(-time.Hour) }, "required_date"},
		{"required equals request", func(r *BloodRequest) { r.RequiredDate = testNow }, "required_date"},
		{"bad group", func(r *BloodRequest) { r.BloodGroup = "C+" }, "blood_group"},
		{"bad component", func(r *BloodRequest) { r.ComponentType = "Serum" }, "component_type"},
		{"direct without targets", func(r *BloodRequest) { r.RequestType = TypeDirect }, "target_org_ids"},
		{"broadcast with targets", func(r *BloodRequest) { r.TargetOrgIDs = []uuid.UUID{uuid.New()} }, "target_org_ids"},
		{"long notes", func(r *BloodRequest) { r.Notes = strings.Repeat("x", MaxNotesLength+1) }, "notes"},
		{"no requester", func(r *BloodRequest) { r.RequesterOrgID = uuid.Nil }, "requester_org_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRequest()
			tt.mutate(r)
			ok, reason := IsValidRequest(r)
			if tt.field == "" {
				if !ok {
					t.Errorf("expected valid, got %q", reason)
				}
				return
			}
			if ok || !strings.HasPrefix(reason, tt.field+":") {
				t.Errorf("expected %s violation, got ok=%v %q", tt.field, ok, reason)
			}
		})
	}
}

func TestTargets(t *testing.T) {
	bank := uuid.New()
	r := validRequest()
	if !r.Targets(bank) {
		t.Error("broadcast request should target every org")
	}
	r.RequestType = TypeDirect
	r.TargetOrgIDs = []uuid.UUID{uuid.New()}
	if r.Targets(bank) {
		t.Error("direct request should only target listed orgs")
	}
	r.TargetOrgIDs = append(r.TargetOrgIDs, bank)
	if !r.Targets(bank) {
		t.Error("expected listed org to be targeted")
	}
}
