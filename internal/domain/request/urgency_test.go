package request

import (
	"testing"
	"time"

	"github.com/bloodconnect/bloodconnect/internal/domain/blood"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		in      ClassifyInput
		want    Urgency
		overdue bool
	}{
		{"within 4h", ClassifyInput{Component: blood.PackedRBC, Quantity: 2, RequiredDate: testNow.Add(2 * time.Hour)}, UrgencyCritical, false},
		{"48h away", ClassifyInput{Component: blood.WholeBlood, Quantity: 10, RequiredDate: testNow.Add(48 * time.Hour)}, UrgencyNormal, false},
		{"exactly 4h", ClassifyInput{RequiredDate: testNow.Add(CriticalWindow)}, UrgencyCritical, false},
		{"just over 4h", ClassifyInput{RequiredDate: testNow.Add(CriticalWindow + time.Minute)}, UrgencyUrgent, false},
		{"exactly 24h", ClassifyInput{RequiredDate: testNow.Add(UrgentWindow)}, UrgencyUrgent, false},
		{"clinical flag", ClassifyInput{RequiredDate: testNow.Add(72 * time.Hour), ClinicalFlag: true}, UrgencyCritical, false},
		{"deadline passed", ClassifyInput{RequiredDate: testNow.Add(-time.Minute)}, UrgencyCritical, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.in, testNow)
			if got.Urgency != tt.want || got.Overdue != tt.overdue {
				t.Errorf("expected %s overdue=%v, got %s overdue=%v", tt.want, tt.overdue, got.Urgency, got.Overdue)
			}
		})
	}
}

func TestClassify_MonotonicAsDeadlineApproaches(t *testing.T) {
	required := testNow.Add(72 * time.Hour)
	in := ClassifyInput{RequiredDate: required}
	prev := Classify(in, testNow).Urgency
	for now := testNow; now.Before(required.Add(2 * time.Hour)); now = now.Add(30 * time.Minute) {
		got := Classify(in, now).Urgency
		if got.Rank() > prev.Rank() {
			t.Fatalf("urgency dropped from %s to %s at %s", prev, got, now)
		}
		prev = got
	}
	if prev != UrgencyCritical {
		t.Errorf("expected Critical past the deadline, got %s", prev)
	}
}

func TestMoreUrgent(t *testing.T) {
	if MoreUrgent(UrgencyNormal, UrgencyUrgent) != UrgencyUrgent {
		t.Error("expected Urgent")
	}
	if MoreUrgent(UrgencyCritical, UrgencyNormal) != UrgencyCritical {
		t.Error("expected Critical")
	}
}

func TestEffectiveUrgency_NeverDowngradesEscalation(t *testing.T) {
	r := &BloodRequest{
		Status:       StatusPending,
		Urgency:      UrgencyCritical,
		RequestDate:  testNow,
		RequiredDate: testNow.Add(72 * time.Hour),
	}
	if got := r.EffectiveUrgency(testNow); got != UrgencyCritical {
		t.Errorf("expected Critical, got %s", got)
	}
}

func TestRefresh(t *testing.T) {
	r := &BloodRequest{
		Status:       StatusPending,
		Urgency:      UrgencyNormal,
		RequestDate:  testNow,
		RequiredDate: testNow.Add(30 * time.Hour),
	}
	r.refresh(testNow.Add(10 * time.Hour))
	if r.Urgency != UrgencyUrgent {
		t.Errorf("expected Urgent after 10h, got %s", r.Urgency)
	}
	r.refresh(testNow.Add(31 * time.Hour))
	if r.Urgency != UrgencyCritical || !r.Overdue {
		t.Errorf("expected overdue Critical, got %s overdue=%v", r.Urgency, r.Overdue)
	}

	done := &BloodRequest{Status: StatusCompleted, Urgency: UrgencyNormal, RequiredDate: testNow.Add(-time.Hour)}
	done.refresh(testNow)
	if done.Urgency != UrgencyNormal || done.Overdue {
		t.Errorf("expected closed request to keep its tier, got %s overdue=%v", done.Urgency, done.Overdue)
	}
}
