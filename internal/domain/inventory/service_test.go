package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bloodconnect/bloodconnect/internal/domain/blood"
	"github.com/bloodconnect/bloodconnect/internal/platform/apperr"
	"github.com/bloodconnect/bloodconnect/internal/platform/dispatch"
	"github.com/bloodconnect/bloodconnect/pkg/pagination"
)

func newTestService() *Service {
	svc := NewService(NewUnitRepoMemory())
	svc.SetClock(func() time.Time { return testNow })
	return svc
}

func seedUnits(t *testing.T, svc *Service, org uuid.UUID, g blood.Group, c blood.Component, n int, expiresIn time.Duration) []*Unit {
	t.Helper()
	var out []*Unit
	for i := 0; i < n; i++ {
		u := &Unit{
			OrgID:          org,
			BloodGroup:     g,
			ComponentType:  c,
			QuantityML:     450,
			CollectionDate: testNow.AddDate(0, 0, -1),
			ExpiryDate:     testNow.Add(expiresIn),
		}
		if err := svc.AddUnit(context.Background(), u); err != nil {
			t.Fatalf("AddUnit: %v", err)
		}
		out = append(out, u)
	}
	return out
}

func TestService_AddUnit(t *testing.T) {
	svc := newTestService()
	u := seedUnits(t, svc, uuid.New(), blood.ABPos, blood.Platelets, 1, 5*day)[0]
	if u.ID == uuid.Nil || u.Status != StatusAvailable {
		t.Errorf("expected id and Available status, got %+v", u)
	}
}

func TestService_AddUnit_Validation(t *testing.T) {
	svc := newTestService()
	u := &Unit{
		OrgID:          uuid.New(),
		BloodGroup:     blood.APos,
		ComponentType:  blood.Plasma,
		QuantityML:     200,
		CollectionDate: testNow.Add(time.Hour),
		ExpiryDate:     testNow.Add(48 * time.Hour),
		Status:         StatusReserved,
	}
	err := svc.AddUnit(context.Background(), u)
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	fields := map[string]bool{}
	for _, v := range ve.Violations {
		fields[v.Field] = true
	}
	for _, f := range []string{"collection_date", "status", "reserved_for"} {
		if !fields[f] {
			t.Errorf("expected violation on %s, got %v", f, ve.Violations)
		}
	}
}

func TestService_UpdateStatus(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	u := seedUnits(t, svc, uuid.New(), blood.APos, blood.Plasma, 1, 30*day)[0]

	got, err := svc.UpdateStatus(ctx, u.ID, StatusQuarantine)
	if err != nil || got.Status != StatusQuarantine {
		t.Fatalf("expected Quarantine, got %v %v", got, err)
	}
	if _, err := svc.UpdateStatus(ctx, u.ID, StatusReserved); err == nil {
		t.Error("expected manual reservation to be rejected")
	}
	if _, err := svc.UpdateStatus(ctx, uuid.New(), StatusDiscarded); !apperr.IsNotFound(err) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func countAvailable(t *testing.T, svc *Service, org uuid.UUID) int {
	t.Helper()
	_, total, err := svc.ListUnits(context.Background(), org, Filter{Status: StatusAvailable}, pagination.FromPage(1, 100))
	if err != nil {
		t.Fatal(err)
	}
	return total
}

func TestService_AllocateRelease_RoundTrip(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	org := uuid.New()
	seedUnits(t, svc, org, blood.ONeg, blood.PackedRBC, 3, 30*day)
	before := countAvailable(t, svc, org)

	reqID := uuid.New()
	res, err := svc.Allocate(ctx, org, MatchQuery{Group: blood.ONeg, Component: blood.PackedRBC, Quantity: 5}, reqID)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if res.Kind != MatchPartial || len(res.Units) != 3 || res.Shortfall != 2 {
		t.Fatalf("unexpected match %+v", res)
	}
	if countAvailable(t, svc, org) != before-3 {
		t.Errorf("expected 3 units reserved")
	}

	n, err := svc.Release(ctx, reqID)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 released, got %d %v", n, err)
	}
	if countAvailable(t, svc, org) != before {
		t.Errorf("expected available count restored to %d", before)
	}
}

func TestService_Allocate_NoneReservesNothing(t *testing.T) {
	svc := newTestService()
	org := uuid.New()
	seedUnits(t, svc, org, blood.ONeg, blood.PackedRBC, 2, 3*day)

	res, err := svc.Allocate(context.Background(), org, MatchQuery{Group: blood.ONeg, Component: blood.PackedRBC, Quantity: 1}, uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != MatchNone {
		t.Errorf("expected None for near-expiry stock, got %s", res.Kind)
	}
	if countAvailable(t, svc, org) != 2 {
		t.Error("expected nothing reserved")
	}
}

func TestService_Issue(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	org := uuid.New()
	seedUnits(t, svc, org, blood.BNeg, blood.WholeBlood, 2, 30*day)
	reqID := uuid.New()
	if _, err := svc.Allocate(ctx, org, MatchQuery{Group: blood.BNeg, Component: blood.WholeBlood, Quantity: 2}, reqID); err != nil {
		t.Fatal(err)
	}

	n, err := svc.Issue(ctx, reqID)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 issued, got %d %v", n, err)
	}
	issued, _, _ := svc.ListUnits(ctx, org, Filter{Status: StatusIssued}, pagination.FromPage(1, 10))
	if len(issued) != 2 || issued[0].ReservedFor == nil || *issued[0].ReservedFor != reqID {
		t.Errorf("expected issued units to keep their request reference, got %+v", issued)
	}
	if n, _ := svc.Release(ctx, reqID); n != 0 {
		t.Errorf("expected nothing left to release, got %d", n)
	}
}

func TestService_ExpireUnits(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	org := uuid.New()
	seedUnits(t, svc, org, blood.APos, blood.Plasma, 2, 30*day)

	svc.SetClock(func() time.Time { return testNow.Add(31 * day) })
	n, err := svc.ExpireUnits(ctx, org)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 expired, got %d %v", n, err)
	}
	if n, _ := svc.ExpireUnits(ctx, uuid.Nil); n != 0 {
		t.Errorf("expected sweep to be idempotent, got %d", n)
	}
}

type capturePublisher struct{ events []dispatch.Event }

func (p *capturePublisher) Publish(_ context.Context, evt dispatch.Event) error {
	p.events = append(p.events, evt)
	return nil
}

func TestService_ExpireUnits_Publishes(t *testing.T) {
	svc := newTestService()
	pub := &capturePublisher{}
	svc.SetPublisher(pub)
	org := uuid.New()
	seedUnits(t, svc, org, blood.ONeg, blood.WholeBlood, 3, 2*day)

	svc.SetClock(func() time.Time { return testNow.Add(3 * day) })
	if _, err := svc.ExpireUnits(context.Background(), org); err != nil {
		t.Fatal(err)
	}
	if len(pub.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pub.events))
	}
	evt := pub.events[0]
	if evt.Type != dispatch.EventUnitsExpired || evt.Count != 3 || evt.OrgID != org {
		t.Errorf("unexpected event %+v", evt)
	}

	svc.ExpireUnits(context.Background(), org)
	if len(pub.events) != 1 {
		t.Error("expected no event when nothing expired")
	}
}

func TestService_SummaryThresholds(t *testing.T) {
	svc := newTestService()
	svc.SetThresholds(0, 2)
	org := uuid.New()
	seedUnits(t, svc, org, blood.APos, blood.Plasma, 2, 30*day)

	s, err := svc.Summary(context.Background(), org)
	if err != nil {
		t.Fatal(err)
	}
	for _, g := range s.LowStockGroups {
		if g == blood.APos {
			t.Error("A+ meets the threshold of 2")
		}
	}
	if svc.NearExpiryWindow() != DefaultNearExpiryWindow {
		t.Error("expected non-positive window to keep the default")
	}
}
