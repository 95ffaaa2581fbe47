package donor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bloodconnect/bloodconnect/internal/domain/blood"
	"github.com/bloodconnect/bloodconnect/internal/platform/apperr"
	"github.com/bloodconnect/bloodconnect/pkg/pagination"
)

func newTestService() *Service {
	svc := NewService(NewDonorRepoMemory())
	svc.SetClock(func() time.Time { return testNow })
	return svc
}

func register(t *testing.T, svc *Service, d *Donor) *Donor {
	t.Helper()
	if err := svc.Register(context.Background(), d); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return d
}

func TestService_Register(t *testing.T) {
	svc := newTestService()
	d := validDonor()
	d.Status = StatusIneligible
	d.TotalDonations = 9
	register(t, svc, d)

	if d.ID == uuid.Nil {
		t.Error("expected id to be assigned")
	}
	if d.Status != StatusAvailable || d.TotalDonations != 0 {
		t.Errorf("expected Available with 0 donations, got %s %d", d.Status, d.TotalDonations)
	}
}

func TestService_Register_Invalid(t *testing.T) {
	svc := newTestService()
	d := validDonor()
	d.Age = 70
	d.Email = ""
	err := svc.Register(context.Background(), d)
	ve, ok := err.(*apperr.ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(ve.Violations) != 2 {
		t.Errorf("expected 2 violations, got %v", ve.Violations)
	}
}

func TestService_RecordDonation(t *testing.T) {
	svc := newTestService()
	d := register(t, svc, validDonor())
	date := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)

	got, err := svc.RecordDonation(context.Background(), d.ID, date)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TotalDonations != 1 || got.Status != StatusTemporaryDeferral || !got.LastDonationDate.Equal(date) {
		t.Errorf("unexpected donor %+v", got)
	}

	_, err = svc.RecordDonation(context.Background(), d.ID, testNow)
	if _, ok := err.(*apperr.ValidationError); !ok {
		t.Errorf("expected deferred donor to be refused, got %v", err)
	}
}

func TestService_RecordDonation_Dates(t *testing.T) {
	svc := newTestService()
	d := register(t, svc, validDonor())

	if _, err := svc.RecordDonation(context.Background(), d.ID, testNow.AddDate(0, 0, 1)); err == nil {
		t.Error("expected future date to be refused")
	}
	if _, err := svc.RecordDonation(context.Background(), d.ID, d.LastDonationDate.AddDate(0, 0, -1)); err == nil {
		t.Error("expected date before last donation to be refused")
	}

	got, err := svc.RecordDonation(context.Background(), d.ID, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.LastDonationDate.Equal(testNow) {
		t.Errorf("expected today, got %s", got.LastDonationDate)
	}
}

func TestService_Reevaluate(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	org := uuid.New()

	old := validDonor()
	old.OrgID = org
	register(t, svc, old)
	svc.RecordDonation(ctx, old.ID, testNow.AddDate(0, 0, -60))

	recent := validDonor()
	recent.OrgID = org
	recent.LastDonationDate = nil
	register(t, svc, recent)
	svc.RecordDonation(ctx, recent.ID, testNow.AddDate(0, 0, -10))

	n, err := svc.Reevaluate(ctx, org)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 donor reinstated, got %d", n)
	}
	got, _ := svc.Get(ctx, old.ID)
	if got.Status != StatusAvailable {
		t.Errorf("expected Available, got %s", got.Status)
	}
	got, _ = svc.Get(ctx, recent.ID)
	if got.Status != StatusTemporaryDeferral {
		t.Errorf("expected deferral kept, got %s", got.Status)
	}
}

func TestService_Reevaluate_CustomInterval(t *testing.T) {
	svc := newTestService()
	svc.SetDonationInterval(7 * 24 * time.Hour)
	ctx := context.Background()
	d := register(t, svc, validDonor())
	svc.RecordDonation(ctx, d.ID, testNow.AddDate(0, 0, -10))

	if n, _ := svc.Reevaluate(ctx, uuid.Nil); n != 1 {
		t.Errorf("expected 1 donor reinstated, got %d", n)
	}
}

func TestService_Deactivate(t *testing.T) {
	svc := newTestService()
	d := register(t, svc, validDonor())

	got, err := svc.Deactivate(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusIneligible {
		t.Errorf("expected Ineligible, got %s", got.Status)
	}
	if _, err := svc.Get(context.Background(), d.ID); err != nil {
		t.Errorf("expected donor to be kept, got %v", err)
	}
	if _, err := svc.Deactivate(context.Background(), uuid.New()); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestService_Update_KeepsDonationHistory(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	d := register(t, svc, validDonor())
	svc.RecordDonation(ctx, d.ID, testNow)

	in := validDonor()
	in.FullName = "John A. Doe"
	in.TotalDonations = 40
	got, err := svc.Update(ctx, d.ID, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.FullName != "John A. Doe" || got.TotalDonations != 1 || got.Status != StatusTemporaryDeferral {
		t.Errorf("unexpected donor %+v", got)
	}
}

func TestService_List(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	org := uuid.New()
	for _, name := range []string{"Jane Smith", "Robert Johnson", "Emily Davis"} {
		d := validDonor()
		d.OrgID = org
		d.FullName = name
		register(t, svc, d)
	}
	neg := validDonor()
	neg.OrgID = org
	neg.FullName = "Michael Wilson"
	neg.BloodGroup = blood.ONeg
	register(t, svc, neg)

	items, total, err := svc.List(ctx, org, Filter{}, pagination.FromPage(1, 2))
	if err != nil {
		t.Fatal(err)
	}
	if total != 4 || len(items) != 2 || items[0].FullName != "Emily Davis" {
		t.Errorf("unexpected page %d/%d", len(items), total)
	}

	items, _, _ = svc.List(ctx, org, Filter{BloodGroup: blood.ONeg}, pagination.FromPage(1, 10))
	if len(items) != 1 || items[0].ID != neg.ID {
		t.Errorf("expected only the O- donor")
	}
	items, _, _ = svc.List(ctx, org, Filter{Search: "smith"}, pagination.FromPage(1, 10))
	if len(items) != 1 || items[0].FullName != "Jane Smith" {
		t.Errorf("expected search to match Jane Smith")
	}
}

// interleavingRepo runs a one-shot callback after a read, so another writer
// lands between a service's read and its write.
type interleavingRepo struct {
	DonorRepository
	afterGet func()
}

func (r *interleavingRepo) GetByID(ctx context.Context, id uuid.UUID) (*Donor, error) {
	d, err := r.DonorRepository.GetByID(ctx, id)
	if fn := r.afterGet; fn != nil {
		r.afterGet = nil
		fn()
	}
	return d, err
}

func TestService_RecordDonation_ConcurrentWriterWins(t *testing.T) {
	repo := &interleavingRepo{DonorRepository: NewDonorRepoMemory()}
	svc := NewService(repo)
	svc.SetClock(func() time.Time { return testNow })
	ctx := context.Background()
	d := register(t, svc, validDonor())

	repo.afterGet = func() {
		if _, err := svc.RecordDonation(ctx, d.ID, testNow); err != nil {
			t.Errorf("first donation: %v", err)
		}
	}
	_, err := svc.RecordDonation(ctx, d.ID, testNow)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	got, err := svc.Get(ctx, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalDonations != 1 || got.VersionID != 2 {
		t.Errorf("expected one counted donation at version 2, got %d at %d", got.TotalDonations, got.VersionID)
	}
}

func TestService_Update_StaleVersionRejected(t *testing.T) {
	repo := &interleavingRepo{DonorRepository: NewDonorRepoMemory()}
	svc := NewService(repo)
	svc.SetClock(func() time.Time { return testNow })
	ctx := context.Background()
	d := register(t, svc, validDonor())

	repo.afterGet = func() {
		if _, err := svc.RecordDonation(ctx, d.ID, testNow); err != nil {
			t.Errorf("donation: %v", err)
		}
	}
	edit := validDonor()
	edit.FullName = "Renamed Donor"
	if _, err := svc.Update(ctx, d.ID, edit); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	got, err := svc.Get(ctx, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalDonations != 1 || got.Status != StatusTemporaryDeferral {
		t.Errorf("expected the donation to survive, got %d %s", got.TotalDonations, got.Status)
	}
}
