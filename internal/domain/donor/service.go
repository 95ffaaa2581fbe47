package donor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bloodconnect/bloodconnect/internal/platform/apperr"
	"github.com/bloodconnect/bloodconnect/pkg/pagination"
)

type Service struct {
	repo     DonorRepository
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo DonorRepository) *Service {
	return &Service{
		repo:     repo,
		interval: DefaultDonationInterval,
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
}

// SetDonationInterval overrides the deferral after a donation. Non-positive
// values keep the default.
func (s *Service) SetDonationInterval(d time.Duration) {
	if d > 0 {
		s.interval = d
	}
}

func (s *Service) SetClock(now func() time.Time) { s.now = now }
func (s *Service) SetLogger(l zerolog.Logger)    { s.logger = l }

// Register adds a donor. New donors start Available with no donations.
func (s *Service) Register(ctx context.Context, d *Donor) error {
	d.Status = StatusAvailable
	d.TotalDonations = 0
	d.FullName = strings.TrimSpace(d.FullName)
	d.Email = strings.TrimSpace(d.Email)
	if err := apperr.NewValidationError(Validate(d, s.now())); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return fmt.Errorf("create donor: %w", err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Donor, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, orgID uuid.UUID, f Filter, p pagination.Params) ([]*Donor, int, error) {
	return s.repo.List(ctx, orgID, f, p.Limit, p.Offset)
}

// Update replaces the contact and profile fields. Donation history and
// status only change through RecordDonation, Reevaluate and Deactivate.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in *Donor) (*Donor, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d.FullName = strings.TrimSpace(in.FullName)
	d.BloodGroup = in.BloodGroup
	d.Age = in.Age
	d.ContactNumber = in.ContactNumber
	d.Email = strings.TrimSpace(in.Email)
	if err := apperr.NewValidationError(Validate(d, s.now())); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("update donor: %w", err)
	}
	return d, nil
}

// RecordDonation counts a donation taken on date and defers the donor for
// the donation interval. A zero date means today.
func (s *Service) RecordDonation(ctx context.Context, id uuid.UUID, date time.Time) (*Donor, error) {
	now := s.now()
	if date.IsZero() {
		date = now
	}
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var vs []apperr.Violation
	if d.Status != StatusAvailable {
		vs = append(vs, apperr.Violation{Field: "status", Message: fmt.Sprintf("donor is %s", d.Status)})
	}
	if !date.Before(endOfDay(now)) {
		vs = append(vs, apperr.Violation{Field: "date", Message: "must not be in the future"})
	}
	if d.LastDonationDate != nil && date.Before(*d.LastDonationDate) {
		vs = append(vs, apperr.Violation{Field: "date", Message: "must not precede the last donation"})
	}
	if err := apperr.NewValidationError(vs); err != nil {
		return nil, err
	}

	d.TotalDonations++
	d.LastDonationDate = &date
	d.Status = StatusTemporaryDeferral
	if err := s.repo.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("record donation: %w", err)
	}
	return d, nil
}

// Reevaluate lifts every deferral whose interval has passed. uuid.Nil
// covers every organization.
func (s *Service) Reevaluate(ctx context.Context, orgID uuid.UUID) (int, error) {
	n, err := s.repo.LiftDeferrals(ctx, orgID, s.now().Add(-s.interval))
	if err != nil {
		return 0, fmt.Errorf("lift deferrals: %w", err)
	}
	if n > 0 {
		s.logger.Info().Int("count", n).Str("org_id", orgID.String()).Msg("donor deferrals lifted")
	}
	return n, nil
}

// Deactivate marks a donor Ineligible. Donors are never deleted.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) (*Donor, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status == StatusIneligible {
		return d, nil
	}
	d.Status = StatusIneligible
	if err := s.repo.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("deactivate donor: %w", err)
	}
	return d, nil
}
