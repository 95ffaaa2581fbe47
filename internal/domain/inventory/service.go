package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bloodconnect/bloodconnect/internal/platform/apperr"
	"github.com/bloodconnect/bloodconnect/internal/platform/db"
	"github.com/bloodconnect/bloodconnect/internal/platform/dispatch"
	"github.com/bloodconnect/bloodconnect/pkg/pagination"
)

// Locker runs fn while holding the lock for key. db.TxRunner and
// db.LocalLocker implement it.
type Locker interface {
	WithinOrg(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

type Service struct {
	repo     UnitRepository
	locker   Locker
	window   time.Duration
	lowStock int
	pub      dispatch.Publisher
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo UnitRepository) *Service {
	return &Service{
		repo:     repo,
		locker:   db.NewLocalLocker(),
		window:   DefaultNearExpiryWindow,
		lowStock: DefaultLowStockThreshold,
		pub:      dispatch.Nop{},
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
}

// SetThresholds overrides the near-expiry window and the low-stock threshold.
// Non-positive values keep the defaults.
func (s *Service) SetThresholds(window time.Duration, lowStock int) {
	if window > 0 {
		s.window = window
	}
	if lowStock > 0 {
		s.lowStock = lowStock
	}
}

// SetLocker shares the lock space with the request service, which holds an
// organization's key while it reserves or releases that organization's units.
func (s *Service) SetLocker(l Locker) { s.locker = l }

func (s *Service) SetClock(now func() time.Time)     { s.now = now }
func (s *Service) SetPublisher(p dispatch.Publisher) { s.pub = p }
func (s *Service) SetLogger(l zerolog.Logger)        { s.logger = l }

func (s *Service) NearExpiryWindow() time.Duration { return s.window }

func (s *Service) AddUnit(ctx context.Context, u *Unit) error {
	if u.Status == "" {
		u.Status = StatusAvailable
	}
	vs := Validate(u)
	if u.OrgID == uuid.Nil {
		vs = append(vs, apperr.Violation{Field: "org_id", Message: "is required"})
	}
	if u.CollectionDate.After(s.now()) {
		vs = append(vs, apperr.Violation{Field: "collection_date", Message: "must not be in the future"})
	}
	if u.Status != StatusAvailable && u.Status != StatusQuarantine {
		vs = append(vs, apperr.Violation{Field: "status", Message: "new units must be Available or Quarantine"})
	}
	if err := apperr.NewValidationError(vs); err != nil {
		return err
	}
	u.ReservedFor = nil
	if err := s.repo.Create(ctx, u); err != nil {
		return fmt.Errorf("create unit: %w", err)
	}
	return nil
}

func (s *Service) GetUnit(ctx context.Context, id uuid.UUID) (*Unit, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListUnits(ctx context.Context, orgID uuid.UUID, f Filter, p pagination.Params) ([]*Unit, int, error) {
	return s.repo.List(ctx, orgID, f, p.Limit, p.Offset)
}

// UpdateStatus applies a manual status change. Reservation states are owned by
// request decisions and cannot be entered or left here. The change runs under
// the unit's organization lock and only lands if the unit is still in the
// status it was read in.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, to UnitStatus) (*Unit, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var out *Unit
	err = s.locker.WithinOrg(ctx, db.OrgLockKey(u.OrgID), func(ctx context.Context) error {
		u, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		out = u
		if u.Status == to {
			return nil
		}
		if !canSetManually(u.Status, to) {
			return apperr.Invalid("status", fmt.Sprintf("cannot move unit from %s to %s", u.Status, to))
		}
		if err := s.repo.SetStatus(ctx, []uuid.UUID{u.ID}, u.Status, to, nil); err != nil {
			return fmt.Errorf("update unit status: %w", err)
		}
		u.Status = to
		u.ReservedFor = nil
		u.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Availability is the read-only form of Allocate.
func (s *Service) Availability(ctx context.Context, orgID uuid.UUID, q MatchQuery) (MatchResult, error) {
	units, err := s.repo.ListByOrg(ctx, orgID, Filter{Status: StatusAvailable, Group: q.Group, Component: q.Component})
	if err != nil {
		return MatchResult{}, fmt.Errorf("list stock: %w", err)
	}
	return Match(units, q, s.now(), s.window), nil
}

// Allocate matches q against the organization's stock and reserves the
// matched units for requestID. Nothing is reserved when the result is None.
// Callers needing atomicity with other writes run it inside a transaction.
func (s *Service) Allocate(ctx context.Context, orgID uuid.UUID, q MatchQuery, requestID uuid.UUID) (MatchResult, error) {
	res, err := s.Availability(ctx, orgID, q)
	if err != nil {
		return res, err
	}
	if res.Kind == MatchNone {
		return res, nil
	}

	ids := make([]uuid.UUID, len(res.Units))
	for i, u := range res.Units {
		ids[i] = u.ID
	}
	if err := s.repo.SetStatus(ctx, ids, StatusAvailable, StatusReserved, &requestID); err != nil {
		return res, fmt.Errorf("reserve units: %w", err)
	}
	for _, u := range res.Units {
		u.Status = StatusReserved
		u.ReservedFor = &requestID
	}
	return res, nil
}

// Release returns every unit reserved for requestID to Available.
func (s *Service) Release(ctx context.Context, requestID uuid.UUID) (int, error) {
	return s.settle(ctx, requestID, StatusAvailable, false)
}

// Issue moves every unit reserved for requestID to Issued.
func (s *Service) Issue(ctx context.Context, requestID uuid.UUID) (int, error) {
	return s.settle(ctx, requestID, StatusIssued, true)
}

func (s *Service) settle(ctx context.Context, requestID uuid.UUID, to UnitStatus, keepRef bool) (int, error) {
	units, err := s.repo.ListByReservation(ctx, requestID)
	if err != nil {
		return 0, fmt.Errorf("list reservation: %w", err)
	}
	ids := make([]uuid.UUID, len(units))
	for i, u := range units {
		ids[i] = u.ID
	}
	var ref *uuid.UUID
	if keepRef {
		ref = &requestID
	}
	if err := s.repo.SetStatus(ctx, ids, StatusReserved, to, ref); err != nil {
		return 0, fmt.Errorf("mark units %s: %w", to, err)
	}
	return len(ids), nil
}

// ExpireUnits sweeps Available units past expiry. uuid.Nil sweeps every
// organization.
func (s *Service) ExpireUnits(ctx context.Context, orgID uuid.UUID) (int, error) {
	now := s.now()
	n, err := s.repo.ExpireAvailable(ctx, orgID, now)
	if err != nil {
		return 0, fmt.Errorf("expire units: %w", err)
	}
	if n == 0 {
		return 0, nil
	}
	s.logger.Info().Int("count", n).Str("org_id", orgID.String()).Msg("inventory units expired")
	evt := dispatch.Event{Type: dispatch.EventUnitsExpired, OrgID: orgID, Count: n, OccurredAt: now}
	if err := s.pub.Publish(ctx, evt); err != nil {
		s.logger.Warn().Err(err).Str("event", string(evt.Type)).Msg("dispatch failed")
	}
	return n, nil
}

func (s *Service) Summary(ctx context.Context, orgID uuid.UUID) (Summary, error) {
	units, err := s.repo.ListByOrg(ctx, orgID, Filter{})
	if err != nil {
		return Summary{}, fmt.Errorf("list stock: %w", err)
	}
	return Summarize(units, s.now(), SummaryOptions{NearExpiryWindow: s.window, LowStockThreshold: s.lowStock}), nil
}
