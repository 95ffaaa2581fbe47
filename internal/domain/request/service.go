package request

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bloodconnect/bloodconnect/internal/domain/blood"
	"github.com/bloodconnect/bloodconnect/internal/domain/inventory"
	"github.com/bloodconnect/bloodconnect/internal/platform/apperr"
	"github.com/bloodconnect/bloodconnect/internal/platform/auth"
	"github.com/bloodconnect/bloodconnect/internal/platform/db"
	"github.com/bloodconnect/bloodconnect/internal/platform/dispatch"
	"github.com/bloodconnect/bloodconnect/pkg/pagination"
)

// Locker runs fn as one atomic unit while holding the lock for key.
// db.TxRunner and db.LocalLocker implement it.
type Locker interface {
	WithinOrg(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Stock is the inventory side of a decision. *inventory.Service implements it.
type Stock interface {
	Allocate(ctx context.Context, orgID uuid.UUID, q inventory.MatchQuery, requestID uuid.UUID) (inventory.MatchResult, error)
	Release(ctx context.Context, requestID uuid.UUID) (int, error)
	Issue(ctx context.Context, requestID uuid.UUID) (int, error)
}

type Decision string

const (
	DecisionAccept   Decision = "Accept"
	DecisionPartial  Decision = "Partial"
	DecisionComplete Decision = "Complete"
	DecisionReject   Decision = "Reject"
)

var decisions = []Decision{DecisionAccept, DecisionPartial, DecisionComplete, DecisionReject}

// ParseDecision is case-insensitive.
func ParseDecision(s string) (Decision, bool) {
	for _, d := range decisions {
		if strings.EqualFold(string(d), strings.TrimSpace(s)) {
			return d, true
		}
	}
	return Decision(s), false
}

// target is the status a decision is aimed at.
func (d Decision) target() Status {
	switch d {
	case DecisionAccept:
		return StatusAccepted
	case DecisionPartial:
		return StatusPartial
	case DecisionComplete:
		return StatusCompleted
	default:
		return StatusRejected
	}
}

// allowedFrom reports whether d can be taken on a request in s. Accept and
// Partial from Pending pass through Accepted.
func (d Decision) allowedFrom(s Status) bool {
	switch d {
	case DecisionAccept:
		return s == StatusPending
	case DecisionPartial:
		return s == StatusPending || s == StatusAccepted
	default:
		return CanTransition(s, d.target())
	}
}

type SubmitInput struct {
	RequesterOrgID uuid.UUID
	ActorID        uuid.UUID
	BloodGroup     blood.Group
	ComponentType  blood.Component
	Quantity       int
	RequiredDate   time.Time
	ClinicalFlag   bool
	RequestType    RequestType
	TargetOrgIDs   []uuid.UUID
	Notes          string
}

type Service struct {
	repo   RequestRepository
	stock  Stock
	locker Locker
	authz  auth.Authorizer
	actors auth.ActorResolver
	pub    dispatch.Publisher
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo RequestRepository, stock Stock, locker Locker, authz auth.Authorizer, actors auth.ActorResolver) *Service {
	return &Service{
		repo:   repo,
		stock:  stock,
		locker: locker,
		authz:  authz,
		actors: actors,
		pub:    dispatch.Nop{},
		logger: zerolog.Nop(),
		now:    time.Now,
	}
}

func (s *Service) SetPublisher(p dispatch.Publisher) { s.pub = p }
func (s *Service) SetLogger(l zerolog.Logger)        { s.logger = l }
func (s *Service) SetClock(now func() time.Time)     { s.now = now }

func requestKey(id uuid.UUID) string { return "request:" + id.String() }

func forbidden(a auth.Actor, c auth.Capability, reason string) error {
	return &apperr.ForbiddenError{Actor: a.ID.String(), Capability: string(c), Reason: reason}
}

func (s *Service) authorize(ctx context.Context, actorID uuid.UUID, c auth.Capability) (auth.Actor, error) {
	if actorID == uuid.Nil {
		return auth.Actor{}, apperr.Invalid("actor_id", "is required")
	}
	actor, err := s.actors.ResolveActor(ctx, actorID)
	if apperr.IsNotFound(err) {
		return auth.Actor{}, forbidden(auth.Actor{ID: actorID}, c, "unknown actor")
	}
	if err != nil {
		return auth.Actor{}, fmt.Errorf("resolve actor: %w", err)
	}
	return actor, s.authz.Authorize(ctx, actor, c)
}

func (s *Service) Submit(ctx context.Context, in SubmitInput) (*BloodRequest, error) {
	actor, err := s.authorize(ctx, in.ActorID, auth.CapRequestSubmit)
	if err != nil {
		return nil, err
	}
	if in.RequesterOrgID == uuid.Nil {
		in.RequesterOrgID = actor.OrgID
	}
	if in.RequesterOrgID != actor.OrgID && !actor.IsAdmin() {
		return nil, forbidden(actor, auth.CapRequestSubmit, "actor does not belong to the requesting organization")
	}

	now := s.now()
	r := &BloodRequest{
		ID:             uuid.New(),
		RequesterOrgID: in.RequesterOrgID,
		BloodGroup:     in.BloodGroup,
		ComponentType:  in.ComponentType,
		Quantity:       in.Quantity,
		ClinicalFlag:   in.ClinicalFlag,
		Status:         StatusPending,
		RequestType:    in.RequestType,
		TargetOrgIDs:   in.TargetOrgIDs,
		Notes:          strings.TrimSpace(in.Notes),
		RequestDate:    now,
		RequiredDate:   in.RequiredDate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if r.RequestType == "" {
		r.RequestType = TypeBroadcast
		if len(r.TargetOrgIDs) > 0 {
			r.RequestType = TypeDirect
		}
	}
	c := classifyRequest(r, now)
	r.Urgency, r.Overdue = c.Urgency, c.Overdue

	if err := apperr.NewValidationError(Validate(r)); err != nil {
		return nil, err
	}

	err = s.locker.WithinOrg(ctx, requestKey(r.ID), func(ctx context.Context) error {
		if err := s.repo.Create(ctx, r); err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		return s.repo.AppendHistory(ctx, StatusChange{RequestID: r.ID, To: StatusPending, ActorID: &actor.ID, At: now})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, dispatch.Event{
		Type:           dispatch.EventRequestSubmitted,
		RequestID:      r.ID,
		RequesterOrgID: r.RequesterOrgID,
		TargetOrgIDs:   r.TargetOrgIDs,
		Status:         string(r.Status),
		Urgency:        string(r.Urgency),
		ActorID:        &actor.ID,
		OccurredAt:     now,
	})
	return r, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*BloodRequest, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.refresh(s.now())
	return r, nil
}

// snapshot reads, refreshes, filters by urgency and triages the requests
// matching f.
func (s *Service) snapshot(ctx context.Context, f Filter) ([]*BloodRequest, error) {
	items, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	now := s.now()
	kept := items[:0]
	for _, r := range items {
		r.refresh(now)
		if f.Urgency == "" || r.Urgency == f.Urgency {
			kept = append(kept, r)
		}
	}
	return Triage(kept, now), nil
}

// List returns one page of the triaged queue and the total number of matches.
func (s *Service) List(ctx context.Context, f Filter, p pagination.Params) ([]*BloodRequest, int, error) {
	items, err := s.snapshot(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return pagination.Slice(items, p), len(items), nil
}

// Queue yields the triaged queue lazily. Every range over the sequence reads
// current state again; a failed read yields the error once and stops.
func (s *Service) Queue(ctx context.Context, f Filter) iter.Seq2[*BloodRequest, error] {
	return func(yield func(*BloodRequest, error) bool) {
		items, err := s.snapshot(ctx, f)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, r := range items {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func (s *Service) History(ctx context.Context, id uuid.UUID) ([]StatusChange, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, id)
}

// checkRouting enforces which organization may take decision d on r.
func checkRouting(r *BloodRequest, actor auth.Actor) error {
	if r.FulfillingOrgID != nil {
		if *r.FulfillingOrgID != actor.OrgID && !actor.IsAdmin() {
			return forbidden(actor, auth.CapRequestDecide, "request is being fulfilled by another organization")
		}
		return nil
	}
	if !r.Targets(actor.OrgID) {
		return forbidden(actor, auth.CapRequestDecide, "organization is not a target of this direct request")
	}
	return nil
}

// Decide applies an operator decision and its inventory side effect as one
// atomic unit.
func (s *Service) Decide(ctx context.Context, id uuid.UUID, d Decision, actorID uuid.UUID) (*BloodRequest, error) {
	d, ok := ParseDecision(string(d))
	if !ok {
		return nil, apperr.Invalid("decision", "must be one of Accept, Partial, Complete, Reject")
	}
	actor, err := s.authorize(ctx, actorID, auth.CapRequestDecide)
	if err != nil {
		return nil, err
	}

	var out *BloodRequest
	err = s.locker.WithinOrg(ctx, requestKey(id), func(ctx context.Context) error {
		r, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !d.allowedFrom(r.Status) {
			return &InvalidTransitionError{RequestID: r.ID, From: r.Status, To: d.target()}
		}
		if err := checkRouting(r, actor); err != nil {
			return err
		}

		stockOrg := actor.OrgID
		if r.FulfillingOrgID != nil {
			stockOrg = *r.FulfillingOrgID
		}
		return s.locker.WithinOrg(ctx, db.OrgLockKey(stockOrg), func(ctx context.Context) error {
			now := s.now()
			changes, err := s.apply(ctx, r, d, actor, now)
			if err != nil {
				return err
			}
			if err := s.repo.Update(ctx, r); err != nil {
				return err
			}
			if err := s.repo.AppendHistory(ctx, changes...); err != nil {
				return fmt.Errorf("record history: %w", err)
			}
			out = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	out.refresh(s.now())
	s.publish(ctx, dispatch.Event{
		Type:           dispatch.EventRequestDecided,
		RequestID:      out.ID,
		RequesterOrgID: out.RequesterOrgID,
		Status:         string(out.Status),
		Urgency:        string(out.Urgency),
		Count:          out.ReservedUnits,
		ActorID:        &actor.ID,
		OccurredAt:     out.UpdatedAt,
	})
	return out, nil
}

// apply performs d on r in memory and on stock. The caller persists r.
func (s *Service) apply(ctx context.Context, r *BloodRequest, d Decision, actor auth.Actor, now time.Time) ([]StatusChange, error) {
	aid := actor.ID
	var changes []StatusChange
	step := func(to Status, reason string) error {
		c, err := Transition(r, to, &aid, now, reason)
		if err != nil {
			return err
		}
		changes = append(changes, c)
		return nil
	}

	switch d {
	case DecisionAccept, DecisionPartial:
		if r.Status == StatusAccepted {
			// already holds its reservation
			r.Shortfall = r.Quantity - r.ReservedUnits
			if err := step(StatusPartial, "marked partial by operator"); err != nil {
				return nil, err
			}
			return changes, nil
		}

		res, err := s.stock.Allocate(ctx, actor.OrgID, inventory.MatchQuery{
			Group:     r.BloodGroup,
			Component: r.ComponentType,
			Quantity:  r.Quantity,
		}, r.ID)
		if err != nil {
			return nil, err
		}
		if res.Kind == inventory.MatchNone {
			return nil, &InsufficientInventoryError{
				RequestID: r.ID,
				Group:     r.BloodGroup,
				Component: r.ComponentType,
				Requested: r.Quantity,
				Available: res.Available,
				Shortfall: res.Shortfall,
			}
		}

		orgID := actor.OrgID
		r.FulfillingOrgID = &orgID
		r.ReservedUnits = res.Coverable
		r.Shortfall = res.Shortfall
		if err := step(StatusAccepted, ""); err != nil {
			return nil, err
		}
		if res.Kind == inventory.MatchPartial || d == DecisionPartial {
			reason := fmt.Sprintf("reserved %d of %d units", res.Coverable, r.Quantity)
			if err := step(StatusPartial, reason); err != nil {
				return nil, err
			}
		}

	case DecisionComplete:
		if _, err := s.stock.Issue(ctx, r.ID); err != nil {
			return nil, err
		}
		if err := step(StatusCompleted, ""); err != nil {
			return nil, err
		}

	case DecisionReject:
		if holdsReservation(r.Status) {
			if _, err := s.stock.Release(ctx, r.ID); err != nil {
				return nil, err
			}
			r.ReservedUnits = 0
		}
		if err := step(StatusRejected, ""); err != nil {
			return nil, err
		}
	}
	return changes, nil
}

// Cancel closes a request on behalf of its requester and releases any stock
// reserved for it.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*BloodRequest, error) {
	actor, err := s.authorize(ctx, actorID, auth.CapRequestCancel)
	if err != nil {
		return nil, err
	}

	var out *BloodRequest
	err = s.locker.WithinOrg(ctx, requestKey(id), func(ctx context.Context) error {
		r, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if r.RequesterOrgID != actor.OrgID && !actor.IsAdmin() {
			return forbidden(actor, auth.CapRequestCancel, "only the requesting organization may cancel")
		}
		if !CanTransition(r.Status, StatusCancelled) {
			return &InvalidTransitionError{RequestID: r.ID, From: r.Status, To: StatusCancelled}
		}

		cancel := func(ctx context.Context) error {
			now := s.now()
			if holdsReservation(r.Status) {
				if _, err := s.stock.Release(ctx, r.ID); err != nil {
					return err
				}
				r.ReservedUnits = 0
			}
			change, err := Transition(r, StatusCancelled, &actor.ID, now, "")
			if err != nil {
				return err
			}
			if err := s.repo.Update(ctx, r); err != nil {
				return err
			}
			if err := s.repo.AppendHistory(ctx, change); err != nil {
				return fmt.Errorf("record history: %w", err)
			}
			out = r
			return nil
		}
		if r.FulfillingOrgID != nil {
			return s.locker.WithinOrg(ctx, db.OrgLockKey(*r.FulfillingOrgID), cancel)
		}
		return cancel(ctx)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, dispatch.Event{
		Type:           dispatch.EventRequestCancelled,
		RequestID:      out.ID,
		RequesterOrgID: out.RequesterOrgID,
		Status:         string(out.Status),
		ActorID:        &actor.ID,
		OccurredAt:     out.UpdatedAt,
	})
	return out, nil
}

// Escalate raises an open request to Critical. The reason and the previous
// tier are kept on the request and in its history.
func (s *Service) Escalate(ctx context.Context, id uuid.UUID, reason string, actorID uuid.UUID) (*BloodRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Invalid("reason", "is required")
	}
	actor, err := s.authorize(ctx, actorID, auth.CapRequestEscalate)
	if err != nil {
		return nil, err
	}

	var out *BloodRequest
	err = s.locker.WithinOrg(ctx, requestKey(id), func(ctx context.Context) error {
		r, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		involved := r.RequesterOrgID == actor.OrgID || (r.FulfillingOrgID != nil && *r.FulfillingOrgID == actor.OrgID)
		if !involved && !actor.IsAdmin() {
			return forbidden(actor, auth.CapRequestEscalate, "organization is not party to this request")
		}

		now := s.now()
		current := r.EffectiveUrgency(now)
		if IsTerminal(r.Status) || current == UrgencyCritical {
			return &EscalationError{RequestID: r.ID, Status: r.Status, Urgency: current}
		}

		r.Escalation = &Escalation{By: actor.ID, Reason: reason, At: now, PreviousUrgency: current}
		r.Urgency = UrgencyCritical
		r.UpdatedAt = now
		if err := s.repo.Update(ctx, r); err != nil {
			return err
		}
		audit := StatusChange{
			RequestID: r.ID,
			From:      r.Status,
			To:        r.Status,
			ActorID:   &actor.ID,
			Reason:    fmt.Sprintf("escalated from %s to Critical: %s", current, reason),
			At:        now,
		}
		if err := s.repo.AppendHistory(ctx, audit); err != nil {
			return fmt.Errorf("record history: %w", err)
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	out.refresh(s.now())
	s.publish(ctx, dispatch.Event{
		Type:           dispatch.EventRequestEscalated,
		RequestID:      out.ID,
		RequesterOrgID: out.RequesterOrgID,
		TargetOrgIDs:   out.TargetOrgIDs,
		Status:         string(out.Status),
		Urgency:        string(out.Urgency),
		ActorID:        &actor.ID,
		OccurredAt:     out.UpdatedAt,
	})
	return out, nil
}

// publish hands evt to the dispatcher after the state change committed. A
// failure is logged and never undoes the change.
func (s *Service) publish(ctx context.Context, evt dispatch.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.pub.Publish(ctx, evt); err != nil {
		s.logger.Warn().Err(err).
			Str("event", string(evt.Type)).
			Str("request_id", evt.RequestID.String()).
			Msg("dispatch failed")
	}
}
