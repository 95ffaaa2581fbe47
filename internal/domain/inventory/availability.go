package inventory

import (
	"sort"
	"time"

	"github.com/bloodconnect/bloodconnect/internal/domain/blood"
)

// DefaultNearExpiryWindow excludes units that would expire before they could
// realistically be transfused.
const DefaultNearExpiryWindow = 7 * 24 * time.Hour

const DefaultLowStockThreshold = 10

type MatchKind string

const (
	MatchFull    MatchKind = "Full"
	MatchPartial MatchKind = "Partial"
	MatchNone    MatchKind = "None"
)

type MatchQuery struct {
	Group     blood.Group
	Component blood.Component
	Quantity  int
}

type MatchResult struct {
	Kind      MatchKind `json:"kind"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
	Coverable int       `json:"coverable"`
	Shortfall int       `json:"shortfall"`
	Units     []*Unit   `json:"units,omitempty"`
}

// Usable reports whether u can be allocated at now: it must be Available and
// must not expire within window.
func Usable(u *Unit, now time.Time, window time.Duration) bool {
	return u.Status == StatusAvailable && u.ExpiryDate.After(now.Add(window))
}

// Candidates returns the usable units of an exact group and component, first
// expiring first. Group matching is exact; ABO/Rh cross-compatibility is not
// modelled.
func Candidates(units []*Unit, group blood.Group, component blood.Component, now time.Time, window time.Duration) []*Unit {
	var out []*Unit
	for _, u := range units {
		if u.BloodGroup == group && u.ComponentType == component && Usable(u, now, window) {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.ExpiryDate.Equal(b.ExpiryDate) {
			return a.ExpiryDate.Before(b.ExpiryDate)
		}
		if !a.CollectionDate.Equal(b.CollectionDate) {
			return a.CollectionDate.Before(b.CollectionDate)
		}
		return a.ID.String() < b.ID.String()
	})
	return out
}

// Match answers whether q can be covered by units, fully or in part. Units
// holds exactly min(q.Quantity, available) candidates.
func Match(units []*Unit, q MatchQuery, now time.Time, window time.Duration) MatchResult {
	cands := Candidates(units, q.Group, q.Component, now, window)
	res := MatchResult{Requested: q.Quantity, Available: len(cands)}

	res.Coverable = q.Quantity
	if len(cands) < q.Quantity {
		res.Coverable = len(cands)
	}
	if res.Coverable < 0 {
		res.Coverable = 0
	}
	res.Shortfall = q.Quantity - res.Coverable
	res.Units = cands[:res.Coverable]

	switch {
	case res.Coverable == 0:
		res.Kind = MatchNone
	case res.Shortfall > 0:
		res.Kind = MatchPartial
	default:
		res.Kind = MatchFull
	}
	return res
}

type SummaryOptions struct {
	NearExpiryWindow  time.Duration
	LowStockThreshold int
}

// Summary is the stock dashboard of one organization.
type Summary struct {
	TotalUnits       int                 `json:"total_units"`
	ByStatus         map[UnitStatus]int  `json:"by_status"`
	AvailableByGroup map[blood.Group]int `json:"available_by_group"`
	LowStockGroups   []blood.Group       `json:"low_stock_groups"`
	Expired          int                 `json:"expired"`
	NearExpiry       int                 `json:"near_expiry"`
}

func Summarize(units []*Unit, now time.Time, opts SummaryOptions) Summary {
	if opts.NearExpiryWindow <= 0 {
		opts.NearExpiryWindow = DefaultNearExpiryWindow
	}
	if opts.LowStockThreshold <= 0 {
		opts.LowStockThreshold = DefaultLowStockThreshold
	}

	s := Summary{
		TotalUnits:       len(units),
		ByStatus:         make(map[UnitStatus]int),
		AvailableByGroup: make(map[blood.Group]int, len(blood.Groups)),
		LowStockGroups:   []blood.Group{},
	}
	for _, g := range blood.Groups {
		s.AvailableByGroup[g] = 0
	}

	horizon := now.Add(opts.NearExpiryWindow)
	for _, u := range units {
		s.ByStatus[u.Status]++
		switch {
		case u.Status == StatusExpired || (u.Status == StatusAvailable && u.IsExpired(now)):
			s.Expired++
		case u.Status == StatusAvailable && !u.ExpiryDate.After(horizon):
			s.NearExpiry++
			s.AvailableByGroup[u.BloodGroup]++
		case u.Status == StatusAvailable:
			s.AvailableByGroup[u.BloodGroup]++
		}
	}

	for _, g := range blood.Groups {
		if s.AvailableByGroup[g] < opts.LowStockThreshold {
			s.LowStockGroups = append(s.LowStockGroups, g)
		}
	}
	return s
}
