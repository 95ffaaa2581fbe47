package request

import (
	"sort"
	"time"
)

// Triage returns reqs in operator order: effective urgency, then earliest
// required date, then earliest request date, then id. The input slice is left
// untouched and the order is total, so equal inputs always sort identically.
func Triage(reqs []*BloodRequest, now time.Time) []*BloodRequest {
	out := make([]*BloodRequest, len(reqs))
	copy(out, reqs)

	ranks := make(map[*BloodRequest]int, len(out))
	for _, r := range out {
		ranks[r] = r.EffectiveUrgency(now).Rank()
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ranks[a] != ranks[b] {
			return ranks[a] < ranks[b]
		}
		if !a.RequiredDate.Equal(b.RequiredDate) {
			return a.RequiredDate.Before(b.RequiredDate)
		}
		if !a.RequestDate.Equal(b.RequestDate) {
			return a.RequestDate.Before(b.RequestDate)
		}
		return a.ID.String() < b.ID.String()
	})
	return out
}
