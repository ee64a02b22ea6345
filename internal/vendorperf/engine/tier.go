package engine

import (
	"fmt"
	"sort"

	"github.com/agogsaas/vendorperf/internal/vendorperf/entity"
)

// Bands are the promotion and demotion boundaries of the tier state machine.
// A demotion boundary sits below its promotion boundary so that a vendor
// hovering near a cut-off keeps its tier between runs.
type Bands struct {
	StrategicPromote float64 `json:"strategic_promote"`
	StrategicDemote  float64 `json:"strategic_demote"`
	PreferredPromote float64 `json:"preferred_promote"`
	PreferredDemote  float64 `json:"preferred_demote"`
}

// DefaultBands: promote at 85/60, demote 2 points under each.
var DefaultBands = Bands{
	StrategicPromote: 85,
	StrategicDemote:  83,
	PreferredPromote: 60,
	PreferredDemote:  58,
}

// Validate checks the bands are ordered and inside [0,100].
func (b Bands) Validate() error {
	if b.PreferredDemote < 0 || b.StrategicPromote > 100 {
		return fmt.Errorf("tier bands must be within [0,100]")
	}
	if !(b.PreferredDemote <= b.PreferredPromote &&
		b.PreferredPromote < b.StrategicDemote &&
		b.StrategicDemote <= b.StrategicPromote) {
		return fmt.Errorf("tier bands out of order: %+v", b)
	}
	return nil
}

// ClassifyTier assigns a tier from a 0-100 percentile rank. Mission-critical
// vendors are always STRATEGIC. Otherwise the outcome depends on the prior
// tier: with none, straight promotion thresholds apply; with one, a vendor
// only leaves its tier once the rank crosses the corresponding demotion band.
func ClassifyTier(rank float64, prior entity.PriorTier, missionCritical bool, b Bands) entity.Tier {
	if missionCritical {
		return entity.TierStrategic
	}

	straight := func() entity.Tier {
		switch {
		case rank >= b.StrategicPromote:
			return entity.TierStrategic
		case rank >= b.PreferredPromote:
			return entity.TierPreferred
		default:
			return entity.TierTransactional
		}
	}

	current, ok := prior.Get()
	if !ok {
		return straight()
	}

	switch current {
	case entity.TierStrategic:
		if rank >= b.StrategicDemote {
			return entity.TierStrategic
		}
		if rank >= b.PreferredPromote {
			return entity.TierPreferred
		}
		return entity.TierTransactional
	case entity.TierPreferred:
		if rank >= b.StrategicPromote {
			return entity.TierStrategic
		}
		if rank < b.PreferredDemote {
			return entity.TierTransactional
		}
		return entity.TierPreferred
	case entity.TierTransactional:
		return straight()
	default:
		// unknown stored value, treat as unclassified
		return straight()
	}
}

// VendorSpend is one row of the ranking snapshot.
type VendorSpend struct {
	VendorID        string
	Spend           float64
	CurrentTier     entity.PriorTier
	MissionCritical bool
}

// PercentileRanks computes the cumulative-distribution rank of every vendor's
// spend: the share of spending vendors whose spend is less than or equal to
// its own, times 100. Equal spends share a rank. Rows without spend rank 0 and
// are left out of the denominator.
func PercentileRanks(rows []VendorSpend) map[string]float64 {
	ranks := make(map[string]float64, len(rows))

	sorted := make([]float64, 0, len(rows))
	for _, r := range rows {
		if r.Spend > 0 {
			sorted = append(sorted, r.Spend)
		}
	}
	sort.Float64s(sorted)
	n := len(sorted)

	for _, r := range rows {
		if r.Spend <= 0 {
			ranks[r.VendorID] = 0
			continue
		}
		// number of spends <= r.Spend
		le := sort.Search(n, func(i int) bool { return sorted[i] > r.Spend })
		ranks[r.VendorID] = Round(float64(le)/float64(n)*100, 4)
	}
	return ranks
}

// ClassifyAll ranks a snapshot and classifies every vendor in it. Results keep
// the snapshot order.
func ClassifyAll(rows []VendorSpend, b Bands) []entity.TierClassificationResult {
	ranks := PercentileRanks(rows)
	var total float64
	for _, r := range rows {
		total += r.Spend
	}

	results := make([]entity.TierClassificationResult, 0, len(rows))
	for _, r := range rows {
		rank := ranks[r.VendorID]
		tier := ClassifyTier(rank, r.CurrentTier, r.MissionCritical, b)
		prev, hadPrev := r.CurrentTier.Get()

		var share float64
		if total > 0 {
			share = Round(r.Spend/total*100, 4)
		}
		results = append(results, entity.TierClassificationResult{
			VendorID:        r.VendorID,
			Tier:            tier,
			TotalSpend:      r.Spend,
			SpendShare:      share,
			PercentileRank:  rank,
			PreviousTier:    r.CurrentTier.Ptr(),
			TierChanged:     hadPrev && prev != tier,
			MissionCritical: r.MissionCritical,
		})
	}
	return results
}
