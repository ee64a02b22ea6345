package entity

import "fmt"

// Tier 供应商分级
type Tier string

const (
	TierStrategic     Tier = "STRATEGIC"
	TierPreferred     Tier = "PREFERRED"
	TierTransactional Tier = "TRANSACTIONAL"
)

// ParseTier 校验分级取值
func ParseTier(s string) (Tier, error) {
	switch t := Tier(s); t {
	case TierStrategic, TierPreferred, TierTransactional:
		return t, nil
	default:
		return "", fmt.Errorf("invalid vendor tier %q", s)
	}
}

// Rank orders tiers so that a higher value is a better tier.
func (t Tier) Rank() int {
	switch t {
	case TierStrategic:
		return 3
	case TierPreferred:
		return 2
	case TierTransactional:
		return 1
	}
	return 0
}

// PriorTier is the tier a vendor held before a classification run.
// The zero value means the vendor has never been classified.
type PriorTier struct {
	tier Tier
	ok   bool
}

// NoPriorTier 无历史分级
func NoPriorTier() PriorTier { return PriorTier{} }

// PriorTierOf 已有分级
func PriorTierOf(t Tier) PriorTier { return PriorTier{tier: t, ok: true} }

// PriorTierFromColumn maps a nullable tier column onto a PriorTier.
func PriorTierFromColumn(col *string) PriorTier {
	if col == nil || *col == "" {
		return NoPriorTier()
	}
	return PriorTierOf(Tier(*col))
}

// Get returns the prior tier and whether one exists.
func (p PriorTier) Get() (Tier, bool) { return p.tier, p.ok }

// Ptr 用于JSON输出，无历史分级时为nil
func (p PriorTier) Ptr() *Tier {
	if !p.ok {
		return nil
	}
	t := p.tier
	return &t
}

func (p PriorTier) String() string {
	if !p.ok {
		return "NONE"
	}
	return string(p.tier)
}

// TierClassificationResult 分级结果（不落库）
type TierClassificationResult struct {
	VendorID        string  `json:"vendor_id"`
	Tier            Tier    `json:"tier"`
	TotalSpend      float64 `json:"total_spend"`
	SpendShare      float64 `json:"spend_share"`
	PercentileRank  float64 `json:"percentile_rank"`
	PreviousTier    *Tier   `json:"previous_tier"`
	TierChanged     bool    `json:"tier_changed"`
	MissionCritical bool    `json:"mission_critical"`
}

// PreviousTierString 日志输出用，无历史分级时为 NONE
func (r TierClassificationResult) PreviousTierString() string {
	if r.PreviousTier == nil {
		return "NONE"
	}
	return string(*r.PreviousTier)
}
