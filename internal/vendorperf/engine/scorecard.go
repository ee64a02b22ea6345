// Package engine holds the store-free computations of the vendor performance
// subsystem: weighted scoring, spend tiering and alert rule evaluation.
package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/agogsaas/vendorperf/internal/vendorperf/entity"
)

// Metrics are the raw inputs of one vendor period. A nil field means the
// signal was not captured for that period.
type Metrics struct {
	QualityPct           *float64 // 0-100
	OnTimePct            *float64 // 0-100
	CostIndex            *float64 // TCO index, 100 = baseline
	Responsiveness       *float64 // 0-5
	Communication        *float64 // 0-5
	IssueResolutionRate  *float64 // 0-100
	Innovation           *float64 // 0-5
	PriceCompetitiveness *float64 // 0-5
}

// MetricsFromRecord extracts scoring inputs from a stored period record.
func MetricsFromRecord(r *entity.VendorPerformanceRecord) Metrics {
	return Metrics{
		QualityPct:           r.QualityPercentage,
		OnTimePct:            r.OnTimePercentage,
		CostIndex:            r.CostIndex,
		Responsiveness:       r.ResponsivenessScore,
		Communication:        r.CommunicationScore,
		IssueResolutionRate:  r.IssueResolutionRate,
		Innovation:           r.InnovationScore,
		PriceCompetitiveness: r.PriceCompetitivenessScore,
	}
}

// Weights of the six metric families, expressed in percent.
type Weights struct {
	Quality    float64 `json:"quality"`
	Delivery   float64 `json:"delivery"`
	Cost       float64 `json:"cost"`
	Service    float64 `json:"service"`
	Innovation float64 `json:"innovation"`
	ESG        float64 `json:"esg"`
}

// WeightsFromConfig reads the weight set of a scorecard config.
func WeightsFromConfig(c *entity.ScorecardConfig) Weights {
	return Weights{
		Quality:    c.QualityWeight,
		Delivery:   c.DeliveryWeight,
		Cost:       c.CostWeight,
		Service:    c.ServiceWeight,
		Innovation: c.InnovationWeight,
		ESG:        c.ESGWeight,
	}
}

// weightSumTolerance absorbs decimal(5,2) rounding.
const weightSumTolerance = 0.01

// Validate checks every weight is within [0,100] and that they sum to 100.
func (w Weights) Validate() error {
	var errs []error
	named := []struct {
		name  string
		value float64
	}{
		{"quality", w.Quality},
		{"delivery", w.Delivery},
		{"cost", w.Cost},
		{"service", w.Service},
		{"innovation", w.Innovation},
		{"esg", w.ESG},
	}
	var sum float64
	for _, n := range named {
		if n.value < 0 || n.value > 100 || math.IsNaN(n.value) {
			errs = append(errs, fmt.Errorf("%s weight %.2f must be within [0,100]", n.name, n.value))
		}
		sum += n.value
	}
	if len(errs) == 0 && math.Abs(sum-100) > weightSumTolerance {
		errs = append(errs, fmt.Errorf("weights must sum to 100, got %.2f", sum))
	}
	return errors.Join(errs...)
}

// Thresholds are the ordered score bands of a scorecard config.
type Thresholds struct {
	Acceptable float64 `json:"acceptable"`
	Good       float64 `json:"good"`
	Excellent  float64 `json:"excellent"`
}

// ThresholdsFromConfig reads the score bands of a scorecard config.
func ThresholdsFromConfig(c *entity.ScorecardConfig) Thresholds {
	return Thresholds{
		Acceptable: c.AcceptableThreshold,
		Good:       c.GoodThreshold,
		Excellent:  c.ExcellentThreshold,
	}
}

// Validate requires 0 <= acceptable < good < excellent <= 100.
func (t Thresholds) Validate() error {
	if t.Acceptable < 0 || t.Excellent > 100 {
		return fmt.Errorf("thresholds must be within [0,100]")
	}
	if !(t.Acceptable < t.Good && t.Good < t.Excellent) {
		return fmt.Errorf("thresholds must satisfy acceptable < good < excellent, got %.2f/%.2f/%.2f",
			t.Acceptable, t.Good, t.Excellent)
	}
	return nil
}

// Performance levels derived from a weighted score.
const (
	LevelExcellent  = "EXCELLENT"
	LevelGood       = "GOOD"
	LevelAcceptable = "ACCEPTABLE"
	LevelPoor       = "POOR"
)

// PerformanceLevel maps a weighted score onto the config's bands.
func PerformanceLevel(score float64, t Thresholds) string {
	switch {
	case score >= t.Excellent:
		return LevelExcellent
	case score >= t.Good:
		return LevelGood
	case score >= t.Acceptable:
		return LevelAcceptable
	default:
		return LevelPoor
	}
}

// DefaultConfig is used when a tenant has no scorecard config at all.
func DefaultConfig(tenantID string) *entity.ScorecardConfig {
	return &entity.ScorecardConfig{
		TenantID:              tenantID,
		Name:                  "default",
		QualityWeight:         30,
		DeliveryWeight:        25,
		CostWeight:            15,
		ServiceWeight:         15,
		InnovationWeight:      5,
		ESGWeight:             10,
		AcceptableThreshold:   60,
		GoodThreshold:         75,
		ExcellentThreshold:    90,
		ReviewFrequencyMonths: 3,
		IsActive:              true,
	}
}

// CalculateWeightedScore combines the available metric families into a 0-100
// score. Families without input are left out of both the weighted sum and the
// weight total, so the result is renormalized over the signals present.
// esgScore is on the 0-5 scale. With no usable family the score is 0.
func CalculateWeightedScore(m Metrics, esgScore *float64, w Weights) float64 {
	var weightedSum, usedWeight float64
	add := func(score *float64, weight float64) {
		if score == nil || weight <= 0 {
			return
		}
		weightedSum += clamp(*score, 0, 100) * weight
		usedWeight += weight
	}

	add(m.QualityPct, w.Quality)
	add(m.OnTimePct, w.Delivery)
	add(costScore(m.CostIndex), w.Cost)
	add(serviceScore(m), w.Service)
	add(fivePoint(m.Innovation), w.Innovation)
	add(fivePoint(esgScore), w.ESG)

	if usedWeight == 0 {
		return 0
	}
	return clamp(weightedSum/usedWeight, 0, 100)
}

// costScore: a lower cost-of-ownership index is better.
func costScore(idx *float64) *float64 {
	if idx == nil {
		return nil
	}
	s := clamp(200-*idx, 0, 100)
	return &s
}

// serviceScore averages whichever service signals are present.
func serviceScore(m Metrics) *float64 {
	var sum float64
	var n int
	for _, s := range []*float64{fivePoint(m.Responsiveness), fivePoint(m.Communication), m.IssueResolutionRate} {
		if s != nil {
			sum += clamp(*s, 0, 100)
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

func fivePoint(v *float64) *float64 {
	if v == nil {
		return nil
	}
	s := *v * 20
	return &s
}

// defaultManualScore stands in for a manual 0-5 score nobody entered yet.
const defaultManualScore = 3.0

// CalculateOverallRating returns the 0-5 star rating shown on the vendor
// record: 40% on-time, 40% quality, 10% price, 10% responsiveness. It is nil
// when neither delivery nor quality data exists for the period.
func CalculateOverallRating(m Metrics) *float64 {
	if m.OnTimePct == nil && m.QualityPct == nil {
		return nil
	}
	stars := func(pct *float64) float64 {
		if pct == nil {
			return defaultManualScore
		}
		return clamp(*pct, 0, 100) / 20
	}
	manual := func(v *float64) float64 {
		if v == nil {
			return defaultManualScore
		}
		return clamp(*v, 0, 5)
	}
	rating := stars(m.OnTimePct)*0.4 + stars(m.QualityPct)*0.4 +
		manual(m.PriceCompetitiveness)*0.1 + manual(m.Responsiveness)*0.1
	rating = Round(rating, 2)
	return &rating
}

// Round rounds v to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
