package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agogsaas/vendorperf/internal/vendorperf/entity"
)

func f(v float64) *float64 { return &v }

func TestCalculateWeightedScore_RenormalizesOverPresentFamilies(t *testing.T) {
	w := Weights{Quality: 50, Delivery: 50, Cost: 0, Service: 0, Innovation: 0, ESG: 0}
	m := Metrics{QualityPct: f(90), OnTimePct: f(80)}
	assert.InDelta(t, 85.0, CalculateWeightedScore(m, nil, w), 1e-9)

	// unused weight slots must not dilute the result
	w = Weights{Quality: 25, Delivery: 25, Cost: 15, Service: 15, Innovation: 10, ESG: 10}
	assert.InDelta(t, 85.0, CalculateWeightedScore(m, nil, w), 1e-9)
}

func TestCalculateWeightedScore_AllFamilies(t *testing.T) {
	w := Weights{Quality: 30, Delivery: 25, Cost: 15, Service: 15, Innovation: 5, ESG: 10}
	m := Metrics{
		QualityPct:          f(100),
		OnTimePct:           f(80),
		CostIndex:           f(110), // 90
		Responsiveness:      f(4),   // 80
		Communication:       f(5),   // 100
		IssueResolutionRate: f(90),  // service = 90
		Innovation:          f(2.5), // 50
	}
	// 30*100 + 25*80 + 15*90 + 15*90 + 5*50 + 10*60 = 8550
	got := CalculateWeightedScore(m, f(3), w)
	assert.InDelta(t, 85.5, got, 1e-9)
}

func TestCalculateWeightedScore_NoData(t *testing.T) {
	w := WeightsFromConfig(DefaultConfig("t1"))
	assert.Equal(t, 0.0, CalculateWeightedScore(Metrics{}, nil, w))
}

func TestCalculateWeightedScore_Clamped(t *testing.T) {
	w := Weights{Cost: 100}
	assert.Equal(t, 100.0, CalculateWeightedScore(Metrics{CostIndex: f(20)}, nil, w))
	assert.Equal(t, 0.0, CalculateWeightedScore(Metrics{CostIndex: f(350)}, nil, w))

	w = Weights{Quality: 100}
	assert.Equal(t, 100.0, CalculateWeightedScore(Metrics{QualityPct: f(140)}, nil, w))
}

func TestWeightsValidate(t *testing.T) {
	require.NoError(t, WeightsFromConfig(DefaultConfig("t1")).Validate())

	err := Weights{Quality: 50, Delivery: 40}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 100")

	err = Weights{Quality: 120, Delivery: -20}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quality weight")
	assert.Contains(t, err.Error(), "delivery weight")
}

func TestThresholdsValidate(t *testing.T) {
	require.NoError(t, Thresholds{Acceptable: 60, Good: 75, Excellent: 90}.Validate())
	require.Error(t, Thresholds{Acceptable: 75, Good: 75, Excellent: 90}.Validate())
	require.Error(t, Thresholds{Acceptable: 60, Good: 75, Excellent: 120}.Validate())
}

func TestPerformanceLevel(t *testing.T) {
	th := ThresholdsFromConfig(DefaultConfig("t1"))
	cases := map[float64]string{
		95:   LevelExcellent,
		90:   LevelExcellent,
		80:   LevelGood,
		60:   LevelAcceptable,
		59.9: LevelPoor,
	}
	for score, want := range cases {
		assert.Equal(t, want, PerformanceLevel(score, th), "score %.1f", score)
	}
}

func TestCalculateOverallRating(t *testing.T) {
	assert.Nil(t, CalculateOverallRating(Metrics{}))

	// 0.4*5 + 0.4*4 + 0.1*3 + 0.1*3
	r := CalculateOverallRating(Metrics{OnTimePct: f(100), QualityPct: f(80)})
	require.NotNil(t, r)
	assert.InDelta(t, 4.2, *r, 1e-9)

	r = CalculateOverallRating(Metrics{
		OnTimePct:            f(90),
		QualityPct:           f(90),
		PriceCompetitiveness: f(5),
		Responsiveness:       f(1),
	})
	require.NotNil(t, r)
	assert.InDelta(t, 4.2, *r, 1e-9)
}

func TestMetricsFromRecord(t *testing.T) {
	rec := &entity.VendorPerformanceRecord{
		QualityPercentage: f(97.5),
		OnTimePercentage:  f(88),
		InnovationScore:   f(4),
	}
	m := MetricsFromRecord(rec)
	assert.Equal(t, 97.5, *m.QualityPct)
	assert.Equal(t, 88.0, *m.OnTimePct)
	assert.Nil(t, m.CostIndex)
	assert.Equal(t, 4.0, *m.Innovation)
}
