package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agogsaas/vendorperf/internal/vendorperf/entity"
)

func s(v string) *string { return &v }

func categories(cs []AlertCandidate) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, *c.MetricCategory+"/"+c.Severity)
	}
	return out
}

func TestEvaluateThresholds_QualityOnly(t *testing.T) {
	got := EvaluateThresholds(ThresholdInput{
		WeightedScore: 80,
		QualityPct:    f(65),
		OnTimePct:     f(90),
	})
	require.Len(t, got, 1)
	assert.Equal(t, entity.SeverityCritical, got[0].Severity)
	assert.Equal(t, entity.AlertTypeThresholdBreach, got[0].AlertType)
	assert.Equal(t, entity.MetricQuality, *got[0].MetricCategory)
	assert.Equal(t, 65.0, *got[0].CurrentValue)
	assert.Equal(t, 70.0, *got[0].ThresholdValue)
	assert.Contains(t, got[0].Message, "65.0%")
	assert.Contains(t, got[0].Message, "70%")
}

func TestEvaluateThresholds_ScoreBands(t *testing.T) {
	got := EvaluateThresholds(ThresholdInput{WeightedScore: 55})
	assert.Equal(t, []string{"OVERALL_SCORE/CRITICAL"}, categories(got))

	got = EvaluateThresholds(ThresholdInput{WeightedScore: 70})
	assert.Equal(t, []string{"OVERALL_SCORE/WARNING"}, categories(got))

	got = EvaluateThresholds(ThresholdInput{WeightedScore: 75})
	assert.Empty(t, got)
}

func TestEvaluateThresholds_Improvement(t *testing.T) {
	got := EvaluateThresholds(ThresholdInput{WeightedScore: 88, PreviousScore: f(78)})
	require.Len(t, got, 1)
	assert.Equal(t, entity.SeverityInfo, got[0].Severity)
	assert.Equal(t, entity.MetricOverallScore, *got[0].MetricCategory)
	assert.Contains(t, got[0].Message, "improved from 78.0 to 88.0")

	assert.Empty(t, EvaluateThresholds(ThresholdInput{WeightedScore: 88, PreviousScore: f(79)}))
	assert.Empty(t, EvaluateThresholds(ThresholdInput{WeightedScore: 88}))
}

func TestEvaluateThresholds_Independent(t *testing.T) {
	got := EvaluateThresholds(ThresholdInput{
		WeightedScore: 40,
		QualityPct:    f(50),
		OnTimePct:     f(60),
		DefectRatePPM: f(2500),
		ESGRiskLevel:  s(entity.ESGRiskMedium),
	})
	assert.Equal(t, []string{
		"OVERALL_SCORE/CRITICAL",
		"QUALITY/CRITICAL",
		"DELIVERY/CRITICAL",
		"DEFECT_RATE/WARNING",
		"ESG_RISK/WARNING",
	}, categories(got))
	assert.Equal(t, entity.AlertTypeESGRisk, got[4].AlertType)
}

func TestEvaluateThresholds_ESGRisk(t *testing.T) {
	for _, level := range []string{entity.ESGRiskHigh, entity.ESGRiskCritical, entity.ESGRiskUnknown} {
		got := EvaluateThresholds(ThresholdInput{WeightedScore: 90, ESGRiskLevel: s(level)})
		require.Len(t, got, 1, level)
		assert.Equal(t, entity.SeverityCritical, got[0].Severity, level)
	}
	assert.Empty(t, EvaluateThresholds(ThresholdInput{WeightedScore: 90, ESGRiskLevel: s(entity.ESGRiskLow)}))
	assert.Empty(t, EvaluateThresholds(ThresholdInput{WeightedScore: 90}))
}

func TestEvaluateThresholds_DefectBoundary(t *testing.T) {
	assert.Empty(t, EvaluateThresholds(ThresholdInput{WeightedScore: 90, DefectRatePPM: f(1000)}))
	assert.Len(t, EvaluateThresholds(ThresholdInput{WeightedScore: 90, DefectRatePPM: f(1000.5)}), 1)
}

func TestTierChangeSeverity(t *testing.T) {
	cases := []struct {
		from, to entity.Tier
		want     string
	}{
		{entity.TierPreferred, entity.TierStrategic, entity.SeverityInfo},
		{entity.TierTransactional, entity.TierStrategic, entity.SeverityInfo},
		{entity.TierStrategic, entity.TierPreferred, entity.SeverityWarning},
		{entity.TierStrategic, entity.TierTransactional, entity.SeverityWarning},
		{entity.TierPreferred, entity.TierTransactional, entity.SeverityWarning},
		{entity.TierTransactional, entity.TierPreferred, entity.SeverityInfo},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, TierChangeSeverity(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestTierChangeCandidate(t *testing.T) {
	c := TierChangeCandidate(entity.TierStrategic, entity.TierPreferred, 70.5)
	assert.Equal(t, entity.AlertTypeTierChange, c.AlertType)
	assert.Nil(t, c.MetricCategory)
	assert.Equal(t, entity.SeverityWarning, c.Severity)
	assert.Contains(t, c.Message, "demoted from STRATEGIC to PREFERRED")
}

func TestAuditDueSeverity(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	sev, days := AuditDueSeverity(now.AddDate(0, 0, 10), now)
	assert.Equal(t, entity.SeverityInfo, sev)
	assert.Equal(t, -10, days)

	sev, days = AuditDueSeverity(now.AddDate(0, 0, -5), now)
	assert.Equal(t, entity.SeverityWarning, sev)
	assert.Equal(t, 5, days)

	sev, _ = AuditDueSeverity(now.AddDate(0, -12, 0), now)
	assert.Equal(t, entity.SeverityWarning, sev)

	sev, _ = AuditDueSeverity(now.AddDate(0, -17, -20), now)
	assert.Equal(t, entity.SeverityWarning, sev)

	sev, _ = AuditDueSeverity(now.AddDate(0, -18, 0), now)
	assert.Equal(t, entity.SeverityCritical, sev)

	sev, _ = AuditDueSeverity(now.AddDate(-3, 0, 0), now)
	assert.Equal(t, entity.SeverityCritical, sev)
}

func TestAuditDueCandidate(t *testing.T) {
	now := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	c := AuditDueCandidate(now.AddDate(0, 0, -40), now)
	assert.Equal(t, entity.AlertTypeReviewDue, c.AlertType)
	assert.Equal(t, entity.MetricAudit, *c.MetricCategory)
	assert.Equal(t, 40.0, *c.CurrentValue)
	assert.Contains(t, c.Message, "overdue by 40 days")

	c = AuditDueCandidate(now.AddDate(0, 0, 7), now)
	assert.Equal(t, entity.SeverityInfo, c.Severity)
	assert.Contains(t, c.Message, "due on 2026-06-22")
}
