package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/agogsaas/vendorperf/internal/vendorperf/entity"
)

// Alert rule thresholds.
const (
	ScoreCriticalBelow    = 60.0
	ScoreWarningBelow     = 75.0
	ScoreImprovementMin   = 10.0
	QualityCriticalBelow  = 70.0
	OnTimeCriticalBelow   = 75.0
	DefectWarningAbovePPM = 1000.0
)

// AlertCandidate is a rule hit that has not been deduplicated or stored yet.
type AlertCandidate struct {
	AlertType      string   `json:"alert_type"`
	Severity       string   `json:"severity"`
	MetricCategory *string  `json:"metric_category"`
	CurrentValue   *float64 `json:"current_value"`
	ThresholdValue *float64 `json:"threshold_value"`
	Message        string   `json:"message"`
}

// ThresholdInput carries what the threshold rules look at for one vendor
// period. PreviousScore is nil when no history is known, ESGRiskLevel is nil
// when the vendor has no ESG record.
type ThresholdInput struct {
	WeightedScore float64
	PreviousScore *float64
	QualityPct    *float64
	OnTimePct     *float64
	DefectRatePPM *float64
	ESGRiskLevel  *string
}

// EvaluateThresholds runs every rule independently and returns the hits in a
// fixed order: overall score, improvement, quality, delivery, defects, ESG.
func EvaluateThresholds(in ThresholdInput) []AlertCandidate {
	var out []AlertCandidate

	score := in.WeightedScore
	switch {
	case score < ScoreCriticalBelow:
		out = append(out, breach(entity.SeverityCritical, entity.MetricOverallScore, score, ScoreCriticalBelow,
			fmt.Sprintf("Weighted score %.1f is below critical threshold %.0f", score, ScoreCriticalBelow)))
	case score < ScoreWarningBelow:
		out = append(out, breach(entity.SeverityWarning, entity.MetricOverallScore, score, ScoreWarningBelow,
			fmt.Sprintf("Weighted score %.1f is below warning threshold %.0f", score, ScoreWarningBelow)))
	}

	if in.PreviousScore != nil && score-*in.PreviousScore >= ScoreImprovementMin {
		out = append(out, breach(entity.SeverityInfo, entity.MetricOverallScore, score, *in.PreviousScore,
			fmt.Sprintf("Weighted score improved from %.1f to %.1f (+%.1f points)",
				*in.PreviousScore, score, score-*in.PreviousScore)))
	}

	if in.QualityPct != nil && *in.QualityPct < QualityCriticalBelow {
		out = append(out, breach(entity.SeverityCritical, entity.MetricQuality, *in.QualityPct, QualityCriticalBelow,
			fmt.Sprintf("Quality acceptance %.1f%% is below %.0f%%", *in.QualityPct, QualityCriticalBelow)))
	}

	if in.OnTimePct != nil && *in.OnTimePct < OnTimeCriticalBelow {
		out = append(out, breach(entity.SeverityCritical, entity.MetricDelivery, *in.OnTimePct, OnTimeCriticalBelow,
			fmt.Sprintf("On-time delivery %.1f%% is below %.0f%%", *in.OnTimePct, OnTimeCriticalBelow)))
	}

	if in.DefectRatePPM != nil && *in.DefectRatePPM > DefectWarningAbovePPM {
		out = append(out, breach(entity.SeverityWarning, entity.MetricDefectRate, *in.DefectRatePPM, DefectWarningAbovePPM,
			fmt.Sprintf("Defect rate %.0f PPM exceeds %.0f PPM", *in.DefectRatePPM, DefectWarningAbovePPM)))
	}

	if in.ESGRiskLevel != nil {
		if c, ok := esgRiskCandidate(*in.ESGRiskLevel); ok {
			out = append(out, c)
		}
	}
	return out
}

func esgRiskCandidate(level string) (AlertCandidate, bool) {
	var severity string
	switch level {
	case entity.ESGRiskHigh, entity.ESGRiskCritical, entity.ESGRiskUnknown:
		severity = entity.SeverityCritical
	case entity.ESGRiskMedium:
		severity = entity.SeverityWarning
	default:
		return AlertCandidate{}, false
	}
	cat := entity.MetricESGRisk
	return AlertCandidate{
		AlertType:      entity.AlertTypeESGRisk,
		Severity:       severity,
		MetricCategory: &cat,
		Message:        fmt.Sprintf("ESG risk level is %s (acceptable: %s)", level, entity.ESGRiskLow),
	}, true
}

func breach(severity, category string, current, threshold float64, msg string) AlertCandidate {
	cat := category
	cur := Round(current, 4)
	thr := threshold
	return AlertCandidate{
		AlertType:      entity.AlertTypeThresholdBreach,
		Severity:       severity,
		MetricCategory: &cat,
		CurrentValue:   &cur,
		ThresholdValue: &thr,
		Message:        msg,
	}
}

// TierChangeSeverity grades a tier transition: losing STRATEGIC or dropping
// to TRANSACTIONAL is a WARNING, anything else INFO.
func TierChangeSeverity(from, to entity.Tier) string {
	if from == to {
		return entity.SeverityInfo
	}
	if from == entity.TierStrategic {
		return entity.SeverityWarning
	}
	if to == entity.TierTransactional {
		return entity.SeverityWarning
	}
	return entity.SeverityInfo
}

// TierChangeCandidate builds the TIER_CHANGE alert for a transition.
func TierChangeCandidate(from, to entity.Tier, rank float64) AlertCandidate {
	r := Round(rank, 4)
	direction := "promoted"
	if to.Rank() < from.Rank() {
		direction = "demoted"
	}
	return AlertCandidate{
		AlertType:    entity.AlertTypeTierChange,
		Severity:     TierChangeSeverity(from, to),
		CurrentValue: &r,
		Message:      fmt.Sprintf("Vendor %s from %s to %s (spend percentile rank %.1f)",
			direction, from, to, rank),
	}
}

// AuditLookahead is how far ahead the audit sweep looks for due dates.
const AuditLookahead = 30 * 24 * time.Hour

// AuditDueSeverity grades an ESG audit due date relative to now: at least 18
// months overdue is CRITICAL, any other overdue date WARNING, a date not yet
// reached INFO. daysOverdue is negative while the audit is still upcoming.
func AuditDueSeverity(due, now time.Time) (severity string, daysOverdue int) {
	daysOverdue = int(math.Floor(now.Sub(due).Hours() / 24))
	switch {
	case !now.Before(due.AddDate(0, 18, 0)):
		return entity.SeverityCritical, daysOverdue
	case !now.Before(due.AddDate(0, 12, 0)):
		return entity.SeverityWarning, daysOverdue
	case now.After(due):
		return entity.SeverityWarning, daysOverdue
	default:
		return entity.SeverityInfo, daysOverdue
	}
}

// AuditDueCandidate builds the REVIEW_DUE alert for an ESG audit date.
func AuditDueCandidate(due, now time.Time) AlertCandidate {
	severity, days := AuditDueSeverity(due, now)
	cat := entity.MetricAudit
	d := float64(days)
	var msg string
	if days > 0 {
		msg = fmt.Sprintf("ESG audit overdue by %d days (due %s)", days, due.Format("2006-01-02"))
	} else {
		msg = fmt.Sprintf("ESG audit due on %s", due.Format("2006-01-02"))
	}
	return AlertCandidate{
		AlertType:      entity.AlertTypeReviewDue,
		Severity:       severity,
		MetricCategory: &cat,
		CurrentValue:   &d,
		Message:        msg,
	}
}
