package service

import (
	"context"
	"errors"
	"time"

	"github.com/agogsaas/vendorperf/internal/metrics"
	"github.com/agogsaas/vendorperf/internal/vendorperf/engine"
	"github.com/agogsaas/vendorperf/internal/vendorperf/entity"
	"github.com/agogsaas/vendorperf/internal/vendorperf/repository"
	"go.uber.org/zap"
)

// ScoreHistory supplies the weighted score a vendor had before a period.
// A nil score means there is nothing to compare against.
type ScoreHistory interface {
	PreviousScore(ctx context.Context, tenantID, vendorID string, year, month int) (*float64, error)
}

// PreviousPeriodHistory reads the most recent stored period before the one
// being calculated.
type PreviousPeriodHistory struct {
	repo *repository.PerformanceRepository
}

func NewPreviousPeriodHistory(repo *repository.PerformanceRepository) *PreviousPeriodHistory {
	return &PreviousPeriodHistory{repo: repo}
}

func (h *PreviousPeriodHistory) PreviousScore(ctx context.Context, tenantID, vendorID string, year, month int) (*float64, error) {
	rec, err := h.repo.FindPrevious(ctx, tenantID, vendorID, year, month)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return rec.WeightedScore, nil
}

// PerformanceService 供应商绩效计算服务
type PerformanceService struct {
	repos   *repository.Repositories
	configs *ConfigService
	alerts  *AlertService
	history ScoreHistory
	logger  *zap.Logger
	now     func() time.Time
}

func NewPerformanceService(repos *repository.Repositories, configs *ConfigService, alerts *AlertService, logger *zap.Logger) *PerformanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PerformanceService{
		repos:   repos,
		configs: configs,
		alerts:  alerts,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetScoreHistory enables the score improvement alert. Without a history the
// rule is skipped.
func (s *PerformanceService) SetScoreHistory(h ScoreHistory) {
	s.history = h
}

func (s *PerformanceService) SetClock(now func() time.Time) {
	s.now = now
}

// AlertOutcome 单条告警生成结果
type AlertOutcome struct {
	AlertID        string  `json:"alert_id"`
	Created        bool    `json:"created"`
	Severity       string  `json:"severity"`
	MetricCategory *string `json:"metric_category"`
}

// PerformanceResult 月度绩效计算结果
type PerformanceResult struct {
	Record           *entity.VendorPerformanceRecord `json:"record"`
	PerformanceLevel string                          `json:"performance_level"`
	ConfigName       string                          `json:"config_name"`
	Alerts           []AlertOutcome                  `json:"alerts"`
}

func validatePeriod(op string, year, month int) error {
	if month < 1 || month > 12 {
		return validationf(op, "month %d must be within 1-12", month)
	}
	if year < 2000 || year > 2100 {
		return validationf(op, "year %d out of range", year)
	}
	return nil
}

func pct(part, whole float64) *float64 {
	if whole <= 0 {
		return nil
	}
	v := engine.Round(part/whole*100, 4)
	return &v
}

// CalculateVendorPerformance aggregates one vendor month from its purchase
// orders, scores it with the config in force and raises threshold alerts.
// Re-running it for the same period overwrites the computed fields and keeps
// manual scores.
func (s *PerformanceService) CalculateVendorPerformance(ctx context.Context, tenantID, vendorID string, year, month int) (*PerformanceResult, error) {
	const op = "calculate vendor performance"
	if err := validatePeriod(op, year, month); err != nil {
		return nil, err
	}

	vendor, err := s.repos.Vendor.FindByID(ctx, tenantID, vendorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundf(op, "vendor %s not found", vendorID)
		}
		return nil, storeErr(op, err)
	}

	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	agg, err := s.repos.PurchaseOrder.AggregateForPeriod(ctx, tenantID, vendorID, from, to)
	if err != nil {
		return nil, storeErr(op, err)
	}

	// config in force at the end of the period, or now for the running month
	at := to.Add(-time.Second)
	if now := s.now(); now.Before(at) {
		at = now
	}
	vendorType := vendor.VendorType
	cfg, err := s.configs.ResolveConfig(ctx, tenantID, &vendorType, vendor.VendorTier, at)
	if err != nil {
		return nil, err
	}

	var esgScore *float64
	var esgRisk *string
	if esg, err := s.repos.ESG.Latest(ctx, tenantID, vendorID); err == nil {
		esgScore = esg.ESGOverallScore
		level := esg.ESGRiskLevel
		esgRisk = &level
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, storeErr(op, err)
	}

	var previous *float64
	if s.history != nil {
		previous, err = s.history.PreviousScore(ctx, tenantID, vendorID, year, month)
		if err != nil {
			return nil, storeErr(op, err)
		}
	}

	rec := &entity.VendorPerformanceRecord{
		ID:                 newID(),
		TenantID:           tenantID,
		VendorID:           vendorID,
		EvaluationYear:     year,
		EvaluationMonth:    month,
		TotalPOsIssued:     agg.TotalPOs,
		TotalPOsValue:      agg.TotalValue,
		TotalDeliveries:    agg.TotalDeliveries,
		OnTimeDeliveries:   agg.OnTimeDeliveries,
		QualityAcceptances: agg.QualityAcceptances,
		QualityRejections:  agg.QualityRejections,
		ReceivedQuantity:   agg.ReceivedQuantity,
		DefectiveQuantity:  agg.DefectiveQuantity,
		OnTimePercentage:   pct(float64(agg.OnTimeDeliveries), float64(agg.TotalDeliveries)),
		QualityPercentage:  pct(float64(agg.QualityAcceptances), float64(agg.QualityAcceptances+agg.QualityRejections)),
	}
	if agg.ReceivedQuantity > 0 {
		ppm := engine.Round(agg.DefectiveQuantity/agg.ReceivedQuantity*1e6, 4)
		rec.DefectRatePPM = &ppm
	}
	if cfg.ID != "" {
		id := cfg.ID
		rec.ScorecardConfigID = &id
	}

	var outcomes []AlertOutcome
	var created []*entity.PerformanceAlert
	var level string
	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		// manual scores entered earlier for this period take part in scoring
		existing, err := tx.Performance.FindByPeriod(ctx, tenantID, vendorID, year, month)
		switch {
		case err == nil:
			copyManualScores(rec, existing)
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}

		m := engine.MetricsFromRecord(rec)
		score := engine.Round(engine.CalculateWeightedScore(m, esgScore, engine.WeightsFromConfig(cfg)), 4)
		rec.WeightedScore = &score
		rec.OverallRating = engine.CalculateOverallRating(m)
		level = engine.PerformanceLevel(score, engine.ThresholdsFromConfig(cfg))

		if err := tx.Performance.Upsert(ctx, rec); err != nil {
			return err
		}
		stored, err := tx.Performance.FindByPeriod(ctx, tenantID, vendorID, year, month)
		if err != nil {
			return err
		}
		rec = stored

		candidates := engine.EvaluateThresholds(engine.ThresholdInput{
			WeightedScore: score,
			PreviousScore: previous,
			QualityPct:    rec.QualityPercentage,
			OnTimePct:     rec.OnTimePercentage,
			DefectRatePPM: rec.DefectRatePPM,
			ESGRiskLevel:  esgRisk,
		})
		for _, c := range candidates {
			alert, isNew, err := s.alerts.generateTx(ctx, tx, tenantID, vendorID, c)
			if err != nil {
				return err
			}
			outcomes = append(outcomes, AlertOutcome{
				AlertID:        alert.ID,
				Created:        isNew,
				Severity:       c.Severity,
				MetricCategory: c.MetricCategory,
			})
			if isNew {
				created = append(created, alert)
			}
		}
		return nil
	})
	if err != nil {
		metrics.PerformanceCalculations.WithLabelValues("failed").Inc()
		return nil, storeErr(op, err)
	}
	metrics.PerformanceCalculations.WithLabelValues("ok").Inc()
	s.alerts.publish(ctx, created...)

	s.logger.Info("vendor performance calculated",
		zap.String("tenant_id", tenantID),
		zap.String("vendor_id", vendorID),
		zap.Int("year", year),
		zap.Int("month", month),
		zap.Float64("weighted_score", *rec.WeightedScore),
		zap.Int("alerts", len(outcomes)))

	if outcomes == nil {
		outcomes = []AlertOutcome{}
	}
	return &PerformanceResult{
		Record:           rec,
		PerformanceLevel: level,
		ConfigName:       cfg.Name,
		Alerts:           outcomes,
	}, nil
}

func copyManualScores(dst, src *entity.VendorPerformanceRecord) {
	dst.PriceCompetitivenessScore = src.PriceCompetitivenessScore
	dst.ResponsivenessScore = src.ResponsivenessScore
	dst.InnovationScore = src.InnovationScore
	dst.CommunicationScore = src.CommunicationScore
	dst.IssueResolutionRate = src.IssueResolutionRate
	dst.CostIndex = src.CostIndex
}

// BatchFailure 批量计算中失败的供应商
type BatchFailure struct {
	VendorID string `json:"vendor_id"`
	Error    string `json:"error"`
}

// BatchSummary 批量计算结果
type BatchSummary struct {
	Processed     int            `json:"processed"`
	Failed        int            `json:"failed"`
	AlertsCreated int            `json:"alerts_created"`
	Failures      []BatchFailure `json:"failures"`
}

// CalculateAllVendorsPerformance runs the monthly calculation for every
// active vendor. A failing vendor is recorded and does not stop the run.
func (s *PerformanceService) CalculateAllVendorsPerformance(ctx context.Context, tenantID string, year, month int) (*BatchSummary, error) {
	const op = "calculate all vendors performance"
	if err := validatePeriod(op, year, month); err != nil {
		return nil, err
	}
	vendors, err := s.repos.Vendor.ListActive(ctx, tenantID, "")
	if err != nil {
		return nil, storeErr(op, err)
	}

	summary := &BatchSummary{Failures: []BatchFailure{}}
	for _, v := range vendors {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		res, err := s.CalculateVendorPerformance(ctx, tenantID, v.ID, year, month)
		if err != nil {
			summary.Failed++
			summary.Failures = append(summary.Failures, BatchFailure{VendorID: v.ID, Error: err.Error()})
			s.logger.Warn("vendor performance failed",
				zap.String("tenant_id", tenantID),
				zap.String("vendor_id", v.ID),
				zap.Error(err))
			continue
		}
		summary.Processed++
		for _, a := range res.Alerts {
			if a.Created {
				summary.AlertsCreated++
			}
		}
	}
	return summary, nil
}

// ManualScoresRequest 人工评分（为空的字段保持不变）
type ManualScoresRequest struct {
	PriceCompetitivenessScore *float64 `json:"price_competitiveness_score"`
	ResponsivenessScore       *float64 `json:"responsiveness_score"`
	InnovationScore           *float64 `json:"innovation_score"`
	CommunicationScore        *float64 `json:"communication_score"`
	IssueResolutionRate       *float64 `json:"issue_resolution_rate"`
	CostIndex                 *float64 `json:"cost_index"`
}

func (r *ManualScoresRequest) fields(op string) (map[string]interface{}, error) {
	fields := map[string]interface{}{}
	fivePoint := []struct {
		column string
		value  *float64
	}{
		{"price_competitiveness_score", r.PriceCompetitivenessScore},
		{"responsiveness_score", r.ResponsivenessScore},
		{"innovation_score", r.InnovationScore},
		{"communication_score", r.CommunicationScore},
	}
	for _, f := range fivePoint {
		if f.value == nil {
			continue
		}
		if *f.value < 0 || *f.value > 5 {
			return nil, validationf(op, "%s must be within 0-5", f.column)
		}
		fields[f.column] = *f.value
	}
	if r.IssueResolutionRate != nil {
		if *r.IssueResolutionRate < 0 || *r.IssueResolutionRate > 100 {
			return nil, validationf(op, "issue_resolution_rate must be within 0-100")
		}
		fields["issue_resolution_rate"] = *r.IssueResolutionRate
	}
	if r.CostIndex != nil {
		if *r.CostIndex < 0 {
			return nil, validationf(op, "cost_index must not be negative")
		}
		fields["cost_index"] = *r.CostIndex
	}
	if len(fields) == 0 {
		return nil, validationf(op, "no scores given")
	}
	return fields, nil
}

// UpdateManualScores stores manual scores for a calculated period and
// recalculates it so the weighted score reflects them.
func (s *PerformanceService) UpdateManualScores(ctx context.Context, tenantID, vendorID string, year, month int, req *ManualScoresRequest) (*PerformanceResult, error) {
	const op = "update manual scores"
	if err := validatePeriod(op, year, month); err != nil {
		return nil, err
	}
	fields, err := req.fields(op)
	if err != nil {
		return nil, err
	}

	rec, err := s.repos.Performance.FindByPeriod(ctx, tenantID, vendorID, year, month)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundf(op, "no performance record for vendor %s in %04d-%02d", vendorID, year, month)
		}
		return nil, storeErr(op, err)
	}
	fields["updated_at"] = s.now()
	if err := s.repos.Performance.UpdateManualScores(ctx, rec.ID, fields); err != nil {
		return nil, storeErr(op, err)
	}
	return s.CalculateVendorPerformance(ctx, tenantID, vendorID, year, month)
}

// Trend directions of a scorecard.
const (
	TrendImproving = "IMPROVING"
	TrendStable    = "STABLE"
	TrendDeclining = "DECLINING"

	trendWindow    = 3
	trendThreshold = 5.0
)

// Scorecard 供应商滚动绩效
type Scorecard struct {
	VendorID             string                           `json:"vendor_id"`
	VendorName           string                           `json:"vendor_name"`
	CurrentTier          *string                          `json:"current_tier"`
	MonthsIncluded       int                              `json:"months_included"`
	AvgWeightedScore     *float64                         `json:"avg_weighted_score"`
	AvgOverallRating     *float64                         `json:"avg_overall_rating"`
	AvgOnTimePercentage  *float64                         `json:"avg_on_time_percentage"`
	AvgQualityPercentage *float64                         `json:"avg_quality_percentage"`
	AvgDefectRatePPM     *float64                         `json:"avg_defect_rate_ppm"`
	PerformanceLevel     string                           `json:"performance_level"`
	Trend                string                           `json:"trend"`
	History              []entity.VendorPerformanceRecord `json:"history"`
	TierChanges          []entity.TierChangeLog           `json:"tier_changes"`
}

func average(recs []entity.VendorPerformanceRecord, pick func(*entity.VendorPerformanceRecord) *float64) *float64 {
	var sum float64
	var n int
	for i := range recs {
		if v := pick(&recs[i]); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := engine.Round(sum/float64(n), 4)
	return &avg
}

// trend compares the mean weighted score of the latest window with the one
// before it. history is newest first.
func trend(history []entity.VendorPerformanceRecord) string {
	var scores []float64
	for _, r := range history {
		if r.WeightedScore != nil {
			scores = append(scores, *r.WeightedScore)
		}
	}
	if len(scores) <= trendWindow {
		return TrendStable
	}
	mean := func(xs []float64) float64 {
		var sum float64
		for _, x := range xs {
			sum += x
		}
		return sum / float64(len(xs))
	}
	recent := scores[:trendWindow]
	prior := scores[trendWindow:]
	if len(prior) > trendWindow {
		prior = prior[:trendWindow]
	}
	diff := mean(recent) - mean(prior)
	switch {
	case diff >= trendThreshold:
		return TrendImproving
	case diff <= -trendThreshold:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// GetVendorScorecard 滚动N个月的绩效汇总
func (s *PerformanceService) GetVendorScorecard(ctx context.Context, tenantID, vendorID string, months int) (*Scorecard, error) {
	const op = "get vendor scorecard"
	if months <= 0 {
		months = 12
	}
	if months > 36 {
		return nil, validationf(op, "months must not exceed 36")
	}

	vendor, err := s.repos.Vendor.FindByID(ctx, tenantID, vendorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundf(op, "vendor %s not found", vendorID)
		}
		return nil, storeErr(op, err)
	}
	history, err := s.repos.Performance.History(ctx, tenantID, vendorID, months)
	if err != nil {
		return nil, storeErr(op, err)
	}
	changes, err := s.repos.TierLog.ListByVendor(ctx, tenantID, vendorID, 10)
	if err != nil {
		return nil, storeErr(op, err)
	}

	vendorType := vendor.VendorType
	cfg, err := s.configs.ResolveConfig(ctx, tenantID, &vendorType, vendor.VendorTier, s.now())
	if err != nil {
		return nil, err
	}

	card := &Scorecard{
		VendorID:       vendor.ID,
		VendorName:     vendor.Name,
		CurrentTier:    vendor.VendorTier,
		MonthsIncluded: len(history),
		AvgWeightedScore: average(history, func(r *entity.VendorPerformanceRecord) *float64 {
			return r.WeightedScore
		}),
		AvgOverallRating: average(history, func(r *entity.VendorPerformanceRecord) *float64 {
			return r.OverallRating
		}),
		AvgOnTimePercentage: average(history, func(r *entity.VendorPerformanceRecord) *float64 {
			return r.OnTimePercentage
		}),
		AvgQualityPercentage: average(history, func(r *entity.VendorPerformanceRecord) *float64 {
			return r.QualityPercentage
		}),
		AvgDefectRatePPM: average(history, func(r *entity.VendorPerformanceRecord) *float64 {
			return r.DefectRatePPM
		}),
		Trend:       trend(history),
		History:     history,
		TierChanges: changes,
	}
	if card.AvgWeightedScore != nil {
		card.PerformanceLevel = engine.PerformanceLevel(*card.AvgWeightedScore, engine.ThresholdsFromConfig(cfg))
	}
	return card, nil
}

// VendorRanking 对比中的一行
type VendorRanking struct {
	VendorID         string   `json:"vendor_id"`
	VendorName       string   `json:"vendor_name"`
	VendorTier       *string  `json:"vendor_tier"`
	WeightedScore    float64  `json:"weighted_score"`
	OverallRating    *float64 `json:"overall_rating"`
	OnTimePercentage *float64 `json:"on_time_percentage"`
	QualityPct       *float64 `json:"quality_percentage"`
}

// Comparison 供应商横向对比
type Comparison struct {
	Year             int             `json:"year"`
	Month            int             `json:"month"`
	VendorType       string          `json:"vendor_type,omitempty"`
	VendorsCompared  int             `json:"vendors_compared"`
	AvgWeightedScore *float64        `json:"avg_weighted_score"`
	AvgOnTime        *float64        `json:"avg_on_time_percentage"`
	AvgQuality       *float64        `json:"avg_quality_percentage"`
	TopPerformers    []VendorRanking `json:"top_performers"`
	BottomPerformers []VendorRanking `json:"bottom_performers"`
}

// CompareVendors ranks the calculated vendors of one period by weighted score.
// Bottom performers are listed worst first.
func (s *PerformanceService) CompareVendors(ctx context.Context, tenantID string, year, month int, vendorType string, topN int) (*Comparison, error) {
	const op = "compare vendors"
	if err := validatePeriod(op, year, month); err != nil {
		return nil, err
	}
	if topN <= 0 {
		topN = 5
	}
	if topN > 50 {
		return nil, validationf(op, "top_n must not exceed 50")
	}

	recs, err := s.repos.Performance.ListByPeriod(ctx, tenantID, year, month, vendorType)
	if err != nil {
		return nil, storeErr(op, err)
	}
	vendors, err := s.repos.Vendor.ListActive(ctx, tenantID, vendorType)
	if err != nil {
		return nil, storeErr(op, err)
	}
	names := make(map[string]string, len(vendors))
	for _, v := range vendors {
		names[v.ID] = v.Name
	}

	rows := make([]VendorRanking, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, VendorRanking{
			VendorID:         r.VendorID,
			VendorName:       names[r.VendorID],
			VendorTier:       r.VendorTier,
			WeightedScore:    *r.WeightedScore,
			OverallRating:    r.OverallRating,
			OnTimePercentage: r.OnTimePercentage,
			QualityPct:       r.QualityPercentage,
		})
	}

	n := topN
	if n > len(rows) {
		n = len(rows)
	}
	bottom := make([]VendorRanking, 0, n)
	for i := len(rows) - 1; i >= len(rows)-n; i-- {
		bottom = append(bottom, rows[i])
	}

	return &Comparison{
		Year:            year,
		Month:           month,
		VendorType:      vendorType,
		VendorsCompared: len(rows),
		AvgWeightedScore: average(recs, func(r *entity.VendorPerformanceRecord) *float64 {
			return r.WeightedScore
		}),
		AvgOnTime: average(recs, func(r *entity.VendorPerformanceRecord) *float64 {
			return r.OnTimePercentage
		}),
		AvgQuality: average(recs, func(r *entity.VendorPerformanceRecord) *float64 {
			return r.QualityPercentage
		}),
		TopPerformers:    rows[:n],
		BottomPerformers: bottom,
	}, nil
}
