package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/agogsaas/vendorperf/internal/metrics"
	"github.com/agogsaas/vendorperf/internal/vendorperf/engine"
	"github.com/agogsaas/vendorperf/internal/vendorperf/entity"
	"github.com/agogsaas/vendorperf/internal/vendorperf/repository"
	"github.com/agogsaas/vendorperf/internal/vendorperf/tenantlock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// MinOverrideJustification 人工调整分级说明的最少字符数
const MinOverrideJustification = 10

// TierService 供应商分级服务
type TierService struct {
	repos    *repository.Repositories
	alerts   *AlertService
	locker   tenantlock.Locker
	bands    engine.Bands
	lookback int // months of spend considered
	logger   *zap.Logger
	now      func() time.Time
}

func NewTierService(repos *repository.Repositories, alerts *AlertService, logger *zap.Logger) *TierService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TierService{
		repos:    repos,
		alerts:   alerts,
		locker:   tenantlock.Nop{},
		bands:    engine.DefaultBands,
		lookback: 12,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *TierService) SetLocker(l tenantlock.Locker) {
	s.locker = l
}

func (s *TierService) SetBands(b engine.Bands) {
	s.bands = b
}

func (s *TierService) SetClock(now func() time.Time) {
	s.now = now
}

// snapshot ranks the tenant's active vendors with trailing spend from one query.
func (s *TierService) snapshot(ctx context.Context, tx *repository.Repositories, tenantID string, now time.Time) ([]entity.TierClassificationResult, error) {
	rows, err := tx.Vendor.SpendRanking(ctx, tenantID, now.AddDate(0, -s.lookback, 0))
	if err != nil {
		return nil, err
	}
	spends := make([]engine.VendorSpend, 0, len(rows))
	for _, r := range rows {
		spends = append(spends, engine.VendorSpend{
			VendorID:        r.VendorID,
			Spend:           r.TotalSpend,
			CurrentTier:     entity.PriorTierFromColumn(r.VendorTier),
			MissionCritical: r.MissionCritical,
		})
	}
	return engine.ClassifyAll(spends, s.bands), nil
}

type tierChange struct {
	result entity.TierClassificationResult
	source string
	reason string
	actor  string
}

// apply persists a tier assignment: vendor row, the current period's
// performance record and a change log entry. When the vendor had a prior
// tier that differs, a TIER_CHANGE alert is raised in the same transaction.
// The returned alert is non-nil only if it was newly created.
func (s *TierService) apply(ctx context.Context, tx *repository.Repositories, tenantID string, ch tierChange, now time.Time) (*entity.PerformanceAlert, error) {
	r := ch.result
	if err := tx.Vendor.UpdateTier(ctx, tenantID, r.VendorID, r.Tier, now, ch.reason); err != nil {
		return nil, err
	}
	if err := tx.Performance.UpdateTier(ctx, tenantID, r.VendorID, now.Year(), int(now.Month()), r.Tier, now); err != nil {
		return nil, err
	}

	var from *string
	if r.PreviousTier != nil {
		v := string(*r.PreviousTier)
		from = &v
	}
	rank, spend := r.PercentileRank, r.TotalSpend
	if err := tx.TierLog.Create(ctx, &entity.TierChangeLog{
		ID:             newID(),
		TenantID:       tenantID,
		VendorID:       r.VendorID,
		FromTier:       from,
		ToTier:         string(r.Tier),
		Source:         ch.source,
		PercentileRank: &rank,
		TotalSpend:     &spend,
		Reason:         ch.reason,
		ActorID:        ch.actor,
		CreatedAt:      now,
	}); err != nil {
		return nil, err
	}

	if r.PreviousTier == nil || *r.PreviousTier == r.Tier {
		return nil, nil
	}
	c := engine.TierChangeCandidate(*r.PreviousTier, r.Tier, r.PercentileRank)
	if ch.source == entity.TierSourceManual {
		c.Message += "; manual override: " + ch.reason
	}
	alert, created, err := s.alerts.generateTx(ctx, tx, tenantID, r.VendorID, c)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, nil
	}
	return alert, nil
}

func (s *TierService) noSpend(op, vendorID string) error {
	return notFoundf(op, "vendor %s has no spend in the last %d months", vendorID, s.lookback)
}

// ClassifyVendor ranks the tenant's spend and (re)classifies one vendor.
// Persisting and alerting happen only when the tier differs from the stored
// one; a first assignment is persisted without an alert.
func (s *TierService) ClassifyVendor(ctx context.Context, tenantID, vendorID, actorID string) (*entity.TierClassificationResult, error) {
	const op = "classify vendor"
	now := s.now()

	var result entity.TierClassificationResult
	var created []*entity.PerformanceAlert
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if _, err := tx.Vendor.FindActiveByID(ctx, tenantID, vendorID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return notFoundf(op, "vendor %s not found", vendorID)
			}
			return err
		}

		results, err := s.snapshot(ctx, tx, tenantID, now)
		if err != nil {
			return err
		}
		var found bool
		for _, r := range results {
			if r.VendorID == vendorID {
				result, found = r, true
				break
			}
		}
		if !found {
			return s.noSpend(op, vendorID)
		}

		if result.PreviousTier != nil && *result.PreviousTier == result.Tier {
			return nil
		}
		alert, err := s.apply(ctx, tx, tenantID, tierChange{result: result, source: entity.TierSourceAuto, actor: actorID}, now)
		if err != nil {
			return err
		}
		if alert != nil {
			created = append(created, alert)
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(op, err)
	}

	if result.TierChanged {
		metrics.TierChanges.WithLabelValues(entity.TierSourceAuto, string(result.Tier)).Inc()
	}
	s.alerts.publish(ctx, created...)
	return &result, nil
}

// ReclassifySummary 批量分级结果
type ReclassifySummary struct {
	VendorsAnalyzed    int                               `json:"vendors_analyzed"`
	TierChanges        int                               `json:"tier_changes"`
	InitialAssignments int                               `json:"initial_assignments"`
	TierCounts         map[entity.Tier]int               `json:"tier_counts"`
	Changes            []entity.TierClassificationResult `json:"changes"`
	// 无采购额的启用供应商，不参与排名，分级保持不变
	WithoutSpend       []string                          `json:"vendors_without_spend"`
}

// ReclassifyAll re-tiers every active vendor with trailing spend from a single
// ranking snapshot inside one transaction. Either every changed vendor is
// updated together with its change log and alerts, or nothing is.
func (s *TierService) ReclassifyAll(ctx context.Context, tenantID, actorID string) (*ReclassifySummary, error) {
	const op = "reclassify vendors"

	release, err := acquireTenantLock(ctx, s.locker, s.logger, tenantID, "reclassify")
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer release()

	timer := prometheus.NewTimer(metrics.ReclassifyDuration)
	defer timer.ObserveDuration()

	now := s.now()
	summary := &ReclassifySummary{
		TierCounts: map[entity.Tier]int{
			entity.TierStrategic:     0,
			entity.TierPreferred:     0,
			entity.TierTransactional: 0,
		},
		Changes:      []entity.TierClassificationResult{},
		WithoutSpend: []string{},
	}
	var created []*entity.PerformanceAlert

	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		results, err := s.snapshot(ctx, tx, tenantID, now)
		if err != nil {
			return err
		}
		active, err := tx.Vendor.ListActive(ctx, tenantID, "")
		if err != nil {
			return err
		}
		ranked := make(map[string]bool, len(results))
		for _, r := range results {
			ranked[r.VendorID] = true
		}
		for _, v := range active {
			if !ranked[v.ID] {
				summary.WithoutSpend = append(summary.WithoutSpend, v.ID)
			}
		}

		for _, r := range results {
			summary.VendorsAnalyzed++
			summary.TierCounts[r.Tier]++

			switch {
			case r.PreviousTier == nil:
				summary.InitialAssignments++
			case r.TierChanged:
				summary.TierChanges++
				summary.Changes = append(summary.Changes, r)
			default:
				continue
			}

			alert, err := s.apply(ctx, tx, tenantID, tierChange{result: r, source: entity.TierSourceAuto, actor: actorID}, now)
			if err != nil {
				return err
			}
			if alert != nil {
				created = append(created, alert)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("reclassification rolled back",
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		return nil, storeErr(op, err)
	}

	for _, r := range summary.Changes {
		metrics.TierChanges.WithLabelValues(entity.TierSourceAuto, string(r.Tier)).Inc()
	}
	s.alerts.publish(ctx, created...)

	s.logger.Info("vendors reclassified",
		zap.String("tenant_id", tenantID),
		zap.Int("analyzed", summary.VendorsAnalyzed),
		zap.Int("changed", summary.TierChanges),
		zap.Int("initial", summary.InitialAssignments),
		zap.Int("without_spend", len(summary.WithoutSpend)))
	return summary, nil
}

// OverrideTier sets a vendor's tier by hand. The justification is stored on
// the vendor and in the change log. The next automatic run starts from the
// overridden tier.
func (s *TierService) OverrideTier(ctx context.Context, tenantID, vendorID, tier, justification, actorID string) (*entity.TierClassificationResult, error) {
	const op = "override tier"

	target, err := entity.ParseTier(tier)
	if err != nil {
		return nil, validationf(op, "%v", err)
	}
	justification = strings.TrimSpace(justification)
	if len([]rune(justification)) < MinOverrideJustification {
		return nil, validationf(op, "justification must be at least %d characters", MinOverrideJustification)
	}

	now := s.now()
	var result entity.TierClassificationResult
	var created []*entity.PerformanceAlert
	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		vendor, err := tx.Vendor.FindActiveByID(ctx, tenantID, vendorID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return notFoundf(op, "vendor %s not found", vendorID)
			}
			return err
		}

		results, err := s.snapshot(ctx, tx, tenantID, now)
		if err != nil {
			return err
		}
		var found bool
		for _, r := range results {
			if r.VendorID == vendorID {
				result, found = r, true
				break
			}
		}
		if !found {
			return s.noSpend(op, vendorID)
		}

		prior := entity.PriorTierFromColumn(vendor.VendorTier)
		prev, hadPrev := prior.Get()
		result.VendorID = vendorID
		result.Tier = target
		result.PreviousTier = prior.Ptr()
		result.TierChanged = hadPrev && prev != target
		result.MissionCritical = vendor.MissionCritical

		alert, err := s.apply(ctx, tx, tenantID, tierChange{
			result: result,
			source: entity.TierSourceManual,
			reason: justification,
			actor:  actorID,
		}, now)
		if err != nil {
			return err
		}
		if alert != nil {
			created = append(created, alert)
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(op, err)
	}

	if result.TierChanged {
		metrics.TierChanges.WithLabelValues(entity.TierSourceManual, string(target)).Inc()
	}
	s.alerts.publish(ctx, created...)
	s.logger.Info("vendor tier overridden",
		zap.String("tenant_id", tenantID),
		zap.String("vendor_id", vendorID),
		zap.String("from", result.PreviousTierString()),
		zap.String("to", string(target)),
		zap.String("actor", actorID))
	return &result, nil
}

// TierHistory 供应商分级变更记录
func (s *TierService) TierHistory(ctx context.Context, tenantID, vendorID string, limit int) ([]entity.TierChangeLog, error) {
	const op = "tier history"
	if _, err := s.repos.Vendor.FindByID(ctx, tenantID, vendorID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundf(op, "vendor %s not found", vendorID)
		}
		return nil, storeErr(op, err)
	}
	logs, err := s.repos.TierLog.ListByVendor(ctx, tenantID, vendorID, limit)
	if err != nil {
		return nil, storeErr(op, err)
	}
	return logs, nil
}
