package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/agogsaas/vendorperf/internal/vendorperf/engine"
	"github.com/agogsaas/vendorperf/internal/vendorperf/entity"
	"github.com/agogsaas/vendorperf/internal/vendorperf/repository"
	"go.uber.org/zap"
)

// ConfigService 评分卡配置服务
type ConfigService struct {
	repos  *repository.Repositories
	logger *zap.Logger
	now    func() time.Time
}

func NewConfigService(repos *repository.Repositories, logger *zap.Logger) *ConfigService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfigService{
		repos:  repos,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *ConfigService) SetClock(now func() time.Time) {
	s.now = now
}

// CreateConfigRequest 创建评分卡配置请求
type CreateConfigRequest struct {
	VendorType            *string    `json:"vendor_type"`
	VendorTier            *string    `json:"vendor_tier"`
	Name                  string     `json:"name" binding:"required"`
	QualityWeight         float64    `json:"quality_weight"`
	DeliveryWeight        float64    `json:"delivery_weight"`
	CostWeight            float64    `json:"cost_weight"`
	ServiceWeight         float64    `json:"service_weight"`
	InnovationWeight      float64    `json:"innovation_weight"`
	ESGWeight             float64    `json:"esg_weight"`
	AcceptableThreshold   float64    `json:"acceptable_threshold"`
	GoodThreshold         float64    `json:"good_threshold"`
	ExcellentThreshold    float64    `json:"excellent_threshold"`
	ReviewFrequencyMonths int        `json:"review_frequency_months"`
	EffectiveFrom         *time.Time `json:"effective_from"`
	EffectiveTo           *time.Time `json:"effective_to"`
}

func emptyToNil(p *string) *string {
	if p == nil || strings.TrimSpace(*p) == "" {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}

// CreateConfig stores a new config version. An open-ended version of the same
// scope that started earlier is closed at the new version's start; any other
// overlap with an active version is a conflict.
func (s *ConfigService) CreateConfig(ctx context.Context, tenantID, actorID string, req *CreateConfigRequest) (*entity.ScorecardConfig, error) {
	const op = "create scorecard config"

	cfg := &entity.ScorecardConfig{
		ID:                    newID(),
		TenantID:              tenantID,
		VendorType:            emptyToNil(req.VendorType),
		VendorTier:            emptyToNil(req.VendorTier),
		Name:                  strings.TrimSpace(req.Name),
		QualityWeight:         req.QualityWeight,
		DeliveryWeight:        req.DeliveryWeight,
		CostWeight:            req.CostWeight,
		ServiceWeight:         req.ServiceWeight,
		InnovationWeight:      req.InnovationWeight,
		ESGWeight:             req.ESGWeight,
		AcceptableThreshold:   req.AcceptableThreshold,
		GoodThreshold:         req.GoodThreshold,
		ExcellentThreshold:    req.ExcellentThreshold,
		ReviewFrequencyMonths: req.ReviewFrequencyMonths,
		IsActive:              true,
		EffectiveTo:           req.EffectiveTo,
		CreatedBy:             actorID,
	}
	if req.EffectiveFrom != nil {
		cfg.EffectiveFrom = req.EffectiveFrom.UTC()
	} else {
		cfg.EffectiveFrom = s.now()
	}
	if cfg.EffectiveTo != nil {
		to := cfg.EffectiveTo.UTC()
		cfg.EffectiveTo = &to
	}
	if cfg.ReviewFrequencyMonths == 0 {
		cfg.ReviewFrequencyMonths = 3
	}

	if err := validateConfig(op, cfg); err != nil {
		return nil, err
	}

	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		existing, err := tx.Config.ListByScope(ctx, tenantID, cfg.VendorType, cfg.VendorTier)
		if err != nil {
			return err
		}
		for i := range existing {
			e := &existing[i]
			if !e.Overlaps(cfg.EffectiveFrom, cfg.EffectiveTo) {
				continue
			}
			if e.EffectiveTo == nil && e.EffectiveFrom.Before(cfg.EffectiveFrom) {
				if err := tx.Config.CloseRange(ctx, e.ID, cfg.EffectiveFrom); err != nil {
					return err
				}
				s.logger.Info("scorecard config superseded",
					zap.String("tenant_id", tenantID),
					zap.String("config_id", e.ID),
					zap.String("superseded_by", cfg.ID))
				continue
			}
			return conflictf(op, "effective range overlaps config %s (%s)", e.ID, e.Name)
		}
		return tx.Config.Create(ctx, cfg)
	})
	if err != nil {
		return nil, storeErr(op, err)
	}
	return cfg, nil
}

func validateConfig(op string, cfg *entity.ScorecardConfig) error {
	if cfg.Name == "" {
		return validationf(op, "name is required")
	}
	if cfg.VendorTier != nil {
		if _, err := entity.ParseTier(*cfg.VendorTier); err != nil {
			return validationf(op, "%v", err)
		}
	}
	if err := engine.WeightsFromConfig(cfg).Validate(); err != nil {
		return validationf(op, "%v", err)
	}
	if err := engine.ThresholdsFromConfig(cfg).Validate(); err != nil {
		return validationf(op, "%v", err)
	}
	if cfg.ReviewFrequencyMonths < 1 {
		return validationf(op, "review frequency must be at least 1 month")
	}
	if cfg.EffectiveTo != nil && !cfg.EffectiveTo.After(cfg.EffectiveFrom) {
		return validationf(op, "effective_to must be after effective_from")
	}
	return nil
}

// ResolveConfig finds the config in force for a vendor scope at an instant.
// Lookup goes from the most specific scope to the tenant default and finally
// to the built-in default, which has an empty ID.
func (s *ConfigService) ResolveConfig(ctx context.Context, tenantID string, vendorType, vendorTier *string, at time.Time) (*entity.ScorecardConfig, error) {
	vendorType, vendorTier = emptyToNil(vendorType), emptyToNil(vendorTier)
	scopes := [][2]*string{
		{vendorType, vendorTier},
		{vendorType, nil},
		{nil, vendorTier},
		{nil, nil},
	}
	tried := map[[2]string]bool{}
	for _, sc := range scopes {
		k := [2]string{deref(sc[0]), deref(sc[1])}
		if tried[k] {
			continue
		}
		tried[k] = true

		cfg, err := s.repos.Config.FindEffective(ctx, tenantID, sc[0], sc[1], at)
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, storeErr("resolve scorecard config", err)
		}
	}
	return engine.DefaultConfig(tenantID), nil
}

// GetActiveConfig 当前生效配置
func (s *ConfigService) GetActiveConfig(ctx context.Context, tenantID string, vendorType, vendorTier *string) (*entity.ScorecardConfig, error) {
	return s.ResolveConfig(ctx, tenantID, vendorType, vendorTier, s.now())
}

// ListConfigs 配置列表（含历史版本）
func (s *ConfigService) ListConfigs(ctx context.Context, tenantID string) ([]entity.ScorecardConfig, error) {
	items, err := s.repos.Config.List(ctx, tenantID)
	if err != nil {
		return nil, storeErr("list scorecard configs", err)
	}
	return items, nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
