package repository

import (
	"context"
	"time"

	"github.com/agogsaas/vendorperf/internal/vendorperf/entity"
	"gorm.io/gorm"
)

// ScorecardConfigRepository 评分卡配置仓库
type ScorecardConfigRepository struct {
	db *gorm.DB
}

func NewScorecardConfigRepository(db *gorm.DB) *ScorecardConfigRepository {
	return &ScorecardConfigRepository{db: db}
}

func scoped(query *gorm.DB, column string, value *string) *gorm.DB {
	if value == nil {
		return query.Where(column + " IS NULL")
	}
	return query.Where(column+" = ?", *value)
}

// FindEffective returns the active config whose scope matches exactly and
// whose range contains at.
func (r *ScorecardConfigRepository) FindEffective(ctx context.Context, tenantID string, vendorType, vendorTier *string, at time.Time) (*entity.ScorecardConfig, error) {
	var cfg entity.ScorecardConfig
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Where("effective_from <= ?", at).
		Where("effective_to IS NULL OR effective_to > ?", at)
	query = scoped(query, "vendor_type", vendorType)
	query = scoped(query, "vendor_tier", vendorTier)
	err := query.Order("effective_from DESC").First(&cfg).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &cfg, nil
}

// ListByScope 同一范围下全部启用配置
func (r *ScorecardConfigRepository) ListByScope(ctx context.Context, tenantID string, vendorType, vendorTier *string) ([]entity.ScorecardConfig, error) {
	var items []entity.ScorecardConfig
	query := r.db.WithContext(ctx).Where("tenant_id = ? AND is_active = ?", tenantID, true)
	query = scoped(query, "vendor_type", vendorType)
	query = scoped(query, "vendor_tier", vendorTier)
	err := query.Order("effective_from ASC").Find(&items).Error
	return items, err
}

// List 租户全部配置
func (r *ScorecardConfigRepository) List(ctx context.Context, tenantID string) ([]entity.ScorecardConfig, error) {
	var items []entity.ScorecardConfig
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("effective_from DESC, created_at DESC").
		Find(&items).Error
	return items, err
}

// FindByID 根据ID查找配置
func (r *ScorecardConfigRepository) FindByID(ctx context.Context, tenantID, id string) (*entity.ScorecardConfig, error) {
	var cfg entity.ScorecardConfig
	err := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&cfg).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &cfg, nil
}

// Create 创建配置
func (r *ScorecardConfigRepository) Create(ctx context.Context, cfg *entity.ScorecardConfig) error {
	return r.db.WithContext(ctx).Create(cfg).Error
}

// CloseRange 结束一个开放区间
func (r *ScorecardConfigRepository) CloseRange(ctx context.Context, id string, to time.Time) error {
	return r.db.WithContext(ctx).
		Model(&entity.ScorecardConfig{}).
		Where("id = ? AND effective_to IS NULL", id).
		Update("effective_to", to).Error
}
