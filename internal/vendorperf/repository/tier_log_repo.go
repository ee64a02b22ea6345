package repository

import (
	"context"

	"github.com/agogsaas/vendorperf/internal/vendorperf/entity"
	"gorm.io/gorm"
)

// TierChangeLogRepository 分级变更日志仓库
type TierChangeLogRepository struct {
	db *gorm.DB
}

func NewTierChangeLogRepository(db *gorm.DB) *TierChangeLogRepository {
	return &TierChangeLogRepository{db: db}
}

// Create 追加一条变更
func (r *TierChangeLogRepository) Create(ctx context.Context, log *entity.TierChangeLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// ListByVendor 供应商分级变更历史，最新在前
func (r *TierChangeLogRepository) ListByVendor(ctx context.Context, tenantID, vendorID string, limit int) ([]entity.TierChangeLog, error) {
	var items []entity.TierChangeLog
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND vendor_id = ?", tenantID, vendorID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&items).Error
	return items, err
}
