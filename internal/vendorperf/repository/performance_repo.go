package repository

import (
	"context"
	"time"

	"github.com/agogsaas/vendorperf/internal/vendorperf/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PerformanceRepository 月度绩效仓库
type PerformanceRepository struct {
	db *gorm.DB
}

func NewPerformanceRepository(db *gorm.DB) *PerformanceRepository {
	return &PerformanceRepository{db: db}
}

// computedColumns are rewritten on every recalculation; manual scores and
// tier fields are left untouched.
var computedColumns = []string{
	"total_pos_issued",
	"total_pos_value",
	"total_deliveries",
	"on_time_deliveries",
	"quality_acceptances",
	"quality_rejections",
	"received_quantity",
	"defective_quantity",
	"on_time_percentage",
	"quality_percentage",
	"defect_rate_ppm",
	"overall_rating",
	"weighted_score",
	"scorecard_config_id",
	"updated_at",
}

// Upsert 按 (tenant, vendor, year, month) 插入或覆盖计算字段
func (r *PerformanceRepository) Upsert(ctx context.Context, rec *entity.VendorPerformanceRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "tenant_id"},
				{Name: "vendor_id"},
				{Name: "evaluation_year"},
				{Name: "evaluation_month"},
			},
			DoUpdates: clause.AssignmentColumns(computedColumns),
		}).
		Create(rec).Error
}

// FindByPeriod 查询某供应商某月绩效
func (r *PerformanceRepository) FindByPeriod(ctx context.Context, tenantID, vendorID string, year, month int) (*entity.VendorPerformanceRecord, error) {
	var rec entity.VendorPerformanceRecord
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND vendor_id = ? AND evaluation_year = ? AND evaluation_month = ?",
			tenantID, vendorID, year, month).
		First(&rec).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

// FindPrevious 查询指定月份之前最近一期绩效
func (r *PerformanceRepository) FindPrevious(ctx context.Context, tenantID, vendorID string, year, month int) (*entity.VendorPerformanceRecord, error) {
	var rec entity.VendorPerformanceRecord
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND vendor_id = ?", tenantID, vendorID).
		Where("evaluation_year < ? OR (evaluation_year = ? AND evaluation_month < ?)", year, year, month).
		Order("evaluation_year DESC, evaluation_month DESC").
		First(&rec).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

// History 最近N期绩效，按时间倒序
func (r *PerformanceRepository) History(ctx context.Context, tenantID, vendorID string, limit int) ([]entity.VendorPerformanceRecord, error) {
	var items []entity.VendorPerformanceRecord
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND vendor_id = ?", tenantID, vendorID).
		Order("evaluation_year DESC, evaluation_month DESC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

// ListByPeriod 某月全部已计算绩效，可按供应商类型过滤
func (r *PerformanceRepository) ListByPeriod(ctx context.Context, tenantID string, year, month int, vendorType string) ([]entity.VendorPerformanceRecord, error) {
	var items []entity.VendorPerformanceRecord
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND evaluation_year = ? AND evaluation_month = ?", tenantID, year, month).
		Where("weighted_score IS NOT NULL")
	if vendorType != "" {
		query = query.Where("vendor_id IN (?)",
			r.db.Model(&entity.Vendor{}).Select("id").Where("tenant_id = ? AND vendor_type = ?", tenantID, vendorType))
	}
	err := query.Order("weighted_score DESC, vendor_id ASC").Find(&items).Error
	return items, err
}

// UpdateManualScores 更新人工评分字段
func (r *PerformanceRepository) UpdateManualScores(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&entity.VendorPerformanceRecord{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// UpdateTier 同步当期绩效记录上的分级，当期无记录时不做任何事
func (r *PerformanceRepository) UpdateTier(ctx context.Context, tenantID, vendorID string, year, month int, tier entity.Tier, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&entity.VendorPerformanceRecord{}).
		Where("tenant_id = ? AND vendor_id = ? AND evaluation_year = ? AND evaluation_month = ?",
			tenantID, vendorID, year, month).
		Updates(map[string]interface{}{
			"vendor_tier":              string(tier),
			"tier_classification_date": at,
		}).Error
}
