package repository

import (
	"context"
	"time"

	"github.com/agogsaas/vendorperf/internal/vendorperf/entity"
	"gorm.io/gorm"
)

// ESGRepository ESG指标仓库
type ESGRepository struct {
	db *gorm.DB
}

func NewESGRepository(db *gorm.DB) *ESGRepository {
	return &ESGRepository{db: db}
}

// Create 创建ESG记录
func (r *ESGRepository) Create(ctx context.Context, m *entity.ESGMetric) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// Latest 供应商最新一期ESG记录
func (r *ESGRepository) Latest(ctx context.Context, tenantID, vendorID string) (*entity.ESGMetric, error) {
	var m entity.ESGMetric
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND vendor_id = ?", tenantID, vendorID).
		Order("evaluation_year DESC, evaluation_month DESC, created_at DESC").
		First(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// FindAuditDue returns, for each active vendor, its latest ESG record when
// that record's next audit due date is on or before cutoff.
func (r *ESGRepository) FindAuditDue(ctx context.Context, tenantID string, cutoff time.Time) ([]entity.ESGMetric, error) {
	var rows []entity.ESGMetric
	err := r.db.WithContext(ctx).
		Table("vp_esg_metrics AS e").
		Select("e.*").
		Joins("JOIN vp_vendors AS v ON v.id = e.vendor_id AND v.tenant_id = e.tenant_id").
		Where("e.tenant_id = ? AND v.is_active = ?", tenantID, true).
		Where(`NOT EXISTS (
			SELECT 1 FROM vp_esg_metrics AS n
			WHERE n.tenant_id = e.tenant_id AND n.vendor_id = e.vendor_id
			AND (n.evaluation_year * 12 + n.evaluation_month) > (e.evaluation_year * 12 + e.evaluation_month))`).
		Order("e.vendor_id ASC, e.created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	// one row per vendor even if a period was recorded twice
	seen := make(map[string]bool, len(rows))
	due := rows[:0]
	for _, m := range rows {
		if seen[m.VendorID] {
			continue
		}
		seen[m.VendorID] = true
		if m.NextAuditDueDate != nil && !m.NextAuditDueDate.After(cutoff) {
			due = append(due, m)
		}
	}
	return due, nil
}
