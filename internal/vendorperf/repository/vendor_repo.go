package repository

import (
	"context"
	"time"

	"github.com/agogsaas/vendorperf/internal/vendorperf/entity"
	"gorm.io/gorm"
)

// VendorRepository 供应商仓库
type VendorRepository struct {
	db *gorm.DB
}

func NewVendorRepository(db *gorm.DB) *VendorRepository {
	return &VendorRepository{db: db}
}

// FindByID 根据ID查找供应商（租户内）
func (r *VendorRepository) FindByID(ctx context.Context, tenantID, id string) (*entity.Vendor, error) {
	var vendor entity.Vendor
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&vendor).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &vendor, nil
}

// FindActiveByID 查找启用中的供应商
func (r *VendorRepository) FindActiveByID(ctx context.Context, tenantID, id string) (*entity.Vendor, error) {
	var vendor entity.Vendor
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ? AND is_active = ?", tenantID, id, true).
		First(&vendor).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &vendor, nil
}

// ListActive 租户下全部启用供应商，可按类型过滤
func (r *VendorRepository) ListActive(ctx context.Context, tenantID, vendorType string) ([]entity.Vendor, error) {
	var items []entity.Vendor
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND is_active = ?", tenantID, true)
	if vendorType != "" {
		query = query.Where("vendor_type = ?", vendorType)
	}
	err := query.Order("vendor_code ASC, id ASC").Find(&items).Error
	return items, err
}

// ListTenants 有启用供应商的全部租户
func (r *VendorRepository) ListTenants(ctx context.Context) ([]string, error) {
	var tenants []string
	err := r.db.WithContext(ctx).Model(&entity.Vendor{}).
		Where("is_active = ?", true).
		Distinct("tenant_id").
		Order("tenant_id ASC").
		Pluck("tenant_id", &tenants).Error
	return tenants, err
}

// Create 创建供应商
func (r *VendorRepository) Create(ctx context.Context, vendor *entity.Vendor) error {
	return r.db.WithContext(ctx).Create(vendor).Error
}

// SpendRow 排名快照中的一行
type SpendRow struct {
	VendorID        string
	MissionCritical bool
	VendorTier      *string
	TotalSpend      float64
}

// SpendRanking returns the tenant's active vendors that have spend on issued
// purchase orders since the given instant, in one query. Vendors without such
// orders are not part of the ranking.
func (r *VendorRepository) SpendRanking(ctx context.Context, tenantID string, since time.Time) ([]SpendRow, error) {
	var rows []SpendRow
	err := r.db.WithContext(ctx).
		Table("vp_vendors AS v").
		Select(`v.id AS vendor_id,
			v.mission_critical AS mission_critical,
			v.vendor_tier AS vendor_tier,
			SUM(po.total_amount) AS total_spend`).
		Joins(`JOIN vp_purchase_orders AS po
			ON po.vendor_id = v.id
			AND po.tenant_id = v.tenant_id
			AND po.status NOT IN (?, ?)
			AND po.order_date >= ?`, entity.POStatusDraft, entity.POStatusCancelled, since).
		Where("v.tenant_id = ? AND v.is_active = ?", tenantID, true).
		Group("v.id, v.mission_critical, v.vendor_tier").
		Having("SUM(po.total_amount) > 0").
		Order("v.id ASC").
		Scan(&rows).Error
	return rows, err
}

// UpdateTier 写入供应商当前分级
func (r *VendorRepository) UpdateTier(ctx context.Context, tenantID, id string, tier entity.Tier, at time.Time, overrideReason string) error {
	return r.db.WithContext(ctx).
		Model(&entity.Vendor{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(map[string]interface{}{
			"vendor_tier":          string(tier),
			"tier_classified_at":   at,
			"tier_override_reason": overrideReason,
			"updated_at":           at,
		}).Error
}
