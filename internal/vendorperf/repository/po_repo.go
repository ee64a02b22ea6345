package repository

import (
	"context"
	"time"

	"github.com/agogsaas/vendorperf/internal/vendorperf/entity"
	"gorm.io/gorm"
)

// PurchaseOrderRepository 采购订单仓库（绩效只读取）
type PurchaseOrderRepository struct {
	db *gorm.DB
}

func NewPurchaseOrderRepository(db *gorm.DB) *PurchaseOrderRepository {
	return &PurchaseOrderRepository{db: db}
}

// Create 创建采购订单
func (r *PurchaseOrderRepository) Create(ctx context.Context, po *entity.PurchaseOrder) error {
	return r.db.WithContext(ctx).Create(po).Error
}

// POAggregate 单个供应商在一个区间内的订单统计
type POAggregate struct {
	TotalPOs           int `gorm:"column:total_pos"`
	TotalValue         float64
	TotalDeliveries    int
	OnTimeDeliveries   int
	QualityAcceptances int
	QualityRejections  int
	ReceivedQuantity   float64
	DefectiveQuantity  float64
}

// AggregateForPeriod counts a vendor's non-draft, non-cancelled orders whose
// order date falls in [from, to).
func (r *PurchaseOrderRepository) AggregateForPeriod(ctx context.Context, tenantID, vendorID string, from, to time.Time) (*POAggregate, error) {
	var agg POAggregate
	err := r.db.WithContext(ctx).
		Model(&entity.PurchaseOrder{}).
		Select(`COUNT(*) AS total_pos,
			COALESCE(SUM(total_amount), 0) AS total_value,
			COALESCE(SUM(CASE WHEN actual_delivery_date IS NOT NULL THEN 1 ELSE 0 END), 0) AS total_deliveries,
			COALESCE(SUM(CASE WHEN actual_delivery_date IS NOT NULL AND promised_delivery_date IS NOT NULL
				AND actual_delivery_date <= promised_delivery_date THEN 1 ELSE 0 END), 0) AS on_time_deliveries,
			COALESCE(SUM(CASE WHEN quality_status = ? THEN 1 ELSE 0 END), 0) AS quality_acceptances,
			COALESCE(SUM(CASE WHEN quality_status = ? THEN 1 ELSE 0 END), 0) AS quality_rejections,
			COALESCE(SUM(received_quantity), 0) AS received_quantity,
			COALESCE(SUM(defective_quantity), 0) AS defective_quantity`,
			entity.QualityAccepted, entity.QualityRejected).
		Where("tenant_id = ? AND vendor_id = ?", tenantID, vendorID).
		Where("status NOT IN (?, ?)", entity.POStatusDraft, entity.POStatusCancelled).
		Where("order_date >= ? AND order_date < ?", from, to).
		Scan(&agg).Error
	if err != nil {
		return nil, err
	}
	return &agg, nil
}
