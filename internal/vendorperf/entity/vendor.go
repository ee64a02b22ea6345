package entity

import "time"

// Vendor 供应商
type Vendor struct {
	ID         string `json:"id" gorm:"primaryKey;size:32"`
	TenantID   string `json:"tenant_id" gorm:"size:32;not null;index:idx_vp_vendors_tenant"`
	VendorCode string `json:"vendor_code" gorm:"size:32;not null"`
	Name       string `json:"name" gorm:"size:200;not null"`
	VendorType string `json:"vendor_type" gorm:"size:50"` // PAPER/INK/SUBSTRATE/SERVICE/EQUIPMENT/OTHER

	IsActive        bool `json:"is_active" gorm:"not null"`
	MissionCritical bool `json:"mission_critical" gorm:"not null"`

	// 分级
	VendorTier         *string    `json:"vendor_tier" gorm:"size:20"`
	TierClassifiedAt   *time.Time `json:"tier_classified_at"`
	TierOverrideReason string     `json:"tier_override_reason" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Vendor) TableName() string {
	return "vp_vendors"
}

// 供应商类型
const (
	VendorTypePaper     = "PAPER"
	VendorTypeInk       = "INK"
	VendorTypeSubstrate = "SUBSTRATE"
	VendorTypeService   = "SERVICE"
	VendorTypeEquipment = "EQUIPMENT"
	VendorTypeOther     = "OTHER"
)

// PurchaseOrder 采购订单（只读数据源）
type PurchaseOrder struct {
	ID       string `json:"id" gorm:"primaryKey;size:32"`
	TenantID string `json:"tenant_id" gorm:"size:32;not null;index:idx_vp_po_tenant_vendor"`
	VendorID string `json:"vendor_id" gorm:"size:32;not null;index:idx_vp_po_tenant_vendor"`
	PONumber string `json:"po_number" gorm:"size:50;not null"`
	Status   string `json:"status" gorm:"size:20;not null"`

	OrderDate            time.Time  `json:"order_date" gorm:"not null;index"`
	PromisedDeliveryDate *time.Time `json:"promised_delivery_date"`
	ActualDeliveryDate   *time.Time `json:"actual_delivery_date"`

	TotalAmount float64 `json:"total_amount" gorm:"type:decimal(18,4);default:0"`

	// 来料检验
	QualityStatus     string  `json:"quality_status" gorm:"size:20"` // ACCEPTED/REJECTED
	ReceivedQuantity  float64 `json:"received_quantity" gorm:"type:decimal(18,4);default:0"`
	DefectiveQuantity float64 `json:"defective_quantity" gorm:"type:decimal(18,4);default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PurchaseOrder) TableName() string {
	return "vp_purchase_orders"
}

// PO状态
const (
	POStatusDraft        = "DRAFT"
	POStatusIssued       = "ISSUED"
	POStatusAcknowledged = "ACKNOWLEDGED"
	POStatusReceived     = "RECEIVED"
	POStatusClosed       = "CLOSED"
	POStatusCancelled    = "CANCELLED"
)

// 检验结果
const (
	QualityAccepted = "ACCEPTED"
	QualityRejected = "REJECTED"
)

// TierChangeLog 分级变更日志（只追加）
type TierChangeLog struct {
	ID             string    `json:"id" gorm:"primaryKey;size:32"`
	TenantID       string    `json:"tenant_id" gorm:"size:32;not null;index:idx_vp_tier_log_vendor"`
	VendorID       string    `json:"vendor_id" gorm:"size:32;not null;index:idx_vp_tier_log_vendor"`
	FromTier       *string   `json:"from_tier" gorm:"size:20"`
	ToTier         string    `json:"to_tier" gorm:"size:20;not null"`
	Source         string    `json:"source" gorm:"size:20;not null"` // AUTO/MANUAL
	PercentileRank *float64  `json:"percentile_rank" gorm:"type:decimal(7,4)"`
	TotalSpend     *float64  `json:"total_spend" gorm:"type:decimal(18,4)"`
	Reason         string    `json:"reason" gorm:"type:text"`
	ActorID        string    `json:"actor_id" gorm:"size:32"`
	CreatedAt      time.Time `json:"created_at"`
}

func (TierChangeLog) TableName() string {
	return "vp_tier_change_logs"
}

// 分级来源
const (
	TierSourceAuto   = "AUTO"
	TierSourceManual = "MANUAL"
)
