package entity

import "time"

// ScorecardConfig 评分卡配置
// 被计算引用后不可修改，新版本通过生效区间区分
type ScorecardConfig struct {
	ID         string  `json:"id" gorm:"primaryKey;size:32"`
	TenantID   string  `json:"tenant_id" gorm:"size:32;not null;index:idx_vp_config_scope"`
	VendorType *string `json:"vendor_type" gorm:"size:50;index:idx_vp_config_scope"`
	VendorTier *string `json:"vendor_tier" gorm:"size:20;index:idx_vp_config_scope"`
	Name       string  `json:"name" gorm:"size:100;not null"`

	// 权重（0-100，合计100）
	QualityWeight    float64 `json:"quality_weight" gorm:"type:decimal(5,2);not null"`
	DeliveryWeight   float64 `json:"delivery_weight" gorm:"type:decimal(5,2);not null"`
	CostWeight       float64 `json:"cost_weight" gorm:"type:decimal(5,2);not null"`
	ServiceWeight    float64 `json:"service_weight" gorm:"type:decimal(5,2);not null"`
	InnovationWeight float64 `json:"innovation_weight" gorm:"type:decimal(5,2);not null"`
	ESGWeight        float64 `json:"esg_weight" gorm:"type:decimal(5,2);not null"`

	// 阈值 acceptable < good < excellent
	AcceptableThreshold float64 `json:"acceptable_threshold" gorm:"type:decimal(5,2);not null"`
	GoodThreshold       float64 `json:"good_threshold" gorm:"type:decimal(5,2);not null"`
	ExcellentThreshold  float64 `json:"excellent_threshold" gorm:"type:decimal(5,2);not null"`

	ReviewFrequencyMonths int `json:"review_frequency_months" gorm:"not null"`

	IsActive      bool       `json:"is_active" gorm:"not null"`
	EffectiveFrom time.Time  `json:"effective_from" gorm:"not null"`
	EffectiveTo   *time.Time `json:"effective_to"` // 不含

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ScorecardConfig) TableName() string {
	return "vp_scorecard_configs"
}

// Overlaps 判断两个生效区间是否重叠
func (c *ScorecardConfig) Overlaps(from time.Time, to *time.Time) bool {
	if c.EffectiveTo != nil && !from.Before(*c.EffectiveTo) {
		return false
	}
	if to != nil && !c.EffectiveFrom.Before(*to) {
		return false
	}
	return true
}
