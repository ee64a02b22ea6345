package entity

import "time"

// VendorPerformanceRecord 供应商月度绩效
// 以 (tenant, vendor, year, month) 唯一，重算为幂等 upsert
type VendorPerformanceRecord struct {
	ID              string `json:"id" gorm:"primaryKey;size:32"`
	TenantID        string `json:"tenant_id" gorm:"size:32;not null;uniqueIndex:uq_vp_perf_period,priority:1"`
	VendorID        string `json:"vendor_id" gorm:"size:32;not null;uniqueIndex:uq_vp_perf_period,priority:2"`
	EvaluationYear  int    `json:"evaluation_year" gorm:"not null;uniqueIndex:uq_vp_perf_period,priority:3"`
	EvaluationMonth int    `json:"evaluation_month" gorm:"not null;uniqueIndex:uq_vp_perf_period,priority:4"`

	// 原始统计
	TotalPOsIssued     int     `json:"total_pos_issued" gorm:"column:total_pos_issued;default:0"`
	TotalPOsValue      float64 `json:"total_pos_value" gorm:"column:total_pos_value;type:decimal(18,4);default:0"`
	TotalDeliveries    int     `json:"total_deliveries" gorm:"default:0"`
	OnTimeDeliveries   int     `json:"on_time_deliveries" gorm:"default:0"`
	QualityAcceptances int     `json:"quality_acceptances" gorm:"default:0"`
	QualityRejections  int     `json:"quality_rejections" gorm:"default:0"`
	ReceivedQuantity   float64 `json:"received_quantity" gorm:"type:decimal(18,4);default:0"`
	DefectiveQuantity  float64 `json:"defective_quantity" gorm:"type:decimal(18,4);default:0"`

	// 派生指标（无数据时为空）
	OnTimePercentage  *float64 `json:"on_time_percentage" gorm:"type:decimal(7,4)"`
	QualityPercentage *float64 `json:"quality_percentage" gorm:"type:decimal(7,4)"`
	DefectRatePPM     *float64 `json:"defect_rate_ppm" gorm:"type:decimal(12,4)"`

	// 人工评分（0-5）
	PriceCompetitivenessScore *float64 `json:"price_competitiveness_score" gorm:"type:decimal(3,2)"`
	ResponsivenessScore       *float64 `json:"responsiveness_score" gorm:"type:decimal(3,2)"`
	InnovationScore           *float64 `json:"innovation_score" gorm:"type:decimal(3,2)"`
	CommunicationScore        *float64 `json:"communication_score" gorm:"type:decimal(3,2)"`
	IssueResolutionRate       *float64 `json:"issue_resolution_rate" gorm:"type:decimal(7,4)"` // %
	CostIndex                 *float64 `json:"cost_index" gorm:"type:decimal(9,4)"`            // TCO指数，100为基准

	// 综合
	OverallRating     *float64 `json:"overall_rating" gorm:"type:decimal(3,2)"` // 0-5
	WeightedScore     *float64 `json:"weighted_score" gorm:"type:decimal(7,4)"` // 0-100
	ScorecardConfigID *string  `json:"scorecard_config_id" gorm:"size:32"`

	// 分级
	VendorTier             *string    `json:"vendor_tier" gorm:"size:20"`
	TierClassificationDate *time.Time `json:"tier_classification_date"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (VendorPerformanceRecord) TableName() string {
	return "vp_vendor_performance"
}

// ESGMetric 供应商ESG指标
type ESGMetric struct {
	ID              string `json:"id" gorm:"primaryKey;size:32"`
	TenantID        string `json:"tenant_id" gorm:"size:32;not null;index:idx_vp_esg_vendor"`
	VendorID        string `json:"vendor_id" gorm:"size:32;not null;index:idx_vp_esg_vendor"`
	EvaluationYear  int    `json:"evaluation_year" gorm:"not null"`
	EvaluationMonth int    `json:"evaluation_month" gorm:"not null"`

	ESGOverallScore *float64 `json:"esg_overall_score" gorm:"type:decimal(3,2)"` // 0-5
	ESGRiskLevel    string   `json:"esg_risk_level" gorm:"size:20;default:UNKNOWN"`

	LastAuditDate    *time.Time `json:"last_audit_date"`
	NextAuditDueDate *time.Time `json:"next_audit_due_date" gorm:"index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ESGMetric) TableName() string {
	return "vp_esg_metrics"
}

// ESG风险等级
const (
	ESGRiskLow      = "LOW"
	ESGRiskMedium   = "MEDIUM"
	ESGRiskHigh     = "HIGH"
	ESGRiskCritical = "CRITICAL"
	ESGRiskUnknown  = "UNKNOWN"
)
