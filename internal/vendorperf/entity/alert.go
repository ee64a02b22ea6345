package entity

import "time"

// PerformanceAlert 供应商绩效告警
type PerformanceAlert struct {
	ID       string `json:"id" gorm:"primaryKey;size:32"`
	TenantID string `json:"tenant_id" gorm:"size:32;not null;index:idx_vp_alert_dedup,priority:1"`
	VendorID string `json:"vendor_id" gorm:"size:32;not null;index:idx_vp_alert_dedup,priority:2"`

	AlertType      string   `json:"alert_type" gorm:"size:30;not null;index:idx_vp_alert_dedup,priority:3"`
	Severity       string   `json:"severity" gorm:"size:20;not null"`
	MetricCategory *string  `json:"metric_category" gorm:"size:50;index:idx_vp_alert_dedup,priority:4"`
	CurrentValue   *float64 `json:"current_value" gorm:"type:decimal(18,4)"`
	ThresholdValue *float64 `json:"threshold_value" gorm:"type:decimal(18,4)"`
	Message        string   `json:"message" gorm:"type:text;not null"`

	Status string `json:"status" gorm:"size:20;not null;index"`

	// 流转记录
	AcknowledgedAt  *time.Time `json:"acknowledged_at"`
	AcknowledgedBy  *string    `json:"acknowledged_by" gorm:"size:32"`
	ResolvedAt      *time.Time `json:"resolved_at"`
	ResolvedBy      *string    `json:"resolved_by" gorm:"size:32"`
	DismissedAt     *time.Time `json:"dismissed_at"`
	DismissedBy     *string    `json:"dismissed_by" gorm:"size:32"`
	DismissalReason string     `json:"dismissal_reason" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`

	// 关联
	Annotations []AlertAnnotation `json:"annotations,omitempty" gorm:"foreignKey:AlertID"`
}

func (PerformanceAlert) TableName() string {
	return "vp_performance_alerts"
}

// 告警类型
const (
	AlertTypeThresholdBreach = "THRESHOLD_BREACH"
	AlertTypeTierChange      = "TIER_CHANGE"
	AlertTypeESGRisk         = "ESG_RISK"
	AlertTypeReviewDue       = "REVIEW_DUE"
)

// 告警级别
const (
	SeverityInfo     = "INFO"
	SeverityWarning  = "WARNING"
	SeverityCritical = "CRITICAL"
)

// 告警状态
const (
	AlertStatusOpen         = "OPEN"
	AlertStatusAcknowledged = "ACKNOWLEDGED"
	AlertStatusResolved     = "RESOLVED"
	AlertStatusDismissed    = "DISMISSED"
)

// 指标类别
const (
	MetricOverallScore = "OVERALL_SCORE"
	MetricQuality      = "QUALITY"
	MetricDelivery     = "DELIVERY"
	MetricDefectRate   = "DEFECT_RATE"
	MetricESGRisk      = "ESG_RISK"
	MetricAudit        = "ESG_AUDIT"
)

// IsTerminal RESOLVED/DISMISSED 为终态
func (a *PerformanceAlert) IsTerminal() bool {
	return a.Status == AlertStatusResolved || a.Status == AlertStatusDismissed
}

// AlertAnnotation 告警备注（只追加，按ID排序）
type AlertAnnotation struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	AlertID   string    `json:"alert_id" gorm:"size:32;not null;index"`
	Kind      string    `json:"kind" gorm:"size:20;not null"`
	ActorID   string    `json:"actor_id" gorm:"size:32"`
	Text      string    `json:"text" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}

func (AlertAnnotation) TableName() string {
	return "vp_alert_annotations"
}

// 备注类型
const (
	AnnotationAcknowledge = "ACKNOWLEDGE"
	AnnotationResolve     = "RESOLVE"
	AnnotationDismiss     = "DISMISS"
)

// AllModels 需要迁移的全部表
func AllModels() []interface{} {
	return []interface{}{
		&Vendor{},
		&PurchaseOrder{},
		&TierChangeLog{},
		&VendorPerformanceRecord{},
		&ESGMetric{},
		&ScorecardConfig{},
		&PerformanceAlert{},
		&AlertAnnotation{},
	}
}
