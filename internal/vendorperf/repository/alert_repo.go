package repository

import (
	"context"
	"time"

	"github.com/agogsaas/vendorperf/internal/vendorperf/entity"
	"gorm.io/gorm"
)

// AlertRepository 绩效告警仓库
type AlertRepository struct {
	db *gorm.DB
}

func NewAlertRepository(db *gorm.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// LockDedupKey serializes dedup checks on one key until the surrounding
// transaction ends. Only PostgreSQL has transaction-scoped advisory locks;
// on other dialects this is a no-op.
func (r *AlertRepository) LockDedupKey(ctx context.Context, key string) error {
	if r.db.Dialector.Name() != "postgres" {
		return nil
	}
	return r.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", key).Error
}

// FindOpenDuplicate 查找窗口期内相同 (vendor, type, category) 的OPEN告警
func (r *AlertRepository) FindOpenDuplicate(ctx context.Context, tenantID, vendorID, alertType string, category *string, since time.Time) (*entity.PerformanceAlert, error) {
	var alert entity.PerformanceAlert
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND vendor_id = ? AND alert_type = ?", tenantID, vendorID, alertType).
		Where("status = ? AND created_at >= ?", entity.AlertStatusOpen, since)
	query = scoped(query, "metric_category", category)
	err := query.Order("created_at DESC").First(&alert).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &alert, nil
}

// Create 创建告警
func (r *AlertRepository) Create(ctx context.Context, alert *entity.PerformanceAlert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}

// FindByID 根据ID查找告警（含备注）
func (r *AlertRepository) FindByID(ctx context.Context, tenantID, id string) (*entity.PerformanceAlert, error) {
	var alert entity.PerformanceAlert
	err := r.db.WithContext(ctx).
		Preload("Annotations", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&alert).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &alert, nil
}

// Transition applies fields only while the alert is still in one of the
// given statuses. It reports whether a row was changed.
func (r *AlertRepository) Transition(ctx context.Context, id string, from []string, fields map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.PerformanceAlert{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AppendAnnotation 追加备注
func (r *AlertRepository) AppendAnnotation(ctx context.Context, a *entity.AlertAnnotation) error {
	return r.db.WithContext(ctx).Create(a).Error
}

// AlertFilter 告警列表过滤条件
type AlertFilter struct {
	TenantID  string
	VendorID  string
	Status    string
	Severity  string
	AlertType string
}

// FindAll 查询告警列表
func (r *AlertRepository) FindAll(ctx context.Context, filter AlertFilter, page, pageSize int) ([]entity.PerformanceAlert, int64, error) {
	var items []entity.PerformanceAlert
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.PerformanceAlert{}).
		Where("tenant_id = ?", filter.TenantID)

	if filter.VendorID != "" {
		query = query.Where("vendor_id = ?", filter.VendorID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if filter.AlertType != "" {
		query = query.Where("alert_type = ?", filter.AlertType)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("created_at DESC, id ASC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// AlertCounts 告警统计
type AlertCounts struct {
	Open               int64   `json:"open"`
	Acknowledged       int64   `json:"acknowledged"`
	Critical           int64   `json:"critical"`
	Warning            int64   `json:"warning"`
	Info               int64   `json:"info"`
	ResolvedLast30Days int64   `json:"resolved_last_30_days"`
	AvgResolutionHours float64 `json:"avg_resolution_hours"`
}

// Stats counts unresolved alerts by status and severity, plus resolutions
// since the given instant and their mean time to resolve.
func (r *AlertRepository) Stats(ctx context.Context, tenantID string, resolvedSince time.Time) (*AlertCounts, error) {
	var rows []struct {
		Status   string
		Severity string
		Count    int64
	}
	err := r.db.WithContext(ctx).
		Model(&entity.PerformanceAlert{}).
		Select("status, severity, COUNT(*) AS count").
		Where("tenant_id = ? AND status IN (?, ?)", tenantID, entity.AlertStatusOpen, entity.AlertStatusAcknowledged).
		Group("status, severity").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := &AlertCounts{}
	for _, row := range rows {
		switch row.Status {
		case entity.AlertStatusOpen:
			counts.Open += row.Count
		case entity.AlertStatusAcknowledged:
			counts.Acknowledged += row.Count
		}
		switch row.Severity {
		case entity.SeverityCritical:
			counts.Critical += row.Count
		case entity.SeverityWarning:
			counts.Warning += row.Count
		case entity.SeverityInfo:
			counts.Info += row.Count
		}
	}

	var resolved []entity.PerformanceAlert
	err = r.db.WithContext(ctx).
		Select("id, created_at, resolved_at").
		Where("tenant_id = ? AND status = ? AND resolved_at >= ?", tenantID, entity.AlertStatusResolved, resolvedSince).
		Find(&resolved).Error
	if err != nil {
		return nil, err
	}
	counts.ResolvedLast30Days = int64(len(resolved))
	if len(resolved) > 0 {
		var hours float64
		for _, a := range resolved {
			hours += a.ResolvedAt.Sub(a.CreatedAt).Hours()
		}
		counts.AvgResolutionHours = hours / float64(len(resolved))
	}
	return counts, nil
}
