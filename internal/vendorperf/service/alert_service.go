package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agogsaas/vendorperf/internal/metrics"
	"github.com/agogsaas/vendorperf/internal/vendorperf/engine"
	"github.com/agogsaas/vendorperf/internal/vendorperf/entity"
	"github.com/agogsaas/vendorperf/internal/vendorperf/notify"
	"github.com/agogsaas/vendorperf/internal/vendorperf/repository"
	"github.com/agogsaas/vendorperf/internal/vendorperf/tenantlock"
	"go.uber.org/zap"
)

const (
	// DefaultDedupWindow 同一告警去重窗口
	DefaultDedupWindow = 7 * 24 * time.Hour
	// MinResolutionNotes CRITICAL告警关闭说明的最少字符数
	MinResolutionNotes = 10
)

// AlertService 告警服务，告警的唯一写入方
type AlertService struct {
	repos       *repository.Repositories
	publisher   notify.Publisher
	locker      tenantlock.Locker
	logger      *zap.Logger
	now         func() time.Time
	dedupWindow time.Duration
	lookahead   time.Duration
}

func NewAlertService(repos *repository.Repositories, logger *zap.Logger) *AlertService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertService{
		repos:       repos,
		publisher:   notify.Nop{},
		locker:      tenantlock.Nop{},
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		dedupWindow: DefaultDedupWindow,
		lookahead:   engine.AuditLookahead,
	}
}

func (s *AlertService) SetPublisher(p notify.Publisher) {
	s.publisher = p
}

func (s *AlertService) SetLocker(l tenantlock.Locker) {
	s.locker = l
}

func (s *AlertService) SetClock(now func() time.Time) {
	s.now = now
}

// SetWindows overrides the dedup window and the audit lookahead; zero keeps
// the current value.
func (s *AlertService) SetWindows(dedup, auditLookahead time.Duration) {
	if dedup > 0 {
		s.dedupWindow = dedup
	}
	if auditLookahead > 0 {
		s.lookahead = auditLookahead
	}
}

// GenerateResult 告警生成结果
type GenerateResult struct {
	AlertID string `json:"alert_id"`
	Created bool   `json:"created"`
}

// GenerateAlert stores an alert unless an OPEN alert for the same vendor,
// type and metric category was raised inside the dedup window, in which case
// the existing id is returned and nothing is written. Newly created alerts are
// published after commit.
func (s *AlertService) GenerateAlert(ctx context.Context, tenantID, vendorID string, c engine.AlertCandidate) (*GenerateResult, error) {
	const op = "generate alert"
	if err := validateCandidate(op, c); err != nil {
		return nil, err
	}

	var alert *entity.PerformanceAlert
	var created bool
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if _, err := tx.Vendor.FindByID(ctx, tenantID, vendorID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return notFoundf(op, "vendor %s not found", vendorID)
			}
			return err
		}
		var err error
		alert, created, err = s.generateTx(ctx, tx, tenantID, vendorID, c)
		return err
	})
	if err != nil {
		return nil, storeErr(op, err)
	}

	if created {
		s.publish(ctx, alert)
	}
	return &GenerateResult{AlertID: alert.ID, Created: created}, nil
}

// generateTx is the dedup-or-insert step; callers own the transaction and
// publish what it returns once that transaction has committed.
func (s *AlertService) generateTx(ctx context.Context, tx *repository.Repositories, tenantID, vendorID string, c engine.AlertCandidate) (*entity.PerformanceAlert, bool, error) {
	category := ""
	if c.MetricCategory != nil {
		category = *c.MetricCategory
	}
	key := strings.Join([]string{tenantID, vendorID, c.AlertType, category}, "|")
	if err := tx.Alert.LockDedupKey(ctx, key); err != nil {
		return nil, false, fmt.Errorf("lock dedup key: %w", err)
	}

	now := s.now()
	existing, err := tx.Alert.FindOpenDuplicate(ctx, tenantID, vendorID, c.AlertType, c.MetricCategory, now.Add(-s.dedupWindow))
	if err == nil {
		metrics.AlertsDeduplicated.WithLabelValues(c.AlertType).Inc()
		s.logger.Debug("alert deduplicated",
			zap.String("alert_id", existing.ID),
			zap.String("vendor_id", vendorID),
			zap.String("alert_type", c.AlertType),
			zap.String("metric_category", category))
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	alert := &entity.PerformanceAlert{
		ID:             newID(),
		TenantID:       tenantID,
		VendorID:       vendorID,
		AlertType:      c.AlertType,
		Severity:       c.Severity,
		MetricCategory: c.MetricCategory,
		CurrentValue:   c.CurrentValue,
		ThresholdValue: c.ThresholdValue,
		Message:        c.Message,
		Status:         entity.AlertStatusOpen,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := tx.Alert.Create(ctx, alert); err != nil {
		return nil, false, err
	}
	return alert, true, nil
}

// publish is best effort: a failing sink is logged and counted, never
// surfaced to the caller.
func (s *AlertService) publish(ctx context.Context, alerts ...*entity.PerformanceAlert) {
	for _, a := range alerts {
		metrics.AlertsGenerated.WithLabelValues(a.AlertType, a.Severity).Inc()
		if err := s.publisher.Publish(ctx, notify.EventFromAlert(a)); err != nil {
			metrics.NotificationFailures.Inc()
			s.logger.Warn("publish alert event failed",
				zap.String("alert_id", a.ID),
				zap.String("tenant_id", a.TenantID),
				zap.Error(err))
		}
	}
}

func validateCandidate(op string, c engine.AlertCandidate) error {
	switch c.AlertType {
	case entity.AlertTypeThresholdBreach, entity.AlertTypeTierChange, entity.AlertTypeESGRisk, entity.AlertTypeReviewDue:
	default:
		return validationf(op, "invalid alert type %q", c.AlertType)
	}
	switch c.Severity {
	case entity.SeverityInfo, entity.SeverityWarning, entity.SeverityCritical:
	default:
		return validationf(op, "invalid severity %q", c.Severity)
	}
	if strings.TrimSpace(c.Message) == "" {
		return validationf(op, "message is required")
	}
	return nil
}

// AcknowledgeAlert moves an OPEN alert to ACKNOWLEDGED.
func (s *AlertService) AcknowledgeAlert(ctx context.Context, tenantID, alertID, actorID, notes string) (*entity.PerformanceAlert, error) {
	const op = "acknowledge alert"
	return s.transition(ctx, op, tenantID, alertID, func(a *entity.PerformanceAlert, now time.Time) (*alertTransition, error) {
		if a.Status != entity.AlertStatusOpen {
			return nil, conflictf(op, "alert %s is %s, only OPEN alerts can be acknowledged", a.ID, a.Status)
		}
		return &alertTransition{
			from: []string{entity.AlertStatusOpen},
			fields: map[string]interface{}{
				"status":          entity.AlertStatusAcknowledged,
				"acknowledged_at": now,
				"acknowledged_by": actorID,
				"updated_at":      now,
			},
			annotation: entity.AnnotationAcknowledge,
			actor:      actorID,
			text:       notes,
		}, nil
	})
}

// ResolveAlert closes an OPEN or ACKNOWLEDGED alert. CRITICAL alerts need
// resolution notes of at least MinResolutionNotes characters.
func (s *AlertService) ResolveAlert(ctx context.Context, tenantID, alertID, actorID, notes string) (*entity.PerformanceAlert, error) {
	const op = "resolve alert"
	return s.transition(ctx, op, tenantID, alertID, func(a *entity.PerformanceAlert, now time.Time) (*alertTransition, error) {
		if a.IsTerminal() {
			return nil, conflictf(op, "alert %s is already %s", a.ID, a.Status)
		}
		notes = strings.TrimSpace(notes)
		if a.Severity == entity.SeverityCritical && len([]rune(notes)) < MinResolutionNotes {
			return nil, validationf(op, "resolution notes for CRITICAL alerts must be at least %d characters", MinResolutionNotes)
		}
		return &alertTransition{
			from: []string{entity.AlertStatusOpen, entity.AlertStatusAcknowledged},
			fields: map[string]interface{}{
				"status":      entity.AlertStatusResolved,
				"resolved_at": now,
				"resolved_by": actorID,
				"updated_at":  now,
			},
			annotation: entity.AnnotationResolve,
			actor:      actorID,
			text:       notes,
		}, nil
	})
}

// DismissAlert closes an OPEN or ACKNOWLEDGED alert as not actionable.
func (s *AlertService) DismissAlert(ctx context.Context, tenantID, alertID, actorID, reason string) (*entity.PerformanceAlert, error) {
	const op = "dismiss alert"
	return s.transition(ctx, op, tenantID, alertID, func(a *entity.PerformanceAlert, now time.Time) (*alertTransition, error) {
		if a.IsTerminal() {
			return nil, conflictf(op, "alert %s is already %s", a.ID, a.Status)
		}
		reason = strings.TrimSpace(reason)
		return &alertTransition{
			from: []string{entity.AlertStatusOpen, entity.AlertStatusAcknowledged},
			fields: map[string]interface{}{
				"status":           entity.AlertStatusDismissed,
				"dismissed_at":     now,
				"dismissed_by":     actorID,
				"dismissal_reason": reason,
				"updated_at":       now,
			},
			annotation: entity.AnnotationDismiss,
			actor:      actorID,
			text:       reason,
		}, nil
	})
}

type alertTransition struct {
	from       []string
	fields     map[string]interface{}
	annotation string
	actor      string
	text       string
}

func (s *AlertService) transition(ctx context.Context, op, tenantID, alertID string, decide func(*entity.PerformanceAlert, time.Time) (*alertTransition, error)) (*entity.PerformanceAlert, error) {
	var target string
	var updated *entity.PerformanceAlert
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		alert, err := tx.Alert.FindByID(ctx, tenantID, alertID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return notFoundf(op, "alert %s not found", alertID)
			}
			return err
		}

		now := s.now()
		t, err := decide(alert, now)
		if err != nil {
			return err
		}
		target = t.fields["status"].(string)

		ok, err := tx.Alert.Transition(ctx, alert.ID, t.from, t.fields)
		if err != nil {
			return err
		}
		if !ok {
			return conflictf(op, "alert %s changed concurrently", alert.ID)
		}

		if t.text != "" {
			if err := tx.Alert.AppendAnnotation(ctx, &entity.AlertAnnotation{
				AlertID:   alert.ID,
				Kind:      t.annotation,
				ActorID:   t.actor,
				Text:      t.text,
				CreatedAt: now,
			}); err != nil {
				return err
			}
		}

		// reload before commit so the caller sees exactly what was written
		updated, err = tx.Alert.FindByID(ctx, tenantID, alert.ID)
		return err
	})
	if err != nil {
		return nil, storeErr(op, err)
	}

	metrics.AlertTransitions.WithLabelValues(target).Inc()
	s.logger.Info("alert transitioned",
		zap.String("alert_id", alertID),
		zap.String("tenant_id", tenantID),
		zap.String("status", target))
	return updated, nil
}

// GetAlert 获取告警详情（含备注）
func (s *AlertService) GetAlert(ctx context.Context, tenantID, alertID string) (*entity.PerformanceAlert, error) {
	alert, err := s.repos.Alert.FindByID(ctx, tenantID, alertID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundf("get alert", "alert %s not found", alertID)
		}
		return nil, storeErr("get alert", err)
	}
	return alert, nil
}

// ListAlerts 告警列表
func (s *AlertService) ListAlerts(ctx context.Context, filter repository.AlertFilter, page, pageSize int) ([]entity.PerformanceAlert, int64, error) {
	const op = "list alerts"
	switch filter.Status {
	case "", entity.AlertStatusOpen, entity.AlertStatusAcknowledged, entity.AlertStatusResolved, entity.AlertStatusDismissed:
	default:
		return nil, 0, validationf(op, "invalid status %q", filter.Status)
	}
	switch filter.Severity {
	case "", entity.SeverityInfo, entity.SeverityWarning, entity.SeverityCritical:
	default:
		return nil, 0, validationf(op, "invalid severity %q", filter.Severity)
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	items, total, err := s.repos.Alert.FindAll(ctx, filter, page, pageSize)
	if err != nil {
		return nil, 0, storeErr(op, err)
	}
	return items, total, nil
}

// AlertStats 告警统计（近30天关闭数与平均处理时长）
func (s *AlertService) AlertStats(ctx context.Context, tenantID string) (*repository.AlertCounts, error) {
	counts, err := s.repos.Alert.Stats(ctx, tenantID, s.now().AddDate(0, 0, -30))
	if err != nil {
		return nil, storeErr("alert stats", err)
	}
	return counts, nil
}

// CheckESGAuditDueDates raises one REVIEW_DUE alert per vendor whose latest
// ESG audit is overdue or due within the lookahead. The count is the number
// of vendors evaluated, including those that matched an existing open alert.
func (s *AlertService) CheckESGAuditDueDates(ctx context.Context, tenantID string) (int, error) {
	const op = "check esg audit due dates"

	release, err := acquireTenantLock(ctx, s.locker, s.logger, tenantID, "audit-sweep")
	if err != nil {
		return 0, storeErr(op, err)
	}
	defer release()

	now := s.now()
	due, err := s.repos.ESG.FindAuditDue(ctx, tenantID, now.Add(s.lookahead))
	if err != nil {
		return 0, storeErr(op, err)
	}

	var count int
	var errs []error
	for _, m := range due {
		c := engine.AuditDueCandidate(*m.NextAuditDueDate, now)
		if _, err := s.GenerateAlert(ctx, tenantID, m.VendorID, c); err != nil {
			s.logger.Error("audit due alert failed",
				zap.String("tenant_id", tenantID),
				zap.String("vendor_id", m.VendorID),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
		count++
	}

	s.logger.Info("esg audit sweep finished",
		zap.String("tenant_id", tenantID),
		zap.Int("due", len(due)),
		zap.Int("evaluated", count))
	if len(errs) > 0 {
		return count, errors.Join(errs...)
	}
	return count, nil
}

// acquireTenantLock takes the tenant's job lock. Only a lock held by another
// run stops the job. If the lock backend fails, the job runs unlocked.
func acquireTenantLock(ctx context.Context, l tenantlock.Locker, logger *zap.Logger, tenantID, job string) (func(), error) {
	release, err := l.Acquire(ctx, tenantID, job)
	switch {
	case err == nil:
		return release, nil
	case errors.Is(err, tenantlock.ErrHeld):
		return nil, err
	default:
		logger.Warn("tenant lock unavailable, running without it",
			zap.String("tenant_id", tenantID),
			zap.String("job", job),
			zap.Error(err))
		return func() {}, nil
	}
}
