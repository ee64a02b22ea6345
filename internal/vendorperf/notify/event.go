// Package notify delivers alert events to downstream consumers on a best
// effort basis.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/agogsaas/vendorperf/internal/vendorperf/entity"
)

// AlertEvent is the payload emitted for every newly created alert.
type AlertEvent struct {
	AlertID        string    `json:"alert_id"`
	TenantID       string    `json:"tenant_id"`
	VendorID       string    `json:"vendor_id"`
	AlertType      string    `json:"alert_type"`
	Severity       string    `json:"severity"`
	MetricCategory *string   `json:"metric_category,omitempty"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"created_at"`
}

// EventFromAlert builds the event of a stored alert.
func EventFromAlert(a *entity.PerformanceAlert) AlertEvent {
	return AlertEvent{
		AlertID:        a.ID,
		TenantID:       a.TenantID,
		VendorID:       a.VendorID,
		AlertType:      a.AlertType,
		Severity:       a.Severity,
		MetricCategory: a.MetricCategory,
		Message:        a.Message,
		CreatedAt:      a.CreatedAt,
	}
}

// Publisher is a notification sink.
type Publisher interface {
	Publish(ctx context.Context, ev AlertEvent) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, AlertEvent) error { return nil }

// Multi fans an event out to several sinks. Every sink is tried; the errors
// of the failing ones are joined.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev AlertEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
