package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/agogsaas/vendorperf/internal/testutil"
	"github.com/agogsaas/vendorperf/internal/vendorperf/entity"
	"github.com/agogsaas/vendorperf/internal/vendorperf/notify"
	"github.com/agogsaas/vendorperf/internal/vendorperf/repository"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const tenant = testutil.TenantID

var testNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

// recordingPublisher keeps every published event; err makes Publish fail.
type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.AlertEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev notify.AlertEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type fixture struct {
	db        *gorm.DB
	repos     *repository.Repositories
	alerts    *AlertService
	tiers     *TierService
	configs   *ConfigService
	perf      *PerformanceService
	publisher *recordingPublisher
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)

	f := &fixture{
		db:        db,
		repos:     repos,
		publisher: &recordingPublisher{},
		now:       testNow,
	}
	clock := func() time.Time { return f.now }

	f.alerts = NewAlertService(repos, nil)
	f.alerts.SetPublisher(f.publisher)
	f.alerts.SetClock(clock)

	f.tiers = NewTierService(repos, f.alerts, nil)
	f.tiers.SetClock(clock)

	f.configs = NewConfigService(repos, nil)
	f.configs.SetClock(clock)

	f.perf = NewPerformanceService(repos, f.configs, f.alerts, nil)
	f.perf.SetClock(clock)
	return f
}

func (f *fixture) alertsFor(t *testing.T, vendorID string) []entity.PerformanceAlert {
	t.Helper()
	var items []entity.PerformanceAlert
	require.NoError(t, f.db.Where("vendor_id = ?", vendorID).Order("created_at ASC, id ASC").Find(&items).Error)
	return items
}

func (f *fixture) vendor(t *testing.T, id string) *entity.Vendor {
	t.Helper()
	v, err := f.repos.Vendor.FindByID(context.Background(), tenant, id)
	require.NoError(t, err)
	return v
}

func tierPtr(t entity.Tier) *entity.Tier { return &t }

func fp(v float64) *float64 { return &v }

func sp(v string) *string { return &v }

func kind(t *testing.T, err error, want error) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, errors.Is(err, want), "got %v", err)
}
