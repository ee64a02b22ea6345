package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/agogsaas/vendorperf/internal/config"
	"github.com/agogsaas/vendorperf/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Mode: "test"},
		Database: config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"},
		JWT:      config.JWTConfig{Secret: testutil.JWTSecret},
		Notify:   config.NotifyConfig{Enabled: true, ChannelPrefix: "vendorperf:alerts"},
		Alerts:   config.AlertsConfig{DedupWindow: 7 * 24 * time.Hour, AuditLookahead: 30 * 24 * time.Hour},
		Tiers: config.TiersConfig{
			StrategicPromote: 85, StrategicDemote: 83,
			PreferredPromote: 60, PreferredDemote: 58,
		},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *app {
	t.Helper()
	a, err := newApp(cfg, zap.NewNop(), true)
	require.NoError(t, err)
	t.Cleanup(a.close)
	require.NoError(t, a.migrate())
	return a
}

func TestRouter_OperationalEndpoints(t *testing.T) {
	a := newTestApp(t, testConfig())
	r := a.router()

	w := testutil.DoRequest(r, http.MethodGet, "/health/live", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutil.DoRequest(r, http.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"ok"`)

	w = testutil.DoRequest(r, http.MethodGet, "/version", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), Version)

	// one API call so the request counter has a sample
	w = testutil.DoRequest(r, http.MethodGet, "/api/v1/alerts/stats", nil, testutil.DefaultTestToken())
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutil.DoRequest(r, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "vendorperf_http_requests_total")
}

func TestRouter_RequiresToken(t *testing.T) {
	a := newTestApp(t, testConfig())

	w := testutil.DoRequest(a.router(), http.MethodGet, "/api/v1/alerts", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNewApp_RejectsBadBands(t *testing.T) {
	cfg := testConfig()
	cfg.Tiers.StrategicDemote = 90

	_, err := newApp(cfg, zap.NewNop(), false)
	assert.Error(t, err)
}

func TestRunJob_EveryTenant(t *testing.T) {
	a := newTestApp(t, testConfig())
	testutil.SeedVendor(t, a.db, "V-1", "COMPONENT", nil)

	var out bytes.Buffer
	err := a.runJob(context.Background(), &out, nil, "reclassify",
		func(ctx context.Context, a *app, tenant string) (interface{}, error) {
			return a.services.Tier.ReclassifyAll(ctx, tenant, systemActor)
		})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 1)
	var row map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &row))
	assert.Equal(t, testutil.TenantID, row["tenant_id"])
	assert.Equal(t, "reclassify", row["job"])
}

func TestRunJob_FailingTenantDoesNotStopOthers(t *testing.T) {
	a := newTestApp(t, testConfig())

	var out bytes.Buffer
	calls := 0
	err := a.runJob(context.Background(), &out, []string{"t-1", "t-2"}, "recompute",
		func(ctx context.Context, a *app, tenant string) (interface{}, error) {
			calls++
			if tenant == "t-1" {
				return nil, assert.AnError
			}
			return map[string]int{"processed": 0}, nil
		})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 2, calls)
	assert.Contains(t, out.String(), `"tenant_id":"t-2"`)
}

func TestPreviousMonth(t *testing.T) {
	y, m := previousMonth(time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 2025, y)
	assert.Equal(t, 12, m)

	y, m = previousMonth(time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 2026, y)
	assert.Equal(t, 2, m)
}
