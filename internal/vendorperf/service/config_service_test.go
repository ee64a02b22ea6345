package service

import (
	"context"
	"testing"
	"time"

	"github.com/agogsaas/vendorperf/internal/testutil"
	"github.com/agogsaas/vendorperf/internal/vendorperf/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configRequest(name string, from time.Time, to *time.Time) *CreateConfigRequest {
	return &CreateConfigRequest{
		Name:                name,
		QualityWeight:       30,
		DeliveryWeight:      25,
		CostWeight:          15,
		ServiceWeight:       15,
		InnovationWeight:    5,
		ESGWeight:           10,
		AcceptableThreshold: 60,
		GoodThreshold:       75,
		ExcellentThreshold:  90,
		EffectiveFrom:       &from,
		EffectiveTo:         to,
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCreateConfig_SupersedesOpenEnded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.configs.CreateConfig(ctx, tenant, testutil.UserID, configRequest("2026 H1", date(2026, 1, 1), nil))
	require.NoError(t, err)
	assert.Equal(t, 3, first.ReviewFrequencyMonths)

	second, err := f.configs.CreateConfig(ctx, tenant, testutil.UserID, configRequest("2026 H2", date(2026, 6, 1), nil))
	require.NoError(t, err)

	closed, err := f.repos.Config.FindByID(ctx, tenant, first.ID)
	require.NoError(t, err)
	require.NotNil(t, closed.EffectiveTo)
	assert.True(t, closed.EffectiveTo.Equal(date(2026, 6, 1)))

	// a bounded range inside the closed version collides
	to := date(2026, 4, 1)
	_, err = f.configs.CreateConfig(ctx, tenant, testutil.UserID, configRequest("spring", date(2026, 3, 1), &to))
	kind(t, err, ErrConflict)

	// other scopes are independent
	req := configRequest("paper", date(2026, 3, 1), nil)
	req.VendorType = sp(entity.VendorTypePaper)
	paper, err := f.configs.CreateConfig(ctx, tenant, testutil.UserID, req)
	require.NoError(t, err)

	all, err := f.configs.ListConfigs(ctx, tenant)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	got, err := f.configs.ResolveConfig(ctx, tenant, sp(entity.VendorTypePaper), sp(string(entity.TierPreferred)), f.now)
	require.NoError(t, err)
	assert.Equal(t, paper.ID, got.ID)

	got, err = f.configs.ResolveConfig(ctx, tenant, sp(entity.VendorTypeInk), nil, f.now)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	got, err = f.configs.ResolveConfig(ctx, tenant, sp(entity.VendorTypeInk), nil, date(2026, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}

func TestResolveConfig_Fallbacks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := configRequest("strategic", date(2026, 1, 1), nil)
	req.VendorTier = sp(string(entity.TierStrategic))
	req.QualityWeight, req.DeliveryWeight = 40, 15
	tierCfg, err := f.configs.CreateConfig(ctx, tenant, testutil.UserID, req)
	require.NoError(t, err)

	req = configRequest("ink strategic", date(2026, 1, 1), nil)
	req.VendorType = sp(entity.VendorTypeInk)
	req.VendorTier = sp(string(entity.TierStrategic))
	exact, err := f.configs.CreateConfig(ctx, tenant, testutil.UserID, req)
	require.NoError(t, err)

	got, err := f.configs.ResolveConfig(ctx, tenant, sp(entity.VendorTypeInk), sp(string(entity.TierStrategic)), f.now)
	require.NoError(t, err)
	assert.Equal(t, exact.ID, got.ID)

	got, err = f.configs.ResolveConfig(ctx, tenant, sp(entity.VendorTypePaper), sp(string(entity.TierStrategic)), f.now)
	require.NoError(t, err)
	assert.Equal(t, tierCfg.ID, got.ID)

	// nothing configured for this scope or tenant-wide
	got, err = f.configs.GetActiveConfig(ctx, tenant, sp(entity.VendorTypePaper), nil)
	require.NoError(t, err)
	assert.Empty(t, got.ID)
	assert.Equal(t, 30.0, got.QualityWeight)

	got, err = f.configs.ResolveConfig(ctx, "other-tenant", nil, nil, f.now)
	require.NoError(t, err)
	assert.Empty(t, got.ID)
	assert.Equal(t, "other-tenant", got.TenantID)
}

func TestCreateConfig_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := configRequest("bad weights", date(2026, 1, 1), nil)
	req.ESGWeight = 0
	_, err := f.configs.CreateConfig(ctx, tenant, testutil.UserID, req)
	kind(t, err, ErrValidation)

	req = configRequest("bad thresholds", date(2026, 1, 1), nil)
	req.GoodThreshold = 95
	_, err = f.configs.CreateConfig(ctx, tenant, testutil.UserID, req)
	kind(t, err, ErrValidation)

	req = configRequest("bad tier", date(2026, 1, 1), nil)
	req.VendorTier = sp("GOLD")
	_, err = f.configs.CreateConfig(ctx, tenant, testutil.UserID, req)
	kind(t, err, ErrValidation)

	to := date(2025, 12, 1)
	_, err = f.configs.CreateConfig(ctx, tenant, testutil.UserID, configRequest("backwards", date(2026, 1, 1), &to))
	kind(t, err, ErrValidation)

	req = configRequest(" ", date(2026, 1, 1), nil)
	_, err = f.configs.CreateConfig(ctx, tenant, testutil.UserID, req)
	kind(t, err, ErrValidation)

	all, err := f.configs.ListConfigs(ctx, tenant)
	require.NoError(t, err)
	assert.Empty(t, all)
}
