package handler

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agogsaas/vendorperf/internal/middleware"
	"github.com/agogsaas/vendorperf/internal/testutil"
	"github.com/agogsaas/vendorperf/internal/vendorperf/entity"
	"github.com/agogsaas/vendorperf/internal/vendorperf/notify"
	"github.com/agogsaas/vendorperf/internal/vendorperf/repository"
	"github.com/agogsaas/vendorperf/internal/vendorperf/service"
	"github.com/gin-gonic/gin"
)

var handlerNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func setupHandlerTest(t *testing.T) (*testutil.TestEnv, *notify.Hub) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	clock := func() time.Time { return handlerNow }

	hub := notify.NewHub(nil)

	alerts := service.NewAlertService(repos, nil)
	alerts.SetPublisher(hub)
	alerts.SetClock(clock)
	tiers := service.NewTierService(repos, alerts, nil)
	tiers.SetClock(clock)
	configs := service.NewConfigService(repos, nil)
	configs.SetClock(clock)
	perf := service.NewPerformanceService(repos, configs, alerts, nil)
	perf.SetClock(clock)

	h := NewHandlers(&Services{
		Alert:       alerts,
		Tier:        tiers,
		Config:      configs,
		Performance: perf,
	}, hub, nil)

	router := testutil.SetupRouter()
	router.Use(middleware.RequestID())
	api := testutil.AuthGroup(router, "/api/v1")
	h.Register(api)

	return &testutil.TestEnv{DB: db, Router: router, T: t}, hub
}

func seedQualityIssue(t *testing.T, env *testutil.TestEnv) *entity.Vendor {
	t.Helper()
	v := testutil.SeedVendor(t, env.DB, "V001", entity.VendorTypePaper, nil)
	for i := 0; i < 20; i++ {
		day := time.Date(2026, 5, 1+i, 8, 0, 0, 0, time.UTC)
		testutil.SeedPO(t, env.DB, v.ID, day, 1000,
			testutil.Delivered(i < 18),
			testutil.Inspected(i < 13, 100, 0))
	}
	return v
}

func data(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	resp := testutil.ParseResponse(w)
	d, ok := resp["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected data object, got %s", w.Body.String())
	}
	return d
}

func TestCalculateAndResolveFlow(t *testing.T) {
	env, _ := setupHandlerTest(t)
	token := testutil.DefaultTestToken()
	v := seedQualityIssue(t, env)

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/vendors/"+v.ID+"/performance/calculate",
		map[string]int{"year": 2026, "month": 5}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	alerts := data(t, w)["alerts"].([]interface{})
	if len(alerts) != 1 {
		t.Fatalf("Expected 1 alert, got %d", len(alerts))
	}
	alert := alerts[0].(map[string]interface{})
	if alert["severity"] != entity.SeverityCritical || alert["metric_category"] != entity.MetricQuality {
		t.Errorf("Unexpected alert %v", alert)
	}
	alertID := alert["alert_id"].(string)

	w = testutil.DoRequest(env.Router, "GET", "/api/v1/alerts?severity=CRITICAL", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	page := data(t, w)["pagination"].(map[string]interface{})
	if page["total"].(float64) != 1 {
		t.Errorf("Expected 1 critical alert, got %v", page["total"])
	}

	// short notes on a CRITICAL alert
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/alerts/"+alertID+"/resolve",
		map[string]string{"notes": "ok"}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/alerts/"+alertID+"/resolve",
		map[string]string{"notes": "incoming inspection tightened"}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := data(t, w)["status"]; got != entity.AlertStatusResolved {
		t.Errorf("Expected RESOLVED, got %v", got)
	}

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/alerts/"+alertID+"/acknowledge", nil, token)
	if w.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d: %s", w.Code, w.Body.String())
	}
	if code := testutil.ParseResponse(w)["code"].(float64); code != 40900 {
		t.Errorf("Expected code 40900, got %v", code)
	}

	w = testutil.DoRequest(env.Router, "GET", "/api/v1/alerts/missing", nil, token)
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestTenantIsolation(t *testing.T) {
	env, _ := setupHandlerTest(t)
	v := seedQualityIssue(t, env)

	other := testutil.GenerateTestToken("user-x", "tenant-other", []string{"*"})
	w := testutil.DoRequest(env.Router, "POST", "/api/v1/vendors/"+v.ID+"/performance/calculate",
		map[string]int{"year": 2026, "month": 5}, other)
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404 for other tenant, got %d: %s", w.Code, w.Body.String())
	}
}

func TestManageRoutesRequirePermission(t *testing.T) {
	env, _ := setupHandlerTest(t)
	readOnly := testutil.GenerateTestToken("user-r", testutil.TenantID, []string{"vendorperf:read"})

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/tiers/reclassify", nil, readOnly)
	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/tiers/reclassify", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/tiers/reclassify", nil, testutil.DefaultTestToken())
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestOverrideTierAndHistory(t *testing.T) {
	env, _ := setupHandlerTest(t)
	token := testutil.DefaultTestToken()
	tier := entity.TierPreferred
	v := testutil.SeedVendor(t, env.DB, "V001", entity.VendorTypeInk, &tier)
	testutil.SeedPO(t, env.DB, v.ID, handlerNow.AddDate(0, -2, 0), 5000)

	w := testutil.DoRequest(env.Router, "PUT", "/api/v1/vendors/"+v.ID+"/tier",
		map[string]string{"tier": "STRATEGIC", "justification": "short"}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.Router, "PUT", "/api/v1/vendors/"+v.ID+"/tier",
		map[string]string{"tier": "STRATEGIC", "justification": "only certified ink supplier"}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if data(t, w)["tier_changed"] != true {
		t.Errorf("Expected tier_changed true, got %v", w.Body.String())
	}

	w = testutil.DoRequest(env.Router, "GET", "/api/v1/vendors/"+v.ID+"/tier/history", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	items := data(t, w)["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("Expected 1 history entry, got %d", len(items))
	}
	if items[0].(map[string]interface{})["source"] != entity.TierSourceManual {
		t.Errorf("Expected MANUAL source, got %v", items[0])
	}
}

func TestScorecardConfigRoutes(t *testing.T) {
	env, _ := setupHandlerTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(env.Router, "GET", "/api/v1/scorecard-configs/active?vendor_type=PAPER", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if name := data(t, w)["name"]; name != "default" {
		t.Errorf("Expected built-in default config, got %v", name)
	}

	body := map[string]interface{}{
		"name":                 "paper 2026",
		"vendor_type":          "PAPER",
		"quality_weight":       40,
		"delivery_weight":      30,
		"cost_weight":          10,
		"service_weight":       10,
		"innovation_weight":    0,
		"esg_weight":           10,
		"acceptable_threshold": 60,
		"good_threshold":       75,
		"excellent_threshold":  90,
		"effective_from":       "2026-01-01T00:00:00Z",
	}
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/scorecard-configs", body, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	body["quality_weight"] = 50
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/scorecard-configs", body, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for weights over 100, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.Router, "GET", "/api/v1/scorecard-configs/active?vendor_type=PAPER", nil, token)
	if name := data(t, w)["name"]; name != "paper 2026" {
		t.Errorf("Expected paper config, got %v", name)
	}
}

func TestAlertStream(t *testing.T) {
	env, hub := setupHandlerTest(t)
	v := seedQualityIssue(t, env)

	srv := httptest.NewServer(env.Router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", srv.URL+"/api/v1/alerts/stream?token="+testutil.DefaultTestToken(), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream request: %v", err)
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	line, _ := reader.ReadString('\n')
	if !strings.HasPrefix(line, "event: connected") {
		t.Fatalf("Expected connected event, got %q", line)
	}
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/vendors/"+v.ID+"/performance/calculate",
		map[string]int{"year": 2026, "month": 5}, testutil.DefaultTestToken())
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	for {
		line, err = reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if strings.HasPrefix(line, "event: ") && !strings.Contains(line, "connected") {
			break
		}
	}
	if strings.TrimSpace(line) != "event: alert_created" {
		t.Errorf("Expected alert_created event, got %q", line)
	}
	payload, _ := reader.ReadString('\n')
	if !strings.Contains(payload, v.ID) {
		t.Errorf("Expected payload for vendor %s, got %q", v.ID, payload)
	}
}

func init() {
	gin.SetMode(gin.TestMode)
}
