package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agogsaas/vendorperf/internal/middleware"
	"github.com/agogsaas/vendorperf/internal/vendorperf/entity"
	"github.com/agogsaas/vendorperf/internal/vendorperf/repository"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	JWTSecret = "vendorperf-test-secret"
	TenantID  = "tenant-test-001"
	UserID    = "user-test-001"
)

// TestEnv holds test environment resources
type TestEnv struct {
	DB     *gorm.DB
	Router *gin.Engine
	T      *testing.T
}

// SetupTestDB opens an isolated in-memory SQLite database with every table
// migrated. The pool is pinned to one connection so all queries see the same
// memory database; code under test must therefore run transactional work
// through the transaction handle.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(entity.AllModels()...); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID, tenantID string, permissions []string) string {
	if permissions == nil {
		permissions = []string{}
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"uid":   userID,
		"tid":   tenantID,
		"name":  "Test User",
		"email": userID + "@test.com",
		"roles": []string{},
		"perms": permissions,
		"iss":   "vendorperf",
		"iat":   now.Unix(),
		"exp":   now.Add(24 * time.Hour).Unix(),
		"jti":   fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DefaultTestToken returns a token for the default tenant with all permissions
func DefaultTestToken() string {
	return GenerateTestToken(UserID, TenantID, []string{"*"})
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body into a map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

func newID() string {
	return uuid.New().String()[:32]
}

// SeedVendor creates an active vendor of the default tenant
func SeedVendor(t *testing.T, db *gorm.DB, code, vendorType string, tier *entity.Tier) *entity.Vendor {
	t.Helper()
	v := &entity.Vendor{
		ID:         newID(),
		TenantID:   TenantID,
		VendorCode: code,
		Name:       "Vendor " + code,
		VendorType: vendorType,
		IsActive:   true,
	}
	if tier != nil {
		s := string(*tier)
		v.VendorTier = &s
	}
	if err := repository.NewVendorRepository(db).Create(context.Background(), v); err != nil {
		t.Fatalf("Failed to seed vendor: %v", err)
	}
	return v
}

// POOption adjusts a seeded purchase order
type POOption func(*entity.PurchaseOrder)

// Delivered marks the order received, on time or late against its promise.
func Delivered(onTime bool) POOption {
	return func(po *entity.PurchaseOrder) {
		promised := po.OrderDate.AddDate(0, 0, 10)
		actual := promised.AddDate(0, 0, -1)
		if !onTime {
			actual = promised.AddDate(0, 0, 3)
		}
		po.Status = entity.POStatusReceived
		po.PromisedDeliveryDate = &promised
		po.ActualDeliveryDate = &actual
	}
}

// Inspected records an incoming inspection result.
func Inspected(accepted bool, received, defective float64) POOption {
	return func(po *entity.PurchaseOrder) {
		po.QualityStatus = entity.QualityRejected
		if accepted {
			po.QualityStatus = entity.QualityAccepted
		}
		po.ReceivedQuantity = received
		po.DefectiveQuantity = defective
	}
}

// WithStatus overrides the order status.
func WithStatus(status string) POOption {
	return func(po *entity.PurchaseOrder) {
		po.Status = status
	}
}

// SeedPO creates an issued purchase order for a vendor
func SeedPO(t *testing.T, db *gorm.DB, vendorID string, orderDate time.Time, amount float64, opts ...POOption) *entity.PurchaseOrder {
	t.Helper()
	po := &entity.PurchaseOrder{
		ID:          newID(),
		TenantID:    TenantID,
		VendorID:    vendorID,
		PONumber:    "PO-" + newID()[:8],
		Status:      entity.POStatusIssued,
		OrderDate:   orderDate.UTC(),
		TotalAmount: amount,
	}
	for _, opt := range opts {
		opt(po)
	}
	if err := repository.NewPurchaseOrderRepository(db).Create(context.Background(), po); err != nil {
		t.Fatalf("Failed to seed purchase order: %v", err)
	}
	return po
}

// SeedESG creates an ESG record for a vendor
func SeedESG(t *testing.T, db *gorm.DB, vendorID string, year, month int, score *float64, risk string, nextAudit *time.Time) *entity.ESGMetric {
	t.Helper()
	m := &entity.ESGMetric{
		ID:               newID(),
		TenantID:         TenantID,
		VendorID:         vendorID,
		EvaluationYear:   year,
		EvaluationMonth:  month,
		ESGOverallScore:  score,
		ESGRiskLevel:     risk,
		NextAuditDueDate: nextAudit,
	}
	if err := repository.NewESGRepository(db).Create(context.Background(), m); err != nil {
		t.Fatalf("Failed to seed ESG metric: %v", err)
	}
	return m
}
