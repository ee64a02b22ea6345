package handler

import (
	"github.com/agogsaas/vendorperf/internal/middleware"
	"github.com/agogsaas/vendorperf/internal/vendorperf/engine"
	"github.com/agogsaas/vendorperf/internal/vendorperf/repository"
	"github.com/agogsaas/vendorperf/internal/vendorperf/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AlertHandler 告警接口
type AlertHandler struct {
	svc    *service.AlertService
	logger *zap.Logger
}

func NewAlertHandler(svc *service.AlertService, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{svc: svc, logger: logger}
}

// List 告警列表
// GET /api/v1/alerts?vendor_id=&status=&severity=&alert_type=&page=&page_size=
func (h *AlertHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filter := repository.AlertFilter{
		TenantID:  middleware.GetTenantID(c),
		VendorID:  c.Query("vendor_id"),
		Status:    c.Query("status"),
		Severity:  c.Query("severity"),
		AlertType: c.Query("alert_type"),
	}

	items, total, err := h.svc.ListAlerts(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		ServiceError(c, h.logger, err)
		return
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	Success(c, ListResponse{
		Items: items,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
		},
	})
}

// Get 告警详情
func (h *AlertHandler) Get(c *gin.Context) {
	alert, err := h.svc.GetAlert(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"))
	if err != nil {
		ServiceError(c, h.logger, err)
		return
	}
	Success(c, alert)
}

// Stats 告警统计
func (h *AlertHandler) Stats(c *gin.Context) {
	stats, err := h.svc.AlertStats(c.Request.Context(), middleware.GetTenantID(c))
	if err != nil {
		ServiceError(c, h.logger, err)
		return
	}
	Success(c, stats)
}

// GenerateAlertRequest 手工触发告警
type GenerateAlertRequest struct {
	AlertType      string   `json:"alert_type" binding:"required"`
	Severity       string   `json:"severity" binding:"required"`
	MetricCategory *string  `json:"metric_category"`
	CurrentValue   *float64 `json:"current_value"`
	ThresholdValue *float64 `json:"threshold_value"`
	Message        string   `json:"message" binding:"required"`
}

// Generate 生成告警（去重窗口内返回已有告警）
// POST /api/v1/vendors/:id/alerts
func (h *AlertHandler) Generate(c *gin.Context) {
	var req GenerateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	res, err := h.svc.GenerateAlert(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"), engine.AlertCandidate{
		AlertType:      req.AlertType,
		Severity:       req.Severity,
		MetricCategory: req.MetricCategory,
		CurrentValue:   req.CurrentValue,
		ThresholdValue: req.ThresholdValue,
		Message:        req.Message,
	})
	if err != nil {
		ServiceError(c, h.logger, err)
		return
	}
	if res.Created {
		Created(c, res)
		return
	}
	Success(c, res)
}

// TransitionRequest 告警流转说明
type TransitionRequest struct {
	Notes string `json:"notes"`
}

func (h *AlertHandler) transition(c *gin.Context, fn func(ctx *gin.Context, tenantID, alertID, actorID, text string) (interface{}, error)) {
	var req TransitionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, "Invalid request body: "+err.Error())
			return
		}
	}
	alert, err := fn(c, middleware.GetTenantID(c), c.Param("id"), middleware.GetUserID(c), req.Notes)
	if err != nil {
		ServiceError(c, h.logger, err)
		return
	}
	Success(c, alert)
}

// Acknowledge 确认告警
// POST /api/v1/alerts/:id/acknowledge
func (h *AlertHandler) Acknowledge(c *gin.Context) {
	h.transition(c, func(ctx *gin.Context, tenantID, alertID, actorID, text string) (interface{}, error) {
		return h.svc.AcknowledgeAlert(ctx.Request.Context(), tenantID, alertID, actorID, text)
	})
}

// Resolve 关闭告警，CRITICAL 需填写处理说明
// POST /api/v1/alerts/:id/resolve
func (h *AlertHandler) Resolve(c *gin.Context) {
	h.transition(c, func(ctx *gin.Context, tenantID, alertID, actorID, text string) (interface{}, error) {
		return h.svc.ResolveAlert(ctx.Request.Context(), tenantID, alertID, actorID, text)
	})
}

// Dismiss 忽略告警
// POST /api/v1/alerts/:id/dismiss
func (h *AlertHandler) Dismiss(c *gin.Context) {
	h.transition(c, func(ctx *gin.Context, tenantID, alertID, actorID, text string) (interface{}, error) {
		return h.svc.DismissAlert(ctx.Request.Context(), tenantID, alertID, actorID, text)
	})
}

// AuditSweep 检查ESG审核到期
// POST /api/v1/alerts/audit-sweep
func (h *AlertHandler) AuditSweep(c *gin.Context) {
	n, err := h.svc.CheckESGAuditDueDates(c.Request.Context(), middleware.GetTenantID(c))
	if err != nil && n == 0 {
		ServiceError(c, h.logger, err)
		return
	}
	data := gin.H{"vendors_evaluated": n}
	if err != nil {
		h.logger.Warn("audit sweep partially failed", zap.Error(err))
		data["error"] = err.Error()
	}
	Success(c, data)
}
