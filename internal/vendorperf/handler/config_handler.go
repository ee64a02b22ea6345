package handler

import (
	"github.com/agogsaas/vendorperf/internal/middleware"
	"github.com/agogsaas/vendorperf/internal/vendorperf/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ConfigHandler 评分卡配置接口
type ConfigHandler struct {
	svc    *service.ConfigService
	logger *zap.Logger
}

func NewConfigHandler(svc *service.ConfigService, logger *zap.Logger) *ConfigHandler {
	return &ConfigHandler{svc: svc, logger: logger}
}

// List 配置列表
func (h *ConfigHandler) List(c *gin.Context) {
	items, err := h.svc.ListConfigs(c.Request.Context(), middleware.GetTenantID(c))
	if err != nil {
		ServiceError(c, h.logger, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// Active 当前生效配置，未配置时返回内置默认值
// GET /api/v1/scorecard-configs/active?vendor_type=&vendor_tier=
func (h *ConfigHandler) Active(c *gin.Context) {
	var vendorType, vendorTier *string
	if v := c.Query("vendor_type"); v != "" {
		vendorType = &v
	}
	if v := c.Query("vendor_tier"); v != "" {
		vendorTier = &v
	}
	cfg, err := h.svc.GetActiveConfig(c.Request.Context(), middleware.GetTenantID(c), vendorType, vendorTier)
	if err != nil {
		ServiceError(c, h.logger, err)
		return
	}
	Success(c, cfg)
}

// Create 创建配置版本
// POST /api/v1/scorecard-configs
func (h *ConfigHandler) Create(c *gin.Context) {
	var req service.CreateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	cfg, err := h.svc.CreateConfig(c.Request.Context(), middleware.GetTenantID(c), middleware.GetUserID(c), &req)
	if err != nil {
		ServiceError(c, h.logger, err)
		return
	}
	Created(c, cfg)
}
