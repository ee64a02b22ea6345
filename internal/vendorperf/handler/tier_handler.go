package handler

import (
	"github.com/agogsaas/vendorperf/internal/middleware"
	"github.com/agogsaas/vendorperf/internal/vendorperf/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TierHandler 供应商分级接口
type TierHandler struct {
	svc    *service.TierService
	logger *zap.Logger
}

func NewTierHandler(svc *service.TierService, logger *zap.Logger) *TierHandler {
	return &TierHandler{svc: svc, logger: logger}
}

// Classify 重新分级单个供应商
// POST /api/v1/vendors/:id/tier/classify
func (h *TierHandler) Classify(c *gin.Context) {
	res, err := h.svc.ClassifyVendor(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		ServiceError(c, h.logger, err)
		return
	}
	Success(c, res)
}

// Reclassify 批量重新分级
// POST /api/v1/tiers/reclassify
func (h *TierHandler) Reclassify(c *gin.Context) {
	summary, err := h.svc.ReclassifyAll(c.Request.Context(), middleware.GetTenantID(c), middleware.GetUserID(c))
	if err != nil {
		ServiceError(c, h.logger, err)
		return
	}
	Success(c, summary)
}

// OverrideTierRequest 人工调整分级
type OverrideTierRequest struct {
	Tier          string `json:"tier" binding:"required"`
	Justification string `json:"justification" binding:"required"`
}

// Override 人工调整分级
// PUT /api/v1/vendors/:id/tier
func (h *TierHandler) Override(c *gin.Context) {
	var req OverrideTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	res, err := h.svc.OverrideTier(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"),
		req.Tier, req.Justification, middleware.GetUserID(c))
	if err != nil {
		ServiceError(c, h.logger, err)
		return
	}
	Success(c, res)
}

// History 分级变更记录
// GET /api/v1/vendors/:id/tier/history?limit=20
func (h *TierHandler) History(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 20)
	if !ok || limit < 1 || limit > 200 {
		BadRequest(c, "Invalid limit")
		return
	}
	logs, err := h.svc.TierHistory(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"), limit)
	if err != nil {
		ServiceError(c, h.logger, err)
		return
	}
	Success(c, gin.H{"items": logs})
}
