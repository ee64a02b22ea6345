package handler

import (
	"strconv"

	"github.com/agogsaas/vendorperf/internal/middleware"
	"github.com/agogsaas/vendorperf/internal/vendorperf/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PerformanceHandler 绩效接口
type PerformanceHandler struct {
	svc    *service.PerformanceService
	logger *zap.Logger
}

func NewPerformanceHandler(svc *service.PerformanceService, logger *zap.Logger) *PerformanceHandler {
	return &PerformanceHandler{svc: svc, logger: logger}
}

// PeriodRequest 计算期间
type PeriodRequest struct {
	Year  int `json:"year" binding:"required"`
	Month int `json:"month" binding:"required"`
}

// Calculate 计算单个供应商月度绩效
// POST /api/v1/vendors/:id/performance/calculate
func (h *PerformanceHandler) Calculate(c *gin.Context) {
	var req PeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	res, err := h.svc.CalculateVendorPerformance(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"), req.Year, req.Month)
	if err != nil {
		ServiceError(c, h.logger, err)
		return
	}
	Success(c, res)
}

// CalculateAll 计算全部启用供应商
// POST /api/v1/performance/calculate
func (h *PerformanceHandler) CalculateAll(c *gin.Context) {
	var req PeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	summary, err := h.svc.CalculateAllVendorsPerformance(c.Request.Context(), middleware.GetTenantID(c), req.Year, req.Month)
	if err != nil {
		ServiceError(c, h.logger, err)
		return
	}
	Success(c, summary)
}

// UpdateManualScores 录入人工评分并重算
// PUT /api/v1/vendors/:id/performance/:year/:month/scores
func (h *PerformanceHandler) UpdateManualScores(c *gin.Context) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		BadRequest(c, "Invalid year")
		return
	}
	month, err := strconv.Atoi(c.Param("month"))
	if err != nil {
		BadRequest(c, "Invalid month")
		return
	}
	var req service.ManualScoresRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	res, err := h.svc.UpdateManualScores(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"), year, month, &req)
	if err != nil {
		ServiceError(c, h.logger, err)
		return
	}
	Success(c, res)
}

// Scorecard 供应商滚动绩效
// GET /api/v1/vendors/:id/scorecard?months=12
func (h *PerformanceHandler) Scorecard(c *gin.Context) {
	months, ok := queryInt(c, "months", 12)
	if !ok {
		BadRequest(c, "Invalid months")
		return
	}
	card, err := h.svc.GetVendorScorecard(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"), months)
	if err != nil {
		ServiceError(c, h.logger, err)
		return
	}
	Success(c, card)
}

// Compare 供应商横向对比
// GET /api/v1/performance/compare?year=&month=&vendor_type=&top_n=
func (h *PerformanceHandler) Compare(c *gin.Context) {
	year, ok := queryInt(c, "year", 0)
	if !ok {
		BadRequest(c, "Invalid year")
		return
	}
	month, ok := queryInt(c, "month", 0)
	if !ok {
		BadRequest(c, "Invalid month")
		return
	}
	topN, ok := queryInt(c, "top_n", 5)
	if !ok {
		BadRequest(c, "Invalid top_n")
		return
	}

	cmp, err := h.svc.CompareVendors(c.Request.Context(), middleware.GetTenantID(c), year, month, c.Query("vendor_type"), topN)
	if err != nil {
		ServiceError(c, h.logger, err)
		return
	}
	Success(c, cmp)
}
