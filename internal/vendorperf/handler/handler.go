package handler

import (
	"strconv"

	"github.com/agogsaas/vendorperf/internal/middleware"
	"github.com/agogsaas/vendorperf/internal/vendorperf/notify"
	"github.com/agogsaas/vendorperf/internal/vendorperf/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PermManage 写操作（配置、分级调整、批量任务）所需权限
const PermManage = "vendorperf:manage"

// Services 处理器依赖的服务
type Services struct {
	Alert       *service.AlertService
	Tier        *service.TierService
	Config      *service.ConfigService
	Performance *service.PerformanceService
}

// Handlers 处理器集合
type Handlers struct {
	Alert       *AlertHandler
	Tier        *TierHandler
	Config      *ConfigHandler
	Performance *PerformanceHandler
	SSE         *SSEHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *Services, hub *notify.Hub, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		Alert:       NewAlertHandler(svc.Alert, logger),
		Tier:        NewTierHandler(svc.Tier, logger),
		Config:      NewConfigHandler(svc.Config, logger),
		Performance: NewPerformanceHandler(svc.Performance, logger),
		SSE:         NewSSEHandler(hub),
	}
}

// Register 注册全部路由，api 需已挂载 JWT 认证
func (h *Handlers) Register(api *gin.RouterGroup) {
	manage := middleware.RequirePermission(PermManage)

	vendors := api.Group("/vendors/:id")
	{
		vendors.POST("/performance/calculate", h.Performance.Calculate)
		vendors.PUT("/performance/:year/:month/scores", h.Performance.UpdateManualScores)
		vendors.GET("/scorecard", h.Performance.Scorecard)

		vendors.POST("/tier/classify", manage, h.Tier.Classify)
		vendors.PUT("/tier", manage, h.Tier.Override)
		vendors.GET("/tier/history", h.Tier.History)

		vendors.POST("/alerts", h.Alert.Generate)
	}

	perf := api.Group("/performance")
	{
		perf.POST("/calculate", manage, h.Performance.CalculateAll)
		perf.GET("/compare", h.Performance.Compare)
	}

	api.POST("/tiers/reclassify", manage, h.Tier.Reclassify)

	alerts := api.Group("/alerts")
	{
		alerts.GET("", h.Alert.List)
		alerts.GET("/stats", h.Alert.Stats)
		alerts.GET("/stream", h.SSE.Stream)
		alerts.POST("/audit-sweep", manage, h.Alert.AuditSweep)
		alerts.GET("/:id", h.Alert.Get)
		alerts.POST("/:id/acknowledge", h.Alert.Acknowledge)
		alerts.POST("/:id/resolve", h.Alert.Resolve)
		alerts.POST("/:id/dismiss", h.Alert.Dismiss)
	}

	configs := api.Group("/scorecard-configs")
	{
		configs.GET("", h.Config.List)
		configs.GET("/active", h.Config.Active)
		configs.POST("", manage, h.Config.Create)
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListResponse 列表响应结构
type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

// Pagination 分页信息
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// Conflict 状态冲突响应
func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// ServiceUnavailable 存储不可用，可重试
func ServiceUnavailable(c *gin.Context, message string) {
	Error(c, 50300, message)
}

// ServiceError maps a service error onto the response code of its kind.
// Transient causes are logged, never echoed to the client.
func ServiceError(c *gin.Context, logger *zap.Logger, err error) {
	switch service.KindOf(err) {
	case service.KindNotFound:
		NotFound(c, err.Error())
	case service.KindValidation:
		BadRequest(c, err.Error())
	case service.KindConflict:
		Conflict(c, err.Error())
	case service.KindTransient:
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(middleware.KeyRequestID)),
			zap.Error(err))
		ServiceUnavailable(c, err.Error())
	default:
		InternalError(c, err.Error())
	}
}

// GetPagination 从请求获取分页参数
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

// queryInt 解析整型查询参数，缺省时返回 def
func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
