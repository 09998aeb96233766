package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Xingyelan/Vega-Registry/internal/health"
	"github.com/gin-gonic/gin"
)

// HealthHandler 健康监控 HTTP 处理器
type HealthHandler struct {
	monitor *health.Monitor
	store   *health.Store
}

// NewHealthHandler 创建 HealthHandler 实例
func NewHealthHandler(monitor *health.Monitor, store *health.Store) *HealthHandler {
	return &HealthHandler{monitor: monitor, store: store}
}

// GetProviderHealth 获取全部供应商的最新健康状态
// @Summary 获取全部供应商健康状态
// @Tags health
// @Produce json
// @Success 200 {object} map[uint]models.ProviderHealth
// @Router /api/health/providers [get]
func (h *HealthHandler) GetProviderHealth(c *gin.Context) {
	healthByProvider, err := h.monitor.GetProviderHealth()
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load provider health", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": healthByProvider, "total": len(healthByProvider)})
}

// GetProviderHealthStatus 获取单个供应商的健康状态
// @Summary 获取单个供应商健康状态
// @Tags health
// @Produce json
// @Param id path int true "供应商 ID"
// @Success 200 {object} models.ProviderHealth
// @Failure 404 {object} catalog.ErrorResponse
// @Router /api/health/providers/{id} [get]
func (h *HealthHandler) GetProviderHealthStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	status, err := h.monitor.GetProviderHealthStatus(id)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load provider health", nil)
		return
	}
	if status == nil {
		errorJSON(c, http.StatusNotFound, "NOT_FOUND", "No health record for provider", nil)
		return
	}
	c.JSON(http.StatusOK, status)
}

// CheckProvider 同步执行一次健康检查
// @Summary 手动健康检查
// @Tags health
// @Produce json
// @Param id path int true "供应商 ID"
// @Success 200 {object} models.ProviderHealth
// @Failure 404 {object} catalog.ErrorResponse
// @Router /api/health/providers/{id}/check [post]
func (h *HealthHandler) CheckProvider(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.monitor.CheckProviderHealth(id)
	if result == nil {
		errorJSON(c, http.StatusNotFound, "NOT_FOUND", "Provider not found or check could not run", err.Error())
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetMetrics 获取供应商的性能指标
// @Summary 获取性能指标
// @Tags health
// @Produce json
// @Param id path int true "供应商 ID"
// @Param hours query int false "回看窗口小时数（默认 24）"
// @Success 200 {array} models.PerformanceMetric
// @Router /api/health/providers/{id}/metrics [get]
func (h *HealthHandler) GetMetrics(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	hours, _ := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if hours <= 0 {
		hours = 24
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	metrics, err := h.store.MetricsSince(id, since)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load metrics", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": metrics, "total": len(metrics)})
}

// ListAlerts 获取告警列表
// @Summary 获取告警列表
// @Tags health
// @Produce json
// @Param active query bool false "仅返回未确认且未恢复的告警"
// @Param limit query int false "数量上限（默认 100）"
// @Success 200 {array} models.HealthAlert
// @Router /api/health/alerts [get]
func (h *HealthHandler) ListAlerts(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	alerts, err := h.store.ListAlerts(activeOnly, limit)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list alerts", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": alerts, "total": len(alerts)})
}

// AcknowledgeAlert 确认告警
// @Summary 确认告警
// @Tags health
// @Param id path int true "告警 ID"
// @Success 204 "No Content"
// @Failure 404 {object} catalog.ErrorResponse
// @Router /api/health/alerts/{id}/acknowledge [post]
func (h *HealthHandler) AcknowledgeAlert(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.store.AcknowledgeAlert(id); err != nil {
		if errors.Is(err, health.ErrAlertNotFound) {
			errorJSON(c, http.StatusNotFound, "NOT_FOUND", "Alert not found", nil)
			return
		}
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to acknowledge alert", nil)
		return
	}
	c.Status(http.StatusNoContent)
}
