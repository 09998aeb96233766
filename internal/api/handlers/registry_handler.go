package handlers

import (
	"errors"
	"net/http"

	"github.com/Xingyelan/Vega-Registry/internal/health"
	"github.com/Xingyelan/Vega-Registry/internal/registry"
	"github.com/gin-gonic/gin"
)

// RegistryHandler 供应商注册表 HTTP 处理器
type RegistryHandler struct {
	registry *registry.Registry
	monitor  *health.Monitor
}

// NewRegistryHandler 创建 RegistryHandler 实例
func NewRegistryHandler(reg *registry.Registry, monitor *health.Monitor) *RegistryHandler {
	return &RegistryHandler{registry: reg, monitor: monitor}
}

// GetAvailableProviders 获取注册表中的全部供应商
// @Summary 获取可用供应商列表
// @Tags registry
// @Produce json
// @Success 200 {array} registry.ProviderDetails
// @Router /api/registry/providers [get]
func (h *RegistryHandler) GetAvailableProviders(c *gin.Context) {
	providers := h.registry.GetAvailableProviders()
	c.JSON(http.StatusOK, gin.H{"data": providers, "total": len(providers)})
}

// GetProvider 按标识符获取注册表条目
// @Summary 获取单个注册表条目
// @Tags registry
// @Produce json
// @Param id path string true "供应商标识符"
// @Success 200 {object} registry.ProviderDetails
// @Failure 404 {object} catalog.ErrorResponse
// @Router /api/registry/providers/{id} [get]
func (h *RegistryHandler) GetProvider(c *gin.Context) {
	details, err := h.registry.GetProvider(c.Param("id"))
	if err != nil {
		if errors.Is(err, registry.ErrProviderNotFound) {
			errorJSON(c, http.StatusNotFound, "NOT_FOUND", "Provider not found in registry", nil)
			return
		}
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get provider", nil)
		return
	}
	c.JSON(http.StatusOK, details)
}

// TestProvider 同步触发单个供应商的健康检查
// @Summary 手动测试供应商
// @Tags registry
// @Produce json
// @Param id path string true "供应商标识符"
// @Success 200 {object} models.ProviderHealth
// @Failure 400 {object} catalog.ErrorResponse
// @Failure 404 {object} catalog.ErrorResponse
// @Router /api/registry/providers/{id}/test [post]
func (h *RegistryHandler) TestProvider(c *gin.Context) {
	details, err := h.registry.GetProvider(c.Param("id"))
	if err != nil {
		if errors.Is(err, registry.ErrProviderNotFound) {
			errorJSON(c, http.StatusNotFound, "NOT_FOUND", "Provider not found in registry", nil)
			return
		}
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to resolve provider", nil)
		return
	}

	// 旧式条目没有目录记录，也没有可解密的凭证
	if details.Legacy || details.ProviderID == 0 {
		errorJSON(c, http.StatusBadRequest, "LEGACY_PROVIDER", "Legacy providers cannot be health-checked", nil)
		return
	}

	result, checkErr := h.monitor.CheckProviderHealth(details.ProviderID)
	if result == nil {
		errorJSON(c, http.StatusInternalServerError, "HEALTH_CHECK_FAILED", "Health check could not run", checkErr.Error())
		return
	}

	// 探测失败也是一次成功的检查：健康记录里带着 down 状态和错误原因
	c.JSON(http.StatusOK, result)
}

// RefreshRegistry 强制刷新注册表缓存
// @Summary 刷新注册表
// @Tags registry
// @Produce json
// @Success 200 {object} registry.Status
// @Failure 503 {object} catalog.ErrorResponse
// @Router /api/registry/refresh [post]
func (h *RegistryHandler) RefreshRegistry(c *gin.Context) {
	if err := h.registry.Refresh(); err != nil {
		// 刷新失败时旧缓存仍然有效，按服务降级回报
		errorJSON(c, http.StatusServiceUnavailable, "REFRESH_FAILED", "Registry refresh failed, serving cached data", err.Error())
		return
	}
	c.JSON(http.StatusOK, h.registry.GetRegistryStatus())
}

// GetRegistryStatus 获取注册表缓存状态
// @Summary 获取注册表状态
// @Tags registry
// @Produce json
// @Success 200 {object} registry.Status
// @Router /api/registry/status [get]
func (h *RegistryHandler) GetRegistryStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.GetRegistryStatus())
}

// SelectProvider 按能力要求挑选供应商
// @Summary 按能力要求挑选最优供应商
// @Tags registry
// @Accept json
// @Produce json
// @Param requirements body registry.Requirements true "能力要求"
// @Success 200 {object} registry.ProviderDetails
// @Failure 404 {object} catalog.ErrorResponse
// @Router /api/registry/select [post]
func (h *RegistryHandler) SelectProvider(c *gin.Context) {
	var req registry.Requirements
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request parameters", err.Error())
		return
	}

	best, err := h.registry.GetBestProvider(req)
	if err != nil {
		if errors.Is(err, registry.ErrNoSuitableProvider) {
			errorJSON(c, http.StatusNotFound, "NO_SUITABLE_PROVIDER", "No available provider satisfies the requirements", nil)
			return
		}
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to select provider", nil)
		return
	}

	candidates := h.registry.FindProvidersWithCapabilities(req)
	c.JSON(http.StatusOK, gin.H{"best": best, "candidates": len(candidates)})
}
