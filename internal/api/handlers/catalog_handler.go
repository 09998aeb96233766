package handlers

import (
	"errors"
	"net/http"

	"github.com/Xingyelan/Vega-Registry/internal/catalog"
	"github.com/gin-gonic/gin"
)

// CatalogHandler 供应商目录 HTTP 处理器
type CatalogHandler struct {
	service *catalog.Service
}

// NewCatalogHandler 创建 CatalogHandler 实例
func NewCatalogHandler(service *catalog.Service) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// CreateProvider 创建供应商
// @Summary 创建供应商
// @Tags providers
// @Accept json
// @Produce json
// @Param provider body catalog.CreateProviderRequest true "供应商信息"
// @Success 201 {object} catalog.ProviderResponse
// @Failure 400 {object} catalog.ErrorResponse
// @Failure 409 {object} catalog.ErrorResponse
// @Router /api/providers [post]
func (h *CatalogHandler) CreateProvider(c *gin.Context) {
	var req catalog.CreateProviderRequest

	// 绑定请求体
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request parameters", err.Error())
		return
	}

	// 调用 Service 创建供应商
	provider, issues, err := h.service.CreateProvider(req)
	if err != nil {
		var vErr *catalog.ValidationError
		switch {
		case errors.Is(err, catalog.ErrIdentifierExists):
			errorJSON(c, http.StatusConflict, "IDENTIFIER_CONFLICT", "Provider identifier already exists", nil)
		case errors.As(err, &vErr):
			errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", "Provider configuration is invalid", vErr.Issues)
		case errors.Is(err, catalog.ErrInvalidInput):
			errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		default:
			errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create provider", nil)
		}
		return
	}

	// 返回响应（凭证脱敏），warning 级别的校验问题一并带回
	c.JSON(http.StatusCreated, gin.H{
		"provider": catalog.ToProviderResponse(provider, req.AuthConfig),
		"warnings": issues,
	})
}

// GetProvider 获取单个供应商
// @Summary 获取单个供应商
// @Tags providers
// @Produce json
// @Param id path int true "供应商 ID"
// @Success 200 {object} catalog.ProviderResponse
// @Failure 404 {object} catalog.ErrorResponse
// @Router /api/providers/{id} [get]
func (h *CatalogHandler) GetProvider(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	provider, err := h.service.GetProvider(id)
	if err != nil {
		if errors.Is(err, catalog.ErrProviderNotFound) {
			errorJSON(c, http.StatusNotFound, "NOT_FOUND", "Provider not found", nil)
			return
		}
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get provider", nil)
		return
	}

	authCfg, err := h.service.DecryptedAuthConfig(provider)
	if err != nil {
		// 解密失败不致命，退化为不带凭证的响应
		authCfg = nil
	}
	c.JSON(http.StatusOK, catalog.ToProviderResponse(provider, authCfg))
}

// ListProviders 获取供应商列表
// @Summary 获取供应商列表
// @Tags providers
// @Produce json
// @Param status query string false "按状态过滤 (active/inactive/draft)"
// @Success 200 {array} catalog.ProviderResponse
// @Router /api/providers [get]
func (h *CatalogHandler) ListProviders(c *gin.Context) {
	filter := catalog.ProviderFilter{Status: c.Query("status")}

	providers, err := h.service.ListProviders(filter)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list providers", nil)
		return
	}

	data := make([]*catalog.ProviderResponse, len(providers))
	for i, p := range providers {
		data[i] = catalog.ToProviderResponse(p, nil)
	}
	c.JSON(http.StatusOK, gin.H{"data": data, "total": len(data)})
}

// UpdateProvider 更新供应商
// @Summary 更新供应商
// @Tags providers
// @Accept json
// @Produce json
// @Param id path int true "供应商 ID"
// @Param provider body catalog.UpdateProviderRequest true "更新信息"
// @Success 200 {object} catalog.ProviderResponse
// @Failure 400 {object} catalog.ErrorResponse
// @Failure 404 {object} catalog.ErrorResponse
// @Router /api/providers/{id} [put]
func (h *CatalogHandler) UpdateProvider(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req catalog.UpdateProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request parameters", err.Error())
		return
	}

	provider, issues, err := h.service.UpdateProvider(id, req)
	if err != nil {
		var vErr *catalog.ValidationError
		switch {
		case errors.Is(err, catalog.ErrProviderNotFound):
			errorJSON(c, http.StatusNotFound, "NOT_FOUND", "Provider not found", nil)
		case errors.As(err, &vErr):
			errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", "Provider configuration is invalid", vErr.Issues)
		case errors.Is(err, catalog.ErrInvalidInput):
			errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		default:
			errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update provider", nil)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"provider": catalog.ToProviderResponse(provider, req.AuthConfig),
		"warnings": issues,
	})
}

// DeleteProvider 删除供应商（软删除）
// @Summary 删除供应商
// @Tags providers
// @Param id path int true "供应商 ID"
// @Success 204 "No Content"
// @Failure 404 {object} catalog.ErrorResponse
// @Router /api/providers/{id} [delete]
func (h *CatalogHandler) DeleteProvider(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteProvider(id); err != nil {
		if errors.Is(err, catalog.ErrProviderNotFound) {
			errorJSON(c, http.StatusNotFound, "NOT_FOUND", "Provider not found", nil)
			return
		}
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete provider", nil)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateModel 为供应商添加模型
// @Summary 添加模型
// @Tags models
// @Accept json
// @Produce json
// @Param model body catalog.CreateModelRequest true "模型信息"
// @Success 201 {object} models.Model
// @Failure 400 {object} catalog.ErrorResponse
// @Failure 404 {object} catalog.ErrorResponse
// @Router /api/models [post]
func (h *CatalogHandler) CreateModel(c *gin.Context) {
	var req catalog.CreateModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request parameters", err.Error())
		return
	}

	model, err := h.service.CreateModel(req)
	if err != nil {
		var vErr *catalog.ValidationError
		switch {
		case errors.Is(err, catalog.ErrProviderNotFound):
			errorJSON(c, http.StatusNotFound, "NOT_FOUND", "Provider not found", nil)
		case errors.As(err, &vErr):
			errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", "Model configuration is invalid", vErr.Issues)
		default:
			errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create model", nil)
		}
		return
	}
	c.JSON(http.StatusCreated, model)
}

// ListModels 获取供应商的模型列表
// @Summary 获取供应商的模型列表
// @Tags models
// @Produce json
// @Param id path int true "供应商 ID"
// @Success 200 {array} models.Model
// @Failure 404 {object} catalog.ErrorResponse
// @Router /api/providers/{id}/models [get]
func (h *CatalogHandler) ListModels(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	list, err := h.service.ListModels(id)
	if err != nil {
		if errors.Is(err, catalog.ErrProviderNotFound) {
			errorJSON(c, http.StatusNotFound, "NOT_FOUND", "Provider not found", nil)
			return
		}
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list models", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": len(list)})
}

// DeleteModel 删除模型
// @Summary 删除模型
// @Tags models
// @Param id path int true "模型 ID"
// @Success 204 "No Content"
// @Failure 404 {object} catalog.ErrorResponse
// @Router /api/models/{id} [delete]
func (h *CatalogHandler) DeleteModel(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteModel(id); err != nil {
		if errors.Is(err, catalog.ErrModelNotFound) {
			errorJSON(c, http.StatusNotFound, "NOT_FOUND", "Model not found", nil)
			return
		}
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete model", nil)
		return
	}
	c.Status(http.StatusNoContent)
}
