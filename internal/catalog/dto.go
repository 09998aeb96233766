package catalog

import (
	"time"

	"github.com/Xingyelan/Vega-Registry/internal/models"
)

// CreateProviderRequest 创建供应商请求
type CreateProviderRequest struct {
	Identifier   string               `json:"identifier" binding:"required"`
	Name         string               `json:"name" binding:"required"`
	BaseURL      string               `json:"base_url" binding:"required,url"`
	AuthMethod   string               `json:"auth_method" binding:"required,oneof=api_key oauth2 aws_iam custom"`
	AuthConfig   *models.AuthConfig   `json:"auth_config"`
	Capabilities *models.Capabilities `json:"capabilities"`
	Status       string               `json:"status" binding:"omitempty,oneof=active inactive draft"`
	IsSystem     bool                 `json:"is_system"`
}

// UpdateProviderRequest 更新供应商请求
type UpdateProviderRequest struct {
	Name         *string              `json:"name"`
	BaseURL      *string              `json:"base_url" binding:"omitempty,url"`
	AuthMethod   *string              `json:"auth_method" binding:"omitempty,oneof=api_key oauth2 aws_iam custom"`
	AuthConfig   *models.AuthConfig   `json:"auth_config"`
	Capabilities *models.Capabilities `json:"capabilities"`
	Status       *string              `json:"status" binding:"omitempty,oneof=active inactive draft"`
}

// CreateModelRequest 创建模型请求
type CreateModelRequest struct {
	ProviderID    uint   `json:"provider_id" binding:"required"`
	Identifier    string `json:"identifier" binding:"required"`
	Name          string `json:"name" binding:"required"`
	ContextLength int    `json:"context_length"`
	IsDefault     bool   `json:"is_default"`
}

// ProviderResponse 供应商响应（凭证脱敏）
type ProviderResponse struct {
	ID           uint                 `json:"id"`
	Identifier   string               `json:"identifier"`
	Name         string               `json:"name"`
	BaseURL      string               `json:"base_url"`
	AuthMethod   string               `json:"auth_method"`
	AuthConfig   *models.AuthConfig   `json:"auth_config,omitempty"`
	Capabilities *models.Capabilities `json:"capabilities,omitempty"`
	Status       string               `json:"status"`
	IsSystem     bool                 `json:"is_system"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail 错误详情
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// MaskSecret 凭证脱敏
// 格式: 前3位****后4位
func MaskSecret(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:3] + "****" + secret[len(secret)-4:]
}

// ToProviderResponse 转换为响应（凭证脱敏）
func ToProviderResponse(provider *models.Provider, authCfg *models.AuthConfig) *ProviderResponse {
	resp := &ProviderResponse{
		ID:         provider.ID,
		Identifier: provider.Identifier,
		Name:       provider.Name,
		BaseURL:    provider.BaseURL,
		AuthMethod: provider.AuthMethod,
		Status:     provider.Status,
		IsSystem:   provider.IsSystem,
		CreatedAt:  provider.CreatedAt,
		UpdatedAt:  provider.UpdatedAt,
	}

	if caps, err := provider.ParseCapabilities(); err == nil {
		resp.Capabilities = caps
	}

	// 凭证字段脱敏后返回
	if authCfg != nil {
		masked := &models.AuthConfig{
			Fields:       map[string]string{},
			Headers:      map[string]string{},
			TestEndpoint: authCfg.TestEndpoint,
		}
		for k, v := range authCfg.Fields {
			masked.Fields[k] = MaskSecret(v)
		}
		for k := range authCfg.Headers {
			masked.Headers[k] = "****"
		}
		resp.AuthConfig = masked
	}

	return resp
}
