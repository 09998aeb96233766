package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// AuthMethod 认证方式常量
const (
	AuthMethodAPIKey = "api_key"
	AuthMethodOAuth2 = "oauth2"
	AuthMethodAWSIAM = "aws_iam"
	AuthMethodCustom = "custom"
)

// ProviderStatus 供应商状态常量
const (
	ProviderStatusActive   = "active"
	ProviderStatusInactive = "inactive"
	ProviderStatusDraft    = "draft"
)

// Provider 供应商模型
// 用于存储 LLM 供应商的接入配置：端点、认证方式、能力声明
// Identifier 是稳定的 slug，创建后不可变更
type Provider struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Identifier   string         `gorm:"type:varchar(100);not null;uniqueIndex" json:"identifier"`
	Name         string         `gorm:"type:varchar(200);not null" json:"name"`
	BaseURL      string         `gorm:"type:varchar(255);not null" json:"base_url"`
	AuthMethod   string         `gorm:"type:varchar(20);not null;default:'api_key'" json:"auth_method"`
	AuthConfig   string         `gorm:"type:text" json:"auth_config"`  // JSON，凭证字段加密存储
	Capabilities string         `gorm:"type:text" json:"capabilities"` // JSON
	Status       string         `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"` // active/inactive/draft
	IsSystem     bool           `gorm:"not null;default:false" json:"is_system"`                       // 系统内置 vs 用户自定义
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"` // 软删除支持
}

// TableName 指定表名
func (Provider) TableName() string {
	return "providers"
}

// Capabilities 供应商能力声明
type Capabilities struct {
	MaxContextLength        int      `json:"max_context_length"`
	SupportedRoles          []string `json:"supported_roles"`
	SupportsStreaming       bool     `json:"supports_streaming"`
	SupportsTools           bool     `json:"supports_tools"`
	SupportsSystemMessages  bool     `json:"supports_system_messages"`
	SupportsFunctionCalling bool     `json:"supports_function_calling"`
	RateLimitRPM            int      `json:"rate_limit_rpm,omitempty"`
	RateLimitTPM            int      `json:"rate_limit_tpm,omitempty"`
}

// AuthConfig 认证配置
// Fields 存放认证方式相关的键值（api_key、access_key_id 等）
type AuthConfig struct {
	Fields       map[string]string `json:"fields"`
	Headers      map[string]string `json:"headers,omitempty"`
	TestEndpoint string            `json:"test_endpoint,omitempty"`
}

// ParseCapabilities 解析能力声明 JSON
func (p *Provider) ParseCapabilities() (*Capabilities, error) {
	caps := &Capabilities{}
	if p.Capabilities == "" {
		return caps, nil
	}
	if err := json.Unmarshal([]byte(p.Capabilities), caps); err != nil {
		return nil, err
	}
	return caps, nil
}

// SetCapabilities 序列化并写入能力声明
func (p *Provider) SetCapabilities(caps *Capabilities) error {
	data, err := json.Marshal(caps)
	if err != nil {
		return err
	}
	p.Capabilities = string(data)
	return nil
}

// ParseAuthConfig 解析认证配置 JSON
func (p *Provider) ParseAuthConfig() (*AuthConfig, error) {
	cfg := &AuthConfig{Fields: map[string]string{}}
	if p.AuthConfig == "" {
		return cfg, nil
	}
	if err := json.Unmarshal([]byte(p.AuthConfig), cfg); err != nil {
		return nil, err
	}
	if cfg.Fields == nil {
		cfg.Fields = map[string]string{}
	}
	return cfg, nil
}

// SetAuthConfig 序列化并写入认证配置
func (p *Provider) SetAuthConfig(cfg *AuthConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	p.AuthConfig = string(data)
	return nil
}
