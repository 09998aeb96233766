package registry

import (
	"time"

	"github.com/Xingyelan/Vega-Registry/internal/models"
)

// 注册表视角的供应商可用性常量
const (
	StatusAvailable   = "available"
	StatusUnavailable = "unavailable"
	StatusError       = "error"
)

// ProviderDetails 注册表缓存条目
// Provider + 模型列表 + 能力 + 健康派生状态的反范式拼接；
// 整条在缓存刷新时重建，绝不按字段局部修改
type ProviderDetails struct {
	ID           string              `json:"id"` // 供应商标识符
	ProviderID   uint                `json:"provider_id,omitempty"`
	Name         string              `json:"name"`
	BaseURL      string              `json:"base_url"`
	Models       []string            `json:"models"`
	DefaultModel string              `json:"default_model,omitempty"`
	Capabilities models.Capabilities `json:"capabilities"`
	Status       string              `json:"status"` // available/unavailable/error
	LastChecked  time.Time           `json:"last_checked"`
	Legacy       bool                `json:"legacy"` // 来自旧式兜底列表
}

// Requirements 能力过滤条件
// Model 为 "*" 时匹配任何至少有一个模型的供应商
type Requirements struct {
	SupportsSystemMessages bool     `json:"supports_system_messages"`
	SupportsStreaming      bool     `json:"supports_streaming"`
	SupportsTools          bool     `json:"supports_tools"`
	MinContextLength       int      `json:"min_context_length"`
	RequiredRoles          []string `json:"required_roles"`
	Model                  string   `json:"model"`
}

// Status 注册表运行状态
type Status struct {
	ProviderCount  int       `json:"provider_count"`
	AvailableCount int       `json:"available_count"`
	LegacyCount    int       `json:"legacy_count"`
	LastRefresh    time.Time `json:"last_refresh"`
	CacheTTL       string    `json:"cache_ttl"`
	NextRefresh    time.Time `json:"next_refresh"`
}

// Satisfies 检查能力是否满足全部过滤条件
func (d *ProviderDetails) Satisfies(req Requirements) bool {
	caps := d.Capabilities

	if req.SupportsSystemMessages && !caps.SupportsSystemMessages {
		return false
	}
	if req.SupportsStreaming && !caps.SupportsStreaming {
		return false
	}
	if req.SupportsTools && !caps.SupportsTools {
		return false
	}
	if req.MinContextLength > 0 && caps.MaxContextLength < req.MinContextLength {
		return false
	}

	for _, role := range req.RequiredRoles {
		if !containsString(caps.SupportedRoles, role) {
			return false
		}
	}

	if req.Model != "" {
		if req.Model == "*" {
			if len(d.Models) == 0 {
				return false
			}
		} else if !containsString(d.Models, req.Model) {
			return false
		}
	}

	return true
}

// Score 供应商评分
// min(maxContextLength/1000, 100) + 10·系统消息 + 5·流式 + 5·工具 + 角色数
func (d *ProviderDetails) Score() int {
	caps := d.Capabilities

	score := caps.MaxContextLength / 1000
	if score > 100 {
		score = 100
	}
	if caps.SupportsSystemMessages {
		score += 10
	}
	if caps.SupportsStreaming {
		score += 5
	}
	if caps.SupportsTools {
		score += 5
	}
	score += len(caps.SupportedRoles)

	return score
}

func containsString(list []string, target string) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}
