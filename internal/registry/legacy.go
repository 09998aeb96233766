package registry

import (
	"time"

	"github.com/Xingyelan/Vega-Registry/internal/models"
)

// legacyProviders 旧式硬编码供应商兜底列表
// 仅在动态目录里找不到对应标识符时参与合并；
// 动态条目永远覆盖同标识符的旧式条目
func legacyProviders(now time.Time) []*ProviderDetails {
	return []*ProviderDetails{
		{
			ID:           "openai-basic",
			Name:         "OpenAI (Legacy)",
			BaseURL:      "https://api.openai.com",
			Models:       []string{"gpt-4o", "gpt-4o-mini", "gpt-3.5-turbo"},
			DefaultModel: "gpt-4o-mini",
			Capabilities: models.Capabilities{
				MaxContextLength:       128000,
				SupportedRoles:         []string{"system", "user", "assistant", "tool"},
				SupportsStreaming:      true,
				SupportsTools:          true,
				SupportsSystemMessages: true,
			},
			Status:      StatusAvailable,
			LastChecked: now,
			Legacy:      true,
		},
		{
			ID:           "anthropic-basic",
			Name:         "Anthropic (Legacy)",
			BaseURL:      "https://api.anthropic.com",
			Models:       []string{"claude-3-5-sonnet-20241022", "claude-3-5-haiku-20241022"},
			DefaultModel: "claude-3-5-sonnet-20241022",
			Capabilities: models.Capabilities{
				MaxContextLength:       200000,
				SupportedRoles:         []string{"system", "user", "assistant"},
				SupportsStreaming:      true,
				SupportsTools:          true,
				SupportsSystemMessages: true,
			},
			Status:      StatusAvailable,
			LastChecked: now,
			Legacy:      true,
		},
		{
			ID:           "bedrock-basic",
			Name:         "AWS Bedrock (Legacy)",
			BaseURL:      "https://bedrock-runtime.us-east-1.amazonaws.com",
			Models:       []string{"anthropic.claude-3-sonnet-20240229-v1:0", "amazon.titan-text-express-v1"},
			DefaultModel: "anthropic.claude-3-sonnet-20240229-v1:0",
			Capabilities: models.Capabilities{
				MaxContextLength:       200000,
				SupportedRoles:         []string{"system", "user", "assistant"},
				SupportsStreaming:      true,
				SupportsTools:          false,
				SupportsSystemMessages: true,
			},
			Status:      StatusAvailable,
			LastChecked: now,
			Legacy:      true,
		},
	}
}
