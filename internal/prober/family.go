package prober

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/Xingyelan/Vega-Registry/internal/models"
	openai "github.com/sashabaranov/go-openai"
)

// Family 供应商家族接口
// 不同家族的认证头构造、测试端点和模型列表响应格式各不相同；
// 新家族只需实现本接口，探测器本身不感知家族差异
type Family interface {
	// Name 家族名称
	Name() string

	// BuildAuthHeaders 构造认证请求头
	BuildAuthHeaders(cfg *models.AuthConfig) map[string]string

	// TestEndpoint 认证测试端点
	TestEndpoint(baseURL string) string

	// ModelsEndpoint 模型列表端点
	ModelsEndpoint(baseURL string) string

	// ParseModelList 解析模型列表响应为模型标识符
	ParseModelList(body []byte) []string
}

// ModelLister 家族可选实现：使用专用客户端获取模型列表
// 实现本接口的家族优先于 ModelsEndpoint + ParseModelList 的通用路径
type ModelLister interface {
	ListModels(ctx context.Context, baseURL string, cfg *models.AuthConfig) ([]string, error)
}

// FamilyFor 根据供应商解析所属家族
// 先按标识符前缀匹配，兜底按认证方式选择通用家族
func FamilyFor(provider *models.Provider) Family {
	id := strings.ToLower(provider.Identifier)
	switch {
	case strings.HasPrefix(id, "openai"), strings.HasPrefix(id, "copilot"), strings.HasPrefix(id, "azure-openai"):
		return &openAIFamily{}
	case strings.HasPrefix(id, "bedrock"), strings.HasPrefix(id, "aws"):
		return &bedrockFamily{}
	}
	if provider.AuthMethod == models.AuthMethodAWSIAM {
		return &bedrockFamily{}
	}
	return &genericFamily{authMethod: provider.AuthMethod}
}

// ==================== OpenAI 家族 ====================

// openAIFamily OpenAI 及兼容供应商（含 Copilot、Azure OpenAI 网关）
type openAIFamily struct{}

func (f *openAIFamily) Name() string { return "openai" }

func (f *openAIFamily) BuildAuthHeaders(cfg *models.AuthConfig) map[string]string {
	headers := map[string]string{}
	if cfg == nil {
		return headers
	}
	if key := credentialField(cfg, "api_key", "token", "access_token"); key != "" {
		headers["Authorization"] = "Bearer " + key
	}
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	return headers
}

func (f *openAIFamily) TestEndpoint(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/v1/models"
}

func (f *openAIFamily) ModelsEndpoint(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/v1/models"
}

func (f *openAIFamily) ParseModelList(body []byte) []string {
	var result struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil
	}
	ids := make([]string, 0, len(result.Data))
	for _, m := range result.Data {
		if m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// ListModels 通过 go-openai 客户端获取模型列表
func (f *openAIFamily) ListModels(ctx context.Context, baseURL string, cfg *models.AuthConfig) ([]string, error) {
	clientConfig := openai.DefaultConfig(credentialField(cfg, "api_key", "token", "access_token"))
	clientConfig.BaseURL = strings.TrimRight(baseURL, "/") + "/v1"

	client := openai.NewClientWithConfig(clientConfig)
	list, err := client.ListModels(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		if m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

// ==================== Bedrock 家族 ====================

// bedrockFamily AWS Bedrock 供应商
// 探测阶段只构造占位签名头，不做真实 SigV4 签名
type bedrockFamily struct{}

func (f *bedrockFamily) Name() string { return "bedrock" }

func (f *bedrockFamily) BuildAuthHeaders(cfg *models.AuthConfig) map[string]string {
	headers := map[string]string{}
	if cfg == nil {
		return headers
	}
	accessKey := credentialField(cfg, "access_key_id")
	region := credentialField(cfg, "region")
	if region == "" {
		region = "us-east-1"
	}
	if accessKey != "" {
		// 占位签名：携带凭证标识即可触发远端的认证路径
		headers["Authorization"] = "AWS4-HMAC-SHA256 Credential=" + accessKey + "/" +
			time.Now().UTC().Format("20060102") + "/" + region + "/bedrock/aws4_request"
		headers["X-Amz-Date"] = time.Now().UTC().Format("20060102T150405Z")
	}
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	return headers
}

func (f *bedrockFamily) TestEndpoint(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/foundation-models"
}

func (f *bedrockFamily) ModelsEndpoint(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/foundation-models"
}

func (f *bedrockFamily) ParseModelList(body []byte) []string {
	var result struct {
		ModelSummaries []struct {
			ModelID string `json:"modelId"`
		} `json:"modelSummaries"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil
	}
	ids := make([]string, 0, len(result.ModelSummaries))
	for _, m := range result.ModelSummaries {
		if m.ModelID != "" {
			ids = append(ids, m.ModelID)
		}
	}
	return ids
}

// ==================== 通用家族 ====================

// genericFamily 未识别供应商的兜底家族，按认证方式构造请求头
type genericFamily struct {
	authMethod string
}

func (f *genericFamily) Name() string { return "generic" }

func (f *genericFamily) BuildAuthHeaders(cfg *models.AuthConfig) map[string]string {
	headers := map[string]string{}
	if cfg == nil {
		return headers
	}
	switch f.authMethod {
	case models.AuthMethodAPIKey, models.AuthMethodOAuth2:
		if key := credentialField(cfg, "api_key", "token", "access_token"); key != "" {
			headers["Authorization"] = "Bearer " + key
		}
	case models.AuthMethodAWSIAM:
		return (&bedrockFamily{}).BuildAuthHeaders(cfg)
	}
	// custom 认证：原样注入配置的请求头
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	return headers
}

func (f *genericFamily) TestEndpoint(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/v1/models"
}

func (f *genericFamily) ModelsEndpoint(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/v1/models"
}

// ParseModelList 依次尝试 OpenAI 格式、Bedrock 格式和裸数组
func (f *genericFamily) ParseModelList(body []byte) []string {
	if ids := (&openAIFamily{}).ParseModelList(body); len(ids) > 0 {
		return ids
	}
	if ids := (&bedrockFamily{}).ParseModelList(body); len(ids) > 0 {
		return ids
	}

	var bare []string
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare
	}
	return nil
}

// credentialField 按候选键顺序取第一个非空凭证字段
func credentialField(cfg *models.AuthConfig, keys ...string) string {
	if cfg == nil || cfg.Fields == nil {
		return ""
	}
	for _, k := range keys {
		if v := cfg.Fields[k]; v != "" {
			return v
		}
	}
	return ""
}
