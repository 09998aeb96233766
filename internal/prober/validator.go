package prober

import (
	"fmt"
	"net/url"

	"github.com/Xingyelan/Vega-Registry/internal/models"
)

// Severity 校验问题级别
type Severity string

// 校验问题级别常量
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue 静态校验问题
type Issue struct {
	Field    string   `json:"field"`
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// 校验问题代码常量
const (
	CodeInvalidURL            = "invalid_url"
	CodeInsecureURL           = "insecure_url"
	CodeMissingAuthField      = "missing_auth_field"
	CodeUnknownAuthMethod     = "unknown_auth_method"
	CodeCapabilityConflict    = "capability_conflict"
	CodeInvalidContextLength  = "invalid_context_length"
	CodeContextLengthExceeded = "context_length_exceeded"
	CodeContextLengthUnusual  = "context_length_unusual"
)

// 各认证方式要求的凭证字段
var requiredAuthFields = map[string][]string{
	models.AuthMethodAPIKey: {"api_key"},
	models.AuthMethodOAuth2: {"client_id", "client_secret"},
	models.AuthMethodAWSIAM: {"access_key_id", "secret_access_key", "region"},
}

// ValidateProvider 供应商静态配置校验
// 与在线探测无关，只检查配置自身的一致性；
// 非 HTTPS 端点和异常大的上下文长度只告警，不报错
func ValidateProvider(provider *models.Provider, cfg *models.AuthConfig) []Issue {
	var issues []Issue

	// 端点 URL
	parsed, err := url.Parse(provider.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		issues = append(issues, Issue{
			Field:    "base_url",
			Code:     CodeInvalidURL,
			Severity: SeverityError,
			Message:  "base_url must be a valid absolute URL",
		})
	} else if parsed.Scheme != "https" {
		issues = append(issues, Issue{
			Field:    "base_url",
			Code:     CodeInsecureURL,
			Severity: SeverityWarning,
			Message:  "base_url is not HTTPS, credentials will be sent in the clear",
		})
	}

	// 认证字段
	switch provider.AuthMethod {
	case models.AuthMethodAPIKey, models.AuthMethodOAuth2, models.AuthMethodAWSIAM:
		for _, field := range requiredAuthFields[provider.AuthMethod] {
			if cfg == nil || cfg.Fields[field] == "" {
				issues = append(issues, Issue{
					Field:    "auth_config." + field,
					Code:     CodeMissingAuthField,
					Severity: SeverityError,
					Message:  fmt.Sprintf("auth method %q requires field %q", provider.AuthMethod, field),
				})
			}
		}
	case models.AuthMethodCustom:
		if cfg == nil || len(cfg.Headers) == 0 {
			issues = append(issues, Issue{
				Field:    "auth_config.headers",
				Code:     CodeMissingAuthField,
				Severity: SeverityError,
				Message:  "custom auth requires at least one header",
			})
		}
	default:
		issues = append(issues, Issue{
			Field:    "auth_method",
			Code:     CodeUnknownAuthMethod,
			Severity: SeverityError,
			Message:  fmt.Sprintf("unknown auth method %q", provider.AuthMethod),
		})
	}

	// 能力声明一致性
	caps, err := provider.ParseCapabilities()
	if err != nil {
		issues = append(issues, Issue{
			Field:    "capabilities",
			Code:     CodeCapabilityConflict,
			Severity: SeverityError,
			Message:  "capabilities is not valid JSON",
		})
		return issues
	}

	if caps.SupportsFunctionCalling && !caps.SupportsTools {
		issues = append(issues, Issue{
			Field:    "capabilities.supports_function_calling",
			Code:     CodeCapabilityConflict,
			Severity: SeverityError,
			Message:  "function calling requires tool support",
		})
	}

	if caps.MaxContextLength < 0 {
		issues = append(issues, Issue{
			Field:    "capabilities.max_context_length",
			Code:     CodeInvalidContextLength,
			Severity: SeverityError,
			Message:  "max_context_length cannot be negative",
		})
	} else if caps.MaxContextLength > 2_000_000 {
		issues = append(issues, Issue{
			Field:    "capabilities.max_context_length",
			Code:     CodeContextLengthUnusual,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("max_context_length %d is unusually large", caps.MaxContextLength),
		})
	}

	return issues
}

// ValidateModel 模型静态校验
// 模型上下文长度不得超过所属供应商声明的上限
func ValidateModel(model *models.Model, providerCaps *models.Capabilities) []Issue {
	var issues []Issue

	if model.ContextLength < 0 {
		issues = append(issues, Issue{
			Field:    "context_length",
			Code:     CodeInvalidContextLength,
			Severity: SeverityError,
			Message:  "context_length cannot be negative",
		})
	}

	if providerCaps != nil && providerCaps.MaxContextLength > 0 && model.ContextLength > providerCaps.MaxContextLength {
		issues = append(issues, Issue{
			Field:    "context_length",
			Code:     CodeContextLengthExceeded,
			Severity: SeverityError,
			Message: fmt.Sprintf("model context length %d exceeds provider maximum %d",
				model.ContextLength, providerCaps.MaxContextLength),
		})
	}

	return issues
}

// HasErrors 是否包含 error 级别问题
func HasErrors(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}
