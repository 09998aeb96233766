package migration

import "strings"

// 旧式连接按供应商家族使用各自的凭证字段名，
// 迁移时映射为动态连接的通用字段
var credentialFieldMaps = map[string]map[string]string{
	"openai": {
		"openai_api_key": "api_key",
		"api_key":        "api_key",
		"organization":   "organization",
		"org_id":         "organization",
	},
	"anthropic": {
		"anthropic_api_key": "api_key",
		"api_key":           "api_key",
	},
	"bedrock": {
		"aws_access_key_id":     "access_key_id",
		"access_key_id":         "access_key_id",
		"aws_secret_access_key": "secret_access_key",
		"secret_access_key":     "secret_access_key",
		"aws_region":            "region",
		"region":                "region",
		"aws_session_token":     "session_token",
	},
	"copilot": {
		"github_token": "api_key",
		"api_key":      "api_key",
	},
}

// convertCredentials 把旧式凭证字段转换为通用字段
// 未知家族原样透传，未映射到的字段丢弃（映射表即白名单）
func convertCredentials(legacyProvider string, creds map[string]string) map[string]string {
	fieldMap, ok := credentialFieldMaps[strings.ToLower(legacyProvider)]
	if !ok {
		out := make(map[string]string, len(creds))
		for k, v := range creds {
			out[k] = v
		}
		return out
	}

	out := make(map[string]string, len(creds))
	for key, value := range creds {
		if target, mapped := fieldMap[strings.ToLower(key)]; mapped {
			out[target] = value
		}
	}
	return out
}

// convertModels 过滤掉目标供应商未声明的模型
// 目标未声明任何模型时全量保留（无从校验）
func convertModels(selected []string, available []string) (kept []string, dropped []string) {
	if len(available) == 0 {
		return selected, nil
	}
	set := make(map[string]struct{}, len(available))
	for _, id := range available {
		set[id] = struct{}{}
	}
	for _, id := range selected {
		if _, ok := set[id]; ok {
			kept = append(kept, id)
		} else {
			dropped = append(dropped, id)
		}
	}
	return kept, dropped
}
