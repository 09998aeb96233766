package migration

import (
	"reflect"
	"testing"
)

func TestConvertCredentials_OpenAI(t *testing.T) {
	creds := map[string]string{
		"openai_api_key": "sk-abc",
		"org_id":         "org-123",
		"proxy_url":      "http://proxy.local", // 白名单外，丢弃
	}

	out := convertCredentials("openai", creds)

	expected := map[string]string{
		"api_key":      "sk-abc",
		"organization": "org-123",
	}
	if !reflect.DeepEqual(out, expected) {
		t.Errorf("期望 %v, 实际 %v", expected, out)
	}
}

func TestConvertCredentials_Bedrock(t *testing.T) {
	creds := map[string]string{
		"aws_access_key_id":     "AKIA123",
		"aws_secret_access_key": "secret",
		"aws_region":            "us-east-1",
		"aws_session_token":     "token",
	}

	out := convertCredentials("Bedrock", creds) // 家族名大小写不敏感

	if out["access_key_id"] != "AKIA123" {
		t.Errorf("access_key_id 映射错误: %v", out)
	}
	if out["secret_access_key"] != "secret" {
		t.Errorf("secret_access_key 映射错误: %v", out)
	}
	if out["region"] != "us-east-1" {
		t.Errorf("region 映射错误: %v", out)
	}
	if out["session_token"] != "token" {
		t.Errorf("session_token 映射错误: %v", out)
	}
}

func TestConvertCredentials_AlreadyGeneric(t *testing.T) {
	// 已经是通用字段名的凭证原样保留
	out := convertCredentials("anthropic", map[string]string{"api_key": "sk-ant"})
	if out["api_key"] != "sk-ant" {
		t.Errorf("通用字段应保留: %v", out)
	}
}

func TestConvertCredentials_UnknownFamilyPassthrough(t *testing.T) {
	creds := map[string]string{"custom_token": "xyz", "endpoint": "http://x"}

	out := convertCredentials("mystery-ai", creds)

	if !reflect.DeepEqual(out, creds) {
		t.Errorf("未知家族应原样透传: %v", out)
	}
	// 透传是副本，不是同一个 map
	out["custom_token"] = "changed"
	if creds["custom_token"] != "xyz" {
		t.Error("透传不应共享底层 map")
	}
}

func TestConvertCredentials_CopilotTokenRename(t *testing.T) {
	out := convertCredentials("copilot", map[string]string{"github_token": "ghp_abc"})
	if out["api_key"] != "ghp_abc" {
		t.Errorf("github_token 应映射为 api_key: %v", out)
	}
}

func TestConvertModels_FiltersUndeclared(t *testing.T) {
	kept, dropped := convertModels(
		[]string{"gpt-4o", "gpt-3.5-turbo", "custom-finetune"},
		[]string{"gpt-4o", "gpt-4o-mini"},
	)

	if !reflect.DeepEqual(kept, []string{"gpt-4o"}) {
		t.Errorf("期望保留 [gpt-4o], 实际 %v", kept)
	}
	if !reflect.DeepEqual(dropped, []string{"gpt-3.5-turbo", "custom-finetune"}) {
		t.Errorf("丢弃列表错误: %v", dropped)
	}
}

func TestConvertModels_NoDeclaredModelsKeepsAll(t *testing.T) {
	selected := []string{"anything", "goes"}

	kept, dropped := convertModels(selected, nil)

	if !reflect.DeepEqual(kept, selected) {
		t.Errorf("目标未声明模型时应全量保留: %v", kept)
	}
	if len(dropped) != 0 {
		t.Errorf("不应有丢弃: %v", dropped)
	}
}

func TestConvertModels_EmptySelection(t *testing.T) {
	kept, dropped := convertModels(nil, []string{"gpt-4o"})
	if len(kept) != 0 || len(dropped) != 0 {
		t.Errorf("空选择应产生空结果: kept=%v dropped=%v", kept, dropped)
	}
}
