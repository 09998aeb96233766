package prober

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Xingyelan/Vega-Registry/internal/models"
	"github.com/stretchr/testify/assert"
)

func testProvider(baseURL string) *models.Provider {
	return &models.Provider{
		Identifier: "test-upstream",
		Name:       "Test Upstream",
		BaseURL:    baseURL,
		AuthMethod: models.AuthMethodAPIKey,
		Status:     models.ProviderStatusActive,
	}
}

// TestCheckEndpoint_Reachable 2xx 响应视为可达
func TestCheckEndpoint_Reachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := NewProber(5 * time.Second)
	result := p.CheckEndpoint(context.Background(), server.URL)

	assert.True(t, result.Success)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Empty(t, result.Error)
}

// TestCheckEndpoint_ClientErrorStillReachable 4xx 表示远端活着，仍算可达
func TestCheckEndpoint_ClientErrorStillReachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	p := NewProber(5 * time.Second)
	result := p.CheckEndpoint(context.Background(), server.URL)

	assert.True(t, result.Success)
	assert.Equal(t, http.StatusNotFound, result.StatusCode)
}

// TestCheckEndpoint_ServerError 5xx 视为不可达
func TestCheckEndpoint_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := NewProber(5 * time.Second)
	result := p.CheckEndpoint(context.Background(), server.URL)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "HTTP 500")
}

// TestCheckEndpoint_Unreachable 网络层失败视为不可达
func TestCheckEndpoint_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // 立即关闭，端口不再监听

	p := NewProber(2 * time.Second)
	result := p.CheckEndpoint(context.Background(), server.URL)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "endpoint unreachable")
}

// TestCheckEndpoint_HeadFallsBackToGet HEAD 不被支持时回退 GET
func TestCheckEndpoint_HeadFallsBackToGet(t *testing.T) {
	var methods []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := NewProber(5 * time.Second)
	result := p.CheckEndpoint(context.Background(), server.URL)

	assert.True(t, result.Success)
	assert.Equal(t, []string{http.MethodHead, http.MethodGet}, methods)
}

// TestCheckAuth_StatusMapping 401/403/其它状态码的判定
func TestCheckAuth_StatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		success   bool
		wantError string
	}{
		{"成功", http.StatusOK, true, ""},
		{"凭证无效", http.StatusUnauthorized, false, "invalid credentials"},
		{"无访问权限", http.StatusForbidden, false, "access forbidden"},
		{"非标准状态码宽松放行", http.StatusTeapot, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			provider := testProvider(server.URL)
			cfg := &models.AuthConfig{Fields: map[string]string{"api_key": "sk-test"}}

			p := NewProber(5 * time.Second)
			result := p.CheckAuth(context.Background(), provider, cfg, FamilyFor(provider))

			assert.Equal(t, tt.success, result.Success)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, result.Error)
			}
		})
	}
}

// TestCheckAuth_SendsBearerHeader API Key 凭证以 Bearer 头发送
func TestCheckAuth_SendsBearerHeader(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	provider := testProvider(server.URL)
	cfg := &models.AuthConfig{Fields: map[string]string{"api_key": "sk-secret"}}

	p := NewProber(5 * time.Second)
	p.CheckAuth(context.Background(), provider, cfg, FamilyFor(provider))

	assert.Equal(t, "Bearer sk-secret", gotAuth)
}

// TestCheckAuth_CustomTestEndpoint 配置的测试端点覆盖家族默认值
func TestCheckAuth_CustomTestEndpoint(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	provider := testProvider(server.URL)
	cfg := &models.AuthConfig{
		Fields:       map[string]string{"api_key": "sk-test"},
		TestEndpoint: server.URL + "/custom/ping",
	}

	p := NewProber(5 * time.Second)
	result := p.CheckAuth(context.Background(), provider, cfg, FamilyFor(provider))

	assert.True(t, result.Success)
	assert.Equal(t, "/custom/ping", gotPath)
}

// TestProbe_FullPipeline 完整流水线：可达 + 认证通过 + 模型发现
func TestProbe_FullPipeline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/models" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"data":[{"id":"model-a"},{"id":"model-b"}]}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	provider := testProvider(server.URL)
	cfg := &models.AuthConfig{Fields: map[string]string{"api_key": "sk-test"}}

	p := NewProber(5 * time.Second)
	result := p.Probe(context.Background(), provider, cfg)

	assert.True(t, result.Success)
	assert.Empty(t, result.Error)
	assert.Equal(t, []string{"model-a", "model-b"}, result.AvailableModels)
	assert.False(t, result.CheckedAt.IsZero())
}

// TestProbe_StopsAtAuthFailure 认证失败终止流水线并带回错误
func TestProbe_StopsAtAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/models" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	provider := testProvider(server.URL)
	p := NewProber(5 * time.Second)
	result := p.Probe(context.Background(), provider, &models.AuthConfig{})

	assert.False(t, result.Success)
	assert.Equal(t, "invalid credentials", result.Error)
	assert.Empty(t, result.AvailableModels)
}

// TestProbe_ModelDiscoveryBestEffort 模型发现失败不影响整体结论
func TestProbe_ModelDiscoveryBestEffort(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/models" && r.Header.Get("Authorization") == "" {
			// 认证检查不带凭证也放行（非 401/403）
			w.Write([]byte(`not-json`))
			return
		}
		w.Write([]byte(`not-json`))
	}))
	defer server.Close()

	provider := testProvider(server.URL)
	p := NewProber(5 * time.Second)
	result := p.Probe(context.Background(), provider, &models.AuthConfig{})

	assert.True(t, result.Success)
	assert.Empty(t, result.AvailableModels)
}

// TestFamilyFor 家族解析规则
func TestFamilyFor(t *testing.T) {
	tests := []struct {
		identifier string
		authMethod string
		want       string
	}{
		{"openai", models.AuthMethodAPIKey, "openai"},
		{"openai-basic", models.AuthMethodAPIKey, "openai"},
		{"copilot", models.AuthMethodOAuth2, "openai"},
		{"azure-openai-eastus", models.AuthMethodAPIKey, "openai"},
		{"bedrock", models.AuthMethodAWSIAM, "bedrock"},
		{"aws-bedrock", models.AuthMethodAWSIAM, "bedrock"},
		{"my-custom-llm", models.AuthMethodAWSIAM, "bedrock"},
		{"my-custom-llm", models.AuthMethodAPIKey, "generic"},
		{"anthropic", models.AuthMethodAPIKey, "generic"},
	}

	for _, tt := range tests {
		fam := FamilyFor(&models.Provider{Identifier: tt.identifier, AuthMethod: tt.authMethod})
		if fam.Name() != tt.want {
			t.Errorf("FamilyFor(%q, %s) = %s, want %s", tt.identifier, tt.authMethod, fam.Name(), tt.want)
		}
	}
}

// TestGenericFamily_ParseModelList 通用家族依次尝试多种响应格式
func TestGenericFamily_ParseModelList(t *testing.T) {
	fam := &genericFamily{authMethod: models.AuthMethodAPIKey}

	openAIBody := []byte(`{"data":[{"id":"m1"}]}`)
	assert.Equal(t, []string{"m1"}, fam.ParseModelList(openAIBody))

	bedrockBody := []byte(`{"modelSummaries":[{"modelId":"anthropic.claude-v2"}]}`)
	assert.Equal(t, []string{"anthropic.claude-v2"}, fam.ParseModelList(bedrockBody))

	bareBody := []byte(`["a","b"]`)
	assert.Equal(t, []string{"a", "b"}, fam.ParseModelList(bareBody))

	assert.Nil(t, fam.ParseModelList([]byte(`garbage`)))
}

// TestBedrockFamily_AuthHeaders 占位签名头携带凭证标识
func TestBedrockFamily_AuthHeaders(t *testing.T) {
	fam := &bedrockFamily{}
	cfg := &models.AuthConfig{Fields: map[string]string{
		"access_key_id": "AKIAEXAMPLE",
		"region":        "eu-west-1",
	}}

	headers := fam.BuildAuthHeaders(cfg)
	assert.Contains(t, headers["Authorization"], "AWS4-HMAC-SHA256 Credential=AKIAEXAMPLE/")
	assert.Contains(t, headers["Authorization"], "/eu-west-1/bedrock/aws4_request")
	assert.NotEmpty(t, headers["X-Amz-Date"])
}

// TestBuildAuthHeaders_NilConfig 空配置不应 panic
func TestBuildAuthHeaders_NilConfig(t *testing.T) {
	for _, fam := range []Family{&openAIFamily{}, &bedrockFamily{}, &genericFamily{authMethod: models.AuthMethodAPIKey}} {
		headers := fam.BuildAuthHeaders(nil)
		assert.Empty(t, headers)
	}
}
