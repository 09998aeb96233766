package catalog

import (
	"testing"

	"github.com/Xingyelan/Vega-Registry/internal/models"
	"github.com/Xingyelan/Vega-Registry/internal/prober"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEncryptionKey = []byte("0123456789abcdef0123456789abcdef")

func setupTestService(t *testing.T) *Service {
	repo := NewRepository(setupTestDB(t))
	return NewServiceWithEncryption(repo, testEncryptionKey)
}

func validCreateRequest(identifier string) CreateProviderRequest {
	return CreateProviderRequest{
		Identifier: identifier,
		Name:       "Test " + identifier,
		BaseURL:    "https://api.test.com",
		AuthMethod: models.AuthMethodAPIKey,
		AuthConfig: &models.AuthConfig{Fields: map[string]string{"api_key": "sk-test-1234567890"}},
		Capabilities: &models.Capabilities{
			MaxContextLength:  128000,
			SupportsStreaming: true,
		},
	}
}

func TestService_CreateProvider_Success(t *testing.T) {
	service := setupTestService(t)

	provider, issues, err := service.CreateProvider(validCreateRequest("openai"))
	require.NoError(t, err)
	require.NotNil(t, provider)
	assert.Empty(t, issues)
	assert.NotZero(t, provider.ID)
	// 未指定状态时默认 draft
	assert.Equal(t, models.ProviderStatusDraft, provider.Status)
}

func TestService_CreateProvider_ExplicitStatus(t *testing.T) {
	service := setupTestService(t)

	req := validCreateRequest("openai")
	req.Status = models.ProviderStatusActive

	provider, _, err := service.CreateProvider(req)
	require.NoError(t, err)
	assert.Equal(t, models.ProviderStatusActive, provider.Status)
}

func TestService_CreateProvider_DuplicateIdentifier(t *testing.T) {
	service := setupTestService(t)

	_, _, err := service.CreateProvider(validCreateRequest("openai"))
	require.NoError(t, err)

	_, _, err = service.CreateProvider(validCreateRequest("openai"))
	assert.ErrorIs(t, err, ErrIdentifierExists)
}

func TestService_CreateProvider_ValidationRejected(t *testing.T) {
	service := setupTestService(t)

	// 函数调用能力依赖工具支持，error 级别问题拒绝创建
	req := validCreateRequest("openai")
	req.Capabilities = &models.Capabilities{
		SupportsFunctionCalling: true,
		SupportsTools:           false,
	}

	_, issues, err := service.CreateProvider(req)
	require.Error(t, err)

	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.True(t, prober.HasErrors(issues))
}

func TestService_CreateProvider_WarningsReturned(t *testing.T) {
	service := setupTestService(t)

	// 非 HTTPS 只告警，创建仍然成功
	req := validCreateRequest("internal-llm")
	req.BaseURL = "http://llm.internal:8080"

	provider, issues, err := service.CreateProvider(req)
	require.NoError(t, err)
	assert.NotNil(t, provider)
	require.Len(t, issues, 1)
	assert.Equal(t, prober.SeverityWarning, issues[0].Severity)
}

func TestService_AuthConfig_EncryptedAtRest(t *testing.T) {
	service := setupTestService(t)

	provider, _, err := service.CreateProvider(validCreateRequest("openai"))
	require.NoError(t, err)

	// 落库的认证配置不含明文凭证
	stored, err := service.repo.FindByID(provider.ID)
	require.NoError(t, err)
	assert.NotContains(t, stored.AuthConfig, "sk-test-1234567890")

	// 解密回读得到原始凭证
	cfg, err := service.DecryptedAuthConfig(stored)
	require.NoError(t, err)
	assert.Equal(t, "sk-test-1234567890", cfg.Fields["api_key"])
}

func TestService_UpdateProvider_IdentifierImmutable(t *testing.T) {
	service := setupTestService(t)

	provider, _, err := service.CreateProvider(validCreateRequest("openai"))
	require.NoError(t, err)

	name := "Renamed"
	status := models.ProviderStatusActive
	updated, _, err := service.UpdateProvider(provider.ID, UpdateProviderRequest{
		Name:   &name,
		Status: &status,
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, models.ProviderStatusActive, updated.Status)
	// 标识符不可变更
	assert.Equal(t, "openai", updated.Identifier)
}

func TestService_UpdateProvider_KeepsAuthConfigWhenOmitted(t *testing.T) {
	service := setupTestService(t)

	provider, _, err := service.CreateProvider(validCreateRequest("openai"))
	require.NoError(t, err)

	name := "Renamed"
	_, _, err = service.UpdateProvider(provider.ID, UpdateProviderRequest{Name: &name})
	require.NoError(t, err)

	stored, _ := service.repo.FindByID(provider.ID)
	cfg, err := service.DecryptedAuthConfig(stored)
	require.NoError(t, err)
	assert.Equal(t, "sk-test-1234567890", cfg.Fields["api_key"])
}

func TestService_UpdateProvider_NotFound(t *testing.T) {
	service := setupTestService(t)

	name := "x"
	_, _, err := service.UpdateProvider(9999, UpdateProviderRequest{Name: &name})
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestService_CreateModel_Success(t *testing.T) {
	service := setupTestService(t)

	provider, _, err := service.CreateProvider(validCreateRequest("openai"))
	require.NoError(t, err)

	model, err := service.CreateModel(CreateModelRequest{
		ProviderID:    provider.ID,
		Identifier:    "gpt-4o",
		Name:          "GPT-4o",
		ContextLength: 128000,
		IsDefault:     true,
	})
	require.NoError(t, err)
	assert.NotZero(t, model.ID)
	assert.Equal(t, models.ModelStatusActive, model.Status)
}

func TestService_CreateModel_ContextExceedsProvider(t *testing.T) {
	service := setupTestService(t)

	provider, _, err := service.CreateProvider(validCreateRequest("openai"))
	require.NoError(t, err)

	_, err = service.CreateModel(CreateModelRequest{
		ProviderID:    provider.ID,
		Identifier:    "giant-model",
		Name:          "Giant",
		ContextLength: 1_000_000, // 供应商上限 128000
	})
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestService_CreateModel_ProviderNotFound(t *testing.T) {
	service := setupTestService(t)

	_, err := service.CreateModel(CreateModelRequest{
		ProviderID: 9999,
		Identifier: "m",
		Name:       "M",
	})
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "sk-****7890", MaskSecret("sk-test-1234567890"))
	assert.Equal(t, "****", MaskSecret("short"))
	assert.Equal(t, "****", MaskSecret(""))
}
