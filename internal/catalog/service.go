package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Xingyelan/Vega-Registry/internal/crypto"
	"github.com/Xingyelan/Vega-Registry/internal/models"
	"github.com/Xingyelan/Vega-Registry/internal/prober"
)

var (
	// ErrInvalidInput 无效输入
	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError 静态校验失败
// 携带逐字段的问题列表，Handler 可以直接序列化返回
type ValidationError struct {
	Issues []prober.Issue
}

// Error 实现 error 接口
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		if issue.Severity == prober.SeverityError {
			parts = append(parts, issue.Field+": "+issue.Code)
		}
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Service 供应商目录业务逻辑层
type Service struct {
	repo          *Repository
	encryptionKey []byte
}

// NewService 创建 Service 实例
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceWithEncryption 创建带加密密钥的 Service 实例
func NewServiceWithEncryption(repo *Repository, encryptionKey []byte) *Service {
	return &Service{
		repo:          repo,
		encryptionKey: encryptionKey,
	}
}

// CreateProvider 创建供应商
// 静态校验中 error 级别的问题会拒绝创建，warning 级别的问题随响应返回
func (s *Service) CreateProvider(req CreateProviderRequest) (*models.Provider, []prober.Issue, error) {
	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" {
		return nil, nil, fmt.Errorf("%w: identifier is required", ErrInvalidInput)
	}

	exists, err := s.repo.CheckIdentifierExists(identifier, 0)
	if err != nil {
		return nil, nil, err
	}
	if exists {
		return nil, nil, ErrIdentifierExists
	}

	provider := &models.Provider{
		Identifier: identifier,
		Name:       req.Name,
		BaseURL:    req.BaseURL,
		AuthMethod: req.AuthMethod,
		Status:     models.ProviderStatusDraft,
		IsSystem:   req.IsSystem,
	}
	if req.Status != "" {
		provider.Status = req.Status
	}

	authCfg := req.AuthConfig
	if authCfg == nil {
		authCfg = &models.AuthConfig{Fields: map[string]string{}}
	}
	caps := req.Capabilities
	if caps == nil {
		caps = &models.Capabilities{}
	}
	if err := provider.SetCapabilities(caps); err != nil {
		return nil, nil, err
	}

	// 静态校验
	issues := prober.ValidateProvider(provider, authCfg)
	if prober.HasErrors(issues) {
		return nil, issues, &ValidationError{Issues: issues}
	}

	// 认证配置加密后落库
	if err := s.storeAuthConfig(provider, authCfg); err != nil {
		return nil, issues, err
	}

	if err := s.repo.Create(provider); err != nil {
		return nil, issues, err
	}

	return provider, issues, nil
}

// GetProvider 获取单个供应商
func (s *Service) GetProvider(id uint) (*models.Provider, error) {
	return s.repo.FindByID(id)
}

// GetProviderByIdentifier 根据标识符获取供应商
func (s *Service) GetProviderByIdentifier(identifier string) (*models.Provider, error) {
	return s.repo.FindByIdentifier(identifier)
}

// ListProviders 按条件获取供应商列表
func (s *Service) ListProviders(filter ProviderFilter) ([]*models.Provider, error) {
	return s.repo.ListProviders(filter)
}

// UpdateProvider 更新供应商
// Identifier 不可变更；其余字段按请求选择性更新并重新校验
func (s *Service) UpdateProvider(id uint, req UpdateProviderRequest) (*models.Provider, []prober.Issue, error) {
	provider, err := s.repo.FindByID(id)
	if err != nil {
		return nil, nil, err
	}

	if req.Name != nil {
		provider.Name = *req.Name
	}
	if req.BaseURL != nil {
		provider.BaseURL = *req.BaseURL
	}
	if req.AuthMethod != nil {
		provider.AuthMethod = *req.AuthMethod
	}
	if req.Status != nil {
		provider.Status = *req.Status
	}

	authCfg, err := s.DecryptedAuthConfig(provider)
	if err != nil {
		return nil, nil, err
	}
	if req.AuthConfig != nil {
		authCfg = req.AuthConfig
	}
	if req.Capabilities != nil {
		if err := provider.SetCapabilities(req.Capabilities); err != nil {
			return nil, nil, err
		}
	}

	issues := prober.ValidateProvider(provider, authCfg)
	if prober.HasErrors(issues) {
		return nil, issues, &ValidationError{Issues: issues}
	}

	if err := s.storeAuthConfig(provider, authCfg); err != nil {
		return nil, issues, err
	}

	if err := s.repo.Update(provider); err != nil {
		return nil, issues, err
	}

	return provider, issues, nil
}

// DeleteProvider 删除供应商
func (s *Service) DeleteProvider(id uint) error {
	return s.repo.Delete(id)
}

// DecryptedAuthConfig 解密供应商的认证配置
func (s *Service) DecryptedAuthConfig(provider *models.Provider) (*models.AuthConfig, error) {
	if provider.AuthConfig == "" {
		return &models.AuthConfig{Fields: map[string]string{}}, nil
	}

	raw := provider.AuthConfig
	if s.encryptionKey != nil {
		decrypted, err := crypto.DecryptString(raw, s.encryptionKey)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt auth config: %w", err)
		}
		raw = decrypted
	}

	tmp := &models.Provider{AuthConfig: raw}
	return tmp.ParseAuthConfig()
}

// ==================== 模型 ====================

// CreateModel 创建模型
// 模型上下文长度不得超过所属供应商声明的上限
func (s *Service) CreateModel(req CreateModelRequest) (*models.Model, error) {
	provider, err := s.repo.FindByID(req.ProviderID)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.Identifier) == "" {
		return nil, fmt.Errorf("%w: identifier is required", ErrInvalidInput)
	}

	model := &models.Model{
		ProviderID:    provider.ID,
		Identifier:    req.Identifier,
		Name:          req.Name,
		ContextLength: req.ContextLength,
		IsDefault:     req.IsDefault,
		Status:        models.ModelStatusActive,
	}

	caps, err := provider.ParseCapabilities()
	if err != nil {
		return nil, err
	}
	issues := prober.ValidateModel(model, caps)
	if prober.HasErrors(issues) {
		return nil, &ValidationError{Issues: issues}
	}

	if err := s.repo.CreateModel(model); err != nil {
		return nil, err
	}
	return model, nil
}

// ListModels 获取供应商的模型列表
func (s *Service) ListModels(providerID uint) ([]*models.Model, error) {
	return s.repo.ListModels(ModelFilter{ProviderID: providerID})
}

// DeleteModel 删除模型
func (s *Service) DeleteModel(id uint) error {
	return s.repo.DeleteModel(id)
}

// storeAuthConfig 序列化（并在配置了密钥时加密）认证配置
func (s *Service) storeAuthConfig(provider *models.Provider, cfg *models.AuthConfig) error {
	if err := provider.SetAuthConfig(cfg); err != nil {
		return err
	}
	if s.encryptionKey != nil {
		encrypted, err := crypto.EncryptString(provider.AuthConfig, s.encryptionKey)
		if err != nil {
			return fmt.Errorf("failed to encrypt auth config: %w", err)
		}
		provider.AuthConfig = encrypted
	}
	return nil
}
