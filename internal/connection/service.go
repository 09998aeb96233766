package connection

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Xingyelan/Vega-Registry/internal/crypto"
	"github.com/Xingyelan/Vega-Registry/internal/models"
	"github.com/Xingyelan/Vega-Registry/internal/prober"
)

var (
	// ErrInvalidInput 无效输入
	ErrInvalidInput = errors.New("invalid input")
)

// ProviderSource 连接服务消费的目录接口
type ProviderSource interface {
	FindByID(id uint) (*models.Provider, error)
	FindByIdentifier(identifier string) (*models.Provider, error)
}

// 旧式硬编码供应商的端点表
var legacyEndpoints = map[string]string{
	"openai":    "https://api.openai.com",
	"anthropic": "https://api.anthropic.com",
	"bedrock":   "https://bedrock-runtime.us-east-1.amazonaws.com",
	"copilot":   "https://api.githubcopilot.com",
}

// CreateConnectionRequest 创建连接请求
type CreateConnectionRequest struct {
	UserID         uint              `json:"user_id" binding:"required"`
	Name           string            `json:"name" binding:"required"`
	Kind           string            `json:"kind" binding:"required,oneof=legacy dynamic"`
	LegacyProvider string            `json:"legacy_provider"`
	ProviderID     *uint             `json:"provider_id"`
	Credentials    map[string]string `json:"credentials"`
	Settings       map[string]string `json:"settings"`
	SelectedModels []string          `json:"selected_models"`
}

// UpdateConnectionRequest 更新连接请求
type UpdateConnectionRequest struct {
	Name           *string           `json:"name"`
	Credentials    map[string]string `json:"credentials"`
	Settings       map[string]string `json:"settings"`
	SelectedModels []string          `json:"selected_models"`
}

// Service 连接业务逻辑层
type Service struct {
	repo          *Repository
	providers     ProviderSource
	prober        *prober.Prober
	encryptionKey []byte
}

// NewService 创建连接服务
func NewService(repo *Repository, providers ProviderSource, pb *prober.Prober, encryptionKey []byte) *Service {
	return &Service{
		repo:          repo,
		providers:     providers,
		prober:        pb,
		encryptionKey: encryptionKey,
	}
}

// CreateConnection 创建连接
func (s *Service) CreateConnection(req CreateConnectionRequest) (*models.Connection, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	conn := &models.Connection{
		UserID: req.UserID,
		Name:   req.Name,
		Kind:   req.Kind,
		Status: models.ConnectionStatusInactive,
	}

	switch req.Kind {
	case models.ConnectionKindLegacy:
		if req.LegacyProvider == "" {
			return nil, fmt.Errorf("%w: legacy_provider is required for legacy connections", ErrInvalidInput)
		}
		conn.LegacyProvider = req.LegacyProvider
	case models.ConnectionKindDynamic:
		if req.ProviderID == nil {
			return nil, fmt.Errorf("%w: provider_id is required for dynamic connections", ErrInvalidInput)
		}
		if _, err := s.providers.FindByID(*req.ProviderID); err != nil {
			return nil, err
		}
		conn.ProviderID = req.ProviderID
	}

	if err := s.storeCredentials(conn, req.Credentials); err != nil {
		return nil, err
	}
	if err := s.storeSettings(conn, req.Settings); err != nil {
		return nil, err
	}
	if err := conn.SetSelectedModels(req.SelectedModels); err != nil {
		return nil, err
	}

	if err := s.repo.Create(conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// GetConnection 获取单个连接
func (s *Service) GetConnection(id uint) (*models.Connection, error) {
	return s.repo.FindByID(id)
}

// ListConnections 获取用户的连接列表
func (s *Service) ListConnections(userID uint) ([]*models.Connection, error) {
	return s.repo.FindByUser(userID)
}

// UpdateConnection 更新连接
func (s *Service) UpdateConnection(id uint, req UpdateConnectionRequest) (*models.Connection, error) {
	conn, err := s.repo.FindByID(id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		conn.Name = *req.Name
	}
	if req.Credentials != nil {
		if err := s.storeCredentials(conn, req.Credentials); err != nil {
			return nil, err
		}
	}
	if req.Settings != nil {
		if err := s.storeSettings(conn, req.Settings); err != nil {
			return nil, err
		}
	}
	if req.SelectedModels != nil {
		if err := conn.SetSelectedModels(req.SelectedModels); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// DeleteConnection 删除连接
func (s *Service) DeleteConnection(id uint) error {
	return s.repo.Delete(id)
}

// TestConnection 测试连接并更新状态
// 同步执行探测：成功置 active，失败置 error
func (s *Service) TestConnection(id uint) (*prober.ProbeResult, error) {
	conn, err := s.repo.FindByID(id)
	if err != nil {
		return nil, err
	}

	provider, err := s.ResolveProvider(conn)
	if err != nil {
		return nil, err
	}

	creds, err := s.DecryptedCredentials(conn)
	if err != nil {
		return nil, err
	}

	result := s.prober.ProbeSimple(provider, &models.AuthConfig{Fields: creds})

	now := time.Now()
	conn.LastTestedAt = &now
	if result.Success {
		conn.Status = models.ConnectionStatusActive
	} else {
		conn.Status = models.ConnectionStatusError
	}
	if err := s.repo.Update(conn); err != nil {
		return result, err
	}

	return result, nil
}

// ResolveProvider 解析连接指向的供应商
// 动态连接直接查目录；旧式连接先按标识符找目录里的同名供应商，
// 找不到时用内置端点表合成一个
func (s *Service) ResolveProvider(conn *models.Connection) (*models.Provider, error) {
	if conn.Kind == models.ConnectionKindDynamic {
		if conn.ProviderID == nil {
			return nil, fmt.Errorf("%w: dynamic connection has no provider_id", ErrInvalidInput)
		}
		return s.providers.FindByID(*conn.ProviderID)
	}

	name := strings.ToLower(conn.LegacyProvider)
	if provider, err := s.providers.FindByIdentifier(name); err == nil {
		return provider, nil
	}

	endpoint, ok := legacyEndpoints[name]
	if !ok {
		return nil, fmt.Errorf("unknown legacy provider %q", conn.LegacyProvider)
	}

	authMethod := models.AuthMethodAPIKey
	if name == "bedrock" {
		authMethod = models.AuthMethodAWSIAM
	}
	return &models.Provider{
		Identifier: name,
		Name:       conn.LegacyProvider,
		BaseURL:    endpoint,
		AuthMethod: authMethod,
		Status:     models.ProviderStatusActive,
	}, nil
}

// DecryptedCredentials 解密连接凭证
func (s *Service) DecryptedCredentials(conn *models.Connection) (map[string]string, error) {
	if conn.Credentials == "" {
		return map[string]string{}, nil
	}

	raw := conn.Credentials
	if s.encryptionKey != nil {
		decrypted, err := crypto.DecryptString(raw, s.encryptionKey)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt credentials: %w", err)
		}
		raw = decrypted
	}

	creds := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return creds, nil
}

// SetCredentials 加密并写入连接凭证（仅改内存对象，不落库）
func (s *Service) SetCredentials(conn *models.Connection, creds map[string]string) error {
	return s.storeCredentials(conn, creds)
}

// storeCredentials 序列化（并在配置了密钥时加密）凭证
func (s *Service) storeCredentials(conn *models.Connection, creds map[string]string) error {
	if creds == nil {
		creds = map[string]string{}
	}
	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	raw := string(data)
	if s.encryptionKey != nil {
		encrypted, err := crypto.EncryptString(raw, s.encryptionKey)
		if err != nil {
			return fmt.Errorf("failed to encrypt credentials: %w", err)
		}
		raw = encrypted
	}
	conn.Credentials = raw
	return nil
}

// storeSettings 序列化通用设置
func (s *Service) storeSettings(conn *models.Connection, settings map[string]string) error {
	if settings == nil {
		settings = map[string]string{}
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	conn.Settings = string(data)
	return nil
}
