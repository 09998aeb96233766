package catalog

import (
	"errors"

	"github.com/Xingyelan/Vega-Registry/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrProviderNotFound 供应商不存在
	ErrProviderNotFound = errors.New("provider not found")
	// ErrModelNotFound 模型不存在
	ErrModelNotFound = errors.New("model not found")
	// ErrIdentifierExists 供应商标识符已存在
	ErrIdentifierExists = errors.New("provider identifier already exists")
)

// ProviderFilter 供应商查询过滤条件
type ProviderFilter struct {
	Status   string
	IsSystem *bool
}

// ModelFilter 模型查询过滤条件
type ModelFilter struct {
	ProviderID uint
	Status     string
}

// Repository 供应商目录数据访问层
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建 Repository 实例
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create 创建供应商
func (r *Repository) Create(provider *models.Provider) error {
	return r.db.Create(provider).Error
}

// FindByID 根据 ID 查找供应商
func (r *Repository) FindByID(id uint) (*models.Provider, error) {
	var provider models.Provider
	err := r.db.First(&provider, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	return &provider, nil
}

// FindByIdentifier 根据标识符查找供应商
func (r *Repository) FindByIdentifier(identifier string) (*models.Provider, error) {
	var provider models.Provider
	err := r.db.Where("identifier = ?", identifier).First(&provider).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	return &provider, nil
}

// ListProviders 按条件查找供应商
func (r *Repository) ListProviders(filter ProviderFilter) ([]*models.Provider, error) {
	var providers []*models.Provider

	query := r.db.Model(&models.Provider{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.IsSystem != nil {
		query = query.Where("is_system = ?", *filter.IsSystem)
	}

	// 按创建顺序返回，注册表的评分平手规则依赖稳定的遍历顺序
	err := query.Order("id ASC").Find(&providers).Error
	if err != nil {
		return nil, err
	}
	return providers, nil
}

// ActiveProviders 查找所有激活的供应商
func (r *Repository) ActiveProviders() ([]*models.Provider, error) {
	return r.ListProviders(ProviderFilter{Status: models.ProviderStatusActive})
}

// Update 更新供应商
func (r *Repository) Update(provider *models.Provider) error {
	return r.db.Save(provider).Error
}

// UpdateStatus 仅更新供应商状态
func (r *Repository) UpdateStatus(id uint, status string) error {
	return r.db.Model(&models.Provider{}).Where("id = ?", id).Update("status", status).Error
}

// Delete 删除供应商（软删除）
func (r *Repository) Delete(id uint) error {
	result := r.db.Delete(&models.Provider{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProviderNotFound
	}
	return nil
}

// CheckIdentifierExists 检查标识符是否存在（排除指定 ID）
func (r *Repository) CheckIdentifierExists(identifier string, excludeID uint) (bool, error) {
	var count int64
	query := r.db.Model(&models.Provider{}).Where("identifier = ?", identifier)
	if excludeID > 0 {
		query = query.Where("id != ?", excludeID)
	}
	err := query.Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ==================== 模型 ====================

// CreateModel 创建模型
func (r *Repository) CreateModel(model *models.Model) error {
	return r.db.Create(model).Error
}

// FindModelByID 根据 ID 查找模型
func (r *Repository) FindModelByID(id uint) (*models.Model, error) {
	var model models.Model
	err := r.db.First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrModelNotFound
		}
		return nil, err
	}
	return &model, nil
}

// ListModels 按条件查找模型
func (r *Repository) ListModels(filter ModelFilter) ([]*models.Model, error) {
	var list []*models.Model

	query := r.db.Model(&models.Model{})
	if filter.ProviderID > 0 {
		query = query.Where("provider_id = ?", filter.ProviderID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	err := query.Order("id ASC").Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// ModelsForProvider 查找供应商的激活模型
func (r *Repository) ModelsForProvider(providerID uint) ([]*models.Model, error) {
	return r.ListModels(ModelFilter{ProviderID: providerID, Status: models.ModelStatusActive})
}

// FindDefaultModel 查找供应商的默认模型
func (r *Repository) FindDefaultModel(providerID uint) (*models.Model, error) {
	var model models.Model
	err := r.db.Where("provider_id = ? AND is_default = ?", providerID, true).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrModelNotFound
		}
		return nil, err
	}
	return &model, nil
}

// UpdateModel 更新模型
func (r *Repository) UpdateModel(model *models.Model) error {
	return r.db.Save(model).Error
}

// DeleteModel 删除模型
func (r *Repository) DeleteModel(id uint) error {
	result := r.db.Delete(&models.Model{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrModelNotFound
	}
	return nil
}
