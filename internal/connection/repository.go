package connection

import (
	"errors"

	"github.com/Xingyelan/Vega-Registry/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrConnectionNotFound 连接不存在
	ErrConnectionNotFound = errors.New("connection not found")
	// ErrBackupNotFound 备份不存在
	ErrBackupNotFound = errors.New("connection backup not found")
)

// Repository 连接数据访问层
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建 Repository 实例
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create 创建连接
func (r *Repository) Create(conn *models.Connection) error {
	return r.db.Create(conn).Error
}

// FindByID 根据 ID 查找连接
func (r *Repository) FindByID(id uint) (*models.Connection, error) {
	var conn models.Connection
	err := r.db.First(&conn, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConnectionNotFound
		}
		return nil, err
	}
	return &conn, nil
}

// FindByUser 查找用户的所有连接
func (r *Repository) FindByUser(userID uint) ([]*models.Connection, error) {
	var conns []*models.Connection
	err := r.db.Where("user_id = ?", userID).Order("id ASC").Find(&conns).Error
	if err != nil {
		return nil, err
	}
	return conns, nil
}

// FindLegacy 查找所有旧式连接
func (r *Repository) FindLegacy() ([]*models.Connection, error) {
	var conns []*models.Connection
	err := r.db.Where("kind = ?", models.ConnectionKindLegacy).Order("id ASC").Find(&conns).Error
	if err != nil {
		return nil, err
	}
	return conns, nil
}

// Update 更新连接
func (r *Repository) Update(conn *models.Connection) error {
	return r.db.Save(conn).Error
}

// UpdateStatus 仅更新连接状态
func (r *Repository) UpdateStatus(id uint, status string) error {
	return r.db.Model(&models.Connection{}).Where("id = ?", id).Update("status", status).Error
}

// Delete 删除连接
func (r *Repository) Delete(id uint) error {
	result := r.db.Delete(&models.Connection{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConnectionNotFound
	}
	return nil
}

// ==================== 备份 ====================

// CreateBackup 创建连接备份
func (r *Repository) CreateBackup(backup *models.ConnectionBackup) error {
	return r.db.Create(backup).Error
}

// FindBackup 根据备份标识查找备份
func (r *Repository) FindBackup(backupID string) (*models.ConnectionBackup, error) {
	var backup models.ConnectionBackup
	err := r.db.Where("backup_id = ?", backupID).First(&backup).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBackupNotFound
		}
		return nil, err
	}
	return &backup, nil
}

// BackupsForConnection 查找连接的全部备份（新的在前）
func (r *Repository) BackupsForConnection(connectionID uint) ([]*models.ConnectionBackup, error) {
	var backups []*models.ConnectionBackup
	err := r.db.Where("connection_id = ?", connectionID).
		Order("created_at DESC").
		Find(&backups).Error
	if err != nil {
		return nil, err
	}
	return backups, nil
}
