package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// ConnectionKind 连接形态常量
const (
	ConnectionKindLegacy  = "legacy"  // 旧式：硬编码供应商名 + 专有配置
	ConnectionKindDynamic = "dynamic" // 新式：引用动态供应商 + 通用配置
)

// ConnectionStatus 连接状态常量
const (
	ConnectionStatusActive   = "active"
	ConnectionStatusInactive = "inactive"
	ConnectionStatusError    = "error"
)

// Connection 用户到供应商的连接配置
// 旧式连接使用 LegacyProvider 名称定位供应商；
// 动态连接通过 ProviderID 引用目录中的供应商
type Connection struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	UserID         uint           `gorm:"not null;index" json:"user_id"`
	Name           string         `gorm:"type:varchar(200);not null" json:"name"`
	Kind           string         `gorm:"type:varchar(20);not null;default:'legacy'" json:"kind"` // legacy/dynamic
	LegacyProvider string         `gorm:"type:varchar(100)" json:"legacy_provider,omitempty"`
	ProviderID     *uint          `gorm:"index" json:"provider_id,omitempty"`
	Credentials    string         `gorm:"type:text" json:"credentials"`     // JSON，加密存储
	Settings       string         `gorm:"type:text" json:"settings"`        // JSON，通用设置
	SelectedModels string         `gorm:"type:text" json:"selected_models"` // JSON 数组
	Status         string         `gorm:"type:varchar(20);not null;default:'inactive'" json:"status"`
	LastTestedAt   *time.Time     `json:"last_tested_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// TableName 指定表名
func (Connection) TableName() string {
	return "connections"
}

// ParseSelectedModels 解析选中模型列表
func (c *Connection) ParseSelectedModels() ([]string, error) {
	if c.SelectedModels == "" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(c.SelectedModels), &list); err != nil {
		return nil, err
	}
	return list, nil
}

// SetSelectedModels 序列化并写入选中模型列表
func (c *Connection) SetSelectedModels(list []string) error {
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}
	c.SelectedModels = string(data)
	return nil
}

// ConnectionBackup 连接的时间点快照
// 迁移执行前创建，回滚时按 BackupID 恢复
type ConnectionBackup struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	BackupID     string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"backup_id"`
	ConnectionID uint      `gorm:"not null;index" json:"connection_id"`
	Snapshot     string    `gorm:"type:text;not null" json:"snapshot"` // 连接的完整 JSON 快照
	Reason       string    `gorm:"type:varchar(200)" json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName 指定表名
func (ConnectionBackup) TableName() string {
	return "connection_backups"
}
