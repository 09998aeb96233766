package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// ModelStatus 模型状态常量
const (
	ModelStatusActive   = "active"
	ModelStatusInactive = "inactive"
)

// Model 供应商提供的推理模型
// 每个模型属于且仅属于一个供应商；ContextLength 不得超过供应商声明的上限
type Model struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	ProviderID    uint           `gorm:"not null;index" json:"provider_id"`
	Identifier    string         `gorm:"type:varchar(100);not null;index" json:"identifier"`
	Name          string         `gorm:"type:varchar(200);not null" json:"name"`
	ContextLength int            `gorm:"not null;default:0" json:"context_length"`
	Capabilities  string         `gorm:"type:text" json:"capabilities"` // JSON，供应商能力的子集
	IsDefault     bool           `gorm:"not null;default:false" json:"is_default"`
	Status        string         `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// 外键关系
	Provider Provider `gorm:"foreignKey:ProviderID;constraint:OnDelete:CASCADE" json:"provider,omitempty"`
}

// TableName 指定表名
func (Model) TableName() string {
	return "provider_models"
}

// ParseCapabilities 解析模型能力 JSON
func (m *Model) ParseCapabilities() (*Capabilities, error) {
	caps := &Capabilities{}
	if m.Capabilities == "" {
		return caps, nil
	}
	if err := json.Unmarshal([]byte(m.Capabilities), caps); err != nil {
		return nil, err
	}
	return caps, nil
}
