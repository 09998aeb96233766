package models

import "time"

// SystemEvent 系统事件日志
// 用于记录系统重要事件，如健康状态跃迁、注册表刷新、连接迁移等
type SystemEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Type      string    `gorm:"type:varchar(50);not null;index" json:"type"` // health_transition, migration, etc.
	Message   string    `gorm:"type:text;not null" json:"message"`
	Level     string    `gorm:"type:varchar(20);not null;default:'info'" json:"level"` // info, warning, error
	Metadata  string    `gorm:"type:json" json:"metadata,omitempty"`                   // 额外的元数据（JSON 格式）
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (SystemEvent) TableName() string {
	return "system_events"
}

// EventType 事件类型常量
const (
	EventTypeHealthTransition = "health_transition" // 健康状态跃迁
	EventTypeHealthAlert      = "health_alert"      // 健康告警
	EventTypeRegistryRefresh  = "registry_refresh"  // 注册表刷新
	EventTypeMigration        = "migration"         // 连接迁移
	EventTypeRollback         = "rollback"          // 迁移回滚
	EventTypeProviderChange   = "provider_change"   // 供应商配置变更
	EventTypeConfigChange     = "config_change"     // 运行配置变更
)

// EventLevel 事件级别常量
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)
