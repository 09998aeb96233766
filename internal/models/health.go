package models

import "time"

// HealthStatus 健康状态常量
const (
	HealthStatusUnknown  = "unknown"
	HealthStatusHealthy  = "healthy"
	HealthStatusDegraded = "degraded"
	HealthStatusDown     = "down"
)

// AlertType 告警类型常量
const (
	AlertTypeDegraded  = "degraded"
	AlertTypeDown      = "down"
	AlertTypeRecovered = "recovered"
)

// AlertSeverity 告警级别常量
const (
	AlertSeverityLow      = "low"
	AlertSeverityMedium   = "medium"
	AlertSeverityHigh     = "high"
	AlertSeverityCritical = "critical"
)

// ProviderHealth 供应商健康记录
// 每次检查写入一行；同一供应商按 LastCheck 最新的一行为权威状态
type ProviderHealth struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ProviderID     uint      `gorm:"not null;index" json:"provider_id"`
	Status         string    `gorm:"type:varchar(20);not null;default:'unknown'" json:"status"` // healthy/degraded/down
	LastCheck      time.Time `gorm:"not null;index" json:"last_check"`
	ResponseTimeMs int64     `gorm:"not null;default:0" json:"response_time_ms"`
	Error          string    `gorm:"type:text" json:"error,omitempty"`
	UptimeSeconds  int64     `gorm:"not null;default:0" json:"uptime_seconds"` // 累计健康时长
}

// TableName 指定表名
func (ProviderHealth) TableName() string {
	return "provider_health"
}

// PerformanceMetric 性能指标采样
// 只追加不修改，超过保留期后整体清理
type PerformanceMetric struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ProviderID     uint      `gorm:"not null;index" json:"provider_id"`
	Timestamp      time.Time `gorm:"not null;index" json:"timestamp"`
	ResponseTimeMs int64     `gorm:"not null;default:0" json:"response_time_ms"`
	Success        bool      `gorm:"not null" json:"success"`
	RequestCount   int64     `gorm:"not null;default:0" json:"request_count"`
	ErrorCount     int64     `gorm:"not null;default:0" json:"error_count"`
	Availability   float64   `gorm:"not null;default:0" json:"availability"`
}

// TableName 指定表名
func (PerformanceMetric) TableName() string {
	return "performance_metrics"
}

// HealthAlert 健康告警
// 状态跃迁或阈值突破时创建；之后只允许确认和标记解决
// 未确认且未解决的告警不受保留期限制
type HealthAlert struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	ProviderID   uint       `gorm:"not null;index" json:"provider_id"`
	Type         string     `gorm:"type:varchar(20);not null" json:"type"`     // degraded/down/recovered
	Severity     string     `gorm:"type:varchar(20);not null" json:"severity"` // low/medium/high/critical
	Message      string     `gorm:"type:text;not null" json:"message"`
	Timestamp    time.Time  `gorm:"not null;index" json:"timestamp"`
	Acknowledged bool       `gorm:"not null;default:false" json:"acknowledged"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

// TableName 指定表名
func (HealthAlert) TableName() string {
	return "health_alerts"
}
