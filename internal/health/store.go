package health

import (
	"errors"
	"time"

	"github.com/Xingyelan/Vega-Registry/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrAlertNotFound 告警不存在
	ErrAlertNotFound = errors.New("alert not found")
)

// CleanupResult 历史数据清理结果
type CleanupResult struct {
	HealthRows int64 `json:"health_rows"`
	MetricRows int64 `json:"metric_rows"`
	AlertRows  int64 `json:"alert_rows"`
}

// Store 健康数据持久层
// 健康记录和指标只追加；告警只允许确认与标记解决
type Store struct {
	db *gorm.DB
}

// NewStore 创建 Store 实例
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// ==================== 健康记录 ====================

// SaveHealth 追加一条健康记录
func (s *Store) SaveHealth(h *models.ProviderHealth) error {
	return s.db.Create(h).Error
}

// LatestHealth 供应商最新的健康记录
func (s *Store) LatestHealth(providerID uint) (*models.ProviderHealth, error) {
	var h models.ProviderHealth
	err := s.db.Where("provider_id = ?", providerID).
		Order("last_check DESC").
		First(&h).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &h, nil
}

// AllLatestHealth 每个供应商各取最新一条健康记录
func (s *Store) AllLatestHealth() ([]*models.ProviderHealth, error) {
	var rows []*models.ProviderHealth
	sub := s.db.Model(&models.ProviderHealth{}).Select("MAX(id)").Group("provider_id")
	err := s.db.Where("id IN (?)", sub).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// HealthHistorySince 供应商自指定时间以来的健康记录（按时间升序）
func (s *Store) HealthHistorySince(providerID uint, since time.Time) ([]*models.ProviderHealth, error) {
	var rows []*models.ProviderHealth
	err := s.db.Where("provider_id = ? AND last_check >= ?", providerID, since).
		Order("last_check ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ==================== 性能指标 ====================

// SaveMetric 追加一条指标采样
func (s *Store) SaveMetric(m *models.PerformanceMetric) error {
	return s.db.Create(m).Error
}

// MetricsSince 供应商自指定时间以来的指标采样
func (s *Store) MetricsSince(providerID uint, since time.Time) ([]*models.PerformanceMetric, error) {
	var rows []*models.PerformanceMetric
	err := s.db.Where("provider_id = ? AND timestamp >= ?", providerID, since).
		Order("timestamp ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ==================== 告警 ====================

// CreateAlert 创建告警
func (s *Store) CreateAlert(a *models.HealthAlert) error {
	return s.db.Create(a).Error
}

// AcknowledgeAlert 确认告警
func (s *Store) AcknowledgeAlert(id uint) error {
	result := s.db.Model(&models.HealthAlert{}).Where("id = ?", id).Update("acknowledged", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// ResolveAlert 标记告警已解决
func (s *Store) ResolveAlert(id uint, at time.Time) error {
	result := s.db.Model(&models.HealthAlert{}).Where("id = ?", id).Update("resolved_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// ListAlerts 查询告警
// activeOnly 为 true 时只返回未确认且未解决的告警
func (s *Store) ListAlerts(activeOnly bool, limit int) ([]*models.HealthAlert, error) {
	var rows []*models.HealthAlert

	query := s.db.Model(&models.HealthAlert{}).Order("timestamp DESC")
	if activeOnly {
		query = query.Where("acknowledged = ? AND resolved_at IS NULL", false)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// AlertsForProvider 查询供应商的告警
func (s *Store) AlertsForProvider(providerID uint, limit int) ([]*models.HealthAlert, error) {
	var rows []*models.HealthAlert
	query := s.db.Where("provider_id = ?", providerID).Order("timestamp DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ==================== 清理 ====================

// CleanupOldData 清理超过保留期的历史数据
// 健康记录保留每个供应商最新的一条；指标全量按时间清理；
// 告警只清理已确认或已解决的，活跃告警不论多旧都保留
func (s *Store) CleanupOldData(retentionDays int) (*CleanupResult, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result := &CleanupResult{}

	// 健康记录：保留最新一条
	res := s.db.Exec(
		`DELETE FROM provider_health WHERE last_check < ? AND id NOT IN `+
			`(SELECT MAX(id) FROM provider_health GROUP BY provider_id)`, cutoff)
	if res.Error != nil {
		return nil, res.Error
	}
	result.HealthRows = res.RowsAffected

	// 指标：全量清理
	res = s.db.Where("timestamp < ?", cutoff).Delete(&models.PerformanceMetric{})
	if res.Error != nil {
		return nil, res.Error
	}
	result.MetricRows = res.RowsAffected

	// 告警：只清理已确认或已解决的
	res = s.db.Where("timestamp < ? AND (acknowledged = ? OR resolved_at IS NOT NULL)", cutoff, true).
		Delete(&models.HealthAlert{})
	if res.Error != nil {
		return nil, res.Error
	}
	result.AlertRows = res.RowsAffected

	return result, nil
}
