package health

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Xingyelan/Vega-Registry/internal/config"
	"github.com/Xingyelan/Vega-Registry/internal/events"
	"github.com/Xingyelan/Vega-Registry/internal/logging"
	"github.com/Xingyelan/Vega-Registry/internal/models"
	"github.com/Xingyelan/Vega-Registry/internal/prober"
)

// Catalog 监控器消费的目录接口
type Catalog interface {
	// ActiveProviders 所有激活的供应商
	ActiveProviders() ([]*models.Provider, error)

	// FindByID 根据 ID 查找供应商
	FindByID(id uint) (*models.Provider, error)
}

// CredentialSource 认证配置解密接口
type CredentialSource interface {
	DecryptedAuthConfig(provider *models.Provider) (*models.AuthConfig, error)
}

// 历史数据清理周期
const cleanupInterval = 6 * time.Hour

// Monitor 供应商健康监控器
// 持有两个独立的周期循环（健康检查、指标采集）和一个清理循环；
// 内存健康缓存是进程内状态，随每次检查更新，停机时落盘
type Monitor struct {
	catalog  Catalog
	creds    CredentialSource
	prober   *prober.Prober
	store    *Store
	events   *events.Service
	logger   *logging.Logger
	notifier *Notifier

	mu          sync.RWMutex // 保护 cfg 与 healthCache
	cfg         config.MonitorConfig
	healthCache map[uint]*models.ProviderHealth
	dirty       map[uint]bool // 落库失败、待停机时重试的缓存项

	runMu       sync.Mutex // 保护生命周期状态
	running     bool
	stopHealth  chan struct{}
	stopMetrics chan struct{}
	stopCleanup chan struct{}
	wg          sync.WaitGroup
}

// NewMonitor 创建健康监控器
func NewMonitor(
	cfg config.MonitorConfig,
	catalog Catalog,
	creds CredentialSource,
	pb *prober.Prober,
	store *Store,
	eventLog *events.Service,
	logger *logging.Logger,
) *Monitor {
	return &Monitor{
		catalog:     catalog,
		creds:       creds,
		prober:      pb,
		store:       store,
		events:      eventLog,
		logger:      logger,
		notifier:    NewNotifier(16),
		cfg:         cfg,
		healthCache: make(map[uint]*models.ProviderHealth),
		dirty:       make(map[uint]bool),
	}
}

// Notifier 返回告警订阅入口
func (m *Monitor) Notifier() *Notifier {
	return m.notifier
}

// Start 启动监控循环
// 启动时先做一轮历史数据清理
func (m *Monitor) Start() {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.running {
		return
	}
	m.startLoops()
	m.running = true

	go func() {
		if _, err := m.store.CleanupOldData(m.snapshotConfig().RetentionDays); err != nil {
			m.logger.Warnf("健康数据清理失败: %v", err)
		}
	}()

	m.logger.Infof("健康监控已启动: 检查周期=%s 指标周期=%s",
		m.snapshotConfig().HealthCheckInterval, m.snapshotConfig().MetricsInterval)
}

// Stop 停止监控循环并把内存缓存落盘
// 先清掉所有定时器，再 flush，避免 flush 期间有新检查写入
func (m *Monitor) Stop() {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if !m.running {
		return
	}
	m.stopLoops()
	m.running = false

	m.flushCache()
	m.notifier.Close()
	m.logger.Infof("健康监控已停止")
}

// UpdateConfig 更新监控配置
// 周期变化时重启对应的循环
func (m *Monitor) UpdateConfig(cfg config.MonitorConfig) {
	m.mu.Lock()
	old := m.cfg
	m.cfg = cfg
	m.mu.Unlock()

	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.running &&
		(old.HealthCheckInterval != cfg.HealthCheckInterval ||
			old.MetricsInterval != cfg.MetricsInterval ||
			old.EnableMetricsCollection != cfg.EnableMetricsCollection) {
		m.stopLoops()
		m.startLoops()
	}

	if m.events != nil {
		m.events.LogInfo(models.EventTypeConfigChange, "健康监控配置已更新", map[string]interface{}{
			"health_check_interval": cfg.HealthCheckInterval.String(),
			"metrics_interval":      cfg.MetricsInterval.String(),
		})
	}
}

// CheckAllProviders 对所有激活供应商执行一轮健康检查
// 每个供应商一个 goroutine 并行探测，单个探测由各自的超时约束，
// 任何一个供应商的失败都不影响其它供应商
func (m *Monitor) CheckAllProviders() {
	providers, err := m.catalog.ActiveProviders()
	if err != nil {
		// 目录不可用时保留上一轮的缓存状态
		m.logger.Errorf("获取供应商列表失败，跳过本轮检查: %v", err)
		return
	}

	cfg := m.snapshotConfig()

	var wg sync.WaitGroup
	for _, p := range providers {
		wg.Add(1)
		go func(p *models.Provider) {
			defer wg.Done()
			m.checkOne(p, cfg)
		}(p)
	}
	wg.Wait()
}

// CheckProviderHealth 手动触发单个供应商的健康检查
// 同步执行同一条探测流水线并更新缓存与存储；
// 探测失败时错误会返回给调用方（后台检查则只记录不抛出）
func (m *Monitor) CheckProviderHealth(providerID uint) (*models.ProviderHealth, error) {
	provider, err := m.catalog.FindByID(providerID)
	if err != nil {
		return nil, err
	}

	cfg := m.snapshotConfig()
	h := m.checkOne(provider, cfg)

	if h.Status == models.HealthStatusDown && h.Error != "" {
		return h, errors.New(h.Error)
	}
	return h, nil
}

// GetProviderHealth 所有供应商的当前健康状态
// 存储里的最新记录叠加内存缓存（缓存更新者优先）
func (m *Monitor) GetProviderHealth() (map[uint]*models.ProviderHealth, error) {
	result := make(map[uint]*models.ProviderHealth)

	rows, err := m.store.AllLatestHealth()
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.ProviderID] = row
	}

	m.mu.RLock()
	for pid, h := range m.healthCache {
		copied := *h
		result[pid] = &copied
	}
	m.mu.RUnlock()

	return result, nil
}

// GetProviderHealthStatus 单个供应商的当前健康状态
func (m *Monitor) GetProviderHealthStatus(providerID uint) (*models.ProviderHealth, error) {
	m.mu.RLock()
	if h, ok := m.healthCache[providerID]; ok {
		copied := *h
		m.mu.RUnlock()
		return &copied, nil
	}
	m.mu.RUnlock()

	return m.store.LatestHealth(providerID)
}

// ==================== 内部实现 ====================

// startLoops 启动周期循环（调用方持有 runMu）
func (m *Monitor) startLoops() {
	cfg := m.snapshotConfig()

	m.stopHealth = make(chan struct{})
	m.stopCleanup = make(chan struct{})

	m.wg.Add(1)
	go m.healthLoop(cfg.HealthCheckInterval, m.stopHealth)

	if cfg.EnableMetricsCollection {
		m.stopMetrics = make(chan struct{})
		m.wg.Add(1)
		go m.metricsLoop(cfg.MetricsInterval, m.stopMetrics)
	} else {
		m.stopMetrics = nil
	}

	m.wg.Add(1)
	go m.cleanupLoop(m.stopCleanup)
}

// stopLoops 停止周期循环（调用方持有 runMu）
func (m *Monitor) stopLoops() {
	close(m.stopHealth)
	if m.stopMetrics != nil {
		close(m.stopMetrics)
	}
	close(m.stopCleanup)
	m.wg.Wait()
}

func (m *Monitor) healthLoop(interval time.Duration, stop chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.CheckAllProviders()
		case <-stop:
			return
		}
	}
}

func (m *Monitor) metricsLoop(interval time.Duration, stop chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.CollectMetrics()
		case <-stop:
			return
		}
	}
}

func (m *Monitor) cleanupLoop(stop chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := m.store.CleanupOldData(m.snapshotConfig().RetentionDays); err != nil {
				m.logger.Warnf("健康数据清理失败: %v", err)
			}
		case <-stop:
			return
		}
	}
}

// checkOne 检查单个供应商并记录结果
// 探测内部的 panic 也按 down 处理，绝不让单个供应商拖垮整轮检查
func (m *Monitor) checkOne(provider *models.Provider, cfg config.MonitorConfig) *models.ProviderHealth {
	result := m.probe(provider, cfg)
	h := m.buildHealth(provider.ID, result, cfg)
	m.recordHealth(provider, h, cfg)
	return h
}

// probe 执行一次探测，隔离意外 panic
func (m *Monitor) probe(provider *models.Provider, cfg config.MonitorConfig) (result *prober.ProbeResult) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Errorf("供应商 %s 探测发生 panic: %v", provider.Identifier, r)
			result = &prober.ProbeResult{
				Success:   false,
				Error:     fmt.Sprintf("probe panic: %v", r),
				CheckedAt: time.Now(),
			}
		}
	}()

	authCfg, err := m.creds.DecryptedAuthConfig(provider)
	if err != nil {
		return &prober.ProbeResult{
			Success:   false,
			Error:     fmt.Sprintf("failed to load credentials: %v", err),
			CheckedAt: time.Now(),
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ProbeTimeout)
	defer cancel()

	return m.prober.Probe(ctx, provider, authCfg)
}

// buildHealth 把探测结果归类为健康记录
// 成功且延迟低于阈值为 healthy；成功但超阈值为 degraded；失败为 down。
// uptime 在健康时按距上次检查的实际时长累加（封顶一个周期），否则原样结转
func (m *Monitor) buildHealth(providerID uint, result *prober.ProbeResult, cfg config.MonitorConfig) *models.ProviderHealth {
	prev := m.previousHealth(providerID)

	status := models.HealthStatusDown
	if result.Success {
		if result.LatencyMs > cfg.Alerts.ResponseTimeMs {
			status = models.HealthStatusDegraded
		} else {
			status = models.HealthStatusHealthy
		}
	}

	// 健康时按上次检查以来的实际时长累加，封顶一个检查周期；
	// 密集的手工检查不会虚增累计在线时长
	var uptime int64
	if prev != nil {
		uptime = prev.UptimeSeconds
	}
	if status == models.HealthStatusHealthy {
		credit := int64(cfg.HealthCheckInterval.Seconds())
		if prev != nil {
			elapsed := int64(result.CheckedAt.Sub(prev.LastCheck).Seconds())
			if elapsed < credit {
				credit = elapsed
			}
			if credit < 0 {
				credit = 0
			}
		}
		uptime += credit
	}

	return &models.ProviderHealth{
		ProviderID:     providerID,
		Status:         status,
		LastCheck:      result.CheckedAt,
		ResponseTimeMs: result.LatencyMs,
		Error:          result.Error,
		UptimeSeconds:  uptime,
	}
}

// recordHealth 更新缓存、落库、触发告警
// 落库失败只记录日志并标记待重试，不影响缓存和本轮其它供应商
func (m *Monitor) recordHealth(provider *models.Provider, h *models.ProviderHealth, cfg config.MonitorConfig) {
	prev := m.previousHealth(provider.ID)

	persistFailed := false
	if err := m.store.SaveHealth(h); err != nil {
		m.logger.Errorf("保存供应商 %s 健康记录失败: %v", provider.Identifier, err)
		persistFailed = true
	}

	m.mu.Lock()
	copied := *h
	m.healthCache[provider.ID] = &copied
	m.dirty[provider.ID] = persistFailed
	m.mu.Unlock()

	m.emitAlerts(provider, prev, h, cfg)
}

// emitAlerts 比较新旧状态并产生告警与事件
// down 和 recovered 只在状态跃迁时告警；
// degraded 表示延迟超阈值，每次超限检查都告警，即使状态未变化
func (m *Monitor) emitAlerts(provider *models.Provider, prev, h *models.ProviderHealth, cfg config.MonitorConfig) {
	prevStatus := models.HealthStatusUnknown
	if prev != nil {
		prevStatus = prev.Status
	}
	transition := prevStatus != h.Status

	// 状态跃迁事件
	if transition && m.events != nil {
		m.events.LogInfo(models.EventTypeHealthTransition,
			fmt.Sprintf("供应商 %s: %s → %s", provider.Identifier, prevStatus, h.Status),
			map[string]interface{}{
				"provider_id":      provider.ID,
				"from":             prevStatus,
				"to":               h.Status,
				"response_time_ms": h.ResponseTimeMs,
			})
	}

	if !cfg.EnableAlerting {
		return
	}

	var alert *models.HealthAlert
	switch h.Status {
	case models.HealthStatusHealthy:
		// 从未知到健康不算恢复
		if transition && (prevStatus == models.HealthStatusDegraded || prevStatus == models.HealthStatusDown) {
			alert = &models.HealthAlert{
				ProviderID: provider.ID,
				Type:       models.AlertTypeRecovered,
				Severity:   models.AlertSeverityLow,
				Message:    fmt.Sprintf("provider %s recovered (%dms)", provider.Identifier, h.ResponseTimeMs),
				Timestamp:  h.LastCheck,
			}
			now := h.LastCheck
			m.resolveActiveAlerts(provider.ID, now)
		}
	case models.HealthStatusDegraded:
		alert = &models.HealthAlert{
			ProviderID: provider.ID,
			Type:       models.AlertTypeDegraded,
			Severity:   models.AlertSeverityMedium,
			Message: fmt.Sprintf("provider %s degraded: response time %dms exceeds threshold %dms",
				provider.Identifier, h.ResponseTimeMs, cfg.Alerts.ResponseTimeMs),
			Timestamp: h.LastCheck,
		}
	case models.HealthStatusDown:
		if transition {
			alert = &models.HealthAlert{
				ProviderID: provider.ID,
				Type:       models.AlertTypeDown,
				Severity:   models.AlertSeverityCritical,
				Message:    fmt.Sprintf("provider %s is down: %s", provider.Identifier, h.Error),
				Timestamp:  h.LastCheck,
			}
		}
	}

	if alert == nil {
		return
	}

	if err := m.store.CreateAlert(alert); err != nil {
		m.logger.Errorf("保存告警失败: %v", err)
	}
	m.notifier.Publish(*alert)

	if m.events != nil {
		m.events.LogWarning(models.EventTypeHealthAlert, alert.Message, map[string]interface{}{
			"provider_id": provider.ID,
			"type":        alert.Type,
			"severity":    alert.Severity,
		})
	}
}

// resolveActiveAlerts 供应商恢复后将其活跃告警标记为已解决
func (m *Monitor) resolveActiveAlerts(providerID uint, at time.Time) {
	alerts, err := m.store.AlertsForProvider(providerID, 0)
	if err != nil {
		m.logger.Warnf("查询供应商 %d 告警失败: %v", providerID, err)
		return
	}
	for _, a := range alerts {
		if a.Type != models.AlertTypeRecovered && !a.Acknowledged && a.ResolvedAt == nil {
			if err := m.store.ResolveAlert(a.ID, at); err != nil {
				m.logger.Warnf("标记告警 %d 已解决失败: %v", a.ID, err)
			}
		}
	}
}

// CollectMetrics 为每个激活供应商追加一条指标采样
// 以最近一小时的健康记录为窗口计算请求数、错误数和可用率
func (m *Monitor) CollectMetrics() {
	providers, err := m.catalog.ActiveProviders()
	if err != nil {
		m.logger.Errorf("获取供应商列表失败，跳过指标采集: %v", err)
		return
	}

	now := time.Now()
	window := now.Add(-1 * time.Hour)

	for _, p := range providers {
		rows, err := m.store.HealthHistorySince(p.ID, window)
		if err != nil {
			m.logger.Warnf("查询供应商 %s 健康历史失败: %v", p.Identifier, err)
			continue
		}
		if len(rows) == 0 {
			continue
		}

		var errCount int64
		for _, row := range rows {
			if row.Status == models.HealthStatusDown {
				errCount++
			}
		}
		total := int64(len(rows))
		latest := rows[len(rows)-1]

		metric := &models.PerformanceMetric{
			ProviderID:     p.ID,
			Timestamp:      now,
			ResponseTimeMs: latest.ResponseTimeMs,
			Success:        latest.Status != models.HealthStatusDown,
			RequestCount:   total,
			ErrorCount:     errCount,
			Availability:   float64(total-errCount) / float64(total) * 100,
		}

		if err := m.store.SaveMetric(metric); err != nil {
			m.logger.Warnf("保存供应商 %s 指标失败: %v", p.Identifier, err)
		}
	}
}

// previousHealth 上一次的健康记录（缓存优先，回退存储）
func (m *Monitor) previousHealth(providerID uint) *models.ProviderHealth {
	m.mu.RLock()
	if h, ok := m.healthCache[providerID]; ok {
		copied := *h
		m.mu.RUnlock()
		return &copied
	}
	m.mu.RUnlock()

	h, err := m.store.LatestHealth(providerID)
	if err != nil {
		return nil
	}
	return h
}

// flushCache 把落库失败的缓存项补写到存储
func (m *Monitor) flushCache() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for pid, isDirty := range m.dirty {
		if !isDirty {
			continue
		}
		h, ok := m.healthCache[pid]
		if !ok {
			continue
		}
		copied := *h
		if err := m.store.SaveHealth(&copied); err != nil {
			m.logger.Errorf("停机 flush 供应商 %d 健康记录失败: %v", pid, err)
			continue
		}
		m.dirty[pid] = false
	}
}

// snapshotConfig 读取配置快照
// 网络调用全部基于调用前的快照，不在持锁状态下发请求
func (m *Monitor) snapshotConfig() config.MonitorConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}
