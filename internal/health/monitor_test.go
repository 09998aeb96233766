package health

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Xingyelan/Vega-Registry/internal/catalog"
	"github.com/Xingyelan/Vega-Registry/internal/config"
	"github.com/Xingyelan/Vega-Registry/internal/events"
	"github.com/Xingyelan/Vega-Registry/internal/logging"
	"github.com/Xingyelan/Vega-Registry/internal/models"
	"github.com/Xingyelan/Vega-Registry/internal/prober"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// monitorFixture 监控器集成测试环境：内存库 + 真实目录 + httptest 上游
type monitorFixture struct {
	db      *gorm.DB
	repo    *catalog.Repository
	service *catalog.Service
	store   *Store
	monitor *Monitor
}

func monitorConfig() config.MonitorConfig {
	return config.MonitorConfig{
		HealthCheckInterval: time.Minute,
		MetricsInterval:     time.Minute,
		ProbeTimeout:        5 * time.Second,
		Alerts: config.AlertThresholds{
			ResponseTimeMs:   5000,
			ErrorRatePercent: 10,
			UptimePercent:    99,
		},
		RetentionDays:           30,
		EnableAlerting:          true,
		EnableMetricsCollection: true,
	}
}

func setupMonitor(t *testing.T, cfg config.MonitorConfig) *monitorFixture {
	db := setupTestDB(t)
	require.NoError(t, db.AutoMigrate(&models.SystemEvent{}))

	repo := catalog.NewRepository(db)
	service := catalog.NewService(repo)
	store := NewStore(db)
	logger := logging.New(logging.ParseLevel("error"), "")

	monitor := NewMonitor(cfg, repo, service, prober.NewProber(5*time.Second), store, events.NewService(db), logger)
	return &monitorFixture{db: db, repo: repo, service: service, store: store, monitor: monitor}
}

func (f *monitorFixture) addProvider(t *testing.T, identifier, baseURL, status string) *models.Provider {
	p := &models.Provider{
		Identifier: identifier,
		Name:       identifier,
		BaseURL:    baseURL,
		AuthMethod: models.AuthMethodAPIKey,
		Status:     status,
	}
	require.NoError(t, p.SetAuthConfig(&models.AuthConfig{Fields: map[string]string{"api_key": "sk-test"}}))
	require.NoError(t, f.repo.Create(p))
	return p
}

func okServer(t *testing.T) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server
}

// TestMonitor_CheckProviderHealth_Healthy 快速响应的供应商判定为 healthy
func TestMonitor_CheckProviderHealth_Healthy(t *testing.T) {
	f := setupMonitor(t, monitorConfig())
	p := f.addProvider(t, "fast-llm", okServer(t).URL, models.ProviderStatusActive)

	h, err := f.monitor.CheckProviderHealth(p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.HealthStatusHealthy, h.Status)
	assert.Empty(t, h.Error)

	// 结果写入存储
	latest, err := f.store.LatestHealth(p.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, models.HealthStatusHealthy, latest.Status)
}

// TestMonitor_CheckProviderHealth_Degraded 成功但超过延迟阈值判定为 degraded
func TestMonitor_CheckProviderHealth_Degraded(t *testing.T) {
	cfg := monitorConfig()
	cfg.Alerts.ResponseTimeMs = 10 // 极低阈值，普通延迟即触发

	f := setupMonitor(t, cfg)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(30 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	p := f.addProvider(t, "slow-llm", server.URL, models.ProviderStatusActive)

	h, err := f.monitor.CheckProviderHealth(p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.HealthStatusDegraded, h.Status)
	assert.Greater(t, h.ResponseTimeMs, int64(10))

	// degraded 产生一条 medium 告警
	alerts, err := f.store.AlertsForProvider(p.ID, 0)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertTypeDegraded, alerts[0].Type)
	assert.Equal(t, models.AlertSeverityMedium, alerts[0].Severity)
}

// TestMonitor_DegradedAlertsOnEveryBreach 延迟持续超阈值时每次检查都告警
func TestMonitor_DegradedAlertsOnEveryBreach(t *testing.T) {
	cfg := monitorConfig()
	cfg.Alerts.ResponseTimeMs = 10

	f := setupMonitor(t, cfg)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(30 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	p := f.addProvider(t, "slow-llm", server.URL, models.ProviderStatusActive)

	for i := 0; i < 3; i++ {
		h, err := f.monitor.CheckProviderHealth(p.ID)
		require.NoError(t, err)
		require.Equal(t, models.HealthStatusDegraded, h.Status)
	}

	// 状态没有跃迁，但每次超限都是一次新的告警
	alerts, err := f.store.AlertsForProvider(p.ID, 0)
	require.NoError(t, err)
	require.Len(t, alerts, 3)
	for _, a := range alerts {
		assert.Equal(t, models.AlertTypeDegraded, a.Type)
		assert.Equal(t, models.AlertSeverityMedium, a.Severity)
	}
}

// TestMonitor_CheckProviderHealth_Down 探测失败判定为 down，同步调用返回错误
func TestMonitor_CheckProviderHealth_Down(t *testing.T) {
	f := setupMonitor(t, monitorConfig())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	p := f.addProvider(t, "dead-llm", server.URL, models.ProviderStatusActive)

	h, err := f.monitor.CheckProviderHealth(p.ID)
	require.Error(t, err)
	require.NotNil(t, h)
	assert.Equal(t, models.HealthStatusDown, h.Status)
	assert.NotEmpty(t, h.Error)

	alerts, _ := f.store.AlertsForProvider(p.ID, 0)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertTypeDown, alerts[0].Type)
	assert.Equal(t, models.AlertSeverityCritical, alerts[0].Severity)
}

// TestMonitor_CheckProviderHealth_NotFound 未知供应商直接返回 not-found
func TestMonitor_CheckProviderHealth_NotFound(t *testing.T) {
	f := setupMonitor(t, monitorConfig())

	h, err := f.monitor.CheckProviderHealth(9999)
	assert.Nil(t, h)
	assert.ErrorIs(t, err, catalog.ErrProviderNotFound)
}

// TestMonitor_NoDuplicateAlertForUnchangedStatus down 持续时只在跃迁那次告警
func TestMonitor_NoDuplicateAlertForUnchangedStatus(t *testing.T) {
	f := setupMonitor(t, monitorConfig())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	p := f.addProvider(t, "dead-llm", server.URL, models.ProviderStatusActive)

	f.monitor.CheckProviderHealth(p.ID)
	f.monitor.CheckProviderHealth(p.ID)
	f.monitor.CheckProviderHealth(p.ID)

	alerts, err := f.store.AlertsForProvider(p.ID, 0)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

// TestMonitor_UnknownToHealthyEmitsNothing 初次检查即健康不产生告警
func TestMonitor_UnknownToHealthyEmitsNothing(t *testing.T) {
	f := setupMonitor(t, monitorConfig())
	p := f.addProvider(t, "fast-llm", okServer(t).URL, models.ProviderStatusActive)

	f.monitor.CheckProviderHealth(p.ID)

	alerts, err := f.store.AlertsForProvider(p.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

// TestMonitor_RecoveryResolvesAlerts 恢复产生 low 告警并解决此前的活跃告警
func TestMonitor_RecoveryResolvesAlerts(t *testing.T) {
	f := setupMonitor(t, monitorConfig())

	var failing atomic.Bool
	failing.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	p := f.addProvider(t, "flaky-llm", server.URL, models.ProviderStatusActive)

	// down → 一条 critical 告警
	f.monitor.CheckProviderHealth(p.ID)

	// 恢复
	failing.Store(false)
	h, err := f.monitor.CheckProviderHealth(p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.HealthStatusHealthy, h.Status)

	alerts, err := f.store.AlertsForProvider(p.ID, 0)
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	var down, recovered *models.HealthAlert
	for _, a := range alerts {
		switch a.Type {
		case models.AlertTypeDown:
			down = a
		case models.AlertTypeRecovered:
			recovered = a
		}
	}
	require.NotNil(t, down)
	require.NotNil(t, recovered)
	assert.Equal(t, models.AlertSeverityLow, recovered.Severity)
	// down 告警被自动标记为已解决
	assert.NotNil(t, down.ResolvedAt)
}

// TestMonitor_CheckAllProviders_SkipsInactive 只探测激活供应商
func TestMonitor_CheckAllProviders_SkipsInactive(t *testing.T) {
	f := setupMonitor(t, monitorConfig())

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	active := f.addProvider(t, "active-llm", okServer(t).URL, models.ProviderStatusActive)
	inactive := f.addProvider(t, "paused-llm", server.URL, models.ProviderStatusInactive)
	draft := f.addProvider(t, "draft-llm", server.URL, models.ProviderStatusDraft)

	f.monitor.CheckAllProviders()

	// 非激活供应商完全没有收到请求
	assert.Equal(t, int64(0), hits.Load())

	healthMap, err := f.monitor.GetProviderHealth()
	require.NoError(t, err)
	assert.Contains(t, healthMap, active.ID)
	assert.NotContains(t, healthMap, inactive.ID)
	assert.NotContains(t, healthMap, draft.ID)
}

// TestMonitor_OneBadProviderDoesNotStopOthers 单个故障供应商不影响其它检查
func TestMonitor_OneBadProviderDoesNotStopOthers(t *testing.T) {
	f := setupMonitor(t, monitorConfig())

	good := f.addProvider(t, "good-llm", okServer(t).URL, models.ProviderStatusActive)
	// 无法解析的地址：网络层直接失败
	bad := f.addProvider(t, "bad-llm", "http://127.0.0.1:1", models.ProviderStatusActive)

	f.monitor.CheckAllProviders()

	healthMap, err := f.monitor.GetProviderHealth()
	require.NoError(t, err)
	require.Contains(t, healthMap, good.ID)
	require.Contains(t, healthMap, bad.ID)
	assert.Equal(t, models.HealthStatusHealthy, healthMap[good.ID].Status)
	assert.Equal(t, models.HealthStatusDown, healthMap[bad.ID].Status)
}

// TestMonitor_UptimeAccumulates 健康时按距上次检查的实际时长累加，封顶一个检查周期
func TestMonitor_UptimeAccumulates(t *testing.T) {
	cfg := monitorConfig()
	cfg.HealthCheckInterval = 10 * time.Second

	f := setupMonitor(t, cfg)
	p := f.addProvider(t, "fast-llm", okServer(t).URL, models.ProviderStatusActive)

	h1, _ := f.monitor.CheckProviderHealth(p.ID)
	assert.Equal(t, int64(10), h1.UptimeSeconds)

	// 紧随其后的手工检查几乎没有实际流逝时间，不虚增计数
	h2, _ := f.monitor.CheckProviderHealth(p.ID)
	assert.Equal(t, h1.UptimeSeconds, h2.UptimeSeconds)
}

// TestMonitor_UptimeCreditCappedAtInterval 距上次检查超过一个周期时只记一个周期
func TestMonitor_UptimeCreditCappedAtInterval(t *testing.T) {
	cfg := monitorConfig()
	cfg.HealthCheckInterval = 10 * time.Second

	f := setupMonitor(t, cfg)
	p := f.addProvider(t, "fast-llm", okServer(t).URL, models.ProviderStatusActive)

	// 上次检查在 30 秒前
	require.NoError(t, f.store.SaveHealth(&models.ProviderHealth{
		ProviderID:    p.ID,
		Status:        models.HealthStatusHealthy,
		LastCheck:     time.Now().Add(-30 * time.Second),
		UptimeSeconds: 100,
	}))

	h, err := f.monitor.CheckProviderHealth(p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(110), h.UptimeSeconds)
}

// TestMonitor_AlertNotifier 告警通过订阅通道分发
func TestMonitor_AlertNotifier(t *testing.T) {
	f := setupMonitor(t, monitorConfig())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	p := f.addProvider(t, "dead-llm", server.URL, models.ProviderStatusActive)
	ch := f.monitor.Notifier().Subscribe()

	f.monitor.CheckProviderHealth(p.ID)

	select {
	case alert := <-ch:
		assert.Equal(t, p.ID, alert.ProviderID)
		assert.Equal(t, models.AlertTypeDown, alert.Type)
	case <-time.After(time.Second):
		t.Fatal("expected alert on subscription channel")
	}
}

// TestMonitor_CollectMetrics 指标来自最近一小时的健康历史
func TestMonitor_CollectMetrics(t *testing.T) {
	f := setupMonitor(t, monitorConfig())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	p := f.addProvider(t, "fast-llm", server.URL, models.ProviderStatusActive)

	// 两次健康 + 一条手工注入的 down 历史
	f.monitor.CheckProviderHealth(p.ID)
	f.monitor.CheckProviderHealth(p.ID)
	require.NoError(t, f.store.SaveHealth(&models.ProviderHealth{
		ProviderID: p.ID,
		Status:     models.HealthStatusDown,
		LastCheck:  time.Now().Add(-10 * time.Minute),
	}))

	f.monitor.CollectMetrics()

	metrics, err := f.store.MetricsSince(p.ID, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, metrics, 1)

	m := metrics[0]
	assert.Equal(t, int64(3), m.RequestCount)
	assert.Equal(t, int64(1), m.ErrorCount)
	assert.InDelta(t, 66.7, m.Availability, 0.1)
	assert.True(t, m.Success)
}

// TestMonitor_StartStop 生命周期幂等，停止后缓存落盘
func TestMonitor_StartStop(t *testing.T) {
	f := setupMonitor(t, monitorConfig())

	f.monitor.Start()
	f.monitor.Start() // 幂等
	f.monitor.Stop()
	f.monitor.Stop() // 幂等
}
