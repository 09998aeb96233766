package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Xingyelan/Vega-Registry/internal/catalog"
	"github.com/Xingyelan/Vega-Registry/internal/config"
	"github.com/Xingyelan/Vega-Registry/internal/connection"
	"github.com/Xingyelan/Vega-Registry/internal/health"
	"github.com/Xingyelan/Vega-Registry/internal/logging"
	"github.com/Xingyelan/Vega-Registry/internal/migration"
	"github.com/Xingyelan/Vega-Registry/internal/models"
	"github.com/Xingyelan/Vega-Registry/internal/prober"
	"github.com/Xingyelan/Vega-Registry/internal/registry"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// apiFixture 路由集成测试环境：完整服务栈 + 内存库
type apiFixture struct {
	db     *gorm.DB
	engine *gin.Engine
}

func setupAPI(t *testing.T) *apiFixture {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Provider{}, &models.Model{},
		&models.ProviderHealth{}, &models.PerformanceMetric{}, &models.HealthAlert{},
		&models.Connection{}, &models.ConnectionBackup{},
		&models.SystemEvent{},
	))

	pb := prober.NewProber(2 * time.Second)
	log := logging.New(logging.ParseLevel("error"), "")

	catalogRepo := catalog.NewRepository(db)
	catalogSvc := catalog.NewService(catalogRepo)
	healthStore := health.NewStore(db)

	monitorCfg := config.MonitorConfig{
		HealthCheckInterval: time.Minute,
		MetricsInterval:     time.Minute,
		ProbeTimeout:        2 * time.Second,
		Alerts:              config.AlertThresholds{ResponseTimeMs: 5000},
		RetentionDays:       30,
		EnableAlerting:      true,
	}
	monitor := health.NewMonitor(monitorCfg, catalogRepo, catalogSvc, pb, healthStore, nil, log)

	registryCfg := config.RegistryConfig{CacheTTL: 5 * time.Minute, StatusCheckInterval: time.Minute}
	reg := registry.NewRegistry(registryCfg, catalogRepo, monitor, pb, nil, log)

	connRepo := connection.NewRepository(db)
	connSvc := connection.NewService(connRepo, catalogRepo, pb, nil)
	orchestrator := migration.NewOrchestrator(connRepo, connSvc, catalogRepo, pb, nil, log)

	engine := SetupRouter(Deps{
		Catalog:      catalogSvc,
		Registry:     reg,
		Monitor:      monitor,
		HealthStore:  healthStore,
		Connections:  connSvc,
		Orchestrator: orchestrator,
	})
	return &apiFixture{db: db, engine: engine}
}

func (f *apiFixture) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

// TestHealthEndpoint 根健康检查返回服务信息和请求统计
func TestHealthEndpoint(t *testing.T) {
	f := setupAPI(t)

	w := f.request(t, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Contains(t, resp, "stats")
}

// TestProviderLifecycle 供应商创建 → 查询 → 列表 → 删除
func TestProviderLifecycle(t *testing.T) {
	f := setupAPI(t)

	w := f.request(t, "POST", "/api/providers", gin.H{
		"identifier":  "acme",
		"name":        "Acme LLM",
		"base_url":    "https://api.acme.test",
		"auth_method": "api_key",
		"auth_config": gin.H{"fields": gin.H{"api_key": "sk-secret-1234567890"}},
		"status":      "active",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Provider catalog.ProviderResponse `json:"provider"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotZero(t, created.Provider.ID)
	assert.Equal(t, "acme", created.Provider.Identifier)

	// 单查：凭证脱敏
	w = f.request(t, "GET", "/api/providers/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "sk-secret-1234567890")

	// 列表
	w = f.request(t, "GET", "/api/providers?status=active", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "acme")

	// 重复标识符 → 409
	w = f.request(t, "POST", "/api/providers", gin.H{
		"identifier":  "acme",
		"name":        "Duplicate",
		"base_url":    "https://dup.test",
		"auth_method": "api_key",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// 删除
	w = f.request(t, "DELETE", "/api/providers/1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.request(t, "GET", "/api/providers/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestRegistryEndpoints 注册表暴露动态条目和旧式兜底
func TestRegistryEndpoints(t *testing.T) {
	f := setupAPI(t)

	w := f.request(t, "POST", "/api/providers", gin.H{
		"identifier":  "acme",
		"name":        "Acme LLM",
		"base_url":    "https://api.acme.test",
		"auth_method": "api_key",
		"auth_config": gin.H{"fields": gin.H{"api_key": "sk-test"}},
		"status":      "active",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.request(t, "POST", "/api/registry/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.request(t, "GET", "/api/registry/providers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "acme")
	assert.Contains(t, body, "openai-basic")

	w = f.request(t, "GET", "/api/registry/providers/acme", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.request(t, "GET", "/api/registry/providers/no-such", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.request(t, "GET", "/api/registry/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status registry.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, 4, status.ProviderCount) // acme + 三个旧式兜底
	assert.Equal(t, 3, status.LegacyCount)
}

// TestRegistryTestProvider_LegacyRejected 旧式兜底条目没有目录凭证，不能探测
func TestRegistryTestProvider_LegacyRejected(t *testing.T) {
	f := setupAPI(t)

	w := f.request(t, "POST", "/api/registry/providers/openai-basic/test", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "LEGACY_PROVIDER")
}

// TestConnectionAndMigrationFlow 连接创建 → 迁移计划的错误映射
func TestConnectionAndMigrationFlow(t *testing.T) {
	f := setupAPI(t)

	w := f.request(t, "POST", "/api/connections", gin.H{
		"user_id":         1,
		"name":            "my-legacy",
		"kind":            "legacy",
		"legacy_provider": "mystery-ai",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var conn models.Connection
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conn))
	require.NotZero(t, conn.ID)

	// 目录里没有 mystery-ai → 404 NO_TARGET_PROVIDER
	w = f.request(t, "POST", "/api/migration/plan", gin.H{"connection_id": conn.ID})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NO_TARGET_PROVIDER")

	// 不存在的连接 → 404 NOT_FOUND
	w = f.request(t, "POST", "/api/migration/plan", gin.H{"connection_id": 9999})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 批量迁移缺少连接列表 → 400
	w = f.request(t, "POST", "/api/migration/batch", gin.H{"connection_ids": []uint{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestHealthRoutes 健康监控端点
func TestHealthRoutes(t *testing.T) {
	f := setupAPI(t)

	w := f.request(t, "GET", "/api/health/providers", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.request(t, "GET", "/api/health/alerts", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// 不存在的告警确认 → 404
	w = f.request(t, "POST", "/api/health/alerts/9999/acknowledge", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 非数字 ID → 400
	w = f.request(t, "GET", "/api/health/providers/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
