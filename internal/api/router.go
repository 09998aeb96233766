package api

import (
	"time"

	"github.com/Xingyelan/Vega-Registry/internal/api/handlers"
	"github.com/Xingyelan/Vega-Registry/internal/catalog"
	"github.com/Xingyelan/Vega-Registry/internal/connection"
	"github.com/Xingyelan/Vega-Registry/internal/health"
	"github.com/Xingyelan/Vega-Registry/internal/migration"
	"github.com/Xingyelan/Vega-Registry/internal/registry"
	"github.com/Xingyelan/Vega-Registry/internal/stats"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Deps 路由层依赖
// 服务由 main 构建并管理生命周期，路由层只负责编排 HTTP 入口
type Deps struct {
	Catalog      *catalog.Service
	Registry     *registry.Registry
	Monitor      *health.Monitor
	HealthStore  *health.Store
	Connections  *connection.Service
	Orchestrator *migration.Orchestrator
}

// SetupRouter 配置路由
func SetupRouter(deps Deps) *gin.Engine {
	// 创建 Gin 引擎
	router := gin.Default()

	// CORS：控制台前端跨域访问
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// 请求统计
	counter := stats.NewRequestCounter(60 * time.Second)
	router.Use(func(c *gin.Context) {
		counter.Increment()
		c.Next()
		if c.Writer.Status() >= 500 {
			counter.IncrementError()
		}
	})

	// 健康检查端点
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "Vega-Registry",
			"stats":   counter.GetStats(),
		})
	})

	// API 路由组
	apiGroup := router.Group("/api")
	{
		setupCatalogRoutes(apiGroup, deps)
		setupRegistryRoutes(apiGroup, deps)
		setupHealthRoutes(apiGroup, deps)
		setupConnectionRoutes(apiGroup, deps)
		setupMigrationRoutes(apiGroup, deps)
	}

	return router
}

// setupCatalogRoutes 配置供应商目录路由
func setupCatalogRoutes(group *gin.RouterGroup, deps Deps) {
	handler := handlers.NewCatalogHandler(deps.Catalog)

	providers := group.Group("/providers")
	{
		providers.POST("", handler.CreateProvider)
		providers.GET("", handler.ListProviders)
		providers.GET("/:id", handler.GetProvider)
		providers.PUT("/:id", handler.UpdateProvider)
		providers.DELETE("/:id", handler.DeleteProvider)
		providers.GET("/:id/models", handler.ListModels)
	}

	modelsGroup := group.Group("/models")
	{
		modelsGroup.POST("", handler.CreateModel)
		modelsGroup.DELETE("/:id", handler.DeleteModel)
	}
}

// setupRegistryRoutes 配置注册表路由
func setupRegistryRoutes(group *gin.RouterGroup, deps Deps) {
	handler := handlers.NewRegistryHandler(deps.Registry, deps.Monitor)

	reg := group.Group("/registry")
	{
		reg.GET("/providers", handler.GetAvailableProviders)
		reg.GET("/providers/:id", handler.GetProvider)
		reg.POST("/providers/:id/test", handler.TestProvider)
		reg.POST("/refresh", handler.RefreshRegistry)
		reg.GET("/status", handler.GetRegistryStatus)
		reg.POST("/select", handler.SelectProvider)
	}
}

// setupHealthRoutes 配置健康监控路由
func setupHealthRoutes(group *gin.RouterGroup, deps Deps) {
	handler := handlers.NewHealthHandler(deps.Monitor, deps.HealthStore)

	healthGroup := group.Group("/health")
	{
		healthGroup.GET("/providers", handler.GetProviderHealth)
		healthGroup.GET("/providers/:id", handler.GetProviderHealthStatus)
		healthGroup.POST("/providers/:id/check", handler.CheckProvider)
		healthGroup.GET("/providers/:id/metrics", handler.GetMetrics)
		healthGroup.GET("/alerts", handler.ListAlerts)
		healthGroup.POST("/alerts/:id/acknowledge", handler.AcknowledgeAlert)
	}
}

// setupConnectionRoutes 配置连接路由
func setupConnectionRoutes(group *gin.RouterGroup, deps Deps) {
	handler := handlers.NewConnectionHandler(deps.Connections)

	connections := group.Group("/connections")
	{
		connections.POST("", handler.CreateConnection)
		connections.GET("", handler.ListConnections)
		connections.GET("/:id", handler.GetConnection)
		connections.PUT("/:id", handler.UpdateConnection)
		connections.DELETE("/:id", handler.DeleteConnection)
		connections.POST("/:id/test", handler.TestConnection)
	}
}

// setupMigrationRoutes 配置迁移路由
func setupMigrationRoutes(group *gin.RouterGroup, deps Deps) {
	handler := handlers.NewMigrationHandler(deps.Orchestrator)

	migrations := group.Group("/migration")
	{
		migrations.POST("/plan", handler.PlanMigration)
		migrations.POST("/migrate", handler.MigrateConnection)
		migrations.POST("/batch", handler.BatchMigrate)
		migrations.POST("/compatibility", handler.CheckCompatibility)
	}
}
