package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Xingyelan/Vega-Registry/internal/api"
	"github.com/Xingyelan/Vega-Registry/internal/catalog"
	"github.com/Xingyelan/Vega-Registry/internal/config"
	"github.com/Xingyelan/Vega-Registry/internal/connection"
	"github.com/Xingyelan/Vega-Registry/internal/crypto"
	"github.com/Xingyelan/Vega-Registry/internal/db"
	"github.com/Xingyelan/Vega-Registry/internal/events"
	"github.com/Xingyelan/Vega-Registry/internal/health"
	"github.com/Xingyelan/Vega-Registry/internal/logging"
	"github.com/Xingyelan/Vega-Registry/internal/migration"
	"github.com/Xingyelan/Vega-Registry/internal/prober"
	"github.com/Xingyelan/Vega-Registry/internal/registry"
	"github.com/joho/godotenv"
)

const (
	// Version 项目版本
	Version = "0.1.0"
	// AppName 应用名称
	AppName = "Vega-Registry"
)

func main() {
	// .env 可选，生产环境直接用系统环境变量
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置加载失败: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.ParseLevel(cfg.Server.LogLevel), cfg.Server.LogFile)
	defer logger.Close()

	logger.Infof("=== %s v%s ===", AppName, Version)

	// 加密密钥可选：缺失时凭证明文存储（仅限开发环境）
	encryptionKey, err := crypto.LoadEncryptionKey()
	if err != nil {
		logger.Warnf("未配置加密密钥，凭证将明文存储: %v", err)
		encryptionKey = nil
	}

	// 初始化数据库
	database, err := db.InitDatabase(&cfg.Database)
	if err != nil {
		logger.Errorf("数据库初始化失败: %v", err)
		os.Exit(1)
	}
	if err := db.AutoMigrate(database); err != nil {
		logger.Errorf("数据库迁移失败: %v", err)
		os.Exit(1)
	}

	// 组装服务
	eventLog := events.NewService(database)
	pb := prober.NewProber(cfg.Monitor.ProbeTimeout)

	catalogRepo := catalog.NewRepository(database)
	var catalogSvc *catalog.Service
	if len(encryptionKey) > 0 {
		catalogSvc = catalog.NewServiceWithEncryption(catalogRepo, encryptionKey)
	} else {
		catalogSvc = catalog.NewService(catalogRepo)
	}

	healthStore := health.NewStore(database)
	monitor := health.NewMonitor(cfg.Monitor, catalogRepo, catalogSvc, pb, healthStore, eventLog, logger)

	reg := registry.NewRegistry(cfg.Registry, catalogRepo, monitor, pb, eventLog, logger)

	connRepo := connection.NewRepository(database)
	connSvc := connection.NewService(connRepo, catalogRepo, pb, encryptionKey)

	orchestrator := migration.NewOrchestrator(connRepo, connSvc, catalogRepo, pb, eventLog, logger)

	// 启动后台循环
	monitor.Start()
	reg.Start()

	// HTTP 服务
	router := api.SetupRouter(api.Deps{
		Catalog:      catalogSvc,
		Registry:     reg,
		Monitor:      monitor,
		HealthStore:  healthStore,
		Connections:  connSvc,
		Orchestrator: orchestrator,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Infof("HTTP 服务监听 %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("HTTP 服务异常退出: %v", err)
		}
	}()

	// 优雅停机：HTTP → 监控 → 注册表 → 数据库
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Infof("收到停止信号，开始优雅停机")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("HTTP 停机超时: %v", err)
	}

	monitor.Stop()
	reg.Stop()

	if err := db.CloseDatabase(database); err != nil {
		logger.Warnf("关闭数据库失败: %v", err)
	}
	logger.Infof("👋 %s 已退出", AppName)
}
