package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`              // 数据库文件路径
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大连接数
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大生命周期
	AutoMigrate     bool          `mapstructure:"auto_migrate"`      // 是否自动迁移
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"` // 为空则只输出到 stdout
}

// AlertThresholds 告警阈值
type AlertThresholds struct {
	ResponseTimeMs   int64   `mapstructure:"response_time_ms"`   // 响应时间阈值，超过视为 degraded
	ErrorRatePercent float64 `mapstructure:"error_rate_percent"` // 错误率阈值
	UptimePercent    float64 `mapstructure:"uptime_percent"`     // 可用率阈值
}

// MonitorConfig 健康监控配置
type MonitorConfig struct {
	HealthCheckInterval     time.Duration   `mapstructure:"health_check_interval"` // 健康检查周期
	MetricsInterval         time.Duration   `mapstructure:"metrics_interval"`      // 指标采集周期
	ProbeTimeout            time.Duration   `mapstructure:"probe_timeout"`         // 单次探测超时
	Alerts                  AlertThresholds `mapstructure:"alerts"`
	RetentionDays           int             `mapstructure:"retention_days"` // 历史数据保留天数
	EnableAlerting          bool            `mapstructure:"enable_alerting"`
	EnableMetricsCollection bool            `mapstructure:"enable_metrics_collection"`
}

// RegistryConfig 供应商注册表配置
type RegistryConfig struct {
	CacheTTL            time.Duration `mapstructure:"cache_ttl"`             // 缓存有效期
	StatusCheckInterval time.Duration `mapstructure:"status_check_interval"` // 可用性子循环周期
}

// Config 应用配置
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Registry RegistryConfig `mapstructure:"registry"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     8080,
			LogLevel: "info",
		},
		Database: DatabaseConfig{
			Path:            "./data/vega.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
			AutoMigrate:     true,
		},
		Monitor: MonitorConfig{
			HealthCheckInterval: 5 * time.Minute,
			MetricsInterval:     1 * time.Minute,
			ProbeTimeout:        30 * time.Second,
			Alerts: AlertThresholds{
				ResponseTimeMs:   5000,
				ErrorRatePercent: 10,
				UptimePercent:    99,
			},
			RetentionDays:           30,
			EnableAlerting:          true,
			EnableMetricsCollection: true,
		},
		Registry: RegistryConfig{
			CacheTTL:            5 * time.Minute,
			StatusCheckInterval: 5 * time.Minute,
		},
	}
}

// LoadConfig 加载配置（默认值 + 环境变量覆盖）
func LoadConfig() (*Config, error) {
	config := DefaultConfig()

	// 服务器与数据库
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		config.Database.Path = dbPath
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		var p int
		if _, err := fmt.Sscanf(port, "%d", &p); err == nil {
			config.Server.Port = p
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Server.LogLevel = level
	}
	if file := os.Getenv("LOG_FILE"); file != "" {
		config.Server.LogFile = file
	}

	// 健康监控
	applyDurationMs("HEALTH_CHECK_INTERVAL_MS", &config.Monitor.HealthCheckInterval)
	applyDurationMs("METRICS_INTERVAL_MS", &config.Monitor.MetricsInterval)
	applyDurationMs("PROBE_TIMEOUT_MS", &config.Monitor.ProbeTimeout)
	applyInt64("ALERT_RESPONSE_TIME_MS", &config.Monitor.Alerts.ResponseTimeMs)
	applyFloat("ALERT_ERROR_RATE_PERCENT", &config.Monitor.Alerts.ErrorRatePercent)
	applyFloat("ALERT_UPTIME_PERCENT", &config.Monitor.Alerts.UptimePercent)
	applyInt("RETENTION_DAYS", &config.Monitor.RetentionDays)
	applyBool("ENABLE_ALERTING", &config.Monitor.EnableAlerting)
	applyBool("ENABLE_METRICS", &config.Monitor.EnableMetricsCollection)

	// 注册表
	applyDurationMs("REGISTRY_CACHE_TTL_MS", &config.Registry.CacheTTL)
	applyDurationMs("REGISTRY_STATUS_INTERVAL_MS", &config.Registry.StatusCheckInterval)

	return config, nil
}

// applyDurationMs 按毫秒数覆盖时长配置
func applyDurationMs(env string, target *time.Duration) {
	if v := os.Getenv(env); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil && ms > 0 {
			*target = time.Duration(ms) * time.Millisecond
		}
	}
}

func applyInt(env string, target *int) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func applyInt64(env string, target *int64) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*target = n
		}
	}
}

func applyFloat(env string, target *float64) {
	if v := os.Getenv(env); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*target = f
		}
	}
}

func applyBool(env string, target *bool) {
	if v := os.Getenv(env); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}
