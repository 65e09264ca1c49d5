// Package config загрузка конфигурации сервиса из TOML-файла
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config корневая конфигурация сервиса
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Logs     LogsConfig     `toml:"logs"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Stripe   StripeConfig   `toml:"stripe"`
	Kafka    KafkaConfig    `toml:"kafka"`
	Service  ServiceConfig  `toml:"service"`
}

// ServerConfig настройки HTTP-сервера
type ServerConfig struct {
	HTTPPort        int `toml:"http_port"`
	ReadTimeout     int `toml:"read_timeout"`
	WriteTimeout    int `toml:"write_timeout"`
	IdleTimeout     int `toml:"idle_timeout"`
	ShutdownTimeout int `toml:"shutdown_timeout"`
}

// DatabaseConfig настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	User            string `toml:"user"`
	Password        string `toml:"password"`
	DBName          string `toml:"dbname"`
	SSLMode         string `toml:"sslmode"`
	MaxOpenConns    int    `toml:"max_open_conns"`
	MaxIdleConns    int    `toml:"max_idle_conns"`
	ConnMaxLifetime int    `toml:"conn_max_lifetime"` // секунды
}

// DSN собирает строку подключения к PostgreSQL
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// LogsConfig настройки логирования
type LogsConfig struct {
	File  string `toml:"file"`
	Level string `toml:"level"`
}

// MetricsConfig настройки прометеус-метрик
type MetricsConfig struct {
	Enabled     bool   `toml:"enabled"`
	Path        string `toml:"path"`
	ServiceName string `toml:"service_name"`
}

// StripeConfig настройки платежного шлюза
type StripeConfig struct {
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout"`
}

// KafkaConfig настройки брокера уведомлений
type KafkaConfig struct {
	Brokers             string `toml:"brokers"` // разделенный запятыми список
	NotificationsTopic  string `toml:"notifications_topic"`
	WriteTimeoutSeconds int    `toml:"write_timeout"`
}

// ServiceConfig бизнес-настройки сервиса
type ServiceConfig struct {
	// Таймзона по умолчанию для вычисления time-of-day bucket
	// освободившегося слота, если компания не передала свою
	DefaultTimezone string `toml:"default_timezone"`
}

// Load загружает конфигурацию из TOML-файла
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to decode %s: %w", path, err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults подставляет значения по умолчанию для незаполненных полей
func applyDefaults(cfg *Config) {
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 60
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 300
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Metrics.ServiceName == "" {
		cfg.Metrics.ServiceName = "cancellation-service"
	}
	if cfg.Stripe.TimeoutSeconds == 0 {
		cfg.Stripe.TimeoutSeconds = 10
	}
	if cfg.Kafka.NotificationsTopic == "" {
		cfg.Kafka.NotificationsTopic = "notifications.v1"
	}
	if cfg.Kafka.WriteTimeoutSeconds == 0 {
		cfg.Kafka.WriteTimeoutSeconds = 5
	}
	if cfg.Service.DefaultTimezone == "" {
		cfg.Service.DefaultTimezone = "Europe/London"
	}
}
