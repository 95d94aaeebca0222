package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr      string `yaml:"listen_addr"`
	Port            string `yaml:"port"`
	DatabaseDriver  string `yaml:"database_driver"`
	DatabasePath    string `yaml:"database_path"`
	DatabaseDSN     string `yaml:"database_dsn"`
	SessionSecret   string `yaml:"session_secret"`
	GinMode         string `yaml:"gin_mode"`
	LogLevel        string `yaml:"log_level"`
	BlobCompression string `yaml:"blob_compression"`

	BootstrapUserName     string `yaml:"bootstrap_user_name"`
	BootstrapUserPassword string `yaml:"bootstrap_user_password"`
	BootstrapUserEntity   string `yaml:"bootstrap_user_entity"`
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
func Load() AppConfig {
	port := envOr("PORT", "8080")

	return AppConfig{
		ListenAddr:            envOr("LISTEN_ADDR", fmt.Sprintf(":%s", port)),
		Port:                  port,
		DatabaseDriver:        strings.ToLower(envOr("DATABASE_DRIVER", "sqlite")),
		DatabasePath:          envOr("DATABASE_PATH", "tentpost.db"),
		DatabaseDSN:           env("DATABASE_DSN"),
		SessionSecret:         envOr("SESSION_SECRET", "tentpost-dev-secret"),
		GinMode:               envOr("GIN_MODE", "release"),
		LogLevel:              strings.ToLower(envOr("LOG_LEVEL", "info")),
		BlobCompression:       strings.ToLower(envOr("BLOB_COMPRESSION", "zstd")),
		BootstrapUserName:     env("BOOTSTRAP_USER_NAME"),
		BootstrapUserPassword: env("BOOTSTRAP_USER_PASSWORD"),
		BootstrapUserEntity:   env("BOOTSTRAP_USER_ENTITY"),
	}
}

// LoadFile 先读取环境变量，再用 YAML 文件中出现的字段覆盖。
func LoadFile(path string) (AppConfig, error) {
	cfg := Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return AppConfig{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	// 文件只改了 port 时，监听地址跟随端口。
	if strings.TrimSpace(env("LISTEN_ADDR")) == "" && !fileSets(data, "listen_addr") {
		cfg.ListenAddr = fmt.Sprintf(":%s", cfg.Port)
	}
	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))
	cfg.BlobCompression = strings.ToLower(strings.TrimSpace(cfg.BlobCompression))
	return cfg, nil
}

// DSN 返回当前驱动使用的连接串。
func (c AppConfig) DSN() string {
	if c.DatabaseDSN != "" {
		return c.DatabaseDSN
	}
	return c.DatabasePath
}

func fileSets(data []byte, key string) bool {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return false
	}
	_, ok := raw[key]
	return ok
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envOr(key, fallback string) string {
	if value := env(key); value != "" {
		return value
	}
	return fallback
}
