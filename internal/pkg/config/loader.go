package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// AppConfig 追踪器进程级配置，全部来自环境变量
type AppConfig struct {
	DataDir          string `env:"DOOM_LOOT_DATA_DIR"           envDefault:"./data"`
	LogLevel         string `env:"DOOM_LOOT_LOG_LEVEL"          envDefault:"info"`
	Environment      string `env:"DOOM_LOOT_ENVIRONMENT"        envDefault:"development"`
	SettingsDB       string `env:"DOOM_LOOT_SETTINGS_DB"`
	SnapshotSchedule string `env:"DOOM_LOOT_SNAPSHOT_SCHEDULE"  envDefault:"@every 1m"`
	MetricsNamespace string `env:"DOOM_LOOT_METRICS_NAMESPACE"  envDefault:"doomloot"`
	// NotifyBuffer UI 通知队列长度，队列满时丢弃通知
	NotifyBuffer int `env:"DOOM_LOOT_NOTIFY_BUFFER" envDefault:"64"`
	// DeathDedupWindow 同一次死亡的两个信号（死亡事件/聊天消息）合并窗口
	DeathDedupWindow time.Duration `env:"DOOM_LOOT_DEATH_DEDUP_WINDOW" envDefault:"10s"`
}

// LoadAppConfig 从环境变量加载配置
// 优先级：环境变量 > 默认值
func LoadAppConfig() (AppConfig, error) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("parse env: %w", err)
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return AppConfig{}, fmt.Errorf("DOOM_LOOT_DATA_DIR is empty")
	}
	if cfg.SettingsDB == "" {
		cfg.SettingsDB = filepath.Join(cfg.DataDir, "settings.db")
	}
	if cfg.NotifyBuffer <= 0 {
		cfg.NotifyBuffer = 64
	}
	return cfg, nil
}

// GetEnvOrDefault 获取环境变量，如果不存在则返回默认值
func GetEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
