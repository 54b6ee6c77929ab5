// Package sqlitestore 提供基于 SQLite 的配置键值存储
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"doom-loot/internal/pkg/config"

	_ "modernc.org/sqlite"
)

var _ config.Store = (*Store)(nil)

// Store 使用 SQLite 持久化配置项
type Store struct {
	db *sql.DB
}

// Open 打开（必要时创建）配置数据库并执行迁移
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("settings path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create settings dir: %w", err)
	}
	dsn := cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close 关闭数据库句柄
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get 读取配置项，不存在时返回 ok=false
func (s *Store) Get(ctx context.Context, group, key string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, fmt.Errorf("get setting: store is nil")
	}
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE config_group = ? AND key = ?`, group, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting: %w", err)
	}
	return value, true, nil
}

// Set 写入或覆盖配置项
func (s *Store) Set(ctx context.Context, group, key, value string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("set setting: store is nil")
	}
	if key == "" {
		return fmt.Errorf("set setting: key is empty")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (config_group, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(config_group, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		group, key, value, now)
	if err != nil {
		return fmt.Errorf("set setting: upsert: %w", err)
	}
	return nil
}
