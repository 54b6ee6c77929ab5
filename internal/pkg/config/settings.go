package config

import (
	"context"
	"strconv"
	"sync"

	"doom-loot/internal/pkg/log"
	"doom-loot/internal/pkg/xerrors"
)

// Store 宿主提供的键值配置存储（按 group 命名空间隔离）
type Store interface {
	Get(ctx context.Context, group, key string) (string, bool, error)
	Set(ctx context.Context, group, key, value string) error
}

// MemoryStore 进程内配置存储，测试与无持久化场景使用
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore 创建内存配置存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, group, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[group+"."+key]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, group, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[group+"."+key] = value
	return nil
}

// 追踪器配置项
const (
	TrackerGroup = "doomlootlost"

	KeyEnableUI           = "enableUI"
	KeyTrackRiskedLoot    = "trackRiskedLoot"
	KeyDoomDeaths         = "doomDeaths"
	KeyLootLostToDeaths   = "lootLostToDeaths"
	KeyTotalLootValueLost = "totalLootValueLost"
)

// TrackerSettings 追踪器配置的类型化访问器
// 读取失败或值格式错误时返回默认值并记录日志，写入失败返回 AppError
type TrackerSettings struct {
	store  Store
	logger log.Logger
}

// NewTrackerSettings 创建配置访问器
func NewTrackerSettings(store Store, logger log.Logger) *TrackerSettings {
	if logger == nil {
		logger = log.GetLogger()
	}
	return &TrackerSettings{
		store:  store,
		logger: logger.With("component", "tracker_settings"),
	}
}

// EnableUI 是否显示侧边栏（默认开启）
func (s *TrackerSettings) EnableUI(ctx context.Context) bool {
	return s.getBool(ctx, KeyEnableUI, true)
}

// TrackRiskedLoot 是否追踪风险战利品（默认开启，界面隐藏）
func (s *TrackerSettings) TrackRiskedLoot(ctx context.Context) bool {
	return s.getBool(ctx, KeyTrackRiskedLoot, true)
}

func (s *TrackerSettings) DoomDeaths(ctx context.Context) int {
	return int(s.getInt64(ctx, KeyDoomDeaths, 0))
}

func (s *TrackerSettings) LootLostToDeaths(ctx context.Context) int {
	return int(s.getInt64(ctx, KeyLootLostToDeaths, 0))
}

func (s *TrackerSettings) TotalLootValueLost(ctx context.Context) int64 {
	return s.getInt64(ctx, KeyTotalLootValueLost, 0)
}

func (s *TrackerSettings) SetEnableUI(ctx context.Context, v bool) error {
	return s.set(ctx, KeyEnableUI, strconv.FormatBool(v))
}

func (s *TrackerSettings) SetTrackRiskedLoot(ctx context.Context, v bool) error {
	return s.set(ctx, KeyTrackRiskedLoot, strconv.FormatBool(v))
}

func (s *TrackerSettings) SetDoomDeaths(ctx context.Context, v int) error {
	return s.set(ctx, KeyDoomDeaths, strconv.Itoa(v))
}

// SetLossCounters 同时写入丢失次数与丢失总价值
func (s *TrackerSettings) SetLossCounters(ctx context.Context, count int, value int64) error {
	if err := s.set(ctx, KeyLootLostToDeaths, strconv.Itoa(count)); err != nil {
		return err
	}
	return s.set(ctx, KeyTotalLootValueLost, strconv.FormatInt(value, 10))
}

func (s *TrackerSettings) getBool(ctx context.Context, key string, def bool) bool {
	raw, ok := s.get(ctx, key)
	if !ok {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		s.logger.WarnContext(ctx, "malformed boolean setting, using default",
			log.String("key", key), log.String("value", raw))
		return def
	}
	return v
}

func (s *TrackerSettings) getInt64(ctx context.Context, key string, def int64) int64 {
	raw, ok := s.get(ctx, key)
	if !ok {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.logger.WarnContext(ctx, "malformed integer setting, using default",
			log.String("key", key), log.String("value", raw))
		return def
	}
	return v
}

func (s *TrackerSettings) get(ctx context.Context, key string) (string, bool) {
	raw, ok, err := s.store.Get(ctx, TrackerGroup, key)
	if err != nil {
		log.LogAppError(ctx, s.logger, "settings read failed", xerrors.NewSettingsError("get", key, err))
		return "", false
	}
	return raw, ok
}

func (s *TrackerSettings) set(ctx context.Context, key, value string) error {
	if err := s.store.Set(ctx, TrackerGroup, key, value); err != nil {
		appErr := xerrors.NewSettingsError("set", key, err)
		log.LogAppError(ctx, s.logger, "settings write failed", appErr)
		return appErr
	}
	return nil
}
