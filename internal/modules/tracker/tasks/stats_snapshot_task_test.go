package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doom-loot/internal/model/lootmodel"
	"doom-loot/internal/modules/tracker/service"
	"doom-loot/internal/pkg/config"
	"doom-loot/internal/pkg/log"
	"doom-loot/internal/pkg/xerrors"
)

type failingStore struct{}

func (failingStore) Get(context.Context, string, string) (string, bool, error) {
	return "", false, nil
}

func (failingStore) Set(context.Context, string, string, string) error {
	return errors.New("read-only")
}

func TestStatsSnapshotTask_RunOnce(t *testing.T) {
	ctx := context.Background()
	settings := config.NewTrackerSettings(config.NewMemoryStore(), log.NewNopLogger())
	stats := service.NewStatistics()
	task := NewStatsSnapshotTask(stats, settings, "", log.NewNopLogger())

	stats.IncrementDeaths()
	stats.AddRecord(lootmodel.NewRiskedLootRecord(
		[]lootmodel.ItemEntry{{Name: "Coins", ID: 995, Quantity: 100, Price: 1}}, time.Now(), 1, true))

	written, err := task.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, written)
	assert.Equal(t, 1, settings.DoomDeaths(ctx))
	assert.Equal(t, 1, settings.LootLostToDeaths(ctx))
	assert.Equal(t, int64(100), settings.TotalLootValueLost(ctx))

	written, err = task.RunOnce(ctx)
	require.NoError(t, err)
	assert.False(t, written, "计数器未变化时跳过")

	stats.IncrementDeaths()
	written, err = task.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, written)
	assert.Equal(t, 2, settings.DoomDeaths(ctx))
}

func TestStatsSnapshotTask_RunOnceFailure(t *testing.T) {
	settings := config.NewTrackerSettings(failingStore{}, log.NewNopLogger())
	stats := service.NewStatistics()
	stats.IncrementDeaths()
	task := NewStatsSnapshotTask(stats, settings, "", log.NewNopLogger())

	written, err := task.RunOnce(context.Background())
	require.Error(t, err)
	assert.False(t, written)
	assert.True(t, xerrors.HasCode(err, xerrors.CodeSettingsError))

	// 失败后下一次仍会重试
	_, err = task.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestStatsSnapshotTask_Schedule(t *testing.T) {
	ctx := context.Background()
	settings := config.NewTrackerSettings(config.NewMemoryStore(), log.NewNopLogger())
	stats := service.NewStatistics()
	stats.IncrementDeaths()

	task := NewStatsSnapshotTask(stats, settings, "@every 1s", log.NewNopLogger())
	require.NoError(t, task.Start())
	require.NoError(t, task.Start())
	defer task.Stop()

	require.Eventually(t, func() bool {
		return settings.DoomDeaths(ctx) == 1
	}, 5*time.Second, 50*time.Millisecond)
}

func TestStatsSnapshotTask_InvalidSchedule(t *testing.T) {
	task := NewStatsSnapshotTask(service.NewStatistics(),
		config.NewTrackerSettings(config.NewMemoryStore(), log.NewNopLogger()), "not a schedule", log.NewNopLogger())

	assert.Error(t, task.Start())
	task.Stop()
}
