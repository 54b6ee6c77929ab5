package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doom-loot/internal/model/lootmodel"
	"doom-loot/internal/pkg/config"
	"doom-loot/internal/pkg/log"
)

func record(value int64, lost bool, at time.Time) lootmodel.RiskedLootRecord {
	return lootmodel.NewRiskedLootRecord([]lootmodel.ItemEntry{{Name: "Coins", ID: 995, Quantity: 1, Price: value}}, at, 1, lost)
}

func TestStatistics_Reconcile(t *testing.T) {
	now := time.Now()
	history := []lootmodel.RiskedLootRecord{
		record(1_000, true, now),
		record(5_000, false, now),
		record(2_500, true, now),
	}

	tests := []struct {
		name      string
		lost      int
		value     int64
		corrected bool
	}{
		{name: "缓存与历史一致", lost: 2, value: 3_500, corrected: false},
		{name: "缓存偏大", lost: 9, value: 99_999, corrected: true},
		{name: "缓存为零", lost: 0, value: 0, corrected: true},
		{name: "次数一致但价值不一致", lost: 2, value: 3_000, corrected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStatistics()
			s.LoadCounters(4, tt.lost, tt.value)

			assert.Equal(t, tt.corrected, s.Reconcile(history))

			deaths, lost, value := s.Counters()
			assert.Equal(t, 4, deaths)
			assert.Equal(t, 2, lost)
			assert.Equal(t, int64(3_500), value)
			assert.Equal(t, 3, s.HistoryLen())
		})
	}
}

func TestStatistics_Snapshot(t *testing.T) {
	base := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	s := NewStatistics()
	s.LoadCounters(3, 0, 0)

	s.AddRecord(record(1_000, true, base))
	s.AddRecord(record(7_000, false, base.Add(time.Minute)))
	lost, value := s.AddRecord(record(4_000, true, base.Add(2*time.Minute)))
	assert.Equal(t, 2, lost)
	assert.Equal(t, int64(5_000), value)

	s.SetCurrentRisk(CurrentRisk{Items: offer(1), Wave: 3, Value: 20})

	snap := s.Snapshot()
	assert.Equal(t, 3, snap.DoomDeaths)
	assert.Equal(t, 2, snap.LootLostToDeaths)
	assert.Equal(t, int64(5_000), snap.TotalLootValueLost)
	assert.Equal(t, 1, snap.ClaimedCount)
	assert.Equal(t, int64(7_000), snap.ClaimedValue)
	assert.Equal(t, int64(4_000), snap.LargestLoss)
	assert.Equal(t, int64(2_500), snap.AverageLoss)
	assert.Equal(t, 3, snap.CurrentRisk.Wave)

	require.Len(t, snap.History, 3)
	assert.Equal(t, int64(4_000), snap.History[0].TotalValue, "最新的记录在前")
	assert.Equal(t, int64(1_000), snap.History[2].TotalValue)
}

func TestStatistics_Persist(t *testing.T) {
	ctx := context.Background()
	settings := config.NewTrackerSettings(config.NewMemoryStore(), log.NewNopLogger())

	s := NewStatistics()
	s.LoadCounters(1, 0, 0)
	s.IncrementDeaths()
	s.AddRecord(record(12_345, true, time.Now()))

	require.NoError(t, s.Persist(ctx, settings))
	assert.Equal(t, 2, settings.DoomDeaths(ctx))
	assert.Equal(t, 1, settings.LootLostToDeaths(ctx))
	assert.Equal(t, int64(12_345), settings.TotalLootValueLost(ctx))
}

func TestStatistics_ConcurrentReaders(t *testing.T) {
	s := NewStatistics()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.Snapshot()
			}
		}()
	}
	for j := 0; j < 100; j++ {
		s.AddRecord(record(int64(j), j%2 == 0, time.Now()))
		s.IncrementDeaths()
	}
	wg.Wait()

	deaths, lost, _ := s.Counters()
	assert.Equal(t, 100, deaths)
	assert.Equal(t, 50, lost)
}

// gatedStore 第一次写入死亡次数时阻塞，模拟定时快照写到一半
type gatedStore struct {
	*config.MemoryStore
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *gatedStore) Set(ctx context.Context, group, key, value string) error {
	if key == config.KeyDoomDeaths {
		s.once.Do(func() {
			close(s.entered)
			<-s.release
		})
	}
	return s.MemoryStore.Set(ctx, group, key, value)
}

// 快照与事件线程同时写回时，旧的计数不会覆盖新的计数
func TestStatistics_PersistDoesNotOverwriteNewerCounters(t *testing.T) {
	ctx := context.Background()
	store := &gatedStore{
		MemoryStore: config.NewMemoryStore(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	settings := config.NewTrackerSettings(store, log.NewNopLogger())

	s := NewStatistics()
	s.LoadCounters(5, 0, 0)

	snapshotDone := make(chan error, 1)
	go func() { snapshotDone <- s.Persist(ctx, settings) }()
	<-store.entered

	deathDone := make(chan error, 1)
	go func() {
		s.IncrementDeaths()
		deathDone <- s.PersistDeaths(ctx, settings)
	}()

	// 给事件线程时间尝试写入
	time.Sleep(20 * time.Millisecond)
	close(store.release)

	require.NoError(t, <-snapshotDone)
	require.NoError(t, <-deathDone)
	assert.Equal(t, 6, settings.DoomDeaths(ctx))
}

func TestStatistics_PersistLossCounters(t *testing.T) {
	ctx := context.Background()
	settings := config.NewTrackerSettings(config.NewMemoryStore(), log.NewNopLogger())

	s := NewStatistics()
	s.AddRecord(record(700, true, time.Now()))
	s.AddRecord(record(300, false, time.Now()))

	require.NoError(t, s.PersistLossCounters(ctx, settings))
	assert.Equal(t, 1, settings.LootLostToDeaths(ctx))
	assert.Equal(t, int64(700), settings.TotalLootValueLost(ctx))
	assert.Zero(t, settings.DoomDeaths(ctx))
}
