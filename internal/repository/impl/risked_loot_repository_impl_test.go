package impl

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doom-loot/internal/model/lootmodel"
	"doom-loot/internal/pkg/log"
	"doom-loot/internal/pkg/metrics"
	"doom-loot/internal/pkg/xerrors"
)

type repoFixture struct {
	repo    *riskedLootFileRepository
	root    string
	metrics *metrics.TrackerMetrics
	logs    *bytes.Buffer
}

func newRepoFixture(t *testing.T) *repoFixture {
	t.Helper()
	root := t.TempDir()
	buf := &bytes.Buffer{}
	logger := log.NewLogger(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	m := metrics.NewTrackerMetricsWithRegistry("test", prometheus.NewRegistry())

	repo := NewRiskedLootFileRepository(root, logger, nil, m).(*riskedLootFileRepository)
	_, err := repo.SwitchPlayer(context.Background(), "12345")
	require.NoError(t, err)

	return &repoFixture{repo: repo, root: root, metrics: m, logs: buf}
}

func (f *repoFixture) dir() string {
	return filepath.Join(f.root, StorageFolder, "12345")
}

func (f *repoFixture) warnings(t *testing.T) int {
	t.Helper()
	count := 0
	for _, line := range strings.Split(strings.TrimSpace(f.logs.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["level"] == "WARN" {
			count++
		}
	}
	return count
}

func sampleRecord(wave int, lost bool) lootmodel.RiskedLootRecord {
	return lootmodel.NewRiskedLootRecord([]lootmodel.ItemEntry{
		{Name: "Dragon bones", ID: 536, Quantity: 3, Price: 2_500},
		{Name: "Avernic treads", ID: 31088, Quantity: 1, Price: 45_000_000},
	}, time.Now(), wave, lost)
}

func TestRiskedLootRepository_AppendLoadRoundTrip(t *testing.T) {
	f := newRepoFixture(t)
	ctx := context.Background()

	records := []lootmodel.RiskedLootRecord{sampleRecord(1, false), sampleRecord(3, true)}
	for _, rec := range records {
		require.NoError(t, f.repo.Append(ctx, rec))
	}

	loaded, err := f.repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, len(records))
	for i := range records {
		assert.True(t, records[i].Equal(loaded[i]), "record %d: %s != %s", i, records[i], loaded[i])
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RecordsAppended.WithLabelValues("claimed", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RecordsAppended.WithLabelValues("lost", "success")))

	data, err := os.ReadFile(filepath.Join(f.dir(), LogFileName))
	require.NoError(t, err)
	assert.Equal(t, 2, bytes.Count(data, []byte("\n")))
}

func TestRiskedLootRepository_LoadSkipsBadLines(t *testing.T) {
	tests := []struct {
		name   string
		bad    string
		reason string
	}{
		{name: "无法解析的行", bad: `{"items": [garbage`, reason: "corrupt"},
		{name: "缺少物品的行", bad: `{"items":[],"timestamp":"Jan 2, 2025, 3:04:05 PM","wave":1,"totalValue":0,"wasLost":true}`, reason: "invalid"},
		{name: "缺少时间的行", bad: `{"items":[{"name":"A","id":1,"quantity":1,"price":5}],"wave":1,"totalValue":5,"wasLost":true}`, reason: "invalid"},
		{name: "波次为 0 的行", bad: `{"items":[{"name":"A","id":1,"quantity":1,"price":5}],"timestamp":"Jan 2, 2025, 3:04:05 PM","wave":0,"totalValue":5,"wasLost":false}`, reason: "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRepoFixture(t)
			ctx := context.Background()

			require.NoError(t, f.repo.Append(ctx, sampleRecord(1, true)))
			require.NoError(t, f.repo.Append(ctx, sampleRecord(2, false)))

			file, err := os.OpenFile(filepath.Join(f.dir(), LogFileName), os.O_APPEND|os.O_WRONLY, 0o644)
			require.NoError(t, err)
			_, err = file.WriteString(tt.bad + "\n")
			require.NoError(t, err)
			require.NoError(t, file.Close())

			require.NoError(t, f.repo.Append(ctx, sampleRecord(3, true)))

			report, err := f.repo.LoadWithReport(ctx)
			require.NoError(t, err)
			require.Len(t, report.Records, 3)
			assert.Equal(t, []int{1, 2, 3}, []int{report.Records[0].Wave, report.Records[1].Wave, report.Records[2].Wave})
			require.Len(t, report.Skipped, 1)
			assert.Equal(t, 3, report.Skipped[0].Line)
			assert.Equal(t, tt.reason, report.Skipped[0].Reason)

			assert.Equal(t, 1, f.warnings(t))
			assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RecordsSkipped.WithLabelValues(tt.reason)))
		})
	}
}

func TestRiskedLootRepository_LoadMissingFile(t *testing.T) {
	f := newRepoFixture(t)

	loaded, err := f.repo.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestRiskedLootRepository_MigrateLegacyFormat(t *testing.T) {
	f := newRepoFixture(t)
	ctx := context.Background()
	f.repo.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }

	legacy := []lootmodel.RiskedLootRecord{sampleRecord(1, true), sampleRecord(2, false)}
	data, err := json.Marshal(legacy)
	require.NoError(t, err)

	// 旧版运行时在 AM/PM 前写入 U+202F
	withNarrowSpace := `{"items":[{"name":"Coins","id":995,"quantity":10,"price":1}],"timestamp":"Mar 9, 2024, 11:15:00` + "\u202f" + `PM","wave":4,"totalValue":10,"wasLost":true}`
	data = append(data[:len(data)-1], []byte(","+withNarrowSpace+"]")...)

	require.NoError(t, os.MkdirAll(f.dir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.dir(), LegacyFileName), data, 0o644))

	migrated, err := f.repo.MigrateLegacyFormat(ctx)
	require.NoError(t, err)
	assert.True(t, migrated)

	first, err := os.ReadFile(filepath.Join(f.dir(), LogFileName))
	require.NoError(t, err)
	assert.Equal(t, 3, bytes.Count(first, []byte("\n")))

	_, err = os.Stat(filepath.Join(f.dir(), LegacyFileName))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(f.dir(), LegacyFileName+".migrated.1700000000000"))
	assert.NoError(t, err)

	// 第二次调用为空操作
	migrated, err = f.repo.MigrateLegacyFormat(ctx)
	require.NoError(t, err)
	assert.False(t, migrated)

	second, err := os.ReadFile(filepath.Join(f.dir(), LogFileName))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	loaded, err := f.repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	assert.True(t, legacy[0].Equal(loaded[0]))
	assert.Equal(t, 4, loaded[2].Wave)
	assert.Equal(t, 2024, loaded[2].Timestamp.Year())
}

func TestRiskedLootRepository_LoadRunsMigration(t *testing.T) {
	f := newRepoFixture(t)
	ctx := context.Background()

	data, err := json.Marshal([]lootmodel.RiskedLootRecord{sampleRecord(2, true)})
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(f.dir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.dir(), LegacyFileName), data, 0o644))

	report, err := f.repo.LoadWithReport(ctx)
	require.NoError(t, err)
	assert.True(t, report.Migrated)
	require.Len(t, report.Records, 1)
	assert.True(t, report.Records[0].WasLost)
}

func TestRiskedLootRepository_MigrateCorruptLegacyKeepsFile(t *testing.T) {
	f := newRepoFixture(t)

	require.NoError(t, os.MkdirAll(f.dir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.dir(), LegacyFileName), []byte("not json"), 0o644))

	migrated, err := f.repo.MigrateLegacyFormat(context.Background())
	require.Error(t, err)
	assert.False(t, migrated)
	assert.True(t, xerrors.HasCode(err, xerrors.CodeMigrationFailed))

	_, err = os.Stat(filepath.Join(f.dir(), LegacyFileName))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(f.dir(), LogFileName))
	assert.True(t, os.IsNotExist(err))
}

func TestRiskedLootRepository_DeleteAllIdempotent(t *testing.T) {
	f := newRepoFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.Append(ctx, sampleRecord(1, true)))
	require.NoError(t, f.repo.DeleteAll(ctx))
	require.NoError(t, f.repo.DeleteAll(ctx))

	loaded, err := f.repo.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestRiskedLootRepository_SwitchPlayer(t *testing.T) {
	repo := NewRiskedLootFileRepository(t.TempDir(), log.NewNopLogger(), nil, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		player  string
		changed bool
		wantErr bool
	}{
		{name: "首次设置玩家", player: "998877", changed: true},
		{name: "相同玩家为空操作", player: "998877", changed: false},
		{name: "切换到其他模式", player: "998877-Seasonal", changed: true},
		{name: "忽略大小写相同为空操作", player: "998877-SEASONAL", changed: false},
		{name: "空名称", player: "  ", wantErr: true},
		{name: "包含路径分隔符", player: "../escape", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changed, err := repo.SwitchPlayer(ctx, tt.player)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.changed, changed)
		})
	}
	assert.Equal(t, "998877-Seasonal", repo.Player())
}

func TestRiskedLootRepository_NoActivePlayer(t *testing.T) {
	repo := NewRiskedLootFileRepository(t.TempDir(), log.NewNopLogger(), nil, nil)
	ctx := context.Background()

	err := repo.Append(ctx, sampleRecord(1, true))
	assert.True(t, xerrors.HasCode(err, xerrors.CodeNoActivePlayer))

	_, err = repo.LoadAll(ctx)
	assert.True(t, xerrors.HasCode(err, xerrors.CodeNoActivePlayer))

	err = repo.DeleteAll(ctx)
	assert.True(t, xerrors.HasCode(err, xerrors.CodeNoActivePlayer))
}

func TestRiskedLootRepository_AppendFailure(t *testing.T) {
	f := newRepoFixture(t)
	ctx := context.Background()

	// 玩家目录位置被普通文件占用
	require.NoError(t, os.MkdirAll(filepath.Dir(f.dir()), 0o755))
	require.NoError(t, os.WriteFile(f.dir(), []byte("x"), 0o644))

	err := f.repo.Append(ctx, sampleRecord(1, true))
	require.Error(t, err)
	assert.True(t, xerrors.HasCode(err, xerrors.CodeStorageIOError))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RecordsAppended.WithLabelValues("lost", "failure")))
}

func TestRiskedLootRepository_ConcurrentAppendAndLoad(t *testing.T) {
	f := newRepoFixture(t)
	ctx := context.Background()

	const writers = 8
	const perWriter = 10

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				assert.NoError(t, f.repo.Append(ctx, sampleRecord(w+1, i%2 == 0)))
			}
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			_, err := f.repo.LoadAll(ctx)
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	report, err := f.repo.LoadWithReport(ctx)
	require.NoError(t, err)
	assert.Len(t, report.Records, writers*perWriter)
	assert.Empty(t, report.Skipped)
}

// 夏令时回拨的重复小时内追加的记录，重新加载后时间不变
func TestRiskedLootRepository_TimestampAcrossDSTFallBack(t *testing.T) {
	newYork, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	previous := time.Local
	time.Local = newYork
	t.Cleanup(func() { time.Local = previous })

	f := newRepoFixture(t)
	ctx := context.Background()

	at := time.Date(2025, time.November, 2, 6, 30, 0, 0, time.UTC)
	rec := lootmodel.NewRiskedLootRecord([]lootmodel.ItemEntry{
		{Name: "Dragon bones", ID: 536, Quantity: 1, Price: 2_500},
	}, at, 2, true)
	require.NoError(t, f.repo.Append(ctx, rec))

	loaded, err := f.repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.True(t, at.Equal(loaded[0].Timestamp), "got %s", loaded[0].Timestamp.UTC())
	assert.True(t, rec.Equal(loaded[0]))
}

// 旧格式文件损坏时，首次追加前将其改名保留，不会被新日志永久遮蔽
func TestRiskedLootRepository_AppendSetsCorruptLegacyAside(t *testing.T) {
	f := newRepoFixture(t)
	ctx := context.Background()
	f.repo.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }

	legacyPath := filepath.Join(f.dir(), LegacyFileName)
	require.NoError(t, os.MkdirAll(f.dir(), 0o755))
	require.NoError(t, os.WriteFile(legacyPath, []byte("[{broken"), 0o644))

	require.NoError(t, f.repo.Append(ctx, sampleRecord(1, true)))

	_, err := os.Stat(legacyPath)
	assert.True(t, os.IsNotExist(err))
	kept, err := os.ReadFile(legacyPath + ".corrupt.1700000000000")
	require.NoError(t, err)
	assert.Equal(t, "[{broken", string(kept))
	assert.Contains(t, f.logs.String(), LegacyFileName+".corrupt.1700000000000")

	// 修复后的旧文件放回原位时，不会被静默忽略
	repaired, err := json.Marshal([]lootmodel.RiskedLootRecord{sampleRecord(2, false)})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(legacyPath, repaired, 0o644))

	migrated, err := f.repo.MigrateLegacyFormat(ctx)
	require.NoError(t, err)
	assert.True(t, migrated)

	loaded, err := f.repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, 2, loaded[0].Wave)
	assert.Equal(t, 1, loaded[1].Wave)
}
