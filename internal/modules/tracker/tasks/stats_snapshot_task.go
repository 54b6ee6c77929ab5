package tasks

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"

	"doom-loot/internal/modules/tracker/service"
	"doom-loot/internal/pkg/config"
	"doom-loot/internal/pkg/log"
)

// DefaultSnapshotSchedule 默认每分钟写一次快照
const DefaultSnapshotSchedule = "@every 1m"

// StatsSnapshotTask 定时将统计计数器写回配置存储，防止进程异常退出时丢失计数
type StatsSnapshotTask struct {
	stats    *service.Statistics
	settings *config.TrackerSettings
	schedule string
	logger   log.Logger

	mu   sync.Mutex
	cron *cron.Cron
	last snapshotCounters
}

type snapshotCounters struct {
	deaths int
	lost   int
	value  int64
	valid  bool
}

// NewStatsSnapshotTask 创建统计快照任务
func NewStatsSnapshotTask(stats *service.Statistics, settings *config.TrackerSettings, schedule string, logger log.Logger) *StatsSnapshotTask {
	if schedule == "" {
		schedule = DefaultSnapshotSchedule
	}
	if logger == nil {
		logger = log.GetLogger()
	}
	return &StatsSnapshotTask{
		stats:    stats,
		settings: settings,
		schedule: schedule,
		logger:   logger.With("component", "stats_snapshot_task"),
	}
}

// Start 启动定时任务
func (t *StatsSnapshotTask) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cron != nil {
		return nil
	}

	c := cron.New(cron.WithSeconds())
	_, err := c.AddFunc(t.schedule, func() {
		if _, err := t.RunOnce(context.Background()); err != nil {
			t.logger.Error("【定时任务】统计快照写入失败", err)
		}
	})
	if err != nil {
		t.logger.Error("【定时任务】添加统计快照任务失败", err, "schedule", t.schedule)
		return err
	}

	c.Start()
	t.cron = c
	t.logger.Info("【定时任务】统计快照任务已启动", "schedule", t.schedule)
	return nil
}

// RunOnce 写入一次快照，计数器未变化时跳过。返回是否实际写入
func (t *StatsSnapshotTask) RunOnce(ctx context.Context) (bool, error) {
	deaths, lost, value := t.stats.Counters()
	current := snapshotCounters{deaths: deaths, lost: lost, value: value, valid: true}

	t.mu.Lock()
	unchanged := t.last == current
	t.mu.Unlock()
	if unchanged {
		return false, nil
	}

	if err := t.stats.Persist(ctx, t.settings); err != nil {
		return false, err
	}

	t.mu.Lock()
	t.last = current
	t.mu.Unlock()

	t.logger.Debug("【定时任务】统计快照已写入",
		"doom_deaths", deaths,
		"loot_lost", lost,
		"value_lost", value)
	return true, nil
}

// Stop 停止定时任务并等待正在执行的快照完成
func (t *StatsSnapshotTask) Stop() {
	t.mu.Lock()
	c := t.cron
	t.cron = nil
	t.mu.Unlock()

	if c != nil {
		t.logger.Info("【定时任务】正在停止统计快照任务...")
		ctx := c.Stop()
		<-ctx.Done()
		t.logger.Info("【定时任务】统计快照任务已停止")
	}
}
