package replay

import (
	"context"
	"time"

	"doom-loot/internal/modules/tracker/event"
	"doom-loot/internal/pkg/config"
	"doom-loot/internal/pkg/log"
)

// Handler 事件接收方（追踪器）
type Handler interface {
	Handle(ctx context.Context, ev event.Event)
}

// Runner 依次执行脚本步骤
type Runner struct {
	host     *Host
	catalog  *Catalog
	settings config.Store
	logger   log.Logger
}

// NewRunner 创建执行器。config 步骤会先写入 settings 再投递变更事件
func NewRunner(host *Host, catalog *Catalog, settings config.Store, logger log.Logger) *Runner {
	if logger == nil {
		logger = log.GetLogger()
	}
	return &Runner{
		host:     host,
		catalog:  catalog,
		settings: settings,
		logger:   logger.With("component", "replay_runner"),
	}
}

// Run 执行脚本，返回投递的事件数
func (r *Runner) Run(ctx context.Context, steps []Step, start time.Time, handler Handler) (int, error) {
	dispatched := 0
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return dispatched, err
		}

		if step.Type == StepItem {
			r.catalog.Register(step.ItemID, step.Name, step.Price)
			continue
		}

		r.host.Apply(step)

		if step.Type == StepConfig && r.settings != nil {
			if err := r.settings.Set(ctx, step.ConfigGroup, step.Key, step.Value); err != nil {
				r.logger.WarnContext(ctx, "replay config write failed",
					log.Int("step", i), log.String("key", step.Key), log.Err(err))
			}
		}

		ev := step.Event(start)
		if ev == nil {
			continue
		}
		handler.Handle(ctx, ev)
		dispatched++
	}

	r.logger.InfoContext(ctx, "replay finished", log.Int("steps", len(steps)), log.Int("events", dispatched))
	return dispatched, nil
}
