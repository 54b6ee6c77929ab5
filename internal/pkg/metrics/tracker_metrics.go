// File: internal/pkg/metrics/tracker_metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TrackerMetrics 风险战利品追踪指标
type TrackerMetrics struct {
	// 死亡次数（按信号来源：actor_death / chat_message）
	DeathsTotal *prometheus.CounterVec

	// 被合并掉的重复死亡信号
	DeathsDeduplicated prometheus.Counter

	// 因死亡丢失战利品的次数与价值
	LootLostTotal      prometheus.Counter
	LootValueLostTotal prometheus.Counter

	// 成功领取的次数
	LootClaimedTotal prometheus.Counter

	// 追加记录结果（outcome: claimed/lost, result: success/failure）
	RecordsAppended *prometheus.CounterVec

	// 加载时跳过的记录（reason: corrupt/invalid）
	RecordsSkipped *prometheus.CounterVec

	// 当前持有的风险价值
	RiskedValue prometheus.Gauge

	// 事件处理 panic 次数
	HandlerPanics *prometheus.CounterVec

	// 配置缓存被日志修正的次数
	Reconciliations prometheus.Counter

	// 进程信息，值恒为 1
	Info *prometheus.GaugeVec
}

var (
	// DefaultTrackerMetrics 默认的追踪指标实例
	DefaultTrackerMetrics *TrackerMetrics
)

func init() {
	DefaultTrackerMetrics = NewTrackerMetrics("doomloot")
}

// NewTrackerMetrics 创建默认 registry 的 TrackerMetrics
func NewTrackerMetrics(namespace string) *TrackerMetrics {
	return NewTrackerMetricsWithRegistry(namespace, GetRegisterer())
}

// NewTrackerMetricsWithRegistry 创建 TrackerMetrics，允许 tests 注入自定义 registry
func NewTrackerMetricsWithRegistry(namespace string, reg prometheus.Registerer) *TrackerMetrics {
	if reg == nil {
		reg = GetRegisterer()
	}
	factory := promauto.With(reg)

	return &TrackerMetrics{
		DeathsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tracker",
				Name:      "deaths_total",
				Help:      "Boss deaths counted, by detecting signal",
			},
			[]string{"source"},
		),

		DeathsDeduplicated: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tracker",
				Name:      "deaths_deduplicated_total",
				Help:      "Death signals ignored because the same death was already counted",
			},
		),

		LootLostTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tracker",
				Name:      "loot_lost_total",
				Help:      "Number of times risked loot was lost to death",
			},
		),

		LootValueLostTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tracker",
				Name:      "loot_value_lost_total",
				Help:      "Total GP value of loot lost to deaths",
			},
		),

		LootClaimedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tracker",
				Name:      "loot_claimed_total",
				Help:      "Number of risked loot claims",
			},
		),

		RecordsAppended: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "storage",
				Name:      "records_appended_total",
				Help:      "Risked loot records appended to the log by outcome and result",
			},
			[]string{"outcome", "result"},
		),

		RecordsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "storage",
				Name:      "records_skipped_total",
				Help:      "Log lines skipped while loading, by reason",
			},
			[]string{"reason"},
		),

		RiskedValue: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "tracker",
				Name:      "risked_value",
				Help:      "GP value of loot currently at risk",
			},
		),

		HandlerPanics: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tracker",
				Name:      "handler_panics_total",
				Help:      "Event handlers that panicked and were recovered",
			},
			[]string{"event"},
		),

		Reconciliations: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "storage",
				Name:      "reconciliations_total",
				Help:      "Times the cached loss counters were corrected from the log",
			},
		),

		Info: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "tracker",
				Name:      "info",
				Help:      "Running tracker process, labelled by service name",
			},
			[]string{"service"},
		),
	}
}

// RecordDeath 记录一次计入的死亡
func (m *TrackerMetrics) RecordDeath(source string) {
	if m == nil {
		return
	}
	if source == "" {
		source = "unknown"
	}
	m.DeathsTotal.WithLabelValues(source).Inc()
}

// RecordDuplicateDeath 记录被合并的重复死亡信号
func (m *TrackerMetrics) RecordDuplicateDeath() {
	if m == nil {
		return
	}
	m.DeathsDeduplicated.Inc()
}

// RecordLoss 记录一次战利品丢失
func (m *TrackerMetrics) RecordLoss(value int64) {
	if m == nil {
		return
	}
	m.LootLostTotal.Inc()
	if value > 0 {
		m.LootValueLostTotal.Add(float64(value))
	}
}

// RecordClaim 记录一次领取
func (m *TrackerMetrics) RecordClaim() {
	if m == nil {
		return
	}
	m.LootClaimedTotal.Inc()
}

// RecordAppend 记录一次追加写入
func (m *TrackerMetrics) RecordAppend(lost bool, success bool) {
	if m == nil {
		return
	}
	outcome := "claimed"
	if lost {
		outcome = "lost"
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.RecordsAppended.WithLabelValues(outcome, result).Inc()
}

// RecordSkipped 记录加载时跳过的一行
func (m *TrackerMetrics) RecordSkipped(reason string) {
	if m == nil {
		return
	}
	m.RecordsSkipped.WithLabelValues(reason).Inc()
}

// SetRiskedValue 更新当前风险价值
func (m *TrackerMetrics) SetRiskedValue(value int64) {
	if m == nil {
		return
	}
	m.RiskedValue.Set(float64(value))
}

// RecordPanic 记录事件处理 panic
func (m *TrackerMetrics) RecordPanic(event string) {
	if m == nil {
		return
	}
	m.HandlerPanics.WithLabelValues(event).Inc()
}

// RecordReconciliation 记录一次缓存修正
func (m *TrackerMetrics) RecordReconciliation() {
	if m == nil {
		return
	}
	m.Reconciliations.Inc()
}

// MarkStarted 以当前服务名标记进程已启动
func (m *TrackerMetrics) MarkStarted() {
	if m == nil {
		return
	}
	m.Info.WithLabelValues(GetServiceName()).Set(1)
}
