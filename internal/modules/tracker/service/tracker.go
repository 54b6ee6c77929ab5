package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"doom-loot/internal/model/lootmodel"
	"doom-loot/internal/modules/tracker/event"
	"doom-loot/internal/pkg/config"
	"doom-loot/internal/pkg/ctxkey"
	"doom-loot/internal/pkg/i18n"
	"doom-loot/internal/pkg/log"
	"doom-loot/internal/pkg/metrics"
	"doom-loot/internal/pkg/xerrors"
	"doom-loot/internal/repository/interfaces"
)

// TrackerDeps 追踪器依赖
type TrackerDeps struct {
	Client   HostClient
	Catalog  ItemCatalog
	Repo     interfaces.RiskedLootRepository
	Settings *config.TrackerSettings
	Stats    *Statistics

	// 以下为可选依赖
	Observer         Observer
	Metrics          *metrics.TrackerMetrics
	Logger           log.Logger
	Clock            func() time.Time
	InstanceTimeout  time.Duration
	DeathDedupWindow time.Duration
}

// Tracker 风险战利品追踪器：消费宿主事件，驱动在场判定与风险状态机，并负责持久化与通知。
// 所有事件必须在同一个逻辑线程上串行投递。
type Tracker struct {
	client   HostClient
	catalog  ItemCatalog
	repo     interfaces.RiskedLootRepository
	settings *config.TrackerSettings
	stats    *Statistics
	observer Observer
	metrics  *metrics.TrackerMetrics
	logger   log.Logger
	clock    func() time.Time

	presence    *PresenceTracker
	risk        *RiskMachine
	deaths      *DeathDeduper
	encounterID string
}

// NewTracker 创建追踪器
func NewTracker(deps TrackerDeps) *Tracker {
	logger := deps.Logger
	if logger == nil {
		logger = log.GetLogger()
	}
	observer := deps.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	stats := deps.Stats
	if stats == nil {
		stats = NewStatistics()
	}

	return &Tracker{
		client:   deps.Client,
		catalog:  deps.Catalog,
		repo:     deps.Repo,
		settings: deps.Settings,
		stats:    stats,
		observer: observer,
		metrics:  deps.Metrics,
		logger:   logger.With("component", "loot_tracker"),
		clock:    clock,
		presence: NewPresenceTracker(deps.InstanceTimeout),
		risk:     NewRiskMachine(),
		deaths:   NewDeathDeduper(deps.DeathDedupWindow),
	}
}

// Stats 统计门面
func (t *Tracker) Stats() *Statistics {
	return t.stats
}

// Risk 当前状态机快照
func (t *Tracker) Risk() RiskSnapshot {
	return t.risk.Snapshot()
}

// Presence 当前在场状态
func (t *Tracker) Presence() PresenceState {
	return t.presence.State()
}

// EncounterID 当前遭遇 ID，不在副本时为空
func (t *Tracker) EncounterID() string {
	return t.encounterID
}

// Startup 读取缓存计数器，切换到玩家目录（已知时）并加载历史
func (t *Tracker) Startup(ctx context.Context, identity *PlayerIdentity) {
	t.stats.LoadCounters(
		t.settings.DoomDeaths(ctx),
		t.settings.LootLostToDeaths(ctx),
		t.settings.TotalLootValueLost(ctx),
	)

	if identity != nil && identity.Valid() {
		if _, err := t.repo.SwitchPlayer(ctx, identity.Folder()); err != nil {
			t.logger.WarnContext(ctx, "unable to select player storage", log.Err(err))
		}
	}
	ctx = t.enrich(ctx, "startup")

	if t.repo.Player() != "" {
		t.loadHistory(ctx)
	}

	deaths, lost, value := t.stats.Counters()
	t.logger.InfoContext(ctx, "tracker started",
		log.Int("doom_deaths", deaths),
		log.Int("loot_lost", lost),
		log.Int64("value_lost", value),
		log.Int("history", t.stats.HistoryLen()))
	t.notify(ctx, Change{Kind: ChangeHistoryLoaded})
}

// Shutdown 将计数器强制写回配置。未领取的战利品不记为损失
func (t *Tracker) Shutdown(ctx context.Context) {
	ctx = t.enrich(ctx, "shutdown")

	if t.risk.HasUnclaimedLoot() {
		snap := t.risk.Snapshot()
		t.logger.InfoContext(ctx, "discarding pending risked loot on shutdown",
			log.Int("items", len(snap.Items)), log.Int64("value", snap.Value))
	}

	if err := t.stats.Persist(ctx, t.settings); err != nil {
		t.logger.WarnContext(ctx, "failed to flush statistics on shutdown", log.Err(err))
	}

	deaths, lost, value := t.stats.Counters()
	t.logger.InfoContext(ctx, "tracker stopped",
		log.Int("doom_deaths", deaths),
		log.Int("loot_lost", lost),
		log.Int64("value_lost", value))
}

// Handle 处理一个宿主事件。处理过程中的 panic 被捕获并记录，不会传回宿主
func (t *Tracker) Handle(ctx context.Context, ev event.Event) {
	if ev == nil {
		return
	}
	ctx = t.enrich(ctx, ev.Name())

	defer func() {
		if r := recover(); r != nil {
			appErr := xerrors.NewHandlerPanicError(ev.Name(), r).
				WithOperation("loot_tracker", "handle").
				WithPlayer(t.repo.Player(), t.encounterID)
			log.LogAppError(ctx, t.logger, "event handler panicked", appErr)
			t.metrics.RecordPanic(ev.Name())
		}
	}()

	now := ev.Time()
	if now.IsZero() {
		now = t.clock()
	}

	switch e := ev.(type) {
	case event.Tick:
		t.onTick(ctx, now)
	case event.ChatMessage:
		t.onChatMessage(ctx, now, e)
	case event.WidgetLoaded:
		t.onWidgetLoaded(ctx, now, e)
	case event.MenuOptionClicked:
		t.onMenuOptionClicked(ctx, now, e)
	case event.ActorDeath:
		t.onActorDeath(ctx, now, e)
	case event.Login:
		t.onLogin(ctx, e)
	case event.ConfigChanged:
		t.onConfigChanged(ctx, now, e)
	}
}

func (t *Tracker) onTick(ctx context.Context, now time.Time) {
	if !t.client.LocalPlayerPresent() {
		return
	}

	result := t.presence.Observe(now, t.bossNearby() || t.inCombatWithBoss())

	if result.Sighted {
		if result.NewEncounter {
			t.encounterID = uuid.NewString()
			ctx = ctxkey.WithValue(ctx, ctxkey.EncounterID, t.encounterID)
			t.logger.InfoContext(ctx, "boss encounter started")
		}
		// 每次看到首领都重新允许追踪
		t.risk.Rearm()
		return
	}

	if result.Expired {
		t.logger.InfoContext(ctx, "instance presence expired",
			log.String("last_seen", t.presence.LastSeen().Format(time.RFC3339)))
		if t.risk.Abandon() {
			t.logger.InfoContext(ctx, "risked loot discarded after leaving instance")
			t.refreshCurrentRisk()
			t.notify(ctx, Change{Kind: ChangeRiskUpdated})
		}
		t.encounterID = ""
	}
}

func (t *Tracker) onChatMessage(ctx context.Context, now time.Time, e event.ChatMessage) {
	if e.Type != event.ChatGameMessage {
		return
	}

	killer, ok := i18n.MatchDeathMessage(ctx, e.Text)
	if !ok {
		return
	}
	t.logger.DebugContext(ctx, "death message detected", log.String("killer", killer))
	if i18n.EqualFold(killer, BossName) {
		t.countDeath(ctx, now, DeathSourceChat)
	}
}

func (t *Tracker) onWidgetLoaded(ctx context.Context, _ time.Time, e event.WidgetLoaded) {
	if e.GroupID != LootWidgetGroup || !t.settings.TrackRiskedLoot(ctx) {
		return
	}
	if t.risk.ClaimedThisEncounter() {
		t.logger.DebugContext(ctx, "ignoring loot widget, loot already claimed this encounter")
		return
	}

	items := ExtractLoot(t.client.ScanWidget(LootWidgetGroup, LootWidgetSlots), t.catalog)
	switch t.risk.ObserveLoot(items) {
	case ObserveAccepted:
		snap := t.risk.Snapshot()
		t.refreshCurrentRisk()
		log.LogLootEvent(ctx, t.logger, "loot_offered", snap.OfferWave, snap.Value, len(snap.Items))
		t.notify(ctx, Change{Kind: ChangeRiskUpdated})
	case ObserveEmpty:
		t.logger.DebugContext(ctx, "loot widget held no items")
	}
}

func (t *Tracker) onMenuOptionClicked(ctx context.Context, now time.Time, e event.MenuOptionClicked) {
	if !t.risk.HasUnclaimedLoot() {
		return
	}

	option := strings.ToLower(e.Option)
	target := strings.ToLower(e.Target)

	switch {
	case strings.Contains(option, "claim") || strings.Contains(target, "claim"):
		t.claim(ctx, now)
	case strings.Contains(option, "descend") || strings.Contains(target, "descend") ||
		strings.Contains(option, "risk") || strings.Contains(option, "continue"):
		snap := t.risk.Snapshot()
		wave := t.risk.Continue()
		log.LogLootEvent(ctx, t.logger, "loot_risked", wave, snap.Value, len(snap.Items))
		t.refreshCurrentRisk()
		t.notify(ctx, Change{Kind: ChangeRiskUpdated})
	}
}

func (t *Tracker) onActorDeath(ctx context.Context, now time.Time, e event.ActorDeath) {
	if !e.LocalPlayer {
		return
	}

	// 持有未领取战利品时死亡一律视为丢失，不检查首领距离
	if t.risk.HasUnclaimedLoot() {
		t.lose(ctx, now)
	}

	if t.bossNearby() || t.inCombatWithBoss() || t.presence.InInstance() {
		t.countDeath(ctx, now, DeathSourceActor)
	}
}

func (t *Tracker) onLogin(ctx context.Context, e event.Login) {
	identity := PlayerIdentity{AccountHash: e.AccountHash, Profile: e.Profile}
	if !identity.Valid() {
		return
	}

	changed, err := t.repo.SwitchPlayer(ctx, identity.Folder())
	if err != nil {
		t.logger.WarnContext(ctx, "unable to select player storage", log.Err(err))
		return
	}
	ctx = ctxkey.WithValue(ctx, ctxkey.PlayerID, t.repo.Player())

	if changed {
		t.notify(ctx, Change{Kind: ChangePlayerSwitched})
	}
	// 启动时尚未登录则历史为空，登录后补加载；切换玩家时必须替换为新玩家的历史
	if changed || t.stats.HistoryLen() == 0 {
		t.loadHistory(ctx)
		t.notify(ctx, Change{Kind: ChangeHistoryLoaded})
	}
}

func (t *Tracker) onConfigChanged(ctx context.Context, now time.Time, e event.ConfigChanged) {
	if e.Group != config.TrackerGroup || e.Key != config.KeyEnableUI {
		return
	}
	visible := t.settings.EnableUI(ctx)
	t.logger.InfoContext(ctx, "side panel toggled", log.Bool("visible", visible))
	t.notify(ctx, Change{Kind: ChangePanelVisibility, PanelVisible: visible, At: now})
}

func (t *Tracker) claim(ctx context.Context, now time.Time) {
	rec := t.risk.Claim(now)
	if rec == nil {
		return
	}

	// 写入失败时内存中的统计照常更新，错误随通知交给界面
	appendErr := t.appendRecord(ctx, *rec)
	t.stats.AddRecord(*rec)
	t.metrics.RecordClaim()
	t.refreshCurrentRisk()

	log.LogLootEvent(ctx, t.logger, "loot_claimed", rec.Wave, rec.TotalValue, len(rec.Items))
	t.notify(ctx, Change{Kind: ChangeRiskResolved, Err: appendErr})
}

func (t *Tracker) lose(ctx context.Context, now time.Time) {
	rec := t.risk.Lose(now)
	if rec == nil {
		return
	}

	appendErr := t.appendRecord(ctx, *rec)
	t.stats.AddRecord(*rec)
	if err := t.stats.PersistLossCounters(ctx, t.settings); err != nil {
		t.logger.WarnContext(ctx, "failed to persist loss counters", log.Err(err))
	}
	t.metrics.RecordLoss(rec.TotalValue)
	t.refreshCurrentRisk()

	log.LogLootEvent(ctx, t.logger, "loot_lost", rec.Wave, rec.TotalValue, len(rec.Items))
	t.notify(ctx, Change{Kind: ChangeRiskResolved, Err: appendErr})
}

// appendRecord 写入结算记录，失败时带上遭遇信息记录并返回
func (t *Tracker) appendRecord(ctx context.Context, rec lootmodel.RiskedLootRecord) error {
	err := t.repo.Append(ctx, rec)
	if err == nil {
		return nil
	}

	appErr := xerrors.Wrap(err, xerrors.CodeStorageIOError, "append risked loot record failed").
		WithOperation("loot_tracker", "append").
		WithPlayer(t.repo.Player(), t.encounterID)
	t.logger.ErrorContext(ctx, "risked loot record not saved",
		log.Bool("was_lost", rec.WasLost),
		log.Int64("value", rec.TotalValue),
		log.Bool("retryable", appErr.IsRetryable()),
		log.Any("app_error", appErr))
	return appErr
}

// countDeath 死亡计数的唯一入口，去重窗口内的第二个信号被忽略
func (t *Tracker) countDeath(ctx context.Context, now time.Time, source string) {
	if !t.deaths.Count(now) {
		t.metrics.RecordDuplicateDeath()
		t.logger.DebugContext(ctx, "duplicate death signal ignored", log.String("source", source))
		return
	}

	deaths := t.stats.IncrementDeaths()
	if err := t.stats.PersistDeaths(ctx, t.settings); err != nil {
		t.logger.WarnContext(ctx, "failed to persist death count", log.Err(err))
	}
	t.metrics.RecordDeath(source)
	t.logger.InfoContext(ctx, "player died to boss",
		log.String("source", source), log.Int("doom_deaths", deaths))
	t.notify(ctx, Change{Kind: ChangeDeathCount})
}

// loadHistory 加载完整历史并用其修正损失计数器
func (t *Tracker) loadHistory(ctx context.Context) {
	records, err := t.repo.LoadAll(ctx)
	if err != nil {
		t.logger.WarnContext(ctx, "failed to load risked loot history", log.Err(err))
		return
	}

	_, cachedLost, cachedValue := t.stats.Counters()
	if !t.stats.Reconcile(records) {
		return
	}

	_, lost, value := t.stats.Counters()
	t.logger.InfoContext(ctx, "loss counters corrected from history",
		log.Int("cached_lost", cachedLost), log.Int64("cached_value", cachedValue),
		log.Int("lost", lost), log.Int64("value", value))
	t.metrics.RecordReconciliation()
	if err := t.stats.PersistLossCounters(ctx, t.settings); err != nil {
		t.logger.WarnContext(ctx, "failed to persist corrected loss counters", log.Err(err))
	}
}

func (t *Tracker) refreshCurrentRisk() {
	current := t.risk.Current()
	t.stats.SetCurrentRisk(current)
	t.metrics.SetRiskedValue(current.Value)
}

// notify 侧边栏关闭时只投递开关通知
func (t *Tracker) notify(ctx context.Context, change Change) {
	if change.Kind != ChangePanelVisibility && !t.settings.EnableUI(ctx) {
		return
	}
	change.EncounterID = t.encounterID
	change.Stats = t.stats.Snapshot()
	if change.At.IsZero() {
		change.At = t.clock()
	}
	t.observer.StateChanged(change)
}

func (t *Tracker) bossNearby() bool {
	return t.client.IsNPCWithinRadius(BossName, BossRadius)
}

func (t *Tracker) inCombatWithBoss() bool {
	name := t.client.InteractingNPCName()
	return name != "" && i18n.EqualFold(name, BossName)
}

func (t *Tracker) enrich(ctx context.Context, eventType string) context.Context {
	ctx = ctxkey.WithValue(ctx, ctxkey.EventType, eventType)
	if player := t.repo.Player(); player != "" {
		ctx = ctxkey.WithValue(ctx, ctxkey.PlayerID, player)
	}
	if t.encounterID != "" {
		ctx = ctxkey.WithValue(ctx, ctxkey.EncounterID, t.encounterID)
	}
	return ctx
}
