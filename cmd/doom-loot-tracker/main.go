package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"doom-loot/internal/modules/tracker/replay"
	"doom-loot/internal/modules/tracker/service"
	"doom-loot/internal/modules/tracker/tasks"
	"doom-loot/internal/pkg/config"
	"doom-loot/internal/pkg/config/sqlitestore"
	"doom-loot/internal/pkg/i18n"
	"doom-loot/internal/pkg/log"
	"doom-loot/internal/pkg/metrics"
	"doom-loot/internal/pkg/validator"
	"doom-loot/internal/repository/impl"
)

func main() {
	scriptPath := flag.String("script", "-", "Replay script (JSON lines), '-' reads stdin")
	accountHash := flag.Int64("account-hash", -1, "Account hash of the logged-in player, -1 when unknown")
	profile := flag.String("profile", service.ProfileStandard, "Account profile type")
	lang := flag.String("lang", "en", "Game client language, used to match death messages")
	flag.Parse()

	cfg, err := config.LoadAppConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log.Init(log.ParseLevel(cfg.LogLevel), cfg.Environment)
	logger := log.GetLogger().With("service", "doom-loot-tracker")
	metrics.SetServiceName("doom-loot-tracker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = i18n.WithLanguage(ctx, i18n.ParseLanguageCode(*lang))

	var store config.Store
	sqlStore, err := sqlitestore.Open(cfg.SettingsDB)
	if err != nil {
		logger.Warn("settings database unavailable, falling back to memory", log.Err(err), log.String("path", cfg.SettingsDB))
		store = config.NewMemoryStore()
	} else {
		defer sqlStore.Close()
		store = sqlStore
	}
	settings := config.NewTrackerSettings(store, logger)

	trackerMetrics := metrics.DefaultTrackerMetrics
	if cfg.MetricsNamespace != "doomloot" {
		trackerMetrics = metrics.NewTrackerMetrics(cfg.MetricsNamespace)
	}
	trackerMetrics.MarkStarted()

	repo := impl.NewRiskedLootFileRepository(cfg.DataDir, logger, validator.New(), trackerMetrics)

	host := replay.NewHost()
	catalog := replay.NewCatalog()
	stats := service.NewStatistics()

	panel := service.NewAsyncObserver(service.ObserverFunc(func(change service.Change) {
		logger.Debug("panel update",
			log.String("kind", string(change.Kind)),
			log.String("encounter_id", change.EncounterID),
			log.Int("doom_deaths", change.Stats.DoomDeaths),
			log.Int64("risked_value", change.Stats.CurrentRisk.Value))
	}), cfg.NotifyBuffer, logger)
	defer panel.Close()

	tracker := service.NewTracker(service.TrackerDeps{
		Client:           host,
		Catalog:          catalog,
		Repo:             repo,
		Settings:         settings,
		Stats:            stats,
		Observer:         panel,
		Metrics:          trackerMetrics,
		Logger:           logger,
		DeathDedupWindow: cfg.DeathDedupWindow,
	})

	snapshotTask := tasks.NewStatsSnapshotTask(stats, settings, cfg.SnapshotSchedule, logger)
	if err := snapshotTask.Start(); err != nil {
		logger.Error("failed to start stats snapshot task", err)
		os.Exit(1)
	}
	defer snapshotTask.Stop()

	var identity *service.PlayerIdentity
	if *accountHash != -1 {
		identity = &service.PlayerIdentity{AccountHash: *accountHash, Profile: *profile}
	}
	tracker.Startup(ctx, identity)

	steps, err := readScript(*scriptPath)
	if err != nil {
		logger.Error("failed to read replay script", err, log.String("script", *scriptPath))
		os.Exit(1)
	}

	runner := replay.NewRunner(host, catalog, store, logger)
	if _, err := runner.Run(ctx, steps, time.Now(), tracker); err != nil {
		logger.Warn("replay interrupted", log.Err(err))
	}

	// 使用独立 context，确保中断后仍能写回计数器
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	tracker.Shutdown(shutdownCtx)

	printSummary(shutdownCtx, os.Stdout, stats.Snapshot())
}

func readScript(path string) ([]replay.Step, error) {
	if path == "" || path == "-" {
		return replay.Decode(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return replay.Decode(f)
}

func printSummary(ctx context.Context, w io.Writer, snap service.StatsSnapshot) {
	fmt.Fprintf(w, "Doom deaths:         %d\n", snap.DoomDeaths)
	fmt.Fprintf(w, "Loot lost to deaths: %d\n", snap.LootLostToDeaths)
	fmt.Fprintf(w, "Total value lost:    %s (%s)\n", i18n.FormatGold(snap.TotalLootValueLost), i18n.FormatGP(ctx, snap.TotalLootValueLost))
	fmt.Fprintf(w, "Claimed:             %d (%s)\n", snap.ClaimedCount, i18n.FormatGold(snap.ClaimedValue))
	if snap.CurrentRisk.Value > 0 {
		fmt.Fprintf(w, "Currently risked:    %s at wave %d\n", i18n.FormatGold(snap.CurrentRisk.Value), snap.CurrentRisk.Wave)
	}
	for _, rec := range snap.History {
		outcome := "claimed"
		if rec.WasLost {
			outcome = "lost"
		}
		fmt.Fprintf(w, "  %s  wave %-3d %-7s %s\n",
			rec.Timestamp.Format(time.DateTime), rec.Wave, outcome, i18n.FormatGold(rec.TotalValue))
	}
}
