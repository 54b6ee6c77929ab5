package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"doom-loot/internal/pkg/config"
	"doom-loot/internal/pkg/i18n"
	applog "doom-loot/internal/pkg/log"
	"doom-loot/internal/pkg/validator"
	"doom-loot/internal/repository/impl"
)

func main() {
	dataDir := flag.String("data-dir", config.GetEnvOrDefault("DOOM_LOOT_DATA_DIR", "./data"), "Tracker data directory")
	player := flag.String("player", "", "Player folder, e.g. 123456 or 123456-Ironman (required)")
	migrate := flag.Bool("migrate", false, "Only migrate the legacy JSON array file, then exit")
	deleteAll := flag.Bool("delete", false, "Delete every record of the player, then exit")
	flag.Parse()

	if *player == "" {
		log.Fatal("player is required")
	}

	applog.InitWithWriter(os.Stderr, slog.LevelWarn, "development")
	repo := impl.NewRiskedLootFileRepository(*dataDir, applog.GetLogger(), validator.New(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := repo.SwitchPlayer(ctx, *player); err != nil {
		log.Fatalf("invalid player: %v", err)
	}

	switch {
	case *deleteAll:
		if err := repo.DeleteAll(ctx); err != nil {
			log.Fatalf("failed to delete records: %v", err)
		}
		fmt.Printf("Deleted all records for player %s\n", *player)
		return
	case *migrate:
		migrated, err := repo.MigrateLegacyFormat(ctx)
		if err != nil {
			log.Fatalf("failed to migrate legacy file: %v", err)
		}
		if migrated {
			fmt.Printf("Migrated legacy records for player %s\n", *player)
		} else {
			fmt.Printf("Nothing to migrate for player %s\n", *player)
		}
		return
	}

	report, err := repo.LoadWithReport(ctx)
	if err != nil {
		log.Fatalf("failed to load records: %v", err)
	}

	var lost int
	var lostValue, claimedValue int64
	for _, rec := range report.Records {
		outcome := "claimed"
		if rec.WasLost {
			outcome = "lost"
			lost++
			lostValue += rec.TotalValue
		} else {
			claimedValue += rec.TotalValue
		}
		fmt.Printf("%s  wave %-3d %-7s %-8s %d item(s)\n",
			rec.Timestamp.Format(time.DateTime), rec.Wave, outcome, i18n.FormatGold(rec.TotalValue), len(rec.Items))
	}

	fmt.Printf("\nRecords: %d (lost %d, claimed %d)\n", len(report.Records), lost, len(report.Records)-lost)
	fmt.Printf("Value lost:    %s\n", i18n.FormatGP(ctx, lostValue))
	fmt.Printf("Value claimed: %s\n", i18n.FormatGP(ctx, claimedValue))
	if report.Migrated {
		fmt.Println("Legacy JSON array file was migrated during this load")
	}
	for _, s := range report.Skipped {
		fmt.Printf("skipped line %d (%s): %s\n", s.Line, s.Reason, s.Detail)
	}
}
