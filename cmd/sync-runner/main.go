// Command sync-runner reconciles the whole customer roster into the terminal once and
// exits non-zero when any item failed.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"hik-access-bridge/common/database"
	"hik-access-bridge/common/logger"
	"hik-access-bridge/internal/config"
	"hik-access-bridge/internal/models"
	"hik-access-bridge/internal/reconcile"
	"hik-access-bridge/internal/repository"
	"hik-access-bridge/internal/service"

	"go.uber.org/zap"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "print the records that would be written and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	lg, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "sync-runner")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var roster service.CustomerLister
	var db *sql.DB
	if cfg.DBEnabled {
		db, err = database.NewPostgresDB(ctx, &cfg.Database)
		if err != nil {
			lg.Fatal("Failed to connect to roster database", zap.Error(err))
		}
		defer database.Close(db)
		roster = repository.NewCustomerRepository(db, lg)
	} else {
		lg.Warn("Roster database disabled, nothing to reconcile")
		roster = repository.NewMemoryCustomerRepository(nil)
	}

	if *dryRun {
		customers, err := roster.ListCustomers(ctx)
		if err != nil {
			lg.Fatal("Failed to load roster", zap.Error(err))
		}
		defaults := service.EngineOptions(cfg).Defaults
		for _, c := range customers {
			rec := reconcile.BuildUserRecord(c, defaults)
			lg.Info("Would write user",
				zap.String("employee_no", rec.EmployeeNo),
				zap.String("name", rec.Name),
				zap.String("valid_begin", rec.ValidBegin),
				zap.String("valid_end", rec.ValidEnd),
			)
		}
		return
	}

	client := service.NewDeviceClient(cfg, lg)
	engine := reconcile.NewEngine(client, service.EngineOptions(cfg), lg)
	job := service.NewSyncJob(engine, roster, nil, lg)

	lg.Info("Starting reconciliation", zap.String("device", cfg.Device.BaseURL))
	outcome, err := job.Run(ctx)
	logOutcome(lg, outcome)
	if err != nil {
		lg.Error("Reconciliation did not complete", zap.Error(err))
		os.Exit(1)
	}
	if outcome.Failed > 0 {
		os.Exit(2)
	}
}

func logOutcome(lg *zap.Logger, outcome models.SyncOutcome) {
	for _, it := range outcome.Items {
		if it.Status == models.SyncItemFailed {
			lg.Warn("Item failed", zap.String("employee_no", it.EmployeeNo), zap.String("name", it.Name), zap.String("error", it.Error))
		}
	}
	lg.Info("Reconciliation finished",
		zap.Int("total", outcome.Total),
		zap.Int("created", outcome.Created()),
		zap.Int("updated", outcome.Updated()),
		zap.Int("failed", outcome.Failed),
		zap.Bool("cancelled", outcome.Cancelled),
		zap.Duration("elapsed", outcome.FinishedAt.Sub(outcome.StartedAt)),
	)
}
