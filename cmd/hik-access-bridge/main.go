package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hik-access-bridge/common/logger"
	"hik-access-bridge/internal/config"
	httpapi "hik-access-bridge/internal/http"
	"hik-access-bridge/internal/service"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lg, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "hik-access-bridge")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer lg.Sync()

	lg.Info("Starting hik-access-bridge",
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("device", cfg.Device.BaseURL),
		zap.String("radar_match", cfg.Radar.Match),
	)

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	bridge, err := service.NewBridgeService(bootCtx, cfg, lg)
	bootCancel()
	if err != nil {
		lg.Fatal("Failed to create bridge service", zap.Error(err))
	}

	router := httpapi.NewRouter(lg)
	router.RegisterWebhookRoutes(httpapi.NewWebhookHandler(bridge.Normalizer, bridge.Store, bridge.Publisher, bridge.Media, lg))
	router.RegisterSyncRoutes(httpapi.NewSyncHandler(bridge.RunContext(), bridge.Roster, bridge.Sync, lg))
	router.RegisterCustomerRoutes(httpapi.NewCustomerHandler(bridge.Faces, bridge.Device, lg))
	router.RegisterEventRoutes(httpapi.NewEventHandler(bridge.Store, bridge.Radar, lg))
	router.RegisterDoorRoutes(httpapi.NewDoorHandler(bridge.Device, lg))
	router.RegisterSystemRoutes(bridge.Media.Dir(), bridge.HealthChecks())

	if err := bridge.Start(router); err != nil {
		lg.Fatal("Failed to start bridge service", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	lg.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := bridge.Stop(ctx); err != nil {
		lg.Error("Error during shutdown", zap.Error(err))
	}

	lg.Info("Service stopped")
}
