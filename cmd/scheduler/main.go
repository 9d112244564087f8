package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/acme/crm-telephony-sync/internal/app"
	"github.com/acme/crm-telephony-sync/internal/scheduler"
	"github.com/acme/crm-telephony-sync/internal/telemetry"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	configPath := flag.String("config", getEnv("CONFIG_FILE", "configs/config.yaml"), "path to configuration file")
	flag.Parse()

	container, err := app.Build(ctx, *configPath)
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer container.Close(context.Background())

	shutdown, err := telemetry.Setup(ctx, container.Config.Telemetry, container.Config.App.Name+"-scheduler")
	if err != nil {
		log.Fatalf("failed to initialize telemetry: %v", err)
	}
	defer func() {
		_ = shutdown(context.Background())
	}()

	res := container.Resolvers()
	domain := container.Domain()
	poller := scheduler.New(container.Stores().Integration, res.Adapters, domain.Orchestrator, scheduler.Config{
		TickInterval: container.Config.Orchestrator.SchedulerTickInterval,
	}, container.Logger)

	container.Logger.Info("scheduler starting")
	if err := poller.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("scheduler terminated: %v", err)
	}
	container.Logger.Info("scheduler stopped")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
