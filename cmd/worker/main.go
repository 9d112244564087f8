package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/acme/crm-telephony-sync/internal/app"
	"github.com/acme/crm-telephony-sync/internal/telemetry"
	"github.com/acme/crm-telephony-sync/internal/worker"
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

	shutdown, err := telemetry.Setup(ctx, container.Config.Telemetry, container.Config.App.Name+"-worker")
	if err != nil {
		log.Fatalf("failed to initialize telemetry: %v", err)
	}
	defer func() {
		_ = shutdown(context.Background())
	}()

	domain := container.Domain()
	dispatcher := worker.New(domain.Pagination, domain.Lifecycle, domain.Activity, container.Queue, worker.Config{
		QueueURL:          container.Config.SQS.QueueURL,
		MaxMessages:       container.Config.SQS.ReceiveBatchSize,
		WaitSeconds:       container.Config.SQS.WaitTimeSeconds,
		VisibilityTimeout: container.Config.SQS.VisibilityTimeout,
		MaxConcurrency:    container.Config.SQS.MaxConcurrency,
		HandlerTimeout:    container.Config.Orchestrator.HandlerWallClockBudget,
	}, container.Logger)

	container.Logger.Info("worker starting")
	if err := dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("worker terminated: %v", err)
	}
	container.Logger.Info("worker stopped")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
