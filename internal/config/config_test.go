package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleConfig = `
app:
  name: crm-telephony-sync
  env: test
http:
  port: 8080
postgres:
  host: localhost
  port: 5432
  database: sync
scylla:
  hosts: ["localhost"]
  keyspace: sync
redis:
  address: localhost:6379
sqs:
  region: us-east-1
  queue_url: https://sqs.example.com/queue
orchestrator:
  initial_batch_size: 100
  ongoing_batch_size: 50
`

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadParsesExplicitValues(t *testing.T) {
	path := writeTempConfig(t, sampleConfig)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.App.Name != "crm-telephony-sync" {
		t.Errorf("expected app.name to be set, got %q", cfg.App.Name)
	}
	if cfg.SQS.QueueURL != "https://sqs.example.com/queue" {
		t.Errorf("expected sqs.queue_url to be set, got %q", cfg.SQS.QueueURL)
	}
	if cfg.Orchestrator.InitialBatchSize != 100 {
		t.Errorf("expected orchestrator.initial_batch_size 100, got %d", cfg.Orchestrator.InitialBatchSize)
	}
}

func TestLoadAppliesDefaultsForUnsetKnobs(t *testing.T) {
	path := writeTempConfig(t, sampleConfig)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Orchestrator.DefaultDeltaLookback != 24*time.Hour {
		t.Errorf("expected default delta lookback of 24h, got %v", cfg.Orchestrator.DefaultDeltaLookback)
	}
	if cfg.Orchestrator.MaxBatchRedeliveries != 5 {
		t.Errorf("expected default max batch redeliveries of 5, got %d", cfg.Orchestrator.MaxBatchRedeliveries)
	}
	if cfg.Pagination.FanOutChunkSize != 100 {
		t.Errorf("expected default fan out chunk size of 100, got %d", cfg.Pagination.FanOutChunkSize)
	}
	if cfg.Webhook.UpdateLockTTL != 30*time.Second {
		t.Errorf("expected default webhook lock ttl of 30s, got %v", cfg.Webhook.UpdateLockTTL)
	}
	if cfg.BulkUpsert.ReadBackChunk != 20 {
		t.Errorf("expected default read back chunk of 20, got %d", cfg.BulkUpsert.ReadBackChunk)
	}
	if cfg.SQS.MaxConcurrency != 8 {
		t.Errorf("expected default sqs max concurrency of 8, got %d", cfg.SQS.MaxConcurrency)
	}
	if cfg.SQS.WaitTimeSeconds != 20 {
		t.Errorf("expected default sqs wait time of 20s, got %d", cfg.SQS.WaitTimeSeconds)
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error loading a nonexistent config file")
	}
}

func TestLoadHonorsExplicitDefaultOverride(t *testing.T) {
	const body = `
app:
  name: crm-telephony-sync
orchestrator:
  initial_batch_size: 100
  max_batch_redeliveries: 9
`
	path := writeTempConfig(t, body)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Orchestrator.MaxBatchRedeliveries != 9 {
		t.Errorf("expected explicit override of 9 to survive applyDefaults, got %d", cfg.Orchestrator.MaxBatchRedeliveries)
	}
}
