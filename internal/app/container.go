// Package app wires stores, caches, and domain components into a running
// process, following the same lazy-initialized component graph the
// teacher's own internal/app/container.go uses.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/acme/crm-telephony-sync/internal/activity"
	"github.com/acme/crm-telephony-sync/internal/cache/intlock"
	"github.com/acme/crm-telephony-sync/internal/cache/phonemeta"
	"github.com/acme/crm-telephony-sync/internal/config"
	"github.com/acme/crm-telephony-sync/internal/crm"
	"github.com/acme/crm-telephony-sync/internal/infra/db"
	"github.com/acme/crm-telephony-sync/internal/infra/redis"
	"github.com/acme/crm-telephony-sync/internal/lifecycle"
	"github.com/acme/crm-telephony-sync/internal/orchestrator"
	"github.com/acme/crm-telephony-sync/internal/pagination"
	"github.com/acme/crm-telephony-sync/internal/queue"
	syncengine "github.com/acme/crm-telephony-sync/internal/sync"
	"github.com/acme/crm-telephony-sync/internal/store/integration"
	"github.com/acme/crm-telephony-sync/internal/store/mapping"
	"github.com/acme/crm-telephony-sync/internal/store/process"
	telephonymock "github.com/acme/crm-telephony-sync/internal/telephony/mock"
	"github.com/acme/crm-telephony-sync/internal/webhook"
	"github.com/acme/crm-telephony-sync/pkg/logger"
)

// Container wires together shared infrastructure dependencies.
type Container struct {
	Config *config.Config
	Logger *logger.Logger

	Postgres *db.Postgres
	Scylla   *db.Scylla
	Redis    *redis.Client
	Queue    *queue.Client

	// lazily initialised components
	components struct {
		once       sync.Once
		stores     *stores
		caches     *caches
		resolvers  *resolvers
		domain     *domainComponents
	}
}

type stores struct {
	Process     *process.Store
	Integration *integration.Store
	Mapping     *mapping.Store
}

type caches struct {
	IntegrationLock *intlock.Locker
	PhoneMetadata   *phonemeta.Cache
}

// resolvers holds the per-integration capability resolvers. No real vendor
// CRM or telephony client lives in this module — the adapter itself lives
// outside this package — so a deployment calls Adapters.Register /
// Providers.Register with its real clients during startup. The fallback
// wired in initComponents is the same in-memory mock/fake the teacher wires
// unconditionally into its own production Providers() slot, kept here for
// the same reason: a runnable default with no external dependency.
type resolvers struct {
	Adapters  *AdapterRegistry
	Providers *ProviderRegistry
}

type domainComponents struct {
	Orchestrator *orchestrator.Orchestrator
	Pagination   *pagination.Engine
	Reconciler   *syncengine.Reconciler
	Webhooks     *webhook.Manager
	Lifecycle    *lifecycle.Manager
	Activity     *activity.Consumer
}

// Build constructs a container for the given configuration path.
func Build(ctx context.Context, configPath string) (*Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	lg, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, err
	}

	pg, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("bootstrap postgres: %w", err)
	}

	scylla, err := db.NewScylla(cfg.Scylla)
	if err != nil {
		return nil, fmt.Errorf("bootstrap scylla: %w", err)
	}

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("bootstrap redis: %w", err)
	}

	sqsClient, err := queue.NewClient(ctx, cfg.SQS)
	if err != nil {
		return nil, fmt.Errorf("bootstrap sqs: %w", err)
	}

	container := &Container{
		Config:   cfg,
		Logger:   lg,
		Postgres: pg,
		Scylla:   scylla,
		Redis:    redisClient,
		Queue:    sqsClient,
	}

	return container, nil
}

func (c *Container) initComponents() {
	c.components.once.Do(func() {
		st := &stores{
			Process:     process.New(c.Postgres.DB()),
			Integration: integration.New(c.Postgres.DB()),
			Mapping:     mapping.New(c.Scylla.Session()),
		}

		ca := &caches{
			IntegrationLock: intlock.New(c.Redis.Inner(), c.Config.Webhook.UpdateLockTTL),
			PhoneMetadata:   phonemeta.New(c.Redis.Inner(), c.Config.Webhook.PhoneMetadataTTL),
		}

		defaultProvider := telephonymock.NewProvider()
		defaultAdapter := crm.NewFakeAdapter(crm.SyncConfig{
			PaginationType:      crm.PaginationPageBased,
			SupportsTotal:       true,
			InitialBatchSize:    c.Config.Orchestrator.InitialBatchSize,
			OngoingBatchSize:    c.Config.Orchestrator.OngoingBatchSize,
			PollIntervalMinutes: c.Config.Orchestrator.PollIntervalMinutes,
		}, []crm.PersonObjectType{{CRMObjectName: "contact", QuoContactType: "Contact"}})

		res := &resolvers{
			Adapters:  NewAdapterRegistry(defaultAdapter),
			Providers: NewProviderRegistry(defaultProvider),
		}

		reconciler := syncengine.New(defaultProvider, st.Mapping, syncengine.Config{
			ReadBackDelay: c.Config.BulkUpsert.ReadBackDelay,
			ReadBackChunk: c.Config.BulkUpsert.ReadBackChunk,
		})

		orch := orchestrator.New(st.Process, c.Queue, c.Config.SQS.QueueURL, orchestrator.Config{
			DefaultDeltaLookback: c.Config.Orchestrator.DefaultDeltaLookback,
		}, c.Logger)

		paginationEngine := pagination.New(st.Process, c.Queue, c.Config.SQS.QueueURL, res.Adapters, reconciler, pagination.Config{
			FanOutChunkSize:    c.Config.Pagination.FanOutChunkSize,
			MaxConcurrentFlush: c.Config.Pagination.MaxConcurrentFlush,
			MaxBatchRedeliveries: c.Config.Orchestrator.MaxBatchRedeliveries,
		}, c.Logger)

		webhooks := webhook.New(st.Integration, ca.PhoneMetadata, ca.IntegrationLock, res.Providers, webhook.Config{
			ResourceBatchSize:  c.Config.Webhook.ResourceBatchSize,
			MaxConcurrentFlush: c.Config.Webhook.MaxConcurrentFlush,
			UpdateLockTTL:      c.Config.Webhook.UpdateLockTTL,
		}, c.Logger)

		onCreateDelay := time.Duration(c.Config.Orchestrator.OnCreateDelaySeconds) * time.Second
		lifecycleMgr := lifecycle.New(st.Integration, res.Adapters, webhooks, orch, c.Queue, c.Config.SQS.QueueURL, nil, lifecycle.Config{
			OnCreateDelay: onCreateDelay,
			WebhookURL:    c.Config.HTTP.WebhookCallbackURL,
		}, c.Logger)

		activityConsumer := activity.New(res.Adapters, c.Logger)

		c.components.stores = st
		c.components.caches = ca
		c.components.resolvers = res
		c.components.domain = &domainComponents{
			Orchestrator: orch,
			Pagination:   paginationEngine,
			Reconciler:   reconciler,
			Webhooks:     webhooks,
			Lifecycle:    lifecycleMgr,
			Activity:     activityConsumer,
		}
	})
}

// Stores exposes initialized persistence stores.
func (c *Container) Stores() *stores {
	c.initComponents()
	return c.components.stores
}

// Caches exposes initialized Redis-backed caches.
func (c *Container) Caches() *caches {
	c.initComponents()
	return c.components.caches
}

// Resolvers exposes the per-integration capability resolvers. Call
// Resolvers().Adapters.Register / Providers.Register during startup to
// plug in real vendor clients ahead of the in-memory fallback.
func (c *Container) Resolvers() *resolvers {
	c.initComponents()
	return c.components.resolvers
}

// Domain exposes the wired domain components (orchestrator, pagination,
// webhooks, lifecycle, activity projection).
func (c *Container) Domain() *domainComponents {
	c.initComponents()
	return c.components.domain
}

// Close releases all held resources.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if c.Scylla != nil {
		if err := c.Scylla.Close(); err != nil {
			errs = append(errs, fmt.Errorf("scylla close: %w", err))
		}
	}
	if c.Postgres != nil {
		if err := c.Postgres.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres close: %w", err))
		}
	}
	if c.Logger != nil {
		c.Logger.Sync()
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
