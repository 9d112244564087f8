// Package webhook implements the Webhook Subscription Manager (spec.md
// §4.6): reconciling the set of downstream-platform webhook subscriptions
// against a configured set of resource IDs, respecting the downstream's
// 10-resource-per-subscription cap, with all-or-nothing create and
// create-then-delete reconfigure. Grounded on the teacher's
// one-writer-per-resource construction in internal/queue/kafka.go,
// generalized to "one subscription per resource-ID chunk", and on
// internal/repository/postgres/tx.go's rollback-on-error shape, applied here
// to best-effort external-API rollback since the downstream has no
// transaction primitive.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/acme/crm-telephony-sync/internal/cache/intlock"
	"github.com/acme/crm-telephony-sync/internal/cache/phonemeta"
	"github.com/acme/crm-telephony-sync/internal/domain"
	"github.com/acme/crm-telephony-sync/internal/store/integration"
	"github.com/acme/crm-telephony-sync/internal/telephony"
	"github.com/acme/crm-telephony-sync/pkg/logger"
)

// Config governs batching and concurrency for the Webhook Subscription Manager.
type Config struct {
	ResourceBatchSize  int
	MaxConcurrentFlush int
	UpdateLockTTL      time.Duration
}

func (c Config) withDefaults() Config {
	if c.ResourceBatchSize <= 0 {
		c.ResourceBatchSize = 10
	}
	if c.MaxConcurrentFlush <= 0 {
		c.MaxConcurrentFlush = 4
	}
	if c.UpdateLockTTL <= 0 {
		c.UpdateLockTTL = 30 * time.Second
	}
	return c
}

// Manager reconciles the three webhook subscription types (messages, calls,
// call summaries) against an integration's enabled phone IDs.
type Manager struct {
	integrations *integration.Store
	phoneCache   *phonemeta.Cache
	locks        *intlock.Locker
	providers    telephony.Resolver
	cfg          Config
	log          *logger.Logger
}

func New(integrations *integration.Store, phoneCache *phonemeta.Cache, locks *intlock.Locker, providers telephony.Resolver, cfg Config, log *logger.Logger) *Manager {
	return &Manager{integrations: integrations, phoneCache: phoneCache, locks: locks, providers: providers, cfg: cfg.withDefaults(), log: log}
}

// subscriptionKind binds one of the three subscription types to the
// downstream RPC that creates it; events/label are adapter-supplied
// constants in the real system, hard-coded here since they are opaque to
// the core (spec.md §1 scope).
type subscriptionKind struct {
	key    string
	label  string
	events []string
	create func(context.Context, telephony.Provider, telephony.CreateWebhookParams) (telephony.WebhookSubscription, error)
}

var kinds = []subscriptionKind{
	{
		key:    "message",
		label:  "CRM Sync - Messages",
		events: []string{"message.received", "message.sent"},
		create: func(ctx context.Context, p telephony.Provider, params telephony.CreateWebhookParams) (telephony.WebhookSubscription, error) {
			return p.CreateMessageWebhook(ctx, params)
		},
	},
	{
		key:    "call",
		label:  "CRM Sync - Calls",
		events: []string{"call.started", "call.completed"},
		create: func(ctx context.Context, p telephony.Provider, params telephony.CreateWebhookParams) (telephony.WebhookSubscription, error) {
			return p.CreateCallWebhook(ctx, params)
		},
	},
	{
		key:    "call_summary",
		label:  "CRM Sync - Call Summaries",
		events: []string{"call.summary.ready"},
		create: func(ctx context.Context, p telephony.Provider, params telephony.CreateWebhookParams) (telephony.WebhookSubscription, error) {
			return p.CreateCallSummaryWebhook(ctx, params)
		},
	},
}

// Result is the reconciled subscription set for all three kinds.
type Result struct {
	Message     []domain.WebhookSubscription
	Call        []domain.WebhookSubscription
	CallSummary []domain.WebhookSubscription
}

type createdSub struct {
	kindKey string
	index   int
	id      string
	sub     domain.WebhookSubscription
}

// CreateAll resolves the integration's telephony provider and creates
// subscriptions for phoneIDs.
func (m *Manager) CreateAll(ctx context.Context, integrationID, webhookURL string, phoneIDs []string) (Result, error) {
	provider, err := m.providers.Resolve(ctx, integrationID)
	if err != nil {
		return Result{}, fmt.Errorf("webhook: resolve provider: %w", err)
	}
	return m.createAllWithProvider(ctx, provider, webhookURL, phoneIDs)
}

// createAllWithProvider chunks phoneIDs into groups of ResourceBatchSize and
// creates one subscription per (kind, chunk). All-or-nothing: if any create
// fails after others succeeded, every subscription already created in this
// call is deleted (best effort) and the original error is returned. Empty
// phoneIDs is a no-op.
func (m *Manager) createAllWithProvider(ctx context.Context, provider telephony.Provider, webhookURL string, phoneIDs []string) (Result, error) {
	if len(phoneIDs) == 0 {
		return Result{}, nil
	}

	chunks := chunkStrings(phoneIDs, m.cfg.ResourceBatchSize)

	var mu sync.Mutex
	var created []createdSub

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.MaxConcurrentFlush)

	for _, k := range kinds {
		k := k
		for i, chunk := range chunks {
			i, chunk := i, chunk
			g.Go(func() error {
				label := k.label
				if len(chunks) > 1 {
					label = fmt.Sprintf("%s (batch %d)", k.label, i+1)
				}
				sub, err := k.create(gctx, provider, telephony.CreateWebhookParams{
					URL:         webhookURL,
					Events:      k.events,
					Label:       label,
					ResourceIDs: chunk,
				})
				if err != nil {
					return fmt.Errorf("webhook: create %s subscription: %w", k.key, err)
				}
				mu.Lock()
				created = append(created, createdSub{
					kindKey: k.key,
					index:   i,
					id:      sub.ID,
					sub:     domain.WebhookSubscription{ID: sub.ID, Key: sub.Key, ResourceIDs: chunk},
				})
				mu.Unlock()
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		m.rollback(provider, created)
		return Result{}, err
	}

	return buildResult(created), nil
}

// rollback best-effort deletes every subscription created in a failed
// CreateAll call; deletion errors are logged, never surfaced (the original
// create error is what the caller needs to see).
func (m *Manager) rollback(provider telephony.Provider, created []createdSub) {
	for _, c := range created {
		if err := provider.DeleteWebhook(context.Background(), c.id); err != nil {
			if m.log != nil {
				m.log.Warn("webhook: rollback delete failed", zap.String("subscription_id", c.id), zap.Error(err))
			}
		}
	}
}

func buildResult(created []createdSub) Result {
	sort.Slice(created, func(i, j int) bool { return created[i].index < created[j].index })

	var r Result
	for _, c := range created {
		switch c.kindKey {
		case "message":
			r.Message = append(r.Message, c.sub)
		case "call":
			r.Call = append(r.Call, c.sub)
		case "call_summary":
			r.CallSummary = append(r.CallSummary, c.sub)
		}
	}
	return r
}

// RecreateAll resolves the integration's telephony provider and recreates
// its subscriptions for newPhoneIDs.
func (m *Manager) RecreateAll(ctx context.Context, integrationID, webhookURL string, newPhoneIDs []string, existing *domain.IntegrationConfig) (Result, error) {
	provider, err := m.providers.Resolve(ctx, integrationID)
	if err != nil {
		return Result{}, fmt.Errorf("webhook: resolve provider: %w", err)
	}
	return m.recreateAllWithProvider(ctx, provider, webhookURL, newPhoneIDs, existing)
}

// recreateAllWithProvider creates subscriptions for newPhoneIDs first
// (minimizing the gap with no webhook coverage), then deletes every
// pre-existing subscription in existing — both the new-shape lists and any
// legacy single-value fields. Deletion failures are logged but do not fail
// the operation. newPhoneIDs == nil/empty deletes existing subscriptions
// only and creates none.
func (m *Manager) recreateAllWithProvider(ctx context.Context, provider telephony.Provider, webhookURL string, newPhoneIDs []string, existing *domain.IntegrationConfig) (Result, error) {
	result, err := m.createAllWithProvider(ctx, provider, webhookURL, newPhoneIDs)
	if err != nil {
		return Result{}, fmt.Errorf("webhook: recreate all: %w", err)
	}

	m.deleteExisting(provider, existing)

	return result, nil
}

func (m *Manager) deleteExisting(provider telephony.Provider, existing *domain.IntegrationConfig) {
	if existing == nil {
		return
	}

	del := func(id string) {
		if id == "" {
			return
		}
		if err := provider.DeleteWebhook(context.Background(), id); err != nil {
			if m.log != nil {
				m.log.Warn("webhook: delete existing subscription failed", zap.String("subscription_id", id), zap.Error(err))
			}
		}
	}

	for _, s := range existing.QuoMessageWebhooks {
		del(s.ID)
	}
	for _, s := range existing.QuoCallWebhooks {
		del(s.ID)
	}
	for _, s := range existing.QuoCallSummaryWebhooks {
		del(s.ID)
	}
	// Legacy single-subscription shape, tolerated during migration.
	del(existing.LegacyMessageWebhookID)
	del(existing.LegacyCallWebhookID)
	del(existing.LegacyCallSummaryWebhookID)
}

// FetchPhoneMetadataForIds resolves the integration's telephony provider,
// lists all phone numbers on the downstream (one call, max 100), and
// filters locally to ids, logging any that are missing.
func (m *Manager) FetchPhoneMetadataForIds(ctx context.Context, integrationID string, ids []string) (map[string]domain.PhoneMetadata, error) {
	provider, err := m.providers.Resolve(ctx, integrationID)
	if err != nil {
		return nil, fmt.Errorf("webhook: resolve provider: %w", err)
	}
	return m.fetchPhoneMetadataWithProvider(ctx, provider, integrationID, ids)
}

// fetchPhoneMetadataWithProvider serves ids out of the Redis-backed cache
// when every requested id is already present, avoiding a listPhoneNumbers
// round trip on every webhook reconciliation; any miss falls through to the
// downstream list call and repopulates the cache with the full set before
// filtering down to ids.
func (m *Manager) fetchPhoneMetadataWithProvider(ctx context.Context, provider telephony.Provider, integrationID string, ids []string) (map[string]domain.PhoneMetadata, error) {
	if m.phoneCache != nil {
		cached, err := m.phoneCache.Get(ctx, integrationID)
		if err != nil && m.log != nil {
			m.log.Warn("webhook: phone metadata cache read failed, falling back to downstream", zap.Error(err))
		}
		if cached != nil && hasAll(cached, ids) {
			return filterPhoneMetadata(cached, ids, m.log), nil
		}
	}

	all, err := provider.ListPhoneNumbers(ctx, telephony.ListPhoneNumbersParams{MaxResults: 100})
	if err != nil {
		return nil, fmt.Errorf("webhook: list phone numbers: %w", err)
	}

	full := make(map[string]domain.PhoneMetadata, len(all))
	for _, p := range all {
		full[p.ID] = domain.PhoneMetadata{ID: p.ID, PhoneNumber: p.PhoneNumber, Label: p.Label}
	}

	if m.phoneCache != nil {
		if err := m.phoneCache.Set(ctx, integrationID, full); err != nil && m.log != nil {
			m.log.Warn("webhook: phone metadata cache write failed", zap.Error(err))
		}
	}

	return filterPhoneMetadata(full, ids, m.log), nil
}

// hasAll reports whether meta already holds an entry for every id.
func hasAll(meta map[string]domain.PhoneMetadata, ids []string) bool {
	for _, id := range ids {
		if _, ok := meta[id]; !ok {
			return false
		}
	}
	return true
}

// filterPhoneMetadata projects meta down to ids, logging any that are
// missing from the downstream's phone number list.
func filterPhoneMetadata(meta map[string]domain.PhoneMetadata, ids []string, log *logger.Logger) map[string]domain.PhoneMetadata {
	out := make(map[string]domain.PhoneMetadata, len(ids))
	for _, id := range ids {
		if p, ok := meta[id]; ok {
			out[id] = p
			continue
		}
		if log != nil {
			log.Warn("webhook: phone id not found on downstream", zap.String("phone_id", id))
		}
	}
	return out
}

// UpdateInput is the raw PATCH body onUpdate receives; ResourceIDs is the
// external name for enabledPhoneIds (spec.md §4.6), Extra carries any other
// config fields to deep-merge.
type UpdateInput struct {
	ResourceIDs []string
	Extra       map[string]any
}

// OnUpdate implements spec.md §4.6's configuration update flow: translate
// resourceIds, deep-merge onto the existing config, and — only if the
// resulting enabledPhoneIds set actually changed (order-insensitive) —
// fetch fresh phone metadata and recreate the webhook subscriptions.
// Per-integration updates are serialized with a Redis lock. Errors in the
// recreate step abort the whole update; the persisted config is unchanged.
func (m *Manager) OnUpdate(ctx context.Context, integrationID, webhookURL string, input UpdateInput) (*domain.IntegrationConfig, error) {
	handle, ok, err := m.locks.Acquire(ctx, integrationID)
	if err != nil {
		return nil, fmt.Errorf("webhook: acquire update lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("webhook: config update for %s already in progress", integrationID)
	}
	defer func() { _ = handle.Release(context.Background()) }()

	provider, err := m.providers.Resolve(ctx, integrationID)
	if err != nil {
		return nil, fmt.Errorf("webhook: resolve provider: %w", err)
	}

	existing, err := m.integrations.Get(ctx, integrationID)
	if err != nil {
		return nil, fmt.Errorf("webhook: load config: %w", err)
	}

	patch := map[string]any{}
	for k, v := range input.Extra {
		patch[k] = v
	}
	if input.ResourceIDs != nil {
		patch["enabledPhoneIds"] = toAnySlice(input.ResourceIDs)
	}

	merged, err := mergeConfig(existing, patch)
	if err != nil {
		return nil, fmt.Errorf("webhook: merge config: %w", err)
	}
	merged.IntegrationID = integrationID

	if !phoneSetChanged(existing.EnabledPhoneIDs, merged.EnabledPhoneIDs) {
		merged.UpdatedAt = time.Now().UTC()
		if err := m.integrations.Upsert(ctx, merged); err != nil {
			return nil, fmt.Errorf("webhook: persist unchanged config: %w", err)
		}
		return merged, nil
	}

	meta, err := m.fetchPhoneMetadataWithProvider(ctx, provider, integrationID, merged.EnabledPhoneIDs)
	if err != nil {
		return nil, fmt.Errorf("webhook: config update aborted: %w", err)
	}

	result, err := m.recreateAllWithProvider(ctx, provider, webhookURL, merged.EnabledPhoneIDs, existing)
	if err != nil {
		// Abort: existing persisted config stays exactly as it was.
		return nil, fmt.Errorf("webhook: config update aborted: %w", err)
	}

	now := time.Now().UTC()
	merged.PhoneNumbersMetadata = meta
	merged.PhoneNumbersFetchedAt = &now
	merged.QuoMessageWebhooks = result.Message
	merged.QuoCallWebhooks = result.Call
	merged.QuoCallSummaryWebhooks = result.CallSummary
	merged.QuoWebhooksCreatedAt = &now
	merged.StripLegacyFields()
	merged.UpdatedAt = now

	if err := m.integrations.Upsert(ctx, merged); err != nil {
		return nil, fmt.Errorf("webhook: persist updated config: %w", err)
	}
	return merged, nil
}

// phoneSetChanged compares two ID sets order-insensitively (spec.md §4.6 —
// "sort both old and new sets lexicographically and compare").
func phoneSetChanged(old, updated []string) bool {
	if len(old) != len(updated) {
		return true
	}
	a := append([]string(nil), old...)
	b := append([]string(nil), updated...)
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return true
		}
	}
	return false
}

// mergeConfig round-trips through JSON so the free-form PATCH semantics in
// spec.md §4.6 (nested objects merged recursively, arrays/primitives
// overwritten) apply uniformly, matching integration.DeepMerge's contract.
func mergeConfig(existing *domain.IntegrationConfig, patch map[string]any) (*domain.IntegrationConfig, error) {
	existingJSON, err := json.Marshal(existing)
	if err != nil {
		return nil, err
	}
	var existingMap map[string]any
	if err := json.Unmarshal(existingJSON, &existingMap); err != nil {
		return nil, err
	}

	mergedMap := integration.DeepMerge(existingMap, patch)

	mergedJSON, err := json.Marshal(mergedMap)
	if err != nil {
		return nil, err
	}
	var merged domain.IntegrationConfig
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func chunkStrings(items []string, size int) [][]string {
	if size <= 0 {
		size = 10
	}
	chunks := make([][]string, 0, (len(items)+size-1)/size)
	for size < len(items) {
		items, chunks = items[size:], append(chunks, items[0:size:size])
	}
	return append(chunks, items)
}
