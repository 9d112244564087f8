package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/acme/crm-telephony-sync/internal/crm"
	"github.com/acme/crm-telephony-sync/internal/telephony"
)

// AdapterRegistry is a concurrency-safe crm.Resolver backed by explicit
// per-integration registration, falling back to a default Adapter when none
// is registered for an integrationId. Real vendor CRM clients are wired up
// outside this module (spec.md §1: "the adapter itself lives outside this
// package"); this registry is where a deployment plugs them in.
type AdapterRegistry struct {
	mu       sync.RWMutex
	adapters map[string]crm.Adapter
	fallback crm.Adapter
}

func NewAdapterRegistry(fallback crm.Adapter) *AdapterRegistry {
	return &AdapterRegistry{adapters: map[string]crm.Adapter{}, fallback: fallback}
}

// Register binds an Adapter to an integrationId, overriding the fallback for it.
func (r *AdapterRegistry) Register(integrationID string, adapter crm.Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[integrationID] = adapter
}

// Resolve implements crm.Resolver.
func (r *AdapterRegistry) Resolve(ctx context.Context, integrationID string) (crm.Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.adapters[integrationID]; ok {
		return a, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("app: no crm adapter registered for integration %s", integrationID)
}

var _ crm.Resolver = (*AdapterRegistry)(nil)

// ProviderRegistry is a concurrency-safe telephony.Resolver. Every
// integration in this deployment talks to the same downstream telephony
// platform account, so in practice one Provider is registered under every
// integrationId seen; the per-integrationId lookup is kept so a deployment
// that does route distinct integrations to distinct telephony accounts can
// register accordingly without changing any caller.
type ProviderRegistry struct {
	mu        sync.RWMutex
	providers map[string]telephony.Provider
	fallback  telephony.Provider
}

func NewProviderRegistry(fallback telephony.Provider) *ProviderRegistry {
	return &ProviderRegistry{providers: map[string]telephony.Provider{}, fallback: fallback}
}

// Register binds a Provider to an integrationId, overriding the fallback for it.
func (r *ProviderRegistry) Register(integrationID string, provider telephony.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[integrationID] = provider
}

// Resolve implements telephony.Resolver.
func (r *ProviderRegistry) Resolve(ctx context.Context, integrationID string) (telephony.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.providers[integrationID]; ok {
		return p, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("app: no telephony provider registered for integration %s", integrationID)
}

var _ telephony.Resolver = (*ProviderRegistry)(nil)
