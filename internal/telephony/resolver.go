package telephony

import "context"

// Resolver re-resolves a Provider for an integrationId on demand, mirroring
// crm.Resolver — the downstream tenant is looked up per message, not held
// on a long-lived struct.
type Resolver interface {
	Resolve(ctx context.Context, integrationID string) (Provider, error)
}

type ResolverFunc func(ctx context.Context, integrationID string) (Provider, error)

func (f ResolverFunc) Resolve(ctx context.Context, integrationID string) (Provider, error) {
	return f(ctx, integrationID)
}
