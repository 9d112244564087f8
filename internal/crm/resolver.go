package crm

import "context"

// Resolver re-resolves an Adapter for an integrationId on demand. Queue
// handlers take a Resolver instead of holding an Adapter reference directly,
// so a Process never carries a back-reference to its adapter.
type Resolver interface {
	Resolve(ctx context.Context, integrationID string) (Adapter, error)
}

// ResolverFunc adapts a plain function to Resolver.
type ResolverFunc func(ctx context.Context, integrationID string) (Adapter, error)

func (f ResolverFunc) Resolve(ctx context.Context, integrationID string) (Adapter, error) {
	return f(ctx, integrationID)
}
