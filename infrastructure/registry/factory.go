package registry

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"

	"bb-datasources/application/ports"
	"bb-datasources/domain/core/valueobjects"
	"bb-datasources/pkg/errors"
)

// Factory maps connections to cached accessors, one per connection id for
// the connection's lifetime. Two caches, one per access method. Creation
// happens under the lock so a connection never gets two accessors.
type Factory struct {
	registry *Registry

	mu       sync.Mutex
	bbCache  map[string]ports.ResourceAccessor
	mcpCache map[string]ports.ResourceAccessor
	logger   *zap.Logger
}

func newFactory(registry *Registry, logger *zap.Logger) *Factory {
	return &Factory{
		registry: registry,
		bbCache:  make(map[string]ports.ResourceAccessor),
		mcpCache: make(map[string]ports.ResourceAccessor),
		logger:   logger,
	}
}

func (f *Factory) cacheFor(method valueobjects.AccessMethod) map[string]ports.ResourceAccessor {
	if method == valueobjects.AccessMethodMCP {
		return f.mcpCache
	}
	return f.bbCache
}

// GetAccessor returns the cached accessor for the connection, creating it
// through the connection's provider on first use. Fails fast when the
// provider's access method does not match the connection's.
func (f *Factory) GetAccessor(ctx context.Context, conn ports.ConnectionInfo) (ports.ResourceAccessor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cache := f.cacheFor(conn.AccessMethod())
	if accessor, ok := cache[conn.ID()]; ok {
		return accessor, nil
	}

	method := conn.AccessMethod()
	provider, err := f.registry.GetProvider(conn.ProviderType().String(), &method)
	if err != nil {
		return nil, err
	}
	if provider.AccessMethod() != conn.AccessMethod() {
		return nil, errors.NewInvalidConfig(
			"provider access method " + provider.AccessMethod().String() +
				" does not match connection access method " + conn.AccessMethod().String())
	}

	accessor, err := provider.CreateAccessor(ctx, conn)
	if err != nil {
		return nil, err
	}
	cache[conn.ID()] = accessor
	f.logger.Debug("accessor created",
		zap.String("connection", conn.ID()),
		zap.String("provider", conn.ProviderType().String()))
	return accessor, nil
}

// ClearCache drops every cached accessor, closing the ones that hold
// resources (watchers, sessions).
func (f *Factory) ClearCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, accessor := range f.bbCache {
		f.closeAccessor(accessor)
	}
	for _, accessor := range f.mcpCache {
		f.closeAccessor(accessor)
	}
	f.bbCache = make(map[string]ports.ResourceAccessor)
	f.mcpCache = make(map[string]ports.ResourceAccessor)
}

// ClearConnectionCache drops and closes the cached accessor of one
// connection.
func (f *Factory) ClearConnectionCache(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if accessor, ok := f.bbCache[id]; ok {
		f.closeAccessor(accessor)
		delete(f.bbCache, id)
	}
	if accessor, ok := f.mcpCache[id]; ok {
		f.closeAccessor(accessor)
		delete(f.mcpCache, id)
	}
}

func (f *Factory) closeAccessor(accessor ports.ResourceAccessor) {
	closer, ok := accessor.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		f.logger.Warn("evicted accessor close failed", zap.Error(err))
	}
}
