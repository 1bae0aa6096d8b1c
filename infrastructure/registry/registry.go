// Package registry holds the process-wide data source registry: built-in
// providers filtered by the product manifest, plug-in providers from user
// directories, and generic MCP providers for discovered servers. The
// singleton is initialized exactly once; concurrent first-accessors share
// one initialization.
package registry

import (
	"context"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"bb-datasources/application/ports"
	"bb-datasources/domain/core/entities"
	"bb-datasources/domain/core/valueobjects"
	"bb-datasources/infrastructure/config"
	"bb-datasources/infrastructure/providers"
	"bb-datasources/pkg/errors"
)

// EnvIsolation forces a fresh registry per Get call when set to "fresh".
// Tests set it to keep registries isolated from each other.
const EnvIsolation = "BB_REGISTRY_ISOLATION"

var (
	globalMu  sync.Mutex
	global    *Registry
	initGroup singleflight.Group
)

// Registry is the provider catalog plus the accessor factory.
type Registry struct {
	cfg     *config.Config
	logger  *zap.Logger
	manager ports.MCPManager
	factory *Factory

	mu           sync.RWMutex
	bbProviders  map[string]ports.DataSourceProvider
	mcpProviders map[string]ports.DataSourceProvider
}

// Get returns the process-wide registry, initializing it on first call.
// Concurrent first calls share one initialization through a single-flight
// group. With EnvIsolation set to "fresh", every call builds a new
// independent registry.
func Get(ctx context.Context, cfg *config.Config, manager ports.MCPManager, logger *zap.Logger) (*Registry, error) {
	if os.Getenv(EnvIsolation) == "fresh" {
		return newRegistry(ctx, cfg, manager, logger)
	}

	globalMu.Lock()
	existing := global
	globalMu.Unlock()
	if existing != nil {
		return existing, nil
	}

	v, err, _ := initGroup.Do("init", func() (interface{}, error) {
		globalMu.Lock()
		existing := global
		globalMu.Unlock()
		if existing != nil {
			return existing, nil
		}
		r, err := newRegistry(ctx, cfg, manager, logger)
		if err != nil {
			return nil, err
		}
		globalMu.Lock()
		global = r
		globalMu.Unlock()
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Registry), nil
}

// Reset drops the process-wide registry. Tests only.
func Reset() {
	globalMu.Lock()
	global = nil
	globalMu.Unlock()
}

// newRegistry runs the initialization sequence: built-ins per manifest and
// variant, plug-in directories, then MCP server discovery.
func newRegistry(ctx context.Context, cfg *config.Config, manager ports.MCPManager, logger *zap.Logger) (*Registry, error) {
	r := &Registry{
		cfg:          cfg,
		logger:       logger,
		manager:      manager,
		bbProviders:  make(map[string]ports.DataSourceProvider),
		mcpProviders: make(map[string]ports.DataSourceProvider),
	}
	r.factory = newFactory(r, logger)

	r.registerBuiltins()
	r.loadPlugins()
	if err := r.discoverMCPServers(ctx); err != nil {
		// Discovery failure disables MCP providers but not the registry.
		logger.Warn("mcp server discovery failed", zap.Error(err))
	}
	return r, nil
}

// registerBuiltins instantiates each manifest entry enabled for the
// product variant.
func (r *Registry) registerBuiltins() {
	for _, entry := range r.cfg.Manifest {
		if !entry.EnabledFor(r.cfg.ProductVariant) {
			continue
		}
		var provider ports.DataSourceProvider
		switch entry.ProviderType {
		case "filesystem":
			provider = providers.NewFilesystemProvider(r.logger)
		case "notion":
			provider = providers.NewNotionProvider(r.logger)
		case "googledocs":
			provider = providers.NewGoogleDocsProvider(r.cfg.GoogleRefreshExchangeURI, r.logger)
		default:
			r.logger.Warn("unknown builtin provider in manifest",
				zap.String("providerType", entry.ProviderType))
			continue
		}
		r.bbProviders[entry.ProviderType] = provider
		r.logger.Info("registered builtin provider", zap.String("providerType", entry.ProviderType))
	}
}

// discoverMCPServers registers a generic provider for each MCP server that
// exposes at least one resource.
func (r *Registry) discoverMCPServers(ctx context.Context) error {
	if r.manager == nil {
		return nil
	}
	servers, err := r.manager.ListServers(ctx)
	if err != nil {
		return err
	}
	for _, server := range servers {
		if !server.HasResources {
			continue
		}
		provider, err := providers.NewGenericMCPProvider(server, r.manager, r.logger)
		if err != nil {
			r.logger.Warn("skipping mcp server with invalid id",
				zap.String("server", server.ID), zap.Error(err))
			continue
		}
		r.mcpProviders[server.ID] = provider
		r.logger.Info("registered mcp provider", zap.String("server", server.ID))
	}
	return nil
}

// RegisterProvider adds or replaces a provider. Plug-in loading and tests
// go through here.
func (r *Registry) RegisterProvider(p ports.DataSourceProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.AccessMethod() == valueobjects.AccessMethodMCP {
		r.mcpProviders[p.ProviderType().String()] = p
	} else {
		r.bbProviders[p.ProviderType().String()] = p
	}
}

// GetProvider looks up a provider by type. With a nil method, bb providers
// are searched before mcp providers; with a method, only that table.
func (r *Registry) GetProvider(providerType string, method *valueobjects.AccessMethod) (ports.DataSourceProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if method != nil {
		table := r.bbProviders
		if *method == valueobjects.AccessMethodMCP {
			table = r.mcpProviders
		}
		if p, ok := table[providerType]; ok {
			return p, nil
		}
		return nil, errors.NewNotFound("provider " + providerType + " (" + method.String() + ")")
	}

	if p, ok := r.bbProviders[providerType]; ok {
		return p, nil
	}
	if p, ok := r.mcpProviders[providerType]; ok {
		return p, nil
	}
	return nil, errors.NewNotFound("provider " + providerType)
}

// ProviderFilter narrows a provider listing. MCPServerAllowList, when
// non-nil, restricts mcp providers to the named server ids; bb providers
// are unaffected.
type ProviderFilter struct {
	AccessMethod       *valueobjects.AccessMethod
	MCPServerAllowList []string
}

// ListProviders returns the registered providers, bb first, each table
// sorted by provider type.
func (r *Registry) ListProviders(filter *ProviderFilter) []ports.DataSourceProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var allow map[string]bool
	if filter != nil && filter.MCPServerAllowList != nil {
		allow = make(map[string]bool, len(filter.MCPServerAllowList))
		for _, id := range filter.MCPServerAllowList {
			allow[id] = true
		}
	}

	var out []ports.DataSourceProvider
	includeBB := filter == nil || filter.AccessMethod == nil || *filter.AccessMethod == valueobjects.AccessMethodBB
	includeMCP := filter == nil || filter.AccessMethod == nil || *filter.AccessMethod == valueobjects.AccessMethodMCP

	if includeBB {
		out = append(out, sortedProviders(r.bbProviders, nil)...)
	}
	if includeMCP {
		out = append(out, sortedProviders(r.mcpProviders, allow)...)
	}
	return out
}

func sortedProviders(table map[string]ports.DataSourceProvider, allow map[string]bool) []ports.DataSourceProvider {
	keys := make([]string, 0, len(table))
	for k := range table {
		if allow != nil && !allow[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]ports.DataSourceProvider, 0, len(keys))
	for _, k := range keys {
		out = append(out, table[k])
	}
	return out
}

// Factory returns the accessor factory bound to this registry.
func (r *Registry) Factory() *Factory { return r.factory }

// CreateConnection validates config and auth against the provider, then
// constructs the connection.
func (r *Registry) CreateConnection(providerType, name string, method *valueobjects.AccessMethod, cfg map[string]interface{}, auth *valueobjects.Auth) (*entities.Connection, error) {
	provider, err := r.GetProvider(providerType, method)
	if err != nil {
		return nil, err
	}
	if err := provider.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if provider.AuthMethod() != valueobjects.AuthMethodNone || auth != nil {
		if err := provider.ValidateAuth(auth); err != nil {
			return nil, err
		}
	}
	return entities.NewConnection(provider.ProviderType(), provider.AccessMethod(), name, cfg, auth)
}
