// Package entities holds the mutable domain objects of the data source
// layer. Connection is the only entity: a configured, addressable instance
// of a provider.
package entities

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"bb-datasources/application/ports"
	"bb-datasources/domain/core/valueobjects"
	"bb-datasources/pkg/utils"
)

// Connection is a configured instance of a provider. Identity fields (id,
// provider type, access method) never change after construction; name,
// config, auth and the flags go through Update. Access method, provider
// type and capabilities are derived from the provider and read-only here.
type Connection struct {
	mu sync.RWMutex

	id           string
	providerType valueobjects.ProviderType
	accessMethod valueobjects.AccessMethod
	name         string
	config       map[string]interface{}
	auth         *valueobjects.Auth
	enabled      bool
	isPrimary    bool
	priority     int

	// owner receives token write-backs; optional.
	owner ports.ProjectPersistence

	// accessor caches the factory's handle for cheap re-lookup.
	accessor ports.ResourceAccessor
}

// ConnectionUpdate is the mutable surface of a connection. Nil fields are
// left unchanged. Identity fields are deliberately absent.
type ConnectionUpdate struct {
	Name      *string
	Config    map[string]interface{}
	Auth      *valueobjects.Auth
	Enabled   *bool
	IsPrimary *bool
	Priority  *int
}

// ConnectionRecord is the persisted JSON shape of a connection.
type ConnectionRecord struct {
	ID           string                 `json:"id" validate:"required"`
	ProviderType string                 `json:"providerType" validate:"required"`
	AccessMethod string                 `json:"accessMethod" validate:"required,oneof=bb mcp"`
	Name         string                 `json:"name" validate:"required"`
	Config       map[string]interface{} `json:"config"`
	Auth         *valueobjects.Auth     `json:"auth,omitempty"`
	Enabled      bool                   `json:"enabled"`
	IsPrimary    bool                   `json:"isPrimary"`
	Priority     int                    `json:"priority"`
}

// NewConnection constructs a connection with a fresh id. Config is
// defensively copied.
func NewConnection(pt valueobjects.ProviderType, method valueobjects.AccessMethod, name string, config map[string]interface{}, auth *valueobjects.Auth) (*Connection, error) {
	if name == "" {
		return nil, fmt.Errorf("connection name cannot be empty")
	}
	if !method.IsValid() {
		return nil, fmt.Errorf("invalid access method %q", method)
	}
	return &Connection{
		id:           uuid.NewString(),
		providerType: pt,
		accessMethod: method,
		name:         name,
		config:       copyConfig(config),
		auth:         auth.Clone(),
		enabled:      true,
		priority:     0,
	}, nil
}

// FromRecord rebuilds a connection from its persisted record.
func FromRecord(rec ConnectionRecord) (*Connection, error) {
	if err := utils.ValidateStruct(rec); err != nil {
		return nil, fmt.Errorf("invalid connection record: %w", err)
	}
	pt, err := valueobjects.NewProviderType(rec.ProviderType)
	if err != nil {
		return nil, err
	}
	method, err := valueobjects.ParseAccessMethod(rec.AccessMethod)
	if err != nil {
		return nil, err
	}
	return &Connection{
		id:           rec.ID,
		providerType: pt,
		accessMethod: method,
		name:         rec.Name,
		config:       copyConfig(rec.Config),
		auth:         rec.Auth.Clone(),
		enabled:      rec.Enabled,
		isPrimary:    rec.IsPrimary,
		priority:     rec.Priority,
	}, nil
}

// ToRecord serializes the connection, defensively copying config and auth.
func (c *Connection) ToRecord() ConnectionRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ConnectionRecord{
		ID:           c.id,
		ProviderType: c.providerType.String(),
		AccessMethod: c.accessMethod.String(),
		Name:         c.name,
		Config:       copyConfig(c.config),
		Auth:         c.auth.Clone(),
		Enabled:      c.enabled,
		IsPrimary:    c.isPrimary,
		Priority:     c.priority,
	}
}

// Update applies the mutable fields. Identity fields cannot change.
func (c *Connection) Update(u ConnectionUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if u.Name != nil {
		c.name = *u.Name
	}
	if u.Config != nil {
		c.config = copyConfig(u.Config)
	}
	if u.Auth != nil {
		c.auth = u.Auth.Clone()
	}
	if u.Enabled != nil {
		c.enabled = *u.Enabled
	}
	if u.IsPrimary != nil {
		c.isPrimary = *u.IsPrimary
	}
	if u.Priority != nil {
		c.priority = *u.Priority
	}
}

// ID returns the stable connection id.
func (c *Connection) ID() string { return c.id }

// Name returns the human name.
func (c *Connection) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// ProviderType is derived from the provider and read-only.
func (c *Connection) ProviderType() valueobjects.ProviderType { return c.providerType }

// AccessMethod is derived from the provider and read-only.
func (c *Connection) AccessMethod() valueobjects.AccessMethod { return c.accessMethod }

// Enabled reports whether the connection is enabled.
func (c *Connection) Enabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// IsPrimary reports whether the connection is the primary for its provider.
func (c *Connection) IsPrimary() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isPrimary
}

// Priority orders primary/secondary selection; higher is more important.
func (c *Connection) Priority() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.priority
}

// Config returns a defensive copy of the provider-specific configuration.
func (c *Connection) Config() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyConfig(c.config)
}

// Auth returns the live auth record. OAuth tokens are mutated in place on
// refresh, so this is intentionally not a copy.
func (c *Connection) Auth() *valueobjects.Auth {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.auth
}

// SetOwner attaches the persistence hook that receives token write-backs.
func (c *Connection) SetOwner(owner ports.ProjectPersistence) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.owner = owner
}

// UpdateOAuthTokens mutates the oauth2 auth record in place and, when an
// owner is attached, persists the updated record through it.
func (c *Connection) UpdateOAuthTokens(tokens valueobjects.OAuth2Tokens) {
	c.mu.Lock()
	if c.auth == nil {
		c.auth = &valueobjects.Auth{Method: valueobjects.AuthMethodOAuth2}
	}
	t := tokens
	c.auth.OAuth2 = &t
	owner := c.owner
	auth := c.auth.Clone()
	c.mu.Unlock()

	if owner != nil {
		// Persistence failures must not fail the request that triggered
		// the refresh; the owner logs them.
		_ = owner.PersistConnectionAuth(context.Background(), c.id, auth)
	}
}

// URIPrefix returns <accessMethod>+<providerType>+<name>://
func (c *Connection) URIPrefix() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return valueobjects.URIPrefix(c.accessMethod, c.providerType, c.name)
}

// URIForResource returns a fully-qualified URI for a resource path, or the
// path unchanged when it already carries an access method prefix.
func (c *Connection) URIForResource(resourcePath string) string {
	if valueobjects.HasAccessMethodPrefix(resourcePath) {
		return resourcePath
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return valueobjects.BuildURI(c.accessMethod, c.providerType, c.name, resourcePath)
}

// ResourcePathFor extracts the resource path of a URI belonging to this
// connection. The bool is false for URIs of other connections.
func (c *Connection) ResourcePathFor(uri string) (string, bool) {
	return valueobjects.ResourcePathForPrefix(uri, c.URIPrefix())
}

// ResourceAccessor lazily resolves this connection's accessor through the
// factory and caches the handle on the connection.
func (c *Connection) ResourceAccessor(ctx context.Context, factory ports.AccessorFactory) (ports.ResourceAccessor, error) {
	c.mu.RLock()
	cached := c.accessor
	c.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	accessor, err := factory.GetAccessor(ctx, c)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.accessor = accessor
	c.mu.Unlock()
	return accessor, nil
}

// InvalidateAccessor drops the locally cached accessor handle. The factory
// cache is cleared separately.
func (c *Connection) InvalidateAccessor() {
	c.mu.Lock()
	c.accessor = nil
	c.mu.Unlock()
}

func copyConfig(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
