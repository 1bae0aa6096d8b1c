package ports

import (
	"context"

	"bb-datasources/domain/core/valueobjects"
)

// ContentTypeGuidance is structured help text consumed by higher layers
// when assembling tool instructions for a provider.
type ContentTypeGuidance struct {
	PrimaryContentType string   `json:"primaryContentType"` // plainText or structured
	UsageNotes         []string `json:"usageNotes,omitempty"`
	ExampleURIs        []string `json:"exampleUris,omitempty"`
	Instructions       string   `json:"instructions,omitempty"`
}

// ConnectionInfo is the read view of a connection a provider needs to build
// an accessor. The concrete type lives in domain/core/entities; this
// interface keeps the dependency pointing inward.
type ConnectionInfo interface {
	ID() string
	Name() string
	ProviderType() valueobjects.ProviderType
	AccessMethod() valueobjects.AccessMethod
	Config() map[string]interface{}
	Auth() *valueobjects.Auth
	URIPrefix() string

	// UpdateOAuthTokens mutates the connection's oauth2 auth record in
	// place. Used by the token-refresh callback path; persistence beyond
	// the record is the owning project's responsibility.
	UpdateOAuthTokens(tokens valueobjects.OAuth2Tokens)
}

// DataSourceProvider describes one backend kind: stateless, immutable for
// the process lifetime, and a factory for accessors.
type DataSourceProvider interface {
	ProviderType() valueobjects.ProviderType
	AccessMethod() valueobjects.AccessMethod
	Name() string
	Description() string
	URITemplate() string
	RequiredConfigFields() []string
	AuthMethod() valueobjects.AuthMethod
	Capabilities() valueobjects.CapabilitySet
	ContentTypeGuidance() ContentTypeGuidance

	// ValidateConfig checks that all required fields are present and
	// well-typed.
	ValidateConfig(config map[string]interface{}) error

	// ValidateAuth checks an auth record against the declared method.
	ValidateAuth(auth *valueobjects.Auth) error

	// CreateAccessor builds an accessor for a connection of this provider.
	// Fails when the connection's provider type does not match.
	CreateAccessor(ctx context.Context, conn ConnectionInfo) (ResourceAccessor, error)
}

// AccessorFactory maps connections to cached accessors (one per connection
// id, for the connection's lifetime).
type AccessorFactory interface {
	GetAccessor(ctx context.Context, conn ConnectionInfo) (ResourceAccessor, error)
	ClearCache()
	ClearConnectionCache(id string)
}
