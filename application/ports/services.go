package ports

import (
	"context"

	"bb-datasources/domain/core/valueobjects"
)

// MCPServerInfo describes one externally-managed MCP server as reported by
// the MCP manager.
type MCPServerInfo struct {
	ID           string
	Name         string
	Description  string
	Capabilities []valueobjects.Capability
	HasResources bool
}

// MCPManager mediates the Model-Context-Protocol transport. The transport
// itself is an external collaborator; the data source layer only consumes
// this interface.
type MCPManager interface {
	// ListServers enumerates registered MCP servers.
	ListServers(ctx context.Context) ([]MCPServerInfo, error)

	// ListResources lists the resources a server exposes.
	ListResources(ctx context.Context, serverID string) ([]ResourceMetadata, error)

	// LoadResource reads one resource from a server.
	LoadResource(ctx context.Context, serverID, path string) (*LoadResult, error)
}

// ProjectPersistence receives token write-backs for stored connections.
// The data source layer never persists state itself.
type ProjectPersistence interface {
	PersistConnectionAuth(ctx context.Context, connectionID string, auth *valueobjects.Auth) error
}

// SecretStore resolves credential refs (basic/bearer auth variants).
// Read-only from this layer's point of view.
type SecretStore interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// TokenUpdateCallback is invoked after a successful OAuth refresh with the
// new token state. Its contract is to persist the tokens to the owning
// project's stored connection.
type TokenUpdateCallback func(ctx context.Context, tokens valueobjects.OAuth2Tokens) error
