// Package mcpgeneric implements the resource accessor for externally
// managed MCP servers. It is a thin delegator: the transport lives in the
// MCP manager; this accessor wraps replies in the common shape and gates
// every operation on the capability set declared at registration.
package mcpgeneric

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"bb-datasources/application/ports"
	"bb-datasources/domain/core/valueobjects"
	"bb-datasources/domain/portabletext"
	"bb-datasources/pkg/errors"
)

// Accessor delegates to the MCP manager for one server.
type Accessor struct {
	conn     ports.ConnectionInfo
	caps     valueobjects.CapabilitySet
	manager  ports.MCPManager
	serverID string
	logger   *zap.Logger
}

// NewAccessor builds an MCP accessor for a connection. Recognized config
// keys: serverId (required).
func NewAccessor(conn ports.ConnectionInfo, caps valueobjects.CapabilitySet, manager ports.MCPManager, logger *zap.Logger) (*Accessor, error) {
	serverID, ok := conn.Config()["serverId"].(string)
	if !ok || serverID == "" {
		return nil, errors.NewInvalidConfig("mcp connection requires a serverId string")
	}
	if manager == nil {
		return nil, errors.NewInvalidConfig("mcp connection requires a manager")
	}
	return &Accessor{
		conn:     conn,
		caps:     caps,
		manager:  manager,
		serverID: serverID,
		logger:   logger,
	}, nil
}

// ConnectionID identifies the connection this accessor serves.
func (a *Accessor) ConnectionID() string { return a.conn.ID() }

// HasCapability reports whether the server declared the capability.
func (a *Accessor) HasCapability(c valueobjects.Capability) bool { return a.caps.Has(c) }

// resolve strips this connection's prefix, refusing foreign prefixes. The
// remaining path is opaque to this layer.
func (a *Accessor) resolve(uriOrPath string) (string, error) {
	if !strings.Contains(uriOrPath, "://") {
		return uriOrPath, nil
	}
	prefix := a.conn.URIPrefix()
	if stripped, ok := valueobjects.ResourcePathForPrefix(uriOrPath, prefix); ok {
		return stripped, nil
	}
	if _, err := valueobjects.ParseURI(uriOrPath); err == nil {
		return "", errors.NewURINotForConnection(uriOrPath, prefix)
	}
	// Not one of ours; MCP servers commonly expose their own URI schemes.
	return uriOrPath, nil
}

// IsResourceWithinDataSource reports whether the URI carries this
// connection's prefix. Never fails.
func (a *Accessor) IsResourceWithinDataSource(uri string) bool {
	if !strings.Contains(uri, "://") {
		return true
	}
	_, ok := valueobjects.ResourcePathForPrefix(uri, a.conn.URIPrefix())
	return ok
}

// ResourceExists reports existence by loading; any error counts as absence.
func (a *Accessor) ResourceExists(ctx context.Context, uri string, opts *ports.ExistsOptions) bool {
	if !a.caps.Has(valueobjects.CapabilityRead) {
		return false
	}
	path, err := a.resolve(uri)
	if err != nil {
		return false
	}
	_, err = a.manager.LoadResource(ctx, a.serverID, path)
	return err == nil
}

// EnsureResourcePathExists is refused: MCP exposes no hierarchy primitive.
func (a *Accessor) EnsureResourcePathExists(ctx context.Context, uri string) error {
	return errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "ensureResourcePathExists")
}

// LoadResource reads one resource through the manager.
func (a *Accessor) LoadResource(ctx context.Context, uri string, opts *ports.LoadOptions) (*ports.LoadResult, error) {
	if !a.caps.Has(valueobjects.CapabilityRead) {
		return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "load")
	}
	path, err := a.resolve(uri)
	if err != nil {
		return nil, err
	}
	result, err := a.manager.LoadResource(ctx, a.serverID, path)
	if err != nil {
		return nil, err
	}
	if result.Metadata.URI == "" || !strings.Contains(result.Metadata.URI, "://") {
		result.Metadata.URI = a.conn.URIPrefix() + path
	}
	return result, nil
}

// ListResources lists the server's resources. MCP pagination is handled by
// the manager; the reply is a single page.
func (a *Accessor) ListResources(ctx context.Context, opts *ports.ListOptions) (*ports.ListResult, error) {
	if !a.caps.Has(valueobjects.CapabilityList) {
		return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "list")
	}
	resources, err := a.manager.ListResources(ctx, a.serverID)
	if err != nil {
		return nil, err
	}
	if opts != nil && opts.PageSize > 0 && len(resources) > opts.PageSize {
		resources = resources[:opts.PageSize]
	}
	return &ports.ListResult{Resources: resources}, nil
}

// SearchResources is gated on the declared capability set.
func (a *Accessor) SearchResources(ctx context.Context, query string, opts *ports.SearchOptions) (*ports.SearchResult, error) {
	if !a.caps.Has(valueobjects.CapabilitySearch) {
		return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "search")
	}
	if query == "" {
		return nil, errors.NewInvalidQuery("search requires a query")
	}

	// Declared search without a dedicated tool degrades to a name filter
	// over the resource listing.
	resources, err := a.manager.ListResources(ctx, a.serverID)
	if err != nil {
		return nil, err
	}
	result := &ports.SearchResult{Matches: []ports.SearchMatch{}}
	needle := strings.ToLower(query)
	for _, r := range resources {
		if strings.Contains(strings.ToLower(r.Name), needle) ||
			strings.Contains(strings.ToLower(r.Description), needle) {
			result.Matches = append(result.Matches, ports.SearchMatch{Resource: r})
			result.TotalMatches++
		}
	}
	return result, nil
}

// WriteResource is gated on the declared capability set. The manager port
// carries no write RPC yet, so even a declared write falls through to a
// refusal naming the missing transport.
func (a *Accessor) WriteResource(ctx context.Context, uri string, content []byte, opts *ports.WriteOptions) (*ports.WriteResult, error) {
	if !a.caps.Has(valueobjects.CapabilityWrite) {
		return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "write")
	}
	return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "write over mcp")
}

// EditResource is gated on the declared capability set; see WriteResource.
func (a *Accessor) EditResource(ctx context.Context, resourcePath string, ops []portabletext.Operation, opts *ports.EditOptions) (*ports.EditResult, error) {
	if !a.caps.Has(valueobjects.CapabilityBlockEdit) {
		return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "editResource")
	}
	return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "editResource over mcp")
}

// MoveResource is gated on the declared capability set; see WriteResource.
func (a *Accessor) MoveResource(ctx context.Context, src, dst string, opts *ports.MoveOptions) (*ports.MoveResult, error) {
	if !a.caps.Has(valueobjects.CapabilityMove) {
		return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "move")
	}
	return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "move over mcp")
}

// DeleteResource is gated on the declared capability set; see WriteResource.
func (a *Accessor) DeleteResource(ctx context.Context, uri string, opts *ports.DeleteOptions) (*ports.DeleteResult, error) {
	if !a.caps.Has(valueobjects.CapabilityDelete) {
		return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "delete")
	}
	return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "delete over mcp")
}

// GetMetadata summarizes the server's resource listing. Best-effort.
func (a *Accessor) GetMetadata(ctx context.Context) *ports.DataSourceMetadata {
	meta := &ports.DataSourceMetadata{
		ProviderType: a.conn.ProviderType().String(),
		ConnectionID: a.conn.ID(),
	}
	resources, err := a.manager.ListResources(ctx, a.serverID)
	if err != nil {
		meta.Notes = append(meta.Notes, "resource listing failed: "+err.Error())
		return meta
	}
	meta.TotalFiles = len(resources)
	return meta
}
