package providers

import (
	"context"

	"go.uber.org/zap"

	"bb-datasources/application/ports"
	"bb-datasources/domain/core/valueobjects"
	"bb-datasources/infrastructure/accessors/mcpgeneric"
)

// GenericMCPProvider wraps one externally-managed MCP server. One instance
// is registered per discovered server; the provider type is the server id.
type GenericMCPProvider struct {
	descriptor
	manager ports.MCPManager
}

// NewGenericMCPProvider builds a provider for a discovered server. The
// capability set defaults to read and list when the server declares none.
func NewGenericMCPProvider(server ports.MCPServerInfo, manager ports.MCPManager, logger *zap.Logger) (*GenericMCPProvider, error) {
	providerType, err := valueobjects.NewProviderType(server.ID)
	if err != nil {
		return nil, err
	}

	coarse := server.Capabilities
	if len(coarse) == 0 {
		coarse = []valueobjects.Capability{valueobjects.CapabilityRead, valueobjects.CapabilityList}
	}

	name := server.Name
	if name == "" {
		name = server.ID
	}
	return &GenericMCPProvider{
		manager: manager,
		descriptor: descriptor{
			providerType: providerType,
			accessMethod: valueobjects.AccessMethodMCP,
			name:         name,
			description:  server.Description,
			uriTemplate:  "mcp+" + server.ID + "+<connection>://<resource>",
			configFields: []string{"serverId"},
			authMethod:   valueobjects.AuthMethodNone,
			capabilities: valueobjects.CapabilitySet{
				Coarse: append([]valueobjects.Capability(nil), coarse...),
				Load:   []valueobjects.LoadCapability{valueobjects.LoadPlainText},
			},
			guidance: ports.ContentTypeGuidance{
				PrimaryContentType: "plainText",
				UsageNotes: []string{
					"Resource paths are opaque to this layer; the server defines them.",
				},
				Instructions: "Operations outside the server's declared capability set are refused.",
			},
			logger: logger,
		},
	}, nil
}

// CreateAccessor builds a delegating accessor for the connection.
func (p *GenericMCPProvider) CreateAccessor(ctx context.Context, conn ports.ConnectionInfo) (ports.ResourceAccessor, error) {
	if err := p.checkConnection(conn); err != nil {
		return nil, err
	}
	return mcpgeneric.NewAccessor(conn, p.Capabilities(), p.manager, p.logger)
}
