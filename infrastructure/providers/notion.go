package providers

import (
	"context"

	"go.uber.org/zap"

	"bb-datasources/application/ports"
	"bb-datasources/domain/core/valueobjects"
	"bb-datasources/infrastructure/accessors/notion"
)

// NotionProvider serves Notion workspaces. Writes go through the block-edit
// pipeline, so the coarse set advertises blockEdit rather than write.
type NotionProvider struct {
	descriptor
}

// NewNotionProvider builds the Notion provider descriptor.
func NewNotionProvider(logger *zap.Logger) *NotionProvider {
	return &NotionProvider{descriptor: descriptor{
		providerType: valueobjects.ProviderTypeNotion,
		accessMethod: valueobjects.AccessMethodBB,
		name:         "Notion",
		description:  "Pages, databases and blocks of a Notion workspace.",
		uriTemplate:  "bb+notion+<connection>://<kind>/<id>",
		configFields: []string{"workspaceId"},
		authMethod:   valueobjects.AuthMethodAPIKey,
		capabilities: valueobjects.CapabilitySet{
			Coarse: []valueobjects.Capability{
				valueobjects.CapabilityBlockRead,
				valueobjects.CapabilityBlockEdit,
				valueobjects.CapabilityList,
				valueobjects.CapabilitySearch,
				valueobjects.CapabilityDelete,
			},
			Load: []valueobjects.LoadCapability{valueobjects.LoadBoth},
			Edit: []valueobjects.EditCapability{
				valueobjects.EditBlockOperations,
				valueobjects.EditSearchReplaceOperations,
				valueobjects.EditTextFormatting,
			},
			Search: []valueobjects.SearchCapability{valueobjects.SearchText},
		},
		guidance: ports.ContentTypeGuidance{
			PrimaryContentType: "structured",
			UsageNotes: []string{
				"Resource kinds: page, database, workspace, block, user, comment.",
				"Page writes replace all blocks; Notion block identity is not preserved.",
			},
			ExampleURIs: []string{
				"bb+notion+team-wiki://page/8a1b2c3d4e5f",
				"bb+notion+team-wiki://database/0f9e8d7c6b5a",
			},
			Instructions: "Load pages for Markdown plus portable text blocks. Edit " +
				"through block operations; raw byte writes are not supported.",
		},
		logger: logger,
	}}
}

// CreateAccessor builds a Notion accessor for the connection.
func (p *NotionProvider) CreateAccessor(ctx context.Context, conn ports.ConnectionInfo) (ports.ResourceAccessor, error) {
	if err := p.checkConnection(conn); err != nil {
		return nil, err
	}
	return notion.NewAccessor(conn, p.Capabilities(), p.logger)
}
