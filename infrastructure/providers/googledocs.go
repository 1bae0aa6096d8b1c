package providers

import (
	"context"

	"go.uber.org/zap"

	"bb-datasources/application/ports"
	"bb-datasources/domain/core/valueobjects"
	"bb-datasources/infrastructure/accessors/googledocs"
)

// GoogleDocsProvider serves Google Docs documents through Docs and Drive.
type GoogleDocsProvider struct {
	descriptor
	exchangeURL string
}

// NewGoogleDocsProvider builds the Google Docs provider descriptor.
// exchangeURL is the default OAuth refresh endpoint; a connection may
// override it with the refreshExchangeUri config key.
func NewGoogleDocsProvider(exchangeURL string, logger *zap.Logger) *GoogleDocsProvider {
	return &GoogleDocsProvider{
		exchangeURL: exchangeURL,
		descriptor: descriptor{
			providerType: valueobjects.ProviderTypeGoogleDocs,
			accessMethod: valueobjects.AccessMethodBB,
			name:         "Google Docs",
			description:  "Documents and folders of a Google account.",
			uriTemplate:  "bb+googledocs+<connection>://<kind>/<id>",
			configFields: nil,
			authMethod:   valueobjects.AuthMethodOAuth2,
			capabilities: valueobjects.CapabilitySet{
				Coarse: []valueobjects.Capability{
					valueobjects.CapabilityBlockRead,
					valueobjects.CapabilityBlockEdit,
					valueobjects.CapabilityList,
					valueobjects.CapabilitySearch,
					valueobjects.CapabilityMove,
					valueobjects.CapabilityDelete,
				},
				Load: []valueobjects.LoadCapability{valueobjects.LoadBoth},
				Edit: []valueobjects.EditCapability{
					valueobjects.EditBlockOperations,
					valueobjects.EditSearchReplaceOperations,
					valueobjects.EditTextFormatting,
					valueobjects.EditParagraphFormatting,
				},
				Search: []valueobjects.SearchCapability{valueobjects.SearchText},
			},
			guidance: ports.ContentTypeGuidance{
				PrimaryContentType: "structured",
				UsageNotes: []string{
					"Resource kinds: document, folder, search (URL-encoded query), drive.",
					"Document writes replace the whole body via one batch update.",
				},
				ExampleURIs: []string{
					"bb+googledocs+work-account://document/1AbCdEfGh",
					"bb+googledocs+work-account://search/quarterly%20report",
				},
				Instructions: "Load documents for Markdown plus portable text blocks. " +
					"OAuth tokens refresh automatically and persist through the connection.",
			},
			logger: logger,
		},
	}
}

// CreateAccessor builds a Google Docs accessor for the connection. Token
// refreshes write back through the connection's auth record.
func (p *GoogleDocsProvider) CreateAccessor(ctx context.Context, conn ports.ConnectionInfo) (ports.ResourceAccessor, error) {
	if err := p.checkConnection(conn); err != nil {
		return nil, err
	}
	onRefresh := func(ctx context.Context, tokens valueobjects.OAuth2Tokens) error {
		conn.UpdateOAuthTokens(tokens)
		return nil
	}
	return googledocs.NewAccessor(conn, p.Capabilities(), p.exchangeURL, onRefresh, p.logger)
}
