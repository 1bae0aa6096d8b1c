package providers

import (
	"context"

	"go.uber.org/zap"

	"bb-datasources/application/ports"
	"bb-datasources/domain/core/valueobjects"
	"bb-datasources/infrastructure/accessors/filesystem"
)

// FilesystemProvider serves local directory trees.
type FilesystemProvider struct {
	descriptor
}

// NewFilesystemProvider builds the filesystem provider descriptor.
func NewFilesystemProvider(logger *zap.Logger) *FilesystemProvider {
	return &FilesystemProvider{descriptor: descriptor{
		providerType: valueobjects.ProviderTypeFilesystem,
		accessMethod: valueobjects.AccessMethodBB,
		name:         "Local Filesystem",
		description:  "Files and directories under a configured root directory.",
		uriTemplate:  "bb+filesystem+<connection>://<relative-path>",
		configFields: []string{"dataSourceRoot"},
		authMethod:   valueobjects.AuthMethodNone,
		capabilities: valueobjects.CapabilitySet{
			Coarse: []valueobjects.Capability{
				valueobjects.CapabilityRead,
				valueobjects.CapabilityWrite,
				valueobjects.CapabilityList,
				valueobjects.CapabilitySearch,
				valueobjects.CapabilityMove,
				valueobjects.CapabilityDelete,
			},
			Load:   []valueobjects.LoadCapability{valueobjects.LoadPlainText},
			Search: []valueobjects.SearchCapability{valueobjects.SearchText, valueobjects.SearchRegex},
		},
		guidance: ports.ContentTypeGuidance{
			PrimaryContentType: "plainText",
			UsageNotes: []string{
				"Paths are POSIX-relative to the data source root.",
				"Binary files load as raw bytes and are not content-searchable.",
			},
			ExampleURIs: []string{"bb+filesystem+my-project://src/main.go"},
			Instructions: "Use relative paths only. Listings and searches respect " +
				".gitignore and .bb-ignore files plus built-in excludes.",
		},
		logger: logger,
	}}
}

// CreateAccessor builds a filesystem accessor for the connection.
func (p *FilesystemProvider) CreateAccessor(ctx context.Context, conn ports.ConnectionInfo) (ports.ResourceAccessor, error) {
	if err := p.checkConnection(conn); err != nil {
		return nil, err
	}
	return filesystem.NewAccessor(conn, p.Capabilities(), p.logger)
}
