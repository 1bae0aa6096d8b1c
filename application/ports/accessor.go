package ports

import (
	"context"
	"time"

	"bb-datasources/domain/core/valueobjects"
	"bb-datasources/domain/portabletext"
)

// ResourceMetadata describes one resource as seen through a connection.
type ResourceMetadata struct {
	URI          string     `json:"uri"`
	Name         string     `json:"name"`
	Type         string     `json:"type"` // file, directory, page, database, document, folder, ...
	MimeType     string     `json:"mimeType,omitempty"`
	Size         int64      `json:"size,omitempty"`
	LastModified *time.Time `json:"lastModified,omitempty"`
	Description  string     `json:"description,omitempty"`
}

// LoadOptions controls a load. A nil range loads the whole resource.
type LoadOptions struct {
	RangeStart *int64
	RangeEnd   *int64
	Encoding   string
}

// LoadResult is the reply to LoadResource. Content always holds the raw
// bytes; Blocks is additionally populated by block-structured backends.
type LoadResult struct {
	Content   []byte
	Blocks    []portabletext.Block
	Metadata  ResourceMetadata
	IsPartial bool
	IsBinary  bool
}

// ListOptions controls a listing. PageToken is opaque; an invalid token is
// a start-over signal, not an error the caller can repair.
type ListOptions struct {
	Path      string
	Depth     int
	PageSize  int
	PageToken string
}

// ListResult is a page of resources. NextPageToken is empty on the last page.
type ListResult struct {
	Resources     []ResourceMetadata
	NextPageToken string
}

// SearchOptions refines a search query.
type SearchOptions struct {
	ContentPattern  string
	ResourcePattern string
	CaseSensitive   bool
	DateAfter       *time.Time
	DateBefore      *time.Time
	PageSize        int
	ContextLines    int
}

// SearchSnippet is one match window: the matched text with surrounding
// context, ellipsized when truncated.
type SearchSnippet struct {
	Text       string `json:"text"`
	LineNumber int    `json:"lineNumber,omitempty"`
}

// SearchMatch groups the snippets found in one resource.
type SearchMatch struct {
	Resource ResourceMetadata `json:"resource"`
	Snippets []SearchSnippet  `json:"snippets"`
}

// SearchResult is possibly partial: per-file failures are skipped and
// reported through ErrorMessage while the rest of the result stands.
type SearchResult struct {
	Matches      []SearchMatch `json:"matches"`
	TotalMatches int           `json:"totalMatches"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
}

// WriteOptions controls a write.
type WriteOptions struct {
	Overwrite                bool
	CreateMissingDirectories bool
}

// WriteResult is the reply to WriteResource.
type WriteResult struct {
	Success      bool
	URI          string
	Metadata     ResourceMetadata
	BytesWritten int64
}

// EditOptions controls a block edit.
type EditOptions struct {
	CreateIfMissing bool
}

// EditResult carries one result per submitted operation, in input order.
type EditResult struct {
	OperationResults []portabletext.OperationResult
	Metadata         ResourceMetadata
}

// MoveOptions controls a move.
type MoveOptions struct {
	Overwrite                bool
	CreateMissingDirectories bool
}

// MoveResult is the reply to MoveResource.
type MoveResult struct {
	Success     bool
	Source      string
	Destination string
	Metadata    ResourceMetadata
}

// DeleteOptions controls a delete.
type DeleteOptions struct {
	Recursive bool
}

// DeleteResult is the reply to DeleteResource.
type DeleteResult struct {
	Success bool
	URI     string
	Type    string
}

// ExistsOptions narrows an existence check. IsFile, when set, requires the
// resource to be (or not be) a regular file.
type ExistsOptions struct {
	IsFile *bool
}

// DataSourceMetadata is a best-effort summary of a whole data source.
type DataSourceMetadata struct {
	ProviderType      string         `json:"providerType"`
	ConnectionID      string         `json:"connectionId"`
	TotalFiles        int            `json:"totalFiles"`
	TotalDirectories  int            `json:"totalDirectories"`
	DeepestDepth      int            `json:"deepestDepth"`
	LargestFileSize   int64          `json:"largestFileSize"`
	FileExtensions    map[string]int `json:"fileExtensions,omitempty"`
	OldestModified    *time.Time     `json:"oldestModified,omitempty"`
	NewestModified    *time.Time     `json:"newestModified,omitempty"`
	CanWrite          bool           `json:"canWrite"`
	TextFileCount     int            `json:"textFileCount"`
	BinaryFileCount   int            `json:"binaryFileCount"`
	EmptyFileCount    int            `json:"emptyFileCount"`
	HasVeryLargeFiles bool           `json:"hasVeryLargeFiles"`
	GitignoreApplied  bool           `json:"gitignoreApplied"`
	BBIgnoreApplied   bool           `json:"bbIgnoreApplied"`
	Notes             []string       `json:"notes,omitempty"`
}

// ResourceAccessor executes typed operations against one backend instance.
// Implementations must refuse operations whose capability the provider does
// not advertise with a CAPABILITY_UNSUPPORTED error rather than a no-op.
type ResourceAccessor interface {
	// ConnectionID identifies the connection this accessor serves.
	ConnectionID() string

	// HasCapability reports whether the provider advertises the capability.
	HasCapability(c valueobjects.Capability) bool

	// IsResourceWithinDataSource reports whether the URI belongs to this
	// connection. Never fails.
	IsResourceWithinDataSource(uri string) bool

	// ResourceExists reports existence; any error counts as absence.
	ResourceExists(ctx context.Context, uri string, opts *ExistsOptions) bool

	// EnsureResourcePathExists creates any missing parents of the resource.
	EnsureResourcePathExists(ctx context.Context, uri string) error

	// LoadResource reads one resource, optionally a byte range of it.
	LoadResource(ctx context.Context, uri string, opts *LoadOptions) (*LoadResult, error)

	// ListResources returns a page of resources.
	ListResources(ctx context.Context, opts *ListOptions) (*ListResult, error)

	// SearchResources finds resources matching a query.
	SearchResources(ctx context.Context, query string, opts *SearchOptions) (*SearchResult, error)

	// WriteResource writes content to a resource.
	WriteResource(ctx context.Context, uri string, content []byte, opts *WriteOptions) (*WriteResult, error)

	// EditResource applies a batch of portable text operations to a
	// resource identified by its provider-specific path.
	EditResource(ctx context.Context, resourcePath string, ops []portabletext.Operation, opts *EditOptions) (*EditResult, error)

	// MoveResource moves a resource within the data source.
	MoveResource(ctx context.Context, src, dst string, opts *MoveOptions) (*MoveResult, error)

	// DeleteResource deletes a resource.
	DeleteResource(ctx context.Context, uri string, opts *DeleteOptions) (*DeleteResult, error)

	// GetMetadata summarizes the data source, best-effort.
	GetMetadata(ctx context.Context) *DataSourceMetadata
}
