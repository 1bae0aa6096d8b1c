package googledocs

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"bb-datasources/application/ports"
	"bb-datasources/domain/core/valueobjects"
	"bb-datasources/domain/portabletext"
	"bb-datasources/pkg/errors"
)

const docMimeType = "application/vnd.google-apps.document"

// Accessor executes resource operations against one Google account's Docs
// and Drive. Document writes use replace-all semantics through a single
// batch-update script; the script is computed in full before any request
// is issued, but the update itself is not atomic.
type Accessor struct {
	conn   ports.ConnectionInfo
	caps   valueobjects.CapabilitySet
	client *Client
	logger *zap.Logger
}

// NewAccessor builds a Google Docs accessor for a connection. Recognized
// config keys: refreshExchangeUri, docsBaseUrl, driveBaseUrl (tests). Auth
// must carry oauth2 tokens; onTokenRefresh receives refreshed tokens for
// persistence.
func NewAccessor(conn ports.ConnectionInfo, caps valueobjects.CapabilitySet, defaultExchangeURL string, onTokenRefresh ports.TokenUpdateCallback, logger *zap.Logger) (*Accessor, error) {
	auth := conn.Auth()
	if auth == nil || auth.OAuth2 == nil || auth.OAuth2.AccessToken == "" {
		return nil, errors.NewAuthRequired("google docs connection requires oauth2 tokens")
	}

	cfg := conn.Config()
	exchangeURL, _ := cfg["refreshExchangeUri"].(string)
	if exchangeURL == "" {
		exchangeURL = defaultExchangeURL
	}
	docsBase, _ := cfg["docsBaseUrl"].(string)
	driveBase, _ := cfg["driveBaseUrl"].(string)

	client := NewClient(ClientConfig{
		DocsBaseURL:    docsBase,
		DriveBaseURL:   driveBase,
		ExchangeURL:    exchangeURL,
		Tokens:         *auth.OAuth2,
		OnTokenRefresh: onTokenRefresh,
	}, logger)

	return &Accessor{conn: conn, caps: caps, client: client, logger: logger}, nil
}

// ConnectionID identifies the connection this accessor serves.
func (a *Accessor) ConnectionID() string { return a.conn.ID() }

// HasCapability reports whether the provider advertises the capability.
func (a *Accessor) HasCapability(c valueobjects.Capability) bool { return a.caps.Has(c) }

// Client exposes the underlying API client for token inspection in the
// refresh callback path.
func (a *Accessor) Client() *Client { return a.client }

// resolve maps a URI or bare resource path to (kind, id). The search kind
// carries a URL-encoded query in place of an id; drive takes the fixed id
// "overview".
func (a *Accessor) resolve(uriOrPath string) (kind, id string, err error) {
	path := uriOrPath
	if strings.Contains(uriOrPath, "://") {
		prefix := a.conn.URIPrefix()
		stripped, ok := valueobjects.ResourcePathForPrefix(uriOrPath, prefix)
		if !ok {
			if _, perr := valueobjects.ParseURI(uriOrPath); perr == nil {
				return "", "", errors.NewURINotForConnection(uriOrPath, prefix)
			}
			return "", "", errors.NewInvalidURI(uriOrPath, "malformed URI")
		}
		path = stripped
	}

	kind, id, _ = strings.Cut(strings.Trim(path, "/"), "/")
	switch kind {
	case "document", "folder":
		if id == "" {
			return "", "", errors.NewInvalidURI(uriOrPath, kind+" requires an id")
		}
	case "search":
		if id == "" {
			return "", "", errors.NewInvalidURI(uriOrPath, "search requires a query")
		}
	case "drive":
		if id == "" {
			id = "overview"
		}
	default:
		return "", "", errors.NewInvalidURI(uriOrPath,
			fmt.Sprintf("unknown resource kind %q", kind))
	}
	return kind, id, nil
}

func (a *Accessor) uriFor(kind, id string) string {
	return a.conn.URIPrefix() + kind + "/" + id
}

// IsResourceWithinDataSource reports whether the URI names a resource of
// this connection. Never fails.
func (a *Accessor) IsResourceWithinDataSource(uri string) bool {
	_, _, err := a.resolve(uri)
	return err == nil
}

// ResourceExists reports existence via Drive metadata; any error counts as
// absence.
func (a *Accessor) ResourceExists(ctx context.Context, uri string, opts *ports.ExistsOptions) bool {
	kind, id, err := a.resolve(uri)
	if err != nil {
		return false
	}
	if opts != nil && opts.IsFile != nil && *opts.IsFile {
		return false
	}
	switch kind {
	case "search", "drive":
		return true
	default:
		file, err := a.client.GetFile(ctx, id)
		return err == nil && !file.Trashed
	}
}

// EnsureResourcePathExists is a no-op for valid paths: Drive hierarchy is
// not created implicitly here.
func (a *Accessor) EnsureResourcePathExists(ctx context.Context, uri string) error {
	_, _, err := a.resolve(uri)
	return err
}

// LoadResource dispatches on the resource kind.
func (a *Accessor) LoadResource(ctx context.Context, uri string, opts *ports.LoadOptions) (*ports.LoadResult, error) {
	if !a.caps.Has(valueobjects.CapabilityBlockRead) {
		return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "load")
	}
	kind, id, err := a.resolve(uri)
	if err != nil {
		return nil, err
	}

	switch kind {
	case "document":
		return a.loadDocument(ctx, id)
	case "folder":
		query := fmt.Sprintf("mimeType='%s' and '%s' in parents and trashed=false", docMimeType, id)
		return a.loadListing(ctx, "Folder "+id, a.uriFor("folder", id), query)
	case "search":
		decoded, decErr := url.QueryUnescape(id)
		if decErr != nil {
			return nil, errors.NewInvalidURI(uri, "query is not URL-encoded")
		}
		query := fmt.Sprintf("fullText contains '%s' and trashed=false", escapeDriveQuery(decoded))
		return a.loadListing(ctx, "Search: "+decoded, a.uriFor("search", id), query)
	default:
		query := fmt.Sprintf("mimeType='%s' and trashed=false", docMimeType)
		return a.loadListing(ctx, "Drive overview", a.uriFor("drive", "overview"), query)
	}
}

func (a *Accessor) loadDocument(ctx context.Context, id string) (*ports.LoadResult, error) {
	doc, err := a.client.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	blocks := ToPortableText(doc)

	meta := ports.ResourceMetadata{
		URI:      a.uriFor("document", id),
		Name:     documentTitle(doc),
		Type:     "document",
		MimeType: docMimeType,
	}
	if file, fileErr := a.client.GetFile(ctx, id); fileErr == nil {
		if t := parseDriveTime(file.ModifiedTime); t != nil {
			meta.LastModified = t
		}
		meta.Description = file.Description
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", meta.Name)
	b.WriteString(portabletext.ToMarkdown(blocks))
	return &ports.LoadResult{
		Content:  []byte(b.String()),
		Blocks:   blocks,
		Metadata: meta,
	}, nil
}

func (a *Accessor) loadListing(ctx context.Context, title, uri, query string) (*ports.LoadResult, error) {
	files, err := a.client.QueryFiles(ctx, query, 0)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "%d document(s)\n\n", len(files))
	for _, f := range files {
		fmt.Fprintf(&b, "- %s (document/%s)\n", f.Name, f.ID)
	}
	return &ports.LoadResult{
		Content:  []byte(b.String()),
		Metadata: ports.ResourceMetadata{URI: uri, Name: title, Type: "listing"},
	}, nil
}

// fileMetadata builds resource metadata for a Drive file.
func (a *Accessor) fileMetadata(f DriveFile) ports.ResourceMetadata {
	kind := "document"
	if f.MimeType == "application/vnd.google-apps.folder" {
		kind = "folder"
	}
	return ports.ResourceMetadata{
		URI:          a.uriFor(kind, f.ID),
		Name:         f.Name,
		Type:         kind,
		MimeType:     f.MimeType,
		LastModified: parseDriveTime(f.ModifiedTime),
		Description:  f.Description,
	}
}

// ListResources pages through the account's documents, or a folder's when
// Path names one. The page token is Drive's nextPageToken.
func (a *Accessor) ListResources(ctx context.Context, opts *ports.ListOptions) (*ports.ListResult, error) {
	if !a.caps.Has(valueobjects.CapabilityList) {
		return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "list")
	}

	query := fmt.Sprintf("mimeType='%s' and trashed=false", docMimeType)
	pageSize := 100
	pageToken := ""
	if opts != nil {
		if opts.Path != "" {
			kind, id, err := a.resolve(opts.Path)
			if err != nil {
				return nil, err
			}
			if kind != "folder" {
				return nil, errors.NewInvalidURI(opts.Path, "listing path must be a folder")
			}
			query = fmt.Sprintf("mimeType='%s' and '%s' in parents and trashed=false", docMimeType, id)
		}
		if opts.PageSize > 0 {
			pageSize = opts.PageSize
		}
		pageToken = opts.PageToken
	}

	files, nextToken, err := a.client.ListFiles(ctx, query, pageSize, pageToken)
	if err != nil {
		return nil, err
	}
	result := &ports.ListResult{Resources: []ports.ResourceMetadata{}, NextPageToken: nextToken}
	for _, f := range files {
		result.Resources = append(result.Resources, a.fileMetadata(f))
	}
	return result, nil
}

// SearchResources runs a Drive full-text query, optionally filtered by
// modification date. A content pattern additionally loads each candidate
// document and extracts snippets.
func (a *Accessor) SearchResources(ctx context.Context, query string, opts *ports.SearchOptions) (*ports.SearchResult, error) {
	if !a.caps.Has(valueobjects.CapabilitySearch) {
		return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "search")
	}
	if query == "" && (opts == nil || opts.ContentPattern == "") {
		return nil, errors.NewInvalidQuery("search requires a query or content pattern")
	}

	var re *regexp.Regexp
	if opts != nil && opts.ContentPattern != "" {
		expr := opts.ContentPattern
		if !opts.CaseSensitive {
			expr = "(?i)" + expr
		}
		var err error
		re, err = regexp.Compile(expr)
		if err != nil {
			return nil, errors.NewInvalidQuery(fmt.Sprintf("invalid content pattern %q: %v", opts.ContentPattern, err))
		}
	}

	clauses := []string{fmt.Sprintf("mimeType='%s'", docMimeType), "trashed=false"}
	if query != "" {
		clauses = append(clauses, fmt.Sprintf("fullText contains '%s'", escapeDriveQuery(query)))
	}
	if opts != nil && opts.DateAfter != nil {
		clauses = append(clauses, fmt.Sprintf("modifiedTime > '%s'", opts.DateAfter.UTC().Format(time.RFC3339)))
	}
	if opts != nil && opts.DateBefore != nil {
		clauses = append(clauses, fmt.Sprintf("modifiedTime < '%s'", opts.DateBefore.UTC().Format(time.RFC3339)))
	}

	limit := 0
	if opts != nil && opts.PageSize > 0 {
		limit = opts.PageSize
	}
	files, err := a.client.QueryFiles(ctx, strings.Join(clauses, " and "), limit)
	if err != nil {
		return nil, err
	}

	result := &ports.SearchResult{Matches: []ports.SearchMatch{}}
	var skipped []string
	for _, f := range files {
		match := ports.SearchMatch{Resource: a.fileMetadata(f)}
		if re != nil {
			loaded, loadErr := a.loadDocument(ctx, f.ID)
			if loadErr != nil {
				a.logger.Debug("skipping unloadable document during search",
					zap.String("id", f.ID), zap.Error(loadErr))
				skipped = append(skipped, f.ID)
				continue
			}
			snippets := contentSnippets(string(loaded.Content), re)
			if len(snippets) == 0 {
				continue
			}
			match.Snippets = snippets
			result.TotalMatches += len(snippets)
		} else {
			result.TotalMatches++
		}
		result.Matches = append(result.Matches, match)
	}
	if len(skipped) > 0 {
		result.ErrorMessage = fmt.Sprintf("skipped %d unloadable document(s): %s",
			len(skipped), strings.Join(skipped, ", "))
	}
	return result, nil
}

// contentSnippets extracts up to five match windows with surrounding
// context, ellipsized when truncated.
func contentSnippets(content string, re *regexp.Regexp) []ports.SearchSnippet {
	const maxSnippets = 5
	const contextChars = 40

	locations := re.FindAllStringIndex(content, maxSnippets)
	snippets := make([]ports.SearchSnippet, 0, len(locations))
	for _, loc := range locations {
		start := loc[0] - contextChars
		end := loc[1] + contextChars
		leading, trailing := "", ""
		if start < 0 {
			start = 0
		} else if start > 0 {
			leading = "..."
		}
		if end >= len(content) {
			end = len(content)
		} else {
			trailing = "..."
		}
		snippets = append(snippets, ports.SearchSnippet{
			Text:       leading + content[start:end] + trailing,
			LineNumber: 1 + strings.Count(content[:loc[0]], "\n"),
		})
	}
	return snippets
}

// WriteResource replaces a document's body with the content as plain
// paragraphs. Gated on blockEdit: Docs does not support raw byte writes.
func (a *Accessor) WriteResource(ctx context.Context, uri string, content []byte, opts *ports.WriteOptions) (*ports.WriteResult, error) {
	if !a.caps.Has(valueobjects.CapabilityBlockEdit) {
		return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "write")
	}
	kind, id, err := a.resolve(uri)
	if err != nil {
		return nil, err
	}
	if kind != "document" {
		return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "write "+kind)
	}

	doc, err := a.client.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	var blocks []portabletext.Block
	for _, line := range strings.Split(string(content), "\n") {
		blocks = append(blocks, portabletext.NewTextBlock(portabletext.StyleNormal,
			portabletext.NewSpan(line)))
	}
	if err := a.client.BatchUpdate(ctx, id, BuildReplaceScript(doc, blocks)); err != nil {
		return nil, err
	}

	return &ports.WriteResult{
		Success: true,
		URI:     a.uriFor("document", id),
		Metadata: ports.ResourceMetadata{
			URI:      a.uriFor("document", id),
			Name:     documentTitle(doc),
			Type:     "document",
			MimeType: docMimeType,
		},
		BytesWritten: int64(len(content)),
	}, nil
}

// EditResource loads a document, applies the operations through the
// portable text algebra, and replaces the body with the emitted script.
// CreateIfMissing creates an empty document named by the id when the load
// reports absence.
func (a *Accessor) EditResource(ctx context.Context, resourcePath string, ops []portabletext.Operation, opts *ports.EditOptions) (*ports.EditResult, error) {
	if !a.caps.Has(valueobjects.CapabilityBlockEdit) {
		return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "editResource")
	}
	kind, id, err := a.resolve(resourcePath)
	if err != nil {
		return nil, err
	}
	if kind != "document" {
		return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "edit "+kind)
	}

	doc, err := a.client.GetDocument(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) && opts != nil && opts.CreateIfMissing {
			doc, err = a.client.CreateDocument(ctx, id)
			if err != nil {
				return nil, err
			}
			if created, ok := doc["documentId"].(string); ok && created != "" {
				id = created
			}
		} else {
			return nil, err
		}
	}

	edited, results := portabletext.Apply(ToPortableText(doc), ops)
	if err := a.client.BatchUpdate(ctx, id, BuildReplaceScript(doc, edited)); err != nil {
		return nil, err
	}
	return &ports.EditResult{
		OperationResults: results,
		Metadata: ports.ResourceMetadata{
			URI:      a.uriFor("document", id),
			Name:     documentTitle(doc),
			Type:     "document",
			MimeType: docMimeType,
		},
	}, nil
}

// MoveResource reparents a document into another folder.
func (a *Accessor) MoveResource(ctx context.Context, src, dst string, opts *ports.MoveOptions) (*ports.MoveResult, error) {
	if !a.caps.Has(valueobjects.CapabilityMove) {
		return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "move")
	}
	srcKind, srcID, err := a.resolve(src)
	if err != nil {
		return nil, err
	}
	dstKind, dstID, err := a.resolve(dst)
	if err != nil {
		return nil, err
	}
	if srcKind != "document" || dstKind != "folder" {
		return nil, errors.NewInvalidURI(src, "move requires a document source and a folder destination")
	}

	if err := a.client.MoveFile(ctx, srcID, "", dstID); err != nil {
		return nil, err
	}
	meta := ports.ResourceMetadata{URI: a.uriFor("document", srcID), Type: "document", MimeType: docMimeType}
	if file, fileErr := a.client.GetFile(ctx, srcID); fileErr == nil {
		meta = a.fileMetadata(*file)
	}
	return &ports.MoveResult{
		Success:     true,
		Source:      a.uriFor("document", srcID),
		Destination: a.uriFor("folder", dstID),
		Metadata:    meta,
	}, nil
}

// DeleteResource moves a document to the Drive trash.
func (a *Accessor) DeleteResource(ctx context.Context, uri string, opts *ports.DeleteOptions) (*ports.DeleteResult, error) {
	if !a.caps.Has(valueobjects.CapabilityDelete) {
		return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "delete")
	}
	kind, id, err := a.resolve(uri)
	if err != nil {
		return nil, err
	}
	if kind != "document" {
		return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "delete "+kind)
	}
	if err := a.client.TrashFile(ctx, id); err != nil {
		return nil, err
	}
	return &ports.DeleteResult{Success: true, URI: a.uriFor("document", id), Type: "document"}, nil
}

// GetMetadata summarizes the account's documents. Best-effort: failures
// become Notes, never errors.
func (a *Accessor) GetMetadata(ctx context.Context) *ports.DataSourceMetadata {
	meta := &ports.DataSourceMetadata{
		ProviderType: a.conn.ProviderType().String(),
		ConnectionID: a.conn.ID(),
		CanWrite:     a.caps.Has(valueobjects.CapabilityBlockEdit),
	}

	query := fmt.Sprintf("mimeType='%s' and trashed=false", docMimeType)
	files, err := a.client.QueryFiles(ctx, query, 0)
	if err != nil {
		meta.Notes = append(meta.Notes, "drive query failed: "+err.Error())
		return meta
	}
	for _, f := range files {
		meta.TotalFiles++
		meta.TextFileCount++
		if t := parseDriveTime(f.ModifiedTime); t != nil {
			if meta.OldestModified == nil || t.Before(*meta.OldestModified) {
				meta.OldestModified = t
			}
			if meta.NewestModified == nil || t.After(*meta.NewestModified) {
				meta.NewestModified = t
			}
		}
	}
	return meta
}

// escapeDriveQuery escapes single quotes and backslashes inside a Drive
// query literal.
func escapeDriveQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", `\'`)
}

func parseDriveTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}
