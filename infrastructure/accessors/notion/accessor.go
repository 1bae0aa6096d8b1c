package notion

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"bb-datasources/application/ports"
	"bb-datasources/domain/core/valueobjects"
	"bb-datasources/domain/portabletext"
	"bb-datasources/pkg/errors"
)

// resource kinds accepted in a Notion resource path.
var resourceKinds = map[string]bool{
	"page":      true,
	"database":  true,
	"workspace": true,
	"block":     true,
	"user":      true,
	"comment":   true,
}

// Accessor executes resource operations against one Notion workspace. Page
// writes use replace-all semantics: the new blocks are serialized first,
// then the existing blocks are deleted, then the new ones are appended.
// This is not atomic; a crash between delete and append leaves the page
// empty, and Notion-side block identity is not preserved.
type Accessor struct {
	conn   ports.ConnectionInfo
	caps   valueobjects.CapabilitySet
	client *Client
	logger *zap.Logger
}

// NewAccessor builds a Notion accessor for a connection. Recognized config
// keys: workspaceId (required), baseUrl (tests). Auth must carry an API key.
func NewAccessor(conn ports.ConnectionInfo, caps valueobjects.CapabilitySet, logger *zap.Logger) (*Accessor, error) {
	cfg := conn.Config()
	if ws, ok := cfg["workspaceId"].(string); !ok || ws == "" {
		return nil, errors.NewInvalidConfig("notion connection requires a workspaceId string")
	}
	auth := conn.Auth()
	if auth == nil || auth.APIKey == "" {
		return nil, errors.NewAuthRequired("notion connection requires an API key")
	}
	baseURL, _ := cfg["baseUrl"].(string)

	return &Accessor{
		conn:   conn,
		caps:   caps,
		client: NewClient(baseURL, auth.APIKey, logger),
		logger: logger,
	}, nil
}

// ConnectionID identifies the connection this accessor serves.
func (a *Accessor) ConnectionID() string { return a.conn.ID() }

// HasCapability reports whether the provider advertises the capability.
func (a *Accessor) HasCapability(c valueobjects.Capability) bool { return a.caps.Has(c) }

// resolve maps a URI or bare resource path to (kind, id), refusing foreign
// prefixes and unknown kinds. The workspace kind takes no id.
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
	if !resourceKinds[kind] {
		return "", "", errors.NewInvalidURI(uriOrPath,
			fmt.Sprintf("unknown resource kind %q", kind))
	}
	if id == "" && kind != "workspace" {
		return "", "", errors.NewInvalidURI(uriOrPath, kind+" requires an id")
	}
	return kind, id, nil
}

// uriFor builds the fully-qualified URI of a workspace resource.
func (a *Accessor) uriFor(kind, id string) string {
	if kind == "workspace" {
		return a.conn.URIPrefix() + "workspace"
	}
	return a.conn.URIPrefix() + kind + "/" + id
}

// IsResourceWithinDataSource reports whether the URI names a resource of
// this connection. Never fails.
func (a *Accessor) IsResourceWithinDataSource(uri string) bool {
	_, _, err := a.resolve(uri)
	return err == nil
}

// ResourceExists reports existence by fetching the object; any error counts
// as absence.
func (a *Accessor) ResourceExists(ctx context.Context, uri string, opts *ports.ExistsOptions) bool {
	kind, id, err := a.resolve(uri)
	if err != nil {
		return false
	}
	// Notion resources are never plain files.
	if opts != nil && opts.IsFile != nil && *opts.IsFile {
		return false
	}
	switch kind {
	case "workspace":
		return true
	case "page":
		_, err = a.client.GetPage(ctx, id)
	case "database":
		_, err = a.client.GetDatabase(ctx, id)
	case "block":
		_, err = a.client.GetBlock(ctx, id)
	case "user":
		_, err = a.client.GetUser(ctx, id)
	default:
		return false
	}
	return err == nil
}

// EnsureResourcePathExists is a no-op for valid paths: Notion has no
// creatable intermediate hierarchy.
func (a *Accessor) EnsureResourcePathExists(ctx context.Context, uri string) error {
	_, _, err := a.resolve(uri)
	return err
}

// LoadResource dispatches on the resource kind, rendering each object to
// Markdown. Pages and blocks additionally carry portable text blocks.
func (a *Accessor) LoadResource(ctx context.Context, uri string, opts *ports.LoadOptions) (*ports.LoadResult, error) {
	if !a.caps.Has(valueobjects.CapabilityBlockRead) {
		return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "load")
	}
	kind, id, err := a.resolve(uri)
	if err != nil {
		return nil, err
	}

	switch kind {
	case "page":
		return a.loadPage(ctx, id)
	case "database":
		return a.loadDatabase(ctx, id)
	case "workspace":
		return a.loadWorkspace(ctx)
	case "block":
		return a.loadBlock(ctx, id)
	case "user":
		return a.loadUser(ctx, id)
	default:
		return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "load "+kind)
	}
}

func (a *Accessor) loadPage(ctx context.Context, id string) (*ports.LoadResult, error) {
	page, err := a.client.GetPage(ctx, id)
	if err != nil {
		return nil, err
	}
	children, err := a.client.GetBlockChildren(ctx, id)
	if err != nil {
		return nil, err
	}
	blocks := ToPortableText(children)
	content := renderPage(page, blocks)
	return &ports.LoadResult{
		Content:  []byte(content),
		Blocks:   blocks,
		Metadata: a.objectMetadata("page", page),
	}, nil
}

func (a *Accessor) loadDatabase(ctx context.Context, id string) (*ports.LoadResult, error) {
	db, err := a.client.GetDatabase(ctx, id)
	if err != nil {
		return nil, err
	}
	pages, err := a.client.QueryDatabase(ctx, id, nil, nil)
	if err != nil {
		return nil, err
	}
	return &ports.LoadResult{
		Content:  []byte(renderDatabase(db, pages)),
		Metadata: a.objectMetadata("database", db),
	}, nil
}

func (a *Accessor) loadWorkspace(ctx context.Context) (*ports.LoadResult, error) {
	var results []Object
	cursor := ""
	for {
		page, err := a.client.Search(ctx, "", cursor, 100)
		if err != nil {
			return nil, err
		}
		results = append(results, page.Results...)
		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}
	return &ports.LoadResult{
		Content: []byte(renderWorkspace(results)),
		Metadata: ports.ResourceMetadata{
			URI:  a.uriFor("workspace", ""),
			Name: "Workspace",
			Type: "workspace",
		},
	}, nil
}

func (a *Accessor) loadBlock(ctx context.Context, id string) (*ports.LoadResult, error) {
	block, err := a.client.GetBlock(ctx, id)
	if err != nil {
		return nil, err
	}
	var children []portabletext.Block
	if hasChildren, _ := block["has_children"].(bool); hasChildren {
		raw, err := a.client.GetBlockChildren(ctx, id)
		if err != nil {
			return nil, err
		}
		children = ToPortableText(raw)
	}
	return &ports.LoadResult{
		Content:  []byte(renderBlockDetail(block, children)),
		Blocks:   append(ToPortableText([]Object{block}), children...),
		Metadata: a.objectMetadata("block", block),
	}, nil
}

func (a *Accessor) loadUser(ctx context.Context, id string) (*ports.LoadResult, error) {
	user, err := a.client.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	meta := a.objectMetadata("user", user)
	if name, _ := user["name"].(string); name != "" {
		meta.Name = name
	}
	return &ports.LoadResult{
		Content:  []byte(renderUser(user)),
		Metadata: meta,
	}, nil
}

// objectMetadata builds resource metadata for a fetched object.
func (a *Accessor) objectMetadata(kind string, obj Object) ports.ResourceMetadata {
	return ports.ResourceMetadata{
		URI:          a.uriFor(kind, objectID(obj)),
		Name:         objectTitle(obj),
		Type:         kind,
		LastModified: lastEditedTime(obj),
	}
}

// ListResources pages through the workspace search. The first page carries
// a synthetic workspace entry at offset 0; it counts against PageSize. The
// page token is Notion's search cursor.
func (a *Accessor) ListResources(ctx context.Context, opts *ports.ListOptions) (*ports.ListResult, error) {
	if !a.caps.Has(valueobjects.CapabilityList) {
		return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "list")
	}

	pageSize := 100
	cursor := ""
	if opts != nil {
		if opts.PageSize > 0 {
			pageSize = opts.PageSize
		}
		cursor = opts.PageToken
	}

	result := &ports.ListResult{Resources: []ports.ResourceMetadata{}}
	remaining := pageSize
	if cursor == "" {
		result.Resources = append(result.Resources, ports.ResourceMetadata{
			URI:  a.uriFor("workspace", ""),
			Name: "Workspace",
			Type: "workspace",
		})
		remaining--
	}
	if remaining <= 0 {
		return result, nil
	}

	page, err := a.client.Search(ctx, "", cursor, remaining)
	if err != nil {
		return nil, err
	}
	for _, obj := range page.Results {
		kind := objectKind(obj)
		if kind != "page" && kind != "database" {
			continue
		}
		result.Resources = append(result.Resources, a.objectMetadata(kind, obj))
	}
	if page.HasMore {
		result.NextPageToken = page.NextCursor
	}
	return result, nil
}

// SearchResources runs a workspace search, optionally filtered by
// last-edited date. A content pattern additionally loads each candidate
// page and extracts snippets; this multiplies API calls, so failures on
// individual pages are skipped and reported through ErrorMessage.
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

	pageSize := 0
	if opts != nil {
		pageSize = opts.PageSize
	}

	result := &ports.SearchResult{Matches: []ports.SearchMatch{}}
	var skipped []string
	cursor := ""
	for {
		page, err := a.client.Search(ctx, query, cursor, 100)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Results {
			kind := objectKind(obj)
			if kind != "page" && kind != "database" {
				continue
			}
			if opts != nil && (opts.DateAfter != nil || opts.DateBefore != nil) {
				edited := lastEditedTime(obj)
				if edited == nil {
					continue
				}
				if opts.DateAfter != nil && edited.Before(*opts.DateAfter) {
					continue
				}
				if opts.DateBefore != nil && edited.After(*opts.DateBefore) {
					continue
				}
			}

			match := ports.SearchMatch{Resource: a.objectMetadata(kind, obj)}
			if re != nil {
				if kind != "page" {
					continue
				}
				loaded, loadErr := a.loadPage(ctx, objectID(obj))
				if loadErr != nil {
					a.logger.Debug("skipping unloadable page during search",
						zap.String("id", objectID(obj)), zap.Error(loadErr))
					skipped = append(skipped, objectID(obj))
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
			if pageSize > 0 && len(result.Matches) >= pageSize {
				page.HasMore = false
				break
			}
		}
		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}

	if len(skipped) > 0 {
		result.ErrorMessage = fmt.Sprintf("skipped %d unloadable page(s): %s",
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

// WriteResource replaces a page's blocks with paragraphs built from the
// content. Gated on blockEdit: Notion does not support raw byte writes.
func (a *Accessor) WriteResource(ctx context.Context, uri string, content []byte, opts *ports.WriteOptions) (*ports.WriteResult, error) {
	if !a.caps.Has(valueobjects.CapabilityBlockEdit) {
		return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "write")
	}
	kind, id, err := a.resolve(uri)
	if err != nil {
		return nil, err
	}
	if kind != "page" {
		return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "write "+kind)
	}

	page, err := a.client.GetPage(ctx, id)
	if err != nil {
		return nil, err
	}

	var blocks []portabletext.Block
	for _, line := range strings.Split(string(content), "\n") {
		blocks = append(blocks, portabletext.NewTextBlock(portabletext.StyleNormal,
			portabletext.NewSpan(line)))
	}

	if err := a.replacePageBlocks(ctx, id, blocks); err != nil {
		return nil, err
	}
	meta := a.objectMetadata("page", page)
	return &ports.WriteResult{
		Success:      true,
		URI:          meta.URI,
		Metadata:     meta,
		BytesWritten: int64(len(content)),
	}, nil
}

// replacePageBlocks serializes the new payload, then deletes the existing
// children, then appends. Buffering the payload first narrows the window in
// which a failure leaves the page empty.
func (a *Accessor) replacePageBlocks(ctx context.Context, pageID string, blocks []portabletext.Block) error {
	payload := FromPortableText(blocks)

	existing, err := a.client.GetBlockChildren(ctx, pageID)
	if err != nil {
		return err
	}
	for _, child := range existing {
		if err := a.client.DeleteBlock(ctx, objectID(child)); err != nil {
			return err
		}
	}
	if len(payload) == 0 {
		return nil
	}
	return a.client.AppendBlockChildren(ctx, pageID, payload)
}

// EditResource loads a page's blocks, applies the operations through the
// portable text algebra, and replaces the page content with the result.
func (a *Accessor) EditResource(ctx context.Context, resourcePath string, ops []portabletext.Operation, opts *ports.EditOptions) (*ports.EditResult, error) {
	if !a.caps.Has(valueobjects.CapabilityBlockEdit) {
		return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "editResource")
	}
	kind, id, err := a.resolve(resourcePath)
	if err != nil {
		return nil, err
	}
	if kind != "page" {
		return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "edit "+kind)
	}

	page, err := a.client.GetPage(ctx, id)
	if err != nil {
		return nil, err
	}
	children, err := a.client.GetBlockChildren(ctx, id)
	if err != nil {
		return nil, err
	}

	edited, results := portabletext.Apply(ToPortableText(children), ops)
	if err := a.replacePageBlocks(ctx, id, edited); err != nil {
		return nil, err
	}
	return &ports.EditResult{
		OperationResults: results,
		Metadata:         a.objectMetadata("page", page),
	}, nil
}

// MoveResource is refused: the Notion API offers no move primitive.
func (a *Accessor) MoveResource(ctx context.Context, src, dst string, opts *ports.MoveOptions) (*ports.MoveResult, error) {
	return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "move")
}

// DeleteResource archives a page or deletes a block.
func (a *Accessor) DeleteResource(ctx context.Context, uri string, opts *ports.DeleteOptions) (*ports.DeleteResult, error) {
	if !a.caps.Has(valueobjects.CapabilityDelete) {
		return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "delete")
	}
	kind, id, err := a.resolve(uri)
	if err != nil {
		return nil, err
	}

	switch kind {
	case "page":
		if err := a.client.ArchivePage(ctx, id); err != nil {
			return nil, err
		}
	case "block":
		if err := a.client.DeleteBlock(ctx, id); err != nil {
			return nil, err
		}
	default:
		return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "delete "+kind)
	}
	return &ports.DeleteResult{
		Success: true,
		URI:     a.uriFor(kind, id),
		Type:    kind,
	}, nil
}

// GetMetadata summarizes the workspace via search. Best-effort: failures
// become Notes, never errors.
func (a *Accessor) GetMetadata(ctx context.Context) *ports.DataSourceMetadata {
	meta := &ports.DataSourceMetadata{
		ProviderType: a.conn.ProviderType().String(),
		ConnectionID: a.conn.ID(),
		CanWrite:     a.caps.Has(valueobjects.CapabilityBlockEdit),
	}

	cursor := ""
	for {
		page, err := a.client.Search(ctx, "", cursor, 100)
		if err != nil {
			meta.Notes = append(meta.Notes, "workspace search failed: "+err.Error())
			return meta
		}
		for _, obj := range page.Results {
			switch objectKind(obj) {
			case "database":
				meta.TotalDirectories++
			case "page":
				meta.TotalFiles++
			}
			if edited := lastEditedTime(obj); edited != nil {
				if meta.OldestModified == nil || edited.Before(*meta.OldestModified) {
					t := *edited
					meta.OldestModified = &t
				}
				if meta.NewestModified == nil || edited.After(*meta.NewestModified) {
					t := *edited
					meta.NewestModified = &t
				}
			}
		}
		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}
	return meta
}
