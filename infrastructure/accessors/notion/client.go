// Package notion implements the resource accessor for Notion workspaces
// over the public REST API v1. Resource paths have the form <kind>/<id>
// with kind one of page, database, workspace, block, user, comment.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"bb-datasources/pkg/errors"
)

const (
	// DefaultBaseURL is the public Notion API endpoint.
	DefaultBaseURL = "https://api.notion.com/v1"
	// apiVersion is sent as the Notion-Version header on every request.
	apiVersion = "2022-06-28"
)

// Client is a thin typed wrapper over the Notion REST API. One instance
// per accessor; safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds a Notion API client authenticated with an integration
// API key.
func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Object is a raw Notion API object. The converter and renderer work over
// the raw JSON shape so unsupported block types round-trip opaquely.
type Object = map[string]interface{}

// listResponse is the envelope of Notion list endpoints.
type listResponse struct {
	Object     string            `json:"object"`
	Results    []json.RawMessage `json:"results"`
	NextCursor string            `json:"next_cursor"`
	HasMore    bool              `json:"has_more"`
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.NewInternal("cannot marshal notion request body").WithCause(err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.NewInternal("cannot build notion request").WithCause(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Notion-Version", apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errors.NewCancelled(method + " " + path)
		}
		return errors.NewIO("notion request", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewIO("notion response read", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return errors.NewAuthRequired("notion rejected the API key")
	case resp.StatusCode == http.StatusNotFound:
		return errors.NewNotFound(path)
	case resp.StatusCode >= 400:
		return errors.NewUpstream("notion",
			fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, truncate(string(data), 200)))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return errors.NewUpstream("notion", fmt.Errorf("cannot decode response: %w", err))
		}
	}
	return nil
}

// GetPage fetches one page object.
func (c *Client) GetPage(ctx context.Context, pageID string) (Object, error) {
	var out Object
	if err := c.do(ctx, http.MethodGet, "/pages/"+pageID, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetDatabase fetches one database object.
func (c *Client) GetDatabase(ctx context.Context, databaseID string) (Object, error) {
	var out Object
	if err := c.do(ctx, http.MethodGet, "/databases/"+databaseID, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// QueryDatabase returns all pages of a database. Filter and sorts are
// passed through verbatim.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, filter, sorts interface{}) ([]Object, error) {
	var all []Object
	cursor := ""
	for {
		body := map[string]interface{}{}
		if filter != nil {
			body["filter"] = filter
		}
		if sorts != nil {
			body["sorts"] = sorts
		}
		if cursor != "" {
			body["start_cursor"] = cursor
		}
		var resp listResponse
		if err := c.do(ctx, http.MethodPost, "/databases/"+databaseID+"/query", body, &resp); err != nil {
			return nil, err
		}
		all = append(all, decodeObjects(resp.Results)...)
		if !resp.HasMore {
			return all, nil
		}
		cursor = resp.NextCursor
	}
}

// GetBlock fetches one block object.
func (c *Client) GetBlock(ctx context.Context, blockID string) (Object, error) {
	var out Object
	if err := c.do(ctx, http.MethodGet, "/blocks/"+blockID, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetBlockChildren fetches all children of a block, following pagination.
func (c *Client) GetBlockChildren(ctx context.Context, blockID string) ([]Object, error) {
	var all []Object
	cursor := ""
	for {
		path := "/blocks/" + blockID + "/children?page_size=100"
		if cursor != "" {
			path += "&start_cursor=" + cursor
		}
		var resp listResponse
		if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, err
		}
		all = append(all, decodeObjects(resp.Results)...)
		if !resp.HasMore {
			return all, nil
		}
		cursor = resp.NextCursor
	}
}

// AppendBlockChildren appends blocks to a page or block.
func (c *Client) AppendBlockChildren(ctx context.Context, blockID string, children []Object) error {
	body := map[string]interface{}{"children": children}
	return c.do(ctx, http.MethodPatch, "/blocks/"+blockID+"/children", body, nil)
}

// DeleteBlock deletes (archives) one block.
func (c *Client) DeleteBlock(ctx context.Context, blockID string) error {
	return c.do(ctx, http.MethodDelete, "/blocks/"+blockID, nil, nil)
}

// ArchivePage archives one page.
func (c *Client) ArchivePage(ctx context.Context, pageID string) error {
	body := map[string]interface{}{"archived": true}
	return c.do(ctx, http.MethodPatch, "/pages/"+pageID, body, nil)
}

// SearchPage is one page of workspace search results.
type SearchPage struct {
	Results    []Object
	NextCursor string
	HasMore    bool
}

// Search runs a workspace search. Query may be empty to list everything.
func (c *Client) Search(ctx context.Context, query, startCursor string, pageSize int) (*SearchPage, error) {
	body := map[string]interface{}{}
	if query != "" {
		body["query"] = query
	}
	if startCursor != "" {
		body["start_cursor"] = startCursor
	}
	if pageSize > 0 {
		body["page_size"] = pageSize
	}
	var resp listResponse
	if err := c.do(ctx, http.MethodPost, "/search", body, &resp); err != nil {
		return nil, err
	}
	return &SearchPage{
		Results:    decodeObjects(resp.Results),
		NextCursor: resp.NextCursor,
		HasMore:    resp.HasMore,
	}, nil
}

// GetUser fetches one user object.
func (c *Client) GetUser(ctx context.Context, userID string) (Object, error) {
	var out Object
	if err := c.do(ctx, http.MethodGet, "/users/"+userID, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeObjects(raw []json.RawMessage) []Object {
	out := make([]Object, 0, len(raw))
	for _, r := range raw {
		var obj Object
		if err := json.Unmarshal(r, &obj); err == nil {
			out = append(out, obj)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
