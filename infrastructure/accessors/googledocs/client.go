// Package googledocs implements the resource accessor for Google Docs and
// Drive over their REST APIs. Resource paths are document/<id>,
// folder/<id>, search/<urlencoded-query> and drive/overview.
package googledocs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"bb-datasources/application/ports"
	"bb-datasources/domain/core/valueobjects"
	"bb-datasources/pkg/errors"
)

const (
	// DefaultDocsBaseURL is the Google Docs API endpoint.
	DefaultDocsBaseURL = "https://docs.googleapis.com/v1"
	// DefaultDriveBaseURL is the Google Drive API endpoint.
	DefaultDriveBaseURL = "https://www.googleapis.com/drive/v3"
)

// Client wraps the Docs and Drive REST APIs with OAuth token handling.
// Refresh is proactive (a token within five minutes of expiry is refreshed
// before the request) and reactive (a 401 triggers exactly one
// refresh-and-retry cycle). Refreshes are single-flight: concurrent callers
// observing a stale token coalesce into one exchange and all receive the
// new token.
type Client struct {
	docsBaseURL  string
	driveBaseURL string
	exchangeURL  string
	httpClient   *http.Client
	logger       *zap.Logger

	mu       sync.Mutex
	token    oauth2.Token
	onUpdate ports.TokenUpdateCallback

	refreshGroup singleflight.Group
}

// ClientConfig carries the construction parameters of a Client.
type ClientConfig struct {
	DocsBaseURL    string
	DriveBaseURL   string
	ExchangeURL    string
	Tokens         valueobjects.OAuth2Tokens
	OnTokenRefresh ports.TokenUpdateCallback
}

// NewClient builds a Docs/Drive client from an oauth2 token record.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	c := &Client{
		docsBaseURL:  cfg.DocsBaseURL,
		driveBaseURL: cfg.DriveBaseURL,
		exchangeURL:  cfg.ExchangeURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       logger,
		onUpdate:     cfg.OnTokenRefresh,
	}
	if c.docsBaseURL == "" {
		c.docsBaseURL = DefaultDocsBaseURL
	}
	if c.driveBaseURL == "" {
		c.driveBaseURL = DefaultDriveBaseURL
	}
	c.token = oauth2.Token{
		AccessToken:  cfg.Tokens.AccessToken,
		RefreshToken: cfg.Tokens.RefreshToken,
	}
	if cfg.Tokens.ExpiresAt != nil {
		c.token.Expiry = *cfg.Tokens.ExpiresAt
	}
	return c
}

// currentTokens snapshots the token state as a value object.
func (c *Client) currentTokens() valueobjects.OAuth2Tokens {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := valueobjects.OAuth2Tokens{
		AccessToken:  c.token.AccessToken,
		RefreshToken: c.token.RefreshToken,
	}
	if !c.token.Expiry.IsZero() {
		exp := c.token.Expiry
		out.ExpiresAt = &exp
	}
	return out
}

// accessToken returns a fresh access token, refreshing first when the
// stored one is within the stale window.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	tokens := c.currentTokens()
	if tokens.IsStale(time.Now()) {
		if err := c.refresh(ctx); err != nil {
			return "", err
		}
		tokens = c.currentTokens()
	}
	if tokens.AccessToken == "" {
		return "", errors.NewAuthRequired("google connection has no access token")
	}
	return tokens.AccessToken, nil
}

// refresh exchanges the refresh token at the configured endpoint. Callers
// racing here share one exchange through the singleflight group.
func (c *Client) refresh(ctx context.Context) error {
	_, err, _ := c.refreshGroup.Do("refresh", func() (interface{}, error) {
		return nil, c.doRefresh(ctx)
	})
	return err
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

func (c *Client) doRefresh(ctx context.Context) error {
	c.mu.Lock()
	refreshToken := c.token.RefreshToken
	c.mu.Unlock()
	if refreshToken == "" {
		return errors.NewAuthExpired("access token expired and no refresh token is available")
	}
	if c.exchangeURL == "" {
		return errors.NewInvalidConfig("no refresh exchange endpoint configured")
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.exchangeURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return errors.NewInternal("cannot build refresh request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errors.NewCancelled("token refresh")
		}
		return errors.NewIO("token refresh", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewIO("token refresh read", err)
	}
	if resp.StatusCode >= 400 {
		return errors.NewAuthExpired(fmt.Sprintf("token exchange returned %d", resp.StatusCode))
	}

	var tr refreshResponse
	if err := json.Unmarshal(data, &tr); err != nil {
		return errors.NewUpstream("google", fmt.Errorf("cannot decode token response: %w", err))
	}
	if tr.AccessToken == "" {
		return errors.NewAuthExpired("token exchange returned no access token")
	}

	c.mu.Lock()
	c.token.AccessToken = tr.AccessToken
	if tr.RefreshToken != "" {
		c.token.RefreshToken = tr.RefreshToken
	}
	if tr.ExpiresIn > 0 {
		c.token.Expiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	c.mu.Unlock()

	c.logger.Debug("oauth tokens refreshed")
	if c.onUpdate != nil {
		if err := c.onUpdate(ctx, c.currentTokens()); err != nil {
			// Persistence failure does not invalidate the in-memory tokens.
			c.logger.Warn("token persistence callback failed", zap.Error(err))
		}
	}
	return nil
}

// do performs one authenticated request against a full URL. On a 401 it
// runs one refresh-and-retry cycle; a second 401 surfaces as an auth error.
func (c *Client) do(ctx context.Context, method, fullURL string, body interface{}, out interface{}) error {
	retried := false
	for {
		token, err := c.accessToken(ctx)
		if err != nil {
			return err
		}

		var reader io.Reader
		if body != nil {
			payload, err := json.Marshal(body)
			if err != nil {
				return errors.NewInternal("cannot marshal google request body").WithCause(err)
			}
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
		if err != nil {
			return errors.NewInternal("cannot build google request").WithCause(err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return errors.NewCancelled(method + " " + fullURL)
			}
			return errors.NewIO("google request", err)
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return errors.NewIO("google response read", err)
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			if retried {
				return errors.NewAuthExpired("google rejected the access token after refresh")
			}
			retried = true
			if err := c.refresh(ctx); err != nil {
				return err
			}
			continue
		case resp.StatusCode == http.StatusNotFound:
			return errors.NewNotFound(fullURL)
		case resp.StatusCode >= 400:
			return errors.NewUpstream("google",
				fmt.Errorf("%s %s returned %d: %s", method, fullURL, resp.StatusCode, truncate(string(data), 200)))
		}

		if out != nil {
			if err := json.Unmarshal(data, out); err != nil {
				return errors.NewUpstream("google", fmt.Errorf("cannot decode response: %w", err))
			}
		}
		return nil
	}
}

// Document is a raw Google Docs document. Converters work over the raw JSON
// shape so structural elements the converter does not model pass through.
type Document = map[string]interface{}

// DriveFile is the subset of Drive file metadata the accessor consumes.
type DriveFile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	ModifiedTime string `json:"modifiedTime"`
	Size         string `json:"size"`
	Description  string `json:"description"`
	Trashed      bool   `json:"trashed"`
}

type driveFileList struct {
	Files         []DriveFile `json:"files"`
	NextPageToken string      `json:"nextPageToken"`
}

// GetDocument fetches one document.
func (c *Client) GetDocument(ctx context.Context, documentID string) (Document, error) {
	var out Document
	if err := c.do(ctx, http.MethodGet, c.docsBaseURL+"/documents/"+documentID, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// BatchUpdate applies a request script to a document.
func (c *Client) BatchUpdate(ctx context.Context, documentID string, requests []map[string]interface{}) error {
	body := map[string]interface{}{"requests": requests}
	return c.do(ctx, http.MethodPost, c.docsBaseURL+"/documents/"+documentID+":batchUpdate", body, nil)
}

// GetFile fetches Drive metadata for one file.
func (c *Client) GetFile(ctx context.Context, fileID string) (*DriveFile, error) {
	u := c.driveBaseURL + "/files/" + fileID + "?fields=" +
		url.QueryEscape("id,name,mimeType,modifiedTime,size,description,trashed")
	var out DriveFile
	if err := c.do(ctx, http.MethodGet, u, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QueryFiles runs a Drive query, following pagination up to limit files
// (0 means no limit).
func (c *Client) QueryFiles(ctx context.Context, query string, limit int) ([]DriveFile, error) {
	var all []DriveFile
	pageToken := ""
	for {
		params := url.Values{
			"q":      {query},
			"fields": {"nextPageToken,files(id,name,mimeType,modifiedTime,size,description,trashed)"},
		}
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}
		var page driveFileList
		if err := c.do(ctx, http.MethodGet, c.driveBaseURL+"/files?"+params.Encode(), nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Files...)
		if limit > 0 && len(all) >= limit {
			return all[:limit], nil
		}
		if page.NextPageToken == "" {
			return all, nil
		}
		pageToken = page.NextPageToken
	}
}

// ListFiles runs one page of a Drive query.
func (c *Client) ListFiles(ctx context.Context, query string, pageSize int, pageToken string) ([]DriveFile, string, error) {
	params := url.Values{
		"q":      {query},
		"fields": {"nextPageToken,files(id,name,mimeType,modifiedTime,size,description,trashed)"},
	}
	if pageSize > 0 {
		params.Set("pageSize", fmt.Sprintf("%d", pageSize))
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	var page driveFileList
	if err := c.do(ctx, http.MethodGet, c.driveBaseURL+"/files?"+params.Encode(), nil, &page); err != nil {
		return nil, "", err
	}
	return page.Files, page.NextPageToken, nil
}

// TrashFile moves a Drive file to the trash.
func (c *Client) TrashFile(ctx context.Context, fileID string) error {
	body := map[string]interface{}{"trashed": true}
	return c.do(ctx, http.MethodPatch, c.driveBaseURL+"/files/"+fileID, body, nil)
}

// MoveFile reparents a Drive file.
func (c *Client) MoveFile(ctx context.Context, fileID, oldParent, newParent string) error {
	params := url.Values{"addParents": {newParent}}
	if oldParent != "" {
		params.Set("removeParents", oldParent)
	}
	return c.do(ctx, http.MethodPatch, c.driveBaseURL+"/files/"+fileID+"?"+params.Encode(), map[string]interface{}{}, nil)
}

// CreateDocument creates an empty document with a title.
func (c *Client) CreateDocument(ctx context.Context, title string) (Document, error) {
	var out Document
	body := map[string]interface{}{"title": title}
	if err := c.do(ctx, http.MethodPost, c.docsBaseURL+"/documents", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
