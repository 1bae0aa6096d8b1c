package googledocs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bb-datasources/application/ports"
	"bb-datasources/domain/core/valueobjects"
	"bb-datasources/pkg/errors"
)

type docsConn struct {
	config map[string]interface{}
}

func (c *docsConn) ID() string   { return "conn-gdocs" }
func (c *docsConn) Name() string { return "work" }
func (c *docsConn) ProviderType() valueobjects.ProviderType {
	return valueobjects.ProviderTypeGoogleDocs
}
func (c *docsConn) AccessMethod() valueobjects.AccessMethod { return valueobjects.AccessMethodBB }
func (c *docsConn) Config() map[string]interface{}          { return c.config }
func (c *docsConn) Auth() *valueobjects.Auth {
	later := time.Now().Add(time.Hour)
	return &valueobjects.Auth{
		Method: valueobjects.AuthMethodOAuth2,
		OAuth2: &valueobjects.OAuth2Tokens{AccessToken: "good", ExpiresAt: &later},
	}
}
func (c *docsConn) URIPrefix() string {
	return valueobjects.URIPrefix(valueobjects.AccessMethodBB, valueobjects.ProviderTypeGoogleDocs, "work")
}
func (c *docsConn) UpdateOAuthTokens(valueobjects.OAuth2Tokens) {}

// fakeDrive is an in-memory Docs plus Drive API double recording mutations.
type fakeDrive struct {
	mu         sync.Mutex
	docs       map[string]Document
	files      []DriveFile
	batchDocs  []string
	batches    [][]map[string]interface{}
	trashed    []string
	moved      []string
	queries    []string
	pageTokens []string
	createdDoc string
}

func (f *fakeDrive) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /docs/documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		doc, ok := f.docs[r.PathValue("id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(doc)
	})
	mux.HandleFunc("POST /docs/documents", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Title string `json:"title"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.createdDoc = body.Title
		json.NewEncoder(w).Encode(Document{"documentId": "created-id", "title": body.Title})
	})
	mux.HandleFunc("POST /docs/documents/{idop}", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSuffix(r.PathValue("idop"), ":batchUpdate")
		var body struct {
			Requests []map[string]interface{} `json:"requests"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.batchDocs = append(f.batchDocs, id)
		f.batches = append(f.batches, body.Requests)
		json.NewEncoder(w).Encode(map[string]interface{}{"documentId": id})
	})
	mux.HandleFunc("GET /drive/files", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.queries = append(f.queries, r.URL.Query().Get("q"))
		f.pageTokens = append(f.pageTokens, r.URL.Query().Get("pageToken"))
		json.NewEncoder(w).Encode(map[string]interface{}{"files": f.files})
	})
	mux.HandleFunc("GET /drive/files/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		for _, file := range f.files {
			if file.ID == r.PathValue("id") {
				json.NewEncoder(w).Encode(file)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("PATCH /drive/files/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id := r.PathValue("id")
		if parent := r.URL.Query().Get("addParents"); parent != "" {
			f.moved = append(f.moved, id+"->"+parent)
		} else {
			f.trashed = append(f.trashed, id)
		}
		json.NewEncoder(w).Encode(DriveFile{ID: id})
	})
	return mux
}

func docsCaps() valueobjects.CapabilitySet {
	return valueobjects.CapabilitySet{
		Coarse: []valueobjects.Capability{
			valueobjects.CapabilityBlockRead,
			valueobjects.CapabilityBlockEdit,
			valueobjects.CapabilityList,
			valueobjects.CapabilitySearch,
			valueobjects.CapabilityMove,
			valueobjects.CapabilityDelete,
		},
	}
}

func simpleDoc(title, text string) Document {
	return Document{
		"documentId": "d1",
		"title":      title,
		"body": map[string]interface{}{
			"content": []interface{}{
				map[string]interface{}{
					"endIndex": float64(len(text) + 2),
					"paragraph": map[string]interface{}{
						"paragraphStyle": map[string]interface{}{"namedStyleType": "NORMAL_TEXT"},
						"elements": []interface{}{map[string]interface{}{
							"textRun": map[string]interface{}{"content": text + "\n"},
						}},
					},
				},
			},
		},
	}
}

func newDocsAccessor(t *testing.T, f *fakeDrive) *Accessor {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	conn := &docsConn{config: map[string]interface{}{
		"docsBaseUrl":  srv.URL + "/docs",
		"driveBaseUrl": srv.URL + "/drive",
	}}
	a, err := NewAccessor(conn, docsCaps(), "https://example.com/token", nil, zap.NewNop())
	require.NoError(t, err)
	return a
}

func TestNewAccessorRequiresTokens(t *testing.T) {
	_, err := NewAccessor(&noAuthConn{}, docsCaps(), "https://example.com/token", nil, zap.NewNop())
	assert.True(t, errors.IsAuthError(err))
}

type noAuthConn struct{ docsConn }

func (c *noAuthConn) Auth() *valueobjects.Auth { return nil }

func TestDocsResolve(t *testing.T) {
	a := newDocsAccessor(t, &fakeDrive{})

	tests := []struct {
		name string
		uri  string
		kind errors.Kind
	}{
		{"foreign connection", "bb+googledocs+personal://document/d1", errors.KindURINotForConnection},
		{"unknown kind", "spreadsheet/s1", errors.KindInvalidURI},
		{"document without id", "document", errors.KindInvalidURI},
		{"search without query", "search", errors.KindInvalidURI},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := a.resolve(tt.uri)
			assert.True(t, errors.IsKind(err, tt.kind), "got %v", err)
		})
	}

	kind, id, err := a.resolve("drive")
	require.NoError(t, err)
	assert.Equal(t, "drive", kind)
	assert.Equal(t, "overview", id)

	kind, id, err = a.resolve("bb+googledocs+work://document/d1")
	require.NoError(t, err)
	assert.Equal(t, "document", kind)
	assert.Equal(t, "d1", id)
}

func TestLoadDocument(t *testing.T) {
	f := &fakeDrive{docs: map[string]Document{"d1": simpleDoc("Quarterly Report", "numbers look good")}}
	a := newDocsAccessor(t, f)

	result, err := a.LoadResource(context.Background(), "document/d1", nil)
	require.NoError(t, err)
	assert.Contains(t, string(result.Content), "# Quarterly Report")
	assert.Contains(t, string(result.Content), "numbers look good")
	require.Len(t, result.Blocks, 1)
	assert.Equal(t, "bb+googledocs+work://document/d1", result.Metadata.URI)
	assert.Equal(t, docMimeType, result.Metadata.MimeType)
}

func TestListResources(t *testing.T) {
	f := &fakeDrive{files: []DriveFile{
		{ID: "d1", Name: "One", MimeType: docMimeType, ModifiedTime: "2024-03-01T00:00:00Z"},
		{ID: "d2", Name: "Two", MimeType: docMimeType},
	}}
	a := newDocsAccessor(t, f)

	result, err := a.ListResources(context.Background(), &ports.ListOptions{PageToken: "tok"})
	require.NoError(t, err)
	require.Len(t, result.Resources, 2)
	assert.Equal(t, "bb+googledocs+work://document/d1", result.Resources[0].URI)
	require.NotNil(t, result.Resources[0].LastModified)
	assert.Equal(t, []string{"tok"}, f.pageTokens, "drive page token is passed through")

	_, err = a.ListResources(context.Background(), &ports.ListOptions{Path: "document/d1"})
	assert.True(t, errors.IsKind(err, errors.KindInvalidURI), "listing path must be a folder")

	_, err = a.ListResources(context.Background(), &ports.ListOptions{Path: "folder/f1"})
	require.NoError(t, err)
	assert.Contains(t, f.queries[len(f.queries)-1], "'f1' in parents")
}

func TestSearchBuildsDriveQuery(t *testing.T) {
	f := &fakeDrive{files: []DriveFile{{ID: "d1", Name: "Hit", MimeType: docMimeType}}}
	a := newDocsAccessor(t, f)

	after := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	result, err := a.SearchResources(context.Background(), "bob's report",
		&ports.SearchOptions{DateAfter: &after})
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalMatches)

	query := f.queries[len(f.queries)-1]
	assert.Contains(t, query, `fullText contains 'bob\'s report'`, "single quotes are escaped")
	assert.Contains(t, query, "modifiedTime > '2024-01-01T00:00:00Z'")
	assert.Contains(t, query, "trashed=false")
}

func TestWriteResource(t *testing.T) {
	f := &fakeDrive{docs: map[string]Document{"d1": simpleDoc("Doc", "old body")}}
	a := newDocsAccessor(t, f)

	result, err := a.WriteResource(context.Background(), "document/d1", []byte("new body"), nil)
	require.NoError(t, err)
	assert.True(t, result.Success)

	require.Equal(t, []string{"d1"}, f.batchDocs)
	script := f.batches[0]
	require.Len(t, script, 2)
	assert.Contains(t, script[0], "deleteContentRange")
	insert := script[1]["insertText"].(map[string]interface{})
	assert.Equal(t, "new body\n", insert["text"])

	_, err = a.WriteResource(context.Background(), "folder/f1", []byte("x"), nil)
	assert.True(t, errors.IsCapabilityUnsupported(err))
}

func TestEditResourceCreateIfMissing(t *testing.T) {
	f := &fakeDrive{docs: map[string]Document{}}
	a := newDocsAccessor(t, f)

	_, err := a.EditResource(context.Background(), "document/new-notes", nil, nil)
	assert.True(t, errors.IsNotFound(err))

	result, err := a.EditResource(context.Background(), "document/new-notes", nil,
		&ports.EditOptions{CreateIfMissing: true})
	require.NoError(t, err)
	assert.Equal(t, "new-notes", f.createdDoc)
	assert.Equal(t, []string{"created-id"}, f.batchDocs, "the script targets the created document")
	assert.Equal(t, "bb+googledocs+work://document/created-id", result.Metadata.URI)
}

func TestMoveResource(t *testing.T) {
	f := &fakeDrive{
		docs:  map[string]Document{"d1": simpleDoc("Doc", "body")},
		files: []DriveFile{{ID: "d1", Name: "Doc", MimeType: docMimeType}},
	}
	a := newDocsAccessor(t, f)

	result, err := a.MoveResource(context.Background(), "document/d1", "folder/archive", nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"d1->archive"}, f.moved)
	assert.Equal(t, "bb+googledocs+work://folder/archive", result.Destination)

	_, err = a.MoveResource(context.Background(), "folder/f1", "folder/f2", nil)
	assert.True(t, errors.IsKind(err, errors.KindInvalidURI))
}

func TestDeleteResource(t *testing.T) {
	f := &fakeDrive{}
	a := newDocsAccessor(t, f)

	result, err := a.DeleteResource(context.Background(), "document/d1", nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"d1"}, f.trashed)

	_, err = a.DeleteResource(context.Background(), "folder/f1", nil)
	assert.True(t, errors.IsCapabilityUnsupported(err))
}

func TestEscapeDriveQuery(t *testing.T) {
	assert.Equal(t, `plain`, escapeDriveQuery("plain"))
	assert.Equal(t, `bob\'s`, escapeDriveQuery("bob's"))
	assert.Equal(t, `a\\b`, escapeDriveQuery(`a\b`))
}
