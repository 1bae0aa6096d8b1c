package valueobjects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		want    URIParts
		wantErr bool
	}{
		{
			name: "filesystem uri",
			uri:  "bb+filesystem+my-project://src/main.go",
			want: URIParts{
				AccessMethod:   AccessMethodBB,
				ProviderType:   ProviderTypeFilesystem,
				ConnectionName: "my-project",
				ResourcePath:   "src/main.go",
			},
		},
		{
			name: "mcp uri with opaque path",
			uri:  "mcp+docs-server+docs://guides/intro",
			want: URIParts{
				AccessMethod:   AccessMethodMCP,
				ProviderType:   ProviderType("docs-server"),
				ConnectionName: "docs",
				ResourcePath:   "guides/intro",
			},
		},
		{
			name: "empty resource path",
			uri:  "bb+notion+wiki://",
			want: URIParts{
				AccessMethod:   AccessMethodBB,
				ProviderType:   ProviderTypeNotion,
				ConnectionName: "wiki",
				ResourcePath:   "",
			},
		},
		{name: "missing separator", uri: "bb+filesystem+proj/src", wantErr: true},
		{name: "too few prefix segments", uri: "bb+filesystem://src", wantErr: true},
		{name: "too many prefix segments", uri: "bb+filesystem+a+b://src", wantErr: true},
		{name: "unknown access method", uri: "ftp+filesystem+proj://src", wantErr: true},
		{name: "empty connection name", uri: "bb+filesystem+://src", wantErr: true},
		{name: "uppercase provider type", uri: "bb+FileSystem+proj://src", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildURIRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		method AccessMethod
		pt     ProviderType
		conn   string
		path   string
	}{
		{"filesystem", AccessMethodBB, ProviderTypeFilesystem, "my-project", "docs/readme.md"},
		{"notion", AccessMethodBB, ProviderTypeNotion, "team-wiki", "page/abc123"},
		{"googledocs", AccessMethodBB, ProviderTypeGoogleDocs, "work", "document/1AbC"},
		{"mcp", AccessMethodMCP, ProviderType("docs-server"), "docs", "guides/intro"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uri := BuildURI(tt.method, tt.pt, tt.conn, tt.path)
			parts, err := ParseURI(uri)
			require.NoError(t, err)
			assert.Equal(t, tt.method, parts.AccessMethod)
			assert.Equal(t, tt.pt, parts.ProviderType)
			assert.Equal(t, Slugify(tt.conn), parts.ConnectionName)
			assert.Equal(t, tt.path, parts.ResourcePath)
		})
	}
}

func TestResourcePathForPrefix(t *testing.T) {
	prefix := URIPrefix(AccessMethodBB, ProviderTypeFilesystem, "proj")

	path, ok := ResourcePathForPrefix("bb+filesystem+proj://a/b.txt", prefix)
	assert.True(t, ok)
	assert.Equal(t, "a/b.txt", path)

	_, ok = ResourcePathForPrefix("bb+filesystem+other://a/b.txt", prefix)
	assert.False(t, ok)
}

func TestHasAccessMethodPrefix(t *testing.T) {
	assert.True(t, HasAccessMethodPrefix("bb+filesystem+proj://x"))
	assert.True(t, HasAccessMethodPrefix("mcp+server+conn://x"))
	assert.False(t, HasAccessMethodPrefix("src/main.go"))
	assert.False(t, HasAccessMethodPrefix("http://example.com"))
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My Project", "my-project"},
		{"already-slugged", "already-slugged"},
		{"Mixed_Case  2024!", "mixed-case-2024"},
		{"--leading", "leading"},
		{"trailing--", "trailing"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), "Slugify(%q)", tt.in)
	}
}
