package filesystem

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bb-datasources/application/ports"
	"bb-datasources/domain/core/valueobjects"
	"bb-datasources/pkg/errors"
)

// testConn is a minimal connection stub for accessor tests.
type testConn struct {
	id     string
	name   string
	config map[string]interface{}
}

func (c *testConn) ID() string   { return c.id }
func (c *testConn) Name() string { return c.name }
func (c *testConn) ProviderType() valueobjects.ProviderType {
	return valueobjects.ProviderTypeFilesystem
}
func (c *testConn) AccessMethod() valueobjects.AccessMethod { return valueobjects.AccessMethodBB }
func (c *testConn) Config() map[string]interface{}          { return c.config }
func (c *testConn) Auth() *valueobjects.Auth                { return nil }
func (c *testConn) URIPrefix() string {
	return valueobjects.URIPrefix(valueobjects.AccessMethodBB, valueobjects.ProviderTypeFilesystem, c.name)
}
func (c *testConn) UpdateOAuthTokens(valueobjects.OAuth2Tokens) {}

// The factory closes evicted accessors through io.Closer.
var _ io.Closer = (*Accessor)(nil)

func allCaps() valueobjects.CapabilitySet {
	return valueobjects.CapabilitySet{
		Coarse: []valueobjects.Capability{
			valueobjects.CapabilityRead,
			valueobjects.CapabilityWrite,
			valueobjects.CapabilityList,
			valueobjects.CapabilitySearch,
			valueobjects.CapabilityMove,
			valueobjects.CapabilityDelete,
		},
	}
}

func newTestAccessor(t *testing.T) (*Accessor, string) {
	t.Helper()
	root := t.TempDir()
	conn := &testConn{
		id:     "conn-1",
		name:   "proj",
		config: map[string]interface{}{"dataSourceRoot": root},
	}
	a, err := NewAccessor(conn, allCaps(), zap.NewNop(), WithoutWatcher())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, root
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func TestNewAccessorRequiresRoot(t *testing.T) {
	conn := &testConn{id: "c", name: "p", config: map[string]interface{}{}}
	_, err := NewAccessor(conn, allCaps(), zap.NewNop(), WithoutWatcher())
	assert.True(t, errors.IsKind(err, errors.KindInvalidConfig))
}

func TestResolveRejectsEscapes(t *testing.T) {
	a, _ := newTestAccessor(t)

	tests := []struct {
		name string
		uri  string
		kind errors.Kind
	}{
		{"traversal segment", "../outside.txt", errors.KindInvalidURI},
		{"nested traversal", "a/../../outside.txt", errors.KindInvalidURI},
		{"absolute path", "/etc/passwd", errors.KindInvalidURI},
		{"traversal inside uri", "bb+filesystem+proj://a/../../x", errors.KindInvalidURI},
		{"foreign connection", "bb+filesystem+other://a.txt", errors.KindURINotForConnection},
		{"malformed prefix", "bb+filesystem://a.txt", errors.KindInvalidURI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.LoadResource(context.Background(), tt.uri, nil)
			assert.True(t, errors.IsKind(err, tt.kind), "got %v", err)
			assert.False(t, a.IsResourceWithinDataSource(tt.uri))
		})
	}
}

func TestSymlinkPolicy(t *testing.T) {
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("outside-root-data"), 0o644))

	newWithConfig := func(extra map[string]interface{}) (*Accessor, string) {
		root := t.TempDir()
		cfg := map[string]interface{}{"dataSourceRoot": root}
		for k, v := range extra {
			cfg[k] = v
		}
		conn := &testConn{id: "conn-1", name: "proj", config: cfg}
		a, err := NewAccessor(conn, allCaps(), zap.NewNop(), WithoutWatcher())
		require.NoError(t, err)
		t.Cleanup(func() { a.Close() })
		return a, root
	}
	ctx := context.Background()

	t.Run("followSymlinks disabled refuses any symlink", func(t *testing.T) {
		a, root := newWithConfig(map[string]interface{}{"followSymlinks": false})
		require.NoError(t, os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(root, "link.txt")))
		writeFile(t, root, "plain.txt", "inside")

		_, err := a.LoadResource(ctx, "link.txt", nil)
		assert.True(t, errors.IsKind(err, errors.KindInvalidURI), "got %v", err)
		assert.False(t, a.IsResourceWithinDataSource("link.txt"))

		result, err := a.LoadResource(ctx, "plain.txt", nil)
		require.NoError(t, err)
		assert.Equal(t, "inside", string(result.Content))
	})

	t.Run("strictRoot refuses symlinks escaping the root", func(t *testing.T) {
		a, root := newWithConfig(nil)
		require.NoError(t, os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(root, "link.txt")))
		require.NoError(t, os.Symlink(outside, filepath.Join(root, "dir-link")))
		writeFile(t, root, "real.txt", "inside")
		require.NoError(t, os.Symlink(filepath.Join(root, "real.txt"), filepath.Join(root, "internal-link.txt")))

		_, err := a.LoadResource(ctx, "link.txt", nil)
		assert.True(t, errors.IsKind(err, errors.KindInvalidURI), "got %v", err)
		_, err = a.LoadResource(ctx, "dir-link/secret.txt", nil)
		assert.True(t, errors.IsKind(err, errors.KindInvalidURI), "got %v", err)

		// A symlink resolving inside the root is still followed.
		result, err := a.LoadResource(ctx, "internal-link.txt", nil)
		require.NoError(t, err)
		assert.Equal(t, "inside", string(result.Content))
	})

	t.Run("strictRoot applies to targets about to be created", func(t *testing.T) {
		a, root := newWithConfig(nil)
		require.NoError(t, os.Symlink(outside, filepath.Join(root, "out")))

		_, err := a.WriteResource(ctx, "out/new.txt", []byte("x"), nil)
		assert.True(t, errors.IsKind(err, errors.KindInvalidURI), "got %v", err)
	})

	t.Run("strictRoot disabled follows escaping symlinks", func(t *testing.T) {
		a, root := newWithConfig(map[string]interface{}{"strictRoot": false})
		require.NoError(t, os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(root, "link.txt")))

		result, err := a.LoadResource(ctx, "link.txt", nil)
		require.NoError(t, err)
		assert.Equal(t, "outside-root-data", string(result.Content))
	})
}

func TestLoadResource(t *testing.T) {
	a, root := newTestAccessor(t)
	writeFile(t, root, "docs/readme.md", "hello world")

	result, err := a.LoadResource(context.Background(), "docs/readme.md", nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), result.Content)
	assert.False(t, result.IsPartial)
	assert.False(t, result.IsBinary)
	assert.Equal(t, "readme.md", result.Metadata.Name)
	assert.Equal(t, "bb+filesystem+proj://docs/readme.md", result.Metadata.URI)

	// The same file through its fully-qualified URI.
	result, err = a.LoadResource(context.Background(), "bb+filesystem+proj://docs/readme.md", nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), result.Content)
}

func TestLoadResourceRange(t *testing.T) {
	a, root := newTestAccessor(t)
	writeFile(t, root, "data.txt", "0123456789")

	start, end := int64(2), int64(6)
	result, err := a.LoadResource(context.Background(), "data.txt", &ports.LoadOptions{
		RangeStart: &start,
		RangeEnd:   &end,
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("2345"), result.Content)
	assert.True(t, result.IsPartial)

	// Range end past EOF reads to EOF.
	start, end = 8, 100
	result, err = a.LoadResource(context.Background(), "data.txt", &ports.LoadOptions{
		RangeStart: &start,
		RangeEnd:   &end,
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("89"), result.Content)
}

func TestLoadResourceNotFound(t *testing.T) {
	a, _ := newTestAccessor(t)
	_, err := a.LoadResource(context.Background(), "missing.txt", nil)
	assert.True(t, errors.IsNotFound(err))
}

func TestLoadResourceBinaryDetection(t *testing.T) {
	a, root := newTestAccessor(t)
	writeFile(t, root, "logo.png", "\x89PNG")

	result, err := a.LoadResource(context.Background(), "logo.png", nil)
	require.NoError(t, err)
	assert.True(t, result.IsBinary)
}

func TestWriteResource(t *testing.T) {
	a, _ := newTestAccessor(t)
	ctx := context.Background()

	result, err := a.WriteResource(ctx, "new/file.txt", []byte("content"), &ports.WriteOptions{
		CreateMissingDirectories: true,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(7), result.BytesWritten)

	// Second write without overwrite is refused.
	_, err = a.WriteResource(ctx, "new/file.txt", []byte("other"), nil)
	assert.True(t, errors.IsKind(err, errors.KindAlreadyExists))

	// With overwrite it succeeds.
	_, err = a.WriteResource(ctx, "new/file.txt", []byte("other"), &ports.WriteOptions{Overwrite: true})
	require.NoError(t, err)

	loaded, err := a.LoadResource(ctx, "new/file.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("other"), loaded.Content)
}

func TestMoveResource(t *testing.T) {
	a, root := newTestAccessor(t)
	ctx := context.Background()
	writeFile(t, root, "a.txt", "payload")
	writeFile(t, root, "b.txt", "occupied")

	_, err := a.MoveResource(ctx, "missing.txt", "x.txt", nil)
	assert.True(t, errors.IsNotFound(err))

	_, err = a.MoveResource(ctx, "a.txt", "b.txt", nil)
	assert.True(t, errors.IsKind(err, errors.KindAlreadyExists))

	result, err := a.MoveResource(ctx, "a.txt", "sub/c.txt", &ports.MoveOptions{CreateMissingDirectories: true})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "bb+filesystem+proj://sub/c.txt", result.Destination)
	assert.False(t, a.ResourceExists(ctx, "a.txt", nil))
	assert.True(t, a.ResourceExists(ctx, "sub/c.txt", nil))
}

func TestDeleteResource(t *testing.T) {
	a, root := newTestAccessor(t)
	ctx := context.Background()
	writeFile(t, root, "dir/inner.txt", "x")

	// Non-empty directory without Recursive is refused.
	_, err := a.DeleteResource(ctx, "dir", nil)
	assert.True(t, errors.IsKind(err, errors.KindNotEmpty))

	result, err := a.DeleteResource(ctx, "dir", &ports.DeleteOptions{Recursive: true})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "directory", result.Type)

	_, err = a.DeleteResource(ctx, "dir", nil)
	assert.True(t, errors.IsNotFound(err))
}

func TestResourceExistsIsFile(t *testing.T) {
	a, root := newTestAccessor(t)
	ctx := context.Background()
	writeFile(t, root, "dir/f.txt", "x")

	isFile := true
	notFile := false
	assert.True(t, a.ResourceExists(ctx, "dir/f.txt", &ports.ExistsOptions{IsFile: &isFile}))
	assert.False(t, a.ResourceExists(ctx, "dir", &ports.ExistsOptions{IsFile: &isFile}))
	assert.True(t, a.ResourceExists(ctx, "dir", &ports.ExistsOptions{IsFile: &notFile}))
	assert.False(t, a.ResourceExists(ctx, "missing", nil))
}

func TestEnsureResourcePathExists(t *testing.T) {
	a, root := newTestAccessor(t)

	require.NoError(t, a.EnsureResourcePathExists(context.Background(), "deep/nested/file.txt"))
	info, err := os.Stat(filepath.Join(root, "deep", "nested"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestEditResourceUnsupported(t *testing.T) {
	a, _ := newTestAccessor(t)
	_, err := a.EditResource(context.Background(), "f.txt", nil, nil)
	assert.True(t, errors.IsCapabilityUnsupported(err))
}

func TestCapabilityGating(t *testing.T) {
	root := t.TempDir()
	conn := &testConn{id: "c", name: "proj", config: map[string]interface{}{"dataSourceRoot": root}}
	readOnly := valueobjects.CapabilitySet{Coarse: []valueobjects.Capability{valueobjects.CapabilityRead}}
	a, err := NewAccessor(conn, readOnly, zap.NewNop(), WithoutWatcher())
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	_, err = a.WriteResource(ctx, "f.txt", []byte("x"), nil)
	assert.True(t, errors.IsCapabilityUnsupported(err))
	_, err = a.ListResources(ctx, nil)
	assert.True(t, errors.IsCapabilityUnsupported(err))
	_, err = a.SearchResources(ctx, "x", nil)
	assert.True(t, errors.IsCapabilityUnsupported(err))
	_, err = a.MoveResource(ctx, "a", "b", nil)
	assert.True(t, errors.IsCapabilityUnsupported(err))
	_, err = a.DeleteResource(ctx, "a", nil)
	assert.True(t, errors.IsCapabilityUnsupported(err))
}

func TestGetMetadata(t *testing.T) {
	a, root := newTestAccessor(t)
	writeFile(t, root, "a.txt", "text content")
	writeFile(t, root, "img/logo.png", "\x89PNG")
	writeFile(t, root, "empty.txt", "")

	meta := a.GetMetadata(context.Background())
	assert.Equal(t, "filesystem", meta.ProviderType)
	assert.Equal(t, "conn-1", meta.ConnectionID)
	assert.Equal(t, 3, meta.TotalFiles)
	assert.Equal(t, 1, meta.TotalDirectories)
	assert.Equal(t, 1, meta.TextFileCount)
	assert.Equal(t, 1, meta.BinaryFileCount)
	assert.Equal(t, 1, meta.EmptyFileCount)
	assert.True(t, meta.CanWrite)
	assert.Equal(t, 2, meta.FileExtensions[".txt"])
	assert.Equal(t, 1, meta.FileExtensions[".png"])
}
