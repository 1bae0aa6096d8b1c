// Package filesystem implements the resource accessor for local
// filesystem data sources. A connection's resource paths are POSIX
// relative paths resolved against a configured root; everything that
// would escape the root is refused.
package filesystem

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"bb-datasources/application/ports"
	"bb-datasources/domain/core/valueobjects"
	"bb-datasources/domain/portabletext"
	"bb-datasources/pkg/errors"
)

// Accessor executes resource operations against one filesystem root.
// It holds no mutable state beyond the compiled ignore matcher; concurrent
// use is safe. External processes may race with our writes; last-writer-
// wins at the OS level is accepted.
type Accessor struct {
	conn           ports.ConnectionInfo
	caps           valueobjects.CapabilitySet
	root           string
	strictRoot     bool
	followSymlinks bool
	maxDepth       int
	ignore         *ignoreMatcher
	watcher        *ignoreWatcher
	logger         *zap.Logger
}

// Option configures an Accessor.
type Option func(*Accessor)

// WithMaxDepth caps tree walks.
func WithMaxDepth(depth int) Option {
	return func(a *Accessor) { a.maxDepth = depth }
}

// WithoutWatcher disables the fsnotify ignore-file watcher (tests).
func WithoutWatcher() Option {
	return func(a *Accessor) { a.watcher = nil }
}

// NewAccessor builds a filesystem accessor for a connection. Recognized
// config keys: dataSourceRoot (required), strictRoot (default true),
// followSymlinks (default true).
func NewAccessor(conn ports.ConnectionInfo, caps valueobjects.CapabilitySet, logger *zap.Logger, opts ...Option) (*Accessor, error) {
	cfg := conn.Config()
	rootVal, ok := cfg["dataSourceRoot"].(string)
	if !ok || rootVal == "" {
		return nil, errors.NewInvalidConfig("filesystem connection requires a dataSourceRoot string")
	}
	root, err := filepath.Abs(rootVal)
	if err != nil {
		return nil, errors.NewInvalidConfig(fmt.Sprintf("cannot resolve dataSourceRoot %q", rootVal))
	}

	a := &Accessor{
		conn:           conn,
		caps:           caps,
		root:           root,
		strictRoot:     boolConfig(cfg, "strictRoot", true),
		followSymlinks: boolConfig(cfg, "followSymlinks", true),
		maxDepth:       10,
		ignore:         newIgnoreMatcher(root),
		logger:         logger,
	}

	watcher, err := newIgnoreWatcher(root, a.ignore, logger)
	if err != nil {
		// The accessor works without hot reload; log and continue.
		logger.Warn("ignore watcher unavailable", zap.String("root", root), zap.Error(err))
	} else {
		a.watcher = watcher
	}

	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Close releases the ignore watcher.
func (a *Accessor) Close() error {
	if a.watcher != nil {
		return a.watcher.Close()
	}
	return nil
}

// ConnectionID identifies the connection this accessor serves.
func (a *Accessor) ConnectionID() string { return a.conn.ID() }

// HasCapability reports whether the provider advertises the capability.
func (a *Accessor) HasCapability(c valueobjects.Capability) bool { return a.caps.Has(c) }

// Root returns the resolved data source root.
func (a *Accessor) Root() string { return a.root }

// resolve maps a URI or bare resource path to an absolute path under the
// root, refusing absolute paths, ".." segments and foreign prefixes. The
// symlink policy is enforced after the lexical checks: with followSymlinks
// disabled any symlink on the path is refused, and with strictRoot the
// physical target must stay under the root.
func (a *Accessor) resolve(uriOrPath string) (abs string, rel string, err error) {
	rel = uriOrPath
	if strings.Contains(uriOrPath, "://") {
		prefix := a.conn.URIPrefix()
		stripped, ok := valueobjects.ResourcePathForPrefix(uriOrPath, prefix)
		if !ok {
			if _, perr := valueobjects.ParseURI(uriOrPath); perr == nil {
				return "", "", errors.NewURINotForConnection(uriOrPath, prefix)
			}
			return "", "", errors.NewInvalidURI(uriOrPath, "malformed URI")
		}
		rel = stripped
	}

	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "/") {
		return "", "", errors.NewInvalidURI(uriOrPath, "absolute paths are not allowed")
	}
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return "", "", errors.NewInvalidURI(uriOrPath, "path traversal segments are not allowed")
		}
	}

	abs = filepath.Clean(filepath.Join(a.root, filepath.FromSlash(rel)))
	if abs != a.root && !strings.HasPrefix(abs, a.root+string(filepath.Separator)) {
		return "", "", errors.NewInvalidURI(uriOrPath, "path escapes the data source root")
	}
	if err := a.checkSymlinkPolicy(uriOrPath, abs); err != nil {
		return "", "", err
	}
	return abs, rel, nil
}

// checkSymlinkPolicy applies the strictRoot and followSymlinks config keys
// to a lexically contained path.
func (a *Accessor) checkSymlinkPolicy(uriOrPath, abs string) error {
	if !a.followSymlinks {
		rel, err := filepath.Rel(a.root, abs)
		if err != nil || rel == "." {
			return nil
		}
		current := a.root
		for _, seg := range strings.Split(rel, string(filepath.Separator)) {
			current = filepath.Join(current, seg)
			info, lerr := os.Lstat(current)
			if lerr != nil {
				// The missing suffix cannot hide a symlink.
				break
			}
			if info.Mode()&os.ModeSymlink != 0 {
				return errors.NewInvalidURI(uriOrPath, "symlinks are not followed")
			}
		}
		return nil
	}

	if !a.strictRoot {
		return nil
	}
	physRoot, err := filepath.EvalSymlinks(a.root)
	if err != nil {
		return nil
	}
	phys, err := evalExistingPrefix(abs)
	if err != nil {
		return nil
	}
	if phys != physRoot && !strings.HasPrefix(phys, physRoot+string(filepath.Separator)) {
		return errors.NewInvalidURI(uriOrPath, "path escapes the data source root")
	}
	return nil
}

// evalExistingPrefix resolves symlinks on the deepest existing ancestor and
// rejoins the missing suffix, so targets about to be created are checked
// too.
func evalExistingPrefix(path string) (string, error) {
	suffix := ""
	current := path
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			return filepath.Join(resolved, suffix), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", err
		}
		suffix = filepath.Join(filepath.Base(current), suffix)
		current = parent
	}
}

// IsResourceWithinDataSource reports whether the URI resolves inside the
// root. Never fails.
func (a *Accessor) IsResourceWithinDataSource(uri string) bool {
	_, _, err := a.resolve(uri)
	return err == nil
}

// ResourceExists reports existence; any error counts as absence.
func (a *Accessor) ResourceExists(ctx context.Context, uri string, opts *ports.ExistsOptions) bool {
	abs, _, err := a.resolve(uri)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	if err != nil {
		return false
	}
	if opts != nil && opts.IsFile != nil && *opts.IsFile != info.Mode().IsRegular() {
		return false
	}
	return true
}

// EnsureResourcePathExists creates any missing parent directories of the
// resource.
func (a *Accessor) EnsureResourcePathExists(ctx context.Context, uri string) error {
	abs, _, err := a.resolve(uri)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return errors.NewIO("mkdir", err)
	}
	return nil
}

// LoadResource reads a file, optionally a byte range of it. IsPartial is
// true iff a range was requested.
func (a *Accessor) LoadResource(ctx context.Context, uri string, opts *ports.LoadOptions) (*ports.LoadResult, error) {
	if !a.caps.Has(valueobjects.CapabilityRead) {
		return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "load")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("load")
	}

	abs, rel, err := a.resolve(uri)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound(rel)
		}
		return nil, errors.NewIO("stat", err)
	}
	if info.IsDir() {
		return nil, errors.NewInvalidURI(uri, "resource is a directory")
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, errors.NewIO("open", err)
	}
	defer f.Close()

	var content []byte
	isPartial := false
	if opts != nil && (opts.RangeStart != nil || opts.RangeEnd != nil) {
		isPartial = true
		start := int64(0)
		if opts.RangeStart != nil {
			start = *opts.RangeStart
		}
		end := info.Size()
		if opts.RangeEnd != nil && *opts.RangeEnd < end {
			end = *opts.RangeEnd
		}
		if start > end {
			return nil, errors.NewInvalidQuery(fmt.Sprintf("range start %d beyond end %d", start, end))
		}
		if _, err := f.Seek(start, io.SeekStart); err != nil {
			return nil, errors.NewIO("seek", err)
		}
		content = make([]byte, end-start)
		n, err := io.ReadFull(f, content)
		if err != nil && err != io.ErrUnexpectedEOF {
			return nil, errors.NewIO("read", err)
		}
		content = content[:n]
	} else {
		content, err = io.ReadAll(f)
		if err != nil {
			return nil, errors.NewIO("read", err)
		}
	}

	mod := info.ModTime()
	return &ports.LoadResult{
		Content:   content,
		IsPartial: isPartial,
		IsBinary:  isBinaryPath(abs),
		Metadata: ports.ResourceMetadata{
			URI:          a.conn.URIPrefix() + rel,
			Name:         filepath.Base(abs),
			Type:         "file",
			Size:         info.Size(),
			LastModified: &mod,
		},
	}, nil
}

// WriteResource writes content to a file.
func (a *Accessor) WriteResource(ctx context.Context, uri string, content []byte, opts *ports.WriteOptions) (*ports.WriteResult, error) {
	if !a.caps.Has(valueobjects.CapabilityWrite) {
		return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "write")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("write")
	}

	abs, rel, err := a.resolve(uri)
	if err != nil {
		return nil, err
	}

	overwrite := opts != nil && opts.Overwrite
	if !overwrite {
		if _, err := os.Stat(abs); err == nil {
			return nil, errors.NewAlreadyExists(rel)
		}
	}
	if opts != nil && opts.CreateMissingDirectories {
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return nil, errors.NewIO("mkdir", err)
		}
	}

	if err := os.WriteFile(abs, content, 0o644); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound(filepath.Dir(rel))
		}
		return nil, errors.NewIO("write", err)
	}

	info, _ := os.Stat(abs)
	meta := ports.ResourceMetadata{
		URI:  a.conn.URIPrefix() + rel,
		Name: filepath.Base(abs),
		Type: "file",
		Size: int64(len(content)),
	}
	if info != nil {
		mod := info.ModTime()
		meta.LastModified = &mod
	}
	return &ports.WriteResult{
		Success:      true,
		URI:          meta.URI,
		Metadata:     meta,
		BytesWritten: int64(len(content)),
	}, nil
}

// EditResource is refused: filesystem sources are not block-structured.
func (a *Accessor) EditResource(ctx context.Context, resourcePath string, ops []portabletext.Operation, opts *ports.EditOptions) (*ports.EditResult, error) {
	return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "editResource")
}

// MoveResource renames a file or directory within the root.
func (a *Accessor) MoveResource(ctx context.Context, src, dst string, opts *ports.MoveOptions) (*ports.MoveResult, error) {
	if !a.caps.Has(valueobjects.CapabilityMove) {
		return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "move")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("move")
	}

	srcAbs, srcRel, err := a.resolve(src)
	if err != nil {
		return nil, err
	}
	dstAbs, dstRel, err := a.resolve(dst)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(srcAbs); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound(srcRel)
		}
		return nil, errors.NewIO("stat", err)
	}
	if _, err := os.Stat(dstAbs); err == nil {
		if opts == nil || !opts.Overwrite {
			return nil, errors.NewAlreadyExists(dstRel)
		}
	}
	if opts != nil && opts.CreateMissingDirectories {
		if err := os.MkdirAll(filepath.Dir(dstAbs), 0o755); err != nil {
			return nil, errors.NewIO("mkdir", err)
		}
	}

	if err := os.Rename(srcAbs, dstAbs); err != nil {
		return nil, errors.NewIO("rename", err)
	}

	info, _ := os.Stat(dstAbs)
	meta := ports.ResourceMetadata{
		URI:  a.conn.URIPrefix() + dstRel,
		Name: filepath.Base(dstAbs),
		Type: "file",
	}
	if info != nil {
		meta.Size = info.Size()
		mod := info.ModTime()
		meta.LastModified = &mod
		if info.IsDir() {
			meta.Type = "directory"
		}
	}
	return &ports.MoveResult{
		Success:     true,
		Source:      a.conn.URIPrefix() + srcRel,
		Destination: meta.URI,
		Metadata:    meta,
	}, nil
}

// DeleteResource removes a file or directory. Deleting a non-empty
// directory requires Recursive.
func (a *Accessor) DeleteResource(ctx context.Context, uri string, opts *ports.DeleteOptions) (*ports.DeleteResult, error) {
	if !a.caps.Has(valueobjects.CapabilityDelete) {
		return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "delete")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("delete")
	}

	abs, rel, err := a.resolve(uri)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound(rel)
		}
		return nil, errors.NewIO("stat", err)
	}

	resourceType := "file"
	if info.IsDir() {
		resourceType = "directory"
		entries, err := os.ReadDir(abs)
		if err != nil {
			return nil, errors.NewIO("readdir", err)
		}
		if len(entries) > 0 && (opts == nil || !opts.Recursive) {
			return nil, errors.NewNotEmpty(rel)
		}
		if err := os.RemoveAll(abs); err != nil {
			return nil, errors.NewIO("remove", err)
		}
	} else {
		if err := os.Remove(abs); err != nil {
			return nil, errors.NewIO("remove", err)
		}
	}

	return &ports.DeleteResult{
		Success: true,
		URI:     a.conn.URIPrefix() + rel,
		Type:    resourceType,
	}, nil
}

func boolConfig(cfg map[string]interface{}, key string, def bool) bool {
	if v, ok := cfg[key].(bool); ok {
		return v
	}
	return def
}
