package filesystem

import (
	"context"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"bb-datasources/application/ports"
	"bb-datasources/domain/core/valueobjects"
	"bb-datasources/pkg/errors"
)

const defaultPageSize = 100

// walkEntry is one discovered resource before pagination.
type walkEntry struct {
	rel   string
	entry fs.DirEntry
}

// ListResources walks the tree under the requested path up to the maximum
// depth, skipping ignored entries, and returns one page. The page token is
// the decimal start index of the next page; an unparseable token starts
// over from the beginning.
func (a *Accessor) ListResources(ctx context.Context, opts *ports.ListOptions) (*ports.ListResult, error) {
	if !a.caps.Has(valueobjects.CapabilityList) {
		return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "list")
	}

	startRel := ""
	depth := a.maxDepth
	pageSize := defaultPageSize
	startIndex := 0
	if opts != nil {
		if opts.Path != "" {
			startRel = opts.Path
		}
		if opts.Depth > 0 {
			depth = opts.Depth
		}
		if opts.PageSize > 0 {
			pageSize = opts.PageSize
		}
		if opts.PageToken != "" {
			if n, err := strconv.Atoi(opts.PageToken); err == nil && n >= 0 {
				startIndex = n
			}
		}
	}

	startAbs := a.root
	if startRel != "" {
		abs, _, err := a.resolve(startRel)
		if err != nil {
			return nil, err
		}
		startAbs = abs
	}

	entries, err := a.walk(ctx, startAbs, depth)
	if err != nil {
		return nil, err
	}

	result := &ports.ListResult{Resources: []ports.ResourceMetadata{}}
	if startIndex >= len(entries) {
		return result, nil
	}

	end := startIndex + pageSize
	if end > len(entries) {
		end = len(entries)
	}
	for _, we := range entries[startIndex:end] {
		result.Resources = append(result.Resources, a.entryMetadata(we))
	}
	if end < len(entries) {
		result.NextPageToken = strconv.Itoa(end)
	}
	return result, nil
}

// walk collects the tree under startAbs in lexical order, applying the
// ignore matcher and the depth cap. No global lock is taken.
func (a *Accessor) walk(ctx context.Context, startAbs string, maxDepth int) ([]walkEntry, error) {
	var out []walkEntry

	err := filepath.WalkDir(startAbs, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			// Unreadable subtrees are logged and elided.
			a.logger.Debug("skipping unreadable entry", zap.String("path", path), zap.Error(err))
			return nil
		}
		if path == startAbs {
			return nil
		}

		rel, relErr := filepath.Rel(a.root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if a.ignore.Ignored(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		relToStart, _ := filepath.Rel(startAbs, path)
		if depthOf(relToStart) > maxDepth {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		out = append(out, walkEntry{rel: rel, entry: d})
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewCancelled("list")
		}
		return nil, errors.NewIO("walk", err)
	}
	return out, nil
}

func (a *Accessor) entryMetadata(we walkEntry) ports.ResourceMetadata {
	meta := ports.ResourceMetadata{
		URI:  a.conn.URIPrefix() + we.rel,
		Name: filepath.Base(we.rel),
		Type: "file",
	}
	if we.entry.IsDir() {
		meta.Type = "directory"
	}

	info, err := we.entry.Info()
	if err != nil {
		a.logger.Debug("cannot stat entry", zap.String("path", we.rel), zap.Error(err))
		meta.Description = "(metadata unavailable)"
		return meta
	}
	meta.Size = info.Size()
	mod := info.ModTime()
	meta.LastModified = &mod
	return meta
}

// depthOf counts the path components of a slash-relative path.
func depthOf(rel string) int {
	rel = filepath.ToSlash(rel)
	if rel == "" || rel == "." {
		return 0
	}
	return strings.Count(rel, "/") + 1
}
