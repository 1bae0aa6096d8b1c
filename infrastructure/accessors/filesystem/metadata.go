package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"bb-datasources/application/ports"
)

// veryLargeFileSize flags files at or above this size in the content
// analysis summary.
const veryLargeFileSize = 10 * 1024 * 1024

// GetMetadata summarizes the data source: totals, depth, size extremes,
// extension histogram, modification time range, a write-capability probe
// and a content analysis. Best-effort: individual failures become Notes,
// never errors.
func (a *Accessor) GetMetadata(ctx context.Context) *ports.DataSourceMetadata {
	meta := &ports.DataSourceMetadata{
		ProviderType:   a.conn.ProviderType().String(),
		ConnectionID:   a.conn.ID(),
		FileExtensions: map[string]int{},
	}
	meta.GitignoreApplied, meta.BBIgnoreApplied = a.ignore.Sources()

	entries, err := a.walk(ctx, a.root, a.maxDepth)
	if err != nil {
		meta.Notes = append(meta.Notes, "walk failed: "+err.Error())
		return meta
	}

	for _, we := range entries {
		if we.entry.IsDir() {
			meta.TotalDirectories++
		} else {
			meta.TotalFiles++
		}
		if d := depthOf(we.rel); d > meta.DeepestDepth {
			meta.DeepestDepth = d
		}

		info, infoErr := we.entry.Info()
		if infoErr != nil {
			meta.Notes = append(meta.Notes, we.rel+": (metadata unavailable)")
			continue
		}
		if info.IsDir() {
			continue
		}

		if ext := strings.ToLower(filepath.Ext(we.rel)); ext != "" {
			meta.FileExtensions[ext]++
		}
		if info.Size() > meta.LargestFileSize {
			meta.LargestFileSize = info.Size()
		}
		mod := info.ModTime()
		if meta.OldestModified == nil || mod.Before(*meta.OldestModified) {
			t := mod
			meta.OldestModified = &t
		}
		if meta.NewestModified == nil || mod.After(*meta.NewestModified) {
			t := mod
			meta.NewestModified = &t
		}

		switch {
		case info.Size() == 0:
			meta.EmptyFileCount++
		case isBinaryPath(we.rel):
			meta.BinaryFileCount++
		default:
			meta.TextFileCount++
		}
		if info.Size() >= veryLargeFileSize {
			meta.HasVeryLargeFiles = true
		}
	}

	meta.CanWrite = a.probeWrite()
	return meta
}

// probeWrite attempts to create and delete a small test file in the root.
func (a *Accessor) probeWrite() bool {
	probe := filepath.Join(a.root, ".bb-metadata-probe-"+time.Now().Format("20060102150405"))
	if err := os.WriteFile(probe, []byte("probe"), 0o644); err != nil {
		a.logger.Debug("write probe failed", zap.Error(err))
		return false
	}
	if err := os.Remove(probe); err != nil {
		a.logger.Debug("write probe cleanup failed", zap.Error(err))
	}
	return true
}
