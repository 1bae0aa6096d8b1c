package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"bb-datasources/application/ports"
	"bb-datasources/domain/core/valueobjects"
	"bb-datasources/pkg/errors"
)

const (
	// maxSnippetsPerFile caps how many match windows one file contributes.
	maxSnippetsPerFile = 5
	// snippetContext is the number of context characters on each side of a
	// match.
	snippetContext = 40
)

// SearchResources compiles the query into a regex (case-insensitive unless
// CaseSensitive), selects candidate files by resource pattern, and emits up
// to five context snippets per matching file. Failures on individual files
// are logged and skipped; the overall result is partial with ErrorMessage
// populated.
func (a *Accessor) SearchResources(ctx context.Context, query string, opts *ports.SearchOptions) (*ports.SearchResult, error) {
	if !a.caps.Has(valueobjects.CapabilitySearch) {
		return nil, errors.NewCapabilityUnsupported(a.conn.ProviderType().String(), "search")
	}

	pattern := query
	if opts != nil && opts.ContentPattern != "" {
		pattern = opts.ContentPattern
	}
	if pattern == "" && (opts == nil || opts.ResourcePattern == "") {
		return nil, errors.NewInvalidQuery("search requires a query, content pattern or resource pattern")
	}

	var re *regexp.Regexp
	if pattern != "" {
		expr := pattern
		if opts == nil || !opts.CaseSensitive {
			expr = "(?i)" + expr
		}
		var err error
		re, err = regexp.Compile(expr)
		if err != nil {
			return nil, errors.NewInvalidQuery(fmt.Sprintf("invalid search pattern %q: %v", pattern, err))
		}
	}

	entries, err := a.walk(ctx, a.root, a.maxDepth)
	if err != nil {
		return nil, err
	}

	maxFiles := 0
	if opts != nil && opts.PageSize > 0 {
		maxFiles = opts.PageSize
	}

	result := &ports.SearchResult{Matches: []ports.SearchMatch{}}
	var skipped []string

	for _, we := range entries {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewCancelled("search")
		}
		if we.entry.IsDir() || isBinaryPath(we.rel) {
			continue
		}
		if opts != nil && opts.ResourcePattern != "" {
			ok, matchErr := doublestar.Match(opts.ResourcePattern, we.rel)
			if matchErr != nil {
				return nil, errors.NewInvalidQuery(fmt.Sprintf("invalid resource pattern %q: %v", opts.ResourcePattern, matchErr))
			}
			if !ok {
				continue
			}
		}
		if opts != nil && (opts.DateAfter != nil || opts.DateBefore != nil) {
			info, infoErr := we.entry.Info()
			if infoErr != nil {
				continue
			}
			if opts.DateAfter != nil && info.ModTime().Before(*opts.DateAfter) {
				continue
			}
			if opts.DateBefore != nil && info.ModTime().After(*opts.DateBefore) {
				continue
			}
		}

		meta := a.entryMetadata(we)
		if re == nil {
			// Resource-pattern-only search: every selected file matches.
			result.Matches = append(result.Matches, ports.SearchMatch{Resource: meta})
			result.TotalMatches++
		} else {
			content, readErr := os.ReadFile(filepath.Join(a.root, filepath.FromSlash(we.rel)))
			if readErr != nil {
				a.logger.Debug("skipping unreadable file during search",
					zap.String("path", we.rel), zap.Error(readErr))
				skipped = append(skipped, we.rel)
				continue
			}
			contextLines := 0
			if opts != nil {
				contextLines = opts.ContextLines
			}
			snippets := extractSnippets(string(content), re, contextLines)
			if len(snippets) == 0 {
				continue
			}
			result.Matches = append(result.Matches, ports.SearchMatch{
				Resource: meta,
				Snippets: snippets,
			})
			result.TotalMatches += len(snippets)
		}

		if maxFiles > 0 && len(result.Matches) >= maxFiles {
			break
		}
	}

	if len(skipped) > 0 {
		result.ErrorMessage = fmt.Sprintf("skipped %d unreadable file(s): %s",
			len(skipped), strings.Join(skipped, ", "))
	}
	return result, nil
}

// extractSnippets returns up to maxSnippetsPerFile windows. With
// contextLines zero each window is the matched text with snippetContext
// characters of leading and trailing context and ellipses when truncated;
// a positive contextLines switches to whole-line windows with that many
// lines around the match.
func extractSnippets(content string, re *regexp.Regexp, contextLines int) []ports.SearchSnippet {
	locations := re.FindAllStringIndex(content, maxSnippetsPerFile)
	if locations == nil {
		return nil
	}
	if contextLines > 0 {
		return lineSnippets(content, locations, contextLines)
	}

	snippets := make([]ports.SearchSnippet, 0, len(locations))
	for _, loc := range locations {
		start := loc[0] - snippetContext
		end := loc[1] + snippetContext
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

		line := 1 + strings.Count(content[:loc[0]], "\n")
		snippets = append(snippets, ports.SearchSnippet{
			Text:       leading + content[start:end] + trailing,
			LineNumber: line,
		})
	}
	return snippets
}

// lineSnippets emits whole-line windows, contextLines lines around each
// match.
func lineSnippets(content string, locations [][]int, contextLines int) []ports.SearchSnippet {
	lines := strings.Split(content, "\n")
	snippets := make([]ports.SearchSnippet, 0, len(locations))
	for _, loc := range locations {
		first := strings.Count(content[:loc[0]], "\n")
		last := strings.Count(content[:loc[1]], "\n")
		start := first - contextLines
		if start < 0 {
			start = 0
		}
		end := last + contextLines
		if end > len(lines)-1 {
			end = len(lines) - 1
		}
		snippets = append(snippets, ports.SearchSnippet{
			Text:       strings.Join(lines[start:end+1], "\n"),
			LineNumber: first + 1,
		})
	}
	return snippets
}
