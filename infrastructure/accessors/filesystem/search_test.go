package filesystem

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bb-datasources/application/ports"
	"bb-datasources/pkg/errors"
)

func TestSearchResources(t *testing.T) {
	a, root := newTestAccessor(t)
	writeFile(t, root, "notes.md", "the needle is here\nand a second needle too")
	writeFile(t, root, "other.md", "nothing interesting")
	writeFile(t, root, "image.png", "needle") // binary, never searched
	ctx := context.Background()

	result, err := a.SearchResources(ctx, "needle", nil)
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, 2, result.TotalMatches)
	assert.Equal(t, "notes.md", result.Matches[0].Resource.Name)
	assert.Equal(t, 1, result.Matches[0].Snippets[0].LineNumber)
	assert.Equal(t, 2, result.Matches[0].Snippets[1].LineNumber)
}

func TestSearchCaseSensitivity(t *testing.T) {
	a, root := newTestAccessor(t)
	writeFile(t, root, "f.txt", "Needle")
	ctx := context.Background()

	result, err := a.SearchResources(ctx, "needle", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalMatches, "case-insensitive by default")

	result, err = a.SearchResources(ctx, "needle", &ports.SearchOptions{CaseSensitive: true})
	require.NoError(t, err)
	assert.Zero(t, result.TotalMatches)
}

func TestSearchSnippetEllipses(t *testing.T) {
	a, root := newTestAccessor(t)
	// Match at offset 100 of a 300-char line: truncated on both sides.
	content := strings.Repeat("a", 100) + "needle" + strings.Repeat("b", 200)
	writeFile(t, root, "long.txt", content)
	// Match at the start of a short file: no truncation anywhere.
	writeFile(t, root, "short.txt", "needle end")
	ctx := context.Background()

	result, err := a.SearchResources(ctx, "needle", nil)
	require.NoError(t, err)
	require.Len(t, result.Matches, 2)

	byName := map[string]ports.SearchMatch{}
	for _, m := range result.Matches {
		byName[m.Resource.Name] = m
	}

	long := byName["long.txt"].Snippets[0].Text
	assert.True(t, strings.HasPrefix(long, "..."))
	assert.True(t, strings.HasSuffix(long, "..."))
	assert.Contains(t, long, "needle")
	// 40 chars of context either side plus the match and the ellipses.
	assert.Equal(t, 3+40+len("needle")+40+3, len(long))

	short := byName["short.txt"].Snippets[0].Text
	assert.Equal(t, "needle end", short)
}

func TestSearchSnippetCap(t *testing.T) {
	a, root := newTestAccessor(t)
	writeFile(t, root, "many.txt", strings.Repeat("needle ", 20))

	result, err := a.SearchResources(context.Background(), "needle", nil)
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Len(t, result.Matches[0].Snippets, 5, "at most five snippets per file")
}

func TestSearchResourcePattern(t *testing.T) {
	a, root := newTestAccessor(t)
	writeFile(t, root, "src/a.go", "needle")
	writeFile(t, root, "docs/a.md", "needle")
	ctx := context.Background()

	result, err := a.SearchResources(ctx, "needle", &ports.SearchOptions{ResourcePattern: "**/*.go"})
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "a.go", result.Matches[0].Resource.Name)

	// Resource-pattern-only search matches files without reading them.
	result, err = a.SearchResources(ctx, "", &ports.SearchOptions{ResourcePattern: "docs/*.md"})
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Empty(t, result.Matches[0].Snippets)
}

func TestSearchInvalidInputs(t *testing.T) {
	a, _ := newTestAccessor(t)
	ctx := context.Background()

	_, err := a.SearchResources(ctx, "", nil)
	assert.True(t, errors.IsKind(err, errors.KindInvalidQuery))

	_, err = a.SearchResources(ctx, "(", nil)
	assert.True(t, errors.IsKind(err, errors.KindInvalidQuery))
}

func TestSearchDateFilter(t *testing.T) {
	a, root := newTestAccessor(t)
	writeFile(t, root, "old.txt", "needle")

	future := time.Now().Add(time.Hour)
	result, err := a.SearchResources(context.Background(), "needle", &ports.SearchOptions{DateAfter: &future})
	require.NoError(t, err)
	assert.Empty(t, result.Matches)
}

func TestSearchPageSizeCapsFiles(t *testing.T) {
	a, root := newTestAccessor(t)
	writeFile(t, root, "a.txt", "needle")
	writeFile(t, root, "b.txt", "needle")
	writeFile(t, root, "c.txt", "needle")

	result, err := a.SearchResources(context.Background(), "needle", &ports.SearchOptions{PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, result.Matches, 2)
}

func TestExtractSnippetsLineNumbers(t *testing.T) {
	re := regexp.MustCompile("target")
	snippets := extractSnippets("first\nsecond target\nthird\nfourth target", re, 0)
	require.Len(t, snippets, 2)
	assert.Equal(t, 2, snippets[0].LineNumber)
	assert.Equal(t, 4, snippets[1].LineNumber)
}

func TestSearchContextLines(t *testing.T) {
	a, root := newTestAccessor(t)
	writeFile(t, root, "notes.txt", "one\ntwo\nthree target\nfour\nfive")

	result, err := a.SearchResources(context.Background(), "target",
		&ports.SearchOptions{ContextLines: 1})
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	require.Len(t, result.Matches[0].Snippets, 1)
	snippet := result.Matches[0].Snippets[0]
	assert.Equal(t, "two\nthree target\nfour", snippet.Text)
	assert.Equal(t, 3, snippet.LineNumber)

	// A window is clamped at the file's edges.
	snippets := extractSnippets("first target\nsecond", regexp.MustCompile("target"), 3)
	require.Len(t, snippets, 1)
	assert.Equal(t, "first target\nsecond", snippets[0].Text)
	assert.Equal(t, 1, snippets[0].LineNumber)
}
