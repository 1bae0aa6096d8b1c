package filesystem

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// Ignore file names recognized at the data source root.
const (
	gitignoreName = ".gitignore"
	bbignoreName  = ".bb-ignore"
)

// builtinIgnorePatterns are always excluded from walks regardless of the
// root's ignore files.
var builtinIgnorePatterns = []string{
	".git/",
	"node_modules/",
	"dist/",
	"build/",
	"target/",
	"out/",
	".trash/",
	"__pycache__/",
	".DS_Store",
}

// ignoreMatcher compiles the union of built-in defaults, .gitignore and
// .bb-ignore into one matcher. Rebuilt by the watcher when the ignore
// files change.
type ignoreMatcher struct {
	mu      sync.RWMutex
	root    string
	matcher gitignore.Matcher

	gitignoreLoaded bool
	bbignoreLoaded  bool
}

func newIgnoreMatcher(root string) *ignoreMatcher {
	m := &ignoreMatcher{root: root}
	m.Reload()
	return m
}

// Reload recompiles the matcher from disk.
func (m *ignoreMatcher) Reload() {
	patterns := make([]gitignore.Pattern, 0, len(builtinIgnorePatterns))
	for _, p := range builtinIgnorePatterns {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}

	gitPatterns, gitOK := readIgnoreFile(filepath.Join(m.root, gitignoreName))
	bbPatterns, bbOK := readIgnoreFile(filepath.Join(m.root, bbignoreName))
	patterns = append(patterns, gitPatterns...)
	patterns = append(patterns, bbPatterns...)

	m.mu.Lock()
	m.matcher = gitignore.NewMatcher(patterns)
	m.gitignoreLoaded = gitOK
	m.bbignoreLoaded = bbOK
	m.mu.Unlock()
}

// Ignored reports whether a root-relative path is excluded.
func (m *ignoreMatcher) Ignored(relPath string, isDir bool) bool {
	if relPath == "" || relPath == "." {
		return false
	}
	m.mu.RLock()
	matcher := m.matcher
	m.mu.RUnlock()
	return matcher.Match(strings.Split(filepath.ToSlash(relPath), "/"), isDir)
}

// Sources reports which ignore files contributed patterns.
func (m *ignoreMatcher) Sources() (gitignoreLoaded, bbignoreLoaded bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gitignoreLoaded, m.bbignoreLoaded
}

// readIgnoreFile parses one ignore file in the native gitignore format:
// one pattern per line, # comments, ! negation.
func readIgnoreFile(path string) ([]gitignore.Pattern, bool) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	var patterns []gitignore.Pattern
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return patterns, true
}
