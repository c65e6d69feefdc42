package fs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFileName is read from the root of every directory being scanned.
const IgnoreFileName = ".mlibignore"

// defaultIgnorePatterns are always applied regardless of config or .mlibignore.
var defaultIgnorePatterns = []string{IgnoreFileName, ".DS_Store", "Thumbs.db", "desktop.ini"}

// ignoreRule is one parsed pattern line.
type ignoreRule struct {
	glob     string
	anchored bool // contains '/': matched against the relative path, else the basename
	negate   bool // leading '!': re-includes what earlier rules excluded
	dirOnly  bool // trailing '/': applies to directories only
}

// IgnoreMatcher checks scanned paths against ignore rules. The last rule
// that matches a path decides, so a later "!keep.jpg" overrides "*.jpg".
type IgnoreMatcher struct {
	rules []ignoreRule
}

// NewIgnoreMatcher creates an IgnoreMatcher from the default patterns
// followed by rawPatterns. Blank lines and lines starting with '#' are
// skipped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	for _, raw := range append(append([]string{}, defaultIgnorePatterns...), rawPatterns...) {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		var r ignoreRule
		if strings.HasPrefix(raw, "!") {
			r.negate = true
			raw = raw[1:]
		}
		if strings.HasSuffix(raw, "/") {
			r.dirOnly = true
			raw = strings.TrimRight(raw, "/")
		}
		if raw == "" {
			continue
		}
		r.glob = strings.TrimPrefix(raw, "/")
		r.anchored = strings.Contains(raw, "/")
		m.rules = append(m.rules, r)
	}
	return m
}

// Match reports whether relativePath, relative to the scanned root, is
// ignored.
func (m *IgnoreMatcher) Match(relativePath string, isDir bool) bool {
	if relativePath == "" {
		return false
	}

	normalized := filepath.ToSlash(relativePath)
	basename := filepath.Base(relativePath)

	ignored := false
	for _, r := range m.rules {
		if r.dirOnly && !isDir {
			continue
		}
		subject := basename
		if r.anchored {
			subject = normalized
		}
		matched, err := filepath.Match(r.glob, subject)
		if err != nil || !matched {
			continue
		}
		ignored = !r.negate
	}
	return ignored
}

// ReadIgnoreFile reads an ignore file and returns its raw lines.
// Returns nil and no error if the file does not exist.
func ReadIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return lines, nil
}
