// Package fs turns the paths given to a bulk add into the list of files
// to ingest.
package fs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"mlib/internal/mlib"
)

// catalogExt marks catalog directories, which are never scanned.
const catalogExt = ".mlib"

// ErrUnsupported is returned for paths that are neither regular files nor
// directories.
var ErrUnsupported = errors.New("unsupported file type")

// Scanner expands files and directories into regular files.
type Scanner struct {
	patterns []string
}

// NewScanner creates a Scanner applying the given ignore patterns on top
// of the defaults and each directory's .mlibignore.
func NewScanner(patterns []string) *Scanner {
	return &Scanner{patterns: patterns}
}

// Collect resolves rawPaths to absolute regular files. Files named
// directly are always included. Directories contribute their regular
// files, descending into subdirectories only when recursive is set.
// Each file appears once, in lexical order per input.
func (s *Scanner) Collect(rawPaths []string, recursive bool) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, raw := range rawPaths {
		p, info, err := resolve(raw)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(p)
			continue
		}
		found, err := s.scanDir(p, recursive)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			add(f)
		}
	}
	return files, nil
}

func (s *Scanner) scanDir(root string, recursive bool) ([]string, error) {
	local, err := ReadIgnoreFile(filepath.Join(root, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	matcher := NewIgnoreMatcher(append(append([]string{}, s.patterns...), local...))

	var files []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive || strings.HasSuffix(d.Name(), catalogExt) || matcher.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || matcher.Match(rel, false) {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	return files, nil
}

// resolve makes rawPath absolute and checks it is a regular file or a
// directory. Symlinks are not followed.
func resolve(rawPath string) (string, fs.FileInfo, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return "", nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Lstat(absPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, fmt.Errorf("%s: %w", absPath, mlib.ErrNotExists)
		}
		return "", nil, fmt.Errorf("stat path: %w", err)
	}

	mode := info.Mode()
	if !mode.IsRegular() && !mode.IsDir() {
		return "", nil, fmt.Errorf("%s (%s): %w", absPath, mode.Type(), ErrUnsupported)
	}
	return absPath, info, nil
}
