// Package ignore filters file paths that should be dropped from commit
// enrichment: dotfiles and team-configured glob patterns (lockfiles,
// vendored directories, build artifacts).
package ignore

import (
	"bufio"
	"io"
	"path/filepath"
	"strings"
)

// Filter holds a set of glob patterns loaded from a newline-delimited list.
// A path is rejected if any of its segments begins with "." (dotfile) or it
// matches any pattern.
type Filter struct {
	patterns []string
}

// New builds a Filter from an explicit pattern list.
func New(patterns []string) *Filter {
	f := &Filter{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		f.patterns = append(f.patterns, p)
	}
	return f
}

// Load reads a newline-delimited glob list, skipping blank lines and "#"
// comments.
func Load(r io.Reader) (*Filter, error) {
	var patterns []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return New(patterns), nil
}

// Ignored reports whether path should be dropped from enrichment: it is a
// dotfile (the base name, or any path segment, begins with "."), or it
// matches one of the filter's glob patterns by suffix or full-path glob
// semantics. Pure function; no state mutated.
func (f *Filter) Ignored(path string) bool {
	if isDotfile(path) {
		return true
	}
	for _, pattern := range f.patterns {
		if matches(pattern, path) {
			return true
		}
	}
	return false
}

func isDotfile(path string) bool {
	for _, segment := range strings.Split(filepath.ToSlash(path), "/") {
		if strings.HasPrefix(segment, ".") && segment != "" {
			return true
		}
	}
	return false
}

// matches reports whether pattern matches path, trying three things in
// order: a full-path glob, a basename glob (so "*.lock" matches regardless
// of directory), and a directory-segment match (so "vendor" or
// "node_modules" matches anywhere in the path, mirroring how teams usually
// write these lists).
func matches(pattern, path string) bool {
	path = filepath.ToSlash(path)
	pattern = strings.TrimSuffix(pattern, "/")

	if ok, err := filepath.Match(pattern, path); err == nil && ok {
		return true
	}
	if ok, err := filepath.Match(pattern, filepath.Base(path)); err == nil && ok {
		return true
	}
	if !strings.ContainsAny(pattern, "*?[") {
		for _, segment := range strings.Split(path, "/") {
			if segment == pattern {
				return true
			}
		}
	}
	return false
}
