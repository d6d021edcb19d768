package watcher

import (
	"path/filepath"
	"strings"
	"sync"
)

// IgnorePatterns manages gitignore-style ignore rules for the watcher.
// Supported forms:
//   - *.log          match files by base name
//   - build/         match a directory (and everything under it)
//   - /out           match only at the watched root
//   - !keep.log      negate an earlier match
type IgnorePatterns struct {
	mu       sync.RWMutex
	patterns []ignorePattern
}

// ignorePattern represents a single ignore rule.
type ignorePattern struct {
	pattern  string
	negation bool // pattern started with !
	dirOnly  bool // pattern ended with /
	rooted   bool // pattern started with /
}

// NewIgnorePatterns creates a matcher from the given patterns.
// Empty patterns and comment lines are skipped.
func NewIgnorePatterns(patterns ...string) *IgnorePatterns {
	ip := &IgnorePatterns{}
	for _, p := range patterns {
		ip.Add(p)
	}
	return ip
}

// Add adds one pattern.
func (ip *IgnorePatterns) Add(pattern string) {
	pattern = strings.TrimRight(pattern, " \t")
	if pattern == "" || strings.HasPrefix(pattern, "#") {
		return
	}

	p := ignorePattern{}
	if strings.HasPrefix(pattern, "!") {
		p.negation = true
		pattern = pattern[1:]
	}
	if strings.HasSuffix(pattern, "/") {
		p.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		p.rooted = true
		pattern = pattern[1:]
	}
	p.pattern = pattern

	ip.mu.Lock()
	ip.patterns = append(ip.patterns, p)
	ip.mu.Unlock()
}

// Len returns the number of active patterns.
func (ip *IgnorePatterns) Len() int {
	ip.mu.RLock()
	defer ip.mu.RUnlock()
	return len(ip.patterns)
}

// Match reports whether the path is ignored. Later patterns win, so a
// negation after a match un-ignores the path.
func (ip *IgnorePatterns) Match(path string, isDir bool) bool {
	ip.mu.RLock()
	defer ip.mu.RUnlock()

	normalized := filepath.ToSlash(path)
	ignored := false
	for _, p := range ip.patterns {
		if p.dirOnly && !isDir && !ip.underDirMatch(normalized, p.pattern) {
			continue
		}
		if ip.matches(normalized, p) {
			ignored = !p.negation
		}
	}
	return ignored
}

// matches checks one pattern against a slash-normalized path.
func (ip *IgnorePatterns) matches(path string, p ignorePattern) bool {
	if p.rooted {
		rel := strings.TrimPrefix(path, "/")
		ok, err := filepath.Match(p.pattern, rel)
		return err == nil && ok
	}

	// Match against the base name and against every path segment run,
	// so "build" matches "/src/build" and "build/x" hits via the
	// directory rule below.
	if ok, err := filepath.Match(p.pattern, filepath.Base(path)); err == nil && ok {
		return true
	}
	if p.dirOnly && ip.underDirMatch(path, p.pattern) {
		return true
	}
	return false
}

// underDirMatch reports whether any directory segment of path matches
// the pattern, which makes "build/" ignore files inside build trees.
func (ip *IgnorePatterns) underDirMatch(path, pattern string) bool {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for _, seg := range segments[:max(len(segments)-1, 0)] {
		if ok, err := filepath.Match(pattern, seg); err == nil && ok {
			return true
		}
	}
	return false
}
