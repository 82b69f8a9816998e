// Package match decides whether entry names match glob patterns.
package match

import (
	"strings"

	"buildcopy/internal/errors"
	"buildcopy/pkg/types"

	"github.com/gobwas/glob"
	lru "github.com/hashicorp/golang-lru/v2"
)

const cacheSize = 256

// Matcher matches names against glob patterns, caching compiled patterns.
type Matcher struct {
	cache *lru.Cache[string, glob.Glob]
}

// New creates a Matcher.
func New() *Matcher {
	cache, err := lru.New[string, glob.Glob](cacheSize)
	if err != nil {
		// Only returned for a non-positive size.
		panic(err)
	}
	return &Matcher{cache: cache}
}

var defaultMatcher = New()

// compile returns the compiled form of pattern.
// Patterns are matched against base names, so '*' may match any character.
func (m *Matcher) compile(pattern string) (glob.Glob, error) {
	if g, ok := m.cache.Get(pattern); ok {
		return g, nil
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, errors.NewPatternError("invalid pattern", pattern, err)
	}
	m.cache.Add(pattern, g)
	return g, nil
}

// Matches reports whether name matches any of patterns.
// An empty pattern set matches nothing.
func (m *Matcher) Matches(name string, patterns []string) (bool, error) {
	for _, pattern := range patterns {
		if strings.TrimSpace(pattern) == "" {
			continue
		}
		g, err := m.compile(pattern)
		if err != nil {
			return false, err
		}
		if g.Match(name) {
			return true, nil
		}
	}
	return false, nil
}

// Keep reports whether a top-level entry called name survives filter f.
func (m *Matcher) Keep(name string, f types.Filter) (bool, error) {
	if len(f.Include) > 0 {
		included, err := m.Matches(name, f.Include)
		if err != nil || !included {
			return false, err
		}
	}
	if len(f.Exclude) > 0 {
		excluded, err := m.Matches(name, f.Exclude)
		if err != nil {
			return false, err
		}
		return !excluded, nil
	}
	return true, nil
}

// Validate compiles every pattern of f and returns the first failure.
func (m *Matcher) Validate(f types.Filter) error {
	for _, patterns := range [][]string{f.Include, f.Exclude} {
		for _, pattern := range patterns {
			if _, err := m.compile(pattern); err != nil {
				return err
			}
		}
	}
	return nil
}

// Matches reports whether name matches any of patterns using the shared matcher.
func Matches(name string, patterns []string) (bool, error) {
	return defaultMatcher.Matches(name, patterns)
}

// Keep applies f to name using the shared matcher.
func Keep(name string, f types.Filter) (bool, error) {
	return defaultMatcher.Keep(name, f)
}

// Literal returns a pattern that matches name and nothing else.
func Literal(name string) string {
	return glob.QuoteMeta(name)
}

// Validate checks every pattern of f using the shared matcher.
func Validate(f types.Filter) error {
	return defaultMatcher.Validate(f)
}
