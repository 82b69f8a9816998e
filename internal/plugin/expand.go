package plugin

import (
	"path/filepath"
	"strings"

	"buildcopy/internal/errors"
	"buildcopy/internal/log"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
)

const globMeta = "*?[{"

// sources expands from into the sources it names. Entries without glob
// syntax, and globs that match nothing, are returned as given so a missing
// path surfaces as a missing source when copied.
func (p *Plugin) sources(from string) ([]string, error) {
	if !strings.ContainsAny(from, globMeta) {
		return []string{from}, nil
	}
	pattern, err := p.engine.Resolve(from)
	if err != nil {
		return nil, err
	}
	// A literal path that happens to contain glob syntax wins
	if ok, _ := afero.Exists(p.fs, pattern); ok {
		return []string{from}, nil
	}

	matches, err := p.expand(pattern)
	if err != nil {
		return nil, errors.NewPatternError("invalid source glob", from, err)
	}
	if len(matches) == 0 {
		log.LogWithFields(log.F("from", from)).Debug("Source glob matched nothing")
		return []string{from}, nil
	}
	return matches, nil
}

// globber expands globs with doublestar. The OS filesystem is globbed
// directly; other filesystems through an io/fs view rooted at "/".
func globber(fs afero.Fs) Expander {
	if _, ok := fs.(*afero.OsFs); ok {
		return func(pattern string) ([]string, error) {
			return doublestar.FilepathGlob(pattern)
		}
	}

	fsys := afero.NewIOFS(afero.NewBasePathFs(fs, "/"))
	return func(pattern string) ([]string, error) {
		rel := strings.TrimPrefix(filepath.ToSlash(pattern), "/")
		matches, err := doublestar.Glob(fsys, rel)
		if err != nil {
			return nil, err
		}
		for i, m := range matches {
			matches[i] = "/" + filepath.FromSlash(m)
		}
		return matches, nil
	}
}
