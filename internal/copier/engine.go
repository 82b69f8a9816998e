// Package copier copies a source file or directory tree into one or more
// destinations and prunes top-level destination entries rejected by a filter.
//
// Every call to Engine.Copy is one reconciliation pass: the whole source is
// copied first, then entries whose names do not survive the filter are
// removed. Filtering is applied to the source's immediate children only; a
// directory that is filtered out is removed as a unit.
package copier

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"buildcopy/internal/errors"
	"buildcopy/internal/log"
	"buildcopy/internal/match"
	"buildcopy/pkg/types"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// maxParallelDestinations bounds the fan-out over non-overlapping destinations.
const maxParallelDestinations = 4

// CopyRequest describes one source and where its filtered content goes.
type CopyRequest struct {
	Source       string
	Destinations []string
	Filter       types.Filter
}

func (r CopyRequest) clone() CopyRequest {
	return CopyRequest{
		Source:       r.Source,
		Destinations: append([]string(nil), r.Destinations...),
		Filter:       r.Filter.WithInclude(),
	}
}

// Engine performs reconciliation passes on a filesystem.
type Engine struct {
	fs      afero.Fs
	matcher *match.Matcher
	getwd   func() (string, error)
}

// Option configures an Engine
type Option func(*Engine)

// WithMatcher sets the matcher used for filtering.
func WithMatcher(m *match.Matcher) Option {
	return func(e *Engine) {
		e.matcher = m
	}
}

// WithWorkingDir resolves relative paths against a fixed directory instead of
// the process working directory.
func WithWorkingDir(dir string) Option {
	return func(e *Engine) {
		e.getwd = func() (string, error) { return dir, nil }
	}
}

// New creates an Engine operating on fs. A nil fs means the OS filesystem.
func New(fs afero.Fs, opts ...Option) *Engine {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	e := &Engine{
		fs:      fs,
		matcher: match.New(),
		getwd:   os.Getwd,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fs returns the filesystem the engine writes to.
func (e *Engine) Fs() afero.Fs {
	return e.fs
}

// Resolve returns p as an absolute path. Relative paths are resolved against
// the working directory at the time of the call.
func (e *Engine) Resolve(p string) (string, error) {
	if filepath.IsAbs(p) {
		return filepath.Clean(p), nil
	}
	wd, err := e.getwd()
	if err != nil {
		return "", errors.Wrap(err, "cannot determine working directory")
	}
	return filepath.Join(wd, p), nil
}

// Copy runs one reconciliation pass of req.Source into every destination.
//
// A missing source is not an error: it is logged, no destination is created
// and every result is marked skipped. A failing destination does not stop
// the others; each result carries its own error and the returned error
// joins them.
func (e *Engine) Copy(ctx context.Context, req CopyRequest) ([]types.CopyResult, error) {
	if req.Source == "" || len(req.Destinations) == 0 {
		return nil, nil
	}

	source, err := e.Resolve(req.Source)
	if err != nil {
		return nil, err
	}

	results := make([]types.CopyResult, len(req.Destinations))
	for i, dest := range req.Destinations {
		results[i] = types.CopyResult{Source: source, Destination: dest}
	}

	info, err := e.fs.Stat(source)
	if err != nil {
		if errors.Classify(err) == errors.ClassMissingSource {
			log.LogWithError(errors.NewFileError("source does not exist", source, errors.SourceNotFound, err)).
				Warn("Skipping copy")
			for i := range results {
				results[i].Skipped = true
			}
			return results, nil
		}
		return results, errors.NewFileError("cannot access source", source, errors.FileAccessDenied, err)
	}

	dests := make([]string, len(req.Destinations))
	for i, d := range req.Destinations {
		if dests[i], err = e.Resolve(d); err != nil {
			return results, err
		}
		results[i].Destination = dests[i]
	}

	p := &pass{
		id:     uuid.NewString(),
		engine: e,
		source: source,
		info:   info,
		filter: req.Filter,
	}
	logger := log.LogWithFields(log.F("pass", p.id), log.F("source", source))
	logger.Debugf("Reconciling %d destination(s)", len(dests))

	// Destinations are independent: a failing one never cancels the others
	var g errgroup.Group
	if overlapping(dests) {
		g.SetLimit(1)
	} else {
		g.SetLimit(maxParallelDestinations)
	}
	for i, dest := range dests {
		g.Go(func() error {
			res, err := p.reconcile(ctx, dest)
			res.Source, res.Destination = source, dest
			if err != nil {
				switch errors.Classify(err) {
				case errors.ClassMissingSource:
					logger.With(log.F("destination", dest)).Warn("Source vanished during copy")
					res.Skipped = true
				default:
					res.Error = err
				}
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, res := range results {
		if res.Error != nil {
			errs = append(errs, res.Error)
		}
	}
	return results, errors.Join(errs...)
}

// overlapping reports whether any destination contains another.
func overlapping(dests []string) bool {
	for i := range dests {
		for j := range dests {
			if i != j && within(dests[j], dests[i]) {
				return true
			}
		}
	}
	return false
}

// within reports whether p equals dir or lies below it.
func within(p, dir string) bool {
	if p == dir {
		return true
	}
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// pass carries the immutable parameters of one reconciliation pass.
type pass struct {
	id     string
	engine *Engine
	source string
	info   os.FileInfo
	filter types.Filter
}

func (p *pass) reconcile(ctx context.Context, dest string) (types.CopyResult, error) {
	var res types.CopyResult
	fs := p.engine.fs

	if err := fs.MkdirAll(dest, 0755); err != nil {
		return res, errors.NewFileError("cannot create destination", dest, errors.FileCreateFailed, err)
	}

	if p.info.IsDir() {
		if err := p.copyTree(ctx, p.source, dest); err != nil {
			return res, err
		}
	} else {
		target := filepath.Join(dest, p.info.Name())
		if err := p.copyEntry(ctx, p.source, target, p.info); err != nil {
			return res, err
		}
	}
	res.Copied = true

	if p.filter.IsEmpty() {
		return res, nil
	}

	removed, err := p.prune(ctx, dest)
	res.Removed = removed
	return res, err
}

// prune removes destination entries for source children rejected by the filter.
func (p *pass) prune(ctx context.Context, dest string) ([]string, error) {
	fs := p.engine.fs

	entries := []os.FileInfo{p.info}
	if p.info.IsDir() {
		var err error
		entries, err = afero.ReadDir(fs, p.source)
		if err != nil {
			return nil, errors.NewFileError("cannot list source", p.source, errors.FileOperationFailed, err)
		}
	}

	var removed []string
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !entry.IsDir() && !entry.Mode().IsRegular() {
			continue
		}

		keep, err := p.engine.matcher.Keep(entry.Name(), p.filter)
		if err != nil {
			return removed, err
		}
		if keep {
			continue
		}

		target := filepath.Join(dest, entry.Name())
		if err := fs.RemoveAll(target); err != nil {
			fileErr := errors.NewFileError("cannot remove filtered entry", target, errors.KindFor(errors.FileOperationFailed, err), err)
			if fileErr.Kind() == errors.ResourceBusy {
				log.LogWithError(fileErr).Debug("Destination entry is busy, leaving it")
				continue
			}
			return removed, fileErr
		}
		removed = append(removed, entry.Name())
	}
	return removed, nil
}
