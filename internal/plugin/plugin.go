// Package plugin runs the configured copy patterns when a build finishes
// and keeps destinations in sync while the build is watched.
package plugin

import (
	"context"
	"sync"

	"buildcopy/internal/copier"
	"buildcopy/internal/errors"
	"buildcopy/internal/log"
	"buildcopy/internal/watch"
	"buildcopy/pkg/types"

	"github.com/spf13/afero"
)

// Name identifies the plugin to the build host.
const Name = "buildcopy-files"

// Build is the part of a build host the plugin hooks into.
type Build interface {
	OnStart(func(ctx context.Context) error)
	OnEnd(func(ctx context.Context) error)
	OnDispose(func())
}

// NotifierFactory opens a change notifier for a source path.
type NotifierFactory func(fs afero.Fs, path string, cfg watch.Config) (watch.Notifier, error)

// Expander expands an absolute glob into the paths it matches.
type Expander func(pattern string) ([]string, error)

// Failure is a source whose copy failed with a fatal error.
type Failure struct {
	Pattern int
	Source  string
	Err     error
}

// Report summarizes one build-end pass.
type Report struct {
	Results  []types.CopyResult
	Failures []Failure
	// Watching is the number of notifiers left armed after the pass.
	Watching int
}

// Plugin copies files for every configured pattern.
type Plugin struct {
	opts   types.Options
	fs     afero.Fs
	engine *copier.Engine
	open   NotifierFactory
	expand Expander

	mu       sync.Mutex
	snapshot *snapshot
	session  *session
	last     Report
}

// Option configures a Plugin
type Option func(*Plugin)

// WithFs sets the filesystem sources are read from and destinations written to.
func WithFs(fs afero.Fs) Option {
	return func(p *Plugin) {
		p.fs = fs
	}
}

// WithEngine replaces the copy engine. Its filesystem takes precedence over WithFs.
func WithEngine(e *copier.Engine) Option {
	return func(p *Plugin) {
		p.engine = e
	}
}

// WithNotifierFactory replaces how change notifiers are opened.
func WithNotifierFactory(f NotifierFactory) Option {
	return func(p *Plugin) {
		p.open = f
	}
}

// WithExpander replaces glob expansion of pattern sources.
func WithExpander(e Expander) Option {
	return func(p *Plugin) {
		p.expand = e
	}
}

// New creates a Plugin for opts.
func New(opts types.Options, options ...Option) *Plugin {
	p := &Plugin{opts: opts}
	for _, opt := range options {
		opt(p)
	}
	if p.engine == nil {
		p.engine = copier.New(p.fs)
	}
	p.fs = p.engine.Fs()
	if p.open == nil {
		p.open = watch.Open
	}
	if p.expand == nil {
		p.expand = globber(p.fs)
	}
	return p
}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return Name
}

// Setup registers the plugin's hooks with b.
func (p *Plugin) Setup(b Build) {
	if p.opts.TrackNew {
		b.OnStart(p.Start)
	}
	b.OnEnd(func(ctx context.Context) error {
		p.Run(ctx)
		return nil
	})
	b.OnDispose(p.Dispose)
}

// Start records the entries of every source so Run can tell which ones
// were created during the build.
func (p *Plugin) Start(ctx context.Context) error {
	snap := newSnapshot()
	for _, pattern := range p.opts.Patterns {
		for _, from := range pattern.From {
			sources, err := p.sources(from)
			if err != nil {
				log.LogWithError(err).Warn("Cannot expand source")
				continue
			}
			for _, source := range sources {
				if err := ctx.Err(); err != nil {
					return err
				}
				snap.record(p.engine, source)
			}
		}
	}

	p.mu.Lock()
	p.snapshot = snap
	p.mu.Unlock()
	return nil
}

// LastReport returns the report of the most recent Run.
func (p *Plugin) LastReport() Report {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Run performs the build-end pass. Patterns run in order and each source is
// copied before the next one starts. Errors are logged and reported, never
// returned: one failing source does not stop the others.
//
// Notifiers armed by the previous Run are closed first.
func (p *Plugin) Run(ctx context.Context) Report {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session != nil {
		p.session.close()
		p.session = nil
	}
	snap := p.snapshot
	p.snapshot = nil

	var report Report
	sess := newSession()

	for i, pattern := range p.opts.Patterns {
		filter := pattern.Filter()
		for _, from := range pattern.From {
			sources, err := p.sources(from)
			if err != nil {
				p.fail(&report, i, from, err)
				continue
			}

			for _, source := range sources {
				if err := ctx.Err(); err != nil {
					log.LogWithError(err).Warn("Build pass cancelled")
					report.Watching = p.keep(sess)
					p.last = report
					return report
				}

				req := copier.CopyRequest{
					Source:       source,
					Destinations: pattern.To,
					Filter:       snap.extend(p.engine, source, filter),
				}
				results, err := p.engine.Copy(ctx, req)
				report.Results = append(report.Results, results...)
				if err != nil {
					p.fail(&report, i, source, err)
					continue
				}

				if p.opts.WatchEnabled(pattern) {
					p.arm(sess, req)
				}
			}
		}
	}

	report.Watching = p.keep(sess)
	p.last = report
	return report
}

// keep publishes sess when it holds armed notifiers.
func (p *Plugin) keep(sess *session) int {
	n := sess.size()
	if n > 0 {
		p.session = sess
	}
	return n
}

func (p *Plugin) fail(report *Report, pattern int, source string, err error) {
	logger := log.LogWithError(err).With(log.F("pattern", pattern), log.F("source", source))
	switch errors.Classify(err) {
	case errors.ClassNone:
		return
	case errors.ClassMissingSource, errors.ClassTransient:
		logger.Debug("Ignoring benign copy error")
		return
	}
	logger.Error("Copy failed")
	report.Failures = append(report.Failures, Failure{Pattern: pattern, Source: source, Err: err})
}

// arm opens a notifier for the request's source and routes its events to a
// change handler. With StopWatching the notifier is closed right away.
func (p *Plugin) arm(sess *session, req copier.CopyRequest) {
	source, err := p.engine.Resolve(req.Source)
	if err != nil {
		log.LogWithError(err).Warn("Cannot watch source")
		return
	}
	logger := log.LogWithFields(log.F("source", source))

	n, err := p.open(p.fs, source, watch.Config{
		Poll:                   p.opts.Poll,
		Interval:               p.opts.Interval,
		IgnorePermissionErrors: p.opts.IgnorePermissionErrors,
	})
	if err != nil {
		if errors.IsBenign(err) {
			logger.WithError(err).Warn("Source not watched")
			return
		}
		logger.WithError(err).Error("Cannot watch source")
		return
	}

	if p.opts.StopWatching {
		if err := n.Close(); err != nil {
			logger.WithError(err).Warn("Error closing watcher")
		}
		logger.Debug("Watcher closed after arming")
		return
	}

	sess.attach(n, copier.NewChangeHandler(p.engine, req))
	logger.Info("Watching for changes")
}

// Dispose closes every armed notifier. Copies already started run to completion.
func (p *Plugin) Dispose() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session != nil {
		p.session.close()
		p.session = nil
	}
	p.snapshot = nil
}
