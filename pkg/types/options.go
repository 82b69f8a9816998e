package types

import "time"

// Options is the top-level configuration of the copy plugin.
type Options struct {
	Patterns []Pattern `yaml:"patterns"`

	// Watch is the master switch; a pattern's own Watch flag only counts when
	// this is set too.
	Watch bool `yaml:"watch"`

	// StopWatching arms each watcher and deregisters it right away, so a
	// build performs its reconciliation pass without a long-lived watch.
	StopWatching bool `yaml:"stop_watching"`

	// TrackNew sweeps entries created in a source during the build into that
	// pattern's include list for the build-end pass.
	TrackNew bool `yaml:"track_new"`

	// Poll selects interval polling instead of native filesystem events.
	Poll bool `yaml:"poll"`

	// Interval is the polling interval.
	Interval time.Duration `yaml:"interval"`

	// IgnorePermissionErrors skips unreadable paths while watching.
	IgnorePermissionErrors bool `yaml:"ignore_permission_errors"`
}

// WatchEnabled reports whether the pattern participates in incremental re-copy.
func (o Options) WatchEnabled(p Pattern) bool {
	return o.Watch && p.Watch
}
