// Package watch reports files added to or changed below a watched path.
//
// Two implementations share the Notifier interface: Watcher uses native
// filesystem events through fsnotify, Poller compares periodic snapshots
// of an afero filesystem. Open picks one from a Config.
package watch

import (
	"time"

	"buildcopy/internal/errors"

	"github.com/spf13/afero"
)

const (
	// DefaultInterval is the polling interval used when none is configured.
	DefaultInterval = 200 * time.Millisecond

	// DefaultDebounce is how long a path must stay quiet before its event is emitted.
	DefaultDebounce = 100 * time.Millisecond

	eventBuffer = 64
)

// EventKind is the kind of change observed for a path.
type EventKind int

const (
	Added EventKind = iota + 1
	Changed
)

func (k EventKind) String() string {
	switch k {
	case Added:
		return "added"
	case Changed:
		return "changed"
	default:
		return "unknown"
	}
}

// Event is a single observed change to a regular file.
type Event struct {
	Kind EventKind
	Path string
	Time time.Time
}

// Notifier delivers events for one watched path until closed.
//
// Close is idempotent. Once it returns no further events are delivered and
// the Events channel is closed.
type Notifier interface {
	Events() <-chan Event
	Close() error
}

// Config selects and tunes a Notifier.
type Config struct {
	Poll                   bool
	Interval               time.Duration
	Debounce               time.Duration
	IgnorePermissionErrors bool
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	return c
}

// Open starts watching path, which may be a file or a directory.
//
// Native events are only available on the OS filesystem; any other afero.Fs,
// or cfg.Poll, yields a Poller.
func Open(fs afero.Fs, path string, cfg Config) (Notifier, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if _, native := fs.(*afero.OsFs); native && !cfg.Poll {
		return NewWatcher(path, cfg)
	}
	return NewPoller(fs, path, cfg)
}

func statError(path string, err error) error {
	if errors.Classify(err) == errors.ClassMissingSource {
		return errors.NewFileError("watch path does not exist", path, errors.SourceNotFound, err)
	}
	return errors.NewFileError("cannot access watch path", path, errors.WatchFailed, err)
}
