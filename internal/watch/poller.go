package watch

import (
	iofs "io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"buildcopy/internal/errors"
	"buildcopy/internal/log"

	"github.com/spf13/afero"
)

type fileState struct {
	modTime time.Time
	size    int64
}

// Poller detects changes by walking the watched path at a fixed interval and
// comparing modification times and sizes with the previous walk.
type Poller struct {
	fs       afero.Fs
	root     string
	interval time.Duration
	ignore   bool

	snapshot map[string]fileState
	events   chan Event
	done     chan struct{}

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewPoller starts polling path on fs. The first snapshot is taken before
// NewPoller returns, so every later change is reported.
func NewPoller(fs afero.Fs, path string, cfg Config) (*Poller, error) {
	cfg = cfg.withDefaults()

	root := filepath.Clean(path)
	if _, err := fs.Stat(root); err != nil {
		return nil, statError(root, err)
	}

	p := &Poller{
		fs:       fs,
		root:     root,
		interval: cfg.Interval,
		ignore:   cfg.IgnorePermissionErrors,
		events:   make(chan Event, eventBuffer),
		done:     make(chan struct{}),
	}
	p.snapshot = p.scan()

	p.wg.Add(1)
	go p.loop()

	log.LogWithFields(log.F("path", root), log.F("interval", p.interval.String())).Debug("Polling path")
	return p, nil
}

// Events returns the channel that delivers detected changes.
func (p *Poller) Events() <-chan Event {
	return p.events
}

// Close stops polling and closes the event channel.
func (p *Poller) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
		close(p.events)
		log.LogWithFields(log.F("path", p.root)).Debug("Poller closed")
	})
	return nil
}

func (p *Poller) loop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			if !p.poll() {
				return
			}
		}
	}
}

// poll takes a new snapshot and sends the differences. It returns false when
// the poller was closed while sending.
func (p *Poller) poll() bool {
	current := p.scan()
	now := time.Now()

	for path, state := range current {
		prev, seen := p.snapshot[path]
		var kind EventKind
		switch {
		case !seen:
			kind = Added
		case !state.modTime.Equal(prev.modTime) || state.size != prev.size:
			kind = Changed
		default:
			continue
		}

		select {
		case p.events <- Event{Kind: kind, Path: path, Time: now}:
		case <-p.done:
			return false
		}
	}

	p.snapshot = current
	return true
}

// scan records every regular file below the root.
func (p *Poller) scan() map[string]fileState {
	states := make(map[string]fileState)
	_ = afero.Walk(p.fs, p.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			switch {
			case errors.Classify(err) == errors.ClassMissingSource:
			case p.ignore && errors.Is(err, iofs.ErrPermission):
			default:
				log.LogWithFields(log.F("path", path), log.F("error", err)).Warn("Cannot poll path")
			}
			if info != nil && info.IsDir() && path != p.root {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Mode().IsRegular() {
			states[path] = fileState{modTime: info.ModTime(), size: info.Size()}
		}
		return nil
	})
	return states
}
