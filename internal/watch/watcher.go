package watch

import (
	iofs "io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"buildcopy/internal/errors"
	"buildcopy/internal/log"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors a file or a directory tree using fsnotify.
type Watcher struct {
	root string
	// file is set when a single file is watched through its parent directory
	file string
	cfg  Config

	fsWatcher *fsnotify.Watcher
	events    chan Event
	done      chan struct{}

	// Guards directories, pending and closed
	mu          sync.Mutex
	directories []string
	pending     map[string]*pendingEvent
	closed      bool

	wg        sync.WaitGroup
	closeOnce sync.Once
}

type pendingEvent struct {
	kind  EventKind
	timer *time.Timer
}

// NewWatcher starts watching path. Directories are watched recursively and
// subdirectories created later are picked up as they appear.
func NewWatcher(path string, cfg Config) (*Watcher, error) {
	cfg = cfg.withDefaults()

	root, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.NewFileError("invalid watch path", path, errors.InvalidPath, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, statError(root, err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}

	w := &Watcher{
		root:      root,
		cfg:       cfg,
		fsWatcher: fsWatcher,
		events:    make(chan Event, eventBuffer),
		done:      make(chan struct{}),
		pending:   make(map[string]*pendingEvent),
	}

	if info.IsDir() {
		err = w.addRecursive(root, false)
	} else {
		w.file = root
		err = w.addDirectory(filepath.Dir(root))
	}
	if err != nil {
		fsWatcher.Close()
		return nil, err
	}

	w.wg.Add(1)
	go w.loop()

	log.LogWithFields(log.F("path", root)).Debug("Watching path")
	return w, nil
}

// Events returns the channel that delivers debounced events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Directories returns the directories currently being watched.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	dirs := make([]string, len(w.directories))
	copy(dirs, w.directories)
	return dirs
}

// Close stops watching. Events still waiting for their debounce interval
// are discarded.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		for path, p := range w.pending {
			p.timer.Stop()
			delete(w.pending, path)
		}
		w.mu.Unlock()

		close(w.done)
		if cerr := w.fsWatcher.Close(); cerr != nil {
			err = errors.Wrap(cerr, "failed to close fsnotify watcher")
		}
		w.wg.Wait()
		close(w.events)
		log.LogWithFields(log.F("path", w.root)).Debug("Watcher closed")
	})
	return err
}

func (w *Watcher) addDirectory(dir string) error {
	if err := w.fsWatcher.Add(dir); err != nil {
		return errors.NewFileError("failed to watch directory", dir, errors.WatchFailed, err)
	}
	w.mu.Lock()
	w.directories = append(w.directories, dir)
	w.mu.Unlock()
	return nil
}

// addRecursive watches root and every directory below it. When announce is
// set, regular files found on the way are reported as added; they may have
// been written before the watch on their directory existed.
func (w *Watcher) addRecursive(root string, announce bool) error {
	return filepath.WalkDir(root, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			if path != root && w.tolerable(err) {
				log.LogWithFields(log.F("path", path), log.F("error", err)).Debug("Skipping unreadable path")
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			return errors.NewFileError("cannot walk watch path", path, errors.WatchFailed, err)
		}
		if d.IsDir() {
			if err := w.addDirectory(path); err != nil {
				if path != root && w.tolerable(err) {
					return filepath.SkipDir
				}
				return err
			}
			return nil
		}
		if announce && d.Type().IsRegular() {
			w.schedule(path, Added)
		}
		return nil
	})
}

func (w *Watcher) tolerable(err error) bool {
	if errors.Classify(err) == errors.ClassMissingSource {
		return true
	}
	return w.cfg.IgnorePermissionErrors && errors.Is(err, iofs.ErrPermission)
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			if w.tolerable(err) {
				log.LogWithFields(log.F("error", err)).Debug("Ignoring watcher error")
				continue
			}
			log.LogWithFields(log.F("path", w.root), log.F("error", err)).Error("fsnotify watcher error")
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	var kind EventKind
	switch {
	case event.Has(fsnotify.Create):
		kind = Added
	case event.Has(fsnotify.Write):
		kind = Changed
	default:
		return
	}

	if w.file != "" && event.Name != w.file {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		// Gone again before we looked
		if !os.IsNotExist(err) && !w.tolerable(err) {
			log.LogWithFields(log.F("file", event.Name), log.F("error", err)).Error("Error stating file")
		}
		return
	}

	if info.IsDir() {
		if kind == Added && w.file == "" {
			if err := w.addRecursive(event.Name, true); err != nil {
				log.LogWithError(err).Warn("Cannot watch new directory")
			}
		}
		return
	}
	if !info.Mode().IsRegular() {
		return
	}
	w.schedule(event.Name, kind)
}

// schedule (re)starts the debounce timer for path. An Added event absorbs
// later Changed events for the same path.
func (w *Watcher) schedule(path string, kind EventKind) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}

	if p, ok := w.pending[path]; ok {
		p.timer.Stop()
		if p.kind == Added {
			kind = Added
		}
	}
	w.pending[path] = &pendingEvent{
		kind: kind,
		timer: time.AfterFunc(w.cfg.Debounce, func() {
			w.emit(path)
		}),
	}
}

func (w *Watcher) emit(path string) {
	w.mu.Lock()
	p, ok := w.pending[path]
	if w.closed || !ok {
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	w.wg.Add(1)
	w.mu.Unlock()
	defer w.wg.Done()

	select {
	case w.events <- Event{Kind: p.kind, Path: path, Time: time.Now()}:
	case <-w.done:
	}
}
