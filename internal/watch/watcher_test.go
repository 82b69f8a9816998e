package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"buildcopy/internal/errors"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eventTimeout = 3 * time.Second

var testConfig = Config{Debounce: 20 * time.Millisecond, Interval: 20 * time.Millisecond}

// waitFor reads events until one for path arrives or the timeout expires.
func waitFor(t *testing.T, ch <-chan Event, path string) Event {
	t.Helper()
	timeout := time.After(eventTimeout)
	for {
		select {
		case ev, ok := <-ch:
			require.True(t, ok, "event channel closed while waiting for %s", path)
			if ev.Path == path {
				return ev
			}
		case <-timeout:
			t.Fatalf("timeout waiting for event on %s", path)
		}
	}
}

// expectQuiet fails if an event for path arrives within d.
func expectQuiet(t *testing.T, ch <-chan Event, path string, d time.Duration) {
	t.Helper()
	timeout := time.After(d)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			assert.NotEqual(t, path, ev.Path, "unexpected %s event", ev.Kind)
		case <-timeout:
			return
		}
	}
}

func TestWatcherDetectsCreateAndWrite(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir, testConfig)
	require.NoError(t, err)
	defer w.Close()

	path := filepath.Join(dir, "testfile.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	ev := waitFor(t, w.Events(), path)
	assert.Equal(t, Added, ev.Kind)
	assert.False(t, ev.Time.IsZero())

	// Let the first event settle before writing again
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0644))

	ev = waitFor(t, w.Events(), path)
	assert.Equal(t, Changed, ev.Kind)
}

func TestWatcherDebouncesRapidWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "busy.txt")
	require.NoError(t, os.WriteFile(path, []byte("0"), 0644))

	w, err := NewWatcher(dir, Config{Debounce: 200 * time.Millisecond})
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte('a' + i)}, 0644))
	}

	ev := waitFor(t, w.Events(), path)
	assert.Equal(t, Changed, ev.Kind)
	expectQuiet(t, w.Events(), path, 400*time.Millisecond)
}

func TestWatcherWatchesSubdirectories(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	w, err := NewWatcher(dir, testConfig)
	require.NoError(t, err)
	defer w.Close()

	assert.ElementsMatch(t, []string{dir, filepath.Join(dir, "a"), nested}, w.Directories())

	path := filepath.Join(nested, "deep.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	assert.Equal(t, Added, waitFor(t, w.Events(), path).Kind)
}

func TestWatcherPicksUpNewDirectories(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir, testConfig)
	require.NoError(t, err)
	defer w.Close()

	sub := filepath.Join(dir, "later")
	require.NoError(t, os.Mkdir(sub, 0755))

	require.Eventually(t, func() bool {
		for _, d := range w.Directories() {
			if d == sub {
				return true
			}
		}
		return false
	}, eventTimeout, 10*time.Millisecond)

	path := filepath.Join(sub, "new.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	assert.Equal(t, Added, waitFor(t, w.Events(), path).Kind)
}

func TestWatcherIgnoresDirectoryEvents(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir, testConfig)
	require.NoError(t, err)
	defer w.Close()

	sub := filepath.Join(dir, "empty")
	require.NoError(t, os.Mkdir(sub, 0755))
	expectQuiet(t, w.Events(), sub, 200*time.Millisecond)
}

func TestWatcherSingleFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "watched.txt")
	other := filepath.Join(dir, "other.txt")
	require.NoError(t, os.WriteFile(target, []byte("1"), 0644))

	w, err := NewWatcher(target, testConfig)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(other, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(target, []byte("22"), 0644))

	ev := waitFor(t, w.Events(), target)
	assert.Equal(t, Changed, ev.Kind)
	expectQuiet(t, w.Events(), other, 200*time.Millisecond)
}

func TestWatcherMissingPath(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "nope"), testConfig)
	require.Error(t, err)
	assert.True(t, errors.IsSourceNotFound(err))
}

func TestWatcherClose(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir, testConfig)
	require.NoError(t, err)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "Close must be idempotent")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "late.txt"), []byte("x"), 0644))

	// Drain anything buffered before Close; the channel must end up closed
	timeout := time.After(time.Second)
	for {
		select {
		case _, ok := <-w.Events():
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("event channel not closed after Close")
		}
	}
}

func TestOpenSelectsImplementation(t *testing.T) {
	dir := t.TempDir()

	n, err := Open(afero.NewOsFs(), dir, testConfig)
	require.NoError(t, err)
	assert.IsType(t, &Watcher{}, n)
	require.NoError(t, n.Close())

	poll := testConfig
	poll.Poll = true
	n, err = Open(afero.NewOsFs(), dir, poll)
	require.NoError(t, err)
	assert.IsType(t, &Poller{}, n)
	require.NoError(t, n.Close())

	mem := afero.NewMemMapFs()
	require.NoError(t, mem.MkdirAll("/src", 0755))
	n, err = Open(mem, "/src", testConfig)
	require.NoError(t, err)
	assert.IsType(t, &Poller{}, n)
	require.NoError(t, n.Close())
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "added", Added.String())
	assert.Equal(t, "changed", Changed.String())
	assert.Equal(t, "unknown", EventKind(0).String())
}
