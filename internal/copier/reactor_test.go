package copier

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"buildcopy/pkg/testutils"
	"buildcopy/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeHandlerWithoutFilter(t *testing.T) {
	src, dist := fixture(t)
	source := filepath.Join(src, "folder2")
	dest := filepath.Join(dist, "folder2")

	handle := NewChangeHandler(New(nil), CopyRequest{Source: source, Destinations: []string{dest}})
	handle(context.Background(), filepath.Join(source, "anything.bin"))

	assert.Equal(t, []string{"test4.txt", "test5.txt", "test6.json"}, testutils.Names(t, osFs, dest))
}

func TestChangeHandlerFiltersByBaseName(t *testing.T) {
	src, dist := fixture(t)
	source := filepath.Join(src, "folder1/subfolder1")
	dest := filepath.Join(dist, "out")
	handle := NewChangeHandler(New(nil), CopyRequest{
		Source:       source,
		Destinations: []string{dest},
		Filter:       types.Filter{Include: []string{"test1.json"}},
	})

	handle(context.Background(), filepath.Join(source, "test2.json"))
	_, err := os.Stat(dest)
	assert.True(t, os.IsNotExist(err), "non matching change must not copy")

	handle(context.Background(), filepath.Join(source, "test1.json"))
	assert.Equal(t, []string{"test1.json"}, testutils.Names(t, osFs, dest))
}

func TestChangeHandlerExclude(t *testing.T) {
	src, dist := fixture(t)
	source := filepath.Join(src, "folder2")
	dest := filepath.Join(dist, "out")
	handle := NewChangeHandler(New(nil), CopyRequest{
		Source:       source,
		Destinations: []string{dest},
		Filter:       types.Filter{Exclude: []string{"*.json"}},
	})

	handle(context.Background(), filepath.Join(source, "test6.json"))
	_, err := os.Stat(dest)
	assert.True(t, os.IsNotExist(err))

	handle(context.Background(), filepath.Join(source, "test4.txt"))
	assert.Equal(t, []string{"test4.txt", "test5.txt"}, testutils.Names(t, osFs, dest))
}

func TestChangeHandlerSwallowsErrors(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "gone")
	dest := filepath.Join(root, "dist")

	handle := NewChangeHandler(New(nil), CopyRequest{
		Source:       source,
		Destinations: []string{dest},
		Filter:       types.Filter{Include: []string{"[broken"}},
	})
	assert.NotPanics(t, func() {
		handle(context.Background(), filepath.Join(source, "x.txt"))
	})

	handle = NewChangeHandler(New(nil), CopyRequest{Source: source, Destinations: []string{dest}})
	assert.NotPanics(t, func() {
		handle(context.Background(), filepath.Join(source, "x.txt"))
	})
	_, err := os.Stat(dest)
	assert.True(t, os.IsNotExist(err))
}

func TestChangeHandlerDoesNotShareRequest(t *testing.T) {
	src, dist := fixture(t)
	source := filepath.Join(src, "folder2")
	req := CopyRequest{
		Source:       source,
		Destinations: []string{filepath.Join(dist, "a")},
		Filter:       types.Filter{Include: []string{"*.txt"}},
	}
	handle := NewChangeHandler(New(nil), req)

	req.Destinations[0] = filepath.Join(dist, "b")
	req.Filter.Include[0] = "*.json"

	handle(context.Background(), filepath.Join(source, "test4.txt"))
	require.DirExists(t, filepath.Join(dist, "a"))
	assert.NoDirExists(t, filepath.Join(dist, "b"))
}
