// Package host drives build plugins through their lifecycle the way a
// bundler does: start hooks, then end hooks on every rebuild, and dispose
// hooks once when the build context is torn down.
package host

import (
	"context"
	"sync"

	"buildcopy/internal/errors"
	"buildcopy/internal/log"
)

// Context is a long-lived build context.
type Context struct {
	mu       sync.Mutex
	start    []func(context.Context) error
	end      []func(context.Context) error
	dispose  []func()
	builds   int
	disposed bool
}

// New creates an empty build context.
func New() *Context {
	return &Context{}
}

// OnStart registers a hook run at the beginning of every build.
func (c *Context) OnStart(fn func(context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = append(c.start, fn)
}

// OnEnd registers a hook run when a build finishes.
func (c *Context) OnEnd(fn func(context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.end = append(c.end, fn)
}

// OnDispose registers a hook run when the context is disposed.
func (c *Context) OnDispose(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dispose = append(c.dispose, fn)
}

// Rebuild runs one build: every start hook, then every end hook, in
// registration order. A failing start hook aborts the build; end hooks
// all run and their errors are joined.
func (c *Context) Rebuild(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return errors.New("build context already disposed")
	}
	c.builds++
	logger := log.LogWithFields(log.F("build", c.builds))

	for _, fn := range c.start {
		if err := fn(ctx); err != nil {
			logger.WithError(err).Error("Build start hook failed")
			return errors.Wrap(err, "build start")
		}
	}

	var errs []error
	for _, fn := range c.end {
		if err := fn(ctx); err != nil {
			logger.WithError(err).Error("Build end hook failed")
			errs = append(errs, err)
		}
	}
	logger.Debug("Build finished")
	return errors.Join(errs...)
}

// Builds returns how many builds have run.
func (c *Context) Builds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.builds
}

// Dispose runs the dispose hooks. Later calls do nothing.
func (c *Context) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return
	}
	c.disposed = true
	for _, fn := range c.dispose {
		fn()
	}
	log.Debug("Build context disposed")
}
