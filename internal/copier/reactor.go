package copier

import (
	"context"
	"path/filepath"

	"buildcopy/internal/errors"
	"buildcopy/internal/log"
)

// ChangeHandler reacts to a file being added or changed under a watched source.
type ChangeHandler func(ctx context.Context, changedPath string)

// NewChangeHandler returns a handler that re-runs a full reconciliation pass
// of req when a change is relevant to it.
//
// With an empty filter every change is relevant. Otherwise only changes whose
// base name survives the filter trigger a pass, even for files inside
// subdirectories. The handler never fails: errors are logged and dropped so
// later events keep being processed.
func NewChangeHandler(e *Engine, req CopyRequest) ChangeHandler {
	req = req.clone()

	return func(ctx context.Context, changedPath string) {
		name := filepath.Base(changedPath)
		logger := log.LogWithFields(log.F("source", req.Source), log.F("changed", changedPath))

		if !req.Filter.IsEmpty() {
			keep, err := e.matcher.Keep(name, req.Filter)
			if err != nil {
				logger.WithError(err).Error("Cannot match changed file")
				return
			}
			if !keep {
				logger.Debug("Change filtered out")
				return
			}
		}

		logger.Debug("Re-copying after change")
		if _, err := e.Copy(ctx, req); err != nil {
			if errors.IsBenign(err) {
				logger.WithError(err).Debug("Ignoring benign copy error")
				return
			}
			logger.WithError(err).Error("Copy after change failed")
		}
	}
}
