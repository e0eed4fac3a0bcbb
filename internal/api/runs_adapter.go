package api

import (
	"context"

	"github.com/XavierBriggs/fortuna/internal/domain"
	"github.com/XavierBriggs/fortuna/internal/runlog"
)

// RunChecker adapts runlog.Store to the broadcaster's SSE binding, which
// needs to know whether a run exists and whether it has terminated.
type RunChecker struct {
	runs *runlog.Store
}

// NewRunChecker wraps a runlog store.
func NewRunChecker(runs *runlog.Store) *RunChecker {
	return &RunChecker{runs: runs}
}

// RunTerminated reports run existence and terminal state.
func (c *RunChecker) RunTerminated(ctx context.Context, runID int64) (bool, bool, error) {
	run, err := c.runs.GetRun(ctx, runID)
	if err != nil {
		return false, false, err
	}
	if run == nil {
		return false, false, nil
	}
	return true, run.Status != domain.RunStatusRunning, nil
}
