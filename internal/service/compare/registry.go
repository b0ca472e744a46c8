package compare

import (
	"compare-app/internal/logger"
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type registryKey struct {
	runID   string
	modelID string
}

// StreamHandle is the cancelable handle of one in-flight model invocation.
// Process-local and never persisted.
type StreamHandle struct {
	cancel    context.CancelFunc
	aborted   bool
	createdAt time.Time
}

// Registry is the process-wide table of in-flight stream handles, keyed by
// (run id, model id). It is the only mutable state shared between a compare
// request's model tasks and the cancellation endpoint, so every mutation runs
// under one mutex.
type Registry struct {
	mu      sync.Mutex
	handles map[registryKey]*StreamHandle

	stopSweep chan struct{}
	sweepOnce sync.Once
}

// NewRegistry creates an empty stream registry
func NewRegistry() *Registry {
	return &Registry{
		handles:   make(map[registryKey]*StreamHandle),
		stopSweep: make(chan struct{}),
	}
}

// Register inserts a handle for an invocation about to start. A duplicate key
// overwrites the previous handle (last write wins); the displaced handle is
// aborted so its invocation cannot leak.
func (r *Registry) Register(runID, modelID string, cancel context.CancelFunc) {
	key := registryKey{runID, modelID}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.handles[key]; ok && !old.aborted {
		old.aborted = true
		old.cancel()
		logger.Log.WithFields(logrus.Fields{"run_id": runID, "model_id": modelID}).Warn("Replacing existing stream handle")
	}

	r.handles[key] = &StreamHandle{
		cancel:    cancel,
		createdAt: time.Now(),
	}
}

// Unregister removes a handle. Removing an absent key is a no-op.
func (r *Registry) Unregister(runID, modelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, registryKey{runID, modelID})
}

// Cancel aborts and removes the handle for (runID, modelID), or every handle
// for the run when modelID is empty. Returns the number of streams actually
// interrupted; handles that were already aborted are removed but not counted.
func (r *Registry) Cancel(runID, modelID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for key, handle := range r.handles {
		if key.runID != runID {
			continue
		}
		if modelID != "" && key.modelID != modelID {
			continue
		}
		if !handle.aborted {
			handle.aborted = true
			handle.cancel()
			count++
		}
		delete(r.handles, key)
	}

	if count > 0 {
		logger.Log.WithFields(logrus.Fields{"run_id": runID, "model_id": modelID, "canceled": count}).Info("Canceled stream handles")
	}
	return count
}

// Sweep removes handles older than maxAge or already aborted. A leak guard
// against abnormal termination that skipped Unregister; normal cleanup does
// not depend on it.
func (r *Registry) Sweep(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, handle := range r.handles {
		if handle.aborted || handle.createdAt.Before(cutoff) {
			if !handle.aborted {
				handle.aborted = true
				handle.cancel()
			}
			delete(r.handles, key)
			removed++
		}
	}

	if removed > 0 {
		logger.Log.WithField("removed", removed).Warn("Swept stale stream handles")
	}
	return removed
}

// StartSweeper runs Sweep on a fixed interval until StopSweeper is called
func (r *Registry) StartSweeper(interval, maxAge time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Sweep(maxAge)
			case <-r.stopSweep:
				return
			}
		}
	}()
}

// StopSweeper stops the background sweeper. Safe to call more than once.
func (r *Registry) StopSweeper() {
	r.sweepOnce.Do(func() { close(r.stopSweep) })
}

// Len returns the number of registered handles
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
