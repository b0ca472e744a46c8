package compare

import (
	"compare-app/internal/repository/db"
	"strings"
	"sync"
	"time"
)

// RunState is the authoritative in-memory state of one compare run: per-model
// sub-states plus their accumulated content. Transitions are monotonic; every
// mutator returns whether it won the transition, so exactly one caller acts on
// each state change. Content accumulates in memory only and is written once at
// the terminal transition, one durable write per model per run rather than one
// per token.
type RunState struct {
	mu      sync.Mutex
	runID   string
	results map[string]*resultState
}

type resultState struct {
	status    string
	content   strings.Builder
	reasoning strings.Builder
	startedAt time.Time
}

// NewRunState creates the state for a run with one pending result per model
func NewRunState(runID string, modelIDs []string) *RunState {
	results := make(map[string]*resultState, len(modelIDs))
	for _, id := range modelIDs {
		results[id] = &resultState{status: db.ResultStatusPending}
	}
	return &RunState{runID: runID, results: results}
}

// StartResult moves a result pending -> running, recording the server start
// timestamp. Returns false if the result is unknown or already past pending.
func (s *RunState) StartResult(modelID string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.results[modelID]
	if !ok || res.status != db.ResultStatusPending {
		return false
	}
	res.status = db.ResultStatusRunning
	res.startedAt = at
	return true
}

// AppendText appends a text delta to a running result
func (s *RunState) AppendText(modelID, delta string) bool {
	return s.append(modelID, delta, false)
}

// AppendReasoning appends a reasoning delta to a running result
func (s *RunState) AppendReasoning(modelID, delta string) bool {
	return s.append(modelID, delta, true)
}

func (s *RunState) append(modelID, delta string, reasoning bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.results[modelID]
	if !ok || res.status != db.ResultStatusRunning {
		return false
	}
	if reasoning {
		res.reasoning.WriteString(delta)
	} else {
		res.content.WriteString(delta)
	}
	return true
}

// CompleteResult moves a result running -> completed and hands back the
// accumulated buffers and start timestamp for the single terminal write.
func (s *RunState) CompleteResult(modelID string) (content, reasoning string, startedAt time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, present := s.results[modelID]
	if !present || res.status != db.ResultStatusRunning {
		return "", "", time.Time{}, false
	}
	res.status = db.ResultStatusCompleted
	return res.content.String(), res.reasoning.String(), res.startedAt, true
}

// FailResult moves a non-terminal result to failed
func (s *RunState) FailResult(modelID string) bool {
	return s.terminate(modelID, db.ResultStatusFailed)
}

// CancelResult moves a non-terminal result to canceled
func (s *RunState) CancelResult(modelID string) bool {
	return s.terminate(modelID, db.ResultStatusCanceled)
}

func (s *RunState) terminate(modelID, status string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.results[modelID]
	if !ok || isTerminal(res.status) {
		return false
	}
	res.status = status
	return true
}

// CancelRun cancels every non-terminal result, returning the model ids that
// actually transitioned.
func (s *RunState) CancelRun() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var canceled []string
	for modelID, res := range s.results {
		if !isTerminal(res.status) {
			res.status = db.ResultStatusCanceled
			canceled = append(canceled, modelID)
		}
	}
	return canceled
}

// ResultStatus returns the current status of one result ("" if unknown)
func (s *RunState) ResultStatus(modelID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if res, ok := s.results[modelID]; ok {
		return res.status
	}
	return ""
}

// AllTerminal reports whether every result reached a terminal state
func (s *RunState) AllTerminal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, res := range s.results {
		if !isTerminal(res.status) {
			return false
		}
	}
	return true
}

func isTerminal(status string) bool {
	switch status {
	case db.ResultStatusCompleted, db.ResultStatusCanceled, db.ResultStatusFailed:
		return true
	}
	return false
}
