package compare

import (
	"compare-app/internal/config"
	"compare-app/internal/logger"
	"compare-app/internal/repository/db"
	"compare-app/internal/service/llm"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrRunExists is returned when a client-supplied run id is already taken
var ErrRunExists = errors.New("run already exists")

// Service orchestrates compare runs: fan-out to concurrent model invocations,
// fan-in onto one SSE stream, cancellation, and persistence.
type Service struct {
	db       db.Database
	provider llm.StreamProvider
	registry *Registry
	cfg      config.CompareConfig
}

// NewService creates the compare service and starts the registry leak sweeper
func NewService(database db.Database, provider llm.StreamProvider, cfg config.CompareConfig) *Service {
	s := &Service{
		db:       database,
		provider: provider,
		registry: NewRegistry(),
		cfg:      cfg,
	}
	s.registry.StartSweeper(cfg.SweepInterval, cfg.SweepMaxAge)
	return s
}

// Close stops the background sweeper
func (s *Service) Close() {
	s.registry.StopSweeper()
}

// StartRequest carries an already-validated, already-authorized compare start
type StartRequest struct {
	UserID   string
	ChatID   string
	Prompt   string
	ModelIDs []string
	RunID    string // optional client-supplied id for idempotent retries
}

// CreateRun allocates the run and its pending results. Kept separate from the
// streaming phase so validation failures never open a stream and never leave
// partial rows behind.
func (s *Service) CreateRun(req StartRequest) (*db.CompareRun, error) {
	runID := req.RunID
	if runID == "" {
		runID = uuid.New().String()
	} else if _, err := s.db.GetCompareRun(runID); err == nil {
		return nil, ErrRunExists
	}

	run := &db.CompareRun{
		ID:       runID,
		ChatID:   req.ChatID,
		UserID:   req.UserID,
		Prompt:   req.Prompt,
		ModelIDs: req.ModelIDs,
		Status:   db.RunStatusRunning,
	}
	if err := s.db.CreateCompareRun(run); err != nil {
		return nil, fmt.Errorf("failed to create compare run: %w", err)
	}

	// Usage is charged per model invocation at run creation
	if err := s.db.IncrementCompareUsage(req.UserID, len(req.ModelIDs)); err != nil {
		logger.WithRun(runID).WithError(err).Warn("Failed to record compare usage")
	}

	// The prompt becomes part of the chat history for follow-up runs
	if _, err := s.db.AddMessage(req.ChatID, "user", req.Prompt, ""); err != nil {
		logger.WithRun(runID).WithError(err).Warn("Failed to record prompt message")
	}

	return run, nil
}

// Stream drives the created run to completion over w. It returns after every
// model reached a terminal state or the client went away. A non-nil error
// means setup failed before any frame was written; once framing starts, all
// failures are handled on the stream itself. The caller's ctx carries both
// the client connection and the platform request ceiling.
func (s *Service) Stream(ctx context.Context, w http.ResponseWriter, run *db.CompareRun) error {
	log := logger.WithRun(run.ID)

	// Safety net for failures outside per-model error handling. Frames are
	// already on the wire here, so the run is marked failed durably and the
	// connection is simply dropped.
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Compare aggregation panicked")
			if dbErr := s.db.UpdateRunStatus(run.ID, db.RunStatusFailed); dbErr != nil {
				log.WithError(dbErr).Error("Failed to mark run failed")
			}
		}
	}()

	history, err := s.loadHistory(run.ChatID)
	if err != nil {
		// History is context, not correctness; run with what we have
		log.WithError(err).Warn("Failed to load chat history")
		history = []llm.Message{{Role: "user", Content: run.Prompt}}
	}

	ew, err := NewEventWriter(w)
	if err != nil {
		return err
	}

	state := NewRunState(run.ID, run.ModelIDs)
	events := make(chan Event, 16)

	var wg sync.WaitGroup
	for _, modelID := range run.ModelIDs {
		wg.Add(1)
		go s.runModel(ctx, state, run, modelID, history, events, &wg)
	}
	go func() {
		wg.Wait()
		close(events)
	}()

	heartbeat := time.NewTicker(s.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	clientGone := false
	write := func(ev Event) {
		if clientGone {
			return
		}
		if werr := ew.WriteEvent(ev); werr != nil {
			log.WithError(werr).Warn("Client write failed, canceling run")
			clientGone = true
			s.registry.Cancel(run.ID, "")
		}
	}

	write(newRunStartEvent(run.ID, run.ChatID, run.ModelIDs))

	done := ctx.Done()
	for events != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			write(ev)
		case <-heartbeat.C:
			write(newHeartbeatEvent())
		case <-done:
			// Client disconnect or platform ceiling: best-effort cleanup,
			// then keep draining so every model task can finish its
			// terminal transition.
			log.Info("Stream context canceled, aborting remaining models")
			clientGone = true
			s.registry.Cancel(run.ID, "")
			done = nil
		}
	}

	status := db.RunStatusCompleted
	if ctx.Err() != nil || clientGone {
		status = db.RunStatusCanceled
	}
	if dbErr := s.db.UpdateRunStatus(run.ID, status); dbErr != nil {
		log.WithError(dbErr).Error("Failed to persist run status")
	}

	if status == db.RunStatusCompleted {
		write(newRunEndEvent(run.ID))
	}

	log.WithField("status", status).Info("Compare run finished")
	return nil
}

// Cancel aborts one model's invocation, or every invocation of the run when
// modelID is empty. Returns the number of streams actually interrupted; the
// aborted tasks persist their own canceled transitions, so canceling an
// already-finished run is a valid no-op returning 0.
func (s *Service) Cancel(runID, modelID string) int {
	return s.registry.Cancel(runID, modelID)
}

// GetRun returns the durable state of a run and its results: the source of
// truth a client reconciles against after losing the live stream.
func (s *Service) GetRun(runID string) (*db.CompareRun, []db.CompareResult, error) {
	run, err := s.db.GetCompareRun(runID)
	if err != nil {
		return nil, nil, err
	}
	results, err := s.db.GetRunResults(runID)
	if err != nil {
		return nil, nil, err
	}
	return run, results, nil
}

// ListRuns returns one page of a chat's runs, newest first
func (s *Service) ListRuns(chatID string, limit int, cursor string) (*db.RunPage, error) {
	return s.db.ListCompareRuns(chatID, limit, cursor)
}

// loadHistory fetches the bounded chat history used as model context
func (s *Service) loadHistory(chatID string) ([]llm.Message, error) {
	messages, err := s.db.GetRecentMessages(chatID, s.cfg.HistoryLimit)
	if err != nil {
		return nil, err
	}
	history := make([]llm.Message, 0, len(messages))
	for _, msg := range messages {
		history = append(history, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	return history, nil
}

// runModel drives a single model invocation from start to its terminal state.
// It is the only writer of its (run, model) result row; the cancellation
// endpoint merely fires the context and this task performs the canceled
// transition itself.
func (s *Service) runModel(ctx context.Context, state *RunState, run *db.CompareRun, modelID string, history []llm.Message, events chan<- Event, wg *sync.WaitGroup) {
	defer wg.Done()

	log := logger.WithRun(run.ID).WithField("model_id", modelID)

	modelCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.registry.Register(run.ID, modelID, cancel)
	defer s.registry.Unregister(run.ID, modelID)

	startedAt := time.Now().UTC()
	if !state.StartResult(modelID, startedAt) {
		log.Warn("Result not pending at start, skipping")
		return
	}
	if err := s.db.StartResult(run.ID, modelID, startedAt); err != nil {
		// Persistence failures never kill the live stream; the in-memory
		// state stays correct and the divergence is surfaced in logs.
		log.WithError(err).Error("Failed to persist result start")
	}
	events <- newModelStartEvent(run.ID, modelID, startedAt)

	markCanceled := func() {
		if state.CancelResult(modelID) {
			if err := s.db.CancelResult(run.ID, modelID); err != nil {
				log.WithError(err).Error("Failed to persist canceled result")
			}
			log.Info("Model invocation canceled")
		}
	}

	markFailed := func(cause error) {
		if state.FailResult(modelID) {
			if err := s.db.FailResult(run.ID, modelID, cause.Error()); err != nil {
				log.WithError(err).Error("Failed to persist failed result")
			}
			events <- newModelErrorEvent(run.ID, modelID, cause.Error())
			log.WithError(cause).Warn("Model invocation failed")
		}
	}

	stream, err := s.provider.StreamChat(modelCtx, modelID, history, "")
	if err != nil {
		if modelCtx.Err() != nil {
			markCanceled()
		} else {
			markFailed(err)
		}
		return
	}

	for {
		select {
		case ev, ok := <-stream:
			if !ok {
				// Provider closed without a terminal event: aborted stream
				markCanceled()
				return
			}
			// Bias toward cancellation when both arms are ready, so no delta
			// leaks out after a cancel has been acknowledged
			if modelCtx.Err() != nil {
				markCanceled()
				return
			}

			switch {
			case ev.Err != nil:
				markFailed(ev.Err)
				return

			case ev.Done:
				completedAt := time.Now().UTC()
				content, reasoning, started, ok := state.CompleteResult(modelID)
				if !ok {
					return
				}
				var usage *db.ResultUsage
				if ev.Usage != nil {
					usage = &db.ResultUsage{
						PromptTokens:     ev.Usage.PromptTokens,
						CompletionTokens: ev.Usage.CompletionTokens,
						TotalTokens:      ev.Usage.TotalTokens,
					}
				}
				if err := s.db.CompleteResult(run.ID, modelID, content, reasoning, usage, started, completedAt); err != nil {
					log.WithError(err).Error("Failed to persist completed result")
				}
				events <- newModelEndEvent(run.ID, modelID, ev.Usage, started, completedAt)
				log.WithFields(logrus.Fields{
					"content_length": len(content),
					"inference_ms":   completedAt.Sub(started).Milliseconds(),
				}).Info("Model invocation completed")
				return

			case ev.ReasoningDelta != "":
				if state.AppendReasoning(modelID, ev.ReasoningDelta) {
					events <- newReasoningDeltaEvent(run.ID, modelID, ev.ReasoningDelta)
				}

			case ev.TextDelta != "":
				if state.AppendText(modelID, ev.TextDelta) {
					events <- newDeltaEvent(run.ID, modelID, ev.TextDelta)
				}
			}

		case <-modelCtx.Done():
			markCanceled()
			return
		}
	}
}
