package compare

import (
	"compare-app/internal/repository/db"
	"testing"
	"time"
)

func TestRunState_HappyPath(t *testing.T) {
	state := NewRunState("run-1", []string{"model-a"})

	startedAt := time.Now().UTC()
	if !state.StartResult("model-a", startedAt) {
		t.Fatal("StartResult() = false, want true")
	}
	if got := state.ResultStatus("model-a"); got != db.ResultStatusRunning {
		t.Errorf("ResultStatus() = %q, want %q", got, db.ResultStatusRunning)
	}

	if !state.AppendText("model-a", "Hello, ") {
		t.Error("AppendText() = false, want true")
	}
	state.AppendText("model-a", "world")
	state.AppendReasoning("model-a", "thinking...")

	content, reasoning, started, ok := state.CompleteResult("model-a")
	if !ok {
		t.Fatal("CompleteResult() = false, want true")
	}
	if content != "Hello, world" {
		t.Errorf("content = %q, want %q", content, "Hello, world")
	}
	if reasoning != "thinking..." {
		t.Errorf("reasoning = %q, want %q", reasoning, "thinking...")
	}
	if !started.Equal(startedAt) {
		t.Errorf("startedAt = %v, want %v", started, startedAt)
	}
	if !state.AllTerminal() {
		t.Error("AllTerminal() = false, want true")
	}
}

func TestRunState_TransitionsAreMonotonic(t *testing.T) {
	state := NewRunState("run-1", []string{"model-a"})
	state.StartResult("model-a", time.Now())

	if !state.CancelResult("model-a") {
		t.Fatal("CancelResult() = false, want true")
	}

	// Terminal state must win every later transition attempt
	if state.FailResult("model-a") {
		t.Error("FailResult() after cancel = true, want false")
	}
	if _, _, _, ok := state.CompleteResult("model-a"); ok {
		t.Error("CompleteResult() after cancel = true, want false")
	}
	if state.CancelResult("model-a") {
		t.Error("second CancelResult() = true, want false")
	}
	if got := state.ResultStatus("model-a"); got != db.ResultStatusCanceled {
		t.Errorf("ResultStatus() = %q, want %q", got, db.ResultStatusCanceled)
	}
}

func TestRunState_StartRequiresPending(t *testing.T) {
	state := NewRunState("run-1", []string{"model-a"})
	state.StartResult("model-a", time.Now())

	if state.StartResult("model-a", time.Now()) {
		t.Error("second StartResult() = true, want false")
	}
}

func TestRunState_AppendRequiresRunning(t *testing.T) {
	state := NewRunState("run-1", []string{"model-a"})

	if state.AppendText("model-a", "early") {
		t.Error("AppendText() before start = true, want false")
	}

	state.StartResult("model-a", time.Now())
	state.CancelResult("model-a")

	if state.AppendText("model-a", "late") {
		t.Error("AppendText() after cancel = true, want false")
	}
	if state.AppendReasoning("model-a", "late") {
		t.Error("AppendReasoning() after cancel = true, want false")
	}
}

func TestRunState_UnknownModel(t *testing.T) {
	state := NewRunState("run-1", []string{"model-a"})

	if state.StartResult("model-x", time.Now()) {
		t.Error("StartResult() for unknown model = true, want false")
	}
	if state.AppendText("model-x", "data") {
		t.Error("AppendText() for unknown model = true, want false")
	}
	if got := state.ResultStatus("model-x"); got != "" {
		t.Errorf("ResultStatus() = %q, want empty", got)
	}
}

func TestRunState_CancelRunSkipsTerminalResults(t *testing.T) {
	state := NewRunState("run-1", []string{"model-a", "model-b", "model-c"})
	state.StartResult("model-a", time.Now())
	state.StartResult("model-b", time.Now())
	state.CompleteResult("model-a")

	canceled := state.CancelRun()
	if len(canceled) != 2 {
		t.Fatalf("CancelRun() canceled %d results, want 2", len(canceled))
	}
	if got := state.ResultStatus("model-a"); got != db.ResultStatusCompleted {
		t.Errorf("completed result transitioned to %q", got)
	}
	if !state.AllTerminal() {
		t.Error("AllTerminal() = false, want true")
	}
}

func TestRunState_MixedTerminalStates(t *testing.T) {
	state := NewRunState("run-1", []string{"model-a", "model-b"})
	state.StartResult("model-a", time.Now())
	state.StartResult("model-b", time.Now())

	state.CompleteResult("model-a")
	if state.AllTerminal() {
		t.Error("AllTerminal() = true with a running result")
	}

	state.FailResult("model-b")
	if !state.AllTerminal() {
		t.Error("AllTerminal() = false, want true")
	}
	if got := state.ResultStatus("model-b"); got != db.ResultStatusFailed {
		t.Errorf("ResultStatus() = %q, want %q", got, db.ResultStatusFailed)
	}
}
