package compare

import (
	"context"
	"testing"
	"time"
)

func TestRegistry_CancelSingleModel(t *testing.T) {
	registry := NewRegistry()

	ctx1, cancel1 := context.WithCancel(context.Background())
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()

	registry.Register("run-1", "model-a", cancel1)
	registry.Register("run-1", "model-b", cancel2)

	count := registry.Cancel("run-1", "model-a")
	if count != 1 {
		t.Errorf("Cancel() = %d, want 1", count)
	}

	if ctx1.Err() == nil {
		t.Error("Expected model-a context to be canceled")
	}
	if ctx2.Err() != nil {
		t.Error("Expected model-b context to remain live")
	}
	if registry.Len() != 1 {
		t.Errorf("Len() = %d, want 1", registry.Len())
	}
}

func TestRegistry_CancelWholeRun(t *testing.T) {
	registry := NewRegistry()

	ctx1, cancel1 := context.WithCancel(context.Background())
	ctx2, cancel2 := context.WithCancel(context.Background())
	_, cancelOther := context.WithCancel(context.Background())
	defer cancelOther()

	registry.Register("run-1", "model-a", cancel1)
	registry.Register("run-1", "model-b", cancel2)
	registry.Register("run-2", "model-a", cancelOther)

	count := registry.Cancel("run-1", "")
	if count != 2 {
		t.Errorf("Cancel() = %d, want 2", count)
	}
	if ctx1.Err() == nil || ctx2.Err() == nil {
		t.Error("Expected both run-1 contexts to be canceled")
	}
	if registry.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (run-2 handle should survive)", registry.Len())
	}
}

func TestRegistry_CancelUnknownRunIsNoOp(t *testing.T) {
	registry := NewRegistry()

	count := registry.Cancel("no-such-run", "")
	if count != 0 {
		t.Errorf("Cancel() = %d, want 0", count)
	}
}

func TestRegistry_CancelCountsOnlyLiveHandles(t *testing.T) {
	registry := NewRegistry()

	_, cancel := context.WithCancel(context.Background())
	registry.Register("run-1", "model-a", cancel)

	if count := registry.Cancel("run-1", ""); count != 1 {
		t.Fatalf("first Cancel() = %d, want 1", count)
	}
	// Handle is already removed, a second cancel finds nothing
	if count := registry.Cancel("run-1", ""); count != 0 {
		t.Errorf("second Cancel() = %d, want 0", count)
	}
}

func TestRegistry_RegisterDuplicateAbortsOldHandle(t *testing.T) {
	registry := NewRegistry()

	oldCtx, oldCancel := context.WithCancel(context.Background())
	_, newCancel := context.WithCancel(context.Background())
	defer newCancel()

	registry.Register("run-1", "model-a", oldCancel)
	registry.Register("run-1", "model-a", newCancel)

	if oldCtx.Err() == nil {
		t.Error("Expected displaced handle's context to be canceled")
	}
	if registry.Len() != 1 {
		t.Errorf("Len() = %d, want 1", registry.Len())
	}
}

func TestRegistry_UnregisterIsIdempotent(t *testing.T) {
	registry := NewRegistry()

	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	registry.Register("run-1", "model-a", cancel)

	registry.Unregister("run-1", "model-a")
	registry.Unregister("run-1", "model-a")

	if registry.Len() != 0 {
		t.Errorf("Len() = %d, want 0", registry.Len())
	}
}

func TestRegistry_SweepRemovesStaleHandles(t *testing.T) {
	registry := NewRegistry()

	staleCtx, staleCancel := context.WithCancel(context.Background())
	registry.Register("run-old", "model-a", staleCancel)
	// Backdate the handle past any reasonable max age
	registry.mu.Lock()
	registry.handles[registryKey{"run-old", "model-a"}].createdAt = time.Now().Add(-time.Hour)
	registry.mu.Unlock()

	_, freshCancel := context.WithCancel(context.Background())
	defer freshCancel()
	registry.Register("run-new", "model-a", freshCancel)

	removed := registry.Sweep(5 * time.Minute)
	if removed != 1 {
		t.Errorf("Sweep() = %d, want 1", removed)
	}
	if staleCtx.Err() == nil {
		t.Error("Expected swept handle's context to be canceled")
	}
	if registry.Len() != 1 {
		t.Errorf("Len() = %d, want 1", registry.Len())
	}
}

func TestRegistry_StopSweeperTwice(t *testing.T) {
	registry := NewRegistry()
	registry.StartSweeper(time.Hour, time.Hour)
	registry.StopSweeper()
	registry.StopSweeper()
}
