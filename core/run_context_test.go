package core

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func newRunContextForTest() (*RunContext, chan Event) {
	emit := make(chan Event, 10)
	sess := NewSession("app", "user", "s1")
	rc := NewRunContext(context.Background(), "s1", "run1", AgentInfo{Name: "agent"}, Content{}, emit, nil, sess, RunContextOptions{})
	return rc, emit
}

func TestRunContext_EmitEventAttachesStagedState(t *testing.T) {
	rc, emit := newRunContextForTest()
	rc.SetState("foo", "bar")
	rc.AddArtifact("file1")

	if err := rc.EmitEvent(NewEvent(rc.RunID, "agent")); err != nil {
		t.Fatalf("EmitEvent error: %v", err)
	}

	received := <-emit
	if received.Actions.StateDelta["foo"] != "bar" {
		t.Fatalf("state delta missing: %+v", received.Actions)
	}
	if received.Actions.ArtifactDelta["file1"] != 1 {
		t.Fatalf("artifact delta missing: %+v", received.Actions)
	}
	if len(rc.StateDelta) != 0 || len(rc.Artifacts) != 0 {
		t.Fatal("staging buffers should clear after emit")
	}
}

func TestRunContext_GetStatePrefersStaged(t *testing.T) {
	rc, _ := newRunContextForTest()
	rc.Session.SetState("k", "persisted")

	if v, _ := rc.GetState("k"); v != "persisted" {
		t.Fatalf("expected persisted value, got %v", v)
	}

	rc.SetState("k", "staged")
	if v, _ := rc.GetState("k"); v != "staged" {
		t.Fatalf("expected staged value, got %v", v)
	}
}

func TestRunContext_UpdateStateIsAtomic(t *testing.T) {
	rc, _ := newRunContextForTest()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rc.UpdateState("n", func(cur any, ok bool) any {
				if !ok {
					return 1
				}
				return cur.(int) + 1
			})
		}()
	}
	wg.Wait()

	if v, _ := rc.GetState("n"); v != 50 {
		t.Fatalf("expected 50 increments, got %v", v)
	}
}

func TestRunContext_TransferDepth(t *testing.T) {
	rc, _ := newRunContextForTest()

	cur := rc
	for i := 0; i < DefaultMaxTransferDepth; i++ {
		next, err := cur.Transfer(AgentInfo{Name: "child"})
		if err != nil {
			t.Fatalf("transfer %d failed: %v", i, err)
		}
		if next.TransferDepth != i+1 {
			t.Fatalf("depth = %d, want %d", next.TransferDepth, i+1)
		}
		cur = next
	}

	if _, err := cur.Transfer(AgentInfo{Name: "child"}); !errors.Is(err, ErrTransferDepthExceeded) {
		t.Fatalf("expected ErrTransferDepthExceeded, got %v", err)
	}
}

func TestRunContext_WaitForResumeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	resume := make(chan struct{})
	rc := NewRunContext(ctx, "s", "r", AgentInfo{}, Content{}, nil, resume, nil, RunContextOptions{})

	cancel()

	if err := rc.WaitForResume(); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
