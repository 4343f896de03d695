package optimistic

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kitchenlinehq/kitchenline-backend/pkg/db/models"
	pkgerrors "github.com/kitchenlinehq/kitchenline-backend/pkg/errors"
)

func intRef(v int) *int { return &v }

func strRef(v string) *string { return &v }

func TestApplyOverlaysReads(t *testing.T) {
	overlay := NewOverlay(nil, nil)
	routing := models.Routing{ID: uuid.New(), Priority: 2}

	overlay.Apply(routing.ID, Patch{Priority: intRef(9)})

	got := overlay.Read(routing)
	if got.Priority != 9 {
		t.Fatalf("expected overlay priority 9, got %d", got.Priority)
	}
	if routing.Priority != 2 {
		t.Fatal("authoritative copy must not be mutated")
	}
}

func TestApplyLastPatchWins(t *testing.T) {
	overlay := NewOverlay(nil, nil)
	routing := models.Routing{ID: uuid.New()}

	overlay.Apply(routing.ID, Patch{Priority: intRef(3), Notes: strRef("rush")})
	overlay.Apply(routing.ID, Patch{Priority: intRef(7)})

	got := overlay.Read(routing)
	if got.Priority != 7 {
		t.Fatalf("later patch must win, got priority %d", got.Priority)
	}
	if got.Notes == nil || *got.Notes != "rush" {
		t.Fatal("unrelated fields from the earlier patch must survive the merge")
	}
}

func TestCommitSuccessClearsEntry(t *testing.T) {
	overlay := NewOverlay(nil, nil)
	routingID := uuid.New()
	overlay.Apply(routingID, Patch{Priority: intRef(5)})

	done := make(chan error, 1)
	overlay.Commit(context.Background(), routingID, func(ctx context.Context) error {
		return nil
	}, func(err error) { done <- err })

	if err := <-done; err != nil {
		t.Fatalf("commit: %v", err)
	}
	if overlay.Pending(routingID) {
		t.Fatal("successful commit must clear the overlay entry")
	}
}

func TestCommitFailureRevertsAndSignalsOnce(t *testing.T) {
	var reconciles atomic.Int32
	overlay := NewOverlay(nil, func(routingID uuid.UUID, err error) {
		reconciles.Add(1)
		if !pkgerrors.IsCode(err, pkgerrors.CodeRemoteCommit) {
			t.Errorf("expected REMOTE_COMMIT_FAILURE, got %v", err)
		}
	})
	routingID := uuid.New()
	overlay.Apply(routingID, Patch{Priority: intRef(5)})

	done := make(chan error, 1)
	overlay.Commit(context.Background(), routingID, func(ctx context.Context) error {
		return errors.New("connection reset")
	}, func(err error) { done <- err })

	if err := <-done; !pkgerrors.IsCode(err, pkgerrors.CodeRemoteCommit) {
		t.Fatalf("expected REMOTE_COMMIT_FAILURE, got %v", err)
	}
	if overlay.Pending(routingID) {
		t.Fatal("failed commit must revert the overlay entry")
	}

	// Give a stray duplicate signal a moment to show up.
	time.Sleep(20 * time.Millisecond)
	if n := reconciles.Load(); n != 1 {
		t.Fatalf("expected exactly one reconcile signal, got %d", n)
	}
}

func TestCommitSuccessKeepsLaterPatch(t *testing.T) {
	overlay := NewOverlay(nil, nil)
	routingID := uuid.New()
	overlay.Apply(routingID, Patch{Priority: intRef(5)})

	release := make(chan struct{})
	done := make(chan error, 1)
	overlay.Commit(context.Background(), routingID, func(ctx context.Context) error {
		<-release
		return nil
	}, func(err error) { done <- err })

	// A second intent lands while the first commit is still in flight.
	overlay.Apply(routingID, Patch{Priority: intRef(8)})
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("commit: %v", err)
	}
	if !overlay.Pending(routingID) {
		t.Fatal("entry superseded mid-commit must survive the earlier success")
	}
	if got := overlay.Read(models.Routing{ID: routingID}); got.Priority != 8 {
		t.Fatalf("expected the later patch to remain, got priority %d", got.Priority)
	}
}

func TestViewAndReset(t *testing.T) {
	overlay := NewOverlay(nil, nil)
	first := models.Routing{ID: uuid.New(), Priority: 1}
	second := models.Routing{ID: uuid.New(), Priority: 2}
	overlay.Apply(second.ID, Patch{Priority: intRef(10)})

	view := overlay.View([]models.Routing{first, second})
	if view[0].Priority != 1 || view[1].Priority != 10 {
		t.Fatalf("unexpected view priorities: %d, %d", view[0].Priority, view[1].Priority)
	}

	overlay.Reset()
	if overlay.Len() != 0 {
		t.Fatalf("expected empty overlay after reset, got %d entries", overlay.Len())
	}
}

func TestClearCompletionModelsRecall(t *testing.T) {
	overlay := NewOverlay(nil, nil)
	now := time.Now().UTC()
	by := uuid.New()
	routing := models.Routing{
		ID:          uuid.New(),
		CompletedAt: &now,
		BumpedAt:    &now,
		BumpedBy:    &by,
		RecallCount: 1,
	}

	overlay.Apply(routing.ID, Patch{ClearCompletion: true, RecalledAt: &now, RecallDelta: 1})

	got := overlay.Read(routing)
	if got.CompletedAt != nil || got.BumpedAt != nil || got.BumpedBy != nil {
		t.Fatalf("expected completion cleared, got %+v", got)
	}
	if got.RecallCount != 2 {
		t.Fatalf("expected recall count 2, got %d", got.RecallCount)
	}
}

func TestConcurrentReadsAndWrites(t *testing.T) {
	overlay := NewOverlay(nil, nil)
	routing := models.Routing{ID: uuid.New()}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(p int) {
			defer wg.Done()
			overlay.Apply(routing.ID, Patch{Priority: intRef(p)})
		}(i)
		go func() {
			defer wg.Done()
			_ = overlay.Read(routing)
		}()
	}
	wg.Wait()

	if got := overlay.Read(routing); got.Priority < 0 || got.Priority > 7 {
		t.Fatalf("unexpected priority %d", got.Priority)
	}
}
