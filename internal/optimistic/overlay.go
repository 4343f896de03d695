package optimistic

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kitchenlinehq/kitchenline-backend/pkg/db/models"
	pkgerrors "github.com/kitchenlinehq/kitchenline-backend/pkg/errors"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/logger"
)

// Patch is the expected local effect of a routing mutation, applied ahead of
// the remote commit. Nil fields are untouched; clear flags null out the
// corresponding timestamps so a recall can be modeled optimistically.
type Patch struct {
	StartedAt   *time.Time
	CompletedAt *time.Time
	BumpedAt    *time.Time
	BumpedBy    *uuid.UUID
	RecalledAt  *time.Time
	RecallDelta int
	Priority    *int
	Notes       *string

	ClearCompletion bool
}

func (p Patch) applyTo(routing models.Routing) models.Routing {
	if p.ClearCompletion {
		routing.CompletedAt = nil
		routing.BumpedAt = nil
		routing.BumpedBy = nil
		routing.ActualPrepSeconds = nil
	}
	if p.StartedAt != nil {
		routing.StartedAt = p.StartedAt
	}
	if p.CompletedAt != nil {
		routing.CompletedAt = p.CompletedAt
	}
	if p.BumpedAt != nil {
		routing.BumpedAt = p.BumpedAt
	}
	if p.BumpedBy != nil {
		routing.BumpedBy = p.BumpedBy
	}
	if p.RecalledAt != nil {
		routing.RecalledAt = p.RecalledAt
	}
	routing.RecallCount += p.RecallDelta
	if p.Priority != nil {
		routing.Priority = *p.Priority
	}
	if p.Notes != nil {
		routing.Notes = p.Notes
	}
	return routing
}

// merge layers next on top of prior. Later fields win wherever both are set.
func (prior Patch) merge(next Patch) Patch {
	merged := prior
	if next.ClearCompletion {
		merged.ClearCompletion = true
		merged.CompletedAt = nil
		merged.BumpedAt = nil
		merged.BumpedBy = nil
	}
	if next.StartedAt != nil {
		merged.StartedAt = next.StartedAt
	}
	if next.CompletedAt != nil {
		merged.CompletedAt = next.CompletedAt
		merged.ClearCompletion = false
	}
	if next.BumpedAt != nil {
		merged.BumpedAt = next.BumpedAt
	}
	if next.BumpedBy != nil {
		merged.BumpedBy = next.BumpedBy
	}
	if next.RecalledAt != nil {
		merged.RecalledAt = next.RecalledAt
	}
	merged.RecallDelta += next.RecallDelta
	if next.Priority != nil {
		merged.Priority = next.Priority
	}
	if next.Notes != nil {
		merged.Notes = next.Notes
	}
	return merged
}

type entry struct {
	patch Patch
	seq   uint64
}

// ReconcileFunc is invoked once per failed commit. The receiver is expected
// to trigger a full resync for the routing; the overlay does not replay an
// operation log.
type ReconcileFunc func(routingID uuid.UUID, err error)

// RemoteCall performs the authoritative mutation behind an optimistic patch.
type RemoteCall func(ctx context.Context) error

// Overlay caches pending patches keyed by routing id, layered over
// authoritative state for reads until the remote commit settles. Reads are
// concurrent; writes serialize on one mutex, which is fine at kitchen-display
// mutation rates.
type Overlay struct {
	mu        sync.RWMutex
	entries   map[uuid.UUID]entry
	seq       uint64
	reconcile ReconcileFunc
	logg      *logger.Logger
}

// NewOverlay builds an empty overlay. reconcile may be nil when the caller
// polls instead of reacting to failures.
func NewOverlay(logg *logger.Logger, reconcile ReconcileFunc) *Overlay {
	return &Overlay{
		entries:   make(map[uuid.UUID]entry),
		reconcile: reconcile,
		logg:      logg,
	}
}

// Apply merges the patch into the overlay and makes it immediately visible
// to readers. When two patches for one routing are in flight the later call
// wins, by call order rather than by network completion order.
func (o *Overlay) Apply(routingID uuid.UUID, patch Patch) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seq++
	current, ok := o.entries[routingID]
	if !ok {
		o.entries[routingID] = entry{patch: patch, seq: o.seq}
		return
	}
	o.entries[routingID] = entry{patch: current.patch.merge(patch), seq: o.seq}
}

// Commit runs the remote mutation asynchronously. On success the overlay
// entry is dropped unless a later Apply superseded it; the next authoritative
// sync carries the committed value. On failure the entry is dropped too and
// the reconcile signal fires exactly once, because the overlay cannot tell
// how far the remote side got.
func (o *Overlay) Commit(ctx context.Context, routingID uuid.UUID, call RemoteCall, done func(error)) {
	o.mu.RLock()
	launched := o.entries[routingID].seq
	o.mu.RUnlock()

	go func() {
		err := call(ctx)
		if err == nil {
			o.clearIfUnchanged(routingID, launched)
			if done != nil {
				done(nil)
			}
			return
		}

		o.clear(routingID)
		wrapped := pkgerrors.Wrap(pkgerrors.CodeRemoteCommit, err, "remote commit failed; resync required")
		if o.logg != nil {
			o.logg.Error(o.logg.WithRoutingID(ctx, routingID.String()), "optimistic commit reverted", err)
		}
		if o.reconcile != nil {
			o.reconcile(routingID, wrapped)
		}
		if done != nil {
			done(wrapped)
		}
	}()
}

// Read layers the pending patch for the routing, if any, over the
// authoritative row.
func (o *Overlay) Read(authoritative models.Routing) models.Routing {
	o.mu.RLock()
	current, ok := o.entries[authoritative.ID]
	o.mu.RUnlock()
	if !ok {
		return authoritative
	}
	return current.patch.applyTo(authoritative)
}

// View applies pending patches across a routing list.
func (o *Overlay) View(rows []models.Routing) []models.Routing {
	out := make([]models.Routing, len(rows))
	for i, row := range rows {
		out[i] = o.Read(row)
	}
	return out
}

// Pending reports whether a patch is still in flight for the routing.
func (o *Overlay) Pending(routingID uuid.UUID) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.entries[routingID]
	return ok
}

// Len returns the number of routings with pending patches.
func (o *Overlay) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.entries)
}

// Reset drops every pending patch. Called after a full resync replaces local
// state wholesale.
func (o *Overlay) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries = make(map[uuid.UUID]entry)
}

func (o *Overlay) clear(routingID uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.entries, routingID)
}

func (o *Overlay) clearIfUnchanged(routingID uuid.UUID, seq uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if current, ok := o.entries[routingID]; ok && current.seq == seq {
		delete(o.entries, routingID)
	}
}
