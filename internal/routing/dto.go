package routing

import (
	"github.com/google/uuid"

	"github.com/kitchenlinehq/kitchenline-backend/pkg/types"
)

// Actor identifies the staff member performing a mutation.
type Actor struct {
	UserID    uuid.UUID
	StationID *uuid.UUID
	Role      string
}

// RouteOrderInput carries a new order plus the stations each item set maps to.
type RouteOrderInput struct {
	TableID  *uuid.UUID
	SeatID   *uuid.UUID
	Items    types.OrderItems
	Stations []StationAssignment
	Actor    Actor
}

// StationAssignment binds a station to its position in the prep sequence.
type StationAssignment struct {
	StationID            uuid.UUID
	Sequence             int
	EstimatedPrepSeconds *int
}

// ListFilters narrows the current-routings query.
type ListFilters struct {
	StationID *uuid.UUID
	TableID   *uuid.UUID
}

// BumpFailure records one routing that could not be bumped during a table bump.
type BumpFailure struct {
	RoutingID uuid.UUID `json:"routing_id"`
	Reason    string    `json:"reason"`
}

// BumpTableResult reports the per-routing outcome of a table bump.
type BumpTableResult struct {
	TableID          uuid.UUID     `json:"table_id"`
	BumpedRoutingIDs []uuid.UUID   `json:"bumped_routing_ids"`
	Failures         []BumpFailure `json:"failures,omitempty"`
}
