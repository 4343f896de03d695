package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/kitchenlinehq/kitchenline-backend/pkg/enums"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/types"
)

// OrderCreatedEvent signals a new order routed across stations.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID        `json:"order_id"`
	TableID     *uuid.UUID       `json:"table_id,omitempty"`
	SeatID      *uuid.UUID       `json:"seat_id,omitempty"`
	RoutingIDs  []uuid.UUID      `json:"routing_ids"`
	Items       types.OrderItems `json:"items"`
	PlacedAt    time.Time        `json:"placed_at"`
	TotalAmount string           `json:"total_amount,omitempty"`
}

// RoutingLifecycleEvent carries the shared fields for routing state changes.
type RoutingLifecycleEvent struct {
	RoutingID uuid.UUID           `json:"routing_id"`
	OrderID   uuid.UUID           `json:"order_id"`
	StationID uuid.UUID           `json:"station_id"`
	TableID   *uuid.UUID          `json:"table_id,omitempty"`
	Status    enums.RoutingStatus `json:"status"`
	ChangedAt time.Time           `json:"changed_at"`
}

// RoutingBumpedEvent surfaces completion timing for prep-time baselines.
type RoutingBumpedEvent struct {
	RoutingID         uuid.UUID  `json:"routing_id"`
	OrderID           uuid.UUID  `json:"order_id"`
	StationID         uuid.UUID  `json:"station_id"`
	TableID           *uuid.UUID `json:"table_id,omitempty"`
	BumpedBy          *uuid.UUID `json:"bumped_by,omitempty"`
	BumpedAt          time.Time  `json:"bumped_at"`
	ActualPrepSeconds *int       `json:"actual_prep_seconds,omitempty"`
}

// RoutingRecalledEvent reports that a bumped routing was pulled back on screen.
type RoutingRecalledEvent struct {
	RoutingID   uuid.UUID  `json:"routing_id"`
	OrderID     uuid.UUID  `json:"order_id"`
	StationID   uuid.UUID  `json:"station_id"`
	TableID     *uuid.UUID `json:"table_id,omitempty"`
	RecalledAt  time.Time  `json:"recalled_at"`
	RecallCount int        `json:"recall_count"`
}

// RoutingPriorityChangedEvent is emitted when staff reorder the queue.
type RoutingPriorityChangedEvent struct {
	RoutingID uuid.UUID `json:"routing_id"`
	OrderID   uuid.UUID `json:"order_id"`
	StationID uuid.UUID `json:"station_id"`
	Priority  int       `json:"priority"`
}

// RoutingNotesChangedEvent is emitted when staff annotate a ticket.
type RoutingNotesChangedEvent struct {
	RoutingID uuid.UUID `json:"routing_id"`
	OrderID   uuid.UUID `json:"order_id"`
	StationID uuid.UUID `json:"station_id"`
	Notes     string    `json:"notes"`
}

// TableBumpedEvent describes a whole-table bump, including partial failures.
type TableBumpedEvent struct {
	TableID          uuid.UUID   `json:"table_id"`
	BumpedRoutingIDs []uuid.UUID `json:"bumped_routing_ids"`
	FailedRoutingIDs []uuid.UUID `json:"failed_routing_ids,omitempty"`
	BumpedBy         *uuid.UUID  `json:"bumped_by,omitempty"`
	BumpedAt         time.Time   `json:"bumped_at"`
}

// AnomalyRaisedEvent tells downstream systems a detection rule fired.
type AnomalyRaisedEvent struct {
	AnomalyID         uuid.UUID             `json:"anomaly_id"`
	TypeID            uuid.UUID             `json:"type_id"`
	Category          enums.AnomalyCategory `json:"category"`
	Severity          int                   `json:"severity"`
	OrderID           *uuid.UUID            `json:"order_id,omitempty"`
	TableID           *uuid.UUID            `json:"table_id,omitempty"`
	RelatedRoutingIDs []uuid.UUID           `json:"related_routing_ids,omitempty"`
	DetectedAt        time.Time             `json:"detected_at"`
}

// AnomalyResolvedEvent is emitted when an anomaly reaches a terminal status.
type AnomalyResolvedEvent struct {
	AnomalyID        uuid.UUID              `json:"anomaly_id"`
	Status           enums.AnomalyStatus    `json:"status"`
	ResolutionMethod enums.ResolutionMethod `json:"resolution_method"`
	ResolvedBy       *uuid.UUID             `json:"resolved_by,omitempty"`
	ResolvedAt       time.Time              `json:"resolved_at"`
}

// NotificationRequestedEvent asks the notification consumer to alert staff.
type NotificationRequestedEvent struct {
	AnomalyID uuid.UUID `json:"anomaly_id"`
	Severity  int       `json:"severity"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
}
