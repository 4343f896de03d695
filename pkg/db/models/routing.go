package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/kitchenlinehq/kitchenline-backend/pkg/enums"
)

// Routing tracks one order's assignment to one station and its progress
// through prep. Unique per (order_id, station_id); never deleted — recall
// re-opens the row instead.
type Routing struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_routings_order_station"`
	StationID uuid.UUID `gorm:"column:station_id;type:uuid;not null;uniqueIndex:ux_routings_order_station"`
	Sequence  int       `gorm:"column:sequence;not null;default:0"`

	RoutedAt    time.Time  `gorm:"column:routed_at;not null"`
	StartedAt   *time.Time `gorm:"column:started_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
	BumpedAt    *time.Time `gorm:"column:bumped_at"`
	BumpedBy    *uuid.UUID `gorm:"column:bumped_by;type:uuid"`
	RecalledAt  *time.Time `gorm:"column:recalled_at"`
	RecallCount int        `gorm:"column:recall_count;not null;default:0"`

	Priority int     `gorm:"column:priority;not null;default:0"`
	Notes    *string `gorm:"column:notes"`

	EstimatedPrepSeconds *int `gorm:"column:estimated_prep_seconds"`
	ActualPrepSeconds    *int `gorm:"column:actual_prep_seconds"`

	Order   *Order   `gorm:"foreignKey:OrderID"`
	Station *Station `gorm:"foreignKey:StationID"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Routing) TableName() string {
	return "routings"
}

// Status derives the lifecycle state from the timestamp fields.
func (r Routing) Status() enums.RoutingStatus {
	if r.CompletedAt != nil {
		return enums.RoutingStatusReady
	}
	if r.RecalledAt != nil && r.StartedAt == nil {
		return enums.RoutingStatusRecalled
	}
	if r.RecalledAt != nil && r.StartedAt != nil && r.RecalledAt.After(*r.StartedAt) {
		return enums.RoutingStatusRecalled
	}
	if r.StartedAt != nil {
		return enums.RoutingStatusInProgress
	}
	return enums.RoutingStatusNew
}

// IsActive reports whether the routing still needs kitchen work.
func (r Routing) IsActive() bool {
	return r.CompletedAt == nil
}
