package types

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AnomalyMetadata is the structured payload stored alongside an anomaly.
// Exactly one of the rule-specific sections is populated, keyed by Kind, so
// consumers can switch on it instead of duck-typing a loose map.
type AnomalyMetadata struct {
	Kind string `json:"kind"`

	Duplicate    *DuplicateOrderMeta   `json:"duplicate,omitempty"`
	Overcapacity *TableOvercapacityMeta `json:"overcapacity,omitempty"`
	Overload     *KitchenOverloadMeta  `json:"overload,omitempty"`
	Incomplete   *IncompleteDataMeta   `json:"incomplete,omitempty"`
	PrepTime     *PrepTimeMeta         `json:"prep_time,omitempty"`
}

// Metadata kinds, one per detection rule.
const (
	AnomalyKindDuplicateOrder    = "duplicate_order"
	AnomalyKindTableOvercapacity = "table_overcapacity"
	AnomalyKindKitchenOverload   = "kitchen_overload"
	AnomalyKindIncompleteData    = "incomplete_data"
	AnomalyKindPrepTime          = "prep_time"
)

// DuplicateOrderMeta captures the pair of orders that matched.
type DuplicateOrderMeta struct {
	OriginalOrderID uuid.UUID `json:"original_order_id"`
	WindowSeconds   int       `json:"window_seconds"`
	ItemFingerprint string    `json:"item_fingerprint"`
}

// TableOvercapacityMeta captures the load that tripped the capacity rule.
type TableOvercapacityMeta struct {
	ActiveOrders int `json:"active_orders"`
	SeatCount    int `json:"seat_count"`
	Multiplier   int `json:"multiplier"`
}

// KitchenOverloadMeta captures kitchen-wide pending load.
type KitchenOverloadMeta struct {
	PendingOrders int `json:"pending_orders"`
	Threshold     int `json:"threshold"`
}

// IncompleteDataMeta lists the references missing from a new order.
type IncompleteDataMeta struct {
	MissingFields []string `json:"missing_fields"`
}

// PrepTimeMeta captures the prep-time comparison against the trailing average.
type PrepTimeMeta struct {
	ActualSeconds  int             `json:"actual_seconds"`
	AverageSeconds int             `json:"average_seconds"`
	Ratio          decimal.Decimal `json:"ratio"`
}
