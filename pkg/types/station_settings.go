package types

// StationSettings is the per-station configuration blob stored as jsonb.
type StationSettings struct {
	AutoBumpSeconds     int  `json:"auto_bump_seconds,omitempty"`
	MaxConcurrentOrders int  `json:"max_concurrent_orders,omitempty"`
	ShowSeatNumbers     bool `json:"show_seat_numbers,omitempty"`
}
