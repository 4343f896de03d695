package enums

// OrderStatus maps to the order_status enum in Postgres. Orders are owned by
// the ordering subsystem; the kitchen core only reads them.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusSubmitted OrderStatus = "submitted"
	OrderStatusServed    OrderStatus = "served"
	OrderStatusClosed    OrderStatus = "closed"
	OrderStatusCanceled  OrderStatus = "canceled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusOpen,
	OrderStatusSubmitted,
	OrderStatusServed,
	OrderStatusClosed,
	OrderStatusCanceled,
}

// IsValid reports whether the value matches the canonical order_status enum.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsActive reports whether routings for this order still count toward kitchen load.
func (s OrderStatus) IsActive() bool {
	return s == OrderStatusOpen || s == OrderStatusSubmitted
}
