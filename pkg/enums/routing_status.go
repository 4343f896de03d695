package enums

import "fmt"

// RoutingStatus is the derived lifecycle state of one (order, station) routing.
type RoutingStatus string

const (
	RoutingStatusNew        RoutingStatus = "new"
	RoutingStatusInProgress RoutingStatus = "in_progress"
	RoutingStatusReady      RoutingStatus = "ready"
	RoutingStatusRecalled   RoutingStatus = "recalled"
)

var validRoutingStatuses = []RoutingStatus{
	RoutingStatusNew,
	RoutingStatusInProgress,
	RoutingStatusReady,
	RoutingStatusRecalled,
}

// IsValid reports whether the value matches a known routing status.
func (s RoutingStatus) IsValid() bool {
	for _, candidate := range validRoutingStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseRoutingStatus converts raw input into RoutingStatus.
func ParseRoutingStatus(value string) (RoutingStatus, error) {
	for _, candidate := range validRoutingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid routing status %q", value)
}
