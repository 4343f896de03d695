package enums

// TableStatus is the aggregate prep status derived for one table's routings.
type TableStatus string

const (
	TableStatusNew       TableStatus = "new"
	TableStatusPreparing TableStatus = "preparing"
	TableStatusMixed     TableStatus = "mixed"
	TableStatusReady     TableStatus = "ready"
)

var validTableStatuses = []TableStatus{
	TableStatusNew,
	TableStatusPreparing,
	TableStatusMixed,
	TableStatusReady,
}

// IsValid reports whether the value matches a known table status.
func (s TableStatus) IsValid() bool {
	for _, candidate := range validTableStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}
