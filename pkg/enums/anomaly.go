package enums

import "fmt"

// AnomalyCategory maps to the anomaly_category enum in Postgres.
type AnomalyCategory string

const (
	AnomalyCategoryOrder    AnomalyCategory = "order"
	AnomalyCategoryCapacity AnomalyCategory = "capacity"
	AnomalyCategoryTiming   AnomalyCategory = "timing"
)

var validAnomalyCategories = []AnomalyCategory{
	AnomalyCategoryOrder,
	AnomalyCategoryCapacity,
	AnomalyCategoryTiming,
}

// IsValid reports whether the value matches the canonical anomaly_category enum.
func (c AnomalyCategory) IsValid() bool {
	for _, candidate := range validAnomalyCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// AnomalyStatus maps to the anomaly_status enum in Postgres.
type AnomalyStatus string

const (
	AnomalyStatusOpen          AnomalyStatus = "open"
	AnomalyStatusInvestigating AnomalyStatus = "investigating"
	AnomalyStatusResolved      AnomalyStatus = "resolved"
	AnomalyStatusFalsePositive AnomalyStatus = "false_positive"
	AnomalyStatusIgnored       AnomalyStatus = "ignored"
)

var validAnomalyStatuses = []AnomalyStatus{
	AnomalyStatusOpen,
	AnomalyStatusInvestigating,
	AnomalyStatusResolved,
	AnomalyStatusFalsePositive,
	AnomalyStatusIgnored,
}

// IsValid reports whether the value matches the canonical anomaly_status enum.
func (s AnomalyStatus) IsValid() bool {
	for _, candidate := range validAnomalyStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status ends the anomaly's resolution lifecycle.
func (s AnomalyStatus) IsTerminal() bool {
	switch s {
	case AnomalyStatusResolved, AnomalyStatusFalsePositive, AnomalyStatusIgnored:
		return true
	}
	return false
}

// ParseAnomalyStatus converts raw input into AnomalyStatus.
func ParseAnomalyStatus(value string) (AnomalyStatus, error) {
	for _, candidate := range validAnomalyStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid anomaly status %q", value)
}

// DetectionMethod records whether an anomaly was raised by the rules engine or a person.
type DetectionMethod string

const (
	DetectionMethodSystem DetectionMethod = "system"
	DetectionMethodUser   DetectionMethod = "user"
)

// IsValid reports whether the value matches a known detection method.
func (m DetectionMethod) IsValid() bool {
	return m == DetectionMethodSystem || m == DetectionMethodUser
}

// ResolutionMethod records how an anomaly was closed out.
type ResolutionMethod string

const (
	ResolutionMethodManual ResolutionMethod = "manual"
	ResolutionMethodAuto   ResolutionMethod = "auto"
	ResolutionMethodBulk   ResolutionMethod = "bulk"
)

var validResolutionMethods = []ResolutionMethod{
	ResolutionMethodManual,
	ResolutionMethodAuto,
	ResolutionMethodBulk,
}

// IsValid reports whether the value matches a known resolution method.
func (m ResolutionMethod) IsValid() bool {
	for _, candidate := range validResolutionMethods {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseResolutionMethod converts raw input into ResolutionMethod.
func ParseResolutionMethod(value string) (ResolutionMethod, error) {
	for _, candidate := range validResolutionMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid resolution method %q", value)
}

// ImpactLevel ranks the operational impact recorded on an anomaly.
type ImpactLevel string

const (
	ImpactLevelLow    ImpactLevel = "low"
	ImpactLevelMedium ImpactLevel = "medium"
	ImpactLevelHigh   ImpactLevel = "high"
)

// IsValid reports whether the value matches a known impact level.
func (l ImpactLevel) IsValid() bool {
	return l == ImpactLevelLow || l == ImpactLevelMedium || l == ImpactLevelHigh
}
