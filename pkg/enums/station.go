package enums

import "fmt"

// StationType maps to the station_type enum in Postgres.
type StationType string

const (
	StationTypeGrill   StationType = "grill"
	StationTypeSaute   StationType = "saute"
	StationTypeFry     StationType = "fry"
	StationTypeCold    StationType = "cold"
	StationTypePastry  StationType = "pastry"
	StationTypeExpo    StationType = "expo"
	StationTypeGeneral StationType = "general"
)

var validStationTypes = []StationType{
	StationTypeGrill,
	StationTypeSaute,
	StationTypeFry,
	StationTypeCold,
	StationTypePastry,
	StationTypeExpo,
	StationTypeGeneral,
}

// IsValid reports whether the value matches the canonical station_type enum.
func (t StationType) IsValid() bool {
	for _, candidate := range validStationTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseStationType converts raw input into StationType.
func ParseStationType(value string) (StationType, error) {
	for _, candidate := range validStationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid station type %q", value)
}
