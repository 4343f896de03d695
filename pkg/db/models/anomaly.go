package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	dbtypes "github.com/kitchenlinehq/kitchenline-backend/pkg/db/types"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/enums"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/types"
)

// AnomalyType is the catalog of detection rules with their base severity.
type AnomalyType struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code           string                `gorm:"column:code;not null;uniqueIndex"`
	Category       enums.AnomalyCategory `gorm:"column:category;type:anomaly_category;not null"`
	BaseSeverity   int                   `gorm:"column:base_severity;not null;default:1"`
	Description    string                `gorm:"column:description"`
	RequiredFields pq.StringArray        `gorm:"column:required_fields;type:text[];default:ARRAY[]::text[]"`
	Active         bool                  `gorm:"column:active;not null"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (AnomalyType) TableName() string {
	return "anomaly_types"
}

// Anomaly is one recorded finding with its resolution lifecycle. Dedup is
// enforced by ux_anomalies_type_order_detected.
type Anomaly struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TypeID           uuid.UUID `gorm:"column:type_id;type:uuid;not null;uniqueIndex:ux_anomalies_type_order_detected"`
	SeverityOverride *int      `gorm:"column:severity_override"`

	OrderID           *uuid.UUID        `gorm:"column:order_id;type:uuid;uniqueIndex:ux_anomalies_type_order_detected"`
	TableID           *uuid.UUID        `gorm:"column:table_id;type:uuid"`
	SeatID            *uuid.UUID        `gorm:"column:seat_id;type:uuid"`
	StationID         *uuid.UUID        `gorm:"column:station_id;type:uuid"`
	RelatedRoutingIDs dbtypes.UUIDArray `gorm:"column:related_routing_ids;type:uuid[]"`

	Title       string                 `gorm:"column:title;not null"`
	Description string                 `gorm:"column:description"`
	Metadata    *types.AnomalyMetadata `gorm:"column:metadata;type:jsonb;serializer:json"`
	Confidence  float64                `gorm:"column:confidence;not null;default:1.0"`

	DetectedAt      time.Time             `gorm:"column:detected_at;not null;uniqueIndex:ux_anomalies_type_order_detected"`
	DetectionMethod enums.DetectionMethod `gorm:"column:detection_method;type:detection_method;not null;default:'system'"`

	Status           enums.AnomalyStatus     `gorm:"column:status;type:anomaly_status;not null;default:'open'"`
	ResolutionMethod *enums.ResolutionMethod `gorm:"column:resolution_method;type:resolution_method"`
	ResolvedAt       *time.Time              `gorm:"column:resolved_at"`
	ResolvedBy       *uuid.UUID              `gorm:"column:resolved_by;type:uuid"`
	ResolutionNotes  *string                 `gorm:"column:resolution_notes"`

	CustomerImpact    bool               `gorm:"column:customer_impact;not null;default:false"`
	ImpactLevel       *enums.ImpactLevel `gorm:"column:impact_level;type:impact_level"`
	RevenueImpact     *decimal.Decimal   `gorm:"column:revenue_impact;type:numeric(12,2)"`
	TimeImpactSeconds *int               `gorm:"column:time_impact_seconds"`

	Type *AnomalyType `gorm:"foreignKey:TypeID"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Anomaly) TableName() string {
	return "anomalies"
}

// Severity returns the override when set, the type's base severity otherwise.
func (a Anomaly) Severity() int {
	if a.SeverityOverride != nil {
		return *a.SeverityOverride
	}
	if a.Type != nil {
		return a.Type.BaseSeverity
	}
	return 1
}
