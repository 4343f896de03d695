package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/kitchenlinehq/kitchenline-backend/pkg/enums"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/types"
)

// Station is one kitchen prep station. The catalog is read-only for the
// kitchen core; stations are managed out of band.
type Station struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string                 `gorm:"column:name;not null"`
	Type      enums.StationType      `gorm:"column:type;type:station_type;not null;default:'general'"`
	Position  int                    `gorm:"column:position;not null;default:0"`
	Color     *string                `gorm:"column:color"`
	// No gorm-side default: with one, gorm drops Active=false from the
	// INSERT and the row comes back active.
	Active    bool                   `gorm:"column:active;not null"`
	Settings  *types.StationSettings `gorm:"column:settings;type:jsonb;serializer:json"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (Station) TableName() string {
	return "stations"
}
