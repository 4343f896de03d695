package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/kitchenlinehq/kitchenline-backend/pkg/enums"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/types"
)

// Order is owned by the ordering subsystem; the kitchen core reads it and
// attaches routings to it.
type Order struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TableID   *uuid.UUID        `gorm:"column:table_id;type:uuid"`
	SeatID    *uuid.UUID        `gorm:"column:seat_id;type:uuid"`
	Items     types.OrderItems  `gorm:"column:items;type:jsonb;serializer:json"`
	Status    enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'open'"`
	Routings  []Routing         `gorm:"foreignKey:OrderID"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string {
	return "orders"
}
