package models

import (
	"time"

	"github.com/google/uuid"
)

// DiningTable is a physical table on the floor plan. Layout/geometry lives
// with the floor-plan editor; the kitchen core only needs identity and seat
// capacity.
type DiningTable struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Label     string    `gorm:"column:label;not null"`
	SeatCount int       `gorm:"column:seat_count;not null;default:0"`
	Active    bool      `gorm:"column:active;not null"`
	Seats     []Seat    `gorm:"foreignKey:TableID"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (DiningTable) TableName() string {
	return "dining_tables"
}

// Seat is one seated position at a table.
type Seat struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TableID   uuid.UUID `gorm:"column:table_id;type:uuid;not null"`
	Number    int       `gorm:"column:number;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Seat) TableName() string {
	return "seats"
}
