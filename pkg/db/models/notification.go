package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification stores in-app alerts surfaced to kitchen managers, currently
// raised for high-severity anomalies.
type Notification struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	AnomalyID *uuid.UUID `gorm:"type:uuid"`
	Severity  int        `gorm:"not null;default:1"`
	Title     string     `gorm:"type:text;not null"`
	Message   string     `gorm:"type:text;not null"`
	ReadAt    *time.Time `gorm:"type:timestamptz"`
	CreatedAt time.Time  `gorm:"type:timestamptz;default:now()"`
}
