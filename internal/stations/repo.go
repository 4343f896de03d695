package stations

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kitchenlinehq/kitchenline-backend/pkg/db/models"
)

// Repository defines read access to the station catalog. Stations are
// managed out of band; the kitchen core never writes them.
type Repository interface {
	ListActive(ctx context.Context) ([]models.Station, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Station, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a station repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ListActive(ctx context.Context) ([]models.Station, error) {
	var rows []models.Station
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("position ASC").
		Order("name ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Station, error) {
	var station models.Station
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&station).Error
	if err != nil {
		return nil, err
	}
	return &station, nil
}
