package routing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kitchenlinehq/kitchenline-backend/pkg/db/models"
)

// Repository defines persistence operations for orders and their routings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateRoutings(ctx context.Context, routings []models.Routing) error
	FindRouting(ctx context.Context, id uuid.UUID) (*models.Routing, error)
	FindActiveRoutingsByTable(ctx context.Context, tableID uuid.UUID) ([]models.Routing, error)
	ListCurrent(ctx context.Context, filters ListFilters) ([]models.Routing, error)
	UpdateRouting(ctx context.Context, id uuid.UUID, updates map[string]any) error
	AverageActualPrepSeconds(ctx context.Context, stationID uuid.UUID, since time.Time) (float64, error)
}
