package routing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kitchenlinehq/kitchenline-backend/pkg/db/models"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a routing repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) CreateRoutings(ctx context.Context, routings []models.Routing) error {
	if len(routings) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&routings).Error
}

func (r *repository) FindRouting(ctx context.Context, id uuid.UUID) (*models.Routing, error) {
	var routing models.Routing
	err := r.db.WithContext(ctx).
		Preload("Order").
		Preload("Station").
		Where("id = ?", id).
		First(&routing).Error
	if err != nil {
		return nil, err
	}
	return &routing, nil
}

func (r *repository) FindActiveRoutingsByTable(ctx context.Context, tableID uuid.UUID) ([]models.Routing, error) {
	var rows []models.Routing
	err := r.db.WithContext(ctx).
		Joins("JOIN orders ON orders.id = routings.order_id").
		Where("orders.table_id = ?", tableID).
		Where("orders.status IN ?", activeOrderStatuses()).
		Where("routings.completed_at IS NULL").
		Order("routings.routed_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListCurrent(ctx context.Context, filters ListFilters) ([]models.Routing, error) {
	query := r.db.WithContext(ctx).
		Preload("Order").
		Preload("Station").
		Joins("JOIN orders ON orders.id = routings.order_id").
		Where("orders.status IN ?", activeOrderStatuses())
	if filters.StationID != nil {
		query = query.Where("routings.station_id = ?", *filters.StationID)
	}
	if filters.TableID != nil {
		query = query.Where("orders.table_id = ?", *filters.TableID)
	}

	var rows []models.Routing
	err := query.
		Order("routings.priority DESC").
		Order("routings.routed_at ASC").
		Order("routings.id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) UpdateRouting(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Routing{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) AverageActualPrepSeconds(ctx context.Context, stationID uuid.UUID, since time.Time) (float64, error) {
	var avg *float64
	err := r.db.WithContext(ctx).
		Model(&models.Routing{}).
		Select("AVG(actual_prep_seconds)").
		Where("station_id = ?", stationID).
		Where("actual_prep_seconds IS NOT NULL").
		Where("completed_at >= ?", since).
		Scan(&avg).Error
	if err != nil {
		return 0, err
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}

func activeOrderStatuses() []enums.OrderStatus {
	return []enums.OrderStatus{enums.OrderStatusOpen, enums.OrderStatusSubmitted}
}
