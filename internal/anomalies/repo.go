package anomalies

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kitchenlinehq/kitchenline-backend/pkg/db/models"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/enums"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/pagination"
)

// ListFilters narrows anomaly queries.
type ListFilters struct {
	Status   *enums.AnomalyStatus
	Category *enums.AnomalyCategory
	TypeCode string
	OrderID  *uuid.UUID
	TableID  *uuid.UUID
}

// Repository is the persistence surface for anomalies and their type catalog.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindTypeByCode(ctx context.Context, code string) (*models.AnomalyType, error)
	Create(ctx context.Context, anomaly *models.Anomaly) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Anomaly, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Anomaly, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ListOpenByTypeOlderThan(ctx context.Context, typeCode string, cutoff time.Time) ([]models.Anomaly, error)

	RecentOrdersForSeat(ctx context.Context, tableID, seatID uuid.UUID, since time.Time, exclude uuid.UUID) ([]models.Order, error)
	CountActiveOrdersForTable(ctx context.Context, tableID uuid.UUID) (int, error)
	SeatCountForTable(ctx context.Context, tableID uuid.UUID) (int, error)
	CountPendingOrders(ctx context.Context) (int, error)
	AverageActualPrepSeconds(ctx context.Context, stationID uuid.UUID, since time.Time) (float64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an anomaly repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindTypeByCode(ctx context.Context, code string) (*models.AnomalyType, error) {
	var anomalyType models.AnomalyType
	err := r.db.WithContext(ctx).
		Where("code = ? AND active", code).
		First(&anomalyType).Error
	if err != nil {
		return nil, err
	}
	return &anomalyType, nil
}

func (r *repository) Create(ctx context.Context, anomaly *models.Anomaly) error {
	return r.db.WithContext(ctx).Create(anomaly).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Anomaly, error) {
	var anomaly models.Anomaly
	err := r.db.WithContext(ctx).
		Preload("Type").
		Where("id = ?", id).
		First(&anomaly).Error
	if err != nil {
		return nil, err
	}
	return &anomaly, nil
}

func (r *repository) List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Anomaly, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Anomaly{}).
		Preload("Type").
		Joins("JOIN anomaly_types ON anomaly_types.id = anomalies.type_id")

	if filters.Status != nil {
		query = query.Where("anomalies.status = ?", *filters.Status)
	}
	if filters.Category != nil {
		query = query.Where("anomaly_types.category = ?", *filters.Category)
	}
	if filters.TypeCode != "" {
		query = query.Where("anomaly_types.code = ?", filters.TypeCode)
	}
	if filters.OrderID != nil {
		query = query.Where("anomalies.order_id = ?", *filters.OrderID)
	}
	if filters.TableID != nil {
		query = query.Where("anomalies.table_id = ?", *filters.TableID)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(anomalies.detected_at, anomalies.id) < (?, ?)",
			cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.Anomaly
	err = query.
		Order("anomalies.detected_at DESC").
		Order("anomalies.id DESC").
		Limit(pagination.NormalizeLimit(params.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Anomaly{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) ListOpenByTypeOlderThan(ctx context.Context, typeCode string, cutoff time.Time) ([]models.Anomaly, error) {
	var rows []models.Anomaly
	err := r.db.WithContext(ctx).
		Preload("Type").
		Joins("JOIN anomaly_types ON anomaly_types.id = anomalies.type_id").
		Where("anomaly_types.code = ?", typeCode).
		Where("anomalies.status IN ?", []enums.AnomalyStatus{enums.AnomalyStatusOpen, enums.AnomalyStatusInvestigating}).
		Where("anomalies.detected_at < ?", cutoff).
		Order("anomalies.detected_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) RecentOrdersForSeat(ctx context.Context, tableID, seatID uuid.UUID, since time.Time, exclude uuid.UUID) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("table_id = ? AND seat_id = ?", tableID, seatID).
		Where("created_at >= ?", since).
		Where("id <> ?", exclude).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CountActiveOrdersForTable(ctx context.Context, tableID uuid.UUID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("table_id = ?", tableID).
		Where("status IN ?", activeOrderStatuses()).
		Count(&count).Error
	return int(count), err
}

func (r *repository) SeatCountForTable(ctx context.Context, tableID uuid.UUID) (int, error) {
	var table models.DiningTable
	err := r.db.WithContext(ctx).
		Select("seat_count").
		Where("id = ?", tableID).
		First(&table).Error
	if err != nil {
		return 0, err
	}
	return table.SeatCount, nil
}

func (r *repository) CountPendingOrders(ctx context.Context) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("status IN ?", activeOrderStatuses()).
		Count(&count).Error
	return int(count), err
}

func (r *repository) AverageActualPrepSeconds(ctx context.Context, stationID uuid.UUID, since time.Time) (float64, error) {
	var average *float64
	err := r.db.WithContext(ctx).
		Model(&models.Routing{}).
		Select("AVG(actual_prep_seconds)").
		Where("station_id = ?", stationID).
		Where("actual_prep_seconds IS NOT NULL").
		Where("completed_at >= ?", since).
		Scan(&average).Error
	if err != nil {
		return 0, err
	}
	if average == nil {
		return 0, nil
	}
	return *average, nil
}

func activeOrderStatuses() []enums.OrderStatus {
	return []enums.OrderStatus{enums.OrderStatusOpen, enums.OrderStatusSubmitted}
}
