package anomalies

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kitchenlinehq/kitchenline-backend/pkg/config"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/db/models"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/enums"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/outbox/payloads"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/types"
)

// Rule codes, matching the seeded anomaly_types catalog.
const (
	TypeDuplicateOrder    = "duplicate_order"
	TypeTableOvercapacity = "table_overcapacity"
	TypeKitchenOverload   = "kitchen_overload"
	TypeIncompleteData    = "incomplete_order_data"
	TypePrepTimeExceeded  = "prep_time_exceeded"
)

// Finding is one rule hit, not yet persisted. The recording service turns
// findings into anomaly rows and downstream events.
type Finding struct {
	TypeCode          string
	Title             string
	Description       string
	Confidence        float64
	OrderID           *uuid.UUID
	TableID           *uuid.UUID
	SeatID            *uuid.UUID
	StationID         *uuid.UUID
	RelatedRoutingIDs []uuid.UUID
	Metadata          *types.AnomalyMetadata
	CustomerImpact    bool
	ImpactLevel       *enums.ImpactLevel
	TimeImpactSeconds *int
	DetectedAt        time.Time
}

// stateReader is the slice of recent state the rules need.
type stateReader interface {
	RecentOrdersForSeat(ctx context.Context, tableID, seatID uuid.UUID, since time.Time, exclude uuid.UUID) ([]models.Order, error)
	CountActiveOrdersForTable(ctx context.Context, tableID uuid.UUID) (int, error)
	SeatCountForTable(ctx context.Context, tableID uuid.UUID) (int, error)
	CountPendingOrders(ctx context.Context) (int, error)
	AverageActualPrepSeconds(ctx context.Context, stationID uuid.UUID, since time.Time) (float64, error)
}

// Engine evaluates the detection rules against incoming domain events. It
// only reads state and returns findings; it never writes.
type Engine struct {
	state stateReader
	cfg   config.AnomalyConfig
}

// NewEngine builds the rules engine.
func NewEngine(state stateReader, cfg config.AnomalyConfig) (*Engine, error) {
	if state == nil {
		return nil, fmt.Errorf("anomaly state reader required")
	}
	return &Engine{state: state, cfg: withAnomalyDefaults(cfg)}, nil
}

func withAnomalyDefaults(cfg config.AnomalyConfig) config.AnomalyConfig {
	if cfg.DuplicateWindow <= 0 {
		cfg.DuplicateWindow = 5 * time.Minute
	}
	if cfg.CapacityMultiplier <= 0 {
		cfg.CapacityMultiplier = 3
	}
	if cfg.KitchenOverloadPending <= 0 {
		cfg.KitchenOverloadPending = 50
	}
	if cfg.PrepTimeFactor <= 0 {
		cfg.PrepTimeFactor = 2.0
	}
	if cfg.PrepTimeLookback <= 0 {
		cfg.PrepTimeLookback = 7 * 24 * time.Hour
	}
	if cfg.NotifySeverity <= 0 {
		cfg.NotifySeverity = 4
	}
	return cfg
}

// EvaluateOrderCreated runs the order-scoped rules: incomplete data,
// duplicate order, table overcapacity, and kitchen overload.
func (e *Engine) EvaluateOrderCreated(ctx context.Context, event payloads.OrderCreatedEvent) ([]Finding, error) {
	var findings []Finding
	orderID := event.OrderID
	detectedAt := event.PlacedAt.UTC()

	if finding := e.checkIncompleteData(event, detectedAt); finding != nil {
		findings = append(findings, *finding)
	}

	if event.TableID != nil && event.SeatID != nil && len(event.Items) > 0 {
		finding, err := e.checkDuplicateOrder(ctx, event, detectedAt)
		if err != nil {
			return findings, err
		}
		if finding != nil {
			findings = append(findings, *finding)
		}
	}

	if event.TableID != nil {
		finding, err := e.checkTableOvercapacity(ctx, *event.TableID, orderID, detectedAt)
		if err != nil {
			return findings, err
		}
		if finding != nil {
			findings = append(findings, *finding)
		}
	}

	finding, err := e.checkKitchenOverload(ctx, orderID, event.TableID, detectedAt)
	if err != nil {
		return findings, err
	}
	if finding != nil {
		findings = append(findings, *finding)
	}

	return findings, nil
}

// EvaluateRoutingBumped runs the prep-time rule against a completed routing.
func (e *Engine) EvaluateRoutingBumped(ctx context.Context, event payloads.RoutingBumpedEvent) ([]Finding, error) {
	if event.ActualPrepSeconds == nil || *event.ActualPrepSeconds <= 0 {
		return nil, nil
	}
	actual := *event.ActualPrepSeconds

	since := event.BumpedAt.UTC().Add(-e.cfg.PrepTimeLookback)
	average, err := e.state.AverageActualPrepSeconds(ctx, event.StationID, since)
	if err != nil {
		return nil, fmt.Errorf("prep time baseline: %w", err)
	}
	if average <= 0 || float64(actual) <= e.cfg.PrepTimeFactor*average {
		return nil, nil
	}

	stationID := event.StationID
	overrun := actual - int(average)
	ratio := decimal.NewFromInt(int64(actual)).Div(decimal.NewFromFloat(average)).Round(2)
	return []Finding{{
		TypeCode:          TypePrepTimeExceeded,
		Title:             "Prep time far above station average",
		Description:       fmt.Sprintf("routing took %ds against a %ds trailing average", actual, int(average)),
		Confidence:        1.0,
		OrderID:           &event.OrderID,
		TableID:           event.TableID,
		StationID:         &stationID,
		RelatedRoutingIDs: []uuid.UUID{event.RoutingID},
		Metadata: &types.AnomalyMetadata{
			Kind: types.AnomalyKindPrepTime,
			PrepTime: &types.PrepTimeMeta{
				ActualSeconds:  actual,
				AverageSeconds: int(average),
				Ratio:          ratio,
			},
		},
		TimeImpactSeconds: &overrun,
		DetectedAt:        event.BumpedAt.UTC(),
	}}, nil
}

func (e *Engine) checkIncompleteData(event payloads.OrderCreatedEvent, detectedAt time.Time) *Finding {
	var missing []string
	if event.TableID == nil {
		missing = append(missing, "table")
	}
	if event.SeatID == nil {
		missing = append(missing, "seat")
	}
	if len(event.Items) == 0 {
		missing = append(missing, "items")
	}
	if len(missing) == 0 {
		return nil
	}

	orderID := event.OrderID
	return &Finding{
		TypeCode:    TypeIncompleteData,
		Title:       "Order submitted with missing references",
		Description: fmt.Sprintf("order is missing: %v", missing),
		Confidence:  1.0,
		OrderID:     &orderID,
		TableID:     event.TableID,
		SeatID:      event.SeatID,
		Metadata: &types.AnomalyMetadata{
			Kind:       types.AnomalyKindIncompleteData,
			Incomplete: &types.IncompleteDataMeta{MissingFields: missing},
		},
		DetectedAt: detectedAt,
	}
}

func (e *Engine) checkDuplicateOrder(ctx context.Context, event payloads.OrderCreatedEvent, detectedAt time.Time) (*Finding, error) {
	since := detectedAt.Add(-e.cfg.DuplicateWindow)
	recent, err := e.state.RecentOrdersForSeat(ctx, *event.TableID, *event.SeatID, since, event.OrderID)
	if err != nil {
		return nil, fmt.Errorf("duplicate lookup: %w", err)
	}

	fingerprint := event.Items.Fingerprint()
	for _, candidate := range recent {
		if candidate.Items.Fingerprint() != fingerprint {
			continue
		}
		orderID := event.OrderID
		return &Finding{
			TypeCode:    TypeDuplicateOrder,
			Title:       "Possible duplicate order",
			Description: fmt.Sprintf("matches order %s placed within the last %s", candidate.ID, e.cfg.DuplicateWindow),
			Confidence:  0.95,
			OrderID:     &orderID,
			TableID:     event.TableID,
			SeatID:      event.SeatID,
			Metadata: &types.AnomalyMetadata{
				Kind: types.AnomalyKindDuplicateOrder,
				Duplicate: &types.DuplicateOrderMeta{
					OriginalOrderID: candidate.ID,
					WindowSeconds:   int(e.cfg.DuplicateWindow.Seconds()),
					ItemFingerprint: fingerprint,
				},
			},
			DetectedAt: detectedAt,
		}, nil
	}
	return nil, nil
}

func (e *Engine) checkTableOvercapacity(ctx context.Context, tableID, orderID uuid.UUID, detectedAt time.Time) (*Finding, error) {
	active, err := e.state.CountActiveOrdersForTable(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("active order count: %w", err)
	}
	seats, err := e.state.SeatCountForTable(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("seat count: %w", err)
	}
	if seats <= 0 || active <= seats*e.cfg.CapacityMultiplier {
		return nil, nil
	}

	return &Finding{
		TypeCode:       TypeTableOvercapacity,
		Title:          "Table order volume exceeds capacity",
		Description:    fmt.Sprintf("%d active orders for a %d-seat table", active, seats),
		Confidence:     1.0,
		OrderID:        &orderID,
		TableID:        &tableID,
		CustomerImpact: true,
		Metadata: &types.AnomalyMetadata{
			Kind: types.AnomalyKindTableOvercapacity,
			Overcapacity: &types.TableOvercapacityMeta{
				ActiveOrders: active,
				SeatCount:    seats,
				Multiplier:   e.cfg.CapacityMultiplier,
			},
		},
		DetectedAt: detectedAt,
	}, nil
}

func (e *Engine) checkKitchenOverload(ctx context.Context, orderID uuid.UUID, tableID *uuid.UUID, detectedAt time.Time) (*Finding, error) {
	pending, err := e.state.CountPendingOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("pending order count: %w", err)
	}
	if pending <= e.cfg.KitchenOverloadPending {
		return nil, nil
	}

	impact := enums.ImpactLevelHigh
	return &Finding{
		TypeCode:    TypeKitchenOverload,
		Title:       "Kitchen-wide order backlog",
		Description: fmt.Sprintf("%d pending orders across the kitchen", pending),
		Confidence:  1.0,
		OrderID:     &orderID,
		TableID:     tableID,
		ImpactLevel: &impact,
		Metadata: &types.AnomalyMetadata{
			Kind: types.AnomalyKindKitchenOverload,
			Overload: &types.KitchenOverloadMeta{
				PendingOrders: pending,
				Threshold:     e.cfg.KitchenOverloadPending,
			},
		},
		DetectedAt: detectedAt,
	}, nil
}
