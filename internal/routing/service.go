package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/kitchenlinehq/kitchenline-backend/pkg/db/models"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/enums"
	pkgerrors "github.com/kitchenlinehq/kitchenline-backend/pkg/errors"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/outbox"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/outbox/payloads"
)

const (
	maxPriority   = 10
	maxNotesChars = 500
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines the routing state machine operations.
type Service interface {
	RouteOrder(ctx context.Context, input RouteOrderInput) (*models.Order, error)
	Start(ctx context.Context, routingID uuid.UUID, actor Actor) (*models.Routing, error)
	Bump(ctx context.Context, routingID uuid.UUID, actor Actor) (*models.Routing, error)
	Recall(ctx context.Context, routingID uuid.UUID, actor Actor) (*models.Routing, error)
	SetPriority(ctx context.Context, routingID uuid.UUID, priority int, actor Actor) (*models.Routing, error)
	SetNotes(ctx context.Context, routingID uuid.UUID, notes string, actor Actor) (*models.Routing, error)
	BumpTable(ctx context.Context, tableID uuid.UUID, actor Actor) (*BumpTableResult, error)
	ListCurrent(ctx context.Context, filters ListFilters) ([]models.Routing, error)
	Get(ctx context.Context, routingID uuid.UUID) (*models.Routing, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	now    func() time.Time
}

// NewService builds the routing service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("routing repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: outboxSvc,
		now:    time.Now,
	}, nil
}

func (s *service) RouteOrder(ctx context.Context, input RouteOrderInput) (*models.Order, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order items required")
	}
	if err := input.Items.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order items")
	}
	if len(input.Stations) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one station assignment required")
	}
	seen := make(map[uuid.UUID]bool, len(input.Stations))
	for _, assignment := range input.Stations {
		if assignment.StationID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "station id required")
		}
		if seen[assignment.StationID] {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate station assignment")
		}
		seen[assignment.StationID] = true
	}

	now := s.now().UTC()
	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order := &models.Order{
			TableID: input.TableID,
			SeatID:  input.SeatID,
			Items:   input.Items,
			Status:  enums.OrderStatusSubmitted,
		}
		order, err := repo.CreateOrder(ctx, order)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		routings := make([]models.Routing, 0, len(input.Stations))
		for _, assignment := range input.Stations {
			routings = append(routings, models.Routing{
				OrderID:              order.ID,
				StationID:            assignment.StationID,
				Sequence:             assignment.Sequence,
				RoutedAt:             now,
				EstimatedPrepSeconds: assignment.EstimatedPrepSeconds,
			})
		}
		if err := repo.CreateRoutings(ctx, routings); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create routings")
		}

		routingIDs := make([]uuid.UUID, 0, len(routings))
		for i := range routings {
			routingIDs = append(routingIDs, routings[i].ID)
			err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventRoutingCreated,
				AggregateType: enums.AggregateRouting,
				AggregateID:   routings[i].ID,
				Version:       1,
				Actor:         buildActor(input.Actor),
				Data: payloads.RoutingLifecycleEvent{
					RoutingID: routings[i].ID,
					OrderID:   order.ID,
					StationID: routings[i].StationID,
					TableID:   order.TableID,
					Status:    enums.RoutingStatusNew,
					ChangedAt: now,
				},
			})
			if err != nil {
				return err
			}
		}
		order.Routings = routings
		created = order

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         buildActor(input.Actor),
			Data: payloads.OrderCreatedEvent{
				OrderID:    order.ID,
				TableID:    order.TableID,
				SeatID:     order.SeatID,
				RoutingIDs: routingIDs,
				Items:      order.Items,
				PlacedAt:   now,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Start(ctx context.Context, routingID uuid.UUID, actor Actor) (*models.Routing, error) {
	if err := validateMutation(routingID, actor); err != nil {
		return nil, err
	}

	var result *models.Routing
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		routing, err := loadRouting(ctx, repo, routingID)
		if err != nil {
			return err
		}

		switch routing.Status() {
		case enums.RoutingStatusNew, enums.RoutingStatusRecalled:
		case enums.RoutingStatusInProgress:
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "routing already started")
		default:
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "routing already bumped; recall it first")
		}

		now := s.now().UTC()
		if err := repo.UpdateRouting(ctx, routing.ID, map[string]any{
			"started_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "start routing")
		}
		routing.StartedAt = &now
		result = routing

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRoutingStarted,
			AggregateType: enums.AggregateRouting,
			AggregateID:   routing.ID,
			Version:       1,
			Actor:         buildActor(actor),
			Data:          lifecycleEvent(routing, enums.RoutingStatusInProgress, now),
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Bump(ctx context.Context, routingID uuid.UUID, actor Actor) (*models.Routing, error) {
	if err := validateMutation(routingID, actor); err != nil {
		return nil, err
	}

	var result *models.Routing
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		routing, err := loadRouting(ctx, repo, routingID)
		if err != nil {
			return err
		}

		// Bumping an already-bumped routing is a no-op, not an error.
		if routing.CompletedAt != nil {
			result = routing
			return nil
		}

		now := s.now().UTC()
		updates := map[string]any{
			"completed_at": now,
			"bumped_at":    now,
			"bumped_by":    actor.UserID,
		}
		var actualPrep *int
		if routing.StartedAt != nil {
			seconds := int(now.Sub(*routing.StartedAt).Seconds())
			if seconds < 0 {
				seconds = 0
			}
			actualPrep = &seconds
			updates["actual_prep_seconds"] = seconds
		}
		if err := repo.UpdateRouting(ctx, routing.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bump routing")
		}

		userID := actor.UserID
		routing.CompletedAt = &now
		routing.BumpedAt = &now
		routing.BumpedBy = &userID
		routing.ActualPrepSeconds = actualPrep
		result = routing

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRoutingBumped,
			AggregateType: enums.AggregateRouting,
			AggregateID:   routing.ID,
			Version:       1,
			Actor:         buildActor(actor),
			Data: payloads.RoutingBumpedEvent{
				RoutingID:         routing.ID,
				OrderID:           routing.OrderID,
				StationID:         routing.StationID,
				TableID:           tableIDOf(routing),
				BumpedBy:          &userID,
				BumpedAt:          now,
				ActualPrepSeconds: actualPrep,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Recall(ctx context.Context, routingID uuid.UUID, actor Actor) (*models.Routing, error) {
	if err := validateMutation(routingID, actor); err != nil {
		return nil, err
	}

	var result *models.Routing
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		routing, err := loadRouting(ctx, repo, routingID)
		if err != nil {
			return err
		}

		if routing.CompletedAt == nil {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "routing is not bumped")
		}

		now := s.now().UTC()
		recallCount := routing.RecallCount + 1
		if err := repo.UpdateRouting(ctx, routing.ID, map[string]any{
			"completed_at":        nil,
			"bumped_at":           nil,
			"bumped_by":           nil,
			"actual_prep_seconds": nil,
			"recalled_at":         now,
			"recall_count":        recallCount,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recall routing")
		}

		routing.CompletedAt = nil
		routing.BumpedAt = nil
		routing.BumpedBy = nil
		routing.ActualPrepSeconds = nil
		routing.RecalledAt = &now
		routing.RecallCount = recallCount
		result = routing

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRoutingRecalled,
			AggregateType: enums.AggregateRouting,
			AggregateID:   routing.ID,
			Version:       1,
			Actor:         buildActor(actor),
			Data: payloads.RoutingRecalledEvent{
				RoutingID:   routing.ID,
				OrderID:     routing.OrderID,
				StationID:   routing.StationID,
				TableID:     tableIDOf(routing),
				RecalledAt:  now,
				RecallCount: recallCount,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) SetPriority(ctx context.Context, routingID uuid.UUID, priority int, actor Actor) (*models.Routing, error) {
	if err := validateMutation(routingID, actor); err != nil {
		return nil, err
	}
	priority = clampPriority(priority)

	var result *models.Routing
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		routing, err := loadRouting(ctx, repo, routingID)
		if err != nil {
			return err
		}
		if routing.Priority == priority {
			result = routing
			return nil
		}

		if err := repo.UpdateRouting(ctx, routing.ID, map[string]any{
			"priority": priority,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set priority")
		}
		routing.Priority = priority
		result = routing

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRoutingPriorityChanged,
			AggregateType: enums.AggregateRouting,
			AggregateID:   routing.ID,
			Version:       1,
			Actor:         buildActor(actor),
			Data: payloads.RoutingPriorityChangedEvent{
				RoutingID: routing.ID,
				OrderID:   routing.OrderID,
				StationID: routing.StationID,
				Priority:  priority,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) SetNotes(ctx context.Context, routingID uuid.UUID, notes string, actor Actor) (*models.Routing, error) {
	if err := validateMutation(routingID, actor); err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(notes)
	if utf8.RuneCountInString(trimmed) > maxNotesChars {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notes exceed 500 characters")
	}

	var result *models.Routing
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		routing, err := loadRouting(ctx, repo, routingID)
		if err != nil {
			return err
		}

		// Blank input leaves existing notes untouched.
		if trimmed == "" {
			result = routing
			return nil
		}

		if err := repo.UpdateRouting(ctx, routing.ID, map[string]any{
			"notes": trimmed,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set notes")
		}
		routing.Notes = &trimmed
		result = routing

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRoutingNotesChanged,
			AggregateType: enums.AggregateRouting,
			AggregateID:   routing.ID,
			Version:       1,
			Actor:         buildActor(actor),
			Data: payloads.RoutingNotesChangedEvent{
				RoutingID: routing.ID,
				OrderID:   routing.OrderID,
				StationID: routing.StationID,
				Notes:     trimmed,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) BumpTable(ctx context.Context, tableID uuid.UUID, actor Actor) (*BumpTableResult, error) {
	if tableID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "table id required")
	}
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeAuthRequired, "user identity missing")
	}

	active, err := s.repo.FindActiveRoutingsByTable(ctx, tableID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load table routings")
	}
	if len(active) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active routings for table")
	}

	result := &BumpTableResult{TableID: tableID}
	var failures error
	for _, routing := range active {
		if _, err := s.Bump(ctx, routing.ID, actor); err != nil {
			failures = multierr.Append(failures, fmt.Errorf("routing %s: %w", routing.ID, err))
			result.Failures = append(result.Failures, BumpFailure{
				RoutingID: routing.ID,
				Reason:    err.Error(),
			})
			continue
		}
		result.BumpedRoutingIDs = append(result.BumpedRoutingIDs, routing.ID)
	}

	if len(result.BumpedRoutingIDs) > 0 {
		now := s.now().UTC()
		userID := actor.UserID
		failedIDs := make([]uuid.UUID, 0, len(result.Failures))
		for _, failure := range result.Failures {
			failedIDs = append(failedIDs, failure.RoutingID)
		}
		emitErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventTableBumped,
				AggregateType: enums.AggregateTable,
				AggregateID:   tableID,
				Version:       1,
				Actor:         buildActor(actor),
				Data: payloads.TableBumpedEvent{
					TableID:          tableID,
					BumpedRoutingIDs: result.BumpedRoutingIDs,
					FailedRoutingIDs: failedIDs,
					BumpedBy:         &userID,
					BumpedAt:         now,
				},
			})
		})
		if emitErr != nil {
			failures = multierr.Append(failures, fmt.Errorf("emit table bumped event: %w", emitErr))
		}
	}

	if failures != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodePartialFailure, failures, "some routings could not be bumped").
			WithDetails(result)
	}
	return result, nil
}

func (s *service) ListCurrent(ctx context.Context, filters ListFilters) ([]models.Routing, error) {
	rows, err := s.repo.ListCurrent(ctx, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list routings")
	}
	return rows, nil
}

func (s *service) Get(ctx context.Context, routingID uuid.UUID) (*models.Routing, error) {
	if routingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "routing id required")
	}
	routing, err := loadRouting(ctx, s.repo, routingID)
	if err != nil {
		return nil, err
	}
	return routing, nil
}

func loadRouting(ctx context.Context, repo Repository, id uuid.UUID) (*models.Routing, error) {
	routing, err := repo.FindRouting(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "routing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load routing")
	}
	return routing, nil
}

func validateMutation(routingID uuid.UUID, actor Actor) error {
	if routingID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "routing id required")
	}
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeAuthRequired, "user identity missing")
	}
	return nil
}

func clampPriority(priority int) int {
	if priority < 0 {
		return 0
	}
	if priority > maxPriority {
		return maxPriority
	}
	return priority
}

func lifecycleEvent(routing *models.Routing, status enums.RoutingStatus, at time.Time) payloads.RoutingLifecycleEvent {
	return payloads.RoutingLifecycleEvent{
		RoutingID: routing.ID,
		OrderID:   routing.OrderID,
		StationID: routing.StationID,
		TableID:   tableIDOf(routing),
		Status:    status,
		ChangedAt: at,
	}
}

func tableIDOf(routing *models.Routing) *uuid.UUID {
	if routing.Order == nil {
		return nil
	}
	return routing.Order.TableID
}

func buildActor(actor Actor) *outbox.ActorRef {
	return &outbox.ActorRef{
		UserID:    actor.UserID,
		StationID: actor.StationID,
		Role:      actor.Role,
	}
}
