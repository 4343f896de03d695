package routing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kitchenlinehq/kitchenline-backend/pkg/db/models"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/enums"
	pkgerrors "github.com/kitchenlinehq/kitchenline-backend/pkg/errors"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/outbox"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/types"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubOutbox struct {
	events  []outbox.DomainEvent
	emitErr error
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if s.emitErr != nil {
		return s.emitErr
	}
	s.events = append(s.events, event)
	return nil
}

type stubRoutingRepo struct {
	routings    map[uuid.UUID]*models.Routing
	tableRows   []models.Routing
	updateErrFn func(id uuid.UUID) error
	orderSeq    int
}

func newStubRepo() *stubRoutingRepo {
	return &stubRoutingRepo{routings: make(map[uuid.UUID]*models.Routing)}
}

func (s *stubRoutingRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRoutingRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	s.orderSeq++
	return order, nil
}

func (s *stubRoutingRepo) CreateRoutings(ctx context.Context, routings []models.Routing) error {
	for i := range routings {
		if routings[i].ID == uuid.Nil {
			routings[i].ID = uuid.New()
		}
		row := routings[i]
		s.routings[row.ID] = &row
	}
	return nil
}

func (s *stubRoutingRepo) FindRouting(ctx context.Context, id uuid.UUID) (*models.Routing, error) {
	routing, ok := s.routings[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *routing
	return &copied, nil
}

func (s *stubRoutingRepo) FindActiveRoutingsByTable(ctx context.Context, tableID uuid.UUID) ([]models.Routing, error) {
	return s.tableRows, nil
}

func (s *stubRoutingRepo) ListCurrent(ctx context.Context, filters ListFilters) ([]models.Routing, error) {
	rows := make([]models.Routing, 0, len(s.routings))
	for _, routing := range s.routings {
		rows = append(rows, *routing)
	}
	return rows, nil
}

func (s *stubRoutingRepo) UpdateRouting(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if s.updateErrFn != nil {
		if err := s.updateErrFn(id); err != nil {
			return err
		}
	}
	routing, ok := s.routings[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for column, value := range updates {
		switch column {
		case "started_at":
			routing.StartedAt = timePtr(value)
		case "completed_at":
			routing.CompletedAt = timePtr(value)
		case "bumped_at":
			routing.BumpedAt = timePtr(value)
		case "bumped_by":
			routing.BumpedBy = uuidPtr(value)
		case "recalled_at":
			routing.RecalledAt = timePtr(value)
		case "recall_count":
			routing.RecallCount = value.(int)
		case "priority":
			routing.Priority = value.(int)
		case "notes":
			notes := value.(string)
			routing.Notes = &notes
		case "actual_prep_seconds":
			routing.ActualPrepSeconds = intPtr(value)
		}
	}
	return nil
}

func (s *stubRoutingRepo) AverageActualPrepSeconds(ctx context.Context, stationID uuid.UUID, since time.Time) (float64, error) {
	return 0, nil
}

func timePtr(value any) *time.Time {
	if value == nil {
		return nil
	}
	t := value.(time.Time)
	return &t
}

func uuidPtr(value any) *uuid.UUID {
	if value == nil {
		return nil
	}
	id := value.(uuid.UUID)
	return &id
}

func intPtr(value any) *int {
	if value == nil {
		return nil
	}
	n := value.(int)
	return &n
}

func newTestService(t *testing.T, repo *stubRoutingRepo, sink *stubOutbox) *service {
	t.Helper()
	svc, err := NewService(repo, stubTxRunner{}, sink)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc.(*service)
}

func testActor() Actor {
	return Actor{UserID: uuid.New(), Role: "cook"}
}

func seedRouting(repo *stubRoutingRepo, mutate func(*models.Routing)) *models.Routing {
	routing := &models.Routing{
		ID:        uuid.New(),
		OrderID:   uuid.New(),
		StationID: uuid.New(),
		RoutedAt:  time.Now().UTC().Add(-10 * time.Minute),
	}
	if mutate != nil {
		mutate(routing)
	}
	repo.routings[routing.ID] = routing
	return routing
}

func TestStartFromNew(t *testing.T) {
	repo := newStubRepo()
	sink := &stubOutbox{}
	svc := newTestService(t, repo, sink)
	routing := seedRouting(repo, nil)

	updated, err := svc.Start(context.Background(), routing.ID, testActor())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if updated.StartedAt == nil {
		t.Fatal("expected started_at set")
	}
	if updated.Status() != enums.RoutingStatusInProgress {
		t.Fatalf("expected in_progress, got %s", updated.Status())
	}
	if len(sink.events) != 1 || sink.events[0].EventType != enums.EventRoutingStarted {
		t.Fatalf("expected routing_started event, got %+v", sink.events)
	}
}

func TestStartAlreadyStarted(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo, &stubOutbox{})
	started := time.Now().UTC().Add(-time.Minute)
	routing := seedRouting(repo, func(r *models.Routing) {
		r.StartedAt = &started
	})

	_, err := svc.Start(context.Background(), routing.ID, testActor())
	if !pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition) {
		t.Fatalf("expected INVALID_TRANSITION, got %v", err)
	}
}

func TestStartBumpedRequiresRecall(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo, &stubOutbox{})
	done := time.Now().UTC().Add(-time.Minute)
	routing := seedRouting(repo, func(r *models.Routing) {
		r.StartedAt = &done
		r.CompletedAt = &done
	})

	_, err := svc.Start(context.Background(), routing.ID, testActor())
	if !pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition) {
		t.Fatalf("expected INVALID_TRANSITION, got %v", err)
	}
}

func TestStartAfterRecall(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo, &stubOutbox{})
	started := time.Now().UTC().Add(-10 * time.Minute)
	recalled := time.Now().UTC().Add(-time.Minute)
	routing := seedRouting(repo, func(r *models.Routing) {
		r.StartedAt = &started
		r.RecalledAt = &recalled
		r.RecallCount = 1
	})

	updated, err := svc.Start(context.Background(), routing.ID, testActor())
	if err != nil {
		t.Fatalf("Start after recall: %v", err)
	}
	if updated.Status() != enums.RoutingStatusInProgress {
		t.Fatalf("expected in_progress, got %s", updated.Status())
	}
}

func TestBumpSetsCompletionFieldsAtomically(t *testing.T) {
	repo := newStubRepo()
	sink := &stubOutbox{}
	svc := newTestService(t, repo, sink)
	started := time.Now().UTC().Add(-5 * time.Minute)
	routing := seedRouting(repo, func(r *models.Routing) {
		r.StartedAt = &started
	})
	actor := testActor()

	updated, err := svc.Bump(context.Background(), routing.ID, actor)
	if err != nil {
		t.Fatalf("Bump: %v", err)
	}
	if updated.CompletedAt == nil || updated.BumpedAt == nil || updated.BumpedBy == nil {
		t.Fatalf("expected all bump fields set, got %+v", updated)
	}
	if *updated.BumpedBy != actor.UserID {
		t.Fatalf("expected bumped_by %s, got %s", actor.UserID, *updated.BumpedBy)
	}
	if updated.ActualPrepSeconds == nil || *updated.ActualPrepSeconds < 299 {
		t.Fatalf("expected actual prep around 300s, got %v", updated.ActualPrepSeconds)
	}

	stored := repo.routings[routing.ID]
	if stored.CompletedAt == nil || stored.BumpedAt == nil || stored.BumpedBy == nil {
		t.Fatalf("expected stored bump fields set, got %+v", stored)
	}
	if len(sink.events) != 1 || sink.events[0].EventType != enums.EventRoutingBumped {
		t.Fatalf("expected routing_bumped event, got %+v", sink.events)
	}
}

func TestBumpAlreadyBumpedIsNoOp(t *testing.T) {
	repo := newStubRepo()
	sink := &stubOutbox{}
	svc := newTestService(t, repo, sink)
	done := time.Now().UTC().Add(-time.Minute)
	by := uuid.New()
	routing := seedRouting(repo, func(r *models.Routing) {
		r.StartedAt = &done
		r.CompletedAt = &done
		r.BumpedAt = &done
		r.BumpedBy = &by
	})

	updated, err := svc.Bump(context.Background(), routing.ID, testActor())
	if err != nil {
		t.Fatalf("Bump: %v", err)
	}
	if *updated.BumpedBy != by {
		t.Fatal("no-op bump must not overwrite bump fields")
	}
	if len(sink.events) != 0 {
		t.Fatalf("no-op bump must not emit events, got %+v", sink.events)
	}
}

func TestRecallClearsBumpAndIncrementsOnce(t *testing.T) {
	repo := newStubRepo()
	sink := &stubOutbox{}
	svc := newTestService(t, repo, sink)
	started := time.Now().UTC().Add(-10 * time.Minute)
	done := time.Now().UTC().Add(-time.Minute)
	by := uuid.New()
	prep := 540
	routing := seedRouting(repo, func(r *models.Routing) {
		r.StartedAt = &started
		r.CompletedAt = &done
		r.BumpedAt = &done
		r.BumpedBy = &by
		r.ActualPrepSeconds = &prep
		r.RecallCount = 2
	})

	updated, err := svc.Recall(context.Background(), routing.ID, testActor())
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if updated.CompletedAt != nil || updated.BumpedAt != nil || updated.BumpedBy != nil {
		t.Fatalf("expected bump fields cleared, got %+v", updated)
	}
	if updated.RecallCount != 3 {
		t.Fatalf("expected recall_count=3, got %d", updated.RecallCount)
	}
	if updated.RecalledAt == nil {
		t.Fatal("expected recalled_at set")
	}
	if updated.Status() != enums.RoutingStatusRecalled {
		t.Fatalf("expected recalled, got %s", updated.Status())
	}
	if len(sink.events) != 1 || sink.events[0].EventType != enums.EventRoutingRecalled {
		t.Fatalf("expected routing_recalled event, got %+v", sink.events)
	}
}

func TestRecallWithoutBump(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo, &stubOutbox{})
	routing := seedRouting(repo, nil)

	_, err := svc.Recall(context.Background(), routing.ID, testActor())
	if !pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition) {
		t.Fatalf("expected INVALID_TRANSITION, got %v", err)
	}
	if repo.routings[routing.ID].RecallCount != 0 {
		t.Fatal("failed recall must not increment recall_count")
	}
}

func TestSetPriorityClamps(t *testing.T) {
	cases := []struct {
		name  string
		input int
		want  int
	}{
		{"above maximum", 15, 10},
		{"below minimum", -3, 0},
		{"within range", 7, 7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newStubRepo()
			svc := newTestService(t, repo, &stubOutbox{})
			routing := seedRouting(repo, nil)

			updated, err := svc.SetPriority(context.Background(), routing.ID, tc.input, testActor())
			if err != nil {
				t.Fatalf("SetPriority: %v", err)
			}
			if updated.Priority != tc.want {
				t.Fatalf("expected priority %d, got %d", tc.want, updated.Priority)
			}
		})
	}
}

func TestSetNotesTooLongLeavesNotesUnchanged(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo, &stubOutbox{})
	existing := "fire with table 4"
	routing := seedRouting(repo, func(r *models.Routing) {
		r.Notes = &existing
	})

	_, err := svc.SetNotes(context.Background(), routing.ID, strings.Repeat("x", 501), testActor())
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
	if stored := repo.routings[routing.ID]; stored.Notes == nil || *stored.Notes != existing {
		t.Fatalf("expected notes unchanged, got %v", stored.Notes)
	}
}

func TestSetNotesCapCountsRunesNotBytes(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo, &stubOutbox{})
	routing := seedRouting(repo, nil)

	// 300 characters, 900 bytes. Counts as 300 against the 500-char cap.
	note := strings.Repeat("辛", 300)
	updated, err := svc.SetNotes(context.Background(), routing.ID, note, testActor())
	if err != nil {
		t.Fatalf("SetNotes: %v", err)
	}
	if updated.Notes == nil || *updated.Notes != note {
		t.Fatalf("expected multi-byte notes stored, got %v", updated.Notes)
	}

	if _, err := svc.SetNotes(context.Background(), routing.ID, strings.Repeat("辛", 501), testActor()); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR for 501 runes, got %v", err)
	}
}

func TestSetNotesTrimsAndStores(t *testing.T) {
	repo := newStubRepo()
	sink := &stubOutbox{}
	svc := newTestService(t, repo, sink)
	routing := seedRouting(repo, nil)

	updated, err := svc.SetNotes(context.Background(), routing.ID, "  no onions  ", testActor())
	if err != nil {
		t.Fatalf("SetNotes: %v", err)
	}
	if updated.Notes == nil || *updated.Notes != "no onions" {
		t.Fatalf("expected trimmed notes, got %v", updated.Notes)
	}
	if len(sink.events) != 1 || sink.events[0].EventType != enums.EventRoutingNotesChanged {
		t.Fatalf("expected routing_notes_changed event, got %+v", sink.events)
	}
}

func TestSetNotesBlankIsNoOp(t *testing.T) {
	repo := newStubRepo()
	sink := &stubOutbox{}
	svc := newTestService(t, repo, sink)
	existing := "keep me"
	routing := seedRouting(repo, func(r *models.Routing) {
		r.Notes = &existing
	})

	updated, err := svc.SetNotes(context.Background(), routing.ID, "   ", testActor())
	if err != nil {
		t.Fatalf("SetNotes: %v", err)
	}
	if updated.Notes == nil || *updated.Notes != existing {
		t.Fatalf("expected notes unchanged, got %v", updated.Notes)
	}
	if len(sink.events) != 0 {
		t.Fatalf("blank notes must not emit events, got %+v", sink.events)
	}
}

func TestBumpTableReportsPartialFailures(t *testing.T) {
	repo := newStubRepo()
	sink := &stubOutbox{}
	svc := newTestService(t, repo, sink)

	good := seedRouting(repo, nil)
	bad := seedRouting(repo, nil)
	repo.tableRows = []models.Routing{*good, *bad}
	repo.updateErrFn = func(id uuid.UUID) error {
		if id == bad.ID {
			return errors.New("row lock timeout")
		}
		return nil
	}
	tableID := uuid.New()

	result, err := svc.BumpTable(context.Background(), tableID, testActor())
	if !pkgerrors.IsCode(err, pkgerrors.CodePartialFailure) {
		t.Fatalf("expected PARTIAL_FAILURE, got %v", err)
	}
	if result == nil {
		t.Fatal("partial failure must still return the result")
	}
	if len(result.BumpedRoutingIDs) != 1 || result.BumpedRoutingIDs[0] != good.ID {
		t.Fatalf("expected %s bumped, got %+v", good.ID, result.BumpedRoutingIDs)
	}
	if len(result.Failures) != 1 || result.Failures[0].RoutingID != bad.ID {
		t.Fatalf("expected %s failed, got %+v", bad.ID, result.Failures)
	}

	var tableEvents int
	for _, event := range sink.events {
		if event.EventType == enums.EventTableBumped {
			tableEvents++
		}
	}
	if tableEvents != 1 {
		t.Fatalf("expected one table_bumped event, got %d", tableEvents)
	}
}

func TestBumpTableAllSucceed(t *testing.T) {
	repo := newStubRepo()
	sink := &stubOutbox{}
	svc := newTestService(t, repo, sink)

	first := seedRouting(repo, nil)
	second := seedRouting(repo, nil)
	repo.tableRows = []models.Routing{*first, *second}

	result, err := svc.BumpTable(context.Background(), uuid.New(), testActor())
	if err != nil {
		t.Fatalf("BumpTable: %v", err)
	}
	if len(result.BumpedRoutingIDs) != 2 || len(result.Failures) != 0 {
		t.Fatalf("expected clean bump, got %+v", result)
	}
}

func TestBumpTableNoActiveRoutings(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo, &stubOutbox{})

	_, err := svc.BumpTable(context.Background(), uuid.New(), testActor())
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestRouteOrderCreatesRoutingsAndEvents(t *testing.T) {
	repo := newStubRepo()
	sink := &stubOutbox{}
	svc := newTestService(t, repo, sink)
	tableID := uuid.New()

	order, err := svc.RouteOrder(context.Background(), RouteOrderInput{
		TableID: &tableID,
		Items: types.OrderItems{
			{MenuItemID: "burger", Name: "Burger", Quantity: 1},
			{MenuItemID: "fries", Name: "Fries", Quantity: 2},
		},
		Stations: []StationAssignment{
			{StationID: uuid.New(), Sequence: 0},
			{StationID: uuid.New(), Sequence: 1},
		},
		Actor: testActor(),
	})
	if err != nil {
		t.Fatalf("RouteOrder: %v", err)
	}
	if len(order.Routings) != 2 {
		t.Fatalf("expected 2 routings, got %d", len(order.Routings))
	}

	var orderCreated, routingCreated int
	for _, event := range sink.events {
		switch event.EventType {
		case enums.EventOrderCreated:
			orderCreated++
		case enums.EventRoutingCreated:
			routingCreated++
		}
	}
	if orderCreated != 1 || routingCreated != 2 {
		t.Fatalf("expected 1 order_created + 2 routing_created, got %d/%d", orderCreated, routingCreated)
	}
}

func TestRouteOrderRejectsDuplicateStations(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo, &stubOutbox{})
	station := uuid.New()

	_, err := svc.RouteOrder(context.Background(), RouteOrderInput{
		Items: types.OrderItems{{MenuItemID: "burger", Quantity: 1}},
		Stations: []StationAssignment{
			{StationID: station},
			{StationID: station},
		},
		Actor: testActor(),
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}
