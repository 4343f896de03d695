package stations

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kitchenlinehq/kitchenline-backend/pkg/db/models"
	pkgerrors "github.com/kitchenlinehq/kitchenline-backend/pkg/errors"
)

type stubStationsRepo struct {
	stations []models.Station
	byID     map[uuid.UUID]*models.Station
	listErr  error
}

func (s *stubStationsRepo) ListActive(ctx context.Context) ([]models.Station, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.stations, nil
}

func (s *stubStationsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Station, error) {
	if station, ok := s.byID[id]; ok {
		return station, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func TestListReturnsActiveStations(t *testing.T) {
	repo := &stubStationsRepo{
		stations: []models.Station{
			{ID: uuid.New(), Name: "Grill"},
			{ID: uuid.New(), Name: "Cold"},
		},
	}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	rows, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 stations, got %d", len(rows))
	}
}

func TestGetUnknownStation(t *testing.T) {
	svc, err := NewService(&stubStationsRepo{byID: map[uuid.UUID]*models.Station{}})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, err = svc.Get(context.Background(), uuid.New())
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestGetRequiresID(t *testing.T) {
	svc, err := NewService(&stubStationsRepo{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, err = svc.Get(context.Background(), uuid.Nil)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}
