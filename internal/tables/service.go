package tables

import (
	"context"
	"fmt"
	"time"

	"github.com/kitchenlinehq/kitchenline-backend/internal/routing"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/config"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/db/models"
	pkgerrors "github.com/kitchenlinehq/kitchenline-backend/pkg/errors"
)

type routingSource interface {
	ListCurrent(ctx context.Context, filters routing.ListFilters) ([]models.Routing, error)
}

// Service serves the derived table-group view.
type Service interface {
	Groups(ctx context.Context, sortByUrgency bool) ([]TableGroup, error)
}

type service struct {
	routings routingSource
	cfg      config.RoutingConfig
	now      func() time.Time
}

// NewService builds the table-group service on top of the routing query
// surface.
func NewService(routings routingSource, cfg config.RoutingConfig) (Service, error) {
	if routings == nil {
		return nil, fmt.Errorf("routing source required")
	}
	return &service{
		routings: routings,
		cfg:      cfg,
		now:      time.Now,
	}, nil
}

func (s *service) Groups(ctx context.Context, sortByUrgency bool) ([]TableGroup, error) {
	rows, err := s.routings.ListCurrent(ctx, routing.ListFilters{})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list current routings")
	}
	opts := OptionsFromConfig(s.cfg, sortByUrgency)
	return GroupByTable(rows, s.now().UTC(), opts), nil
}
