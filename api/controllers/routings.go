package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kitchenlinehq/kitchenline-backend/api/middleware"
	"github.com/kitchenlinehq/kitchenline-backend/api/responses"
	"github.com/kitchenlinehq/kitchenline-backend/api/validators"
	"github.com/kitchenlinehq/kitchenline-backend/internal/routing"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/db/models"
	pkgerrors "github.com/kitchenlinehq/kitchenline-backend/pkg/errors"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/logger"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/types"
)

type createOrderRequest struct {
	TableID  *uuid.UUID                 `json:"table_id"`
	SeatID   *uuid.UUID                 `json:"seat_id"`
	Items    types.OrderItems           `json:"items" validate:"required,min=1"`
	Stations []stationAssignmentRequest `json:"stations" validate:"required,min=1,dive"`
}

type stationAssignmentRequest struct {
	StationID            uuid.UUID `json:"station_id" validate:"required"`
	Sequence             int       `json:"sequence" validate:"min=0"`
	EstimatedPrepSeconds *int      `json:"estimated_prep_seconds" validate:"omitempty,min=1"`
}

type setPriorityRequest struct {
	Priority int `json:"priority"`
}

type setNotesRequest struct {
	Notes string `json:"notes"`
}

// CreateOrder accepts a placed order and fans it out into per-station routings.
func CreateOrder(svc routing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := routing.RouteOrderInput{
			TableID: req.TableID,
			SeatID:  req.SeatID,
			Items:   req.Items,
			Actor:   actorFromRequest(r),
		}
		for _, assignment := range req.Stations {
			input.Stations = append(input.Stations, routing.StationAssignment{
				StationID:            assignment.StationID,
				Sequence:             assignment.Sequence,
				EstimatedPrepSeconds: assignment.EstimatedPrepSeconds,
			})
		}

		order, err := svc.RouteOrder(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// ListRoutings returns active routings, optionally scoped to one station or table.
func ListRoutings(svc routing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var filters routing.ListFilters
		if raw := strings.TrimSpace(r.URL.Query().Get("station_id")); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid station id"))
				return
			}
			filters.StationID = &id
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("table_id")); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid table id"))
				return
			}
			filters.TableID = &id
		}

		rows, err := svc.ListCurrent(r.Context(), filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// GetRouting returns one routing by id.
func GetRouting(svc routing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := routingIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		row, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

// StartRouting marks a routing as in progress.
func StartRouting(svc routing.Service, logg *logger.Logger) http.HandlerFunc {
	return routingMutation(svc.Start, logg)
}

// BumpRouting completes a routing.
func BumpRouting(svc routing.Service, logg *logger.Logger) http.HandlerFunc {
	return routingMutation(svc.Bump, logg)
}

// RecallRouting reopens a bumped routing.
func RecallRouting(svc routing.Service, logg *logger.Logger) http.HandlerFunc {
	return routingMutation(svc.Recall, logg)
}

// SetRoutingPriority updates the routing's display priority.
func SetRoutingPriority(svc routing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := routingIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req setPriorityRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		row, err := svc.SetPriority(r.Context(), id, req.Priority, actorFromRequest(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

// SetRoutingNotes updates the routing's kitchen notes.
func SetRoutingNotes(svc routing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := routingIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req setNotesRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		row, err := svc.SetNotes(r.Context(), id, req.Notes, actorFromRequest(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

type routingMutationFunc func(ctx context.Context, routingID uuid.UUID, actor routing.Actor) (*models.Routing, error)

func routingMutation(mutate routingMutationFunc, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := routingIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		row, err := mutate(r.Context(), id, actorFromRequest(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

func routingIDFromRequest(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "routingID"))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid routing id")
	}
	return id, nil
}

func actorFromRequest(r *http.Request) routing.Actor {
	return routing.Actor{
		UserID: middleware.UserUUIDFromContext(r.Context()),
		Role:   middleware.RoleFromContext(r.Context()),
	}
}
