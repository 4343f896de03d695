package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kitchenlinehq/kitchenline-backend/api/middleware"
	"github.com/kitchenlinehq/kitchenline-backend/api/responses"
	"github.com/kitchenlinehq/kitchenline-backend/api/validators"
	"github.com/kitchenlinehq/kitchenline-backend/internal/anomalies"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/enums"
	pkgerrors "github.com/kitchenlinehq/kitchenline-backend/pkg/errors"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/logger"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/pagination"
)

type resolveAnomalyRequest struct {
	Status string `json:"status" validate:"omitempty,oneof=resolved false_positive ignored"`
	Method string `json:"method" validate:"omitempty,oneof=manual auto bulk"`
	Notes  string `json:"notes" validate:"omitempty,max=1000"`
}

type resolveByTypeRequest struct {
	TypeCode    string `json:"type_code" validate:"required"`
	MaxAgeHours int    `json:"max_age_hours" validate:"required,min=1"`
	Notes       string `json:"notes" validate:"omitempty,max=1000"`
}

// ListAnomalies returns anomalies filtered by status, category, or subject.
func ListAnomalies(svc anomalies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var filters anomalies.ListFilters

		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseAnomalyStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			filters.Status = &status
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
			category := enums.AnomalyCategory(raw)
			if !category.IsValid() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid category"))
				return
			}
			filters.Category = &category
		}
		filters.TypeCode = strings.TrimSpace(r.URL.Query().Get("type_code"))
		if raw := strings.TrimSpace(r.URL.Query().Get("order_id")); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
				return
			}
			filters.OrderID = &id
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("table_id")); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid table id"))
				return
			}
			filters.TableID = &id
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		rows, err := svc.Query(r.Context(), filters, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// GetAnomaly returns one anomaly with its type preloaded.
func GetAnomaly(svc anomalies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := anomalyIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		anomaly, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, anomaly)
	}
}

// InvestigateAnomaly moves an open anomaly into investigating.
func InvestigateAnomaly(svc anomalies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := anomalyIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		anomaly, err := svc.Investigate(r.Context(), id, actorIDFromRequest(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, anomaly)
	}
}

// ResolveAnomaly closes one anomaly with a terminal status.
func ResolveAnomaly(svc anomalies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := anomalyIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req resolveAnomalyRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		anomaly, err := svc.Resolve(r.Context(), id, anomalies.ResolveInput{
			Status: enums.AnomalyStatus(req.Status),
			Method: enums.ResolutionMethod(req.Method),
			Notes:  req.Notes,
			Actor:  actorIDFromRequest(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, anomaly)
	}
}

// ResolveAnomaliesByType bulk-resolves stale anomalies of one type.
func ResolveAnomaliesByType(svc anomalies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resolveByTypeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		count, err := svc.ResolveByType(r.Context(), req.TypeCode, req.MaxAgeHours, anomalies.ResolveInput{
			Notes: req.Notes,
			Actor: actorIDFromRequest(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{"resolved": count})
	}
}

func anomalyIDFromRequest(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "anomalyID"))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid anomaly id")
	}
	return id, nil
}

func actorIDFromRequest(r *http.Request) *uuid.UUID {
	id := middleware.UserUUIDFromContext(r.Context())
	if id == uuid.Nil {
		return nil
	}
	return &id
}
