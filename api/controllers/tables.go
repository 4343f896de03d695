package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kitchenlinehq/kitchenline-backend/api/responses"
	"github.com/kitchenlinehq/kitchenline-backend/internal/routing"
	"github.com/kitchenlinehq/kitchenline-backend/internal/tables"
	pkgerrors "github.com/kitchenlinehq/kitchenline-backend/pkg/errors"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/logger"
)

// ListTableGroups returns routings grouped per table for the expo view.
// ?sort=urgency orders groups by the urgency score instead of arrival time.
func ListTableGroups(svc tables.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sortByUrgency := false
		if raw := strings.TrimSpace(r.URL.Query().Get("sort")); raw != "" {
			if raw != "urgency" && raw != "arrival" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "sort must be urgency or arrival"))
				return
			}
			sortByUrgency = raw == "urgency"
		}

		groups, err := svc.Groups(r.Context(), sortByUrgency)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, groups)
	}
}

// BumpTable completes every active routing on a table, reporting per-routing
// failures instead of rolling back the ones that succeeded.
func BumpTable(svc routing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tableID, err := uuid.Parse(chi.URLParam(r, "tableID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid table id"))
			return
		}

		result, err := svc.BumpTable(r.Context(), tableID, actorFromRequest(r))
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodePartialFailure) && result != nil {
				writePartialFailure(r, w, logg, result, err)
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func writePartialFailure(r *http.Request, w http.ResponseWriter, logg *logger.Logger, result *routing.BumpTableResult, err error) {
	typed := pkgerrors.As(err)
	if typed != nil {
		err = typed.WithDetails(result)
	}
	responses.WriteError(r.Context(), logg, w, err)
}
