package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kitchenlinehq/kitchenline-backend/api/responses"
	"github.com/kitchenlinehq/kitchenline-backend/internal/stations"
	pkgerrors "github.com/kitchenlinehq/kitchenline-backend/pkg/errors"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/logger"
)

// ListStations returns every configured prep station.
func ListStations(svc stations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// GetStation returns a single station by id.
func GetStation(svc stations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "stationID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid station id"))
			return
		}
		station, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, station)
	}
}
