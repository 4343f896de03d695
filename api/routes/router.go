package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kitchenlinehq/kitchenline-backend/api/controllers"
	"github.com/kitchenlinehq/kitchenline-backend/api/middleware"
	"github.com/kitchenlinehq/kitchenline-backend/internal/anomalies"
	"github.com/kitchenlinehq/kitchenline-backend/internal/notifications"
	"github.com/kitchenlinehq/kitchenline-backend/internal/realtime"
	"github.com/kitchenlinehq/kitchenline-backend/internal/routing"
	"github.com/kitchenlinehq/kitchenline-backend/internal/stations"
	"github.com/kitchenlinehq/kitchenline-backend/internal/tables"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/auth/session"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/config"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/db"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/enums"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/logger"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/pubsub"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/redis"
)

// Deps bundles everything the HTTP layer needs. Nil optional members degrade
// the matching routes rather than panicking at wire-up time.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    *redis.Client
	PubSub   *pubsub.Client
	Sessions session.AccessSessionChecker

	Realtime *realtime.Manager

	Routings      routing.Service
	Tables        tables.Service
	Stations      stations.Service
	Anomalies     anomalies.Service
	Notifications notifications.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(),
		middleware.Logging(logg),
	)

	var redisPing, pubsubPing db.Pinger
	if deps.Redis != nil {
		redisPing = deps.Redis
	}
	if deps.PubSub != nil {
		pubsubPing = deps.PubSub
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, redisPing, pubsubPing))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
		r.Use(middleware.Idempotency(idempotencyStore(deps.Redis), logg))

		r.Get("/stations", controllers.ListStations(deps.Stations, logg))
		r.Get("/stations/{stationID}", controllers.GetStation(deps.Stations, logg))

		r.Post("/orders", controllers.CreateOrder(deps.Routings, logg))

		if deps.Realtime != nil {
			r.Get("/stream", controllers.StreamEvents(deps.Realtime, logg))
		}

		r.Route("/routings", func(r chi.Router) {
			r.Get("/", controllers.ListRoutings(deps.Routings, logg))
			r.Get("/{routingID}", controllers.GetRouting(deps.Routings, logg))
			r.Post("/{routingID}/start", controllers.StartRouting(deps.Routings, logg))
			r.Post("/{routingID}/bump", controllers.BumpRouting(deps.Routings, logg))
			r.Post("/{routingID}/recall", controllers.RecallRouting(deps.Routings, logg))
			r.Patch("/{routingID}/priority", controllers.SetRoutingPriority(deps.Routings, logg))
			r.Patch("/{routingID}/notes", controllers.SetRoutingNotes(deps.Routings, logg))
		})

		r.Route("/tables", func(r chi.Router) {
			r.Get("/groups", controllers.ListTableGroups(deps.Tables, logg))
			r.Post("/{tableID}/bump", controllers.BumpTable(deps.Routings, logg))
		})

		r.Route("/anomalies", func(r chi.Router) {
			r.Get("/", controllers.ListAnomalies(deps.Anomalies, logg))
			r.Get("/{anomalyID}", controllers.GetAnomaly(deps.Anomalies, logg))

			manager := r.With(middleware.RequireRoles(logg, enums.StaffRoleManager, enums.StaffRoleAdmin))
			manager.Post("/{anomalyID}/investigate", controllers.InvestigateAnomaly(deps.Anomalies, logg))
			manager.Post("/{anomalyID}/resolve", controllers.ResolveAnomaly(deps.Anomalies, logg))
			manager.Post("/resolve-by-type", controllers.ResolveAnomaliesByType(deps.Anomalies, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/{notificationID}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
		})
	})

	return r
}

func idempotencyStore(client *redis.Client) redis.IdempotencyStore {
	if client == nil {
		return nil
	}
	return client
}
