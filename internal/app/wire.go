package app

import (
	"log/slog"

	"github.com/attaboy/muteregistry/internal/auth"
	"github.com/attaboy/muteregistry/internal/guard"
	"github.com/attaboy/muteregistry/internal/handler"
	adminhandler "github.com/attaboy/muteregistry/internal/handler/admin"
	"github.com/attaboy/muteregistry/internal/infra"
	"github.com/attaboy/muteregistry/internal/notify"
	"github.com/attaboy/muteregistry/internal/registry"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	Registry     *registry.Registry
	Store        handler.Pinger
	JWTMgr       *auth.JWTManager
	Logger       *slog.Logger
	Hub          *infra.WSHub
	Gatherer     prometheus.Gatherer
	CheckLimiter *guard.RateLimiter
	CORSOrigin   string
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	logger := deps.Logger
	jwtMgr := deps.JWTMgr
	corsOrigin := deps.CORSOrigin
	if corsOrigin == "" {
		corsOrigin = "*"
	}

	checkHandler := handler.NewCheckHandler(deps.Registry)
	feedHandler := handler.NewFeedHandler(deps.Hub, notify.FeedRoom, corsOrigin, logger)
	restrictionAdmin := adminhandler.NewRestrictionHandler(deps.Registry)

	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORSWithOrigins(corsOrigin))

	// Prometheus exposition sets its own content type.
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(handler.JSONContentType)

		r.Get("/health", handler.HealthHandler(deps.Store))

		// Game servers
		r.Route("/v1/restrictions", func(r chi.Router) {
			r.Use(auth.AuthenticateServer(jwtMgr, handler.RespondError))
			if deps.CheckLimiter != nil {
				r.Use(handler.RateLimit(deps.CheckLimiter))
			}
			r.Post("/check", checkHandler.Check)
		})

		// Moderators
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.AuthenticateAdmin(jwtMgr, handler.RespondError))

			r.Get("/restrictions", restrictionAdmin.ListRestrictions)
			r.Get("/restrictions/count", restrictionAdmin.CountRestrictions)
			r.Get("/restrictions/feed", feedHandler.Connect)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(handler.RespondError, auth.WriteRoles()...))

				r.Post("/restrictions", restrictionAdmin.CreateRestriction)
				r.Delete("/restrictions/by-value/{value}", restrictionAdmin.DeleteRestrictionByValue)
				r.Delete("/restrictions/{type}/{value}", restrictionAdmin.DeleteRestriction)
				r.Post("/players/mute", restrictionAdmin.MutePlayer)
				r.Post("/players/unmute", restrictionAdmin.UnmutePlayer)
			})
		})
	})

	return r
}
