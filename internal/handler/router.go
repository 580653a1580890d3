package handler

import (
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joestump/joe-marks/internal/auth"
	"github.com/joestump/joe-marks/internal/build"
	"github.com/joestump/joe-marks/internal/logger"
)

// Deps holds all dependencies required to build the HTTP router.
type Deps struct {
	SessionManager *scs.SessionManager
	AuthHandlers   *auth.Handlers
	SessionAuth    *auth.SessionMiddleware
	// API is mounted at /api/v1. It does its own bearer-token auth.
	API http.Handler
	Log logger.Logger
}

// NewRouter assembles the root router: browser auth under /auth, the JSON
// API under /api/v1, plus /healthz and /metrics.
func NewRouter(deps Deps) http.Handler {
	log := deps.Log
	if log == nil {
		log = logger.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthz)
	r.Handle("/metrics", promhttp.Handler())

	// Sessions are only loaded where they are used. scs buffers the
	// response, which would break the websocket upgrade under /api/v1.
	r.Route("/auth", func(r chi.Router) {
		r.Use(deps.SessionManager.LoadAndSave)
		r.Get("/login", deps.AuthHandlers.Login)
		r.Get("/callback", deps.AuthHandlers.Callback)
		r.Post("/logout", deps.AuthHandlers.Logout)

		r.Group(func(r chi.Router) {
			r.Use(deps.SessionAuth.RequireSession)
			r.Get("/me", deps.AuthHandlers.Me)
			r.Post("/tokens", deps.AuthHandlers.MintToken)
		})
	})

	r.Mount("/api/v1", deps.API)

	return r
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Version: build.Version, Commit: build.Commit})
}
