package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/joestump/joe-marks/internal/auth"
	"github.com/joestump/joe-marks/internal/logger"
	"github.com/joestump/joe-marks/internal/realtime"
	"github.com/joestump/joe-marks/internal/store"
)

// Deps holds everything the API router needs.
type Deps struct {
	BearerAuth *auth.BearerTokenMiddleware
	Bookmarks  store.BookmarkStoreIface
	Tokens     auth.TokenStore
	// Hub serves change subscriptions on this instance.
	Hub *realtime.Hub
	// Publisher receives every write. It is the Hub itself for a single
	// instance, or a RedisBroker that feeds all instances' hubs.
	Publisher realtime.Publisher
	Log       logger.Logger
	// Done, when closed, ends open change streams with StatusGoingAway.
	Done <-chan struct{}
	// PingInterval is how often idle change streams are pinged; zero means
	// 30s.
	PingInterval time.Duration
}

// NewAPIRouter builds the /api/v1 sub-router. Every route requires a bearer
// token.
func NewAPIRouter(deps Deps) chi.Router {
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}
	if deps.Publisher == nil {
		deps.Publisher = deps.Hub
	}
	if deps.PingInterval <= 0 {
		deps.PingInterval = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(deps.BearerAuth.Authenticate)

	r.Get("/me", me)

	b := &bookmarksHandler{
		store:     deps.Bookmarks,
		hub:       deps.Hub,
		publisher: deps.Publisher,
		log:       deps.Log.With(logger.String("component", "api")),
		done:      deps.Done,
		ping:      deps.PingInterval,
	}
	r.Route("/bookmarks", func(r chi.Router) {
		r.With(jsonContentType).Get("/", b.List)
		r.With(jsonContentType).Post("/", b.Create)
		r.Get("/changes", b.Changes)
		r.With(jsonContentType).Delete("/{id}", b.Delete)
	})

	t := &tokensHandler{tokens: deps.Tokens}
	r.With(jsonContentType).Get("/tokens", t.List)
	r.With(jsonContentType).Delete("/tokens/{id}", t.Revoke)

	return r
}

func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// me returns the caller's identity.
// GET /api/v1/me
//
// @Summary      Current identity
// @Tags         Users
// @Produce      json
// @Success      200  {object}  auth.Identity
// @Failure      401  {object}  ErrorResponse
// @Security     BearerToken
// @Router       /me [get]
func me(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", CodeUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, auth.IdentityOf(user))
}
