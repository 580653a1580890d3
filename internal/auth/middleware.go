package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/alexedwards/scs/v2"

	"github.com/joestump/joe-marks/internal/store"
)

type contextKey string

const userContextKey contextKey = "user"

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u *store.User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *store.User {
	u, _ := ctx.Value(userContextKey).(*store.User)
	return u
}

// SessionMiddleware authenticates browser requests from the scs session.
type SessionMiddleware struct {
	sessions *scs.SessionManager
	users    *store.UserStore
}

func NewSessionMiddleware(sm *scs.SessionManager, us *store.UserStore) *SessionMiddleware {
	return &SessionMiddleware{sessions: sm, users: us}
}

// RequireSession rejects requests without a signed-in session with 401. A
// session pointing at a deleted user is destroyed.
func (m *SessionMiddleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := m.sessions.GetString(r.Context(), SessionUserIDKey)
		if userID == "" {
			writeUnauthorized(w)
			return
		}
		user, err := m.users.GetByID(r.Context(), userID)
		if err != nil {
			_ = m.sessions.Destroy(r.Context())
			writeUnauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func writeUnauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized", "code": "UNAUTHORIZED"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
