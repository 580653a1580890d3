package auth

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/joestump/joe-marks/internal/logger"
	"github.com/joestump/joe-marks/internal/store"
)

// BearerTokenMiddleware authenticates API requests with a personal access
// token. Session cookies are not accepted on API routes.
type BearerTokenMiddleware struct {
	tokens TokenStore
	users  *store.UserStore
	log    logger.Logger
	now    func() time.Time

	// touches tracks in-flight last_used_at updates.
	touches sync.WaitGroup
}

func NewBearerTokenMiddleware(ts TokenStore, us *store.UserStore, log logger.Logger) *BearerTokenMiddleware {
	if log == nil {
		log = logger.NewNop()
	}
	return &BearerTokenMiddleware{tokens: ts, users: us, log: log, now: time.Now}
}

// Authenticate resolves the bearer token's owner and puts it in the request
// context. Missing, unknown, revoked and expired tokens get 401.
func (m *BearerTokenMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		plaintext, ok := bearerToken(r)
		if !ok {
			writeUnauthorized(w)
			return
		}

		tok, err := m.tokens.GetByHash(r.Context(), HashToken(plaintext))
		if err != nil || !tok.Active(m.now()) {
			writeUnauthorized(w)
			return
		}
		user, err := m.users.GetByID(r.Context(), tok.UserID)
		if err != nil {
			writeUnauthorized(w)
			return
		}

		// last_used_at is advisory; don't hold the request for it.
		m.touches.Add(1)
		go func() {
			defer m.touches.Done()
			if err := m.tokens.TouchLastUsed(context.Background(), tok.ID); err != nil {
				m.log.Warn("updating token last_used_at", logger.String("token_id", tok.ID), logger.Error(err))
			}
		}()

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// Wait blocks until pending last_used_at updates finish.
func (m *BearerTokenMiddleware) Wait() { m.touches.Wait() }

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return tok, tok != ""
}
