package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/joestump/joe-marks/internal/api"
	"github.com/joestump/joe-marks/internal/auth"
	"github.com/joestump/joe-marks/internal/logger"
	"github.com/joestump/joe-marks/internal/realtime"
	"github.com/joestump/joe-marks/internal/store"
	"github.com/joestump/joe-marks/internal/testutil"
)

// testEnv wires the API router to real stores on an in-memory database.
type testEnv struct {
	Router    http.Handler
	Bookmarks *store.BookmarkStore
	Users     *store.UserStore
	Tokens    *auth.SQLTokenStore
	Hub       *realtime.Hub
	bearer    *auth.BearerTokenMiddleware
	done      chan struct{}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn := testutil.NewTestDB(t)

	env := &testEnv{
		Bookmarks: store.NewBookmarkStore(conn),
		Users:     store.NewUserStore(conn),
		Tokens:    auth.NewSQLTokenStore(conn),
		Hub:       realtime.NewHub(0, logger.NewNop()),
		done:      make(chan struct{}),
	}
	env.bearer = auth.NewBearerTokenMiddleware(env.Tokens, env.Users, nil)
	env.Router = api.NewAPIRouter(api.Deps{
		BearerAuth: env.bearer,
		Bookmarks:  env.Bookmarks,
		Tokens:     env.Tokens,
		Hub:        env.Hub,
		Done:       env.done,
	})
	t.Cleanup(env.bearer.Wait)
	return env
}

// seedUser creates a user and returns it.
func seedUser(t *testing.T, env *testEnv, email string) *store.User {
	t.Helper()
	u, err := env.Users.Upsert(context.Background(), "test", "sub-"+email, email, "Test User", "")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

// seedToken mints a token for userID and returns the plaintext.
func seedToken(t *testing.T, env *testEnv, userID string) string {
	t.Helper()
	plaintext, hash, err := auth.GenerateToken()
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := env.Tokens.Create(context.Background(), userID, "test-token", hash, nil); err != nil {
		t.Fatalf("create token: %v", err)
	}
	return plaintext
}

func authRequest(r *http.Request, token string) *http.Request {
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

func (env *testEnv) serve(r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.Router.ServeHTTP(rec, r)
	return rec
}
