package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/joestump/joe-marks/internal/auth"
	"github.com/joestump/joe-marks/internal/store"
	"github.com/joestump/joe-marks/internal/testutil"
)

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := auth.UserFromContext(r.Context())
		if u == nil {
			http.Error(w, "no user", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(u.ID))
	})
}

func TestBearerTokenMiddleware(t *testing.T) {
	conn := testutil.NewTestDB(t)
	ts := auth.NewSQLTokenStore(conn)
	us := store.NewUserStore(conn)
	userID := testutil.SeedUser(t, conn, "alice@example.com")
	ctx := context.Background()

	valid, hash, _ := auth.GenerateToken()
	if _, err := ts.Create(ctx, userID, "valid", hash, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	expired, hash, _ := auth.GenerateToken()
	past := time.Now().Add(-time.Minute)
	if _, err := ts.Create(ctx, userID, "expired", hash, &past); err != nil {
		t.Fatalf("Create: %v", err)
	}

	revoked, hash, _ := auth.GenerateToken()
	tok, _ := ts.Create(ctx, userID, "revoked", hash, nil)
	if err := ts.Revoke(ctx, tok.ID, userID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	mw := auth.NewBearerTokenMiddleware(ts, us, nil)
	h := mw.Authenticate(echoUser())

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + valid, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"unknown", "Bearer mk_nope", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"revoked", "Bearer " + revoked, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/bookmarks", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d; body: %s", rec.Code, tt.want, rec.Body.String())
			}
			if tt.want == http.StatusOK && rec.Body.String() != userID {
				t.Errorf("user = %q, want %q", rec.Body.String(), userID)
			}
		})
	}

	mw.Wait()
	got, _ := ts.GetByHash(ctx, auth.HashToken(valid))
	if !got.LastUsedAt.Valid {
		t.Error("last_used_at not updated for a successful request")
	}
}
