package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/joestump/joe-marks/internal/auth"
	"github.com/joestump/joe-marks/internal/db"
	"github.com/joestump/joe-marks/internal/store"
	"github.com/joestump/joe-marks/internal/testutil"
)

type fakeAuthn struct {
	claims *auth.Claims
	err    error
	gotVer string
}

func (f *fakeAuthn) AuthCodeURL(state, challenge string) string {
	return "https://idp.example.com/authorize?state=" + url.QueryEscape(state) + "&code_challenge=" + url.QueryEscape(challenge)
}

func (f *fakeAuthn) Exchange(_ context.Context, code, verifier string) (*auth.Claims, error) {
	f.gotVer = verifier
	if f.err != nil {
		return nil, f.err
	}
	if code != "good-code" {
		return nil, errors.New("bad code")
	}
	return f.claims, nil
}

type loginEnv struct {
	router http.Handler
	authn  *fakeAuthn
	tokens *auth.SQLTokenStore
	users  *store.UserStore
}

func newLoginEnv(t *testing.T) *loginEnv {
	t.Helper()
	conn := testutil.NewTestDB(t)
	users := store.NewUserStore(conn)
	tokens := auth.NewSQLTokenStore(conn)
	sm := auth.NewSessionManager(conn, db.DriverSQLite, time.Hour, false)
	authn := &fakeAuthn{claims: &auth.Claims{
		Issuer:  "https://idp.example.com",
		Subject: "sub-1",
		Email:   "alice@example.com",
		Name:    "Alice",
	}}
	h := auth.NewHandlers(auth.HandlersConfig{
		Authenticator: authn,
		Sessions:      sm,
		Users:         users,
		Tokens:        tokens,
	})
	session := auth.NewSessionMiddleware(sm, users)

	r := chi.NewRouter()
	r.Use(sm.LoadAndSave)
	r.Get("/auth/login", h.Login)
	r.Get("/auth/callback", h.Callback)
	r.Post("/auth/logout", h.Logout)
	r.Group(func(r chi.Router) {
		r.Use(session.RequireSession)
		r.Get("/auth/me", h.Me)
		r.Post("/auth/tokens", h.MintToken)
	})
	return &loginEnv{router: r, authn: authn, tokens: tokens, users: users}
}

func (e *loginEnv) do(req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func cookieNamed(cs []*http.Cookie, name string) *http.Cookie {
	for _, c := range cs {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// signIn runs login and callback and returns the session cookie.
func (e *loginEnv) signIn(t *testing.T) *http.Cookie {
	t.Helper()
	rec := e.do(httptest.NewRequest(http.MethodGet, "/auth/login?redirect=/auth/me", nil), nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("login status = %d, want 302", rec.Code)
	}
	loc, _ := url.Parse(rec.Header().Get("Location"))
	state := loc.Query().Get("state")
	if state == "" || loc.Query().Get("code_challenge") == "" {
		t.Fatalf("login redirect missing state or challenge: %s", loc)
	}

	cb := httptest.NewRequest(http.MethodGet, "/auth/callback?code=good-code&state="+url.QueryEscape(state), nil)
	rec = e.do(cb, rec.Result().Cookies())
	if rec.Code != http.StatusFound {
		t.Fatalf("callback status = %d, want 302; body: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != "/auth/me" {
		t.Errorf("callback redirect = %q, want /auth/me", got)
	}
	session := cookieNamed(rec.Result().Cookies(), "joe_marks_session")
	if session == nil {
		t.Fatal("no session cookie after callback")
	}
	return session
}

func TestLoginFlow_SessionAndMe(t *testing.T) {
	env := newLoginEnv(t)
	session := env.signIn(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/auth/me", nil), []*http.Cookie{session})
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d, want 200", rec.Code)
	}
	var id auth.Identity
	if err := json.NewDecoder(rec.Body).Decode(&id); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if id.Email != "alice@example.com" || id.DisplayName != "Alice" || id.ID == "" {
		t.Errorf("me = %+v", id)
	}
	if env.authn.gotVer == "" {
		t.Error("PKCE verifier was not passed to Exchange")
	}
}

func TestCallback_RejectsBadState(t *testing.T) {
	env := newLoginEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/auth/login", nil), nil)

	cb := httptest.NewRequest(http.MethodGet, "/auth/callback?code=good-code&state=forged", nil)
	rec = env.do(cb, rec.Result().Cookies())
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCallback_ExchangeFailure(t *testing.T) {
	env := newLoginEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/auth/login", nil), nil)
	loc, _ := url.Parse(rec.Header().Get("Location"))

	cb := httptest.NewRequest(http.MethodGet, "/auth/callback?code=bad&state="+url.QueryEscape(loc.Query().Get("state")), nil)
	rec = env.do(cb, rec.Result().Cookies())
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestLogin_IgnoresOffsiteRedirect(t *testing.T) {
	env := newLoginEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/auth/login?redirect=//evil.example.com", nil), nil)
	c := cookieNamed(rec.Result().Cookies(), "__marks_redirect")
	if c == nil || c.Value != auth.DefaultLoginRedirect {
		t.Errorf("redirect cookie = %+v, want %q", c, auth.DefaultLoginRedirect)
	}
}

func TestMe_RequiresSession(t *testing.T) {
	env := newLoginEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/auth/me", nil), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestMintToken(t *testing.T) {
	env := newLoginEnv(t)
	session := env.signIn(t)

	body := bytes.NewBufferString(`{"name":"cli","expires_in":"24h"}`)
	rec := env.do(httptest.NewRequest(http.MethodPost, "/auth/tokens", body), []*http.Cookie{session})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body: %s", rec.Code, rec.Body.String())
	}
	var resp auth.MintTokenResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(resp.Token, auth.TokenPrefix) {
		t.Errorf("token = %q, want %s prefix", resp.Token, auth.TokenPrefix)
	}
	if resp.ExpiresAt == nil {
		t.Error("expires_at missing")
	}

	tok, err := env.tokens.GetByHash(context.Background(), auth.HashToken(resp.Token))
	if err != nil {
		t.Fatalf("minted token not stored: %v", err)
	}
	if tok.Name != "cli" {
		t.Errorf("name = %q, want cli", tok.Name)
	}
}

func TestMintToken_Validation(t *testing.T) {
	env := newLoginEnv(t)
	session := env.signIn(t)

	for _, body := range []string{`not json`, `{"name":"  "}`, `{"name":"x","expires_in":"soon"}`, `{"name":"x","expires_in":"-1h"}`} {
		rec := env.do(httptest.NewRequest(http.MethodPost, "/auth/tokens", strings.NewReader(body)), []*http.Cookie{session})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestLogout_EndsSession(t *testing.T) {
	env := newLoginEnv(t)
	session := env.signIn(t)

	rec := env.do(httptest.NewRequest(http.MethodPost, "/auth/logout", nil), []*http.Cookie{session})
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d", rec.Code)
	}
	rec = env.do(httptest.NewRequest(http.MethodGet, "/auth/me", nil), []*http.Cookie{session})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("me after logout = %d, want 401", rec.Code)
	}
}
