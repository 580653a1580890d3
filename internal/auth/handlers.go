package auth

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/joestump/joe-marks/internal/logger"
	"github.com/joestump/joe-marks/internal/store"
)

const (
	cookieState        = "__marks_state"
	cookieCodeVerifier = "__marks_pkce"
	cookieRedirect     = "__marks_redirect"

	// DefaultLoginRedirect is where a completed login lands without an
	// explicit redirect.
	DefaultLoginRedirect = "/auth/me"
)

// Handlers serves the browser login flow and token minting.
type Handlers struct {
	authn      Authenticator
	sessions   *scs.SessionManager
	users      *store.UserStore
	tokens     TokenStore
	adminEmail string
	secure     bool
	log        logger.Logger
}

// HandlersConfig collects the dependencies of Handlers.
type HandlersConfig struct {
	Authenticator Authenticator
	Sessions      *scs.SessionManager
	Users         *store.UserStore
	Tokens        TokenStore
	AdminEmail    string
	// SecureCookies marks the pre-auth cookies Secure. Disable only for
	// plain-http development servers.
	SecureCookies bool
	Log           logger.Logger
}

func NewHandlers(cfg HandlersConfig) *Handlers {
	log := cfg.Log
	if log == nil {
		log = logger.NewNop()
	}
	return &Handlers{
		authn:      cfg.Authenticator,
		sessions:   cfg.Sessions,
		users:      cfg.Users,
		tokens:     cfg.Tokens,
		adminEmail: cfg.AdminEmail,
		secure:     cfg.SecureCookies,
		log:        log,
	}
}

// Login starts the authorization code flow with PKCE.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	state, err := GenerateState()
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	verifier, challenge, err := GeneratePKCE()
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.setPreAuthCookie(w, cookieState, state)
	h.setPreAuthCookie(w, cookieCodeVerifier, verifier)
	h.setPreAuthCookie(w, cookieRedirect, safeRedirect(r.URL.Query().Get("redirect")))

	http.Redirect(w, r, h.authn.AuthCodeURL(state, challenge), http.StatusFound)
}

// Callback completes the flow: it checks state, exchanges the code, upserts
// the user and starts a session.
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(cookieState)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}
	verifierCookie, err := r.Cookie(cookieCodeVerifier)
	if err != nil {
		http.Error(w, "missing code verifier", http.StatusBadRequest)
		return
	}

	claims, err := h.authn.Exchange(r.Context(), r.URL.Query().Get("code"), verifierCookie.Value)
	if err != nil {
		h.log.Warn("oidc exchange failed", logger.Error(err))
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	user, err := h.users.Upsert(r.Context(), claims.Issuer, claims.Subject, claims.Email, claims.Name, h.adminEmail)
	if err != nil {
		h.log.Error("upserting user", logger.String("subject", claims.Subject), logger.Error(err))
		http.Error(w, "user record error", http.StatusInternalServerError)
		return
	}

	if err := h.sessions.RenewToken(r.Context()); err != nil {
		http.Error(w, "session error", http.StatusInternalServerError)
		return
	}
	h.sessions.Put(r.Context(), SessionUserIDKey, user.ID)

	redirect := DefaultLoginRedirect
	if c, err := r.Cookie(cookieRedirect); err == nil {
		redirect = safeRedirect(c.Value)
	}
	clearCookie(w, cookieState)
	clearCookie(w, cookieCodeVerifier)
	clearCookie(w, cookieRedirect)

	h.log.Info("user signed in", logger.String("user_id", user.ID))
	http.Redirect(w, r, redirect, http.StatusFound)
}

// Logout destroys the session.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Destroy(r.Context()); err != nil {
		http.Error(w, "logout error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

// Identity is the JSON shape of a signed-in user.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// IdentityOf converts a user row to its public identity.
func IdentityOf(u *store.User) Identity {
	return Identity{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName}
}

// Me returns the session's identity. Requires RequireSession.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeUnauthorized(w)
		return
	}
	writeJSON(w, http.StatusOK, IdentityOf(user))
}

// MintTokenRequest is the body of POST /auth/tokens.
type MintTokenRequest struct {
	Name string `json:"name"`
	// ExpiresIn is a Go duration such as "720h". Empty means no expiry.
	ExpiresIn string `json:"expires_in,omitempty"`
}

// MintTokenResponse carries the plaintext token. It is shown only once.
type MintTokenResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Token     string     `json:"token"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// MintToken creates a personal access token for the session's user.
// Requires RequireSession.
func (h *Handlers) MintToken(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeUnauthorized(w)
		return
	}

	var req MintTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body", "code": "BAD_REQUEST"})
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required", "code": "BAD_REQUEST"})
		return
	}
	var expiresAt *time.Time
	if req.ExpiresIn != "" {
		d, err := time.ParseDuration(req.ExpiresIn)
		if err != nil || d <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "expires_in must be a positive duration", "code": "BAD_REQUEST"})
			return
		}
		t := time.Now().UTC().Add(d)
		expiresAt = &t
	}

	plaintext, hash, err := GenerateToken()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "token generation failed", "code": "INTERNAL"})
		return
	}
	tok, err := h.tokens.Create(r.Context(), user.ID, req.Name, hash, expiresAt)
	if err != nil {
		h.log.Error("creating token", logger.String("user_id", user.ID), logger.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "token creation failed", "code": "INTERNAL"})
		return
	}

	resp := MintTokenResponse{ID: tok.ID, Name: tok.Name, Token: plaintext, CreatedAt: tok.CreatedAt}
	if tok.ExpiresAt.Valid {
		t := tok.ExpiresAt.Time
		resp.ExpiresAt = &t
	}
	writeJSON(w, http.StatusCreated, resp)
}

// safeRedirect allows only local absolute paths.
func safeRedirect(target string) string {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return DefaultLoginRedirect
	}
	return target
}

func (h *Handlers) setPreAuthCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:    name,
		Value:   "",
		Path:    "/",
		MaxAge:  -1,
		Expires: time.Unix(0, 0),
	})
}
