package api

import (
	"time"

	"github.com/joestump/joe-marks/internal/store"
)

// CreateBookmarkRequest is the body of POST /api/v1/bookmarks.
type CreateBookmarkRequest struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// BookmarkListResponse is the body of GET /api/v1/bookmarks, newest first.
type BookmarkListResponse struct {
	Bookmarks []*store.Bookmark `json:"bookmarks"`
}

// TokenResponse describes a token without its secret.
type TokenResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Revoked    bool       `json:"revoked"`
}

// TokenListResponse is the body of GET /api/v1/tokens.
type TokenListResponse struct {
	Tokens []TokenResponse `json:"tokens"`
}
