// Package bookmarks keeps a signed-in user's bookmark list in sync with a
// remote, multi-writer backend.
//
// A SyncStore loads a snapshot, then follows a change stream that delivers
// CREATE and DELETE events at least once and in no particular order relative
// to the responses of the store's own mutations. Every event is applied
// idempotently, so a bookmark shows up exactly once no matter which path
// reports it first.
package bookmarks

import (
	"context"
	"time"
)

// Bookmark is a saved link as seen by the client.
type Bookmark struct {
	ID        string    `json:"id" yaml:"id"`
	OwnerID   string    `json:"owner_id" yaml:"owner_id"`
	Title     string    `json:"title" yaml:"title"`
	URL       string    `json:"url" yaml:"url"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// NewBookmark is the payload of an insert request.
type NewBookmark struct {
	OwnerID string `json:"owner_id,omitempty"`
	Title   string `json:"title"`
	URL     string `json:"url"`
}

// Identity is the signed-in user. Only ID carries meaning for the store.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// EventType identifies the kind of change carried by a ChangeEvent.
type EventType string

const (
	EventCreate EventType = "CREATE"
	EventDelete EventType = "DELETE"
)

// ChangeEvent is one notification from the change stream. For deletes,
// Record holds at least the removed bookmark's ID.
type ChangeEvent struct {
	Type   EventType `json:"type"`
	Record Bookmark  `json:"record"`
}

// SubscribeRequest scopes a change subscription.
type SubscribeRequest struct {
	// Channel names the subscription. It must be unique per session so a
	// new subscription never collides with a stale one.
	Channel string
	OwnerID string
}

// Backend is durable storage with query, mutation and a change stream.
type Backend interface {
	// Query returns every bookmark owned by ownerID, newest first.
	Query(ctx context.Context, ownerID string) ([]Bookmark, error)
	// Insert stores b and returns the record with its assigned id and
	// creation time.
	Insert(ctx context.Context, b NewBookmark) (*Bookmark, error)
	// Delete removes the bookmark. Deleting an id that no longer exists is
	// not an error.
	Delete(ctx context.Context, id string) error
	// Subscribe opens a change stream and calls onEvent for each event until
	// the subscription is released or drops. ctx bounds only the setup.
	Subscribe(ctx context.Context, req SubscribeRequest, onEvent func(ChangeEvent)) (Subscription, error)
}

// Subscription is a live change stream.
type Subscription interface {
	// Release stops delivery. onEvent is not called after Release returns.
	Release() error
	// Done is closed when the stream ends, whether released or dropped.
	Done() <-chan struct{}
	// Err reports why the stream ended; nil after a clean Release.
	Err() error
}

// IdentityProvider supplies the signed-in identity and reports changes to it.
type IdentityProvider interface {
	CurrentIdentity() *Identity
	// OnIdentityChange registers fn and returns a func that unregisters it.
	// fn receives nil on sign-out.
	OnIdentityChange(fn func(*Identity)) (unsubscribe func())
}
