package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a requested entity does not exist or is not
	// visible to the caller.
	ErrNotFound = errors.New("not found")
)

// BookmarkStoreIface exposes all bookmark data operations. Every call is
// scoped to an owner; rows belonging to other users are never returned or
// modified.
type BookmarkStoreIface interface {
	Create(ctx context.Context, ownerID, title, url string) (*Bookmark, error)
	GetByID(ctx context.Context, id, ownerID string) (*Bookmark, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*Bookmark, error)
	Delete(ctx context.Context, id, ownerID string) (*Bookmark, error)
}
