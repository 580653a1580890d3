package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Bookmark represents a row in the bookmarks table.
type Bookmark struct {
	Seq       int64     `db:"seq" json:"-"`
	ID        string    `db:"id" json:"id"`
	OwnerID   string    `db:"owner_id" json:"owner_id"`
	Title     string    `db:"title" json:"title"`
	URL       string    `db:"url" json:"url"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// BookmarkStore is the sqlx-backed implementation of BookmarkStoreIface.
type BookmarkStore struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewBookmarkStore(db *sqlx.DB) *BookmarkStore {
	return &BookmarkStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// q rebinds ? placeholders to the driver's native format ($1,$2,... for PostgreSQL).
func (s *BookmarkStore) q(query string) string { return s.db.Rebind(query) }

// Create validates and inserts a bookmark owned by ownerID. Title and URL are
// stored trimmed; id and created_at are assigned here.
func (s *BookmarkStore) Create(ctx context.Context, ownerID, title, url string) (*Bookmark, error) {
	if err := ValidateTitle(title); err != nil {
		return nil, err
	}
	if err := ValidateURL(url); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO bookmarks (id, owner_id, title, url, created_at)
		VALUES (?, ?, ?, ?, ?)
	`), id, ownerID, strings.TrimSpace(title), strings.TrimSpace(url), s.now())
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id, ownerID)
}

// GetByID returns the bookmark with id owned by ownerID, or ErrNotFound.
func (s *BookmarkStore) GetByID(ctx context.Context, id, ownerID string) (*Bookmark, error) {
	var b Bookmark
	err := s.db.GetContext(ctx, &b, s.q(`SELECT * FROM bookmarks WHERE id = ? AND owner_id = ?`), id, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListByOwner returns every bookmark owned by ownerID, newest first. Rows that
// share a created_at are ordered by insertion, latest first.
func (s *BookmarkStore) ListByOwner(ctx context.Context, ownerID string) ([]*Bookmark, error) {
	items := []*Bookmark{}
	err := s.db.SelectContext(ctx, &items, s.q(`
		SELECT * FROM bookmarks
		WHERE owner_id = ?
		ORDER BY created_at DESC, seq DESC
	`), ownerID)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Delete removes the bookmark with id owned by ownerID and returns the deleted
// row. Returns ErrNotFound when the row is absent or belongs to someone else.
func (s *BookmarkStore) Delete(ctx context.Context, id, ownerID string) (*Bookmark, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var b Bookmark
	err = tx.GetContext(ctx, &b, tx.Rebind(`SELECT * FROM bookmarks WHERE id = ? AND owner_id = ?`), id, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM bookmarks WHERE id = ? AND owner_id = ?`), id, ownerID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &b, nil
}

// CountAll returns the total number of bookmarks across all owners.
func (s *BookmarkStore) CountAll(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM bookmarks`)
	return n, err
}
