package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/joestump/joe-marks/internal/store"
)

// TokenPrefix marks personal access tokens so they are recognisable in logs
// and secret scanners.
const TokenPrefix = "mk_"

// Token is a row in the api_tokens table. Only the SHA-256 of the plaintext
// is stored.
type Token struct {
	ID         string       `db:"id"`
	UserID     string       `db:"user_id"`
	Name       string       `db:"name"`
	TokenHash  string       `db:"token_hash"`
	LastUsedAt sql.NullTime `db:"last_used_at"`
	ExpiresAt  sql.NullTime `db:"expires_at"`
	CreatedAt  time.Time    `db:"created_at"`
	RevokedAt  sql.NullTime `db:"revoked_at"`
}

// Active reports whether the token can authenticate at now.
func (t *Token) Active(now time.Time) bool {
	if t.RevokedAt.Valid {
		return false
	}
	return !t.ExpiresAt.Valid || t.ExpiresAt.Time.After(now)
}

// TokenStore persists personal access tokens.
type TokenStore interface {
	Create(ctx context.Context, userID, name, tokenHash string, expiresAt *time.Time) (*Token, error)
	GetByHash(ctx context.Context, hash string) (*Token, error)
	ListByUser(ctx context.Context, userID string) ([]*Token, error)
	Revoke(ctx context.Context, id, userID string) error
	TouchLastUsed(ctx context.Context, id string) error
}

// SQLTokenStore is the sqlx-backed TokenStore.
type SQLTokenStore struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewSQLTokenStore(db *sqlx.DB) *SQLTokenStore {
	return &SQLTokenStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *SQLTokenStore) q(query string) string { return s.db.Rebind(query) }

func (s *SQLTokenStore) Create(ctx context.Context, userID, name, tokenHash string, expiresAt *time.Time) (*Token, error) {
	id := uuid.NewString()
	var exp sql.NullTime
	if expiresAt != nil {
		exp = sql.NullTime{Time: expiresAt.UTC(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO api_tokens (id, user_id, name, token_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), id, userID, strings.TrimSpace(name), tokenHash, exp, s.now())
	if err != nil {
		return nil, err
	}

	var t Token
	if err := s.db.GetContext(ctx, &t, s.q(`SELECT * FROM api_tokens WHERE id = ?`), id); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetByHash returns the token with hash, or store.ErrNotFound.
func (s *SQLTokenStore) GetByHash(ctx context.Context, hash string) (*Token, error) {
	var t Token
	err := s.db.GetContext(ctx, &t, s.q(`SELECT * FROM api_tokens WHERE token_hash = ?`), hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListByUser returns userID's tokens, newest first, revoked ones included.
func (s *SQLTokenStore) ListByUser(ctx context.Context, userID string) ([]*Token, error) {
	tokens := []*Token{}
	err := s.db.SelectContext(ctx, &tokens, s.q(`
		SELECT * FROM api_tokens WHERE user_id = ? ORDER BY created_at DESC
	`), userID)
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// Revoke marks a token revoked. It returns store.ErrNotFound when the token
// does not exist, belongs to someone else or is already revoked.
func (s *SQLTokenStore) Revoke(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE api_tokens SET revoked_at = ? WHERE id = ? AND user_id = ? AND revoked_at IS NULL
	`), s.now(), id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *SQLTokenStore) TouchLastUsed(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.q(`UPDATE api_tokens SET last_used_at = ? WHERE id = ?`), s.now(), id)
	return err
}

const base62 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// GenerateToken returns a new plaintext token (TokenPrefix followed by 32
// random bytes in base62) and its hash.
func GenerateToken() (plaintext, hash string, err error) {
	b := make([]byte, 32)
	if _, err = rand.Read(b); err != nil {
		return "", "", err
	}

	n := new(big.Int).SetBytes(b)
	radix := big.NewInt(int64(len(base62)))
	mod := new(big.Int)
	var digits []byte
	for n.Sign() > 0 {
		n.DivMod(n, radix, mod)
		digits = append(digits, base62[mod.Int64()])
	}
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}

	plaintext = TokenPrefix + string(digits)
	return plaintext, HashToken(plaintext), nil
}

// HashToken returns the hex SHA-256 of plaintext.
func HashToken(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(h[:])
}
