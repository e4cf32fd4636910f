package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrTokenNotFound = errors.New("token not found")

// RefreshToken is one issued session. Only the SHA-256 digest of the token
// value is stored.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type TokenRepository struct {
	db *DB
}

func NewTokenRepository(db *DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Create(ctx context.Context, token *RefreshToken) error {
	return insertToken(ctx, r.db, token)
}

// FindActive returns the unexpired record matching both user and hash, or
// nil when there is none.
func (r *TokenRepository) FindActive(ctx context.Context, userID uuid.UUID, tokenHash string) (*RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM refresh_tokens
		WHERE user_id = $1 AND token_hash = $2 AND expires_at > NOW()
	`

	token := &RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, userID, tokenHash).Scan(
		&token.ID, &token.UserID, &token.TokenHash, &token.ExpiresAt, &token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return token, nil
}

// Delete removes a record by id. Deleting a missing id is not an error.
func (r *TokenRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE id = $1`, id)
	return err
}

// Rotate deletes oldID and inserts next in one transaction. When oldID is
// already gone, nothing is inserted and ErrTokenNotFound is returned, so a
// token can be exchanged at most once.
func (r *TokenRepository) Rotate(ctx context.Context, oldID uuid.UUID, next *RefreshToken) error {
	return WithTx(ctx, r.db.DB, func(ctx context.Context, tx DBTX) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE id = $1`, oldID)
		if err != nil {
			return err
		}
		if err := requireOneRow(result, ErrTokenNotFound); err != nil {
			return err
		}
		return insertToken(ctx, tx, next)
	})
}

func (r *TokenRepository) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	return err
}

// DeleteExpired purges expired records and reports how many were removed.
func (r *TokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func insertToken(ctx context.Context, db DBTX, token *RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := db.ExecContext(ctx, query,
		token.ID, token.UserID, token.TokenHash, token.ExpiresAt, token.CreatedAt,
	)
	return err
}
