package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jjudge-oj/practice/types"
)

// VerificationRepository stores email verification tokens.
type VerificationRepository struct {
	db *sql.DB
}

func NewVerificationRepository(db *sql.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

func (r *VerificationRepository) Create(ctx context.Context, token types.VerificationToken) (types.VerificationToken, error) {
	token.CreatedAt = time.Now()

	const query = `
		INSERT INTO verification_tokens (token, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)`
	if _, err := r.db.ExecContext(ctx, query, token.Token, token.UserID, token.ExpiresAt, token.CreatedAt); err != nil {
		return types.VerificationToken{}, err
	}
	return token, nil
}

// Consume deletes a token and returns it. Expired tokens are deleted too but
// reported as ErrNotFound.
func (r *VerificationRepository) Consume(ctx context.Context, token string) (types.VerificationToken, error) {
	const query = `
		DELETE FROM verification_tokens
		WHERE token = $1
		RETURNING token, user_id, expires_at, created_at`
	var vt types.VerificationToken
	err := r.db.QueryRowContext(ctx, query, token).Scan(&vt.Token, &vt.UserID, &vt.ExpiresAt, &vt.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.VerificationToken{}, ErrNotFound
		}
		return types.VerificationToken{}, err
	}
	if time.Now().After(vt.ExpiresAt) {
		return types.VerificationToken{}, ErrNotFound
	}
	return vt, nil
}

// DeleteForUser drops every outstanding token of a user.
func (r *VerificationRepository) DeleteForUser(ctx context.Context, userID int) error {
	const query = `DELETE FROM verification_tokens WHERE user_id = $1`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}
