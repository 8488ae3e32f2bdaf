package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"partnerhub/internal/models"
)

type PasswordResetRepository interface {
	Create(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) (*models.PasswordReset, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordReset, error)
	Consume(ctx context.Context, id, userID int64, passwordHash string, at time.Time) (bool, error)
}

type passwordResetRepository struct {
	DB *sql.DB
}

func NewPasswordResetRepository(db *sql.DB) PasswordResetRepository {
	return &passwordResetRepository{DB: db}
}

func (r *passwordResetRepository) Create(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) (*models.PasswordReset, error) {
	pr := &models.PasswordReset{UserID: userID, TokenHash: tokenHash, ExpiresAt: expiresAt}
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO password_resets (user_id, token_hash, expires_at) VALUES ($1, $2, $3) RETURNING id, created_at`,
		userID, tokenHash, expiresAt,
	).Scan(&pr.ID, &pr.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create password reset for user %d: %w", userID, err)
	}
	return pr, nil
}

func (r *passwordResetRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordReset, error) {
	var (
		pr     models.PasswordReset
		usedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, expires_at, used_at, created_at FROM password_resets WHERE token_hash = $1`,
		tokenHash,
	).Scan(&pr.ID, &pr.UserID, &pr.TokenHash, &pr.ExpiresAt, &usedAt, &pr.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get password reset: %w", err)
	}
	if usedAt.Valid {
		t := usedAt.Time
		pr.UsedAt = &t
	}
	return &pr, nil
}

// Consume spends the reset and sets the new password in one transaction;
// false when another request got there first. Changing the password revokes the refresh token.
func (r *passwordResetRepository) Consume(ctx context.Context, id, userID int64, passwordHash string, at time.Time) (bool, error) {
	var consumed bool
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE password_resets SET used_at = $2 WHERE id = $1 AND used_at IS NULL`, id, at)
		if err != nil {
			return fmt.Errorf("mark password reset %d used: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		const q = `UPDATE users SET password_hash = $1, refresh_token = NULL, refresh_expires_at = NULL WHERE id = $2`
		res, err = tx.ExecContext(ctx, q, passwordHash, userID)
		if err != nil {
			return fmt.Errorf("update password for user %d: %w", userID, err)
		}
		if n, err = res.RowsAffected(); err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("update password: user %d not found", userID)
		}
		consumed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return consumed, nil
}
