package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"partnerhub/internal/models"
)

type VerificationRepository interface {
	Create(ctx context.Context, rec *models.VerificationRecord) error
	Latest(ctx context.Context, channel models.Channel, contact string) (*models.VerificationRecord, error)
	MarkVerified(ctx context.Context, id int64, at time.Time) (bool, error)
	DeleteByContact(ctx context.Context, channel models.Channel, contact string) error
	CountSince(ctx context.Context, channel models.Channel, contact string, since time.Time) (int, error)
}

type verificationRepository struct {
	DB *sql.DB
}

func NewVerificationRepository(db *sql.DB) VerificationRepository {
	return &verificationRepository{DB: db}
}

// Create: каждая отправка кода создаёт новую строку.
func (r *verificationRepository) Create(ctx context.Context, rec *models.VerificationRecord) error {
	const q = `
		INSERT INTO verification_codes (channel, contact, code, created_at, is_verified)
		VALUES ($1, $2, $3, $4, FALSE)
		RETURNING id
	`
	if err := r.DB.QueryRowContext(ctx, q, rec.Channel, rec.Contact, rec.Code, rec.CreatedAt).Scan(&rec.ID); err != nil {
		return fmt.Errorf("verification create: %w", err)
	}
	return nil
}

// Latest returns the most recent record for the contact, or nil when there is none.
func (r *verificationRepository) Latest(ctx context.Context, channel models.Channel, contact string) (*models.VerificationRecord, error) {
	const q = `
		SELECT id, channel, contact, code, created_at, is_verified, verified_at
		FROM verification_codes
		WHERE channel = $1 AND contact = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	var (
		v          models.VerificationRecord
		verifiedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, q, channel, contact).Scan(
		&v.ID, &v.Channel, &v.Contact, &v.Code, &v.CreatedAt, &v.IsVerified, &verifiedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("verification latest: %w", err)
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		v.VerifiedAt = &t
	}
	return &v, nil
}

// MarkVerified flips is_verified only if it is still false; false means someone else got there first.
func (r *verificationRepository) MarkVerified(ctx context.Context, id int64, at time.Time) (bool, error) {
	const q = `
		UPDATE verification_codes
		SET is_verified = TRUE, verified_at = $2
		WHERE id = $1 AND is_verified = FALSE
	`
	res, err := r.DB.ExecContext(ctx, q, id, at)
	if err != nil {
		return false, fmt.Errorf("verification mark verified: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("verification mark verified: %w", err)
	}
	return n == 1, nil
}

func (r *verificationRepository) DeleteByContact(ctx context.Context, channel models.Channel, contact string) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM verification_codes WHERE channel = $1 AND contact = $2`, channel, contact); err != nil {
		return fmt.Errorf("verification delete: %w", err)
	}
	return nil
}

// CountSince: сколько раз отправляли начиная с since (для троттлинга).
func (r *verificationRepository) CountSince(ctx context.Context, channel models.Channel, contact string, since time.Time) (int, error) {
	const q = `
		SELECT COUNT(*)
		FROM verification_codes
		WHERE channel = $1 AND contact = $2 AND created_at >= $3
	`
	var c int
	if err := r.DB.QueryRowContext(ctx, q, channel, contact, since).Scan(&c); err != nil {
		return 0, fmt.Errorf("verification count since: %w", err)
	}
	return c, nil
}
