package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"partnerhub/internal/models"
)

type CouponRepository interface {
	// UpsertQR creates the store's QR or rotates its token and image.
	UpsertQR(ctx context.Context, qr *models.CouponQR) error
	GetActiveQRByToken(ctx context.Context, token uuid.UUID) (*models.CouponQR, error)
	// IssueIfNone stores c; false when the phone still holds an active coupon of that store.
	IssueIfNone(ctx context.Context, c *models.Coupon) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	// Redeem marks an unused, unexpired coupon as used; nil when the update did not apply.
	Redeem(ctx context.Context, id uuid.UUID, storeID int64, now time.Time) (*models.Coupon, error)
	ListIssuedBy(ctx context.Context, storeID int64) ([]models.Coupon, error)
}

type couponRepository struct {
	DB *sql.DB
}

func NewCouponRepository(db *sql.DB) CouponRepository {
	return &couponRepository{DB: db}
}

func (r *couponRepository) UpsertQR(ctx context.Context, qr *models.CouponQR) error {
	const q = `
		INSERT INTO coupon_qrs (store_id, token, image_url, is_active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (store_id) DO UPDATE
			SET token = EXCLUDED.token, image_url = EXCLUDED.image_url, is_active = TRUE
		RETURNING id, is_active, created_at
	`
	if err := r.DB.QueryRowContext(ctx, q, qr.StoreID, qr.Token, qr.ImageURL).Scan(&qr.ID, &qr.IsActive, &qr.CreatedAt); err != nil {
		return fmt.Errorf("upsert coupon qr: %w", err)
	}
	return nil
}

func (r *couponRepository) GetActiveQRByToken(ctx context.Context, token uuid.UUID) (*models.CouponQR, error) {
	const q = `
		SELECT id, store_id, token, image_url, is_active, created_at
		FROM coupon_qrs
		WHERE token = $1 AND is_active = TRUE
	`
	qr := &models.CouponQR{}
	if err := r.DB.QueryRowContext(ctx, q, token).Scan(&qr.ID, &qr.StoreID, &qr.Token, &qr.ImageURL, &qr.IsActive, &qr.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get coupon qr: %w", err)
	}
	return qr, nil
}

// IssueIfNone inserts c unless the phone already holds an unused, unexpired coupon
// of the same store at c.IssuedAt. The check and the insert share a transaction-scoped
// advisory lock keyed by store and phone, so concurrent issues serialise.
func (r *couponRepository) IssueIfNone(ctx context.Context, c *models.Coupon) (bool, error) {
	var issued bool
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		key := fmt.Sprintf("coupons:%d:%s", c.IssuedBy, c.IssuedToPhone)
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
			return fmt.Errorf("lock coupon issue: %w", err)
		}

		var held bool
		err := tx.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM coupons
				WHERE issued_by = $1 AND issued_to_phone = $2 AND used = FALSE AND expires_at >= $3
			)
		`, c.IssuedBy, c.IssuedToPhone, c.IssuedAt).Scan(&held)
		if err != nil {
			return fmt.Errorf("has active coupon: %w", err)
		}
		if held {
			return nil
		}

		const q = `
			INSERT INTO coupons (id, issued_by, issued_to_phone, issued_at, expires_at, used)
			VALUES ($1, $2, $3, $4, $5, FALSE)
		`
		if _, err := tx.ExecContext(ctx, q, c.ID, c.IssuedBy, c.IssuedToPhone, c.IssuedAt, c.ExpiresAt); err != nil {
			return fmt.Errorf("create coupon: %w", err)
		}
		issued = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return issued, nil
}

const couponColumns = `id, issued_by, used_at_store, issued_to_phone, issued_at, expires_at, used, used_at`

func scanCoupon(row rowScanner) (*models.Coupon, error) {
	c := &models.Coupon{}
	var (
		usedAtStore sql.NullInt64
		usedAt      sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.IssuedBy, &usedAtStore, &c.IssuedToPhone, &c.IssuedAt, &c.ExpiresAt, &c.Used, &usedAt); err != nil {
		return nil, err
	}
	if usedAtStore.Valid {
		c.UsedAtStore = &usedAtStore.Int64
	}
	if usedAt.Valid {
		c.UsedAt = &usedAt.Time
	}
	return c, nil
}

func (r *couponRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	c, err := scanCoupon(r.DB.QueryRowContext(ctx, `SELECT `+couponColumns+` FROM coupons WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	return c, nil
}

func (r *couponRepository) Redeem(ctx context.Context, id uuid.UUID, storeID int64, now time.Time) (*models.Coupon, error) {
	q := `
		UPDATE coupons
		SET used = TRUE, used_at = $2, used_at_store = $3
		WHERE id = $1 AND used = FALSE AND expires_at >= $2
		RETURNING ` + couponColumns
	c, err := scanCoupon(r.DB.QueryRowContext(ctx, q, id, now, storeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("redeem coupon: %w", err)
	}
	return c, nil
}

func (r *couponRepository) ListIssuedBy(ctx context.Context, storeID int64) ([]models.Coupon, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE issued_by = $1 ORDER BY issued_at DESC`, storeID)
	if err != nil {
		return nil, fmt.Errorf("list issued coupons: %w", err)
	}
	defer rows.Close()

	out := []models.Coupon{}
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}
