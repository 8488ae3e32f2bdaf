package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"partnerhub/internal/models"
)

const (
	ConstraintUsername = "users_username_key"
	ConstraintEmail    = "users_email_key"
	ConstraintPhone    = "users_phone_number_key"
)

// Taken reports which of the unique account fields are already in use.
type Taken struct {
	Username bool
	Email    bool
	Phone    bool
}

type UserRepository interface {
	CreateWithImage(ctx context.Context, user *models.User, imageURL string) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByEmailAndPhone(ctx context.Context, email, phone string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	TakenFields(ctx context.Context, username, email, phone string) (Taken, error)

	// refresh helpers
	UpdateRefresh(ctx context.Context, userID int64, token string, expiresAt time.Time) error
	RotateRefresh(ctx context.Context, oldToken, newToken string, newExpiresAt time.Time) (*models.User, error)
}

type userRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{DB: db}
}

const userColumns = `id, username, name, email, phone_number, password_hash, role,
	is_verified, is_active, created_at, refresh_token, refresh_expires_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	var (
		rt  sql.NullString
		rte sql.NullTime
	)
	if err := row.Scan(
		&u.ID, &u.Username, &u.Name, &u.Email, &u.PhoneNumber, &u.PasswordHash, &u.Role,
		&u.IsVerified, &u.IsActive, &u.CreatedAt, &rt, &rte,
	); err != nil {
		return nil, err
	}
	if rt.Valid {
		s := rt.String
		u.RefreshToken = &s
	}
	if rte.Valid {
		t := rte.Time
		u.RefreshExpiresAt = &t
	}
	return u, nil
}

// CreateWithImage inserts the user and its profile image atomically.
func (r *userRepository) CreateWithImage(ctx context.Context, user *models.User, imageURL string) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		const q = `
			INSERT INTO users (username, name, email, phone_number, password_hash, role, is_verified, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
			RETURNING id, created_at
		`
		err := tx.QueryRowContext(ctx, q,
			user.Username, user.Name, user.Email, user.PhoneNumber, user.PasswordHash, user.Role, user.IsVerified,
		).Scan(&user.ID, &user.CreatedAt)
		if err != nil {
			return fmt.Errorf("create user: %w", mapConflict(err))
		}
		user.IsActive = true

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_images (user_id, image_url) VALUES ($1, $2)`, user.ID, imageURL,
		); err != nil {
			return fmt.Errorf("create user image: %w", err)
		}
		return nil
	})
}

func (r *userRepository) getOne(ctx context.Context, where string, args ...any) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	u, err := scanUser(r.DB.QueryRowContext(ctx, q, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, `id = $1`, id)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, `username = $1`, username)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `email = $1`, email)
}

func (r *userRepository) GetByEmailAndPhone(ctx context.Context, email, phone string) (*models.User, error) {
	return r.getOne(ctx, `email = $1 AND phone_number = $2`, email, phone)
}

func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var ok bool
	if err := r.DB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&ok); err != nil {
		return false, fmt.Errorf("user exists by email: %w", err)
	}
	return ok, nil
}

func (r *userRepository) TakenFields(ctx context.Context, username, email, phone string) (Taken, error) {
	const q = `
		SELECT
			COALESCE(BOOL_OR(username = $1), FALSE),
			COALESCE(BOOL_OR(email = $2), FALSE),
			COALESCE(BOOL_OR(phone_number = $3), FALSE)
		FROM users
		WHERE username = $1 OR email = $2 OR phone_number = $3
	`
	var t Taken
	if err := r.DB.QueryRowContext(ctx, q, username, email, phone).Scan(&t.Username, &t.Email, &t.Phone); err != nil {
		return Taken{}, fmt.Errorf("user taken fields: %w", err)
	}
	return t, nil
}

func (r *userRepository) UpdateRefresh(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	const q = `UPDATE users SET refresh_token = $1, refresh_expires_at = $2 WHERE id = $3`
	if _, err := r.DB.ExecContext(ctx, q, token, expiresAt, userID); err != nil {
		return fmt.Errorf("update refresh: %w", err)
	}
	return nil
}

// RotateRefresh swaps a live refresh token for a new one; nil when the old token is unknown or expired.
func (r *userRepository) RotateRefresh(ctx context.Context, oldToken, newToken string, newExpiresAt time.Time) (*models.User, error) {
	q := `
		UPDATE users
		SET refresh_token = $1, refresh_expires_at = $2
		WHERE refresh_token = $3 AND refresh_expires_at > NOW() AND is_active = TRUE
		RETURNING ` + userColumns
	u, err := scanUser(r.DB.QueryRowContext(ctx, q, newToken, newExpiresAt, oldToken))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("rotate refresh: %w", err)
	}
	return u, nil
}
