package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"partnerhub/internal/models"
)

const ConstraintStoreOwner = "stores_owner_id_key"

type CategoryRepository interface {
	List(ctx context.Context) ([]models.Category, error)
	FindByIDs(ctx context.Context, ids []int64) ([]models.Category, error)
}

type categoryRepository struct {
	DB *sql.DB
}

func NewCategoryRepository(db *sql.DB) CategoryRepository {
	return &categoryRepository{DB: db}
}

func (r *categoryRepository) List(ctx context.Context) ([]models.Category, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, name FROM partnership_categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()
	return scanCategories(rows)
}

// FindByIDs returns the existing categories among ids; callers compare lengths to detect unknown ids.
func (r *categoryRepository) FindByIDs(ctx context.Context, ids []int64) ([]models.Category, error) {
	if len(ids) == 0 {
		return []models.Category{}, nil
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, name FROM partnership_categories WHERE id = ANY($1) ORDER BY id`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("find categories: %w", err)
	}
	defer rows.Close()
	return scanCategories(rows)
}

func scanCategories(rows *sql.Rows) ([]models.Category, error) {
	out := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type StoreRepository interface {
	Create(ctx context.Context, s *models.Store, categoryIDs []int64) error
	GetByOwner(ctx context.Context, ownerID int64) (*models.Store, error)
}

type storeRepository struct {
	DB *sql.DB
}

func NewStoreRepository(db *sql.DB) StoreRepository {
	return &storeRepository{DB: db}
}

func (r *storeRepository) Create(ctx context.Context, s *models.Store, categoryIDs []int64) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		const q = `
			INSERT INTO stores (owner_id, name, description, address, phone_number, available_time)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at
		`
		if err := tx.QueryRowContext(ctx, q,
			s.OwnerID, s.Name, s.Description, s.Address, s.PhoneNumber, s.AvailableTime,
		).Scan(&s.ID, &s.CreatedAt); err != nil {
			return fmt.Errorf("create store: %w", mapConflict(err))
		}
		for _, id := range categoryIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO store_categories (store_id, category_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				s.ID, id,
			); err != nil {
				return fmt.Errorf("create store category: %w", err)
			}
		}
		return nil
	})
}

func (r *storeRepository) GetByOwner(ctx context.Context, ownerID int64) (*models.Store, error) {
	const q = `
		SELECT id, owner_id, name, description, address, phone_number, available_time, created_at
		FROM stores
		WHERE owner_id = $1
	`
	s := &models.Store{}
	if err := r.DB.QueryRowContext(ctx, q, ownerID).Scan(
		&s.ID, &s.OwnerID, &s.Name, &s.Description, &s.Address, &s.PhoneNumber, &s.AvailableTime, &s.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get store by owner: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT c.id, c.name
		FROM store_categories sc
		JOIN partnership_categories c ON c.id = sc.category_id
		WHERE sc.store_id = $1
		ORDER BY c.id
	`, s.ID)
	if err != nil {
		return nil, fmt.Errorf("get store categories: %w", err)
	}
	defer rows.Close()
	if s.Categories, err = scanCategories(rows); err != nil {
		return nil, fmt.Errorf("scan store categories: %w", err)
	}
	return s, nil
}
