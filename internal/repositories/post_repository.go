package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"partnerhub/internal/models"
)

const (
	categoryKindStore       = "store"
	categoryKindPartnership = "partnership"
)

type PostRepository interface {
	Create(ctx context.Context, p *models.Post) error
	ListActive(ctx context.Context) ([]models.Post, error)
	GetActive(ctx context.Context, id int64) (*models.Post, error)
	ListByAuthor(ctx context.Context, authorID int64) ([]models.PostSummary, error)
}

type postRepository struct {
	DB *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{DB: db}
}

// Create inserts the post with its category links and images in one transaction.
func (r *postRepository) Create(ctx context.Context, p *models.Post) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		const q = `
			INSERT INTO posts (author_id, title, store_name, description, address, phone_number, available_time, extra_message, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
			RETURNING id, created_at
		`
		if err := tx.QueryRowContext(ctx, q,
			p.AuthorID, p.Title, p.StoreName, p.Description, p.Address, p.PhoneNumber, p.AvailableTime, p.ExtraMessage,
		).Scan(&p.ID, &p.CreatedAt); err != nil {
			return fmt.Errorf("create post: %w", err)
		}
		p.IsActive = true

		links := []struct {
			kind string
			cats []models.Category
		}{
			{categoryKindStore, p.StoreCategories},
			{categoryKindPartnership, p.PartnershipCategories},
		}
		for _, l := range links {
			for _, c := range l.cats {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO post_categories (post_id, category_id, kind) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
					p.ID, c.ID, l.kind,
				); err != nil {
					return fmt.Errorf("create post category: %w", err)
				}
			}
		}

		for i := range p.Images {
			img := &p.Images[i]
			img.PostID = p.ID
			if err := tx.QueryRowContext(ctx,
				`INSERT INTO post_images (post_id, image_url, is_thumbnail) VALUES ($1, $2, $3) RETURNING id, created_at`,
				p.ID, img.ImageURL, img.IsThumbnail,
			).Scan(&img.ID, &img.CreatedAt); err != nil {
				return fmt.Errorf("create post image: %w", err)
			}
		}
		return nil
	})
}

const postSelect = `
	SELECT p.id, p.author_id, u.username, p.title, p.store_name, p.description, p.address,
	       p.phone_number, p.available_time, p.extra_message, p.is_active, p.created_at
	FROM posts p
	JOIN users u ON u.id = p.author_id
`

func scanPost(row rowScanner) (models.Post, error) {
	var p models.Post
	err := row.Scan(&p.ID, &p.AuthorID, &p.Author, &p.Title, &p.StoreName, &p.Description, &p.Address,
		&p.PhoneNumber, &p.AvailableTime, &p.ExtraMessage, &p.IsActive, &p.CreatedAt)
	return p, err
}

func (r *postRepository) ListActive(ctx context.Context) ([]models.Post, error) {
	rows, err := r.DB.QueryContext(ctx, postSelect+` WHERE p.is_active = TRUE ORDER BY p.created_at DESC, p.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	if err := r.loadRelations(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) GetActive(ctx context.Context, id int64) (*models.Post, error) {
	p, err := scanPost(r.DB.QueryRowContext(ctx, postSelect+` WHERE p.id = $1 AND p.is_active = TRUE`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get post: %w", err)
	}
	posts := []models.Post{p}
	if err := r.loadRelations(ctx, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

func (r *postRepository) ListByAuthor(ctx context.Context, authorID int64) ([]models.PostSummary, error) {
	const q = `
		SELECT p.id, p.title,
		       (SELECT i.image_url FROM post_images i
		         WHERE i.post_id = p.id
		         ORDER BY i.is_thumbnail DESC, i.id
		         LIMIT 1),
		       p.created_at
		FROM posts p
		WHERE p.author_id = $1
		ORDER BY p.created_at DESC, p.id DESC
	`
	rows, err := r.DB.QueryContext(ctx, q, authorID)
	if err != nil {
		return nil, fmt.Errorf("list posts by author: %w", err)
	}
	defer rows.Close()

	out := []models.PostSummary{}
	for rows.Next() {
		var (
			s     models.PostSummary
			thumb sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Title, &thumb, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan post summary: %w", err)
		}
		if thumb.Valid {
			s.ThumbnailURL = &thumb.String
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// loadRelations fills categories and images for posts with two batched queries.
func (r *postRepository) loadRelations(ctx context.Context, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]int64, len(posts))
	index := make(map[int64]int, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
		index[posts[i].ID] = i
		posts[i].StoreCategories = []models.Category{}
		posts[i].PartnershipCategories = []models.Category{}
		posts[i].Images = []models.PostImage{}
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT pc.post_id, pc.kind, c.id, c.name
		FROM post_categories pc
		JOIN partnership_categories c ON c.id = pc.category_id
		WHERE pc.post_id = ANY($1)
		ORDER BY pc.post_id, c.id
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load post categories: %w", err)
	}
	for rows.Next() {
		var (
			postID int64
			kind   string
			c      models.Category
		)
		if err := rows.Scan(&postID, &kind, &c.ID, &c.Name); err != nil {
			rows.Close()
			return fmt.Errorf("scan post category: %w", err)
		}
		p := &posts[index[postID]]
		if kind == categoryKindStore {
			p.StoreCategories = append(p.StoreCategories, c)
		} else {
			p.PartnershipCategories = append(p.PartnershipCategories, c)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load post categories: %w", err)
	}

	rows, err = r.DB.QueryContext(ctx, `
		SELECT id, post_id, image_url, is_thumbnail, created_at
		FROM post_images
		WHERE post_id = ANY($1)
		ORDER BY post_id, id
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load post images: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var img models.PostImage
		if err := rows.Scan(&img.ID, &img.PostID, &img.ImageURL, &img.IsThumbnail, &img.CreatedAt); err != nil {
			return fmt.Errorf("scan post image: %w", err)
		}
		p := &posts[index[img.PostID]]
		p.Images = append(p.Images, img)
	}
	return rows.Err()
}
