package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"partnerhub/internal/models"
)

const ConstraintPartnerRequest = "partner_requests_sender_post_key"

type NotificationRepository interface {
	ExistsRequest(ctx context.Context, senderID, postID int64) (bool, error)
	// CreateRequestWithNotification stores the request and the recipient's notification atomically.
	CreateRequestWithNotification(ctx context.Context, req *models.PartnerRequest, n *models.Notification) error
	ListForUser(ctx context.Context, userID int64) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, id int64) (bool, error)
	UnreadCount(ctx context.Context, userID int64) (int, error)
	ListSentRequests(ctx context.Context, senderID int64) ([]models.SentPartnerRequest, error)
}

type notificationRepository struct {
	DB *sql.DB
}

func NewNotificationRepository(db *sql.DB) NotificationRepository {
	return &notificationRepository{DB: db}
}

func (r *notificationRepository) ExistsRequest(ctx context.Context, senderID, postID int64) (bool, error) {
	var ok bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM partner_requests WHERE sender_id = $1 AND post_id = $2)`,
		senderID, postID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("partner request exists: %w", err)
	}
	return ok, nil
}

func (r *notificationRepository) CreateRequestWithNotification(ctx context.Context, req *models.PartnerRequest, n *models.Notification) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO partner_requests (sender_id, post_id, message) VALUES ($1, $2, $3) RETURNING id, created_at`,
			req.SenderID, req.PostID, req.Message,
		).Scan(&req.ID, &req.CreatedAt); err != nil {
			return fmt.Errorf("create partner request: %w", mapConflict(err))
		}

		if err := tx.QueryRowContext(ctx, `
			INSERT INTO notifications (user_id, sender_id, post_id, message)
			VALUES ($1, $2, $3, $4)
			RETURNING id, is_read, created_at
		`, n.UserID, n.SenderID, n.PostID, n.Message,
		).Scan(&n.ID, &n.IsRead, &n.CreatedAt); err != nil {
			return fmt.Errorf("create notification: %w", err)
		}
		return nil
	})
}

func (r *notificationRepository) ListForUser(ctx context.Context, userID int64) ([]models.Notification, error) {
	const q = `
		SELECT n.id, n.user_id, n.sender_id, u.username, n.post_id, n.message, pr.message, n.is_read, n.created_at
		FROM notifications n
		LEFT JOIN users u ON u.id = n.sender_id
		LEFT JOIN partner_requests pr ON pr.sender_id = n.sender_id AND pr.post_id = n.post_id
		WHERE n.user_id = $1
		ORDER BY n.created_at DESC, n.id DESC
	`
	rows, err := r.DB.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := []models.Notification{}
	for rows.Next() {
		var (
			n        models.Notification
			senderID sql.NullInt64
			sender   sql.NullString
			reqMsg   sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.UserID, &senderID, &sender, &n.PostID, &n.Message, &reqMsg, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if senderID.Valid {
			n.SenderID = &senderID.Int64
		}
		if sender.Valid {
			n.SenderName = &sender.String
		}
		if reqMsg.Valid {
			n.RequestMessage = &reqMsg.String
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flags the user's own notification; false when it does not exist or belongs to someone else.
func (r *notificationRepository) MarkRead(ctx context.Context, userID, id int64) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	return n == 1, nil
}

func (r *notificationRepository) UnreadCount(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`, userID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return n, nil
}

func (r *notificationRepository) ListSentRequests(ctx context.Context, senderID int64) ([]models.SentPartnerRequest, error) {
	const q = `
		SELECT pr.id, pr.post_id, p.title,
		       (SELECT i.image_url FROM post_images i
		         WHERE i.post_id = p.id
		         ORDER BY i.is_thumbnail DESC, i.id
		         LIMIT 1),
		       pr.message, pr.created_at
		FROM partner_requests pr
		JOIN posts p ON p.id = pr.post_id
		WHERE pr.sender_id = $1
		ORDER BY pr.created_at DESC, pr.id DESC
	`
	rows, err := r.DB.QueryContext(ctx, q, senderID)
	if err != nil {
		return nil, fmt.Errorf("list sent requests: %w", err)
	}
	defer rows.Close()

	out := []models.SentPartnerRequest{}
	for rows.Next() {
		var (
			s     models.SentPartnerRequest
			thumb sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.PostID, &s.PostTitle, &thumb, &s.Message, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sent request: %w", err)
		}
		if thumb.Valid {
			s.PostThumbnail = &thumb.String
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
