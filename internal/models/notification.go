package models

import "time"

type PartnerRequest struct {
	ID        int64     `json:"id"`
	SenderID  int64     `json:"sender_id"`
	PostID    int64     `json:"post"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type Notification struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"-"`
	SenderID       *int64    `json:"-"`
	SenderName     *string   `json:"sender_username"`
	PostID         int64     `json:"post"`
	Message        string    `json:"message"`
	RequestMessage *string   `json:"request_message"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

// SentPartnerRequest is a partner request joined with its post for the sender's view.
type SentPartnerRequest struct {
	ID            int64     `json:"id"`
	PostID        int64     `json:"post"`
	PostTitle     string    `json:"post_title"`
	PostThumbnail *string   `json:"post_thumbnail"`
	Message       string    `json:"message"`
	CreatedAt     time.Time `json:"created_at"`
}
