package models

import "time"

// PasswordReset is a single-use reset link. Only the SHA-256 of the token is stored;
// the token itself lives in the emailed link.
type PasswordReset struct {
	ID        int64
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

