package models

import "time"

// Channel names the transport a verification code was sent over.
type Channel string

const (
	ChannelPhone Channel = "phone"
	ChannelEmail Channel = "email"
)

// VerificationRecord: одна запись на каждую отправку кода.
// Mutable only through the is_verified/verified_at transition.
type VerificationRecord struct {
	ID         int64      `json:"id"`
	Channel    Channel    `json:"channel"`
	Contact    string     `json:"contact"`
	Code       string     `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
	IsVerified bool       `json:"is_verified"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
}

// ExpiredAt reports whether the record's window has elapsed at now.
func (r *VerificationRecord) ExpiredAt(now time.Time, window time.Duration) bool {
	return now.After(r.CreatedAt.Add(window))
}
