package models

import (
	"time"

	"github.com/google/uuid"
)

type Coupon struct {
	ID            uuid.UUID  `json:"id"`
	IssuedBy      int64      `json:"issued_by"`
	UsedAtStore   *int64     `json:"used_at_store,omitempty"`
	IssuedToPhone string     `json:"issued_to_phone"`
	IssuedAt      time.Time  `json:"issued_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	Used          bool       `json:"used"`
	UsedAt        *time.Time `json:"used_at,omitempty"`
}

func (c *Coupon) ExpiredAt(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// CouponQR: QR-код магазина, по которому покупатель получает купон.
type CouponQR struct {
	ID        int64     `json:"id"`
	StoreID   int64     `json:"store_id"`
	Token     uuid.UUID `json:"token"`
	ImageURL  string    `json:"image_url"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
