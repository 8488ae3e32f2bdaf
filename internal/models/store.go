package models

import "time"

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Store is a shop; one per owner.
type Store struct {
	ID            int64      `json:"id"`
	OwnerID       int64      `json:"owner_id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Address       string     `json:"address"`
	PhoneNumber   string     `json:"phone_number"`
	AvailableTime string     `json:"available_time"`
	Categories    []Category `json:"categories"`
	CreatedAt     time.Time  `json:"created_at"`
}
