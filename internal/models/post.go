package models

import "time"

type Post struct {
	ID                    int64       `json:"id"`
	AuthorID              int64       `json:"-"`
	Author                string      `json:"author"`
	Title                 string      `json:"title"`
	StoreName             string      `json:"store_name"`
	Description           string      `json:"description"`
	Address               string      `json:"address"`
	PhoneNumber           string      `json:"phone_number"`
	AvailableTime         string      `json:"available_time"`
	StoreCategories       []Category  `json:"store_categories"`
	PartnershipCategories []Category  `json:"partnership_categories"`
	ExtraMessage          string      `json:"extra_message"`
	Images                []PostImage `json:"images"`
	IsActive              bool        `json:"is_active"`
	CreatedAt             time.Time   `json:"created_at"`
}

type PostImage struct {
	ID          int64     `json:"id"`
	PostID      int64     `json:"-"`
	ImageURL    string    `json:"image_url"`
	IsThumbnail bool      `json:"is_thumbnail"`
	CreatedAt   time.Time `json:"created_at"`
}

// PostSummary is the short form used in "my posts" listings.
type PostSummary struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	ThumbnailURL *string   `json:"thumbnail_url"`
	CreatedAt    time.Time `json:"created_at"`
}

// Thumbnail returns the thumbnail image, falling back to the first image.
func (p *Post) Thumbnail() *PostImage {
	for i := range p.Images {
		if p.Images[i].IsThumbnail {
			return &p.Images[i]
		}
	}
	if len(p.Images) > 0 {
		return &p.Images[0]
	}
	return nil
}
