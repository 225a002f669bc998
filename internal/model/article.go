package model

import "time"

// Article is a knowledge-base entry.  Tags is a comma separated list.
type Article struct {
	ID          uint64    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags"`
	IsPublished bool      `json:"is_published"`
	AuthorID    uint64    `json:"author_id"`
	AuthorName  string    `json:"author_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CategoryCount is one row of the categories listing.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}
