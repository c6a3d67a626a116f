package domain

import "time"

// BlogPost is a journal entry, optionally featuring a product.
type BlogPost struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Body        string     `json:"body"`
	Excerpt     *string    `json:"excerpt,omitempty"`
	Images      []string   `json:"images"`
	ProductSlug *string    `json:"product_slug,omitempty"`
	IsPublished bool       `json:"is_published"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Publish marks the post published, stamping PublishedAt on first publish.
func (b *BlogPost) Publish(now time.Time) {
	b.IsPublished = true
	if b.PublishedAt == nil {
		b.PublishedAt = &now
	}
}
