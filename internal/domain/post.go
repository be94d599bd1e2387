package domain

import (
	"time"
)

// PostType distinguishes the two audited content kinds.
type PostType string

const (
	PostTypePost PostType = "post"
	PostTypePage PostType = "page"
)

// Post is a published post or page from the embedding site. The posts table
// is maintained by the publishing application; the audit engine only reads
// it during snapshot population and when resolving item URLs for the
// external APIs.
type Post struct {
	ID          int64      `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	URL         string     `db:"url" json:"url"`
	PostType    PostType   `db:"post_type" json:"post_type"`
	Category    *string    `db:"category" json:"category,omitempty"`
	Published   bool       `db:"published" json:"published"`
	PublishedAt *time.Time `db:"published_at" json:"published_at,omitempty"`
}
