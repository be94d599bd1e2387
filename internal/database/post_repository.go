package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/seo-audit/internal/domain"
)

// ErrPostNotFound is returned when no post matches a lookup.
var ErrPostNotFound = errors.New("post not found")

// postSelectColumns lists columns for SELECT queries on posts.
const postSelectColumns = `id, title, url, post_type, category, published, published_at`

// PostRepository reads the published posts and pages maintained by the
// embedding application. The audit engine never writes to this table.
type PostRepository struct {
	db *sqlx.DB
}

// NewPostRepository creates a new post repository.
func NewPostRepository(db *sqlx.DB) *PostRepository {
	return &PostRepository{db: db}
}

// GetByID retrieves one post.
func (r *PostRepository) GetByID(ctx context.Context, id int64) (*domain.Post, error) {
	query := `SELECT ` + postSelectColumns + ` FROM posts WHERE id = $1`

	var post domain.Post
	if err := r.db.GetContext(ctx, &post, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	return &post, nil
}

// ListPublished returns one page of published posts of the given type,
// ordered by id for stable pagination.
func (r *PostRepository) ListPublished(
	ctx context.Context,
	postType domain.PostType,
	limit, offset int,
) ([]*domain.Post, error) {
	query := `SELECT ` + postSelectColumns + ` FROM posts
		WHERE post_type = $1 AND published
		ORDER BY id ASC LIMIT $2 OFFSET $3`

	var posts []*domain.Post
	if err := r.db.SelectContext(ctx, &posts, query, postType, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list published posts: %w", err)
	}

	return posts, nil
}
