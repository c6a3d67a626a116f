package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alex-rublevsky/rublevsky-studio/internal/domain"
	"github.com/alex-rublevsky/rublevsky-studio/internal/repository"
	"github.com/alex-rublevsky/rublevsky-studio/pkg/database"
	apperrors "github.com/alex-rublevsky/rublevsky-studio/pkg/errors"
	"github.com/alex-rublevsky/rublevsky-studio/pkg/pagination"
)

const blogColumns = `id, title, slug, body, excerpt, images, product_slug, is_published,
	published_at, created_at, updated_at`

// BlogRepository implements repository.BlogRepository using PostgreSQL.
type BlogRepository struct {
	pool database.DBTX
}

// NewBlogRepository creates a new PostgreSQL-backed blog repository.
func NewBlogRepository(pool database.DBTX) *BlogRepository {
	return &BlogRepository{pool: pool}
}

// Create inserts a new post.
func (r *BlogRepository) Create(ctx context.Context, b *domain.BlogPost) error {
	query := `
		INSERT INTO blog_posts (id, title, slug, body, excerpt, images, product_slug, is_published,
			published_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		b.ID,
		b.Title,
		b.Slug,
		b.Body,
		b.Excerpt,
		nonNil(b.Images),
		b.ProductSlug,
		b.IsPublished,
		b.PublishedAt,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		return blogWriteError(err, b)
	}
	return nil
}

// GetByID retrieves a post by ID.
func (r *BlogRepository) GetByID(ctx context.Context, id string) (*domain.BlogPost, error) {
	return r.getOne(ctx, fmt.Sprintf(`SELECT %s FROM blog_posts WHERE id = $1`, blogColumns), id)
}

// GetBySlug retrieves a post by slug.
func (r *BlogRepository) GetBySlug(ctx context.Context, slug string) (*domain.BlogPost, error) {
	return r.getOne(ctx, fmt.Sprintf(`SELECT %s FROM blog_posts WHERE slug = $1`, blogColumns), slug)
}

// List returns posts newest first with the total count.
func (r *BlogRepository) List(ctx context.Context, filter repository.BlogFilter) ([]domain.BlogPost, int, error) {
	where := ""
	if filter.PublishedOnly {
		where = "WHERE is_published = TRUE"
	}

	query := fmt.Sprintf(`
		SELECT %s,
			   count(*) OVER() AS total_count
		FROM blog_posts
		%s
		ORDER BY COALESCE(published_at, created_at) DESC, id
		LIMIT $1 OFFSET $2`, blogColumns, where)

	page := pagination.Params{Page: filter.Page, PerPage: filter.PerPage}
	rows, err := r.pool.Query(ctx, query, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list blog posts: %w", err)
	}
	defer rows.Close()

	var (
		posts      = []domain.BlogPost{}
		totalCount int
	)
	for rows.Next() {
		b, err := scanBlogPost(rows, &totalCount)
		if err != nil {
			return nil, 0, fmt.Errorf("scan blog post row: %w", err)
		}
		posts = append(posts, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate blog post rows: %w", err)
	}
	return posts, totalCount, nil
}

// Update modifies an existing post.
func (r *BlogRepository) Update(ctx context.Context, b *domain.BlogPost) error {
	b.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE blog_posts
		SET title = $1, slug = $2, body = $3, excerpt = $4, images = $5, product_slug = $6,
		    is_published = $7, published_at = $8, updated_at = $9
		WHERE id = $10`

	ct, err := r.pool.Exec(ctx, query,
		b.Title,
		b.Slug,
		b.Body,
		b.Excerpt,
		nonNil(b.Images),
		b.ProductSlug,
		b.IsPublished,
		b.PublishedAt,
		b.UpdatedAt,
		b.ID,
	)
	if err != nil {
		return blogWriteError(err, b)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("blog post", b.ID)
	}
	return nil
}

// Delete removes a post by ID.
func (r *BlogRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM blog_posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete blog post: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("blog post", id)
	}
	return nil
}

func (r *BlogRepository) getOne(ctx context.Context, query, arg string) (*domain.BlogPost, error) {
	b, err := scanBlogPost(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan blog post: %w", err)
	}
	return b, nil
}

func scanBlogPost(row rowScanner, extra ...any) (*domain.BlogPost, error) {
	var b domain.BlogPost
	dest := []any{
		&b.ID,
		&b.Title,
		&b.Slug,
		&b.Body,
		&b.Excerpt,
		&b.Images,
		&b.ProductSlug,
		&b.IsPublished,
		&b.PublishedAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if b.Images == nil {
		b.Images = []string{}
	}
	return &b, nil
}

func blogWriteError(err error, b *domain.BlogPost) error {
	if isUniqueViolation(err) {
		return apperrors.AlreadyExists("blog post", "slug", b.Slug)
	}
	if isForeignKeyViolation(err) {
		return apperrors.InvalidInput(fmt.Sprintf("product %q does not exist", deref(b.ProductSlug)))
	}
	return fmt.Errorf("write blog post: %w", err)
}
