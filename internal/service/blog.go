package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alex-rublevsky/rublevsky-studio/internal/domain"
	"github.com/alex-rublevsky/rublevsky-studio/internal/repository"
	apperrors "github.com/alex-rublevsky/rublevsky-studio/pkg/errors"
)

// BlogPostInput is the request body for creating or replacing a post.
type BlogPostInput struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Slug        string   `json:"slug,omitempty" validate:"omitempty,max=200"`
	Body        string   `json:"body" validate:"required"`
	Excerpt     *string  `json:"excerpt,omitempty" validate:"omitempty,max=500"`
	Images      []string `json:"images" validate:"dive,url"`
	ProductSlug *string  `json:"product_slug,omitempty"`
	IsPublished bool     `json:"is_published"`
}

// BlogService manages journal posts.
type BlogService struct {
	repo     repository.BlogRepository
	products repository.ProductRepository
	logger   *slog.Logger
	now      func() time.Time
}

// NewBlogService creates a new blog service. products is used to validate
// the product a post links to.
func NewBlogService(repo repository.BlogRepository, products repository.ProductRepository, logger *slog.Logger) *BlogService {
	return &BlogService{
		repo:     repo,
		products: products,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreatePost creates a post, stamping published_at when it is published.
func (s *BlogService) CreatePost(ctx context.Context, input *BlogPostInput) (*domain.BlogPost, error) {
	now := s.now()
	post := &domain.BlogPost{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.apply(ctx, post, input, now); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("create blog post: %w", err)
	}
	s.logger.InfoContext(ctx, "blog post created",
		slog.String("post_id", post.ID),
		slog.String("slug", post.Slug),
		slog.Bool("published", post.IsPublished),
	)
	return post, nil
}

// UpdatePost replaces a post. The first publish date is kept across edits.
func (s *BlogService) UpdatePost(ctx context.Context, id string, input *BlogPostInput) (*domain.BlogPost, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get blog post for update: %w", err)
	}
	now := s.now()
	post := &domain.BlogPost{
		ID:          existing.ID,
		PublishedAt: existing.PublishedAt,
		CreatedAt:   existing.CreatedAt,
		UpdatedAt:   now,
	}
	if err := s.apply(ctx, post, input, now); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, post); err != nil {
		return nil, fmt.Errorf("update blog post: %w", err)
	}
	s.logger.InfoContext(ctx, "blog post updated", slog.String("post_id", post.ID))
	return post, nil
}

// GetPost returns a post by slug. With publishedOnly, drafts are not found.
func (s *BlogService) GetPost(ctx context.Context, sl string, publishedOnly bool) (*domain.BlogPost, error) {
	post, err := s.repo.GetBySlug(ctx, sl)
	if err != nil {
		return nil, fmt.Errorf("get blog post: %w", err)
	}
	if publishedOnly && !post.IsPublished {
		return nil, apperrors.NotFound("blog post", sl)
	}
	return post, nil
}

// GetPostByID returns any post by ID.
func (s *BlogService) GetPostByID(ctx context.Context, id string) (*domain.BlogPost, error) {
	post, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get blog post by id: %w", err)
	}
	return post, nil
}

// ListPosts returns posts matching filter and the total count.
func (s *BlogService) ListPosts(ctx context.Context, filter repository.BlogFilter) ([]domain.BlogPost, int, error) {
	posts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list blog posts: %w", err)
	}
	return posts, total, nil
}

// DeletePost removes a post.
func (s *BlogService) DeletePost(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete blog post: %w", err)
	}
	s.logger.InfoContext(ctx, "blog post deleted", slog.String("post_id", id))
	return nil
}

func (s *BlogService) apply(ctx context.Context, post *domain.BlogPost, in *BlogPostInput, now time.Time) error {
	sl, err := entitySlug(in.Slug, in.Title)
	if err != nil {
		return err
	}
	post.Title = strings.TrimSpace(in.Title)
	post.Slug = sl
	post.Body = in.Body
	post.Excerpt = in.Excerpt
	post.Images = append([]string{}, in.Images...)

	post.ProductSlug = normalizeRef(in.ProductSlug)
	if post.ProductSlug != nil {
		if _, err := s.products.GetBySlug(ctx, *post.ProductSlug); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return apperrors.InvalidInput(fmt.Sprintf("product %q does not exist", *post.ProductSlug))
			}
			return fmt.Errorf("check linked product: %w", err)
		}
	}

	post.IsPublished = false
	if in.IsPublished {
		post.Publish(now)
	}
	return nil
}
