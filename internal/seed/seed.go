// Package seed populates an empty storefront with sample catalog data. It
// writes through the service layer, so every row passes the same slug, SKU
// and weight-pool validation as admin writes. Rows that already exist are
// skipped and a second run is a no-op.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alex-rublevsky/rublevsky-studio/internal/domain"
	"github.com/alex-rublevsky/rublevsky-studio/internal/service"
	apperrors "github.com/alex-rublevsky/rublevsky-studio/pkg/errors"
)

// Catalog creates taxonomy rows.
type Catalog interface {
	CreateCategory(ctx context.Context, input *service.CategoryInput) (*domain.Category, error)
	CreateBrand(ctx context.Context, input *service.BrandInput) (*domain.Brand, error)
	CreateTeaCategory(ctx context.Context, input *service.TeaCategoryInput) (*domain.TeaCategory, error)
}

// Products creates products.
type Products interface {
	CreateProduct(ctx context.Context, input *service.ProductInput) (*domain.Product, error)
}

// Blog creates posts.
type Blog interface {
	CreatePost(ctx context.Context, input *service.BlogPostInput) (*domain.BlogPost, error)
}

// Result counts what a run did.
type Result struct {
	Created int
	Skipped int
}

// Seeder writes the sample data set.
type Seeder struct {
	catalog  Catalog
	products Products
	blog     Blog
	logger   *slog.Logger
}

// New creates a seeder.
func New(catalog Catalog, products Products, blog Blog, logger *slog.Logger) *Seeder {
	return &Seeder{catalog: catalog, products: products, blog: blog, logger: logger}
}

// Run creates taxonomy first, then products, then posts that link to them.
func (s *Seeder) Run(ctx context.Context) (Result, error) {
	var res Result

	for i := range categories {
		_, err := s.catalog.CreateCategory(ctx, &categories[i])
		if err := s.record(&res, "category", categories[i].Name, err); err != nil {
			return res, err
		}
	}
	for i := range brands {
		_, err := s.catalog.CreateBrand(ctx, &brands[i])
		if err := s.record(&res, "brand", brands[i].Name, err); err != nil {
			return res, err
		}
	}
	for i := range teaCategories {
		_, err := s.catalog.CreateTeaCategory(ctx, &teaCategories[i])
		if err := s.record(&res, "tea category", teaCategories[i].Name, err); err != nil {
			return res, err
		}
	}
	for i := range products {
		_, err := s.products.CreateProduct(ctx, &products[i])
		if err := s.record(&res, "product", products[i].Name, err); err != nil {
			return res, err
		}
	}
	for i := range posts {
		_, err := s.blog.CreatePost(ctx, &posts[i])
		if err := s.record(&res, "blog post", posts[i].Title, err); err != nil {
			return res, err
		}
	}

	s.logger.InfoContext(ctx, "seed complete",
		slog.Int("created", res.Created),
		slog.Int("skipped", res.Skipped),
	)
	return res, nil
}

func (s *Seeder) record(res *Result, kind, name string, err error) error {
	switch {
	case err == nil:
		res.Created++
		s.logger.Debug("seeded", slog.String("kind", kind), slog.String("name", name))
		return nil
	case errors.Is(err, apperrors.ErrAlreadyExists):
		res.Skipped++
		return nil
	default:
		return fmt.Errorf("seed %s %q: %w", kind, name, err)
	}
}
