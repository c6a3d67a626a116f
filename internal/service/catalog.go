package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alex-rublevsky/rublevsky-studio/internal/domain"
	"github.com/alex-rublevsky/rublevsky-studio/internal/repository"
	apperrors "github.com/alex-rublevsky/rublevsky-studio/pkg/errors"
	"github.com/alex-rublevsky/rublevsky-studio/pkg/slug"
)

// CategoryInput is the request body for creating or replacing a category.
type CategoryInput struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Slug        string  `json:"slug,omitempty" validate:"omitempty,max=100"`
	Image       *string `json:"image,omitempty" validate:"omitempty,url"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	IsActive    *bool   `json:"is_active,omitempty"`
	SortOrder   int     `json:"sort_order"`
}

// BrandInput is the request body for creating or replacing a brand.
type BrandInput struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Slug        string  `json:"slug,omitempty" validate:"omitempty,max=100"`
	Logo        *string `json:"logo,omitempty" validate:"omitempty,url"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// TeaCategoryInput is the request body for creating or replacing a tea category.
type TeaCategoryInput struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Slug        string  `json:"slug,omitempty" validate:"omitempty,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// CatalogService manages categories, brands and tea categories. Renaming or
// deleting one cascades to products in the database, so the product cache
// is flushed afterwards.
type CatalogService struct {
	categories    repository.CategoryRepository
	brands        repository.BrandRepository
	teaCategories repository.TeaCategoryRepository
	cache         repository.ProductCache
	logger        *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(
	categories repository.CategoryRepository,
	brands repository.BrandRepository,
	teaCategories repository.TeaCategoryRepository,
	cache repository.ProductCache,
	logger *slog.Logger,
) *CatalogService {
	return &CatalogService{
		categories:    categories,
		brands:        brands,
		teaCategories: teaCategories,
		cache:         cache,
		logger:        logger,
	}
}

// entitySlug returns the slug for an entity: explicit when given, derived
// from name otherwise.
func entitySlug(explicit, name string) (string, error) {
	s := slug.Generate(name)
	if explicit != "" {
		s = slug.Normalize(explicit)
	}
	if s == "" {
		return "", apperrors.InvalidInput("slug must contain at least one letter or digit")
	}
	return s, nil
}

func isActive(b *bool) bool {
	return b == nil || *b
}

// --- Categories ---

// CreateCategory creates a category.
func (s *CatalogService) CreateCategory(ctx context.Context, input *CategoryInput) (*domain.Category, error) {
	sl, err := entitySlug(input.Slug, input.Name)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	c := &domain.Category{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(input.Name),
		Slug:        sl,
		Image:       input.Image,
		Description: input.Description,
		IsActive:    isActive(input.IsActive),
		SortOrder:   input.SortOrder,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.categories.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	s.logger.InfoContext(ctx, "category created", slog.String("slug", c.Slug))
	return c, nil
}

// GetCategory returns a category. With activeOnly, inactive categories are
// reported as not found.
func (s *CatalogService) GetCategory(ctx context.Context, sl string, activeOnly bool) (*domain.Category, error) {
	c, err := s.categories.GetBySlug(ctx, sl)
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	if activeOnly && !c.IsActive {
		return nil, apperrors.NotFound("category", sl)
	}
	return c, nil
}

// ListCategories lists categories ordered for display.
func (s *CatalogService) ListCategories(ctx context.Context, activeOnly bool) ([]domain.Category, error) {
	cs, err := s.categories.List(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cs, nil
}

// UpdateCategory replaces the category stored under sl.
func (s *CatalogService) UpdateCategory(ctx context.Context, sl string, input *CategoryInput) (*domain.Category, error) {
	existing, err := s.categories.GetBySlug(ctx, sl)
	if err != nil {
		return nil, fmt.Errorf("get category for update: %w", err)
	}
	newSlug, err := entitySlug(input.Slug, input.Name)
	if err != nil {
		return nil, err
	}
	c := &domain.Category{
		ID:          existing.ID,
		Name:        strings.TrimSpace(input.Name),
		Slug:        newSlug,
		Image:       input.Image,
		Description: input.Description,
		IsActive:    isActive(input.IsActive),
		SortOrder:   input.SortOrder,
		CreatedAt:   existing.CreatedAt,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.categories.Update(ctx, sl, c); err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}
	flushProducts(ctx, s.cache, s.logger)
	s.logger.InfoContext(ctx, "category updated",
		slog.String("old_slug", sl),
		slog.String("slug", c.Slug),
	)
	return c, nil
}

// DeleteCategory removes a category. Products keep existing with no category.
func (s *CatalogService) DeleteCategory(ctx context.Context, sl string) error {
	if err := s.categories.Delete(ctx, sl); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	flushProducts(ctx, s.cache, s.logger)
	s.logger.InfoContext(ctx, "category deleted", slog.String("slug", sl))
	return nil
}

// --- Brands ---

// CreateBrand creates a brand.
func (s *CatalogService) CreateBrand(ctx context.Context, input *BrandInput) (*domain.Brand, error) {
	sl, err := entitySlug(input.Slug, input.Name)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	b := &domain.Brand{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(input.Name),
		Slug:        sl,
		Logo:        input.Logo,
		Description: input.Description,
		IsActive:    isActive(input.IsActive),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.brands.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("create brand: %w", err)
	}
	s.logger.InfoContext(ctx, "brand created", slog.String("slug", b.Slug))
	return b, nil
}

// GetBrand returns a brand; see GetCategory for activeOnly.
func (s *CatalogService) GetBrand(ctx context.Context, sl string, activeOnly bool) (*domain.Brand, error) {
	b, err := s.brands.GetBySlug(ctx, sl)
	if err != nil {
		return nil, fmt.Errorf("get brand: %w", err)
	}
	if activeOnly && !b.IsActive {
		return nil, apperrors.NotFound("brand", sl)
	}
	return b, nil
}

// ListBrands lists brands by name.
func (s *CatalogService) ListBrands(ctx context.Context, activeOnly bool) ([]domain.Brand, error) {
	bs, err := s.brands.List(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	return bs, nil
}

// UpdateBrand replaces the brand stored under sl.
func (s *CatalogService) UpdateBrand(ctx context.Context, sl string, input *BrandInput) (*domain.Brand, error) {
	existing, err := s.brands.GetBySlug(ctx, sl)
	if err != nil {
		return nil, fmt.Errorf("get brand for update: %w", err)
	}
	newSlug, err := entitySlug(input.Slug, input.Name)
	if err != nil {
		return nil, err
	}
	b := &domain.Brand{
		ID:          existing.ID,
		Name:        strings.TrimSpace(input.Name),
		Slug:        newSlug,
		Logo:        input.Logo,
		Description: input.Description,
		IsActive:    isActive(input.IsActive),
		CreatedAt:   existing.CreatedAt,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.brands.Update(ctx, sl, b); err != nil {
		return nil, fmt.Errorf("update brand: %w", err)
	}
	flushProducts(ctx, s.cache, s.logger)
	s.logger.InfoContext(ctx, "brand updated",
		slog.String("old_slug", sl),
		slog.String("slug", b.Slug),
	)
	return b, nil
}

// DeleteBrand removes a brand.
func (s *CatalogService) DeleteBrand(ctx context.Context, sl string) error {
	if err := s.brands.Delete(ctx, sl); err != nil {
		return fmt.Errorf("delete brand: %w", err)
	}
	flushProducts(ctx, s.cache, s.logger)
	s.logger.InfoContext(ctx, "brand deleted", slog.String("slug", sl))
	return nil
}

// --- Tea categories ---

// CreateTeaCategory creates a tea category.
func (s *CatalogService) CreateTeaCategory(ctx context.Context, input *TeaCategoryInput) (*domain.TeaCategory, error) {
	sl, err := entitySlug(input.Slug, input.Name)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	tc := &domain.TeaCategory{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(input.Name),
		Slug:        sl,
		Description: input.Description,
		IsActive:    isActive(input.IsActive),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.teaCategories.Create(ctx, tc); err != nil {
		return nil, fmt.Errorf("create tea category: %w", err)
	}
	s.logger.InfoContext(ctx, "tea category created", slog.String("slug", tc.Slug))
	return tc, nil
}

// ListTeaCategories lists tea categories by name.
func (s *CatalogService) ListTeaCategories(ctx context.Context, activeOnly bool) ([]domain.TeaCategory, error) {
	tcs, err := s.teaCategories.List(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list tea categories: %w", err)
	}
	return tcs, nil
}

// GetTeaCategory returns a tea category by slug.
func (s *CatalogService) GetTeaCategory(ctx context.Context, sl string) (*domain.TeaCategory, error) {
	tc, err := s.teaCategories.GetBySlug(ctx, sl)
	if err != nil {
		return nil, fmt.Errorf("get tea category: %w", err)
	}
	return tc, nil
}

// UpdateTeaCategory replaces the tea category stored under sl.
func (s *CatalogService) UpdateTeaCategory(ctx context.Context, sl string, input *TeaCategoryInput) (*domain.TeaCategory, error) {
	existing, err := s.teaCategories.GetBySlug(ctx, sl)
	if err != nil {
		return nil, fmt.Errorf("get tea category for update: %w", err)
	}
	newSlug, err := entitySlug(input.Slug, input.Name)
	if err != nil {
		return nil, err
	}
	tc := &domain.TeaCategory{
		ID:          existing.ID,
		Name:        strings.TrimSpace(input.Name),
		Slug:        newSlug,
		Description: input.Description,
		IsActive:    isActive(input.IsActive),
		CreatedAt:   existing.CreatedAt,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.teaCategories.Update(ctx, sl, tc); err != nil {
		return nil, fmt.Errorf("update tea category: %w", err)
	}
	flushProducts(ctx, s.cache, s.logger)
	s.logger.InfoContext(ctx, "tea category updated",
		slog.String("old_slug", sl),
		slog.String("slug", tc.Slug),
	)
	return tc, nil
}

// DeleteTeaCategory removes a tea category and its product links.
func (s *CatalogService) DeleteTeaCategory(ctx context.Context, sl string) error {
	if err := s.teaCategories.Delete(ctx, sl); err != nil {
		return fmt.Errorf("delete tea category: %w", err)
	}
	flushProducts(ctx, s.cache, s.logger)
	s.logger.InfoContext(ctx, "tea category deleted", slog.String("slug", sl))
	return nil
}
