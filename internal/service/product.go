package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alex-rublevsky/rublevsky-studio/internal/domain"
	"github.com/alex-rublevsky/rublevsky-studio/internal/event"
	"github.com/alex-rublevsky/rublevsky-studio/internal/repository"
	apperrors "github.com/alex-rublevsky/rublevsky-studio/pkg/errors"
	"github.com/alex-rublevsky/rublevsky-studio/pkg/slug"
)

// AttributeInput is one key/value pair of a variation.
type AttributeInput struct {
	Key   string `json:"attribute_key" validate:"required,max=32"`
	Value string `json:"value" validate:"required,max=100"`
}

// VariationInput describes a variation in a product write. ID is set when
// updating an existing variation; it is ignored on create.
type VariationInput struct {
	ID              string           `json:"id,omitempty"`
	SKU             string           `json:"sku,omitempty" validate:"omitempty,max=64"`
	Price           int64            `json:"price" validate:"gte=0"`
	Stock           int              `json:"stock" validate:"gte=0"`
	SortOrder       int              `json:"sort_order"`
	DiscountPercent *int             `json:"discount_percent,omitempty" validate:"omitempty,min=1,max=100"`
	Attributes      []AttributeInput `json:"attributes" validate:"dive"`
}

// ProductInput is the full representation accepted by create and update.
// Update replaces the product: variations missing from the input are deleted.
type ProductInput struct {
	Name            string           `json:"name" validate:"required,max=200"`
	Slug            string           `json:"slug,omitempty" validate:"omitempty,max=200"`
	Description     string           `json:"description" validate:"max=20000"`
	Price           int64            `json:"price" validate:"gte=0"`
	Currency        string           `json:"currency,omitempty" validate:"omitempty,len=3"`
	Stock           int              `json:"stock" validate:"gte=0"`
	UnlimitedStock  bool             `json:"unlimited_stock"`
	IsActive        *bool            `json:"is_active,omitempty"`
	IsFeatured      bool             `json:"is_featured"`
	OnSale          bool             `json:"on_sale"`
	DiscountPercent *int             `json:"discount_percent,omitempty" validate:"omitempty,min=1,max=100"`
	Weight          *int             `json:"weight,omitempty" validate:"omitempty,gte=0"`
	HasVariations   bool             `json:"has_variations"`
	CategorySlug    *string          `json:"category_slug,omitempty"`
	BrandSlug       *string          `json:"brand_slug,omitempty"`
	TeaCategories   []string         `json:"tea_categories"`
	Images          []string         `json:"images" validate:"dive,url"`
	ShippingFrom    *string          `json:"shipping_from,omitempty" validate:"omitempty,max=100"`
	Variations      []VariationInput `json:"variations" validate:"dive"`
}

// ProductService implements the business logic for product operations.
type ProductService struct {
	repo     repository.ProductRepository
	cache    repository.ProductCache
	producer *event.Producer
	logger   *slog.Logger
	currency string
}

// NewProductService creates a new product service. currency is applied to
// products written without one.
func NewProductService(repo repository.ProductRepository, cache repository.ProductCache, producer *event.Producer, logger *slog.Logger, currency string) *ProductService {
	return &ProductService{
		repo:     repo,
		cache:    cache,
		producer: producer,
		logger:   logger,
		currency: currency,
	}
}

// CreateProduct creates a product with its variations.
func (s *ProductService) CreateProduct(ctx context.Context, input *ProductInput) (*domain.Product, error) {
	now := time.Now().UTC()
	product := &domain.Product{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.apply(product, input, nil, now); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	if err := s.producer.PublishProductCreated(ctx, product); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.created event",
			slog.String("product_id", product.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", product.ID),
		slog.String("slug", product.Slug),
		slog.Int("variations", len(product.Variations)),
	)
	return product, nil
}

// UpdateProduct replaces the product identified by id.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, input *ProductInput) (*domain.Product, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product for update: %w", err)
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:        existing.ID,
		CreatedAt: existing.CreatedAt,
		UpdatedAt: now,
	}
	if err := s.apply(product, input, existing, now); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	s.invalidate(ctx, existing.Slug, product.Slug)

	if err := s.producer.PublishProductUpdated(ctx, product); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.updated event",
			slog.String("product_id", product.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "product updated",
		slog.String("product_id", product.ID),
		slog.String("slug", product.Slug),
	)
	return product, nil
}

// DeleteProduct removes a product and its variations.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get product for delete: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	s.invalidate(ctx, existing.Slug)

	if err := s.producer.PublishProductDeleted(ctx, existing); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.deleted event",
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "product deleted", slog.String("product_id", id))
	return nil
}

// GetProduct retrieves any product by ID (admin view).
func (s *ProductService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	return product, nil
}

// GetStorefrontProduct returns an active product by slug, served from the
// cache when possible. Inactive products are reported as not found.
func (s *ProductService) GetStorefrontProduct(ctx context.Context, productSlug string) (*domain.Product, error) {
	cached, err := s.cache.Get(ctx, productSlug)
	if err != nil {
		s.logger.WarnContext(ctx, "product cache read failed",
			slog.String("slug", productSlug),
			slog.String("error", err.Error()),
		)
	}
	if cached != nil {
		return cached, nil
	}

	product, err := s.repo.GetBySlug(ctx, productSlug)
	if err != nil {
		return nil, fmt.Errorf("get product by slug: %w", err)
	}
	if !product.IsActive {
		return nil, apperrors.NotFound("product", productSlug)
	}

	if err := s.cache.Set(ctx, product); err != nil {
		s.logger.WarnContext(ctx, "product cache write failed",
			slog.String("slug", productSlug),
			slog.String("error", err.Error()),
		)
	}
	return product, nil
}

// ListProducts returns products matching filter and the total count.
func (s *ProductService) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	products, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return products, total, nil
}

// apply copies input onto p, normalising slugs and SKUs, keeping the IDs of
// variations that already exist on existing, and validates the result.
func (s *ProductService) apply(p *domain.Product, in *ProductInput, existing *domain.Product, now time.Time) error {
	p.Name = strings.TrimSpace(in.Name)
	p.Slug = slug.Generate(p.Name)
	if in.Slug != "" {
		p.Slug = slug.Normalize(in.Slug)
	}
	if p.Slug == "" {
		return apperrors.InvalidInput("slug must contain at least one letter or digit")
	}

	p.Description = in.Description
	p.Price = in.Price
	p.Currency = strings.ToUpper(in.Currency)
	if p.Currency == "" {
		p.Currency = s.currency
	}
	p.Stock = in.Stock
	p.UnlimitedStock = in.UnlimitedStock
	p.IsActive = in.IsActive == nil || *in.IsActive
	p.IsFeatured = in.IsFeatured
	p.OnSale = in.OnSale
	p.DiscountPercent = in.DiscountPercent
	p.Weight = in.Weight
	p.HasVariations = in.HasVariations
	p.CategorySlug = normalizeRef(in.CategorySlug)
	p.BrandSlug = normalizeRef(in.BrandSlug)
	p.ShippingFrom = in.ShippingFrom
	p.Images = append([]string{}, in.Images...)

	p.TeaCategories = []string{}
	seen := map[string]bool{}
	for _, tc := range in.TeaCategories {
		if tc = slug.Normalize(tc); tc != "" && !seen[tc] {
			seen[tc] = true
			p.TeaCategories = append(p.TeaCategories, tc)
		}
	}

	p.Variations = make([]domain.ProductVariation, 0, len(in.Variations))
	for _, vin := range in.Variations {
		v := domain.ProductVariation{
			ID:              uuid.NewString(),
			ProductID:       p.ID,
			Price:           vin.Price,
			Stock:           vin.Stock,
			SortOrder:       vin.SortOrder,
			DiscountPercent: vin.DiscountPercent,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if existing != nil && vin.ID != "" {
			if old := existing.Variation(vin.ID); old != nil {
				v.ID = old.ID
				v.CreatedAt = old.CreatedAt
			}
		}

		v.Attributes = make([]domain.VariationAttribute, 0, len(vin.Attributes))
		for _, a := range vin.Attributes {
			v.Attributes = append(v.Attributes, domain.VariationAttribute{
				ID:          uuid.NewString(),
				VariationID: v.ID,
				Key:         strings.ToUpper(strings.TrimSpace(a.Key)),
				Value:       strings.TrimSpace(a.Value),
			})
		}

		v.SKU = domain.NormalizeSKU(vin.SKU)
		if v.SKU == "" {
			v.SKU = domain.GenerateSKU(p.Slug, v.Attributes)
		}
		p.Variations = append(p.Variations, v)
	}

	return p.Validate()
}

func (s *ProductService) invalidate(ctx context.Context, slugs ...string) {
	invalidateProducts(ctx, s.cache, s.logger, slugs...)
}

// invalidateProducts drops cached detail documents. Failures only log; the
// entries still expire with the cache TTL.
func invalidateProducts(ctx context.Context, cache repository.ProductCache, logger *slog.Logger, slugs ...string) {
	if err := cache.Invalidate(ctx, slugs...); err != nil {
		logger.WarnContext(ctx, "product cache invalidation failed",
			slog.Any("slugs", slugs),
			slog.String("error", err.Error()),
		)
	}
}

func flushProducts(ctx context.Context, cache repository.ProductCache, logger *slog.Logger) {
	if err := cache.Flush(ctx); err != nil {
		logger.WarnContext(ctx, "product cache flush failed", slog.String("error", err.Error()))
	}
}

// orderedSlugs returns the distinct product slugs of an order's items.
func orderedSlugs(items []domain.OrderItem) []string {
	seen := make(map[string]bool, len(items))
	slugs := make([]string, 0, len(items))
	for _, it := range items {
		if it.ProductSlug != "" && !seen[it.ProductSlug] {
			seen[it.ProductSlug] = true
			slugs = append(slugs, it.ProductSlug)
		}
	}
	return slugs
}

// normalizeRef turns an optional slug reference into canonical form; blank
// references become nil.
func normalizeRef(ref *string) *string {
	if ref == nil {
		return nil
	}
	s := slug.Normalize(strings.TrimSpace(*ref))
	if s == "" {
		return nil
	}
	return &s
}
