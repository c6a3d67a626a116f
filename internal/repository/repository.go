package repository

import (
	"context"

	"github.com/alex-rublevsky/rublevsky-studio/internal/domain"
)

// Product sort orders accepted by ProductFilter.Sort.
const (
	SortNewest    = "newest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortName      = "name"
)

// ProductFilter defines filter criteria for listing products.
type ProductFilter struct {
	CategorySlug    *string
	BrandSlug       *string
	TeaCategorySlug *string
	MinPrice        *int64
	MaxPrice        *int64
	OnSale          *bool
	Featured        *bool
	Search          *string
	// ActiveOnly hides inactive products (storefront listing).
	ActiveOnly bool
	Sort       string
	Page       int
	PerPage    int
}

// ProductRepository defines the interface for product persistence operations.
// Products are always returned with their variations, attributes and tea
// categories loaded.
type ProductRepository interface {
	// Create inserts a product with its variations, attributes and tea
	// categories in one transaction.
	Create(ctx context.Context, product *domain.Product) error

	// GetByID retrieves a product by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// GetBySlug retrieves a product by its URL-friendly slug.
	GetBySlug(ctx context.Context, slug string) (*domain.Product, error)

	// GetByIDs returns the products that exist among ids, keyed by ID.
	GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error)

	// List returns products matching the given filter along with the total count.
	List(ctx context.Context, filter ProductFilter) ([]domain.Product, int, error)

	// Update replaces a product and reconciles its variation set: variations
	// missing from product.Variations are deleted, the rest are upserted.
	Update(ctx context.Context, product *domain.Product) error

	// Delete removes a product and, by cascade, its variations.
	Delete(ctx context.Context, id string) error
}

// CategoryRepository defines persistence for categories. Rows are addressed by slug.
type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) error
	GetBySlug(ctx context.Context, slug string) (*domain.Category, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Category, error)
	// Update rewrites the category currently stored under slug. A changed
	// category.Slug cascades to products.
	Update(ctx context.Context, slug string, category *domain.Category) error
	Delete(ctx context.Context, slug string) error
}

// BrandRepository defines persistence for brands.
type BrandRepository interface {
	Create(ctx context.Context, brand *domain.Brand) error
	GetBySlug(ctx context.Context, slug string) (*domain.Brand, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Brand, error)
	Update(ctx context.Context, slug string, brand *domain.Brand) error
	Delete(ctx context.Context, slug string) error
}

// TeaCategoryRepository defines persistence for tea categories.
type TeaCategoryRepository interface {
	Create(ctx context.Context, tc *domain.TeaCategory) error
	GetBySlug(ctx context.Context, slug string) (*domain.TeaCategory, error)
	List(ctx context.Context, activeOnly bool) ([]domain.TeaCategory, error)
	Update(ctx context.Context, slug string, tc *domain.TeaCategory) error
	Delete(ctx context.Context, slug string) error
}

// OrderFilter defines filter criteria for listing orders.
type OrderFilter struct {
	Status  *string
	Email   *string
	UserID  *string
	Page    int
	PerPage int
}

// OrderRepository defines the interface for order persistence operations.
type OrderRepository interface {
	// Create locks the affected product rows, takes the order's stock
	// changes from them and inserts the order, items and addresses, all in
	// one transaction. A shortfall found under lock aborts with a Conflict
	// coded INSUFFICIENT_STOCK or WEIGHT_EXCEEDED.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order with its items and addresses.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// List returns orders (without items) matching the filter and the total count.
	List(ctx context.Context, filter OrderFilter) ([]domain.Order, int, error)

	// UpdateStatus moves an order to status if the transition is allowed and
	// returns the previous status. Moving to cancelled gives the items'
	// stock back in the same transaction.
	UpdateStatus(ctx context.Context, id, status string) (string, error)
}

// BlogFilter defines filter criteria for listing blog posts.
type BlogFilter struct {
	PublishedOnly bool
	Page          int
	PerPage       int
}

// BlogRepository defines persistence for blog posts.
type BlogRepository interface {
	Create(ctx context.Context, post *domain.BlogPost) error
	GetByID(ctx context.Context, id string) (*domain.BlogPost, error)
	GetBySlug(ctx context.Context, slug string) (*domain.BlogPost, error)
	List(ctx context.Context, filter BlogFilter) ([]domain.BlogPost, int, error)
	Update(ctx context.Context, post *domain.BlogPost) error
	Delete(ctx context.Context, id string) error
}

// UserRepository defines persistence for accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByEmail matches case-insensitively.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// CartRepository defines the interface for cart persistence operations.
type CartRepository interface {
	// Get retrieves a cart by its ID.
	Get(ctx context.Context, cartID string) (*domain.Cart, error)

	// SaveIfVersion stores cart only if the stored version still equals
	// expectedVersion (0 for a cart that does not exist yet). On success
	// cart.Version is incremented. It reports false on a version mismatch.
	SaveIfVersion(ctx context.Context, cart *domain.Cart, expectedVersion int64) (bool, error)

	// Delete removes a cart.
	Delete(ctx context.Context, cartID string) error
}

// ProductCache caches storefront product detail by slug.
type ProductCache interface {
	// Get returns the cached product, or nil on a miss.
	Get(ctx context.Context, slug string) (*domain.Product, error)
	Set(ctx context.Context, product *domain.Product) error
	Invalidate(ctx context.Context, slugs ...string) error
	// Flush drops every cached product.
	Flush(ctx context.Context) error
}
