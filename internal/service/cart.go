package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alex-rublevsky/rublevsky-studio/internal/domain"
	"github.com/alex-rublevsky/rublevsky-studio/internal/repository"
	apperrors "github.com/alex-rublevsky/rublevsky-studio/pkg/errors"
)

// maxSaveAttempts bounds the optimistic retries of a cart write.
const maxSaveAttempts = 3

// AddItemInput is the request body for adding a line to the cart.
type AddItemInput struct {
	ProductID   string `json:"product_id" validate:"required,uuid"`
	VariationID string `json:"variation_id,omitempty"`
	Quantity    int    `json:"quantity" validate:"required,min=1,max=99"`
}

// UpdateItemInput is the request body for changing a line's quantity.
// Zero removes the line.
type UpdateItemInput struct {
	VariationID string `json:"variation_id,omitempty"`
	Quantity    int    `json:"quantity" validate:"min=0,max=99"`
}

// CartService implements the business logic for shopping cart operations.
type CartService struct {
	repo     repository.CartRepository
	products repository.ProductRepository
	logger   *slog.Logger
	ttl      time.Duration
	now      func() time.Time
}

// NewCartService creates a new cart service. ttl is the cart lifetime since
// its last write.
func NewCartService(repo repository.CartRepository, products repository.ProductRepository, logger *slog.Logger, ttl time.Duration) *CartService {
	return &CartService{
		repo:     repo,
		products: products,
		logger:   logger,
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetCart returns the cart, or an empty cart when none is stored yet.
func (s *CartService) GetCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	cart, err := s.load(ctx, cartID)
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// AddItem adds quantity of a product line, merging with an existing line.
func (s *CartService) AddItem(ctx context.Context, cartID string, input *AddItemInput) (*domain.Cart, error) {
	product, err := s.products.GetByID(ctx, input.ProductID)
	if err != nil {
		return nil, fmt.Errorf("get product for cart: %w", err)
	}

	cart, err := s.mutate(ctx, cartID, func(cart *domain.Cart) error {
		qty := input.Quantity
		idx := cart.FindItemIndex(input.ProductID, input.VariationID)
		if idx >= 0 {
			qty += cart.Items[idx].Quantity
		} else if len(cart.Items) >= domain.MaxItemsPerCart {
			return domain.ErrCartFull
		}

		if err := domain.CheckQuantity(product, input.VariationID, qty, cart.Items); err != nil {
			return err
		}

		v := product.Variation(input.VariationID)
		if idx >= 0 {
			cart.Items[idx].Quantity = qty
			cart.Items[idx].Snapshot(product, v)
			return nil
		}
		item := domain.CartItem{
			ProductID:   input.ProductID,
			VariationID: input.VariationID,
			Quantity:    qty,
			AddedAt:     s.now(),
		}
		item.Snapshot(product, v)
		cart.Items = append(cart.Items, item)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("cart_id", cartID),
		slog.String("product_id", input.ProductID),
		slog.String("variation_id", input.VariationID),
		slog.Int("quantity", input.Quantity),
	)
	return cart, nil
}

// UpdateItemQuantity sets the quantity of a line. The line's own reservation
// does not count against availability. Quantity zero removes the line.
func (s *CartService) UpdateItemQuantity(ctx context.Context, cartID, productID, variationID string, quantity int) (*domain.Cart, error) {
	if quantity == 0 {
		return s.RemoveItem(ctx, cartID, productID, variationID)
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product for cart: %w", err)
	}

	cart, err := s.mutate(ctx, cartID, func(cart *domain.Cart) error {
		idx := cart.FindItemIndex(productID, variationID)
		if idx < 0 {
			return apperrors.NotFound("cart item", domain.LineKey(productID, variationID))
		}
		if err := domain.CheckQuantity(product, variationID, quantity, cart.Items); err != nil {
			return err
		}
		cart.Items[idx].Quantity = quantity
		cart.Items[idx].Snapshot(product, product.Variation(variationID))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "cart item updated",
		slog.String("cart_id", cartID),
		slog.String("product_id", productID),
		slog.Int("quantity", quantity),
	)
	return cart, nil
}

// RemoveItem removes a line from the cart.
func (s *CartService) RemoveItem(ctx context.Context, cartID, productID, variationID string) (*domain.Cart, error) {
	cart, err := s.mutate(ctx, cartID, func(cart *domain.Cart) error {
		idx := cart.FindItemIndex(productID, variationID)
		if idx < 0 {
			return apperrors.NotFound("cart item", domain.LineKey(productID, variationID))
		}
		cart.RemoveAt(idx)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "item removed from cart",
		slog.String("cart_id", cartID),
		slog.String("product_id", productID),
	)
	return cart, nil
}

// ClearCart deletes the cart.
func (s *CartService) ClearCart(ctx context.Context, cartID string) error {
	if err := s.repo.Delete(ctx, cartID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	s.logger.InfoContext(ctx, "cart cleared", slog.String("cart_id", cartID))
	return nil
}

// Reconcile re-checks every line against current products, stores the
// corrected cart and returns it with the adjustments made.
func (s *CartService) Reconcile(ctx context.Context, cartID string) (*domain.Cart, []domain.Adjustment, error) {
	current, err := s.load(ctx, cartID)
	if err != nil {
		return nil, nil, err
	}
	if current.IsEmpty() {
		return current, []domain.Adjustment{}, nil
	}

	var adjustments []domain.Adjustment
	cart, err := s.mutate(ctx, cartID, func(cart *domain.Cart) error {
		products, err := s.products.GetByIDs(ctx, productIDs(cart.Items))
		if err != nil {
			return fmt.Errorf("load cart products: %w", err)
		}
		cart.Items, adjustments = domain.Reconcile(cart.Items, products)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	for _, a := range adjustments {
		cartAdjustments.WithLabelValues(a.Kind).Inc()
	}
	if len(adjustments) > 0 {
		s.logger.InfoContext(ctx, "cart reconciled",
			slog.String("cart_id", cartID),
			slog.Int("adjustments", len(adjustments)),
		)
	}
	if adjustments == nil {
		adjustments = []domain.Adjustment{}
	}
	return cart, adjustments, nil
}

// load returns the stored cart or a fresh empty one.
func (s *CartService) load(ctx context.Context, cartID string) (*domain.Cart, error) {
	cart, err := s.repo.Get(ctx, cartID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	now := s.now()
	return &domain.Cart{
		ID:        cartID,
		Items:     []domain.CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}, nil
}

// mutate applies fn to the latest cart and saves it if nobody wrote in
// between, retrying on a version conflict.
func (s *CartService) mutate(ctx context.Context, cartID string, fn func(*domain.Cart) error) (*domain.Cart, error) {
	for attempt := 1; ; attempt++ {
		cart, err := s.load(ctx, cartID)
		if err != nil {
			return nil, err
		}
		expected := cart.Version

		if err := fn(cart); err != nil {
			if reason := rejectionReason(err); reason != "" {
				cartRejections.WithLabelValues(reason).Inc()
			}
			return nil, lineError(err)
		}

		now := s.now()
		cart.UpdatedAt = now
		cart.ExpiresAt = now.Add(s.ttl)

		saved, err := s.repo.SaveIfVersion(ctx, cart, expected)
		if err != nil {
			return nil, fmt.Errorf("save cart: %w", err)
		}
		if saved {
			return cart, nil
		}
		if attempt == maxSaveAttempts {
			return nil, apperrors.Conflict("CART_CONFLICT", "the cart was modified concurrently, please retry")
		}
		s.logger.DebugContext(ctx, "cart version conflict, retrying",
			slog.String("cart_id", cartID),
			slog.Int("attempt", attempt),
		)
	}
}

func productIDs(items []domain.CartItem) []string {
	seen := make(map[string]bool, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}
	return ids
}
