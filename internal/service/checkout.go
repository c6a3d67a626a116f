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
	"github.com/alex-rublevsky/rublevsky-studio/internal/event"
	"github.com/alex-rublevsky/rublevsky-studio/internal/mailer"
	"github.com/alex-rublevsky/rublevsky-studio/internal/repository"
	apperrors "github.com/alex-rublevsky/rublevsky-studio/pkg/errors"
)

// AddressInput is a postal address in a checkout request.
type AddressInput struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Email     string `json:"email,omitempty" validate:"omitempty,email"`
	Phone     string `json:"phone,omitempty" validate:"omitempty,max=40"`
	Street    string `json:"street" validate:"required,max=200"`
	City      string `json:"city" validate:"required,max=100"`
	State     string `json:"state,omitempty" validate:"omitempty,max=100"`
	Zip       string `json:"zip" validate:"required,max=20"`
	Country   string `json:"country" validate:"required,max=100"`
}

// CheckoutInput is the request body for placing an order from a cart.
// Without a billing address the shipping address is used for both.
type CheckoutInput struct {
	CustomerEmail   string        `json:"customer_email" validate:"required,email,max=254"`
	CustomerName    string        `json:"customer_name" validate:"required,max=200"`
	ShippingAddress AddressInput  `json:"shipping_address"`
	BillingAddress  *AddressInput `json:"billing_address,omitempty"`
	ShippingMethod  *string       `json:"shipping_method,omitempty" validate:"omitempty,max=50"`
	Notes           *string       `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// CheckoutConfig holds pricing settings for checkout.
type CheckoutConfig struct {
	Currency string
	Shipping domain.ShippingPolicy
	// EmailTimeout bounds each email send.
	EmailTimeout time.Duration
	// InlineOwnerAlerts makes checkout email the shop owner itself. Set it
	// when no broker delivers order.created to the alert consumer.
	InlineOwnerAlerts bool
}

// CheckoutService turns a cart into an order.
type CheckoutService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	orders   repository.OrderRepository
	cache    repository.ProductCache
	producer *event.Producer
	renderer *mailer.Renderer
	sender   mailer.Sender
	logger   *slog.Logger
	cfg      CheckoutConfig
	now      func() time.Time
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(
	carts repository.CartRepository,
	products repository.ProductRepository,
	orders repository.OrderRepository,
	cache repository.ProductCache,
	producer *event.Producer,
	renderer *mailer.Renderer,
	sender mailer.Sender,
	logger *slog.Logger,
	cfg CheckoutConfig,
) *CheckoutService {
	if cfg.EmailTimeout <= 0 {
		cfg.EmailTimeout = 10 * time.Second
	}
	return &CheckoutService{
		carts:    carts,
		products: products,
		orders:   orders,
		cache:    cache,
		producer: producer,
		renderer: renderer,
		sender:   sender,
		logger:   logger,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Checkout places an order for the cart's contents. The cart must reconcile
// without any adjustment; otherwise the corrected cart is stored and a
// CART_CHANGED conflict listing the adjustments is returned.
func (s *CheckoutService) Checkout(ctx context.Context, cartID string, userID *string, input *CheckoutInput) (*domain.Order, error) {
	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, s.reject("empty_cart", apperrors.InvalidInput("cart is empty"))
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if cart.IsEmpty() {
		return nil, s.reject("empty_cart", apperrors.InvalidInput("cart is empty"))
	}

	products, err := s.products.GetByIDs(ctx, productIDs(cart.Items))
	if err != nil {
		return nil, fmt.Errorf("load cart products: %w", err)
	}

	lines, adjustments := domain.Reconcile(cart.Items, products)
	if len(adjustments) > 0 {
		s.storeReconciled(ctx, cart, lines)
		for _, a := range adjustments {
			cartAdjustments.WithLabelValues(a.Kind).Inc()
		}
		return nil, s.reject("cart_changed",
			apperrors.Conflict("CART_CHANGED", "the cart changed since it was last viewed").
				WithDetails(map[string]any{"adjustments": adjustments}))
	}

	order, err := s.buildOrder(userID, input, lines, products)
	if err != nil {
		return nil, err
	}

	if err := s.orders.Create(ctx, order); err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && errors.Is(err, apperrors.ErrConflict) {
			checkoutRejections.WithLabelValues(strings.ToLower(appErr.Code)).Inc()
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	ordersCreated.Inc()
	orderRevenue.WithLabelValues(order.Currency).Add(float64(order.TotalAmount))

	// Cached detail documents carry stock.
	invalidateProducts(ctx, s.cache, s.logger, orderedSlugs(order.Items)...)

	if err := s.carts.Delete(ctx, cartID); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear cart after checkout",
			slog.String("cart_id", cartID),
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.producer.PublishOrderCreated(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.created event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.deliver(ctx, order, "order confirmation", s.renderer.OrderConfirmation)
	if s.cfg.InlineOwnerAlerts {
		s.deliver(ctx, order, "owner alert", s.renderer.OwnerAlert)
	}

	s.logger.InfoContext(ctx, "order placed",
		slog.String("order_id", order.ID),
		slog.Int("items", len(order.Items)),
		slog.Int64("total", order.TotalAmount),
		slog.String("currency", order.Currency),
	)
	return order, nil
}

func (s *CheckoutService) buildOrder(userID *string, in *CheckoutInput, lines []domain.CartItem, products map[string]*domain.Product) (*domain.Order, error) {
	now := s.now()
	order := &domain.Order{
		ID:             uuid.NewString(),
		UserID:         userID,
		Status:         domain.OrderStatusPending,
		Currency:       s.cfg.Currency,
		Notes:          in.Notes,
		ShippingMethod: in.ShippingMethod,
		CustomerEmail:  strings.ToLower(strings.TrimSpace(in.CustomerEmail)),
		CustomerName:   strings.TrimSpace(in.CustomerName),
		Items:          make([]domain.OrderItem, 0, len(lines)),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	for _, line := range lines {
		p := products[line.ProductID]
		if p.Currency != s.cfg.Currency {
			return nil, apperrors.InvalidInput(fmt.Sprintf("product %s is priced in %s, orders are placed in %s", p.Slug, p.Currency, s.cfg.Currency))
		}
		item, err := domain.NewOrderItem(order.ID, line, p)
		if err != nil {
			return nil, lineError(err)
		}
		order.Items = append(order.Items, item)
	}

	if in.BillingAddress == nil {
		order.Addresses = []domain.Address{newAddress(order, domain.AddressBoth, in.ShippingAddress)}
	} else {
		order.Addresses = []domain.Address{
			newAddress(order, domain.AddressShipping, in.ShippingAddress),
			newAddress(order, domain.AddressBilling, *in.BillingAddress),
		}
	}
	if err := domain.ValidateAddresses(order.Addresses); err != nil {
		return nil, err
	}

	order.ApplyTotals(s.cfg.Shipping)
	return order, nil
}

func newAddress(order *domain.Order, kind string, in AddressInput) domain.Address {
	email := strings.TrimSpace(in.Email)
	if email == "" {
		email = order.CustomerEmail
	}
	return domain.Address{
		ID:          uuid.NewString(),
		OrderID:     order.ID,
		AddressType: kind,
		FirstName:   strings.TrimSpace(in.FirstName),
		LastName:    strings.TrimSpace(in.LastName),
		Email:       email,
		Phone:       strings.TrimSpace(in.Phone),
		Street:      strings.TrimSpace(in.Street),
		City:        strings.TrimSpace(in.City),
		State:       strings.TrimSpace(in.State),
		Zip:         strings.TrimSpace(in.Zip),
		Country:     strings.TrimSpace(in.Country),
	}
}

// storeReconciled saves the corrected lines so the next cart read shows
// them. A concurrent write wins; the client re-reads either way.
func (s *CheckoutService) storeReconciled(ctx context.Context, cart *domain.Cart, lines []domain.CartItem) {
	expected := cart.Version
	cart.Items = lines
	cart.UpdatedAt = s.now()
	if _, err := s.carts.SaveIfVersion(ctx, cart, expected); err != nil {
		s.logger.WarnContext(ctx, "failed to store reconciled cart",
			slog.String("cart_id", cart.ID),
			slog.String("error", err.Error()),
		)
	}
}

// deliver renders and sends one email about order. Failures are logged and
// never fail the checkout.
func (s *CheckoutService) deliver(ctx context.Context, order *domain.Order, what string, render func(*domain.Order) (*mailer.Message, error)) {
	msg, err := render(order)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to render "+what,
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if msg.To == "" {
		s.logger.WarnContext(ctx, "no recipient for "+what+", dropping it",
			slog.String("order_id", order.ID),
		)
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.EmailTimeout)
	defer cancel()
	if err := s.sender.Send(sendCtx, msg); err != nil {
		s.logger.ErrorContext(ctx, "failed to send "+what,
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *CheckoutService) reject(reason string, err error) error {
	checkoutRejections.WithLabelValues(reason).Inc()
	return err
}
