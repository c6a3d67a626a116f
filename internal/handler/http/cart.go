package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alex-rublevsky/rublevsky-studio/internal/domain"
	"github.com/alex-rublevsky/rublevsky-studio/internal/service"
	"github.com/alex-rublevsky/rublevsky-studio/pkg/httputil"
)

// CartHandler handles HTTP requests for cart endpoints. Every route runs
// behind the CartID middleware.
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service: svc,
		logger:  logger,
	}
}

// CartResponse is a cart with its computed totals.
type CartResponse struct {
	*domain.Cart
	Subtotal  int64 `json:"subtotal"`
	ItemCount int   `json:"item_count"`
}

// ValidateResponse is the result of a reconciliation.
type ValidateResponse struct {
	Cart        CartResponse        `json:"cart"`
	Adjustments []domain.Adjustment `json:"adjustments"`
}

func newCartResponse(c *domain.Cart) CartResponse {
	return CartResponse{Cart: c, Subtotal: c.Subtotal(), ItemCount: c.ItemCount()}
}

// GetCart handles GET /api/v1/cart.
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.GetCart(r.Context(), cartIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, newCartResponse(cart))
}

// AddItem handles POST /api/v1/cart/items.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req service.AddItemInput
	if !decode(w, r, &req, h.logger) {
		return
	}

	cart, err := h.service.AddItem(r.Context(), cartIDFromContext(r.Context()), &req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, newCartResponse(cart))
}

// UpdateItemQuantity handles PUT /api/v1/cart/items/{productId}.
func (h *CartHandler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseUUID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	var req service.UpdateItemInput
	if !decode(w, r, &req, h.logger) {
		return
	}

	cart, err := h.service.UpdateItemQuantity(r.Context(), cartIDFromContext(r.Context()),
		productID.String(), req.VariationID, req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, newCartResponse(cart))
}

// RemoveItem handles DELETE /api/v1/cart/items/{productId}?variation_id=.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseUUID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	cart, err := h.service.RemoveItem(r.Context(), cartIDFromContext(r.Context()),
		productID.String(), r.URL.Query().Get("variation_id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, newCartResponse(cart))
}

// ClearCart handles DELETE /api/v1/cart.
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearCart(r.Context(), cartIDFromContext(r.Context())); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Validate handles GET /api/v1/cart/validate.
func (h *CartHandler) Validate(w http.ResponseWriter, r *http.Request) {
	cart, adjustments, err := h.service.Reconcile(r.Context(), cartIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, ValidateResponse{
		Cart:        newCartResponse(cart),
		Adjustments: adjustments,
	})
}
