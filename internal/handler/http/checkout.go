package http

import (
	"log/slog"
	"net/http"

	"github.com/alex-rublevsky/rublevsky-studio/internal/service"
	"github.com/alex-rublevsky/rublevsky-studio/pkg/httputil"
	"github.com/alex-rublevsky/rublevsky-studio/pkg/middleware"
)

// CheckoutHandler handles order placement.
type CheckoutHandler struct {
	service *service.CheckoutService
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{service: svc, logger: logger}
}

// Checkout handles POST /api/v1/checkout. Signed-in customers get the order
// attached to their account.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req service.CheckoutInput
	if !decode(w, r, &req, h.logger) {
		return
	}

	var userID *string
	if id := middleware.UserIDFromContext(r.Context()); id != "" {
		userID = &id
	}

	order, err := h.service.Checkout(r.Context(), cartIDFromContext(r.Context()), userID, &req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, order)
}
