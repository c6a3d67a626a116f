package http

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// CartIDHeader carries the guest cart key in both directions.
const CartIDHeader = "X-Cart-ID"

type contextKey string

const cartIDKey contextKey = "cart_id"

// ContentTypeJSON sets the Content-Type header to application/json for all responses.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// CartID resolves the cart key from X-Cart-ID. A missing or malformed key
// is replaced with a fresh one. The key in use is always echoed back so the
// client can store it.
func CartID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CartIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(CartIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), cartIDKey, id)))
	})
}

// cartIDFromContext returns the cart key set by CartID.
func cartIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(cartIDKey).(string)
	return id
}
