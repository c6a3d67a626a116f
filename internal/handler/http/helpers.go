package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alex-rublevsky/rublevsky-studio/pkg/httputil"
	"github.com/alex-rublevsky/rublevsky-studio/pkg/validator"
)

// decode reads and validates a JSON body, writing the error response itself
// when it fails.
func decode(w http.ResponseWriter, r *http.Request, dst any, logger *slog.Logger) bool {
	if err := validator.DecodeAndValidate(w, r, dst); err != nil {
		httputil.WriteError(w, r, err, logger)
		return false
	}
	return true
}

// queryString returns a pointer to the query value, nil when absent.
func queryString(r *http.Request, key string) *string {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	return &v
}

// queryBool parses "true"/"false"-style values; anything else counts as absent.
func queryBool(r *http.Request, key string) *bool {
	b, err := strconv.ParseBool(r.URL.Query().Get(key))
	if err != nil {
		return nil
	}
	return &b
}

// queryInt64 parses a non-negative integer; anything else counts as absent.
func queryInt64(r *http.Request, key string) *int64 {
	n, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}
