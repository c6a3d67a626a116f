package service

import (
	"errors"
	"fmt"

	"github.com/alex-rublevsky/rublevsky-studio/internal/domain"
	apperrors "github.com/alex-rublevsky/rublevsky-studio/pkg/errors"
)

// lineError converts a domain availability error into an API error.
func lineError(err error) error {
	var se *domain.StockError
	if errors.As(err, &se) {
		code := "INSUFFICIENT_STOCK"
		if errors.Is(se, domain.ErrWeightExceeded) {
			code = "WEIGHT_EXCEEDED"
		}
		return apperrors.Conflict(code, fmt.Sprintf("only %d available", se.Available)).WithDetails(map[string]any{
			"product_id":   se.ProductID,
			"variation_id": se.VariationID,
			"requested":    se.Requested,
			"available":    se.Available,
		})
	}

	switch {
	case errors.Is(err, domain.ErrProductInactive):
		return apperrors.Conflict("PRODUCT_UNAVAILABLE", err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrVariationRequired),
		errors.Is(err, domain.ErrVariationNotAllowed),
		errors.Is(err, domain.ErrVariationNotFound),
		errors.Is(err, domain.ErrNoVariations),
		errors.Is(err, domain.ErrMissingWeight),
		errors.Is(err, domain.ErrCartFull):
		return apperrors.InvalidInput(err.Error())
	}
	return err
}

// rejectionReason labels a line error for the rejection metrics. It returns
// "" for errors that are not availability rejections.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrWeightExceeded):
		return "weight_exceeded"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrProductInactive):
		return "inactive"
	case errors.Is(err, domain.ErrCartFull):
		return "cart_full"
	case errors.Is(err, domain.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, domain.ErrVariationRequired),
		errors.Is(err, domain.ErrVariationNotAllowed),
		errors.Is(err, domain.ErrVariationNotFound),
		errors.Is(err, domain.ErrNoVariations),
		errors.Is(err, domain.ErrMissingWeight):
		return "invalid_line"
	}
	return ""
}
