package domain

import (
	"fmt"
	"time"

	apperrors "github.com/alex-rublevsky/rublevsky-studio/pkg/errors"
)

// Product is a catalog entry. Weight, when set on a product with
// variations, is a pool in grams shared by all of its variations.
type Product struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Slug            string             `json:"slug"`
	Description     string             `json:"description"`
	Price           int64              `json:"price"`
	Currency        string             `json:"currency"`
	Stock           int                `json:"stock"`
	UnlimitedStock  bool               `json:"unlimited_stock"`
	IsActive        bool               `json:"is_active"`
	IsFeatured      bool               `json:"is_featured"`
	OnSale          bool               `json:"on_sale"`
	DiscountPercent *int               `json:"discount_percent,omitempty"`
	Weight          *int               `json:"weight,omitempty"`
	HasVariations   bool               `json:"has_variations"`
	CategorySlug    *string            `json:"category_slug,omitempty"`
	BrandSlug       *string            `json:"brand_slug,omitempty"`
	TeaCategories   []string           `json:"tea_categories"`
	Images          []string           `json:"images"`
	ShippingFrom    *string            `json:"shipping_from,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	Variations      []ProductVariation `json:"variations"`
}

// IsWeightPooled reports whether variations draw from the product's weight.
func (p *Product) IsWeightPooled() bool {
	return p.HasVariations && p.Weight != nil && *p.Weight > 0
}

// Variation returns the variation with id, or nil.
func (p *Product) Variation(id string) *ProductVariation {
	for i := range p.Variations {
		if p.Variations[i].ID == id {
			return &p.Variations[i]
		}
	}
	return nil
}

// PrimaryImage returns the first image URL, or "".
func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// UnitPrice is the undiscounted price of one unit of v (or of p when v is nil).
// A variation with a zero price inherits the product price.
func (p *Product) UnitPrice(v *ProductVariation) int64 {
	if v != nil && v.Price > 0 {
		return v.Price
	}
	return p.Price
}

// EffectiveUnitPrice applies the sale discount. A variation discount takes
// precedence over the product discount; neither applies unless OnSale.
func (p *Product) EffectiveUnitPrice(v *ProductVariation) int64 {
	return ApplyDiscount(p.UnitPrice(v), p.DiscountFor(v))
}

// DiscountFor returns the active discount percent for v, or nil.
func (p *Product) DiscountFor(v *ProductVariation) *int {
	if !p.OnSale {
		return nil
	}
	d := p.DiscountPercent
	if v != nil && v.DiscountPercent != nil {
		d = v.DiscountPercent
	}
	if d == nil || *d < 1 || *d > 100 {
		return nil
	}
	return d
}

// ApplyDiscount takes percent off price, rounding half up in minor units.
func ApplyDiscount(price int64, percent *int) int64 {
	if percent == nil || *percent < 1 || *percent > 100 {
		return price
	}
	return (price*int64(100-*percent) + 50) / 100
}

// Validate checks the structural rules for a product and its variations.
func (p *Product) Validate() error {
	if p.Name == "" {
		return apperrors.InvalidInput("product name is required")
	}
	if p.Price < 0 {
		return apperrors.InvalidInput("price must not be negative")
	}
	if p.Stock < 0 {
		return apperrors.InvalidInput("stock must not be negative")
	}
	if p.Weight != nil && *p.Weight < 0 {
		return apperrors.InvalidInput("weight must not be negative")
	}
	if p.DiscountPercent != nil && (*p.DiscountPercent < 1 || *p.DiscountPercent > 100) {
		return apperrors.InvalidInput("discount_percent must be between 1 and 100")
	}
	if !p.HasVariations && len(p.Variations) > 0 {
		return apperrors.InvalidInput("variations given but has_variations is false")
	}

	skus := make(map[string]struct{}, len(p.Variations))
	signatures := make(map[string]struct{}, len(p.Variations))
	for i := range p.Variations {
		v := &p.Variations[i]
		if err := ValidateAttributes(v.Attributes); err != nil {
			return fmt.Errorf("variation %d: %w", i, err)
		}
		if v.Price < 0 || v.Stock < 0 {
			return apperrors.InvalidInput(fmt.Sprintf("variation %d: price and stock must not be negative", i))
		}
		if v.DiscountPercent != nil && (*v.DiscountPercent < 1 || *v.DiscountPercent > 100) {
			return apperrors.InvalidInput(fmt.Sprintf("variation %d: discount_percent must be between 1 and 100", i))
		}
		if p.IsWeightPooled() {
			if _, ok := v.WeightGrams(); !ok {
				return apperrors.InvalidInput(fmt.Sprintf("variation %d: %s is required when the product has a weight pool", i, AttrWeightG))
			}
		}
		if _, dup := skus[v.SKU]; dup && v.SKU != "" {
			return apperrors.InvalidInput(fmt.Sprintf("duplicate sku %q", v.SKU))
		}
		skus[v.SKU] = struct{}{}

		sig := AttributeSignature(v.Attributes)
		if _, dup := signatures[sig]; dup {
			return apperrors.InvalidInput(fmt.Sprintf("variation %d duplicates the attributes of another variation", i))
		}
		signatures[sig] = struct{}{}
	}
	return nil
}
