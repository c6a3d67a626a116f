package domain

import (
	"strings"
	"time"

	"github.com/alex-rublevsky/rublevsky-studio/pkg/slug"
)

// ProductVariation is a purchasable configuration of a product.
type ProductVariation struct {
	ID              string               `json:"id"`
	ProductID       string               `json:"product_id"`
	SKU             string               `json:"sku"`
	Price           int64                `json:"price"`
	Stock           int                  `json:"stock"`
	SortOrder       int                  `json:"sort_order"`
	DiscountPercent *int                 `json:"discount_percent,omitempty"`
	Attributes      []VariationAttribute `json:"attributes"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// Attribute returns the value stored under key.
func (v *ProductVariation) Attribute(key string) (string, bool) {
	for _, a := range v.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// AttributeMap returns the attributes as key → value.
func (v *ProductVariation) AttributeMap() map[string]string {
	m := make(map[string]string, len(v.Attributes))
	for _, a := range v.Attributes {
		m[a.Key] = a.Value
	}
	return m
}

// WeightGrams reads the WEIGHT_G attribute.
func (v *ProductVariation) WeightGrams() (int, bool) {
	raw, ok := v.Attribute(AttrWeightG)
	if !ok {
		return 0, false
	}
	g, err := parseGrams(raw)
	if err != nil {
		return 0, false
	}
	return g, true
}

// GenerateSKU builds a SKU from the product slug and the attribute values in
// key order: "sencha" + {WEIGHT_G: 50} → "SENCHA-50".
func GenerateSKU(productSlug string, attrs []VariationAttribute) string {
	parts := []string{productSlug}
	for _, a := range sortedAttributes(attrs) {
		if s := slug.Generate(a.Value); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.ToUpper(strings.Join(parts, "-"))
}

// NormalizeSKU upper-cases and trims a caller-supplied SKU.
func NormalizeSKU(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}
