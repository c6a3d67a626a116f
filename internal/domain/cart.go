package domain

import "time"

// Cart limits.
const (
	MaxQuantityPerItem = 99
	MaxItemsPerCart    = 50
)

// CartItem is one line. The product fields after Quantity and AddedAt are
// display snapshots refreshed on every write and reconciliation.
type CartItem struct {
	ProductID   string            `json:"product_id"`
	VariationID string            `json:"variation_id,omitempty"`
	Quantity    int               `json:"quantity"`
	AddedAt     time.Time         `json:"added_at"`
	ProductName string            `json:"product_name"`
	ProductSlug string            `json:"product_slug"`
	SKU         string            `json:"sku,omitempty"`
	UnitPrice   int64             `json:"unit_price"`
	SalePrice   int64             `json:"sale_price"`
	Image       string            `json:"image,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// Key identifies the line within a cart.
func (it CartItem) Key() string {
	return LineKey(it.ProductID, it.VariationID)
}

// LineTotal is the discounted price of the line.
func (it CartItem) LineTotal() int64 {
	return it.SalePrice * int64(it.Quantity)
}

// LineKey builds the identity of a (product, variation) line.
func LineKey(productID, variationID string) string {
	if variationID == "" {
		return productID
	}
	return productID + "/" + variationID
}

// Cart is a guest or user basket stored under the X-Cart-ID key.
type Cart struct {
	ID        string     `json:"id"`
	Items     []CartItem `json:"items"`
	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// FindItemIndex returns the index of the line for (productID, variationID), or -1.
func (c *Cart) FindItemIndex(productID, variationID string) int {
	key := LineKey(productID, variationID)
	for i := range c.Items {
		if c.Items[i].Key() == key {
			return i
		}
	}
	return -1
}

// RemoveAt deletes the line at i.
func (c *Cart) RemoveAt(i int) {
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
}

// Subtotal is the discounted sum of all lines.
func (c *Cart) Subtotal() int64 {
	var total int64
	for _, it := range c.Items {
		total += it.LineTotal()
	}
	return total
}

// ItemCount is the number of units across lines.
func (c *Cart) ItemCount() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Snapshot copies the current product display data into the line.
func (it *CartItem) Snapshot(p *Product, v *ProductVariation) {
	it.ProductName = p.Name
	it.ProductSlug = p.Slug
	it.Image = p.PrimaryImage()
	it.UnitPrice = p.UnitPrice(v)
	it.SalePrice = p.EffectiveUnitPrice(v)
	it.SKU = ""
	it.Attributes = nil
	if v != nil {
		it.SKU = v.SKU
		it.Attributes = v.AttributeMap()
	}
}
