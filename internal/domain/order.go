package domain

import (
	"time"

	apperrors "github.com/alex-rublevsky/rublevsky-studio/pkg/errors"
)

// Order status values.
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

var orderTransitions = map[string][]string{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

// IsValidOrderStatus reports whether s is a known status.
func IsValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Address types.
const (
	AddressShipping = "shipping"
	AddressBilling  = "billing"
	AddressBoth     = "both"
)

// Address is a postal address attached to an order.
type Address struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	AddressType string `json:"address_type"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	Street      string `json:"street"`
	City        string `json:"city"`
	State       string `json:"state,omitempty"`
	Zip         string `json:"zip"`
	Country     string `json:"country"`
}

// Stock modes recorded on order items so a cancellation can give back
// exactly what checkout took.
const (
	StockModeUnlimited = "unlimited"
	StockModeProduct   = "product"
	StockModeVariation = "variation"
	StockModeWeight    = "weight"
)

// OrderItem is a snapshot of a product line at purchase time.
type OrderItem struct {
	ID              string            `json:"id"`
	OrderID         string            `json:"order_id"`
	ProductID       string            `json:"product_id"`
	VariationID     *string           `json:"variation_id,omitempty"`
	ProductName     string            `json:"product_name"`
	ProductSlug     string            `json:"product_slug"`
	SKU             *string           `json:"sku,omitempty"`
	Quantity        int               `json:"quantity"`
	UnitAmount      int64             `json:"unit_amount"`
	DiscountPercent *int              `json:"discount_percent,omitempty"`
	FinalAmount     int64             `json:"final_amount"`
	Attributes      map[string]string `json:"attributes,omitempty"`
	StockMode       string            `json:"stock_mode"`
	WeightGrams     int               `json:"weight_grams,omitempty"`
}

// StockChange is the amount one order item takes from (or returns to) stock.
type StockChange struct {
	ProductID   string
	VariationID string
	Mode        string
	Units       int // pieces for product/variation modes, grams for weight mode
}

// StockChange returns the stock movement for the item, false when the item
// does not track stock.
func (it OrderItem) StockChange() (StockChange, bool) {
	c := StockChange{ProductID: it.ProductID, Mode: it.StockMode}
	switch it.StockMode {
	case StockModeProduct:
		c.Units = it.Quantity
	case StockModeVariation:
		if it.VariationID == nil {
			return c, false
		}
		c.VariationID = *it.VariationID
		c.Units = it.Quantity
	case StockModeWeight:
		c.Units = it.Quantity * it.WeightGrams
	default:
		return c, false
	}
	return c, true
}

// Order is a placed checkout.
type Order struct {
	ID             string      `json:"id"`
	UserID         *string     `json:"user_id,omitempty"`
	Status         string      `json:"status"`
	SubtotalAmount int64       `json:"subtotal_amount"`
	DiscountAmount int64       `json:"discount_amount"`
	ShippingAmount int64       `json:"shipping_amount"`
	TotalAmount    int64       `json:"total_amount"`
	Currency       string      `json:"currency"`
	Notes          *string     `json:"notes,omitempty"`
	ShippingMethod *string     `json:"shipping_method,omitempty"`
	CustomerEmail  string      `json:"customer_email"`
	CustomerName   string      `json:"customer_name"`
	Items          []OrderItem `json:"items"`
	Addresses      []Address   `json:"addresses"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// ShippingAddress returns the shipping (or combined) address.
func (o *Order) ShippingAddress() *Address {
	for i := range o.Addresses {
		if t := o.Addresses[i].AddressType; t == AddressShipping || t == AddressBoth {
			return &o.Addresses[i]
		}
	}
	return nil
}

// StockChanges collects the stock movements of every item.
func (o *Order) StockChanges() []StockChange {
	changes := make([]StockChange, 0, len(o.Items))
	for _, it := range o.Items {
		if c, ok := it.StockChange(); ok {
			changes = append(changes, c)
		}
	}
	return changes
}

// ShippingPolicy prices delivery: a flat rate, waived at or above
// FreeThreshold when the threshold is positive.
type ShippingPolicy struct {
	FlatRate      int64
	FreeThreshold int64
}

// Cost returns the shipping charge for a discounted subtotal.
func (s ShippingPolicy) Cost(goods int64) int64 {
	if s.FreeThreshold > 0 && goods >= s.FreeThreshold {
		return 0
	}
	return s.FlatRate
}

// ApplyTotals computes subtotal, discount, shipping and total from Items.
func (o *Order) ApplyTotals(policy ShippingPolicy) {
	var subtotal, final int64
	for _, it := range o.Items {
		subtotal += it.UnitAmount * int64(it.Quantity)
		final += it.FinalAmount
	}
	o.SubtotalAmount = subtotal
	o.DiscountAmount = subtotal - final
	o.ShippingAmount = policy.Cost(final)
	o.TotalAmount = final + o.ShippingAmount
}

// ValidateAddresses requires one shipping address plus either one billing
// address or a single address of type "both".
func ValidateAddresses(addrs []Address) error {
	counts := map[string]int{}
	for _, a := range addrs {
		switch a.AddressType {
		case AddressShipping, AddressBilling, AddressBoth:
			counts[a.AddressType]++
		default:
			return apperrors.InvalidInput("unknown address_type " + a.AddressType)
		}
	}
	switch {
	case counts[AddressBoth] == 1 && len(addrs) == 1:
		return nil
	case counts[AddressShipping] == 1 && counts[AddressBilling] == 1 && len(addrs) == 2:
		return nil
	}
	return apperrors.InvalidInput("an order needs one shipping and one billing address, or a single address of type both")
}
