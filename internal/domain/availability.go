package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Unlimited is returned by Available for products that do not track stock.
const Unlimited = math.MaxInt32

// Reasons a line cannot be (fully) satisfied. Match with errors.Is.
var (
	ErrProductInactive     = errors.New("product is not available")
	ErrVariationRequired   = errors.New("product requires a variation")
	ErrVariationNotAllowed = errors.New("product has no variations")
	ErrVariationNotFound   = errors.New("variation does not belong to product")
	ErrNoVariations        = errors.New("product has no purchasable variations")
	ErrMissingWeight       = errors.New("variation has no weight in a weight-pooled product")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrWeightExceeded      = errors.New("weight pool exceeded")
	ErrInvalidQuantity     = errors.New("invalid quantity")
	ErrCartFull            = errors.New("cart is full")
)

// StockError reports a shortfall for one line.
type StockError struct {
	Reason      error
	ProductID   string
	VariationID string
	Requested   int
	Available   int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("%v: product %s variation %q requested %d, available %d",
		e.Reason, e.ProductID, e.VariationID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error {
	return e.Reason
}

// ResolveLine checks that (p, variationID) names a purchasable line and
// returns the variation, nil for products without variations.
func ResolveLine(p *Product, variationID string) (*ProductVariation, error) {
	if !p.IsActive {
		return nil, ErrProductInactive
	}
	if !p.HasVariations {
		if variationID != "" {
			return nil, ErrVariationNotAllowed
		}
		return nil, nil
	}
	if len(p.Variations) == 0 {
		return nil, ErrNoVariations
	}
	if variationID == "" {
		return nil, ErrVariationRequired
	}
	v := p.Variation(variationID)
	if v == nil {
		return nil, ErrVariationNotFound
	}
	if p.IsWeightPooled() {
		if _, ok := v.WeightGrams(); !ok {
			return nil, ErrMissingWeight
		}
	}
	return v, nil
}

// Reserved sums the quantities of lines for (productID, variationID),
// skipping the line keyed exclude.
func Reserved(productID, variationID string, lines []CartItem, exclude string) int {
	key := LineKey(productID, variationID)
	n := 0
	for _, it := range lines {
		if it.Key() == key && it.Key() != exclude {
			n += it.Quantity
		}
	}
	return n
}

// ReservedWeight sums weight(v) × quantity over p's lines, skipping the
// line keyed exclude. Lines whose variation is unknown or weightless count
// as zero.
func ReservedWeight(p *Product, lines []CartItem, exclude string) int {
	grams := 0
	for _, it := range lines {
		if it.ProductID != p.ID || it.Key() == exclude {
			continue
		}
		v := p.Variation(it.VariationID)
		if v == nil {
			continue
		}
		if w, ok := v.WeightGrams(); ok {
			grams += w * it.Quantity
		}
	}
	return grams
}

// Available returns how many more units of (p, variationID) fit given the
// lines already in the cart, excluding the line keyed exclude.
//
//   - unlimited stock: Unlimited
//   - weight-pooled:   floor((p.weight − reservedWeight) / weight(v))
//   - variation:       v.stock − reserved(p, v)
//   - plain product:   p.stock − reserved(p)
//
// Results are clamped at zero.
func Available(p *Product, variationID string, lines []CartItem, exclude string) (int, error) {
	v, err := ResolveLine(p, variationID)
	if err != nil {
		return 0, err
	}
	if p.UnlimitedStock {
		return Unlimited, nil
	}

	var avail int
	switch {
	case p.IsWeightPooled():
		w, _ := v.WeightGrams()
		avail = (*p.Weight - ReservedWeight(p, lines, exclude)) / w
	case v != nil:
		avail = v.Stock - Reserved(p.ID, v.ID, lines, exclude)
	default:
		avail = p.Stock - Reserved(p.ID, "", lines, exclude)
	}
	return max(avail, 0), nil
}

// CheckQuantity verifies that the line (p, variationID) can hold qty units
// alongside the other lines in the cart.
func CheckQuantity(p *Product, variationID string, qty int, lines []CartItem) error {
	if qty < 1 || qty > MaxQuantityPerItem {
		return fmt.Errorf("%w: must be between 1 and %d", ErrInvalidQuantity, MaxQuantityPerItem)
	}
	avail, err := Available(p, variationID, lines, LineKey(p.ID, variationID))
	if err != nil {
		return err
	}
	if qty <= avail {
		return nil
	}
	reason := ErrInsufficientStock
	if p.IsWeightPooled() {
		reason = ErrWeightExceeded
	}
	return &StockError{Reason: reason, ProductID: p.ID, VariationID: variationID, Requested: qty, Available: avail}
}

// Adjustment kinds produced by Reconcile.
const (
	AdjustmentRemoved         = "removed"
	AdjustmentQuantityReduced = "quantity_reduced"
	AdjustmentPriceChanged    = "price_changed"
)

// Adjustment describes one change Reconcile made to a cart line.
type Adjustment struct {
	ProductID   string `json:"product_id"`
	VariationID string `json:"variation_id,omitempty"`
	ProductName string `json:"product_name,omitempty"`
	Kind        string `json:"kind"`
	Reason      string `json:"reason,omitempty"`
	OldQuantity int    `json:"old_quantity,omitempty"`
	NewQuantity int    `json:"new_quantity,omitempty"`
	OldPrice    int64  `json:"old_price,omitempty"`
	NewPrice    int64  `json:"new_price,omitempty"`
}

// Reconcile re-validates lines against current products. Lines are taken in
// AddedAt order so that older lines keep their claim on shared stock; each
// line is clamped to what remains after the lines accepted before it. Lines
// whose product vanished or is no longer purchasable are dropped. Snapshots
// are refreshed and price changes reported.
func Reconcile(items []CartItem, products map[string]*Product) ([]CartItem, []Adjustment) {
	ordered := make([]CartItem, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].AddedAt.Before(ordered[j].AddedAt) })

	kept := make([]CartItem, 0, len(ordered))
	var adjustments []Adjustment

	for _, it := range ordered {
		adj := Adjustment{ProductID: it.ProductID, VariationID: it.VariationID, ProductName: it.ProductName, OldQuantity: it.Quantity}

		p, ok := products[it.ProductID]
		if !ok {
			adj.Kind, adj.Reason = AdjustmentRemoved, "product no longer exists"
			adjustments = append(adjustments, adj)
			continue
		}
		avail, err := Available(p, it.VariationID, kept, "")
		if err != nil {
			adj.Kind, adj.Reason = AdjustmentRemoved, err.Error()
			adjustments = append(adjustments, adj)
			continue
		}
		avail = min(avail, MaxQuantityPerItem)
		if avail == 0 {
			adj.Kind, adj.Reason = AdjustmentRemoved, "out of stock"
			adjustments = append(adjustments, adj)
			continue
		}

		if it.Quantity > avail {
			adj.Kind, adj.NewQuantity = AdjustmentQuantityReduced, avail
			adj.Reason = fmt.Sprintf("only %d available", avail)
			adjustments = append(adjustments, adj)
			it.Quantity = avail
		}

		oldPrice := it.SalePrice
		it.Snapshot(p, p.Variation(it.VariationID))
		if oldPrice != 0 && oldPrice != it.SalePrice {
			adjustments = append(adjustments, Adjustment{
				ProductID:   it.ProductID,
				VariationID: it.VariationID,
				ProductName: it.ProductName,
				Kind:        AdjustmentPriceChanged,
				OldPrice:    oldPrice,
				NewPrice:    it.SalePrice,
			})
		}
		kept = append(kept, it)
	}
	return kept, adjustments
}

// WeightWithinPool reports whether the lines of p in the cart respect the
// weight pool. Always true for products that are not weight-pooled.
func WeightWithinPool(p *Product, lines []CartItem) bool {
	if !p.IsWeightPooled() || p.UnlimitedStock {
		return true
	}
	return ReservedWeight(p, lines, "") <= *p.Weight
}
