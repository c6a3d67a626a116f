package domain

import "github.com/google/uuid"

// NewOrderItem snapshots a reconciled cart line into an order item and
// records how its stock is tracked.
func NewOrderItem(orderID string, line CartItem, p *Product) (OrderItem, error) {
	v, err := ResolveLine(p, line.VariationID)
	if err != nil {
		return OrderItem{}, err
	}

	item := OrderItem{
		ID:              uuid.NewString(),
		OrderID:         orderID,
		ProductID:       p.ID,
		ProductName:     p.Name,
		ProductSlug:     p.Slug,
		Quantity:        line.Quantity,
		UnitAmount:      p.UnitPrice(v),
		DiscountPercent: p.DiscountFor(v),
		FinalAmount:     p.EffectiveUnitPrice(v) * int64(line.Quantity),
		StockMode:       StockModeProduct,
	}
	if v != nil {
		id, sku := v.ID, v.SKU
		item.VariationID = &id
		item.SKU = &sku
		item.Attributes = v.AttributeMap()
		item.StockMode = StockModeVariation
	}

	switch {
	case p.UnlimitedStock:
		item.StockMode = StockModeUnlimited
	case p.IsWeightPooled():
		item.StockMode = StockModeWeight
		item.WeightGrams, _ = v.WeightGrams()
	}
	return item, nil
}
