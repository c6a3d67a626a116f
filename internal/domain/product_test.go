package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyDiscount_RoundsHalfUp(t *testing.T) {
	assert.Equal(t, int64(1000), ApplyDiscount(1000, nil))
	assert.Equal(t, int64(850), ApplyDiscount(1000, intPtr(15)))
	assert.Equal(t, int64(663), ApplyDiscount(1325, intPtr(50))) // 662.5
	assert.Equal(t, int64(0), ApplyDiscount(999, intPtr(100)))
	assert.Equal(t, int64(999), ApplyDiscount(999, intPtr(0)))
}

func TestEffectiveUnitPrice(t *testing.T) {
	p := poster()
	p.DiscountPercent = intPtr(20)
	v := p.Variation("a2")
	v.Price = 4000

	assert.Equal(t, int64(4000), p.EffectiveUnitPrice(v), "discount ignored unless on sale")

	p.OnSale = true
	assert.Equal(t, int64(3200), p.EffectiveUnitPrice(v))

	v.DiscountPercent = intPtr(50)
	assert.Equal(t, int64(2000), p.EffectiveUnitPrice(v), "variation discount wins")

	assert.Equal(t, int64(2500), p.UnitPrice(p.Variation("a3")), "zero variation price inherits product price")
}

func TestIsWeightPooled(t *testing.T) {
	assert.True(t, sencha().IsWeightPooled())

	noVariations := sencha()
	noVariations.HasVariations = false
	assert.False(t, noVariations.IsWeightPooled())

	zero := sencha()
	*zero.Weight = 0
	assert.False(t, zero.IsWeightPooled())
}

func TestGenerateSKU(t *testing.T) {
	attrs := []VariationAttribute{
		{Key: AttrSizeCM, Value: "8x8"},
		{Key: AttrColor, Value: "Forest Green"},
	}
	assert.Equal(t, "HOLO-STICKER-FOREST-GREEN-8X8", GenerateSKU("holo-sticker", attrs))
	assert.Equal(t, "SENCHA", GenerateSKU("sencha", nil))
}

func TestValidateAttributes(t *testing.T) {
	assert.NoError(t, ValidateAttributes([]VariationAttribute{{Key: AttrWeightG, Value: "50"}, {Key: AttrMaterial, Value: "vinyl"}}))
	assert.Error(t, ValidateAttributes([]VariationAttribute{{Key: "FLAVOUR", Value: "x"}}))
	assert.Error(t, ValidateAttributes([]VariationAttribute{{Key: AttrColor, Value: "red"}, {Key: AttrColor, Value: "blue"}}))
	assert.Error(t, ValidateAttributes([]VariationAttribute{{Key: AttrWeightG, Value: "-5"}}))
	assert.Error(t, ValidateAttributes([]VariationAttribute{{Key: AttrWeightG, Value: "fifty"}}))
}

func TestProductValidate(t *testing.T) {
	assert.NoError(t, sencha().Validate())
	assert.NoError(t, poster().Validate())

	dupAttrs := poster()
	dupAttrs.Variations[1].Attributes = dupAttrs.Variations[0].Attributes
	assert.Error(t, dupAttrs.Validate())

	pooledNoWeight := sencha()
	pooledNoWeight.Variations[0].Attributes = []VariationAttribute{{Key: AttrColor, Value: "green"}}
	assert.Error(t, pooledNoWeight.Validate())

	simpleWithVariations := poster()
	simpleWithVariations.HasVariations = false
	assert.Error(t, simpleWithVariations.Validate())

	badDiscount := sticker()
	badDiscount.DiscountPercent = intPtr(120)
	assert.Error(t, badDiscount.Validate())
}

func TestAttributeDisplay(t *testing.T) {
	assert.Equal(t, "50 g", VariationAttribute{Key: AttrWeightG, Value: "50"}.Display())
	assert.Equal(t, "Red", VariationAttribute{Key: AttrColor, Value: "Red"}.Display())
	assert.Len(t, AttributeDefinitions(), 6)
}
