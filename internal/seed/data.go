package seed

import (
	"github.com/alex-rublevsky/rublevsky-studio/internal/domain"
	"github.com/alex-rublevsky/rublevsky-studio/internal/service"
)

func ptr[T any](v T) *T { return &v }

var categories = []service.CategoryInput{
	{Name: "Tea", SortOrder: 1},
	{Name: "Stickers", SortOrder: 2},
	{Name: "Apparel", SortOrder: 3},
	{Name: "Posters", SortOrder: 4},
	{Name: "Produce", SortOrder: 5},
}

var brands = []service.BrandInput{
	{Name: "Rublevsky Studio", Description: ptr("Prints, stickers and clothing made in the studio.")},
	{Name: "Wuyi Mountain Growers", Description: ptr("Small rock-tea gardens in northern Fujian.")},
}

var teaCategories = []service.TeaCategoryInput{
	{Name: "Green"},
	{Name: "Oolong"},
	{Name: "Black"},
	{Name: "Pu-erh"},
	{Name: "White"},
}

func weightVariation(grams string, price int64, sortOrder int) service.VariationInput {
	return service.VariationInput{
		Price:      price,
		SortOrder:  sortOrder,
		Attributes: []service.AttributeInput{{Key: domain.AttrWeightG, Value: grams}},
	}
}

var products = []service.ProductInput{
	{
		Name:          "Da Hong Pao",
		Description:   "Heavily roasted rock oolong with notes of cocoa and stone fruit.",
		Price:         1200,
		HasVariations: true,
		Weight:        ptr(500),
		IsFeatured:    true,
		CategorySlug:  ptr("tea"),
		BrandSlug:     ptr("wuyi-mountain-growers"),
		TeaCategories: []string{"oolong"},
		ShippingFrom:  ptr("Vancouver, BC"),
		Variations: []service.VariationInput{
			weightVariation("25", 1200, 1),
			weightVariation("50", 2200, 2),
			weightVariation("100", 4000, 3),
		},
	},
	{
		Name:          "Spring Sencha",
		Description:   "Steamed first-flush green tea.",
		Price:         900,
		HasVariations: true,
		Weight:        ptr(300),
		CategorySlug:  ptr("tea"),
		TeaCategories: []string{"green"},
		Variations: []service.VariationInput{
			weightVariation("50", 900, 1),
			weightVariation("100", 1700, 2),
		},
	},
	{
		Name:         "Fox Sticker",
		Description:  "Matte vinyl sticker, 7 cm.",
		Price:        450,
		Stock:        40,
		CategorySlug: ptr("stickers"),
		BrandSlug:    ptr("rublevsky-studio"),
	},
	{
		Name:           "Postcard Set",
		Description:    "Six printed postcards, printed to order.",
		Price:          1500,
		UnlimitedStock: true,
		CategorySlug:   ptr("posters"),
		BrandSlug:      ptr("rublevsky-studio"),
	},
	{
		Name:          "Studio T-Shirt",
		Description:   "Heavyweight cotton tee with a screen-printed logo.",
		Price:         3500,
		HasVariations: true,
		CategorySlug:  ptr("apparel"),
		BrandSlug:     ptr("rublevsky-studio"),
		Variations: []service.VariationInput{
			{Price: 3500, Stock: 5, SortOrder: 1, Attributes: []service.AttributeInput{{Key: domain.AttrSize, Value: "S"}, {Key: domain.AttrColor, Value: "Black"}}},
			{Price: 3500, Stock: 8, SortOrder: 2, Attributes: []service.AttributeInput{{Key: domain.AttrSize, Value: "M"}, {Key: domain.AttrColor, Value: "Black"}}},
			{Price: 3500, Stock: 3, SortOrder: 3, Attributes: []service.AttributeInput{{Key: domain.AttrSize, Value: "L"}, {Key: domain.AttrColor, Value: "Black"}}},
		},
	},
	{
		Name:          "Mountain Poster",
		Description:   "Giclée print on cotton rag paper.",
		Price:         2500,
		HasVariations: true,
		CategorySlug:  ptr("posters"),
		BrandSlug:     ptr("rublevsky-studio"),
		Variations: []service.VariationInput{
			{Price: 2500, Stock: 10, SortOrder: 1, Attributes: []service.AttributeInput{{Key: domain.AttrSizeCM, Value: "30x40"}}},
			{Price: 4500, Stock: 4, SortOrder: 2, DiscountPercent: ptr(15), Attributes: []service.AttributeInput{{Key: domain.AttrSizeCM, Value: "50x70"}}},
		},
	},
	{
		Name:            "Wildflower Honey",
		Description:     "Raw honey from the Fraser Valley, 250 g jar.",
		Price:           1400,
		Stock:           12,
		OnSale:          true,
		DiscountPercent: ptr(10),
		CategorySlug:    ptr("produce"),
		ShippingFrom:    ptr("Abbotsford, BC"),
	},
}

var posts = []service.BlogPostInput{
	{
		Title:       "Brewing Da Hong Pao",
		Body:        "Rinse the leaves once, then steep 5 g in 100 ml of boiling water for 10 seconds, adding 5 seconds for every infusion after.",
		Excerpt:     ptr("A gongfu guide for roasted rock oolong."),
		ProductSlug: ptr("da-hong-pao"),
		IsPublished: true,
	},
	{
		Title: "Printing the mountain series",
		Body:  "Notes from the studio on paper, inks and proofs.",
	},
}
