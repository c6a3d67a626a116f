package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/alex-rublevsky/rublevsky-studio/internal/domain"
	apperrors "github.com/alex-rublevsky/rublevsky-studio/pkg/errors"
)

func newTestCartService(carts *memoryCartRepository, products *mockProductRepository) *CartService {
	svc := NewCartService(carts, products, newTestLogger(), time.Hour)
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	svc.now = func() time.Time {
		n++
		return t0.Add(time.Duration(n) * time.Second)
	}
	return svc
}

func assertConflictCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
}

// --- GetCart ---

func TestGetCart_Missing(t *testing.T) {
	svc := newTestCartService(newMemoryCartRepository(), new(mockProductRepository))

	cart, err := svc.GetCart(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Equal(t, "c-1", cart.ID)
	assert.Empty(t, cart.Items)
	assert.NotNil(t, cart.Items)
	assert.Equal(t, int64(0), cart.Version)
}

// --- AddItem ---

func TestAddItem_NewLineAndMerge(t *testing.T) {
	carts := newMemoryCartRepository()
	products := new(mockProductRepository)
	svc := newTestCartService(carts, products)
	ctx := context.Background()

	products.On("GetByID", ctx, "p-1").Return(plainProduct("p-1", 5), nil)

	cart, err := svc.AddItem(ctx, "c-1", &AddItemInput{ProductID: "p-1", Quantity: 2})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "Fox Sticker", cart.Items[0].ProductName)
	assert.Equal(t, int64(450), cart.Items[0].SalePrice)
	assert.Equal(t, int64(1), cart.Version)

	cart, err = svc.AddItem(ctx, "c-1", &AddItemInput{ProductID: "p-1", Quantity: 3})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.Equal(t, int64(2), cart.Version)
}

func TestAddItem_InsufficientStock(t *testing.T) {
	carts := newMemoryCartRepository()
	products := new(mockProductRepository)
	svc := newTestCartService(carts, products)
	ctx := context.Background()

	products.On("GetByID", ctx, "p-1").Return(plainProduct("p-1", 3), nil)

	_, err := svc.AddItem(ctx, "c-1", &AddItemInput{ProductID: "p-1", Quantity: 2})
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, "c-1", &AddItemInput{ProductID: "p-1", Quantity: 2})
	assertConflictCode(t, err, "INSUFFICIENT_STOCK")

	cart, err := svc.GetCart(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, 2, cart.Items[0].Quantity)
}

func TestAddItem_UnlimitedStockBypassesChecks(t *testing.T) {
	carts := newMemoryCartRepository()
	products := new(mockProductRepository)
	svc := newTestCartService(carts, products)
	ctx := context.Background()

	p := plainProduct("p-1", 0)
	p.UnlimitedStock = true
	products.On("GetByID", ctx, "p-1").Return(p, nil)

	cart, err := svc.AddItem(ctx, "c-1", &AddItemInput{ProductID: "p-1", Quantity: 99})
	require.NoError(t, err)
	assert.Equal(t, 99, cart.Items[0].Quantity)
}

func TestAddItem_WeightPool(t *testing.T) {
	carts := newMemoryCartRepository()
	products := new(mockProductRepository)
	svc := newTestCartService(carts, products)
	ctx := context.Background()

	products.On("GetByID", ctx, "tea").Return(pooledTea("tea", 250), nil)

	// 2 × 100 g = 200 g of a 250 g pool.
	_, err := svc.AddItem(ctx, "c-1", &AddItemInput{ProductID: "tea", VariationID: "v-100", Quantity: 2})
	require.NoError(t, err)

	// 2 × 25 g fits exactly.
	_, err = svc.AddItem(ctx, "c-1", &AddItemInput{ProductID: "tea", VariationID: "v-25", Quantity: 2})
	require.NoError(t, err)

	// Nothing is left for another 25 g pack.
	_, err = svc.AddItem(ctx, "c-1", &AddItemInput{ProductID: "tea", VariationID: "v-25", Quantity: 1})
	assertConflictCode(t, err, "WEIGHT_EXCEEDED")

	cart, err := svc.GetCart(ctx, "c-1")
	require.NoError(t, err)
	grams := 0
	for _, it := range cart.Items {
		v := pooledTea("tea", 250).Variation(it.VariationID)
		w, _ := v.WeightGrams()
		grams += w * it.Quantity
	}
	assert.LessOrEqual(t, grams, 250)
}

func TestAddItem_LineRules(t *testing.T) {
	ctx := context.Background()

	noVariations := pooledTea("empty", 100)
	noVariations.Variations = nil
	inactive := plainProduct("off", 5)
	inactive.IsActive = false

	tests := []struct {
		name    string
		product *domain.Product
		input   AddItemInput
		is      error
	}{
		{"variation required", pooledTea("tea", 500), AddItemInput{ProductID: "tea", Quantity: 1}, apperrors.ErrInvalidInput},
		{"variation of another product", pooledTea("tea", 500), AddItemInput{ProductID: "tea", VariationID: "v-x", Quantity: 1}, apperrors.ErrInvalidInput},
		{"variation on plain product", plainProduct("p-1", 5), AddItemInput{ProductID: "p-1", VariationID: "v-25", Quantity: 1}, apperrors.ErrInvalidInput},
		{"has_variations without variations", noVariations, AddItemInput{ProductID: "empty", Quantity: 1}, apperrors.ErrInvalidInput},
		{"quantity over limit", plainProduct("p-1", 500), AddItemInput{ProductID: "p-1", Quantity: 100}, apperrors.ErrInvalidInput},
		{"inactive product", inactive, AddItemInput{ProductID: "off", Quantity: 1}, apperrors.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products := new(mockProductRepository)
			svc := newTestCartService(newMemoryCartRepository(), products)
			products.On("GetByID", ctx, tt.input.ProductID).Return(tt.product, nil)

			input := tt.input
			_, err := svc.AddItem(ctx, "c-1", &input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.is), "got %v", err)
		})
	}
}

func TestAddItem_CartFull(t *testing.T) {
	carts := newMemoryCartRepository()
	products := new(mockProductRepository)
	svc := newTestCartService(carts, products)
	ctx := context.Background()

	items := make([]domain.CartItem, domain.MaxItemsPerCart)
	for i := range items {
		items[i] = domain.CartItem{ProductID: string(rune('A'+i%26)) + string(rune('a'+i/26)), Quantity: 1}
	}
	carts.put(domain.Cart{ID: "c-1", Items: items, Version: 4})
	products.On("GetByID", ctx, "p-1").Return(plainProduct("p-1", 5), nil)

	_, err := svc.AddItem(ctx, "c-1", &AddItemInput{ProductID: "p-1", Quantity: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestAddItem_ProductNotFound(t *testing.T) {
	products := new(mockProductRepository)
	svc := newTestCartService(newMemoryCartRepository(), products)
	ctx := context.Background()

	products.On("GetByID", ctx, "nope").Return(nil, apperrors.NotFound("product", "nope"))

	_, err := svc.AddItem(ctx, "c-1", &AddItemInput{ProductID: "nope", Quantity: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestAddItem_RetriesOnVersionConflict(t *testing.T) {
	carts := newMemoryCartRepository()
	carts.conflicts = 2
	products := new(mockProductRepository)
	svc := newTestCartService(carts, products)
	ctx := context.Background()

	products.On("GetByID", ctx, "p-1").Return(plainProduct("p-1", 5), nil)

	cart, err := svc.AddItem(ctx, "c-1", &AddItemInput{ProductID: "p-1", Quantity: 1})
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
	assert.Equal(t, 1, carts.saves)
}

func TestAddItem_GivesUpAfterRepeatedConflicts(t *testing.T) {
	carts := newMemoryCartRepository()
	carts.conflicts = maxSaveAttempts
	products := new(mockProductRepository)
	svc := newTestCartService(carts, products)
	ctx := context.Background()

	products.On("GetByID", ctx, "p-1").Return(plainProduct("p-1", 5), nil)

	_, err := svc.AddItem(ctx, "c-1", &AddItemInput{ProductID: "p-1", Quantity: 1})
	assertConflictCode(t, err, "CART_CONFLICT")
}

// --- UpdateItemQuantity ---

func TestUpdateItemQuantity_ExcludesOwnReservation(t *testing.T) {
	carts := newMemoryCartRepository()
	products := new(mockProductRepository)
	svc := newTestCartService(carts, products)
	ctx := context.Background()

	products.On("GetByID", ctx, "p-1").Return(plainProduct("p-1", 5), nil)

	_, err := svc.AddItem(ctx, "c-1", &AddItemInput{ProductID: "p-1", Quantity: 4})
	require.NoError(t, err)

	cart, err := svc.UpdateItemQuantity(ctx, "c-1", "p-1", "", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, cart.Items[0].Quantity)

	_, err = svc.UpdateItemQuantity(ctx, "c-1", "p-1", "", 6)
	assertConflictCode(t, err, "INSUFFICIENT_STOCK")
}

func TestUpdateItemQuantity_WeightPoolCountsOtherLines(t *testing.T) {
	carts := newMemoryCartRepository()
	products := new(mockProductRepository)
	svc := newTestCartService(carts, products)
	ctx := context.Background()

	products.On("GetByID", ctx, "tea").Return(pooledTea("tea", 300), nil)

	_, err := svc.AddItem(ctx, "c-1", &AddItemInput{ProductID: "tea", VariationID: "v-100", Quantity: 2})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "c-1", &AddItemInput{ProductID: "tea", VariationID: "v-25", Quantity: 1})
	require.NoError(t, err)

	// 200 g is held by the 100 g line, so the 25 g line may grow to 4.
	_, err = svc.UpdateItemQuantity(ctx, "c-1", "tea", "v-25", 4)
	require.NoError(t, err)
	_, err = svc.UpdateItemQuantity(ctx, "c-1", "tea", "v-25", 5)
	assertConflictCode(t, err, "WEIGHT_EXCEEDED")
}

func TestUpdateItemQuantity_ZeroRemoves(t *testing.T) {
	carts := newMemoryCartRepository()
	products := new(mockProductRepository)
	svc := newTestCartService(carts, products)
	ctx := context.Background()

	products.On("GetByID", ctx, "p-1").Return(plainProduct("p-1", 5), nil)
	_, err := svc.AddItem(ctx, "c-1", &AddItemInput{ProductID: "p-1", Quantity: 1})
	require.NoError(t, err)

	cart, err := svc.UpdateItemQuantity(ctx, "c-1", "p-1", "", 0)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestUpdateItemQuantity_MissingLine(t *testing.T) {
	products := new(mockProductRepository)
	svc := newTestCartService(newMemoryCartRepository(), products)
	ctx := context.Background()

	products.On("GetByID", ctx, "p-1").Return(plainProduct("p-1", 5), nil)

	_, err := svc.UpdateItemQuantity(ctx, "c-1", "p-1", "", 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

// --- RemoveItem / ClearCart ---

func TestRemoveItem(t *testing.T) {
	carts := newMemoryCartRepository()
	svc := newTestCartService(carts, new(mockProductRepository))
	ctx := context.Background()

	carts.put(domain.Cart{ID: "c-1", Version: 1, Items: []domain.CartItem{
		{ProductID: "p-1", Quantity: 1},
		{ProductID: "tea", VariationID: "v-25", Quantity: 2},
	}})

	cart, err := svc.RemoveItem(ctx, "c-1", "tea", "v-25")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "p-1", cart.Items[0].ProductID)

	_, err = svc.RemoveItem(ctx, "c-1", "tea", "v-25")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestClearCart(t *testing.T) {
	carts := newMemoryCartRepository()
	svc := newTestCartService(carts, new(mockProductRepository))
	ctx := context.Background()

	carts.put(domain.Cart{ID: "c-1", Version: 1, Items: []domain.CartItem{{ProductID: "p-1", Quantity: 1}}})

	require.NoError(t, svc.ClearCart(ctx, "c-1"))
	cart, err := svc.GetCart(ctx, "c-1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

// --- Reconcile ---

func TestReconcile_ClampsInAddedOrder(t *testing.T) {
	carts := newMemoryCartRepository()
	products := new(mockProductRepository)
	svc := newTestCartService(carts, products)
	ctx := context.Background()

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	carts.put(domain.Cart{ID: "c-1", Version: 3, Items: []domain.CartItem{
		{ProductID: "tea", VariationID: "v-25", Quantity: 4, AddedAt: t0.Add(time.Minute), SalePrice: 1200},
		{ProductID: "tea", VariationID: "v-100", Quantity: 2, AddedAt: t0, SalePrice: 4000},
		{ProductID: "gone", Quantity: 1, AddedAt: t0, SalePrice: 100},
	}})

	// The pool shrank to 250 g: the older 100 g line keeps 200 g, leaving
	// room for two 25 g packs.
	products.On("GetByIDs", ctx, []string{"tea", "gone"}).
		Return(map[string]*domain.Product{"tea": pooledTea("tea", 250)}, nil)

	cart, adjustments, err := svc.Reconcile(ctx, "c-1")
	require.NoError(t, err)

	require.Len(t, cart.Items, 2)
	assert.Equal(t, "v-100", cart.Items[0].VariationID)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, "v-25", cart.Items[1].VariationID)
	assert.Equal(t, 2, cart.Items[1].Quantity)

	kinds := map[string]int{}
	for _, a := range adjustments {
		kinds[a.Kind]++
	}
	assert.Equal(t, 1, kinds[domain.AdjustmentRemoved])
	assert.Equal(t, 1, kinds[domain.AdjustmentQuantityReduced])

	stored, err := carts.Get(ctx, "c-1")
	require.NoError(t, err)
	assert.Len(t, stored.Items, 2)
	assert.Equal(t, int64(4), stored.Version)
}

func TestReconcile_EmptyCart(t *testing.T) {
	products := new(mockProductRepository)
	svc := newTestCartService(newMemoryCartRepository(), products)

	cart, adjustments, err := svc.Reconcile(context.Background(), "c-1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	assert.Empty(t, adjustments)
	products.AssertNotCalled(t, "GetByIDs", mock.Anything, mock.Anything)
}
