package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alex-rublevsky/rublevsky-studio/internal/domain"
	"github.com/alex-rublevsky/rublevsky-studio/internal/repository"
	apperrors "github.com/alex-rublevsky/rublevsky-studio/pkg/errors"
)

var orderCols = []string{
	"id", "user_id", "status", "subtotal_amount", "discount_amount", "shipping_amount",
	"total_amount", "currency", "notes", "shipping_method", "customer_email", "customer_name",
	"created_at", "updated_at",
}

var orderItemCols = []string{
	"id", "order_id", "product_id", "variation_id", "product_name", "product_slug", "sku",
	"quantity", "unit_amount", "discount_percent", "final_amount", "attributes", "stock_mode", "weight_grams",
}

var addressCols = []string{
	"id", "order_id", "address_type", "first_name", "last_name", "email", "phone",
	"street", "city", "state", "zip", "country",
}

func sampleOrder() *domain.Order {
	return &domain.Order{
		ID:             "order-1",
		Status:         domain.OrderStatusPending,
		SubtotalAmount: 7400,
		DiscountAmount: 0,
		ShippingAmount: 800,
		TotalAmount:    8200,
		Currency:       "CAD",
		Notes:          strPtr("gift wrap please"),
		ShippingMethod: strPtr("canada_post"),
		CustomerEmail:  "ada@example.com",
		CustomerName:   "Ada Lovelace",
		CreatedAt:      now,
		UpdatedAt:      now,
		Items: []domain.OrderItem{
			{
				ID: "item-1", OrderID: "order-1", ProductID: "prod-1", VariationID: strPtr("var-100"),
				ProductName: "Sencha", ProductSlug: "sencha", SKU: strPtr("SENCHA-100"),
				Quantity: 2, UnitAmount: 1800, FinalAmount: 3600,
				Attributes: map[string]string{domain.AttrWeightG: "100"},
				StockMode:  domain.StockModeWeight, WeightGrams: 100,
			},
			{
				ID: "item-2", OrderID: "order-1", ProductID: "prod-2",
				ProductName: "Sticker", ProductSlug: "sticker",
				Quantity: 3, UnitAmount: 300, FinalAmount: 900,
				StockMode: domain.StockModeProduct,
			},
			{
				ID: "item-3", OrderID: "order-1", ProductID: "prod-3", VariationID: strPtr("var-a3"),
				ProductName: "Poster", ProductSlug: "poster", SKU: strPtr("POSTER-A3"),
				Quantity: 1, UnitAmount: 2900, FinalAmount: 2900,
				Attributes: map[string]string{domain.AttrSize: "A3"},
				StockMode:  domain.StockModeVariation,
			},
		},
		Addresses: []domain.Address{
			{
				ID: "addr-1", OrderID: "order-1", AddressType: domain.AddressBoth,
				FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com",
				Street: "1 Analytical Way", City: "Toronto", State: "ON", Zip: "M5V 1A1", Country: "CA",
			},
		},
	}
}

func itemArgs(t *testing.T, it domain.OrderItem) []any {
	t.Helper()
	attrs := []byte("{}")
	if it.Attributes != nil {
		var err error
		attrs, err = json.Marshal(it.Attributes)
		require.NoError(t, err)
	}
	return []any{
		it.ID, it.OrderID, it.ProductID, it.VariationID, it.ProductName, it.ProductSlug, it.SKU,
		it.Quantity, it.UnitAmount, it.DiscountPercent, it.FinalAmount, attrs, it.StockMode, it.WeightGrams,
	}
}

func expectLock(mock pgxmock.PgxPoolIface, ids ...string) {
	rows := pgxmock.NewRows([]string{"id"})
	for _, id := range ids {
		rows.AddRow(id)
	}
	mock.ExpectQuery("SELECT id FROM products WHERE id = ANY.+FOR UPDATE").WithArgs(ids).WillReturnRows(rows)
}

// --- Create ---

func TestOrderRepository_Create_TakesStockAndInserts(t *testing.T) {
	mock := newMock(t)
	repo := NewOrderRepository(mock)
	o := sampleOrder()

	mock.ExpectBegin()
	expectLock(mock, "prod-1", "prod-2", "prod-3")
	mock.ExpectExec("UPDATE products SET weight = weight -").WithArgs("prod-1", 200).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE products SET stock = stock -").WithArgs("prod-2", 3).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE product_variations SET stock = stock -").WithArgs("prod-3", "var-a3", 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO orders").
		WithArgs(o.ID, o.UserID, o.Status, o.SubtotalAmount, o.DiscountAmount, o.ShippingAmount,
			o.TotalAmount, o.Currency, o.Notes, o.ShippingMethod, o.CustomerEmail, o.CustomerName,
			o.CreatedAt, o.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	for _, it := range o.Items {
		mock.ExpectExec("INSERT INTO order_items").WithArgs(itemArgs(t, it)...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	a := o.Addresses[0]
	mock.ExpectExec("INSERT INTO addresses").
		WithArgs(a.ID, a.OrderID, a.AddressType, a.FirstName, a.LastName, a.Email, a.Phone,
			a.Street, a.City, a.State, a.Zip, a.Country).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), o))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_Create_MergesLinesOfOnePool(t *testing.T) {
	mock := newMock(t)
	repo := NewOrderRepository(mock)
	o := sampleOrder()
	o.Items = []domain.OrderItem{o.Items[0], o.Items[0]}
	o.Items[1].ID = "item-1b"
	o.Items[1].VariationID = strPtr("var-50")
	o.Items[1].WeightGrams = 50
	o.Addresses = nil

	mock.ExpectBegin()
	expectLock(mock, "prod-1")
	// 2×100 g + 2×50 g in a single conditional update.
	mock.ExpectExec("UPDATE products SET weight = weight -").WithArgs("prod-1", 300).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO orders").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO order_items").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO order_items").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), o))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_Create_WeightExhausted(t *testing.T) {
	mock := newMock(t)
	repo := NewOrderRepository(mock)
	o := sampleOrder()
	o.Items = o.Items[:1]

	mock.ExpectBegin()
	expectLock(mock, "prod-1")
	mock.ExpectExec("UPDATE products SET weight = weight -").WithArgs("prod-1", 200).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), o)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "WEIGHT_EXCEEDED", appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_Create_ProductVanished(t *testing.T) {
	mock := newMock(t)
	repo := NewOrderRepository(mock)
	o := sampleOrder()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM products").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("prod-1").AddRow("prod-3"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), o)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "CART_CHANGED", appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_Create_UnlimitedTakesNothing(t *testing.T) {
	mock := newMock(t)
	repo := NewOrderRepository(mock)
	o := sampleOrder()
	o.Items = o.Items[1:2]
	o.Items[0].StockMode = domain.StockModeUnlimited
	o.Addresses = nil

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO order_items").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), o))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- Read ---

func TestOrderRepository_GetByID(t *testing.T) {
	mock := newMock(t)
	repo := NewOrderRepository(mock)
	o := sampleOrder()

	mock.ExpectQuery("SELECT .+ FROM orders WHERE id").WithArgs(o.ID).
		WillReturnRows(pgxmock.NewRows(orderCols).AddRow(
			o.ID, o.UserID, o.Status, o.SubtotalAmount, o.DiscountAmount, o.ShippingAmount,
			o.TotalAmount, o.Currency, o.Notes, o.ShippingMethod, o.CustomerEmail, o.CustomerName,
			o.CreatedAt, o.UpdatedAt,
		))
	items := pgxmock.NewRows(orderItemCols)
	for _, it := range o.Items {
		items.AddRow(itemArgs(t, it)...)
	}
	mock.ExpectQuery("FROM order_items").WithArgs(o.ID).WillReturnRows(items)
	a := o.Addresses[0]
	mock.ExpectQuery("FROM addresses").WithArgs(o.ID).
		WillReturnRows(pgxmock.NewRows(addressCols).AddRow(
			a.ID, a.OrderID, a.AddressType, a.FirstName, a.LastName, a.Email, a.Phone,
			a.Street, a.City, a.State, a.Zip, a.Country,
		))

	got, err := repo.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", got.CustomerName)
	require.Len(t, got.Items, 3)
	assert.Equal(t, "100", got.Items[0].Attributes[domain.AttrWeightG])
	assert.Equal(t, "SENCHA-100", *got.Items[0].SKU)
	require.Len(t, got.Addresses, 1)
	assert.Equal(t, "Toronto", got.ShippingAddress().City)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetByID_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewOrderRepository(mock)

	mock.ExpectQuery("FROM orders WHERE id").WithArgs("nope").WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, `order "nope" not found`, appErr.Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_List_Filters(t *testing.T) {
	mock := newMock(t)
	repo := NewOrderRepository(mock)
	o := sampleOrder()

	mock.ExpectQuery(`WHERE status = \$1 AND lower\(customer_email\) = lower\(\$2\)`).
		WithArgs(domain.OrderStatusPending, "ADA@example.com", 20, 0).
		WillReturnRows(pgxmock.NewRows(append(orderCols, "total_count")).AddRow(
			o.ID, o.UserID, o.Status, o.SubtotalAmount, o.DiscountAmount, o.ShippingAmount,
			o.TotalAmount, o.Currency, o.Notes, o.ShippingMethod, o.CustomerEmail, o.CustomerName,
			o.CreatedAt, o.UpdatedAt, 1,
		))

	orders, total, err := repo.List(context.Background(), repository.OrderFilter{
		Status: strPtr(domain.OrderStatusPending),
		Email:  strPtr("ADA@example.com"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, orders, 1)
	assert.Equal(t, "order-1", orders[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- UpdateStatus ---

func TestOrderRepository_UpdateStatus_Transition(t *testing.T) {
	mock := newMock(t)
	repo := NewOrderRepository(mock)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM orders WHERE id = .+ FOR UPDATE").WithArgs("order-1").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(domain.OrderStatusProcessing))
	mock.ExpectExec("UPDATE orders SET status").WithArgs(domain.OrderStatusShipped, pgxmock.AnyArg(), "order-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	prev, err := repo.UpdateStatus(context.Background(), "order-1", domain.OrderStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, prev)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_UpdateStatus_CancelRestoresStock(t *testing.T) {
	mock := newMock(t)
	repo := NewOrderRepository(mock)
	o := sampleOrder()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM orders").WithArgs(o.ID).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(domain.OrderStatusPending))
	mock.ExpectExec("UPDATE orders SET status").WithArgs(domain.OrderStatusCancelled, pgxmock.AnyArg(), o.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	items := pgxmock.NewRows(orderItemCols)
	for _, it := range o.Items {
		items.AddRow(itemArgs(t, it)...)
	}
	mock.ExpectQuery("FROM order_items").WithArgs(o.ID).WillReturnRows(items)
	mock.ExpectExec("UPDATE products SET weight = weight \\+").WithArgs("prod-1", 200).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE products SET stock = stock \\+").WithArgs("prod-2", 3).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE product_variations SET stock = stock \\+").WithArgs("var-a3", 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0)) // variation deleted since; skipped
	mock.ExpectCommit()

	prev, err := repo.UpdateStatus(context.Background(), o.ID, domain.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, prev)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_UpdateStatus_InvalidTransition(t *testing.T) {
	mock := newMock(t)
	repo := NewOrderRepository(mock)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM orders").WithArgs("order-1").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(domain.OrderStatusShipped))
	mock.ExpectRollback()

	_, err := repo.UpdateStatus(context.Background(), "order-1", domain.OrderStatusCancelled)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_UpdateStatus_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewOrderRepository(mock)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM orders").WithArgs("nope").WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.UpdateStatus(context.Background(), "nope", domain.OrderStatusProcessing)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMergeStockChanges(t *testing.T) {
	merged := mergeStockChanges([]domain.StockChange{
		{ProductID: "b", Mode: domain.StockModeProduct, Units: 1},
		{ProductID: "a", Mode: domain.StockModeWeight, Units: 100},
		{ProductID: "b", Mode: domain.StockModeProduct, Units: 2},
		{ProductID: "a", Mode: domain.StockModeWeight, Units: 50},
	})
	assert.Equal(t, []domain.StockChange{
		{ProductID: "a", Mode: domain.StockModeWeight, Units: 150},
		{ProductID: "b", Mode: domain.StockModeProduct, Units: 3},
	}, merged)
}
