package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/alex-rublevsky/rublevsky-studio/internal/auth"
	"github.com/alex-rublevsky/rublevsky-studio/internal/domain"
	"github.com/alex-rublevsky/rublevsky-studio/internal/event"
	"github.com/alex-rublevsky/rublevsky-studio/internal/mailer"
	"github.com/alex-rublevsky/rublevsky-studio/internal/repository"
	redisrepo "github.com/alex-rublevsky/rublevsky-studio/internal/repository/redis"
	"github.com/alex-rublevsky/rublevsky-studio/internal/service"
	apperrors "github.com/alex-rublevsky/rublevsky-studio/pkg/errors"
	"github.com/alex-rublevsky/rublevsky-studio/pkg/health"
	"github.com/alex-rublevsky/rublevsky-studio/pkg/httputil"
	pkgkafka "github.com/alex-rublevsky/rublevsky-studio/pkg/kafka"
)

// ============================================================================
// Mock repositories
// ============================================================================

type mockProductRepository struct {
	mock.Mock
}

func (m *mockProductRepository) Create(ctx context.Context, p *domain.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*domain.Product), args.Error(1)
}

func (m *mockProductRepository) List(ctx context.Context, f repository.ProductFilter) ([]domain.Product, int, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}

func (m *mockProductRepository) Update(ctx context.Context, p *domain.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockProductRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) Create(ctx context.Context, o *domain.Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) List(ctx context.Context, f repository.OrderFilter) ([]domain.Order, int, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id, status string) (string, error) {
	args := m.Called(ctx, id, status)
	return args.String(0), args.Error(1)
}

// ============================================================================
// Test helpers
// ============================================================================

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, *pkgkafka.Event) error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testServer struct {
	handler  http.Handler
	products *mockProductRepository
	orders   *mockOrderRepository
	jwt      *auth.JWTManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := testLogger()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	products := new(mockProductRepository)
	orders := new(mockOrderRepository)
	carts := redisrepo.NewCartRepository(rdb, time.Hour)
	cache := redisrepo.NewProductCache(rdb, time.Minute)
	producer := event.NewProducer(nopPublisher{}, logger)
	jwt := auth.NewJWTManager("test-secret-test-secret-test-secret", time.Hour)

	renderer, err := mailer.NewRenderer(mailer.Shop{Name: "Studio", URL: "https://shop.example.com"})
	require.NoError(t, err)

	svcs := Services{
		Products: service.NewProductService(products, cache, producer, logger, "CAD"),
		Catalog:  service.NewCatalogService(nil, nil, nil, cache, logger),
		Blog:     service.NewBlogService(nil, products, logger),
		Cart:     service.NewCartService(carts, products, logger, time.Hour),
		Checkout: service.NewCheckoutService(carts, products, orders, cache, producer, renderer, mailer.NewLogSender(logger), logger,
			service.CheckoutConfig{Currency: "CAD", Shipping: domain.ShippingPolicy{FlatRate: 1000}}),
		Orders: service.NewOrderService(orders, cache, producer, logger),
		Auth:   service.NewAuthService(nil, jwt, logger),
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := NewRouter(ctx, svcs, jwt.Validator(), health.NewHandler(), RouterConfig{
		ServiceName:        "storefront-test",
		CORSOrigins:        []string{"http://localhost:3000"},
		RateLimitPerMinute: 600,
		RateLimitBurst:     100,
	}, logger)

	return &testServer{handler: h, products: products, orders: orders, jwt: jwt}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) bearer(t *testing.T, role string) map[string]string {
	t.Helper()
	token, _, err := s.jwt.GenerateAccessToken(uuid.NewString(), "someone@example.com", role)
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func teaProduct(id string) *domain.Product {
	w := 150
	return &domain.Product{
		ID: id, Name: "Sencha", Slug: "sencha", Price: 900, Currency: "CAD",
		IsActive: true, HasVariations: true, Weight: &w,
		Variations: []domain.ProductVariation{{
			ID: "v-50", ProductID: id, SKU: "SENCHA-50",
			Attributes: []domain.VariationAttribute{{Key: domain.AttrWeightG, Value: "50"}},
		}},
	}
}

// ============================================================================
// Cart
// ============================================================================

func TestCart_IssuesCartID(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/cart", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	cartID := rec.Header().Get(CartIDHeader)
	_, err := uuid.Parse(cartID)
	require.NoError(t, err)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	assert.Equal(t, cartID, data["id"])
	assert.Equal(t, float64(0), data["item_count"])
}

func TestCart_KeepsValidCartID(t *testing.T) {
	s := newTestServer(t)
	id := uuid.NewString()

	rec := s.do(t, http.MethodGet, "/api/v1/cart", nil, map[string]string{CartIDHeader: id})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, rec.Header().Get(CartIDHeader))
}

const teaID = "8d6a3c1e-4f2b-4c8e-9a1d-2b7e5f0c9a31"

func TestCart_AddItemAndWeightPool(t *testing.T) {
	s := newTestServer(t)
	s.products.On("GetByID", mock.Anything, teaID).Return(teaProduct(teaID), nil)
	headers := map[string]string{CartIDHeader: uuid.NewString()}

	rec := s.do(t, http.MethodPost, "/api/v1/cart/items",
		map[string]any{"product_id": teaID, "variation_id": "v-50", "quantity": 3}, headers)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeResponse(t, rec).Data.(map[string]any)
	assert.Equal(t, float64(3), data["item_count"])

	rec = s.do(t, http.MethodPost, "/api/v1/cart/items",
		map[string]any{"product_id": teaID, "variation_id": "v-50", "quantity": 1}, headers)
	require.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "WEIGHT_EXCEEDED", resp.Error.Code)
}

func TestCart_AddItemValidation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": teaID, "quantity": 0}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Fields, "quantity")
}

func TestCart_UpdateAndRemoveItem(t *testing.T) {
	s := newTestServer(t)
	s.products.On("GetByID", mock.Anything, teaID).Return(teaProduct(teaID), nil)
	headers := map[string]string{CartIDHeader: uuid.NewString()}

	rec := s.do(t, http.MethodPost, "/api/v1/cart/items",
		map[string]any{"product_id": teaID, "variation_id": "v-50", "quantity": 1}, headers)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/v1/cart/items/"+teaID,
		map[string]any{"variation_id": "v-50", "quantity": 2}, headers)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodDelete, "/api/v1/cart/items/"+teaID+"?variation_id=v-50", nil, headers)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeResponse(t, rec).Data.(map[string]any)
	assert.Equal(t, float64(0), data["item_count"])
}

func TestCart_RejectsNonUUIDProductID(t *testing.T) {
	s := newTestServer(t)
	headers := map[string]string{CartIDHeader: uuid.NewString()}

	rec := s.do(t, http.MethodPost, "/api/v1/cart/items",
		map[string]any{"product_id": "foo", "quantity": 1}, headers)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Fields, "product_id")

	rec = s.do(t, http.MethodPut, "/api/v1/cart/items/not-a-uuid",
		map[string]any{"quantity": 2}, headers)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp = decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_PARAMETER", resp.Error.Code)

	rec = s.do(t, http.MethodDelete, "/api/v1/cart/items/not-a-uuid", nil, headers)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp = decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_PARAMETER", resp.Error.Code)

	s.products.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

// ============================================================================
// Checkout
// ============================================================================

func TestCheckout_EmptyCart(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/checkout", map[string]any{
		"customer_email": "ada@example.com",
		"customer_name":  "Ada",
		"shipping_address": map[string]any{
			"first_name": "Ada", "last_name": "L", "street": "1 Tea Lane",
			"city": "Vancouver", "zip": "V5K", "country": "CA",
		},
	}, map[string]string{CartIDHeader: uuid.NewString()})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
	s.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCheckout_MissingAddressFields(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/checkout", map[string]any{
		"customer_email": "not-an-email",
		"customer_name":  "Ada",
	}, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Fields, "customer_email")
	assert.Contains(t, resp.Error.Fields, "shipping_address.street")
}

func TestCheckout_RefreshesCachedProductStock(t *testing.T) {
	s := newTestServer(t)
	before := teaProduct(teaID)
	after := teaProduct(teaID)
	remaining := 100
	after.Weight = &remaining
	s.products.On("GetBySlug", mock.Anything, "sencha").Return(before, nil).Once()
	s.products.On("GetBySlug", mock.Anything, "sencha").Return(after, nil)
	s.products.On("GetByID", mock.Anything, teaID).Return(teaProduct(teaID), nil)
	s.products.On("GetByIDs", mock.Anything, []string{teaID}).
		Return(map[string]*domain.Product{teaID: teaProduct(teaID)}, nil)
	s.orders.On("Create", mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil)

	rec := s.do(t, http.MethodGet, "/api/v1/products/sencha", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(150), decodeResponse(t, rec).Data.(map[string]any)["weight"])

	headers := map[string]string{CartIDHeader: uuid.NewString()}
	rec = s.do(t, http.MethodPost, "/api/v1/cart/items",
		map[string]any{"product_id": teaID, "variation_id": "v-50", "quantity": 1}, headers)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/v1/checkout", map[string]any{
		"customer_email": "ada@example.com",
		"customer_name":  "Ada Lovelace",
		"shipping_address": map[string]any{
			"first_name": "Ada", "last_name": "Lovelace",
			"street": "1 Tea Lane", "city": "Vancouver", "zip": "V5K 0A1", "country": "CA",
		},
	}, headers)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/v1/products/sencha", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(100), decodeResponse(t, rec).Data.(map[string]any)["weight"])
	s.products.AssertNumberOfCalls(t, "GetBySlug", 2)
}

// ============================================================================
// Storefront products
// ============================================================================

func TestGetProduct_InactiveIsNotFound(t *testing.T) {
	s := newTestServer(t)
	p := teaProduct("tea")
	p.IsActive = false
	s.products.On("GetBySlug", mock.Anything, "sencha").Return(p, nil)

	rec := s.do(t, http.MethodGet, "/api/v1/products/sencha", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListProducts_FiltersAndEnvelope(t *testing.T) {
	s := newTestServer(t)
	s.products.On("List", mock.Anything, mock.MatchedBy(func(f repository.ProductFilter) bool {
		return f.ActiveOnly && f.Sort == repository.SortPriceAsc &&
			f.TeaCategorySlug != nil && *f.TeaCategorySlug == "green" &&
			f.OnSale != nil && *f.OnSale && f.Page == 2 && f.PerPage == 10
	})).Return([]domain.Product{*teaProduct("tea")}, 11, nil)

	rec := s.do(t, http.MethodGet, "/api/v1/products?tea_category=green&on_sale=true&sort=price_asc&page=2&per_page=10", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "public, max-age=0", rec.Header().Get("Cache-Control"))

	var page httputil.PaginatedResponse[domain.Product]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	assert.Equal(t, 11, page.TotalCount)
	assert.Equal(t, 2, page.TotalPages)
	assert.False(t, page.HasNext)
	require.Len(t, page.Data, 1)
}

func TestListProducts_BadSort(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/products?sort=cheapest", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAttributes(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/attributes", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeResponse(t, rec).Data.([]any)
	assert.Len(t, data, len(domain.AttributeDefinitions()))
}

// ============================================================================
// Admin
// ============================================================================

func TestAdmin_RequiresAdminRole(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/admin/orders", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/admin/orders", nil, s.bearer(t, domain.RoleCustomer))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	s.orders.On("List", mock.Anything, repository.OrderFilter{Page: 1, PerPage: 20}).
		Return([]domain.Order{{ID: "o-1"}}, 1, nil)

	rec = s.do(t, http.MethodGet, "/api/v1/admin/orders", nil, s.bearer(t, domain.RoleAdmin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestAdmin_UpdateOrderStatus(t *testing.T) {
	s := newTestServer(t)
	id := uuid.NewString()
	admin := s.bearer(t, domain.RoleAdmin)

	s.orders.On("UpdateStatus", mock.Anything, id, domain.OrderStatusShipped).
		Return("", apperrors.Conflict("INVALID_STATUS_TRANSITION", "cannot move order from pending to shipped"))

	rec := s.do(t, http.MethodPatch, "/api/v1/admin/orders/"+id+"/status", map[string]any{"status": "shipped"}, admin)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_STATUS_TRANSITION", decodeResponse(t, rec).Error.Code)

	rec = s.do(t, http.MethodPatch, "/api/v1/admin/orders/"+id+"/status", map[string]any{"status": "lost"}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPatch, "/api/v1/admin/orders/not-a-uuid/status", map[string]any{"status": "shipped"}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdmin_CreateProductValidation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/admin/products", map[string]any{
		"name":   "",
		"price":  -1,
		"images": []string{"not a url"},
	}, s.bearer(t, domain.RoleAdmin))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decodeResponse(t, rec).Error.Fields
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "price")
	assert.Contains(t, fields, "images[0]")
}

// ============================================================================
// Infra
// ============================================================================

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/live", nil, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/metrics", nil, nil).Code)
}
