package service

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/alex-rublevsky/rublevsky-studio/internal/domain"
	"github.com/alex-rublevsky/rublevsky-studio/internal/event"
	"github.com/alex-rublevsky/rublevsky-studio/internal/mailer"
	"github.com/alex-rublevsky/rublevsky-studio/internal/repository"
	apperrors "github.com/alex-rublevsky/rublevsky-studio/pkg/errors"
	pkgkafka "github.com/alex-rublevsky/rublevsky-studio/pkg/kafka"
)

// --- Mock Repositories ---

type mockProductRepository struct {
	mock.Mock
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
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

func (m *mockProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *mockProductRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockProductCache struct {
	mock.Mock
}

func (m *mockProductCache) Get(ctx context.Context, slug string) (*domain.Product, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductCache) Set(ctx context.Context, product *domain.Product) error {
	return m.Called(ctx, product).Error(0)
}

func (m *mockProductCache) Invalidate(ctx context.Context, slugs ...string) error {
	return m.Called(ctx, slugs).Error(0)
}

func (m *mockProductCache) Flush(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type mockCategoryRepository struct {
	mock.Mock
}

func (m *mockCategoryRepository) Create(ctx context.Context, c *domain.Category) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockCategoryRepository) GetBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *mockCategoryRepository) List(ctx context.Context, activeOnly bool) ([]domain.Category, error) {
	args := m.Called(ctx, activeOnly)
	return args.Get(0).([]domain.Category), args.Error(1)
}

func (m *mockCategoryRepository) Update(ctx context.Context, slug string, c *domain.Category) error {
	return m.Called(ctx, slug, c).Error(0)
}

func (m *mockCategoryRepository) Delete(ctx context.Context, slug string) error {
	return m.Called(ctx, slug).Error(0)
}

type mockBrandRepository struct {
	mock.Mock
}

func (m *mockBrandRepository) Create(ctx context.Context, b *domain.Brand) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockBrandRepository) GetBySlug(ctx context.Context, slug string) (*domain.Brand, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Brand), args.Error(1)
}

func (m *mockBrandRepository) List(ctx context.Context, activeOnly bool) ([]domain.Brand, error) {
	args := m.Called(ctx, activeOnly)
	return args.Get(0).([]domain.Brand), args.Error(1)
}

func (m *mockBrandRepository) Update(ctx context.Context, slug string, b *domain.Brand) error {
	return m.Called(ctx, slug, b).Error(0)
}

func (m *mockBrandRepository) Delete(ctx context.Context, slug string) error {
	return m.Called(ctx, slug).Error(0)
}

type mockTeaCategoryRepository struct {
	mock.Mock
}

func (m *mockTeaCategoryRepository) Create(ctx context.Context, tc *domain.TeaCategory) error {
	return m.Called(ctx, tc).Error(0)
}

func (m *mockTeaCategoryRepository) GetBySlug(ctx context.Context, slug string) (*domain.TeaCategory, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TeaCategory), args.Error(1)
}

func (m *mockTeaCategoryRepository) List(ctx context.Context, activeOnly bool) ([]domain.TeaCategory, error) {
	args := m.Called(ctx, activeOnly)
	return args.Get(0).([]domain.TeaCategory), args.Error(1)
}

func (m *mockTeaCategoryRepository) Update(ctx context.Context, slug string, tc *domain.TeaCategory) error {
	return m.Called(ctx, slug, tc).Error(0)
}

func (m *mockTeaCategoryRepository) Delete(ctx context.Context, slug string) error {
	return m.Called(ctx, slug).Error(0)
}

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	return m.Called(ctx, order).Error(0)
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id, status string) (string, error) {
	args := m.Called(ctx, id, status)
	return args.String(0), args.Error(1)
}

type mockBlogRepository struct {
	mock.Mock
}

func (m *mockBlogRepository) Create(ctx context.Context, post *domain.BlogPost) error {
	return m.Called(ctx, post).Error(0)
}

func (m *mockBlogRepository) GetByID(ctx context.Context, id string) (*domain.BlogPost, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BlogPost), args.Error(1)
}

func (m *mockBlogRepository) GetBySlug(ctx context.Context, slug string) (*domain.BlogPost, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BlogPost), args.Error(1)
}

func (m *mockBlogRepository) List(ctx context.Context, filter repository.BlogFilter) ([]domain.BlogPost, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.BlogPost), args.Int(1), args.Error(2)
}

func (m *mockBlogRepository) Update(ctx context.Context, post *domain.BlogPost) error {
	return m.Called(ctx, post).Error(0)
}

func (m *mockBlogRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// memoryCartRepository is an in-process CartRepository. conflicts makes
// that many SaveIfVersion calls report a version mismatch first.
type memoryCartRepository struct {
	mu        sync.Mutex
	carts     map[string]domain.Cart
	conflicts int
	saves     int
}

func newMemoryCartRepository() *memoryCartRepository {
	return &memoryCartRepository{carts: map[string]domain.Cart{}}
}

func (r *memoryCartRepository) Get(_ context.Context, cartID string) (*domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[cartID]
	if !ok {
		return nil, apperrors.NotFound("cart", cartID)
	}
	c.Items = append([]domain.CartItem{}, c.Items...)
	return &c, nil
}

func (r *memoryCartRepository) SaveIfVersion(_ context.Context, cart *domain.Cart, expected int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflicts > 0 {
		r.conflicts--
		return false, nil
	}
	if r.carts[cart.ID].Version != expected {
		return false, nil
	}
	cart.Version = expected + 1
	c := *cart
	c.Items = append([]domain.CartItem{}, cart.Items...)
	r.carts[cart.ID] = c
	r.saves++
	return true, nil
}

func (r *memoryCartRepository) Delete(_ context.Context, cartID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, cartID)
	return nil
}

func (r *memoryCartRepository) put(c domain.Cart) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts[c.ID] = c
}

// --- Fakes ---

type fakePublisher struct {
	mu     sync.Mutex
	events []*pkgkafka.Event
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, _ string, evt *pkgkafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Name() string { return "mock" }

func (m *mockSender) Send(ctx context.Context, msg *mailer.Message) error {
	return m.Called(ctx, msg).Error(0)
}

type stubTokenIssuer struct {
	err error
}

func (s stubTokenIssuer) GenerateAccessToken(userID, _, role string) (string, time.Time, error) {
	if s.err != nil {
		return "", time.Time{}, s.err
	}
	return "token-" + userID + "-" + role, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), nil
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestProducer(pub *fakePublisher) *event.Producer {
	return event.NewProducer(pub, newTestLogger())
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

// plainProduct is a sticker tracked by product stock.
func plainProduct(id string, stock int) *domain.Product {
	return &domain.Product{
		ID:       id,
		Name:     "Fox Sticker",
		Slug:     "fox-sticker",
		Price:    450,
		Currency: "CAD",
		Stock:    stock,
		IsActive: true,
		Images:   []string{"https://cdn.example.com/fox.png"},
	}
}

// pooledTea is a loose-leaf tea with a shared weight pool of poolGrams and
// 25 g and 100 g packs.
func pooledTea(id string, poolGrams int) *domain.Product {
	return &domain.Product{
		ID:            id,
		Name:          "Da Hong Pao",
		Slug:          "da-hong-pao",
		Price:         1200,
		Currency:      "CAD",
		IsActive:      true,
		HasVariations: true,
		Weight:        intPtr(poolGrams),
		Variations: []domain.ProductVariation{
			{
				ID: "v-25", ProductID: id, SKU: "DA-HONG-PAO-25", Price: 1200,
				Attributes: []domain.VariationAttribute{{Key: domain.AttrWeightG, Value: "25"}},
			},
			{
				ID: "v-100", ProductID: id, SKU: "DA-HONG-PAO-100", Price: 4000,
				Attributes: []domain.VariationAttribute{{Key: domain.AttrWeightG, Value: "100"}},
			},
		},
	}
}
