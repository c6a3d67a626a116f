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

type catalogFixture struct {
	categories    *mockCategoryRepository
	brands        *mockBrandRepository
	teaCategories *mockTeaCategoryRepository
	cache         *mockProductCache
	svc           *CatalogService
}

func newCatalogFixture() *catalogFixture {
	f := &catalogFixture{
		categories:    new(mockCategoryRepository),
		brands:        new(mockBrandRepository),
		teaCategories: new(mockTeaCategoryRepository),
		cache:         new(mockProductCache),
	}
	f.cache.On("Flush", mock.Anything).Return(nil).Maybe()
	f.svc = NewCatalogService(f.categories, f.brands, f.teaCategories, f.cache, newTestLogger())
	return f
}

// --- Categories ---

func TestCreateCategory_DerivesSlug(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()

	f.categories.On("Create", ctx, mock.AnythingOfType("*domain.Category")).Return(nil)

	c, err := f.svc.CreateCategory(ctx, &CategoryInput{Name: "  Thé Vert ", SortOrder: 2})
	require.NoError(t, err)
	assert.Equal(t, "the-vert", c.Slug)
	assert.Equal(t, "Thé Vert", c.Name)
	assert.True(t, c.IsActive)
	assert.NotEmpty(t, c.ID)
}

func TestCreateCategory_Duplicate(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()

	f.categories.On("Create", ctx, mock.AnythingOfType("*domain.Category")).
		Return(apperrors.AlreadyExists("category", "slug", "tea"))

	_, err := f.svc.CreateCategory(ctx, &CategoryInput{Name: "Tea"})
	assert.True(t, errors.Is(err, apperrors.ErrAlreadyExists))
}

func TestUpdateCategory_RenamesSlug(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()

	created := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	f.categories.On("GetBySlug", ctx, "tea").Return(&domain.Category{ID: "c-1", Slug: "tea", CreatedAt: created}, nil)
	f.categories.On("Update", ctx, "tea", mock.MatchedBy(func(c *domain.Category) bool {
		return c.ID == "c-1" && c.Slug == "loose-tea" && !c.IsActive
	})).Return(nil)

	c, err := f.svc.UpdateCategory(ctx, "tea", &CategoryInput{Name: "Loose Tea", IsActive: boolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, created, c.CreatedAt)
	f.categories.AssertExpectations(t)
	f.cache.AssertNumberOfCalls(t, "Flush", 1)
}

func TestGetCategory_InactiveHiddenFromStorefront(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()

	f.categories.On("GetBySlug", ctx, "old").Return(&domain.Category{Slug: "old"}, nil)

	_, err := f.svc.GetCategory(ctx, "old", true)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	c, err := f.svc.GetCategory(ctx, "old", false)
	require.NoError(t, err)
	assert.Equal(t, "old", c.Slug)
}

// --- Brands ---

func TestBrandLifecycle(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()

	f.brands.On("Create", ctx, mock.AnythingOfType("*domain.Brand")).Return(nil)
	f.brands.On("List", ctx, true).Return([]domain.Brand{{Slug: "rublevsky"}}, nil)
	f.brands.On("Delete", ctx, "rublevsky").Return(nil)

	b, err := f.svc.CreateBrand(ctx, &BrandInput{Name: "Rublevsky", Logo: strPtr("https://cdn.example.com/logo.png")})
	require.NoError(t, err)
	assert.Equal(t, "rublevsky", b.Slug)
	f.cache.AssertNotCalled(t, "Flush", mock.Anything)

	bs, err := f.svc.ListBrands(ctx, true)
	require.NoError(t, err)
	assert.Len(t, bs, 1)

	require.NoError(t, f.svc.DeleteBrand(ctx, "rublevsky"))
	f.brands.AssertExpectations(t)
	f.cache.AssertNumberOfCalls(t, "Flush", 1)
}

func TestUpdateBrand_NotFound(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()

	f.brands.On("GetBySlug", ctx, "nope").Return(nil, apperrors.NotFound("brand", "nope"))

	_, err := f.svc.UpdateBrand(ctx, "nope", &BrandInput{Name: "Nope"})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	f.cache.AssertNotCalled(t, "Flush", mock.Anything)
}

// --- Tea categories ---

func TestTeaCategory_DeleteFlushesProductCache(t *testing.T) {
	f := newCatalogFixture()
	cache := new(mockProductCache)
	f.svc = NewCatalogService(f.categories, f.brands, f.teaCategories, cache, newTestLogger())
	ctx := context.Background()

	f.teaCategories.On("Delete", ctx, "puer").Return(nil)
	cache.On("Flush", ctx).Return(errors.New("redis down"))

	require.NoError(t, f.svc.DeleteTeaCategory(ctx, "puer"))
	cache.AssertExpectations(t)
}

func TestTeaCategory_ExplicitSlug(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()

	f.teaCategories.On("Create", ctx, mock.AnythingOfType("*domain.TeaCategory")).Return(nil)

	tc, err := f.svc.CreateTeaCategory(ctx, &TeaCategoryInput{Name: "Shou Puer", Slug: "Puer Shou"})
	require.NoError(t, err)
	assert.Equal(t, "puer-shou", tc.Slug)
}

func TestTeaCategory_InvalidName(t *testing.T) {
	f := newCatalogFixture()

	_, err := f.svc.CreateTeaCategory(context.Background(), &TeaCategoryInput{Name: "---"})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	f.teaCategories.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func boolPtr(b bool) *bool { return &b }
