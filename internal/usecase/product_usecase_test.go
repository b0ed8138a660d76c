package usecase_test

import (
	"context"
	"sync"
	"testing"

	"storefront/internal/domain/model"
	"storefront/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInvalidator struct {
	mu  sync.Mutex
	ids []int64
}

func (r *recordingInvalidator) Invalidate(_ context.Context, ids ...int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, ids...)
}

func int64ptr(v int64) *int64 { return &v }

func TestProduct_CreateProduct(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	p := f.seedProduct(t, "Classic T-Shirt", 2999, 100)
	assert.Equal(t, "classic-t-shirt", p.Slug)

	_, err := f.catalog.CreateProduct(ctx, usecase.ProductInput{Name: "Classic T-Shirt", Price: 1, CategoryID: f.category.ID, IsActive: true})
	assertCode(t, err, usecase.CodeConflict)

	_, err = f.catalog.CreateProduct(ctx, usecase.ProductInput{Name: "Orphan", Price: 1, CategoryID: 999, IsActive: true})
	assertCode(t, err, usecase.CodeCategoryNotFound)

	_, err = f.catalog.CreateProduct(ctx, usecase.ProductInput{Name: "Negative", Price: -1, CategoryID: f.category.ID})
	assertCode(t, err, usecase.CodeValidation)

	_, err = f.catalog.CreateProduct(ctx, usecase.ProductInput{Name: "  ", Price: 1, CategoryID: f.category.ID})
	assertCode(t, err, usecase.CodeValidation)
}

func TestProduct_ListProducts_Filters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedProduct(t, "Classic T-Shirt", 2999, 100)
	f.seedProduct(t, "Slim Jeans", 7999, 50)
	f.seedProduct(t, "Summer Dress", 5999, 30)

	out, err := f.catalog.ListProducts(ctx, usecase.ListProductsInput{Page: 1, Limit: 10, Sort: "price_asc"})
	require.NoError(t, err)
	require.Len(t, out.Products, 3)
	assert.Equal(t, int64(2999), out.Products[0].Price)
	assert.Equal(t, int64(7999), out.Products[2].Price)

	out, err = f.catalog.ListProducts(ctx, usecase.ListProductsInput{Page: 1, Limit: 10, MinPrice: int64ptr(5000), MaxPrice: int64ptr(7000)})
	require.NoError(t, err)
	require.Len(t, out.Products, 1)
	assert.Equal(t, "Summer Dress", out.Products[0].Name)

	out, err = f.catalog.ListProducts(ctx, usecase.ListProductsInput{Page: 1, Limit: 10, Q: "jeans"})
	require.NoError(t, err)
	require.Len(t, out.Products, 1)

	out, err = f.catalog.ListProducts(ctx, usecase.ListProductsInput{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, out.Products, 1)
	assert.Equal(t, int64(3), out.Pagination.Total)
	assert.Equal(t, int64(2), out.Pagination.TotalPages)
}

func TestProduct_ListProducts_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name string
		in   usecase.ListProductsInput
	}{
		{name: "page0", in: usecase.ListProductsInput{Page: 0, Limit: 10}},
		{name: "limit too big", in: usecase.ListProductsInput{Page: 1, Limit: 101}},
		{name: "min > max", in: usecase.ListProductsInput{Page: 1, Limit: 10, MinPrice: int64ptr(10), MaxPrice: int64ptr(5)}},
		{name: "bad sort", in: usecase.ListProductsInput{Page: 1, Limit: 10, Sort: "random"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.catalog.ListProducts(ctx, tt.in)
			assertCode(t, err, usecase.CodeValidation)
		})
	}
}

func TestProduct_HiddenProducts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.seedProduct(t, "Tee", 1000, 5)

	got, err := f.catalog.GetProductBySlug(ctx, "tee")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	require.NoError(t, f.catalog.DeleteProduct(ctx, p.ID))
	_, err = f.catalog.GetProduct(ctx, p.ID)
	assertCode(t, err, usecase.CodeProductNotFound)

	err = f.catalog.DeleteProduct(ctx, p.ID)
	assertCode(t, err, usecase.CodeProductNotFound)
}

func TestProduct_UpdateProduct_RecordsManualStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv := &recordingInvalidator{}
	catalog := usecase.NewProductUsecase(f.store, f.store.Products(), f.store.Categories(), inv)
	p := f.seedProduct(t, "Tee", 1000, 5)

	updated, err := catalog.UpdateProduct(ctx, p.ID, usecase.ProductInput{
		Name: "Tee", Price: 1200, Stock: 12, CategoryID: p.CategoryID, Featured: true, IsActive: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1200), updated.Price)
	assert.Equal(t, int64(12), updated.Stock)
	assert.True(t, updated.Featured)
	assert.Equal(t, []int64{p.ID}, inv.ids)

	hist, err := catalog.StockHistory(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, model.InventoryReasonManual, hist[0].Reason)
	assert.Equal(t, int64(7), hist[0].Delta)

	featured, err := catalog.ListFeatured(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, featured, 1)

	_, err = catalog.UpdateProduct(ctx, 999, usecase.ProductInput{Name: "X", CategoryID: p.CategoryID})
	assertCode(t, err, usecase.CodeProductNotFound)
}

func TestProduct_Categories(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.catalog.CreateCategory(ctx, usecase.CategoryInput{Name: "Men's Clothing"})
	assertCode(t, err, usecase.CodeConflict)

	_, err = f.catalog.CreateCategory(ctx, usecase.CategoryInput{Name: "Women's Clothing"})
	require.NoError(t, err)

	cs, err := f.catalog.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, cs, 2)
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Classic T-Shirt":   "classic-t-shirt",
		"  Slim  Jeans  ":   "slim-jeans",
		"Men's Clothing":    "men-s-clothing",
		"---":               "",
		"Summer Dress 2024": "summer-dress-2024",
	}
	for in, want := range tests {
		assert.Equal(t, want, usecase.Slugify(in), in)
	}
}
