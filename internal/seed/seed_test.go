package seed

import (
	"context"
	"testing"

	"storefront/internal/infra/memory"
	"storefront/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRun_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	catalog := usecase.NewProductUsecase(store, store.Products(), store.Categories(), nil)

	require.NoError(t, Run(ctx, catalog, zap.NewNop()))
	require.NoError(t, Run(ctx, catalog, zap.NewNop()))

	cs, err := catalog.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, cs, 3)

	out, err := catalog.ListProducts(ctx, usecase.ListProductsInput{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(3), out.Pagination.Total)

	tee, err := catalog.GetProductBySlug(ctx, "classic-white-tshirt")
	require.NoError(t, err)
	assert.Equal(t, int64(2999), tee.Price)
	assert.Equal(t, int64(100), tee.Stock)
}
