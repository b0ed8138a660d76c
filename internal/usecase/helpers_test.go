package usecase_test

import (
	"context"
	"testing"

	"storefront/internal/domain/model"
	"storefront/internal/infra/memory"
	"storefront/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store    *memory.Store
	cart     *usecase.CartUsecase
	ledger   *usecase.OrderLedger
	checkout *usecase.CheckoutUsecase
	catalog  *usecase.ProductUsecase
	category model.Category
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, usecase.UUIDOrderNumber{}, 5, usecase.FlatPricing{})
}

func newFixtureWith(t *testing.T, numbers usecase.OrderNumberGenerator, attempts int, pricing usecase.PricingPolicy) *fixture {
	t.Helper()

	store := memory.NewStore()
	ledger := usecase.NewOrderLedger(store, numbers, usecase.RealClock{}, attempts, nil, nil)
	f := &fixture{
		store:    store,
		cart:     usecase.NewCartUsecase(store.Carts(), store.CartItems(), store.Products()),
		ledger:   ledger,
		checkout: usecase.NewCheckoutUsecase(store, ledger, pricing, nil, nil),
		catalog:  usecase.NewProductUsecase(store, store.Products(), store.Categories(), nil),
	}

	c, err := f.catalog.CreateCategory(context.Background(), usecase.CategoryInput{Name: "Men's Clothing"})
	require.NoError(t, err)
	f.category = c
	return f
}

func (f *fixture) seedProduct(t *testing.T, name string, price int64, stock int64) model.Product {
	t.Helper()
	p, err := f.catalog.CreateProduct(context.Background(), usecase.ProductInput{
		Name:       name,
		Price:      price,
		Stock:      stock,
		CategoryID: f.category.ID,
		IsActive:   true,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) add(t *testing.T, userID int64, productID int64, qty int64) model.CartItem {
	t.Helper()
	item, _, err := f.cart.AddItem(context.Background(), usecase.AddCartItemInput{UserID: userID, ProductID: productID, Quantity: qty})
	require.NoError(t, err)
	return item
}

func (f *fixture) stock(t *testing.T, productID int64) int64 {
	t.Helper()
	p, err := f.store.Products().FindByID(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) orderCount(t *testing.T, userID int64) int64 {
	t.Helper()
	page, err := f.ledger.ListByUser(context.Background(), userID, 1, 100)
	require.NoError(t, err)
	return page.Pagination.Total
}

var testAddress = model.ShippingAddress{
	Name:       "Jane Doe",
	Line1:      "1 Main St",
	City:       "Springfield",
	PostalCode: "12345",
	Country:    "US",
}

func checkoutInput(userID int64) usecase.CheckoutInput {
	return usecase.CheckoutInput{UserID: userID, ShippingAddress: testAddress, PaymentMethod: "card"}
}

func assertCode(t *testing.T, err error, want usecase.ErrorCode) {
	t.Helper()
	if assert.Error(t, err) {
		assert.Equal(t, want, usecase.CodeOf(err), "err=%v", err)
	}
}

func strptr(s string) *string { return &s }
