package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"storefront/internal/domain/model"
	"storefront/internal/infra/memory"
	"storefront/internal/usecase"
	"storefront/internal/validator"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testApp struct {
	e       *echo.Echo
	catalog *usecase.ProductUsecase
	product model.Product
}

func newTestApp(t *testing.T, stock int64) *testApp {
	t.Helper()
	ctx := context.Background()

	store := memory.NewStore()
	ledger := usecase.NewOrderLedger(store, usecase.UUIDOrderNumber{}, usecase.RealClock{}, 3, nil, nil)
	catalog := usecase.NewProductUsecase(store, store.Products(), store.Categories(), nil)

	cat, err := catalog.CreateCategory(ctx, usecase.CategoryInput{Name: "Men's Clothing"})
	require.NoError(t, err)
	p, err := catalog.CreateProduct(ctx, usecase.ProductInput{Name: "Classic T-Shirt", Price: 2999, Stock: stock, CategoryID: cat.ID, IsActive: true})
	require.NoError(t, err)

	e := echo.New()
	e.Validator = validator.New()
	NewHealthHandler().RegisterRoutes(e)
	NewCartHandler(usecase.NewCartUsecase(store.Carts(), store.CartItems(), store.Products())).RegisterRoutes(e)
	NewOrderHandler(usecase.NewCheckoutUsecase(store, ledger, usecase.FlatPricing{}, nil, nil), ledger).RegisterRoutes(e)
	NewProductHandler(catalog).RegisterRoutes(e)
	NewUserHandler(usecase.NewUserUsecase(store.Users(), store, plainHasher{})).RegisterRoutes(e)

	return &testApp{e: e, catalog: catalog, product: p}
}

type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "x" + p, nil }

func (a *testApp) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

const orderBody = `{"userId":1,"paymentMethod":"card","shippingAddress":{"name":"Jane","line1":"1 Main St","city":"Springfield","postalCode":"12345","country":"US"}}`

func TestHealth(t *testing.T) {
	a := newTestApp(t, 1)
	rec := a.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCart_AddMergeAndGet(t *testing.T) {
	a := newTestApp(t, 10)
	body := `{"userId":1,"productId":` + itoa(a.product.ID) + `,"quantity":2,"size":"M"}`

	rec := a.do(t, http.MethodPost, "/cart", body)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body = `{"userId":1,"productId":` + itoa(a.product.ID) + `,"quantity":3,"size":"M"}`
	rec = a.do(t, http.MethodPost, "/cart", body)
	assert.Equal(t, http.StatusOK, rec.Code)
	item := decode[model.CartItem](t, rec)
	assert.Equal(t, int64(5), item.Quantity)

	rec = a.do(t, http.MethodGet, "/cart?userId=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[usecase.CartView](t, rec)
	require.Len(t, view.Items, 1)
	assert.Equal(t, int64(5*2999), view.Subtotal)
	assert.Equal(t, int64(5), view.ItemCount)
	assert.Contains(t, rec.Body.String(), `"itemCount":5`)
}

func TestCart_Errors(t *testing.T) {
	a := newTestApp(t, 10)

	rec := a.do(t, http.MethodPost, "/cart", `{"userId":1,"productId":`+itoa(a.product.ID)+`,"quantity":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_QUANTITY", decode[ErrorResponse](t, rec).Error)

	rec = a.do(t, http.MethodPost, "/cart", `{"userId":1,"productId":999,"quantity":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	res := decode[ErrorResponse](t, rec)
	assert.Equal(t, "PRODUCT_NOT_FOUND", res.Error)
	assert.Equal(t, int64(999), res.ProductID)

	rec = a.do(t, http.MethodPost, "/cart", `{"productId":1,"quantity":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "required", decode[ErrorResponse](t, rec).Fields["userId"])

	rec = a.do(t, http.MethodPost, "/cart", `{"userId":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodGet, "/cart", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPatch, "/cart/12345", `{"quantity":2}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "CART_ITEM_NOT_FOUND", decode[ErrorResponse](t, rec).Error)

	//上限超えは入力エラーで、再試行不可
	rec = a.do(t, http.MethodPost, "/cart", `{"userId":1,"productId":`+itoa(a.product.ID)+`,"quantity":9223372036854775807}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	res = decode[ErrorResponse](t, rec)
	assert.Equal(t, "INVALID_QUANTITY", res.Error)
	assert.False(t, res.Retryable)

	size := `"` + strings.Repeat("x", 50) + `"`
	rec = a.do(t, http.MethodPost, "/cart", `{"userId":1,"productId":`+itoa(a.product.ID)+`,"quantity":1,"size":`+size+`,"color":`+size+`}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, http.MethodPost, "/cart", `{"userId":1,"productId":`+itoa(a.product.ID)+`,"quantity":1,"size":"`+strings.Repeat("x", 51)+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "max", decode[ErrorResponse](t, rec).Fields["size"])
}

func TestCart_PatchDeleteClear(t *testing.T) {
	a := newTestApp(t, 10)
	rec := a.do(t, http.MethodPost, "/cart", `{"userId":1,"productId":`+itoa(a.product.ID)+`,"quantity":1}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	item := decode[model.CartItem](t, rec)
	path := "/cart/" + itoa(item.ID)

	rec = a.do(t, http.MethodPatch, path, `{"quantity":4}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(4), decode[model.CartItem](t, rec).Quantity)

	rec = a.do(t, http.MethodPatch, path, `{"quantity":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(t, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodDelete, "/cart?userId=1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOrders_CheckoutFlow(t *testing.T) {
	a := newTestApp(t, 10)

	//空カート
	rec := a.do(t, http.MethodPost, "/orders", orderBody)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "EMPTY_CART", decode[ErrorResponse](t, rec).Error)

	rec = a.do(t, http.MethodPost, "/cart", `{"userId":1,"productId":`+itoa(a.product.ID)+`,"quantity":2}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, http.MethodPost, "/orders", orderBody, "Idempotency-Key", "abc")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decode[model.Order](t, rec)
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.Equal(t, int64(2*2999), order.Total)
	require.Len(t, order.Items, 1)
	assert.Contains(t, rec.Body.String(), `"unitPrice":2999`)
	assert.Contains(t, rec.Body.String(), `"orderNumber":"ORD-`)

	//同じキーは200で同じ注文
	rec = a.do(t, http.MethodPost, "/orders", orderBody, "Idempotency-Key", "abc")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, order.ID, decode[model.Order](t, rec).ID)

	rec = a.do(t, http.MethodGet, "/orders?userId=1&page=1&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[usecase.OrderPage](t, rec)
	assert.Equal(t, int64(1), page.Pagination.Total)

	rec = a.do(t, http.MethodGet, "/orders/"+itoa(order.ID)+"?userId=2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodGet, "/orders/"+itoa(order.ID)+"?userId=1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodPatch, "/orders/"+itoa(order.ID)+"/status", `{"status":"FULFILLED"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_TRANSITION", decode[ErrorResponse](t, rec).Error)

	rec = a.do(t, http.MethodPatch, "/orders/"+itoa(order.ID)+"/status", `{"status":"PAID"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.PaymentStatusPaid, decode[model.Order](t, rec).PaymentStatus)

	rec = a.do(t, http.MethodGet, "/orders/"+itoa(order.ID)+"/history", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.AuditLog](t, rec), 2)
}

func TestOrders_OutOfStockBody(t *testing.T) {
	a := newTestApp(t, 1)
	rec := a.do(t, http.MethodPost, "/cart", `{"userId":1,"productId":`+itoa(a.product.ID)+`,"quantity":3}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, http.MethodPost, "/orders", orderBody)
	assert.Equal(t, http.StatusConflict, rec.Code)
	res := decode[ErrorResponse](t, rec)
	assert.Equal(t, "OUT_OF_STOCK", res.Error)
	assert.False(t, res.Retryable)
	assert.Equal(t, a.product.ID, res.ProductID)
	assert.Equal(t, int64(3), res.Requested)
	require.NotNil(t, res.Available)
	assert.Equal(t, int64(1), *res.Available)
}

func TestOrders_InvalidAddress(t *testing.T) {
	a := newTestApp(t, 1)
	rec := a.do(t, http.MethodPost, "/orders", `{"userId":1,"paymentMethod":"card","shippingAddress":{"name":"Jane","line1":"x","city":"y","postalCode":"1","country":"USA"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "len", decode[ErrorResponse](t, rec).Fields["shippingAddress.country"])
}

func TestProducts_CRUD(t *testing.T) {
	a := newTestApp(t, 5)

	rec := a.do(t, http.MethodGet, "/products?page=1&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[usecase.ProductListOutput](t, rec).Pagination.Total)

	rec = a.do(t, http.MethodGet, "/products?page=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := `{"name":"Slim Jeans","price":7999,"stock":50,"categoryId":` + itoa(a.product.CategoryID) + `,"featured":true}`
	rec = a.do(t, http.MethodPost, "/products", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	jeans := decode[model.Product](t, rec)
	assert.True(t, jeans.IsActive)
	assert.Equal(t, "slim-jeans", jeans.Slug)

	rec = a.do(t, http.MethodPost, "/products", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodGet, "/products/slug/slim-jeans", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, "/products/featured", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Product](t, rec), 1)

	rec = a.do(t, http.MethodPut, "/products/"+itoa(jeans.ID), `{"name":"Slim Jeans","price":6999,"stock":40,"categoryId":`+itoa(a.product.CategoryID)+`}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(6999), decode[model.Product](t, rec).Price)

	rec = a.do(t, http.MethodGet, "/products/"+itoa(jeans.ID)+"/stock-history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.InventoryAdjustment](t, rec), 1)

	rec = a.do(t, http.MethodDelete, "/products/"+itoa(jeans.ID), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(t, http.MethodGet, "/products/"+itoa(jeans.ID), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodGet, "/categories", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(t, http.MethodPost, "/categories", `{"name":"Accessories"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestUsers_CRUD(t *testing.T) {
	a := newTestApp(t, 1)

	rec := a.do(t, http.MethodPost, "/users", `{"email":"jane@example.com","password":"password123","name":"Jane"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password")
	u := decode[model.User](t, rec)

	rec = a.do(t, http.MethodPost, "/users", `{"email":"jane@example.com","password":"password123"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodPost, "/users", `{"email":"bad","password":"password123"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPatch, "/users/"+itoa(u.ID), `{"name":"Janet"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Janet", decode[model.User](t, rec).Name)

	rec = a.do(t, http.MethodGet, "/users", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodDelete, "/users/"+itoa(u.ID), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(t, http.MethodGet, "/users/"+itoa(u.ID), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWriteError_UnknownErrorIsOpaque(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	require.NoError(t, writeError(c, assert.AnError))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
	//本文には出さず、アクセスログ用に残す
	assert.Equal(t, assert.AnError, c.Get("request_error"))

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, writeError(c, usecase.NewError(usecase.CodeTransient, "db down")))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.True(t, decode[ErrorResponse](t, rec).Retryable)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
