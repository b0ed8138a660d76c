package memory

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProduct(t *testing.T, s *Store, stock int64) model.Product {
	t.Helper()
	p, err := s.Products().Create(context.Background(), model.Product{Name: "Tee", Slug: "tee", Price: 1000, Stock: stock, IsActive: true})
	require.NoError(t, err)
	return p
}

func TestWithinTx_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	p := seedProduct(t, s, 5)

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Inventory().DecreaseStockIfEnough(ctx, p.ID, 3)
		require.NoError(t, err)
		require.True(t, ok)
		_, err = r.Orders().Create(ctx, model.Order{OrderNumber: "ORD-1", UserID: 1})
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Products().FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Stock)

	orders, total, err := s.Orders().List(ctx, repo.OrderListFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, orders)
}

func TestWithinTx_CommitOnSuccess(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	p := seedProduct(t, s, 5)

	err := s.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Inventory().DecreaseStockIfEnough(ctx, p.ID, 5)
		if err != nil || !ok {
			return errors.New("decrement failed")
		}
		//在庫不足はfalse
		ok, err = r.Inventory().DecreaseStockIfEnough(ctx, p.ID, 1)
		assert.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)

	got, err := s.Products().FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Stock)
}

func TestWithinTx_CancelledContextDoesNotCommit(t *testing.T) {
	s := NewStore()
	p := seedProduct(t, s, 5)

	ctx, cancel := context.WithCancel(context.Background())
	err := s.WithinTx(ctx, func(r repo.TxRepos) error {
		_, err := r.Inventory().DecreaseStockIfEnough(ctx, p.ID, 2)
		cancel()
		return err
	})
	assert.ErrorIs(t, err, context.Canceled)

	got, err := s.Products().FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Stock)
}

func TestOrders_CreateRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	key := "k1"

	_, err := s.Orders().Create(ctx, model.Order{OrderNumber: "ORD-1", UserID: 1, IdempotencyKey: &key})
	require.NoError(t, err)

	_, err = s.Orders().Create(ctx, model.Order{OrderNumber: "ORD-1", UserID: 2})
	assert.ErrorIs(t, err, repo.ErrDuplicate)

	_, err = s.Orders().Create(ctx, model.Order{OrderNumber: "ORD-2", UserID: 1, IdempotencyKey: &key})
	assert.ErrorIs(t, err, repo.ErrDuplicate)

	//別ユーザーなら同じキーでも可
	_, err = s.Orders().Create(ctx, model.Order{OrderNumber: "ORD-3", UserID: 2, IdempotencyKey: &key})
	assert.NoError(t, err)
}

func TestCartItems_UpsertMergesVariant(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	cart, err := s.Carts().GetOrCreateByUserID(ctx, 1)
	require.NoError(t, err)

	again, err := s.Carts().GetOrCreateByUserID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, again.ID)

	a, err := s.CartItems().UpsertVariant(ctx, model.CartItem{CartID: cart.ID, ProductID: 1, Size: "M", Quantity: 2})
	require.NoError(t, err)
	b, err := s.CartItems().UpsertVariant(ctx, model.CartItem{CartID: cart.ID, ProductID: 1, Size: "M", Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, int64(5), b.Quantity)

	_, err = s.CartItems().UpsertVariant(ctx, model.CartItem{CartID: cart.ID, ProductID: 1, Size: "L", Quantity: 1})
	require.NoError(t, err)

	items, err := s.CartItems().ListByCartID(ctx, cart.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	require.NoError(t, s.Carts().Clear(ctx, cart.ID))
	items, err = s.CartItems().ListByCartID(ctx, cart.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCartItems_UpsertRejectsOverLimit(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	cart, err := s.Carts().GetOrCreateByUserID(ctx, 1)
	require.NoError(t, err)

	_, err = s.CartItems().UpsertVariant(ctx, model.CartItem{CartID: cart.ID, ProductID: 1, Quantity: model.MaxCartItemQuantity - 1})
	require.NoError(t, err)

	_, err = s.CartItems().UpsertVariant(ctx, model.CartItem{CartID: cart.ID, ProductID: 1, Quantity: 2})
	assert.ErrorIs(t, err, repo.ErrQuantityLimit)

	items, err := s.CartItems().ListByCartID(ctx, cart.ID)
	require.NoError(t, err)
	if assert.Len(t, items, 1) {
		assert.Equal(t, model.MaxCartItemQuantity-1, items[0].Quantity)
	}

	locked, err := s.Carts().FindByUserIDForUpdate(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, locked.ID)
}
