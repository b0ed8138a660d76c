package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type CartItemRepository interface {
	ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error)
	// 同じ (cart, product, size, color) なら数量を加算、無ければ作成。結果の行を返す。
	UpsertVariant(ctx context.Context, item model.CartItem) (model.CartItem, error)
	UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) (model.CartItem, error)
	DeleteByID(ctx context.Context, cartItemID int64) error
	FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error)
}
