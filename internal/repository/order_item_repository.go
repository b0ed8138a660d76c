package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// 注文明細は追記のみ（更新/削除なし）
type OrderItemRepository interface {
	CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)
}
