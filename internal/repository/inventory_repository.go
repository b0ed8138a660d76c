package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type InventoryRepository interface {
	// 在庫の現在値を設定
	SetStock(ctx context.Context, productID int64, newStock int64) error

	// 在庫が足りるときだけ減算
	DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error)

	// 在庫戻し（キャンセル）
	IncreaseStock(ctx context.Context, productID int64, qty int64) error

	// 増減履歴
	CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error
	ListAdjustments(ctx context.Context, productID int64) ([]model.InventoryAdjustment, error)
}
