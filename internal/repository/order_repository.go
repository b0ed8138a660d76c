package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

type OrderListFilter struct {
	Page   int
	Limit  int
	Status string
	UserID *int64
	From   *time.Time
	To     *time.Time
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	// 新しい順（created_at desc, id desc）
	List(ctx context.Context, f OrderListFilter) ([]model.Order, int64, error)
	// order_numberが重複したらErrDuplicate（外側のtxは壊さない）
	Create(ctx context.Context, order model.Order) (model.Order, error)
	// 現在のstatusがfromのときだけ更新。変わらなければfalse
	UpdateStatusIf(ctx context.Context, orderID int64, from model.OrderStatus, to model.OrderStatus, payment *model.PaymentStatus) (bool, error)

	//検索（同じキーなら同じ結果を返す）
	FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error)
}
