package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type CartRepository interface {
	// 無ければ作る（同時に呼ばれても1つ）
	GetOrCreateByUserID(ctx context.Context, userID int64) (model.Cart, error)
	FindByUserID(ctx context.Context, userID int64) (model.Cart, error)
	// tx内で使う。カート行を FOR UPDATE でロックする
	FindByUserIDForUpdate(ctx context.Context, userID int64) (model.Cart, error)
	// 明細を全削除（カート自体は残す）
	Clear(ctx context.Context, cartID int64) error
	// カートと明細を削除（ユーザー削除時）
	DeleteByUserID(ctx context.Context, userID int64) error
}
