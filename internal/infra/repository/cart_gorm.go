package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// carts と cart_items を扱う（CartRepository / CartItemRepository 両方を満たす）
type CartGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

var cartItemVariantColumns = []clause.Column{
	{Name: "cart_id"}, {Name: "product_id"}, {Name: "size"}, {Name: "color"},
}

// ユーザーのカートを取得し、無ければ作成
func (r *CartGormRepository) GetOrCreateByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	//同時作成はuser_idの一意制約で1つにまとまる
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&model.Cart{UserID: userID}).Error; err != nil {
		return model.Cart{}, err
	}

	var cart model.Cart
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&cart).Error; err != nil {
		return model.Cart{}, err
	}
	return cart, nil
}

func (r *CartGormRepository) FindByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	return r.findByUserID(r.db.WithContext(ctx), userID)
}

// 同じユーザーの注文確定を直列にする（同じ明細を2回注文させない）
func (r *CartGormRepository) FindByUserIDForUpdate(ctx context.Context, userID int64) (model.Cart, error) {
	return r.findByUserID(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), userID)
}

func (r *CartGormRepository) findByUserID(db *gorm.DB, userID int64) (model.Cart, error) {
	var cart model.Cart

	err := db.Where("user_id = ?", userID).First(&cart).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Cart{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Cart{}, err
	}
	return cart, nil
}

// 指定カートの明細を全削除
func (r *CartGormRepository) Clear(ctx context.Context, cartID int64) error {
	return r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&model.CartItem{}).Error
}

func (r *CartGormRepository) DeleteByUserID(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub := tx.Model(&model.Cart{}).Select("id").Where("user_id = ?", userID)
		if err := tx.Where("cart_id IN (?)", sub).Delete(&model.CartItem{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&model.Cart{}).Error
	})
}

// カート明細を一覧取得
func (r *CartGormRepository) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	var items []model.CartItem

	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("id asc").
		Find(&items).Error; err != nil {
		return []model.CartItem{}, err
	}

	return items, nil
}

// 同一バリエーションは数量加算（INSERT ... ON CONFLICT DO UPDATE の1文）
func (r *CartGormRepository) UpsertVariant(ctx context.Context, item model.CartItem) (model.CartItem, error) {
	if item.Quantity <= 0 {
		return model.CartItem{}, errors.New("invalid quantity")
	}
	if item.Quantity > model.MaxCartItemQuantity {
		return model.CartItem{}, repo.ErrQuantityLimit
	}

	row := model.CartItem{
		CartID:    item.CartID,
		ProductID: item.ProductID,
		Size:      item.Size,
		Color:     item.Color,
		Quantity:  item.Quantity,
	}

	//上限を超える加算は更新せず、行が返らない
	res := r.db.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns: cartItemVariantColumns,
				DoUpdates: clause.Assignments(map[string]interface{}{
					"quantity":   gorm.Expr("cart_items.quantity + EXCLUDED.quantity"),
					"updated_at": gorm.Expr("EXCLUDED.updated_at"),
				}),
				Where: clause.Where{Exprs: []clause.Expression{
					gorm.Expr("cart_items.quantity + EXCLUDED.quantity <= ?", model.MaxCartItemQuantity),
				}},
			},
			clause.Returning{},
		).
		Create(&row)
	if res.Error != nil {
		return model.CartItem{}, res.Error
	}
	if res.RowsAffected == 0 {
		return model.CartItem{}, repo.ErrQuantityLimit
	}
	return row, nil
}

// 明細の数量を更新
func (r *CartGormRepository) UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) (model.CartItem, error) {
	var item model.CartItem

	res := r.db.WithContext(ctx).
		Model(&item).
		Clauses(clause.Returning{}).
		Where("id = ?", cartItemID).
		Update("quantity", qty)

	if res.Error != nil {
		return model.CartItem{}, res.Error
	}
	if res.RowsAffected == 0 {
		return model.CartItem{}, repo.ErrNotFound
	}
	return item, nil
}

// 明細を削除
func (r *CartGormRepository) DeleteByID(ctx context.Context, cartItemID int64) error {
	res := r.db.WithContext(ctx).Delete(&model.CartItem{}, cartItemID)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 明細を取得
func (r *CartGormRepository) FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error) {
	var item model.CartItem

	err := r.db.WithContext(ctx).
		Where("id = ?", cartItemID).
		First(&item).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.CartItem{}, repo.ErrNotFound
	}
	if err != nil {
		return model.CartItem{}, err
	}
	return item, nil
}
