package model

import "time"

// 1明細の数量上限（加算後も含む）
const MaxCartItemQuantity int64 = 10000

// カートの明細
// (cart_id, product_id, size, color) で1行。size/colorなしは空文字で保存する。
type CartItem struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID    int64     `gorm:"not null;uniqueIndex:ux_cart_items_variant,priority:1" json:"cartId"`
	ProductID int64     `gorm:"not null;index;uniqueIndex:ux_cart_items_variant,priority:2" json:"productId"`
	Size      string    `gorm:"type:varchar(50);not null;default:'';uniqueIndex:ux_cart_items_variant,priority:3" json:"size,omitempty"`
	Color     string    `gorm:"type:varchar(50);not null;default:'';uniqueIndex:ux_cart_items_variant,priority:4" json:"color,omitempty"`
	Quantity  int64     `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updatedAt"`
}

// 同じバリエーションか
func (i CartItem) SameVariant(productID int64, size string, color string) bool {
	return i.ProductID == productID && i.Size == size && i.Color == color
}
