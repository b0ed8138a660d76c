package model

import "time"

type InventoryReason string

const (
	InventoryReasonCheckout InventoryReason = "CHECKOUT"
	InventoryReasonCancel   InventoryReason = "CANCEL"
	InventoryReasonManual   InventoryReason = "MANUAL"
)

//在庫増減の履歴（注文起因ならOrderIDあり）

type InventoryAdjustment struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID int64           `gorm:"not null;index" json:"productId"`
	OrderID   *int64          `gorm:"index" json:"orderId,omitempty"`
	Delta     int64           `gorm:"not null" json:"delta"`
	Reason    InventoryReason `gorm:"type:varchar(50);not null" json:"reason"`
	CreatedAt time.Time       `gorm:"not null;autoCreateTime" json:"createdAt"`
}
