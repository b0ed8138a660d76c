package model

import "time"

// 注文明細（作成後は変更しない）
type OrderItem struct {
	ID                  int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID             int64     `gorm:"not null;index" json:"orderId"`
	ProductID           int64     `gorm:"not null;index" json:"productId"`
	ProductNameSnapshot string    `gorm:"type:varchar(255);not null" json:"productName"`
	UnitPriceSnapshot   int64     `gorm:"not null" json:"unitPrice"`
	Quantity            int64     `gorm:"not null" json:"quantity"`
	Size                string    `gorm:"type:varchar(50);not null;default:''" json:"size,omitempty"`
	Color               string    `gorm:"type:varchar(50);not null;default:''" json:"color,omitempty"`
	CreatedAt           time.Time `gorm:"not null;autoCreateTime" json:"createdAt"`
}

func (i OrderItem) LineTotal() int64 {
	return i.UnitPriceSnapshot * i.Quantity
}
