package model

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusFulfilled OrderStatus = "FULFILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRefunded  OrderStatus = "REFUNDED"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

// 許可される遷移
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusPaid},
	OrderStatusPaid:      {OrderStatusFulfilled, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusFulfilled: {OrderStatusCancelled, OrderStatusRefunded},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusFulfilled, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, to := range orderTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// 注文ステータスに追従する支払いステータス（変わらないならfalse）
func (s OrderStatus) PaymentStatus() (PaymentStatus, bool) {
	switch s {
	case OrderStatusPaid:
		return PaymentStatusPaid, true
	case OrderStatusRefunded:
		return PaymentStatusRefunded, true
	}
	return "", false
}

// 配送先（ordersテーブルに埋め込み）
type ShippingAddress struct {
	Name       string `gorm:"type:varchar(255);not null" json:"name" validate:"required,max=255"`
	Line1      string `gorm:"type:varchar(255);not null" json:"line1" validate:"required,max=255"`
	Line2      string `gorm:"type:varchar(255)" json:"line2,omitempty" validate:"max=255"`
	City       string `gorm:"type:varchar(100);not null" json:"city" validate:"required,max=100"`
	State      string `gorm:"type:varchar(100)" json:"state,omitempty" validate:"max=100"`
	PostalCode string `gorm:"type:varchar(20);not null" json:"postalCode" validate:"required,max=20"`
	Country    string `gorm:"type:varchar(2);not null" json:"country" validate:"required,len=2"`
	Phone      string `gorm:"type:varchar(50)" json:"phone,omitempty" validate:"max=50"`
}

type Order struct {
	ID              int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNumber     string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"orderNumber"`
	UserID          int64           `gorm:"not null;index;uniqueIndex:ux_orders_user_idempotency,priority:1" json:"userId"`
	Status          OrderStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentStatus   PaymentStatus   `gorm:"type:varchar(20);not null" json:"paymentStatus"`
	PaymentMethod   string          `gorm:"type:varchar(50);not null" json:"paymentMethod"`
	ShippingAddress ShippingAddress `gorm:"embedded;embeddedPrefix:shipping_" json:"shippingAddress"`
	Subtotal        int64           `gorm:"not null" json:"subtotal"`
	Tax             int64           `gorm:"not null" json:"tax"`
	Shipping        int64           `gorm:"not null" json:"shipping"`
	Total           int64           `gorm:"not null" json:"total"`
	IdempotencyKey  *string         `gorm:"type:varchar(255);uniqueIndex:ux_orders_user_idempotency,priority:2" json:"-"`
	Items           []OrderItem     `gorm:"-" json:"items"`
	CreatedAt       time.Time       `gorm:"not null;autoCreateTime;index" json:"createdAt"`
	UpdatedAt       time.Time       `gorm:"not null;autoUpdateTime" json:"updatedAt"`
}
