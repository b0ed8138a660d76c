package model

import "time"

// 1ユーザーにつきカートは1つ（初回アクセス時に作る）
type Cart struct {
	ID        int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64      `gorm:"not null;uniqueIndex" json:"userId"`
	Items     []CartItem `gorm:"-" json:"items"`
	CreatedAt time.Time  `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time  `gorm:"not null;autoUpdateTime" json:"updatedAt"`
}
