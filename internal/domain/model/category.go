package model

import "time"

type Category struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Slug        string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"slug"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	Image       string    `gorm:"type:varchar(1024)" json:"image,omitempty"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime" json:"updatedAt"`
}
