package model

import (
	"time"

	"gorm.io/gorm"
)

type Product struct {
	ID           int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string         `gorm:"type:varchar(255);not null" json:"name"`
	Slug         string         `gorm:"type:varchar(255);not null;uniqueIndex" json:"slug"`
	Description  string         `gorm:"type:text" json:"description"`
	Price        int64          `gorm:"not null" json:"price"`
	ComparePrice *int64         `json:"comparePrice,omitempty"`
	CategoryID   int64          `gorm:"not null;index" json:"categoryId"`
	Stock        int64          `gorm:"not null" json:"stock"`
	Featured     bool           `gorm:"not null;default:false;index" json:"featured"`
	IsActive     bool           `gorm:"not null;default:true" json:"isActive"`
	CreatedAt    time.Time      `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time      `gorm:"not null;autoUpdateTime" json:"updatedAt"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// カートに入れられる/注文できる状態か
func (p Product) Available() bool {
	return p.IsActive && !p.DeletedAt.Valid
}
