package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog listing a shopper can add to the cart.
type Product struct {
	ID            string              `gorm:"column:id;primaryKey"`
	Title         string              `gorm:"column:title;not null"`
	Supplier      string              `gorm:"column:supplier;not null;default:''"`
	Category      string              `gorm:"column:category;not null;default:''"`
	Image         string              `gorm:"column:image;not null;default:''"`
	Price         decimal.Decimal     `gorm:"column:price;type:numeric(10,2);not null"`
	OriginalPrice decimal.NullDecimal `gorm:"column:original_price;type:numeric(10,2)"`
	IsActive      bool                `gorm:"column:is_active;not null;default:true"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }
