package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/foodmarketplace/pkg/enums"
)

// Order is the receipt of a completed (simulated) payment.
type Order struct {
	ID            string            `gorm:"column:id;primaryKey"`
	SessionID     string            `gorm:"column:session_id;not null;index"`
	CustomerName  string            `gorm:"column:customer_name;not null;default:''"`
	CustomerEmail string            `gorm:"column:customer_email;not null"`
	Items         []OrderItem       `gorm:"column:items;type:text;serializer:json;not null"`
	Subtotal      decimal.Decimal   `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Tax           decimal.Decimal   `gorm:"column:tax;type:numeric(12,2);not null"`
	Total         decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null"`
	Status        enums.OrderStatus `gorm:"column:status;not null"`
	CreatedAt     time.Time         `gorm:"column:created_at;not null"`
}

func (Order) TableName() string { return "orders" }

// OrderItem is a line copied from the checkout snapshot.
type OrderItem struct {
	ProductID string          `json:"productId"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}
