package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/foodmarketplace/internal/storefront"
	"github.com/angelmondragon/foodmarketplace/pkg/db/models"
)

// ProductDTO is the public product payload.
type ProductDTO struct {
	ID                   string           `json:"id"`
	Title                string           `json:"title"`
	Supplier             string           `json:"supplier,omitempty"`
	Category             string           `json:"category,omitempty"`
	Image                string           `json:"image,omitempty"`
	Price                decimal.Decimal  `json:"price"`
	OriginalPrice        *decimal.Decimal `json:"originalPrice,omitempty"`
	DisplayPrice         string           `json:"displayPrice"`
	DisplayOriginalPrice string           `json:"displayOriginalPrice,omitempty"`
	IsActive             bool             `json:"isActive"`
	CreatedAt            time.Time        `json:"createdAt"`
}

// ListInput filters a catalog page.
type ListInput struct {
	Category string
	Limit    int
	Cursor   string
}

// ListResult is one catalog page.
type ListResult struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"nextCursor,omitempty"`
}

// UpsertInput carries a full product definition.
type UpsertInput struct {
	ID            string
	Title         string
	Supplier      string
	Category      string
	Image         string
	Price         decimal.Decimal
	OriginalPrice *decimal.Decimal
	IsActive      bool
}

func toDTO(m models.Product) ProductDTO {
	dto := ProductDTO{
		ID:           m.ID,
		Title:        m.Title,
		Supplier:     m.Supplier,
		Category:     m.Category,
		Image:        m.Image,
		Price:        m.Price,
		DisplayPrice: storefront.FormatPrice(m.Price),
		IsActive:     m.IsActive,
		CreatedAt:    m.CreatedAt.UTC(),
	}
	if m.OriginalPrice.Valid {
		op := m.OriginalPrice.Decimal
		dto.OriginalPrice = &op
		dto.DisplayOriginalPrice = storefront.FormatPrice(op)
	}
	return dto
}
