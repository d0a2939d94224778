package checkout

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/foodmarketplace/internal/storefront"
	"github.com/angelmondragon/foodmarketplace/pkg/db/models"
	"github.com/angelmondragon/foodmarketplace/pkg/enums"
)

// Quote is what the checkout page shows before payment.
type Quote struct {
	Summary         storefront.SummaryView `json:"summary"`
	TaxRate         decimal.Decimal        `json:"taxRate"`
	Subtotal        decimal.Decimal        `json:"subtotal"`
	Tax             decimal.Decimal        `json:"tax"`
	Total           decimal.Decimal        `json:"total"`
	DisplaySubtotal string                 `json:"displaySubtotal"`
	DisplayTax      string                 `json:"displayTax"`
	DisplayTotal    string                 `json:"displayTotal"`
}

// OrderItemDTO is one paid line.
type OrderItemDTO struct {
	ProductID       string          `json:"productId"`
	Title           string          `json:"title"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
	DisplaySubtotal string          `json:"displaySubtotal"`
}

// OrderDTO is the public order payload.
type OrderDTO struct {
	ID            string            `json:"id"`
	Status        enums.OrderStatus `json:"status"`
	CustomerName  string            `json:"customerName"`
	CustomerEmail string            `json:"customerEmail"`
	Items         []OrderItemDTO    `json:"items"`
	Subtotal      decimal.Decimal   `json:"subtotal"`
	Tax           decimal.Decimal   `json:"tax"`
	Total         decimal.Decimal   `json:"total"`
	DisplayTotal  string            `json:"displayTotal"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// Receipt pairs an order with its QR confirmation payload.
type Receipt struct {
	Order   OrderDTO  `json:"order"`
	Payload QRPayload `json:"qr"`
}

type totals struct {
	subtotal decimal.Decimal
	tax      decimal.Decimal
	total    decimal.Decimal
}

func computeTotals(subtotal, rate decimal.Decimal) totals {
	subtotal = subtotal.Round(2)
	tax := subtotal.Mul(rate).Round(2)
	return totals{subtotal: subtotal, tax: tax, total: subtotal.Add(tax)}
}

func toOrderDTO(o models.Order) OrderDTO {
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemDTO{
			ProductID:       it.ProductID,
			Title:           it.Title,
			Quantity:        it.Quantity,
			UnitPrice:       it.UnitPrice,
			DisplaySubtotal: storefront.FormatPrice(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))),
		})
	}
	return OrderDTO{
		ID:            o.ID,
		Status:        o.Status,
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		Items:         items,
		Subtotal:      o.Subtotal,
		Tax:           o.Tax,
		Total:         o.Total,
		DisplayTotal:  storefront.FormatPrice(o.Total),
		CreatedAt:     o.CreatedAt.UTC(),
	}
}
