package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is what a storefront surface hands to AddLine.
type Product struct {
	ID            string
	Title         string
	UnitPrice     decimal.Decimal
	Image         string
	Supplier      string
	OriginalPrice *decimal.Decimal
}

// Line is one purchasable entry. UnitPrice is captured when the product is
// first added and never refreshed from the catalog afterwards.
type Line struct {
	ID            string
	Title         string
	UnitPrice     decimal.Decimal
	Quantity      int
	Image         string
	Supplier      string
	OriginalPrice *decimal.Decimal
}

// Subtotal is UnitPrice × Quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func (l Line) clone() Line {
	if l.OriginalPrice != nil {
		op := *l.OriginalPrice
		l.OriginalPrice = &op
	}
	return l
}

func newLine(p Product, quantity int) Line {
	return Line{
		ID:            p.ID,
		Title:         p.Title,
		UnitPrice:     p.UnitPrice,
		Quantity:      quantity,
		Image:         p.Image,
		Supplier:      p.Supplier,
		OriginalPrice: p.OriginalPrice,
	}.clone()
}

// Snapshot is the read-only view handed to checkout.
type Snapshot struct {
	Key            string
	Lines          []Line
	TotalItemCount int
	TotalAmount    decimal.Decimal
	TakenAt        time.Time
}

// Empty reports whether the snapshot has no lines.
func (s Snapshot) Empty() bool {
	return len(s.Lines) == 0
}

func sumLines(lines []Line) (int, decimal.Decimal) {
	count := 0
	total := decimal.Zero
	for _, l := range lines {
		count += l.Quantity
		total = total.Add(l.Subtotal())
	}
	return count, total
}
