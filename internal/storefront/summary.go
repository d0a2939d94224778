package storefront

import (
	"time"

	"github.com/angelmondragon/foodmarketplace/internal/cart"
)

// SummaryView is the checkout page rendering of a cart snapshot.
type SummaryView struct {
	Lines     []DrawerLine `json:"lines"`
	ItemCount int          `json:"itemCount"`
	Subtotal  string       `json:"subtotal"`
	TakenAt   time.Time    `json:"takenAt"`
}

// CheckoutSummary renders a snapshot once. Later cart changes never reach it.
type CheckoutSummary struct {
	view SummaryView
}

func NewCheckoutSummary(snap cart.Snapshot) *CheckoutSummary {
	rows := make([]DrawerLine, 0, len(snap.Lines))
	for _, l := range snap.Lines {
		rows = append(rows, renderLine(l))
	}
	return &CheckoutSummary{view: SummaryView{
		Lines:     rows,
		ItemCount: snap.TotalItemCount,
		Subtotal:  FormatPrice(snap.TotalAmount),
		TakenAt:   snap.TakenAt,
	}}
}

func (s *CheckoutSummary) View() SummaryView {
	view := s.view
	view.Lines = append([]DrawerLine(nil), s.view.Lines...)
	return view
}
