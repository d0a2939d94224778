package storefront

import (
	"context"
	"fmt"
	"sync"

	"github.com/angelmondragon/foodmarketplace/internal/cart"
)

const emptyCartMessage = "Your cart is empty"

// DrawerLine is one rendered row of the drawer.
type DrawerLine struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Image         string `json:"image,omitempty"`
	Supplier      string `json:"supplier,omitempty"`
	Quantity      int    `json:"quantity"`
	UnitPrice     string `json:"unitPrice"`
	OriginalPrice string `json:"originalPrice,omitempty"`
	Subtotal      string `json:"subtotal"`
}

// DrawerView is the rendered cart drawer.
type DrawerView struct {
	Open         bool         `json:"open"`
	Empty        bool         `json:"empty"`
	EmptyMessage string       `json:"emptyMessage,omitempty"`
	Lines        []DrawerLine `json:"lines"`
	ItemCount    int          `json:"itemCount"`
	Total        string       `json:"total"`
	Feedback     string       `json:"feedback,omitempty"`
}

// Drawer renders the cart contents and tracks its own visibility.
type Drawer struct {
	mtx      sync.RWMutex
	src      Source
	open     bool
	feedback string
	lines    []DrawerLine
	count    int
	total    string
}

func newDrawer(src Source) *Drawer {
	d := &Drawer{src: src}
	d.refresh(context.Background())
	return d
}

func (d *Drawer) refresh(context.Context) {
	lines := d.src.Lines()
	rows := make([]DrawerLine, 0, len(lines))
	count := 0
	for _, l := range lines {
		rows = append(rows, renderLine(l))
		count += l.Quantity
	}
	total := FormatPrice(d.src.TotalAmount())

	d.mtx.Lock()
	d.lines = rows
	d.count = count
	d.total = total
	d.mtx.Unlock()
}

func (d *Drawer) productAdded(title string) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	d.feedback = fmt.Sprintf("%s added to cart", title)
	d.open = true
}

func (d *Drawer) setOpen(open bool) {
	d.mtx.Lock()
	d.open = open
	d.mtx.Unlock()
}

func (d *Drawer) toggle() {
	d.mtx.Lock()
	d.open = !d.open
	d.mtx.Unlock()
}

// View returns the last rendered state.
func (d *Drawer) View() DrawerView {
	d.mtx.RLock()
	defer d.mtx.RUnlock()

	view := DrawerView{
		Open:      d.open,
		Empty:     len(d.lines) == 0,
		Lines:     append([]DrawerLine(nil), d.lines...),
		ItemCount: d.count,
		Total:     d.total,
		Feedback:  d.feedback,
	}
	if view.Lines == nil {
		view.Lines = []DrawerLine{}
	}
	if view.Empty {
		view.EmptyMessage = emptyCartMessage
	}
	return view
}

func renderLine(l cart.Line) DrawerLine {
	row := DrawerLine{
		ID:        l.ID,
		Title:     l.Title,
		Image:     l.Image,
		Supplier:  l.Supplier,
		Quantity:  l.Quantity,
		UnitPrice: FormatPrice(l.UnitPrice),
		Subtotal:  FormatPrice(l.Subtotal()),
	}
	if l.OriginalPrice != nil && l.OriginalPrice.GreaterThan(l.UnitPrice) {
		row.OriginalPrice = FormatPrice(*l.OriginalPrice)
	}
	return row
}
