package storefront

import (
	"context"
	"sync"
)

// BadgeView is the header counter.
type BadgeView struct {
	Count   int  `json:"count"`
	Visible bool `json:"visible"`
}

// Badge mirrors the cart item count and hides itself at zero.
type Badge struct {
	mtx  sync.RWMutex
	src  Source
	view BadgeView
}

func newBadge(src Source) *Badge {
	b := &Badge{src: src}
	b.refresh(context.Background())
	return b
}

func (b *Badge) refresh(context.Context) {
	count := b.src.TotalItemCount()
	b.mtx.Lock()
	b.view = BadgeView{Count: count, Visible: count > 0}
	b.mtx.Unlock()
}

// View returns the last rendered state.
func (b *Badge) View() BadgeView {
	b.mtx.RLock()
	defer b.mtx.RUnlock()
	return b.view
}
