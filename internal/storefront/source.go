package storefront

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/foodmarketplace/internal/cart"
	"github.com/angelmondragon/foodmarketplace/pkg/enums"
	"github.com/angelmondragon/foodmarketplace/pkg/eventbus"
)

// Source is the read side of a cart engine.
type Source interface {
	Key() string
	Lines() []cart.Line
	TotalItemCount() int
	TotalAmount() decimal.Decimal
}

// Subscriber is the listening side of the event bus.
type Subscriber interface {
	Subscribe(name enums.EventName, h eventbus.Handler) func()
}

// EventRecorder counts events the adapters react to.
type EventRecorder interface {
	IncEvent(event string)
}
