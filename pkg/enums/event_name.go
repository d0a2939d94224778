package enums

// EventName names a notification published on the storefront bus.
type EventName string

const (
	// EventCartChanged fires after every successful cart mutation. It carries
	// no payload contract; subscribers re-query the engine.
	EventCartChanged EventName = "cart.changed"
	// EventProductAdded requests transient "added to cart" feedback.
	EventProductAdded EventName = "cart.product_added"
	EventCartToggle   EventName = "cart.toggle"
	EventCartShow     EventName = "cart.show"
	EventCartClosed   EventName = "cart.closed"
)

func (e EventName) String() string {
	return string(e)
}
