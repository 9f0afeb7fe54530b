package domain

import "time"

// OrderStatus is the broker-side lifecycle of an order.
type OrderStatus string

const (
	OrderResting  OrderStatus = "resting"
	OrderPartial  OrderStatus = "partial"
	OrderFilled   OrderStatus = "filled"
	OrderExecuted OrderStatus = "executed"
	OrderCanceled OrderStatus = "canceled"
)

// OrderAction is buy or sell.
type OrderAction string

const (
	ActionBuy  OrderAction = "buy"
	ActionSell OrderAction = "sell"
)

// OrderRequest is a limit order in cents of the chosen side.
type OrderRequest struct {
	Ticker     string
	Action     OrderAction
	Side       Side
	PriceCents int
	Quantity   int
	ExitType   ExitType // only for sells
}

// Order is the broker's answer to a placement or status query.
type Order struct {
	ID             string
	Ticker         string
	Side           Side
	Action         OrderAction
	Status         OrderStatus
	PriceCents     int // average fill price when known, otherwise the limit
	FilledCount    int
	RemainingCount int
}

// Resting reports whether the order still has unfilled quantity on the book.
func (o Order) Resting() bool {
	return o.Status == OrderResting && o.RemainingCount > 0
}

// Fill is one execution reported by the broker.
type Fill struct {
	TradeID   string
	OrderID   string
	Ticker    string
	Side      Side
	Action    OrderAction
	Count     int
	YesPrice  int
	NoPrice   int
	CreatedAt time.Time
}

// Price devuelve el precio del fill en el lado operado.
func (f Fill) Price() int {
	if f.Side == SideNo {
		return f.NoPrice
	}
	return f.YesPrice
}
