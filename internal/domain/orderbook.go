package domain

import (
	"errors"
	"time"
)

// ErrNoOrderBook indica que no hay libro disponible para el instrumento.
var ErrNoOrderBook = errors.New("no order book")

// Side es el lado de un contrato binario.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Opposite devuelve el otro lado del contrato.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// Level es un nivel de precio del libro, en centavos.
type Level struct {
	Price int
	Qty   int
}

// OrderBook es el libro de un mercado binario. Kalshi publica solo bids:
// Yes son bids de YES y No son bids de NO. Un bid de NO a P equivale a un
// ask de YES a 100-P.
type OrderBook struct {
	Ticker    string
	Yes       []Level
	No        []Level
	UpdatedAt time.Time
}

// Levels devuelve los niveles del lado pedido.
func (ob OrderBook) Levels(side Side) []Level {
	if side == SideYes {
		return ob.Yes
	}
	return ob.No
}

// Empty reports whether both sides have no levels.
func (ob OrderBook) Empty() bool {
	return len(ob.Yes) == 0 && len(ob.No) == 0
}

// TwoSided reports whether both sides have at least one level.
func (ob OrderBook) TwoSided() bool {
	return len(ob.Yes) > 0 && len(ob.No) > 0
}

// BestBid devuelve el mayor bid de YES. Devuelve 0 si no hay bids.
// Los niveles pueden venir en cualquier orden.
func (ob OrderBook) BestBid() int {
	return maxPrice(ob.Yes, 0)
}

// BestAsk devuelve el ask implícito de YES: 100 - mayor bid de NO.
// Devuelve 100 si no hay bids de NO.
func (ob OrderBook) BestAsk() int {
	if len(ob.No) == 0 {
		return 100
	}
	return 100 - maxPrice(ob.No, 0)
}

// Spread devuelve ask - bid en centavos.
func (ob OrderBook) Spread() int {
	return ob.BestAsk() - ob.BestBid()
}

// Depth suma la cantidad en reposo de un lado.
func (ob OrderBook) Depth(side Side) int {
	var total int
	for _, l := range ob.Levels(side) {
		total += l.Qty
	}
	return total
}

func maxPrice(levels []Level, def int) int {
	if len(levels) == 0 {
		return def
	}
	best := levels[0].Price
	for _, l := range levels[1:] {
		if l.Price > best {
			best = l.Price
		}
	}
	return best
}

// ClampCents limita un precio al rango negociable 1..99.
func ClampCents(p int) int {
	return max(1, min(99, p))
}
