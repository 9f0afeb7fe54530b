package domain

import "math"

// Position es una posición abierta en un contrato.
// Exposure siempre es round(Quantity × AvgCost).
type Position struct {
	Ticker   string
	Side     Side
	Quantity int
	AvgCost  float64 // centavos por contrato
	Exposure int     // centavos
}

// BrokerPosition es la vista del broker: cantidad con signo (+YES, -NO) y
// exposición en centavos.
type BrokerPosition struct {
	Ticker         string
	Position       int
	MarketExposure int
}

// Side devuelve el lado de la posición con signo.
func (bp BrokerPosition) Side() Side {
	if bp.Position < 0 {
		return SideNo
	}
	return SideYes
}

// Qty devuelve el valor absoluto de la cantidad.
func (bp BrokerPosition) Qty() int {
	if bp.Position < 0 {
		return -bp.Position
	}
	return bp.Position
}

// AvgCost devuelve el coste medio por contrato en centavos.
func (bp BrokerPosition) AvgCost() float64 {
	q := bp.Qty()
	if q == 0 {
		return 0
	}
	return float64(bp.MarketExposure) / float64(q)
}

// Signed convierte una posición propia a la vista del broker.
func (p Position) Signed() BrokerPosition {
	qty := p.Quantity
	if p.Side == SideNo {
		qty = -qty
	}
	return BrokerPosition{Ticker: p.Ticker, Position: qty, MarketExposure: p.Exposure}
}

// Add acumula una compra del mismo lado con coste medio ponderado.
func (p *Position) Add(qty, priceCents int) {
	total := p.AvgCost*float64(p.Quantity) + float64(priceCents*qty)
	p.Quantity += qty
	p.AvgCost = total / float64(p.Quantity)
	p.Exposure = int(math.Round(p.AvgCost * float64(p.Quantity)))
}

// Reduce quita qty contratos al coste medio. Devuelve true si la posición
// queda vacía.
func (p *Position) Reduce(qty int) bool {
	qty = min(qty, p.Quantity)
	p.Quantity -= qty
	if p.Quantity <= 0 {
		p.Quantity = 0
		p.Exposure = 0
		return true
	}
	p.Exposure = int(math.Round(p.AvgCost * float64(p.Quantity)))
	return false
}

// MarkToMarket valora la posición contra el libro: YES al best bid y NO a
// 100 - best ask.
func MarkToMarket(bp BrokerPosition, bestBid, bestAsk int) int {
	switch {
	case bp.Position > 0:
		return bestBid * bp.Position
	case bp.Position < 0:
		return (100 - bestAsk) * -bp.Position
	}
	return 0
}

// TotalExposure suma la exposición de todas las posiciones.
func TotalExposure(positions []BrokerPosition) int {
	var total int
	for _, p := range positions {
		total += p.MarketExposure
	}
	return total
}

// FindPosition busca la posición de un ticker con cantidad no nula.
func FindPosition(positions []BrokerPosition, ticker string) (BrokerPosition, bool) {
	for _, p := range positions {
		if p.Ticker == ticker && p.Position != 0 {
			return p, true
		}
	}
	return BrokerPosition{}, false
}
