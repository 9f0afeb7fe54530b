package paper

import (
	"math"
	"sort"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

// FillResult es el resultado de cruzar una orden contra el libro.
type FillResult struct {
	Filled   int
	AvgPrice int // centavos del lado operado
	Fills    []domain.Level
}

// Resting reports whether nothing crossed.
func (r FillResult) Resting() bool { return r.Filled == 0 }

// SimulateFill recorre el libro como lo haría el matching engine: solo llena
// contra niveles que cruzan el límite.
//
// Comprar YES consume bids NO con p >= 100-limit, al precio 100-p (comprar NO
// es simétrico sobre los bids YES). Vender consume los bids del mismo lado
// con p >= limit. Las compras toman primero lo más barato y las ventas lo más
// caro. De cada nivel se toma max(1, q*fraction).
func SimulateFill(book domain.OrderBook, action domain.OrderAction, side domain.Side, limit, qty int, fraction float64) FillResult {
	var levels []domain.Level
	if action == domain.ActionBuy {
		for _, l := range book.Levels(side.Opposite()) {
			if l.Price >= 100-limit {
				levels = append(levels, domain.Level{Price: 100 - l.Price, Qty: l.Qty})
			}
		}
		sort.Slice(levels, func(i, j int) bool { return levels[i].Price < levels[j].Price })
	} else {
		for _, l := range book.Levels(side) {
			if l.Price >= limit {
				levels = append(levels, l)
			}
		}
		sort.Slice(levels, func(i, j int) bool { return levels[i].Price > levels[j].Price })
	}

	var (
		res      FillResult
		notional int
	)
	for _, l := range levels {
		if res.Filled >= qty {
			break
		}
		available := max(1, int(float64(l.Qty)*fraction))
		take := min(available, qty-res.Filled)
		res.Fills = append(res.Fills, domain.Level{Price: l.Price, Qty: take})
		res.Filled += take
		notional += l.Price * take
	}
	if res.Filled == 0 {
		return FillResult{}
	}
	res.AvgPrice = int(math.Round(float64(notional) / float64(res.Filled)))
	return res
}
