package domain

import "strings"

// MarketPnL es la conciliación de un mercado a partir de sus fills.
type MarketPnL struct {
	Ticker       string
	Result       string
	YesBought    int
	NoBought     int
	YesSold      int
	NoSold       int
	YesRemaining int
	NoRemaining  int
	ShortNo      int
	CostCents    int
	SellCents    int
	SettleCents  int
	PnLCents     int
	PrimarySide  Side
	AvgEntry     float64
}

// ReconcileFills calcula el P&L de un mercado con sus fills y el resultado
// publicado ("yes", "no" o "" si aún no liquidó).
//
// Netting: vender YES reduce YES. Vender NO con YES en cartera se netea
// contra YES; el exceso queda como NO corto. Vender YES por encima de lo
// comprado se netea contra NO comprado. Todas las ventas se valoran a
// yes_price. Al liquidar, un NO corto no cuesta nada si gana YES (el NO
// expira sin valor) y cuesta 100c por contrato si gana NO.
func ReconcileFills(ticker string, fills []Fill, result string) MarketPnL {
	r := MarketPnL{Ticker: ticker, Result: strings.ToLower(result)}

	var yesEntryCost, noEntryCost int
	for _, f := range fills {
		switch f.Action {
		case ActionBuy:
			if f.Side == SideYes {
				r.YesBought += f.Count
				yesEntryCost += f.Count * f.YesPrice
				r.CostCents += f.Count * f.YesPrice
			} else {
				r.NoBought += f.Count
				noEntryCost += f.Count * f.NoPrice
				r.CostCents += f.Count * f.NoPrice
			}
		case ActionSell:
			if f.Side == SideYes {
				r.YesSold += f.Count
			} else {
				r.NoSold += f.Count
			}
			r.SellCents += f.Count * f.YesPrice
		}
	}

	r.YesRemaining = r.YesBought - r.YesSold
	netted := min(r.NoSold, max(r.YesRemaining, 0))
	r.YesRemaining -= netted
	r.ShortNo = r.NoSold - netted

	r.NoRemaining = r.NoBought
	if r.YesSold > r.YesBought {
		excess := r.YesSold - r.YesBought
		r.NoRemaining -= min(excess, r.NoRemaining)
	}

	switch r.Result {
	case "yes":
		r.SettleCents = max(r.YesRemaining, 0) * 100
	case "no":
		r.SettleCents = r.NoRemaining*100 - r.ShortNo*100
	}

	r.PnLCents = r.SellCents + r.SettleCents - r.CostCents

	r.PrimarySide = SideYes
	if r.NoBought > r.YesBought {
		r.PrimarySide = SideNo
	}
	if r.PrimarySide == SideYes && r.YesBought > 0 {
		r.AvgEntry = float64(yesEntryCost) / float64(r.YesBought)
	} else if r.NoBought > 0 {
		r.AvgEntry = float64(noEntryCost) / float64(r.NoBought)
	}
	return r
}

// Settlement es el resultado de liquidar una posición simulada.
type Settlement struct {
	Ticker      string
	Side        Side
	Quantity    int
	PayoutCents int
	CostCents   int
}

// PnLCents devuelve payout - coste.
func (s Settlement) PnLCents() int { return s.PayoutCents - s.CostCents }
