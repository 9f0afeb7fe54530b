package notify

import (
	"fmt"

	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// PrintTrades imprime los últimos trades registrados.
func (c *Console) PrintTrades(trades []domain.TradeRecord) {
	fmt.Fprintf(c.out, "\n── RECENT TRADES (%d) ──\n", len(trades))
	if len(trades) == 0 {
		fmt.Fprintln(c.out, "  (none)")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Time", "Market", "Side", "Action", "Price", "Qty", "Order")
	for _, t := range trades {
		table.Append(
			t.At.Local().Format("01-02 15:04:05"),
			t.MarketID,
			string(t.Side),
			t.Action,
			fmt.Sprintf("%.0fc", t.Price*100),
			fmt.Sprintf("%d", t.Quantity),
			shortID(t.OrderID),
		)
	}
	table.Render()
}

// PrintReconcile imprime el P&L por mercado calculado desde los fills.
func (c *Console) PrintReconcile(results []domain.MarketPnL) {
	fmt.Fprintf(c.out, "\n── RECONCILIATION (%d markets) ──\n", len(results))
	if len(results) == 0 {
		fmt.Fprintln(c.out, "  (none)")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Market", "Result", "Side", "Avg", "Bought Y/N", "Sold Y/N", "Short NO", "Cost", "P&L")

	var total int
	for _, r := range results {
		result := r.Result
		if result == "" {
			result = "open"
		}
		table.Append(
			r.Ticker,
			result,
			string(r.PrimarySide),
			fmt.Sprintf("%.1fc", r.AvgEntry),
			fmt.Sprintf("%d/%d", r.YesBought, r.NoBought),
			fmt.Sprintf("%d/%d", r.YesSold, r.NoSold),
			fmt.Sprintf("%d", r.ShortNo),
			fmt.Sprintf("$%.2f", cents(r.CostCents)),
			fmt.Sprintf("%+.2f", cents(r.PnLCents)),
		)
		total += r.PnLCents
	}
	table.Render()
	fmt.Fprintf(c.out, "  Total P&L: %+.2f USD\n", cents(total))
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
