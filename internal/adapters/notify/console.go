package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier.
type Console struct {
	out    io.Writer
	venues bool
}

// NewConsole crea un notificador que escribe a stdout. Con venues imprime
// además la tabla de feeds en cada ciclo.
func NewConsole(venues bool) *Console {
	return &Console{out: os.Stdout, venues: venues}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, venues bool) *Console {
	return &Console{out: w, venues: venues}
}

// Report imprime el estado del ciclo.
func (c *Console) Report(_ context.Context, s domain.CycleStatus) error {
	at := s.At
	if at.IsZero() {
		at = time.Now()
	}
	mode := "LIVE"
	if s.Paper {
		mode = "PAPER"
	}
	trading := "on"
	if !s.Trading {
		trading = "off"
	}

	fmt.Fprintf(c.out, "\n[%s] %s trading:%s bal:$%.2f exp:$%.2f\n",
		at.Format("15:04:05"), mode, trading, cents(s.Balance), cents(s.Exposure))

	if s.Ticker == "" {
		fmt.Fprintf(c.out, "  no active market")
		if s.Guard != "" {
			fmt.Fprintf(c.out, " (%s)", s.Guard)
		}
		fmt.Fprintln(c.out)
		return nil
	}

	c.printCycle(s)
	if c.venues && len(s.Venues) > 0 {
		c.printVenues(s.Venues)
	}
	return nil
}

func (c *Console) printCycle(s domain.CycleStatus) {
	table := tablewriter.NewWriter(c.out)
	table.Header("Market", "Left", "Strike", "BTC", "Proj", "Bid/Ask", "Fair", "Edge Y/N", "Vol", "Mom", "Position", "Action")

	table.Append(
		s.Ticker,
		fmt.Sprintf("%.0fs", s.SecsLeft),
		dollars(s.Strike),
		dollars(s.BTCPrice),
		projected(s),
		fmt.Sprintf("%d/%d", s.BestBid, s.BestAsk),
		fmt.Sprintf("%dc", s.FairYes),
		fmt.Sprintf("%+d/%+d", s.YesEdge, s.NoEdge),
		string(s.Regime),
		fmt.Sprintf("%+.3f%%", s.Momentum),
		position(s),
		action(s),
	)
	table.Render()
}

func (c *Console) printVenues(venues []domain.VenueStatus) {
	table := tablewriter.NewWriter(c.out)
	table.Header("Venue", "Role", "Price", "Status")
	for _, v := range venues {
		status := "down"
		if v.Connected {
			status = "up"
		}
		price := "-"
		if v.Price > 0 {
			price = dollars(v.Price)
		}
		table.Append(v.Label, string(v.Role), price, status)
	}
	table.Render()
}

func projected(s domain.CycleStatus) string {
	if s.Projected <= 0 {
		return "-"
	}
	side := "NO"
	if s.Projected >= s.Strike {
		side = "YES"
	}
	return fmt.Sprintf("%s %s", dollars(s.Projected), side)
}

func position(s domain.CycleStatus) string {
	if !s.HasPosition || s.Position.Qty() == 0 {
		return "flat"
	}
	return fmt.Sprintf("%s x%d @%.0fc", s.Position.Side(), s.Position.Qty(), s.Position.AvgCost())
}

func action(s domain.CycleStatus) string {
	switch {
	case s.Guard != "" && s.Action != "":
		return s.Action + " (" + s.Guard + ")"
	case s.Guard != "":
		return s.Guard
	case s.Action != "":
		return s.Action
	}
	return "-"
}

func dollars(v float64) string {
	if v == 0 {
		return "-"
	}
	return fmt.Sprintf("$%.2f", v)
}

func cents(c int) float64 { return float64(c) / 100 }
