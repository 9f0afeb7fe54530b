package notify_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/kalshibot/internal/adapters/notify"
	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeStatus() domain.CycleStatus {
	return domain.CycleStatus{
		At:          time.Date(2026, 5, 4, 10, 7, 30, 0, time.UTC),
		Paper:       true,
		Trading:     true,
		Ticker:      "KXBTC15M-26MAY041015-15",
		SecsLeft:    450,
		Strike:      94250,
		BTCPrice:    94310.5,
		Projected:   94290,
		BestBid:     55,
		BestAsk:     58,
		FairYes:     66,
		YesEdge:     8,
		NoEdge:      -11,
		Regime:      domain.RegimeMedium,
		Position:    domain.BrokerPosition{Ticker: "T", Position: 4, MarketExposure: 220},
		HasPosition: true,
		Balance:     98000,
		Exposure:    220,
		Action:      "BUY_YES x4 @58c",
		Venues: []domain.VenueStatus{
			{ID: "binance", Label: "Binance", Role: domain.RoleLead, Price: 94320, Connected: true},
			{ID: "coinbase", Label: "Coinbase", Role: domain.RoleSettlement, Connected: false},
		},
	}
}

func TestConsole_Report_Cycle(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	require.NoError(t, n.Report(context.Background(), makeStatus()))

	out := buf.String()
	assert.Contains(t, out, "PAPER")
	assert.Contains(t, out, "$980.00")
	assert.Contains(t, out, "KXBTC15M-26MAY041015-15")
	assert.Contains(t, out, "55/58")
	assert.Contains(t, out, "+8/-11")
	assert.Contains(t, out, "yes x4 @55c")
	assert.Contains(t, out, "$94290.00 YES")
	assert.Contains(t, out, "Binance")
	assert.Contains(t, out, "down")
}

func TestConsole_Report_NoMarket(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	require.NoError(t, n.Report(context.Background(), domain.CycleStatus{Guard: "no open markets"}))
	assert.Contains(t, buf.String(), "no active market (no open markets)")
}

func TestConsole_Report_GuardShownWithAction(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	s := makeStatus()
	s.Action = ""
	s.Guard = "spread too wide"
	require.NoError(t, n.Report(context.Background(), s))
	assert.Contains(t, buf.String(), "spread too wide")
	assert.NotContains(t, buf.String(), "Binance")
}

func TestConsole_PrintReconcile(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	n.PrintReconcile([]domain.MarketPnL{
		{Ticker: "T1", Result: "yes", PrimarySide: domain.SideYes, YesBought: 4, CostCents: 220, PnLCents: 180, AvgEntry: 55},
		{Ticker: "T2", PrimarySide: domain.SideNo, NoBought: 2, CostCents: 80, PnLCents: -80},
	})

	out := buf.String()
	assert.Contains(t, out, "T1")
	assert.Contains(t, out, "open")
	assert.Contains(t, out, "+1.80")
	assert.Contains(t, out, "Total P&L: +1.00 USD")
}

func TestConsole_PrintTrades_Empty(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	n.PrintTrades(nil)
	assert.Contains(t, buf.String(), "(none)")
}
