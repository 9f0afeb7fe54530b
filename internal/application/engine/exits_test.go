package engine

import (
	"testing"
	"time"

	"github.com/alejandrodnm/kalshibot/config"
	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/stretchr/testify/assert"
)

func exitTunables() config.Tunables {
	t := config.DefaultTunables()
	t.TradingEnabled = true
	return t
}

func TestChooseExit_StopLossBeatsProfitTake(t *testing.T) {
	tun := exitTunables()
	m := exitMetrics{
		Side:            domain.SideYes,
		Qty:             4,
		SellPrice:       30,
		LossPerContract: 20,
		GainPct:         80,
		SecsLeft:        600,
	}
	assert.Equal(t, domain.RuleStopLoss, chooseExit(tun, m))
}

func TestChooseExit_HoldToExpiryFirst(t *testing.T) {
	tun := exitTunables()
	m := exitMetrics{Qty: 4, LossPerContract: 40, SecsLeft: 60}
	assert.Equal(t, domain.RuleHoldToExpiry, chooseExit(tun, m))
}

func TestMeasureExit_StopLossScenario(t *testing.T) {
	tun := exitTunables()
	c := &cycle{
		now:      time.Now(),
		secsLeft: 600,
		pos:      domain.BrokerPosition{Ticker: "T", Position: 4, MarketExposure: 200},
		hasPos:   true,
		bestBid:  30,
		bestAsk:  35,
	}
	m := measureExit(tun, c, domain.ExitState{})

	assert.Equal(t, 30, m.SellPrice)
	assert.InDelta(t, 50, m.AvgCost, 1e-9)
	assert.InDelta(t, 20, m.LossPerContract, 1e-9)
	assert.Equal(t, domain.RuleStopLoss, chooseExit(tun, m))
	assert.InDelta(t, -80, exitPnL(domain.RuleStopLoss, m, 4), 1e-9)
}

func TestMeasureExit_NoSideMarksAtComplement(t *testing.T) {
	c := &cycle{
		secsLeft: 600,
		pos:      domain.BrokerPosition{Ticker: "T", Position: -2, MarketExposure: 80},
		hasPos:   true,
		bestBid:  55,
		bestAsk:  60,
	}
	m := measureExit(exitTunables(), c, domain.ExitState{})

	assert.Equal(t, domain.SideNo, m.Side)
	assert.Equal(t, 40, m.SellPrice)
	assert.InDelta(t, 0, m.LossPerContract, 1e-9)
	assert.Equal(t, domain.RuleNone, chooseExit(exitTunables(), m))
}

func TestChooseExit_EdgeExitNeedsMinHold(t *testing.T) {
	tun := exitTunables()
	m := exitMetrics{
		Side:          domain.SideYes,
		Qty:           3,
		SellPrice:     60,
		AvgCost:       58,
		SecsLeft:      600,
		EdgeKnown:     true,
		RemainingEdge: 1,
		EdgeThreshold: 1.3,
		HasEntry:      true,
		Held:          10 * time.Second,
	}
	assert.Equal(t, domain.RuleNone, chooseExit(tun, m))

	m.Held = 40 * time.Second
	assert.Equal(t, domain.RuleEdgeExit, chooseExit(tun, m))

	tun.EdgeExitEnabled = false
	assert.Equal(t, domain.RuleNone, chooseExit(tun, m))
}

func TestChooseExit_EdgeExitWithoutRecordedEntry(t *testing.T) {
	m := exitMetrics{Qty: 3, SellPrice: 60, AvgCost: 58, SecsLeft: 600, EdgeKnown: true, RemainingEdge: -2}
	assert.Equal(t, domain.RuleEdgeExit, chooseExit(exitTunables(), m))
}

func TestChooseExit_HitAndRunBeatsProfitTake(t *testing.T) {
	tun := exitTunables()
	tun.HitRunPct = 20
	m := exitMetrics{Qty: 2, SellPrice: 80, AvgCost: 40, GainPct: 100, SecsLeft: 600}
	assert.Equal(t, domain.RuleHitAndRun, chooseExit(tun, m))

	tun.HitRunPct = 0
	assert.Equal(t, domain.RuleProfitTake, chooseExit(tun, m))

	// profit-take necesita tiempo por delante
	m.SecsLeft = 200
	assert.Equal(t, domain.RuleNone, chooseExit(tun, m))
}

func TestChooseExit_FreeRollOnce(t *testing.T) {
	tun := exitTunables()
	m := exitMetrics{Qty: 4, SellPrice: 92, AvgCost: 85, GainPct: 8.2, SecsLeft: 600}
	assert.Equal(t, domain.RuleFreeRoll, chooseExit(tun, m))

	m.FreeRolled = true
	assert.Equal(t, domain.RuleNone, chooseExit(tun, m))

	m.FreeRolled = false
	m.Qty = 1
	assert.Equal(t, domain.RuleNone, chooseExit(tun, m))
}

func TestMeasureExit_EdgeDecayIgnoresSitOut(t *testing.T) {
	tun := exitTunables()
	tun.EdgeExitThresholdCents = 2
	tun.EdgeDecaySecs = 900
	c := &cycle{
		secsLeft: 450,
		pos:      domain.BrokerPosition{Ticker: "T", Position: 1, MarketExposure: 50},
		hasPos:   true,
		bestBid:  50,
		bestAsk:  55,
		fair:     domain.FairValue{Cents: 60},
		hasFair:  true,
	}

	a := measureExit(tun, c, domain.ExitState{})
	tun.SitOutLowVol = !tun.SitOutLowVol
	b := measureExit(tun, c, domain.ExitState{})

	assert.InDelta(t, 1.0, a.EdgeThreshold, 1e-9)
	assert.Equal(t, a.EdgeThreshold, b.EdgeThreshold)
	assert.InDelta(t, 10, a.RemainingEdge, 1e-9)

	tun.EdgeDecaySecs = 450
	assert.InDelta(t, 2.0, measureExit(tun, c, domain.ExitState{}).EdgeThreshold, 1e-9)
}

func TestChasePrice_Escalates(t *testing.T) {
	assert.Equal(t, 45, chasePrice(domain.SideYes, 1, 40, 50))
	assert.Equal(t, 46, chasePrice(domain.SideYes, 2, 40, 50))
	assert.Equal(t, 50, chasePrice(domain.SideYes, 3, 40, 50))

	// NO: bid 50, ask 60 en precios de NO
	assert.Equal(t, 55, chasePrice(domain.SideNo, 1, 40, 50))
	assert.Equal(t, 56, chasePrice(domain.SideNo, 2, 40, 50))
	assert.Equal(t, 60, chasePrice(domain.SideNo, 3, 40, 50))

	assert.Equal(t, 99, chasePrice(domain.SideNo, 3, 0, 100))
}

func TestEntryPrice(t *testing.T) {
	assert.Equal(t, 60, entryPrice(domain.SideYes, 55, 60, true))
	assert.Equal(t, 45, entryPrice(domain.SideNo, 55, 60, true))
	assert.Equal(t, 58, entryPrice(domain.SideYes, 55, 60, false))
	assert.Equal(t, 43, entryPrice(domain.SideNo, 55, 60, false))

	// un solo lado: 1c por encima del mejor bid
	assert.Equal(t, 56, entryPrice(domain.SideYes, 55, 100, true))
	assert.Equal(t, 41, entryPrice(domain.SideNo, 0, 60, false))
}

func TestSpreadGuard(t *testing.T) {
	ok, reason := spreadGuard(domain.OrderBook{}, 25)
	assert.False(t, ok)
	assert.Contains(t, reason, "empty")

	wide := domain.OrderBook{Yes: []domain.Level{{Price: 20, Qty: 1}}, No: []domain.Level{{Price: 40, Qty: 1}}}
	ok, reason = spreadGuard(wide, 25)
	assert.False(t, ok)
	assert.Contains(t, reason, "40c")

	oneSided := domain.OrderBook{Yes: []domain.Level{{Price: 20, Qty: 1}}}
	ok, _ = spreadGuard(oneSided, 25)
	assert.True(t, ok)
}

func TestEntryGuard(t *testing.T) {
	tun := exitTunables()
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	yes := domain.BrokerPosition{Ticker: "T", Position: 3, MarketExposure: 150}

	assert.Contains(t, entryGuard(tun, domain.SideNo, yes, true, domain.ExitState{}, 10, now), "same-side")
	assert.Empty(t, entryGuard(tun, domain.SideYes, yes, true, domain.ExitState{}, 10, now))
	assert.Contains(t, entryGuard(tun, domain.SideYes, yes, false, domain.ExitState{TookProfit: true}, 10, now), "took profit")

	st := domain.ExitState{LastEdgeExit: now.Add(-10 * time.Second)}
	assert.Contains(t, entryGuard(tun, domain.SideYes, domain.BrokerPosition{}, false, st, 20, now), "cooldown")

	st.LastEdgeExit = now.Add(-time.Minute)
	// MIN_EDGE 5 + premium 3
	assert.Contains(t, entryGuard(tun, domain.SideYes, domain.BrokerPosition{}, false, st, 7, now), "insufficient edge")
	assert.Empty(t, entryGuard(tun, domain.SideYes, domain.BrokerPosition{}, false, st, 8, now))
}

func TestPriceAndExposureGuards(t *testing.T) {
	tun := exitTunables()
	assert.Contains(t, priceGuard(tun, 3), "min")
	assert.Contains(t, priceGuard(tun, 90), "max")
	assert.Empty(t, priceGuard(tun, 50))

	assert.NotEmpty(t, exposureGuard(tun, 10000, 3000))
	assert.Empty(t, exposureGuard(tun, 10000, 2999))
}

func TestContracts_SizedByBalance(t *testing.T) {
	assert.Equal(t, 25, contracts(10000, 15, 60))
	assert.Equal(t, 8, contracts(10000, 5, 60))
	assert.Equal(t, 1, contracts(100, 5, 60))
}
