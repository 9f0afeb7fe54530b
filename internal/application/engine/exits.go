package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/alejandrodnm/kalshibot/config"
	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/moznion/go-optional"
)

// exitMetrics son las medidas de una posición con las que se evalúan las
// reglas de salida.
type exitMetrics struct {
	Side            domain.Side
	Qty             int
	SellPrice       int
	AvgCost         float64
	LossPerContract float64
	GainPct         float64
	SecsLeft        float64

	EdgeKnown     bool
	RemainingEdge float64
	EdgeThreshold float64
	Held          time.Duration
	HasEntry      bool

	FreeRolled bool
}

// measureExit valora la posición contra el libro y el valor justo.
func measureExit(t config.Tunables, c *cycle, st domain.ExitState) exitMetrics {
	pos := c.pos
	m := exitMetrics{
		Side:       pos.Side(),
		Qty:        pos.Qty(),
		AvgCost:    pos.AvgCost(),
		SecsLeft:   c.secsLeft,
		HasEntry:   st.HasEntry(),
		FreeRolled: st.FreeRolled,
	}
	if m.Qty == 0 {
		return m
	}

	sell := c.bestBid
	if m.Side == domain.SideNo {
		sell = 100 - c.bestAsk
	}
	m.SellPrice = domain.ClampCents(sell)

	mtm := domain.MarkToMarket(pos, c.bestBid, c.bestAsk)
	m.LossPerContract = float64(pos.MarketExposure-mtm) / float64(m.Qty)
	if m.AvgCost > 0 {
		m.GainPct = (float64(m.SellPrice) - m.AvgCost) / m.AvgCost * 100
	}

	if c.hasFair {
		m.EdgeKnown = true
		if m.Side == domain.SideYes {
			m.RemainingEdge = float64(c.fair.Cents - c.bestBid)
		} else {
			m.RemainingEdge = float64(c.bestAsk - c.fair.Cents)
		}
		m.EdgeThreshold = float64(t.EdgeExitThresholdCents) * domain.TimeFactor(c.secsLeft, float64(t.EdgeDecaySecs))
	}
	if m.HasEntry {
		m.Held = c.now.Sub(st.EntryAt)
	}
	return m
}

// chooseExit devuelve la primera regla de salida que aplica, en orden de
// prioridad. Como mucho una por ciclo.
func chooseExit(t config.Tunables, m exitMetrics) domain.ExitRule {
	if m.Qty <= 0 {
		return domain.RuleNone
	}
	if m.SecsLeft < float64(t.HoldExpirySecs) {
		return domain.RuleHoldToExpiry
	}
	if t.StopLossCents > 0 && m.LossPerContract >= float64(t.StopLossCents) {
		return domain.RuleStopLoss
	}
	if t.EdgeExitEnabled && m.EdgeKnown && m.RemainingEdge <= m.EdgeThreshold {
		// sin entrada registrada (p. ej. tras reiniciar) el hold se da por cumplido
		minHold := time.Duration(t.EdgeExitMinHoldSecs) * time.Second
		if !m.HasEntry || m.Held >= minHold {
			return domain.RuleEdgeExit
		}
	}
	if t.HitRunPct > 0 && m.GainPct >= t.HitRunPct {
		return domain.RuleHitAndRun
	}
	if m.GainPct >= t.ProfitTakePct && m.SecsLeft > float64(t.ProfitTakeMinSecs) {
		return domain.RuleProfitTake
	}
	if m.SellPrice >= t.FreeRollPrice && !m.FreeRolled && m.Qty >= 2 {
		return domain.RuleFreeRoll
	}
	return domain.RuleNone
}

// runExits evalúa las reglas de salida de la posición del contrato activo.
// Si alguna dispara, el ciclo termina aquí.
func (e *Engine) runExits(ctx context.Context, c *cycle) error {
	st := e.exitState(c.ticker)
	m := measureExit(c.t, c, st)
	rule := chooseExit(c.t, m)

	switch rule {
	case domain.RuleNone:
		return nil
	case domain.RuleHoldToExpiry:
		c.status.Action = fmt.Sprintf("holding to expiry (%.0fs left)", c.secsLeft)
		e.logEvent(ctx, "GUARD", fmt.Sprintf("hold-to-expiry: %.0fs left, riding to settlement", c.secsLeft))
		return errCycleStopped
	}

	qty := m.Qty
	if rule == domain.RuleFreeRoll {
		qty = max(1, m.Qty/2)
	}
	slog.Info("engine: exit triggered", "rule", rule, "ticker", c.ticker, "side", m.Side,
		"qty", qty, "price", m.SellPrice, "loss", m.LossPerContract, "gain_pct", m.GainPct,
		"edge", m.RemainingEdge)

	order, err := e.place(ctx, domain.OrderRequest{
		Ticker:     c.ticker,
		Action:     domain.ActionSell,
		Side:       m.Side,
		PriceCents: m.SellPrice,
		Quantity:   qty,
		ExitType:   rule.ExitType(),
	})
	if err != nil {
		c.status.Action = fmt.Sprintf("%s: sell order rejected", rule)
		return errCycleStopped
	}

	now := c.now
	switch rule {
	case domain.RuleEdgeExit:
		e.updateExit(c.ticker, func(s *domain.ExitState) {
			s.LastEdgeExit = now
			s.EdgeExits++
			s.EntryAt = time.Time{}
			s.EntryEdge = 0
		})
	case domain.RuleHitAndRun, domain.RuleProfitTake:
		e.updateExit(c.ticker, func(s *domain.ExitState) { s.TookProfit = true })
	case domain.RuleFreeRoll:
		e.updateExit(c.ticker, func(s *domain.ExitState) { s.FreeRolled = true })
	}

	c.status.Action = fmt.Sprintf("%s: sold %dx %s @ %dc", rule.ExitType(), qty, m.Side, m.SellPrice)
	e.logEvent(ctx, "TRADE", fmt.Sprintf("%s %s: sold %dx %s @ %dc on %s", rule, rule.ExitType(), qty, m.Side, m.SellPrice, c.ticker))

	e.recordSnapshot(ctx, c, domain.Snapshot{
		TradeID:     order.ID,
		Action:      string(rule.ExitType()),
		Side:        m.Side,
		PriceCents:  m.SellPrice,
		Quantity:    qty,
		Decision:    string(rule.ExitType()),
		TriggerType: rule.String(),
		PositionQty: m.Qty,
		PnLCents:    optional.Some(exitPnL(rule, m, qty)),
	}, true)
	return errCycleStopped
}

// exitPnL estima el P&L de la venta en centavos.
func exitPnL(rule domain.ExitRule, m exitMetrics, qty int) float64 {
	if rule == domain.RuleStopLoss {
		return round1(-m.LossPerContract * float64(qty))
	}
	if m.AvgCost == 0 {
		return 0
	}
	return round1((float64(m.SellPrice) - m.AvgCost) * float64(qty))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
