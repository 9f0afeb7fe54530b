package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/alejandrodnm/kalshibot/config"
	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/ports"
)

// override es una decisión forzada por el modelo de precio.
type override struct {
	Action  domain.Action
	Trigger domain.Trigger
	Reason  string
}

// alphaOverride evalúa, en orden, lead-lag, front-run por momentum y
// defensa de ancla. Solo con el venue lead y el de liquidación conectados.
func alphaOverride(t config.Tunables, sig ports.Signals, c *cycle) (override, bool) {
	if sig == nil || !sig.VenueConnected(leadVenue) || !sig.VenueConnected(settlementVenue) {
		return override{}, false
	}

	var (
		ov    override
		found bool
	)
	if t.LeadLagEnabled && c.strike > 0 {
		signal, diff := sig.Signal(c.strike, t.LeadLagThreshold)
		switch {
		case signal == domain.Bullish && c.yesEdge >= t.MinEdgeCents:
			ov = override{domain.BuyYes, domain.TriggerLeadLag,
				fmt.Sprintf("lead-lag: global above strike by $%.2f (edge %dc)", diff, c.yesEdge)}
			found = true
		case signal == domain.Bearish && c.noEdge >= t.MinEdgeCents:
			ov = override{domain.BuyNo, domain.TriggerLeadLag,
				fmt.Sprintf("lead-lag: global below strike by $%.2f (edge %dc)", math.Abs(diff), c.noEdge)}
			found = true
		case signal != domain.Neutral:
			slog.Debug("engine: lead-lag without edge", "signal", signal, "yes_edge", c.yesEdge, "no_edge", c.noEdge)
		}
	}

	if !found {
		momentum := sig.Momentum()
		switch {
		case momentum > t.DeltaThreshold && c.yesEdge >= t.MinEdgeCents:
			ov = override{domain.BuyYes, domain.TriggerMomentum,
				fmt.Sprintf("front-run: momentum %+.2f (edge %dc)", momentum, c.yesEdge)}
			found = true
		case momentum < -t.DeltaThreshold && c.noEdge >= t.MinEdgeCents:
			ov = override{domain.BuyNo, domain.TriggerMomentum,
				fmt.Sprintf("front-run: momentum %+.2f (edge %dc)", momentum, c.noEdge)}
			found = true
		}
	}

	// la defensa de ancla pisa a las anteriores
	if c.secsLeft < float64(t.AnchorSecondsThreshold) && c.hasPos && c.strike > 0 {
		wins := sig.ProjectSettlement(c.strike, c.secsLeft)
		switch {
		case c.pos.Position > 0 && !wins:
			ov = override{domain.BuyNo, domain.TriggerAnchor,
				fmt.Sprintf("anchor defense: projection %.2f below strike %.2f", sig.ProjectedSettlement(), c.strike)}
			found = true
		case c.pos.Position < 0 && wins:
			ov = override{domain.BuyYes, domain.TriggerAnchor,
				fmt.Sprintf("anchor defense: projection %.2f at or above strike %.2f", sig.ProjectedSettlement(), c.strike)}
			found = true
		}
	}
	return ov, found
}

// runEntry decide y, si procede, coloca la entrada del ciclo.
func (e *Engine) runEntry(ctx context.Context, c *cycle) error {
	t := c.t

	ov, forced := alphaOverride(t, e.signals, c)
	var (
		decision domain.Decision
		trigger  = domain.TriggerRules
	)
	if forced {
		decision = domain.Decision{Action: ov.Action, Confidence: 1, Reasoning: ov.Reason}
		trigger = ov.Trigger
		slog.Info("engine: alpha override", "action", ov.Action, "trigger", ov.Trigger, "reason", ov.Reason)
		e.logEvent(ctx, "ALPHA", ov.Reason)
	} else {
		decision = e.strategy.Decide(ctx, ports.MarketView{
			Ticker:   c.ticker,
			Strike:   c.strike,
			SecsLeft: c.secsLeft,
			Book:     c.book,
			Position: c.pos,
			Balance:  c.balance,
		}, e.signals)
	}
	if decision.Action != domain.Hold {
		e.recordDecision(ctx, c, decision, forced && t.TradingEnabled)
	}

	if !t.TradingEnabled {
		c.status.Action = fmt.Sprintf("dry run: %s (%.0f%%)", decision.Action, decision.Confidence*100)
		return nil
	}
	side, ok := decision.Action.Side()
	if !ok || (!forced && decision.Confidence < t.MinConfidence) {
		c.status.Action = fmt.Sprintf("rules: %s (%.0f%%)", decision.Action, decision.Confidence*100)
		return nil
	}

	if err := e.broker.CancelAll(ctx); err != nil {
		slog.Warn("engine: cancel all failed", "err", err)
	}

	if reason := entryGuard(t, side, c.pos, c.hasPos, e.exitState(c.ticker), c.edge(side), c.now); reason != "" {
		return e.guard(ctx, c, reason)
	}

	extreme := e.signals != nil && math.Abs(e.signals.Momentum()) > t.ExtremeDeltaThreshold
	aggressive := extreme || forced
	price := entryPrice(side, c.bestBid, c.bestAsk, aggressive || e.cfg.Paper)

	if reason := priceGuard(t, price); reason != "" {
		return e.guard(ctx, c, reason)
	}
	if reason := exposureGuard(t, c.balance, c.exposure); reason != "" {
		return e.guard(ctx, c, reason)
	}

	maxPosition := contracts(c.balance, t.MaxPositionPct, price)
	orderSize := contracts(c.balance, t.OrderSizePct, price)

	// el cancel-all puede haber dejado fills nuevos
	if err := e.loadPositions(ctx, c); err != nil {
		return err
	}
	current := 0
	if c.hasPos {
		current = c.pos.Qty()
	}
	capacity := maxPosition - current
	if capacity <= 0 {
		return e.guard(ctx, c, fmt.Sprintf("max position reached (%d)", current))
	}
	qty := min(orderSize, capacity)

	order, err := e.place(ctx, domain.OrderRequest{
		Ticker:     c.ticker,
		Action:     domain.ActionBuy,
		Side:       side,
		PriceCents: price,
		Quantity:   qty,
	})
	if err != nil {
		c.status.Action = "order rejected"
		return nil
	}
	c.status.Action = fmt.Sprintf("%s x%d @ %dc", decision.Action, qty, price)

	entryEdge := c.edge(side)
	if order.FilledCount > 0 {
		now := c.now
		e.updateExit(c.ticker, func(s *domain.ExitState) {
			s.EntryAt = now
			s.EntryEdge = entryEdge
			s.Resting = false
		})
		e.recordSnapshot(ctx, c, domain.Snapshot{
			TradeID:     order.ID,
			Action:      "BUY",
			Side:        side,
			PriceCents:  price,
			Quantity:    order.FilledCount,
			Decision:    string(decision.Action),
			Confidence:  decision.Confidence,
			TriggerType: string(trigger),
			PositionQty: current,
		}, false)
	} else {
		// sin fill no hay posición: la entrada se adopta cuando aparezca
		slog.Info("engine: entry resting", "ticker", c.ticker, "side", side, "price", price, "qty", qty, "order", order.ID)
		e.logEvent(ctx, "INFO", fmt.Sprintf("entry resting: %s x%d @ %dc", side, qty, price))
		e.updateExit(c.ticker, func(s *domain.ExitState) {
			if !s.HasEntry() {
				s.Resting = true
				s.RestingEdge = entryEdge
			}
		})
	}

	// las órdenes que cruzan el spread ya están al mejor precio
	if !aggressive && order.ID != "" {
		e.chase(ctx, c.ticker, order, side, price, qty)
	}
	return nil
}

// place coloca una orden y registra el trade si hubo ejecución.
func (e *Engine) place(ctx context.Context, req domain.OrderRequest) (domain.Order, error) {
	order, err := e.broker.PlaceOrder(ctx, req)
	if err != nil {
		slog.Warn("engine: order rejected", "ticker", req.Ticker, "action", req.Action,
			"side", req.Side, "price", req.PriceCents, "qty", req.Quantity, "err", err)
		e.logEvent(ctx, "ERROR", fmt.Sprintf("order rejected: %s %s @ %dc x%d: %v",
			req.Action, req.Side, req.PriceCents, req.Quantity, err))
		return domain.Order{}, err
	}

	slog.Info("engine: order placed", "ticker", req.Ticker, "action", req.Action, "side", req.Side,
		"price", req.PriceCents, "qty", req.Quantity, "status", order.Status, "filled", order.FilledCount)

	if order.FilledCount > 0 && e.store != nil {
		price := order.PriceCents
		if price == 0 {
			price = req.PriceCents
		}
		action := "BUY"
		if req.Action == domain.ActionSell {
			action = "SELL"
		}
		_, rerr := e.store.RecordTrade(ctx, domain.TradeRecord{
			At:       e.now(),
			MarketID: e.marketID(req.Ticker),
			Side:     req.Side,
			Action:   action,
			Price:    float64(price) / 100,
			Quantity: order.FilledCount,
			OrderID:  order.ID,
			ExitType: req.ExitType,
		})
		if rerr != nil {
			slog.Warn("engine: record trade failed", "err", rerr)
		}
	}
	return order, nil
}

func (e *Engine) recordDecision(ctx context.Context, c *cycle, d domain.Decision, executed bool) {
	if e.store == nil {
		return
	}
	err := e.store.RecordDecision(ctx, domain.DecisionRecord{
		At:         c.now,
		MarketID:   c.ticker,
		Decision:   d.Action,
		Confidence: d.Confidence,
		Reasoning:  d.Reasoning,
		Executed:   executed,
	})
	if err != nil {
		slog.Debug("engine: record decision failed", "err", err)
	}
}
