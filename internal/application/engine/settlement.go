package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/google/uuid"
	"github.com/moznion/go-optional"
)

const (
	// Kalshi tarda ~60s en publicar el resultado tras el cierre.
	settleAttempts = 7
	settleInterval = 15 * time.Second
)

// outcome es el resultado de un contrato vencido.
type outcome struct {
	Winner    domain.Side // "" si no se sabe
	Projected bool
}

// resolve consulta el resultado del mercado con reintentos. Si el broker no
// lo publica a tiempo, usa la proyección de liquidación contra el strike.
func (e *Engine) resolve(ctx context.Context, ticker string) outcome {
	var (
		market domain.Market
		known  bool
	)
	for attempt := 0; attempt < settleAttempts; attempt++ {
		m, err := e.broker.GetMarket(ctx, ticker)
		if err != nil {
			slog.Warn("engine: settlement result fetch failed", "ticker", ticker, "attempt", attempt+1, "err", err)
		} else {
			market, known = m, true
			if m.Result != "" {
				return outcome{Winner: domain.Side(strings.ToLower(m.Result))}
			}
		}
		if attempt < settleAttempts-1 {
			if err := e.sleep(ctx, settleInterval); err != nil {
				return outcome{}
			}
		}
	}

	if e.signals == nil || e.signals.ProjectedSettlement() <= 0 || !known {
		slog.Warn("engine: settlement result unknown, no projection", "ticker", ticker)
		return outcome{}
	}
	strike := domain.ExtractStrike(market).TakeOr(0)
	if strike <= 0 {
		slog.Warn("engine: settlement result unknown, no strike", "ticker", ticker)
		return outcome{}
	}
	winner := domain.SideNo
	if e.signals.ProjectedSettlement() >= strike {
		winner = domain.SideYes
	}
	slog.Info("engine: using projected settlement", "ticker", ticker,
		"projected", e.signals.ProjectedSettlement(), "strike", strike, "winner", winner)
	return outcome{Winner: winner, Projected: true}
}

// settlePaper liquida las posiciones simuladas de contratos vencidos.
func (e *Engine) settlePaper(ctx context.Context, tickers []string) {
	for _, ticker := range tickers {
		out := e.resolve(ctx, ticker)
		if ctx.Err() != nil {
			return
		}
		s, err := e.settler.Settle(ctx, ticker, out.Winner)
		if err != nil {
			slog.Warn("engine: paper settlement failed", "ticker", ticker, "err", err)
			continue
		}
		e.recordSettlement(ctx, s, out)
	}
}

// settleLive registra la liquidación de una entrada live que venció sin
// salida. El broker paga solo; aquí solo se deja constancia.
func (e *Engine) settleLive(ctx context.Context, ticker string) {
	if e.store == nil {
		return
	}
	entry, err := e.store.UnsettledEntry(ctx, ticker)
	if err != nil {
		slog.Warn("engine: unsettled entry lookup failed", "ticker", ticker, "err", err)
		return
	}
	if entry.IsNone() {
		return
	}
	en := entry.Unwrap()
	qty := en.PositionQty
	if qty <= 0 {
		qty = en.Quantity
	}
	if qty <= 0 {
		return
	}

	out := e.resolve(ctx, ticker)
	if ctx.Err() != nil {
		return
	}
	s := domain.Settlement{
		Ticker:    ticker,
		Side:      en.Side,
		Quantity:  qty,
		CostCents: en.PriceCents * qty,
	}
	if out.Winner == en.Side {
		s.PayoutCents = 100 * qty
	}
	e.recordSettlement(ctx, s, out)
}

// recordSettlement guarda el trade SETTLED y su snapshot.
func (e *Engine) recordSettlement(ctx context.Context, s domain.Settlement, out outcome) {
	label := "confirmed"
	if out.Projected {
		label = "projected"
	}
	result := "WON"
	switch pnl := s.PnLCents(); {
	case pnl < 0:
		result = "LOST"
	case pnl == 0:
		result = "BREAK-EVEN"
	}
	msg := fmt.Sprintf("settled %s: %dx %s -> %s (%s, payout %s, cost %s, pnl %s)",
		s.Ticker, s.Quantity, s.Side, result, label, dollars(s.PayoutCents), dollars(s.CostCents), dollars(s.PnLCents()))
	slog.Info("engine: "+msg, "ticker", s.Ticker)
	e.logEvent(ctx, "TRADE", msg)

	if e.store == nil {
		return
	}
	settlePrice := 0
	if s.Quantity > 0 {
		settlePrice = s.PayoutCents / s.Quantity
	}
	orderID := "settle-" + uuid.NewString()
	_, err := e.store.RecordTrade(ctx, domain.TradeRecord{
		At:       e.now(),
		MarketID: e.marketID(s.Ticker),
		Side:     s.Side,
		Action:   "SETTLED",
		Price:    float64(settlePrice) / 100,
		Quantity: s.Quantity,
		OrderID:  orderID,
		ExitType: domain.ExitSettle,
	})
	if err != nil {
		slog.Warn("engine: record settlement failed", "ticker", s.Ticker, "err", err)
	}

	e.recordSnapshot(ctx, nil, domain.Snapshot{
		TradeID:     orderID,
		MarketID:    e.marketID(s.Ticker),
		Action:      string(domain.ExitSettle),
		Side:        s.Side,
		PriceCents:  settlePrice,
		Quantity:    s.Quantity,
		Decision:    string(domain.ExitSettle),
		TriggerType: "settlement",
		PositionQty: s.Quantity,
		PnLCents:    optional.Some(float64(s.PnLCents())),
	}, true)
}
