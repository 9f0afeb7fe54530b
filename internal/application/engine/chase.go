package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

const (
	chaseRetries  = 3
	chaseInterval = time.Second
)

// chasePrice escala el límite hacia el lado lejano del spread: punto medio,
// dos tercios y cruce completo. Para NO se calcula en precios de NO.
func chasePrice(side domain.Side, attempt, bid, ask int) int {
	lo, hi := bid, ask
	if side == domain.SideNo {
		lo, hi = 100-ask, 100-bid
	}
	var p int
	switch attempt {
	case 1:
		p = (lo + hi + 1) / 2
	case 2:
		p = lo + (hi-lo)*2/3
	default:
		p = hi
	}
	return domain.ClampCents(p)
}

// chase persigue el fill de una entrada que no se llenó del todo. En paper
// se recoloca lo pendiente mientras quede; en live se consulta la orden y,
// si sigue en reposo, se cancela y se recoloca. Si ctx se cancela a mitad,
// la orden queda como esté para la conciliación.
func (e *Engine) chase(ctx context.Context, ticker string, order domain.Order, side domain.Side, price, qty int) {
	remaining := order.RemainingCount
	if e.cfg.Paper && remaining <= 0 {
		return
	}
	current := order

	for attempt := 1; attempt <= chaseRetries; attempt++ {
		if err := e.sleep(ctx, chaseInterval); err != nil {
			return
		}

		if !e.cfg.Paper {
			o, err := e.broker.GetOrder(ctx, current.ID)
			if err != nil {
				slog.Warn("engine: fill check failed", "order", current.ID, "err", err)
				return
			}
			if !o.Resting() {
				return
			}
			remaining = o.RemainingCount
			if err := e.broker.CancelOrder(ctx, current.ID); err != nil {
				slog.Debug("engine: cancel before retry failed", "order", current.ID, "err", err)
			}
		}

		book := e.refreshBook(ctx, ticker)
		next := chasePrice(side, attempt, book.BestBid(), book.BestAsk())
		slog.Info("engine: chasing fill", "ticker", ticker, "attempt", attempt, "side", side,
			"price", next, "was", price, "remaining", remaining)

		o, err := e.place(ctx, domain.OrderRequest{
			Ticker:     ticker,
			Action:     domain.ActionBuy,
			Side:       side,
			PriceCents: next,
			Quantity:   remaining,
		})
		if err != nil {
			return
		}
		current = o
		if o.FilledCount > 0 {
			now := e.now()
			e.updateExit(ticker, func(s *domain.ExitState) { s.AdoptResting(now) })
		}
		if e.cfg.Paper {
			remaining = o.RemainingCount
			if remaining <= 0 {
				return
			}
		}
	}
	slog.Debug("engine: chase finished", "ticker", ticker, "order", current.ID, "qty", qty)
}

// refreshBook prefiere el libro del stream y cae al REST.
func (e *Engine) refreshBook(ctx context.Context, ticker string) domain.OrderBook {
	if e.books != nil {
		if ob, err := e.books.Read(ticker, bookMaxAge); err == nil {
			if obs, ok := e.broker.(bookObserver); ok {
				obs.ObserveBook(ob)
			}
			return ob
		}
	}
	ob, err := e.broker.OrderBook(ctx, ticker)
	if err != nil {
		slog.Warn("engine: order book refresh failed", "ticker", ticker, "err", err)
		return domain.OrderBook{Ticker: ticker}
	}
	return ob
}
