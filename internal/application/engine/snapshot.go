package engine

import (
	"context"
	"log/slog"

	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/google/uuid"
	"github.com/moznion/go-optional"
)

// recordSnapshot guarda el contexto completo de una entrada, salida o
// liquidación. Con exit, añade precio de entrada y tiempo en posición a
// partir del último BUY registrado. Los fallos solo se loguean.
func (e *Engine) recordSnapshot(ctx context.Context, c *cycle, s domain.Snapshot, exit bool) {
	if e.store == nil {
		return
	}
	s.At = e.now()
	if s.TradeID == "" {
		s.TradeID = "snap-" + uuid.NewString()
	}
	if c != nil {
		s.MarketID = e.marketID(c.ticker)
		s.MarketContext = c.snap
	}

	if exit {
		entry, err := e.store.EntrySnapshot(ctx, s.MarketID)
		if err != nil {
			slog.Debug("engine: entry snapshot lookup failed", "market", s.MarketID, "err", err)
		}
		if err == nil && entry.IsSome() {
			en := entry.Unwrap()
			s.EntryPrice = optional.Some(en.PriceCents)
			s.HoldDuration = optional.Some(round1(s.At.Sub(en.At).Seconds()))
		}
	}

	if err := e.store.RecordSnapshot(ctx, s); err != nil {
		slog.Debug("engine: record snapshot failed", "market", s.MarketID, "err", err)
	}
}
