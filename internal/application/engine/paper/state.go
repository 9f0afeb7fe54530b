package paper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/shopspring/decimal"
)

// Claves de settings del estado de paper.
const (
	keyBalance    = "paper_balance"
	keyPositions  = "paper_positions"
	keyLastTicker = "paper_last_ticker"
)

type positionState struct {
	Side     domain.Side `json:"side"`
	Quantity int         `json:"quantity"`
	AvgCost  float64     `json:"avg_price_cents"`
	Exposure int         `json:"market_exposure_cents"`
}

// persist guarda saldo, posiciones y último ticker. Requiere b.mu.
func (b *Broker) persist(ctx context.Context) error {
	state := make(map[string]positionState, len(b.positions))
	for t, p := range b.positions {
		state[t] = positionState{Side: p.Side, Quantity: p.Quantity, AvgCost: p.AvgCost, Exposure: p.Exposure}
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal positions: %w", err)
	}

	if err := b.settings.SetSetting(ctx, keyBalance, b.balance.String()); err != nil {
		return err
	}
	if err := b.settings.SetSetting(ctx, keyPositions, string(raw)); err != nil {
		return err
	}
	return b.settings.SetSetting(ctx, keyLastTicker, b.lastTicker)
}

// restore carga el estado guardado. Valores corruptos se ignoran.
func (b *Broker) restore(ctx context.Context) error {
	bal, err := b.settings.GetSetting(ctx, keyBalance)
	if err != nil {
		return err
	}
	if bal.IsSome() {
		if d, err := decimal.NewFromString(bal.Unwrap()); err == nil {
			b.balance = d
			slog.Info("paper: restored balance", "balance", d.StringFixed(2))
		} else {
			slog.Warn("paper: ignoring stored balance", "value", bal.Unwrap(), "err", err)
		}
	}

	raw, err := b.settings.GetSetting(ctx, keyPositions)
	if err != nil {
		return err
	}
	if raw.IsSome() && raw.Unwrap() != "" {
		var state map[string]positionState
		if err := json.Unmarshal([]byte(raw.Unwrap()), &state); err != nil {
			slog.Warn("paper: ignoring stored positions", "err", err)
		} else {
			for t, s := range state {
				if s.Quantity <= 0 {
					continue
				}
				b.positions[t] = &domain.Position{
					Ticker: t, Side: s.Side, Quantity: s.Quantity, AvgCost: s.AvgCost, Exposure: s.Exposure,
				}
			}
			if len(b.positions) > 0 {
				slog.Info("paper: restored positions", "count", len(b.positions))
			}
		}
	}

	last, err := b.settings.GetSetting(ctx, keyLastTicker)
	if err != nil {
		return err
	}
	b.lastTicker = last.TakeOr("")
	return nil
}
