package venues

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/alejandrodnm/kalshibot/internal/domain"
)

// aggTradeServe es la firma de futures.WsAggTradeServe, inyectable en tests.
type aggTradeServe func(symbol string, handler futures.WsAggTradeHandler, errHandler futures.ErrHandler) (doneC, stopC chan struct{}, err error)

// Binance es el feed de Binance Futures (aggTrade de BTCUSDT). El transporte
// lo gestiona go-binance, así que implementa feed.Streamer.
type Binance struct {
	cfg    domain.VenueConfig
	symbol string
	serve  aggTradeServe
	sink   Sink
	now    func() time.Time
}

// NewBinance crea el feed de Binance.
func NewBinance(cfg domain.VenueConfig, sink Sink) *Binance {
	return &Binance{
		cfg:    cfg,
		symbol: "BTCUSDT",
		serve:  futures.WsAggTradeServe,
		sink:   sink,
		now:    time.Now,
	}
}

func (b *Binance) ID() string { return b.cfg.ID }

// Stream abre el stream y bloquea hasta que se cierra o se cancela ctx.
func (b *Binance) Stream(ctx context.Context, connected func()) error {
	errC := make(chan error, 1)
	doneC, stopC, err := b.serve(b.symbol, b.onTrade, func(err error) {
		select {
		case errC <- err:
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("venues.binance: serve: %w", err)
	}
	connected()

	select {
	case <-ctx.Done():
		close(stopC)
		<-doneC
		return nil
	case <-doneC:
		select {
		case err := <-errC:
			return fmt.Errorf("venues.binance: stream: %w", err)
		default:
			return fmt.Errorf("venues.binance: stream closed")
		}
	}
}

func (b *Binance) onTrade(event *futures.WsAggTradeEvent) {
	price, err := strconv.ParseFloat(event.Price, 64)
	if err != nil {
		slog.Debug("venues: bad binance price", "price", event.Price, "err", err)
		return
	}
	if err := publish(b.sink, b.cfg.ID, price, b.now()); err != nil {
		slog.Debug("venues: binance trade ignored", "err", err)
	}
}
