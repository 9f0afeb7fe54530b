package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alejandrodnm/kalshibot/internal/adapters/notify"
	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/ports"
	"github.com/urfave/cli/v3"
)

func statusAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	rt, err := newRuntime(ctx, cfg, store)
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	console := notify.NewConsole(false)

	fmt.Printf("env=%s series=%s trading=%v\n", cfg.Kalshi.Env, cfg.Kalshi.Series, rt.Snapshot().TradingEnabled)
	m, ok, err := client.ActiveMarket(ctx, cfg.Kalshi.Series, float64(rt.Snapshot().MinSecondsToClose))
	switch {
	case err != nil:
		slog.Warn("status: active market lookup failed", "err", err)
	case !ok:
		fmt.Println("no open market")
	default:
		strike := domain.ExtractStrike(m)
		fmt.Printf("active: %s strike=%.2f closes in %.0fs\n", m.Ticker, strike.TakeOr(0), m.SecondsToClose(time.Now()))
	}

	trades, err := store.RecentTrades(ctx, int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	console.PrintTrades(trades)

	unsettled, err := store.UnsettledMarkets(ctx)
	if err != nil {
		return err
	}
	if len(unsettled) > 0 {
		fmt.Printf("\nopen entries without exit: %s\n", strings.Join(unsettled, ", "))
	}

	if !cmd.Bool("reconcile") {
		return nil
	}

	var broker ports.Broker = client
	if cfg.Kalshi.Paper() {
		pb, err := newPaperBroker(ctx, client, store, rt)
		if err != nil {
			return err
		}
		broker = pb
	}

	tickers := cmd.Args().Slice()
	if len(tickers) == 0 {
		tickers = tradedTickers(trades)
	}
	results := make([]domain.MarketPnL, 0, len(tickers))
	for _, ticker := range tickers {
		fills, err := broker.Fills(ctx, ticker)
		if err != nil {
			slog.Warn("status: fills fetch failed", "ticker", ticker, "err", err)
			continue
		}
		result := ""
		if market, err := broker.GetMarket(ctx, ticker); err == nil {
			result = market.Result
		}
		results = append(results, domain.ReconcileFills(ticker, fills, result))
	}
	console.PrintReconcile(results)
	return nil
}

// tradedTickers devuelve los tickers de los trades, sin repetir y sin el
// prefijo de paper.
func tradedTickers(trades []domain.TradeRecord) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range trades {
		ticker := strings.TrimPrefix(t.MarketID, domain.PaperPrefix)
		if ticker == "" || seen[ticker] {
			continue
		}
		seen[ticker] = true
		out = append(out, ticker)
	}
	return out
}
