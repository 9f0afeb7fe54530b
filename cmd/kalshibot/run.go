package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/kalshibot/config"
	"github.com/alejandrodnm/kalshibot/internal/adapters/kalshi"
	"github.com/alejandrodnm/kalshibot/internal/adapters/notify"
	"github.com/alejandrodnm/kalshibot/internal/adapters/storage"
	"github.com/alejandrodnm/kalshibot/internal/adapters/venues"
	"github.com/alejandrodnm/kalshibot/internal/alpha"
	"github.com/alejandrodnm/kalshibot/internal/application/engine"
	"github.com/alejandrodnm/kalshibot/internal/application/engine/paper"
	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/feed"
	"github.com/alejandrodnm/kalshibot/internal/orderbook"
	"github.com/alejandrodnm/kalshibot/internal/ports"
	"github.com/alejandrodnm/kalshibot/internal/strategy"
	"github.com/urfave/cli/v3"
)

func runAction(ctx context.Context, cmd *cli.Command) error {
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
	tunables := rt.Snapshot
	paperMode := cfg.Kalshi.Paper()

	slog.Info("kalshibot starting",
		"env", cfg.Kalshi.Env,
		"series", cfg.Kalshi.Series,
		"trading", tunables().TradingEnabled,
		"strategy", cmd.String("strategy"),
		"dsn", cfg.Storage.DSN,
	)

	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	var broker ports.Broker = client
	if paperMode {
		pb, err := newPaperBroker(ctx, client, store, rt)
		if err != nil {
			return err
		}
		broker = pb
	}

	strategies := strategy.NewRegistry(strategy.NewRules(tunables), strategy.NewPassive())
	strat, err := strategies.Get(cmd.String("strategy"))
	if err != nil {
		return err
	}

	status := feed.NewStatus()
	books := orderbook.NewStore()
	venueCfgs := domain.FilterVenues(domain.DefaultVenues(), cfg.Feeds.Venues)
	monitor := alpha.NewMonitor(venueCfgs, status, tunables)

	conns, err := venues.Connections(venueCfgs, monitor, status, func() *feed.Backoff { return newBackoff(cfg.Feeds) })
	if err != nil {
		return err
	}
	manager := feed.NewManager(conns...)

	var stream *kalshi.Stream
	if signer := client.Signer(); signer != nil {
		// los fills los registra el motor al colocar; el stream solo mantiene libros
		stream = kalshi.NewStream(cfg.Kalshi.WSHost, signer, books, nil, status)
		manager.Add(feed.NewConnection(stream, status, newBackoff(cfg.Feeds)))
	} else {
		slog.Warn("kalshibot: no API key, order book stream disabled")
	}

	eng := engine.New(
		engine.Config{Series: cfg.Kalshi.Series, Paper: paperMode},
		broker,
		monitor,
		books,
		bookSubscriber(stream),
		strat,
		store,
		tunables,
		notify.NewConsole(true),
	)

	feedCtx, stopFeeds := context.WithCancel(ctx)
	feedsDone := make(chan error, 1)
	go func() { feedsDone <- manager.Run(feedCtx) }()

	if cmd.Bool("once") {
		// dar tiempo a los feeds para el primer precio
		sleepOrDone(ctx, 5*time.Second)
		err = eng.RunOnce(ctx)
	} else {
		err = eng.Run(ctx)
	}

	stopFeeds()
	if ferr := <-feedsDone; ferr != nil {
		slog.Warn("kalshibot: feeds stopped with error", "err", ferr)
	}
	eng.Wait()

	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	slog.Info("kalshibot stopped cleanly")
	return nil
}

// newRuntime crea los tunables de runtime y restaura los persistidos.
func newRuntime(ctx context.Context, cfg *config.Config, store *storage.SQLiteStorage) (*config.Runtime, error) {
	rt, err := config.NewRuntime(cfg.Trading, store)
	if err != nil {
		return nil, err
	}
	if err := rt.Restore(ctx); err != nil {
		return nil, err
	}
	return rt, nil
}

// newClient crea el cliente REST. Sin credenciales solo sirve en paper: los
// endpoints de mercado son públicos.
func newClient(cfg *config.Config) (*kalshi.Client, error) {
	var signer *kalshi.Signer
	if cfg.Kalshi.APIKeyID != "" {
		s, err := kalshi.LoadSigner(cfg.Kalshi.APIKeyID, cfg.Kalshi.PrivateKeyPEM, cfg.Kalshi.PrivateKeyPath)
		if err != nil {
			return nil, err
		}
		signer = s
	} else if !cfg.Kalshi.Paper() {
		return nil, fmt.Errorf("live mode requires KALSHI_API_KEY_ID and a private key")
	}
	timeout := time.Duration(cfg.Kalshi.TimeoutSeconds) * time.Second
	return kalshi.NewClient(cfg.Kalshi.Host, signer, cfg.Kalshi.RatePerSecond, timeout), nil
}

func newPaperBroker(ctx context.Context, client *kalshi.Client, store *storage.SQLiteStorage, rt *config.Runtime) (*paper.Broker, error) {
	pb, err := paper.NewBroker(ctx, client, store, rt.Snapshot)
	if err != nil {
		return nil, err
	}
	slog.Info("kalshibot: paper trading", "last_ticker", pb.LastTicker())
	return pb, nil
}

func newBackoff(f config.FeedsConfig) *feed.Backoff {
	return feed.NewBackoff(f.ReconnectBase(), f.ReconnectMax(), f.Jitter)
}

// bookSubscriber evita pasar un *Stream nil envuelto en la interfaz.
func bookSubscriber(s *kalshi.Stream) ports.BookSubscriber {
	if s == nil {
		return nil
	}
	return s
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
