package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alejandrodnm/kalshibot/config"
	"github.com/alejandrodnm/kalshibot/internal/adapters/storage"
	"github.com/urfave/cli/v3"
)

// envSetting es el setting persistido que elige demo o live. Gana sobre
// config.yaml y KALSHI_ENV.
const envSetting = "env"

func main() {
	cmd := &cli.Command{
		Name:  "kalshibot",
		Usage: "Kalshi BTC 15-minute contract trader",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
				Value:   "config/config.yaml",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "set log level to debug",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "log format: text|json (overrides config)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the trading loop until interrupted",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "strategy",
						Usage: "entry strategy: rules|passive",
						Value: "rules",
					},
					&cli.BoolFlag{
						Name:  "once",
						Usage: "run one cycle and exit",
					},
				},
				Action: runAction,
			},
			{
				Name:  "status",
				Usage: "print the active market and recent trades",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "reconcile",
						Usage: "compute P&L per market from broker fills (tickers as args, default: recent trades)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "number of recent trades to show",
						Value: 20,
					},
				},
				Action: statusAction,
			},
			{
				Name:   "reset-paper",
				Usage:  "reset the paper account to the starting balance",
				Action: resetPaperAction,
			},
			{
				Name:      "set",
				Usage:     "update a tunable (or env=demo|live) and persist it",
				ArgsUsage: "KEY VALUE",
				Action:    setAction,
			},
		},
		DefaultCommand: "run",
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("kalshibot exited with error", "err", err)
		os.Exit(1)
	}
}

// loadConfig carga la configuración y deja listo el logger.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	path := cmd.String("config")
	if _, err := os.Stat(path); err != nil {
		// sin archivo: defaults + entorno
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if cmd.Bool("verbose") {
		cfg.Log.Level = "debug"
	}
	if f := cmd.String("format"); f != "" {
		cfg.Log.Format = f
	}
	setupLogger(cfg.Log)
	return cfg, nil
}

// openStorage abre la base de datos y aplica el entorno persistido.
func openStorage(ctx context.Context, cfg *config.Config) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("open storage %q: %w", cfg.Storage.DSN, err)
	}
	saved, err := store.GetSetting(ctx, envSetting)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("read env setting: %w", err)
	}
	if saved.IsSome() {
		cfg.Kalshi.Env = saved.Unwrap()
	}
	return store, nil
}

func resetPaperAction(ctx context.Context, cmd *cli.Command) error {
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
	pb, err := newPaperBroker(ctx, client, store, rt)
	if err != nil {
		return err
	}
	if err := pb.Reset(ctx); err != nil {
		return err
	}
	fmt.Printf("paper account reset to $%.2f\n", rt.Snapshot().PaperStartingBalance)
	return nil
}

func setAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("usage: kalshibot set KEY VALUE")
	}
	key, value := cmd.Args().Get(0), cmd.Args().Get(1)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if strings.EqualFold(key, envSetting) {
		value = strings.ToLower(value)
		if value != "demo" && value != "live" {
			return fmt.Errorf("env must be demo or live, got %q", value)
		}
		if err := store.SetSetting(ctx, envSetting, value); err != nil {
			return err
		}
		fmt.Printf("env = %s (takes effect on next run)\n", value)
		return nil
	}

	rt, err := newRuntime(ctx, cfg, store)
	if err != nil {
		return err
	}
	if err := rt.Update(ctx, key, value); err != nil {
		return err
	}
	current, _ := rt.Snapshot().Get(strings.ToUpper(key))
	fmt.Printf("%s = %s\n", strings.ToUpper(key), current)
	return nil
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
