package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/kalshibot/config"
	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/ports"
)

const (
	// bookMaxAge es la antigüedad máxima del libro del stream; más viejo se
	// pide por REST.
	bookMaxAge = 5 * time.Second

	leadVenue       = "binance"
	settlementVenue = "coinbase"
)

// errCycleStopped corta el ciclo sin ser un error: una guarda o una salida
// ya decidieron el resultado.
var errCycleStopped = errors.New("engine: cycle stopped")

// Config holds the fixed engine settings.
type Config struct {
	Series string
	Paper  bool
}

// bookObserver lo implementa el broker de paper para simular contra el
// libro del stream.
type bookObserver interface {
	ObserveBook(ob domain.OrderBook)
}

// Engine ejecuta el ciclo de decisión sobre el contrato activo: guardas,
// salidas, entrada y persecución de fills.
type Engine struct {
	cfg      Config
	broker   ports.Broker
	settler  ports.Settler
	signals  ports.Alpha
	books    ports.BookSource
	stream   ports.BookSubscriber
	strategy ports.Strategy
	store    ports.Store
	tunables func() config.Tunables
	notifier ports.Notifier

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu         sync.Mutex
	exits      map[string]*domain.ExitState
	lastTicker string
	breaker    domain.DailyLossBreaker

	settling sync.WaitGroup
}

// New crea el motor. signals, books y stream pueden ser nil: sin ellos el
// motor opera solo con datos REST y la estrategia decide sin alpha.
func New(
	cfg Config,
	broker ports.Broker,
	signals ports.Alpha,
	books ports.BookSource,
	stream ports.BookSubscriber,
	strategy ports.Strategy,
	store ports.Store,
	tunables func() config.Tunables,
	notifier ports.Notifier,
) *Engine {
	e := &Engine{
		cfg:      cfg,
		broker:   broker,
		signals:  signals,
		books:    books,
		stream:   stream,
		strategy: strategy,
		store:    store,
		tunables: tunables,
		notifier: notifier,
		now:      time.Now,
		sleep:    sleepCtx,
		exits:    make(map[string]*domain.ExitState),
	}
	if s, ok := broker.(ports.Settler); ok {
		e.settler = s
	}
	return e
}

// WithClock sustituye el reloj (tests).
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// WithSleep sustituye las esperas de la persecución y la liquidación (tests).
func (e *Engine) WithSleep(fn func(ctx context.Context, d time.Duration) error) *Engine {
	e.sleep = fn
	return e
}

// Run ejecuta RunOnce cada POLL_INTERVAL_SECONDS hasta que ctx se cancela.
// Un ciclo fallido se loguea y no detiene el loop.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine: started", "series", e.cfg.Series, "paper", e.cfg.Paper)

	cycle := 0
	for {
		cycle++
		if err := e.RunOnce(ctx); err != nil && ctx.Err() == nil {
			slog.Error("engine: cycle failed", "cycle", cycle, "err", err)
			e.logEvent(ctx, "ERROR", fmt.Sprintf("cycle error: %v", err))
		}

		interval := time.Duration(e.tunables().PollIntervalSeconds) * time.Second
		if err := e.sleep(ctx, interval); err != nil {
			slog.Info("engine: stopped", "cycles", cycle)
			return nil
		}
	}
}

// Wait bloquea hasta que terminan las liquidaciones en segundo plano.
func (e *Engine) Wait() { e.settling.Wait() }

// RunOnce ejecuta un ciclo completo de decisión.
func (e *Engine) RunOnce(ctx context.Context) error {
	c := &cycle{t: e.tunables(), now: e.now()}
	c.status = domain.CycleStatus{At: c.now, Paper: e.cfg.Paper, Trading: c.t.TradingEnabled}

	err := e.runCycle(ctx, c)
	if errors.Is(err, errCycleStopped) {
		err = nil
	}
	if err != nil {
		c.status.Action = "error: " + err.Error()
	}
	if e.signals != nil {
		c.status.Venues = e.signals.Venues()
	}
	if e.notifier != nil {
		if rerr := e.notifier.Report(ctx, c.status); rerr != nil {
			slog.Warn("engine: report failed", "err", rerr)
		}
	}
	return err
}

func (e *Engine) runCycle(ctx context.Context, c *cycle) error {
	balance, err := e.broker.Balance(ctx)
	if err != nil {
		return fmt.Errorf("engine.RunOnce: balance: %w", err)
	}
	c.balance = balance
	c.status.Balance = balance

	if err := e.loadMarket(ctx, c); err != nil {
		return err
	}
	e.rollover(ctx, c.ticker)

	if e.stream != nil && e.stream.Connected() {
		if err := e.stream.SubscribeOrderBook(ctx, c.ticker); err != nil {
			slog.Debug("engine: order book subscribe failed", "ticker", c.ticker, "err", err)
		}
	}

	if err := e.loadPositions(ctx, c); err != nil {
		return err
	}
	if c.hasPos {
		now := c.now
		e.updateExit(c.ticker, func(s *domain.ExitState) { s.AdoptResting(now) })
	}

	if !e.breaker.Started() {
		e.breaker.Start(c.balance, c.exposure)
		slog.Info("engine: session start", "balance", dollars(c.balance), "exposure", dollars(c.exposure))
	}
	if !e.breaker.IsOpen(c.balance, c.exposure, c.t.MaxDailyLossPct) {
		pnl := e.breaker.SettledPnL(c.balance, c.exposure)
		return e.guard(ctx, c, fmt.Sprintf("daily loss limit hit (%s)", dollars(pnl)))
	}

	e.loadBook(ctx, c)
	e.evaluate(c)

	if c.hasPos && c.t.TradingEnabled {
		if err := e.runExits(ctx, c); err != nil {
			return err
		}
	}

	if c.secsLeft < float64(c.t.MinSecondsToClose) {
		if err := e.broker.CancelAll(ctx); err != nil {
			slog.Warn("engine: cancel all failed", "err", err)
		}
		return e.guard(ctx, c, fmt.Sprintf("time guard: %.0fs left", c.secsLeft))
	}
	if !c.spreadOK {
		return e.guard(ctx, c, c.spreadReason)
	}

	return e.runEntry(ctx, c)
}

// loadMarket busca el contrato activo de la serie.
func (e *Engine) loadMarket(ctx context.Context, c *cycle) error {
	markets, err := e.broker.OpenMarkets(ctx, e.cfg.Series)
	if err != nil {
		return fmt.Errorf("engine.RunOnce: markets: %w", err)
	}
	m, ok := domain.SelectActive(markets, c.now, float64(c.t.MinSecondsToClose))
	if !ok {
		c.status.Guard = "no open market"
		slog.Info("engine: no active market", "series", e.cfg.Series)
		return errCycleStopped
	}

	c.market = m
	c.ticker = m.Ticker
	c.secsLeft = m.SecondsToClose(c.now)
	c.strike = domain.ExtractStrike(m).TakeOr(0)

	c.status.Ticker = c.ticker
	c.status.SecsLeft = c.secsLeft
	c.status.Strike = c.strike
	return nil
}

func (e *Engine) loadPositions(ctx context.Context, c *cycle) error {
	positions, err := e.broker.Positions(ctx)
	if err != nil {
		return fmt.Errorf("engine.RunOnce: positions: %w", err)
	}
	c.positions = positions
	c.exposure = domain.TotalExposure(positions)
	c.pos, c.hasPos = domain.FindPosition(positions, c.ticker)

	c.status.Exposure = c.exposure
	c.status.Position = c.pos
	c.status.HasPosition = c.hasPos
	return nil
}

// loadBook pide el libro por REST y, si falla, usa el del stream. Sin
// ninguno de los dos el libro queda vacío y la guarda de spread lo bloquea.
func (e *Engine) loadBook(ctx context.Context, c *cycle) {
	ob, err := e.broker.OrderBook(ctx, c.ticker)
	if err != nil {
		slog.Warn("engine: order book fetch failed", "ticker", c.ticker, "err", err)
		ob = domain.OrderBook{Ticker: c.ticker}
		if e.books != nil {
			if live, lerr := e.books.Read(c.ticker, bookMaxAge); lerr == nil {
				ob = live
				if obs, ok := e.broker.(bookObserver); ok {
					obs.ObserveBook(live)
				}
			}
		}
	}
	c.book = ob
	c.bestBid = ob.BestBid()
	c.bestAsk = ob.BestAsk()
	c.spreadOK, c.spreadReason = spreadGuard(ob, c.t.MaxSpreadCents)

	c.status.BestBid = c.bestBid
	c.status.BestAsk = c.bestAsk
}

// evaluate calcula mark-to-market, valor justo y edges del ciclo.
func (e *Engine) evaluate(c *cycle) {
	if e.signals != nil && c.strike > 0 && c.secsLeft > 0 {
		c.fair = e.signals.FairValue(c.strike, c.secsLeft)
		c.hasFair = true
		c.yesEdge = c.fair.Cents - c.bestAsk
		c.noEdge = (100 - c.fair.Cents) - (100 - c.bestBid)
	}

	c.status.FairYes = c.fair.Cents
	c.status.YesEdge = c.yesEdge
	c.status.NoEdge = c.noEdge
	c.status.Projected = c.fair.Projected

	c.snap = domain.MarketContext{
		StrikePrice:  c.strike,
		BTCvsStrike:  c.fair.BTCvsStrike,
		SecsLeft:     c.secsLeft,
		TimeFactor:   domain.TimeFactor(c.secsLeft, 900),
		BestBid:      c.bestBid,
		BestAsk:      c.bestAsk,
		Spread:       c.bestAsk - c.bestBid,
		FairYesCents: c.fair.Cents,
		FairYesProb:  c.fair.Prob,
		YesEdge:      c.yesEdge,
		NoEdge:       c.noEdge,
		Balance:      float64(c.balance) / 100,
		Exposure:     float64(c.exposure) / 100,
	}
	if e.signals == nil {
		return
	}
	vol := e.signals.Volatility()
	vel := e.signals.Velocity()
	c.snap.BTCPrice = e.signals.WeightedGlobalPrice()
	c.snap.VolDollarPerMin = vol.DollarPerMin
	c.snap.VolRegime = vol.Regime
	c.snap.DeltaMomentum = e.signals.Momentum()
	c.snap.Velocity1m = vel.OneMin.PerSecond
	c.snap.Direction1m = vel.OneMin.Direction
	c.snap.PriceChange1m = vel.OneMin.Change

	c.status.BTCPrice = c.snap.BTCPrice
	c.status.Regime = vol.Regime
	c.status.Momentum = c.snap.DeltaMomentum
}

// guard registra una guarda que corta el ciclo.
func (e *Engine) guard(ctx context.Context, c *cycle, reason string) error {
	c.status.Guard = reason
	slog.Info("engine: guard", "ticker", c.ticker, "reason", reason)
	e.logEvent(ctx, "GUARD", reason)
	return errCycleStopped
}

// logEvent persiste un evento en la tabla logs. Los fallos solo se loguean.
func (e *Engine) logEvent(ctx context.Context, level, msg string) {
	if e.store == nil {
		return
	}
	if err := e.store.Log(ctx, level, msg); err != nil {
		slog.Debug("engine: persist log failed", "err", err)
	}
}

func (e *Engine) marketID(ticker string) string {
	if e.cfg.Paper {
		return domain.PaperPrefix + ticker
	}
	return ticker
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func dollars(cents int) string {
	return fmt.Sprintf("$%.2f", float64(cents)/100)
}
