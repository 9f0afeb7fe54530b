package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/alejandrodnm/kalshibot/config"
	"github.com/alejandrodnm/kalshibot/internal/domain"
)

// cycle es el estado de un ciclo de decisión.
type cycle struct {
	t   config.Tunables
	now time.Time

	market   domain.Market
	ticker   string
	strike   float64
	secsLeft float64

	balance   int
	exposure  int
	positions []domain.BrokerPosition
	pos       domain.BrokerPosition
	hasPos    bool

	book         domain.OrderBook
	bestBid      int
	bestAsk      int
	spreadOK     bool
	spreadReason string

	fair    domain.FairValue
	hasFair bool
	yesEdge int
	noEdge  int

	snap   domain.MarketContext
	status domain.CycleStatus
}

// edge devuelve el edge del lado pedido.
func (c *cycle) edge(side domain.Side) int {
	if side == domain.SideYes {
		return c.yesEdge
	}
	return c.noEdge
}

// exitState devuelve una copia del estado de salida de un ticker.
func (e *Engine) exitState(ticker string) domain.ExitState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.exits[ticker]; ok {
		return *s
	}
	return domain.ExitState{}
}

// updateExit modifica el estado de salida de un ticker bajo el mutex.
func (e *Engine) updateExit(ticker string, fn func(s *domain.ExitState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.exits[ticker]
	if !ok {
		s = &domain.ExitState{}
		e.exits[ticker] = s
	}
	fn(s)
}

// rollover detecta el cambio de contrato: borra el estado de salida, reinicia
// la ventana del contrato en el modelo y lanza la liquidación del contrato
// anterior en segundo plano. En paper, el primer ciclo liquida también las
// posiciones que quedaron de una ejecución anterior.
func (e *Engine) rollover(ctx context.Context, ticker string) {
	e.mu.Lock()
	prev := e.lastTicker
	changed := prev != ticker
	if changed {
		e.lastTicker = ticker
		e.exits = make(map[string]*domain.ExitState)
	}
	e.mu.Unlock()

	if !changed {
		return
	}
	if e.signals != nil {
		e.signals.ResetContract()
	}
	if prev != "" {
		slog.Info("engine: contract rollover", "from", prev, "to", ticker)
		e.logEvent(ctx, "INFO", "contract transition: "+prev+" -> "+ticker)
	}

	switch {
	case e.settler != nil:
		if expired := e.settler.Expired(ticker); len(expired) > 0 {
			e.goSettle(ctx, func(ctx context.Context) { e.settlePaper(ctx, expired) })
		}
	case prev != "":
		e.goSettle(ctx, func(ctx context.Context) { e.settleLive(ctx, prev) })
	}
}

func (e *Engine) goSettle(ctx context.Context, fn func(ctx context.Context)) {
	e.settling.Add(1)
	go func() {
		defer e.settling.Done()
		fn(ctx)
	}()
}
