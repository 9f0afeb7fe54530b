package paper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/alejandrodnm/kalshibot/config"
	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/ports"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrRejected es una orden simulada que no se pudo ejecutar (sin saldo, sin
// posición o sin liquidez).
var ErrRejected = errors.New("paper: order rejected")

// MarketData es la parte de solo lectura del broker real que usa paper.
type MarketData interface {
	OpenMarkets(ctx context.Context, series string) ([]domain.Market, error)
	OrderBook(ctx context.Context, ticker string) (domain.OrderBook, error)
	GetMarket(ctx context.Context, ticker string) (domain.Market, error)
}

var (
	_ ports.Broker  = (*Broker)(nil)
	_ ports.Settler = (*Broker)(nil)
)

// Broker simula cartera y órdenes sobre datos de mercado reales.
type Broker struct {
	data     MarketData
	settings ports.Settings
	tunables func() config.Tunables

	mu         sync.Mutex
	balance    decimal.Decimal // dólares
	positions  map[string]*domain.Position
	books      map[string]domain.OrderBook
	orders     map[string]domain.Order
	fills      []domain.Fill
	lastTicker string
}

// NewBroker crea el broker de paper y restaura el estado persistido.
func NewBroker(ctx context.Context, data MarketData, settings ports.Settings, tunables func() config.Tunables) (*Broker, error) {
	b := &Broker{
		data:      data,
		settings:  settings,
		tunables:  tunables,
		balance:   decimal.NewFromFloat(tunables().PaperStartingBalance),
		positions: make(map[string]*domain.Position),
		books:     make(map[string]domain.OrderBook),
		orders:    make(map[string]domain.Order),
	}
	if err := b.restore(ctx); err != nil {
		return nil, fmt.Errorf("paper.NewBroker: %w", err)
	}
	return b, nil
}

// Balance devuelve el saldo simulado en centavos.
func (b *Broker) Balance(_ context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int(b.balance.Shift(2).IntPart()), nil
}

// OpenMarkets delega en el broker real.
func (b *Broker) OpenMarkets(ctx context.Context, series string) ([]domain.Market, error) {
	return b.data.OpenMarkets(ctx, series)
}

// GetMarket delega en el broker real.
func (b *Broker) GetMarket(ctx context.Context, ticker string) (domain.Market, error) {
	return b.data.GetMarket(ctx, ticker)
}

// OrderBook delega en el broker real y guarda el libro para simular fills.
func (b *Broker) OrderBook(ctx context.Context, ticker string) (domain.OrderBook, error) {
	ob, err := b.data.OrderBook(ctx, ticker)
	if err != nil {
		return domain.OrderBook{}, err
	}
	b.ObserveBook(ob)
	return ob, nil
}

// ObserveBook guarda un libro obtenido por otra vía (stream).
func (b *Broker) ObserveBook(ob domain.OrderBook) {
	b.mu.Lock()
	b.books[ob.Ticker] = ob
	b.mu.Unlock()
}

// Positions devuelve las posiciones simuladas con cantidad con signo.
func (b *Broker) Positions(_ context.Context) ([]domain.BrokerPosition, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]domain.BrokerPosition, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, p.Signed())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out, nil
}

// PlaceOrder simula una orden límite contra el último libro del mercado.
func (b *Broker) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.Order, error) {
	book, ok := b.book(req.Ticker)
	if !ok {
		fetched, err := b.data.OrderBook(ctx, req.Ticker)
		if err != nil {
			if req.Action == domain.ActionBuy {
				return domain.Order{}, fmt.Errorf("paper.PlaceOrder: %s: %w", req.Ticker, domain.ErrNoOrderBook)
			}
		} else {
			book, ok = fetched, true
			b.ObserveBook(fetched)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var (
		o   domain.Order
		err error
	)
	if req.Action == domain.ActionBuy {
		o, err = b.buy(req, book)
	} else {
		o, err = b.sell(req, book, ok)
	}
	if err != nil {
		return domain.Order{}, err
	}
	b.orders[o.ID] = o
	b.lastTicker = req.Ticker
	if err := b.persist(ctx); err != nil {
		slog.Warn("paper: persist state failed", "err", err)
	}
	return o, nil
}

func (b *Broker) buy(req domain.OrderRequest, book domain.OrderBook) (domain.Order, error) {
	o := newOrder(req)
	res := SimulateFill(book, domain.ActionBuy, req.Side, req.PriceCents, req.Quantity, b.tunables().PaperFillFraction)
	if res.Resting() {
		// sin liquidez que cruce: la orden queda en el libro como en live
		o.Status = domain.OrderResting
		o.RemainingCount = req.Quantity
		slog.Info("paper: order resting", "ticker", req.Ticker, "side", req.Side,
			"price", req.PriceCents, "qty", req.Quantity)
		return o, nil
	}

	filled := res.Filled
	cost := centsToDollars(res.AvgPrice * filled)
	if cost.GreaterThan(b.balance) {
		affordable := int(b.balance.Shift(2).IntPart()) / res.AvgPrice
		if affordable <= 0 {
			return domain.Order{}, fmt.Errorf("paper.PlaceOrder: need $%s, have $%s: %w",
				cost.StringFixed(2), b.balance.StringFixed(2), ErrRejected)
		}
		filled = affordable
		cost = centsToDollars(res.AvgPrice * filled)
	}
	b.balance = b.balance.Sub(cost)

	pos, ok := b.positions[req.Ticker]
	switch {
	case !ok:
		p := &domain.Position{Ticker: req.Ticker, Side: req.Side}
		p.Add(filled, res.AvgPrice)
		b.positions[req.Ticker] = p
	case pos.Side == req.Side:
		pos.Add(filled, res.AvgPrice)
	default:
		if pos.Reduce(filled) {
			delete(b.positions, req.Ticker)
		}
	}

	o.PriceCents = res.AvgPrice
	o.FilledCount = filled
	o.RemainingCount = req.Quantity - filled
	o.Status = domain.OrderFilled
	if o.RemainingCount > 0 {
		o.Status = domain.OrderPartial
	}
	b.recordFill(o)

	slog.Info("paper: buy filled", "ticker", req.Ticker, "side", req.Side, "qty", filled,
		"avg", res.AvgPrice, "limit", req.PriceCents, "cost", cost.StringFixed(2),
		"balance", b.balance.StringFixed(2))
	return o, nil
}

func (b *Broker) sell(req domain.OrderRequest, book domain.OrderBook, haveBook bool) (domain.Order, error) {
	pos, ok := b.positions[req.Ticker]
	if !ok || pos.Quantity <= 0 || pos.Side != req.Side {
		return domain.Order{}, fmt.Errorf("paper.PlaceOrder: no %s position on %s: %w", req.Side, req.Ticker, ErrRejected)
	}
	want := min(req.Quantity, pos.Quantity)

	filled, avg := want, req.PriceCents
	if haveBook {
		res := SimulateFill(book, domain.ActionSell, req.Side, req.PriceCents, want, b.tunables().PaperFillFraction)
		if res.Resting() {
			return domain.Order{}, fmt.Errorf("paper.PlaceOrder: no liquidity for %s %s @%dc: %w",
				req.ExitType, req.Side, req.PriceCents, ErrRejected)
		}
		filled, avg = res.Filled, res.AvgPrice
	}

	proceeds := centsToDollars(avg * filled)
	b.balance = b.balance.Add(proceeds)
	if pos.Reduce(filled) {
		delete(b.positions, req.Ticker)
	}

	o := newOrder(req)
	o.PriceCents = avg
	o.FilledCount = filled
	o.RemainingCount = want - filled
	o.Status = domain.OrderFilled
	if o.RemainingCount > 0 {
		o.Status = domain.OrderPartial
	}
	b.recordFill(o)

	slog.Info("paper: sell filled", "ticker", req.Ticker, "exit", req.ExitType, "side", req.Side,
		"qty", filled, "avg", avg, "proceeds", proceeds.StringFixed(2), "balance", b.balance.StringFixed(2))
	return o, nil
}

// GetOrder devuelve una orden simulada.
func (b *Broker) GetOrder(_ context.Context, id string) (domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("paper.GetOrder: %s: %w", id, ErrRejected)
	}
	return o, nil
}

// CancelOrder marca una orden como cancelada. Las órdenes que quedaron en
// el libro no reservan saldo, así que no hay nada que devolver.
func (b *Broker) CancelOrder(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok {
		return fmt.Errorf("paper.CancelOrder: %s: %w", id, ErrRejected)
	}
	o.Status = domain.OrderCanceled
	b.orders[id] = o
	return nil
}

// CancelAll cancela todas las órdenes en reposo.
func (b *Broker) CancelAll(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, o := range b.orders {
		if o.Status == domain.OrderResting || o.Status == domain.OrderPartial {
			o.Status = domain.OrderCanceled
			b.orders[id] = o
		}
	}
	return nil
}

// Fills devuelve los fills simulados de un ticker (vacío = todos).
func (b *Broker) Fills(_ context.Context, ticker string) ([]domain.Fill, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.Fill
	for _, f := range b.fills {
		if ticker == "" || f.Ticker == ticker {
			out = append(out, f)
		}
	}
	return out, nil
}

// Expired devuelve los tickers con posición distintos de current.
func (b *Broker) Expired(current string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for t := range b.positions {
		if t != current {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// Settle liquida la posición de un ticker: 100c por contrato si ganó su
// lado, 0 si no.
func (b *Broker) Settle(ctx context.Context, ticker string, winner domain.Side) (domain.Settlement, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pos, ok := b.positions[ticker]
	if !ok {
		return domain.Settlement{}, fmt.Errorf("paper.Settle: no position on %s: %w", ticker, ErrRejected)
	}
	s := domain.Settlement{
		Ticker:    ticker,
		Side:      pos.Side,
		Quantity:  pos.Quantity,
		CostCents: pos.Exposure,
	}
	if winner == pos.Side {
		s.PayoutCents = 100 * pos.Quantity
	}
	b.balance = b.balance.Add(centsToDollars(s.PayoutCents))
	delete(b.positions, ticker)

	if err := b.persist(ctx); err != nil {
		slog.Warn("paper: persist state failed", "err", err)
	}
	slog.Info("paper: settled", "ticker", ticker, "side", s.Side, "qty", s.Quantity,
		"payout", s.PayoutCents, "pnl", s.PnLCents(), "balance", b.balance.StringFixed(2))
	return s, nil
}

// Reset vuelve al saldo inicial sin posiciones ni órdenes.
func (b *Broker) Reset(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.balance = decimal.NewFromFloat(b.tunables().PaperStartingBalance)
	b.positions = make(map[string]*domain.Position)
	b.orders = make(map[string]domain.Order)
	b.fills = nil
	b.lastTicker = ""
	if err := b.persist(ctx); err != nil {
		return fmt.Errorf("paper.Reset: %w", err)
	}
	slog.Info("paper: reset", "balance", b.balance.StringFixed(2))
	return nil
}

// LastTicker devuelve el último mercado operado.
func (b *Broker) LastTicker() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastTicker
}

func (b *Broker) book(ticker string) (domain.OrderBook, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ob, ok := b.books[ticker]
	return ob, ok
}

func (b *Broker) recordFill(o domain.Order) {
	f := domain.Fill{
		TradeID: uuid.NewString(),
		OrderID: o.ID,
		Ticker:  o.Ticker,
		Side:    o.Side,
		Action:  o.Action,
		Count:   o.FilledCount,
	}
	// los fills se reportan en precio YES y NO, como el broker real
	if o.Side == domain.SideYes {
		f.YesPrice, f.NoPrice = o.PriceCents, 100-o.PriceCents
	} else {
		f.YesPrice, f.NoPrice = 100-o.PriceCents, o.PriceCents
	}
	b.fills = append(b.fills, f)
}

func newOrder(req domain.OrderRequest) domain.Order {
	return domain.Order{
		ID:         "paper-" + uuid.NewString(),
		Ticker:     req.Ticker,
		Side:       req.Side,
		Action:     req.Action,
		PriceCents: req.PriceCents,
	}
}

func centsToDollars(c int) decimal.Decimal {
	return decimal.New(int64(c), -2)
}
