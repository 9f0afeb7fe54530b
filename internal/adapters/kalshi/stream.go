package kalshi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/feed"
	"github.com/alejandrodnm/kalshibot/internal/orderbook"
	"github.com/alejandrodnm/kalshibot/internal/ports"
)

var (
	_ feed.Handler         = (*Stream)(nil)
	_ feed.HeaderProvider  = (*Stream)(nil)
	_ ports.BookSubscriber = (*Stream)(nil)
)

const (
	// StreamID identifica el feed del broker en feed.Status.
	StreamID = "kalshi"

	wsPath      = "/trade-api/ws/v2"
	fillHistory = 50
)

// TradeRecorder persiste los fills que llegan por el stream.
type TradeRecorder interface {
	RecordTrade(ctx context.Context, t domain.TradeRecord) (int64, error)
}

// Ticker es el último ticker recibido de un mercado.
type Ticker struct {
	Market string
	Price  int
	YesBid int
	YesAsk int
	Volume int
	At     time.Time
}

// Stream es el handler del websocket de Kalshi: mantiene los libros en el
// orderbook.Store y registra los fills de la cuenta.
type Stream struct {
	url    string
	signer *Signer
	books  *orderbook.Store
	trades TradeRecorder
	status *feed.Status
	now    func() time.Time

	mu         sync.Mutex
	conn       feed.Conn
	subscribed map[string]bool
	nextID     int
	tickers    map[string]Ticker
	fills      []domain.Fill
}

// NewStream crea el handler. trades puede ser nil.
func NewStream(wsHost string, signer *Signer, books *orderbook.Store, trades TradeRecorder, status *feed.Status) *Stream {
	return &Stream{
		url:        wsHost + wsPath,
		signer:     signer,
		books:      books,
		trades:     trades,
		status:     status,
		now:        time.Now,
		subscribed: make(map[string]bool),
		tickers:    make(map[string]Ticker),
	}
}

func (s *Stream) ID() string  { return StreamID }
func (s *Stream) URL() string { return s.url }

// Header firma el handshake como un GET al path del websocket.
func (s *Stream) Header() (http.Header, error) {
	if s.signer == nil {
		return make(http.Header), nil
	}
	return s.signer.Headers(http.MethodGet, wsPath)
}

// OnConnect olvida las suscripciones de la conexión anterior y se suscribe
// a ticker y fill.
func (s *Stream) OnConnect(_ context.Context, conn feed.Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conn = conn
	s.subscribed = make(map[string]bool)
	s.nextID = 1
	return conn.WriteJSON(wsCommand{
		ID:     s.nextID,
		Cmd:    "subscribe",
		Params: map[string]any{"channels": []string{"ticker", "fill"}},
	})
}

// Connected reports whether the broker stream is up.
func (s *Stream) Connected() bool {
	return s.status != nil && s.status.Connected(StreamID)
}

// SubscribeOrderBook pide el canal orderbook_delta de un mercado. Una vez
// por conexión: repetir la llamada no envía nada.
func (s *Stream) SubscribeOrderBook(_ context.Context, ticker string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("kalshi.SubscribeOrderBook: %w", feed.ErrNotConnected)
	}
	if s.subscribed[ticker] {
		return nil
	}
	s.nextID++
	err := s.conn.WriteJSON(wsCommand{
		ID:  s.nextID,
		Cmd: "subscribe",
		Params: map[string]any{
			"channels":       []string{"orderbook_delta"},
			"market_tickers": []string{ticker},
		},
	})
	if err != nil {
		return fmt.Errorf("kalshi.SubscribeOrderBook: %s: %w", ticker, err)
	}
	s.subscribed[ticker] = true
	slog.Info("kalshi: subscribed orderbook", "ticker", ticker)
	return nil
}

// OnMessage despacha por type.
func (s *Stream) OnMessage(ctx context.Context, raw []byte) error {
	var env wsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("kalshi.OnMessage: %w", err)
	}

	switch env.Type {
	case "ticker":
		return s.onTicker(env.Msg)
	case "orderbook_snapshot":
		return s.onSnapshot(env.Msg)
	case "orderbook_delta":
		return s.onDelta(env.Msg)
	case "fill":
		return s.onFill(ctx, env.Msg)
	case "error":
		slog.Warn("kalshi: stream error", "msg", string(env.Msg))
	}
	return nil
}

func (s *Stream) onTicker(raw json.RawMessage) error {
	var m wsTicker
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("kalshi.onTicker: %w", err)
	}
	if m.MarketTicker == "" {
		return nil
	}
	s.mu.Lock()
	s.tickers[m.MarketTicker] = Ticker{
		Market: m.MarketTicker,
		Price:  m.Price,
		YesBid: m.YesBid,
		YesAsk: m.YesAsk,
		Volume: m.Volume,
		At:     s.now(),
	}
	s.mu.Unlock()
	return nil
}

func (s *Stream) onSnapshot(raw json.RawMessage) error {
	var m wsBook
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("kalshi.onSnapshot: %w", err)
	}
	if m.MarketTicker == "" {
		return errors.New("kalshi.onSnapshot: missing market_ticker")
	}
	s.books.ApplySnapshot(m.MarketTicker, mapLevels(m.Yes), mapLevels(m.No))
	return nil
}

func (s *Stream) onDelta(raw json.RawMessage) error {
	var m wsBook
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("kalshi.onDelta: %w", err)
	}
	if m.Price != nil {
		side := domain.Side(strings.ToLower(m.Side))
		return s.books.AdjustLevel(m.MarketTicker, side, *m.Price, m.Delta)
	}
	if len(m.Yes) > 0 {
		if err := s.books.ApplyDelta(m.MarketTicker, domain.SideYes, mapLevels(m.Yes)); err != nil {
			return err
		}
	}
	if len(m.No) > 0 {
		if err := s.books.ApplyDelta(m.MarketTicker, domain.SideNo, mapLevels(m.No)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stream) onFill(ctx context.Context, raw json.RawMessage) error {
	var m wsFill
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("kalshi.onFill: %w", err)
	}
	ticker := m.MarketTicker
	if ticker == "" {
		ticker = m.Ticker
	}
	f := domain.Fill{
		TradeID:   m.TradeID,
		OrderID:   m.OrderID,
		Ticker:    ticker,
		Side:      domain.Side(strings.ToLower(m.Side)),
		Action:    domain.OrderAction(strings.ToLower(m.Action)),
		Count:     m.Count,
		YesPrice:  m.YesPrice,
		NoPrice:   m.NoPrice,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	s.fills = append(s.fills, f)
	if len(s.fills) > fillHistory {
		s.fills = s.fills[len(s.fills)-fillHistory:]
	}
	s.mu.Unlock()

	slog.Info("kalshi: fill", "ticker", f.Ticker, "side", f.Side, "action", f.Action,
		"count", f.Count, "price", f.Price())

	if s.trades == nil {
		return nil
	}
	_, err := s.trades.RecordTrade(ctx, domain.TradeRecord{
		At:       f.CreatedAt,
		MarketID: f.Ticker,
		Side:     f.Side,
		Action:   strings.ToUpper(string(f.Action)),
		Price:    float64(f.Price()) / 100,
		Quantity: f.Count,
		OrderID:  f.OrderID,
	})
	if err != nil {
		return fmt.Errorf("kalshi.onFill: record: %w", err)
	}
	return nil
}

// LastTicker devuelve el último ticker recibido de un mercado.
func (s *Stream) LastTicker(market string) (Ticker, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickers[market]
	return t, ok
}

// RecentFills devuelve copia de los últimos fills recibidos.
func (s *Stream) RecentFills() []domain.Fill {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Fill(nil), s.fills...)
}
