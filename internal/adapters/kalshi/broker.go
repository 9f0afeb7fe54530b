package kalshi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/ports"
	"github.com/google/uuid"
)

const maxFillPages = 10

var _ ports.Broker = (*Client)(nil)

// Balance devuelve el balance disponible en centavos.
func (c *Client) Balance(ctx context.Context) (int, error) {
	var resp balanceResponse
	if err := c.get(ctx, "/portfolio/balance", nil, &resp); err != nil {
		return 0, fmt.Errorf("kalshi.Balance: %w", err)
	}
	return resp.Balance, nil
}

// OpenMarkets lista los mercados abiertos de una serie.
func (c *Client) OpenMarkets(ctx context.Context, series string) ([]domain.Market, error) {
	q := url.Values{}
	q.Set("series_ticker", series)
	q.Set("status", "open")
	q.Set("limit", "5")

	var resp marketsResponse
	if err := c.get(ctx, "/markets", q, &resp); err != nil {
		return nil, fmt.Errorf("kalshi.OpenMarkets: %w", err)
	}
	out := make([]domain.Market, 0, len(resp.Markets))
	for _, m := range resp.Markets {
		out = append(out, mapMarket(m))
	}
	return out, nil
}

// GetMarket devuelve un mercado, incluido su resultado si ya liquidó.
func (c *Client) GetMarket(ctx context.Context, ticker string) (domain.Market, error) {
	var resp marketResponse
	if err := c.get(ctx, "/markets/"+url.PathEscape(ticker), nil, &resp); err != nil {
		return domain.Market{}, fmt.Errorf("kalshi.GetMarket: %w", err)
	}
	return mapMarket(resp.Market), nil
}

// OrderBook devuelve el libro REST de un mercado.
func (c *Client) OrderBook(ctx context.Context, ticker string) (domain.OrderBook, error) {
	var resp orderbookResponse
	if err := c.get(ctx, "/markets/"+url.PathEscape(ticker)+"/orderbook", nil, &resp); err != nil {
		return domain.OrderBook{}, fmt.Errorf("kalshi.OrderBook: %w", err)
	}
	return mapOrderBook(ticker, resp, c.now()), nil
}

// Positions devuelve las posiciones de mercado abiertas.
func (c *Client) Positions(ctx context.Context) ([]domain.BrokerPosition, error) {
	q := url.Values{}
	q.Set("limit", "20")

	var resp positionsResponse
	if err := c.get(ctx, "/portfolio/positions", q, &resp); err != nil {
		return nil, fmt.Errorf("kalshi.Positions: %w", err)
	}
	return mapPositions(resp.MarketPositions), nil
}

// PlaceOrder envía una orden límite en centavos del lado elegido.
func (c *Client) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.Order, error) {
	if req.Quantity <= 0 {
		return domain.Order{}, fmt.Errorf("kalshi.PlaceOrder: quantity %d: %w", req.Quantity, ErrRejected)
	}
	price := domain.ClampCents(req.PriceCents)
	body := createOrderRequest{
		Ticker:        req.Ticker,
		ClientOrderID: uuid.NewString(),
		Action:        string(req.Action),
		Side:          string(req.Side),
		Type:          "limit",
		Count:         req.Quantity,
	}
	if req.Side == domain.SideYes {
		body.YesPrice = &price
	} else {
		body.NoPrice = &price
	}

	var resp orderResponse
	if err := c.post(ctx, "/portfolio/orders", body, &resp); err != nil {
		return domain.Order{}, fmt.Errorf("kalshi.PlaceOrder: %s %s %s x%d @%dc: %w",
			req.Action, req.Side, req.Ticker, req.Quantity, price, err)
	}
	o := mapOrder(resp.Order)
	if o.Ticker == "" {
		o.Ticker = req.Ticker
	}
	if o.PriceCents == 0 {
		o.PriceCents = price
	}
	return o, nil
}

// GetOrder consulta el estado de una orden.
func (c *Client) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	var resp orderResponse
	if err := c.get(ctx, "/portfolio/orders/"+url.PathEscape(id), nil, &resp); err != nil {
		return domain.Order{}, fmt.Errorf("kalshi.GetOrder: %w", err)
	}
	return mapOrder(resp.Order), nil
}

// CancelOrder cancela una orden.
func (c *Client) CancelOrder(ctx context.Context, id string) error {
	if err := c.delete(ctx, "/portfolio/orders/"+url.PathEscape(id), nil); err != nil {
		return fmt.Errorf("kalshi.CancelOrder: %w", err)
	}
	return nil
}

// CancelAll cancela todas las órdenes abiertas.
func (c *Client) CancelAll(ctx context.Context) error {
	body := map[string]string{"action": "cancel_all"}
	if err := c.post(ctx, "/portfolio/orders/batched", body, nil); err != nil {
		return fmt.Errorf("kalshi.CancelAll: %w", err)
	}
	return nil
}

// Fills devuelve los fills de la cuenta, paginando con cursor. Con ticker
// vacío devuelve todos.
func (c *Client) Fills(ctx context.Context, ticker string) ([]domain.Fill, error) {
	var (
		out    []domain.Fill
		cursor string
	)
	for page := 0; page < maxFillPages; page++ {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(100))
		if ticker != "" {
			q.Set("ticker", ticker)
		}
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var resp fillsResponse
		if err := c.get(ctx, "/portfolio/fills", q, &resp); err != nil {
			return nil, fmt.Errorf("kalshi.Fills: %w", err)
		}
		for _, f := range resp.Fills {
			if ticker != "" && f.Ticker != ticker {
				continue
			}
			out = append(out, mapFill(f))
		}
		if resp.Cursor == "" || len(resp.Fills) == 0 {
			break
		}
		cursor = resp.Cursor
	}
	return out, nil
}

// ActiveMarket lista los mercados abiertos de la serie y elige el contrato
// a operar.
func (c *Client) ActiveMarket(ctx context.Context, series string, minSecs float64) (domain.Market, bool, error) {
	markets, err := c.OpenMarkets(ctx, series)
	if err != nil {
		return domain.Market{}, false, err
	}
	m, ok := domain.SelectActive(markets, c.now(), minSecs)
	return m, ok, nil
}
