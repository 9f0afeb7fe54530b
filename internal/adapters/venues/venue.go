// Package venues implementa los feeds de precio de BTC de cada exchange.
package venues

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/alejandrodnm/kalshibot/internal/domain"
	"github.com/alejandrodnm/kalshibot/internal/feed"
	"github.com/bitly/go-simplejson"
)

// errNoPrice marca mensajes válidos que no traen precio (acks, heartbeats).
var errNoPrice = errors.New("no price in message")

// Sink recibe los precios observados.
type Sink interface {
	OnPrice(sample domain.PriceSample)
}

// parser extrae el último precio de un mensaje ya decodificado.
type parser func(msg *simplejson.Json) (float64, error)

// wsVenue es un feed websocket genérico: manda una suscripción al conectar
// y extrae el precio de cada mensaje con su parser.
type wsVenue struct {
	cfg       domain.VenueConfig
	url       string
	subscribe any
	parse     parser
	sink      Sink
	now       func() time.Time
}

func (v *wsVenue) ID() string  { return v.cfg.ID }
func (v *wsVenue) URL() string { return v.url }

func (v *wsVenue) OnConnect(_ context.Context, conn feed.Conn) error {
	if err := conn.WriteJSON(v.subscribe); err != nil {
		return fmt.Errorf("venues.%s: subscribe: %w", v.cfg.ID, err)
	}
	return nil
}

func (v *wsVenue) OnMessage(_ context.Context, msg []byte) error {
	js, err := simplejson.NewJson(msg)
	if err != nil {
		return fmt.Errorf("venues.%s: decode: %w", v.cfg.ID, err)
	}
	price, err := v.parse(js)
	if err != nil {
		return fmt.Errorf("venues.%s: %w", v.cfg.ID, err)
	}
	return publish(v.sink, v.cfg.ID, price, v.now())
}

func publish(sink Sink, id string, price float64, at time.Time) error {
	if price <= 0 {
		return fmt.Errorf("venues.%s: non-positive price %v", id, price)
	}
	sink.OnPrice(domain.PriceSample{Venue: id, Price: price, At: at})
	return nil
}

// number acepta precios como string o como número JSON.
func number(js *simplejson.Json) (float64, error) {
	if js == nil || js.Interface() == nil {
		return 0, errNoPrice
	}
	if s, err := js.String(); err == nil {
		return strconv.ParseFloat(s, 64)
	}
	return js.Float64()
}

// NewHandler construye el handler websocket de un venue. Binance no pasa por
// aquí: usa NewBinance.
func NewHandler(cfg domain.VenueConfig, sink Sink) (feed.Handler, error) {
	v := &wsVenue{cfg: cfg, sink: sink, now: time.Now}
	switch cfg.ID {
	case domain.VenueBybit:
		v.url = "wss://stream.bybit.com/v5/public/linear"
		v.subscribe = map[string]any{"op": "subscribe", "args": []string{"tickers.BTCUSDT"}}
		v.parse = parseBybit
	case domain.VenueCoinbase:
		v.url = "wss://ws-feed.exchange.coinbase.com"
		v.subscribe = map[string]any{
			"type":        "subscribe",
			"product_ids": []string{"BTC-USD"},
			"channels":    []string{"ticker"},
		}
		v.parse = parseCoinbase
	case domain.VenueOKX:
		v.url = "wss://ws.okx.com:8443/ws/v5/public"
		v.subscribe = map[string]any{
			"op":   "subscribe",
			"args": []map[string]string{{"channel": "tickers", "instId": "BTC-USDT-SWAP"}},
		}
		v.parse = parseOKX
	case domain.VenueKraken:
		v.url = "wss://ws.kraken.com/v2"
		v.subscribe = map[string]any{
			"method": "subscribe",
			"params": map[string]any{"channel": "ticker", "symbol": []string{"BTC/USD"}},
		}
		v.parse = parseKraken
	case domain.VenueDeribit:
		v.url = "wss://www.deribit.com/ws/api/v2"
		v.subscribe = map[string]any{
			"jsonrpc": "2.0",
			"id":      1,
			"method":  "public/subscribe",
			"params":  map[string]any{"channels": []string{"ticker.BTC-PERPETUAL.100ms"}},
		}
		v.parse = parseDeribit
	default:
		return nil, fmt.Errorf("venues.NewHandler: unknown venue %q", cfg.ID)
	}
	return v, nil
}

// {"topic":"tickers.BTCUSDT","type":"snapshot","data":{"lastPrice":"97000.5",...}}
// Los deltas pueden no traer lastPrice.
func parseBybit(js *simplejson.Json) (float64, error) {
	topic, _ := js.Get("topic").String()
	if topic != "tickers.BTCUSDT" {
		return 0, errNoPrice
	}
	last, ok := js.Get("data").CheckGet("lastPrice")
	if !ok {
		return 0, errNoPrice
	}
	return number(last)
}

// {"type":"ticker","product_id":"BTC-USD","price":"97000.01",...}
func parseCoinbase(js *simplejson.Json) (float64, error) {
	if t, _ := js.Get("type").String(); t != "ticker" {
		return 0, errNoPrice
	}
	return number(js.Get("price"))
}

// {"arg":{"channel":"tickers","instId":"BTC-USDT-SWAP"},"data":[{"last":"97000.1",...}]}
func parseOKX(js *simplejson.Json) (float64, error) {
	if ch, _ := js.GetPath("arg", "channel").String(); ch != "tickers" {
		return 0, errNoPrice
	}
	data, err := js.Get("data").Array()
	if err != nil || len(data) == 0 {
		return 0, errNoPrice
	}
	return number(js.Get("data").GetIndex(0).Get("last"))
}

// {"channel":"ticker","type":"update","data":[{"symbol":"BTC/USD","last":97000.2,...}]}
func parseKraken(js *simplejson.Json) (float64, error) {
	if ch, _ := js.Get("channel").String(); ch != "ticker" {
		return 0, errNoPrice
	}
	data, err := js.Get("data").Array()
	if err != nil || len(data) == 0 {
		return 0, errNoPrice
	}
	return number(js.Get("data").GetIndex(0).Get("last"))
}

// {"method":"subscription","params":{"channel":"ticker.BTC-PERPETUAL.100ms","data":{"last_price":97000.5,...}}}
func parseDeribit(js *simplejson.Json) (float64, error) {
	if m, _ := js.Get("method").String(); m != "subscription" {
		return 0, errNoPrice
	}
	return number(js.GetPath("params", "data", "last_price"))
}
