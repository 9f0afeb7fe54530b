package kalshi

// DTOs raw de la API de Kalshi. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.

import "encoding/json"

type balanceResponse struct {
	Balance int `json:"balance"` // centavos
}

type marketsResponse struct {
	Markets []marketDTO `json:"markets"`
	Cursor  string      `json:"cursor"`
}

type marketResponse struct {
	Market marketDTO `json:"market"`
}

type marketDTO struct {
	Ticker                 string   `json:"ticker"`
	Title                  string   `json:"title"`
	YesSubTitle            string   `json:"yes_sub_title"`
	Status                 string   `json:"status"`
	Result                 string   `json:"result"`
	FloorStrike            *float64 `json:"floor_strike"`
	StrikePrice            *float64 `json:"strike_price"`
	CloseTime              string   `json:"close_time"`
	ExpectedExpirationTime string   `json:"expected_expiration_time"`
	LastPrice              int      `json:"last_price"`
	Volume                 int      `json:"volume"`
}

// orderbookResponse trae solo bids: [[precio, cantidad], ...] por lado.
// Un lado vacío llega como null.
type orderbookResponse struct {
	Orderbook struct {
		Yes [][2]int `json:"yes"`
		No  [][2]int `json:"no"`
	} `json:"orderbook"`
}

type positionsResponse struct {
	MarketPositions []positionDTO `json:"market_positions"`
	Cursor          string        `json:"cursor"`
}

type positionDTO struct {
	Ticker         string `json:"ticker"`
	Position       int    `json:"position"`
	MarketExposure int    `json:"market_exposure"`
}

type createOrderRequest struct {
	Ticker        string `json:"ticker"`
	ClientOrderID string `json:"client_order_id"`
	Action        string `json:"action"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	YesPrice      *int   `json:"yes_price,omitempty"`
	NoPrice       *int   `json:"no_price,omitempty"`
	Count         int    `json:"count"`
}

type orderResponse struct {
	Order orderDTO `json:"order"`
}

type orderDTO struct {
	OrderID        string `json:"order_id"`
	Ticker         string `json:"ticker"`
	Side           string `json:"side"`
	Action         string `json:"action"`
	Status         string `json:"status"`
	YesPrice       int    `json:"yes_price"`
	NoPrice        int    `json:"no_price"`
	FilledCount    int    `json:"filled_count"`
	RemainingCount int    `json:"remaining_count"`
}

type fillsResponse struct {
	Fills  []fillDTO `json:"fills"`
	Cursor string    `json:"cursor"`
}

type fillDTO struct {
	TradeID     string `json:"trade_id"`
	OrderID     string `json:"order_id"`
	Ticker      string `json:"ticker"`
	Side        string `json:"side"`
	Action      string `json:"action"`
	Count       int    `json:"count"`
	YesPrice    int    `json:"yes_price"`
	NoPrice     int    `json:"no_price"`
	CreatedTime string `json:"created_time"`
}

// Mensajes del websocket. Todos llegan como {"type": ..., "msg": {...}}.

type wsEnvelope struct {
	Type string          `json:"type"`
	Msg  json.RawMessage `json:"msg"`
}

type wsCommand struct {
	ID     int            `json:"id"`
	Cmd    string         `json:"cmd"`
	Params map[string]any `json:"params"`
}

type wsTicker struct {
	MarketTicker string `json:"market_ticker"`
	Price        int    `json:"price"`
	YesBid       int    `json:"yes_bid"`
	YesAsk       int    `json:"yes_ask"`
	Volume       int    `json:"volume"`
}

// wsBook cubre el snapshot y las dos formas de delta: listas yes/no con
// cantidades absolutas, o un único nivel price/delta/side incremental.
type wsBook struct {
	MarketTicker string   `json:"market_ticker"`
	Yes          [][2]int `json:"yes"`
	No           [][2]int `json:"no"`
	Price        *int     `json:"price"`
	Delta        int      `json:"delta"`
	Side         string   `json:"side"`
}

type wsFill struct {
	TradeID      string `json:"trade_id"`
	OrderID      string `json:"order_id"`
	MarketTicker string `json:"market_ticker"`
	Ticker       string `json:"ticker"`
	Side         string `json:"side"`
	Action       string `json:"action"`
	Count        int    `json:"count"`
	YesPrice     int    `json:"yes_price"`
	NoPrice      int    `json:"no_price"`
}
