package domain

import (
	"time"

	"github.com/moznion/go-optional"
)

// PaperPrefix marca los market_id de paper trading en los registros, para
// que no se mezclen con los live.
const PaperPrefix = "[PAPER] "

// TradeRecord es una fila de la tabla trades.
type TradeRecord struct {
	At       time.Time
	MarketID string
	Side     Side
	Action   string  // BUY | SELL | SETTLED
	Price    float64 // dólares
	Quantity int
	OrderID  string
	ExitType ExitType
}

// DecisionRecord es una decisión de la estrategia o de un override.
type DecisionRecord struct {
	At         time.Time
	MarketID   string
	Decision   Action
	Confidence float64
	Reasoning  string
	Executed   bool
}

// MarketContext es el contexto de mercado común a todos los snapshots de un
// ciclo.
type MarketContext struct {
	BTCPrice        float64
	StrikePrice     float64
	BTCvsStrike     float64
	SecsLeft        float64
	TimeFactor      float64
	BestBid         int
	BestAsk         int
	Spread          int
	FairYesCents    int
	FairYesProb     float64
	YesEdge         int
	NoEdge          int
	VolDollarPerMin float64
	VolRegime       Regime
	DeltaMomentum   float64
	Velocity1m      float64
	Direction1m     int
	PriceChange1m   float64
	Balance         float64 // dólares
	Exposure        float64 // dólares
}

// Snapshot es una fila de trade_snapshots: contexto completo de una entrada,
// salida o liquidación, para analítica posterior.
type Snapshot struct {
	At           time.Time
	TradeID      string
	MarketID     string
	Action       string
	Side         Side
	PriceCents   int
	Quantity     int
	Decision     string
	Confidence   float64
	TriggerType  string
	PositionQty  int
	PnLCents     optional.Option[float64]
	HoldDuration optional.Option[float64] // segundos
	EntryPrice   optional.Option[int]
	MarketContext
}

// EntrySnapshot es la entrada registrada para un mercado.
type EntrySnapshot struct {
	At          time.Time
	PriceCents  int
	Side        Side
	Quantity    int
	PositionQty int
}

// LogEntry es un evento persistido.
type LogEntry struct {
	At      time.Time
	Level   string
	Message string
}

// TimeFactor devuelve secs/horizon acotado a [0, 1].
func TimeFactor(secsLeft, horizon float64) float64 {
	if horizon <= 0 {
		return 0
	}
	return min(1.0, max(0.0, secsLeft/horizon))
}
