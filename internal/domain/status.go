package domain

import "time"

// CycleStatus resume un ciclo del motor para el notificador.
type CycleStatus struct {
	At          time.Time
	Paper       bool
	Trading     bool
	Ticker      string
	SecsLeft    float64
	Strike      float64
	BTCPrice    float64
	Projected   float64
	BestBid     int
	BestAsk     int
	FairYes     int
	YesEdge     int
	NoEdge      int
	Regime      Regime
	Momentum    float64
	Position    BrokerPosition
	HasPosition bool
	Balance     int // centavos
	Exposure    int // centavos
	Action      string
	Guard       string
	Venues      []VenueStatus
}
